// Package config loads application configuration from file and environment
// and initializes the global logger.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Engine    EngineConfig    `yaml:"engine" mapstructure:"engine"`
	Learning  LearningConfig  `yaml:"learning" mapstructure:"learning"`
	Knowledge KnowledgeConfig `yaml:"knowledge" mapstructure:"knowledge"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// EngineConfig configures the analysis pass and approval policy.
type EngineConfig struct {
	AcceptThreshold       float64 `yaml:"accept_threshold" mapstructure:"accept_threshold"`
	AutoApproveConfidence float64 `yaml:"auto_approve_confidence" mapstructure:"auto_approve_confidence"`
	MaxRecordsPerPass     int     `yaml:"max_records_per_pass" mapstructure:"max_records_per_pass"`
	CacheTTLSecs          int     `yaml:"cache_ttl_secs" mapstructure:"cache_ttl_secs"`
	Workers               int     `yaml:"workers" mapstructure:"workers"`
	BatchRateLimit        float64 `yaml:"batch_rate_limit" mapstructure:"batch_rate_limit"`
}

// LearningConfig bounds the feedback-driven confidence dynamics.
type LearningConfig struct {
	BoostStep          float64 `yaml:"boost_step" mapstructure:"boost_step"`
	BoostMax           float64 `yaml:"boost_max" mapstructure:"boost_max"`
	BoostMin           float64 `yaml:"boost_min" mapstructure:"boost_min"`
	MinPatternSupport  int     `yaml:"min_pattern_support" mapstructure:"min_pattern_support"`
	CalibrationSamples int     `yaml:"calibration_samples" mapstructure:"calibration_samples"`
}

// KnowledgeConfig points at the optional vocabulary override file.
type KnowledgeConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// ServerConfig configures the proposal API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("BRANDMERGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "brandmerge.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("engine.accept_threshold", 0.65)
	v.SetDefault("engine.auto_approve_confidence", 0.95)
	v.SetDefault("engine.max_records_per_pass", 5000)
	v.SetDefault("engine.cache_ttl_secs", 300)
	v.SetDefault("engine.workers", 4)
	v.SetDefault("engine.batch_rate_limit", 10)
	v.SetDefault("learning.boost_step", 0.05)
	v.SetDefault("learning.boost_max", 0.30)
	v.SetDefault("learning.boost_min", -0.20)
	v.SetDefault("learning.min_pattern_support", 3)
	v.SetDefault("learning.calibration_samples", 5)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
