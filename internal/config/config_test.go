package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "brandmerge.db", cfg.Store.DatabaseURL)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.InDelta(t, 0.65, cfg.Engine.AcceptThreshold, 0.001)
	assert.InDelta(t, 0.95, cfg.Engine.AutoApproveConfidence, 0.001)
	assert.Equal(t, 5000, cfg.Engine.MaxRecordsPerPass)
	assert.Equal(t, 300, cfg.Engine.CacheTTLSecs)
	assert.Equal(t, 4, cfg.Engine.Workers)
	assert.InDelta(t, 10.0, cfg.Engine.BatchRateLimit, 0.001)
	assert.InDelta(t, 0.05, cfg.Learning.BoostStep, 0.001)
	assert.InDelta(t, 0.30, cfg.Learning.BoostMax, 0.001)
	assert.InDelta(t, -0.20, cfg.Learning.BoostMin, 0.001)
	assert.Equal(t, 3, cfg.Learning.MinPatternSupport)
	assert.Equal(t, 5, cfg.Learning.CalibrationSamples)
	assert.Empty(t, cfg.Knowledge.Path)
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/brands
log:
  level: debug
  format: console
engine:
  accept_threshold: 0.7
  workers: 8
knowledge:
  path: vocab.yaml
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/brands", cfg.Store.DatabaseURL)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.InDelta(t, 0.7, cfg.Engine.AcceptThreshold, 0.001)
	assert.Equal(t, 8, cfg.Engine.Workers)
	assert.Equal(t, "vocab.yaml", cfg.Knowledge.Path)
	// Defaults still apply for unset values
	assert.InDelta(t, 0.95, cfg.Engine.AutoApproveConfidence, 0.001)
	assert.Equal(t, 5000, cfg.Engine.MaxRecordsPerPass)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
store:
  driver: postgres
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("BRANDMERGE_STORE_DRIVER", "sqlite")
	t.Setenv("BRANDMERGE_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	t.Setenv("BRANDMERGE_SERVER_PORT", "3000")
	t.Setenv("BRANDMERGE_ENGINE_BATCH_RATE_LIMIT", "2.5")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.InDelta(t, 2.5, cfg.Engine.BatchRateLimit, 0.001)
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}
