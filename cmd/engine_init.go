package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/brandmerge-cli/internal/engine"
	"github.com/sells-group/brandmerge-cli/internal/knowledge"
	"github.com/sells-group/brandmerge-cli/internal/learning"
	"github.com/sells-group/brandmerge-cli/internal/store"
)

// engineEnv holds the initialized store, knowledge base, learning store,
// and engine needed by the analysis commands.
type engineEnv struct {
	Store     store.Store
	Knowledge *knowledge.Base
	Learning  *learning.Store
	Engine    *engine.Engine
}

// Close releases resources held by the environment.
func (ee *engineEnv) Close() {
	if ee.Store != nil {
		_ = ee.Store.Close()
	}
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "brandmerge.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initEngine sets up the store, loads the knowledge base with any stored
// term additions, replays the learning state, and builds the engine.
// Callers should defer env.Close().
func initEngine(ctx context.Context) (*engineEnv, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	kb, err := knowledge.Load(cfg.Knowledge.Path)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	terms, err := st.LoadKnowledgeTerms(ctx)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	for list, values := range terms {
		kb.AddTerms(list, values)
	}

	learn, err := learning.New(ctx, st, learning.Config{
		BoostStep:          cfg.Learning.BoostStep,
		BoostMax:           cfg.Learning.BoostMax,
		BoostMin:           cfg.Learning.BoostMin,
		MinPatternSupport:  cfg.Learning.MinPatternSupport,
		CalibrationSamples: cfg.Learning.CalibrationSamples,
	})
	if err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "init learning store")
	}

	zap.L().Debug("engine environment ready",
		zap.String("driver", cfg.Store.Driver),
		zap.Int("learned_patterns", len(learn.Patterns())),
	)

	return &engineEnv{
		Store:     st,
		Knowledge: kb,
		Learning:  learn,
		Engine:    engine.New(st, learn, kb, cfg.Engine),
	}, nil
}
