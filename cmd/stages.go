package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/curate-cli/internal/bucket"
	"github.com/sells-group/curate-cli/internal/ingest"
	"github.com/sells-group/curate-cli/internal/pipeline"
	"github.com/sells-group/curate-cli/internal/pool"
	"github.com/sells-group/curate-cli/internal/resilience"
	"github.com/sells-group/curate-cli/internal/store"
	"github.com/sells-group/curate-cli/internal/tokenizer"
)

// stageEnv holds the store, worker pool and stages shared by the
// classify, select and run commands.
type stageEnv struct {
	Store      store.ArtifactStore
	Pool       *pool.Pool
	Classifier *pipeline.Classifier
	Selector   *pipeline.Selector
}

// Close releases resources held by the environment.
func (e *stageEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// newPool builds the worker pool from configuration.
func newPool() *pool.Pool {
	return pool.New(pool.Config{
		Workers: cfg.Pool.Workers,
		Retry:   resilience.FromRetryConfig(cfg.Pool.MaxAttempts, cfg.Pool.InitialBackoffMs, cfg.Pool.MaxBackoffMs),
	})
}

// keyFunc returns the prompt key function selected by buckets.normalize.
func keyFunc() bucket.KeyFunc {
	if cfg.Buckets.Normalize {
		return bucket.Normalize
	}
	return nil
}

// initStages validates configuration for mode, opens the artifact store and
// wires both pipeline stages. Callers should defer env.Close().
func initStages(ctx context.Context, mode string) (*stageEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := store.Open(ctx, store.Config{
		Driver:      cfg.Store.Driver,
		Dir:         cfg.Store.Dir,
		DatabaseURL: cfg.Store.DatabaseURL,
		MaxConns:    cfg.Store.MaxConns,
		MinConns:    cfg.Store.MinConns,
	})
	if err != nil {
		return nil, eris.Wrap(err, "open artifact store")
	}

	p := newPool()
	env := &stageEnv{
		Store: st,
		Pool:  p,
		Classifier: &pipeline.Classifier{
			Tokens:   tokenizer.Default(),
			Encoding: cfg.Tokenizer.Encoding,
			Pool:     p,
			Store:    st,
			Key:      keyFunc(),
		},
		Selector: &pipeline.Selector{Pool: p, Store: st},
	}

	zap.L().Debug("stages initialized",
		zap.String("mode", mode),
		zap.String("driver", cfg.Store.Driver),
		zap.Int("workers", p.Workers()),
		zap.String("encoding", cfg.Tokenizer.Encoding),
	)
	return env, nil
}

// loadSnapshot reads the input file and fingerprints it.
func loadSnapshot(ctx context.Context, path string, p *pool.Pool) (*pipeline.Snapshot, error) {
	records, err := ingest.ReadFile(ctx, path, p)
	if err != nil {
		return nil, err
	}
	return pipeline.NewSnapshot(records)
}

// resolveMapping loads the prompt mapping from path, or discovers it from
// the snapshot when path is empty.
func resolveMapping(path string, snap *pipeline.Snapshot) (bucket.Mapping, error) {
	if path != "" {
		return bucket.LoadMapping(path)
	}
	m := bucket.Discover(snap.Records(), keyFunc())
	zap.L().Info("discovered prompt mapping", zap.Int("buckets", len(m)))
	return m, nil
}
