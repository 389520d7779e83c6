// Package store persists classifier and selector artifacts.
//
// Every commit replaces a whole stage: a classified commit replaces all prior
// classified and percentile artifacts, a selected commit replaces the
// artifacts of one percentile. Callers compute a stage completely before
// committing, so a failed run never leaves a half-written stage behind.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/curate-cli/internal/model"
)

// ErrNotFound is returned when a manifest or artifact group does not exist.
var ErrNotFound = errors.New("store: not found")

// Manifest describes the input a classified commit was produced from.
type Manifest struct {
	RunID       string    `json:"run_id"`
	Fingerprint string    `json:"fingerprint"`
	Records     int       `json:"records"`
	Encoding    string    `json:"encoding"`
	Buckets     []int     `json:"buckets"`
	CreatedAt   time.Time `json:"created_at"`
}

// ArtifactStore is the persistence boundary between pipeline stages.
type ArtifactStore interface {
	// CommitClassified replaces all artifacts with the given buckets.
	CommitClassified(ctx context.Context, m Manifest, buckets []model.BucketArtifacts) error
	// CommitSelected replaces the artifacts of one percentile.
	CommitSelected(ctx context.Context, percentile float64, results []model.PercentileResult) error

	// Manifest returns the manifest of the last classified commit.
	Manifest(ctx context.Context) (*Manifest, error)
	// Counts returns a group's count table in committed order. The pipeline
	// commits rows sorted by line_num.
	Counts(ctx context.Context, g model.Group) ([]model.TokenCountRow, error)
	// Records returns a group's record payloads in the order they were committed.
	Records(ctx context.Context, g model.Group) ([]json.RawMessage, error)

	Close() error
}

// Config selects and configures a backend.
type Config struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	Dir         string `yaml:"dir" mapstructure:"dir"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// Open builds the backend named by cfg.Driver and migrates it when needed.
func Open(ctx context.Context, cfg Config) (ArtifactStore, error) {
	switch cfg.Driver {
	case "memory":
		return NewMemory(), nil
	case "", "fs":
		dir := cfg.Dir
		if dir == "" {
			dir = "."
		}
		return NewFS(dir)
	case "sqlite":
		dsn := cfg.DatabaseURL
		if dsn == "" {
			dsn = "curate.db"
		}
		st, err := NewSQLite(dsn)
		if err != nil {
			return nil, err
		}
		if err := st.Migrate(ctx); err != nil {
			_ = st.Close()
			return nil, err
		}
		return st, nil
	case "postgres":
		st, err := NewPostgres(ctx, cfg.DatabaseURL, &PoolConfig{MaxConns: cfg.MaxConns, MinConns: cfg.MinConns})
		if err != nil {
			return nil, err
		}
		if err := st.Migrate(ctx); err != nil {
			_ = st.Close()
			return nil, err
		}
		return st, nil
	default:
		return nil, eris.Errorf("store: unsupported driver %q", cfg.Driver)
	}
}

func validateSelected(percentile float64, results []model.PercentileResult) error {
	if percentile <= 0 || percentile > 100 {
		return eris.Errorf("store: percentile %v out of range (0, 100]", percentile)
	}
	for _, r := range results {
		if r.Percentile != percentile {
			return eris.Errorf("store: bucket %d has percentile %v, committing %v", r.Bucket, r.Percentile, percentile)
		}
	}
	return nil
}

func sortedBuckets(ids []int) []int {
	out := append([]int(nil), ids...)
	sort.Ints(out)
	return out
}

func payloads(records []model.Record) ([]json.RawMessage, error) {
	out := make([]json.RawMessage, len(records))
	for i, rec := range records {
		p, err := rec.Payload()
		if err != nil {
			return nil, eris.Wrapf(err, "store: serialize record %d", rec.Line)
		}
		out[i] = p
	}
	return out, nil
}
