package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/curate-cli/internal/db"
	"github.com/sells-group/curate-cli/internal/model"
)

// PostgresStore implements ArtifactStore using pgxpool.
type PostgresStore struct {
	pool db.Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

var (
	recordColumns = []string{"percentile", "bucket", "position", "line_num", "payload"}
	countColumns  = []string{"percentile", "bucket", "line_num", "system", "human", "gpt", "total_token_count"}
)

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(4)
	minConns := int32(1)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS curate_manifest (
	id          INTEGER PRIMARY KEY CHECK (id = 1),
	run_id      TEXT NOT NULL,
	fingerprint TEXT NOT NULL,
	records     INTEGER NOT NULL,
	encoding    TEXT NOT NULL,
	buckets     JSONB NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS curate_groups (
	percentile DOUBLE PRECISION NOT NULL,
	bucket     INTEGER NOT NULL,
	threshold  DOUBLE PRECISION,
	PRIMARY KEY (percentile, bucket)
);

CREATE TABLE IF NOT EXISTS curate_records (
	percentile DOUBLE PRECISION NOT NULL,
	bucket     INTEGER NOT NULL,
	position   INTEGER NOT NULL,
	line_num   INTEGER NOT NULL,
	payload    TEXT NOT NULL,
	PRIMARY KEY (percentile, bucket, position),
	FOREIGN KEY (percentile, bucket) REFERENCES curate_groups(percentile, bucket) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS curate_counts (
	percentile        DOUBLE PRECISION NOT NULL,
	bucket            INTEGER NOT NULL,
	line_num          INTEGER NOT NULL,
	system            INTEGER NOT NULL,
	human             INTEGER NOT NULL,
	gpt               INTEGER NOT NULL,
	total_token_count INTEGER NOT NULL,
	PRIMARY KEY (percentile, bucket, line_num),
	FOREIGN KEY (percentile, bucket) REFERENCES curate_groups(percentile, bucket) ON DELETE CASCADE
);
`

// Migrate creates the artifact tables.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) CommitClassified(ctx context.Context, m Manifest, buckets []model.BucketArtifacts) error {
	bucketsJSON, err := json.Marshal(sortedBuckets(m.Buckets))
	if err != nil {
		return eris.Wrap(err, "postgres: marshal buckets")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, `DELETE FROM curate_groups; DELETE FROM curate_manifest`); err != nil {
		return eris.Wrap(err, "postgres: clear artifacts")
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO curate_manifest (id, run_id, fingerprint, records, encoding, buckets, created_at) VALUES (1, $1, $2, $3, $4, $5, $6)`,
		m.RunID, m.Fingerprint, m.Records, m.Encoding, bucketsJSON, m.CreatedAt.UTC(),
	); err != nil {
		return eris.Wrap(err, "postgres: insert manifest")
	}

	groups := make([]pgGroup, 0, len(buckets))
	for _, b := range buckets {
		groups = append(groups, pgGroup{g: model.Group{Bucket: b.Bucket}, records: b.Records, counts: b.Counts})
	}
	if err := insertGroupsPostgres(ctx, tx, groups); err != nil {
		return err
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit classified")
}

func (s *PostgresStore) CommitSelected(ctx context.Context, percentile float64, results []model.PercentileResult) error {
	if err := validateSelected(percentile, results); err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var n int
	if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM curate_manifest`).Scan(&n); err != nil {
		return eris.Wrap(err, "postgres: check manifest")
	}
	if n == 0 {
		return eris.Wrap(ErrNotFound, "postgres: commit selected without classified artifacts")
	}

	if _, err := tx.Exec(ctx, `DELETE FROM curate_groups WHERE percentile = $1`, percentile); err != nil {
		return eris.Wrap(err, "postgres: clear selection")
	}

	groups := make([]pgGroup, 0, len(results))
	for _, r := range results {
		g := pgGroup{g: model.Group{Bucket: r.Bucket, Percentile: percentile}, records: r.Records, counts: r.Counts}
		if !r.Empty {
			th := r.Threshold
			g.threshold = &th
		}
		groups = append(groups, g)
	}
	if err := insertGroupsPostgres(ctx, tx, groups); err != nil {
		return err
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit selected")
}

type pgGroup struct {
	g         model.Group
	threshold *float64
	records   []model.Record
	counts    []model.TokenCountRow
}

// insertGroupsPostgres registers every group, then bulk-loads all records and
// counts with one COPY per table.
func insertGroupsPostgres(ctx context.Context, tx pgx.Tx, groups []pgGroup) error {
	var recRows, cntRows [][]any
	for _, grp := range groups {
		if _, err := tx.Exec(ctx,
			`INSERT INTO curate_groups (percentile, bucket, threshold) VALUES ($1, $2, $3)`,
			grp.g.Percentile, grp.g.Bucket, grp.threshold,
		); err != nil {
			return eris.Wrapf(err, "postgres: insert group %s", grp.g)
		}
		for i, rec := range grp.records {
			p, err := rec.Payload()
			if err != nil {
				return eris.Wrapf(err, "postgres: serialize record %d", rec.Line)
			}
			recRows = append(recRows, []any{grp.g.Percentile, grp.g.Bucket, i, rec.Line, string(p)})
		}
		for _, row := range grp.counts {
			cntRows = append(cntRows, []any{grp.g.Percentile, grp.g.Bucket, row.LineNum, row.System, row.Human, row.GPT, row.Total})
		}
	}

	if _, err := db.CopyFrom(ctx, tx, "curate_records", recordColumns, recRows); err != nil {
		return err
	}
	if _, err := db.CopyFrom(ctx, tx, "curate_counts", countColumns, cntRows); err != nil {
		return err
	}
	return nil
}

func (s *PostgresStore) Manifest(ctx context.Context) (*Manifest, error) {
	var (
		m           Manifest
		bucketsJSON []byte
	)
	err := s.pool.QueryRow(ctx,
		`SELECT run_id, fingerprint, records, encoding, buckets, created_at FROM curate_manifest WHERE id = 1`,
	).Scan(&m.RunID, &m.Fingerprint, &m.Records, &m.Encoding, &bucketsJSON, &m.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get manifest")
	}
	if err := json.Unmarshal(bucketsJSON, &m.Buckets); err != nil {
		return nil, eris.Wrap(err, "postgres: parse manifest buckets")
	}
	return &m, nil
}

func (s *PostgresStore) groupExists(ctx context.Context, g model.Group) error {
	var one int
	err := s.pool.QueryRow(ctx,
		`SELECT 1 FROM curate_groups WHERE percentile = $1 AND bucket = $2`, g.Percentile, g.Bucket,
	).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return eris.Wrapf(err, "postgres: get group %s", g)
}

func (s *PostgresStore) Counts(ctx context.Context, g model.Group) ([]model.TokenCountRow, error) {
	if err := s.groupExists(ctx, g); err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx,
		`SELECT line_num, system, human, gpt, total_token_count FROM curate_counts WHERE percentile = $1 AND bucket = $2 ORDER BY line_num`,
		g.Percentile, g.Bucket,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: query counts %s", g)
	}
	defer rows.Close()

	out := []model.TokenCountRow{}
	for rows.Next() {
		var r model.TokenCountRow
		if err := rows.Scan(&r.LineNum, &r.System, &r.Human, &r.GPT, &r.Total); err != nil {
			return nil, eris.Wrap(err, "postgres: scan count")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate counts")
}

func (s *PostgresStore) Records(ctx context.Context, g model.Group) ([]json.RawMessage, error) {
	if err := s.groupExists(ctx, g); err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx,
		`SELECT payload FROM curate_records WHERE percentile = $1 AND bucket = $2 ORDER BY position`,
		g.Percentile, g.Bucket,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: query records %s", g)
	}
	defer rows.Close()

	out := []json.RawMessage{}
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, eris.Wrap(err, "postgres: scan record")
		}
		out = append(out, json.RawMessage(payload))
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate records")
}
