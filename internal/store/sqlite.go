package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/curate-cli/internal/model"
)

// SQLiteStore implements ArtifactStore using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
// A single connection is kept so per-connection pragmas apply to every query.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS curate_manifest (
	id          INTEGER PRIMARY KEY CHECK (id = 1),
	run_id      TEXT NOT NULL,
	fingerprint TEXT NOT NULL,
	records     INTEGER NOT NULL,
	encoding    TEXT NOT NULL,
	buckets     TEXT NOT NULL,
	created_at  DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS curate_groups (
	percentile REAL NOT NULL,
	bucket     INTEGER NOT NULL,
	threshold  REAL,
	PRIMARY KEY (percentile, bucket)
);

CREATE TABLE IF NOT EXISTS curate_records (
	percentile REAL NOT NULL,
	bucket     INTEGER NOT NULL,
	position   INTEGER NOT NULL,
	line_num   INTEGER NOT NULL,
	payload    TEXT NOT NULL,
	PRIMARY KEY (percentile, bucket, position),
	FOREIGN KEY (percentile, bucket) REFERENCES curate_groups(percentile, bucket) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS curate_counts (
	percentile        REAL NOT NULL,
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
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CommitClassified(ctx context.Context, m Manifest, buckets []model.BucketArtifacts) error {
	bucketsJSON, err := json.Marshal(sortedBuckets(m.Buckets))
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal buckets")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM curate_groups`); err != nil {
		return eris.Wrap(err, "sqlite: clear groups")
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM curate_manifest`); err != nil {
		return eris.Wrap(err, "sqlite: clear manifest")
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO curate_manifest (id, run_id, fingerprint, records, encoding, buckets, created_at) VALUES (1, ?, ?, ?, ?, ?, ?)`,
		m.RunID, m.Fingerprint, m.Records, m.Encoding, string(bucketsJSON), m.CreatedAt.UTC(),
	); err != nil {
		return eris.Wrap(err, "sqlite: insert manifest")
	}

	for _, b := range buckets {
		if err := insertGroupSQLite(ctx, tx, model.Group{Bucket: b.Bucket}, nil, b.Records, b.Counts); err != nil {
			return err
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit classified")
}

func (s *SQLiteStore) CommitSelected(ctx context.Context, percentile float64, results []model.PercentileResult) error {
	if err := validateSelected(percentile, results); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	var n int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM curate_manifest`).Scan(&n); err != nil {
		return eris.Wrap(err, "sqlite: check manifest")
	}
	if n == 0 {
		return eris.Wrap(ErrNotFound, "sqlite: commit selected without classified artifacts")
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM curate_groups WHERE percentile = ?`, percentile); err != nil {
		return eris.Wrap(err, "sqlite: clear selection")
	}
	for _, r := range results {
		threshold := r.Threshold
		var th *float64
		if !r.Empty {
			th = &threshold
		}
		if err := insertGroupSQLite(ctx, tx, model.Group{Bucket: r.Bucket, Percentile: percentile}, th, r.Records, r.Counts); err != nil {
			return err
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit selected")
}

func insertGroupSQLite(ctx context.Context, tx *sql.Tx, g model.Group, threshold *float64, records []model.Record, counts []model.TokenCountRow) error {
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO curate_groups (percentile, bucket, threshold) VALUES (?, ?, ?)`,
		g.Percentile, g.Bucket, threshold,
	); err != nil {
		return eris.Wrapf(err, "sqlite: insert group %s", g)
	}

	recStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO curate_records (percentile, bucket, position, line_num, payload) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare record insert")
	}
	defer recStmt.Close() //nolint:errcheck
	for i, rec := range records {
		p, err := rec.Payload()
		if err != nil {
			return eris.Wrapf(err, "sqlite: serialize record %d", rec.Line)
		}
		if _, err := recStmt.ExecContext(ctx, g.Percentile, g.Bucket, i, rec.Line, string(p)); err != nil {
			return eris.Wrapf(err, "sqlite: insert record %d into %s", rec.Line, g)
		}
	}

	cntStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO curate_counts (percentile, bucket, line_num, system, human, gpt, total_token_count) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare count insert")
	}
	defer cntStmt.Close() //nolint:errcheck
	for _, row := range counts {
		if _, err := cntStmt.ExecContext(ctx, g.Percentile, g.Bucket, row.LineNum, row.System, row.Human, row.GPT, row.Total); err != nil {
			return eris.Wrapf(err, "sqlite: insert count %d into %s", row.LineNum, g)
		}
	}
	return nil
}

func (s *SQLiteStore) Manifest(ctx context.Context) (*Manifest, error) {
	var (
		m           Manifest
		bucketsJSON string
		createdAt   time.Time
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT run_id, fingerprint, records, encoding, buckets, created_at FROM curate_manifest WHERE id = 1`,
	).Scan(&m.RunID, &m.Fingerprint, &m.Records, &m.Encoding, &bucketsJSON, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get manifest")
	}
	if err := json.Unmarshal([]byte(bucketsJSON), &m.Buckets); err != nil {
		return nil, eris.Wrap(err, "sqlite: parse manifest buckets")
	}
	m.CreatedAt = createdAt
	return &m, nil
}

func (s *SQLiteStore) groupExists(ctx context.Context, g model.Group) error {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM curate_groups WHERE percentile = ? AND bucket = ?`, g.Percentile, g.Bucket,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return eris.Wrapf(err, "sqlite: get group %s", g)
}

func (s *SQLiteStore) Counts(ctx context.Context, g model.Group) ([]model.TokenCountRow, error) {
	if err := s.groupExists(ctx, g); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT line_num, system, human, gpt, total_token_count FROM curate_counts
		 WHERE percentile = ? AND bucket = ? ORDER BY line_num`,
		g.Percentile, g.Bucket,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: query counts %s", g)
	}
	defer rows.Close() //nolint:errcheck

	out := []model.TokenCountRow{}
	for rows.Next() {
		var r model.TokenCountRow
		if err := rows.Scan(&r.LineNum, &r.System, &r.Human, &r.GPT, &r.Total); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan count")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate counts")
}

func (s *SQLiteStore) Records(ctx context.Context, g model.Group) ([]json.RawMessage, error) {
	if err := s.groupExists(ctx, g); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT payload FROM curate_records WHERE percentile = ? AND bucket = ? ORDER BY position`,
		g.Percentile, g.Bucket,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: query records %s", g)
	}
	defer rows.Close() //nolint:errcheck

	out := []json.RawMessage{}
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan record")
		}
		out = append(out, json.RawMessage(payload))
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate records")
}
