package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/curate-cli/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

func TestPostgresStore_Migrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS curate_manifest`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CommitClassified(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	buckets := classifiedFixture()

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM curate_groups; DELETE FROM curate_manifest`).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectExec(`INSERT INTO curate_manifest`).
		WithArgs("run-1", "abc123", 3, "whitespace", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	for _, b := range buckets {
		mock.ExpectExec(`INSERT INTO curate_groups`).
			WithArgs(float64(0), b.Bucket, pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
	}
	mock.ExpectCopyFrom(pgx.Identifier{"curate_records"}, recordColumns).WillReturnResult(3)
	mock.ExpectCopyFrom(pgx.Identifier{"curate_counts"}, countColumns).WillReturnResult(3)
	mock.ExpectCommit()

	require.NoError(t, s.CommitClassified(context.Background(), testManifest(1, 2, 3), buckets))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CommitClassified_CopyFailureRollsBack(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM curate_groups`).WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectExec(`INSERT INTO curate_manifest`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO curate_groups`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCopyFrom(pgx.Identifier{"curate_records"}, recordColumns).
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	err := s.CommitClassified(context.Background(), testManifest(1), classifiedFixture()[:1])
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CommitSelected(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	results := []model.PercentileResult{
		{
			Bucket: 1, Percentile: 50, Threshold: 3.5,
			Records: []model.Record{rec(0, "A", "hi", "hello there")},
			Counts:  []model.TokenCountRow{model.NewTokenCountRow(0, 1, 1, 2)},
		},
		{Bucket: 3, Percentile: 50, Empty: true, Records: []model.Record{}, Counts: []model.TokenCountRow{}},
	}

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM curate_manifest`).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectExec(`DELETE FROM curate_groups WHERE percentile = \$1`).
		WithArgs(float64(50)).
		WillReturnResult(pgxmock.NewResult("DELETE", 2))
	mock.ExpectExec(`INSERT INTO curate_groups`).
		WithArgs(float64(50), 1, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO curate_groups`).
		WithArgs(float64(50), 3, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCopyFrom(pgx.Identifier{"curate_records"}, recordColumns).WillReturnResult(1)
	mock.ExpectCopyFrom(pgx.Identifier{"curate_counts"}, countColumns).WillReturnResult(1)
	mock.ExpectCommit()

	require.NoError(t, s.CommitSelected(context.Background(), 50, results))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CommitSelected_NoManifest(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM curate_manifest`).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectRollback()

	err := s.CommitSelected(context.Background(), 10, nil)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Manifest(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT run_id, fingerprint, records, encoding, buckets, created_at FROM curate_manifest`).
		WillReturnRows(pgxmock.NewRows([]string{"run_id", "fingerprint", "records", "encoding", "buckets", "created_at"}).
			AddRow("run-1", "abc123", 3, "o200k_base", []byte(`[1,2]`), created))

	m, err := s.Manifest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "run-1", m.RunID)
	assert.Equal(t, 3, m.Records)
	assert.Equal(t, []int{1, 2}, m.Buckets)
	assert.Equal(t, created, m.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Manifest_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM curate_manifest WHERE id = 1`).WillReturnError(pgx.ErrNoRows)

	_, err := s.Manifest(context.Background())
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Counts(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	g := model.Group{Bucket: 2, Percentile: 50}

	mock.ExpectQuery(`SELECT 1 FROM curate_groups`).
		WithArgs(float64(50), 2).
		WillReturnRows(pgxmock.NewRows([]string{"one"}).AddRow(1))
	mock.ExpectQuery(`SELECT line_num, system, human, gpt, total_token_count FROM curate_counts`).
		WithArgs(float64(50), 2).
		WillReturnRows(pgxmock.NewRows([]string{"line_num", "system", "human", "gpt", "total_token_count"}).
			AddRow(1, 1, 1, 3, 5).
			AddRow(4, 2, 2, 2, 6))

	rows, err := s.Counts(context.Background(), g)
	require.NoError(t, err)
	assert.Equal(t, []model.TokenCountRow{
		{LineNum: 1, System: 1, Human: 1, GPT: 3, Total: 5},
		{LineNum: 4, System: 2, Human: 2, GPT: 2, Total: 6},
	}, rows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Records_GroupMissing(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT 1 FROM curate_groups`).
		WithArgs(float64(0), 7).
		WillReturnError(pgx.ErrNoRows)

	_, err := s.Records(context.Background(), model.Group{Bucket: 7})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Records(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT 1 FROM curate_groups`).
		WithArgs(float64(0), 1).
		WillReturnRows(pgxmock.NewRows([]string{"one"}).AddRow(1))
	mock.ExpectQuery(`SELECT payload FROM curate_records`).
		WithArgs(float64(0), 1).
		WillReturnRows(pgxmock.NewRows([]string{"payload"}).
			AddRow([]byte(`{"a":1}`)).
			AddRow([]byte(`{"a":2}`)))

	out, err := s.Records(context.Background(), model.Group{Bucket: 1})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.JSONEq(t, `{"a":2}`, string(out[1]))
	assert.NoError(t, mock.ExpectationsWereMet())
}
