package store

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgresStore(db), mock
}

func TestPostgresListOrdersByCreation(t *testing.T) {
	s, mock := newMockStore(t)
	rows := sqlmock.NewRows([]string{"id", "body"}).
		AddRow("p1", []byte(`{"id":"p1"}`)).
		AddRow("p2", []byte(`{"id":"p2"}`))
	mock.ExpectQuery(`SELECT id, body\s+FROM records\s+WHERE collection = \$1\s+ORDER BY created_at, id`).
		WithArgs("projects").
		WillReturnRows(rows)

	items, err := s.List(context.Background(), Projects)
	require.NoError(t, err)
	assert.Equal(t, []string{"p1", "p2"}, ids(items))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresInsertMapsUniqueViolation(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectExec(`INSERT INTO records`).
		WithArgs("tasks", "t1", []byte(`{"id":"t1"}`)).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	err := s.Insert(context.Background(), Tasks, rec("t1"))
	assert.True(t, errors.Is(err, ErrDuplicateID))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresReplaceMissingIsNotFound(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectExec(`UPDATE records`).
		WithArgs("staff", "s9", []byte(`{"id":"s9"}`)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.Replace(context.Background(), Staff, rec("s9"))
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresDelete(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectExec(`DELETE FROM records WHERE collection = \$1 AND id = \$2`).
		WithArgs("costs", "c1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.Delete(context.Background(), Costs, "c1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresDeleteBatchCommitsTogether(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM records`).WithArgs("projects", "A").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM records`).WithArgs("tasks", "T1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM records`).WithArgs("documents", "D1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := s.DeleteBatch(context.Background(), []Ref{
		{Collection: Projects, ID: "A"},
		{Collection: Tasks, ID: "T1"},
		{Collection: Documents, ID: "D1"},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresDeleteBatchRollsBackOnFailure(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM records`).WithArgs("projects", "A").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM records`).WithArgs("tasks", "T1").WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	err := s.DeleteBatch(context.Background(), []Ref{
		{Collection: Projects, ID: "A"},
		{Collection: Tasks, ID: "T1"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresDeleteBatchEmptyIsNoop(t *testing.T) {
	s, mock := newMockStore(t)
	require.NoError(t, s.DeleteBatch(context.Background(), nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureSchema(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS records`).WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, EnsureSchema(context.Background(), db))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPingEnsuresSchemaOnceReachable(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()
	s := NewPostgresStore(db)
	ctx := context.Background()

	mock.ExpectPing().WillReturnError(errors.New("connection refused"))
	assert.Error(t, s.Ping(ctx))

	mock.ExpectPing()
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS records`).WillReturnResult(sqlmock.NewResult(0, 0))
	require.NoError(t, s.Ping(ctx))

	mock.ExpectPing()
	require.NoError(t, s.Ping(ctx))
	assert.NoError(t, mock.ExpectationsWereMet())
}
