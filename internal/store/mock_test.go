package store

import (
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	s := NewWithDB(db)
	s.now = func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }
	t.Cleanup(func() { db.Close() })
	return s, mock
}

func TestUpsertSnapshot_RollsBackOnInsertFailure(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT generation FROM snapshots").
		WithArgs("pkg").
		WillReturnRows(sqlmock.NewRows([]string{"generation"}).AddRow(3))
	mock.ExpectExec("INSERT INTO snapshots").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectPrepare("INSERT OR REPLACE INTO repositories").
		ExpectExec().
		WithArgs("pkg", int64(4), "a.nix", "x", "y").
		WillReturnError(errors.New("disk I/O error"))
	mock.ExpectRollback()

	_, err := s.UpsertSnapshot("pkg", []RepoRef{{Path: "a.nix", Owner: "x", Repo: "y"}}, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "x/y")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertSnapshot_CommitFailure(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT generation FROM snapshots").
		WillReturnRows(sqlmock.NewRows([]string{"generation"}))
	mock.ExpectExec("INSERT INTO snapshots").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectPrepare("INSERT OR REPLACE INTO repositories")
	mock.ExpectExec("DELETE FROM repositories").
		WithArgs("pkg", int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT COUNT").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectCommit().WillReturnError(errors.New("database is locked"))

	_, err := s.UpsertSnapshot("pkg", nil, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to commit snapshot")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWrapErr_NoSuchTable(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("SELECT id, created_at").
		WillReturnError(errors.New("SQL logic error: no such table: search_runs (1)"))

	_, err := s.GetLatestRun("pkg", "pkg==")
	assert.ErrorIs(t, err, ErrNotInitialized)
	assert.NoError(t, mock.ExpectationsWereMet())
}
