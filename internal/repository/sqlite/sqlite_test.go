package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greenpath/greenpath/internal/apperror"
	"github.com/greenpath/greenpath/internal/model"
	"github.com/greenpath/greenpath/internal/repository"
	"github.com/greenpath/greenpath/internal/repository/storetest"
)

// newTestDB returns a migrated in-memory database that is closed when the
// test ends.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

// newMockDB wraps a sqlmock connection. Retries are fast and only fire for
// errBusy so tests can steer them.
func newMockDB(t *testing.T) (*DB, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	db := newFromConn(conn)
	db.backoff = time.Millisecond
	db.transient = func(err error) bool { return errors.Is(err, errBusy) }
	return db, mock
}

var errBusy = errors.New("database is locked")

var userRowColumns = []string{
	"id", "username", "email", "password", "full_name", "phone",
	"address", "role", "social_points", "github_id", "created_at",
}

func userRow(id int64, username string) *sqlmock.Rows {
	return sqlmock.NewRows(userRowColumns).AddRow(
		id, username, username+"@example.com", "hash", "", "",
		`{"city":"Pune"}`, "customer", 0, nil, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	)
}

// =========================================================================
// CONTRACT
// =========================================================================

func TestStoreContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) repository.Store {
		db, err := New(":memory:")
		require.NoError(t, err)
		return db
	})
}

func TestNew_FileDatabaseSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "greenpath.db")
	ctx := context.Background()

	db, err := New(path)
	require.NoError(t, err)
	u := &model.User{Username: "persist", Email: "persist@example.com"}
	require.NoError(t, db.CreateUser(ctx, u))
	require.NoError(t, db.Close())

	db, err = New(path)
	require.NoError(t, err, "migrations must be idempotent")
	defer db.Close()

	got, err := db.GetUserByUsername(ctx, "persist")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	next := &model.User{Username: "after", Email: "after@example.com"}
	require.NoError(t, db.CreateUser(ctx, next))
	assert.Greater(t, next.ID, u.ID)
}

func TestCheckConstraintIsValidation(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	u := &model.User{Username: "rater", Email: "rater@example.com"}
	require.NoError(t, db.CreateUser(ctx, u))

	err := db.CreateFeedback(ctx, &model.Feedback{UserID: u.ID, Subject: "s", Message: "m", Rating: 9})
	assert.ErrorIs(t, err, apperror.ErrValidation)
}

// =========================================================================
// DRIVER FAILURES
// =========================================================================

func TestGetUser_DriverErrorIsNotNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery(`SELECT (.+) FROM users WHERE id = \?`).
		WithArgs(int64(1)).
		WillReturnError(errors.New("disk I/O error"))

	_, err := db.GetUser(context.Background(), 1)
	require.Error(t, err)
	assert.False(t, errors.Is(err, apperror.ErrNotFound), "a driver failure must not read as a miss")
	assert.Contains(t, err.Error(), "disk I/O error")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetUser_NoRowsIsNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery(`SELECT (.+) FROM users WHERE id = \?`).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows(userRowColumns))

	_, err := db.GetUser(context.Background(), 7)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRetry_RecoversFromBusy(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery(`SELECT (.+) FROM users WHERE id = \?`).WillReturnError(errBusy)
	mock.ExpectQuery(`SELECT (.+) FROM users WHERE id = \?`).WillReturnRows(userRow(3, "lucky"))

	u, err := db.GetUser(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, "lucky", u.Username)
	assert.Equal(t, "Pune", u.Address.City)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRetry_GivesUpAfterAttempts(t *testing.T) {
	db, mock := newMockDB(t)
	for i := 0; i < defaultAttempts; i++ {
		mock.ExpectQuery(`SELECT (.+) FROM users WHERE id = \?`).WillReturnError(errBusy)
	}

	_, err := db.GetUser(context.Background(), 3)
	assert.ErrorIs(t, err, errBusy)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRetry_StopsOnCancelledContext(t *testing.T) {
	db, mock := newMockDB(t)
	db.backoff = time.Hour
	mock.ExpectQuery(`SELECT (.+) FROM users WHERE id = \?`).WillReturnError(errBusy)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := db.GetUser(ctx, 3)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAtomically_RollsBackOnFailedWrite(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM users WHERE id = \?`).WillReturnRows(userRow(5, "roll"))
	mock.ExpectExec(`UPDATE users SET`).WillReturnError(errors.New("write failed"))
	mock.ExpectRollback()

	name := "New Name"
	_, err := db.UpdateUser(context.Background(), 5, model.UserPatch{FullName: &name})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "write failed")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAddSocialPoints_MissingUserRollsBack(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE users SET social_points`).
		WithArgs(int64(10), int64(9)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, err := db.AddSocialPoints(context.Background(), 9, 10)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMapErr_PassesDomainErrorsThrough(t *testing.T) {
	orig := apperror.NotFound("donation", 1)
	assert.Same(t, orig, mapErr("getting donation", orig))
	assert.Nil(t, mapErr("noop", nil))

	wrapped := mapErr("listing events", errors.New("boom"))
	assert.EqualError(t, wrapped, "sqlite: listing events: boom")
}
