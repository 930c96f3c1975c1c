// Package sqlite implements repository.Store on SQLite using the pure-Go
// modernc.org/sqlite driver (no CGO required).
//
// Every entity table uses INTEGER PRIMARY KEY AUTOINCREMENT so ids only grow
// and are never reused, foreign keys are enforced by the engine, and the
// columns the services filter on (owner, status, assignee, role) carry
// secondary indices.
//
// Structured fields (locations, addresses, image and tag lists) are stored
// as JSON text; they are always read and written whole.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	moderncsqlite "modernc.org/sqlite"
	sqlitelib "modernc.org/sqlite/lib"

	"github.com/greenpath/greenpath/internal/apperror"
	"github.com/greenpath/greenpath/internal/repository"
)

var _ repository.Store = (*DB)(nil)

// querier is satisfied by both *sql.DB and *sql.Tx, so the same query code
// runs inside and outside a transaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const (
	defaultAttempts = 3
	defaultBackoff  = 20 * time.Millisecond
)

// DB wraps the SQLite connection.
type DB struct {
	conn *sql.DB
	q    querier
	inTx bool

	// transient decides which driver errors are worth retrying.
	transient func(error) bool
	attempts  int
	backoff   time.Duration
	now       func() time.Time
}

// New opens (or creates) the database at dbPath and runs migrations.
// Use ":memory:" for a throwaway database in tests.
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// SQLite allows one writer at a time. A single pooled connection also
	// keeps ":memory:" databases alive and per-connection PRAGMAs in force.
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(0)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := conn.Exec(pragma); err != nil {
			conn.Close()
			return nil, fmt.Errorf("sqlite: %s: %w", pragma, err)
		}
	}

	db := newFromConn(conn)
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// newFromConn wraps an already-configured connection without migrating it.
func newFromConn(conn *sql.DB) *DB {
	return &DB{
		conn:      conn,
		q:         conn,
		transient: isBusy,
		attempts:  defaultAttempts,
		backoff:   defaultBackoff,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (db *DB) Close() error {
	if db.inTx {
		return nil
	}
	return db.conn.Close()
}

// WithinTx runs fn inside a database transaction. The whole transaction is
// retried when SQLite reports the database as busy.
func (db *DB) WithinTx(ctx context.Context, fn func(tx repository.Store) error) error {
	return db.atomically(ctx, func(tx *DB) error { return fn(tx) })
}

func (db *DB) atomically(ctx context.Context, fn func(tx *DB) error) error {
	if db.inTx {
		return fn(db)
	}

	return db.retry(ctx, func() error {
		sqlTx, err := db.conn.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("sqlite: beginning transaction: %w", err)
		}

		tx := *db
		tx.q = sqlTx
		tx.inTx = true

		if err := fn(&tx); err != nil {
			_ = sqlTx.Rollback()
			return err
		}
		if err := sqlTx.Commit(); err != nil {
			return fmt.Errorf("sqlite: committing transaction: %w", err)
		}
		return nil
	})
}

// retry runs op until it succeeds, fails with a non-transient error, the
// attempts run out or ctx is cancelled. The delay doubles after each try.
// Inside a transaction op runs once; the enclosing atomically call owns
// the retry.
func (db *DB) retry(ctx context.Context, op func() error) error {
	if db.inTx {
		return op()
	}

	delay := db.backoff
	var err error
	for attempt := 1; ; attempt++ {
		err = op()
		if err == nil || attempt >= db.attempts || !db.transient(err) {
			return err
		}

		select {
		case <-ctx.Done():
			return errors.Join(err, ctx.Err())
		case <-time.After(delay):
		}
		delay *= 2
	}
}

// isBusy reports whether err is SQLITE_BUSY or SQLITE_LOCKED, the two
// conditions that clear up on their own once the other writer finishes.
func isBusy(err error) bool {
	var se *moderncsqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() & 0xff {
	case sqlitelib.SQLITE_BUSY, sqlitelib.SQLITE_LOCKED:
		return true
	}
	return false
}

// mapErr turns constraint violations into domain errors and wraps anything
// else with the failing operation. A driver failure therefore never reads as
// "not found".
func mapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return err
	}

	var se *moderncsqlite.Error
	if errors.As(err, &se) && se.Code()&0xff == sqlitelib.SQLITE_CONSTRAINT {
		msg := se.Error()
		switch {
		case strings.Contains(msg, "UNIQUE"):
			return uniqueViolation(msg)
		case strings.Contains(msg, "FOREIGN KEY"):
			return apperror.ValidationFailed("", "referenced record does not exist")
		case strings.Contains(msg, "CHECK"):
			return apperror.ValidationFailed("", "value violates a data constraint")
		}
	}

	return fmt.Errorf("sqlite: %s: %w", op, err)
}

// uniqueViolation reads the "UNIQUE constraint failed: table.column" message
// SQLite produces and names the offending field.
func uniqueViolation(msg string) error {
	switch {
	case strings.Contains(msg, "users.username"):
		return apperror.Duplicate("user", "username")
	case strings.Contains(msg, "users.email"):
		return apperror.Duplicate("user", "email")
	case strings.Contains(msg, "users.github_id"):
		return apperror.Duplicate("user", "githubId")
	case strings.Contains(msg, "event_participants."):
		return &apperror.AppError{Err: apperror.ErrConflict, Message: "user has already joined this event"}
	}
	return &apperror.AppError{Err: apperror.ErrConflict, Message: "record already exists"}
}
