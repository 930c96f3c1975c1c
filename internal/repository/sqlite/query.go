package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/greenpath/greenpath/internal/apperror"
)

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// where accumulates AND-ed conditions and their arguments.
type where struct {
	clauses []string
	args    []any
}

func (w *where) eq(column string, value any) {
	w.clauses = append(w.clauses, column+" = ?")
	w.args = append(w.args, value)
}

func (w *where) raw(clause string, args ...any) {
	w.clauses = append(w.clauses, clause)
	w.args = append(w.args, args...)
}

func in[S ~string](w *where, column string, values []S) {
	if len(values) == 0 {
		return
	}
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(values)), ", ")
	w.clauses = append(w.clauses, fmt.Sprintf("%s IN (%s)", column, marks))
	for _, v := range values {
		w.args = append(w.args, string(v))
	}
}

func (w *where) String() string {
	if len(w.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.clauses, " AND ")
}

// queryOne runs a single-row query. sql.ErrNoRows becomes apperror.NotFound
// for resource/id; every other failure is wrapped.
func queryOne[T any](ctx context.Context, db *DB, scan func(scanner) (T, error), resource string, id any, query string, args ...any) (*T, error) {
	var out T
	err := db.retry(ctx, func() error {
		v, err := scan(db.q.QueryRowContext(ctx, query, args...))
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound(resource, id)
		}
		return nil, mapErr("getting "+resource, err)
	}
	return &out, nil
}

// queryList runs a multi-row query and scans every row.
func queryList[T any](ctx context.Context, db *DB, scan func(scanner) (T, error), resource string, query string, args ...any) ([]T, error) {
	var out []T
	err := db.retry(ctx, func() error {
		rows, err := db.q.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		out = make([]T, 0)
		for rows.Next() {
			v, err := scan(rows)
			if err != nil {
				return err
			}
			out = append(out, v)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, mapErr("listing "+resource, err)
	}
	return out, nil
}

// insert runs an INSERT and returns the new row id.
func (db *DB) insert(ctx context.Context, resource, query string, args ...any) (int64, error) {
	var id int64
	err := db.retry(ctx, func() error {
		res, err := db.q.ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		id, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return 0, mapErr("creating "+resource, err)
	}
	return id, nil
}

// exec runs a statement and reports how many rows it touched.
func (db *DB) exec(ctx context.Context, op, query string, args ...any) (int64, error) {
	var n int64
	err := db.retry(ctx, func() error {
		res, err := db.q.ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		n, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, mapErr(op, err)
	}
	return n, nil
}

func encodeJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("sqlite: encoding column: %w", err)
	}
	return string(b), nil
}

func decodeJSON(raw string, v any) error {
	if raw == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return fmt.Errorf("sqlite: decoding column: %w", err)
	}
	return nil
}

func nullID(id *int64) sql.NullInt64 {
	if id == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *id, Valid: true}
}

func idPtr(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func timePtr(n sql.NullTime) *time.Time {
	if !n.Valid {
		return nil
	}
	v := n.Time.UTC()
	return &v
}
