package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

type rowScanner interface {
	Scan(dest ...interface{}) error
}

// dbtx is satisfied by both *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullStringPtr(s *string) sql.NullString {
	if s == nil || *s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullTimePtr(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// isRowID reports whether id can name a row. Every key column is a UUID, and Postgres
// rejects other text outright, so such ids are answered as misses without a query.
func isRowID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
