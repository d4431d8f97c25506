package store

import (
	"context"
	"database/sql"
)

// DBTX is the query surface shared by *sql.DB and *sql.Tx. Postgres stores
// are built over it so the same store runs inside or outside a transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}
