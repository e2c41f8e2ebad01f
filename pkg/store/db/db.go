// Package db holds the hand-written query layer for the cache Store: one
// raw-SQL method per operation, run directly against the connection or
// transaction; no statements are prepared.
package db

import (
	"context"
	"database/sql"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	PrepareContext(context.Context, string) (*sql.Stmt, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

// Queries wraps a DBTX with one method per cache operation.
type Queries struct {
	db DBTX
	tx *sql.Tx
}

// New returns a Queries with no prepared statements; every call falls back
// to db.{Exec,Query,QueryRow}Context directly.
func New(conn DBTX) *Queries {
	return &Queries{db: conn}
}

// WithTx returns a Queries bound to an open transaction; every call goes
// through the transaction directly.
func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx, tx: tx}
}

func (q *Queries) exec(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return q.db.ExecContext(ctx, query, args...)
}

func (q *Queries) query(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return q.db.QueryContext(ctx, query, args...)
}

func (q *Queries) queryRow(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return q.db.QueryRowContext(ctx, query, args...)
}
