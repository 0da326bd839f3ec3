package sqlutil

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DBTX is the querier shared by *pgxpool.Pool and pgx.Tx. Repositories
// are bound to a DBTX so the same code runs standalone or inside a
// transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// TxRunner runs fn inside a transaction. App layers depend on this
// interface so tests can substitute an in-memory runner.
type TxRunner interface {
	InTx(ctx context.Context, fn func(q DBTX) error) error
}

// Runner is the pgx-backed TxRunner.
type Runner struct {
	pool *pgxpool.Pool
}

func NewRunner(pool *pgxpool.Pool) *Runner {
	return &Runner{pool: pool}
}

// InTx executes fn inside a pgx transaction.
// If fn returns an error the tx rolls back, else it commits.
func (r *Runner) InTx(ctx context.Context, fn func(q DBTX) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}
