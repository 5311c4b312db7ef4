package repositories

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Transactor hands out executors and scopes units of work.
type Transactor interface {
	// Executor returns the pool-backed executor for work outside a transaction.
	Executor() SQLExecutor
	// WithinTx runs fn in a transaction. It commits when fn returns nil and rolls
	// back on error or panic.
	WithinTx(ctx context.Context, fn func(tx SQLExecutor) error) error
}

type sqlxTransactor struct {
	db *sqlx.DB
}

// NewTransactor creates a Transactor over db.
func NewTransactor(db *sqlx.DB) Transactor {
	return &sqlxTransactor{db: db}
}

func (t *sqlxTransactor) Executor() SQLExecutor {
	return t.db
}

func (t *sqlxTransactor) WithinTx(ctx context.Context, fn func(tx SQLExecutor) error) (err error) {
	tx, err := t.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: beginning transaction: %v", ErrDatabaseError, err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err = fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("%w: committing transaction: %v", ErrDatabaseError, err)
	}
	return nil
}
