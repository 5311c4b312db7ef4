package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

var (
	// ErrNotFound is returned when a specific record is not found.
	ErrNotFound = errors.New("requested record not found")

	// ErrDatabaseError is returned for unexpected database errors.
	// It wraps the driver error text.
	ErrDatabaseError = errors.New("database error")

	// ErrDuplicateKey is returned when an insert/update violates a unique constraint.
	ErrDuplicateKey = errors.New("duplicate key value violates unique constraint")

	// ErrForeignKey is returned when a referenced row does not exist or a row is still referenced.
	ErrForeignKey = errors.New("foreign key constraint violated")

	// ErrConditionFailed is returned when a guarded UPDATE matched no rows.
	ErrConditionFailed = errors.New("conditional update matched no rows")
)

// SQLExecutor is satisfied by *sqlx.DB and *sqlx.Tx, so repository methods can run
// inside a transaction or directly against the pool.
type SQLExecutor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryRowxContext(ctx context.Context, query string, args ...interface{}) *sqlx.Row
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
}

// mapError translates driver errors into the package sentinels.
func mapError(err error, op string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", ErrNotFound, op)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code.Name() {
		case "unique_violation":
			return fmt.Errorf("%w: %s (%s)", ErrDuplicateKey, op, pqErr.Constraint)
		case "foreign_key_violation":
			return fmt.Errorf("%w: %s (%s)", ErrForeignKey, op, pqErr.Constraint)
		}
	}
	return fmt.Errorf("%w: %s: %v", ErrDatabaseError, op, err)
}

// requireAffected turns a zero row count into ErrConditionFailed.
func requireAffected(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrDatabaseError, op, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrConditionFailed, op)
	}
	return nil
}

const dateLayout = "2006-01-02"

// dateArg formats t for a DATE column.
func dateArg(t time.Time) string {
	return t.Format(dateLayout)
}

func nullDateArg(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.Format(dateLayout)
}

func isNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func isForeignKey(err error) bool {
	return errors.Is(err, ErrForeignKey)
}
