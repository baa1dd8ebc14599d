package repository

import (
	"context"
	"errors"
	"fmt"

	"lootledger/domain/entities"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Queryable is satisfied by both *pgxpool.Pool and pgx.Tx
type Queryable interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Postgres error codes that mean the whole unit of work can be retried
const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgLockNotAvailable     = "55P03"
	pgUniqueViolation      = "23505"
)

// wrapError converts transient Postgres failures into StorageConflictError and
// wraps everything else with op for context
func wrapError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgSerializationFailure, pgDeadlockDetected, pgLockNotAvailable:
			return &entities.StorageConflictError{Op: op, Err: err}
		}
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}

// isUniqueViolation reports whether err is a unique constraint violation on constraint
func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != pgUniqueViolation {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}

// QueryObserver times repository calls
type QueryObserver interface {
	MeasureDatabaseQuery(repository, method string) func()
}

type noopObserver struct{}

func (noopObserver) MeasureDatabaseQuery(repository, method string) func() { return func() {} }

func observerOrNoop(obs QueryObserver) QueryObserver {
	if obs == nil {
		return noopObserver{}
	}
	return obs
}
