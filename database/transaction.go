package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// LedgerTxOptions is the isolation every ledger unit of work runs with. Per-user
// ordering comes from the row lock on users, not from serializable isolation.
var LedgerTxOptions = pgx.TxOptions{IsoLevel: pgx.ReadCommitted}

// WithTransaction runs fn inside a ledger transaction. A non-nil error from fn
// rolls back; nil commits.
func (db *DB) WithTransaction(ctx context.Context, fn func(tx pgx.Tx) error) error {
	return db.WithTxOptions(ctx, LedgerTxOptions, fn)
}

// WithTxOptions is WithTransaction with explicit isolation and access mode
func (db *DB) WithTxOptions(ctx context.Context, opts pgx.TxOptions, fn func(tx pgx.Tx) error) error {
	if err := pgx.BeginTxFunc(ctx, db.Pool, opts, fn); err != nil {
		return fmt.Errorf("transaction failed: %w", err)
	}
	return nil
}
