package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
)

// DB wraps the pgx pool shared by every repository
type DB struct {
	*pgxpool.Pool
}

// NewConnection opens a pool with pgxpool's default size
func NewConnection(ctx context.Context, databaseURL string) (*DB, error) {
	return NewConnectionWithMaxConns(ctx, databaseURL, 0)
}

// NewConnectionWithMaxConns opens a pool capped at maxConns. Wagers hold a
// connection for the whole unit of work, so the cap bounds concurrent wagers.
// A non-positive maxConns keeps the pgxpool default.
func NewConnectionWithMaxConns(ctx context.Context, databaseURL string, maxConns int32) (*DB, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	// Snapshots and created_at ordering are compared in UTC
	config.ConnConfig.RuntimeParams["timezone"] = "UTC"
	config.ConnConfig.RuntimeParams["application_name"] = "lootledger"
	// Bounded so a stuck row lock surfaces as a retryable conflict
	config.ConnConfig.RuntimeParams["lock_timeout"] = "5s"
	if maxConns > 0 {
		config.MaxConns = maxConns
	}
	config.HealthCheckPeriod = 30 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.WithFields(log.Fields{
		"host":      config.ConnConfig.Host,
		"database":  config.ConnConfig.Database,
		"max_conns": config.MaxConns,
	}).Debug("Database pool ready")

	return &DB{Pool: pool}, nil
}

// Close closes the pool
func (db *DB) Close() {
	db.Pool.Close()
}
