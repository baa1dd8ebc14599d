package database

import (
	"embed"
	"errors"
	"fmt"
	"os"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	log "github.com/sirupsen/logrus"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const migrationsTable = "lootledger_schema_migrations"

// Migrator applies the embedded ledger schema to one database
type Migrator struct {
	m *migrate.Migrate
}

// MigrationStatus is the schema version currently recorded in the database
type MigrationStatus struct {
	Version uint
	Dirty   bool
	Applied bool
}

// NewMigrator opens a migrator over databaseURL. Close it when done.
func NewMigrator(databaseURL string) (*Migrator, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	driver, err := postgres.WithInstance(stdlib.OpenDB(*cfg.ConnConfig), &postgres.Config{
		MigrationsTable: migrationsTable,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres driver: %w", err)
	}

	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded migrations: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	return &Migrator{m: m}, nil
}

// Up applies every pending migration. It reports whether anything changed.
func (mg *Migrator) Up() (bool, error) {
	err := mg.m.Up()
	if errors.Is(err, migrate.ErrNoChange) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to run migrations: %w", err)
	}
	return true, nil
}

// Down rolls back steps migrations. It reports whether anything changed.
func (mg *Migrator) Down(steps int) (bool, error) {
	if steps <= 0 {
		return false, fmt.Errorf("steps must be positive, got %d", steps)
	}
	err := mg.m.Steps(-steps)
	if errors.Is(err, migrate.ErrNoChange) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to roll back migrations: %w", err)
	}
	return true, nil
}

// Status reads the recorded schema version
func (mg *Migrator) Status() (MigrationStatus, error) {
	version, dirty, err := mg.m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return MigrationStatus{}, nil
	}
	if err != nil {
		return MigrationStatus{}, fmt.Errorf("failed to read migration version: %w", err)
	}
	return MigrationStatus{Version: version, Dirty: dirty, Applied: true}, nil
}

// Close releases the source and database handles
func (mg *Migrator) Close() error {
	srcErr, dbErr := mg.m.Close()
	return errors.Join(srcErr, dbErr)
}

// RunMigrationsWithURL applies every pending migration to databaseURL
func RunMigrationsWithURL(databaseURL string) error {
	mg, err := NewMigrator(databaseURL)
	if err != nil {
		return err
	}
	defer mg.Close()

	_, err = mg.Up()
	return err
}

// MigrateUp is the `migrate up` command
func MigrateUp() error {
	return withEnvMigrator(func(mg *Migrator) error {
		changed, err := mg.Up()
		if err != nil {
			return err
		}
		return logStatus(mg, changed, "Migrated", "No new migrations to apply")
	})
}

// MigrateDown is the `migrate down [steps]` command
func MigrateDown(steps int) error {
	return withEnvMigrator(func(mg *Migrator) error {
		changed, err := mg.Down(steps)
		if err != nil {
			return err
		}
		return logStatus(mg, changed, "Rolled back", "No migrations to roll back")
	})
}

// MigrateStatus is the `migrate status` command
func MigrateStatus() error {
	return withEnvMigrator(func(mg *Migrator) error {
		return logStatus(mg, true, "Current migration version", "No migrations have been applied yet")
	})
}

func logStatus(mg *Migrator, changed bool, changedMsg, unchangedMsg string) error {
	status, err := mg.Status()
	if err != nil {
		return err
	}
	if !changed || !status.Applied {
		log.WithField("version", status.Version).Info(unchangedMsg)
		return nil
	}
	log.WithFields(log.Fields{
		"version": status.Version,
		"dirty":   status.Dirty,
	}).Info(changedMsg)
	return nil
}

func withEnvMigrator(fn func(*Migrator) error) error {
	mg, err := NewMigrator(migrationDatabaseURL())
	if err != nil {
		return err
	}
	defer mg.Close()
	return fn(mg)
}

// migrationDatabaseURL reads the connection settings straight from the
// environment, so migrating does not need JWT or NATS settings
func migrationDatabaseURL() string {
	baseURL := os.Getenv("DATABASE_URL")
	if baseURL == "" {
		baseURL = BuildDatabaseURL(
			envOr("DATABASE_HOST", "localhost"),
			envOr("DATABASE_PORT", "5432"),
			envOr("DATABASE_USER", "postgres"),
			os.Getenv("DATABASE_PASSWORD"),
			envOr("DATABASE_SSLMODE", "disable"),
		)
	}
	return ConstructDatabaseURL(baseURL, os.Getenv("DATABASE_NAME"))
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
