package testutil

import (
	"context"
	"testing"

	"lootledger/database"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

const postgresImage = "postgres:16-alpine"

// TestDatabase is a migrated Postgres container with an open pool
type TestDatabase struct {
	Container *postgres.PostgresContainer
	DB        *database.DB
	URL       string
}

// SetupTestDatabase starts a throwaway Postgres, applies the ledger migrations and
// opens a pool. Pool and container are released when the test ends. Skipped
// under -short.
func SetupTestDatabase(t *testing.T) *TestDatabase {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping database test in short mode")
	}
	ctx := context.Background()

	ctr, err := postgres.Run(ctx, postgresImage,
		postgres.WithDatabase("lootledger_test"),
		postgres.WithUsername("ledger"),
		postgres.WithPassword("ledger"),
		postgres.BasicWaitStrategies(),
		testcontainers.WithLabels(map[string]string{"lootledger.test": t.Name()}),
	)
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err)

	url, err := ctr.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	require.NoError(t, database.RunMigrationsWithURL(url))

	db, err := database.NewConnection(ctx, url)
	require.NoError(t, err)
	t.Cleanup(db.Close)

	return &TestDatabase{Container: ctr, DB: db, URL: url}
}

// Truncate empties every ledger table so a container can be shared by subtests
func (td *TestDatabase) Truncate(t *testing.T) {
	t.Helper()
	_, err := td.DB.Pool.Exec(context.Background(), `
		TRUNCATE transaction_records, wager_aborts, wager_outcomes, box_nonces, box_items, boxes, users
		RESTART IDENTITY CASCADE`)
	require.NoError(t, err)
}
