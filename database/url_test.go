package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConstructDatabaseURL(t *testing.T) {
	tests := []struct {
		name     string
		baseURL  string
		dbName   string
		expected string
	}{
		{"no database name", "postgres://u:p@localhost:5432", "", "postgres://u:p@localhost:5432"},
		{"appends name and sslmode", "postgres://u:p@localhost:5432/", "ledger", "postgres://u:p@localhost:5432/ledger?sslmode=disable"},
		{"keeps existing query", "postgres://u:p@localhost:5432?sslmode=require", "ledger", "postgres://u:p@localhost:5432/ledger?sslmode=require"},
		{"adds sslmode to other params", "postgres://u:p@localhost:5432?connect_timeout=5", "ledger", "postgres://u:p@localhost:5432/ledger?connect_timeout=5&sslmode=disable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ConstructDatabaseURL(tt.baseURL, tt.dbName))
		})
	}
}

func TestBuildDatabaseURL(t *testing.T) {
	assert.Equal(t, "postgres://postgres:secret@db:5432?sslmode=disable",
		BuildDatabaseURL("db", "5432", "postgres", "secret", "disable"))
	assert.Equal(t, "postgres://postgres@db:5432",
		BuildDatabaseURL("db", "5432", "postgres", "", ""))
}

func TestConstructDatabaseURL_Unparsable(t *testing.T) {
	assert.Equal(t, "postgres://%zz", ConstructDatabaseURL("postgres://%zz", "ledger"))
}

func TestMigrationDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("DATABASE_HOST", "db")
	t.Setenv("DATABASE_PORT", "")
	t.Setenv("DATABASE_USER", "ledger")
	t.Setenv("DATABASE_PASSWORD", "pw")
	t.Setenv("DATABASE_SSLMODE", "")
	t.Setenv("DATABASE_NAME", "lootledger")

	assert.Equal(t, "postgres://ledger:pw@db:5432/lootledger?sslmode=disable", migrationDatabaseURL())

	t.Setenv("DATABASE_URL", "postgres://u@other:6543?sslmode=require")
	assert.Equal(t, "postgres://u@other:6543/lootledger?sslmode=require", migrationDatabaseURL())
}
