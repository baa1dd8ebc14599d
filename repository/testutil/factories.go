package testutil

import (
	"context"
	"fmt"
	"testing"

	"lootledger/database"
	"lootledger/domain/entities"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"
)

// CreateTestUser returns an active user with default values
func CreateTestUser(firstName string) *entities.UserAccount {
	return &entities.UserAccount{
		FirstName: firstName,
		LastName:  "Tester",
		Role:      entities.RoleUser,
		IsActive:  true,
	}
}

// CreateTestBox returns a box whose odds cover [0, 1)
func CreateTestBox(slug string, price int64) *entities.Box {
	return &entities.Box{
		Slug:     slug,
		Name:     "Box " + slug,
		Price:    price,
		IsActive: true,
		Items: []entities.Item{
			{Slug: slug + "-common", Name: "Common", Value: price / 2, Weight: 50, Odd: 0.5},
			{Slug: slug + "-rare", Name: "Rare", Value: price * 2, Weight: 30, Odd: 0.3},
			{Slug: slug + "-epic", Name: "Epic", Value: price * 5, Weight: 20, Odd: 0.2},
		},
	}
}

// SeedUser inserts a user directly and returns its id
func SeedUser(t *testing.T, db *database.DB, user *entities.UserAccount) int64 {
	t.Helper()
	err := db.WithTransaction(context.Background(), func(tx pgx.Tx) error {
		return tx.QueryRow(context.Background(), `
			INSERT INTO users (first_name, last_name, role, is_active)
			VALUES ($1, $2, $3, $4)
			RETURNING id, created_at, updated_at
		`, user.FirstName, user.LastName, string(user.Role), user.IsActive).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	})
	require.NoError(t, err)
	return user.ID
}

// SeedBalance writes an opening deposit record so the user starts with available funds
func SeedBalance(t *testing.T, db *database.DB, userID, available int64) {
	t.Helper()
	err := db.WithTransaction(context.Background(), func(tx pgx.Tx) error {
		_, err := tx.Exec(context.Background(), `
			INSERT INTO transaction_records
			(user_id, amount, direction, bucket, status, category, reference_id, available_after, pending_after)
			VALUES ($1, $2, 'credit', 'available', 'completed', 'deposit', $3, $2, 0)
		`, userID, available, fmt.Sprintf("SEED_%d", userID))
		return err
	})
	require.NoError(t, err)
}
