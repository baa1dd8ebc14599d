package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"lootledger/domain/entities"
	"lootledger/repository/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRecord(userID, amount int64, direction entities.Direction, category entities.Category, available int64, ref string) *entities.TransactionRecord {
	return &entities.TransactionRecord{
		UserID:       userID,
		Amount:       amount,
		Direction:    direction,
		Bucket:       entities.BucketAvailable,
		Status:       entities.StatusCompleted,
		Category:     category,
		ReferenceID:  ref,
		BalanceAfter: entities.Balance{Available: available},
	}
}

func TestTransactionRecordRepository_GetLatest(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)
	repo := NewTransactionRecordRepository(testDB.DB)
	ctx := context.Background()

	userID := testutil.SeedUser(t, testDB.DB, testutil.CreateTestUser("Latest"))

	t.Run("no records", func(t *testing.T) {
		latest, err := repo.GetLatest(ctx, userID)
		require.NoError(t, err)
		assert.Nil(t, latest)
	})

	t.Run("returns newest snapshot", func(t *testing.T) {
		require.NoError(t, repo.Create(ctx, newRecord(userID, 100, entities.DirectionCredit, entities.CategoryDeposit, 100, "LATEST_1")))
		second := newRecord(userID, 40, entities.DirectionDebit, entities.CategorySpend, 60, "LATEST_2")
		second.Metadata = map[string]any{"boxId": float64(7)}
		require.NoError(t, repo.Create(ctx, second))

		latest, err := repo.GetLatest(ctx, userID)
		require.NoError(t, err)
		require.NotNil(t, latest)
		assert.Equal(t, second.ID, latest.ID)
		assert.Equal(t, int64(60), latest.BalanceAfter.Available)
		assert.Equal(t, float64(7), latest.Metadata["boxId"])
	})

	t.Run("soft deleted record is skipped", func(t *testing.T) {
		require.NoError(t, repo.SoftDelete(ctx, "LATEST_2", 1))

		latest, err := repo.GetLatest(ctx, userID)
		require.NoError(t, err)
		require.NotNil(t, latest)
		assert.Equal(t, "LATEST_1", latest.ReferenceID)
	})
}

func TestTransactionRecordRepository_Create(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)
	repo := NewTransactionRecordRepository(testDB.DB)
	ctx := context.Background()

	userID := testutil.SeedUser(t, testDB.DB, testutil.CreateTestUser("Create"))

	t.Run("move record keeps to bucket", func(t *testing.T) {
		toBucket := entities.BucketPending
		record := newRecord(userID, 30, entities.DirectionDebit, entities.CategoryMove, 70, "MOVE_1")
		record.ToBucket = &toBucket
		record.BalanceAfter.Pending = 30
		require.NoError(t, repo.Create(ctx, record))
		assert.NotZero(t, record.ID)
		assert.False(t, record.CreatedAt.IsZero())

		found, err := repo.GetByReferenceID(ctx, "MOVE_1")
		require.NoError(t, err)
		require.NotNil(t, found)
		require.NotNil(t, found.ToBucket)
		assert.Equal(t, entities.BucketPending, *found.ToBucket)
		assert.True(t, found.IsMove())
		assert.Equal(t, entities.Balance{Available: 70, Pending: 30}, found.BalanceAfter)
	})

	t.Run("negative snapshot rejected by storage", func(t *testing.T) {
		record := newRecord(userID, 30, entities.DirectionDebit, entities.CategorySpend, -1, "NEG_1")
		assert.Error(t, repo.Create(ctx, record))
	})

	t.Run("duplicate reference rejected", func(t *testing.T) {
		require.NoError(t, repo.Create(ctx, newRecord(userID, 5, entities.DirectionCredit, entities.CategoryDeposit, 5, "DUP_1")))
		assert.Error(t, repo.Create(ctx, newRecord(userID, 5, entities.DirectionCredit, entities.CategoryDeposit, 10, "DUP_1")))
	})

	t.Run("unknown reference returns nil", func(t *testing.T) {
		found, err := repo.GetByReferenceID(ctx, "NOPE")
		require.NoError(t, err)
		assert.Nil(t, found)
	})
}

func TestTransactionRecordRepository_History(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)
	repo := NewTransactionRecordRepository(testDB.DB)
	ctx := context.Background()

	userID := testutil.SeedUser(t, testDB.DB, testutil.CreateTestUser("History"))
	otherID := testutil.SeedUser(t, testDB.DB, testutil.CreateTestUser("Other"))

	available := int64(0)
	for i := 1; i <= 12; i++ {
		amount, direction, category := int64(50), entities.DirectionCredit, entities.CategoryDeposit
		if i%3 == 0 {
			amount, direction, category = 10, entities.DirectionDebit, entities.CategorySpend
			available -= amount
		} else {
			available += amount
		}
		record := newRecord(userID, amount, direction, category, available, fmt.Sprintf("HIST_%02d", i))
		require.NoError(t, repo.Create(ctx, record))
	}
	require.NoError(t, repo.Create(ctx, newRecord(otherID, 5, entities.DirectionCredit, entities.CategoryDeposit, 5, "HIST_OTHER")))
	require.NoError(t, repo.SoftDelete(ctx, "HIST_01", 1))

	t.Run("pages newest first", func(t *testing.T) {
		first, err := repo.List(ctx, userID, entities.HistoryFilter{}, entities.PageRequest{Page: 1, Limit: 5})
		require.NoError(t, err)
		require.Len(t, first, 5)
		assert.Equal(t, "HIST_12", first[0].ReferenceID)
		assert.Equal(t, "HIST_08", first[4].ReferenceID)

		last, err := repo.List(ctx, userID, entities.HistoryFilter{}, entities.PageRequest{Page: 3, Limit: 5})
		require.NoError(t, err)
		require.Len(t, last, 1)
		assert.Equal(t, "HIST_02", last[0].ReferenceID)
	})

	t.Run("count excludes deleted and other users", func(t *testing.T) {
		total, err := repo.Count(ctx, userID, entities.HistoryFilter{})
		require.NoError(t, err)
		assert.Equal(t, int64(11), total)

		withDeleted, err := repo.Count(ctx, userID, entities.HistoryFilter{IncludeDeleted: true})
		require.NoError(t, err)
		assert.Equal(t, int64(12), withDeleted)
	})

	t.Run("filters by direction and category", func(t *testing.T) {
		debit := entities.DirectionDebit
		debits, err := repo.List(ctx, userID, entities.HistoryFilter{Direction: &debit}, entities.PageRequest{Page: 1, Limit: 50})
		require.NoError(t, err)
		assert.Len(t, debits, 4)
		for _, r := range debits {
			assert.Equal(t, entities.CategorySpend, r.Category)
		}

		deposit := entities.CategoryDeposit
		total, err := repo.Count(ctx, userID, entities.HistoryFilter{Category: &deposit})
		require.NoError(t, err)
		assert.Equal(t, int64(7), total)
	})

	t.Run("filters by time window", func(t *testing.T) {
		all, err := repo.List(ctx, userID, entities.HistoryFilter{IncludeDeleted: true}, entities.PageRequest{Page: 1, Limit: 50})
		require.NoError(t, err)
		require.Len(t, all, 12)

		future := all[0].CreatedAt.Add(1)
		total, err := repo.Count(ctx, userID, entities.HistoryFilter{From: &future})
		require.NoError(t, err)
		assert.Zero(t, total)
	})

	t.Run("soft delete twice", func(t *testing.T) {
		err := repo.SoftDelete(ctx, "HIST_01", 1)
		var notFound *entities.TransactionNotFoundError
		assert.True(t, errors.As(err, &notFound))
	})
}
