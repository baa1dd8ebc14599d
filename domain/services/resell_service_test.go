package services

import (
	"context"
	"math"
	"testing"

	"lootledger/domain/entities"
	"lootledger/domain/testhelpers"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestResell(factory *testhelpers.MockUnitOfWorkFactory) *resellService {
	ledger := NewLedgerService(factory, testhelpers.NoopUserLocker{}, testhelpers.NoopMetrics{}, 3)
	return NewResellService(factory, testhelpers.NoopUserLocker{}, ledger, testhelpers.NoopMetrics{}, 3, 80).(*resellService)
}

func wonOutcome(userID int64, value int64) *entities.WagerOutcome {
	return &entities.WagerOutcome{
		ID:          42,
		BoxID:       10,
		UserID:      userID,
		Nonce:       1,
		WinningItem: entities.Item{ID: 2, Slug: "hoodie", Value: value},
	}
}

func TestResellValue(t *testing.T) {
	assert.Equal(t, int64(80), ResellValue(100, 80))
	assert.Equal(t, int64(79), ResellValue(99, 80))
	assert.Equal(t, int64(0), ResellValue(1, 80))
	assert.Equal(t, int64(150), ResellValue(150, 100))

	t.Run("large item values do not overflow", func(t *testing.T) {
		const huge = int64(math.MaxInt64 / 10)
		got := ResellValue(huge, 80)
		assert.Positive(t, got)
		assert.Less(t, got, huge)
		assert.Equal(t, huge/100*80+huge%100*80/100, got)
		assert.Equal(t, int64(math.MaxInt64/100*100), ResellValue(math.MaxInt64/100*100, 100))
	})
}

func TestResellService_ResellOutcome(t *testing.T) {
	ctx := context.Background()

	t.Run("credits the owner and flags the outcome", func(t *testing.T) {
		factory := testhelpers.NewMockUnitOfWorkFactory()
		uow := factory.UoW
		uow.UserRepo.On("LockForUpdate", ctx, int64(1)).Return(activeUser(1), nil)
		uow.OutcomeRepo.On("GetByIDForUpdate", ctx, int64(42)).Return(wonOutcome(1, 150), nil)
		uow.RecordRepo.On("GetLatest", ctx, int64(1)).Return(snapshot(1, 30, 0), nil)
		uow.RecordRepo.On("Create", ctx, mock.MatchedBy(func(r *entities.TransactionRecord) bool {
			return r.Amount == 120 &&
				r.Direction == entities.DirectionCredit &&
				r.Category == entities.CategorySpinResell &&
				r.WagerOutcomeID != nil && *r.WagerOutcomeID == 42
		})).Return(nil)
		uow.OutcomeRepo.On("MarkResold", ctx, int64(42), mock.AnythingOfType("string")).Return(nil)
		uow.Events.On("Publish", mock.AnythingOfType("events.BalanceChangedEvent")).Return(nil).Once()
		uow.Events.On("Publish", mock.AnythingOfType("events.WagerResoldEvent")).Return(nil).Once()

		receipt, err := newTestResell(factory).ResellOutcome(ctx, 1, 42)

		require.NoError(t, err)
		assert.Equal(t, int64(150), receipt.NewAvailableBalance)
		assert.True(t, receipt.Outcome.ProcessedForResell)
		require.NotNil(t, receipt.Outcome.ResellTransactionReference)
		assert.Equal(t, receipt.Transaction.ReferenceID, *receipt.Outcome.ResellTransactionReference)
		assert.True(t, uow.Committed())
		uow.OutcomeRepo.AssertExpectations(t)
		uow.Events.AssertExpectations(t)
	})

	t.Run("second resell is rejected", func(t *testing.T) {
		factory := testhelpers.NewMockUnitOfWorkFactory()
		outcome := wonOutcome(1, 150)
		outcome.ProcessedForResell = true
		factory.UoW.UserRepo.On("LockForUpdate", ctx, int64(1)).Return(activeUser(1), nil)
		factory.UoW.OutcomeRepo.On("GetByIDForUpdate", ctx, int64(42)).Return(outcome, nil)

		_, err := newTestResell(factory).ResellOutcome(ctx, 1, 42)

		assert.ErrorIs(t, err, entities.ErrAlreadyResold)
		factory.UoW.RecordRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("only the owner may resell", func(t *testing.T) {
		factory := testhelpers.NewMockUnitOfWorkFactory()
		factory.UoW.UserRepo.On("LockForUpdate", ctx, int64(2)).Return(activeUser(2), nil)
		factory.UoW.OutcomeRepo.On("GetByIDForUpdate", ctx, int64(42)).Return(wonOutcome(1, 150), nil)

		_, err := newTestResell(factory).ResellOutcome(ctx, 2, 42)

		assert.ErrorIs(t, err, entities.ErrNotOutcomeOwner)
	})

	t.Run("unknown outcome", func(t *testing.T) {
		factory := testhelpers.NewMockUnitOfWorkFactory()
		factory.UoW.UserRepo.On("LockForUpdate", ctx, int64(1)).Return(activeUser(1), nil)
		factory.UoW.OutcomeRepo.On("GetByIDForUpdate", ctx, int64(42)).Return(nil, nil)

		_, err := newTestResell(factory).ResellOutcome(ctx, 1, 42)

		var notFound *entities.OutcomeNotFoundError
		assert.ErrorAs(t, err, &notFound)
	})

	t.Run("worthless item credits nothing", func(t *testing.T) {
		factory := testhelpers.NewMockUnitOfWorkFactory()
		factory.UoW.UserRepo.On("LockForUpdate", ctx, int64(1)).Return(activeUser(1), nil)
		factory.UoW.OutcomeRepo.On("GetByIDForUpdate", ctx, int64(42)).Return(wonOutcome(1, 1), nil)

		_, err := newTestResell(factory).ResellOutcome(ctx, 1, 42)

		var validation *entities.ValidationError
		assert.ErrorAs(t, err, &validation)
		factory.UoW.OutcomeRepo.AssertNotCalled(t, "MarkResold", mock.Anything, mock.Anything, mock.Anything)
	})
}
