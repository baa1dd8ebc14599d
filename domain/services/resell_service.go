package services

import (
	"context"
	"fmt"
	"strconv"

	"lootledger/domain/entities"
	"lootledger/domain/interfaces"
	"lootledger/events"

	log "github.com/sirupsen/logrus"
)

type resellService struct {
	uowFactory       interfaces.UnitOfWorkFactory
	locker           interfaces.UserLocker
	ledger           interfaces.LedgerService
	metrics          interfaces.Metrics
	maxRetries       int
	resellPercentage int64
}

// NewResellService creates the service that exchanges a won item for available credit
func NewResellService(uowFactory interfaces.UnitOfWorkFactory, locker interfaces.UserLocker, ledger interfaces.LedgerService, metrics interfaces.Metrics, maxRetries int, resellPercentage int64) interfaces.ResellService {
	return &resellService{
		uowFactory:       uowFactory,
		locker:           locker,
		ledger:           ledger,
		metrics:          metrics,
		maxRetries:       maxRetries,
		resellPercentage: resellPercentage,
	}
}

// ResellValue is the credit a resold item is worth, rounded down.
// The value is split around 100 so large item values cannot overflow.
func ResellValue(itemValue, percentage int64) int64 {
	return itemValue/100*percentage + itemValue%100*percentage/100
}

// ResellOutcome credits the owner and flags the outcome resold in one unit of work.
// An outcome can be resold once.
func (s *resellService) ResellOutcome(ctx context.Context, userID, outcomeID int64) (*entities.ResellReceipt, error) {
	if outcomeID <= 0 {
		return nil, entities.NewValidationError("outcomeId", "is required")
	}

	release, err := s.locker.Lock(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer release()

	var receipt *entities.ResellReceipt
	err = runWithRetry(ctx, s.maxRetries, s.metrics, "resell_outcome", func() error {
		uow := s.uowFactory.Create()
		if err := uow.Begin(ctx); err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer uow.Rollback()

		if _, err := lockActiveUser(ctx, uow, userID); err != nil {
			return err
		}

		outcome, err := uow.WagerOutcomeRepository().GetByIDForUpdate(ctx, outcomeID)
		if err != nil {
			return fmt.Errorf("failed to get wager outcome: %w", err)
		}
		if outcome == nil {
			return &entities.OutcomeNotFoundError{OutcomeID: outcomeID}
		}
		if outcome.UserID != userID {
			return entities.ErrNotOutcomeOwner
		}
		if !outcome.CanResell() {
			return entities.ErrAlreadyResold
		}

		credit := ResellValue(outcome.WinningItem.Value, s.resellPercentage)
		if credit <= 0 {
			return entities.NewValidationError("outcomeId", "winning item has no resell value")
		}

		record, err := s.ledger.RecordInUnitOfWork(ctx, uow, interfaces.TransactionRequest{
			UserID:         userID,
			Amount:         credit,
			Direction:      entities.DirectionCredit,
			Bucket:         entities.BucketAvailable,
			Category:       entities.CategorySpinResell,
			WagerOutcomeID: &outcome.ID,
			Metadata: map[string]any{
				entities.MetaSpinReference: strconv.FormatInt(outcome.ID, 10),
				entities.MetaBoxID:         outcome.BoxID,
			},
		})
		if err != nil {
			return err
		}

		if err := uow.WagerOutcomeRepository().MarkResold(ctx, outcome.ID, record.ReferenceID); err != nil {
			return fmt.Errorf("failed to mark outcome resold: %w", err)
		}
		outcome.ProcessedForResell = true
		outcome.ResellTransactionReference = &record.ReferenceID

		if err := uow.EventBus().Publish(events.WagerResoldEvent{
			OutcomeID:            outcome.ID,
			UserID:               userID,
			CreditAmount:         credit,
			TransactionReference: record.ReferenceID,
		}); err != nil {
			log.WithError(err).Error("Failed to publish wager resold event")
		}

		if err := uow.Commit(); err != nil {
			return fmt.Errorf("failed to commit resell: %w", err)
		}

		receipt = &entities.ResellReceipt{
			Outcome:             outcome,
			Transaction:         record,
			NewAvailableBalance: record.BalanceAfter.Available,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"userID":    userID,
		"outcomeID": outcomeID,
		"credit":    receipt.Transaction.Amount,
	}).Info("Wager outcome resold")

	return receipt, nil
}
