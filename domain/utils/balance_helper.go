package utils

import (
	"context"
	"fmt"

	"lootledger/domain/entities"
	"lootledger/domain/interfaces"
	"lootledger/events"

	log "github.com/sirupsen/logrus"
)

// RecordBalanceChange checks the record's snapshot against before, appends it and emits
// a BalanceChangedEvent. Every balance change in the system goes through here.
func RecordBalanceChange(ctx context.Context, recordRepo interfaces.TransactionRecordRepository, eventPublisher interfaces.EventPublisher, validator interfaces.SnapshotValidator, before entities.Balance, record *entities.TransactionRecord) error {
	if err := validator.ValidateSnapshotChain(before, record); err != nil {
		log.WithError(err).WithField("userID", record.UserID).Error("Refusing to write a record that breaks the snapshot chain")
		return err
	}

	if err := recordRepo.Create(ctx, record); err != nil {
		return fmt.Errorf("failed to record transaction: %w", err)
	}

	event := events.BalanceChangedEvent{
		UserID:          record.UserID,
		ReferenceID:     record.ReferenceID,
		Direction:       string(record.Direction),
		Bucket:          string(record.Bucket),
		Category:        string(record.Category),
		Amount:          record.Amount,
		AvailableBefore: before.Available,
		PendingBefore:   before.Pending,
		AvailableAfter:  record.BalanceAfter.Available,
		PendingAfter:    record.BalanceAfter.Pending,
	}
	if record.RelatedReferenceID != nil {
		event.RelatedReference = *record.RelatedReferenceID
	}

	log.WithFields(log.Fields{
		"userID":         event.UserID,
		"referenceID":    event.ReferenceID,
		"direction":      event.Direction,
		"bucket":         event.Bucket,
		"category":       event.Category,
		"amount":         event.Amount,
		"availableAfter": event.AvailableAfter,
		"pendingAfter":   event.PendingAfter,
	}).Debug("Publishing BalanceChangedEvent")

	if err := eventPublisher.Publish(event); err != nil {
		log.WithError(err).Error("Failed to publish balance changed event")
	}

	return nil
}
