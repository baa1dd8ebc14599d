package services

import (
	"context"
	"fmt"

	"lootledger/domain/entities"
	"lootledger/domain/interfaces"

	log "github.com/sirupsen/logrus"
)

type auditVerifier struct {
	uowFactory interfaces.UnitOfWorkFactory
	engine     interfaces.FairnessEngine
}

// NewAuditVerifier creates the service that re-derives stored outcomes from their revealed inputs
func NewAuditVerifier(uowFactory interfaces.UnitOfWorkFactory, engine interfaces.FairnessEngine) interfaces.AuditService {
	return &auditVerifier{
		uowFactory: uowFactory,
		engine:     engine,
	}
}

// VerifySpin finds the outcome matching all three revealed values and recomputes it
// from the item snapshot stored with it. Live catalog data is never consulted.
func (s *auditVerifier) VerifySpin(ctx context.Context, clientSeed, secret string, nonce int64) (*entities.VerificationProof, error) {
	if clientSeed == "" {
		return nil, entities.NewValidationError("clientSeed", "is required")
	}
	if secret == "" {
		return nil, entities.NewValidationError("secret", "is required")
	}
	if nonce <= 0 {
		return nil, entities.NewValidationError("nonce", "must be a positive integer")
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	outcome, err := uow.WagerOutcomeRepository().FindForVerification(ctx, clientSeed, secret, nonce)
	if err != nil {
		return nil, fmt.Errorf("failed to look up wager outcome: %w", err)
	}
	if outcome == nil {
		return nil, entities.ErrVerificationFailed
	}

	logger := log.WithFields(log.Fields{
		"outcomeID": outcome.ID,
		"boxID":     outcome.BoxID,
		"nonce":     outcome.Nonce,
	})

	if s.engine.Commit(secret) != outcome.Commitment {
		logger.Error("Stored commitment does not match the revealed secret")
		return nil, &entities.VerificationFailedError{Reason: "commitment mismatch"}
	}

	if !s.engine.Verify(secret, clientSeed, nonce, outcome.ItemsSnapshot, outcome.WinningItem, outcome.Digest) {
		logger.WithField("storedWinner", outcome.WinningItem.ID).Error("Recomputed outcome differs from stored outcome")
		return nil, &entities.VerificationFailedError{Reason: "outcome mismatch"}
	}

	normalized, err := NormalizeDigest(outcome.Digest)
	if err != nil {
		return nil, &entities.VerificationFailedError{Reason: "stored digest is malformed"}
	}

	return &entities.VerificationProof{
		OutcomeID:   outcome.ID,
		BoxID:       outcome.BoxID,
		Nonce:       outcome.Nonce,
		Commitment:  outcome.Commitment,
		Digest:      outcome.Digest,
		Normalized:  normalized,
		WinningItem: outcome.WinningItem,
	}, nil
}
