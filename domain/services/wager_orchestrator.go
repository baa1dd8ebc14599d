package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"lootledger/domain/entities"
	"lootledger/domain/interfaces"
	"lootledger/domain/utils"
	"lootledger/events"

	log "github.com/sirupsen/logrus"
)

const maxClientSeedLength = 128

// Wager results reported to metrics
const (
	WagerResultCommitted    = "committed"
	WagerResultRejected     = "rejected"
	WagerResultInsufficient = "insufficient_balance"
	WagerResultAborted      = "aborted"
)

type wagerOrchestrator struct {
	uowFactory interfaces.UnitOfWorkFactory
	locker     interfaces.UserLocker
	engine     interfaces.FairnessEngine
	ledger     interfaces.LedgerService
	metrics    interfaces.Metrics
	maxRetries int
	now        func() time.Time
}

// wagerAttempt tracks how far one attempt got, so an abort can be audited
type wagerAttempt struct {
	stage      entities.WagerStage
	nonce      *int64
	commitment string
}

// NewWagerOrchestrator creates the service that sequences a wager from
// validation through commit
func NewWagerOrchestrator(uowFactory interfaces.UnitOfWorkFactory, locker interfaces.UserLocker, engine interfaces.FairnessEngine, ledger interfaces.LedgerService, metrics interfaces.Metrics, maxRetries int) interfaces.WagerService {
	return &wagerOrchestrator{
		uowFactory: uowFactory,
		locker:     locker,
		engine:     engine,
		ledger:     ledger,
		metrics:    metrics,
		maxRetries: maxRetries,
		now:        time.Now,
	}
}

// PlaceWager debits the box price and records a provably fair outcome in one unit of work
func (s *wagerOrchestrator) PlaceWager(ctx context.Context, userID, boxID int64, clientSeed string) (receipt *entities.WagerReceipt, err error) {
	start := s.now()
	defer func() {
		s.metrics.RecordWager(wagerResult(err), time.Since(start))
	}()

	// Validating
	if err := validateClientSeed(clientSeed); err != nil {
		return nil, err
	}
	box, balance, err := s.precheck(ctx, userID, boxID)
	if err != nil {
		return nil, err
	}

	// PricingChecked: no commitment is made for a wager that cannot be paid
	if balance.Available < box.Price {
		return nil, &entities.InsufficientBalanceError{
			Bucket:    entities.BucketAvailable,
			Required:  box.Price,
			Available: balance.Available,
		}
	}

	release, err := s.locker.Lock(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer release()

	err = runWithRetry(ctx, s.maxRetries, s.metrics, "place_wager", func() error {
		attempt := &wagerAttempt{stage: entities.StagePricingChecked}
		r, err := s.attempt(ctx, userID, box, clientSeed, attempt)
		if err != nil {
			if attempt.commitment != "" {
				s.recordAbort(ctx, userID, box.ID, clientSeed, attempt, err)
			}
			return err
		}
		receipt = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"userID":    userID,
		"boxID":     box.ID,
		"outcomeID": receipt.Outcome.ID,
		"nonce":     receipt.Outcome.Nonce,
		"winner":    receipt.Outcome.WinningItem.Slug,
	}).Info("Wager committed")

	return receipt, nil
}

// precheck runs the Validating and PricingChecked reads outside the write transaction
func (s *wagerOrchestrator) precheck(ctx context.Context, userID, boxID int64) (*entities.Box, entities.Balance, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, entities.Balance{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	user, err := uow.UserRepository().GetByID(ctx, userID)
	if err != nil {
		return nil, entities.Balance{}, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, entities.Balance{}, &entities.UserNotFoundError{UserID: userID}
	}
	if !user.IsActive {
		return nil, entities.Balance{}, &entities.AccountInactiveError{UserID: userID}
	}

	box, err := loadSpinnableBox(ctx, uow, boxID)
	if err != nil {
		return nil, entities.Balance{}, err
	}
	if box.Price <= 0 {
		return nil, entities.Balance{}, entities.NewValidationError("boxId", "box has no price")
	}

	balance, err := currentBalance(ctx, uow.TransactionRecordRepository(), userID)
	if err != nil {
		return nil, entities.Balance{}, err
	}
	return box, balance, nil
}

// attempt runs one complete unit of work for a wager
func (s *wagerOrchestrator) attempt(ctx context.Context, userID int64, box *entities.Box, clientSeed string, state *wagerAttempt) (*entities.WagerReceipt, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	if _, err := lockActiveUser(ctx, uow, userID); err != nil {
		return nil, err
	}

	// The snapshot may have moved since the precheck
	balance, err := currentBalance(ctx, uow.TransactionRecordRepository(), userID)
	if err != nil {
		return nil, err
	}
	if balance.Available < box.Price {
		return nil, &entities.InsufficientBalanceError{
			Bucket:    entities.BucketAvailable,
			Required:  box.Price,
			Available: balance.Available,
		}
	}

	// OutcomeComputed
	nonce, err := uow.NonceRepository().Next(ctx, box.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to allocate nonce: %w", err)
	}
	state.nonce = &nonce

	secret, err := s.engine.GenerateCommitSecret()
	if err != nil {
		return nil, err
	}
	state.commitment = s.engine.Commit(secret)

	items := box.Snapshot()
	computation, err := s.engine.ComputeOutcome(secret, clientSeed, nonce, items)
	if err != nil {
		log.WithFields(log.Fields{
			"boxID":      box.ID,
			"nonce":      nonce,
			"commitment": state.commitment,
		}).WithError(err).Error("Outcome computation failed, box odds are corrupt")
		return nil, err
	}
	state.stage = entities.StageOutcomeComputed

	// Debited + Recorded
	reference := utils.NewReferenceID(s.now())
	outcome := &entities.WagerOutcome{
		BoxID:                box.ID,
		UserID:               userID,
		Nonce:                nonce,
		ServerSecret:         secret,
		Commitment:           state.commitment,
		ClientSeed:           clientSeed,
		WinningItem:          computation.WinningItem,
		ItemsSnapshot:        items,
		OddsRanges:           computation.OddsRanges,
		Normalized:           computation.Normalized,
		Digest:               computation.Digest,
		Price:                box.Price,
		TransactionReference: reference,
	}
	if err := uow.WagerOutcomeRepository().Create(ctx, outcome); err != nil {
		return nil, fmt.Errorf("failed to record wager outcome: %w", err)
	}

	record, err := s.ledger.RecordInUnitOfWork(ctx, uow, interfaces.TransactionRequest{
		UserID:         userID,
		Amount:         box.Price,
		Direction:      entities.DirectionDebit,
		Bucket:         entities.BucketAvailable,
		Category:       entities.CategorySpend,
		ReferenceID:    reference,
		WagerOutcomeID: &outcome.ID,
		Metadata: map[string]any{
			entities.MetaSpinReference: strconv.FormatInt(outcome.ID, 10),
			entities.MetaBoxID:         box.ID,
		},
	})
	if err != nil {
		return nil, err
	}
	state.stage = entities.StageRecorded

	if err := uow.EventBus().Publish(events.WagerCommittedEvent{
		OutcomeID:            outcome.ID,
		BoxID:                box.ID,
		UserID:               userID,
		Nonce:                nonce,
		Commitment:           outcome.Commitment,
		Digest:               outcome.Digest,
		Normalized:           outcome.Normalized,
		WinningItemID:        outcome.WinningItem.ID,
		WinningItemValue:     outcome.WinningItem.Value,
		Price:                box.Price,
		TransactionReference: reference,
	}); err != nil {
		log.WithError(err).Error("Failed to publish wager committed event")
	}

	// Committed
	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit wager: %w", err)
	}
	state.stage = entities.StageCommitted

	return &entities.WagerReceipt{
		Outcome:             outcome,
		NewAvailableBalance: record.BalanceAfter.Available,
	}, nil
}

// recordAbort leaves a durable trace of a wager whose commitment was produced but
// never committed. The secret is not part of the trace.
func (s *wagerOrchestrator) recordAbort(ctx context.Context, userID, boxID int64, clientSeed string, state *wagerAttempt, cause error) {
	ctx = context.WithoutCancel(ctx)

	abort := &entities.WagerAbort{
		BoxID:      boxID,
		UserID:     userID,
		Nonce:      state.nonce,
		Commitment: state.commitment,
		ClientSeed: clientSeed,
		Stage:      state.stage,
		Reason:     abortReason(cause),
	}

	logger := log.WithFields(log.Fields{
		"userID":     userID,
		"boxID":      boxID,
		"commitment": state.commitment,
		"stage":      state.stage,
	}).WithError(cause)
	logger.Warn("Wager aborted after commitment")

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		logger.WithField("auditError", err).Error("Failed to begin abort audit transaction")
		return
	}
	defer uow.Rollback()

	if err := uow.WagerAbortRepository().Record(ctx, abort); err != nil {
		logger.WithField("auditError", err).Error("Failed to record wager abort")
		return
	}

	if err := uow.EventBus().Publish(events.WagerAbortedEvent{
		BoxID:      boxID,
		UserID:     userID,
		Commitment: state.commitment,
		Stage:      string(state.stage),
		Reason:     abort.Reason,
	}); err != nil {
		logger.WithField("auditError", err).Error("Failed to publish wager aborted event")
	}

	if err := uow.Commit(); err != nil {
		logger.WithField("auditError", err).Error("Failed to commit wager abort")
	}
}

// DemoSpin runs a trial spin. Nothing is persisted and no nonce is consumed.
func (s *wagerOrchestrator) DemoSpin(ctx context.Context, boxID int64, clientSeed string) (*entities.DemoOutcome, error) {
	if err := validateClientSeed(clientSeed); err != nil {
		return nil, err
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	box, err := loadSpinnableBox(ctx, uow, boxID)
	if err != nil {
		return nil, err
	}

	outcome, err := s.engine.DemoOutcome(clientSeed, box.Snapshot())
	if err != nil {
		return nil, err
	}
	outcome.BoxID = box.ID
	return outcome, nil
}

// ListUserSpins returns one page of a user's own spins, newest first
func (s *wagerOrchestrator) ListUserSpins(ctx context.Context, userID int64, page entities.PageRequest) (*entities.SpinPage, error) {
	return s.ListSpins(ctx, entities.SpinFilter{UserID: &userID}, page)
}

// ListSpins returns one page of spins matching filter, newest first
func (s *wagerOrchestrator) ListSpins(ctx context.Context, filter entities.SpinFilter, page entities.PageRequest) (*entities.SpinPage, error) {
	page = page.Normalize()

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	spins, err := uow.WagerOutcomeRepository().List(ctx, filter, page)
	if err != nil {
		return nil, fmt.Errorf("failed to list spins: %w", err)
	}
	total, err := uow.WagerOutcomeRepository().Count(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to count spins: %w", err)
	}
	if spins == nil {
		spins = []*entities.WagerOutcome{}
	}

	return &entities.SpinPage{
		Spins:      spins,
		Pagination: entities.NewPagination(page, total),
	}, nil
}

func loadSpinnableBox(ctx context.Context, uow interfaces.UnitOfWork, boxID int64) (*entities.Box, error) {
	box, err := uow.BoxRepository().GetByID(ctx, boxID)
	if err != nil {
		return nil, fmt.Errorf("failed to get box: %w", err)
	}
	if box == nil || !box.IsActive {
		return nil, &entities.BoxNotFoundError{BoxID: boxID}
	}
	if !box.HasItems() {
		return nil, &entities.EmptyBoxError{BoxID: boxID}
	}
	return box, nil
}

func validateClientSeed(clientSeed string) error {
	if clientSeed == "" {
		return entities.NewValidationError("clientSeed", "is required")
	}
	if len(clientSeed) > maxClientSeedLength {
		return entities.NewValidationError("clientSeed", fmt.Sprintf("must be at most %d characters", maxClientSeedLength))
	}
	return nil
}

func abortReason(err error) string {
	var computation *entities.OutcomeComputationError
	switch {
	case errors.As(err, &computation):
		return "outcome computation failed"
	case entities.IsRetryable(err):
		return "storage conflict"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	}
	var insufficient *entities.InsufficientBalanceError
	if errors.As(err, &insufficient) {
		return "insufficient balance"
	}
	return "storage failure"
}

func wagerResult(err error) string {
	if err == nil {
		return WagerResultCommitted
	}
	var insufficient *entities.InsufficientBalanceError
	if errors.As(err, &insufficient) {
		return WagerResultInsufficient
	}
	if entities.IsClientError(err) {
		return WagerResultRejected
	}
	return WagerResultAborted
}
