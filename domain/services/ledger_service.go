package services

import (
	"context"
	"fmt"
	"time"

	"lootledger/domain/entities"
	"lootledger/domain/interfaces"
	"lootledger/domain/utils"
	"lootledger/events"

	log "github.com/sirupsen/logrus"
)

type ledgerService struct {
	uowFactory interfaces.UnitOfWorkFactory
	locker     interfaces.UserLocker
	metrics    interfaces.Metrics
	balance    *BalanceService
	maxRetries int
	now        func() time.Time
}

// NewLedgerService creates a new ledger service
func NewLedgerService(uowFactory interfaces.UnitOfWorkFactory, locker interfaces.UserLocker, metrics interfaces.Metrics, maxRetries int) interfaces.LedgerService {
	return &ledgerService{
		uowFactory: uowFactory,
		locker:     locker,
		metrics:    metrics,
		balance:    NewBalanceService(),
		maxRetries: maxRetries,
		now:        time.Now,
	}
}

// GetBalance returns the snapshot on the user's latest non-deleted record
func (s *ledgerService) GetBalance(ctx context.Context, userID int64) (entities.BalanceView, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return entities.BalanceView{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	current, err := currentBalance(ctx, uow.TransactionRecordRepository(), userID)
	if err != nil {
		return entities.BalanceView{}, err
	}
	return current.View(), nil
}

// RecordTransaction is the sole mutation primitive for a single user's balance
func (s *ledgerService) RecordTransaction(ctx context.Context, req interfaces.TransactionRequest) (*entities.TransactionRecord, error) {
	if err := s.validateRequest(req); err != nil {
		return nil, err
	}

	release, err := s.locker.Lock(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	defer release()

	var record *entities.TransactionRecord
	err = runWithRetry(ctx, s.maxRetries, s.metrics, "record_transaction", func() error {
		uow := s.uowFactory.Create()
		if err := uow.Begin(ctx); err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer uow.Rollback()

		if _, err := lockActiveUser(ctx, uow, req.UserID); err != nil {
			return err
		}

		r, err := s.RecordInUnitOfWork(ctx, uow, req)
		if err != nil {
			return err
		}

		if err := uow.Commit(); err != nil {
			return fmt.Errorf("failed to commit transaction: %w", err)
		}
		record = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	return record, nil
}

// RecordInUnitOfWork computes the new snapshot and appends the record inside uow.
// The caller must already hold the user's row lock.
func (s *ledgerService) RecordInUnitOfWork(ctx context.Context, uow interfaces.UnitOfWork, req interfaces.TransactionRequest) (*entities.TransactionRecord, error) {
	if err := s.validateRequest(req); err != nil {
		return nil, err
	}

	prev, err := currentBalance(ctx, uow.TransactionRecordRepository(), req.UserID)
	if err != nil {
		return nil, err
	}

	status := req.Status
	if status == "" {
		status = entities.StatusCompleted
	}

	next := prev
	if status != entities.StatusFailed {
		next, err = s.balance.ApplyTransaction(prev, req.Amount, req.Direction, req.Bucket)
		if err != nil {
			return nil, err
		}
	}

	referenceID := req.ReferenceID
	if referenceID == "" {
		referenceID = utils.NewReferenceID(s.now())
	}

	record := &entities.TransactionRecord{
		UserID:             req.UserID,
		Amount:             req.Amount,
		Direction:          req.Direction,
		Bucket:             req.Bucket,
		Status:             status,
		Category:           req.Category,
		ReferenceID:        referenceID,
		RelatedReferenceID: req.RelatedReferenceID,
		OrderID:            req.OrderID,
		WagerOutcomeID:     req.WagerOutcomeID,
		Metadata:           utils.MergeMetadata(req.Metadata, nil),
		BalanceAfter:       next,
		CreatedBy:          req.CreatedBy,
	}

	if err := utils.RecordBalanceChange(ctx, uow.TransactionRecordRepository(), uow.EventBus(), s.balance, prev, record); err != nil {
		return nil, err
	}

	return record, nil
}

// Transfer debits one user and credits another inside a single unit of work.
// The two records reference each other. A manual transfer must be made by an admin;
// any other transfer may only be made by the sender.
func (s *ledgerService) Transfer(ctx context.Context, req interfaces.TransferRequest) (*interfaces.TransferResult, error) {
	if req.FromUserID == req.ToUserID {
		return nil, &entities.SameAccountTransferError{UserID: req.FromUserID}
	}
	if err := s.balance.ValidateAmount(req.Amount); err != nil {
		return nil, err
	}
	fromBucket, toBucket := defaultBucket(req.FromBucket), defaultBucket(req.ToBucket)
	if !fromBucket.IsValid() {
		return nil, entities.NewValidationError("fromBucket", "unknown bucket")
	}
	if !toBucket.IsValid() {
		return nil, entities.NewValidationError("toBucket", "unknown bucket")
	}
	if err := utils.ValidateMetadata(req.Metadata); err != nil {
		return nil, err
	}

	metadata := req.Metadata
	if req.Manual {
		if req.CreatedBy == nil {
			return nil, entities.NewValidationError("createdBy", "is required for manual transfers")
		}
		metadata = utils.MergeMetadata(metadata, map[string]any{entities.MetaIsManualTransfer: true})
	} else if req.CreatedBy != nil && *req.CreatedBy != req.FromUserID {
		return nil, entities.ErrForbidden
	}

	release, err := s.locker.Lock(ctx, req.FromUserID, req.ToUserID)
	if err != nil {
		return nil, err
	}
	defer release()

	var result *interfaces.TransferResult
	err = runWithRetry(ctx, s.maxRetries, s.metrics, "transfer", func() error {
		uow := s.uowFactory.Create()
		if err := uow.Begin(ctx); err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer uow.Rollback()

		if req.Manual {
			if err := requireAdmin(ctx, uow, *req.CreatedBy); err != nil {
				return err
			}
		}
		if _, err := lockActivePair(ctx, uow, req.FromUserID, req.ToUserID); err != nil {
			return err
		}

		r, err := s.recordLinkedPair(ctx, uow,
			interfaces.TransactionRequest{
				UserID:    req.FromUserID,
				Amount:    req.Amount,
				Direction: entities.DirectionDebit,
				Bucket:    fromBucket,
				Category:  entities.CategoryTransfer,
				CreatedBy: req.CreatedBy,
				Metadata: utils.MergeMetadata(metadata, map[string]any{
					entities.MetaTransferType:   "out",
					entities.MetaCounterpartyID: req.ToUserID,
				}),
			},
			interfaces.TransactionRequest{
				UserID:    req.ToUserID,
				Amount:    req.Amount,
				Direction: entities.DirectionCredit,
				Bucket:    toBucket,
				Category:  entities.CategoryTransfer,
				CreatedBy: req.CreatedBy,
				Metadata: utils.MergeMetadata(metadata, map[string]any{
					entities.MetaTransferType:   "in",
					entities.MetaCounterpartyID: req.FromUserID,
				}),
			},
		)
		if err != nil {
			return err
		}

		if err := uow.Commit(); err != nil {
			return fmt.Errorf("failed to commit transaction: %w", err)
		}
		result = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"fromUserID": req.FromUserID,
		"toUserID":   req.ToUserID,
		"amount":     req.Amount,
		"manual":     req.Manual,
		"debitRef":   result.Debit.ReferenceID,
		"creditRef":  result.Credit.ReferenceID,
	}).Info("Transfer completed")

	return result, nil
}

// recordLinkedPair writes a debit and a credit whose records reference each other.
// Both users' rows must already be locked.
func (s *ledgerService) recordLinkedPair(ctx context.Context, uow interfaces.UnitOfWork, debit, credit interfaces.TransactionRequest) (*interfaces.TransferResult, error) {
	now := s.now()
	debitRef := utils.NewReferenceID(now)
	creditRef := utils.NewReferenceID(now)

	debit.ReferenceID, debit.RelatedReferenceID = debitRef, &creditRef
	credit.ReferenceID, credit.RelatedReferenceID = creditRef, &debitRef

	debitRecord, err := s.RecordInUnitOfWork(ctx, uow, debit)
	if err != nil {
		return nil, err
	}
	creditRecord, err := s.RecordInUnitOfWork(ctx, uow, credit)
	if err != nil {
		return nil, err
	}
	return &interfaces.TransferResult{Debit: debitRecord, Credit: creditRecord}, nil
}

// MoveBalance moves funds between one user's own buckets as a single record
func (s *ledgerService) MoveBalance(ctx context.Context, req interfaces.MoveRequest) (*entities.TransactionRecord, error) {
	if err := s.validateMove(req); err != nil {
		return nil, err
	}

	release, err := s.locker.Lock(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	defer release()

	var record *entities.TransactionRecord
	err = runWithRetry(ctx, s.maxRetries, s.metrics, "move_balance", func() error {
		uow := s.uowFactory.Create()
		if err := uow.Begin(ctx); err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer uow.Rollback()

		if _, err := lockActiveUser(ctx, uow, req.UserID); err != nil {
			return err
		}

		r, err := s.moveInUnitOfWork(ctx, uow, req, nil)
		if err != nil {
			return err
		}

		if err := uow.Commit(); err != nil {
			return fmt.Errorf("failed to commit transaction: %w", err)
		}
		record = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	return record, nil
}

func (s *ledgerService) validateMove(req interfaces.MoveRequest) error {
	if err := s.balance.ValidateAmount(req.Amount); err != nil {
		return err
	}
	if req.FromBucket == req.ToBucket {
		return entities.NewValidationError("toBucket", "source and destination buckets must differ")
	}
	return utils.ValidateMetadata(req.Metadata)
}

// moveInUnitOfWork writes the single move record. The user's row must already be locked.
func (s *ledgerService) moveInUnitOfWork(ctx context.Context, uow interfaces.UnitOfWork, req interfaces.MoveRequest, orderID *string) (*entities.TransactionRecord, error) {
	prev, err := currentBalance(ctx, uow.TransactionRecordRepository(), req.UserID)
	if err != nil {
		return nil, err
	}

	next, err := s.balance.ApplyMove(prev, req.Amount, req.FromBucket, req.ToBucket)
	if err != nil {
		return nil, err
	}

	toBucket := req.ToBucket
	record := &entities.TransactionRecord{
		UserID:      req.UserID,
		Amount:      req.Amount,
		Direction:   entities.DirectionDebit,
		Bucket:      req.FromBucket,
		ToBucket:    &toBucket,
		Status:      entities.StatusCompleted,
		Category:    entities.CategoryMove,
		ReferenceID: utils.NewReferenceID(s.now()),
		OrderID:     orderID,
		Metadata: utils.MergeMetadata(req.Metadata, map[string]any{
			entities.MetaFromBucket: string(req.FromBucket),
			entities.MetaToBucket:   string(req.ToBucket),
		}),
		BalanceAfter: next,
		CreatedBy:    req.CreatedBy,
	}

	if err := utils.RecordBalanceChange(ctx, uow.TransactionRecordRepository(), uow.EventBus(), s.balance, prev, record); err != nil {
		return nil, err
	}
	return record, nil
}

// History returns one page of a user's records, newest first
func (s *ledgerService) History(ctx context.Context, userID int64, filter entities.HistoryFilter, page entities.PageRequest) (*entities.HistoryPage, error) {
	page = page.Normalize()

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	records, err := uow.TransactionRecordRepository().List(ctx, userID, filter, page)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}

	total, err := uow.TransactionRecordRepository().Count(ctx, userID, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to count transactions: %w", err)
	}

	if records == nil {
		records = []*entities.TransactionRecord{}
	}

	return &entities.HistoryPage{
		Records:    records,
		Pagination: entities.NewPagination(page, total),
	}, nil
}

// Count returns the number of records matching filter
func (s *ledgerService) Count(ctx context.Context, userID int64, filter entities.HistoryFilter) (int64, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	total, err := uow.TransactionRecordRepository().Count(ctx, userID, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to count transactions: %w", err)
	}
	return total, nil
}

// RecordAdminAdjustment applies a privileged top-up or debit. It obeys the same
// invariants as any other transaction; the actor must hold the admin role.
func (s *ledgerService) RecordAdminAdjustment(ctx context.Context, adj interfaces.AdminAdjustment) (*entities.TransactionRecord, error) {
	if adj.ActorID <= 0 {
		return nil, entities.NewValidationError("actorId", "is required")
	}
	if adj.Reason == "" {
		return nil, entities.NewValidationError("reason", "is required")
	}
	category := adj.Category
	switch adj.Direction {
	case entities.DirectionCredit:
		if category == "" {
			category = entities.CategoryDeposit
		}
		if category != entities.CategoryDeposit {
			return nil, entities.NewValidationError("category", "top-ups must use category deposit")
		}
	case entities.DirectionDebit:
		if category == "" {
			return nil, entities.NewValidationError("category", "is required for debits")
		}
		if category == entities.CategoryDeposit {
			return nil, entities.NewValidationError("category", "debits cannot use category deposit")
		}
	}

	metadata := utils.MergeMetadata(adj.Metadata, map[string]any{
		entities.MetaInitiatedBy: adj.ActorID,
		entities.MetaReason:      adj.Reason,
	})
	if adj.Direction == entities.DirectionCredit {
		metadata[entities.MetaIsManualTopup] = true
	} else {
		metadata[entities.MetaIsManualDebit] = true
	}

	actorID := adj.ActorID
	req := interfaces.TransactionRequest{
		UserID:    adj.UserID,
		Amount:    adj.Amount,
		Direction: adj.Direction,
		Bucket:    defaultBucket(adj.Bucket),
		Category:  category,
		CreatedBy: &actorID,
		Metadata:  metadata,
	}
	if err := s.validateRequest(req); err != nil {
		return nil, err
	}

	release, err := s.locker.Lock(ctx, adj.UserID)
	if err != nil {
		return nil, err
	}
	defer release()

	var record *entities.TransactionRecord
	err = runWithRetry(ctx, s.maxRetries, s.metrics, "admin_adjustment", func() error {
		uow := s.uowFactory.Create()
		if err := uow.Begin(ctx); err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer uow.Rollback()

		if err := requireAdmin(ctx, uow, adj.ActorID); err != nil {
			return err
		}
		if _, err := lockActiveUser(ctx, uow, adj.UserID); err != nil {
			return err
		}

		r, err := s.RecordInUnitOfWork(ctx, uow, req)
		if err != nil {
			return err
		}

		if err := uow.Commit(); err != nil {
			return fmt.Errorf("failed to commit transaction: %w", err)
		}
		record = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"userID":      adj.UserID,
		"actorID":     adj.ActorID,
		"direction":   adj.Direction,
		"amount":      adj.Amount,
		"referenceID": record.ReferenceID,
	}).Info("Admin adjustment recorded")

	return record, nil
}

// SoftDelete flags a record as deleted so balance reads skip it
func (s *ledgerService) SoftDelete(ctx context.Context, referenceID string, actorID int64) error {
	if referenceID == "" {
		return entities.NewValidationError("referenceId", "is required")
	}

	return runWithRetry(ctx, s.maxRetries, s.metrics, "soft_delete", func() error {
		uow := s.uowFactory.Create()
		if err := uow.Begin(ctx); err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer uow.Rollback()

		if err := requireAdmin(ctx, uow, actorID); err != nil {
			return err
		}

		record, err := uow.TransactionRecordRepository().GetByReferenceID(ctx, referenceID)
		if err != nil {
			return fmt.Errorf("failed to get transaction: %w", err)
		}
		if record == nil {
			return &entities.TransactionNotFoundError{ReferenceID: referenceID}
		}
		if record.IsDeleted {
			return nil
		}

		if _, err := uow.UserRepository().LockForUpdate(ctx, record.UserID); err != nil {
			return err
		}

		if err := uow.TransactionRecordRepository().SoftDelete(ctx, referenceID, actorID); err != nil {
			return fmt.Errorf("failed to delete transaction: %w", err)
		}

		if err := uow.EventBus().Publish(events.TransactionDeletedEvent{
			UserID:      record.UserID,
			ReferenceID: referenceID,
			DeletedBy:   actorID,
		}); err != nil {
			log.WithError(err).Error("Failed to publish transaction deleted event")
		}

		return uow.Commit()
	})
}

func (s *ledgerService) validateRequest(req interfaces.TransactionRequest) error {
	if req.UserID <= 0 {
		return entities.NewValidationError("userId", "is required")
	}
	if err := s.balance.ValidateAmount(req.Amount); err != nil {
		return err
	}
	if !req.Direction.IsValid() {
		return entities.NewValidationError("direction", "must be credit or debit")
	}
	if !req.Bucket.IsValid() {
		return entities.NewValidationError("bucket", "must be available, pending or both")
	}
	if !req.Category.IsValid() {
		return entities.NewValidationError("category", fmt.Sprintf("unknown category %q", req.Category))
	}
	if req.Status != "" && !req.Status.IsValid() {
		return entities.NewValidationError("status", fmt.Sprintf("unknown status %q", req.Status))
	}
	return utils.ValidateMetadata(req.Metadata)
}

// currentBalance reads the snapshot on the latest non-deleted record, or zero
func currentBalance(ctx context.Context, repo interfaces.TransactionRecordRepository, userID int64) (entities.Balance, error) {
	latest, err := repo.GetLatest(ctx, userID)
	if err != nil {
		return entities.Balance{}, fmt.Errorf("failed to read latest balance: %w", err)
	}
	if latest == nil {
		return entities.Balance{}, nil
	}
	return latest.BalanceAfter, nil
}

// lockActiveUser takes the user's row lock and rejects unknown or inactive accounts
func lockActiveUser(ctx context.Context, uow interfaces.UnitOfWork, userID int64) (*entities.UserAccount, error) {
	user, err := uow.UserRepository().LockForUpdate(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, &entities.UserNotFoundError{UserID: userID}
	}
	if !user.IsActive {
		return nil, &entities.AccountInactiveError{UserID: userID}
	}
	return user, nil
}

// lockActivePair locks two users in id order so opposite transfers cannot deadlock
func lockActivePair(ctx context.Context, uow interfaces.UnitOfWork, a, b int64) (map[int64]*entities.UserAccount, error) {
	first, second := a, b
	if second < first {
		first, second = second, first
	}
	users := make(map[int64]*entities.UserAccount, 2)
	for _, id := range []int64{first, second} {
		user, err := lockActiveUser(ctx, uow, id)
		if err != nil {
			return nil, err
		}
		users[id] = user
	}
	return users, nil
}

func requireAdmin(ctx context.Context, uow interfaces.UnitOfWork, actorID int64) error {
	actor, err := uow.UserRepository().GetByID(ctx, actorID)
	if err != nil {
		return fmt.Errorf("failed to get actor: %w", err)
	}
	if actor == nil || !actor.IsAdmin() || !actor.IsActive {
		return entities.ErrForbidden
	}
	return nil
}

func defaultBucket(b entities.Bucket) entities.Bucket {
	if b == "" {
		return entities.BucketAvailable
	}
	return b
}
