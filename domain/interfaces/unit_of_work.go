package interfaces

import "context"

// UnitOfWork defines the interface for transactional repository operations
type UnitOfWork interface {
	// Begin starts a new transaction
	Begin(ctx context.Context) error

	// Commit commits the transaction and flushes pending events
	Commit() error

	// Rollback rolls back the transaction and discards pending events.
	// Safe to call after Commit.
	Rollback() error

	UserRepository() UserRepository
	TransactionRecordRepository() TransactionRecordRepository
	BoxRepository() BoxRepository
	NonceRepository() NonceRepository
	WagerOutcomeRepository() WagerOutcomeRepository
	WagerAbortRepository() WagerAbortRepository
	EventBus() EventPublisher
}

// UnitOfWorkFactory defines the interface for creating UnitOfWork instances
type UnitOfWorkFactory interface {
	Create() UnitOfWork
}

// UserLocker serializes balance-affecting operations per user across processes.
// The returned release function is always non-nil when err is nil.
type UserLocker interface {
	Lock(ctx context.Context, userIDs ...int64) (release func(), err error)
}
