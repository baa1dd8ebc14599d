package interfaces

import (
	"context"

	"lootledger/domain/entities"
	"lootledger/events"
)

// UserRepository reads the external user directory
type UserRepository interface {
	// GetByID returns the user or nil if none exists
	GetByID(ctx context.Context, userID int64) (*entities.UserAccount, error)

	// LockForUpdate returns the user with its row locked until the unit of work ends.
	// Every balance-affecting operation takes this lock first.
	LockForUpdate(ctx context.Context, userID int64) (*entities.UserAccount, error)

	// Create inserts a user, used by seeding and admin tooling
	Create(ctx context.Context, user *entities.UserAccount) error

	// SetActive flips the active flag
	SetActive(ctx context.Context, userID int64, active bool) error

	// ListActiveWithBalances returns active users matching search by name, newest first,
	// each with the snapshot on its latest non-deleted record
	ListActiveWithBalances(ctx context.Context, search string, page entities.PageRequest) ([]*entities.UserWithBalance, error)

	// CountActive counts the active users matching search
	CountActive(ctx context.Context, search string) (int64, error)
}

// TransactionRecordRepository is the append-only transaction store
type TransactionRecordRepository interface {
	// GetLatest returns the most recent non-deleted record for a user, or nil
	GetLatest(ctx context.Context, userID int64) (*entities.TransactionRecord, error)

	// Create appends a record and fills in its ID and CreatedAt
	Create(ctx context.Context, record *entities.TransactionRecord) error

	// GetByReferenceID returns a record by reference id, or nil
	GetByReferenceID(ctx context.Context, referenceID string) (*entities.TransactionRecord, error)

	// List returns one page of a user's history, newest first
	List(ctx context.Context, userID int64, filter entities.HistoryFilter, page entities.PageRequest) ([]*entities.TransactionRecord, error)

	// Count returns the number of records matching filter
	Count(ctx context.Context, userID int64, filter entities.HistoryFilter) (int64, error)

	// SoftDelete flags a record as deleted. It is the only mutation a record allows.
	SoftDelete(ctx context.Context, referenceID string, actorID int64) error
}

// BoxRepository is the read-only box catalog
type BoxRepository interface {
	// GetByID returns the box with its items in catalog order, or nil
	GetByID(ctx context.Context, boxID int64) (*entities.Box, error)
}

// NonceRepository hands out per-box nonces
type NonceRepository interface {
	// Next atomically increments and returns the box's nonce. The increment rolls
	// back with the unit of work.
	Next(ctx context.Context, boxID int64) (int64, error)
}

// WagerOutcomeRepository stores fair spin records
type WagerOutcomeRepository interface {
	Create(ctx context.Context, outcome *entities.WagerOutcome) error

	// GetByID returns the outcome or nil
	GetByID(ctx context.Context, outcomeID int64) (*entities.WagerOutcome, error)

	// GetByIDForUpdate returns the outcome with its row locked, or nil
	GetByIDForUpdate(ctx context.Context, outcomeID int64) (*entities.WagerOutcome, error)

	// FindForVerification returns the outcome matching all three values exactly, or nil
	FindForVerification(ctx context.Context, clientSeed, serverSecret string, nonce int64) (*entities.WagerOutcome, error)

	// MarkResold sets the one-way resell flag and the credit reference
	MarkResold(ctx context.Context, outcomeID int64, transactionReference string) error

	List(ctx context.Context, filter entities.SpinFilter, page entities.PageRequest) ([]*entities.WagerOutcome, error)
	Count(ctx context.Context, filter entities.SpinFilter) (int64, error)
}

// WagerAbortRepository stores the audit trail of wagers aborted after commitment
type WagerAbortRepository interface {
	Record(ctx context.Context, abort *entities.WagerAbort) error
	ListByUser(ctx context.Context, userID int64, limit int) ([]*entities.WagerAbort, error)
}

// EventPublisher defines the interface for publishing events
type EventPublisher interface {
	Publish(event events.Event) error
}

// TransactionalEventPublisher holds events until the unit of work commits
type TransactionalEventPublisher interface {
	EventPublisher
	Flush(ctx context.Context) error
	Discard()
}
