package testhelpers

import (
	"context"
	"sync"
	"time"

	"lootledger/domain/interfaces"

	"github.com/stretchr/testify/mock"
)

// MockUnitOfWork hands out a fixed set of mock repositories and records
// Begin/Commit/Rollback so tests can assert on transaction boundaries
type MockUnitOfWork struct {
	mu sync.Mutex

	UserRepo         *MockUserRepository
	RecordRepo       *MockTransactionRecordRepository
	BoxRepo          *MockBoxRepository
	NonceRepo        *MockNonceRepository
	OutcomeRepo      *MockWagerOutcomeRepository
	AbortRepo        *MockWagerAbortRepository
	Events           *MockEventPublisher
	RecordStore      interfaces.TransactionRecordRepository // overrides RecordRepo when set
	BeginErr         error
	CommitErr        error
	BeginCalls       int
	CommitCalls      int
	RollbackCalls    int
	committed        bool
	rolledBackActive bool
}

// NewMockUnitOfWork creates a unit of work with fresh mock repositories
func NewMockUnitOfWork() *MockUnitOfWork {
	return &MockUnitOfWork{
		UserRepo:    new(MockUserRepository),
		RecordRepo:  new(MockTransactionRecordRepository),
		BoxRepo:     new(MockBoxRepository),
		NonceRepo:   new(MockNonceRepository),
		OutcomeRepo: new(MockWagerOutcomeRepository),
		AbortRepo:   new(MockWagerAbortRepository),
		Events:      new(MockEventPublisher),
	}
}

func (u *MockUnitOfWork) Begin(ctx context.Context) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.BeginCalls++
	u.committed = false
	return u.BeginErr
}

func (u *MockUnitOfWork) Commit() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.CommitCalls++
	if u.CommitErr != nil {
		return u.CommitErr
	}
	u.committed = true
	return nil
}

func (u *MockUnitOfWork) Rollback() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.RollbackCalls++
	if !u.committed {
		u.rolledBackActive = true
	}
	return nil
}

// Committed reports whether the last Begin ended in a successful Commit
func (u *MockUnitOfWork) Committed() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.committed
}

// RolledBack reports whether an uncommitted transaction was rolled back
func (u *MockUnitOfWork) RolledBack() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.rolledBackActive
}

func (u *MockUnitOfWork) UserRepository() interfaces.UserRepository { return u.UserRepo }
func (u *MockUnitOfWork) TransactionRecordRepository() interfaces.TransactionRecordRepository {
	if u.RecordStore != nil {
		return u.RecordStore
	}
	return u.RecordRepo
}
func (u *MockUnitOfWork) BoxRepository() interfaces.BoxRepository     { return u.BoxRepo }
func (u *MockUnitOfWork) NonceRepository() interfaces.NonceRepository { return u.NonceRepo }
func (u *MockUnitOfWork) WagerOutcomeRepository() interfaces.WagerOutcomeRepository {
	return u.OutcomeRepo
}
func (u *MockUnitOfWork) WagerAbortRepository() interfaces.WagerAbortRepository { return u.AbortRepo }
func (u *MockUnitOfWork) EventBus() interfaces.EventPublisher                   { return u.Events }

// MockUnitOfWorkFactory returns the same MockUnitOfWork on every Create.
// Services create one unit of work per attempt, so sharing keeps mock expectations in one place.
type MockUnitOfWorkFactory struct {
	UoW     *MockUnitOfWork
	Created int
}

// NewMockUnitOfWorkFactory creates a factory around a fresh MockUnitOfWork
func NewMockUnitOfWorkFactory() *MockUnitOfWorkFactory {
	return &MockUnitOfWorkFactory{UoW: NewMockUnitOfWork()}
}

func (f *MockUnitOfWorkFactory) Create() interfaces.UnitOfWork {
	f.Created++
	return f.UoW
}

// NoopUserLocker grants every lock immediately
type NoopUserLocker struct{}

func (NoopUserLocker) Lock(ctx context.Context, userIDs ...int64) (func(), error) {
	return func() {}, nil
}

// MockUserLocker is a mock implementation of UserLocker
type MockUserLocker struct {
	mock.Mock
}

func (m *MockUserLocker) Lock(ctx context.Context, userIDs ...int64) (func(), error) {
	args := m.Called(ctx, userIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(func()), args.Error(1)
}

// MockMetrics is a mock implementation of Metrics
type MockMetrics struct {
	mock.Mock
}

func (m *MockMetrics) RecordConflictRetry(operation string) {
	m.Called(operation)
}

func (m *MockMetrics) RecordWager(result string, duration time.Duration) {
	m.Called(result, duration)
}

// NoopMetrics discards every measurement
type NoopMetrics struct{}

func (NoopMetrics) RecordConflictRetry(operation string)              {}
func (NoopMetrics) RecordWager(result string, duration time.Duration) {}
