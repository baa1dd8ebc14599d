package testhelpers

import (
	"context"
	"time"

	"lootledger/domain/entities"
	"lootledger/events"

	"github.com/stretchr/testify/mock"
)

// MockUserRepository is a mock implementation of UserRepository
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) GetByID(ctx context.Context, userID int64) (*entities.UserAccount, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.UserAccount), args.Error(1)
}

func (m *MockUserRepository) LockForUpdate(ctx context.Context, userID int64) (*entities.UserAccount, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.UserAccount), args.Error(1)
}

func (m *MockUserRepository) Create(ctx context.Context, user *entities.UserAccount) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) SetActive(ctx context.Context, userID int64, active bool) error {
	args := m.Called(ctx, userID, active)
	return args.Error(0)
}

func (m *MockUserRepository) ListActiveWithBalances(ctx context.Context, search string, page entities.PageRequest) ([]*entities.UserWithBalance, error) {
	args := m.Called(ctx, search, page)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.UserWithBalance), args.Error(1)
}

func (m *MockUserRepository) CountActive(ctx context.Context, search string) (int64, error) {
	args := m.Called(ctx, search)
	return args.Get(0).(int64), args.Error(1)
}

// MockTransactionRecordRepository is a mock implementation of TransactionRecordRepository
type MockTransactionRecordRepository struct {
	mock.Mock
}

func (m *MockTransactionRecordRepository) GetLatest(ctx context.Context, userID int64) (*entities.TransactionRecord, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.TransactionRecord), args.Error(1)
}

func (m *MockTransactionRecordRepository) Create(ctx context.Context, record *entities.TransactionRecord) error {
	args := m.Called(ctx, record)
	if args.Error(0) == nil {
		if record.ID == 0 {
			record.ID = time.Now().UnixNano()
		}
		if record.CreatedAt.IsZero() {
			record.CreatedAt = time.Now()
		}
	}
	return args.Error(0)
}

func (m *MockTransactionRecordRepository) GetByReferenceID(ctx context.Context, referenceID string) (*entities.TransactionRecord, error) {
	args := m.Called(ctx, referenceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.TransactionRecord), args.Error(1)
}

func (m *MockTransactionRecordRepository) List(ctx context.Context, userID int64, filter entities.HistoryFilter, page entities.PageRequest) ([]*entities.TransactionRecord, error) {
	args := m.Called(ctx, userID, filter, page)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.TransactionRecord), args.Error(1)
}

func (m *MockTransactionRecordRepository) Count(ctx context.Context, userID int64, filter entities.HistoryFilter) (int64, error) {
	args := m.Called(ctx, userID, filter)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockTransactionRecordRepository) SoftDelete(ctx context.Context, referenceID string, actorID int64) error {
	args := m.Called(ctx, referenceID, actorID)
	return args.Error(0)
}

// MockBoxRepository is a mock implementation of BoxRepository
type MockBoxRepository struct {
	mock.Mock
}

func (m *MockBoxRepository) GetByID(ctx context.Context, boxID int64) (*entities.Box, error) {
	args := m.Called(ctx, boxID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Box), args.Error(1)
}

// MockNonceRepository is a mock implementation of NonceRepository
type MockNonceRepository struct {
	mock.Mock
}

func (m *MockNonceRepository) Next(ctx context.Context, boxID int64) (int64, error) {
	args := m.Called(ctx, boxID)
	return args.Get(0).(int64), args.Error(1)
}

// MockWagerOutcomeRepository is a mock implementation of WagerOutcomeRepository
type MockWagerOutcomeRepository struct {
	mock.Mock
}

func (m *MockWagerOutcomeRepository) Create(ctx context.Context, outcome *entities.WagerOutcome) error {
	args := m.Called(ctx, outcome)
	if args.Error(0) == nil && outcome.ID == 0 {
		outcome.ID = 1001
		outcome.CreatedAt = time.Now()
	}
	return args.Error(0)
}

func (m *MockWagerOutcomeRepository) GetByID(ctx context.Context, outcomeID int64) (*entities.WagerOutcome, error) {
	args := m.Called(ctx, outcomeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.WagerOutcome), args.Error(1)
}

func (m *MockWagerOutcomeRepository) GetByIDForUpdate(ctx context.Context, outcomeID int64) (*entities.WagerOutcome, error) {
	args := m.Called(ctx, outcomeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.WagerOutcome), args.Error(1)
}

func (m *MockWagerOutcomeRepository) FindForVerification(ctx context.Context, clientSeed, serverSecret string, nonce int64) (*entities.WagerOutcome, error) {
	args := m.Called(ctx, clientSeed, serverSecret, nonce)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.WagerOutcome), args.Error(1)
}

func (m *MockWagerOutcomeRepository) MarkResold(ctx context.Context, outcomeID int64, transactionReference string) error {
	args := m.Called(ctx, outcomeID, transactionReference)
	return args.Error(0)
}

func (m *MockWagerOutcomeRepository) List(ctx context.Context, filter entities.SpinFilter, page entities.PageRequest) ([]*entities.WagerOutcome, error) {
	args := m.Called(ctx, filter, page)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.WagerOutcome), args.Error(1)
}

func (m *MockWagerOutcomeRepository) Count(ctx context.Context, filter entities.SpinFilter) (int64, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).(int64), args.Error(1)
}

// MockWagerAbortRepository is a mock implementation of WagerAbortRepository
type MockWagerAbortRepository struct {
	mock.Mock
}

func (m *MockWagerAbortRepository) Record(ctx context.Context, abort *entities.WagerAbort) error {
	args := m.Called(ctx, abort)
	return args.Error(0)
}

func (m *MockWagerAbortRepository) ListByUser(ctx context.Context, userID int64, limit int) ([]*entities.WagerAbort, error) {
	args := m.Called(ctx, userID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.WagerAbort), args.Error(1)
}

// MockEventPublisher is a mock implementation of EventPublisher for testing
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(event events.Event) error {
	args := m.Called(event)
	return args.Error(0)
}
