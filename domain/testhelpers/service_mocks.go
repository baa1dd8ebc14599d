package testhelpers

import (
	"context"

	"lootledger/domain/entities"
	"lootledger/domain/interfaces"

	"github.com/stretchr/testify/mock"
)

// MockFairnessEngine is a mock implementation of FairnessEngine
type MockFairnessEngine struct {
	mock.Mock
}

func (m *MockFairnessEngine) GenerateCommitSecret() (string, error) {
	args := m.Called()
	return args.String(0), args.Error(1)
}

func (m *MockFairnessEngine) Commit(secret string) string {
	args := m.Called(secret)
	return args.String(0)
}

func (m *MockFairnessEngine) ComputeOutcome(secret, clientSeed string, nonce int64, items []entities.Item) (*entities.OutcomeComputation, error) {
	args := m.Called(secret, clientSeed, nonce, items)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.OutcomeComputation), args.Error(1)
}

func (m *MockFairnessEngine) Verify(secret, clientSeed string, nonce int64, items []entities.Item, claimedWinner entities.Item, claimedHash string) bool {
	args := m.Called(secret, clientSeed, nonce, items, claimedWinner, claimedHash)
	return args.Bool(0)
}

func (m *MockFairnessEngine) DemoOutcome(clientSeed string, items []entities.Item) (*entities.DemoOutcome, error) {
	args := m.Called(clientSeed, items)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.DemoOutcome), args.Error(1)
}

// MockLedgerService is a mock implementation of LedgerService
type MockLedgerService struct {
	mock.Mock
}

func (m *MockLedgerService) GetBalance(ctx context.Context, userID int64) (entities.BalanceView, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(entities.BalanceView), args.Error(1)
}

func (m *MockLedgerService) RecordTransaction(ctx context.Context, req interfaces.TransactionRequest) (*entities.TransactionRecord, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.TransactionRecord), args.Error(1)
}

func (m *MockLedgerService) Transfer(ctx context.Context, req interfaces.TransferRequest) (*interfaces.TransferResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*interfaces.TransferResult), args.Error(1)
}

func (m *MockLedgerService) MoveBalance(ctx context.Context, req interfaces.MoveRequest) (*entities.TransactionRecord, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.TransactionRecord), args.Error(1)
}

func (m *MockLedgerService) History(ctx context.Context, userID int64, filter entities.HistoryFilter, page entities.PageRequest) (*entities.HistoryPage, error) {
	args := m.Called(ctx, userID, filter, page)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.HistoryPage), args.Error(1)
}

func (m *MockLedgerService) Count(ctx context.Context, userID int64, filter entities.HistoryFilter) (int64, error) {
	args := m.Called(ctx, userID, filter)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockLedgerService) RecordAdminAdjustment(ctx context.Context, adj interfaces.AdminAdjustment) (*entities.TransactionRecord, error) {
	args := m.Called(ctx, adj)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.TransactionRecord), args.Error(1)
}

func (m *MockLedgerService) SoftDelete(ctx context.Context, referenceID string, actorID int64) error {
	args := m.Called(ctx, referenceID, actorID)
	return args.Error(0)
}

func (m *MockLedgerService) ProcessOrderPayment(ctx context.Context, req interfaces.OrderPaymentRequest) (*interfaces.TransferResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*interfaces.TransferResult), args.Error(1)
}

func (m *MockLedgerService) ReleaseVendorPayment(ctx context.Context, req interfaces.VendorReleaseRequest) (*entities.TransactionRecord, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.TransactionRecord), args.Error(1)
}

func (m *MockLedgerService) ListUsersWithBalances(ctx context.Context, search string, page entities.PageRequest) (*entities.UserBalancePage, error) {
	args := m.Called(ctx, search, page)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.UserBalancePage), args.Error(1)
}

func (m *MockLedgerService) RecordInUnitOfWork(ctx context.Context, uow interfaces.UnitOfWork, req interfaces.TransactionRequest) (*entities.TransactionRecord, error) {
	args := m.Called(ctx, uow, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.TransactionRecord), args.Error(1)
}

// MockWagerService is a mock implementation of WagerService
type MockWagerService struct {
	mock.Mock
}

func (m *MockWagerService) PlaceWager(ctx context.Context, userID, boxID int64, clientSeed string) (*entities.WagerReceipt, error) {
	args := m.Called(ctx, userID, boxID, clientSeed)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.WagerReceipt), args.Error(1)
}

func (m *MockWagerService) DemoSpin(ctx context.Context, boxID int64, clientSeed string) (*entities.DemoOutcome, error) {
	args := m.Called(ctx, boxID, clientSeed)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.DemoOutcome), args.Error(1)
}

func (m *MockWagerService) ListUserSpins(ctx context.Context, userID int64, page entities.PageRequest) (*entities.SpinPage, error) {
	args := m.Called(ctx, userID, page)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.SpinPage), args.Error(1)
}

func (m *MockWagerService) ListSpins(ctx context.Context, filter entities.SpinFilter, page entities.PageRequest) (*entities.SpinPage, error) {
	args := m.Called(ctx, filter, page)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.SpinPage), args.Error(1)
}

// MockAuditService is a mock implementation of AuditService
type MockAuditService struct {
	mock.Mock
}

func (m *MockAuditService) VerifySpin(ctx context.Context, clientSeed, secret string, nonce int64) (*entities.VerificationProof, error) {
	args := m.Called(ctx, clientSeed, secret, nonce)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.VerificationProof), args.Error(1)
}

// MockResellService is a mock implementation of ResellService
type MockResellService struct {
	mock.Mock
}

func (m *MockResellService) ResellOutcome(ctx context.Context, userID, outcomeID int64) (*entities.ResellReceipt, error) {
	args := m.Called(ctx, userID, outcomeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.ResellReceipt), args.Error(1)
}
