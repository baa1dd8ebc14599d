package interfaces

import (
	"context"
	"time"

	"lootledger/domain/entities"
)

// SnapshotValidator checks that a record's balance snapshot follows from the one before it
type SnapshotValidator interface {
	ValidateSnapshotChain(prev entities.Balance, record *entities.TransactionRecord) error
}

// FairnessEngine produces and verifies commit-reveal outcomes
type FairnessEngine interface {
	GenerateCommitSecret() (string, error)
	Commit(secret string) string
	ComputeOutcome(secret, clientSeed string, nonce int64, items []entities.Item) (*entities.OutcomeComputation, error)
	Verify(secret, clientSeed string, nonce int64, items []entities.Item, claimedWinner entities.Item, claimedHash string) bool
	// DemoOutcome picks a winner uniformly at random. The result is never verifiable.
	DemoOutcome(clientSeed string, items []entities.Item) (*entities.DemoOutcome, error)
}

// TransactionRequest is the input to the single ledger mutation primitive
type TransactionRequest struct {
	UserID             int64
	Amount             int64
	Direction          entities.Direction
	Bucket             entities.Bucket
	Category           entities.Category
	Status             entities.Status
	ReferenceID        string // generated when empty
	RelatedReferenceID *string
	OrderID            *string
	WagerOutcomeID     *int64
	CreatedBy          *int64
	Metadata           map[string]any
}

// TransferRequest moves funds between two users. Manual transfers are made by an admin
// on someone else's behalf; otherwise CreatedBy, when set, must be the sender.
type TransferRequest struct {
	FromUserID int64
	ToUserID   int64
	Amount     int64
	FromBucket entities.Bucket
	ToBucket   entities.Bucket
	Manual     bool
	CreatedBy  *int64
	Metadata   map[string]any
}

// OrderPaymentRequest settles an order. The buyer pays from available and the
// vendor is credited to pending until the payment is released.
type OrderPaymentRequest struct {
	BuyerID       int64
	VendorID      int64
	Amount        int64
	OrderID       string
	PaymentMethod string
	CreatedBy     int64 // the buyer, or an admin settling on the buyer's behalf
}

// VendorReleaseRequest moves a settled order's funds from the vendor's pending to available
type VendorReleaseRequest struct {
	VendorID int64
	Amount   int64
	OrderID  string
	ActorID  int64
}

// TransferResult holds both cross-linked records
type TransferResult struct {
	Debit  *entities.TransactionRecord `json:"debit"`
	Credit *entities.TransactionRecord `json:"credit"`
}

// MoveRequest moves funds between one user's own buckets
type MoveRequest struct {
	UserID     int64
	Amount     int64
	FromBucket entities.Bucket
	ToBucket   entities.Bucket
	CreatedBy  *int64
	Metadata   map[string]any
}

// AdminAdjustment is a privileged top-up or debit
type AdminAdjustment struct {
	UserID    int64
	Amount    int64
	Direction entities.Direction
	Bucket    entities.Bucket
	Category  entities.Category
	ActorID   int64
	Reason    string
	Metadata  map[string]any
}

// LedgerService maintains the per-user balance trail
type LedgerService interface {
	GetBalance(ctx context.Context, userID int64) (entities.BalanceView, error)
	RecordTransaction(ctx context.Context, req TransactionRequest) (*entities.TransactionRecord, error)
	Transfer(ctx context.Context, req TransferRequest) (*TransferResult, error)
	MoveBalance(ctx context.Context, req MoveRequest) (*entities.TransactionRecord, error)
	History(ctx context.Context, userID int64, filter entities.HistoryFilter, page entities.PageRequest) (*entities.HistoryPage, error)
	Count(ctx context.Context, userID int64, filter entities.HistoryFilter) (int64, error)
	RecordAdminAdjustment(ctx context.Context, adj AdminAdjustment) (*entities.TransactionRecord, error)
	SoftDelete(ctx context.Context, referenceID string, actorID int64) error
	ProcessOrderPayment(ctx context.Context, req OrderPaymentRequest) (*TransferResult, error)
	ReleaseVendorPayment(ctx context.Context, req VendorReleaseRequest) (*entities.TransactionRecord, error)
	ListUsersWithBalances(ctx context.Context, search string, page entities.PageRequest) (*entities.UserBalancePage, error)

	// RecordInUnitOfWork applies a transaction inside a caller-owned unit of work.
	// The caller must already hold the user's row lock via LockForUpdate.
	RecordInUnitOfWork(ctx context.Context, uow UnitOfWork, req TransactionRequest) (*entities.TransactionRecord, error)
}

// WagerService sequences a wager end to end
type WagerService interface {
	PlaceWager(ctx context.Context, userID, boxID int64, clientSeed string) (*entities.WagerReceipt, error)
	DemoSpin(ctx context.Context, boxID int64, clientSeed string) (*entities.DemoOutcome, error)
	ListUserSpins(ctx context.Context, userID int64, page entities.PageRequest) (*entities.SpinPage, error)
	ListSpins(ctx context.Context, filter entities.SpinFilter, page entities.PageRequest) (*entities.SpinPage, error)
}

// AuditService re-derives past outcomes
type AuditService interface {
	VerifySpin(ctx context.Context, clientSeed, secret string, nonce int64) (*entities.VerificationProof, error)
}

// ResellService exchanges won items for credit
type ResellService interface {
	ResellOutcome(ctx context.Context, userID, outcomeID int64) (*entities.ResellReceipt, error)
}

// Metrics is the slice of the metrics provider the domain reports to
type Metrics interface {
	RecordConflictRetry(operation string)
	RecordWager(result string, duration time.Duration)
}
