package entities

import (
	"time"
)

// TransactionRecord is an immutable ledger event. The snapshot it carries is the
// user's balance after this record was applied.
type TransactionRecord struct {
	ID                 int64          `db:"id" json:"id"`
	UserID             int64          `db:"user_id" json:"userId"`
	Amount             int64          `db:"amount" json:"amount"`
	Direction          Direction      `db:"direction" json:"direction"`
	Bucket             Bucket         `db:"bucket" json:"bucket"`
	ToBucket           *Bucket        `db:"to_bucket" json:"toBucket,omitempty"`
	Status             Status         `db:"status" json:"status"`
	Category           Category       `db:"category" json:"category"`
	ReferenceID        string         `db:"reference_id" json:"referenceId"`
	RelatedReferenceID *string        `db:"related_reference_id" json:"relatedReferenceId,omitempty"`
	OrderID            *string        `db:"order_id" json:"orderId,omitempty"`
	WagerOutcomeID     *int64         `db:"wager_outcome_id" json:"wagerOutcomeId,omitempty"`
	Metadata           map[string]any `db:"metadata" json:"metadata"`
	BalanceAfter       Balance        `db:"-" json:"balanceAfter"`
	IsDeleted          bool           `db:"is_deleted" json:"isDeleted"`
	DeletedBy          *int64         `db:"deleted_by" json:"deletedBy,omitempty"`
	CreatedBy          *int64         `db:"created_by" json:"createdBy,omitempty"`
	CreatedAt          time.Time      `db:"created_at" json:"createdAt"`
}

// IsCredit returns true if the record adds funds
func (r *TransactionRecord) IsCredit() bool {
	return r.Direction == DirectionCredit
}

// IsDebit returns true if the record removes funds
func (r *TransactionRecord) IsDebit() bool {
	return r.Direction == DirectionDebit
}

// IsMove returns true if the record moves funds between the owner's own buckets
func (r *TransactionRecord) IsMove() bool {
	return r.ToBucket != nil
}

// SignedAmount returns the amount with the direction's sign applied
func (r *TransactionRecord) SignedAmount() int64 {
	if r.IsDebit() {
		return -r.Amount
	}
	return r.Amount
}

// GetDescription returns a human-readable description of the record
func (r *TransactionRecord) GetDescription() string {
	switch r.Category {
	case CategoryDeposit:
		return "Deposit"
	case CategorySpend:
		return "Box spin"
	case CategoryRefund:
		return "Refund"
	case CategoryWithdrawal:
		return "Withdrawal"
	case CategoryAdjustment:
		return "Adjustment"
	case CategorySpinResell:
		return "Item resold for credit"
	case CategoryTransfer:
		if r.IsDebit() {
			return "Transfer sent"
		}
		return "Transfer received"
	case CategoryMove:
		return "Balance move"
	default:
		return string(r.Category)
	}
}
