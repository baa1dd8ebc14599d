package entities

// Direction is the sign of a transaction amount
type Direction string

const (
	DirectionCredit Direction = "credit"
	DirectionDebit  Direction = "debit"
)

// IsValid reports whether d is a known direction
func (d Direction) IsValid() bool {
	return d == DirectionCredit || d == DirectionDebit
}

// Bucket identifies the balance partition a transaction targets
type Bucket string

const (
	BucketAvailable Bucket = "available"
	BucketPending   Bucket = "pending"
	// BucketBoth splits the amount across available and pending
	BucketBoth Bucket = "both"
)

// IsValid reports whether b is a bucket a transaction may target
func (b Bucket) IsValid() bool {
	return b == BucketAvailable || b == BucketPending || b == BucketBoth
}

// IsSingle reports whether b names exactly one partition
func (b Bucket) IsSingle() bool {
	return b == BucketAvailable || b == BucketPending
}

// Status is the lifecycle status of a transaction record
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// IsValid reports whether s is a known status
func (s Status) IsValid() bool {
	return s == StatusPending || s == StatusCompleted || s == StatusFailed
}

// Category classifies what a transaction was for
type Category string

const (
	CategoryDeposit      Category = "deposit"
	CategorySpend        Category = "spend"
	CategoryRefund       Category = "refund"
	CategoryWithdrawal   Category = "withdrawal"
	CategoryAdjustment   Category = "adjustment"
	CategorySpinResell   Category = "spin resell"
	CategoryTransfer     Category = "transfer"
	CategoryMove         Category = "move"
	CategoryOrderPayment Category = "order payment"
)

var knownCategories = map[Category]bool{
	CategoryDeposit:      true,
	CategorySpend:        true,
	CategoryRefund:       true,
	CategoryWithdrawal:   true,
	CategoryAdjustment:   true,
	CategorySpinResell:   true,
	CategoryTransfer:     true,
	CategoryMove:         true,
	CategoryOrderPayment: true,
}

// IsValid reports whether c is a known category
func (c Category) IsValid() bool {
	return knownCategories[c]
}

// IsSystemGenerated returns true for categories only the system itself writes
func (c Category) IsSystemGenerated() bool {
	return c == CategorySpend || c == CategorySpinResell || c == CategoryMove || c == CategoryOrderPayment
}

// Metadata keys the ledger understands. Any other key is passed through untouched.
const (
	MetaInitiatedBy      = "initiatedBy"
	MetaReason           = "reason"
	MetaSpinReference    = "spinReference"
	MetaOrderReference   = "orderReference"
	MetaBoxID            = "boxId"
	MetaIsManualTopup    = "isManualTopup"
	MetaIsManualDebit    = "isManualDebit"
	MetaIsManualTransfer = "isManualTransfer"
	MetaTransferType     = "transferType"
	MetaFromBucket       = "fromBucket"
	MetaToBucket         = "toBucket"
	MetaPaymentMethod    = "paymentMethod"
	MetaCounterpartyID   = "counterpartyId"
)
