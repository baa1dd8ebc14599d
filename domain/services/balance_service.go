package services

import (
	"fmt"

	"lootledger/domain/entities"
)

// BalanceService contains pure snapshot arithmetic. It never touches storage.
type BalanceService struct{}

// NewBalanceService creates a new BalanceService
func NewBalanceService() *BalanceService {
	return &BalanceService{}
}

// ValidateAmount checks that an amount is a positive number of minor units
func (s *BalanceService) ValidateAmount(amount int64) error {
	if amount <= 0 {
		return entities.NewValidationError("amount", "must be a positive integer")
	}
	return nil
}

// SplitBoth divides an amount across buckets. Pending gets the floor of half and
// available gets the remainder, so no minor unit is lost.
func (s *BalanceService) SplitBoth(amount int64) (available, pending int64) {
	pending = amount / 2
	available = amount - pending
	return available, pending
}

// Delta returns the signed change each bucket receives
func (s *BalanceService) Delta(amount int64, direction entities.Direction, bucket entities.Bucket) (entities.Balance, error) {
	if err := s.ValidateAmount(amount); err != nil {
		return entities.Balance{}, err
	}
	if !direction.IsValid() {
		return entities.Balance{}, entities.NewValidationError("direction", fmt.Sprintf("unknown direction %q", direction))
	}

	var delta entities.Balance
	switch bucket {
	case entities.BucketAvailable:
		delta.Available = amount
	case entities.BucketPending:
		delta.Pending = amount
	case entities.BucketBoth:
		delta.Available, delta.Pending = s.SplitBoth(amount)
	default:
		return entities.Balance{}, entities.NewValidationError("bucket", fmt.Sprintf("unknown bucket %q", bucket))
	}

	if direction == entities.DirectionDebit {
		delta.Available = -delta.Available
		delta.Pending = -delta.Pending
	}
	return delta, nil
}

// ApplyTransaction returns the snapshot after applying a signed amount to a bucket.
// A debit that would drive any affected bucket negative fails with
// InsufficientBalanceError and leaves current untouched.
func (s *BalanceService) ApplyTransaction(current entities.Balance, amount int64, direction entities.Direction, bucket entities.Bucket) (entities.Balance, error) {
	delta, err := s.Delta(amount, direction, bucket)
	if err != nil {
		return current, err
	}

	next := entities.Balance{
		Available: current.Available + delta.Available,
		Pending:   current.Pending + delta.Pending,
	}

	if next.Available < 0 {
		return current, &entities.InsufficientBalanceError{
			Bucket:    entities.BucketAvailable,
			Required:  -delta.Available,
			Available: current.Available,
		}
	}
	if next.Pending < 0 {
		return current, &entities.InsufficientBalanceError{
			Bucket:    entities.BucketPending,
			Required:  -delta.Pending,
			Available: current.Pending,
		}
	}

	return next, nil
}

// ApplyMove returns the snapshot after moving amount between two of the same user's buckets
func (s *BalanceService) ApplyMove(current entities.Balance, amount int64, from, to entities.Bucket) (entities.Balance, error) {
	if err := s.ValidateAmount(amount); err != nil {
		return current, err
	}
	if !from.IsSingle() {
		return current, entities.NewValidationError("fromBucket", "must be available or pending")
	}
	if !to.IsSingle() {
		return current, entities.NewValidationError("toBucket", "must be available or pending")
	}
	if from == to {
		return current, entities.NewValidationError("toBucket", "source and destination buckets must differ")
	}

	if current.Get(from) < amount {
		return current, &entities.InsufficientBalanceError{
			Bucket:    from,
			Required:  amount,
			Available: current.Get(from),
		}
	}

	next := current
	if from == entities.BucketAvailable {
		next.Available -= amount
		next.Pending += amount
	} else {
		next.Pending -= amount
		next.Available += amount
	}
	return next, nil
}

// ValidateSnapshotChain checks that record's snapshot equals prev plus its signed amount
func (s *BalanceService) ValidateSnapshotChain(prev entities.Balance, record *entities.TransactionRecord) error {
	var expected entities.Balance
	var err error

	switch {
	case record.Status == entities.StatusFailed:
		expected = prev
	case record.IsMove():
		expected, err = s.ApplyMove(prev, record.Amount, record.Bucket, *record.ToBucket)
	default:
		expected, err = s.ApplyTransaction(prev, record.Amount, record.Direction, record.Bucket)
	}
	if err != nil {
		return fmt.Errorf("record %s cannot follow its predecessor: %w", record.ReferenceID, err)
	}

	if expected != record.BalanceAfter {
		return fmt.Errorf("%w: record %s expected %+v, got %+v", entities.ErrSnapshotChainBroken, record.ReferenceID, expected, record.BalanceAfter)
	}
	return nil
}
