package entities

import (
	"errors"
	"fmt"
)

// ValidationError reports bad input shape. Never retried.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NewValidationError creates a ValidationError for field
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// InsufficientBalanceError carries the amounts the caller needs to see
type InsufficientBalanceError struct {
	Bucket    Bucket
	Required  int64
	Available int64
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient %s balance: required %d, available %d", e.Bucket, e.Required, e.Available)
}

// BoxNotFoundError is returned when the catalog has no box with the given id
type BoxNotFoundError struct {
	BoxID int64
}

func (e *BoxNotFoundError) Error() string {
	return fmt.Sprintf("box %d not found", e.BoxID)
}

// EmptyBoxError is returned when a box has no items to spin
type EmptyBoxError struct {
	BoxID int64
}

func (e *EmptyBoxError) Error() string {
	return fmt.Sprintf("box %d has no items", e.BoxID)
}

// OutcomeComputationError means no odds range captured the normalized value.
// Retrying with the same inputs reproduces it, so it is fatal for the wager.
type OutcomeComputationError struct {
	Normalized float64
	OddsTotal  float64
	Reason     string
}

func (e *OutcomeComputationError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("outcome computation failed: %s", e.Reason)
	}
	return fmt.Sprintf("outcome computation failed: normalized value %.10f outside cumulative odds %.10f", e.Normalized, e.OddsTotal)
}

// ErrVerificationFailed is returned when no stored outcome matches the revealed inputs
var ErrVerificationFailed = &VerificationFailedError{}

// VerificationFailedError is a "no match" answer, not a system fault
type VerificationFailedError struct {
	Reason string
}

func (e *VerificationFailedError) Error() string {
	if e.Reason != "" {
		return "verification failed: " + e.Reason
	}
	return "verification failed"
}

// AccountInactiveError is returned for any transaction against an inactive account
type AccountInactiveError struct {
	UserID int64
}

func (e *AccountInactiveError) Error() string {
	return fmt.Sprintf("account %d is inactive", e.UserID)
}

// UserNotFoundError is returned when the user directory has no such user
type UserNotFoundError struct {
	UserID int64
}

func (e *UserNotFoundError) Error() string {
	return fmt.Sprintf("user %d not found", e.UserID)
}

// OutcomeNotFoundError is returned when a wager outcome lookup by id misses
type OutcomeNotFoundError struct {
	OutcomeID int64
}

func (e *OutcomeNotFoundError) Error() string {
	return fmt.Sprintf("wager outcome %d not found", e.OutcomeID)
}

// TransactionNotFoundError is returned when a reference id lookup misses
type TransactionNotFoundError struct {
	ReferenceID string
}

func (e *TransactionNotFoundError) Error() string {
	return fmt.Sprintf("transaction %s not found", e.ReferenceID)
}

// StorageConflictError wraps a transient serialization, deadlock or lock timeout
// failure. The whole unit of work may be retried.
type StorageConflictError struct {
	Op  string
	Err error
}

func (e *StorageConflictError) Error() string {
	return fmt.Sprintf("storage conflict during %s: %v", e.Op, e.Err)
}

func (e *StorageConflictError) Unwrap() error {
	return e.Err
}

// SameAccountTransferError is returned when a transfer names the same user twice
type SameAccountTransferError struct {
	UserID int64
}

func (e *SameAccountTransferError) Error() string {
	return fmt.Sprintf("cannot transfer from account %d to itself", e.UserID)
}

// ErrAlreadyResold is returned when an outcome was already exchanged for credit
var ErrAlreadyResold = errors.New("wager outcome already resold")

// ErrNotOutcomeOwner is returned when a user tries to resell someone else's win
var ErrNotOutcomeOwner = errors.New("wager outcome belongs to another user")

// ErrSnapshotChainBroken is returned when a record's balance snapshot does not follow from its predecessor
var ErrSnapshotChainBroken = errors.New("balance snapshot is inconsistent with its predecessor")

// ErrForbidden is returned when the caller's role does not permit the operation
var ErrForbidden = errors.New("operation not permitted for this caller")

// IsRetryable reports whether err allows the whole unit of work to be retried
func IsRetryable(err error) bool {
	var conflict *StorageConflictError
	return errors.As(err, &conflict)
}

// IsClientError reports whether err is caused by the caller rather than the system
func IsClientError(err error) bool {
	var (
		validation   *ValidationError
		insufficient *InsufficientBalanceError
		boxNotFound  *BoxNotFoundError
		emptyBox     *EmptyBoxError
		verification *VerificationFailedError
		inactive     *AccountInactiveError
		userNotFound *UserNotFoundError
		outcomeNF    *OutcomeNotFoundError
		txNotFound   *TransactionNotFoundError
		sameAccount  *SameAccountTransferError
	)
	switch {
	case errors.As(err, &validation), errors.As(err, &insufficient),
		errors.As(err, &boxNotFound), errors.As(err, &emptyBox),
		errors.As(err, &verification), errors.As(err, &inactive),
		errors.As(err, &userNotFound), errors.As(err, &outcomeNF),
		errors.As(err, &txNotFound), errors.As(err, &sameAccount):
		return true
	case errors.Is(err, ErrAlreadyResold),
		errors.Is(err, ErrNotOutcomeOwner), errors.Is(err, ErrForbidden):
		return true
	}
	return false
}
