package core

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrMissingField     = errors.New("missing required field")
	ErrInvalidPeriod    = errors.New("invalid period")
	ErrInvalidKind      = errors.New("invalid kind")
	ErrKindImmutable    = errors.New("transaction kind cannot change")
	ErrOverpayment      = errors.New("payment exceeds remaining balance")
	ErrDebtCancelled    = errors.New("debt is cancelled")
	ErrDebtSettled      = errors.New("debt is already settled")
	ErrInvalidThreshold = errors.New("alert threshold must be in (0, 1]")
	ErrNotFound         = errors.New("record not found")
	ErrConflict         = errors.New("concurrent modification")
	ErrDescriptionLong  = errors.New("description too long (max 200 characters)")
)

// ValidationError reports input rejected before any mutation.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Err.Error()
	}
	return fmt.Sprintf("validation: %s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

func invalid(field string, err error) error {
	return &ValidationError{Field: field, Err: err}
}

// OverpaymentError is returned when a payment is larger than what is still owed.
type OverpaymentError struct {
	Requested Money
	Remaining Money
}

func (e *OverpaymentError) Error() string {
	return fmt.Sprintf("payment %s exceeds remaining balance %s", e.Requested, e.Remaining)
}

func (e *OverpaymentError) Is(target error) bool { return target == ErrOverpayment }

// NotFoundError reports a missing record of the given kind.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// ConflictError is raised by a store when a concurrent write to the same
// record was detected. Callers re-fetch and retry the whole operation.
type ConflictError struct {
	Kind string
	ID   string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s %q was modified concurrently", e.Kind, e.ID)
}

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// Record kinds used in NotFoundError and ConflictError.
const (
	KindTransaction = "transaction"
	KindDebt        = "debt"
	KindBudget      = "budget"
	KindGoal        = "goal"
	KindCategory    = "category"
)
