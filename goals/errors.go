package goals

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrGoalNotFound is returned when a referenced goal doesn't exist.
	ErrGoalNotFound = errors.New("goal not found")

	// ErrEmptyTitle is returned when a goal title is blank after trimming.
	ErrEmptyTitle = errors.New("goal title is required")

	// ErrInvalidTarget is returned when a target amount is negative.
	ErrInvalidTarget = errors.New("target amount must not be negative")

	// ErrInvalidAmount is returned when a contribution is zero or negative.
	ErrInvalidAmount = errors.New("contribution amount must be positive")

	// ErrDuplicateContribution is returned when a contribution with the same
	// idempotency key was already recorded. Safe to ignore on retries.
	ErrDuplicateContribution = errors.New("duplicate contribution")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// NotFoundError names the goal that could not be found.
type NotFoundError struct {
	ID uuid.UUID
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("goal %s not found", e.ID)
}

func (e *NotFoundError) Unwrap() error {
	return ErrGoalNotFound
}

// InvalidAmountError carries the rejected contribution amount.
type InvalidAmountError struct {
	Amount decimal.Decimal
}

func (e *InvalidAmountError) Error() string {
	return fmt.Sprintf("invalid contribution amount %s: must be positive", e.Amount)
}

func (e *InvalidAmountError) Unwrap() error {
	return ErrInvalidAmount
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrEmptyTitle) ||
		errors.Is(err, ErrInvalidTarget) ||
		errors.Is(err, ErrInvalidAmount)
}

// IsNotFound returns true if the error indicates a missing goal.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrGoalNotFound)
}

// IsConflict returns true if the write was rejected as a duplicate.
func IsConflict(err error) bool {
	return errors.Is(err, ErrDuplicateContribution)
}
