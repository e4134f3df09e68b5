package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrInvalidState        = errors.New("invalid state")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrAlreadyActivated    = errors.New("module already activated")
	ErrAccessDenied        = errors.New("access denied")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrLimitExceeded       = errors.New("withdrawal limit exceeded")

	// ErrAlreadyProcessed is returned for admin actions on a withdrawal that
	// has already left pending.
	ErrAlreadyProcessed = fmt.Errorf("already processed: %w", ErrInvalidState)

	// ErrNotCancellable is returned when a user tries to cancel a withdrawal
	// that is no longer pending.
	ErrNotCancellable = fmt.Errorf("not cancellable: %w", ErrInvalidState)

	// ErrDuplicate marks an append rejected by a uniqueness constraint,
	// e.g. a commission for a purchase that already paid out.
	ErrDuplicate = errors.New("duplicate record")

	// ErrProvider wraps failures of the external payment provider.
	ErrProvider = errors.New("payment provider error")
)

// LimitReason is the machine-readable code behind a refused withdrawal.
type LimitReason string

const (
	ReasonInsufficientBalance  LimitReason = "insufficient_balance"
	ReasonBelowMinimum         LimitReason = "below_minimum"
	ReasonAboveMaximum         LimitReason = "above_maximum"
	ReasonDailyLimitExceeded   LimitReason = "daily_limit_exceeded"
	ReasonMonthlyLimitExceeded LimitReason = "monthly_limit_exceeded"
)

// LimitError reports which eligibility check refused a withdrawal and the
// limit that was hit. Unwraps to ErrLimitExceeded.
type LimitError struct {
	Reason LimitReason
	Limit  decimal.Decimal
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("withdrawal refused: %s (limit %s)", e.Reason, e.Limit)
}

func (e *LimitError) Unwrap() error { return ErrLimitExceeded }
