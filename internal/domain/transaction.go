package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType identifies the direction and business meaning of a ledger record.
type TransactionType string

const (
	TypePayment    TransactionType = "payment"
	TypeWithdrawal TransactionType = "withdrawal"
	TypeCommission TransactionType = "commission"
	TypeRefund     TransactionType = "refund"
)

// Credit reports whether the type adds to the user's balance.
// Amounts are always stored as positive magnitudes; direction comes from the type.
func (t TransactionType) Credit() bool {
	return t == TypeCommission || t == TypeRefund
}

func (t TransactionType) Valid() bool {
	switch t {
	case TypePayment, TypeWithdrawal, TypeCommission, TypeRefund:
		return true
	}
	return false
}

type TransactionStatus string

const (
	StatusPending   TransactionStatus = "pending"
	StatusCompleted TransactionStatus = "completed"
	StatusFailed    TransactionStatus = "failed"
	StatusCancelled TransactionStatus = "cancelled"
)

// Terminal reports whether the status permits no further transitions.
func (s TransactionStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// Transaction is a single ledger record. Once terminal, amount and type are
// immutable; only metadata annotations and the one-time processed_at remain
// writable through the store.
type Transaction struct {
	ID          int64             `json:"id"`
	UserID      int64             `json:"user_id"`
	Type        TransactionType   `json:"type"`
	Amount      decimal.Decimal   `json:"amount"`
	Currency    string            `json:"currency"`
	Status      TransactionStatus `json:"status"`
	Description string            `json:"description,omitempty"`
	ProviderRef string            `json:"provider_ref,omitempty"`
	Meta        Meta              `json:"meta,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	ProcessedAt *time.Time        `json:"processed_at,omitempty"`
}

// TransactionFilter narrows ledger listings.
type TransactionFilter struct {
	Types    []TransactionType
	Statuses []TransactionStatus
	From     *time.Time
	To       *time.Time
	Limit    int
}

// UserStats are the dashboard aggregates derived from the ledger.
type UserStats struct {
	TotalEarned    decimal.Decimal `json:"total_earned"`
	TotalSpent     decimal.Decimal `json:"total_spent"`
	TotalWithdrawn decimal.Decimal `json:"total_withdrawn"`
	PendingAmount  decimal.Decimal `json:"pending_amount"`
}
