package service

import (
	"context"
	"time"

	"botplatform_backend/internal/domain"
	"botplatform_backend/internal/payment"

	"github.com/shopspring/decimal"
)

// LedgerStore is the append/query contract every workflow runs against.
// Implemented by repository.LedgerRepository; tests use an in-memory fake.
type LedgerStore interface {
	Append(ctx context.Context, t *domain.Transaction) error
	GetByID(ctx context.Context, id int64) (*domain.Transaction, error)
	GetByProviderRef(ctx context.Context, ref string) (*domain.Transaction, error)
	GetByUser(ctx context.Context, userID int64, f domain.TransactionFilter) ([]*domain.Transaction, error)
	ListByTypeAndStatus(ctx context.Context, typ domain.TransactionType, status domain.TransactionStatus, limit int) ([]*domain.Transaction, error)

	// TransitionStatus is the only mutation path after creation: an atomic
	// check-and-set from one status to another. processed_at is set exactly
	// once; patch merges into metadata.
	TransitionStatus(ctx context.Context, id int64, from, to domain.TransactionStatus, processedAt time.Time, patch map[string]any) error
	Annotate(ctx context.Context, id int64, note string) error
	SetProviderRef(ctx context.Context, id int64, ref string) error

	SumAmounts(ctx context.Context, userID int64, types []domain.TransactionType, statuses []domain.TransactionStatus, from, to *time.Time) (decimal.Decimal, error)

	// ReserveWithdrawal evaluates eligibility and appends the pending record
	// under a per-user serialized path, so concurrent requests cannot
	// jointly exceed the rolling caps.
	ReserveWithdrawal(ctx context.Context, t *domain.Transaction, limits domain.WithdrawalLimits, loc *time.Location) error
}

// ModuleCatalog reads purchasable modules and current activations.
type ModuleCatalog interface {
	GetModule(ctx context.Context, id int64) (*domain.BotModule, error)
	ActiveActivation(ctx context.Context, botID, moduleID int64) (*domain.ModuleActivation, error)
}

// ModuleActivator switches purchased capabilities on and off.
type ModuleActivator interface {
	Activate(ctx context.Context, botID, moduleID int64, markupPct decimal.Decimal) (int64, error)
	Deactivate(ctx context.Context, activationID int64) error
}

// ReferralDirectory resolves referral relationships.
type ReferralDirectory interface {
	FindReferrer(ctx context.Context, userID int64) (*domain.User, error)
	CountVerifiedReferrals(ctx context.Context, userID int64) (int, error)
}

// PaymentProvider is the opaque external money-movement capability.
type PaymentProvider interface {
	CreateIntent(ctx context.Context, amount decimal.Decimal, currency string, metadata map[string]string) (*payment.Intent, error)
	Refund(ctx context.Context, providerRef string, amount decimal.Decimal) (string, error)
}
