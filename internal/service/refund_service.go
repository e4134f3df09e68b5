package service

import (
	"context"
	"fmt"
	"time"

	"botplatform_backend/internal/domain"
	"botplatform_backend/internal/logger"

	"github.com/shopspring/decimal"
)

// RefundService reverses completed payments. A full-amount refund also
// deactivates the module activation the payment bought; partial refunds
// leave the module active.
type RefundService struct {
	ledger    LedgerStore
	catalog   ModuleCatalog
	activator ModuleActivator
	provider  PaymentProvider
}

func NewRefundService(ledger LedgerStore, catalog ModuleCatalog, activator ModuleActivator, provider PaymentProvider) *RefundService {
	return &RefundService{
		ledger:    ledger,
		catalog:   catalog,
		activator: activator,
		provider:  provider,
	}
}

// CreateRefund refunds a completed payment. A zero amount means the full
// original amount. The provider call runs first; the completed refund record
// is written before the deactivation cascade, so a cascade failure cannot
// leave the ledger inconsistent.
func (s *RefundService) CreateRefund(ctx context.Context, transactionID int64, amount decimal.Decimal, reason string) (*domain.Transaction, error) {
	orig, err := s.ledger.GetByID(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if orig.Type != domain.TypePayment {
		return nil, fmt.Errorf("transaction %d is a %s, not a payment: %w", transactionID, orig.Type, domain.ErrInvalidState)
	}
	if orig.Status != domain.StatusCompleted {
		return nil, fmt.Errorf("transaction %d is %s, not completed: %w", transactionID, orig.Status, domain.ErrInvalidState)
	}

	if amount.IsZero() {
		amount = orig.Amount
	}
	if !amount.IsPositive() || amount.GreaterThan(orig.Amount) {
		return nil, domain.ErrInvalidAmount
	}

	refundRef, err := s.provider.Refund(ctx, orig.ProviderRef, amount)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrProvider, err)
	}

	fullRefund := amount.GreaterThanOrEqual(orig.Amount)

	now := time.Now()
	t := &domain.Transaction{
		UserID:      orig.UserID,
		Type:        domain.TypeRefund,
		Amount:      amount,
		Currency:    orig.Currency,
		Status:      domain.StatusCompleted,
		Description: "Refund of transaction " + fmt.Sprint(transactionID),
		ProcessedAt: &now,
		Meta: &domain.RefundMeta{
			OriginalTransactionID: transactionID,
			ProviderRefundRef:     refundRef,
			Reason:                reason,
			Deactivated:           fullRefund,
		},
	}
	if err := s.ledger.Append(ctx, t); err != nil {
		return nil, err
	}
	countTransition(string(domain.TypeRefund), string(domain.StatusCompleted))

	if fullRefund {
		s.deactivatePurchase(ctx, orig)
	}

	return t, nil
}

// deactivatePurchase switches off the activation bought by a fully refunded
// payment. Failures are reported, never propagated: the refund record stands.
func (s *RefundService) deactivatePurchase(ctx context.Context, orig *domain.Transaction) {
	pm, ok := orig.Meta.(*domain.PaymentMeta)
	if !ok {
		logger.Error("refund: payment metadata missing", "transaction_id", orig.ID)
		return
	}

	activation, err := s.catalog.ActiveActivation(ctx, pm.BotID, pm.ModuleID)
	if err != nil {
		logger.Error("refund: activation lookup failed", "transaction_id", orig.ID, "error", err)
		return
	}
	if activation == nil {
		return // already inactive
	}

	if err := s.activator.Deactivate(ctx, activation.ID); err != nil {
		logger.Error("refund: deactivation failed", "activation_id", activation.ID, "error", err)
	}
}
