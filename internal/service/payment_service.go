package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"botplatform_backend/internal/domain"
	"botplatform_backend/internal/logger"
	"botplatform_backend/internal/notify"
	"botplatform_backend/internal/payment"

	"github.com/shopspring/decimal"
)

// PaymentService owns the module-purchase workflow: pending ledger record,
// provider intent, and exactly-once reconciliation of provider callbacks.
type PaymentService struct {
	ledger    LedgerStore
	catalog   ModuleCatalog
	activator ModuleActivator
	referrals *ReferralService
	provider  PaymentProvider
	notifier  notify.Notifier
	currency  string
}

func NewPaymentService(ledger LedgerStore, catalog ModuleCatalog, activator ModuleActivator, referrals *ReferralService, provider PaymentProvider, notifier notify.Notifier, currency string) *PaymentService {
	return &PaymentService{
		ledger:    ledger,
		catalog:   catalog,
		activator: activator,
		referrals: referrals,
		provider:  provider,
		notifier:  notifier,
		currency:  currency,
	}
}

// Currency is the ledger currency every record is denominated in.
func (s *PaymentService) Currency() string { return s.currency }

// CreateModulePayment starts a purchase of a module for a bot. It appends a
// pending payment transaction, requests a provider intent for the marked-up
// total, and stores the provider's correlation id on the transaction.
func (s *PaymentService) CreateModulePayment(ctx context.Context, userID, moduleID, botID int64, markupPct decimal.Decimal) (*domain.Transaction, *payment.Intent, error) {
	if markupPct.IsNegative() {
		return nil, nil, fmt.Errorf("markup percentage: %w", domain.ErrInvalidAmount)
	}

	mod, err := s.catalog.GetModule(ctx, moduleID)
	if err != nil {
		return nil, nil, err
	}
	if !mod.Purchasable() {
		return nil, nil, fmt.Errorf("module %q is %s: %w", mod.Name, mod.Status, domain.ErrInvalidState)
	}

	existing, err := s.catalog.ActiveActivation(ctx, botID, moduleID)
	if err != nil {
		return nil, nil, err
	}
	if existing != nil {
		return nil, nil, domain.ErrAlreadyActivated
	}

	total, markup := domain.TotalPrice(mod.BasePrice, markupPct)

	t := &domain.Transaction{
		UserID:      userID,
		Type:        domain.TypePayment,
		Amount:      total,
		Currency:    s.currency,
		Status:      domain.StatusPending,
		Description: "Module purchase: " + mod.Name,
		Meta: &domain.PaymentMeta{
			ModuleID:      moduleID,
			BotID:         botID,
			MarkupPercent: markupPct,
			BaseAmount:    mod.BasePrice,
			MarkupAmount:  markup,
		},
	}
	if err := s.ledger.Append(ctx, t); err != nil {
		return nil, nil, err
	}
	countTransition(string(domain.TypePayment), string(domain.StatusPending))

	intent, err := s.provider.CreateIntent(ctx, total, s.currency, map[string]string{
		"transaction_id": strconv.FormatInt(t.ID, 10),
		"module_id":      strconv.FormatInt(moduleID, 10),
		"bot_id":         strconv.FormatInt(botID, 10),
	})
	if err != nil {
		// The intent never existed; fail the pending record so it cannot
		// linger waiting for a callback that will never come.
		if terr := s.ledger.TransitionStatus(ctx, t.ID, domain.StatusPending, domain.StatusFailed,
			time.Now(), map[string]any{"failure_reason": "intent creation failed"}); terr != nil {
			logger.Error("payment: failing orphaned transaction", "transaction_id", t.ID, "error", terr)
		}
		return nil, nil, fmt.Errorf("%w: %v", domain.ErrProvider, err)
	}

	if err := s.ledger.SetProviderRef(ctx, t.ID, intent.ProviderRef); err != nil {
		return nil, nil, err
	}
	t.ProviderRef = intent.ProviderRef

	return t, intent, nil
}

// ReconcileSuccess finalizes the payment matching a provider success event.
// Idempotent: replayed callbacks find the transaction already completed and
// return without effect. The terminal transition is written before the
// activation and commission cascades, so a cascade failure can never leave
// the ledger inconsistent.
func (s *PaymentService) ReconcileSuccess(ctx context.Context, providerRef string) error {
	t, err := s.ledger.GetByProviderRef(ctx, providerRef)
	if errors.Is(err, domain.ErrNotFound) {
		// Stale, duplicate or test event from the provider. Reported, not fatal.
		logger.Warn("payment: success callback for unknown reference", "provider_ref", providerRef)
		return nil
	}
	if err != nil {
		return err
	}

	if t.Status == domain.StatusCompleted {
		return nil
	}

	err = s.ledger.TransitionStatus(ctx, t.ID, domain.StatusPending, domain.StatusCompleted, time.Now(), nil)
	if errors.Is(err, domain.ErrInvalidState) {
		// Lost the CAS to a concurrent callback delivery.
		current, gerr := s.ledger.GetByID(ctx, t.ID)
		if gerr == nil && current.Status == domain.StatusCompleted {
			return nil
		}
		return err
	}
	if err != nil {
		return err
	}
	countTransition(string(domain.TypePayment), string(domain.StatusCompleted))

	pm, ok := t.Meta.(*domain.PaymentMeta)
	if !ok {
		return fmt.Errorf("payment %d carries %T metadata", t.ID, t.Meta)
	}

	if _, err := s.activator.Activate(ctx, pm.BotID, pm.ModuleID, pm.MarkupPercent); err != nil {
		if errors.Is(err, domain.ErrAlreadyActivated) {
			logger.Info("payment: module already active", "transaction_id", t.ID, "bot_id", pm.BotID, "module_id", pm.ModuleID)
		} else {
			logger.Error("payment: activation cascade failed", "transaction_id", t.ID, "error", err)
		}
	}

	if _, err := s.referrals.ProcessCommission(ctx, t.UserID, t.Amount, t.ID); err != nil {
		logger.Error("payment: commission cascade failed", "transaction_id", t.ID, "error", err)
	}

	moduleName := t.Description
	s.notifier.PaymentCompleted(t.UserID, t.Amount, t.Currency, moduleName)
	return nil
}

// ReconcileFailure marks the payment matching a provider failure event as
// failed. No cascades run.
func (s *PaymentService) ReconcileFailure(ctx context.Context, providerRef string) error {
	t, err := s.ledger.GetByProviderRef(ctx, providerRef)
	if errors.Is(err, domain.ErrNotFound) {
		logger.Warn("payment: failure callback for unknown reference", "provider_ref", providerRef)
		return nil
	}
	if err != nil {
		return err
	}

	if t.Status.Terminal() {
		return nil
	}

	err = s.ledger.TransitionStatus(ctx, t.ID, domain.StatusPending, domain.StatusFailed,
		time.Now(), map[string]any{"failure_reason": "provider reported failure"})
	if errors.Is(err, domain.ErrInvalidState) {
		return nil
	}
	if err != nil {
		return err
	}
	countTransition(string(domain.TypePayment), string(domain.StatusFailed))

	s.notifier.PaymentFailed(t.UserID, t.Amount, t.Currency)
	return nil
}

// HandleEvent dispatches a verified provider webhook event.
func (s *PaymentService) HandleEvent(ctx context.Context, ev *payment.Event) error {
	switch ev.Type {
	case payment.EventPaymentSucceeded:
		return s.ReconcileSuccess(ctx, ev.ObjectReference)
	case payment.EventPaymentFailed:
		return s.ReconcileFailure(ctx, ev.ObjectReference)
	default:
		logger.Debug("payment: ignoring event", "type", ev.Type)
		return nil
	}
}

// ExpireStalePayments fails pending payments older than ttl. Run periodically;
// safe to re-run since every transition is CAS-guarded.
func (s *PaymentService) ExpireStalePayments(ctx context.Context, ttl time.Duration) (int, error) {
	pending, err := s.ledger.ListByTypeAndStatus(ctx, domain.TypePayment, domain.StatusPending, 500)
	if err != nil {
		return 0, err
	}

	cutoff := time.Now().Add(-ttl)
	expired := 0
	for _, t := range pending {
		if t.CreatedAt.After(cutoff) {
			continue
		}
		err := s.ledger.TransitionStatus(ctx, t.ID, domain.StatusPending, domain.StatusFailed,
			time.Now(), map[string]any{"failure_reason": "payment intent expired"})
		if errors.Is(err, domain.ErrInvalidState) {
			continue // completed in the meantime
		}
		if err != nil {
			return expired, err
		}
		countTransition(string(domain.TypePayment), string(domain.StatusFailed))
		expired++
	}
	return expired, nil
}
