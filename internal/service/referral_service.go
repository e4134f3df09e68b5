package service

import (
	"context"
	"errors"
	"time"

	"botplatform_backend/internal/domain"
	"botplatform_backend/internal/logger"
	"botplatform_backend/internal/notify"

	"github.com/shopspring/decimal"
)

// ReferralService runs the commission cascade on completed purchases and
// answers tier lookups.
type ReferralService struct {
	ledger    LedgerStore
	directory ReferralDirectory
	tiers     []domain.ReferralTier
	notifier  notify.Notifier
	currency  string
}

func NewReferralService(ledger LedgerStore, directory ReferralDirectory, tiers []domain.ReferralTier, notifier notify.Notifier, currency string) *ReferralService {
	if len(tiers) == 0 {
		tiers = domain.DefaultTiers()
	}
	return &ReferralService{
		ledger:    ledger,
		directory: directory,
		tiers:     tiers,
		notifier:  notifier,
		currency:  currency,
	}
}

// ProcessCommission credits the referrer of a purchase, if any. The tier is
// resolved at commission time so the rate reflects the referrer's current
// standing. Returns (nil, nil) when the purchase carries no commission:
// unreferred payer, zero-rate tier, or an already-paid cascade retry (the
// store's uniqueness on (referrer, original transaction) makes retries safe).
func (s *ReferralService) ProcessCommission(ctx context.Context, referredUserID int64, purchaseAmount decimal.Decimal, originalTransactionID int64) (*domain.Transaction, error) {
	referrer, err := s.directory.FindReferrer(ctx, referredUserID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	count, err := s.directory.CountVerifiedReferrals(ctx, referrer.ID)
	if err != nil {
		return nil, err
	}
	tier := domain.ResolveTier(s.tiers, count)

	total, base, bonus := tier.Commission(purchaseAmount)
	if !total.IsPositive() {
		return nil, nil
	}

	now := time.Now()
	t := &domain.Transaction{
		UserID:      referrer.ID,
		Type:        domain.TypeCommission,
		Amount:      total,
		Currency:    s.currency,
		Status:      domain.StatusCompleted,
		Description: "Referral commission",
		ProcessedAt: &now,
		Meta: &domain.CommissionMeta{
			ReferralUserID:        referredUserID,
			OriginalTransactionID: originalTransactionID,
			Tier:                  tier.Name,
			BaseCommission:        base,
			BonusCommission:       bonus,
		},
	}

	if err := s.ledger.Append(ctx, t); err != nil {
		if errors.Is(err, domain.ErrDuplicate) {
			logger.Info("referral: commission already recorded",
				"referrer_id", referrer.ID, "original_transaction_id", originalTransactionID)
			return nil, nil
		}
		return nil, err
	}
	countTransition(string(domain.TypeCommission), string(domain.StatusCompleted))

	s.notifier.CommissionEarned(referrer.ID, total, s.currency, tier.Name)
	return t, nil
}

// TierInfo returns a user's current tier, their verified-referral count, and
// the next tier to reach (nil when already at the top).
func (s *ReferralService) TierInfo(ctx context.Context, userID int64) (domain.ReferralTier, int, *domain.ReferralTier, error) {
	count, err := s.directory.CountVerifiedReferrals(ctx, userID)
	if err != nil {
		return domain.ReferralTier{}, 0, nil, err
	}

	current := domain.ResolveTier(s.tiers, count)
	for i := range s.tiers {
		if s.tiers[i].MinReferrals > count {
			next := s.tiers[i]
			return current, count, &next, nil
		}
	}
	return current, count, nil, nil
}
