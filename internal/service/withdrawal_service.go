package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"botplatform_backend/internal/domain"
	"botplatform_backend/internal/notify"

	"github.com/shopspring/decimal"
)

// Withdrawal admin actions.
const (
	ActionApprove = "approve"
	ActionReject  = "reject"
)

// WithdrawalService enforces payout eligibility and owns the withdrawal
// state machine: pending -> completed | failed | cancelled.
type WithdrawalService struct {
	ledger   LedgerStore
	limits   domain.WithdrawalLimits
	loc      *time.Location
	notifier notify.Notifier
	currency string
}

func NewWithdrawalService(ledger LedgerStore, limits domain.WithdrawalLimits, loc *time.Location, notifier notify.Notifier, currency string) *WithdrawalService {
	if loc == nil {
		loc = time.UTC
	}
	return &WithdrawalService{
		ledger:   ledger,
		limits:   limits,
		loc:      loc,
		notifier: notifier,
		currency: currency,
	}
}

// Limits exposes the configured limits for display.
func (s *WithdrawalService) Limits() domain.WithdrawalLimits { return s.limits }

// Estimate returns the fee and net payout for a prospective gross amount.
func (s *WithdrawalService) Estimate(amount decimal.Decimal) (fee, net decimal.Decimal) {
	return s.limits.Fee(amount), s.limits.Net(amount)
}

// CanWithdraw runs the eligibility checks without submitting. The result is
// advisory only: submission re-validates under the serialized reserve path.
func (s *WithdrawalService) CanWithdraw(ctx context.Context, userID int64, amount decimal.Decimal) (bool, domain.LimitReason, error) {
	balance, dayTotal, monthTotal, err := s.loadSums(ctx, userID)
	if err != nil {
		return false, "", err
	}

	err = domain.EvaluateWithdrawal(amount, balance, dayTotal, monthTotal, s.limits)
	if err == nil {
		return true, "", nil
	}

	var le *domain.LimitError
	if errors.As(err, &le) {
		return false, le.Reason, nil
	}
	if errors.Is(err, domain.ErrInsufficientBalance) {
		return false, domain.ReasonInsufficientBalance, nil
	}
	return false, "", err
}

// CreateWithdrawalRequest validates eligibility at submission time and
// appends the pending withdrawal. The stored amount is the gross requested
// amount: the full sum is reserved against balance even though the net payout
// is smaller. Pending requests count against the rolling caps immediately.
func (s *WithdrawalService) CreateWithdrawalRequest(ctx context.Context, userID int64, amount decimal.Decimal, method, destination string) (*domain.Transaction, error) {
	if method == "" || destination == "" {
		return nil, fmt.Errorf("withdrawal method and destination are required")
	}

	fee := s.limits.Fee(amount)
	t := &domain.Transaction{
		UserID:      userID,
		Type:        domain.TypeWithdrawal,
		Amount:      amount,
		Currency:    s.currency,
		Status:      domain.StatusPending,
		Description: "Withdrawal via " + method,
		Meta: &domain.WithdrawalMeta{
			Method:      method,
			Destination: destination,
			FeeAmount:   fee,
			NetAmount:   amount.Sub(fee),
		},
	}

	if err := s.ledger.ReserveWithdrawal(ctx, t, s.limits, s.loc); err != nil {
		return nil, err
	}
	countTransition(string(domain.TypeWithdrawal), string(domain.StatusPending))
	return t, nil
}

// ProcessWithdrawal applies an admin decision. Only valid from pending:
// approve completes, reject fails, anything already processed reports
// ErrAlreadyProcessed. The admin note lands in metadata either way.
func (s *WithdrawalService) ProcessWithdrawal(ctx context.Context, id int64, action, adminNote string) (*domain.Transaction, error) {
	var to domain.TransactionStatus
	switch action {
	case ActionApprove:
		to = domain.StatusCompleted
	case ActionReject:
		to = domain.StatusFailed
	default:
		return nil, fmt.Errorf("unknown action %q", action)
	}

	t, err := s.ledger.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.Type != domain.TypeWithdrawal {
		return nil, fmt.Errorf("transaction %d is a %s: %w", id, t.Type, domain.ErrInvalidState)
	}
	if t.Status != domain.StatusPending {
		return nil, domain.ErrAlreadyProcessed
	}

	patch := map[string]any{}
	if adminNote != "" {
		patch["admin_note"] = adminNote
	}

	err = s.ledger.TransitionStatus(ctx, id, domain.StatusPending, to, time.Now(), patch)
	if errors.Is(err, domain.ErrInvalidState) {
		return nil, domain.ErrAlreadyProcessed
	}
	if err != nil {
		return nil, err
	}
	countTransition(string(domain.TypeWithdrawal), string(to))

	s.notifier.WithdrawalProcessed(t.UserID, t.Amount, t.Currency, to == domain.StatusCompleted)

	return s.ledger.GetByID(ctx, id)
}

// CancelWithdrawal lets the owning user withdraw a still-pending request.
func (s *WithdrawalService) CancelWithdrawal(ctx context.Context, userID, id int64) error {
	t, err := s.ledger.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if t.UserID != userID {
		return domain.ErrAccessDenied
	}
	if t.Type != domain.TypeWithdrawal || t.Status != domain.StatusPending {
		return domain.ErrNotCancellable
	}

	err = s.ledger.TransitionStatus(ctx, id, domain.StatusPending, domain.StatusCancelled, time.Now(), nil)
	if errors.Is(err, domain.ErrInvalidState) {
		return domain.ErrNotCancellable
	}
	if err == nil {
		countTransition(string(domain.TypeWithdrawal), string(domain.StatusCancelled))
	}
	return err
}

func (s *WithdrawalService) loadSums(ctx context.Context, userID int64) (balance, dayTotal, monthTotal decimal.Decimal, err error) {
	completed := []domain.TransactionStatus{domain.StatusCompleted}

	credits, err := s.ledger.SumAmounts(ctx, userID,
		[]domain.TransactionType{domain.TypeCommission, domain.TypeRefund}, completed, nil, nil)
	if err != nil {
		return
	}
	debits, err := s.ledger.SumAmounts(ctx, userID,
		[]domain.TransactionType{domain.TypePayment, domain.TypeWithdrawal}, completed, nil, nil)
	if err != nil {
		return
	}
	balance = credits.Sub(debits)

	now := time.Now()
	withdrawals := []domain.TransactionType{domain.TypeWithdrawal}
	reserving := []domain.TransactionStatus{domain.StatusPending, domain.StatusCompleted}

	dayFrom, dayTo := domain.DayWindow(now, s.loc)
	dayTotal, err = s.ledger.SumAmounts(ctx, userID, withdrawals, reserving, &dayFrom, &dayTo)
	if err != nil {
		return
	}

	monthFrom, monthTo := domain.MonthWindow(now, s.loc)
	monthTotal, err = s.ledger.SumAmounts(ctx, userID, withdrawals, reserving, &monthFrom, &monthTo)
	return
}
