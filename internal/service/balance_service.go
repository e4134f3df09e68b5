package service

import (
	"context"

	"botplatform_backend/internal/domain"

	"github.com/shopspring/decimal"
)

// BalanceService derives balances and statistics from the ledger. The balance
// is never stored anywhere: every read recomputes it from completed records,
// so it cannot drift from the ledger.
type BalanceService struct {
	ledger LedgerStore
}

func NewBalanceService(ledger LedgerStore) *BalanceService {
	return &BalanceService{ledger: ledger}
}

// GetBalance returns completed credits (commission, refund) minus completed
// debits (payment, withdrawal).
func (s *BalanceService) GetBalance(ctx context.Context, userID int64) (decimal.Decimal, error) {
	completed := []domain.TransactionStatus{domain.StatusCompleted}

	credits, err := s.ledger.SumAmounts(ctx, userID,
		[]domain.TransactionType{domain.TypeCommission, domain.TypeRefund}, completed, nil, nil)
	if err != nil {
		return decimal.Zero, err
	}

	debits, err := s.ledger.SumAmounts(ctx, userID,
		[]domain.TransactionType{domain.TypePayment, domain.TypeWithdrawal}, completed, nil, nil)
	if err != nil {
		return decimal.Zero, err
	}

	return credits.Sub(debits), nil
}

// GetStats returns the dashboard aggregates.
func (s *BalanceService) GetStats(ctx context.Context, userID int64) (*domain.UserStats, error) {
	completed := []domain.TransactionStatus{domain.StatusCompleted}
	stats := &domain.UserStats{}

	var err error
	stats.TotalEarned, err = s.ledger.SumAmounts(ctx, userID,
		[]domain.TransactionType{domain.TypeCommission}, completed, nil, nil)
	if err != nil {
		return nil, err
	}
	stats.TotalSpent, err = s.ledger.SumAmounts(ctx, userID,
		[]domain.TransactionType{domain.TypePayment}, completed, nil, nil)
	if err != nil {
		return nil, err
	}
	stats.TotalWithdrawn, err = s.ledger.SumAmounts(ctx, userID,
		[]domain.TransactionType{domain.TypeWithdrawal}, completed, nil, nil)
	if err != nil {
		return nil, err
	}
	stats.PendingAmount, err = s.ledger.SumAmounts(ctx, userID,
		nil, []domain.TransactionStatus{domain.StatusPending}, nil, nil)
	if err != nil {
		return nil, err
	}

	return stats, nil
}

// History lists the user's transactions with optional type/status filters.
func (s *BalanceService) History(ctx context.Context, userID int64, f domain.TransactionFilter) ([]*domain.Transaction, error) {
	return s.ledger.GetByUser(ctx, userID, f)
}
