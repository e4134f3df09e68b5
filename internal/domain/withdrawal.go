package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// WithdrawalLimits is platform-wide payout configuration. CommissionRate is
// the percentage deducted from the gross amount to produce the net payout;
// the gross amount is what gets reserved against the balance.
type WithdrawalLimits struct {
	MinAmount      decimal.Decimal
	MaxAmount      decimal.Decimal
	DailyLimit     decimal.Decimal
	MonthlyLimit   decimal.Decimal
	CommissionRate decimal.Decimal
}

func DefaultWithdrawalLimits() WithdrawalLimits {
	return WithdrawalLimits{
		MinAmount:      decimal.NewFromInt(10),
		MaxAmount:      decimal.NewFromInt(5000),
		DailyLimit:     decimal.NewFromInt(10000),
		MonthlyLimit:   decimal.NewFromInt(50000),
		CommissionRate: decimal.NewFromInt(2),
	}
}

// Fee returns the commission deducted from a gross withdrawal.
func (l WithdrawalLimits) Fee(gross decimal.Decimal) decimal.Decimal {
	return gross.Mul(l.CommissionRate).Div(decimal.NewFromInt(100)).Round(2)
}

// Net returns the payout after commission.
func (l WithdrawalLimits) Net(gross decimal.Decimal) decimal.Decimal {
	return gross.Sub(l.Fee(gross))
}

// EvaluateWithdrawal runs the eligibility checks in their fixed order; the
// first failing check wins so the caller always gets a deterministic,
// user-actionable reason. dayTotal and monthTotal are the pending+completed
// withdrawal sums for the current calendar day and month.
func EvaluateWithdrawal(amount, balance, dayTotal, monthTotal decimal.Decimal, l WithdrawalLimits) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	if amount.GreaterThan(balance) {
		return ErrInsufficientBalance
	}
	if amount.LessThan(l.MinAmount) {
		return &LimitError{Reason: ReasonBelowMinimum, Limit: l.MinAmount}
	}
	if amount.GreaterThan(l.MaxAmount) {
		return &LimitError{Reason: ReasonAboveMaximum, Limit: l.MaxAmount}
	}
	if dayTotal.Add(amount).GreaterThan(l.DailyLimit) {
		return &LimitError{Reason: ReasonDailyLimitExceeded, Limit: l.DailyLimit}
	}
	if monthTotal.Add(amount).GreaterThan(l.MonthlyLimit) {
		return &LimitError{Reason: ReasonMonthlyLimitExceeded, Limit: l.MonthlyLimit}
	}
	return nil
}

// DayWindow returns the midnight-to-midnight bounds of now's calendar day in
// the platform reference timezone.
func DayWindow(now time.Time, loc *time.Location) (time.Time, time.Time) {
	t := now.In(loc)
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 0, 1)
}

// MonthWindow returns the bounds of now's calendar month in the platform
// reference timezone.
func MonthWindow(now time.Time, loc *time.Location) (time.Time, time.Time) {
	t := now.In(loc)
	start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 1, 0)
}
