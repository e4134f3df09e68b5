package notify

import "github.com/shopspring/decimal"

// Notifier delivers fire-and-forget user notifications for financial events.
// Implementations must swallow delivery failures internally: a notification
// error can never roll back a ledger transition.
type Notifier interface {
	PaymentCompleted(userID int64, amount decimal.Decimal, currency, moduleName string)
	PaymentFailed(userID int64, amount decimal.Decimal, currency string)
	WithdrawalProcessed(userID int64, amount decimal.Decimal, currency string, approved bool)
	CommissionEarned(userID int64, amount decimal.Decimal, currency, tier string)
}

// Noop discards all notifications. Used when no channel is configured.
type Noop struct{}

func (Noop) PaymentCompleted(int64, decimal.Decimal, string, string)  {}
func (Noop) PaymentFailed(int64, decimal.Decimal, string)             {}
func (Noop) WithdrawalProcessed(int64, decimal.Decimal, string, bool) {}
func (Noop) CommissionEarned(int64, decimal.Decimal, string, string)  {}
