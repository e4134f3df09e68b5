package domain

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// Meta carries workflow-specific correlation data. Each transaction type has
// its own metadata shape so required fields are enforced at compile time
// instead of being duck-typed out of an untyped map at read time.
type Meta interface {
	metaType() TransactionType
}

// PaymentMeta describes a module purchase.
type PaymentMeta struct {
	ModuleID      int64           `json:"module_id"`
	BotID         int64           `json:"bot_id"`
	MarkupPercent decimal.Decimal `json:"markup_percentage"`
	BaseAmount    decimal.Decimal `json:"base_amount"`
	MarkupAmount  decimal.Decimal `json:"markup_amount"`
	FailureReason string          `json:"failure_reason,omitempty"`
	AdminNote     string          `json:"admin_note,omitempty"`
}

func (PaymentMeta) metaType() TransactionType { return TypePayment }

// WithdrawalMeta describes a payout request. FeeAmount and NetAmount are
// informational; the transaction amount is the gross reserved against balance.
type WithdrawalMeta struct {
	Method      string          `json:"method"`
	Destination string          `json:"destination"`
	FeeAmount   decimal.Decimal `json:"fee_amount"`
	NetAmount   decimal.Decimal `json:"net_amount"`
	AdminNote   string          `json:"admin_note,omitempty"`
}

func (WithdrawalMeta) metaType() TransactionType { return TypeWithdrawal }

// CommissionMeta links a referral commission back to the purchase that
// produced it.
type CommissionMeta struct {
	ReferralUserID        int64           `json:"referral_user_id"`
	OriginalTransactionID int64           `json:"original_transaction_id"`
	Tier                  string          `json:"tier"`
	BaseCommission        decimal.Decimal `json:"base_commission"`
	BonusCommission       decimal.Decimal `json:"bonus_commission"`
	AdminNote             string          `json:"admin_note,omitempty"`
}

func (CommissionMeta) metaType() TransactionType { return TypeCommission }

// RefundMeta links a refund back to the refunded payment.
type RefundMeta struct {
	OriginalTransactionID int64  `json:"original_transaction_id"`
	ProviderRefundRef     string `json:"provider_refund_ref,omitempty"`
	Reason                string `json:"reason,omitempty"`
	Deactivated           bool   `json:"deactivated"`
	AdminNote             string `json:"admin_note,omitempty"`
}

func (RefundMeta) metaType() TransactionType { return TypeRefund }

// EncodeMeta serializes metadata for storage. A nil meta encodes as an empty
// object so the stored column is always valid JSON.
func EncodeMeta(m Meta) ([]byte, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

// DecodeMeta parses stored metadata into the shape matching the transaction type.
func DecodeMeta(t TransactionType, raw []byte) (Meta, error) {
	if len(raw) == 0 {
		raw = []byte("{}")
	}
	switch t {
	case TypePayment:
		var m PaymentMeta
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, err
		}
		return &m, nil
	case TypeWithdrawal:
		var m WithdrawalMeta
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, err
		}
		return &m, nil
	case TypeCommission:
		var m CommissionMeta
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, err
		}
		return &m, nil
	case TypeRefund:
		var m RefundMeta
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, err
		}
		return &m, nil
	}
	return nil, fmt.Errorf("unknown transaction type %q", t)
}
