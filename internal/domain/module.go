package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type ModuleStatus string

const (
	ModuleApproved ModuleStatus = "approved"
	ModulePending  ModuleStatus = "pending"
	ModuleRejected ModuleStatus = "rejected"
)

// BotModule is a purchasable capability that can be attached to a bot.
type BotModule struct {
	ID        int64           `json:"id"`
	Name      string          `json:"name"`
	BasePrice decimal.Decimal `json:"base_price"`
	Status    ModuleStatus    `json:"status"`
	CreatedAt time.Time       `json:"created_at"`
}

func (m *BotModule) Purchasable() bool {
	return m.Status == ModuleApproved
}

// ModuleActivation ties a purchased module to a bot. At most one active
// activation may exist per (bot, module) pair.
type ModuleActivation struct {
	ID            int64           `json:"id"`
	BotID         int64           `json:"bot_id"`
	ModuleID      int64           `json:"module_id"`
	MarkupPercent decimal.Decimal `json:"markup_percentage"`
	Active        bool            `json:"active"`
	ActivatedAt   time.Time       `json:"activated_at"`
	DeactivatedAt *time.Time      `json:"deactivated_at,omitempty"`
}

// TotalPrice applies a reseller markup percentage to a module's base price.
func TotalPrice(base, markupPct decimal.Decimal) (total, markup decimal.Decimal) {
	markup = base.Mul(markupPct).Div(decimal.NewFromInt(100)).Round(2)
	return base.Add(markup), markup
}
