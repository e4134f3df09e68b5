package domain

import "github.com/shopspring/decimal"

// ReferralTier is a rank in the referral program. A referrer sits in the
// highest tier whose MinReferrals threshold their verified-referral count
// meets (the threshold itself is inclusive).
type ReferralTier struct {
	Name           string          `json:"name"`
	MinReferrals   int             `json:"min_referrals"`
	CommissionRate decimal.Decimal `json:"commission_rate"`
	BonusRate      decimal.Decimal `json:"bonus_rate"`
}

// DefaultTiers returns the static tier table, ordered by ascending threshold.
func DefaultTiers() []ReferralTier {
	return []ReferralTier{
		{Name: "Bronze", MinReferrals: 0, CommissionRate: decimal.NewFromInt(5), BonusRate: decimal.Zero},
		{Name: "Silver", MinReferrals: 10, CommissionRate: decimal.NewFromInt(10), BonusRate: decimal.NewFromInt(2)},
		{Name: "Gold", MinReferrals: 25, CommissionRate: decimal.NewFromInt(15), BonusRate: decimal.NewFromInt(5)},
		{Name: "Platinum", MinReferrals: 50, CommissionRate: decimal.NewFromInt(20), BonusRate: decimal.NewFromInt(10)},
	}
}

// ResolveTier picks the highest tier whose threshold verifiedCount meets.
// tiers must be ordered by ascending MinReferrals.
func ResolveTier(tiers []ReferralTier, verifiedCount int) ReferralTier {
	var best ReferralTier
	for _, t := range tiers {
		if verifiedCount >= t.MinReferrals {
			best = t
		}
	}
	return best
}

// Commission splits a purchase amount into base and bonus commission at this
// tier's rates, rounded to cents.
func (t ReferralTier) Commission(purchase decimal.Decimal) (total, base, bonus decimal.Decimal) {
	hundred := decimal.NewFromInt(100)
	base = purchase.Mul(t.CommissionRate).Div(hundred).Round(2)
	bonus = purchase.Mul(t.BonusRate).Div(hundred).Round(2)
	return base.Add(bonus), base, bonus
}
