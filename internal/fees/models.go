package fees

import "github.com/shopspring/decimal"

// Fee models are tenant-scoped through their marketplace.
// Every rate is a percentage (0–100) at rest; use Fraction at the point of arithmetic.

// FixedFeeKind selects how a FixedFeeRule applies.
type FixedFeeKind string

const (
	// FixedFeeConstant applies Amount at every price.
	FixedFeeConstant FixedFeeKind = "constant"
	// FixedFeeRange applies Amount when Min <= price <= Max.
	FixedFeeRange FixedFeeKind = "range"
	// FixedFeeRangePercentage applies PercentRate of the price when Min <= price <= Max.
	FixedFeeRangePercentage FixedFeeKind = "range_percentage"
)

// FixedFeeRule is one fixed-fee line of a marketplace.
type FixedFeeRule struct {
	ID            string       `json:"id,omitempty" db:"id"`
	MarketplaceID string       `json:"marketplace_id,omitempty" db:"marketplace_id"`
	Kind          FixedFeeKind `json:"kind" db:"kind"`

	// Range bounds, inclusive on both ends. Ignored for constant rules.
	Min decimal.Decimal `json:"min" db:"range_min"`
	Max decimal.Decimal `json:"max" db:"range_max"`

	// Amount is used by constant and range rules.
	Amount decimal.Decimal `json:"amount" db:"amount"`

	// PercentRate is used by range_percentage rules.
	PercentRate decimal.Decimal `json:"percent_rate" db:"percent_rate"`
}

func (r FixedFeeRule) isRange() bool {
	return r.Kind == FixedFeeRange || r.Kind == FixedFeeRangePercentage
}

// Matches reports whether the rule applies at price.
func (r FixedFeeRule) Matches(price decimal.Decimal) bool {
	switch r.Kind {
	case FixedFeeConstant:
		return true
	case FixedFeeRange, FixedFeeRangePercentage:
		return price.GreaterThanOrEqual(r.Min) && price.LessThanOrEqual(r.Max)
	default:
		return false
	}
}

// ShippingRule is the seller-paid shipping cost of a marketplace.
type ShippingRule struct {
	MarketplaceID string          `json:"marketplace_id,omitempty" db:"marketplace_id"`
	Cost          decimal.Decimal `json:"cost" db:"cost"`

	// FreeShippingThreshold waives Cost when price >= threshold. Null means never waived.
	FreeShippingThreshold decimal.NullDecimal `json:"free_shipping_threshold" db:"free_shipping_threshold"`
}

// Commission is a marketplace commission rate, optionally bound to a category.
type Commission struct {
	ID            string `json:"id,omitempty" db:"id"`
	MarketplaceID string `json:"marketplace_id,omitempty" db:"marketplace_id"`

	// CategoryID nil marks the marketplace default.
	CategoryID *string `json:"category_id" db:"category_id"`

	Rate decimal.Decimal `json:"rate" db:"rate"`
}

// IsDefault reports whether the commission is the marketplace-wide fallback.
func (c Commission) IsDefault() bool { return c.CategoryID == nil }

// Structure is the whole fee configuration of one marketplace.
// It is read-only to pricing.
type Structure struct {
	TenantID      string `json:"tenant_id"`
	MarketplaceID string `json:"marketplace_id"`

	Commissions []Commission   `json:"commissions"`
	FixedFees   []FixedFeeRule `json:"fixed_fees"`
	Shipping    *ShippingRule  `json:"shipping,omitempty"`
}
