package fees

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	// ErrConfiguration marks marketplace setup problems, as opposed to math or input failures.
	ErrConfiguration = errors.New("fees: configuration error")

	ErrNoCommission      = fmt.Errorf("%w: no commission configured", ErrConfiguration)
	ErrOverlappingRanges = fmt.Errorf("%w: overlapping fixed fee ranges", ErrConfiguration)
	ErrInvalidRule       = fmt.Errorf("%w: invalid fee rule", ErrConfiguration)

	ErrNegativePrice = errors.New("fees: price must be >= 0")
)

var hundred = decimal.NewFromInt(100)

// Fraction converts a percentage (0–100) into a fraction (0–1).
// All formulas go through here.
func Fraction(percent decimal.Decimal) decimal.Decimal {
	return percent.Div(hundred)
}

// FixedFee is the outcome of resolving fixed fee rules at one price.
type FixedFee struct {
	// Amount is the absolute fee at the resolved price.
	Amount decimal.Decimal
	// Index points into the rules slice, -1 when nothing matched.
	Index int
	Rule  FixedFeeRule
}

// Matched reports whether a rule applied.
func (f FixedFee) Matched() bool { return f.Index >= 0 }

// PercentRate is the rule's percentage when it is price-proportional, zero otherwise.
func (f FixedFee) PercentRate() decimal.Decimal {
	if f.Matched() && f.Rule.Kind == FixedFeeRangePercentage {
		return f.Rule.PercentRate
	}
	return decimal.Zero
}

// ResolveFixedFee picks the applicable rule at price and returns its absolute amount.
//
// When several rules match, a range rule beats a constant one, the narrowest range wins,
// then the lower Min, then the earlier rule. No match resolves to zero.
func ResolveFixedFee(rules []FixedFeeRule, price decimal.Decimal) (FixedFee, error) {
	if price.IsNegative() {
		return FixedFee{}, ErrNegativePrice
	}

	best := -1
	for i, r := range rules {
		if !r.Matches(price) {
			continue
		}
		if best < 0 || moreSpecific(r, rules[best]) {
			best = i
		}
	}
	if best < 0 {
		return FixedFee{Amount: decimal.Zero, Index: -1}, nil
	}

	r := rules[best]
	out := FixedFee{Index: best, Rule: r}
	switch r.Kind {
	case FixedFeeRangePercentage:
		out.Amount = Fraction(r.PercentRate).Mul(price)
	default:
		out.Amount = r.Amount
	}
	return out, nil
}

func moreSpecific(cand, best FixedFeeRule) bool {
	if !cand.isRange() {
		return false
	}
	if !best.isRange() {
		return true
	}
	cw := cand.Max.Sub(cand.Min)
	bw := best.Max.Sub(best.Min)
	if !cw.Equal(bw) {
		return cw.LessThan(bw)
	}
	return cand.Min.LessThan(best.Min)
}

// ResolveShipping returns the seller-paid shipping at price.
// A nil rule resolves to zero; callers decide whether to warn.
func ResolveShipping(rule *ShippingRule, price decimal.Decimal) decimal.Decimal {
	if rule == nil {
		return decimal.Zero
	}
	if rule.FreeShippingThreshold.Valid && price.GreaterThanOrEqual(rule.FreeShippingThreshold.Decimal) {
		return decimal.Zero
	}
	return rule.Cost
}

// ResolveCommission returns the rate for categoryID on marketplaceID, falling back to the
// marketplace default. An empty categoryID goes straight to the default.
func ResolveCommission(commissions []Commission, marketplaceID, categoryID string) (decimal.Decimal, error) {
	var (
		fallback    decimal.Decimal
		hasFallback bool
	)
	for _, c := range commissions {
		if c.MarketplaceID != "" && c.MarketplaceID != marketplaceID {
			continue
		}
		if c.IsDefault() {
			if !hasFallback {
				fallback, hasFallback = c.Rate, true
			}
			continue
		}
		if categoryID != "" && *c.CategoryID == categoryID {
			return c.Rate, nil
		}
	}
	if hasFallback {
		return fallback, nil
	}
	return decimal.Zero, fmt.Errorf("%w: marketplace %s category %q", ErrNoCommission, marketplaceID, categoryID)
}
