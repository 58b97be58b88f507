package fees

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// ValidPercent reports whether p is within [0,100].
func ValidPercent(p decimal.Decimal) bool {
	return !p.IsNegative() && p.LessThanOrEqual(hundred)
}

// ValidateFixedFeeRules checks rules at configuration time.
// Range rules must not overlap; ResolveFixedFee still tie-breaks at runtime for data that
// predates this check.
func ValidateFixedFeeRules(rules []FixedFeeRule) error {
	ranges := make([]FixedFeeRule, 0, len(rules))
	for i, r := range rules {
		switch r.Kind {
		case FixedFeeConstant:
			if r.Amount.IsNegative() {
				return fmt.Errorf("%w: rule %d amount must be >= 0", ErrInvalidRule, i)
			}
			continue
		case FixedFeeRange:
			if r.Amount.IsNegative() {
				return fmt.Errorf("%w: rule %d amount must be >= 0", ErrInvalidRule, i)
			}
		case FixedFeeRangePercentage:
			if !ValidPercent(r.PercentRate) {
				return fmt.Errorf("%w: rule %d percent_rate must be within 0-100", ErrInvalidRule, i)
			}
		default:
			return fmt.Errorf("%w: rule %d has unknown kind %q", ErrInvalidRule, i, r.Kind)
		}
		if r.Min.IsNegative() || r.Min.GreaterThan(r.Max) {
			return fmt.Errorf("%w: rule %d range [%s, %s]", ErrInvalidRule, i, r.Min, r.Max)
		}
		ranges = append(ranges, r)
	}

	sort.SliceStable(ranges, func(i, j int) bool { return ranges[i].Min.LessThan(ranges[j].Min) })
	for i := 1; i < len(ranges); i++ {
		prev, cur := ranges[i-1], ranges[i]
		if cur.Min.LessThanOrEqual(prev.Max) {
			return fmt.Errorf("%w: [%s, %s] and [%s, %s]", ErrOverlappingRanges, prev.Min, prev.Max, cur.Min, cur.Max)
		}
	}
	return nil
}

// Validate checks a whole marketplace fee structure before it is stored.
func (s Structure) Validate() error {
	if s.MarketplaceID == "" {
		return fmt.Errorf("%w: marketplace_id required", ErrInvalidRule)
	}

	seen := map[string]bool{}
	for i, c := range s.Commissions {
		if !ValidPercent(c.Rate) {
			return fmt.Errorf("%w: commission %d rate must be within 0-100", ErrInvalidRule, i)
		}
		key := ""
		if c.CategoryID != nil {
			key = "category:" + *c.CategoryID
		}
		if seen[key] {
			return fmt.Errorf("%w: duplicate commission for %q", ErrInvalidRule, key)
		}
		seen[key] = true
	}

	if err := ValidateFixedFeeRules(s.FixedFees); err != nil {
		return err
	}

	if s.Shipping != nil {
		if s.Shipping.Cost.IsNegative() {
			return fmt.Errorf("%w: shipping cost must be >= 0", ErrInvalidRule)
		}
		if s.Shipping.FreeShippingThreshold.Valid && s.Shipping.FreeShippingThreshold.Decimal.IsNegative() {
			return fmt.Errorf("%w: free shipping threshold must be >= 0", ErrInvalidRule)
		}
	}
	return nil
}
