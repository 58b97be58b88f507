package pricing

import (
	"errors"
	"fmt"
	"sort"

	"marketplace-pricing/internal/fees"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidInput      = errors.New("pricing: invalid input")
	ErrMarginUnreachable = errors.New("pricing: margin unreachable, fee and margin rates reach 100% of price")
)

// TaxMode decides where a product's tax rate enters the margin equation.
type TaxMode string

const (
	// TaxModeNone ignores tax_rate; cost_unit is expected to already include taxes.
	TaxModeNone TaxMode = "none"
	// TaxModeOnCost adds tax_rate% of cost_unit as a cost line beside packaging.
	TaxModeOnCost TaxMode = "on_cost"
	// TaxModeOnPrice charges tax_rate% of the sale price, like a commission.
	TaxModeOnPrice TaxMode = "on_price"
)

// ParseTaxMode validates a configured tax mode. Empty means TaxModeNone.
func ParseTaxMode(v string) (TaxMode, error) {
	switch TaxMode(v) {
	case "", TaxModeNone:
		return TaxModeNone, nil
	case TaxModeOnCost, TaxModeOnPrice:
		return TaxMode(v), nil
	default:
		return "", fmt.Errorf("pricing: unknown tax mode %q", v)
	}
}

const defaultMaxIterations = 10

// Engine solves the margin equation in both directions.
//
// It is a pure value: no I/O, no retained state between calls.
type Engine struct {
	TaxMode TaxMode

	// MaxIterations bounds the fee re-resolution loop of SuggestedPrice.
	MaxIterations int
}

func NewEngine(taxMode TaxMode, maxIterations int) Engine {
	return Engine{TaxMode: taxMode, MaxIterations: maxIterations}
}

// SuggestedPrice finds the price at which the desired margin is met after every fee.
//
// Fixed fee and shipping depend on the price being solved for, so fees are resolved at a
// trial price (first the naive estimate without them), the price is solved, and fees are
// re-resolved at the new price until the matched rule and shipping stop changing.
func (e Engine) SuggestedPrice(in SuggestedInput) (Result, error) {
	if err := in.validate(); err != nil {
		return Result{}, err
	}

	base := e.costBase(in.Cost)
	rates := in.Fees.CommissionRate.
		Add(in.CardFeeRate).
		Add(in.DiscountProvisionRate).
		Add(in.DesiredMarginRate).
		Add(base.taxOnPriceRate)

	denom := decimal.NewFromInt(1).Sub(fees.Fraction(rates))
	if !denom.IsPositive() {
		return Result{}, fmt.Errorf("%w (rates sum to %s%%)", ErrMarginUnreachable, rates)
	}

	trial := base.totalCost.Div(denom)
	maxIter := e.MaxIterations
	if maxIter <= 0 {
		maxIter = defaultMaxIterations
	}

	candidates := make([]decimal.Decimal, 0, maxIter)
	for i := 1; i <= maxIter; i++ {
		s, err := solveAt(trial, base.totalCost, rates, in.Fees)
		if err != nil {
			return Result{}, err
		}
		stable, err := s.stableAt(in.Fees)
		if err != nil {
			return Result{}, err
		}
		if stable {
			return e.result(in, base, s, i), nil
		}
		candidates = append(candidates, s.price)
		trial = s.price
	}

	// No fixed point: the price keeps jumping across a fee tier or the free shipping
	// threshold. Settle on the cheapest price that still meets the desired margin.
	return e.settle(in, candidates, maxIter)
}

// settle evaluates every solved price plus each tier boundary lying between them and
// returns the cheapest one whose realized margin reaches the target. When none does,
// the highest solved price is used.
func (e Engine) settle(in SuggestedInput, solved []decimal.Decimal, iterations int) (Result, error) {
	low, high := solved[0], solved[0]
	for _, p := range solved[1:] {
		low, high = decimal.Min(low, p), decimal.Max(high, p)
	}

	points := append([]decimal.Decimal(nil), solved...)
	within := func(p decimal.Decimal) {
		if p.GreaterThan(low) && p.LessThan(high) {
			points = append(points, p)
		}
	}
	for _, r := range in.Fees.FixedFees {
		if r.Kind == fees.FixedFeeRange || r.Kind == fees.FixedFeeRangePercentage {
			within(r.Min)
			within(r.Max)
		}
	}
	if sh := in.Fees.Shipping; sh != nil && sh.FreeShippingThreshold.Valid {
		within(sh.FreeShippingThreshold.Decimal)
	}
	sort.Slice(points, func(i, j int) bool { return points[i].LessThan(points[j]) })

	var chosen *RealizedResult
	for _, p := range points {
		r, err := e.RealizedMargin(RealizedInput{
			Cost:                  in.Cost,
			Fees:                  in.Fees,
			CardFeeRate:           in.CardFeeRate,
			DiscountProvisionRate: in.DiscountProvisionRate,
			PracticedPrice:        p,
		})
		if err != nil {
			return Result{}, err
		}
		if r.MarginPercentage.GreaterThanOrEqual(in.DesiredMarginRate) {
			chosen = &r
			break
		}
		if p.Equal(high) {
			chosen = &r
		}
	}

	return Result{
		CommissionRate:   in.Fees.CommissionRate,
		TotalCost:        chosen.TotalCost,
		TaxAmount:        chosen.TaxAmount,
		FixedFeeAmount:   chosen.FixedFeeAmount,
		ShippingAmount:   chosen.ShippingAmount,
		CommissionAmount: chosen.CommissionAmount,
		CardFeeAmount:    chosen.CardFeeAmount,
		DiscountAmount:   chosen.DiscountAmount,
		SuggestedPrice:   chosen.PracticedPrice,
		UnitMargin:       chosen.UnitMargin,
		MarginPercentage: chosen.MarginPercentage,
		Iterations:       iterations,
		Converged:        false,
	}, nil
}

// RealizedMargin computes the margin left at a price that was actually charged.
func (e Engine) RealizedMargin(in RealizedInput) (RealizedResult, error) {
	if err := in.validate(); err != nil {
		return RealizedResult{}, err
	}

	price := in.PracticedPrice
	base := e.costBase(in.Cost)

	fixed, err := fees.ResolveFixedFee(in.Fees.FixedFees, price)
	if err != nil {
		return RealizedResult{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	shipping := fees.ResolveShipping(in.Fees.Shipping, price)

	out := RealizedResult{
		CommissionRate:   in.Fees.CommissionRate,
		PracticedPrice:   price,
		TotalCost:        base.totalCost,
		TaxAmount:        base.taxOnCost,
		FixedFeeAmount:   fixed.Amount,
		ShippingAmount:   shipping,
		CommissionAmount: fees.Fraction(in.Fees.CommissionRate).Mul(price),
		CardFeeAmount:    fees.Fraction(in.CardFeeRate).Mul(price),
		DiscountAmount:   fees.Fraction(in.DiscountProvisionRate).Mul(price),
	}
	taxOnPrice := fees.Fraction(base.taxOnPriceRate).Mul(price)
	if base.taxOnPriceRate.IsPositive() {
		out.TaxAmount = taxOnPrice
	}

	out.UnitMargin = price.
		Sub(out.TotalCost).
		Sub(out.FixedFeeAmount).
		Sub(out.ShippingAmount).
		Sub(out.CommissionAmount).
		Sub(out.CardFeeAmount).
		Sub(out.DiscountAmount).
		Sub(taxOnPrice)
	out.MarginPercentage = out.UnitMargin.Div(price).Mul(decimal.NewFromInt(100))
	return out, nil
}

type costBase struct {
	totalCost      decimal.Decimal
	taxOnCost      decimal.Decimal
	taxOnPriceRate decimal.Decimal
}

func (e Engine) costBase(c CostInput) costBase {
	out := costBase{
		totalCost:      c.CostUnit.Add(c.PackagingCost),
		taxOnCost:      decimal.Zero,
		taxOnPriceRate: decimal.Zero,
	}
	switch e.TaxMode {
	case TaxModeOnCost:
		out.taxOnCost = fees.Fraction(c.TaxRate).Mul(c.CostUnit)
		out.totalCost = out.totalCost.Add(out.taxOnCost)
	case TaxModeOnPrice:
		out.taxOnPriceRate = c.TaxRate
	}
	return out
}

// solution is one pass of the fixed-point loop: fees resolved at trial, price solved.
type solution struct {
	price    decimal.Decimal
	fixed    fees.FixedFee
	shipping decimal.Decimal
}

func solveAt(trial, totalCost, rates decimal.Decimal, in FeeInput) (solution, error) {
	fixed, err := fees.ResolveFixedFee(in.FixedFees, trial)
	if err != nil {
		return solution{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	shipping := fees.ResolveShipping(in.Shipping, trial)

	// A percentage fee scales with price and belongs in the denominator, not the numerator.
	absolute := fixed.Amount
	pct := fixed.PercentRate()
	if pct.IsPositive() {
		absolute = decimal.Zero
	}

	total := rates.Add(pct)
	denom := decimal.NewFromInt(1).Sub(fees.Fraction(total))
	if !denom.IsPositive() {
		return solution{}, fmt.Errorf("%w (rates sum to %s%% with fixed fee)", ErrMarginUnreachable, total)
	}

	return solution{
		price:    totalCost.Add(absolute).Add(shipping).Div(denom),
		fixed:    fixed,
		shipping: shipping,
	}, nil
}

// stableAt reports whether resolving fees at the solved price gives back the fees used to solve it.
func (s solution) stableAt(in FeeInput) (bool, error) {
	fixed, err := fees.ResolveFixedFee(in.FixedFees, s.price)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if fixed.Index != s.fixed.Index {
		return false, nil
	}
	return fees.ResolveShipping(in.Shipping, s.price).Equal(s.shipping), nil
}

func (e Engine) result(in SuggestedInput, base costBase, s solution, iterations int) Result {
	price := s.price

	fixedAmount := s.fixed.Amount
	if pct := s.fixed.PercentRate(); pct.IsPositive() {
		fixedAmount = fees.Fraction(pct).Mul(price)
	}
	tax := base.taxOnCost
	if base.taxOnPriceRate.IsPositive() {
		tax = fees.Fraction(base.taxOnPriceRate).Mul(price)
	}

	return Result{
		CommissionRate:   in.Fees.CommissionRate,
		TotalCost:        base.totalCost,
		TaxAmount:        tax,
		FixedFeeAmount:   fixedAmount,
		ShippingAmount:   s.shipping,
		CommissionAmount: fees.Fraction(in.Fees.CommissionRate).Mul(price),
		CardFeeAmount:    fees.Fraction(in.CardFeeRate).Mul(price),
		DiscountAmount:   fees.Fraction(in.DiscountProvisionRate).Mul(price),
		SuggestedPrice:   price,
		UnitMargin:       fees.Fraction(in.DesiredMarginRate).Mul(price),
		MarginPercentage: in.DesiredMarginRate,
		Iterations:       iterations,
		Converged:        true,
	}
}
