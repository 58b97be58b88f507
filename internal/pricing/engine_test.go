package pricing

import (
	"errors"
	"strings"
	"testing"

	"marketplace-pricing/internal/fees"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// scenario is the reference listing: 50 + 5 cost, 14% commission, Constant(6) fee, no shipping.
func scenario() SuggestedInput {
	return SuggestedInput{
		Cost: CostInput{CostUnit: d("50"), PackagingCost: d("5")},
		Fees: FeeInput{
			CommissionRate: d("14"),
			FixedFees:      []fees.FixedFeeRule{{Kind: fees.FixedFeeConstant, Amount: d("6")}},
		},
		CardFeeRate:           d("3.5"),
		DiscountProvisionRate: d("2"),
		DesiredMarginRate:     d("20"),
	}
}

func realizedFrom(in SuggestedInput, price decimal.Decimal) RealizedInput {
	return RealizedInput{
		Cost:                  in.Cost,
		Fees:                  in.Fees,
		CardFeeRate:           in.CardFeeRate,
		DiscountProvisionRate: in.DiscountProvisionRate,
		PracticedPrice:        price,
	}
}

func assertRounded(t *testing.T, name string, got decimal.Decimal, want string) {
	t.Helper()
	if !got.Round(2).Equal(d(want)) {
		t.Fatalf("%s: expected %s, got %s", name, want, got)
	}
}

func TestSuggestedPrice_ReferenceScenario(t *testing.T) {
	r, err := NewEngine(TaxModeNone, 0).SuggestedPrice(scenario())
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	assertRounded(t, "total cost", r.TotalCost, "55")
	assertRounded(t, "fixed fee", r.FixedFeeAmount, "6")
	assertRounded(t, "shipping", r.ShippingAmount, "0")
	assertRounded(t, "price", r.SuggestedPrice, "100.83")
	assertRounded(t, "unit margin", r.UnitMargin, "20.17")
	assertRounded(t, "commission", r.CommissionAmount, "14.12")
	if !r.MarginPercentage.Equal(d("20")) {
		t.Fatalf("expected margin 20, got %s", r.MarginPercentage)
	}
	if !r.Converged || r.Iterations != 1 {
		t.Fatalf("expected convergence on first pass, got converged=%v iterations=%d", r.Converged, r.Iterations)
	}
}

func TestRealizedMargin_ReferenceScenario(t *testing.T) {
	r, err := NewEngine(TaxModeNone, 0).RealizedMargin(realizedFrom(scenario(), d("90")))
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	assertRounded(t, "commission", r.CommissionAmount, "12.6")
	assertRounded(t, "card fee", r.CardFeeAmount, "3.15")
	assertRounded(t, "discount", r.DiscountAmount, "1.8")
	assertRounded(t, "unit margin", r.UnitMargin, "11.45")
	assertRounded(t, "margin percentage", r.MarginPercentage, "12.72")
}

func TestSuggestedPrice_RoundTripsThroughRealizedMargin(t *testing.T) {
	tiered := scenario()
	tiered.Cost = CostInput{CostUnit: d("50")}
	tiered.Fees = FeeInput{
		CommissionRate: d("12"),
		FixedFees: []fees.FixedFeeRule{
			{Kind: fees.FixedFeeRange, Min: d("0"), Max: d("79"), Amount: d("6")},
			{Kind: fees.FixedFeeRangePercentage, Min: d("79.01"), Max: d("100000"), PercentRate: d("5")},
		},
	}
	tiered.CardFeeRate, tiered.DiscountProvisionRate = decimal.Zero, decimal.Zero

	withShipping := scenario()
	withShipping.Fees.Shipping = &fees.ShippingRule{Cost: d("15"), FreeShippingThreshold: decimal.NewNullDecimal(d("500"))}

	cases := map[string]SuggestedInput{
		"constant fee":   scenario(),
		"tiered fee":     tiered,
		"paid shipping":  withShipping,
		"zero margin":    func() SuggestedInput { in := scenario(); in.DesiredMarginRate = decimal.Zero; return in }(),
		"high card rate": func() SuggestedInput { in := scenario(); in.CardFeeRate = d("9.99"); return in }(),
	}
	e := NewEngine(TaxModeNone, 0)
	tolerance := d("0.000001")
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			r, err := e.SuggestedPrice(in)
			if err != nil {
				t.Fatalf("suggested: %v", err)
			}
			if !r.Converged {
				t.Fatalf("expected convergence")
			}
			back, err := e.RealizedMargin(realizedFrom(in, r.SuggestedPrice))
			if err != nil {
				t.Fatalf("realized: %v", err)
			}
			if back.MarginPercentage.Sub(in.DesiredMarginRate).Abs().GreaterThan(tolerance) {
				t.Fatalf("expected realized margin %s, got %s", in.DesiredMarginRate, back.MarginPercentage)
			}
		})
	}
}

func TestSuggestedPrice_MonotonicInDesiredMargin(t *testing.T) {
	e := NewEngine(TaxModeNone, 0)
	prev := decimal.Zero
	for _, m := range []string{"0", "10", "20", "30", "60"} {
		in := scenario()
		in.DesiredMarginRate = d(m)
		r, err := e.SuggestedPrice(in)
		if err != nil {
			t.Fatalf("margin %s: %v", m, err)
		}
		if !r.SuggestedPrice.GreaterThan(prev) {
			t.Fatalf("margin %s: price %s not above previous %s", m, r.SuggestedPrice, prev)
		}
		prev = r.SuggestedPrice
	}
}

func TestSuggestedPrice_UnreachableMargin(t *testing.T) {
	e := NewEngine(TaxModeNone, 0)
	cases := []struct {
		name                             string
		commission, card, discount, marg string
	}{
		{"sum 105", "50", "30", "10", "15"},
		{"sum exactly 100", "50", "30", "10", "10"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := scenario()
			in.Fees.CommissionRate = d(tc.commission)
			in.CardFeeRate, in.DiscountProvisionRate, in.DesiredMarginRate = d(tc.card), d(tc.discount), d(tc.marg)
			if _, err := e.SuggestedPrice(in); !errors.Is(err, ErrMarginUnreachable) {
				t.Fatalf("expected ErrMarginUnreachable, got %v", err)
			}
		})
	}
}

func TestSuggestedPrice_PercentFeePushesRatesOverHundred(t *testing.T) {
	in := scenario()
	in.Fees.CommissionRate = d("40")
	in.DesiredMarginRate = d("50")
	in.Fees.FixedFees = []fees.FixedFeeRule{{Kind: fees.FixedFeeRangePercentage, Min: d("0"), Max: d("1000000"), PercentRate: d("10")}}
	if _, err := NewEngine(TaxModeNone, 0).SuggestedPrice(in); !errors.Is(err, ErrMarginUnreachable) {
		t.Fatalf("expected ErrMarginUnreachable, got %v", err)
	}
}

func TestEngine_RejectsInvalidInput(t *testing.T) {
	e := NewEngine(TaxModeNone, 0)

	neg := scenario()
	neg.Cost.CostUnit = d("-1")
	if _, err := e.SuggestedPrice(neg); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("negative cost: expected ErrInvalidInput, got %v", err)
	}

	over := scenario()
	over.CardFeeRate = d("100.5")
	if _, err := e.SuggestedPrice(over); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("card rate over 100: expected ErrInvalidInput, got %v", err)
	}

	for _, p := range []string{"0", "-10"} {
		if _, err := e.RealizedMargin(realizedFrom(scenario(), d(p))); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("practiced price %s: expected ErrInvalidInput, got %v", p, err)
		}
	}
}

func TestEngine_ReportsFirstInvalidRateInFieldOrder(t *testing.T) {
	e := NewEngine(TaxModeNone, 0)
	in := scenario()
	in.CardFeeRate = d("120")
	in.DiscountProvisionRate = d("-1")
	in.DesiredMarginRate = d("150")
	for i := 0; i < 20; i++ {
		_, err := e.SuggestedPrice(in)
		if !errors.Is(err, ErrInvalidInput) || !strings.Contains(err.Error(), "card_fee_rate") {
			t.Fatalf("expected card_fee_rate to be reported first, got %v", err)
		}
	}

	in.Fees.CommissionRate = d("101")
	for i := 0; i < 20; i++ {
		_, err := e.RealizedMargin(realizedFrom(in, d("100")))
		if !errors.Is(err, ErrInvalidInput) || !strings.Contains(err.Error(), "commission_rate") {
			t.Fatalf("expected commission_rate to be reported first, got %v", err)
		}
	}
}

func TestRealizedMargin_FreeShippingBoundary(t *testing.T) {
	in := scenario()
	in.Fees.Shipping = &fees.ShippingRule{Cost: d("20"), FreeShippingThreshold: decimal.NewNullDecimal(d("79"))}
	e := NewEngine(TaxModeNone, 0)

	at, err := e.RealizedMargin(realizedFrom(in, d("79")))
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if !at.ShippingAmount.IsZero() {
		t.Fatalf("expected free shipping at threshold, got %s", at.ShippingAmount)
	}

	below, err := e.RealizedMargin(realizedFrom(in, d("78.99")))
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if !below.ShippingAmount.Equal(d("20")) {
		t.Fatalf("expected full shipping below threshold, got %s", below.ShippingAmount)
	}
}

func TestSuggestedPrice_ConvergesAcrossFeeTiers(t *testing.T) {
	in := SuggestedInput{
		Cost: CostInput{CostUnit: d("50")},
		Fees: FeeInput{
			CommissionRate: d("12"),
			FixedFees: []fees.FixedFeeRule{
				{Kind: fees.FixedFeeRange, Min: d("0"), Max: d("79"), Amount: d("6")},
				{Kind: fees.FixedFeeRangePercentage, Min: d("79.01"), Max: d("100000"), PercentRate: d("5")},
			},
		},
		DesiredMarginRate: d("20"),
	}
	r, err := NewEngine(TaxModeNone, 0).SuggestedPrice(in)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	// naive 73.53 lands in the flat tier, the solved 82.35 moves to the 5% tier,
	// and 50 / (1 - 0.37) = 79.37 stays there.
	if !r.Converged || r.Iterations != 2 {
		t.Fatalf("expected convergence on second pass, got converged=%v iterations=%d", r.Converged, r.Iterations)
	}
	assertRounded(t, "price", r.SuggestedPrice, "79.37")
	assertRounded(t, "percent fee", r.FixedFeeAmount, "3.97")
}

func TestSuggestedPrice_SettlesWhenTiersOscillate(t *testing.T) {
	in := SuggestedInput{
		Cost: CostInput{CostUnit: d("50")},
		Fees: FeeInput{
			CommissionRate: d("12"),
			FixedFees: []fees.FixedFeeRule{
				{Kind: fees.FixedFeeRange, Min: d("0"), Max: d("79"), Amount: d("6")},
				{Kind: fees.FixedFeeRange, Min: d("79.01"), Max: d("100000"), Amount: d("0")},
			},
		},
		DesiredMarginRate: d("20"),
	}
	r, err := NewEngine(TaxModeNone, 5).SuggestedPrice(in)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if r.Converged || r.Iterations != 5 {
		t.Fatalf("expected non-convergence after 5 passes, got converged=%v iterations=%d", r.Converged, r.Iterations)
	}
	// 73.53 and 82.35 alternate; the fee-free tier starts at 79.01 and already clears 20%.
	if !r.SuggestedPrice.Equal(d("79.01")) {
		t.Fatalf("expected tier boundary 79.01, got %s", r.SuggestedPrice)
	}
	if r.MarginPercentage.LessThan(in.DesiredMarginRate) {
		t.Fatalf("expected realized margin >= 20, got %s", r.MarginPercentage)
	}
}

// A non-converged result is pinned to the cheapest tier boundary that clears
// the target, so raising the desired margin inside that band leaves the price flat.
func TestSuggestedPrice_SettledPriceIsFlatAcrossMargins(t *testing.T) {
	for _, margin := range []string{"18", "20", "22", "24"} {
		in := SuggestedInput{
			Cost: CostInput{CostUnit: d("50")},
			Fees: FeeInput{
				CommissionRate: d("12"),
				FixedFees: []fees.FixedFeeRule{
					{Kind: fees.FixedFeeRange, Min: d("0"), Max: d("79"), Amount: d("6")},
					{Kind: fees.FixedFeeRange, Min: d("79.01"), Max: d("100000"), Amount: d("0")},
				},
			},
			DesiredMarginRate: d(margin),
		}
		r, err := NewEngine(TaxModeNone, 5).SuggestedPrice(in)
		if err != nil {
			t.Fatalf("margin %s: unexpected err: %v", margin, err)
		}
		if r.Converged {
			t.Fatalf("margin %s: expected non-convergence", margin)
		}
		if !r.SuggestedPrice.Equal(d("79.01")) {
			t.Fatalf("margin %s: expected 79.01, got %s", margin, r.SuggestedPrice)
		}
		assertRounded(t, "margin "+margin, r.MarginPercentage, "24.72")
	}
}

func TestSuggestedPrice_SettlesOnFreeShippingThreshold(t *testing.T) {
	in := SuggestedInput{
		Cost: CostInput{CostUnit: d("50")},
		Fees: FeeInput{
			CommissionRate: d("12"),
			Shipping:       &fees.ShippingRule{Cost: d("20"), FreeShippingThreshold: decimal.NewNullDecimal(d("79"))},
		},
		DesiredMarginRate: d("20"),
	}
	r, err := NewEngine(TaxModeNone, 0).SuggestedPrice(in)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if r.Converged {
		t.Fatalf("expected shipping to oscillate")
	}
	if !r.SuggestedPrice.Equal(d("79")) || !r.ShippingAmount.IsZero() {
		t.Fatalf("expected threshold price with free shipping, got %s shipping %s", r.SuggestedPrice, r.ShippingAmount)
	}
}

func TestEngine_TaxModes(t *testing.T) {
	in := scenario()
	in.Cost.TaxRate = d("10")

	none, err := NewEngine(TaxModeNone, 0).SuggestedPrice(in)
	if err != nil {
		t.Fatalf("none: %v", err)
	}
	assertRounded(t, "tax ignored", none.SuggestedPrice, "100.83")

	onCost, err := NewEngine(TaxModeOnCost, 0).SuggestedPrice(in)
	if err != nil {
		t.Fatalf("on_cost: %v", err)
	}
	// 10% of cost_unit 50 is added to cost: (60 + 6) / 0.605
	assertRounded(t, "tax on cost total", onCost.TotalCost, "60")
	assertRounded(t, "tax on cost price", onCost.SuggestedPrice, "109.09")

	onPrice, err := NewEngine(TaxModeOnPrice, 0).SuggestedPrice(in)
	if err != nil {
		t.Fatalf("on_price: %v", err)
	}
	// 10% of price joins the denominator: 61 / 0.505
	assertRounded(t, "tax on price", onPrice.SuggestedPrice, "120.79")

	back, err := NewEngine(TaxModeOnPrice, 0).RealizedMargin(realizedFrom(in, onPrice.SuggestedPrice))
	if err != nil {
		t.Fatalf("realized: %v", err)
	}
	if back.MarginPercentage.Sub(d("20")).Abs().GreaterThan(d("0.000001")) {
		t.Fatalf("expected 20%% back with tax on price, got %s", back.MarginPercentage)
	}
}

func TestParseTaxMode(t *testing.T) {
	if m, err := ParseTaxMode(""); err != nil || m != TaxModeNone {
		t.Fatalf("expected default none, got %q %v", m, err)
	}
	if _, err := ParseTaxMode("on_profit"); err == nil {
		t.Fatalf("expected error for unknown mode")
	}
}
