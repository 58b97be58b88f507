package fees

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func strptr(s string) *string { return &s }

func TestFraction(t *testing.T) {
	if got := Fraction(d("14")); !got.Equal(d("0.14")) {
		t.Fatalf("expected 0.14, got %s", got)
	}
	if got := Fraction(d("3.5")); !got.Equal(d("0.035")) {
		t.Fatalf("expected 0.035, got %s", got)
	}
	if got := Fraction(d("100")); !got.Equal(decimal.NewFromInt(1)) {
		t.Fatalf("expected 1, got %s", got)
	}
}

func TestResolveFixedFee(t *testing.T) {
	constant := FixedFeeRule{Kind: FixedFeeConstant, Amount: d("6")}
	low := FixedFeeRule{Kind: FixedFeeRange, Min: d("0"), Max: d("78.99"), Amount: d("6.25")}
	high := FixedFeeRule{Kind: FixedFeeRangePercentage, Min: d("79"), Max: d("1000"), PercentRate: d("5")}

	tests := []struct {
		name      string
		rules     []FixedFeeRule
		price     string
		wantFee   string
		wantIndex int
	}{
		{name: "constant always matches", rules: []FixedFeeRule{constant}, price: "500", wantFee: "6", wantIndex: 0},
		{name: "no rules is zero", rules: nil, price: "10", wantFee: "0", wantIndex: -1},
		{name: "outside every range is zero", rules: []FixedFeeRule{low, high}, price: "1000.01", wantFee: "0", wantIndex: -1},
		{name: "range lower bound inclusive", rules: []FixedFeeRule{low, high}, price: "0", wantFee: "6.25", wantIndex: 0},
		{name: "range upper bound inclusive", rules: []FixedFeeRule{low, high}, price: "78.99", wantFee: "6.25", wantIndex: 0},
		{name: "percentage of price", rules: []FixedFeeRule{low, high}, price: "100", wantFee: "5", wantIndex: 1},
		{name: "range beats constant", rules: []FixedFeeRule{constant, low}, price: "50", wantFee: "6.25", wantIndex: 1},
		{name: "constant used outside range", rules: []FixedFeeRule{constant, low}, price: "80", wantFee: "6", wantIndex: 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ResolveFixedFee(tc.rules, d(tc.price))
			if err != nil {
				t.Fatalf("unexpected err: %v", err)
			}
			if !got.Amount.Equal(d(tc.wantFee)) {
				t.Fatalf("expected fee %s, got %s", tc.wantFee, got.Amount)
			}
			if got.Index != tc.wantIndex {
				t.Fatalf("expected index %d, got %d", tc.wantIndex, got.Index)
			}
		})
	}
}

func TestResolveFixedFee_OverlapTieBreak(t *testing.T) {
	wide := FixedFeeRule{Kind: FixedFeeRange, Min: d("0"), Max: d("200"), Amount: d("10")}
	narrow := FixedFeeRule{Kind: FixedFeeRange, Min: d("50"), Max: d("100"), Amount: d("4")}
	sameWidthLater := FixedFeeRule{Kind: FixedFeeRange, Min: d("40"), Max: d("90"), Amount: d("7")}

	got, err := ResolveFixedFee([]FixedFeeRule{wide, narrow}, d("75"))
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if got.Index != 1 {
		t.Fatalf("expected narrowest range, got index %d", got.Index)
	}

	got, _ = ResolveFixedFee([]FixedFeeRule{narrow, sameWidthLater}, d("75"))
	if got.Index != 1 || !got.Amount.Equal(d("7")) {
		t.Fatalf("expected lower min to win on equal width, got %+v", got)
	}

	twin := narrow
	twin.Amount = d("99")
	got, _ = ResolveFixedFee([]FixedFeeRule{narrow, twin}, d("75"))
	if got.Index != 0 {
		t.Fatalf("expected first rule on identical ranges, got index %d", got.Index)
	}
}

func TestResolveFixedFee_RejectsNegativePrice(t *testing.T) {
	if _, err := ResolveFixedFee(nil, d("-1")); !errors.Is(err, ErrNegativePrice) {
		t.Fatalf("expected ErrNegativePrice, got %v", err)
	}
}

func TestResolveShipping_FreeThresholdInclusive(t *testing.T) {
	rule := &ShippingRule{Cost: d("19.90"), FreeShippingThreshold: decimal.NewNullDecimal(d("79"))}

	if got := ResolveShipping(rule, d("79")); !got.IsZero() {
		t.Fatalf("expected free shipping at threshold, got %s", got)
	}
	if got := ResolveShipping(rule, d("78.99")); !got.Equal(d("19.90")) {
		t.Fatalf("expected full shipping below threshold, got %s", got)
	}
	if got := ResolveShipping(nil, d("10")); !got.IsZero() {
		t.Fatalf("expected zero without rule, got %s", got)
	}

	noThreshold := &ShippingRule{Cost: d("12")}
	if got := ResolveShipping(noThreshold, d("100000")); !got.Equal(d("12")) {
		t.Fatalf("expected shipping without threshold, got %s", got)
	}
}

func TestResolveCommission(t *testing.T) {
	commissions := []Commission{
		{MarketplaceID: "ml", CategoryID: nil, Rate: d("14")},
		{MarketplaceID: "ml", CategoryID: strptr("electronics"), Rate: d("11")},
		{MarketplaceID: "shopee", CategoryID: nil, Rate: d("20")},
	}

	got, err := ResolveCommission(commissions, "ml", "electronics")
	if err != nil || !got.Equal(d("11")) {
		t.Fatalf("expected category rate 11, got %s (%v)", got, err)
	}
	got, err = ResolveCommission(commissions, "ml", "toys")
	if err != nil || !got.Equal(d("14")) {
		t.Fatalf("expected default rate 14, got %s (%v)", got, err)
	}
	got, err = ResolveCommission(commissions, "ml", "")
	if err != nil || !got.Equal(d("14")) {
		t.Fatalf("expected default rate 14 without category, got %s (%v)", got, err)
	}
}

func TestResolveCommission_DefaultOnlyCoversEveryCategory(t *testing.T) {
	commissions := []Commission{{MarketplaceID: "ml", Rate: d("16.5")}}
	for _, cat := range []string{"", "a", "b", "electronics"} {
		got, err := ResolveCommission(commissions, "ml", cat)
		if err != nil {
			t.Fatalf("category %q: unexpected err: %v", cat, err)
		}
		if !got.Equal(d("16.5")) {
			t.Fatalf("category %q: expected 16.5, got %s", cat, got)
		}
	}
}

func TestResolveCommission_MissingIsConfigurationError(t *testing.T) {
	commissions := []Commission{{MarketplaceID: "ml", CategoryID: strptr("electronics"), Rate: d("11")}}

	_, err := ResolveCommission(commissions, "ml", "toys")
	if !errors.Is(err, ErrNoCommission) {
		t.Fatalf("expected ErrNoCommission, got %v", err)
	}
	if !errors.Is(err, ErrConfiguration) {
		t.Fatalf("expected configuration error class, got %v", err)
	}

	_, err = ResolveCommission(commissions, "other", "electronics")
	if !errors.Is(err, ErrNoCommission) {
		t.Fatalf("expected ErrNoCommission for another marketplace, got %v", err)
	}
}
