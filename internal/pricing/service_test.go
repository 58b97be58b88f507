package pricing

import (
	"context"
	"errors"
	"sync"
	"testing"

	"marketplace-pricing/internal/catalog"
	"marketplace-pricing/internal/fees"

	"github.com/shopspring/decimal"
)

type fakeAuditor struct {
	mu    sync.Mutex
	saved []string
	bulks int
}

func (f *fakeAuditor) LogCalculationSaved(ctx context.Context, tenantID, productID, marketplaceID, calculationID, metadata string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, calculationID)
	return nil
}

func (f *fakeAuditor) LogBulkRun(ctx context.Context, tenantID, message, metadata string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bulks++
	return nil
}

type fakeSlots struct {
	full     bool
	released int
}

func (f *fakeSlots) Acquire(ctx context.Context, id string) (bool, error) { return !f.full, nil }
func (f *fakeSlots) Release(ctx context.Context, id string) error {
	f.released++
	return nil
}

func strptr(s string) *string { return &s }

func seedCatalog(t *testing.T) *catalog.MemoryRepo {
	t.Helper()
	ctx := context.Background()
	cat := catalog.NewMemoryRepo()

	if _, err := cat.UpsertProduct(ctx, catalog.Product{ID: "p1", TenantID: "t1", Name: "Mug", CostUnit: d("50"), PackagingCost: d("5")}); err != nil {
		t.Fatalf("seed product: %v", err)
	}
	err := cat.ReplaceMarketplace(ctx,
		catalog.Marketplace{ID: "ml", TenantID: "t1", Name: "Mercado Livre"},
		fees.Structure{
			Commissions: []fees.Commission{{Rate: d("14")}},
			FixedFees:   []fees.FixedFeeRule{{Kind: fees.FixedFeeConstant, Amount: d("6")}},
		},
	)
	if err != nil {
		t.Fatalf("seed marketplace: %v", err)
	}
	err = cat.ReplaceMarketplace(ctx,
		catalog.Marketplace{ID: "books-only", TenantID: "t1", Name: "Bookstore"},
		fees.Structure{Commissions: []fees.Commission{{CategoryID: strptr("books"), Rate: d("10")}}},
	)
	if err != nil {
		t.Fatalf("seed marketplace: %v", err)
	}
	return cat
}

func referenceParams() Params {
	return Params{CardFeeRate: d("3.5"), DiscountProvisionRate: d("2"), DesiredMarginRate: d("20")}
}

func newTestService(t *testing.T, opts Options) (*Service, *MemoryRepo) {
	t.Helper()
	cat := seedCatalog(t)
	repo := NewMemoryRepo()
	return NewService(cat, cat, repo, opts), repo
}

func TestService_SaveUpsertsRoundedCalculation(t *testing.T) {
	aud := &fakeAuditor{}
	svc, _ := newTestService(t, Options{Audit: aud})
	ctx := context.Background()
	pair := Pair{ProductID: "p1", MarketplaceID: "ml"}

	first, err := svc.Save(ctx, "t1", SaveRequest{Pair: pair, Params: referenceParams()})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if !first.PrecoSugerido.Equal(d("100.83")) || !first.MargemUnitaria.Equal(d("20.17")) {
		t.Fatalf("unexpected stored values: %+v", first)
	}
	if !first.CustoTotal.Equal(d("55")) || !first.ValorFixo.Equal(d("6")) || !first.MargemPercentual.Equal(d("20")) {
		t.Fatalf("unexpected stored breakdown: %+v", first)
	}
	if first.PrecoPraticado.Valid {
		t.Fatalf("expected realized fields to stay null")
	}

	practiced := d("90")
	p := referenceParams()
	p.DesiredMarginRate = d("25")
	second, err := svc.Save(ctx, "t1", SaveRequest{Pair: pair, Params: p, PracticedPrice: &practiced})
	if err != nil {
		t.Fatalf("resave: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("expected upsert to keep id %s, got %s", first.ID, second.ID)
	}
	if !second.MargemDesejada.Equal(d("25")) {
		t.Fatalf("expected last write to win, got %s", second.MargemDesejada)
	}
	if !second.MargemUnitariaReal.Valid || !second.MargemUnitariaReal.Decimal.Equal(d("11.45")) {
		t.Fatalf("unexpected realized margin: %+v", second.MargemUnitariaReal)
	}
	if !second.MargemPercentualReal.Decimal.Equal(d("12.72")) || !second.ComissaoReal.Decimal.Equal(d("12.6")) {
		t.Fatalf("unexpected realized breakdown: %+v", second)
	}

	got, err := svc.Get(ctx, "t1", pair)
	if err != nil || got.ID != first.ID {
		t.Fatalf("get: %+v %v", got, err)
	}
	list, err := svc.List(ctx, "t1", ListFilter{})
	if err != nil || len(list) != 1 {
		t.Fatalf("expected one calculation per key, got %d (%v)", len(list), err)
	}
	if len(aud.saved) != 2 {
		t.Fatalf("expected 2 audit events, got %d", len(aud.saved))
	}
}

func TestService_TenantIsolation(t *testing.T) {
	svc, _ := newTestService(t, Options{})
	ctx := context.Background()
	pair := Pair{ProductID: "p1", MarketplaceID: "ml"}

	if _, err := svc.Save(ctx, "t1", SaveRequest{Pair: pair, Params: referenceParams()}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := svc.Get(ctx, "t2", pair); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found for other tenant, got %v", err)
	}
	if _, err := svc.Suggest(ctx, "t2", pair, referenceParams()); !errors.Is(err, catalog.ErrNotFound) {
		t.Fatalf("expected catalog not found for other tenant, got %v", err)
	}
}

func TestService_ErrorTaxonomy(t *testing.T) {
	svc, _ := newTestService(t, Options{})
	ctx := context.Background()

	cases := []struct {
		name   string
		pair   Pair
		params Params
		code   string
	}{
		{"unknown product", Pair{ProductID: "nope", MarketplaceID: "ml"}, referenceParams(), CodeNotFound},
		{"unknown marketplace", Pair{ProductID: "p1", MarketplaceID: "nope"}, referenceParams(), CodeNotFound},
		{"no commission for category", Pair{ProductID: "p1", MarketplaceID: "books-only"}, referenceParams(), CodeConfiguration},
		{"rates over 100", Pair{ProductID: "p1", MarketplaceID: "ml"}, Params{CardFeeRate: d("50"), DiscountProvisionRate: d("20"), DesiredMarginRate: d("20")}, CodeMarginUnreachable},
		{"rate out of range", Pair{ProductID: "p1", MarketplaceID: "ml"}, Params{DesiredMarginRate: d("120")}, CodeInvalidInput},
		{"missing ids", Pair{}, referenceParams(), CodeInvalidInput},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Suggest(ctx, "t1", tc.pair, tc.params)
			if got := ErrorCode(err); got != tc.code {
				t.Fatalf("expected %s, got %s (%v)", tc.code, got, err)
			}
		})
	}

	_, err := svc.Suggest(ctx, "t1", Pair{ProductID: "p1", MarketplaceID: "books-only"}, referenceParams())
	if !errors.Is(err, fees.ErrNoCommission) {
		t.Fatalf("expected ErrNoCommission, got %v", err)
	}
}

func TestService_Realize(t *testing.T) {
	svc, _ := newTestService(t, Options{})
	r, err := svc.Realize(context.Background(), "t1", Pair{ProductID: "p1", MarketplaceID: "ml"}, d("3.5"), d("2"), d("90"))
	if err != nil {
		t.Fatalf("realize: %v", err)
	}
	if !r.UnitMargin.Round(2).Equal(d("11.45")) {
		t.Fatalf("expected 11.45, got %s", r.UnitMargin)
	}
}

func TestService_BulkCollectsPerItemFailures(t *testing.T) {
	aud := &fakeAuditor{}
	slots := &fakeSlots{}
	svc, repo := newTestService(t, Options{Audit: aud, Slots: slots, BulkConcurrency: 2})

	res, err := svc.Bulk(context.Background(), "t1", BulkRequest{
		Pairs: []Pair{
			{ProductID: "p1", MarketplaceID: "ml"},
			{ProductID: "ghost", MarketplaceID: "ml"},
			{ProductID: "p1", MarketplaceID: "books-only"},
		},
		Params:  referenceParams(),
		Persist: true,
	})
	if err != nil {
		t.Fatalf("bulk: %v", err)
	}
	if res.Succeeded != 1 || res.Failed != 2 || len(res.Items) != 3 {
		t.Fatalf("unexpected counts: %+v", res)
	}
	if res.Items[0].Result == nil || res.Items[0].Calculation == nil || !res.Items[0].Result.SuggestedPrice.Round(2).Equal(d("100.83")) {
		t.Fatalf("unexpected first item: %+v", res.Items[0])
	}
	if res.Items[1].Code != CodeNotFound || res.Items[2].Code != CodeConfiguration {
		t.Fatalf("unexpected codes: %s, %s", res.Items[1].Code, res.Items[2].Code)
	}

	stored, _ := repo.List(context.Background(), "t1", ListFilter{})
	if len(stored) != 1 {
		t.Fatalf("expected only the successful pair persisted, got %d", len(stored))
	}
	if aud.bulks != 1 || slots.released != 1 {
		t.Fatalf("expected one bulk audit and slot release, got %d / %d", aud.bulks, slots.released)
	}
}

func TestService_BulkWithoutPersistStoresNothing(t *testing.T) {
	svc, repo := newTestService(t, Options{})
	res, err := svc.Bulk(context.Background(), "t1", BulkRequest{
		Pairs:  []Pair{{ProductID: "p1", MarketplaceID: "ml"}},
		Params: referenceParams(),
	})
	if err != nil || res.Succeeded != 1 {
		t.Fatalf("bulk: %+v %v", res, err)
	}
	if res.Items[0].Calculation != nil {
		t.Fatalf("expected no calculation without persist")
	}
	stored, _ := repo.List(context.Background(), "t1", ListFilter{})
	if len(stored) != 0 {
		t.Fatalf("expected nothing stored, got %d", len(stored))
	}
}

func TestService_BulkRejectsWhenTenantSlotsTaken(t *testing.T) {
	svc, _ := newTestService(t, Options{Slots: &fakeSlots{full: true}})
	_, err := svc.Bulk(context.Background(), "t1", BulkRequest{
		Pairs:  []Pair{{ProductID: "p1", MarketplaceID: "ml"}},
		Params: referenceParams(),
	})
	if !errors.Is(err, ErrBulkBusy) {
		t.Fatalf("expected ErrBulkBusy, got %v", err)
	}
}

func TestService_BulkRequiresPairs(t *testing.T) {
	svc, _ := newTestService(t, Options{})
	if _, err := svc.Bulk(context.Background(), "t1", BulkRequest{Params: referenceParams()}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestNewCalculation_LeavesRealizedNull(t *testing.T) {
	c := newCalculation("t1", "p1", "ml", referenceParams(), Result{SuggestedPrice: d("100.826446")}, nil)
	if !c.PrecoSugerido.Equal(d("100.83")) {
		t.Fatalf("expected cents rounding, got %s", c.PrecoSugerido)
	}
	if c.PrecoPraticado.Valid || c.MargemPercentualReal.Valid {
		t.Fatalf("expected null realized fields")
	}
	if !c.TaxaCartao.Equal(decimal.RequireFromString("3.5")) {
		t.Fatalf("expected params stored, got %s", c.TaxaCartao)
	}
}
