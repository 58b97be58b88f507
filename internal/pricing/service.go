package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"marketplace-pricing/internal/catalog"
	"marketplace-pricing/internal/fees"
	"marketplace-pricing/pkg/logger"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// Params are the user-supplied percentages of a forward calculation.
type Params struct {
	CardFeeRate           decimal.Decimal `json:"card_fee_rate"`
	DiscountProvisionRate decimal.Decimal `json:"discount_provision_rate"`
	DesiredMarginRate     decimal.Decimal `json:"desired_margin_rate"`
}

// CatalogReader supplies product costs.
type CatalogReader interface {
	GetProduct(ctx context.Context, tenantID, productID string) (catalog.Product, error)
}

// Repository stores calculations, unique per (tenant_id, product_id, marketplace_id).
type Repository interface {
	// Upsert overwrites any calculation with the same key; last write wins.
	Upsert(ctx context.Context, c Calculation) (Calculation, error)
	Get(ctx context.Context, tenantID, productID, marketplaceID string) (Calculation, error)
	List(ctx context.Context, tenantID string, f ListFilter) ([]Calculation, error)
}

type ListFilter struct {
	MarketplaceID string
	Limit         int
}

type Auditor interface {
	LogCalculationSaved(ctx context.Context, tenantID, productID, marketplaceID, calculationID, metadata string) error
	LogBulkRun(ctx context.Context, tenantID, message, metadata string) error
}

// SlotLimiter caps concurrent bulk runs per tenant.
type SlotLimiter interface {
	Acquire(ctx context.Context, id string) (bool, error)
	Release(ctx context.Context, id string) error
}

type Options struct {
	Engine          Engine
	BulkConcurrency int
	Slots           SlotLimiter
	Audit           Auditor
}

// Service loads pricing inputs for a tenant and runs the engine on them.
//
// Tenancy invariant: every lookup is filtered by tenant_id.
type Service struct {
	engine  Engine
	catalog CatalogReader
	fees    fees.Source
	repo    Repository

	audit           Auditor
	slots           SlotLimiter
	bulkConcurrency int

	clock func() time.Time
}

const (
	defaultBulkConcurrency = 8
	maxBulkItems           = 1000
)

func NewService(cat CatalogReader, src fees.Source, repo Repository, opts Options) *Service {
	if opts.BulkConcurrency <= 0 {
		opts.BulkConcurrency = defaultBulkConcurrency
	}
	return &Service{
		engine:          opts.Engine,
		catalog:         cat,
		fees:            src,
		repo:            repo,
		audit:           opts.Audit,
		slots:           opts.Slots,
		bulkConcurrency: opts.BulkConcurrency,
		clock:           time.Now,
	}
}

// Pair identifies one product listed on one marketplace.
type Pair struct {
	ProductID     string `json:"product_id"`
	MarketplaceID string `json:"marketplace_id"`
}

func (p Pair) validate() error {
	if p.ProductID == "" || p.MarketplaceID == "" {
		return fmt.Errorf("%w: product_id and marketplace_id required", ErrInvalidInput)
	}
	return nil
}

type inputs struct {
	cost CostInput
	fees FeeInput
}

func (s *Service) load(ctx context.Context, tenantID string, pair Pair) (inputs, error) {
	if tenantID == "" {
		return inputs{}, fmt.Errorf("%w: tenant_id required", ErrInvalidInput)
	}
	if err := pair.validate(); err != nil {
		return inputs{}, err
	}

	p, err := s.catalog.GetProduct(ctx, tenantID, pair.ProductID)
	if err != nil {
		return inputs{}, fmt.Errorf("product %s: %w", pair.ProductID, err)
	}
	st, err := s.fees.FeeStructure(ctx, tenantID, pair.MarketplaceID)
	if err != nil {
		return inputs{}, fmt.Errorf("marketplace %s: %w", pair.MarketplaceID, err)
	}
	rate, err := fees.ResolveCommission(st.Commissions, pair.MarketplaceID, p.CategoryKey())
	if err != nil {
		return inputs{}, err
	}
	if st.Shipping == nil {
		logger.From(ctx).Warn("no shipping rule, shipping resolves to zero",
			"marketplace_id", pair.MarketplaceID, "product_id", pair.ProductID)
	}

	return inputs{
		cost: CostInput{CostUnit: p.CostUnit, PackagingCost: p.PackagingCost, TaxRate: p.TaxRate},
		fees: FeeInput{CommissionRate: rate, FixedFees: st.FixedFees, Shipping: st.Shipping},
	}, nil
}

// Suggest computes the suggested price for a stored product and marketplace without saving.
func (s *Service) Suggest(ctx context.Context, tenantID string, pair Pair, p Params) (Result, error) {
	in, err := s.load(ctx, tenantID, pair)
	if err != nil {
		return Result{}, err
	}
	return s.suggest(ctx, pair, in, p)
}

func (s *Service) suggest(ctx context.Context, pair Pair, in inputs, p Params) (Result, error) {
	r, err := s.engine.SuggestedPrice(SuggestedInput{
		Cost:                  in.cost,
		Fees:                  in.fees,
		CardFeeRate:           p.CardFeeRate,
		DiscountProvisionRate: p.DiscountProvisionRate,
		DesiredMarginRate:     p.DesiredMarginRate,
	})
	if err != nil {
		return Result{}, err
	}
	if !r.Converged {
		logger.From(ctx).Warn("fee tiers did not settle, using cheapest price meeting the margin",
			"product_id", pair.ProductID,
			"marketplace_id", pair.MarketplaceID,
			"iterations", r.Iterations,
			"price", r.SuggestedPrice.StringFixed(2),
			"margin_percentage", r.MarginPercentage.StringFixed(2),
		)
	}
	return r, nil
}

// Realize computes the margin left at a practiced price without saving.
func (s *Service) Realize(ctx context.Context, tenantID string, pair Pair, cardFeeRate, discountProvisionRate, practicedPrice decimal.Decimal) (RealizedResult, error) {
	in, err := s.load(ctx, tenantID, pair)
	if err != nil {
		return RealizedResult{}, err
	}
	return s.engine.RealizedMargin(RealizedInput{
		Cost:                  in.cost,
		Fees:                  in.fees,
		CardFeeRate:           cardFeeRate,
		DiscountProvisionRate: discountProvisionRate,
		PracticedPrice:        practicedPrice,
	})
}

// SaveRequest computes and stores a calculation. PracticedPrice, when set, also fills the
// realized columns.
type SaveRequest struct {
	Pair
	Params
	PracticedPrice *decimal.Decimal
}

// Save computes a calculation and upserts it under (tenant, product, marketplace).
func (s *Service) Save(ctx context.Context, tenantID string, req SaveRequest) (Calculation, error) {
	c, _, err := s.compute(ctx, tenantID, req)
	if err != nil {
		return Calculation{}, err
	}
	saved, err := s.repo.Upsert(ctx, c)
	if err != nil {
		return Calculation{}, err
	}

	if s.audit != nil {
		meta, _ := json.Marshal(map[string]string{
			"preco_sugerido":    saved.PrecoSugerido.StringFixed(2),
			"margem_percentual": saved.MargemPercentual.StringFixed(2),
		})
		if err := s.audit.LogCalculationSaved(ctx, tenantID, req.ProductID, req.MarketplaceID, saved.ID, string(meta)); err != nil {
			logger.From(ctx).Warn("audit append failed", "calculation_id", saved.ID, "err", err)
		}
	}
	return saved, nil
}

// compute returns the stored shape alongside the unrounded result it came from.
func (s *Service) compute(ctx context.Context, tenantID string, req SaveRequest) (Calculation, Result, error) {
	in, err := s.load(ctx, tenantID, req.Pair)
	if err != nil {
		return Calculation{}, Result{}, err
	}
	r, err := s.suggest(ctx, req.Pair, in, req.Params)
	if err != nil {
		return Calculation{}, Result{}, err
	}

	var realized *RealizedResult
	if req.PracticedPrice != nil {
		rr, err := s.engine.RealizedMargin(RealizedInput{
			Cost:                  in.cost,
			Fees:                  in.fees,
			CardFeeRate:           req.CardFeeRate,
			DiscountProvisionRate: req.DiscountProvisionRate,
			PracticedPrice:        *req.PracticedPrice,
		})
		if err != nil {
			return Calculation{}, Result{}, err
		}
		realized = &rr
	}

	c := newCalculation(tenantID, req.ProductID, req.MarketplaceID, req.Params, r, realized)
	c.UpdatedAt = s.clock().UTC()
	return c, r, nil
}

func (s *Service) Get(ctx context.Context, tenantID string, pair Pair) (Calculation, error) {
	if tenantID == "" {
		return Calculation{}, fmt.Errorf("%w: tenant_id required", ErrInvalidInput)
	}
	if err := pair.validate(); err != nil {
		return Calculation{}, err
	}
	return s.repo.Get(ctx, tenantID, pair.ProductID, pair.MarketplaceID)
}

func (s *Service) List(ctx context.Context, tenantID string, f ListFilter) ([]Calculation, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenant_id required", ErrInvalidInput)
	}
	if f.Limit <= 0 || f.Limit > 500 {
		f.Limit = 500
	}
	return s.repo.List(ctx, tenantID, f)
}

// BulkRequest prices many pairs with the same parameters.
type BulkRequest struct {
	Pairs   []Pair
	Params  Params
	Persist bool
}

// BulkItem is the outcome of one pair. Exactly one of Result or Error is set.
type BulkItem struct {
	Pair
	Result      *Result      `json:"result,omitempty"`
	Calculation *Calculation `json:"calculation,omitempty"`
	Error       string       `json:"error,omitempty"`
	Code        string       `json:"code,omitempty"`
}

type BulkResult struct {
	Items     []BulkItem `json:"items"`
	Succeeded int        `json:"succeeded"`
	Failed    int        `json:"failed"`
}

// Bulk prices every pair concurrently with a bounded worker count.
// A failing pair is reported in its item and never aborts the batch.
func (s *Service) Bulk(ctx context.Context, tenantID string, req BulkRequest) (BulkResult, error) {
	if tenantID == "" {
		return BulkResult{}, fmt.Errorf("%w: tenant_id required", ErrInvalidInput)
	}
	if len(req.Pairs) == 0 || len(req.Pairs) > maxBulkItems {
		return BulkResult{}, fmt.Errorf("%w: between 1 and %d pairs required", ErrInvalidInput, maxBulkItems)
	}

	if s.slots != nil {
		ok, err := s.slots.Acquire(ctx, tenantID)
		if err != nil {
			return BulkResult{}, err
		}
		if !ok {
			return BulkResult{}, ErrBulkBusy
		}
		defer func() {
			// Release on a fresh context so a canceled request still frees its slot.
			rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
			defer cancel()
			if err := s.slots.Release(rctx, tenantID); err != nil {
				logger.From(ctx).Warn("bulk slot release failed", "err", err)
			}
		}()
	}

	items := make([]BulkItem, len(req.Pairs))
	var g errgroup.Group
	g.SetLimit(s.bulkConcurrency)
	for i, pair := range req.Pairs {
		i, pair := i, pair
		g.Go(func() error {
			items[i] = s.bulkItem(ctx, tenantID, pair, req)
			return nil
		})
	}
	_ = g.Wait()

	out := BulkResult{Items: items}
	log := logger.From(ctx)
	for _, it := range items {
		if it.Error != "" {
			out.Failed++
			log.Warn("bulk item failed",
				"product_id", it.ProductID,
				"marketplace_id", it.MarketplaceID,
				"code", it.Code,
				"err", it.Error,
			)
			continue
		}
		out.Succeeded++
	}

	if s.audit != nil && req.Persist {
		meta, _ := json.Marshal(map[string]int{"succeeded": out.Succeeded, "failed": out.Failed})
		if err := s.audit.LogBulkRun(ctx, tenantID, "bulk pricing run", string(meta)); err != nil {
			log.Warn("audit append failed", "err", err)
		}
	}
	log.Info("bulk pricing finished", "pairs", len(items), "succeeded", out.Succeeded, "failed", out.Failed)
	return out, nil
}

func (s *Service) bulkItem(ctx context.Context, tenantID string, pair Pair, req BulkRequest) BulkItem {
	it := BulkItem{Pair: pair}
	fail := func(err error) BulkItem {
		it.Error, it.Code = err.Error(), ErrorCode(err)
		return it
	}
	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	c, r, err := s.compute(ctx, tenantID, SaveRequest{Pair: pair, Params: req.Params})
	if err != nil {
		return fail(err)
	}
	if req.Persist {
		saved, err := s.repo.Upsert(ctx, c)
		if err != nil {
			return fail(err)
		}
		it.Calculation = &saved
	}
	it.Result = &r
	return it
}
