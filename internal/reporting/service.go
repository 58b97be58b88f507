package reporting

import (
	"context"
	"errors"

	"marketplace-pricing/internal/pricing"

	"github.com/shopspring/decimal"
)

var ErrInvalidRequest = errors.New("reporting: invalid request")

// Repository lists saved calculations. Implementations must filter by tenant_id.
type Repository interface {
	List(ctx context.Context, tenantID string, f pricing.ListFilter) ([]pricing.Calculation, error)
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service { return &Service{repo: repo} }

func (s *Service) MarginSummary(ctx context.Context, req MarginSummaryRequest) (MarginSummary, error) {
	if req.TenantID == "" {
		return MarginSummary{}, ErrInvalidRequest
	}
	if !req.Range.To.IsZero() && !req.Range.To.After(req.Range.From) {
		return MarginSummary{}, ErrInvalidRequest
	}
	if s.repo == nil {
		return MarginSummary{}, errors.New("reporting: repository not configured")
	}

	rows, err := s.repo.List(ctx, req.TenantID, pricing.ListFilter{MarketplaceID: req.MarketplaceID})
	if err != nil {
		return MarginSummary{}, err
	}

	out := MarginSummary{TenantID: req.TenantID, MarketplaceID: req.MarketplaceID}
	var priceSum, targetSum, realizedSum decimal.Decimal
	for _, c := range rows {
		if c.TenantID != req.TenantID {
			continue
		}
		if !req.Range.From.IsZero() && c.UpdatedAt.Before(req.Range.From) {
			continue
		}
		if !req.Range.To.IsZero() && !c.UpdatedAt.Before(req.Range.To) {
			continue
		}

		out.Calculations++
		priceSum = priceSum.Add(c.PrecoSugerido)
		targetSum = targetSum.Add(c.MargemDesejada)

		if !c.MargemPercentualReal.Valid {
			continue
		}
		out.Realized++
		realizedSum = realizedSum.Add(c.MargemPercentualReal.Decimal)
		if c.MargemPercentualReal.Decimal.LessThan(c.MargemDesejada) {
			out.BelowTarget++
		}
		if c.MargemUnitariaReal.Valid && c.MargemUnitariaReal.Decimal.IsNegative() {
			out.NegativeMargin++
		}
	}

	if out.Calculations > 0 {
		n := decimal.NewFromInt(int64(out.Calculations))
		out.AverageSuggestedPrice = priceSum.Div(n).Round(2)
		out.AverageTargetMargin = targetSum.Div(n).Round(2)
	}
	if out.Realized > 0 {
		out.AverageRealizedMargin = realizedSum.Div(decimal.NewFromInt(int64(out.Realized))).Round(2)
	}
	return out, nil
}
