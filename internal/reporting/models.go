package reporting

import (
	"time"

	"github.com/shopspring/decimal"
)

type TimeRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// MarginSummaryRequest asks for margin health over saved calculations.
// Tenant isolation: TenantID is required. Range is optional and filters on updated_at.
type MarginSummaryRequest struct {
	TenantID      string    `json:"tenant_id"`
	MarketplaceID string    `json:"marketplace_id,omitempty"`
	Range         TimeRange `json:"range"`
}

type MarginSummary struct {
	TenantID      string `json:"tenant_id"`
	MarketplaceID string `json:"marketplace_id,omitempty"`

	Calculations          int             `json:"calculations"`
	AverageSuggestedPrice decimal.Decimal `json:"average_suggested_price"`
	AverageTargetMargin   decimal.Decimal `json:"average_target_margin"`

	// Realized figures only count calculations with a practiced price.
	Realized              int             `json:"realized"`
	AverageRealizedMargin decimal.Decimal `json:"average_realized_margin"`
	BelowTarget           int             `json:"below_target"`
	NegativeMargin        int             `json:"negative_margin"`
}
