package catalog

import (
	"time"

	"github.com/shopspring/decimal"
)

// Catalog models are tenant-scoped (tenant_id required everywhere).
// Amounts are currency values; rates are percentages (0–100).

// Product carries the cost side of pricing.
type Product struct {
	ID       string `json:"id" db:"id"`
	TenantID string `json:"tenant_id" db:"tenant_id"`

	// CategoryID selects a category-specific commission. Nil uses the marketplace default.
	CategoryID *string `json:"category_id,omitempty" db:"category_id"`

	SKU  string `json:"sku,omitempty" db:"sku"`
	Name string `json:"name" db:"name"`

	CostUnit      decimal.Decimal `json:"cost_unit" db:"cost_unit"`
	PackagingCost decimal.Decimal `json:"packaging_cost" db:"packaging_cost"`
	TaxRate       decimal.Decimal `json:"tax_rate" db:"tax_rate"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// CategoryKey is the category used for commission lookup, empty when unset.
func (p Product) CategoryKey() string {
	if p.CategoryID == nil {
		return ""
	}
	return *p.CategoryID
}

// Marketplace is a sales channel (platform + modality, e.g. Mercado Livre Premium).
type Marketplace struct {
	ID       string `json:"id" db:"id"`
	TenantID string `json:"tenant_id" db:"tenant_id"`

	Name     string `json:"name" db:"name"`
	Platform string `json:"platform,omitempty" db:"platform"`
	Modality string `json:"modality,omitempty" db:"modality"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
