package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"marketplace-pricing/internal/fees"
	"marketplace-pricing/pkg/utils"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("catalog: not found")

// Repository is the persistence contract for catalog data.
// Every method filters by tenant_id.
type Repository interface {
	GetProduct(ctx context.Context, tenantID, productID string) (Product, error)
	UpsertProduct(ctx context.Context, p Product) (Product, error)

	GetMarketplace(ctx context.Context, tenantID, marketplaceID string) (Marketplace, error)
	FeeStructure(ctx context.Context, tenantID, marketplaceID string) (fees.Structure, error)

	// ReplaceMarketplace upserts the marketplace and swaps its whole fee structure atomically.
	ReplaceMarketplace(ctx context.Context, m Marketplace, s fees.Structure) error
}

// PostgresRepo implements Repository on the schema in migrations.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) GetProduct(ctx context.Context, tenantID, productID string) (Product, error) {
	const q = `
SELECT id, tenant_id, category_id, sku, name, cost_unit, packaging_cost, tax_rate, created_at, updated_at
FROM products
WHERE tenant_id = $1 AND id = $2
`
	var p Product
	if err := r.db.QueryRowContext(ctx, q, tenantID, productID).Scan(
		&p.ID,
		&p.TenantID,
		&p.CategoryID,
		&p.SKU,
		&p.Name,
		&p.CostUnit,
		&p.PackagingCost,
		&p.TaxRate,
		&p.CreatedAt,
		&p.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Product{}, ErrNotFound
		}
		return Product{}, err
	}
	return p, nil
}

func (r *PostgresRepo) UpsertProduct(ctx context.Context, p Product) (Product, error) {
	const q = `
INSERT INTO products (id, tenant_id, category_id, sku, name, cost_unit, packaging_cost, tax_rate, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$9)
ON CONFLICT (tenant_id, id)
DO UPDATE SET category_id = EXCLUDED.category_id,
              sku = EXCLUDED.sku,
              name = EXCLUDED.name,
              cost_unit = EXCLUDED.cost_unit,
              packaging_cost = EXCLUDED.packaging_cost,
              tax_rate = EXCLUDED.tax_rate,
              updated_at = EXCLUDED.updated_at
RETURNING created_at, updated_at
`
	now := p.UpdatedAt
	if now.IsZero() {
		now = time.Now().UTC()
	}
	if err := r.db.QueryRowContext(ctx, q,
		p.ID,
		p.TenantID,
		p.CategoryID,
		p.SKU,
		p.Name,
		p.CostUnit,
		p.PackagingCost,
		p.TaxRate,
		now,
	).Scan(&p.CreatedAt, &p.UpdatedAt); err != nil {
		return Product{}, err
	}
	return p, nil
}

func (r *PostgresRepo) GetMarketplace(ctx context.Context, tenantID, marketplaceID string) (Marketplace, error) {
	const q = `
SELECT id, tenant_id, name, platform, modality, created_at, updated_at
FROM marketplaces
WHERE tenant_id = $1 AND id = $2
`
	var m Marketplace
	if err := r.db.QueryRowContext(ctx, q, tenantID, marketplaceID).Scan(
		&m.ID,
		&m.TenantID,
		&m.Name,
		&m.Platform,
		&m.Modality,
		&m.CreatedAt,
		&m.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Marketplace{}, ErrNotFound
		}
		return Marketplace{}, err
	}
	return m, nil
}

func (r *PostgresRepo) FeeStructure(ctx context.Context, tenantID, marketplaceID string) (fees.Structure, error) {
	if _, err := r.GetMarketplace(ctx, tenantID, marketplaceID); err != nil {
		return fees.Structure{}, err
	}
	out := fees.Structure{TenantID: tenantID, MarketplaceID: marketplaceID}

	const qCommissions = `
SELECT id, marketplace_id, category_id, rate
FROM commissions
WHERE tenant_id = $1 AND marketplace_id = $2
ORDER BY category_id NULLS FIRST
`
	rows, err := r.db.QueryContext(ctx, qCommissions, tenantID, marketplaceID)
	if err != nil {
		return fees.Structure{}, err
	}
	for rows.Next() {
		var c fees.Commission
		if err := rows.Scan(&c.ID, &c.MarketplaceID, &c.CategoryID, &c.Rate); err != nil {
			_ = rows.Close()
			return fees.Structure{}, err
		}
		out.Commissions = append(out.Commissions, c)
	}
	if err := closeRows(rows); err != nil {
		return fees.Structure{}, err
	}

	// position keeps the configured order, which is the last tie-break of fixed fee resolution.
	const qFixed = `
SELECT id, marketplace_id, kind, range_min, range_max, amount, percent_rate
FROM fixed_fee_rules
WHERE tenant_id = $1 AND marketplace_id = $2
ORDER BY position
`
	rows, err = r.db.QueryContext(ctx, qFixed, tenantID, marketplaceID)
	if err != nil {
		return fees.Structure{}, err
	}
	for rows.Next() {
		var f fees.FixedFeeRule
		if err := rows.Scan(&f.ID, &f.MarketplaceID, &f.Kind, &f.Min, &f.Max, &f.Amount, &f.PercentRate); err != nil {
			_ = rows.Close()
			return fees.Structure{}, err
		}
		out.FixedFees = append(out.FixedFees, f)
	}
	if err := closeRows(rows); err != nil {
		return fees.Structure{}, err
	}

	const qShipping = `
SELECT marketplace_id, cost, free_shipping_threshold
FROM shipping_rules
WHERE tenant_id = $1 AND marketplace_id = $2
`
	var s fees.ShippingRule
	err = r.db.QueryRowContext(ctx, qShipping, tenantID, marketplaceID).Scan(&s.MarketplaceID, &s.Cost, &s.FreeShippingThreshold)
	switch {
	case err == nil:
		out.Shipping = &s
	case errors.Is(err, sql.ErrNoRows):
	default:
		return fees.Structure{}, err
	}
	return out, nil
}

func (r *PostgresRepo) ReplaceMarketplace(ctx context.Context, m Marketplace, s fees.Structure) error {
	now := time.Now().UTC()
	return utils.WithTx(ctx, r.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		const qMarketplace = `
INSERT INTO marketplaces (id, tenant_id, name, platform, modality, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$6)
ON CONFLICT (tenant_id, id)
DO UPDATE SET name = EXCLUDED.name,
              platform = EXCLUDED.platform,
              modality = EXCLUDED.modality,
              updated_at = EXCLUDED.updated_at
`
		if _, err := tx.ExecContext(ctx, qMarketplace, m.ID, m.TenantID, m.Name, m.Platform, m.Modality, now); err != nil {
			return err
		}

		for _, q := range []string{
			`DELETE FROM commissions WHERE tenant_id = $1 AND marketplace_id = $2`,
			`DELETE FROM fixed_fee_rules WHERE tenant_id = $1 AND marketplace_id = $2`,
			`DELETE FROM shipping_rules WHERE tenant_id = $1 AND marketplace_id = $2`,
		} {
			if _, err := tx.ExecContext(ctx, q, m.TenantID, m.ID); err != nil {
				return err
			}
		}

		const qCommission = `
INSERT INTO commissions (id, tenant_id, marketplace_id, category_id, rate)
VALUES ($1,$2,$3,$4,$5)
`
		for _, c := range s.Commissions {
			if _, err := tx.ExecContext(ctx, qCommission, idOrNew(c.ID), m.TenantID, m.ID, c.CategoryID, c.Rate); err != nil {
				if utils.IsUniqueViolation(err) {
					return fmt.Errorf("%w: duplicate commission for one category", fees.ErrInvalidRule)
				}
				return err
			}
		}

		const qFixed = `
INSERT INTO fixed_fee_rules (id, tenant_id, marketplace_id, position, kind, range_min, range_max, amount, percent_rate)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
`
		for i, f := range s.FixedFees {
			if _, err := tx.ExecContext(ctx, qFixed, idOrNew(f.ID), m.TenantID, m.ID, i, f.Kind, f.Min, f.Max, f.Amount, f.PercentRate); err != nil {
				return err
			}
		}

		if s.Shipping != nil {
			const qShipping = `
INSERT INTO shipping_rules (tenant_id, marketplace_id, cost, free_shipping_threshold)
VALUES ($1,$2,$3,$4)
`
			if _, err := tx.ExecContext(ctx, qShipping, m.TenantID, m.ID, s.Shipping.Cost, s.Shipping.FreeShippingThreshold); err != nil {
				return err
			}
		}
		return nil
	})
}

func closeRows(rows *sql.Rows) error {
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return err
	}
	return rows.Close()
}

func idOrNew(id string) string {
	if id == "" {
		return uuid.NewString()
	}
	return id
}
