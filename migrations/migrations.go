package migrations

import (
	"context"
	"database/sql"
	"fmt"

	"marketplace-pricing/pkg/utils"
)

// Every table carries tenant_id and every key is scoped by it.
// Ids are text: product and marketplace ids are chosen by the tenant.
var statements = []string{
	`CREATE TABLE IF NOT EXISTS products (
		id             TEXT NOT NULL,
		tenant_id      TEXT NOT NULL,
		category_id    TEXT,
		sku            TEXT NOT NULL DEFAULT '',
		name           TEXT NOT NULL,
		cost_unit      NUMERIC(14,4) NOT NULL CHECK (cost_unit >= 0),
		packaging_cost NUMERIC(14,4) NOT NULL DEFAULT 0 CHECK (packaging_cost >= 0),
		tax_rate       NUMERIC(7,4) NOT NULL DEFAULT 0 CHECK (tax_rate BETWEEN 0 AND 100),
		created_at     TIMESTAMPTZ NOT NULL,
		updated_at     TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (tenant_id, id)
	)`,
	`CREATE TABLE IF NOT EXISTS marketplaces (
		id         TEXT NOT NULL,
		tenant_id  TEXT NOT NULL,
		name       TEXT NOT NULL,
		platform   TEXT NOT NULL DEFAULT '',
		modality   TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (tenant_id, id)
	)`,
	`CREATE TABLE IF NOT EXISTS commissions (
		id             TEXT PRIMARY KEY,
		tenant_id      TEXT NOT NULL,
		marketplace_id TEXT NOT NULL,
		category_id    TEXT,
		rate           NUMERIC(7,4) NOT NULL CHECK (rate BETWEEN 0 AND 100),
		FOREIGN KEY (tenant_id, marketplace_id) REFERENCES marketplaces (tenant_id, id) ON DELETE CASCADE,
		UNIQUE (tenant_id, marketplace_id, category_id)
	)`,
	// One default (category_id IS NULL) commission per marketplace.
	`CREATE UNIQUE INDEX IF NOT EXISTS commissions_default_uniq ON commissions (tenant_id, marketplace_id) WHERE category_id IS NULL`,
	`CREATE TABLE IF NOT EXISTS fixed_fee_rules (
		id             TEXT PRIMARY KEY,
		tenant_id      TEXT NOT NULL,
		marketplace_id TEXT NOT NULL,
		position       INT NOT NULL,
		kind           TEXT NOT NULL CHECK (kind IN ('constant', 'range', 'range_percentage')),
		range_min      NUMERIC(14,4) NOT NULL DEFAULT 0,
		range_max      NUMERIC(14,4) NOT NULL DEFAULT 0,
		amount         NUMERIC(14,4) NOT NULL DEFAULT 0,
		percent_rate   NUMERIC(7,4) NOT NULL DEFAULT 0,
		FOREIGN KEY (tenant_id, marketplace_id) REFERENCES marketplaces (tenant_id, id) ON DELETE CASCADE,
		UNIQUE (tenant_id, marketplace_id, position)
	)`,
	`CREATE TABLE IF NOT EXISTS shipping_rules (
		tenant_id               TEXT NOT NULL,
		marketplace_id          TEXT NOT NULL,
		cost                    NUMERIC(14,4) NOT NULL CHECK (cost >= 0),
		free_shipping_threshold NUMERIC(14,4),
		PRIMARY KEY (tenant_id, marketplace_id),
		FOREIGN KEY (tenant_id, marketplace_id) REFERENCES marketplaces (tenant_id, id) ON DELETE CASCADE
	)`,
	`CREATE TABLE IF NOT EXISTS calculations (
		id                     TEXT PRIMARY KEY,
		tenant_id              TEXT NOT NULL,
		product_id             TEXT NOT NULL,
		marketplace_id         TEXT NOT NULL,
		taxa_cartao            NUMERIC(7,4) NOT NULL,
		provisao_desconto      NUMERIC(7,4) NOT NULL,
		margem_desejada        NUMERIC(7,4) NOT NULL,
		custo_total            NUMERIC(14,2) NOT NULL,
		valor_fixo             NUMERIC(14,2) NOT NULL,
		frete                  NUMERIC(14,2) NOT NULL,
		comissao               NUMERIC(14,2) NOT NULL,
		preco_sugerido         NUMERIC(14,2) NOT NULL,
		margem_unitaria        NUMERIC(14,2) NOT NULL,
		margem_percentual      NUMERIC(9,2) NOT NULL,
		preco_praticado        NUMERIC(14,2),
		valor_fixo_real        NUMERIC(14,2),
		frete_real             NUMERIC(14,2),
		comissao_real          NUMERIC(14,2),
		margem_unitaria_real   NUMERIC(14,2),
		margem_percentual_real NUMERIC(9,2),
		created_at             TIMESTAMPTZ NOT NULL,
		updated_at             TIMESTAMPTZ NOT NULL,
		UNIQUE (tenant_id, product_id, marketplace_id)
	)`,
	`CREATE INDEX IF NOT EXISTS calculations_tenant_updated_idx ON calculations (tenant_id, updated_at DESC)`,
	`CREATE TABLE IF NOT EXISTS audit_events (
		id             TEXT PRIMARY KEY,
		tenant_id      TEXT NOT NULL,
		type           TEXT NOT NULL,
		actor_user_id  TEXT NOT NULL DEFAULT '',
		actor_role     TEXT NOT NULL DEFAULT '',
		ip_address     TEXT NOT NULL DEFAULT '',
		product_id     TEXT NOT NULL DEFAULT '',
		marketplace_id TEXT NOT NULL DEFAULT '',
		calculation_id TEXT NOT NULL DEFAULT '',
		message        TEXT NOT NULL DEFAULT '',
		metadata       JSONB,
		created_at     TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS audit_events_tenant_created_idx ON audit_events (tenant_id, created_at DESC)`,
}

// Apply creates the schema in one transaction. It is idempotent.
func Apply(ctx context.Context, db *sql.DB) error {
	return utils.WithTx(ctx, db, nil, func(ctx context.Context, tx *sql.Tx) error {
		for i, stmt := range statements {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("migration %d: %w", i, err)
			}
		}
		return nil
	})
}
