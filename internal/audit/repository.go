package audit

import (
	"context"
	"database/sql"
)

// PostgresRepo appends to audit_events. The table only ever sees INSERTs.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) Append(ctx context.Context, e Event) error {
	const q = `
INSERT INTO audit_events (
  id, tenant_id, type, actor_user_id, actor_role, ip_address,
  product_id, marketplace_id, calculation_id, message, metadata, created_at
)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,NULLIF($11,'')::jsonb,$12)
`
	_, err := r.db.ExecContext(ctx, q,
		e.ID,
		e.TenantID,
		string(e.Type),
		e.ActorUserID,
		e.ActorRole,
		e.IPAddress,
		e.ProductID,
		e.MarketplaceID,
		e.CalculationID,
		e.Message,
		e.Metadata,
		e.CreatedAt,
	)
	return err
}
