package pricing

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
)

// PostgresRepo stores calculations in the calculations table.
// UNIQUE (tenant_id, product_id, marketplace_id) makes concurrent saves of the same key
// serialize in the database; the later write wins.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

const calculationColumns = `
id, tenant_id, product_id, marketplace_id,
taxa_cartao, provisao_desconto, margem_desejada,
custo_total, valor_fixo, frete, comissao, preco_sugerido, margem_unitaria, margem_percentual,
preco_praticado, valor_fixo_real, frete_real, comissao_real, margem_unitaria_real, margem_percentual_real,
created_at, updated_at`

func (r *PostgresRepo) Upsert(ctx context.Context, c Calculation) (Calculation, error) {
	const q = `
INSERT INTO calculations (` + calculationColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$21)
ON CONFLICT (tenant_id, product_id, marketplace_id)
DO UPDATE SET taxa_cartao = EXCLUDED.taxa_cartao,
              provisao_desconto = EXCLUDED.provisao_desconto,
              margem_desejada = EXCLUDED.margem_desejada,
              custo_total = EXCLUDED.custo_total,
              valor_fixo = EXCLUDED.valor_fixo,
              frete = EXCLUDED.frete,
              comissao = EXCLUDED.comissao,
              preco_sugerido = EXCLUDED.preco_sugerido,
              margem_unitaria = EXCLUDED.margem_unitaria,
              margem_percentual = EXCLUDED.margem_percentual,
              preco_praticado = EXCLUDED.preco_praticado,
              valor_fixo_real = EXCLUDED.valor_fixo_real,
              frete_real = EXCLUDED.frete_real,
              comissao_real = EXCLUDED.comissao_real,
              margem_unitaria_real = EXCLUDED.margem_unitaria_real,
              margem_percentual_real = EXCLUDED.margem_percentual_real,
              updated_at = EXCLUDED.updated_at
RETURNING id, created_at, updated_at
`
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if err := r.db.QueryRowContext(ctx, q,
		c.ID,
		c.TenantID,
		c.ProductID,
		c.MarketplaceID,
		c.TaxaCartao,
		c.ProvisaoDesconto,
		c.MargemDesejada,
		c.CustoTotal,
		c.ValorFixo,
		c.Frete,
		c.Comissao,
		c.PrecoSugerido,
		c.MargemUnitaria,
		c.MargemPercentual,
		c.PrecoPraticado,
		c.ValorFixoReal,
		c.FreteReal,
		c.ComissaoReal,
		c.MargemUnitariaReal,
		c.MargemPercentualReal,
		c.UpdatedAt,
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return Calculation{}, err
	}
	return c, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCalculation(row scanner) (Calculation, error) {
	var c Calculation
	err := row.Scan(
		&c.ID,
		&c.TenantID,
		&c.ProductID,
		&c.MarketplaceID,
		&c.TaxaCartao,
		&c.ProvisaoDesconto,
		&c.MargemDesejada,
		&c.CustoTotal,
		&c.ValorFixo,
		&c.Frete,
		&c.Comissao,
		&c.PrecoSugerido,
		&c.MargemUnitaria,
		&c.MargemPercentual,
		&c.PrecoPraticado,
		&c.ValorFixoReal,
		&c.FreteReal,
		&c.ComissaoReal,
		&c.MargemUnitariaReal,
		&c.MargemPercentualReal,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	return c, err
}

func (r *PostgresRepo) Get(ctx context.Context, tenantID, productID, marketplaceID string) (Calculation, error) {
	const q = `
SELECT ` + calculationColumns + `
FROM calculations
WHERE tenant_id = $1 AND product_id = $2 AND marketplace_id = $3
`
	c, err := scanCalculation(r.db.QueryRowContext(ctx, q, tenantID, productID, marketplaceID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Calculation{}, ErrNotFound
		}
		return Calculation{}, err
	}
	return c, nil
}

func (r *PostgresRepo) List(ctx context.Context, tenantID string, f ListFilter) ([]Calculation, error) {
	const q = `
SELECT ` + calculationColumns + `
FROM calculations
WHERE tenant_id = $1 AND ($2::text = '' OR marketplace_id = $2)
ORDER BY updated_at DESC, id
LIMIT NULLIF($3, 0)
`
	rows, err := r.db.QueryContext(ctx, q, tenantID, f.MarketplaceID, f.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Calculation, 0)
	for rows.Next() {
		c, err := scanCalculation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
