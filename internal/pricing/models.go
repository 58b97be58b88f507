package pricing

import (
	"fmt"
	"time"

	"marketplace-pricing/internal/fees"

	"github.com/shopspring/decimal"
)

// Engine inputs are percentages (0–100) for every rate and currency amounts for costs.
// Conversion to fractions happens inside the engine through fees.Fraction.

// CostInput is the product side of a calculation.
type CostInput struct {
	CostUnit      decimal.Decimal `json:"cost_unit"`
	PackagingCost decimal.Decimal `json:"packaging_cost"`
	TaxRate       decimal.Decimal `json:"tax_rate"`
}

// FeeInput is the marketplace side of a calculation, with the commission already resolved
// for the product's category.
type FeeInput struct {
	CommissionRate decimal.Decimal     `json:"commission_rate"`
	FixedFees      []fees.FixedFeeRule `json:"fixed_fees"`
	Shipping       *fees.ShippingRule  `json:"shipping,omitempty"`
}

type SuggestedInput struct {
	Cost CostInput
	Fees FeeInput

	CardFeeRate           decimal.Decimal
	DiscountProvisionRate decimal.Decimal
	DesiredMarginRate     decimal.Decimal
}

type RealizedInput struct {
	Cost CostInput
	Fees FeeInput

	CardFeeRate           decimal.Decimal
	DiscountProvisionRate decimal.Decimal
	PracticedPrice        decimal.Decimal
}

// Result is the outcome of SuggestedPrice. Amounts are unrounded.
type Result struct {
	CommissionRate decimal.Decimal `json:"commission_rate"`

	TotalCost        decimal.Decimal `json:"total_cost"`
	TaxAmount        decimal.Decimal `json:"tax_amount"`
	FixedFeeAmount   decimal.Decimal `json:"fixed_fee_amount"`
	ShippingAmount   decimal.Decimal `json:"shipping_amount"`
	CommissionAmount decimal.Decimal `json:"commission_amount"`
	CardFeeAmount    decimal.Decimal `json:"card_fee_amount"`
	DiscountAmount   decimal.Decimal `json:"discount_amount"`

	SuggestedPrice   decimal.Decimal `json:"suggested_price"`
	UnitMargin       decimal.Decimal `json:"unit_margin"`
	MarginPercentage decimal.Decimal `json:"margin_percentage"`

	// Iterations is the number of fee re-resolution passes.
	Iterations int `json:"iterations"`
	// Converged is false when fee tiers never settled; MarginPercentage is then the realized one.
	Converged bool `json:"converged"`
}

// RealizedResult is the outcome of RealizedMargin. Amounts are unrounded.
type RealizedResult struct {
	CommissionRate decimal.Decimal `json:"commission_rate"`

	TotalCost        decimal.Decimal `json:"total_cost"`
	TaxAmount        decimal.Decimal `json:"tax_amount"`
	FixedFeeAmount   decimal.Decimal `json:"fixed_fee_amount"`
	ShippingAmount   decimal.Decimal `json:"shipping_amount"`
	CommissionAmount decimal.Decimal `json:"commission_amount"`
	CardFeeAmount    decimal.Decimal `json:"card_fee_amount"`
	DiscountAmount   decimal.Decimal `json:"discount_amount"`

	PracticedPrice   decimal.Decimal `json:"practiced_price"`
	UnitMargin       decimal.Decimal `json:"unit_margin"`
	MarginPercentage decimal.Decimal `json:"margin_percentage"`
}

func (c CostInput) validate() error {
	if c.CostUnit.IsNegative() {
		return fmt.Errorf("%w: cost_unit must be >= 0", ErrInvalidInput)
	}
	if c.PackagingCost.IsNegative() {
		return fmt.Errorf("%w: packaging_cost must be >= 0", ErrInvalidInput)
	}
	if !fees.ValidPercent(c.TaxRate) {
		return fmt.Errorf("%w: tax_rate must be within 0-100", ErrInvalidInput)
	}
	return nil
}

type namedRate struct {
	name string
	rate decimal.Decimal
}

// validateRates reports the first out-of-range rate in the order given.
func validateRates(rates ...namedRate) error {
	for _, r := range rates {
		if !fees.ValidPercent(r.rate) {
			return fmt.Errorf("%w: %s must be within 0-100, got %s", ErrInvalidInput, r.name, r.rate)
		}
	}
	return nil
}

func (in SuggestedInput) validate() error {
	if err := in.Cost.validate(); err != nil {
		return err
	}
	return validateRates(
		namedRate{"commission_rate", in.Fees.CommissionRate},
		namedRate{"card_fee_rate", in.CardFeeRate},
		namedRate{"discount_provision_rate", in.DiscountProvisionRate},
		namedRate{"desired_margin_rate", in.DesiredMarginRate},
	)
}

func (in RealizedInput) validate() error {
	if err := in.Cost.validate(); err != nil {
		return err
	}
	if !in.PracticedPrice.IsPositive() {
		return fmt.Errorf("%w: practiced_price must be > 0", ErrInvalidInput)
	}
	return validateRates(
		namedRate{"commission_rate", in.Fees.CommissionRate},
		namedRate{"card_fee_rate", in.CardFeeRate},
		namedRate{"discount_provision_rate", in.DiscountProvisionRate},
	)
}

// Calculation is a saved result, unique per (tenant_id, product_id, marketplace_id).
// Column and JSON names follow the stored schema consumed downstream.
type Calculation struct {
	ID            string `json:"id" db:"id"`
	TenantID      string `json:"tenant_id" db:"tenant_id"`
	ProductID     string `json:"product_id" db:"product_id"`
	MarketplaceID string `json:"marketplace_id" db:"marketplace_id"`

	TaxaCartao       decimal.Decimal `json:"taxa_cartao" db:"taxa_cartao"`
	ProvisaoDesconto decimal.Decimal `json:"provisao_desconto" db:"provisao_desconto"`
	MargemDesejada   decimal.Decimal `json:"margem_desejada" db:"margem_desejada"`

	CustoTotal       decimal.Decimal `json:"custo_total" db:"custo_total"`
	ValorFixo        decimal.Decimal `json:"valor_fixo" db:"valor_fixo"`
	Frete            decimal.Decimal `json:"frete" db:"frete"`
	Comissao         decimal.Decimal `json:"comissao" db:"comissao"`
	PrecoSugerido    decimal.Decimal `json:"preco_sugerido" db:"preco_sugerido"`
	MargemUnitaria   decimal.Decimal `json:"margem_unitaria" db:"margem_unitaria"`
	MargemPercentual decimal.Decimal `json:"margem_percentual" db:"margem_percentual"`

	// Realized fields are null until a practiced price is recorded.
	PrecoPraticado       decimal.NullDecimal `json:"preco_praticado" db:"preco_praticado"`
	ValorFixoReal        decimal.NullDecimal `json:"valor_fixo_real" db:"valor_fixo_real"`
	FreteReal            decimal.NullDecimal `json:"frete_real" db:"frete_real"`
	ComissaoReal         decimal.NullDecimal `json:"comissao_real" db:"comissao_real"`
	MargemUnitariaReal   decimal.NullDecimal `json:"margem_unitaria_real" db:"margem_unitaria_real"`
	MargemPercentualReal decimal.NullDecimal `json:"margem_percentual_real" db:"margem_percentual_real"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

const storedPlaces = 2

func rounded(v decimal.Decimal) decimal.Decimal { return v.Round(storedPlaces) }

func roundedNull(v decimal.Decimal) decimal.NullDecimal {
	return decimal.NewNullDecimal(rounded(v))
}

// newCalculation flattens results into the stored shape, rounded to cents.
func newCalculation(tenantID, productID, marketplaceID string, p Params, r Result, realized *RealizedResult) Calculation {
	c := Calculation{
		TenantID:         tenantID,
		ProductID:        productID,
		MarketplaceID:    marketplaceID,
		TaxaCartao:       p.CardFeeRate,
		ProvisaoDesconto: p.DiscountProvisionRate,
		MargemDesejada:   p.DesiredMarginRate,
		CustoTotal:       rounded(r.TotalCost),
		ValorFixo:        rounded(r.FixedFeeAmount),
		Frete:            rounded(r.ShippingAmount),
		Comissao:         rounded(r.CommissionAmount),
		PrecoSugerido:    rounded(r.SuggestedPrice),
		MargemUnitaria:   rounded(r.UnitMargin),
		MargemPercentual: rounded(r.MarginPercentage),
	}
	if realized != nil {
		c.PrecoPraticado = roundedNull(realized.PracticedPrice)
		c.ValorFixoReal = roundedNull(realized.FixedFeeAmount)
		c.FreteReal = roundedNull(realized.ShippingAmount)
		c.ComissaoReal = roundedNull(realized.CommissionAmount)
		c.MargemUnitariaReal = roundedNull(realized.UnitMargin)
		c.MargemPercentualReal = roundedNull(realized.MarginPercentage)
	}
	return c
}

// Rounded returns r with every amount rounded to cents, for display.
func (r Result) Rounded() Result {
	r.TotalCost, r.TaxAmount = rounded(r.TotalCost), rounded(r.TaxAmount)
	r.FixedFeeAmount, r.ShippingAmount = rounded(r.FixedFeeAmount), rounded(r.ShippingAmount)
	r.CommissionAmount, r.CardFeeAmount = rounded(r.CommissionAmount), rounded(r.CardFeeAmount)
	r.DiscountAmount = rounded(r.DiscountAmount)
	r.SuggestedPrice, r.UnitMargin = rounded(r.SuggestedPrice), rounded(r.UnitMargin)
	r.MarginPercentage = rounded(r.MarginPercentage)
	return r
}

func (r RealizedResult) Rounded() RealizedResult {
	r.TotalCost, r.TaxAmount = rounded(r.TotalCost), rounded(r.TaxAmount)
	r.FixedFeeAmount, r.ShippingAmount = rounded(r.FixedFeeAmount), rounded(r.ShippingAmount)
	r.CommissionAmount, r.CardFeeAmount = rounded(r.CommissionAmount), rounded(r.CardFeeAmount)
	r.DiscountAmount = rounded(r.DiscountAmount)
	r.PracticedPrice, r.UnitMargin = rounded(r.PracticedPrice), rounded(r.UnitMargin)
	r.MarginPercentage = rounded(r.MarginPercentage)
	return r
}
