package httpapi

import (
	"net/http"

	"marketplace-pricing/internal/catalog"
	"marketplace-pricing/internal/fees"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type productRequest struct {
	CategoryID    *string         `json:"category_id"`
	SKU           string          `json:"sku"`
	Name          string          `json:"name" binding:"required"`
	CostUnit      decimal.Decimal `json:"cost_unit"`
	PackagingCost decimal.Decimal `json:"packaging_cost"`
	TaxRate       decimal.Decimal `json:"tax_rate"`
}

func (h Handlers) GetProduct(c *gin.Context) {
	p, err := h.Catalog.GetProduct(c.Request.Context(), tenant(c), c.Param("product_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h Handlers) PutProduct(c *gin.Context) {
	var req productRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid product: "+err.Error())
		return
	}
	p, err := h.Catalog.UpsertProduct(c.Request.Context(), catalog.Product{
		ID:            c.Param("product_id"),
		TenantID:      tenant(c),
		CategoryID:    req.CategoryID,
		SKU:           req.SKU,
		Name:          req.Name,
		CostUnit:      req.CostUnit,
		PackagingCost: req.PackagingCost,
		TaxRate:       req.TaxRate,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// feeStructureRequest replaces a marketplace and its whole fee configuration.
type feeStructureRequest struct {
	Name     string `json:"name" binding:"required"`
	Platform string `json:"platform"`
	Modality string `json:"modality"`

	Commissions []fees.Commission   `json:"commissions"`
	FixedFees   []fees.FixedFeeRule `json:"fixed_fees"`
	Shipping    *fees.ShippingRule  `json:"shipping"`
}

type feeStructureResponse struct {
	Marketplace catalog.Marketplace `json:"marketplace"`
	Fees        fees.Structure      `json:"fees"`
}

func (h Handlers) GetFees(c *gin.Context) {
	m, st, err := h.Catalog.FeeStructure(c.Request.Context(), tenant(c), c.Param("marketplace_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, feeStructureResponse{Marketplace: m, Fees: st})
}

func (h Handlers) PutFees(c *gin.Context) {
	var req feeStructureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid fee structure: "+err.Error())
		return
	}
	ctx := c.Request.Context()
	tid, mid := tenant(c), c.Param("marketplace_id")

	err := h.Catalog.ReplaceFeeStructure(ctx,
		catalog.Marketplace{ID: mid, TenantID: tid, Name: req.Name, Platform: req.Platform, Modality: req.Modality},
		fees.Structure{Commissions: req.Commissions, FixedFees: req.FixedFees, Shipping: req.Shipping},
	)
	if err != nil {
		writeError(c, err)
		return
	}
	m, st, err := h.Catalog.FeeStructure(ctx, tid, mid)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, feeStructureResponse{Marketplace: m, Fees: st})
}
