package httpapi

import (
	"net/http"
	"strconv"

	"marketplace-pricing/internal/auth"
	"marketplace-pricing/internal/pricing"
	"marketplace-pricing/internal/rbac"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type suggestedRequest struct {
	pricing.Pair
	pricing.Params
}

type realizedRequest struct {
	pricing.Pair
	CardFeeRate           decimal.Decimal `json:"card_fee_rate"`
	DiscountProvisionRate decimal.Decimal `json:"discount_provision_rate"`
	PracticedPrice        decimal.Decimal `json:"practiced_price"`
}

type saveRequest struct {
	pricing.Pair
	pricing.Params
	PracticedPrice *decimal.Decimal `json:"practiced_price"`
}

type bulkRequest struct {
	Pairs []pricing.Pair `json:"pairs" binding:"required"`
	pricing.Params
	Persist bool `json:"persist"`
}

func (h Handlers) Suggested(c *gin.Context) {
	var req suggestedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid json")
		return
	}
	r, err := h.Pricing.Suggest(c.Request.Context(), tenant(c), req.Pair, req.Params)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, r.Rounded())
}

func (h Handlers) Realized(c *gin.Context) {
	var req realizedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid json")
		return
	}
	r, err := h.Pricing.Realize(c.Request.Context(), tenant(c), req.Pair, req.CardFeeRate, req.DiscountProvisionRate, req.PracticedPrice)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, r.Rounded())
}

func (h Handlers) SaveCalculation(c *gin.Context) {
	var req saveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid json")
		return
	}
	calc, err := h.Pricing.Save(c.Request.Context(), tenant(c), pricing.SaveRequest{
		Pair:           req.Pair,
		Params:         req.Params,
		PracticedPrice: req.PracticedPrice,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, calc)
}

func (h Handlers) GetCalculation(c *gin.Context) {
	calc, err := h.Pricing.Get(c.Request.Context(), tenant(c), pricing.Pair{
		ProductID:     c.Param("product_id"),
		MarketplaceID: c.Param("marketplace_id"),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, calc)
}

func (h Handlers) ListCalculations(c *gin.Context) {
	f := pricing.ListFilter{MarketplaceID: c.Query("marketplace_id")}
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			badRequest(c, "limit must be a positive integer")
			return
		}
		f.Limit = n
	}
	out, err := h.Pricing.List(c.Request.Context(), tenant(c), f)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": out})
}

func (h Handlers) Bulk(c *gin.Context) {
	var req bulkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "pairs required")
		return
	}
	if req.Persist && !canWrite(c) {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return
	}
	out, err := h.Pricing.Bulk(c.Request.Context(), tenant(c), pricing.BulkRequest{
		Pairs:   req.Pairs,
		Params:  req.Params,
		Persist: req.Persist,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	for i := range out.Items {
		if r := out.Items[i].Result; r != nil {
			rr := r.Rounded()
			out.Items[i].Result = &rr
		}
	}
	c.JSON(http.StatusOK, out)
}

func canWrite(c *gin.Context) bool {
	role, _ := auth.Role(c.Request.Context())
	if rbac.IsSuperAdmin(role) {
		return true
	}
	for _, w := range rbac.Writers {
		if role == w {
			return true
		}
	}
	return false
}
