package httpapi

import (
	"errors"
	"net/http"
	"time"

	"marketplace-pricing/internal/audit"
	"marketplace-pricing/internal/auth"
	"marketplace-pricing/internal/catalog"
	"marketplace-pricing/internal/pricing"
	"marketplace-pricing/internal/rbac"
	"marketplace-pricing/internal/reporting"
	"marketplace-pricing/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.
type Handlers struct {
	Auth    *auth.Manager
	Catalog *catalog.Service
	Pricing *pricing.Service
	Reports *reporting.Service
}

// Register mounts the /v1 API on r. authMW must inject identity into the request context.
func (h Handlers) Register(r gin.IRouter, authMW gin.HandlerFunc) {
	v1 := r.Group("/v1")
	v1.Use(ClientIP())

	v1.POST("/auth/login", h.Login)

	api := v1.Group("")
	api.Use(authMW)
	api.GET("/me", h.Me)

	read := rbac.RequireTenantAndAnyRole(rbac.Readers...)
	write := rbac.RequireTenantAndAnyRole(rbac.Writers...)

	products := api.Group("/products")
	products.GET("/:product_id", append(read, h.GetProduct)...)
	products.PUT("/:product_id", append(write, h.PutProduct)...)

	marketplaces := api.Group("/marketplaces")
	marketplaces.GET("/:marketplace_id/fees", append(read, h.GetFees)...)
	marketplaces.PUT("/:marketplace_id/fees", append(write, h.PutFees)...)

	p := api.Group("/pricing")
	p.POST("/suggested", append(read, h.Suggested)...)
	p.POST("/realized", append(read, h.Realized)...)
	p.POST("/calculations", append(write, h.SaveCalculation)...)
	p.GET("/calculations", append(read, h.ListCalculations)...)
	p.GET("/calculations/:product_id/:marketplace_id", append(read, h.GetCalculation)...)
	// Persisting bulk runs additionally requires a writer role, checked in the handler.
	p.POST("/bulk", append(read, h.Bulk)...)

	api.GET("/reports/margins", append(read, h.MarginReport)...)
}

// ClientIP stores the caller address in the request context for audit events.
func ClientIP() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request = c.Request.WithContext(audit.WithClientIP(c.Request.Context(), c.ClientIP()))
		c.Next()
	}
}

// --- Auth ---

type loginRequest struct {
	UserID   string `json:"user_id" binding:"required"`
	TenantID string `json:"tenant_id" binding:"required"`
	Role     string `json:"role" binding:"required"`
}

// Login issues a JWT token pair.
//
// NOTE: This is a skeleton-only endpoint. Real systems must validate credentials.
func (h Handlers) Login(c *gin.Context) {
	if h.Auth == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "auth not configured"})
		return
	}
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "user_id, tenant_id, role required"})
		return
	}
	if !rbac.IsKnownRole(req.Role) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "unknown role"})
		return
	}
	pair, err := h.Auth.IssuePair(time.Now(), req.UserID, req.TenantID, req.Role)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}
	c.JSON(http.StatusOK, pair)
}

func (h Handlers) Me(c *gin.Context) {
	uid, _ := auth.UserID(c.Request.Context())
	tid, _ := auth.TenantID(c.Request.Context())
	role, _ := auth.Role(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"user_id": uid, "tenant_id": tid, "role": role})
}

// tenant reads the tenant set by the auth middleware; RequireTenant already rejected empty ones.
func tenant(c *gin.Context) string {
	tid, _ := auth.TenantID(c.Request.Context())
	return tid
}

// --- Errors ---

var statusByCode = map[string]int{
	pricing.CodeInvalidInput:      http.StatusBadRequest,
	pricing.CodeNotFound:          http.StatusNotFound,
	pricing.CodeConfiguration:     http.StatusUnprocessableEntity,
	pricing.CodeMarginUnreachable: http.StatusUnprocessableEntity,
	pricing.CodeBusy:              http.StatusTooManyRequests,
	pricing.CodeCanceled:          http.StatusRequestTimeout,
}

// writeError maps a service error to a status and a stable code.
// Internal errors are logged and never echoed to the client.
func writeError(c *gin.Context, err error) {
	if errors.Is(err, reporting.ErrInvalidRequest) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": pricing.CodeInvalidInput})
		return
	}
	code := pricing.ErrorCode(err)
	status, ok := statusByCode[code]
	if !ok {
		logger.FromGin(c).Error("request failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error", "code": pricing.CodeInternal})
		return
	}
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error(), "code": code})
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": msg, "code": pricing.CodeInvalidInput})
}
