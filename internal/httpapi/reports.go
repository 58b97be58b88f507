package httpapi

import (
	"net/http"
	"time"

	"marketplace-pricing/internal/reporting"

	"github.com/gin-gonic/gin"
)

// MarginReport summarizes saved calculations. from/to are optional RFC3339 bounds.
func (h Handlers) MarginReport(c *gin.Context) {
	req := reporting.MarginSummaryRequest{
		TenantID:      tenant(c),
		MarketplaceID: c.Query("marketplace_id"),
	}
	for _, q := range []struct {
		name string
		dst  *time.Time
	}{
		{"from", &req.Range.From},
		{"to", &req.Range.To},
	} {
		v := c.Query(q.name)
		if v == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			badRequest(c, q.name+" must be RFC3339")
			return
		}
		*q.dst = t
	}

	out, err := h.Reports.MarginSummary(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}
