package main

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"marketplace-pricing/internal/httpapi"
	"marketplace-pricing/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

type readiness struct {
	db  *sql.DB
	rdb *redis.Client
}

func (rd readiness) check(ctx context.Context) error {
	if err := utils.HealthCheck(ctx, rd.db, 2*time.Second); err != nil {
		return err
	}
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return rd.rdb.Ping(pingCtx).Err()
}

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, h httpapi.Handlers, authMW gin.HandlerFunc, rd readiness) {
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/readyz", func(c *gin.Context) {
		if err := rd.check(c.Request.Context()); err != nil {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	h.Register(r, authMW)
}
