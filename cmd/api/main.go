package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"marketplace-pricing/internal/audit"
	"marketplace-pricing/internal/auth"
	"marketplace-pricing/internal/catalog"
	"marketplace-pricing/internal/config"
	"marketplace-pricing/internal/fees"
	"marketplace-pricing/internal/httpapi"
	"marketplace-pricing/internal/pricing"
	"marketplace-pricing/internal/reporting"
	"marketplace-pricing/migrations"
	"marketplace-pricing/pkg/logger"
	"marketplace-pricing/pkg/utils"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// bulkSlotTTL frees a slot whose holder died without releasing it.
const bulkSlotTTL = 10 * time.Minute

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// A missing .env is fine; the environment may come from the process runner.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	// Amounts go out as JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true

	taxMode, err := pricing.ParseTaxMode(cfg.Pricing.TaxMode)
	if err != nil {
		log.Error("pricing config invalid", "err", err)
		os.Exit(1)
	}

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	db, err := utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	if cfg.DB.AutoMigrate {
		if err := migrations.Apply(rootCtx, db); err != nil {
			log.Error("migrations failed", "err", err)
			os.Exit(1)
		}
		log.Info("schema up to date")
	}

	rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
	if err != nil {
		log.Error("redis init failed", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	auditSvc := audit.NewService(audit.NewPostgresRepo(db))
	catalogRepo := catalog.NewPostgresRepo(db)
	feeCache := fees.NewCache(rdb, catalogRepo, cfg.Redis.FeeCacheTTL)
	calcRepo := pricing.NewPostgresRepo(db)

	h := httpapi.Handlers{
		Auth:    authManager,
		Catalog: catalog.NewService(catalogRepo, feeCache, auditSvc),
		Pricing: pricing.NewService(catalogRepo, feeCache, calcRepo, pricing.Options{
			Engine:          pricing.NewEngine(taxMode, cfg.Pricing.MaxIterations),
			BulkConcurrency: cfg.Pricing.BulkConcurrency,
			Slots:           utils.NewSlotLimiter(rdb, "pricing:bulk", cfg.Pricing.BulkSlotsPerTenant, bulkSlotTTL),
			Audit:           auditSvc,
		}),
		Reports: reporting.NewService(calcRepo),
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))
	registerRoutes(r, h, auth.RequireAccessToken(authManager), readiness{db: db, rdb: rdb})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env, "tax_mode", taxMode)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}
}
