package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hydromart/marketplace-backend/api/routes"
	"github.com/hydromart/marketplace-backend/internal/inventory"
	"github.com/hydromart/marketplace-backend/internal/ledger"
	"github.com/hydromart/marketplace-backend/internal/orders"
	"github.com/hydromart/marketplace-backend/internal/promos"
	paymentwebhook "github.com/hydromart/marketplace-backend/internal/webhooks/payments"
	"github.com/hydromart/marketplace-backend/pkg/config"
	"github.com/hydromart/marketplace-backend/pkg/db"
	"github.com/hydromart/marketplace-backend/pkg/logger"
	"github.com/hydromart/marketplace-backend/pkg/metrics"
	"github.com/hydromart/marketplace-backend/pkg/migrate"
	"github.com/hydromart/marketplace-backend/pkg/outbox"
	"github.com/hydromart/marketplace-backend/pkg/pagination"
	"github.com/hydromart/marketplace-backend/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, cfg.FeatureFlags.UseSQLite, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	outboxSvc := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)
	stock, err := inventory.NewLedger(inventory.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to create inventory ledger", err)
		os.Exit(1)
	}
	vendorLedger, err := ledger.NewService(
		ledger.NewRepository(dbClient.DB()),
		dbClient,
		outboxSvc,
		ledger.WithPageLimits(pagination.Limits{Default: cfg.Orders.LedgerPageLimit, Max: cfg.Orders.LedgerPageMaxCap}),
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create vendor ledger", err)
		os.Exit(1)
	}
	settlementMetrics := metrics.NewSettlementMetrics(prometheus.DefaultRegisterer)
	ordersRepo := orders.NewRepository(dbClient.DB())
	ordersSvc, err := orders.NewService(ordersRepo, dbClient, outboxSvc, stock, vendorLedger, settlementMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to create settlement engine", err)
		os.Exit(1)
	}

	promoGuard, err := promos.NewGuard(promos.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to create promo guard", err)
		os.Exit(1)
	}
	placer, err := orders.NewPlacer(orders.PlacerParams{
		Repository:    ordersRepo,
		DB:            dbClient,
		Outbox:        outboxSvc,
		Stock:         stock,
		Promos:        promoGuard,
		Metrics:       settlementMetrics,
		CommissionBps: cfg.Orders.CommissionBps,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create order placer", err)
		os.Exit(1)
	}

	webhookSvc, err := paymentwebhook.NewService(ordersSvc, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create payment webhook service", err)
		os.Exit(1)
	}
	webhookGuard, err := paymentwebhook.NewGuard(redisClient, cfg.Webhook.DedupeTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create payment webhook guard", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(cfg, logg, routes.Deps{
			DB:               dbClient,
			Redis:            redisClient,
			IdempotencyStore: redisClient,
			Orders:           ordersSvc,
			Placer:           placer,
			Ledger:           vendorLedger,
			PaymentWebhook:   webhookSvc,
			PaymentGuard:     webhookGuard,
			MetricsGatherer:  prometheus.DefaultGatherer,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-sigCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "api server shutdown failed", err)
		}
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "api server shut down gracefully")
}
