package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hydromart/marketplace-backend/api/controllers"
	webhookcontrollers "github.com/hydromart/marketplace-backend/api/controllers/webhooks"
	"github.com/hydromart/marketplace-backend/api/middleware"
	"github.com/hydromart/marketplace-backend/internal/ledger"
	"github.com/hydromart/marketplace-backend/internal/orders"
	paymentwebhook "github.com/hydromart/marketplace-backend/internal/webhooks/payments"
	"github.com/hydromart/marketplace-backend/pkg/config"
	"github.com/hydromart/marketplace-backend/pkg/enums"
	"github.com/hydromart/marketplace-backend/pkg/logger"
	"github.com/hydromart/marketplace-backend/pkg/pagination"
	"github.com/hydromart/marketplace-backend/pkg/redis"
)

// Deps collects everything the router hands to controllers.
type Deps struct {
	DB               controllers.Pinger
	Redis            controllers.Pinger
	IdempotencyStore redis.IdempotencyStore
	Orders           orders.Service
	Placer           orders.Placer
	Ledger           ledger.Service
	PaymentWebhook   *paymentwebhook.Service
	PaymentGuard     *paymentwebhook.Guard
	MetricsGatherer  prometheus.Gatherer
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.DB, deps.Redis))
	})

	if deps.MetricsGatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.MetricsGatherer, promhttp.HandlerOpts{}))
	}

	r.Get("/api/public/ping", controllers.PublicPing())

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Use(middleware.Idempotency(deps.IdempotencyStore, logg))
		r.Post("/payments", webhookcontrollers.PaymentWebhook(deps.PaymentWebhook, deps.PaymentGuard, cfg.Webhook.PaymentSecret, logg))
	})

	r.Route("/api/v1/orders", func(r chi.Router) {
		r.Use(middleware.CORS(cfg.App.CORSAllowedOrigins))
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(deps.IdempotencyStore, logg))
		r.Post("/", controllers.PlaceOrder(deps.Placer, logg))
	})

	ledgerLimits := pagination.Limits{Default: cfg.Orders.LedgerPageLimit, Max: cfg.Orders.LedgerPageMaxCap}

	r.Route("/api/v1/admin", func(r chi.Router) {
		r.Use(middleware.CORS(cfg.App.CORSAllowedOrigins))
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRole(enums.RoleAdmin, logg))
		r.Use(middleware.Idempotency(deps.IdempotencyStore, logg))

		r.Get("/ping", controllers.AdminPing())
		r.Route("/orders/{orderRef}", func(r chi.Router) {
			r.Get("/", controllers.AdminOrderDetail(deps.Orders, logg))
			r.Patch("/", controllers.AdminOrderUpdate(deps.Orders, logg))
			r.Delete("/", controllers.AdminOrderCancel(deps.Orders, logg))
		})
		r.Route("/vendors/{vendorId}", func(r chi.Router) {
			r.Get("/ledger", controllers.AdminVendorLedger(deps.Ledger, ledgerLimits, logg))
			r.Post("/payouts", controllers.AdminVendorPayout(deps.Ledger, logg))
		})
	})

	return r
}
