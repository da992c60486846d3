package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hyeonlabs/guideport-backend/api/controllers"
	"github.com/hyeonlabs/guideport-backend/api/middleware"
	"github.com/hyeonlabs/guideport-backend/internal/orders"
	"github.com/hyeonlabs/guideport-backend/internal/settlement"
	"github.com/hyeonlabs/guideport-backend/pkg/config"
	"github.com/hyeonlabs/guideport-backend/pkg/db"
	"github.com/hyeonlabs/guideport-backend/pkg/logger"
	"github.com/hyeonlabs/guideport-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	promRegistry *prometheus.Registry,
	ordersSvc orders.Service,
	settlementSvc settlement.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	checkoutPolicy := middleware.NewRateLimitPolicy(
		"checkout",
		cfg.RateLimit.CheckoutWindow,
		cfg.RateLimit.CheckoutIPLimit,
		0,
	)
	adminPolicy := middleware.NewRateLimitPolicy(
		"admin",
		cfg.RateLimit.AdminWindow,
		0,
		cfg.RateLimit.AdminActorLimit,
	)

	// A missing redis client disables idempotency and throttling rather than
	// panicking on a typed-nil interface.
	var idemStore redis.IdempotencyStore
	passthrough := func(next http.Handler) http.Handler { return next }
	checkoutLimiter := passthrough
	adminLimiter := passthrough
	if redisClient != nil {
		idemStore = redisClient
		checkoutLimiter = middleware.RateLimit(checkoutPolicy, redisClient, logg)
		adminLimiter = middleware.RateLimit(adminPolicy, redisClient, logg)
	}

	readyDeps := map[string]controllers.Pinger{}
	if dbP != nil {
		readyDeps["postgres"] = dbP
	}
	if redisClient != nil {
		readyDeps["redis"] = redisClient
	}
	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, readyDeps))
	})

	if promRegistry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(idemStore, logg))

		r.With(checkoutLimiter).
			Post("/checkout", controllers.Checkout(ordersSvc, logg))

		r.Route("/guide", func(r chi.Router) {
			r.Use(middleware.RequireRole("guide", logg))
			r.Get("/orders", controllers.GuideOrders(ordersSvc, logg))
			r.Get("/settlements", controllers.GuideSettlements(settlementSvc, logg))
			r.Get("/settlements/{period}", controllers.GuideSettlementForPeriod(settlementSvc, logg))
		})
	})

	r.Route("/api/admin", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRole("admin", logg))
		r.Use(middleware.Idempotency(idemStore, logg))
		r.Use(adminLimiter)

		r.Route("/v1/orders", func(r chi.Router) {
			r.Get("/", controllers.AdminListOrders(ordersSvc, logg))
			r.Post("/", controllers.AdminCreateOrder(ordersSvc, logg))
			r.Get("/{orderId}", controllers.AdminOrderDetail(ordersSvc, logg))
			r.Post("/{orderId}/confirm", controllers.AdminConfirmOrder(ordersSvc, logg))
			r.Post("/{orderId}/cancel", controllers.AdminCancelOrder(ordersSvc, logg))
		})

		r.Route("/v1/settlements", func(r chi.Router) {
			r.Get("/", controllers.SettlementRuns(settlementSvc, logg))
			r.Route("/{period}", func(r chi.Router) {
				r.Get("/", controllers.SettlementRunDetail(settlementSvc, logg))
				r.Get("/preview", controllers.SettlementPreview(settlementSvc, logg))
				r.Post("/lock", controllers.SettlementLock(settlementSvc, logg))
				r.Post("/resume", controllers.SettlementResume(settlementSvc, logg))
				r.Get("/export", controllers.SettlementExport(settlementSvc, logg))
				r.Post("/guides/{guideId}/payout", controllers.SettlementMarkPaid(settlementSvc, logg))
			})
		})
	})

	return r
}
