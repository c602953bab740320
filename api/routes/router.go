package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/franchisepos-backend/api/controllers"
	"github.com/angelmondragon/franchisepos-backend/api/middleware"
	"github.com/angelmondragon/franchisepos-backend/internal/audit"
	"github.com/angelmondragon/franchisepos-backend/internal/capabilities"
	"github.com/angelmondragon/franchisepos-backend/internal/displaysync"
	"github.com/angelmondragon/franchisepos-backend/internal/ledger"
	product "github.com/angelmondragon/franchisepos-backend/internal/products"
	"github.com/angelmondragon/franchisepos-backend/internal/refunds"
	"github.com/angelmondragon/franchisepos-backend/internal/sales"
	"github.com/angelmondragon/franchisepos-backend/internal/shifts"
	"github.com/angelmondragon/franchisepos-backend/pkg/config"
	"github.com/angelmondragon/franchisepos-backend/pkg/enums"
	"github.com/angelmondragon/franchisepos-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/franchisepos-backend/pkg/redis"
)

// Services carries everything the HTTP surface dispatches to. Nil services
// answer 500 from their handlers instead of panicking.
type Services struct {
	Sales        sales.Service
	Refunds      refunds.Engine
	Ledger       ledger.Service
	Shifts       shifts.Service
	Capabilities capabilities.Service
	Display      displaysync.Service
	Products     product.Service
	Audit        audit.Service
}

// Infra carries the shared clients used by middleware and readiness.
type Infra struct {
	DB          controllers.Pinger
	Redis       *pkgredis.Client
	Metrics     prometheus.Gatherer
	Idempotency pkgredis.IdempotencyStore
}

func NewRouter(cfg *config.Config, logg *logger.Logger, infra Infra, svc Services) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	readiness := []controllers.Dependency{{Name: "database", Pinger: infra.DB}}
	if infra.Redis != nil {
		readiness = append(readiness, controllers.Dependency{Name: "redis", Pinger: infra.Redis})
	}
	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, readiness...))
	})
	if infra.Metrics != nil {
		r.Handle("/metrics", promhttp.HandlerFor(infra.Metrics, promhttp.HandlerOpts{}))
	}

	r.Route("/api/public", func(r chi.Router) {
		r.Get("/ping", controllers.PublicPing())
	})

	idempotent := middleware.Idempotency(infra.Idempotency, logg)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.TenantRateLimit(cfg.RateLimit, logg))

		r.Get("/ping", controllers.PrivatePing())

		r.With(idempotent).Post("/sales", controllers.CreateSale(svc.Sales, logg))
		r.With(middleware.RequireRefundPermission(logg), idempotent).Post("/refunds", controllers.CreateRefund(svc.Refunds, logg))

		r.Route("/transactions/{transactionId}", func(r chi.Router) {
			r.Get("/", controllers.GetTransaction(svc.Ledger, logg))
			r.With(middleware.RequireRefundPermission(logg)).Get("/refundable", controllers.TransactionRefundable(svc.Ledger, logg))
		})

		r.Route("/drawer", func(r chi.Router) {
			r.Post("/no-sale", controllers.DrawerNoSale(svc.Shifts, logg))
			r.Post("/recount", controllers.DrawerRecount(svc.Shifts, logg))
			r.Get("/shifts/current", controllers.CurrentShift(svc.Shifts, logg))
			r.Post("/shifts", controllers.OpenShift(svc.Shifts, logg))
			r.Post("/shifts/{sessionId}/close", controllers.CloseShift(svc.Shifts, logg))
		})

		r.Route("/offline/capability", func(r chi.Router) {
			r.Get("/", controllers.GetOfflineCapability(svc.Capabilities, logg))
			r.With(middleware.RequireRole(logg, enums.MemberRoleOwner, enums.MemberRoleAdmin)).
				Post("/", controllers.AcceptOfflineCapability(svc.Capabilities, logg))
		})

		r.Get("/display-sync", controllers.DisplaySyncGet(svc.Display, logg))
		r.Post("/display-sync", controllers.DisplaySyncWrite(svc.Display, logg))

		r.Get("/products/search", controllers.ProductSearch(svc.Products, logg))

		r.With(middleware.RequireRole(logg, enums.MemberRoleOwner, enums.MemberRoleAdmin, enums.MemberRoleManager)).
			Get("/audit", controllers.ListAuditEvents(svc.Audit, logg))
	})

	return r
}
