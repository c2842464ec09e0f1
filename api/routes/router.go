package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/storefront-backend/api/controllers"
	"github.com/angelmondragon/storefront-backend/api/middleware"
	"github.com/angelmondragon/storefront-backend/internal/basket"
	"github.com/angelmondragon/storefront-backend/internal/catalog"
	"github.com/angelmondragon/storefront-backend/internal/checkout"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/pkg/auth"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/money"
	"github.com/angelmondragon/storefront-backend/pkg/redis"
)

// Params carries everything the router mounts. Gatherer defaults to the
// prometheus default registry.
type Params struct {
	Config      *config.Config
	Logger      *logger.Logger
	DB          db.Pinger
	Redis       redis.Pinger
	Idempotency redis.IdempotencyStore
	Tokens      *auth.Tokens
	Gatherer    prometheus.Gatherer
	HTTPMetrics *metrics.HTTPMetrics
	Format      money.Formatter

	Baskets  basket.Service
	Catalog  catalog.Service
	Orders   orders.Service
	Checkout checkout.Service
}

func NewRouter(p Params) http.Handler {
	cfg, logg := p.Config, p.Logger
	format := p.Format
	if format == nil {
		format = money.FormatPrice
	}

	r := chi.NewRouter()
	r.Use(
		middleware.RequestID(logg),
		middleware.AccessLog(logg, p.HTTPMetrics),
		middleware.Recoverer(logg),
		middleware.CORS(cfg.App.CORSOrigins, cfg.Basket.SessionHeader),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, map[string]controllers.Pinger{
			"database": p.DB,
			"redis":    p.Redis,
		}))
	})

	if cfg.Metrics.Enabled {
		gatherer := p.Gatherer
		if gatherer == nil {
			gatherer = prometheus.DefaultGatherer
		}
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	idempotent := func(ttl time.Duration) func(http.Handler) http.Handler {
		if p.Idempotency == nil {
			return func(next http.Handler) http.Handler { return next }
		}
		return middleware.Idempotent(p.Idempotency, ttl, logg)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Identity(middleware.IdentityOptions{
			Tokens:        p.Tokens,
			SessionHeader: cfg.Basket.SessionHeader,
			SessionCookie: cfg.Basket.SessionCookie,
			SecureCookie:  cfg.App.IsProd(),
		}, logg))

		r.Route("/basket", func(r chi.Router) {
			r.Get("/", controllers.BasketGet(p.Baskets, format, logg))
			r.Delete("/", controllers.BasketClear(p.Baskets, logg))
			r.Get("/items", controllers.BasketItems(p.Baskets, format, logg))
			r.Post("/items", controllers.BasketAddItem(p.Baskets, format, logg))
			r.Put("/items/{ref}", controllers.BasketUpdateItem(p.Baskets, format, logg))
			r.Delete("/items/{ref}", controllers.BasketRemoveItem(p.Baskets, logg))
			r.Get("/extra", controllers.BasketGetExtra(p.Baskets, logg))
			r.Put("/extra", controllers.BasketSetExtra(p.Baskets, logg))
		})

		r.Get("/checkout", controllers.CheckoutMethods(p.Baskets, p.Checkout, logg))
		r.With(idempotent(middleware.PaymentReplayTTL)).
			Post("/checkout", controllers.CheckoutSubmit(p.Baskets, p.Checkout, logg))

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", controllers.OrdersList(p.Orders, format, logg))
			r.Get("/last", controllers.OrderLast(p.Orders, format, logg))
			r.Route("/{ref}", func(r chi.Router) {
				r.Get("/", controllers.OrderDetail(p.Orders, format, logg))
				r.Get("/pay", controllers.OrderPaymentMethods(p.Orders, p.Checkout, logg))
				r.With(idempotent(middleware.PaymentReplayTTL)).
					Post("/pay", controllers.OrderPay(p.Orders, p.Checkout, logg))

				r.Group(func(r chi.Router) {
					r.Use(middleware.RequireStaff(logg))
					r.With(idempotent(middleware.PaymentReplayTTL)).
						Post("/refund", controllers.OrderRefund(p.Orders, format, logg))
					r.Put("/status", controllers.OrderChangeStatus(p.Orders, format, logg))
					r.Get("/notes", controllers.OrderNotes(p.Orders, logg))
					r.With(idempotent(middleware.ReplayTTL)).
						Post("/notes", controllers.OrderAddNote(p.Orders, logg))
				})
			})
		})

		r.With(middleware.RequireStaff(logg)).
			Delete("/products/{type}/{id}", controllers.ProductDelete(p.Catalog, logg))
	})

	return r
}
