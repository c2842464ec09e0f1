package main

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/storefront-backend/api/routes"
	"github.com/angelmondragon/storefront-backend/internal/basket"
	"github.com/angelmondragon/storefront-backend/internal/catalog"
	"github.com/angelmondragon/storefront-backend/internal/checkout"
	"github.com/angelmondragon/storefront-backend/internal/modifiers"
	"github.com/angelmondragon/storefront-backend/internal/modifiers/builtin"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/internal/payments/methods"
	"github.com/angelmondragon/storefront-backend/pkg/auth"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/money"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/redis"
)

// wire builds the service graph. The payment methods are bound to the order
// service after it exists since refunds need the method pool.
func wire(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, redisClient *redis.Client, reg prometheus.Registerer) (routes.Params, error) {
	conn := dbClient.DB()

	registry, err := catalog.NewRegistry(catalog.NewProductSource(catalog.NewRepository(conn)))
	if err != nil {
		return routes.Params{}, err
	}
	modifierPool, err := builtin.NewPool(cfg.Basket)
	if err != nil {
		return routes.Params{}, err
	}
	baskets, err := basket.NewService(basket.ServiceParams{
		Tx:         dbClient,
		Repository: basket.NewRepository(conn),
		Sessions:   basket.NewRedisSessionStore(redisClient, cfg.Basket.SessionTTL),
		Catalog:    registry,
		Pricer:     modifiers.NewPipeline(modifierPool, metrics.NewPricingMetrics(reg), logg),
		Logger:     logg,
	})
	if err != nil {
		return routes.Params{}, err
	}
	catalogSvc, err := catalog.NewService(registry, baskets, logg)
	if err != nil {
		return routes.Params{}, err
	}

	ordersRepo := orders.NewRepository(conn)
	deps := &methods.Deps{
		Baskets:  baskets,
		Payments: ordersRepo,
		SiteURL:  cfg.Payments.SiteURL,
	}
	methodPool, err := methods.NewPool(cfg.Payments, deps)
	if err != nil {
		return routes.Params{}, err
	}

	var refs orders.RefGenerator = orders.NewSequentialRefGenerator(ordersRepo)
	if cfg.Orders.RefGenerator == config.RefGeneratorRedis {
		refs = orders.NewRedisRefGenerator(redisClient, ordersRepo)
	}
	ordersSvc, err := orders.NewService(orders.ServiceParams{
		Tx:         dbClient,
		Repository: ordersRepo,
		Baskets:    baskets,
		Methods:    methodPool,
		Refs:       refs,
		Statuses:   orders.DefaultStatusMachine(),
		Notifier:   orders.NewOutboxNotifier(outbox.NewWriter(outbox.NewRepository(conn), logg)),
		Metrics:    metrics.NewOrderMetrics(reg),
		Logger:     logg,
	})
	if err != nil {
		return routes.Params{}, err
	}
	deps.Orders = ordersSvc

	tokens, err := auth.NewTokens(cfg.JWT)
	if err != nil {
		return routes.Params{}, err
	}

	checkoutSvc, err := checkout.NewService(checkout.ServiceParams{
		Baskets:  baskets,
		Orders:   ordersSvc,
		Payments: methodPool,
		Logger:   logg,
	})
	if err != nil {
		return routes.Params{}, err
	}

	return routes.Params{
		Config:      cfg,
		Logger:      logg,
		DB:          dbClient,
		Redis:       redisClient,
		Idempotency: redisClient,
		Tokens:      tokens,
		HTTPMetrics: metrics.NewHTTPMetrics(reg),
		Format:      money.PrefixFormatter(cfg.Orders.PricePrefix),
		Baskets:     baskets,
		Catalog:     catalogSvc,
		Orders:      ordersSvc,
		Checkout:    checkoutSvc,
	}, nil
}
