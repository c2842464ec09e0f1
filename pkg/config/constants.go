package config

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

const EnvPrefix = "STOREFRONT"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	DBDriverPostgres = "postgres"
	DBDriverSQLite   = "sqlite"
	DefaultSQLiteDSN = "file:storefront.db?cache=shared"
)

const (
	LogFormatJSON    = "json"
	LogFormatConsole = "console"
)

const (
	RefGeneratorSequential = "sequential"
	RefGeneratorRedis      = "redis"
)

const (
	EnvAppEnv    = "STOREFRONT_APP_ENV"
	EnvPort      = "STOREFRONT_APP_PORT"
	EnvLogLevel  = "STOREFRONT_LOG_LEVEL"
	EnvLogFormat = "STOREFRONT_LOG_FORMAT"
	EnvSiteURL   = "STOREFRONT_SITE_URL"

	EnvDBDSN    = "STOREFRONT_DB_DSN"
	EnvDBDriver = "STOREFRONT_DB_DRIVER"
	EnvDBHost   = "STOREFRONT_DB_HOST"
	EnvDBUser   = "STOREFRONT_DB_USER"
	EnvDBName   = "STOREFRONT_DB_NAME"

	EnvRedisURL  = "STOREFRONT_REDIS_URL"
	EnvRedisAddr = "STOREFRONT_REDIS_ADDR"

	EnvJWTSecret  = "STOREFRONT_JWT_SECRET"
	EnvJWTIssuer  = "STOREFRONT_JWT_ISSUER"
	EnvJWTExpMins = "STOREFRONT_JWT_EXPIRATION_MINUTES"

	EnvBasketSessionTTL     = "STOREFRONT_BASKET_SESSION_TTL"
	EnvBasketModifiers      = "STOREFRONT_BASKET_MODIFIERS"
	EnvBasketShippingAmount = "STOREFRONT_BASKET_SHIPPING_AMOUNT"

	EnvOrdersRefGenerator = "STOREFRONT_ORDERS_REF_GENERATOR"
	EnvPaymentMethods     = "STOREFRONT_PAYMENT_METHODS"

	EnvGCPProjectID            = "STOREFRONT_GCP_PROJECT_ID"
	EnvPubSubOrderEventsTopic  = "STOREFRONT_PUBSUB_ORDER_EVENTS_TOPIC"
	EnvPubSubEmulatorHost      = "STOREFRONT_PUBSUB_EMULATOR_HOST"
	EnvOutboxPublishBatchSize  = "STOREFRONT_OUTBOX_PUBLISH_BATCH_SIZE"
	EnvOutboxPublishPollMillis = "STOREFRONT_OUTBOX_PUBLISH_POLL_MS"
	EnvOutboxMaxAttempts       = "STOREFRONT_OUTBOX_MAX_ATTEMPTS"

	EnvHousekeepingBatchSize = "STOREFRONT_HOUSEKEEPING_BATCH_SIZE"
	EnvHousekeepingInterval  = "STOREFRONT_HOUSEKEEPING_INTERVAL"
)

// ShippingDecimal returns the configured flat shipping charge.
func (b BasketConfig) ShippingDecimal() decimal.Decimal {
	amount, err := parseAmount(b.ShippingAmount)
	if err != nil {
		return decimal.Zero
	}
	return amount
}

func parseAmount(raw string) (decimal.Decimal, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return decimal.Zero, nil
	}
	amount, err := decimal.NewFromString(trimmed)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q", raw)
	}
	if amount.IsNegative() {
		return decimal.Zero, fmt.Errorf("amount %q must not be negative", raw)
	}
	return amount, nil
}
