package config

import (
	"fmt"
	"net"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"go.uber.org/multierr"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Basket       BasketConfig
	Orders       OrdersConfig
	Payments     PaymentsConfig
	FeatureFlags FeatureFlagsConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	Metrics      MetricsConfig
	Housekeeping HousekeepingConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.resolveDSN(); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// validate collects every invalid setting so one failed start lists them all.
func (c *Config) validate() error {
	var err error
	positive := func(name string, ok bool) {
		if !ok {
			err = multierr.Append(err, fmt.Errorf("%s must be positive", name))
		}
	}
	positive(EnvBasketSessionTTL, c.Basket.SessionTTL > 0)
	positive(EnvJWTExpMins, c.JWT.ExpirationMinutes > 0)
	positive(EnvOutboxPublishBatchSize, c.Outbox.BatchSize > 0)
	positive(EnvOutboxPublishPollMillis, c.Outbox.PollIntervalMS > 0)
	positive(EnvOutboxMaxAttempts, c.Outbox.MaxAttempts > 0)
	positive(EnvHousekeepingBatchSize, c.Housekeeping.BatchSize > 0)
	positive(EnvHousekeepingInterval, c.Housekeeping.Interval > 0)

	switch strings.ToLower(c.App.LogFormat) {
	case LogFormatJSON, LogFormatConsole:
	default:
		err = multierr.Append(err, fmt.Errorf("%s must be %q or %q", EnvLogFormat, LogFormatJSON, LogFormatConsole))
	}
	if c.Orders.RefGenerator != RefGeneratorSequential && c.Orders.RefGenerator != RefGeneratorRedis {
		err = multierr.Append(err, fmt.Errorf("%s must be %q or %q", EnvOrdersRefGenerator, RefGeneratorSequential, RefGeneratorRedis))
	}
	if c.Basket.ShippingAmount != "" {
		if _, perr := parseAmount(c.Basket.ShippingAmount); perr != nil {
			err = multierr.Append(err, fmt.Errorf("%s: %w", EnvBasketShippingAmount, perr))
		}
	}
	if hasDuplicates(c.Basket.Modifiers) {
		err = multierr.Append(err, fmt.Errorf("%s contains duplicate entries", EnvBasketModifiers))
	}
	if hasDuplicates(c.Payments.Methods) {
		err = multierr.Append(err, fmt.Errorf("%s contains duplicate entries", EnvPaymentMethods))
	}
	return err
}

type AppConfig struct {
	Env          string `envconfig:"STOREFRONT_APP_ENV" required:"true"`
	Port         string `envconfig:"STOREFRONT_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"STOREFRONT_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"STOREFRONT_LOG_WARN_STACK" default:"false"`
	LogFormat    string `envconfig:"STOREFRONT_LOG_FORMAT" default:"json"`
	// CORSOrigins falls back to the local dev servers when empty.
	CORSOrigins []string `envconfig:"STOREFRONT_CORS_ORIGINS"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"STOREFRONT_SERVICE_KIND" default:"api"`
}

// DBConfig takes a DSN, or builds one from the discrete host settings.
type DBConfig struct {
	DSN    string `envconfig:"STOREFRONT_DB_DSN"`
	Driver string `envconfig:"STOREFRONT_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"STOREFRONT_DB_HOST"`
	Port     int    `envconfig:"STOREFRONT_DB_PORT" default:"5432"`
	User     string `envconfig:"STOREFRONT_DB_USER"`
	Password string `envconfig:"STOREFRONT_DB_PASSWORD"`
	Name     string `envconfig:"STOREFRONT_DB_NAME"`
	SSLMode  string `envconfig:"STOREFRONT_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"STOREFRONT_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"STOREFRONT_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"STOREFRONT_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"STOREFRONT_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	// SlowQuery logs statements slower than this; zero disables it.
	SlowQuery time.Duration `envconfig:"STOREFRONT_DB_SLOW_QUERY" default:"200ms"`
}

// IsSQLite reports whether the sqlite driver is selected.
func (db DBConfig) IsSQLite() bool {
	return strings.EqualFold(db.Driver, DBDriverSQLite)
}

type RedisConfig struct {
	URL          string        `envconfig:"STOREFRONT_REDIS_URL"`
	Address      string        `envconfig:"STOREFRONT_REDIS_ADDR"`
	Password     string        `envconfig:"STOREFRONT_REDIS_PASSWORD"`
	DB           int           `envconfig:"STOREFRONT_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"STOREFRONT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"STOREFRONT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"STOREFRONT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"STOREFRONT_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"STOREFRONT_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"STOREFRONT_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"STOREFRONT_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"STOREFRONT_JWT_EXPIRATION_MINUTES" default:"60"`
}

// BasketConfig drives session binding and the modifier chain.
type BasketConfig struct {
	SessionTTL     time.Duration `envconfig:"STOREFRONT_BASKET_SESSION_TTL" default:"336h"`
	SessionHeader  string        `envconfig:"STOREFRONT_BASKET_SESSION_HEADER" default:"X-Session-Key"`
	SessionCookie  string        `envconfig:"STOREFRONT_BASKET_SESSION_COOKIE" default:"storefront_session"`
	Modifiers      []string      `envconfig:"STOREFRONT_BASKET_MODIFIERS"`
	ShippingAmount string        `envconfig:"STOREFRONT_BASKET_SHIPPING_AMOUNT" default:"30"`
}

type OrdersConfig struct {
	RefGenerator string `envconfig:"STOREFRONT_ORDERS_REF_GENERATOR" default:"sequential"`
	// PricePrefix is prepended to formatted prices, e.g. "$" or "EUR ".
	PricePrefix string `envconfig:"STOREFRONT_ORDERS_PRICE_PREFIX"`
}

type PaymentsConfig struct {
	Methods []string `envconfig:"STOREFRONT_PAYMENT_METHODS" default:"pay-in-advance"`
	SiteURL string   `envconfig:"STOREFRONT_SITE_URL" default:"http://localhost:8080"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"STOREFRONT_AUTO_MIGRATE" default:"false"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"STOREFRONT_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	OrderEventsTopic string `envconfig:"STOREFRONT_PUBSUB_ORDER_EVENTS_TOPIC" default:"storefront-order-events"`
	EmulatorHost     string `envconfig:"STOREFRONT_PUBSUB_EMULATOR_HOST"`
	CreateTopics     bool   `envconfig:"STOREFRONT_PUBSUB_CREATE_TOPICS" default:"false"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"STOREFRONT_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"STOREFRONT_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"STOREFRONT_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

// HousekeepingConfig drives the periodic cleanup worker. Idle anonymous
// baskets are swept once their session binding has expired.
type HousekeepingConfig struct {
	Interval        time.Duration `envconfig:"STOREFRONT_HOUSEKEEPING_INTERVAL" default:"1h"`
	OutboxRetention time.Duration `envconfig:"STOREFRONT_HOUSEKEEPING_OUTBOX_RETENTION" default:"720h"`
	BatchSize       int           `envconfig:"STOREFRONT_HOUSEKEEPING_BATCH_SIZE" default:"500"`
}

type MetricsConfig struct {
	Enabled bool `envconfig:"STOREFRONT_METRICS_ENABLED" default:"true"`
}

func (db *DBConfig) resolveDSN() error {
	switch {
	case db.DSN != "":
		return nil
	case db.IsSQLite():
		db.DSN = DefaultSQLiteDSN
		return nil
	}

	var missing []string
	for env, value := range map[string]string{EnvDBHost: db.Host, EnvDBUser: db.User, EnvDBName: db.Name} {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, env)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("set %s, or all of %s", EnvDBDSN, strings.Join(missing, ", "))
	}

	u := url.URL{
		Scheme: DBDriverPostgres,
		User:   url.User(db.User),
		Host:   net.JoinHostPort(db.Host, strconv.Itoa(db.Port)),
		Path:   db.Name,
	}
	if db.Password != "" {
		u.User = url.UserPassword(db.User, db.Password)
	}
	if db.SSLMode != "" {
		u.RawQuery = url.Values{"sslmode": {db.SSLMode}}.Encode()
	}
	db.DSN = u.String()
	return nil
}

func hasDuplicates(values []string) bool {
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		key := strings.TrimSpace(v)
		if _, ok := seen[key]; ok {
			return true
		}
		seen[key] = struct{}{}
	}
	return false
}
