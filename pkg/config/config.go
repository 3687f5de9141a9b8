package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Eventing     EventingConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	Webhook      WebhookConfig
	Orders       OrdersConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(cfg.FeatureFlags.UseSQLite); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"HYDROMART_APP_ENV" required:"true"`
	Port         string `envconfig:"HYDROMART_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"HYDROMART_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"HYDROMART_LOG_WARN_STACK" default:"false"`

	CORSAllowedOrigins []string `envconfig:"HYDROMART_CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"HYDROMART_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"HYDROMART_DB_DSN"`
	Driver string `envconfig:"HYDROMART_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"HYDROMART_DB_HOST"`
	LegacyPort     int    `envconfig:"HYDROMART_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"HYDROMART_DB_USER"`
	LegacyPassword string `envconfig:"HYDROMART_DB_PASSWORD"`
	LegacyName     string `envconfig:"HYDROMART_DB_NAME"`
	LegacySSLMode  string `envconfig:"HYDROMART_DB_SSLMODE" default:"disable"`

	// SQLitePath is only read when FeatureFlags.UseSQLite is set.
	SQLitePath string `envconfig:"HYDROMART_SQLITE_PATH" default:"file:hydromart.db?cache=shared"`

	MaxOpenConns    int           `envconfig:"HYDROMART_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"HYDROMART_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"HYDROMART_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"HYDROMART_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"HYDROMART_REDIS_URL" required:"true"`
	Address      string        `envconfig:"HYDROMART_REDIS_ADDR"`
	Password     string        `envconfig:"HYDROMART_REDIS_PASSWORD"`
	DB           int           `envconfig:"HYDROMART_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"HYDROMART_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"HYDROMART_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"HYDROMART_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"HYDROMART_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"HYDROMART_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"HYDROMART_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"HYDROMART_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"HYDROMART_JWT_EXPIRATION_MINUTES" default:"60"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"HYDROMART_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"HYDROMART_AUTO_MIGRATE" default:"false"`
}

type EventingConfig struct {
	IdempotencyTTL        time.Duration `envconfig:"HYDROMART_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
	IdempotencyDefaultTTL time.Duration `envconfig:"HYDROMART_IDEMPOTENCY_DEFAULT_TTL" default:"24h"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"HYDROMART_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"HYDROMART_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"HYDROMART_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	SettlementTopic string `envconfig:"HYDROMART_PUBSUB_SETTLEMENT_TOPIC" default:"hm-settlement-events"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"HYDROMART_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"HYDROMART_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"HYDROMART_OUTBOX_MAX_ATTEMPTS" default:"10"`

	Retention time.Duration `envconfig:"HYDROMART_OUTBOX_RETENTION" default:"720h"`
}

// WebhookConfig holds the shared secret used to authenticate payment
// notifications and the dedupe window for repeated deliveries.
type WebhookConfig struct {
	PaymentSecret string        `envconfig:"HYDROMART_PAYMENT_WEBHOOK_SECRET"`
	DedupeTTL     time.Duration `envconfig:"HYDROMART_PAYMENT_WEBHOOK_DEDUPE_TTL" default:"168h"`
}

type OrdersConfig struct {
	PendingTTL       time.Duration `envconfig:"HYDROMART_ORDER_PENDING_TTL" default:"72h"`
	ExpiryBatchSize  int           `envconfig:"HYDROMART_ORDER_EXPIRY_BATCH_SIZE" default:"100"`
	CronInterval     time.Duration `envconfig:"HYDROMART_CRON_INTERVAL" default:"1h"`
	CronLockTTL      time.Duration `envconfig:"HYDROMART_CRON_LOCK_TTL" default:"10m"`
	LedgerPageLimit  int           `envconfig:"HYDROMART_VENDOR_LEDGER_PAGE_LIMIT" default:"50"`
	LedgerPageMaxCap int           `envconfig:"HYDROMART_VENDOR_LEDGER_PAGE_MAX" default:"200"`
	CommissionBps    int           `envconfig:"HYDROMART_VENDOR_COMMISSION_BPS" default:"1000"`
}

func (db *DBConfig) ensureDSN(useSQLite bool) error {
	if db.DSN != "" || useSQLite {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
