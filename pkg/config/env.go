package config

const (
	EnvPrefix = "HYDROMART"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv     = "HYDROMART_APP_ENV"
	EnvPort       = "HYDROMART_APP_PORT"
	EnvDBDSN      = "HYDROMART_DB_DSN"
	EnvDBHost     = "HYDROMART_DB_HOST"
	EnvDBPort     = "HYDROMART_DB_PORT"
	EnvDBUser     = "HYDROMART_DB_USER"
	EnvDBPassword = "HYDROMART_DB_PASSWORD"
	EnvDBName     = "HYDROMART_DB_NAME"
	EnvUseSQLite  = "HYDROMART_USE_SQLITE"
	EnvRedisURL   = "HYDROMART_REDIS_URL"
	EnvJWTSecret  = "HYDROMART_JWT_SECRET"
	EnvJWTIssuer  = "HYDROMART_JWT_ISSUER"

	EnvPaymentWebhookSecret = "HYDROMART_PAYMENT_WEBHOOK_SECRET"
	EnvOrderPendingTTL      = "HYDROMART_ORDER_PENDING_TTL"
	EnvSettlementTopic      = "HYDROMART_PUBSUB_SETTLEMENT_TOPIC"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
