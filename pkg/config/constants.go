package config

const EnvPrefix = "GROCERY"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	DBDriverSQLite   = "sqlite"
	DBDriverPostgres = "postgres"

	DefaultSQLiteDSN = "file:grocery.db?_foreign_keys=on&_busy_timeout=5000"
)

const (
	EnvAppEnv   = "GROCERY_APP_ENV"
	EnvPort     = "GROCERY_APP_PORT"
	EnvLogLevel = "GROCERY_LOG_LEVEL"

	EnvDBDSN    = "GROCERY_DB_DSN"
	EnvDBDriver = "GROCERY_DB_DRIVER"
	EnvDBHost   = "GROCERY_DB_HOST"
	EnvDBUser   = "GROCERY_DB_USER"
	EnvDBName   = "GROCERY_DB_NAME"

	EnvRedisURL = "GROCERY_REDIS_URL"

	EnvJWTSecret  = "GROCERY_JWT_SECRET"
	EnvJWTIssuer  = "GROCERY_JWT_ISSUER"
	EnvJWTExpMins = "GROCERY_JWT_EXPIRATION_MINUTES"

	EnvCORSOrigins = "GROCERY_CORS_ALLOWED_ORIGINS"

	EnvStripeAPIKey = "GROCERY_STRIPE_API_KEY"
	EnvStripeSecret = "GROCERY_STRIPE_SECRET"
	EnvStripeEnv    = "GROCERY_STRIPE_ENV"
)

var postgresDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
