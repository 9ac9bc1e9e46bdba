package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App           AppConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
	CORS          CORSConfig
	FeatureFlags  FeatureFlagsConfig
	Stripe        StripeConfig
	Checkout      CheckoutConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.DB.validateDriver(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"GROCERY_APP_ENV" required:"true"`
	Port         string `envconfig:"GROCERY_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"GROCERY_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"GROCERY_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"GROCERY_LOG_WARN_STACK" default:"false"`

	ShutdownTimeout time.Duration `envconfig:"GROCERY_SHUTDOWN_TIMEOUT" default:"15s"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"GROCERY_DB_DSN"`
	Driver string `envconfig:"GROCERY_DB_DRIVER" default:"sqlite"`

	Host     string `envconfig:"GROCERY_DB_HOST"`
	Port     int    `envconfig:"GROCERY_DB_PORT" default:"5432"`
	User     string `envconfig:"GROCERY_DB_USER"`
	Password string `envconfig:"GROCERY_DB_PASSWORD"`
	Name     string `envconfig:"GROCERY_DB_NAME"`
	SSLMode  string `envconfig:"GROCERY_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"GROCERY_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"GROCERY_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"GROCERY_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"GROCERY_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

// IsSQLite reports whether the configured driver is the embedded SQLite store.
func (db DBConfig) IsSQLite() bool {
	return strings.EqualFold(strings.TrimSpace(db.Driver), DBDriverSQLite)
}

type RedisConfig struct {
	URL          string        `envconfig:"GROCERY_REDIS_URL"`
	Address      string        `envconfig:"GROCERY_REDIS_ADDR"`
	Password     string        `envconfig:"GROCERY_REDIS_PASSWORD"`
	DB           int           `envconfig:"GROCERY_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"GROCERY_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"GROCERY_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"GROCERY_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"GROCERY_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"GROCERY_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// Enabled reports whether a Redis endpoint was configured.
func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.URL) != "" || strings.TrimSpace(r.Address) != ""
}

type JWTConfig struct {
	Secret            string `envconfig:"GROCERY_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"GROCERY_JWT_ISSUER" default:"grocery-api"`
	ExpirationMinutes int    `envconfig:"GROCERY_JWT_EXPIRATION_MINUTES" default:"1440"`
}

// AccessTTL returns the access token lifetime.
func (j JWTConfig) AccessTTL() time.Duration {
	if j.ExpirationMinutes <= 0 {
		return 0
	}
	return time.Duration(j.ExpirationMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"GROCERY_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"GROCERY_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"GROCERY_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"GROCERY_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"GROCERY_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"GROCERY_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginIPLimit       int           `envconfig:"GROCERY_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	LoginUserLimit     int           `envconfig:"GROCERY_AUTH_RATE_LIMIT_LOGIN_USER_LIMIT" default:"5"`
	RegisterWindow     time.Duration `envconfig:"GROCERY_AUTH_RATE_LIMIT_REGISTER_WINDOW" default:"5m"`
	RegisterIPLimit    int           `envconfig:"GROCERY_AUTH_RATE_LIMIT_REGISTER_IP_LIMIT" default:"20"`
	RegisterEmailLimit int           `envconfig:"GROCERY_AUTH_RATE_LIMIT_REGISTER_EMAIL_LIMIT" default:"3"`
}

type CORSConfig struct {
	AllowedOrigins []string `envconfig:"GROCERY_CORS_ALLOWED_ORIGINS" default:"http://localhost:3000,http://localhost:5173"`
}

type FeatureFlagsConfig struct {
	AutoMigrate    bool `envconfig:"GROCERY_AUTO_MIGRATE" default:"false"`
	MetricsEnabled bool `envconfig:"GROCERY_METRICS_ENABLED" default:"true"`
}

type StripeConfig struct {
	APIKey     string `envconfig:"GROCERY_STRIPE_API_KEY"`
	Secret     string `envconfig:"GROCERY_STRIPE_SECRET"`
	Env        string `envconfig:"GROCERY_STRIPE_ENV" default:"test"`
	Currency   string `envconfig:"GROCERY_STRIPE_CURRENCY" default:"mxn"`
	SuccessURL string `envconfig:"GROCERY_STRIPE_SUCCESS_URL" default:"http://localhost:3000/checkout/success?session_id={CHECKOUT_SESSION_ID}"`
	CancelURL  string `envconfig:"GROCERY_STRIPE_CANCEL_URL" default:"http://localhost:3000/checkout"`
}

// Enabled reports whether Stripe credentials were supplied.
func (s StripeConfig) Enabled() bool {
	return strings.TrimSpace(s.APIKey) != ""
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

type CheckoutConfig struct {
	OrderNumberPrefix string        `envconfig:"GROCERY_ORDER_NUMBER_PREFIX" default:"ORD"`
	WebhookEventTTL   time.Duration `envconfig:"GROCERY_WEBHOOK_EVENT_TTL" default:"72h"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	if db.IsSQLite() {
		db.DSN = DefaultSQLiteDSN
		return nil
	}

	missing := []string{}
	values := map[string]string{
		EnvDBHost: db.Host,
		EnvDBUser: db.User,
		EnvDBName: db.Name,
	}
	for _, env := range postgresDBEnvVars {
		if values[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.User)
	if db.Password != "" {
		userInfo = url.UserPassword(db.User, db.Password)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}

	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}

func (db *DBConfig) validateDriver() error {
	switch strings.ToLower(strings.TrimSpace(db.Driver)) {
	case DBDriverSQLite, DBDriverPostgres:
		db.Driver = strings.ToLower(strings.TrimSpace(db.Driver))
		return nil
	default:
		return fmt.Errorf("%s must be %q or %q, got %q", EnvDBDriver, DBDriverSQLite, DBDriverPostgres, db.Driver)
	}
}
