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
	Service       ServiceConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
	FeatureFlags  FeatureFlagsConfig
	Eventing      EventingConfig
	Fees          FeesConfig
	Payout        PayoutConfig
	GCP           GCPConfig
	PubSub        PubSubConfig
	Stripe        StripeConfig
	Outbox        OutboxConfig
	Cron          CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"TOOLYARD_APP_ENV" required:"true"`
	Port         string `envconfig:"TOOLYARD_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"TOOLYARD_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"TOOLYARD_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"TOOLYARD_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"TOOLYARD_DB_DSN"`
	Driver string `envconfig:"TOOLYARD_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"TOOLYARD_DB_HOST"`
	LegacyPort     int    `envconfig:"TOOLYARD_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"TOOLYARD_DB_USER"`
	LegacyPassword string `envconfig:"TOOLYARD_DB_PASSWORD"`
	LegacyName     string `envconfig:"TOOLYARD_DB_NAME"`
	LegacySSLMode  string `envconfig:"TOOLYARD_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"TOOLYARD_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"TOOLYARD_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"TOOLYARD_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"TOOLYARD_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"TOOLYARD_REDIS_URL" required:"true"`
	Address      string        `envconfig:"TOOLYARD_REDIS_ADDR"`
	Password     string        `envconfig:"TOOLYARD_REDIS_PASSWORD"`
	DB           int           `envconfig:"TOOLYARD_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"TOOLYARD_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"TOOLYARD_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"TOOLYARD_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"TOOLYARD_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"TOOLYARD_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"TOOLYARD_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"TOOLYARD_JWT_ISSUER" required:"true"`
	ExpirationMinutes      int    `envconfig:"TOOLYARD_JWT_EXPIRATION_MINUTES" required:"true"`
	RefreshTokenTTLMinutes int    `envconfig:"TOOLYARD_REFRESH_TOKEN_TTL_MINUTES" default:"43200"`
}

// RefreshTokenTTL returns the refresh token TTL configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"TOOLYARD_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"TOOLYARD_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"TOOLYARD_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"TOOLYARD_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"TOOLYARD_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"TOOLYARD_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit    int           `envconfig:"TOOLYARD_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit       int           `envconfig:"TOOLYARD_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	RegisterWindow     time.Duration `envconfig:"TOOLYARD_AUTH_RATE_LIMIT_REGISTER_WINDOW" default:"5m"`
	RegisterEmailLimit int           `envconfig:"TOOLYARD_AUTH_RATE_LIMIT_REGISTER_EMAIL_LIMIT" default:"3"`
	RegisterIPLimit    int           `envconfig:"TOOLYARD_AUTH_RATE_LIMIT_REGISTER_IP_LIMIT" default:"20"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"TOOLYARD_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"TOOLYARD_AUTO_MIGRATE" default:"false"`
}

type EventingConfig struct {
	OutboxIdempotencyTTL time.Duration `envconfig:"TOOLYARD_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
}

// FeesConfig fixes the platform's revenue share. The split is applied with
// integer floor division at purchase time and recorded on the row, so a
// later config change never rewrites history.
type FeesConfig struct {
	PlatformPercent int64 `envconfig:"TOOLYARD_PLATFORM_FEE_PERCENT" default:"30"`
}

type PayoutConfig struct {
	MinimumCents int64  `envconfig:"TOOLYARD_PAYOUT_MINIMUM_CENTS" default:"5000"`
	HourlyLimit  int    `envconfig:"TOOLYARD_PAYOUT_HOURLY_LIMIT" default:"3"`
	Currency     string `envconfig:"TOOLYARD_PAYOUT_CURRENCY" default:"usd"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"TOOLYARD_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"TOOLYARD_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"TOOLYARD_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	BillingTopic             string `envconfig:"TOOLYARD_PUBSUB_BILLING_TOPIC" required:"true"`
	BillingSubscription      string `envconfig:"TOOLYARD_PUBSUB_BILLING_SUBSCRIPTION" required:"true"`
	NotificationTopic        string `envconfig:"TOOLYARD_PUBSUB_NOTIFICATION_TOPIC" default:"ty-notification-events"`
	NotificationSubscription string `envconfig:"TOOLYARD_PUBSUB_NOTIFICATION_SUBSCRIPTION" required:"true"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"TOOLYARD_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"TOOLYARD_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"TOOLYARD_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type CronConfig struct {
	Interval time.Duration `envconfig:"TOOLYARD_CRON_INTERVAL" default:"24h"`
}

type StripeConfig struct {
	APIKey              string `envconfig:"TOOLYARD_STRIPE_API_KEY"`
	Secret              string `envconfig:"TOOLYARD_STRIPE_WEBHOOK_SECRET"`
	Env                 string `envconfig:"TOOLYARD_STRIPE_ENV" default:"test"`
	SubscriptionPriceID string `envconfig:"TOOLYARD_STRIPE_SUBSCRIPTION_PRICE_ID"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
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
