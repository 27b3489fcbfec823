package config

// EnvPrefix namespaces every environment variable the service reads.
const EnvPrefix = "toolyard"

// Recognized application environments.
const (
	AppEnvDev  = "dev"
	AppEnvProd = "production"
)

// Environment variable names shared with tests and tooling.
const (
	EnvAppEnv                 = "TOOLYARD_APP_ENV"
	EnvPort                   = "TOOLYARD_APP_PORT"
	EnvDBDSN                  = "TOOLYARD_DB_DSN"
	EnvDBHost                 = "TOOLYARD_DB_HOST"
	EnvDBUser                 = "TOOLYARD_DB_USER"
	EnvDBName                 = "TOOLYARD_DB_NAME"
	EnvRedisURL               = "TOOLYARD_REDIS_URL"
	EnvJWTSecret              = "TOOLYARD_JWT_SECRET"
	EnvJWTIssuer              = "TOOLYARD_JWT_ISSUER"
	EnvJWTExpMins             = "TOOLYARD_JWT_EXPIRATION_MINUTES"
	EnvRefreshTokenTTLMinutes = "TOOLYARD_REFRESH_TOKEN_TTL_MINUTES"
	EnvGCPProjectID           = "TOOLYARD_GCP_PROJECT_ID"
	EnvPubSubBillingTopic     = "TOOLYARD_PUBSUB_BILLING_TOPIC"
	EnvPubSubBillingSub       = "TOOLYARD_PUBSUB_BILLING_SUBSCRIPTION"
	EnvPubSubNotificationSub  = "TOOLYARD_PUBSUB_NOTIFICATION_SUBSCRIPTION"
	EnvStripeAPIKey           = "TOOLYARD_STRIPE_API_KEY"
	EnvStripeWebhookSecret    = "TOOLYARD_STRIPE_WEBHOOK_SECRET"
)

// legacyDBEnvVars are required when no DSN is provided.
var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
