package config

// EnvPrefix is the envconfig prefix for all service variables.
const EnvPrefix = "PUJAPATH"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

// Environment variable names shared by Load and the test helpers.
const (
	EnvAppEnv = "PUJAPATH_APP_ENV"
	EnvPort   = "PUJAPATH_APP_PORT"

	EnvDBDSN  = "PUJAPATH_DB_DSN"
	EnvDBHost = "PUJAPATH_DB_HOST"
	EnvDBUser = "PUJAPATH_DB_USER"
	EnvDBName = "PUJAPATH_DB_NAME"

	EnvRedisURL = "PUJAPATH_REDIS_URL"

	EnvJWTSecret              = "PUJAPATH_JWT_SECRET"
	EnvJWTIssuer              = "PUJAPATH_JWT_ISSUER"
	EnvJWTExpMins             = "PUJAPATH_JWT_EXPIRATION_MINUTES"
	EnvRefreshTokenTTLMinutes = "PUJAPATH_REFRESH_TOKEN_TTL_MINUTES"

	EnvRazorpayKeyID     = "PUJAPATH_RAZORPAY_KEY_ID"
	EnvRazorpayKeySecret = "PUJAPATH_RAZORPAY_KEY_SECRET"

	EnvTwilioAccountSID = "PUJAPATH_TWILIO_ACCOUNT_SID"
	EnvTwilioAuthToken  = "PUJAPATH_TWILIO_AUTH_TOKEN"
	EnvTwilioFromNumber = "PUJAPATH_TWILIO_FROM_NUMBER"

	EnvGCPProjectID = "PUJAPATH_GCP_PROJECT_ID"

	EnvPubSubNotificationTopic = "PUJAPATH_PUBSUB_NOTIFICATION_TOPIC"
	EnvPubSubNotificationSub   = "PUJAPATH_PUBSUB_NOTIFICATION_SUBSCRIPTION"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
