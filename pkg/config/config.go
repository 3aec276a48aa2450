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
	OTP          OTPConfig
	Checkout     CheckoutConfig
	Razorpay     RazorpayConfig
	Twilio       TwilioConfig
	Sendgrid     SendgridConfig
	FeatureFlags FeatureFlagsConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	RateLimit    RateLimitConfig
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
	Env          string `envconfig:"PUJAPATH_APP_ENV" required:"true"`
	Port         string `envconfig:"PUJAPATH_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"PUJAPATH_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"PUJAPATH_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"PUJAPATH_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"PUJAPATH_DB_DSN"`
	Driver string `envconfig:"PUJAPATH_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"PUJAPATH_DB_HOST"`
	LegacyPort     int    `envconfig:"PUJAPATH_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"PUJAPATH_DB_USER"`
	LegacyPassword string `envconfig:"PUJAPATH_DB_PASSWORD"`
	LegacyName     string `envconfig:"PUJAPATH_DB_NAME"`
	LegacySSLMode  string `envconfig:"PUJAPATH_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"PUJAPATH_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"PUJAPATH_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"PUJAPATH_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"PUJAPATH_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"PUJAPATH_REDIS_URL" required:"true"`
	Address      string        `envconfig:"PUJAPATH_REDIS_ADDR"`
	Password     string        `envconfig:"PUJAPATH_REDIS_PASSWORD"`
	DB           int           `envconfig:"PUJAPATH_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"PUJAPATH_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"PUJAPATH_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"PUJAPATH_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"PUJAPATH_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"PUJAPATH_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"PUJAPATH_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"PUJAPATH_JWT_ISSUER" required:"true"`
	ExpirationMinutes      int    `envconfig:"PUJAPATH_JWT_EXPIRATION_MINUTES" required:"true"`
	RefreshTokenTTLMinutes int    `envconfig:"PUJAPATH_REFRESH_TOKEN_TTL_MINUTES" default:"43200"`
}

// RefreshTokenTTL returns the refresh token TTL configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

type OTPConfig struct {
	CodeTTL           time.Duration `envconfig:"PUJAPATH_OTP_CODE_TTL" default:"5m"`
	SendLimit         int           `envconfig:"PUJAPATH_OTP_SEND_LIMIT" default:"3"`
	SendWindow        time.Duration `envconfig:"PUJAPATH_OTP_SEND_WINDOW" default:"10m"`
	MaxVerifyAttempts int           `envconfig:"PUJAPATH_OTP_MAX_VERIFY_ATTEMPTS" default:"5"`
	LockoutDuration   time.Duration `envconfig:"PUJAPATH_OTP_LOCKOUT_DURATION" default:"15m"`
}

type CheckoutConfig struct {
	MinOrderValue       int           `envconfig:"PUJAPATH_CHECKOUT_MIN_ORDER_VALUE" default:"399"`
	PaymentOrderTimeout time.Duration `envconfig:"PUJAPATH_CHECKOUT_PAYMENT_ORDER_TIMEOUT" default:"15s"`
}

type RazorpayConfig struct {
	KeyID     string `envconfig:"PUJAPATH_RAZORPAY_KEY_ID" required:"true"`
	KeySecret string `envconfig:"PUJAPATH_RAZORPAY_KEY_SECRET" required:"true"`
}

type TwilioConfig struct {
	AccountSID string `envconfig:"PUJAPATH_TWILIO_ACCOUNT_SID" required:"true"`
	AuthToken  string `envconfig:"PUJAPATH_TWILIO_AUTH_TOKEN" required:"true"`
	FromNumber string `envconfig:"PUJAPATH_TWILIO_FROM_NUMBER" required:"true"`
}

type SendgridConfig struct {
	APIKey      string `envconfig:"PUJAPATH_SENDGRID_API_KEY"`
	DefaultFrom string `envconfig:"PUJAPATH_SENDGRID_FROM_EMAIL" default:"orders@pujapath.in"`
	AdminEmail  string `envconfig:"PUJAPATH_SENDGRID_ADMIN_EMAIL"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"PUJAPATH_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"PUJAPATH_AUTO_MIGRATE" default:"false"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"PUJAPATH_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"PUJAPATH_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"PUJAPATH_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	NotificationTopic        string `envconfig:"PUJAPATH_PUBSUB_NOTIFICATION_TOPIC" default:"pujapath-notification-events"`
	NotificationSubscription string `envconfig:"PUJAPATH_PUBSUB_NOTIFICATION_SUBSCRIPTION" required:"true"`
}

// RateLimitConfig throttles the OTP surface before the per-phone send
// counter in the OTP service is consulted.
type RateLimitConfig struct {
	OTPWindow     time.Duration `envconfig:"PUJAPATH_OTP_RATE_WINDOW" default:"10m"`
	OTPIPLimit    int           `envconfig:"PUJAPATH_OTP_RATE_IP_LIMIT" default:"30"`
	OTPPhoneLimit int           `envconfig:"PUJAPATH_OTP_RATE_PHONE_LIMIT" default:"10"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"PUJAPATH_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"PUJAPATH_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"PUJAPATH_OUTBOX_MAX_ATTEMPTS" default:"10"`
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
