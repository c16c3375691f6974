package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	EnvProduction  = "production"
	EnvDevelopment = "development"

	StorageMemory   = "memory"
	StoragePostgres = "postgres"
	StorageRedis    = "redis"
)

type AppConfig struct {
	App          AppSettings          `mapstructure:"app"`
	GRPC         GRPCSettings         `mapstructure:"grpc"`
	Storage      StorageSettings      `mapstructure:"storage"`
	Postgres     PostgresSettings     `mapstructure:"postgres"`
	Redis        RedisSettings        `mapstructure:"redis"`
	Kafka        KafkaSettings        `mapstructure:"kafka"`
	JWT          JWTSettings          `mapstructure:"jwt"`
	Challenge    ChallengeSettings    `mapstructure:"challenge"`
	Verification VerificationSettings `mapstructure:"verification"`
	Password     PasswordSettings     `mapstructure:"password"`
	Notify       NotifySettings       `mapstructure:"notify"`
	Telemetry    TelemetrySettings    `mapstructure:"telemetry"`
	RateLimit    RateLimitSettings    `mapstructure:"rate_limit"`
	Argon2       Argon2Settings       `mapstructure:"argon2"`
}

type AppSettings struct {
	Name        string   `mapstructure:"name"`
	Env         string   `mapstructure:"env"`
	Host        string   `mapstructure:"host"`
	Port        int      `mapstructure:"port"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

// IsProduction reports whether the service runs with production safeguards.
func (a AppSettings) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(a.Env), EnvProduction)
}

type GRPCSettings struct {
	Enabled bool   `mapstructure:"enabled"`
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
}

// StorageSettings selects the backend of each store.
type StorageSettings struct {
	Users      string `mapstructure:"users"`
	Challenges string `mapstructure:"challenges"`
}

type PostgresSettings struct {
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	User              string        `mapstructure:"user"`
	Password          string        `mapstructure:"password"`
	Database          string        `mapstructure:"database"`
	SSLMode           string        `mapstructure:"ssl_mode"`
	MaxConns          int32         `mapstructure:"max_conns"`
	MinConns          int32         `mapstructure:"min_conns"`
	MaxConnLifetime   time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime   time.Duration `mapstructure:"max_conn_idle_time"`
	HealthCheckPeriod time.Duration `mapstructure:"health_check_period"`
	MigrateOnStart    bool          `mapstructure:"migrate_on_start"`
}

// DSN renders the connection string understood by pgx and golang-migrate.
func (p PostgresSettings) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		p.User,
		p.Password,
		p.Host,
		p.Port,
		p.Database,
		p.SSLMode,
	)
}

// RedisSettings configures Redis connection and TLS
type RedisSettings struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	DB              int    `mapstructure:"db"`
	Password        string `mapstructure:"password"`
	TLSEnabled      bool   `mapstructure:"tls_enabled"`
	ChallengePrefix string `mapstructure:"challenge_prefix"`
	RateLimitPrefix string `mapstructure:"rate_limit_prefix"`
}

// KafkaSettings configures the audit event producer
type KafkaSettings struct {
	Enabled     bool     `mapstructure:"enabled"`
	Brokers     []string `mapstructure:"brokers"`
	TopicPrefix string   `mapstructure:"topic_prefix"`
}

type JWTSettings struct {
	SigningMethod string        `mapstructure:"signing_method"`
	Secret        string        `mapstructure:"secret"`
	KeyDirectory  string        `mapstructure:"key_directory"`
	Issuer        string        `mapstructure:"issuer"`
	SessionTTL    time.Duration `mapstructure:"session_ttl"`
	ResetTTL      time.Duration `mapstructure:"reset_ttl"`
}

// ChallengeSettings configures second-factor and password-reset challenges.
type ChallengeSettings struct {
	LoginTTL        time.Duration `mapstructure:"login_ttl"`
	ResetTTL        time.Duration `mapstructure:"reset_ttl"`
	JanitorInterval time.Duration `mapstructure:"janitor_interval"`
	// Retention keeps expired challenges around so a late verify reports expiry instead of not found.
	Retention time.Duration `mapstructure:"retention"`
}

// VerificationSettings configures the email and phone ownership secrets.
type VerificationSettings struct {
	EmailTTL  time.Duration `mapstructure:"email_ttl"`
	PhoneTTL  time.Duration `mapstructure:"phone_ttl"`
	ClientURL string        `mapstructure:"client_url"`
}

type PasswordSettings struct {
	MinLength        int `mapstructure:"min_length"`
	MinStrengthScore int `mapstructure:"min_strength_score"`
}

// NotifySettings configures email and SMS delivery strategies.
type NotifySettings struct {
	DeliveryTimeout  time.Duration    `mapstructure:"delivery_timeout"`
	RetryMaxAttempts uint             `mapstructure:"retry_max_attempts"`
	LogFallback      bool             `mapstructure:"log_fallback"`
	SendGrid         SendGridSettings `mapstructure:"sendgrid"`
	SMTP             SMTPSettings     `mapstructure:"smtp"`
	Twilio           TwilioSettings   `mapstructure:"twilio"`
}

type SendGridSettings struct {
	APIKey  string `mapstructure:"api_key"`
	From    string `mapstructure:"from"`
	BaseURL string `mapstructure:"base_url"`
}

type SMTPSettings struct {
	Host     string `mapstructure:"host"`
	Ports    []int  `mapstructure:"ports"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

type TwilioSettings struct {
	AccountSID          string `mapstructure:"account_sid"`
	AuthToken           string `mapstructure:"auth_token"`
	MessagingServiceSID string `mapstructure:"messaging_service_sid"`
	From                string `mapstructure:"from"`
	BaseURL             string `mapstructure:"base_url"`
}

type TelemetrySettings struct {
	TracingEnabled bool    `mapstructure:"tracing_enabled"`
	OTLPEndpoint   string  `mapstructure:"otlp_endpoint"`
	ServiceName    string  `mapstructure:"service_name"`
	SamplingRate   float64 `mapstructure:"sampling_rate"`
}

// RateLimitSettings configures rate limiting windows and max attempts per endpoint
type RateLimitSettings struct {
	WindowDuration           time.Duration `mapstructure:"window_duration"`
	LoginMaxAttempts         int           `mapstructure:"login_max_attempts"`
	RegisterMaxAttempts      int           `mapstructure:"register_max_attempts"`
	ChallengeMaxAttempts     int           `mapstructure:"challenge_max_attempts"`
	PasswordResetMaxAttempts int           `mapstructure:"password_reset_max_attempts"`
}

// Argon2Settings configures Argon2id password hashing parameters
type Argon2Settings struct {
	Memory      uint32 `mapstructure:"memory"`
	Iterations  uint32 `mapstructure:"iterations"`
	Parallelism uint8  `mapstructure:"parallelism"`
	SaltLength  uint32 `mapstructure:"salt_length"`
	KeyLength   uint32 `mapstructure:"key_length"`
}

// legacyEnv lists variable names used by earlier deployments of the service.
var legacyEnv = map[string][]string{
	"app.env":                             {"NODE_ENV"},
	"app.host":                            {"HOST"},
	"app.port":                            {"PORT"},
	"jwt.secret":                          {"JWT_SECRET"},
	"verification.client_url":             {"CLIENT_URL"},
	"notify.sendgrid.api_key":             {"SENDGRID_API_KEY"},
	"notify.sendgrid.from":                {"SENDGRID_FROM_EMAIL"},
	"notify.twilio.account_sid":           {"TWILIO_ACCOUNT_SID"},
	"notify.twilio.auth_token":            {"TWILIO_AUTH_TOKEN"},
	"notify.twilio.messaging_service_sid": {"TWILIO_MESSAGING_SERVICE_SID"},
	"notify.twilio.from":                  {"TWILIO_FROM"},
}

var envKeys = []string{
	"app.name",
	"app.env",
	"app.host",
	"app.port",
	"app.cors_origins",
	"grpc.enabled",
	"grpc.host",
	"grpc.port",
	"storage.users",
	"storage.challenges",
	"postgres.host",
	"postgres.port",
	"postgres.user",
	"postgres.password",
	"postgres.database",
	"postgres.ssl_mode",
	"postgres.max_conns",
	"postgres.min_conns",
	"postgres.max_conn_lifetime",
	"postgres.max_conn_idle_time",
	"postgres.health_check_period",
	"postgres.migrate_on_start",
	"redis.host",
	"redis.port",
	"redis.db",
	"redis.password",
	"redis.tls_enabled",
	"redis.challenge_prefix",
	"redis.rate_limit_prefix",
	"kafka.enabled",
	"kafka.brokers",
	"kafka.topic_prefix",
	"jwt.signing_method",
	"jwt.secret",
	"jwt.key_directory",
	"jwt.issuer",
	"jwt.session_ttl",
	"jwt.reset_ttl",
	"challenge.login_ttl",
	"challenge.reset_ttl",
	"challenge.janitor_interval",
	"challenge.retention",
	"verification.email_ttl",
	"verification.phone_ttl",
	"verification.client_url",
	"password.min_length",
	"password.min_strength_score",
	"notify.delivery_timeout",
	"notify.retry_max_attempts",
	"notify.log_fallback",
	"notify.sendgrid.api_key",
	"notify.sendgrid.from",
	"notify.sendgrid.base_url",
	"notify.smtp.host",
	"notify.smtp.ports",
	"notify.smtp.username",
	"notify.smtp.password",
	"notify.smtp.from",
	"notify.twilio.account_sid",
	"notify.twilio.auth_token",
	"notify.twilio.messaging_service_sid",
	"notify.twilio.from",
	"notify.twilio.base_url",
	"telemetry.tracing_enabled",
	"telemetry.otlp_endpoint",
	"telemetry.service_name",
	"telemetry.sampling_rate",
	"rate_limit.window_duration",
	"rate_limit.login_max_attempts",
	"rate_limit.register_max_attempts",
	"rate_limit.challenge_max_attempts",
	"rate_limit.password_reset_max_attempts",
	"argon2.memory",
	"argon2.iterations",
	"argon2.parallelism",
	"argon2.salt_length",
	"argon2.key_length",
}

func Load() (*AppConfig, error) {
	v := viper.New()

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix("AUTH")

	setDefaults(v)

	if err := bindEnvs(v, envKeys); err != nil {
		return nil, err
	}

	v.AutomaticEnv()

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects combinations the service cannot start with.
func (c *AppConfig) Validate() error {
	var errs []error

	switch c.Storage.Users {
	case StorageMemory, StoragePostgres:
	default:
		errs = append(errs, fmt.Errorf("storage.users: unknown backend %q", c.Storage.Users))
	}
	switch c.Storage.Challenges {
	case StorageMemory, StorageRedis:
	default:
		errs = append(errs, fmt.Errorf("storage.challenges: unknown backend %q", c.Storage.Challenges))
	}

	switch strings.ToUpper(c.JWT.SigningMethod) {
	case "HS256":
		if strings.TrimSpace(c.JWT.Secret) == "" && c.App.IsProduction() {
			errs = append(errs, errors.New("jwt.secret is required for HS256 in production"))
		}
	case "RS256":
		if strings.TrimSpace(c.JWT.KeyDirectory) == "" {
			errs = append(errs, errors.New("jwt.key_directory is required for RS256"))
		}
	default:
		errs = append(errs, fmt.Errorf("jwt.signing_method: unsupported %q", c.JWT.SigningMethod))
	}

	if c.Notify.LogFallback && c.App.IsProduction() {
		errs = append(errs, errors.New("notify.log_fallback must be disabled in production"))
	}

	return errors.Join(errs...)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "login-ana")
	v.SetDefault("app.env", EnvDevelopment)
	v.SetDefault("app.host", "0.0.0.0")
	v.SetDefault("app.port", 3000)
	v.SetDefault("app.cors_origins", []string{"*"})

	v.SetDefault("grpc.enabled", false)
	v.SetDefault("grpc.host", "0.0.0.0")
	v.SetDefault("grpc.port", 50051)

	v.SetDefault("storage.users", StorageMemory)
	v.SetDefault("storage.challenges", StorageMemory)

	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "auth")
	v.SetDefault("postgres.password", "auth_password")
	v.SetDefault("postgres.database", "auth")
	v.SetDefault("postgres.ssl_mode", "disable")
	v.SetDefault("postgres.max_conns", 10)
	v.SetDefault("postgres.min_conns", 2)
	v.SetDefault("postgres.max_conn_lifetime", "60m")
	v.SetDefault("postgres.max_conn_idle_time", "15m")
	v.SetDefault("postgres.health_check_period", "30s")
	v.SetDefault("postgres.migrate_on_start", false)

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.tls_enabled", false)
	v.SetDefault("redis.challenge_prefix", "auth:challenge")
	v.SetDefault("redis.rate_limit_prefix", "auth:ratelimit")

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic_prefix", "auth")

	v.SetDefault("jwt.signing_method", "HS256")
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.key_directory", "./secrets")
	v.SetDefault("jwt.issuer", "login-ana")
	v.SetDefault("jwt.session_ttl", "1h")
	v.SetDefault("jwt.reset_ttl", "10m")

	v.SetDefault("challenge.login_ttl", "5m")
	v.SetDefault("challenge.reset_ttl", "10m")
	v.SetDefault("challenge.janitor_interval", "1m")
	v.SetDefault("challenge.retention", "24h")

	v.SetDefault("verification.email_ttl", "24h")
	v.SetDefault("verification.phone_ttl", "10m")
	v.SetDefault("verification.client_url", "http://localhost:5173")

	v.SetDefault("password.min_length", 8)
	v.SetDefault("password.min_strength_score", 0)

	v.SetDefault("notify.delivery_timeout", "10s")
	v.SetDefault("notify.retry_max_attempts", 3)
	v.SetDefault("notify.log_fallback", false)
	v.SetDefault("notify.sendgrid.base_url", "https://api.sendgrid.com")
	v.SetDefault("notify.smtp.ports", []int{587, 465, 25})
	v.SetDefault("notify.twilio.base_url", "https://api.twilio.com")

	v.SetDefault("telemetry.tracing_enabled", false)
	v.SetDefault("telemetry.otlp_endpoint", "localhost:4318")
	v.SetDefault("telemetry.service_name", "login-ana")
	v.SetDefault("telemetry.sampling_rate", 1.0)

	v.SetDefault("rate_limit.window_duration", "1m")
	v.SetDefault("rate_limit.login_max_attempts", 5)
	v.SetDefault("rate_limit.register_max_attempts", 3)
	v.SetDefault("rate_limit.challenge_max_attempts", 10)
	v.SetDefault("rate_limit.password_reset_max_attempts", 3)

	v.SetDefault("argon2.memory", 65536) // 64 MB
	v.SetDefault("argon2.iterations", 3)
	v.SetDefault("argon2.parallelism", 4)
	v.SetDefault("argon2.salt_length", 16)
	v.SetDefault("argon2.key_length", 32)
}

func bindEnvs(v *viper.Viper, keys []string) error {
	for _, key := range keys {
		envKey := strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		names := append([]string{"AUTH_" + envKey, envKey}, legacyEnv[key]...)
		if err := v.BindEnv(append([]string{key}, names...)...); err != nil {
			return fmt.Errorf("bind env for %s: %w", key, err)
		}
	}
	return nil
}
