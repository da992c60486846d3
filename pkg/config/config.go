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
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Settlement   SettlementConfig
	RateLimit    RateLimitConfig
	Outbox       OutboxConfig
	PubSub       PubSubConfig
	GCP          GCPConfig
	FeatureFlags FeatureFlagsConfig
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
	Env          string `envconfig:"GUIDEPORT_APP_ENV" required:"true"`
	Port         string `envconfig:"GUIDEPORT_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"GUIDEPORT_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"GUIDEPORT_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"GUIDEPORT_DB_DSN"`
	Driver string `envconfig:"GUIDEPORT_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"GUIDEPORT_DB_HOST"`
	LegacyPort     int    `envconfig:"GUIDEPORT_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"GUIDEPORT_DB_USER"`
	LegacyPassword string `envconfig:"GUIDEPORT_DB_PASSWORD"`
	LegacyName     string `envconfig:"GUIDEPORT_DB_NAME"`
	LegacySSLMode  string `envconfig:"GUIDEPORT_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"GUIDEPORT_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"GUIDEPORT_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"GUIDEPORT_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"GUIDEPORT_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"GUIDEPORT_REDIS_URL" required:"true"`
	Address      string        `envconfig:"GUIDEPORT_REDIS_ADDR"`
	Password     string        `envconfig:"GUIDEPORT_REDIS_PASSWORD"`
	DB           int           `envconfig:"GUIDEPORT_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"GUIDEPORT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"GUIDEPORT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"GUIDEPORT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"GUIDEPORT_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"GUIDEPORT_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"GUIDEPORT_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"GUIDEPORT_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"GUIDEPORT_JWT_EXPIRATION_MINUTES" required:"true"`
}

// SettlementConfig carries the knobs for the monthly lock protocol.
type SettlementConfig struct {
	// Mutations applied per atomic batch during a lock commit. The first
	// batch always holds the run row plus every guide row.
	BatchSize int `envconfig:"GUIDEPORT_SETTLEMENT_BATCH_SIZE" default:"430"`
	// Cap on per-guide audit order lines stored in a settlement row.
	AuditLineCap int `envconfig:"GUIDEPORT_SETTLEMENT_AUDIT_LINE_CAP" default:"200"`
	// Commission applied when a preview request omits commission_pct.
	DefaultCommissionPct int `envconfig:"GUIDEPORT_SETTLEMENT_DEFAULT_COMMISSION_PCT" default:"10"`
}

type RateLimitConfig struct {
	CheckoutWindow  time.Duration `envconfig:"GUIDEPORT_RATE_LIMIT_CHECKOUT_WINDOW" default:"1m"`
	CheckoutIPLimit int           `envconfig:"GUIDEPORT_RATE_LIMIT_CHECKOUT_IP_LIMIT" default:"30"`
	AdminWindow     time.Duration `envconfig:"GUIDEPORT_RATE_LIMIT_ADMIN_WINDOW" default:"1m"`
	AdminActorLimit int           `envconfig:"GUIDEPORT_RATE_LIMIT_ADMIN_ACTOR_LIMIT" default:"120"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"GUIDEPORT_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"GUIDEPORT_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"GUIDEPORT_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type PubSubConfig struct {
	DomainTopic        string `envconfig:"GUIDEPORT_PUBSUB_DOMAIN_TOPIC" default:"gp-domain-events"`
	DomainSubscription string `envconfig:"GUIDEPORT_PUBSUB_DOMAIN_SUBSCRIPTION"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"GUIDEPORT_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"GUIDEPORT_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"GUIDEPORT_GOOGLE_APPLICATION_CREDENTIALS"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"GUIDEPORT_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"GUIDEPORT_AUTO_MIGRATE" default:"false"`
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
