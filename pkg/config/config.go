package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "bidloop"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "BIDLOOP_DB_DSN"
	EnvDBHost = "BIDLOOP_DB_HOST"
	EnvDBUser = "BIDLOOP_DB_USER"
	EnvDBName = "BIDLOOP_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	FeatureFlags FeatureFlagsConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	Cron         CronConfig
	Auction      AuctionConfig
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
	Env          string `envconfig:"BIDLOOP_APP_ENV" required:"true"`
	Port         string `envconfig:"BIDLOOP_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"BIDLOOP_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"BIDLOOP_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"BIDLOOP_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"BIDLOOP_DB_DSN"`
	Driver string `envconfig:"BIDLOOP_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"BIDLOOP_DB_HOST"`
	LegacyPort     int    `envconfig:"BIDLOOP_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"BIDLOOP_DB_USER"`
	LegacyPassword string `envconfig:"BIDLOOP_DB_PASSWORD"`
	LegacyName     string `envconfig:"BIDLOOP_DB_NAME"`
	LegacySSLMode  string `envconfig:"BIDLOOP_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"BIDLOOP_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"BIDLOOP_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"BIDLOOP_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"BIDLOOP_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"BIDLOOP_REDIS_URL" required:"true"`
	Address      string        `envconfig:"BIDLOOP_REDIS_ADDR"`
	Password     string        `envconfig:"BIDLOOP_REDIS_PASSWORD"`
	DB           int           `envconfig:"BIDLOOP_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"BIDLOOP_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"BIDLOOP_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"BIDLOOP_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"BIDLOOP_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"BIDLOOP_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"BIDLOOP_FEATURE_AUTO_MIGRATE" default:"false"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"BIDLOOP_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"BIDLOOP_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"BIDLOOP_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	AuctionTopic             string `envconfig:"BIDLOOP_PUBSUB_AUCTION_TOPIC" required:"true"`
	AuctionSubscription      string `envconfig:"BIDLOOP_PUBSUB_AUCTION_SUBSCRIPTION" required:"true"`
	NotificationTopic        string `envconfig:"BIDLOOP_PUBSUB_NOTIFICATION_TOPIC" default:"bl-notification-events"`
	NotificationSubscription string `envconfig:"BIDLOOP_PUBSUB_NOTIFICATION_SUBSCRIPTION" required:"true"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"BIDLOOP_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"BIDLOOP_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"BIDLOOP_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type CronConfig struct {
	Interval time.Duration `envconfig:"BIDLOOP_CRON_INTERVAL" default:"30s"`
	LockTTL  time.Duration `envconfig:"BIDLOOP_CRON_LOCK_TTL" default:"5m"`
}

type AuctionConfig struct {
	DefaultMinIncrement string `envconfig:"BIDLOOP_AUCTION_DEFAULT_MIN_INCREMENT" default:"1.00"`
	MaxCascadeDepth     int    `envconfig:"BIDLOOP_AUCTION_MAX_CASCADE_DEPTH" default:"64"`
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
