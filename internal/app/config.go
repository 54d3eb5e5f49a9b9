package app

import (
	"errors"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/kis-labs/webbuilder/internal/platform/cache"
	"github.com/kis-labs/webbuilder/internal/token"
)

// Config holds runtime configuration for the application.
type Config struct {
	AppEnv            string        `envconfig:"APP_ENV" default:"development"`
	AppAddr           string        `envconfig:"APP_ADDR" default:":8080"`
	AppReadTimeout    time.Duration `envconfig:"APP_READ_TIMEOUT" default:"15s"`
	AppWriteTimeout   time.Duration `envconfig:"APP_WRITE_TIMEOUT" default:"15s"`
	AppRequestTimeout time.Duration `envconfig:"APP_REQUEST_TIMEOUT" default:"30s"`

	LogFormat string `envconfig:"LOG_FORMAT" default:"pretty"`

	PGHost           string        `envconfig:"PG_HOST" default:"localhost"`
	PGPort           int           `envconfig:"PG_PORT" default:"5432"`
	PGUser           string        `envconfig:"PG_USER" default:"webbuilder"`
	PGPassword       string        `envconfig:"PG_PASSWORD" default:"webbuilder"`
	PGDatabase       string        `envconfig:"PG_DATABASE" default:"webbuilder"`
	PGSSLMode        string        `envconfig:"PG_SSLMODE" default:"disable"`
	PGMaxConns       int32         `envconfig:"PG_MAX_CONNS" default:"10"`
	PGConnectTimeout time.Duration `envconfig:"PG_CONNECT_TIMEOUT" default:"10s"`

	JWTAccessSecret  string        `envconfig:"JWT_ACCESS_SECRET"`
	JWTRefreshSecret string        `envconfig:"JWT_REFRESH_SECRET"`
	JWTAccessTTL     time.Duration `envconfig:"JWT_ACCESS_TTL" default:"1h"`
	JWTRefreshTTL    time.Duration `envconfig:"JWT_REFRESH_TTL" default:"168h"`
	JWTIssuer        string        `envconfig:"JWT_ISSUER" default:"webbuilder"`

	BcryptCost int `envconfig:"BCRYPT_COST" default:"10"`

	RedisAddr     string `envconfig:"REDIS_ADDR" default:"127.0.0.1:6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	AuthRateLimit   int           `envconfig:"AUTH_RATE_LIMIT" default:"10"`
	AuthRateWindow  time.Duration `envconfig:"AUTH_RATE_WINDOW" default:"1m"`
	GlobalRateLimit int           `envconfig:"GLOBAL_RATE_LIMIT" default:"300"`

	DuplicateMaxAttempts int `envconfig:"DUPLICATE_MAX_ATTEMPTS" default:"3"`

	WorkerConcurrency  int           `envconfig:"WORKER_CONCURRENCY" default:"5"`
	WorkerMetricsAddr  string        `envconfig:"WORKER_METRICS_ADDR" default:":9091"`
	ActionLogRetention time.Duration `envconfig:"ACTION_LOG_RETENTION" default:"2160h"`
	ActionLogPurgeCron string        `envconfig:"ACTION_LOG_PURGE_CRON" default:"@daily"`
}

// LoadConfig reads configuration from environment variables and validates it.
func LoadConfig() (*Config, error) {
	cfg, err := ReadConfig()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ReadConfig reads configuration without validating it. Operator tooling that
// never issues tokens uses it.
func ReadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values envconfig cannot express.
func (c *Config) Validate() error {
	if err := c.Token().Validate(); err != nil {
		return err
	}
	if c.PGMaxConns <= 0 {
		return errors.New("PG_MAX_CONNS must be positive")
	}
	if c.AuthRateLimit <= 0 || c.AuthRateWindow < time.Second {
		return errors.New("AUTH_RATE_LIMIT must be positive and AUTH_RATE_WINDOW at least 1s")
	}
	if c.DuplicateMaxAttempts <= 0 {
		return errors.New("DUPLICATE_MAX_ATTEMPTS must be positive")
	}
	if c.ActionLogRetention < 0 {
		return errors.New("ACTION_LOG_RETENTION must not be negative")
	}
	return nil
}

// IsProduction returns true when the application runs in production.
func (c *Config) IsProduction() bool {
	return c != nil && c.AppEnv == "production"
}

// DSN assembles the Postgres connection URL.
func (c *Config) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.PGUser, c.PGPassword),
		Host:   net.JoinHostPort(c.PGHost, strconv.Itoa(c.PGPort)),
		Path:   "/" + c.PGDatabase,
	}
	q := url.Values{}
	q.Set("sslmode", c.PGSSLMode)
	if c.PGConnectTimeout > 0 {
		q.Set("connect_timeout", strconv.Itoa(int(c.PGConnectTimeout.Seconds())))
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// Token returns the token codec settings.
func (c *Config) Token() token.Config {
	return token.Config{
		AccessSecret:  c.JWTAccessSecret,
		RefreshSecret: c.JWTRefreshSecret,
		AccessTTL:     c.JWTAccessTTL,
		RefreshTTL:    c.JWTRefreshTTL,
		Issuer:        c.JWTIssuer,
	}
}

// Redis returns the Redis connection settings.
func (c *Config) Redis() cache.Options {
	return cache.Options{Addr: c.RedisAddr, Password: c.RedisPassword, DB: c.RedisDB}
}
