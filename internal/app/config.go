package app

import (
	"errors"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds runtime configuration for the application.
type Config struct {
	AppEnv            string        `envconfig:"APP_ENV" default:"development"`
	AppAddr           string        `envconfig:"APP_ADDR" default:":8080"`
	AppReadTimeout    time.Duration `envconfig:"APP_READ_TIMEOUT" default:"15s"`
	AppWriteTimeout   time.Duration `envconfig:"APP_WRITE_TIMEOUT" default:"15s"`
	AppRequestTimeout time.Duration `envconfig:"APP_REQUEST_TIMEOUT" default:"30s"`
	AppRateLimit      int           `envconfig:"APP_RATE_LIMIT" default:"120"`

	LogFormat string `envconfig:"LOG_FORMAT" default:"pretty"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`

	RedisAddr     string `envconfig:"REDIS_ADDR" default:"127.0.0.1:6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	ClientCookieName   string        `envconfig:"CLIENT_COOKIE_NAME" default:"odyssey_client"`
	ClientCookieSecret string        `envconfig:"CLIENT_COOKIE_SECRET" required:"true"`
	SessionTTL         time.Duration `envconfig:"SESSION_TTL" default:"720h"`
	SessionIdleTimeout time.Duration `envconfig:"SESSION_IDLE_TIMEOUT" default:"30m"`

	CSRFSecret string `envconfig:"CSRF_SECRET" required:"true"`

	AdminLoginPath  string        `envconfig:"ADMIN_LOGIN_PATH" default:"/admin/login"`
	AuthHTTPTimeout time.Duration `envconfig:"AUTH_HTTP_TIMEOUT" default:"10s"`

	// IdentityURL is the base URL of the identity backend used by admin sessions.
	IdentityURL        string        `envconfig:"IDENTITY_URL" default:"http://127.0.0.1:8080/identity"`
	IdentityEmbedded   bool          `envconfig:"IDENTITY_EMBEDDED" default:"true"`
	IdentityJWTSecret  string        `envconfig:"IDENTITY_JWT_SECRET"`
	IdentityAccessTTL  time.Duration `envconfig:"IDENTITY_ACCESS_TTL" default:"15m"`
	IdentityRefreshTTL time.Duration `envconfig:"IDENTITY_REFRESH_TTL" default:"168h"`
	IdentitySeedPath   string        `envconfig:"IDENTITY_SEED_PATH" default:"config/users.yaml"`
	IdentityLoginLimit int           `envconfig:"IDENTITY_LOGIN_LIMIT" default:"10"`

	// PGDSN switches the embedded identity backend from memory to PostgreSQL when set.
	PGDSN      string `envconfig:"PG_DSN"`
	PGMaxConns int32  `envconfig:"PG_MAX_CONNS" default:"4"`
}

// LoadConfig reads configuration from environment variables.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if cfg.ClientCookieSecret == "" {
		return nil, errors.New("client cookie secret must be provided")
	}
	if cfg.CSRFSecret == "" {
		return nil, errors.New("csrf secret must be provided")
	}
	if cfg.IdentityEmbedded && cfg.IdentityJWTSecret == "" {
		return nil, errors.New("identity jwt secret must be provided when the identity backend is embedded")
	}
	return &cfg, nil
}

// IsProduction returns true when the application runs in production.
func (c *Config) IsProduction() bool {
	return c != nil && c.AppEnv == "production"
}
