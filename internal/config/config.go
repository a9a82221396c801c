// Package config provides application configuration management.
// Configuration is loaded from environment variables following 12-factor principles,
// optionally seeded from a local .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// minJWTSecretLen is the minimum accepted HMAC secret length in bytes.
const minJWTSecretLen = 32

// ErrWeakJWTSecret is returned when JWT_SECRET is shorter than minJWTSecretLen.
var ErrWeakJWTSecret = errors.New("JWT_SECRET must be at least 32 bytes")

// Config holds all application configuration.
// All fields are populated from environment variables.
type Config struct {
	// Application settings
	AppEnv  string `env:"APP_ENV" envDefault:"development"`
	AppPort int    `env:"APP_PORT" envDefault:"8080"`

	// Namespace isolates projects and settings of one deployment.
	AppNamespace string `env:"APP_NAMESPACE" envDefault:"default"`

	// Credential store (MongoDB)
	MongoURL      string `env:"MONGO_URL,required"`
	MongoDatabase string `env:"MONGO_DATABASE" envDefault:"projectdesk"`

	// Project store (PostgreSQL)
	DatabaseURL string `env:"DATABASE_URL,required"`

	// Change notifications and limits (Redis). Empty means in-process only.
	RedisURL string `env:"REDIS_URL"`

	// Identity tokens
	JWTSecret string        `env:"JWT_SECRET,required"`
	TokenTTL  time.Duration `env:"TOKEN_TTL" envDefault:"24h"`

	// Manager role
	EnforceManagerRole    bool          `env:"ENFORCE_MANAGER_ROLE" envDefault:"false"`
	RoleSwitchMaxAttempts int           `env:"ROLE_SWITCH_MAX_ATTEMPTS" envDefault:"5"`
	RoleSwitchWindow      time.Duration `env:"ROLE_SWITCH_WINDOW" envDefault:"15m"`

	// Per-address limit on signup and login. Needs Redis; 0 disables.
	AuthRateLimitPerMinute int `env:"AUTH_RATE_LIMIT_PER_MINUTE" envDefault:"20"`
	AuthRateLimitBurst     int `env:"AUTH_RATE_LIMIT_BURST" envDefault:"10"`
	// Take the client address from X-Forwarded-For / X-Real-IP. Only enable
	// behind a proxy that overwrites those headers.
	TrustProxyHeaders bool `env:"TRUST_PROXY_HEADERS" envDefault:"false"`

	// Manager webhook for raised queries. Needs Redis; empty disables.
	QueryWebhookURL         string `env:"QUERY_WEBHOOK_URL"`
	QueryWebhookSecret      string `env:"QUERY_WEBHOOK_SECRET"`
	QueryWebhookMaxAttempts int    `env:"QUERY_WEBHOOK_MAX_ATTEMPTS" envDefault:"3"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// Server timeouts
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"10s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// CORS configuration
	// Comma-separated list of allowed origins (e.g., "https://example.com,https://app.example.com")
	CORSAllowedOrigins string `env:"CORS_ALLOWED_ORIGINS" envDefault:""`

	// Request body size limit in bytes (default 1MB)
	MaxRequestBodySize int64 `env:"MAX_REQUEST_BODY_SIZE" envDefault:"1048576"`

	// Marks the token cookie Secure. Forced on in production.
	CookieSecure bool `env:"COOKIE_SECURE" envDefault:"false"`

	// Timezone used to decide what "today" is for past-due filtering.
	Timezone string `env:"TIMEZONE" envDefault:"UTC"`
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// SecureCookies reports whether cookies must carry the Secure attribute.
func (c *Config) SecureCookies() bool {
	return c.CookieSecure || c.IsProduction()
}

// Location returns the configured timezone, falling back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// GetCORSAllowedOrigins parses the comma-separated origins string into a slice.
func (c *Config) GetCORSAllowedOrigins() []string {
	if c.CORSAllowedOrigins == "" {
		return nil
	}

	origins := strings.Split(c.CORSAllowedOrigins, ",")
	result := make([]string, 0, len(origins))

	for _, origin := range origins {
		trimmed := strings.TrimSpace(origin)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}

// Load reads an optional .env file, parses environment variables and returns a Config.
// Variables already present in the environment take precedence over the file.
// Returns an error if required variables are missing.
func Load() (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if len(cfg.JWTSecret) < minJWTSecretLen {
		return nil, ErrWeakJWTSecret
	}
	return cfg, nil
}

func loadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}
