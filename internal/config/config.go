// Package config provides application configuration management.
// Configuration is loaded from environment variables following 12-factor principles.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds all application configuration.
// All fields are populated from environment variables.
type Config struct {
	// Application settings
	AppEnv  string `env:"APP_ENV" envDefault:"development"`
	AppPort int    `env:"APP_PORT" envDefault:"8080"`

	// Database (PostgreSQL)
	DatabaseURL string `env:"DATABASE_URL,required"`

	// Cache (Redis)
	RedisURL string `env:"REDIS_URL,required"`

	// Realtime notifications
	RealtimeTicketSecret string        `env:"REALTIME_TICKET_SECRET"`
	RealtimeTicketTTL    time.Duration `env:"REALTIME_TICKET_TTL" envDefault:"60s"`
	NotifyFanoutEnabled  bool          `env:"NOTIFY_FANOUT_ENABLED" envDefault:"true"`

	// Service tuning
	ServiceOpTimeout  time.Duration `env:"SERVICE_OP_TIMEOUT" envDefault:"5s"`
	ServiceMaxRetries int           `env:"SERVICE_MAX_RETRIES" envDefault:"5"`
	// Timezone used to interpret month filters (IANA name)
	Timezone string `env:"TIMEZONE" envDefault:"UTC"`
	// Cache email lookups in Redis
	UserCacheEnabled bool `env:"USER_CACHE_ENABLED" envDefault:"true"`

	// Activity feed (Redis stream consumed into Postgres)
	ActivityFeedEnabled bool          `env:"ACTIVITY_FEED_ENABLED" envDefault:"true"`
	ActivityBatchSize   int           `env:"ACTIVITY_BATCH_SIZE" envDefault:"100"`
	ActivityBlockTime   time.Duration `env:"ACTIVITY_BLOCK_TIME" envDefault:"5s"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"` // json or text

	// Server timeouts
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"10s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// Rate limiting
	RateLimitAPIEnabled bool `env:"RATE_LIMIT_API_ENABLED" envDefault:"true"`
	RateLimitIPEnabled  bool `env:"RATE_LIMIT_IP_ENABLED" envDefault:"true"`
	RateLimitIPRPS      int  `env:"RATE_LIMIT_IP_RPS" envDefault:"10"`
	RateLimitIPBurst    int  `env:"RATE_LIMIT_IP_BURST" envDefault:"20"`

	// CORS configuration
	// Comma-separated list of allowed origins (e.g., "https://example.com,https://app.example.com")
	CORSAllowedOrigins string `env:"CORS_ALLOWED_ORIGINS" envDefault:""`

	// Request body size limit in bytes (default 64KB)
	MaxRequestBodySize int64 `env:"MAX_REQUEST_BODY_SIZE" envDefault:"65536"`
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
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

// Location resolves Timezone.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

// Validate checks cross-field constraints env tags cannot express.
func (c *Config) Validate() error {
	if c.IsProduction() && len(c.RealtimeTicketSecret) < 32 {
		return errors.New("REALTIME_TICKET_SECRET must be at least 32 bytes in production")
	}
	if c.RealtimeTicketTTL <= 0 {
		return errors.New("REALTIME_TICKET_TTL must be positive")
	}
	if c.ServiceOpTimeout <= 0 {
		return errors.New("SERVICE_OP_TIMEOUT must be positive")
	}
	if c.ServiceMaxRetries < 1 {
		return errors.New("SERVICE_MAX_RETRIES must be at least 1")
	}
	if c.ActivityFeedEnabled && c.ActivityBatchSize < 1 {
		return errors.New("ACTIVITY_BATCH_SIZE must be at least 1")
	}
	if c.LogFormat != "json" && c.LogFormat != "text" {
		return fmt.Errorf("LOG_FORMAT must be json or text, got %q", c.LogFormat)
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("invalid TIMEZONE: %w", err)
	}
	return nil
}

// Load parses environment variables and returns a validated Config.
// Returns an error if required variables are missing.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

