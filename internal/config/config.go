// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds backend configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the address the HTTP API listens on (e.g. :8080).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// GRPCAddr is the address of the gRPC health endpoint; empty disables it.
	GRPCAddr string `mapstructure:"GRPC_ADDR"`
	// DatabaseURL is the Postgres DSN.
	DatabaseURL string `mapstructure:"DATABASE_URL"`

	// SessionTTL is the session lifetime (e.g. "1h").
	SessionTTL string `mapstructure:"SESSION_TTL"`
	// SessionExpiryLeeway extends ExpiresAt during validation to absorb clock skew (e.g. "5m"); default 0.
	SessionExpiryLeeway string `mapstructure:"SESSION_EXPIRY_LEEWAY"`
	// SessionReapInterval enables the background expired-session reaper when > 0.
	SessionReapInterval string `mapstructure:"SESSION_REAP_INTERVAL"`

	// BcryptCost is the bcrypt cost factor (4–31) for customer passwords; default 12.
	BcryptCost int `mapstructure:"BCRYPT_COST"`
	// PBKDF2Iterations is the PBKDF2-SHA256 iteration count for employee passwords; default 100000.
	PBKDF2Iterations int `mapstructure:"PBKDF2_ITERATIONS"`
	// EmployeeAutoApprove activates registered employees immediately instead of queueing them.
	EmployeeAutoApprove bool `mapstructure:"EMPLOYEE_AUTO_APPROVE"`

	// PaymentIngestSecret is the HS256 key the bank-mail bot signs ingest tokens with.
	PaymentIngestSecret string `mapstructure:"PAYMENT_INGEST_SECRET"`
	// PaymentIngestIssuer is the required iss claim of ingest tokens.
	PaymentIngestIssuer string `mapstructure:"PAYMENT_INGEST_ISSUER"`

	// CORSAllowedOrigins is a comma-separated list of allowed origins ("*" allows any).
	CORSAllowedOrigins string `mapstructure:"CORS_ALLOWED_ORIGINS"`
	// RateLimitPerMinute caps requests per client IP per minute; 0 disables the limiter.
	RateLimitPerMinute int `mapstructure:"RATE_LIMIT_PER_MINUTE"`

	// OTelEndpoint is the OTLP gRPC collector endpoint; empty disables export.
	OTelEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	// OTelInsecure forces a plaintext OTLP connection.
	OTelInsecure bool `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`

	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`
	// LogLevel is a zerolog level name (debug, info, warn, error).
	LogLevel string `mapstructure:"LOG_LEVEL"`

	// Telemetry (optional). When Kafka brokers are set, the server emits domain events to Kafka.
	// TelemetryKafkaBrokers is a comma-separated list of Kafka broker addresses (e.g. "localhost:9092").
	TelemetryKafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	// TelemetryKafkaTopic is the Kafka topic for telemetry events.
	TelemetryKafkaTopic string `mapstructure:"TELEMETRY_KAFKA_TOPIC"`

	// Worker-only: Loki URL for the telemetry worker to push logs (e.g. http://localhost:3100).
	LokiURL string `mapstructure:"LOKI_URL"`
	// KafkaGroupID is the consumer group ID for the telemetry worker.
	KafkaGroupID string `mapstructure:"KAFKA_GROUP_ID"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env.
func Load() (*Config, error) {
	v := newViper()

	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("GRPC_ADDR", "")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("SESSION_TTL", "1h")
	v.SetDefault("SESSION_EXPIRY_LEEWAY", "0s")
	v.SetDefault("SESSION_REAP_INTERVAL", "0s")
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("PBKDF2_ITERATIONS", 100000)
	v.SetDefault("EMPLOYEE_AUTO_APPROVE", false)
	v.SetDefault("PAYMENT_INGEST_SECRET", "")
	v.SetDefault("PAYMENT_INGEST_ISSUER", "bank-mail-bot")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "*")
	v.SetDefault("RATE_LIMIT_PER_MINUTE", 100)
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", false)
	v.SetDefault("APP_ENV", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("TELEMETRY_KAFKA_TOPIC", "storefront-telemetry")
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("LOKI_URL", "")
	v.SetDefault("KAFKA_GROUP_ID", "storefront-telemetry-worker")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.HTTPAddr == "" {
		return nil, errors.New("config: HTTP_ADDR must be set")
	}

	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = 12
	}
	if cfg.BcryptCost < 4 || cfg.BcryptCost > 31 {
		return nil, errors.New("config: BCRYPT_COST must be between 4 and 31")
	}
	if cfg.PBKDF2Iterations <= 0 {
		cfg.PBKDF2Iterations = 100000
	}
	if cfg.PBKDF2Iterations < 10000 {
		return nil, errors.New("config: PBKDF2_ITERATIONS must be at least 10000")
	}
	if cfg.SessionLeeway() > time.Hour {
		return nil, errors.New("config: SESSION_EXPIRY_LEEWAY must not exceed 1h")
	}
	if cfg.Env == "production" && cfg.PaymentIngestSecret == "" {
		return nil, errors.New("config: PAYMENT_INGEST_SECRET must be set when APP_ENV=production")
	}

	return &cfg, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound
	v.AutomaticEnv()
	return v
}

// SessionLifetime parses SessionTTL. Returns 1h if unset or invalid.
func (c *Config) SessionLifetime() time.Duration {
	return parsePositive(c.SessionTTL, time.Hour)
}

// SessionLeeway parses SessionExpiryLeeway. Returns 0 if unset, invalid or negative.
func (c *Config) SessionLeeway() time.Duration {
	return parsePositive(c.SessionExpiryLeeway, 0)
}

// ReapInterval parses SessionReapInterval. Returns 0 (reaper disabled) if unset or invalid.
func (c *Config) ReapInterval() time.Duration {
	return parsePositive(c.SessionReapInterval, 0)
}

// TelemetryKafkaBrokersList returns Kafka broker addresses from the comma-separated config.
// Used to decide if telemetry is enabled (non-empty list) and to create the producer.
func (c *Config) TelemetryKafkaBrokersList() []string {
	if c == nil {
		return nil
	}
	return splitList(c.TelemetryKafkaBrokers)
}

// AllowedOrigins returns the CORS origins list.
func (c *Config) AllowedOrigins() []string {
	if c == nil {
		return nil
	}
	return splitList(c.CORSAllowedOrigins)
}

func parsePositive(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if v := strings.TrimSpace(p); v != "" {
			out = append(out, v)
		}
	}
	return out
}
