// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/hugo617/healthcare-admin-sub001/internal/security"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the address the HTTP API listens on (e.g. :8080).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// GRPCAddr is the address the gRPC server (health, reflection) listens on (e.g. :9090).
	GRPCAddr string `mapstructure:"GRPC_ADDR"`
	// DatabaseURL is the Postgres DSN.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// JWTSecret is the HS256 signing secret; at least 32 bytes.
	JWTSecret string `mapstructure:"JWT_SECRET"`
	// JWTTTL is the normal token lifetime (e.g. "24h").
	JWTTTL string `mapstructure:"JWT_TTL"`
	// JWTLongTTL is the remember-me token lifetime (e.g. "720h").
	JWTLongTTL string `mapstructure:"JWT_LONG_TTL"`
	// SessionTTLValue is the session lifetime for normal logins; long-lived logins use JWT_LONG_TTL.
	SessionTTLValue string `mapstructure:"SESSION_TTL"`
	// SessionTouchIntervalValue throttles last_accessed_at writes (e.g. "5m").
	SessionTouchIntervalValue string `mapstructure:"SESSION_TOUCH_INTERVAL"`
	// SessionRetentionDays is how long inactive sessions are kept before cleanup deletes them.
	SessionRetentionDays int `mapstructure:"SESSION_RETENTION_DAYS"`
	// BcryptCost is the bcrypt cost factor (4–31); default 12.
	BcryptCost int `mapstructure:"BCRYPT_COST"`

	// TenantBaseDomain is the parent domain of tenant subdomains (e.g. console.example.com).
	TenantBaseDomain string `mapstructure:"TENANT_BASE_DOMAIN"`
	// DefaultTenantEnabled turns on the last-resort default tenant.
	DefaultTenantEnabled bool `mapstructure:"DEFAULT_TENANT_ENABLED"`
	// DefaultTenantID is the default tenant; required when DefaultTenantEnabled.
	DefaultTenantID int64 `mapstructure:"DEFAULT_TENANT_ID"`

	// AuthCookieSecure sets the Secure flag on the auth cookie.
	AuthCookieSecure bool `mapstructure:"AUTH_COOKIE_SECURE"`
	// TrustProxyHeaders takes the client IP from X-Forwarded-For or X-Real-IP. Enable only
	// behind a proxy that overwrites those headers.
	TrustProxyHeaders bool `mapstructure:"TRUST_PROXY_HEADERS"`
	// CORSAllowedOrigins is a comma-separated list of allowed origins for the console front ends.
	CORSAllowedOrigins string `mapstructure:"CORS_ALLOWED_ORIGINS"`
	// ScopePolicyFile optionally replaces the built-in resource scope policy (Rego).
	ScopePolicyFile string `mapstructure:"SCOPE_POLICY_FILE"`

	// OTLPEndpoint is the OTLP gRPC collector; empty disables export.
	OTLPEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	// OTLPInsecure forces plaintext to the collector.
	OTLPInsecure bool `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`
	// KafkaBrokers is a comma-separated list of Kafka broker addresses (e.g. "localhost:9092").
	// When set, audit events are also published to AuditKafkaTopic.
	KafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	// AuditKafkaTopic is the Kafka topic for audit events.
	AuditKafkaTopic string `mapstructure:"AUDIT_KAFKA_TOPIC"`

	// Env is the application environment (e.g. "development", "production"); selects the logger.
	Env string `mapstructure:"APP_ENV"`
	// ServiceName is the OTel service.name resource attribute.
	ServiceName string `mapstructure:"SERVICE_NAME"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	cfg, err := read()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadForTool loads Config for offline commands (migrate, cleanup, seed) that never sign tokens.
// It requires DATABASE_URL instead of JWT_SECRET.
func LoadForTool() (*Config, error) {
	cfg, err := read()
	if err != nil {
		return nil, err
	}
	if cfg.DatabaseURL == "" {
		return nil, errors.New("config: DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = 12
	}
	if cfg.SessionRetentionDays <= 0 {
		cfg.SessionRetentionDays = 30
	}
	return cfg, nil
}

func read() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("GRPC_ADDR", ":9090")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("JWT_TTL", "24h")
	v.SetDefault("JWT_LONG_TTL", "720h") // 30d
	v.SetDefault("SESSION_TTL", "24h")
	v.SetDefault("SESSION_TOUCH_INTERVAL", "5m")
	v.SetDefault("SESSION_RETENTION_DAYS", 30)
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("TENANT_BASE_DOMAIN", "")
	v.SetDefault("DEFAULT_TENANT_ENABLED", false)
	v.SetDefault("DEFAULT_TENANT_ID", 0)
	v.SetDefault("AUTH_COOKIE_SECURE", false)
	v.SetDefault("TRUST_PROXY_HEADERS", false)
	v.SetDefault("CORS_ALLOWED_ORIGINS", "")
	v.SetDefault("SCOPE_POLICY_FILE", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", false)
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("AUDIT_KAFKA_TOPIC", "healthadmin-audit")
	v.SetDefault("APP_ENV", "")
	v.SetDefault("SERVICE_NAME", "healthcare-admin")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks required fields and ranges, applying the bcrypt default.
func (c *Config) Validate() error {
	if c.HTTPAddr == "" {
		return errors.New("config: HTTP_ADDR must be set")
	}
	if c.GRPCAddr == "" {
		return errors.New("config: GRPC_ADDR must be set")
	}
	if len(c.JWTSecret) < security.MinSecretLength {
		return errors.New("config: JWT_SECRET must be at least 32 bytes")
	}
	if c.BcryptCost == 0 {
		c.BcryptCost = 12
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		return errors.New("config: BCRYPT_COST must be between 4 and 31")
	}
	if c.DefaultTenantEnabled && c.DefaultTenantID <= 0 {
		return errors.New("config: DEFAULT_TENANT_ID must be set when DEFAULT_TENANT_ENABLED=true")
	}
	if c.SessionRetentionDays <= 0 {
		c.SessionRetentionDays = 30
	}
	return nil
}

// IsProduction reports whether APP_ENV is production.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// TokenTTL parses JWTTTL. Returns 24h if unset or invalid.
func (c *Config) TokenTTL() time.Duration {
	return parseDuration(c.JWTTTL, 24*time.Hour)
}

// TokenLongTTL parses JWTLongTTL. Returns 720h if unset or invalid.
func (c *Config) TokenLongTTL() time.Duration {
	return parseDuration(c.JWTLongTTL, 30*24*time.Hour)
}

// SessionTTL parses SessionTTLValue. Returns 24h if unset or invalid.
func (c *Config) SessionTTL() time.Duration {
	return parseDuration(c.SessionTTLValue, 24*time.Hour)
}

// SessionTouchInterval parses SessionTouchIntervalValue. Returns 5m if unset or invalid.
func (c *Config) SessionTouchInterval() time.Duration {
	return parseDuration(c.SessionTouchIntervalValue, 5*time.Minute)
}

// KafkaBrokersList returns Kafka broker addresses from the comma-separated config.
// An empty list disables the Kafka audit stream.
func (c *Config) KafkaBrokersList() []string {
	if c == nil {
		return nil
	}
	return splitList(c.KafkaBrokers)
}

// CORSOrigins returns the allowed origins from the comma-separated config.
func (c *Config) CORSOrigins() []string {
	if c == nil {
		return nil
	}
	return splitList(c.CORSAllowedOrigins)
}

func parseDuration(s string, def time.Duration) time.Duration {
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
