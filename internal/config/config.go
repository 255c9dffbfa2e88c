// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Storage drivers for registration sessions and audit logs.
const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
	StorageSQLite   = "sqlite"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// GRPCAddr is the address the gRPC server listens on (e.g. :8080).
	GRPCAddr string `mapstructure:"GRPC_ADDR"`
	// StorageDriver selects the session store: memory, postgres or sqlite.
	StorageDriver string `mapstructure:"STORAGE_DRIVER"`
	// DatabaseURL is the Postgres DSN; required when StorageDriver is postgres.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// SQLitePath is the database file; required when StorageDriver is sqlite.
	SQLitePath string `mapstructure:"SQLITE_PATH"`

	// JWTPrivateKey is the PEM-encoded private key (RSA or ECDSA) or path to file. Empty generates an
	// ephemeral key, so tokens do not survive a restart.
	JWTPrivateKey string `mapstructure:"JWT_PRIVATE_KEY"`
	// JWTPublicKey is the PEM-encoded public key or path to file; used with JWT_PRIVATE_KEY.
	JWTPublicKey string `mapstructure:"JWT_PUBLIC_KEY"`
	JWTIssuer    string `mapstructure:"JWT_ISSUER"`
	JWTAudience  string `mapstructure:"JWT_AUDIENCE"`
	// SessionTokenTTL is the session token lifetime (e.g. "24h").
	SessionTokenTTL string `mapstructure:"SESSION_TOKEN_TTL"`
	// BcryptCost is the bcrypt cost factor (4–31); default 12.
	BcryptCost int `mapstructure:"BCRYPT_COST"`

	// GatewayAuthURL is the base URL of send-code and verify-code.
	GatewayAuthURL string `mapstructure:"GATEWAY_AUTH_URL"`
	// GatewayVendorURL is the base URL of the sellers/* endpoints.
	GatewayVendorURL string `mapstructure:"GATEWAY_VENDOR_URL"`
	GatewayTimeout   string `mapstructure:"GATEWAY_TIMEOUT"`

	VerificationCodeTTL        string `mapstructure:"VERIFICATION_CODE_TTL"`
	VerificationResendCooldown string `mapstructure:"VERIFICATION_RESEND_COOLDOWN"`
	VerificationMaxAttempts    int    `mapstructure:"VERIFICATION_MAX_ATTEMPTS"`
	// LinkTTLValue is how long an unverified session can be resumed from its link.
	LinkTTLValue      string `mapstructure:"LINK_TTL"`
	ResumeLinkBaseURL string `mapstructure:"RESUME_LINK_BASE_URL"`
	// ResumeLinkInactivity is the minimum idle time before a resume email is sent.
	ResumeLinkInactivity string `mapstructure:"RESUME_LINK_INACTIVITY"`

	// RequirementsPolicyPath is an optional Rego file replacing the built-in requirements policy.
	RequirementsPolicyPath string `mapstructure:"REQUIREMENTS_POLICY_PATH"`

	// DevGateway when true uses the in-process gateway and registers DevService for code retrieval.
	// Must not be true when Env is production.
	DevGateway bool `mapstructure:"DEV_GATEWAY"`
	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`

	// Telemetry (optional). When Kafka brokers are set, the server emits onboarding events to Kafka.
	// TelemetryKafkaBrokers is a comma-separated list of Kafka broker addresses (e.g. "localhost:9092").
	TelemetryKafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	TelemetryKafkaTopic   string `mapstructure:"TELEMETRY_KAFKA_TOPIC"`

	// Worker-only: Loki URL for the telemetry worker to push logs (e.g. http://localhost:3100).
	LokiURL string `mapstructure:"LOKI_URL"`
	// KafkaGroupID is the consumer group ID for the telemetry worker.
	KafkaGroupID string `mapstructure:"KAFKA_GROUP_ID"`

	// OTLPEndpoint is the OTLP/gRPC collector; empty disables export.
	OTLPEndpoint    string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTLPInsecure    bool   `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`
	OTelServiceName string `mapstructure:"OTEL_SERVICE_NAME"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("GRPC_ADDR", ":8080")
	v.SetDefault("STORAGE_DRIVER", StorageMemory)
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("SQLITE_PATH", "data/onboarding.db")
	v.SetDefault("JWT_PRIVATE_KEY", "")
	v.SetDefault("JWT_PUBLIC_KEY", "")
	v.SetDefault("JWT_ISSUER", "seller-onboarding")
	v.SetDefault("JWT_AUDIENCE", "seller-onboarding-api")
	v.SetDefault("SESSION_TOKEN_TTL", "24h")
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("GATEWAY_AUTH_URL", "http://localhost:8000")
	v.SetDefault("GATEWAY_VENDOR_URL", "http://localhost:8012")
	v.SetDefault("GATEWAY_TIMEOUT", "15s")
	v.SetDefault("VERIFICATION_CODE_TTL", "15m")
	v.SetDefault("VERIFICATION_RESEND_COOLDOWN", "60s")
	v.SetDefault("VERIFICATION_MAX_ATTEMPTS", 5)
	v.SetDefault("LINK_TTL", "1h")
	v.SetDefault("RESUME_LINK_BASE_URL", "http://localhost:3000/register/seller")
	v.SetDefault("RESUME_LINK_INACTIVITY", "5m")
	v.SetDefault("REQUIREMENTS_POLICY_PATH", "")
	v.SetDefault("DEV_GATEWAY", false)
	v.SetDefault("APP_ENV", "")
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("TELEMETRY_KAFKA_TOPIC", "onboarding-telemetry")
	v.SetDefault("KAFKA_GROUP_ID", "onboarding-telemetry-worker")
	v.SetDefault("LOKI_URL", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", false)
	v.SetDefault("OTEL_SERVICE_NAME", "seller-onboarding")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.GRPCAddr == "" {
		return nil, errors.New("config: GRPC_ADDR must be set")
	}

	cfg.StorageDriver = strings.ToLower(strings.TrimSpace(cfg.StorageDriver))
	switch cfg.StorageDriver {
	case StorageMemory:
	case StoragePostgres:
		if strings.TrimSpace(cfg.DatabaseURL) == "" {
			return nil, errors.New("config: DATABASE_URL must be set when STORAGE_DRIVER=postgres")
		}
	case StorageSQLite:
		if strings.TrimSpace(cfg.SQLitePath) == "" {
			return nil, errors.New("config: SQLITE_PATH must be set when STORAGE_DRIVER=sqlite")
		}
	default:
		return nil, errors.New("config: STORAGE_DRIVER must be memory, postgres or sqlite")
	}

	if cfg.DevGateway && cfg.Env == "production" {
		return nil, errors.New("config: DEV_GATEWAY must not be true when APP_ENV=production")
	}

	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = 12
	}
	if cfg.BcryptCost < 4 || cfg.BcryptCost > 31 {
		return nil, errors.New("config: BCRYPT_COST must be between 4 and 31")
	}
	if cfg.VerificationMaxAttempts < 1 {
		return nil, errors.New("config: VERIFICATION_MAX_ATTEMPTS must be at least 1")
	}

	return &cfg, nil
}

func duration(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil || d <= 0 {
		return def
	}
	return d
}

// TokenTTL parses SessionTokenTTL. Returns 24h if unset or invalid.
func (c *Config) TokenTTL() time.Duration { return duration(c.SessionTokenTTL, 24*time.Hour) }

// GatewayTimeoutDuration parses GatewayTimeout. Returns 15s if unset or invalid.
func (c *Config) GatewayTimeoutDuration() time.Duration { return duration(c.GatewayTimeout, 15*time.Second) }

// CodeTTL parses VerificationCodeTTL. Returns 15m if unset or invalid.
func (c *Config) CodeTTL() time.Duration { return duration(c.VerificationCodeTTL, 15*time.Minute) }

// ResendCooldown parses VerificationResendCooldown. Returns 60s if unset or invalid.
func (c *Config) ResendCooldown() time.Duration {
	return duration(c.VerificationResendCooldown, 60*time.Second)
}

// LinkTTL parses LinkTTLValue. Returns 1h if unset or invalid.
func (c *Config) LinkTTL() time.Duration { return duration(c.LinkTTLValue, time.Hour) }

// ResumeInactivity parses ResumeLinkInactivity. Returns 5m if unset or invalid.
func (c *Config) ResumeInactivity() time.Duration {
	return duration(c.ResumeLinkInactivity, 5*time.Minute)
}

// TelemetryKafkaBrokersList returns Kafka broker addresses from the comma-separated config.
// Used to decide if telemetry is enabled (non-empty list) and to create the producer.
func (c *Config) TelemetryKafkaBrokersList() []string {
	if c == nil || c.TelemetryKafkaBrokers == "" {
		return nil
	}
	parts := strings.Split(c.TelemetryKafkaBrokers, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
