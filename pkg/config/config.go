// Package config loads Warden configuration from environment variables with
// validated defaults.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Redis         RedisConfig
	Auth          AuthConfig
	Authz         AuthzConfig
	RateLimit     RateLimitConfig
	SSO           SSOConfig
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Health/metrics server (separate port for k8s probes)
	HealthPort string
}

// DatabaseConfig holds postgres connection settings
type DatabaseConfig struct {
	URL          string
	MaxOpenConns int
	MaxIdleConns int
}

// RedisConfig holds redis connection settings (rate limiting)
type RedisConfig struct {
	URL      string
	Password string
	DB       int
}

// AuthConfig holds session token settings
type AuthConfig struct {
	TokenSecret string
	TokenTTL    time.Duration
}

// AuthzConfig holds the policy model artifact location
type AuthzConfig struct {
	// ModelConfPath overrides the embedded model.conf when set. Read once at
	// startup; there is no hot reload.
	ModelConfPath string
}

// RateLimitConfig holds public-API rate limit settings
type RateLimitConfig struct {
	Enabled           bool
	RequestsPerWindow int
	WindowDuration    time.Duration
}

// SSOConfig holds external identity provider settings
type SSOConfig struct {
	BaseURL string // public base URL used to build callback URLs

	// Chat-platform OAuth2 flow
	ChatClientID     string
	ChatClientSecret string
	ChatAuthURL      string
	ChatTokenURL     string
	ChatUserInfoURL  string

	// Enterprise-identity OIDC flow
	EnterpriseIssuerURL    string
	EnterpriseClientID     string
	EnterpriseClientSecret string

	// Generic SAML flow
	SAMLSSOURL      string
	SAMLIssuer      string
	SAMLCertificate string // IdP signing certificate, PEM
}

// ObservabilityConfig holds logging/metrics/tracing settings
type ObservabilityConfig struct {
	LogLevel           string
	MetricsEnabled     bool
	OTelEnabled        bool
	OTelEndpoint       string
	OTelServiceName    string
	OTelServiceVersion string
	OTelInsecure       bool
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:            getEnv("WARDEN_HOST", "0.0.0.0"),
			Port:            getEnv("WARDEN_PORT", "8080"),
			ReadTimeout:     getEnvDuration("WARDEN_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvDuration("WARDEN_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:     getEnvDuration("WARDEN_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvDuration("WARDEN_SHUTDOWN_TIMEOUT", 30*time.Second),
			HealthPort:      getEnv("WARDEN_HEALTH_PORT", "9090"),
		},
		Database: DatabaseConfig{
			URL:          getEnv("WARDEN_POSTGRES_URL", ""),
			MaxOpenConns: getEnvInt("WARDEN_POSTGRES_MAX_CONNS", 25),
			MaxIdleConns: getEnvInt("WARDEN_POSTGRES_IDLE_CONNS", 5),
		},
		Redis: RedisConfig{
			URL:      getEnv("WARDEN_REDIS_URL", ""),
			Password: getEnv("WARDEN_REDIS_PASSWORD", ""),
			DB:       getEnvInt("WARDEN_REDIS_DB", 0),
		},
		Auth: AuthConfig{
			TokenSecret: getEnv("WARDEN_TOKEN_SECRET", ""),
			TokenTTL:    getEnvDuration("WARDEN_TOKEN_TTL", 24*time.Hour),
		},
		Authz: AuthzConfig{
			ModelConfPath: getEnv("WARDEN_AUTHZ_MODEL_CONF", ""),
		},
		RateLimit: RateLimitConfig{
			Enabled:           getEnvBool("WARDEN_RATELIMIT_ENABLED", true),
			RequestsPerWindow: getEnvInt("WARDEN_RATELIMIT_REQUESTS", 100),
			WindowDuration:    getEnvDuration("WARDEN_RATELIMIT_WINDOW", 15*time.Minute),
		},
		SSO: SSOConfig{
			BaseURL:                getEnv("WARDEN_BASE_URL", "http://localhost:8080"),
			ChatClientID:           getEnv("WARDEN_SSO_CHAT_CLIENT_ID", ""),
			ChatClientSecret:       getEnv("WARDEN_SSO_CHAT_CLIENT_SECRET", ""),
			ChatAuthURL:            getEnv("WARDEN_SSO_CHAT_AUTH_URL", ""),
			ChatTokenURL:           getEnv("WARDEN_SSO_CHAT_TOKEN_URL", ""),
			ChatUserInfoURL:        getEnv("WARDEN_SSO_CHAT_USERINFO_URL", ""),
			EnterpriseIssuerURL:    getEnv("WARDEN_SSO_ENTERPRISE_ISSUER", ""),
			EnterpriseClientID:     getEnv("WARDEN_SSO_ENTERPRISE_CLIENT_ID", ""),
			EnterpriseClientSecret: getEnv("WARDEN_SSO_ENTERPRISE_CLIENT_SECRET", ""),
			SAMLSSOURL:             getEnv("WARDEN_SSO_SAML_SSO_URL", ""),
			SAMLIssuer:             getEnv("WARDEN_SSO_SAML_ISSUER", ""),
			SAMLCertificate:        getEnv("WARDEN_SSO_SAML_CERT", ""),
		},
		Observability: ObservabilityConfig{
			LogLevel:           getEnv("WARDEN_LOG_LEVEL", "info"),
			MetricsEnabled:     getEnvBool("WARDEN_METRICS_ENABLED", true),
			OTelEnabled:        getEnvBool("WARDEN_OTEL_ENABLED", false),
			OTelEndpoint:       getEnv("WARDEN_OTEL_ENDPOINT", "localhost:4317"),
			OTelServiceName:    getEnv("WARDEN_OTEL_SERVICE_NAME", "warden"),
			OTelServiceVersion: getEnv("WARDEN_OTEL_SERVICE_VERSION", "1.0.0"),
			OTelInsecure:       getEnvBool("WARDEN_OTEL_INSECURE", true),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}
	if c.Database.URL == "" {
		return fmt.Errorf("postgres URL is required")
	}
	if c.Auth.TokenSecret == "" {
		return fmt.Errorf("token secret is required")
	}
	if c.RateLimit.Enabled && c.Redis.URL == "" {
		return fmt.Errorf("redis URL is required when rate limiting is enabled")
	}
	if c.Observability.OTelEnabled && c.Observability.OTelEndpoint == "" {
		return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
	}
	return nil
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvInt(key string, def int) int {
	val := os.Getenv(key)
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return def
	}
	return parsed
}

func getEnvBool(key string, def bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return def
	}
	return strings.ToLower(val) == "true"
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return def
	}
	parsed, err := time.ParseDuration(val)
	if err != nil {
		return def
	}
	return parsed
}
