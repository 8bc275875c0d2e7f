// Package config loads gateway configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config represents the complete gateway configuration
type Config struct {
	Server      ServerConfig
	RateLimit   RateLimitConfig
	Tenancy     TenancyConfig
	OAuth       OAuthConfig
	Graph       GraphConfig
	LogLevel    string
	Environment string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration

	// BaseURL is the externally visible address of the gateway, used in
	// discovery metadata documents.
	BaseURL string
}

// RateLimitConfig holds the per-identity admission limiter settings
type RateLimitConfig struct {
	// MaxRequests is the budget per identity per window.
	MaxRequests int

	// Window is the fixed window duration.
	Window time.Duration
}

// TenancyConfig holds tenant allowlist settings
type TenancyConfig struct {
	// AllowedTenants is the comma-separated tenant allowlist. Empty means
	// every tenant passes.
	AllowedTenants string
}

// OAuthConfig holds the upstream authorization server settings and the
// gateway's own application identity there
type OAuthConfig struct {
	AuthorizeURL    string
	TokenURL        string
	ClientID        string
	ClientSecret    string
	Scopes          string
	UpstreamTimeout time.Duration
}

// GraphConfig holds the downstream resource API settings
type GraphConfig struct {
	// BaseURL is the resource API requests are proxied to.
	BaseURL string
}

// New creates a Config by loading environment variables. A .env file is
// loaded first when present.
func New() (*Config, error) {
	_ = godotenv.Load(".env")

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getEnvAsInt("SERVER_PORT", 8080),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			BaseURL:         getEnv("GATEWAY_BASE_URL", "http://localhost:8080"),
		},
		RateLimit: RateLimitConfig{
			MaxRequests: getEnvAsInt("RATE_LIMIT_MAX_REQUESTS", 60),
			Window:      time.Duration(getEnvAsInt("RATE_LIMIT_WINDOW_MS", 60000)) * time.Millisecond,
		},
		Tenancy: TenancyConfig{
			AllowedTenants: getEnv("ALLOWED_TENANTS", ""),
		},
		OAuth: OAuthConfig{
			AuthorizeURL:    getEnv("UPSTREAM_AUTHORIZE_URL", ""),
			TokenURL:        getEnv("UPSTREAM_TOKEN_URL", ""),
			ClientID:        getEnv("OAUTH_CLIENT_ID", ""),
			ClientSecret:    getEnv("OAUTH_CLIENT_SECRET", ""),
			Scopes:          getEnv("OAUTH_SCOPES", "openid profile offline_access User.Read"),
			UpstreamTimeout: getEnvAsDuration("UPSTREAM_TIMEOUT", 30*time.Second),
		},
		Graph: GraphConfig{
			BaseURL: getEnv("GRAPH_API_BASE_URL", "https://graph.microsoft.com/v1.0"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration is usable
func (c *Config) Validate() error {
	if c.RateLimit.MaxRequests <= 0 {
		return fmt.Errorf("rate limit max requests must be positive")
	}
	if c.RateLimit.Window <= 0 {
		return fmt.Errorf("rate limit window must be positive")
	}
	if c.IsProduction() {
		if c.OAuth.ClientID == "" {
			return fmt.Errorf("OAuth client ID is required in production")
		}
		if c.OAuth.AuthorizeURL == "" || c.OAuth.TokenURL == "" {
			return fmt.Errorf("upstream authorize and token URLs are required in production")
		}
	}
	if c.LogLevel == "" {
		return fmt.Errorf("log level is required")
	}
	return nil
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development" || c.Environment == "dev"
}

// Address returns the HTTP server address
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
