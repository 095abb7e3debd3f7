package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the gateway
type Config struct {
	// Server
	Port string
	Env  string

	// Logging
	LogLevel string

	// Database
	DatabaseURL string

	// Redis
	RedisURL string

	// Credential encryption (hex-encoded 32-byte key)
	SecretsKey string

	// Rate Limiting
	RateLimitRequests      int
	RateLimitWindowSeconds int

	// Caching
	CacheTTLSeconds int

	// Upstream forwarding
	UpstreamTimeoutSeconds int
	UpstreamMaxRetries     int

	// Budget alerts
	AlertWebhookURL string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{
		Port:                   getEnv("PORT", "8080"),
		Env:                    getEnv("ENV", "development"),
		LogLevel:               getEnv("LOG_LEVEL", "info"),
		DatabaseURL:            getEnv("DATABASE_URL", ""),
		RedisURL:               getEnv("REDIS_URL", "redis://localhost:6379"),
		SecretsKey:             getEnv("SECRETS_KEY", ""),
		RateLimitRequests:      getEnvInt("RATE_LIMIT_REQUESTS", 100),
		RateLimitWindowSeconds: getEnvInt("RATE_LIMIT_WINDOW_SECONDS", 60),
		CacheTTLSeconds:        getEnvInt("CACHE_TTL_SECONDS", 86400),
		UpstreamTimeoutSeconds: getEnvInt("UPSTREAM_TIMEOUT_SECONDS", 30),
		UpstreamMaxRetries:     getEnvInt("UPSTREAM_MAX_RETRIES", 3),
		AlertWebhookURL:        getEnv("ALERT_WEBHOOK_URL", ""),
	}

	// Validate required fields
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.SecretsKey == "" {
		return nil, fmt.Errorf("SECRETS_KEY is required")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}
