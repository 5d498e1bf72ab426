package main

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/c360/geocache/pkg/cache"
)

// appConfig holds daemon configuration derived from environment variables.
type appConfig struct {
	HTTPPort    int
	MetricsPort int
	LogLevel    string
	LogFormat   string
	Cache       cache.Config
}

// loadConfig reads a .env file when present, then the environment. Every
// setting has a default, so an empty environment yields a runnable daemon.
func loadConfig() appConfig {
	// A missing .env file is not an error; real env vars still apply.
	_ = godotenv.Load()

	return appConfig{
		HTTPPort:    getEnvAsInt("GEOCACHE_HTTP_PORT", 8080),
		MetricsPort: getEnvAsInt("GEOCACHE_METRICS_PORT", 9090),
		LogLevel:    strings.ToLower(strings.TrimSpace(os.Getenv("GEOCACHE_LOG_LEVEL"))),
		LogFormat:   strings.ToLower(strings.TrimSpace(os.Getenv("GEOCACHE_LOG_FORMAT"))),
		Cache: cache.Config{
			MaxSizeBytes:  getEnvAsInt64("GEOCACHE_MAX_SIZE_BYTES", cache.DefaultMaxSizeBytes),
			DefaultTTL:    getEnvAsDuration("GEOCACHE_DEFAULT_TTL", cache.DefaultTTL),
			PruneInterval: getEnvAsDuration("GEOCACHE_PRUNE_INTERVAL", cache.DefaultPruneInterval),
		},
	}
}

// getEnvAsInt retrieves an environment variable as an integer with a default fallback.
func getEnvAsInt(name string, defaultVal int) int {
	if valStr := os.Getenv(name); valStr != "" {
		if val, err := strconv.Atoi(valStr); err == nil {
			return val
		}
	}
	return defaultVal
}

// getEnvAsInt64 retrieves an environment variable as an int64 with a default fallback.
func getEnvAsInt64(name string, defaultVal int64) int64 {
	if valStr := os.Getenv(name); valStr != "" {
		if val, err := strconv.ParseInt(valStr, 10, 64); err == nil {
			return val
		}
	}
	return defaultVal
}

// getEnvAsDuration retrieves an environment variable as a duration ("5m",
// "1h30m") with a default fallback.
func getEnvAsDuration(name string, defaultVal time.Duration) time.Duration {
	if valStr := os.Getenv(name); valStr != "" {
		if val, err := time.ParseDuration(valStr); err == nil {
			return val
		}
	}
	return defaultVal
}
