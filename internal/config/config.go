// Package config loads and validates application configuration from
// environment variables. A .env file in the working directory is loaded
// first when present, so local development does not need exported vars.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all configuration values for the API server.
// Values are populated by Load from environment variables.
type Config struct {
	// Port is the TCP port the HTTP server listens on. Defaults to "8080".
	Port string

	// DatabaseURL is the Postgres connection string. Required.
	DatabaseURL string

	// RedisAddr is the host:port of the Redis instance caching learned
	// empty distances. Empty disables the cache layer.
	RedisAddr string

	// LedgerBaseURL is the base URL of the accounting collaborator that
	// records completed trips. Required.
	LedgerBaseURL string

	// LedgerAPIKey authenticates ledger writes. Optional.
	LedgerAPIKey string

	// RoutesBaseURL is the base URL of the master-data service resolving
	// route names. Required.
	RoutesBaseURL string

	// LogLevel controls the minimum log level. Defaults to "info".
	// Valid values: debug, info, warn, error.
	LogLevel string

	// CORSOrigins is the list of allowed cross-origin request origins.
	// Defaults to ["http://localhost:5173"] (Vite dev server).
	// Set CORS_ORIGINS to a comma-separated list to override.
	CORSOrigins []string
}

// Load reads configuration from environment variables and returns a Config.
// Returns an error listing any required variables that are not set.
func Load() (Config, error) {
	// Best-effort: absence of a .env file is the normal production case.
	_ = godotenv.Load()

	cfg := Config{
		Port:         getEnv("PORT", "8080"),
		RedisAddr:    os.Getenv("REDIS_ADDR"),
		LedgerAPIKey: os.Getenv("LEDGER_API_KEY"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		CORSOrigins:  splitCSV(getEnv("CORS_ORIGINS", "http://localhost:5173")),
	}

	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	cfg.LedgerBaseURL = os.Getenv("LEDGER_BASE_URL")
	if cfg.LedgerBaseURL == "" {
		missing = append(missing, "LEDGER_BASE_URL")
	}
	cfg.RoutesBaseURL = os.Getenv("ROUTES_BASE_URL")
	if cfg.RoutesBaseURL == "" {
		missing = append(missing, "ROUTES_BASE_URL")
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("required environment variables not set: %s", strings.Join(missing, ", "))
	}

	return cfg, nil
}

// getEnv returns the value of the environment variable named by key,
// or fallback if the variable is not set or is empty.
func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// splitCSV splits a comma-separated string into a trimmed slice, ignoring empty entries.
func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if t := strings.TrimSpace(part); t != "" {
			out = append(out, t)
		}
	}
	return out
}
