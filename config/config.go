/*
config.go - Runtime configuration

PURPOSE:
  Loads server configuration from the environment, with an optional
  .env file for development. Every knob has a sensible default so the
  binary runs with zero configuration.

VARIABLES:
  PORT          HTTP listen port              (default 8080)
  DB_PATH       SQLite database file          (default collection.db,
                "memory" selects the in-memory store)
  SYSTEM_START  Billing floor month, YYYY-MM  (default 2026-01)
  LOG_LEVEL     zap level: debug|info|warn    (default info)
*/
package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/esaar/collection-engine/billing"
)

// =============================================================================
// CONFIG
// =============================================================================

// Config holds all runtime settings.
type Config struct {
	Port        string
	DBPath      string
	SystemStart billing.Month
	LogLevel    string
}

// Load reads configuration from the environment. A .env file in the
// working directory is merged in first if present; missing files are
// not an error.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Port:     getenv("PORT", "8080"),
		DBPath:   getenv("DB_PATH", "collection.db"),
		LogLevel: getenv("LOG_LEVEL", "info"),
	}

	start, err := billing.ParseMonth(getenv("SYSTEM_START", "2026-01"))
	if err != nil {
		return Config{}, fmt.Errorf("SYSTEM_START: %w", err)
	}
	cfg.SystemStart = start

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks settings that would otherwise fail late.
func (c Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT must not be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH must not be empty")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("LOG_LEVEL %q is not one of debug, info, warn, error", c.LogLevel)
	}
	return nil
}

// Addr returns the listen address for the HTTP server.
func (c Config) Addr() string { return ":" + c.Port }

// InMemory reports whether the in-memory store was requested.
func (c Config) InMemory() bool { return c.DBPath == "memory" }

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
