// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir     string // Base directory for the SQLite databases, always absolute
	Port        int
	LogLevel    string
	DevMode     bool
	JWTSecret   string
	JWTLifetime time.Duration
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("FOLIO_DATA_DIR", "./data")

	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}

	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:     absDataDir,
		Port:        getEnvAsInt("FOLIO_PORT", 8080),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		DevMode:     getEnvAsBool("DEV_MODE", false),
		JWTSecret:   getEnv("FOLIO_JWT_SECRET", ""),
		JWTLifetime: time.Duration(getEnvAsInt("FOLIO_JWT_LIFETIME_HOURS", 24)) * time.Hour,
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("FOLIO_JWT_SECRET is required")
	}
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
