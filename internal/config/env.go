// Package config loads process settings from the environment and connector
// definitions from disk.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

// State backends.
const (
	BackendFile      = "file"
	BackendSQLite    = "sqlite"
	BackendSQLServer = "sqlserver"
	BackendMongo     = "mongo"
)

// Config holds all configuration for the application,
// typically loaded from environment variables.
type Config struct {
	StateBackend    string
	StatePath       string
	SQLConnString   string
	MongoConnString string
	MongoDatabase   string
	LogLevel        string
	LogFile         string
	HTTPTimeout     time.Duration
	// MaxRetries and RetryFactor are negative when unset; the connector's values apply then.
	MaxRetries  int
	RetryFactor float64
	Workers     int
}

// LoadConfig loads application settings from environment variables
// (which should be populated by the .env file in main.go).
func LoadConfig() (*Config, error) {
	cfg := &Config{
		StateBackend:    getenv("STATE_BACKEND", BackendFile),
		StatePath:       os.Getenv("STATE_PATH"),
		SQLConnString:   os.Getenv("SQL_CONNECTION_STRING"),
		MongoConnString: os.Getenv("MONGO_CONNECTION_STRING"),
		MongoDatabase:   getenv("MONGO_DATABASE", "restsync"),
		LogLevel:        getenv("LOG_LEVEL", "info"),
		LogFile:         os.Getenv("LOG_FILE"),
		HTTPTimeout:     30 * time.Second,
		MaxRetries:      -1,
		RetryFactor:     -1,
		Workers:         4,
	}

	var err error
	if v := os.Getenv("HTTP_TIMEOUT"); v != "" {
		if cfg.HTTPTimeout, err = time.ParseDuration(v); err != nil {
			return nil, fmt.Errorf("HTTP_TIMEOUT: %w", err)
		}
	}
	if v := os.Getenv("MAX_RETRIES"); v != "" {
		if cfg.MaxRetries, err = strconv.Atoi(v); err != nil || cfg.MaxRetries < 0 {
			return nil, fmt.Errorf("MAX_RETRIES must be a non-negative integer, got %q", v)
		}
	}
	if v := os.Getenv("RETRY_FACTOR"); v != "" {
		if cfg.RetryFactor, err = strconv.ParseFloat(v, 64); err != nil || cfg.RetryFactor < 0 {
			return nil, fmt.Errorf("RETRY_FACTOR must be a non-negative number, got %q", v)
		}
	}
	if v := os.Getenv("SYNC_WORKERS"); v != "" {
		if cfg.Workers, err = strconv.Atoi(v); err != nil || cfg.Workers < 1 {
			return nil, fmt.Errorf("SYNC_WORKERS must be a positive integer, got %q", v)
		}
	}

	switch cfg.StateBackend {
	case BackendFile:
		if cfg.StatePath == "" {
			cfg.StatePath = "state.json"
		}
	case BackendSQLite:
		if cfg.StatePath == "" {
			cfg.StatePath = "restsync.db"
		}
	case BackendSQLServer:
		if cfg.SQLConnString == "" {
			return nil, errors.New("SQL_CONNECTION_STRING environment variable not set")
		}
	case BackendMongo:
		if cfg.MongoConnString == "" {
			return nil, errors.New("MONGO_CONNECTION_STRING environment variable not set")
		}
	default:
		return nil, fmt.Errorf("STATE_BACKEND %q is not one of file, sqlite, sqlserver, mongo", cfg.StateBackend)
	}
	return cfg, nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// LogSettings returns LOG_FILE and LOG_LEVEL without validating the rest of the environment.
func LogSettings() (file, level string) {
	return os.Getenv("LOG_FILE"), getenv("LOG_LEVEL", "info")
}
