// Package config loads application configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Import    ImportConfig
	Profiling ProfilingConfig
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Host string
	Port int
}

// DatabaseConfig holds PostgreSQL connection settings
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
}

// ImportConfig holds OBJCLASS ingestion settings
type ImportConfig struct {
	// FlushEvery is the number of rows between durability flushes. Rows
	// processed after the last flush are lost on a crash.
	FlushEvery int
	// DefaultFiscalYear is used when an amount column header carries no
	// four-digit year.
	DefaultFiscalYear int
	// DataSource tags every outlay written by a run, e.g. "OBJCLASS_2026".
	DataSource string
}

// ProfilingConfig holds pprof settings
type ProfilingConfig struct {
	Enabled bool
	Port    int
}

// DSN returns the PostgreSQL connection string
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode)
}

// Load reads configuration from environment variables with sensible defaults
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
			Port: getEnvInt("SERVER_PORT", 8080),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			Name:     getEnv("DB_NAME", "federal_budget"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Import: ImportConfig{
			FlushEvery:        getEnvInt("IMPORT_FLUSH_EVERY", 100),
			DefaultFiscalYear: getEnvInt("IMPORT_DEFAULT_FISCAL_YEAR", 2026),
			DataSource:        getEnv("IMPORT_DATA_SOURCE", "OBJCLASS_2026"),
		},
		Profiling: ProfilingConfig{
			Enabled: getEnvBool("PPROF_ENABLED", false),
			Port:    getEnvInt("PPROF_PORT", 6060),
		},
	}

	if cfg.Import.FlushEvery < 1 {
		return nil, fmt.Errorf("IMPORT_FLUSH_EVERY must be at least 1, got %d", cfg.Import.FlushEvery)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
