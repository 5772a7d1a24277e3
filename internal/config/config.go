// Package config loads service settings from the environment, optionally
// seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Storage backends.
const (
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Config holds every runtime setting.
type Config struct {
	// Server
	Port        string
	Environment string
	CORSOrigins []string

	// Storage
	Backend  string
	Database DatabaseConfig

	// Redis; empty disables the shared failure window.
	RedisURL string

	// Access policy
	SessionTTL           time.Duration
	RateLimitWindow      time.Duration
	RateLimitMaxFailures int
	CodeMaxAttempts      int
	DefaultMaxOperators  int
	StatsTimezone        string

	// HTTP guards
	AdminKey          string
	RequestsPerSecond float64
	RequestBurst      int

	EnableMetrics bool
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
	Timeout  time.Duration
}

// DSN builds a libpq-compatible connection string.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// Load reads .env (if present) and then the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	cfg := FromEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromEnv builds a Config from environment variables and defaults.
func FromEnv() *Config {
	return &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "development"),
		CORSOrigins: getEnvAsList("CORS_ORIGINS", "*"),

		Backend: getEnv("STORE_BACKEND", BackendPostgres),
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "boothaccess"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			Timeout:  getEnvAsDuration("DB_TIMEOUT", "5s"),
		},

		RedisURL: getEnv("REDIS_URL", ""),

		SessionTTL:           getEnvAsDuration("SESSION_TTL", "24h"),
		RateLimitWindow:      getEnvAsDuration("RATE_LIMIT_WINDOW", "1h"),
		RateLimitMaxFailures: getEnvAsInt("RATE_LIMIT_MAX_FAILURES", 5),
		CodeMaxAttempts:      getEnvAsInt("CODE_MAX_ATTEMPTS", 10),
		DefaultMaxOperators:  getEnvAsInt("DEFAULT_MAX_OPERATORS", 3),
		StatsTimezone:        getEnv("STATS_TIMEZONE", "UTC"),

		AdminKey:          getEnv("ADMIN_KEY", ""),
		RequestsPerSecond: getEnvAsFloat("REQUESTS_PER_SECOND", 10),
		RequestBurst:      getEnvAsInt("REQUEST_BURST", 20),

		EnableMetrics: getEnvAsBool("ENABLE_METRICS", true),
	}
}

// Validate rejects settings the service cannot run with.
func (c *Config) Validate() error {
	if p, err := strconv.Atoi(c.Port); err != nil || p <= 0 || p > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535, got %q", c.Port)
	}
	if c.Backend != BackendPostgres && c.Backend != BackendMemory {
		return fmt.Errorf("STORE_BACKEND must be %q or %q, got %q", BackendPostgres, BackendMemory, c.Backend)
	}
	if c.Database.Timeout <= 0 {
		return fmt.Errorf("DB_TIMEOUT must be positive")
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive")
	}
	if c.RateLimitWindow <= 0 {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be positive")
	}
	if c.RateLimitMaxFailures <= 0 {
		return fmt.Errorf("RATE_LIMIT_MAX_FAILURES must be positive")
	}
	if c.CodeMaxAttempts <= 0 {
		return fmt.Errorf("CODE_MAX_ATTEMPTS must be positive")
	}
	if c.DefaultMaxOperators <= 0 {
		return fmt.Errorf("DEFAULT_MAX_OPERATORS must be positive")
	}
	if _, err := time.LoadLocation(c.StatsTimezone); err != nil {
		return fmt.Errorf("STATS_TIMEZONE: %w", err)
	}
	if c.RequestsPerSecond <= 0 || c.RequestBurst <= 0 {
		return fmt.Errorf("REQUESTS_PER_SECOND and REQUEST_BURST must be positive")
	}
	if c.Environment == "production" && c.AdminKey == "" {
		return fmt.Errorf("ADMIN_KEY is required in production")
	}
	return nil
}

// StatsLocation returns the time zone daily statistics are cut in.
func (c *Config) StatsLocation() *time.Location {
	loc, err := time.LoadLocation(c.StatsTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value, err := strconv.ParseFloat(getEnv(key, ""), 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value, err := strconv.ParseBool(getEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	if d, err := time.ParseDuration(getEnv(key, defaultValue)); err == nil {
		return d
	}
	d, _ := time.ParseDuration(defaultValue)
	return d
}

func getEnvAsList(key, defaultValue string) []string {
	var out []string
	for _, part := range strings.Split(getEnv(key, defaultValue), ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
