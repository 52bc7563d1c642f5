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

// Provider backends.
const (
	ProviderSlack  = "slack"
	ProviderMemory = "memory"
)

// Config holds all configuration for the application.
type Config struct {
	Port     string
	Env      string
	LogLevel string
	LogFile  string // rotated JSON log file, in addition to stdout

	// Messaging provider
	Provider           string
	SlackWorldToken    string
	SlackWorldUserID   string
	SlackAPIURL        string
	AlwaysIncludeUsers []string
	ProviderTimeout    time.Duration
	HistoryLimit       int
	SweepConcurrency   int

	// Directory and audit storage
	DatabaseURL   string
	SQLitePath    string
	DirectoryFile string
	RedisURL      string

	// Admin routes
	AdminKeyHash string

	// Rate limiting
	RateLimitWhitelist []string // IPs or CIDRs exempt from rate limiting
	RateLimitRPS       float64  // in-process limit per agent when Redis is absent
	AutoBlockEnabled   bool     // Enable auto-blocking after repeated violations
}

// Load reads configuration from environment variables.
// In development, it loads from .env file if present.
// In production, it panics on missing required variables.
func Load() *Config {
	// Load .env file if it exists (for development)
	_ = godotenv.Load()

	cfg := FromEnv()
	if err := cfg.Validate(); err != nil {
		panic(err.Error())
	}
	return cfg
}

// FromEnv builds a Config from the current environment without validating it.
func FromEnv() *Config {
	cfg := &Config{
		Port:     getEnv("PORT", "8080"),
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		LogFile:  os.Getenv("LOG_FILE"),

		Provider:           getEnv("PROVIDER", ProviderMemory),
		SlackWorldToken:    os.Getenv("SLACK_WORLD_TOKEN"),
		SlackWorldUserID:   os.Getenv("SLACK_WORLD_USER_ID"),
		SlackAPIURL:        os.Getenv("SLACK_API_URL"),
		AlwaysIncludeUsers: getList("ALWAYS_INCLUDE_USERS"),
		ProviderTimeout:    getDuration("PROVIDER_TIMEOUT", 15*time.Second),
		HistoryLimit:       getInt("HISTORY_LIMIT", 100),
		SweepConcurrency:   getInt("SWEEP_CONCURRENCY", 8),

		DatabaseURL:   os.Getenv("DATABASE_URL"),
		SQLitePath:    os.Getenv("SQLITE_PATH"),
		DirectoryFile: os.Getenv("DIRECTORY_FILE"),
		RedisURL:      os.Getenv("REDIS_URL"),

		AdminKeyHash: os.Getenv("ADMIN_KEY_HASH"),

		RateLimitWhitelist: getList("RATE_LIMIT_WHITELIST"),
		RateLimitRPS:       getFloat("RATE_LIMIT_RPS", 5),
		AutoBlockEnabled:   getEnv("AUTO_BLOCK_ENABLED", "false") == "true",
	}
	return cfg
}

// Validate checks the settings that production cannot run without.
func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderSlack:
		if c.SlackWorldToken == "" {
			return errors.New("SLACK_WORLD_TOKEN is required with PROVIDER=slack")
		}
	case ProviderMemory:
	default:
		return fmt.Errorf("unknown PROVIDER %q", c.Provider)
	}

	if c.Env == "production" {
		if c.Provider != ProviderSlack {
			return errors.New("PROVIDER=slack is required in production")
		}
		if c.DatabaseURL == "" && c.DirectoryFile == "" {
			return errors.New("DATABASE_URL or DIRECTORY_FILE is required in production")
		}
		if c.AdminKeyHash == "" {
			return errors.New("ADMIN_KEY_HASH is required in production")
		}
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getList parses a comma-separated variable, dropping empty entries.
func getList(key string) []string {
	var out []string
	for _, entry := range strings.Split(os.Getenv(key), ",") {
		if entry = strings.TrimSpace(entry); entry != "" {
			out = append(out, entry)
		}
	}
	return out
}

func getInt(key string, defaultValue int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil && n > 0 {
		return n
	}
	return defaultValue
}

func getFloat(key string, defaultValue float64) float64 {
	if f, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil && f > 0 {
		return f
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil && d > 0 {
		return d
	}
	return defaultValue
}
