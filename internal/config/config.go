// Package config loads the bot configuration from the environment.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"

	SessionStoreMemory = "memory"
	SessionStoreRedis  = "redis"

	ProviderOpenRouter = "openrouter"
	ProviderGemini     = "gemini"
)

// Config holds all application configuration
type Config struct {
	TelegramToken string
	LogLevel      slog.Level
	LogJSON       bool
	HealthAddr    string

	Database   DatabaseConfig
	Session    SessionConfig
	Generation GenerationConfig

	// Admins is built once at startup and never mutated afterwards
	Admins AdminSet
}

// DatabaseConfig selects the SQL driver and its data source
type DatabaseConfig struct {
	Driver string
	DSN    string
}

// SessionConfig controls where quiz sessions live and how long they survive idle
type SessionConfig struct {
	Store         string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	TTL           time.Duration
	SweepInterval time.Duration
}

// GenerationConfig controls the question source
type GenerationConfig struct {
	Provider         string
	OpenRouterAPIKey string
	OpenRouterModel  string
	OpenRouterURL    string
	GeminiAPIKey     string
	GeminiModel      string
	Attempts         int
	Timeout          time.Duration
	RetryDelay       time.Duration
	ProgressInterval time.Duration
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	admins, err := ParseAdminSet(os.Getenv("ADMIN_USER_IDS"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		TelegramToken: strings.TrimSpace(os.Getenv("TELEGRAM_BOT_TOKEN")),
		LogLevel:      parseLevel(getEnv("LOG_LEVEL", "info")),
		LogJSON:       getEnvBool("LOG_JSON", false),
		HealthAddr:    getEnv("HEALTH_ADDR", ""),
		Database: DatabaseConfig{
			Driver: getEnv("DB_DRIVER", DriverSQLite),
			DSN:    getEnv("DB_DSN", "data/quizbot.db"),
		},
		Session: SessionConfig{
			Store:         getEnv("SESSION_STORE", SessionStoreMemory),
			RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
			RedisPassword: getEnv("REDIS_PASSWORD", ""),
			RedisDB:       getEnvInt("REDIS_DB", 0),
			TTL:           getEnvDuration("SESSION_TTL", 2*time.Hour),
			SweepInterval: getEnvDuration("SESSION_SWEEP_INTERVAL", 10*time.Minute),
		},
		Generation: GenerationConfig{
			Provider:         getEnv("QUESTION_PROVIDER", ProviderOpenRouter),
			OpenRouterAPIKey: getEnv("OPENROUTER_API_KEY", ""),
			OpenRouterModel:  getEnv("OPENROUTER_MODEL", "mistralai/mixtral-8x7b-instruct"),
			OpenRouterURL:    getEnv("OPENROUTER_URL", "https://openrouter.ai/api/v1/chat/completions"),
			GeminiAPIKey:     getEnv("GEMINI_API_KEY", ""),
			GeminiModel:      getEnv("GEMINI_MODEL", "gemini-1.5-flash"),
			Attempts:         getEnvInt("GENERATION_ATTEMPTS", 10),
			Timeout:          getEnvDuration("GENERATION_TIMEOUT", 30*time.Second),
			RetryDelay:       getEnvDuration("GENERATION_RETRY_DELAY", time.Second),
			ProgressInterval: getEnvDuration("PROGRESS_INTERVAL", 300*time.Millisecond),
		},
		Admins: admins,
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks that all required configuration fields are set
func (c *Config) Validate() error {
	if c.TelegramToken == "" {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN environment variable is not set")
	}
	switch c.Database.Driver {
	case DriverSQLite, DriverPostgres:
	default:
		return fmt.Errorf("DB_DRIVER must be %q or %q, got %q", DriverSQLite, DriverPostgres, c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("DB_DSN cannot be empty")
	}
	switch c.Session.Store {
	case SessionStoreMemory:
	case SessionStoreRedis:
		if c.Session.RedisAddr == "" {
			return fmt.Errorf("REDIS_ADDR cannot be empty with SESSION_STORE=redis")
		}
	default:
		return fmt.Errorf("SESSION_STORE must be %q or %q, got %q", SessionStoreMemory, SessionStoreRedis, c.Session.Store)
	}
	if c.Session.TTL <= 0 || c.Session.SweepInterval <= 0 {
		return fmt.Errorf("SESSION_TTL and SESSION_SWEEP_INTERVAL must be > 0")
	}
	switch c.Generation.Provider {
	case ProviderOpenRouter:
		if c.Generation.OpenRouterAPIKey == "" {
			return fmt.Errorf("OPENROUTER_API_KEY environment variable is not set")
		}
	case ProviderGemini:
		if c.Generation.GeminiAPIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY environment variable is not set")
		}
	default:
		return fmt.Errorf("QUESTION_PROVIDER must be %q or %q, got %q", ProviderOpenRouter, ProviderGemini, c.Generation.Provider)
	}
	if c.Generation.Attempts <= 0 {
		return fmt.Errorf("GENERATION_ATTEMPTS must be > 0")
	}
	if c.Generation.Timeout <= 0 || c.Generation.ProgressInterval <= 0 {
		return fmt.Errorf("GENERATION_TIMEOUT and PROGRESS_INTERVAL must be > 0")
	}
	if c.Generation.RetryDelay < 0 {
		return fmt.Errorf("GENERATION_RETRY_DELAY cannot be negative")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}

func parseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}
