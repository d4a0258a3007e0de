// Package config provides configuration management for the marketplace client.
// It loads configuration from environment variables and .env files.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	API       APIConfig
	Server    ServerConfig
	Database  DatabaseConfig
	Journal   JournalConfig
	Cache     CacheConfig
	Refresh   RefreshConfig
	RateLimit RateLimitConfig
	Logging   LoggingConfig
}

// APIConfig holds settings for the remote marketplace backend
type APIConfig struct {
	BaseURL string
	// PathSuffix is appended to every endpoint path (the PHP backend serves "me.php")
	PathSuffix     string
	Timeout        time.Duration
	RequestsPerSec float64
	Burst          int
	// BreakerFailures is the number of failed calls that opens the circuit
	BreakerFailures int
	BreakerCooldown time.Duration
	MeRetryAttempts int
}

// ServerConfig holds configuration of the local HTTP facade
type ServerConfig struct {
	Port string
	Host string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Postgres   PostgresConfig
	ClickHouse ClickHouseConfig
	Redis      RedisConfig
}

// PostgresConfig holds Postgres configuration for the operation journal
type PostgresConfig struct {
	Enabled        bool
	Host           string
	Port           string
	Database       string
	User           string
	Password       string
	MaxConnections int
}

// URL returns the connection URL used by migrations
func (c PostgresConfig) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.User, c.Password, c.Host, c.Port, c.Database)
}

// ClickHouseConfig holds ClickHouse configuration for the operation journal
type ClickHouseConfig struct {
	Host     string
	Port     string
	Database string
	User     string
	Password string
}

// RedisConfig holds Redis configuration for the snapshot cache
type RedisConfig struct {
	Enabled        bool
	Host           string
	Port           string
	Password       string
	DB             int
	MaxConnections int
}

// Journal backends
const (
	JournalMemory     = "memory"
	JournalPostgres   = "postgres"
	JournalClickHouse = "clickhouse"
)

// JournalConfig selects where the operation journal is kept
type JournalConfig struct {
	Backend string
	// MemoryCapacity bounds the in-memory journal
	MemoryCapacity int
}

// CacheConfig holds snapshot cache configuration
type CacheConfig struct {
	TTL time.Duration
}

// RefreshConfig holds background re-fetch configuration
type RefreshConfig struct {
	Enabled  bool
	Interval time.Duration
}

// RateLimitConfig holds inbound rate limiting for the local facade
type RateLimitConfig struct {
	RequestsPerSec int
	Burst          int
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// LoadConfig loads configuration from .env file and environment variables
func LoadConfig() (*Config, error) {
	// .env is optional; variables may be set directly
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	postgresEnabled := getEnvAsBool("POSTGRES_ENABLED", false)
	journalBackend := JournalMemory
	if postgresEnabled {
		journalBackend = JournalPostgres
	}
	journalBackend = strings.ToLower(getEnv("JOURNAL_BACKEND", journalBackend))
	switch journalBackend {
	case JournalMemory, JournalPostgres, JournalClickHouse:
	default:
		return nil, fmt.Errorf("unknown JOURNAL_BACKEND %q", journalBackend)
	}

	config := &Config{
		API: APIConfig{
			BaseURL:         strings.TrimRight(getEnv("AGORA_API_URL", "http://localhost:8000"), "/"),
			PathSuffix:      getEnv("AGORA_API_SUFFIX", ".php"),
			Timeout:         getEnvAsDuration("AGORA_HTTP_TIMEOUT", 15*time.Second),
			RequestsPerSec:  getEnvAsFloat("AGORA_API_RPS", 10),
			Burst:           getEnvAsInt("AGORA_API_BURST", 5),
			BreakerFailures: getEnvAsInt("AGORA_BREAKER_FAILURES", 5),
			BreakerCooldown: getEnvAsDuration("AGORA_BREAKER_COOLDOWN", 30*time.Second),
			MeRetryAttempts: getEnvAsInt("AGORA_ME_RETRY_ATTEMPTS", 3),
		},
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8080"),
			Host: getEnv("SERVER_HOST", "127.0.0.1"),
		},
		Database: DatabaseConfig{
			Postgres: PostgresConfig{
				Enabled:        postgresEnabled,
				Host:           getEnv("POSTGRES_HOST", "localhost"),
				Port:           getEnv("POSTGRES_PORT", "5432"),
				Database:       getEnv("POSTGRES_DB", "agora"),
				User:           getEnv("POSTGRES_USER", "agora"),
				Password:       getEnv("POSTGRES_PASSWORD", ""),
				MaxConnections: getEnvAsInt("POSTGRES_MAX_CONNECTIONS", 10),
			},
			ClickHouse: ClickHouseConfig{
				Host:     getEnv("CLICKHOUSE_HOST", "localhost"),
				Port:     getEnv("CLICKHOUSE_PORT", "9000"),
				Database: getEnv("CLICKHOUSE_DB", "agora"),
				User:     getEnv("CLICKHOUSE_USER", "default"),
				Password: getEnv("CLICKHOUSE_PASSWORD", ""),
			},
			Redis: RedisConfig{
				Enabled:        getEnvAsBool("REDIS_ENABLED", false),
				Host:           getEnv("REDIS_HOST", "localhost"),
				Port:           getEnv("REDIS_PORT", "6379"),
				Password:       getEnv("REDIS_PASSWORD", ""),
				DB:             getEnvAsInt("REDIS_DB", 0),
				MaxConnections: getEnvAsInt("REDIS_MAX_CONNECTIONS", 10),
			},
		},
		Journal: JournalConfig{
			Backend:        journalBackend,
			MemoryCapacity: getEnvAsInt("JOURNAL_MEMORY_CAPACITY", 1000),
		},
		Cache: CacheConfig{
			TTL: getEnvAsDuration("CACHE_TTL", 24*time.Hour),
		},
		Refresh: RefreshConfig{
			Enabled:  getEnvAsBool("REFRESH_ENABLED", true),
			Interval: getEnvAsDuration("REFRESH_INTERVAL", 30*time.Second),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSec: getEnvAsInt("RATE_LIMIT_RPS", 20),
			Burst:          getEnvAsInt("RATE_LIMIT_BURST", 10),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	return config, nil
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as an integer with a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration gets an environment variable as a duration with a default value
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
