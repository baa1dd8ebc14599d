package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"lootledger/database"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Database configuration
	DatabaseURL      string
	DatabaseName     string
	DatabaseMaxConns int32

	// HTTP configuration
	HTTPAddr       string
	JWTSecret      string
	AllowedOrigins []string

	// Redis configuration (optional, enables the distributed per-user lock)
	RedisURL    string
	UserLockTTL time.Duration

	// NATS configuration (optional, empty disables event publishing)
	NATSServers string
	NATSStream  string

	// Observability
	MetricsExporter string // "none", "console" or "otlp"
	OTLPEndpoint    string
	LogLevel        string
	LogFormat       string // "text" or "json"

	// Ledger configuration
	MaxConflictRetries int
	ResellPercentage   int64
	DemoSpinEnabled    bool

	// Environment
	Environment string // "development", "production" or "test"
}

var (
	instance *Config
	once     sync.Once
	mu       sync.Mutex // Protects instance for test setup
)

// Get returns the global configuration instance
func Get() *Config {
	mu.Lock()
	defer mu.Unlock()

	if instance != nil {
		return instance
	}

	once.Do(func() {
		// A missing .env file is normal outside local development
		_ = godotenv.Load()

		var err error
		instance, err = load()
		if err != nil {
			if os.Getenv("GO_TEST") == "1" || os.Getenv("ENVIRONMENT") == "test" {
				instance = NewTestConfig()
			} else {
				panic(fmt.Sprintf("failed to load config: %v", err))
			}
		}
	})
	return instance
}

// GetDatabaseURL constructs the full database URL by combining base URL and database name
func (c *Config) GetDatabaseURL() string {
	return database.ConstructDatabaseURL(c.DatabaseURL, c.DatabaseName)
}

// IsTest reports whether the application runs under the test environment
func (c *Config) IsTest() bool {
	return c.Environment == "test"
}

func load() (*Config, error) {
	config := &Config{
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		DatabaseName:     os.Getenv("DATABASE_NAME"),
		DatabaseMaxConns: 20,

		HTTPAddr:  getEnvWithDefault("HTTP_ADDR", ":8080"),
		JWTSecret: os.Getenv("JWT_SECRET"),

		RedisURL:    os.Getenv("REDIS_URL"),
		UserLockTTL: 5 * time.Second,

		NATSServers: os.Getenv("NATS_SERVERS"),
		NATSStream:  getEnvWithDefault("NATS_STREAM", "LEDGER"),

		MetricsExporter: getEnvWithDefault("METRICS_EXPORTER", "none"),
		OTLPEndpoint:    getEnvWithDefault("OTLP_ENDPOINT", "localhost:4317"),
		LogLevel:        getEnvWithDefault("LOG_LEVEL", "info"),
		LogFormat:       getEnvWithDefault("LOG_FORMAT", "text"),

		MaxConflictRetries: 3,
		ResellPercentage:   80,
		DemoSpinEnabled:    true,

		Environment: os.Getenv("ENVIRONMENT"),
	}

	if config.DatabaseURL == "" {
		config.DatabaseURL = database.BuildDatabaseURL(
			getEnvWithDefault("DATABASE_HOST", "localhost"),
			getEnvWithDefault("DATABASE_PORT", "5432"),
			getEnvWithDefault("DATABASE_USER", "postgres"),
			os.Getenv("DATABASE_PASSWORD"),
			getEnvWithDefault("DATABASE_SSLMODE", "disable"),
		)
	}

	if v := os.Getenv("DB_MAX_CONNS"); v != "" {
		if parsed, err := strconv.ParseInt(v, 10, 32); err == nil && parsed > 0 {
			config.DatabaseMaxConns = int32(parsed)
		}
	}
	if v := os.Getenv("USER_LOCK_TTL"); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			config.UserLockTTL = parsed
		}
	}
	if v := os.Getenv("MAX_CONFLICT_RETRIES"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed >= 0 {
			config.MaxConflictRetries = parsed
		}
	}
	if v := os.Getenv("RESELL_PERCENTAGE"); v != "" {
		parsed, err := strconv.ParseInt(v, 10, 64)
		if err != nil || parsed < 0 || parsed > 100 {
			return nil, fmt.Errorf("RESELL_PERCENTAGE must be an integer between 0 and 100")
		}
		config.ResellPercentage = parsed
	}
	if v := os.Getenv("DEMO_SPIN_ENABLED"); v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			config.DemoSpinEnabled = parsed
		}
	}
	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		for _, origin := range strings.Split(origins, ",") {
			origin = strings.TrimSpace(origin)
			if origin != "" {
				config.AllowedOrigins = append(config.AllowedOrigins, origin)
			}
		}
	}

	if config.Environment == "" {
		config.Environment = "development"
	}

	if config.Environment != "test" {
		if config.JWTSecret == "" {
			return nil, fmt.Errorf("JWT_SECRET is required")
		}
		if config.DatabaseName != "" && strings.TrimSpace(config.DatabaseName) == "" {
			return nil, fmt.Errorf("DATABASE_NAME cannot be empty when provided")
		}
	}

	return config, nil
}

// getEnvWithDefault returns the environment variable value or a default if not set
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// Test helpers - only use in tests

// SetTestConfig overrides the global config instance for testing
func SetTestConfig(testConfig *Config) {
	mu.Lock()
	defer mu.Unlock()
	instance = testConfig
}

// ResetConfig resets the global config instance and sync.Once for testing
func ResetConfig() {
	mu.Lock()
	defer mu.Unlock()
	instance = nil
	once = sync.Once{}
}

// NewTestConfig creates a minimal config suitable for unit tests
func NewTestConfig() *Config {
	return &Config{
		Environment:        "test",
		JWTSecret:          "test-secret",
		UserLockTTL:        time.Second,
		MetricsExporter:    "none",
		LogLevel:           "debug",
		LogFormat:          "text",
		MaxConflictRetries: 3,
		ResellPercentage:   80,
		DemoSpinEnabled:    true,
	}
}
