package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Cache    CacheConfig
	Sweeper  SweeperConfig
	Search   SearchConfig
	OTEL     OTELConfig
	Env      string
	LogLevel string
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host           string
	Port           int
	AllowedOrigins []string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

// CacheConfig holds query result cache configuration
type CacheConfig struct {
	KeyPrefix     string
	SearchTTL     time.Duration
	SuggestionTTL time.Duration
	FilterTTL     time.Duration

	// SubscribeInvalidations applies signals published on "<prefix>:invalidate"
	SubscribeInvalidations bool
}

// SweeperConfig holds the background invalidation sweep configuration
type SweeperConfig struct {
	Enabled  bool
	Interval time.Duration
}

// SearchConfig holds keyword extraction configuration
type SearchConfig struct {
	DictionaryPath  string
	SynonymsEnabled bool
	MaxKeywords     int
	DefaultLimit    int
	MaxLimit        int
}

// OTELConfig holds OpenTelemetry configuration
type OTELConfig struct {
	ServiceName    string
	ServiceVersion string
	Endpoint       string
	Enabled        bool
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:           getEnv("SERVER_HOST", "0.0.0.0"),
			Port:           getEnvAsInt("SERVER_PORT", 8080),
			AllowedOrigins: getEnvAsSlice("ALLOWED_ORIGINS", []string{"*"}),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Database: getEnv("DB_NAME", "student_forum"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Enabled:  getEnvAsBool("REDIS_ENABLED", true),
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvAsInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Cache: CacheConfig{
			KeyPrefix:     getEnv("CACHE_KEY_PREFIX", "forum"),
			SearchTTL:     getEnvAsDuration("CACHE_TTL_SEARCH", 15*time.Minute),
			SuggestionTTL: getEnvAsDuration("CACHE_TTL_SUGGESTION", 5*time.Minute),
			FilterTTL:     getEnvAsDuration("CACHE_TTL_FILTER", 30*time.Minute),

			SubscribeInvalidations: getEnvAsBool("CACHE_SUBSCRIBE_INVALIDATIONS", true),
		},
		Sweeper: SweeperConfig{
			Enabled:  getEnvAsBool("SWEEP_ENABLED", true),
			Interval: getEnvAsDuration("SWEEP_INTERVAL", 5*time.Minute),
		},
		Search: SearchConfig{
			DictionaryPath:  getEnv("SEARCH_DICTIONARY_PATH", ""),
			SynonymsEnabled: getEnvAsBool("SEARCH_SYNONYMS_ENABLED", false),
			MaxKeywords:     getEnvAsInt("SEARCH_MAX_KEYWORDS", 10),
			DefaultLimit:    getEnvAsInt("SEARCH_DEFAULT_LIMIT", 20),
			MaxLimit:        getEnvAsInt("SEARCH_MAX_LIMIT", 100),
		},
		OTEL: OTELConfig{
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "forum-search"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "1.0.0"),
			Endpoint:       getEnv("OTEL_ENDPOINT", ""),
			Enabled:        getEnvAsBool("OTEL_ENABLED", false),
		},
		Env:      getEnv("APP_ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the cache and sweeper cannot run with
func (c *Config) Validate() error {
	if c.Cache.SearchTTL <= 0 || c.Cache.SuggestionTTL <= 0 || c.Cache.FilterTTL <= 0 {
		return fmt.Errorf("cache TTLs must be positive")
	}
	if c.Sweeper.Enabled && c.Sweeper.Interval <= 0 {
		return fmt.Errorf("sweep interval must be positive, got %s", c.Sweeper.Interval)
	}
	if c.Search.MaxKeywords <= 0 {
		return fmt.Errorf("SEARCH_MAX_KEYWORDS must be positive, got %d", c.Search.MaxKeywords)
	}
	if c.Search.DefaultLimit <= 0 || c.Search.MaxLimit < c.Search.DefaultLimit {
		return fmt.Errorf("invalid search limits: default=%d max=%d", c.Search.DefaultLimit, c.Search.MaxLimit)
	}
	return nil
}

// DatabaseDSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// RedisAddr returns the Redis address
func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsSlice splits a comma separated value, dropping empty items
func getEnvAsSlice(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	if len(items) == 0 {
		return defaultValue
	}
	return items
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

// getEnvAsDuration accepts Go duration strings ("90s", "5m") or a bare number of seconds
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}
