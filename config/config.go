package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// MaxMatchLimit is the hard upper bound on matching.max_limit
const MaxMatchLimit = 10

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig
	Embedding EmbeddingConfig
	Store     StoreConfig
	Matching  MatchingConfig
	Cache     CacheConfig
	RateLimit RateLimitConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port           string        `mapstructure:"port"`
	Environment    string        `mapstructure:"environment"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// EmbeddingConfig holds embedding provider configuration
type EmbeddingConfig struct {
	Provider          string        `mapstructure:"provider"` // "openai" or "hash"
	Model             string        `mapstructure:"model"`
	APIKey            string        `mapstructure:"api_key"`
	BaseURL           string        `mapstructure:"base_url"`
	Dimensions        int           `mapstructure:"dimensions"`
	BatchSize         int           `mapstructure:"batch_size"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Burst             int           `mapstructure:"burst"`
}

// StoreConfig holds catalog store configuration
type StoreConfig struct {
	Path           string `mapstructure:"path"`
	WriteChunkSize int    `mapstructure:"write_chunk_size"`
}

// MatchingConfig holds query defaults and bounds
type MatchingConfig struct {
	DefaultLimit       int     `mapstructure:"default_limit"`
	MaxLimit           int     `mapstructure:"max_limit"`
	DefaultThreshold   float64 `mapstructure:"default_threshold"`
	ServingLabel       string  `mapstructure:"serving_label"`
	EnableDebugLogging bool    `mapstructure:"enable_debug_logging"`
}

// CacheConfig holds query embedding cache configuration
type CacheConfig struct {
	Type     string        `mapstructure:"type"` // "memory", "redis" or "none"
	RedisURL string        `mapstructure:"redis_url"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	PerIP int `mapstructure:"per_ip"` // requests per minute, 0 disables
}

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/foodmatch/")

	// FOODMATCH_EMBEDDING_API_KEY -> embedding.api_key
	v.SetEnvPrefix("FOODMATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Config file is optional - env vars and defaults are enough
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// LoadEnvFile loads a .env file from the working directory if present.
// Variables already set in the environment are not overridden.
func LoadEnvFile() error {
	return loadEnvFile()
}

func loadEnvFile() error {
	if err := godotenv.Load(); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("error loading .env file: %w", err)
	}
	return nil
}

// setDefaults sets default configuration values. Every key needs a default
// (even an empty one) so AutomaticEnv can bind it during Unmarshal.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:5173"})
	v.SetDefault("server.request_timeout", "10s")

	// Embedding defaults
	v.SetDefault("embedding.provider", "openai")
	v.SetDefault("embedding.model", "text-embedding-3-small")
	v.SetDefault("embedding.api_key", "")
	v.SetDefault("embedding.base_url", "")
	v.SetDefault("embedding.dimensions", 0)
	v.SetDefault("embedding.batch_size", 128)
	v.SetDefault("embedding.timeout", "30s")
	v.SetDefault("embedding.requests_per_second", 3.0)
	v.SetDefault("embedding.burst", 5)

	// Store defaults
	v.SetDefault("store.path", "foodmatch.db")
	v.SetDefault("store.write_chunk_size", 1000)

	// Matching defaults
	v.SetDefault("matching.default_limit", 5)
	v.SetDefault("matching.max_limit", 10)
	v.SetDefault("matching.default_threshold", 0.4)
	v.SetDefault("matching.serving_label", "기준량")
	v.SetDefault("matching.enable_debug_logging", false)

	// Cache defaults
	v.SetDefault("cache.type", "memory")
	v.SetDefault("cache.redis_url", "")
	v.SetDefault("cache.ttl", "24h")

	// Rate limit defaults
	v.SetDefault("ratelimit.per_ip", 100)
}

// validate validates the configuration
func validate(config *Config) error {
	switch config.Embedding.Provider {
	case "openai":
		if config.Embedding.APIKey == "" {
			return fmt.Errorf("OpenAI API key is required (set FOODMATCH_EMBEDDING_API_KEY)")
		}
	case "hash":
	default:
		return fmt.Errorf("embedding provider must be 'openai' or 'hash', got: %s", config.Embedding.Provider)
	}

	if config.Embedding.BatchSize <= 0 {
		return fmt.Errorf("embedding batch size must be positive, got: %d", config.Embedding.BatchSize)
	}
	if config.Embedding.Dimensions < 0 {
		return fmt.Errorf("embedding dimensions must not be negative, got: %d", config.Embedding.Dimensions)
	}
	if config.Store.WriteChunkSize <= 0 {
		return fmt.Errorf("store write chunk size must be positive, got: %d", config.Store.WriteChunkSize)
	}
	if config.Store.Path == "" {
		return fmt.Errorf("store path is required")
	}

	if config.Matching.MaxLimit < 1 || config.Matching.MaxLimit > MaxMatchLimit {
		return fmt.Errorf("max limit must be between 1 and %d, got: %d", MaxMatchLimit, config.Matching.MaxLimit)
	}
	if config.Matching.DefaultLimit < 1 || config.Matching.DefaultLimit > config.Matching.MaxLimit {
		return fmt.Errorf("default limit must be between 1 and %d, got: %d", config.Matching.MaxLimit, config.Matching.DefaultLimit)
	}
	if config.Matching.DefaultThreshold < 0 || config.Matching.DefaultThreshold > 1 {
		return fmt.Errorf("default threshold must be between 0 and 1, got: %v", config.Matching.DefaultThreshold)
	}

	switch config.Cache.Type {
	case "memory", "none":
	case "redis":
		if config.Cache.RedisURL == "" {
			return fmt.Errorf("Redis URL is required when cache type is 'redis'")
		}
	default:
		return fmt.Errorf("cache type must be 'memory', 'redis' or 'none', got: %s", config.Cache.Type)
	}

	if config.RateLimit.PerIP < 0 {
		return fmt.Errorf("per-IP rate limit must not be negative, got: %d", config.RateLimit.PerIP)
	}

	return nil
}
