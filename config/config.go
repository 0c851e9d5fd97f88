package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the link suggestion pipeline.
type Config struct {
	Site       SiteConfig       `mapstructure:"site"`
	Embedding  EmbeddingConfig  `mapstructure:"embedding"`
	Generation GenerationConfig `mapstructure:"generation"`
	Search     SearchConfig     `mapstructure:"search"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Server     ServerConfig     `mapstructure:"server"`
	Retry      RetryConfig      `mapstructure:"retry"`
}

// SiteConfig describes the site being crawled and the fetch limits.
type SiteConfig struct {
	SitemapURL           string        `mapstructure:"sitemap_url"`
	RequestTimeout       time.Duration `mapstructure:"request_timeout"`
	MaxConcurrentFetches int           `mapstructure:"max_concurrent_fetches"`
	FetchDelay           time.Duration `mapstructure:"fetch_delay"`
	MaxContentLength     int           `mapstructure:"max_content_length"`
}

// EmbeddingConfig selects the embedding provider and model.
type EmbeddingConfig struct {
	Provider   string `mapstructure:"provider"` // openai or google
	Model      string `mapstructure:"model"`
	Dimensions int    `mapstructure:"dimensions"`
	APIKey     string `mapstructure:"api_key"`
	BaseURL    string `mapstructure:"base_url"`
}

// GenerationConfig selects the chat model used for reasons and anchor text.
type GenerationConfig struct {
	Model       string  `mapstructure:"model"`
	Temperature float64 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	APIKey      string  `mapstructure:"api_key"`
	BaseURL     string  `mapstructure:"base_url"`
}

// SearchConfig tunes similarity retrieval.
type SearchConfig struct {
	TopK             int     `mapstructure:"top_k"`
	FinalSuggestions int     `mapstructure:"final_suggestions"`
	MinSimilarity    float64 `mapstructure:"min_similarity"`
}

// StorageConfig contains the local data directory and the optional
// Redis page cache settings.
type StorageConfig struct {
	DataDir  string        `mapstructure:"data_dir"`
	Redis    RedisConfig   `mapstructure:"redis"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

// RedisConfig contains Redis connection settings for the page cache.
// Leaving Host empty disables Redis and falls back to the in-memory cache.
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// ServerConfig contains HTTP API settings.
type ServerConfig struct {
	Address     string `mapstructure:"address"`
	RefreshCron string `mapstructure:"refresh_cron"`
}

// RetryConfig controls retries for transient provider failures.
type RetryConfig struct {
	MaxRetries int           `mapstructure:"max_retries"`
	Backoff    time.Duration `mapstructure:"backoff"`
}

// LoadConfig loads configuration from file and environment variables.
// Path may be empty, in which case config.json is searched for in the
// usual locations and defaults apply when no file exists.
func LoadConfig(path string) (*Config, error) {
	// .env is optional; real env vars win over it either way
	_ = godotenv.Load()

	viper.SetConfigName("config")
	viper.SetConfigType("json")
	if path == "" {
		viper.AddConfigPath("./config")
		viper.AddConfigPath(".")
	} else {
		viper.SetConfigFile(path)
	}

	viper.SetEnvPrefix("ANCHORMAP")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	overrideFromEnv()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	// Site defaults
	viper.SetDefault("site.request_timeout", "30s")
	viper.SetDefault("site.max_concurrent_fetches", 5)
	viper.SetDefault("site.fetch_delay", "1s")
	viper.SetDefault("site.max_content_length", 10000)

	// Embedding defaults
	viper.SetDefault("embedding.provider", "openai")
	viper.SetDefault("embedding.model", "text-embedding-3-small")
	viper.SetDefault("embedding.dimensions", 1536)

	// Generation defaults
	viper.SetDefault("generation.model", "gpt-4o")
	viper.SetDefault("generation.temperature", 0.7)
	viper.SetDefault("generation.max_tokens", 1024)

	// Search defaults
	viper.SetDefault("search.top_k", 10)
	viper.SetDefault("search.final_suggestions", 5)
	viper.SetDefault("search.min_similarity", 0.5)

	// Storage defaults
	viper.SetDefault("storage.data_dir", "./data")
	viper.SetDefault("storage.redis.host", "")
	viper.SetDefault("storage.redis.port", "6379")
	viper.SetDefault("storage.redis.db", 0)
	viper.SetDefault("storage.cache_ttl", "168h")

	// Server defaults
	viper.SetDefault("server.address", ":8080")

	// Retry defaults
	viper.SetDefault("retry.max_retries", 1)
	viper.SetDefault("retry.backoff", "2s")
}

// overrideFromEnv overrides configuration with environment variables
// for sensitive data.
func overrideFromEnv() {
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		if viper.GetString("embedding.api_key") == "" && viper.GetString("embedding.provider") == "openai" {
			viper.Set("embedding.api_key", apiKey)
		}
		if viper.GetString("generation.api_key") == "" {
			viper.Set("generation.api_key", apiKey)
		}
	}
	if apiKey := os.Getenv("GOOGLE_API_KEY"); apiKey != "" {
		if viper.GetString("embedding.api_key") == "" && viper.GetString("embedding.provider") == "google" {
			viper.Set("embedding.api_key", apiKey)
		}
	}
}

// validateConfig validates the configuration
func validateConfig(config *Config) error {
	switch config.Embedding.Provider {
	case "openai", "google":
	default:
		return fmt.Errorf("embedding.provider must be openai or google, got %q", config.Embedding.Provider)
	}
	if config.Embedding.Dimensions <= 0 {
		return fmt.Errorf("embedding.dimensions must be > 0")
	}
	if config.Search.MinSimilarity < 0 || config.Search.MinSimilarity > 1 {
		return fmt.Errorf("search.min_similarity must be in [0,1], got %f", config.Search.MinSimilarity)
	}
	if config.Search.FinalSuggestions <= 0 {
		return fmt.Errorf("search.final_suggestions must be > 0")
	}
	if config.Search.TopK < config.Search.FinalSuggestions {
		return fmt.Errorf("search.top_k (%d) must be >= search.final_suggestions (%d)",
			config.Search.TopK, config.Search.FinalSuggestions)
	}
	if config.Site.MaxConcurrentFetches <= 0 {
		return fmt.Errorf("site.max_concurrent_fetches must be > 0")
	}
	if strings.TrimSpace(config.Storage.DataDir) == "" {
		return fmt.Errorf("storage.data_dir is required")
	}
	if config.Retry.MaxRetries < 0 {
		return fmt.Errorf("retry.max_retries cannot be negative")
	}
	return nil
}
