// internal/config/config.go
package config

import (
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

// APIConfig holds everything about reaching the feed API
type APIConfig struct {
	BaseURL     string // scheme://host[:port], no trailing slash
	BasePath    string // prefix every endpoint lives under
	HTTPTimeout time.Duration
}

// FeedConfig holds pagination and caching settings
type FeedConfig struct {
	PageSize        int
	CommentPageSize int
	QueryStaleTime  time.Duration // how long single-value queries stay fresh
	PagerCapacity   int           // open comment pagers kept per session
}

// Config holds the complete client configuration
type Config struct {
	API      *APIConfig
	Feed     *FeedConfig
	LogLevel string
	Debug    bool
}

// DefaultAPIConfig provides default API settings
func DefaultAPIConfig() *APIConfig {
	return &APIConfig{
		BaseURL:     "http://localhost:5000",
		BasePath:    "/api/v1",
		HTTPTimeout: 10 * time.Second,
	}
}

// DefaultFeedConfig provides default feed settings
func DefaultFeedConfig() *FeedConfig {
	return &FeedConfig{
		PageSize:        10,
		CommentPageSize: 10,
		QueryStaleTime:  5 * time.Minute,
		PagerCapacity:   256,
	}
}

// DefaultConfig is the configuration used when nothing is set in the environment.
func DefaultConfig() *Config {
	return &Config{
		API:      DefaultAPIConfig(),
		Feed:     DefaultFeedConfig(),
		LogLevel: "info",
	}
}

// LoadConfig loads configuration from environment variables and applies defaults
func LoadConfig() (*Config, error) {
	// Try to load .env file from multiple possible locations
	envLocations := []string{
		".env",       // Current directory
		"../../.env", // Project root when running from cmd/*
		filepath.Join(os.Getenv("HOME"), ".config/yap/.env"),
	}

	envLoaded := false
	for _, location := range envLocations {
		if err := godotenv.Load(location); err == nil {
			envLoaded = true
			break
		}
	}

	if !envLoaded {
		// Silent when no .env exists; the environment alone is fine
		_ = godotenv.Load()
	}

	return FromEnv()
}

// FromEnv builds a Config from the current environment without touching .env files.
func FromEnv() (*Config, error) {
	cfg := DefaultConfig()

	if apiURL := os.Getenv("YAP_API_URL"); apiURL != "" {
		parsed, err := url.Parse(apiURL)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return nil, errors.Errorf("YAP_API_URL must be an absolute URL, got %q", apiURL)
		}
		cfg.API.BaseURL = strings.TrimRight(apiURL, "/")
	}

	if basePath, ok := os.LookupEnv("YAP_API_BASE_PATH"); ok {
		cfg.API.BasePath = "/" + strings.Trim(basePath, "/")
		if cfg.API.BasePath == "/" {
			cfg.API.BasePath = ""
		}
	}

	var err error
	if cfg.API.HTTPTimeout, err = durationFromEnv("YAP_HTTP_TIMEOUT", cfg.API.HTTPTimeout); err != nil {
		return nil, err
	}
	if cfg.Feed.QueryStaleTime, err = durationFromEnv("YAP_QUERY_STALE_TIME", cfg.Feed.QueryStaleTime); err != nil {
		return nil, err
	}
	if cfg.Feed.PageSize, err = positiveIntFromEnv("YAP_PAGE_SIZE", cfg.Feed.PageSize); err != nil {
		return nil, err
	}
	if cfg.Feed.CommentPageSize, err = positiveIntFromEnv("YAP_COMMENT_PAGE_SIZE", cfg.Feed.CommentPageSize); err != nil {
		return nil, err
	}
	if cfg.Feed.PagerCapacity, err = positiveIntFromEnv("YAP_PAGER_CAPACITY", cfg.Feed.PagerCapacity); err != nil {
		return nil, err
	}

	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", cfg.LogLevel)
	if debug := os.Getenv("DEBUG"); debug == "true" {
		cfg.Debug = true
		cfg.LogLevel = "debug"
	}

	return cfg, nil
}

// Endpoint joins the API base URL, base path and path.
func (c *APIConfig) Endpoint(path string) string {
	return c.BaseURL + c.BasePath + path
}

// Helper function to get environment variable with default fallback
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func durationFromEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid %s", key)
	}
	return d, nil
}

func positiveIntFromEnv(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid %s", key)
	}
	if n <= 0 {
		return 0, errors.Errorf("%s must be positive, got %d", key, n)
	}
	return n, nil
}
