package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Scraper   ScraperConfig
	Estimator EstimatorConfig
	Geocoder  GeocoderConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Cache     CacheConfig
	Store     StoreConfig
	Refresh   RefreshConfig
	Webhook   WebhookConfig
	Log       LogConfig
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string // default: "0.0.0.0"
	Port int    // default: 8080
	Mode string // "debug", "release", "test"; default: "release"
}

// ScraperConfig controls menu scraping behavior.
type ScraperConfig struct {
	// MenuTimeout is the per-request timeout for chain menu pages.
	MenuTimeout time.Duration // default: 20s

	// PlatformTimeout is the per-request timeout for delivery-platform pages.
	PlatformTimeout time.Duration // default: 30s

	// MaxConcurrent caps concurrent fetches in scrape-all runs.
	MaxConcurrent int // default: 5

	// DefaultProxy is the optional proxy URL for all outbound fetches.
	DefaultProxy string
}

// EstimatorConfig controls the external nutrition estimator.
type EstimatorConfig struct {
	// APIKey authenticates against the estimator provider.
	APIKey string

	// Model is the chat model used for estimation.
	Model string // default: "gpt-4o-mini"

	// BaseURL is the OpenAI-compatible API root.
	BaseURL string // default: "https://api.openai.com/v1"

	// MaxRequests and Window define the sliding-window request budget.
	MaxRequests int           // default: 50
	Window      time.Duration // default: 60s
}

// GeocoderConfig controls the Nominatim geocoding client.
type GeocoderConfig struct {
	BaseURL string        // default: "https://nominatim.openstreetmap.org"
	Timeout time.Duration // default: 20s
}

// AuthConfig controls API key authentication.
type AuthConfig struct {
	// Enabled toggles API key authentication.
	Enabled bool // default: false

	// APIKeys is the list of valid API keys.
	APIKeys []string
}

// RateLimitConfig controls per-key API rate limiting.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate per API key.
	RequestsPerSecond float64 // default: 5

	// Burst is the maximum burst size per API key.
	Burst int // default: 10
}

// CacheConfig controls the scraped-menu cache.
type CacheConfig struct {
	// MaxEntries is the maximum number of cached menus.
	MaxEntries int // default: 500
}

// StoreConfig controls deal persistence.
type StoreConfig struct {
	// Path is the SQLite database file. default: "dealscout.db"
	Path string
}

// RefreshConfig controls the scheduled re-ranking job.
type RefreshConfig struct {
	// CronSpec, when non-empty, enables periodic re-ranking of stale deals.
	// Uses the 6-field (seconds) cron format.
	CronSpec string

	// MaxAge marks a deal stale when last_ranked_at is older than this.
	MaxAge time.Duration // default: 24h

	// BatchSize caps deals ranked in parallel per run.
	BatchSize int // default: 10
}

// WebhookConfig controls event delivery for completed batch runs.
type WebhookConfig struct {
	URL    string
	Secret string
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "json"
}

// Load reads configuration from environment variables with sane defaults.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Host: envOr("DEALSCOUT_HOST", "0.0.0.0"),
			Port: envIntOr("DEALSCOUT_PORT", 8080),
			Mode: envOr("DEALSCOUT_MODE", "release"),
		},
		Scraper: ScraperConfig{
			MenuTimeout:     envDurationOr("DEALSCOUT_MENU_TIMEOUT", 20*time.Second),
			PlatformTimeout: envDurationOr("DEALSCOUT_PLATFORM_TIMEOUT", 30*time.Second),
			MaxConcurrent:   envIntOr("DEALSCOUT_MAX_CONCURRENT", 5),
			DefaultProxy:    os.Getenv("DEALSCOUT_PROXY"),
		},
		Estimator: EstimatorConfig{
			APIKey:      os.Getenv("DEALSCOUT_ESTIMATOR_API_KEY"),
			Model:       envOr("DEALSCOUT_ESTIMATOR_MODEL", "gpt-4o-mini"),
			BaseURL:     envOr("DEALSCOUT_ESTIMATOR_BASE_URL", "https://api.openai.com/v1"),
			MaxRequests: envIntOr("DEALSCOUT_ESTIMATOR_MAX_REQUESTS", 50),
			Window:      envDurationOr("DEALSCOUT_ESTIMATOR_WINDOW", 60*time.Second),
		},
		Geocoder: GeocoderConfig{
			BaseURL: envOr("DEALSCOUT_GEOCODER_URL", "https://nominatim.openstreetmap.org"),
			Timeout: envDurationOr("DEALSCOUT_GEOCODER_TIMEOUT", 20*time.Second),
		},
		Auth: AuthConfig{
			Enabled: envBoolOr("DEALSCOUT_AUTH_ENABLED", false),
			APIKeys: envSliceOr("DEALSCOUT_API_KEYS", nil),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: envFloatOr("DEALSCOUT_RATE_RPS", 5.0),
			Burst:             envIntOr("DEALSCOUT_RATE_BURST", 10),
		},
		Cache: CacheConfig{
			MaxEntries: envIntOr("DEALSCOUT_CACHE_MAX_ENTRIES", 500),
		},
		Store: StoreConfig{
			Path: envOr("DEALSCOUT_DB_PATH", "dealscout.db"),
		},
		Refresh: RefreshConfig{
			CronSpec:  os.Getenv("DEALSCOUT_REFRESH_CRON"),
			MaxAge:    envDurationOr("DEALSCOUT_REFRESH_MAX_AGE", 24*time.Hour),
			BatchSize: envIntOr("DEALSCOUT_REFRESH_BATCH_SIZE", 10),
		},
		Webhook: WebhookConfig{
			URL:    os.Getenv("DEALSCOUT_WEBHOOK_URL"),
			Secret: os.Getenv("DEALSCOUT_WEBHOOK_SECRET"),
		},
		Log: LogConfig{
			Level:  envOr("DEALSCOUT_LOG_LEVEL", "info"),
			Format: envOr("DEALSCOUT_LOG_FORMAT", "json"),
		},
	}
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return fallback
}
