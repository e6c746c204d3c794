package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	DBPath  string
	DataURL string `validate:"required,url"`
	// MediaBaseURL is the CDN prefix under which img/ and vid/ live.
	MediaBaseURL string `validate:"required,url"`
	// MediaHosts lists hosts whose responses belong to the media cache.
	MediaHosts        []string
	CacheVersion      string        `validate:"required,alphanum"`
	MediaCacheLimit   int           `validate:"min=1"`
	DownloadBatchSize int           `validate:"min=1,max=64"`
	ReconcileInterval time.Duration `validate:"min=0"`
	HTTPTimeout       time.Duration `validate:"min=0"`

	LogLevel  string `validate:"oneof=trace debug info warn error fatal panic"`
	LogFormat string `validate:"oneof=json pretty"`
	LogFile   string

	CacheBackend string `validate:"oneof=sqlite redis"`
	RedisURL     string `validate:"required_if=CacheBackend redis"`

	ListenAddr string `validate:"required"`
	// AllowedOrigins controls CORS and websocket origin checks for serve.
	// Empty means all origins are permitted.
	AllowedOrigins []string
}

const (
	DefaultDataURL      = "http://localhost:8080/"
	DefaultMediaBaseURL = "https://f003.backblazeb2.com/file/prawko"
)

// Load reads configuration from environment variables with sensible defaults.
// It loads a .env file if present but does not fail if missing.
func Load() (*Config, error) {
	_ = godotenv.Load() // .env is optional

	cfg := &Config{
		DBPath:            getEnv("PRAWKO_DB", ""),
		DataURL:           getEnv("PRAWKO_DATA_URL", DefaultDataURL),
		MediaBaseURL:      strings.TrimRight(getEnv("PRAWKO_MEDIA_BASE_URL", DefaultMediaBaseURL), "/"),
		MediaHosts:        splitList(getEnv("PRAWKO_MEDIA_HOSTS", "backblazeb2.com")),
		CacheVersion:      getEnv("PRAWKO_CACHE_VERSION", "v2"),
		MediaCacheLimit:   getEnvInt("PRAWKO_MEDIA_CACHE_LIMIT", 500),
		DownloadBatchSize: getEnvInt("PRAWKO_DOWNLOAD_BATCH", 6),
		ReconcileInterval: getEnvDuration("PRAWKO_RECONCILE_INTERVAL", 5*time.Minute),
		HTTPTimeout:       getEnvDuration("PRAWKO_HTTP_TIMEOUT", 30*time.Second),
		LogLevel:          getEnv("PRAWKO_LOG_LEVEL", "info"),
		LogFormat:         getEnv("PRAWKO_LOG_FORMAT", "pretty"),
		LogFile:           getEnv("PRAWKO_LOG_FILE", ""),
		CacheBackend:      getEnv("PRAWKO_CACHE_BACKEND", "sqlite"),
		RedisURL:          getEnv("PRAWKO_REDIS_URL", ""),
		ListenAddr:        getEnv("PRAWKO_LISTEN_ADDR", "127.0.0.1:8787"),
		AllowedOrigins:    splitList(getEnv("PRAWKO_ALLOWED_ORIGINS", "")),
	}
	cfg.DataURL = NormalizeDataURL(cfg.DataURL)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// NormalizeDataURL makes sure the content origin ends with a slash so
// relative payload paths resolve beneath it.
func NormalizeDataURL(u string) string {
	if !strings.HasSuffix(u, "/") {
		u += "/"
	}
	return u
}

var validate = validator.New()

// Validate checks field constraints and reports the first failing fields.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var fields []string
		if verrs, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s (%s)", fe.Field(), fe.Tag()))
			}
			return fmt.Errorf("invalid configuration: %s", strings.Join(fields, ", "))
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

// splitList splits a comma-separated string into a trimmed slice.
// Returns nil if the input is empty.
func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
