package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"sjsage522/eventworker/internal/renderer"
	"sjsage522/eventworker/pkg/errors"
	"sjsage522/eventworker/services/ingest"
)

// Renderer backends
const (
	RendererBrowserless = "browserless"
	RendererHTTP        = "http"
)

// Store drivers
const (
	StoreMemory = "memory"
	StoreSqlite = "sqlite"
	StoreRedis  = "redis"
)

// Config represents the application configuration
type Config struct {
	// Environment
	Environment string

	// Sources file, built-in sources when empty
	SourcesFile string

	// Rendering configuration
	Renderer         string
	BrowserlessAddr  string
	BrowserlessToken string
	RenderTimeout    time.Duration
	RenderWait       renderer.WaitCondition

	// Store configuration
	StoreDriver string
	SqlitePath  string

	// Redis configuration
	RedisAddr            string
	RedisDB              int
	RedisKeyPrefix       string
	RedisStream          string
	RedisStreamMaxLength int
	PublishEnabled       bool

	// Memcache configuration, empty address disables the seen cache
	MemcacheAddr string
	SeenCacheTTL time.Duration

	// Ingestion configuration
	IngestWorkers        int
	EmptySourceURLPolicy ingest.EmptySourceURLPolicy

	// Metrics listen address, metrics are not served when empty
	MetricsAddr string

	// problems found while parsing, reported by Validate
	parseErrs []error
}

// LoadConfig loads the configuration from environment variables with defaults
func LoadConfig() *Config {
	c := &Config{
		Environment:      getEnv("EVENTS_ENVIRONMENT", "development"),
		SourcesFile:      getEnv("SOURCES_FILE", ""),
		Renderer:         strings.ToLower(getEnv("RENDERER", RendererBrowserless)),
		BrowserlessAddr:  strings.TrimRight(getEnv("BROWSERLESS_ADDR", "http://localhost:3000"), "/"),
		BrowserlessToken: getEnv("BROWSERLESS_TOKEN", ""),
		StoreDriver:      strings.ToLower(getEnv("STORE_DRIVER", StoreSqlite)),
		SqlitePath:       getEnv("SQLITE_PATH", "events.db"),
		RedisAddr:        getEnv("REDIS_ADDR", "localhost:6379"),
		RedisKeyPrefix:   getEnv("REDIS_KEY_PREFIX", "eventworker:"),
		RedisStream:      getEnv("REDIS_STREAM", "events"),
		MemcacheAddr:     getEnv("MEMCACHE_ADDR", ""),
		MetricsAddr:      getEnv("METRICS_ADDR", ""),
	}

	c.RenderTimeout = time.Duration(c.getInt("RENDER_TIMEOUT_SECONDS", 30)) * time.Second
	c.SeenCacheTTL = time.Duration(c.getInt("SEEN_CACHE_TTL_SECONDS", 86400)) * time.Second
	c.RedisDB = c.getInt("REDIS_DB", 0)
	c.RedisStreamMaxLength = c.getInt("REDIS_STREAM_MAX_LENGTH", 10000)
	c.IngestWorkers = c.getInt("INGEST_WORKERS", 4)

	publish, err := strconv.ParseBool(getEnv("PUBLISH_ENABLED", "false"))
	if err != nil {
		c.parseErrs = append(c.parseErrs, fmt.Errorf("PUBLISH_ENABLED: %w", err))
	}
	c.PublishEnabled = publish

	wait, err := renderer.ParseWaitCondition(getEnv("RENDER_WAIT", ""))
	if err != nil {
		c.parseErrs = append(c.parseErrs, fmt.Errorf("RENDER_WAIT: %w", err))
	}
	c.RenderWait = wait

	policy, err := ingest.ParseEmptySourceURLPolicy(getEnv("EMPTY_SOURCE_URL_POLICY", ""))
	if err != nil {
		c.parseErrs = append(c.parseErrs, fmt.Errorf("EMPTY_SOURCE_URL_POLICY: %w", err))
	}
	c.EmptySourceURLPolicy = policy

	return c
}

// Validate reports the first invalid setting as a configuration error
func (c *Config) Validate() error {
	if len(c.parseErrs) > 0 {
		return errors.NewConfiguration("invalid environment", c.parseErrs[0])
	}

	switch c.Renderer {
	case RendererBrowserless:
		if c.BrowserlessAddr == "" {
			return errors.NewConfiguration("BROWSERLESS_ADDR is required for the browserless renderer", nil)
		}
	case RendererHTTP:
	default:
		return errors.NewConfiguration(fmt.Sprintf("unknown renderer %q", c.Renderer), nil)
	}

	switch c.StoreDriver {
	case StoreMemory, StoreRedis:
	case StoreSqlite:
		if c.SqlitePath == "" {
			return errors.NewConfiguration("SQLITE_PATH is required for the sqlite store", nil)
		}
	default:
		return errors.NewConfiguration(fmt.Sprintf("unknown store driver %q", c.StoreDriver), nil)
	}

	if c.RenderTimeout <= 0 {
		return errors.NewConfiguration("RENDER_TIMEOUT_SECONDS must be positive", nil)
	}
	if c.IngestWorkers < 1 {
		return errors.NewConfiguration("INGEST_WORKERS must be at least 1", nil)
	}
	if c.PublishEnabled && c.RedisStream == "" {
		return errors.NewConfiguration("REDIS_STREAM is required when publishing is enabled", nil)
	}
	return nil
}

func (c *Config) getInt(key string, defaultValue int) int {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		c.parseErrs = append(c.parseErrs, fmt.Errorf("%s: %w", key, err))
		return defaultValue
	}
	return v
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}
