// Package config loads the gateway configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/srd-gateway/pkg/client"
	"github.com/Sternrassler/srd-gateway/pkg/fanout"
	"github.com/Sternrassler/srd-gateway/pkg/gateway"
	"github.com/Sternrassler/srd-gateway/pkg/logging"
	"github.com/Sternrassler/srd-gateway/pkg/telemetry"
	"github.com/redis/go-redis/v9"
)

// Cache backends.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Version is reported by /health. Overridden at build time via -ldflags.
var Version = "0.1.0"

// Config holds the gateway configuration.
type Config struct {
	Port string

	// Upstream
	BaseURL        string
	UserAgent      string
	HTTPTimeout    time.Duration
	MaxConnections int
	MaxRetries     int

	// Cache
	CacheTTL     time.Duration
	CacheBackend string
	RedisURL     string

	// Enrichment
	EnrichMaxItems    int
	EnrichConcurrency int

	// Logging
	LogLevel  logging.LogLevel
	LogPretty bool

	CORSAllowedOrigins []string
	ShutdownTimeout    time.Duration

	Telemetry telemetry.Config
}

// Load reads the configuration from the environment and validates it.
func Load() (Config, error) {
	var errs []error

	cfg := Config{
		Port:               getEnv("PORT", "8080"),
		BaseURL:            strings.TrimRight(getEnv("DND5E_BASE", "https://www.dnd5eapi.co/api"), "/"),
		UserAgent:          getEnv("USER_AGENT", "srd-gateway/"+Version),
		HTTPTimeout:        getSeconds("HTTP_TIMEOUT_SEC", 15, &errs),
		MaxConnections:     getInt("MAX_CONNECTIONS", 10, &errs),
		MaxRetries:         getInt("UPSTREAM_MAX_RETRIES", 0, &errs),
		CacheTTL:           getSeconds("CACHE_TTL_SEC", 3600, &errs),
		CacheBackend:       strings.ToLower(getEnv("CACHE_BACKEND", BackendMemory)),
		RedisURL:           getEnv("REDIS_URL", "localhost:6379"),
		EnrichMaxItems:     getInt("ENRICH_MAX_ITEMS", 40, &errs),
		EnrichConcurrency:  getInt("ENRICH_CONCURRENCY", 8, &errs),
		LogPretty:          getBool("LOG_PRETTY", false, &errs),
		CORSAllowedOrigins: getList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		ShutdownTimeout:    getSeconds("SHUTDOWN_TIMEOUT_SEC", 10, &errs),
		Telemetry: telemetry.Config{
			ServiceName: getEnv("OTEL_SERVICE_NAME", telemetry.DefaultServiceName),
			Endpoint:    getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			Headers:     getEnv("OTEL_EXPORTER_OTLP_HEADERS", ""),
			Insecure:    getBool("OTEL_EXPORTER_OTLP_INSECURE", false, &errs),
			Timeout:     getSeconds("OTEL_EXPORTER_OTLP_TIMEOUT_SEC", 5, &errs),
			Sampler:     getEnv("OTEL_TRACES_SAMPLER", ""),
			SamplerArg:  getEnv("OTEL_TRACES_SAMPLER_ARG", ""),
			Required:    getBool("OTEL_REQUIRED", false, &errs),
		},
	}

	level, ok := logging.ParseLevel(getEnv("LOG_LEVEL", string(logging.LevelInfo)))
	if !ok {
		errs = append(errs, fmt.Errorf("LOG_LEVEL: unknown level %q", os.Getenv("LOG_LEVEL")))
	}
	cfg.LogLevel = level

	if err := errors.Join(errs...); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks value ranges and combinations.
func (c Config) Validate() error {
	var errs []error

	if c.Port == "" {
		errs = append(errs, errors.New("PORT must not be empty"))
	}
	if !strings.HasPrefix(c.BaseURL, "http://") && !strings.HasPrefix(c.BaseURL, "https://") {
		errs = append(errs, fmt.Errorf("DND5E_BASE must be an http(s) URL (got %q)", c.BaseURL))
	}
	if c.HTTPTimeout <= 0 {
		errs = append(errs, fmt.Errorf("HTTP_TIMEOUT_SEC must be > 0 (got %s)", c.HTTPTimeout))
	}
	if c.CacheTTL <= 0 {
		errs = append(errs, fmt.Errorf("CACHE_TTL_SEC must be > 0 (got %s)", c.CacheTTL))
	}
	if c.MaxConnections < 1 {
		errs = append(errs, fmt.Errorf("MAX_CONNECTIONS must be >= 1 (got %d)", c.MaxConnections))
	}
	if c.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("UPSTREAM_MAX_RETRIES must be >= 0 (got %d)", c.MaxRetries))
	}
	if c.EnrichMaxItems < 1 {
		errs = append(errs, fmt.Errorf("ENRICH_MAX_ITEMS must be >= 1 (got %d)", c.EnrichMaxItems))
	}
	if c.EnrichConcurrency < 1 {
		errs = append(errs, fmt.Errorf("ENRICH_CONCURRENCY must be >= 1 (got %d)", c.EnrichConcurrency))
	}
	if c.ShutdownTimeout <= 0 {
		errs = append(errs, fmt.Errorf("SHUTDOWN_TIMEOUT_SEC must be > 0 (got %s)", c.ShutdownTimeout))
	}
	switch c.CacheBackend {
	case BackendMemory:
	case BackendRedis:
		if _, err := c.RedisOptions(); err != nil {
			errs = append(errs, err)
		}
	default:
		errs = append(errs, fmt.Errorf("CACHE_BACKEND must be %q or %q (got %q)", BackendMemory, BackendRedis, c.CacheBackend))
	}

	return errors.Join(errs...)
}

// Addr returns the listen address.
func (c Config) Addr() string {
	return ":" + c.Port
}

// ClientConfig returns the upstream client configuration.
func (c Config) ClientConfig() client.Config {
	cfg := client.DefaultConfig(c.BaseURL)
	cfg.UserAgent = c.UserAgent
	cfg.Timeout = c.HTTPTimeout
	cfg.MaxConnections = c.MaxConnections
	cfg.MaxRetries = c.MaxRetries
	return cfg
}

// GatewayConfig returns the gateway configuration.
func (c Config) GatewayConfig() gateway.Config {
	return gateway.Config{
		TTL: c.CacheTTL,
		Enrich: fanout.Config{
			MaxItems:       c.EnrichMaxItems,
			MaxConcurrency: c.EnrichConcurrency,
			Timeout:        c.HTTPTimeout,
		},
	}
}

// LoggingConfig returns the logger configuration.
func (c Config) LoggingConfig() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = c.LogLevel
	cfg.Pretty = c.LogPretty
	cfg.Service = c.Telemetry.ServiceName
	return cfg
}

// RedisOptions parses REDIS_URL. Both "host:port" and redis:// URLs are
// accepted.
func (c Config) RedisOptions() (*redis.Options, error) {
	if strings.Contains(c.RedisURL, "://") {
		opts, err := redis.ParseURL(c.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("REDIS_URL: %w", err)
		}
		return opts, nil
	}
	if c.RedisURL == "" {
		return nil, errors.New("REDIS_URL must not be empty")
	}
	return &redis.Options{Addr: c.RedisURL}, nil
}

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int, errs *[]error) int {
	value := getEnv(key, "")
	if value == "" {
		return defaultValue
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %q is not an integer", key, value))
		return defaultValue
	}
	return i
}

func getSeconds(key string, defaultValue float64, errs *[]error) time.Duration {
	value := getEnv(key, "")
	secs := defaultValue
	if value != "" {
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("%s: %q is not a number of seconds", key, value))
		} else {
			secs = f
		}
	}
	return time.Duration(secs * float64(time.Second))
}

func getBool(key string, defaultValue bool, errs *[]error) bool {
	value := getEnv(key, "")
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %q is not a boolean", key, value))
		return defaultValue
	}
	return b
}

func getList(key string, defaultValue []string) []string {
	value := getEnv(key, "")
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
