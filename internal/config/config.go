// Package config loads application settings from environment variables,
// applying defaults and validating the result. It covers the HTTP server, the
// local order cache, the remote order service, polling and session timing,
// notification delivery, rate limiting, and observability.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines response hardening settings.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig defines OpenTelemetry settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE
	ServiceName string  // OTEL_SERVICE_NAME
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// CacheConfig selects the local order cache backend.
type CacheConfig struct {
	Driver string // CACHE_DRIVER: sqlite|postgres
	DSN    string // CACHE_DSN: file path for sqlite, URL/keyword DSN for postgres
}

// RemoteConfig points at the order service.
type RemoteConfig struct {
	BaseURL string        // REMOTE_BASE_URL
	Timeout time.Duration // REMOTE_TIMEOUT
	RPS     float64       // REMOTE_RPS, 0 disables pacing
	Burst   int           // REMOTE_BURST
}

// NotifyConfig configures notification delivery.
type NotifyConfig struct {
	AMQPURL      string // AMQP_URL, empty disables the broker sink
	AMQPExchange string // AMQP_EXCHANGE
	OutboxSize   int    // NOTIFY_OUTBOX_SIZE
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string
	ReadTimeout       time.Duration
	ReadHeaderTimeout time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int
	GinMode           string // debug|release|test

	// Logging / Docs
	LogLevel       string
	LogPretty      bool
	SwaggerEnabled bool
	APIBasePath    string

	// Engine
	Cache                CacheConfig
	Remote               RemoteConfig
	PollInterval         time.Duration
	SessionTimeout       time.Duration
	SessionCheckInterval time.Duration
	SubmissionTTL        time.Duration
	Notify               NotifyConfig

	// Rate limiting (host API)
	RateRPS   float64
	RateBurst int

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Observability
	OTEL OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from the environment, applies defaults,
// normalizes values and validates the result.
func Load() (Config, error) {
	cfg := Config{
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 60*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		LogLevel:       strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:      getbool("LOG_PRETTY", false),
		SwaggerEnabled: getbool("SWAGGER_ENABLED", false),
		APIBasePath:    normalizeBasePath(getenv("API_BASE_PATH", "/api/v1")),

		Cache: CacheConfig{
			Driver: strings.ToLower(getenv("CACHE_DRIVER", "sqlite")),
			DSN:    getenv("CACHE_DSN", "laundry.db"),
		},
		Remote: RemoteConfig{
			BaseURL: strings.TrimRight(getenv("REMOTE_BASE_URL", ""), "/"),
			Timeout: getdur("REMOTE_TIMEOUT", 30*time.Second),
			RPS:     getfloat("REMOTE_RPS", 10),
			Burst:   getint("REMOTE_BURST", 20),
		},
		PollInterval:         getdur("POLL_INTERVAL", 15*time.Minute),
		SessionTimeout:       getdur("SESSION_TIMEOUT", 15*time.Minute),
		SessionCheckInterval: getdur("SESSION_CHECK_INTERVAL", time.Minute),
		SubmissionTTL:        getdur("SUBMISSION_TTL", 24*time.Hour),
		Notify: NotifyConfig{
			AMQPURL:      getenv("AMQP_URL", ""),
			AMQPExchange: getenv("AMQP_EXCHANGE", "laundry.notifications"),
			OutboxSize:   getint("NOTIFY_OUTBOX_SIZE", 256),
		},

		RateRPS:   getfloat("RATE_RPS", 5.0),
		RateBurst: getint("RATE_BURST", 10),

		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "laundry-sync"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}
	if cfg.Cache.Driver == "postgresql" {
		cfg.Cache.Driver = "postgres"
	}

	return cfg, cfg.validate()
}

func (cfg Config) validate() error {
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return errors.New("MAX_HEADER_BYTES must be > 0")
	}
	switch cfg.Cache.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("CACHE_DRIVER must be sqlite or postgres, got %q", cfg.Cache.Driver)
	}
	if strings.TrimSpace(cfg.Cache.DSN) == "" {
		return errors.New("CACHE_DSN must not be empty")
	}
	if cfg.Remote.BaseURL == "" {
		return errors.New("REMOTE_BASE_URL is required")
	}
	if u, err := url.Parse(cfg.Remote.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("REMOTE_BASE_URL must be an absolute URL, got %q", cfg.Remote.BaseURL)
	}
	if cfg.Remote.Timeout <= 0 {
		return errors.New("REMOTE_TIMEOUT must be > 0")
	}
	if cfg.Remote.RPS < 0 || cfg.Remote.Burst < 0 {
		return errors.New("REMOTE_RPS and REMOTE_BURST must be >= 0")
	}
	if cfg.PollInterval <= 0 || cfg.SessionTimeout <= 0 || cfg.SessionCheckInterval <= 0 {
		return errors.New("POLL_INTERVAL, SESSION_TIMEOUT and SESSION_CHECK_INTERVAL must be > 0")
	}
	if cfg.SessionCheckInterval > cfg.SessionTimeout {
		return errors.New("SESSION_CHECK_INTERVAL must not exceed SESSION_TIMEOUT")
	}
	if cfg.SubmissionTTL <= 0 {
		return errors.New("SUBMISSION_TTL must be > 0")
	}
	if cfg.Notify.OutboxSize < 1 {
		return errors.New("NOTIFY_OUTBOX_SIZE must be >= 1")
	}
	if cfg.Notify.AMQPURL != "" && strings.TrimSpace(cfg.Notify.AMQPExchange) == "" {
		return errors.New("AMQP_EXCHANGE must not be empty when AMQP_URL is set")
	}
	if cfg.RateRPS < 0 {
		return errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return errors.New("RATE_BURST must be >= 1")
	}
	if cfg.Security.HSTSMaxAge < 0 {
		return errors.New("HSTS_MAX_AGE must be >= 0")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}
	return nil
}

// ---- helpers ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// normalizeBasePath ensures a leading '/' and strips trailing ones (except root).
func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 {
		p = strings.TrimRight(p, "/")
		if p == "" {
			p = "/"
		}
	}
	return p
}
