package config

import (
	"os"
	"reflect"
	"strings"
	"testing"
	"time"
)

// withRemote sets the one key without a default.
func withRemote(t *testing.T) {
	t.Helper()
	t.Setenv("REMOTE_BASE_URL", "https://orders.example.com/api/")
}

// --- MustLoad ---

func TestMustLoad_PanicsOnInvalidConfig(t *testing.T) {
	withRemote(t)
	t.Setenv("LOG_LEVEL", "verbose")
	defer func() {
		if r := recover(); r == nil {
			t.Fatalf("MustLoad should panic on invalid config")
		}
	}()
	_ = MustLoad()
}

func TestMustLoad_Success_NoPanic(t *testing.T) {
	withRemote(t)
	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("MustLoad should not panic on valid defaults, got: %v", r)
		}
	}()
	if cfg := MustLoad(); cfg.APIBasePath == "" {
		t.Fatalf("unexpected empty config from MustLoad")
	}
}

// --- Load ---

func TestLoad_Defaults(t *testing.T) {
	withRemote(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Remote.BaseURL != "https://orders.example.com/api" {
		t.Fatalf("base url should lose its trailing slash: %q", cfg.Remote.BaseURL)
	}
	if cfg.Cache.Driver != "sqlite" || cfg.Cache.DSN != "laundry.db" {
		t.Fatalf("cache defaults: %+v", cfg.Cache)
	}
	if cfg.Remote.Timeout != 30*time.Second || cfg.PollInterval != 15*time.Minute {
		t.Fatalf("remote/poll defaults: %v / %v", cfg.Remote.Timeout, cfg.PollInterval)
	}
	if cfg.SessionTimeout != 15*time.Minute || cfg.SessionCheckInterval != time.Minute {
		t.Fatalf("session defaults: %v / %v", cfg.SessionTimeout, cfg.SessionCheckInterval)
	}
	if cfg.SubmissionTTL != 24*time.Hour || cfg.Notify.OutboxSize != 256 || cfg.Notify.AMQPURL != "" {
		t.Fatalf("submission/notify defaults: %v %+v", cfg.SubmissionTTL, cfg.Notify)
	}
	if cfg.APIBasePath != "/api/v1" || cfg.GinMode != "release" || cfg.OTEL.ServiceName != "laundry-sync" {
		t.Fatalf("server defaults: %+v", cfg)
	}
}

func TestLoad_OverridesAndNormalization(t *testing.T) {
	withRemote(t)
	t.Setenv("PORT", "8088")
	t.Setenv("READ_TIMEOUT", "2s")
	t.Setenv("READ_HEADER_TIMEOUT", "1s")
	t.Setenv("WRITE_TIMEOUT", "3s")
	t.Setenv("IDLE_TIMEOUT", "4s")
	t.Setenv("MAX_HEADER_BYTES", "8192")
	t.Setenv("GIN_MODE", "weird")

	t.Setenv("LOG_LEVEL", "warning")
	t.Setenv("LOG_PRETTY", "yes")
	t.Setenv("SWAGGER_ENABLED", "on")
	t.Setenv("API_BASE_PATH", "api/v2/")

	t.Setenv("CACHE_DRIVER", "PostgreSQL")
	t.Setenv("CACHE_DSN", "postgres://u:p@db:5432/laundry")
	t.Setenv("REMOTE_TIMEOUT", "5s")
	t.Setenv("REMOTE_RPS", "2.5")
	t.Setenv("REMOTE_BURST", "4")
	t.Setenv("POLL_INTERVAL", "30s")
	t.Setenv("SESSION_TIMEOUT", "10m")
	t.Setenv("SESSION_CHECK_INTERVAL", "30s")
	t.Setenv("SUBMISSION_TTL", "2h")
	t.Setenv("AMQP_URL", "amqp://guest:guest@mq:5672/")
	t.Setenv("AMQP_EXCHANGE", "orders.ready")
	t.Setenv("NOTIFY_OUTBOX_SIZE", "16")

	t.Setenv("RATE_RPS", "x")
	t.Setenv("RATE_BURST", "nope")
	t.Setenv("CORS_ALLOWED_ORIGINS", " https://a.com , , http://b ")
	t.Setenv("ENABLE_HSTS", "TRUE")
	t.Setenv("HSTS_MAX_AGE", "24h")

	t.Setenv("OTEL_ENABLED", "1")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "otel:4317")
	t.Setenv("OTEL_EXPORTER_OTLP_INSECURE", "0")
	t.Setenv("OTEL_SERVICE_NAME", "svc")
	t.Setenv("OTEL_TRACES_SAMPLER_ARG", "0.75")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Port != "8088" || cfg.ReadTimeout != 2*time.Second || cfg.ReadHeaderTimeout != time.Second ||
		cfg.WriteTimeout != 3*time.Second || cfg.IdleTimeout != 4*time.Second ||
		cfg.MaxHeaderBytes != 8192 || cfg.GinMode != "release" {
		t.Fatalf("server fields unexpected: %+v", cfg)
	}
	if cfg.LogLevel != "warn" || !cfg.LogPretty || !cfg.SwaggerEnabled || cfg.APIBasePath != "/api/v2" {
		t.Fatalf("logging/docs unexpected: %+v", cfg)
	}
	if cfg.Cache.Driver != "postgres" || !strings.HasPrefix(cfg.Cache.DSN, "postgres://") {
		t.Fatalf("cache unexpected: %+v", cfg.Cache)
	}
	if cfg.Remote.Timeout != 5*time.Second || cfg.Remote.RPS != 2.5 || cfg.Remote.Burst != 4 {
		t.Fatalf("remote unexpected: %+v", cfg.Remote)
	}
	if cfg.PollInterval != 30*time.Second || cfg.SessionTimeout != 10*time.Minute ||
		cfg.SessionCheckInterval != 30*time.Second || cfg.SubmissionTTL != 2*time.Hour {
		t.Fatalf("timing unexpected: %+v", cfg)
	}
	if cfg.Notify.AMQPURL == "" || cfg.Notify.AMQPExchange != "orders.ready" || cfg.Notify.OutboxSize != 16 {
		t.Fatalf("notify unexpected: %+v", cfg.Notify)
	}
	if cfg.RateRPS != 5.0 || cfg.RateBurst != 10 {
		t.Fatalf("bad numbers should fall back to defaults: %v %v", cfg.RateRPS, cfg.RateBurst)
	}
	if !reflect.DeepEqual(cfg.CORS.AllowedOrigins, []string{"https://a.com", "http://b"}) {
		t.Fatalf("cors origins unexpected: %#v", cfg.CORS.AllowedOrigins)
	}
	if !cfg.Security.EnableHSTS || cfg.Security.HSTSMaxAge != 24*time.Hour {
		t.Fatalf("security unexpected: %+v", cfg.Security)
	}
	if !cfg.OTEL.Enabled || cfg.OTEL.Endpoint != "otel:4317" || cfg.OTEL.Insecure || cfg.OTEL.ServiceName != "svc" || cfg.OTEL.SampleRatio != 0.75 {
		t.Fatalf("otel unexpected: %+v", cfg.OTEL)
	}
}

// Each case triggers exactly one validation error.
func TestLoad_ValidationErrors(t *testing.T) {
	cases := []struct {
		name, key, val, want string
	}{
		{"invalid log level", "LOG_LEVEL", "verbose", "LOG_LEVEL"},
		{"blank port", "PORT", "   ", "PORT must not be empty"},
		{"zero timeout", "READ_TIMEOUT", "0s", "timeouts must be positive"},
		{"zero header bytes", "MAX_HEADER_BYTES", "0", "MAX_HEADER_BYTES"},
		{"unknown driver", "CACHE_DRIVER", "mysql", "CACHE_DRIVER"},
		{"blank dsn", "CACHE_DSN", "   ", "CACHE_DSN"},
		{"relative remote url", "REMOTE_BASE_URL", "orders.local", "REMOTE_BASE_URL must be an absolute URL"},
		{"zero remote timeout", "REMOTE_TIMEOUT", "0s", "REMOTE_TIMEOUT"},
		{"negative remote rps", "REMOTE_RPS", "-1", "REMOTE_RPS"},
		{"zero poll interval", "POLL_INTERVAL", "0s", "POLL_INTERVAL"},
		{"check longer than timeout", "SESSION_CHECK_INTERVAL", "20m", "SESSION_CHECK_INTERVAL must not exceed"},
		{"zero submission ttl", "SUBMISSION_TTL", "0s", "SUBMISSION_TTL"},
		{"empty outbox", "NOTIFY_OUTBOX_SIZE", "0", "NOTIFY_OUTBOX_SIZE"},
		{"negative rate", "RATE_RPS", "-1", "RATE_RPS"},
		{"zero burst", "RATE_BURST", "0", "RATE_BURST"},
		{"negative hsts", "HSTS_MAX_AGE", "-1s", "HSTS_MAX_AGE"},
		{"sample ratio", "OTEL_TRACES_SAMPLER_ARG", "1.5", "OTEL_TRACES_SAMPLER_ARG"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			withRemote(t)
			t.Setenv(tc.key, tc.val)
			if _, err := Load(); !containsErr(err, tc.want) {
				t.Fatalf("expected error containing %q, got: %v", tc.want, err)
			}
		})
	}

	t.Run("missing remote url", func(t *testing.T) {
		t.Setenv("REMOTE_BASE_URL", "")
		if _, err := Load(); !containsErr(err, "REMOTE_BASE_URL is required") {
			t.Fatalf("expected REMOTE_BASE_URL error, got: %v", err)
		}
	})
	t.Run("blank exchange with broker", func(t *testing.T) {
		withRemote(t)
		t.Setenv("AMQP_URL", "amqp://mq")
		t.Setenv("AMQP_EXCHANGE", "  ")
		if _, err := Load(); !containsErr(err, "AMQP_EXCHANGE") {
			t.Fatalf("expected AMQP_EXCHANGE error, got: %v", err)
		}
	})
}

// --- helpers ---

func TestHelpers_getenv(t *testing.T) {
	t.Setenv("X_EMPTY", "")
	if getenv("X_EMPTY", "d") != "d" {
		t.Fatalf("getenv should fall back to default on empty var")
	}
	t.Setenv("X_SET", "val")
	if getenv("X_SET", "d") != "val" {
		t.Fatalf("getenv should read set value")
	}
}

func TestHelpers_getfloat_getint_getdur(t *testing.T) {
	t.Setenv("F_VALID", "3.14")
	if getfloat("F_VALID", 0) != 3.14 {
		t.Fatalf("getfloat parse failed")
	}
	t.Setenv("F_BAD", "nope")
	if getfloat("F_BAD", 1.23) != 1.23 {
		t.Fatalf("getfloat default on bad parse failed")
	}
	t.Setenv("I_VALID", "42")
	if getint("I_VALID", 0) != 42 {
		t.Fatalf("getint parse failed")
	}
	t.Setenv("I_BAD", "x")
	if getint("I_BAD", 7) != 7 {
		t.Fatalf("getint default on bad parse failed")
	}
	t.Setenv("D_VALID", "150ms")
	if getdur("D_VALID", time.Second) != 150*time.Millisecond {
		t.Fatalf("getdur parse failed")
	}
	t.Setenv("D_BAD", "zzz")
	if getdur("D_BAD", 2*time.Second) != 2*time.Second {
		t.Fatalf("getdur default on bad parse failed")
	}
}

func TestHelpers_getbool(t *testing.T) {
	for _, v := range []string{"1", "true", "TRUE", " yes ", "Y", "on", "On"} {
		t.Setenv("B_VAL", v)
		if !getbool("B_VAL", false) {
			t.Fatalf("getbool(%q) = false; want true", v)
		}
	}
	for _, v := range []string{"0", "false", "FALSE", " no ", "N", "off", "Off"} {
		t.Setenv("B_VAL", v)
		if getbool("B_VAL", true) {
			t.Fatalf("getbool(%q) = true; want false", v)
		}
	}
	t.Setenv("B_VAL", "maybe")
	if !getbool("B_VAL", true) || getbool("B_VAL", false) {
		t.Fatalf("getbool should keep the default on unknown values")
	}
}

func TestHelpers_splitCSV_and_normalizeBasePath(t *testing.T) {
	if out := splitCSV(""); out != nil {
		t.Fatalf("splitCSV empty should return nil")
	}
	if got := splitCSV(" a, ,b ,  c  ,"); !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Fatalf("splitCSV mismatch: got %#v", got)
	}
	for in, want := range map[string]string{"": "/", "v1": "/v1", "/v1/": "/v1", " / ": "/", "//": "/"} {
		if got := normalizeBasePath(in); got != want {
			t.Fatalf("normalizeBasePath(%q) = %q; want %q", in, got, want)
		}
	}
}

func TestMain(m *testing.M) {
	for _, k := range []string{"PORT", "REMOTE_BASE_URL", "CACHE_DRIVER", "AMQP_URL"} {
		os.Unsetenv(k)
	}
	os.Exit(m.Run())
}

func containsErr(err error, want string) bool {
	return err != nil && strings.Contains(err.Error(), want)
}
