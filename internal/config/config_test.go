package config

import (
	"strings"
	"testing"
	"time"

	"github.com/riskibarqy/dashboard-bootstrap/internal/platform/logging"
)

func baseEnv() map[string]string {
	return map[string]string{
		"APP_ENV":    EnvDev,
		"JWT_SECRET": "secret",
	}
}

func withEnv(overrides map[string]string) map[string]string {
	vars := baseEnv()
	for k, v := range overrides {
		vars[k] = v
	}
	return vars
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := LoadFrom(baseEnv())
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if cfg.HTTPAddr != ":8080" {
		t.Fatalf("unexpected HTTPAddr: %q", cfg.HTTPAddr)
	}
	if cfg.Onboarding.RevealDelay != time.Second {
		t.Fatalf("unexpected reveal delay: %s", cfg.Onboarding.RevealDelay)
	}
	if cfg.Onboarding.Workers != 16 {
		t.Fatalf("unexpected workers: %d", cfg.Onboarding.Workers)
	}
	if strings.Join(cfg.SessionCookieNames, ",") != "sb-access-token,access_token" {
		t.Fatalf("unexpected cookie names: %v", cfg.SessionCookieNames)
	}
	if cfg.ProfileStore != StoreMemory || cfg.ProfileCacheBackend != CacheNone {
		t.Fatalf("unexpected store defaults: store=%s cache=%s", cfg.ProfileStore, cfg.ProfileCacheBackend)
	}
	if cfg.LogLevel != logging.LevelInfo {
		t.Fatalf("unexpected log level: %s", cfg.LogLevel)
	}
	if !cfg.Introspect.Circuit.Enabled || cfg.Introspect.Circuit.FailureThreshold != 5 {
		t.Fatalf("unexpected introspect circuit defaults: %+v", cfg.Introspect.Circuit)
	}
	if cfg.LoginURL != "/login" || cfg.LoginReturnParam != "next" {
		t.Fatalf("unexpected login defaults: %q %q", cfg.LoginURL, cfg.LoginReturnParam)
	}
}

func TestLoad_AppEnvValidation(t *testing.T) {
	if _, err := LoadFrom(withEnv(map[string]string{"APP_ENV": "invalid"})); err == nil {
		t.Fatalf("expected error for invalid APP_ENV")
	}
}

func TestLoad_RequiredKeys(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{name: "jwt secret", env: map[string]string{"JWT_SECRET": " "}, want: "JWT_SECRET is required"},
		{name: "introspect base url", env: map[string]string{"IDENTITY_PROVIDER": "introspect"}, want: "INTROSPECT_BASE_URL is required"},
		{name: "unknown identity provider", env: map[string]string{"IDENTITY_PROVIDER": "saml"}, want: "invalid IDENTITY_PROVIDER"},
		{name: "postgres db url", env: map[string]string{"PROFILE_STORE": "postgres"}, want: "DB_URL is required"},
		{name: "sqlite path", env: map[string]string{"PROFILE_STORE": "sqlite"}, want: "SQLITE_PATH is required"},
		{name: "postgrest url", env: map[string]string{"PROFILE_STORE": "postgrest"}, want: "POSTGREST_URL is required"},
		{name: "postgrest key", env: map[string]string{"PROFILE_STORE": "postgrest", "POSTGREST_URL": "https://x.supabase.co"}, want: "POSTGREST_API_KEY is required"},
		{name: "memory store in prod", env: map[string]string{"APP_ENV": "prod"}, want: "PROFILE_STORE=memory is not allowed"},
		{name: "redis addr", env: map[string]string{"PROFILE_CACHE": "redis"}, want: "REDIS_ADDR is required"},
		{name: "uptrace dsn", env: map[string]string{"UPTRACE_ENABLED": "true"}, want: "UPTRACE_DSN is required"},
		{name: "pyroscope address", env: map[string]string{"PYROSCOPE_ENABLED": "true"}, want: "PYROSCOPE_SERVER_ADDRESS is required"},
		{name: "reveal delay", env: map[string]string{"ONBOARDING_REVEAL_DELAY": "-1s"}, want: "ONBOARDING_REVEAL_DELAY must be > 0"},
		{name: "workers", env: map[string]string{"ONBOARDING_WORKERS": "0"}, want: "ONBOARDING_WORKERS must be >= 1"},
		{name: "log format", env: map[string]string{"APP_LOG_FORMAT": "xml"}, want: "invalid APP_LOG_FORMAT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFrom(withEnv(tt.env))
			if err == nil {
				t.Fatalf("expected error containing %q", tt.want)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("unexpected error: %v want substring %q", err, tt.want)
			}
		})
	}
}

func TestLoad_NestedPrefixes(t *testing.T) {
	cfg, err := LoadFrom(withEnv(map[string]string{
		"IDENTITY_PROVIDER":                   "introspect",
		"INTROSPECT_BASE_URL":                 "https://auth.example.com",
		"INTROSPECT_CIRCUIT_ENABLED":          "false",
		"INTROSPECT_CIRCUIT_FAILURE_COUNT":    "9",
		"PROFILE_STORE":                       "postgrest",
		"POSTGREST_URL":                       "https://x.supabase.co",
		"POSTGREST_API_KEY":                   "anon",
		"POSTGREST_CIRCUIT_OPEN_TIMEOUT":      "45s",
		"PROFILE_CACHE":                       "redis",
		"PROFILE_CACHE_TTL":                   "2m",
		"REDIS_ADDR":                          "localhost:6379",
		"CORS_ALLOWED_ORIGINS":                "https://a.example.com, https://b.example.com",
		"APP_LOG_LEVEL":                       "debug",
		"POSTGREST_CIRCUIT_HALF_OPEN_MAX_REQ": "3",
	}))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if cfg.Introspect.Circuit.Enabled || cfg.Introspect.Circuit.FailureThreshold != 9 {
		t.Fatalf("unexpected introspect circuit: %+v", cfg.Introspect.Circuit)
	}
	if cfg.PostgREST.Circuit.OpenTimeout != 45*time.Second || cfg.PostgREST.Circuit.HalfOpenMaxReq != 3 {
		t.Fatalf("unexpected postgrest circuit: %+v", cfg.PostgREST.Circuit)
	}
	if cfg.ProfileCache.TTL != 2*time.Minute || cfg.Redis.Prefix != "dashboard" {
		t.Fatalf("unexpected cache config: %+v redis=%+v", cfg.ProfileCache, cfg.Redis)
	}
	if len(cfg.CORSAllowedOrigins) != 2 || cfg.CORSAllowedOrigins[1] != "https://b.example.com" {
		t.Fatalf("unexpected CORS origins: %v", cfg.CORSAllowedOrigins)
	}
	if cfg.LogLevel != logging.LevelDebug {
		t.Fatalf("unexpected log level: %s", cfg.LogLevel)
	}
}

func TestLoad_UptraceDSNFromOTLPHeaders(t *testing.T) {
	cfg, err := LoadFrom(withEnv(map[string]string{
		"UPTRACE_ENABLED":            "true",
		"OTEL_EXPORTER_OTLP_HEADERS": `foo=bar, uptrace-dsn="https://token@api.uptrace.dev/1"`,
	}))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.UptraceDSN != "https://token@api.uptrace.dev/1" {
		t.Fatalf("unexpected UptraceDSN: %q", cfg.UptraceDSN)
	}
}

func TestLoad_ProcessEnvironment(t *testing.T) {
	t.Setenv("APP_ENV", EnvStage)
	t.Setenv("JWT_SECRET", "from-env")
	t.Setenv("APP_HTTP_ADDR", ":9090")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.AppEnv != EnvStage || cfg.HTTPAddr != ":9090" || cfg.JWT.Secret != "from-env" {
		t.Fatalf("unexpected config from process env: env=%s addr=%s", cfg.AppEnv, cfg.HTTPAddr)
	}
}
