package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/riskibarqy/dashboard-bootstrap/internal/platform/logging"
	"github.com/riskibarqy/dashboard-bootstrap/internal/platform/resilience"
)

const (
	EnvDev   = "dev"
	EnvStage = "stage"
	EnvProd  = "prod"
)

const (
	IdentityJWT        = "jwt"
	IdentityIntrospect = "introspect"
)

const (
	StoreMemory    = "memory"
	StorePostgres  = "postgres"
	StoreSQLite    = "sqlite"
	StorePostgREST = "postgrest"
)

const (
	CacheNone   = "none"
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

// Config stores runtime configuration for the service.
type Config struct {
	AppEnv             string        `env:"APP_ENV" envDefault:"dev"`
	ServiceName        string        `env:"APP_SERVICE_NAME" envDefault:"dashboard-bootstrap"`
	ServiceVersion     string        `env:"APP_SERVICE_VERSION" envDefault:"dev"`
	HTTPAddr           string        `env:"APP_HTTP_ADDR" envDefault:":8080"`
	ReadTimeout        time.Duration `env:"APP_READ_TIMEOUT" envDefault:"10s"`
	WriteTimeout       time.Duration `env:"APP_WRITE_TIMEOUT" envDefault:"15s"`
	ShutdownTimeout    time.Duration `env:"APP_SHUTDOWN_TIMEOUT" envDefault:"10s"`
	LogLevelName       string        `env:"APP_LOG_LEVEL" envDefault:"info"`
	LogFormat          string        `env:"APP_LOG_FORMAT" envDefault:"json"`
	CORSAllowedOrigins []string      `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`
	LoginURL           string        `env:"LOGIN_URL" envDefault:"/login"`
	LoginReturnParam   string        `env:"LOGIN_RETURN_PARAM" envDefault:"next"`
	SessionCookieNames []string      `env:"SESSION_COOKIE_NAMES" envDefault:"sb-access-token,access_token" envSeparator:","`

	Onboarding OnboardingConfig `envPrefix:"ONBOARDING_"`

	IdentityProvider string           `env:"IDENTITY_PROVIDER" envDefault:"jwt"`
	JWT              JWTConfig        `envPrefix:"JWT_"`
	Introspect       IntrospectConfig `envPrefix:"INTROSPECT_"`

	ProfileStore            string          `env:"PROFILE_STORE" envDefault:"memory"`
	DBURL                   string          `env:"DB_URL"`
	DBDisablePreparedBinary bool            `env:"DB_DISABLE_PREPARED_BINARY_RESULT" envDefault:"true"`
	SQLitePath              string          `env:"SQLITE_PATH"`
	PostgREST               PostgRESTConfig `envPrefix:"POSTGREST_"`

	ProfileCacheBackend string             `env:"PROFILE_CACHE" envDefault:"none"`
	ProfileCache        ProfileCacheConfig `envPrefix:"PROFILE_CACHE_"`
	Redis               RedisConfig        `envPrefix:"REDIS_"`

	UptraceEnabled     bool   `env:"UPTRACE_ENABLED" envDefault:"false"`
	UptraceDSN         string `env:"UPTRACE_DSN"`
	UptraceLogsEnabled bool   `env:"UPTRACE_LOGS_ENABLED" envDefault:"true"`
	OTLPHeaders        string `env:"OTEL_EXPORTER_OTLP_HEADERS"`

	Pyroscope PyroscopeConfig `envPrefix:"PYROSCOPE_"`

	PprofEnabled bool   `env:"PPROF_ENABLED" envDefault:"false"`
	PprofAddr    string `env:"PPROF_ADDR" envDefault:":6060"`

	LogLevel logging.Level `env:"-"`
}

type OnboardingConfig struct {
	RevealDelay  time.Duration `env:"REVEAL_DELAY" envDefault:"1s"`
	WriteTimeout time.Duration `env:"WRITE_TIMEOUT" envDefault:"5s"`
	Workers      int           `env:"WORKERS" envDefault:"16"`
}

type JWTConfig struct {
	Secret   string        `env:"SECRET"`
	Issuer   string        `env:"ISSUER"`
	Audience string        `env:"AUDIENCE"`
	Leeway   time.Duration `env:"LEEWAY" envDefault:"30s"`
}

type IntrospectConfig struct {
	BaseURL  string                          `env:"BASE_URL"`
	Path     string                          `env:"PATH" envDefault:"/v1/auth/introspect"`
	AdminKey string                          `env:"ADMIN_KEY"`
	Timeout  time.Duration                   `env:"TIMEOUT" envDefault:"3s"`
	CacheTTL time.Duration                   `env:"CACHE_TTL" envDefault:"30s"`
	Circuit  resilience.CircuitBreakerConfig `envPrefix:"CIRCUIT_"`
}

type PostgRESTConfig struct {
	URL        string                          `env:"URL"`
	APIKey     string                          `env:"API_KEY"`
	ServiceKey string                          `env:"SERVICE_KEY"`
	Timeout    time.Duration                   `env:"TIMEOUT" envDefault:"3s"`
	Circuit    resilience.CircuitBreakerConfig `envPrefix:"CIRCUIT_"`
}

type ProfileCacheConfig struct {
	TTL        time.Duration `env:"TTL" envDefault:"10m"`
	MaxEntries int           `env:"MAX_ENTRIES" envDefault:"50000"`
}

type RedisConfig struct {
	Addr     string `env:"ADDR"`
	Password string `env:"PASSWORD"`
	DB       int    `env:"DB" envDefault:"0"`
	Prefix   string `env:"PREFIX" envDefault:"dashboard"`
}

type PyroscopeConfig struct {
	Enabled           bool          `env:"ENABLED" envDefault:"false"`
	ServerAddress     string        `env:"SERVER_ADDRESS"`
	AppName           string        `env:"APP_NAME" envDefault:"dashboard-bootstrap"`
	AuthToken         string        `env:"AUTH_TOKEN"`
	BasicAuthUser     string        `env:"BASIC_AUTH_USER"`
	BasicAuthPassword string        `env:"BASIC_AUTH_PASSWORD"`
	UploadRate        time.Duration `env:"UPLOAD_RATE" envDefault:"15s"`
}

// Load reads the process environment.
func Load() (Config, error) {
	return load(env.Options{})
}

// LoadFrom reads configuration from the given variables only.
func LoadFrom(vars map[string]string) (Config, error) {
	return load(env.Options{Environment: vars})
}

func load(opts env.Options) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	if err := normalize(&cfg); err != nil {
		return Config{}, err
	}
	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func normalize(cfg *Config) error {
	appEnv, err := parseAppEnv(cfg.AppEnv)
	if err != nil {
		return err
	}
	cfg.AppEnv = appEnv
	cfg.LogLevel = logging.ParseLevel(cfg.LogLevelName)
	cfg.LogFormat = strings.ToLower(strings.TrimSpace(cfg.LogFormat))
	cfg.IdentityProvider = strings.ToLower(strings.TrimSpace(cfg.IdentityProvider))
	cfg.ProfileStore = strings.ToLower(strings.TrimSpace(cfg.ProfileStore))
	cfg.ProfileCacheBackend = strings.ToLower(strings.TrimSpace(cfg.ProfileCacheBackend))
	cfg.CORSAllowedOrigins = trimList(cfg.CORSAllowedOrigins)
	cfg.SessionCookieNames = trimList(cfg.SessionCookieNames)
	cfg.LoginURL = strings.TrimSpace(cfg.LoginURL)
	cfg.LoginReturnParam = strings.TrimSpace(cfg.LoginReturnParam)

	cfg.UptraceDSN = strings.TrimSpace(cfg.UptraceDSN)
	if cfg.UptraceDSN == "" {
		cfg.UptraceDSN = parseUptraceDSNFromOTLPHeaders(cfg.OTLPHeaders)
	}
	return nil
}

func validate(cfg Config) error {
	if strings.TrimSpace(cfg.HTTPAddr) == "" {
		return fmt.Errorf("APP_HTTP_ADDR is required")
	}
	if cfg.LogFormat != logging.FormatJSON && cfg.LogFormat != logging.FormatConsole {
		return fmt.Errorf("invalid APP_LOG_FORMAT %q: valid values are %s, %s", cfg.LogFormat, logging.FormatJSON, logging.FormatConsole)
	}

	durations := []struct {
		key   string
		value time.Duration
	}{
		{"APP_READ_TIMEOUT", cfg.ReadTimeout},
		{"APP_WRITE_TIMEOUT", cfg.WriteTimeout},
		{"APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout},
		{"ONBOARDING_REVEAL_DELAY", cfg.Onboarding.RevealDelay},
		{"ONBOARDING_WRITE_TIMEOUT", cfg.Onboarding.WriteTimeout},
		{"PYROSCOPE_UPLOAD_RATE", cfg.Pyroscope.UploadRate},
	}
	for _, d := range durations {
		if d.value <= 0 {
			return fmt.Errorf("%s must be > 0", d.key)
		}
	}
	if cfg.Onboarding.Workers < 1 {
		return fmt.Errorf("ONBOARDING_WORKERS must be >= 1")
	}

	if len(cfg.CORSAllowedOrigins) == 0 {
		return fmt.Errorf("CORS_ALLOWED_ORIGINS must not be empty")
	}
	if len(cfg.SessionCookieNames) == 0 {
		return fmt.Errorf("SESSION_COOKIE_NAMES must not be empty")
	}
	if cfg.LoginURL == "" {
		return fmt.Errorf("LOGIN_URL is required")
	}
	if _, err := url.Parse(cfg.LoginURL); err != nil {
		return fmt.Errorf("parse LOGIN_URL: %w", err)
	}

	if err := validateIdentity(cfg); err != nil {
		return err
	}
	if err := validateProfileStore(cfg); err != nil {
		return err
	}

	switch cfg.ProfileCacheBackend {
	case CacheNone:
	case CacheMemory, CacheRedis:
		if cfg.ProfileCache.TTL <= 0 {
			return fmt.Errorf("PROFILE_CACHE_TTL must be > 0")
		}
		if cfg.ProfileCacheBackend == CacheRedis && strings.TrimSpace(cfg.Redis.Addr) == "" {
			return fmt.Errorf("REDIS_ADDR is required when PROFILE_CACHE=redis")
		}
	default:
		return fmt.Errorf("invalid PROFILE_CACHE %q: valid values are %s, %s, %s", cfg.ProfileCacheBackend, CacheNone, CacheMemory, CacheRedis)
	}

	if cfg.UptraceEnabled && cfg.UptraceDSN == "" {
		return fmt.Errorf("UPTRACE_DSN is required when UPTRACE_ENABLED=true")
	}
	if cfg.Pyroscope.Enabled && strings.TrimSpace(cfg.Pyroscope.ServerAddress) == "" {
		return fmt.Errorf("PYROSCOPE_SERVER_ADDRESS is required when PYROSCOPE_ENABLED=true")
	}
	if cfg.PprofEnabled && strings.TrimSpace(cfg.PprofAddr) == "" {
		return fmt.Errorf("PPROF_ADDR is required when PPROF_ENABLED=true")
	}
	return nil
}

func validateIdentity(cfg Config) error {
	switch cfg.IdentityProvider {
	case IdentityJWT:
		if strings.TrimSpace(cfg.JWT.Secret) == "" {
			return fmt.Errorf("JWT_SECRET is required when IDENTITY_PROVIDER=jwt")
		}
	case IdentityIntrospect:
		if strings.TrimSpace(cfg.Introspect.BaseURL) == "" {
			return fmt.Errorf("INTROSPECT_BASE_URL is required when IDENTITY_PROVIDER=introspect")
		}
		if cfg.Introspect.Timeout <= 0 {
			return fmt.Errorf("INTROSPECT_TIMEOUT must be > 0")
		}
	default:
		return fmt.Errorf("invalid IDENTITY_PROVIDER %q: valid values are %s, %s", cfg.IdentityProvider, IdentityJWT, IdentityIntrospect)
	}
	return nil
}

func validateProfileStore(cfg Config) error {
	switch cfg.ProfileStore {
	case StoreMemory:
		if cfg.AppEnv == EnvProd {
			return fmt.Errorf("PROFILE_STORE=memory is not allowed when APP_ENV=prod")
		}
	case StorePostgres:
		if strings.TrimSpace(cfg.DBURL) == "" {
			return fmt.Errorf("DB_URL is required when PROFILE_STORE=postgres")
		}
	case StoreSQLite:
		if strings.TrimSpace(cfg.SQLitePath) == "" {
			return fmt.Errorf("SQLITE_PATH is required when PROFILE_STORE=sqlite")
		}
	case StorePostgREST:
		if strings.TrimSpace(cfg.PostgREST.URL) == "" {
			return fmt.Errorf("POSTGREST_URL is required when PROFILE_STORE=postgrest")
		}
		if strings.TrimSpace(cfg.PostgREST.APIKey) == "" {
			return fmt.Errorf("POSTGREST_API_KEY is required when PROFILE_STORE=postgrest")
		}
		if cfg.PostgREST.Timeout <= 0 {
			return fmt.Errorf("POSTGREST_TIMEOUT must be > 0")
		}
	default:
		return fmt.Errorf("invalid PROFILE_STORE %q: valid values are %s, %s, %s, %s", cfg.ProfileStore, StoreMemory, StorePostgres, StoreSQLite, StorePostgREST)
	}
	return nil
}

func parseAppEnv(v string) (string, error) {
	value := strings.ToLower(strings.TrimSpace(v))
	switch value {
	case EnvDev, EnvStage, EnvProd:
		return value, nil
	default:
		return "", fmt.Errorf("invalid APP_ENV %q: valid values are %s, %s, %s", v, EnvDev, EnvStage, EnvProd)
	}
}

func parseUptraceDSNFromOTLPHeaders(raw string) string {
	for _, item := range strings.Split(raw, ",") {
		parts := strings.SplitN(strings.TrimSpace(item), "=", 2)
		if len(parts) != 2 {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(parts[0]), "uptrace-dsn") {
			return strings.Trim(strings.TrimSpace(parts[1]), "\"'")
		}
	}
	return ""
}

func trimList(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
