package app

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	crerr "github.com/cockroachdb/errors"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/uptrace/opentelemetry-go-extra/otelsql"
	"github.com/uptrace/opentelemetry-go-extra/otelsqlx"
	_ "modernc.org/sqlite"

	"github.com/riskibarqy/dashboard-bootstrap/internal/config"
	"github.com/riskibarqy/dashboard-bootstrap/internal/domain/profile"
	"github.com/riskibarqy/dashboard-bootstrap/internal/infrastructure/identity/introspect"
	"github.com/riskibarqy/dashboard-bootstrap/internal/infrastructure/identity/jwtsession"
	"github.com/riskibarqy/dashboard-bootstrap/internal/infrastructure/repository/flagcache"
	"github.com/riskibarqy/dashboard-bootstrap/internal/infrastructure/repository/memory"
	"github.com/riskibarqy/dashboard-bootstrap/internal/infrastructure/repository/postgrest"
	"github.com/riskibarqy/dashboard-bootstrap/internal/infrastructure/repository/sqlstore"
	"github.com/riskibarqy/dashboard-bootstrap/internal/interfaces/httpapi"
	"github.com/riskibarqy/dashboard-bootstrap/internal/platform/async"
	"github.com/riskibarqy/dashboard-bootstrap/internal/platform/logging"
	"github.com/riskibarqy/dashboard-bootstrap/internal/usecase"
)

// App owns every long-lived handle the service creates. Close releases them.
type App struct {
	Server *http.Server

	logger     *logging.Logger
	dispatcher *async.Dispatcher
	redis      redis.UniversalClient
	db         *sqlx.DB

	closeOnce sync.Once
	closeErr  error
}

func New(ctx context.Context, cfg config.Config, logger *logging.Logger) (*App, error) {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.HTTPAddr == "" {
		return nil, fmt.Errorf("http server addr cannot be empty")
	}

	a := &App{logger: logger}
	ok := false
	defer func() {
		if !ok {
			_ = a.Close(context.WithoutCancel(ctx))
		}
	}()

	identity, err := buildIdentityProvider(cfg, logger)
	if err != nil {
		return nil, err
	}

	store, err := a.buildProfileStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	store = a.wrapFlagCache(cfg, store, logger)

	a.dispatcher, err = async.NewDispatcher(async.Config{
		Workers: cfg.Onboarding.Workers,
		Timeout: cfg.Onboarding.WriteTimeout,
	}, logger.Named("async"))
	if err != nil {
		return nil, err
	}

	resolver := usecase.NewSessionResolver(identity, store, logger.Named("session"))
	bootstrapSvc := usecase.NewBootstrapService(resolver, cfg.Onboarding.RevealDelay, logger.Named("bootstrap"))
	onboardingSvc := usecase.NewOnboardingService(store, a.dispatcher, logger.Named("onboarding"))

	handler := httpapi.NewHandler(bootstrapSvc, onboardingSvc, httpapi.SessionConfig{
		CookieNames: cfg.SessionCookieNames,
		LoginURL:    cfg.LoginURL,
		ReturnParam: cfg.LoginReturnParam,
	}, logger.Named("http"))
	router := httpapi.NewRouter(handler, identity, logger.Named("http"), cfg.CORSAllowedOrigins)

	a.Server = &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	logger.Info("application wired",
		"identity_provider", cfg.IdentityProvider,
		"profile_store", cfg.ProfileStore,
		"profile_cache", cfg.ProfileCacheBackend,
		"reveal_delay", cfg.Onboarding.RevealDelay.String(),
	)
	ok = true
	return a, nil
}

// Close drains the dispatcher, then releases the redis client and the database handle.
// It is safe to call more than once.
func (a *App) Close(ctx context.Context) error {
	a.closeOnce.Do(func() {
		var errs error
		if a.dispatcher != nil {
			if err := a.dispatcher.Close(ctx); err != nil {
				errs = crerr.CombineErrors(errs, crerr.Wrap(err, "close dispatcher"))
			}
		}
		if a.redis != nil {
			if err := a.redis.Close(); err != nil {
				errs = crerr.CombineErrors(errs, crerr.Wrap(err, "close redis"))
			}
		}
		if a.db != nil {
			if err := a.db.Close(); err != nil {
				errs = crerr.CombineErrors(errs, crerr.Wrap(err, "close database"))
			}
		}
		a.closeErr = errs
	})
	return a.closeErr
}

func buildIdentityProvider(cfg config.Config, logger *logging.Logger) (usecase.IdentityProvider, error) {
	switch cfg.IdentityProvider {
	case config.IdentityIntrospect:
		return introspect.NewClient(introspect.ClientConfig{
			BaseURL:        cfg.Introspect.BaseURL,
			Path:           cfg.Introspect.Path,
			AdminKey:       cfg.Introspect.AdminKey,
			Timeout:        cfg.Introspect.Timeout,
			CacheTTL:       cfg.Introspect.CacheTTL,
			Logger:         logger,
			CircuitBreaker: cfg.Introspect.Circuit,
		}), nil
	case config.IdentityJWT:
		verifier, err := jwtsession.NewVerifier(jwtsession.Config{
			Secret:   cfg.JWT.Secret,
			Issuer:   cfg.JWT.Issuer,
			Audience: cfg.JWT.Audience,
			Leeway:   cfg.JWT.Leeway,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("build jwt verifier: %w", err)
		}
		return verifier, nil
	default:
		return nil, fmt.Errorf("unsupported identity provider %q", cfg.IdentityProvider)
	}
}

func (a *App) buildProfileStore(ctx context.Context, cfg config.Config, logger *logging.Logger) (profile.Repository, error) {
	switch cfg.ProfileStore {
	case config.StoreMemory:
		logger.Warn("using in-memory profile store, onboarding flags are lost on restart")
		return memory.NewProfileRepository(nil), nil
	case config.StorePostgres:
		db, err := openDB(ctx, postgresTarget(cfg.DBURL, cfg.DBDisablePreparedBinary))
		if err != nil {
			return nil, err
		}
		a.db = db
		return sqlstore.NewProfileRepository(db), nil
	case config.StoreSQLite:
		db, err := openDB(ctx, sqliteTarget(cfg.SQLitePath))
		if err != nil {
			return nil, err
		}
		// sqlite allows a single writer.
		db.SetMaxOpenConns(1)
		a.db = db
		repo := sqlstore.NewProfileRepository(db)
		if err := repo.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		return repo, nil
	case config.StorePostgREST:
		repo, err := postgrest.NewProfileRepository(postgrest.Config{
			BaseURL:        cfg.PostgREST.URL,
			APIKey:         cfg.PostgREST.APIKey,
			ServiceKey:     cfg.PostgREST.ServiceKey,
			Timeout:        cfg.PostgREST.Timeout,
			Logger:         logger,
			CircuitBreaker: cfg.PostgREST.Circuit,
		})
		if err != nil {
			return nil, fmt.Errorf("build postgrest profile store: %w", err)
		}
		return repo, nil
	default:
		return nil, fmt.Errorf("unsupported profile store %q", cfg.ProfileStore)
	}
}

func (a *App) wrapFlagCache(cfg config.Config, store profile.Repository, logger *logging.Logger) profile.Repository {
	switch cfg.ProfileCacheBackend {
	case config.CacheMemory:
		return flagcache.NewProfileRepository(store, flagcache.NewMemoryBackend(cfg.ProfileCache.TTL, cfg.ProfileCache.MaxEntries), logger)
	case config.CacheRedis:
		a.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		return flagcache.NewProfileRepository(store, flagcache.NewRedisBackend(a.redis, cfg.Redis.Prefix, cfg.ProfileCache.TTL), logger)
	default:
		return store
	}
}

func openDB(ctx context.Context, target dbTarget) (*sqlx.DB, error) {
	opts := []otelsql.Option{
		otelsql.WithDBSystem(target.driver),
		otelsql.WithQueryFormatter(formatDBQueryForTrace),
	}
	if target.name != "" {
		opts = append(opts, otelsql.WithDBName(target.name))
	}

	db, err := otelsqlx.Open(target.driver, target.dsn, opts...)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", target.driver, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s database: %w", target.driver, err)
	}
	return db, nil
}
