package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/sourcegraph/conc"

	"github.com/riskibarqy/dashboard-bootstrap/internal/app"
	"github.com/riskibarqy/dashboard-bootstrap/internal/config"
	"github.com/riskibarqy/dashboard-bootstrap/internal/observability"
	"github.com/riskibarqy/dashboard-bootstrap/internal/platform/logging"
)

func main() {
	os.Exit(run())
}

func run() int {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logging.Default().Error("load config", "error", err)
		return 1
	}

	logger := logging.New(cfg.LogFormat, cfg.LogLevel).With(
		"service", cfg.ServiceName,
		"version", cfg.ServiceVersion,
		"env", cfg.AppEnv,
	)
	logging.SetDefault(logger)
	defer func() { _ = logger.Sync() }()

	shutdownTracing, err := observability.InitUptrace(cfg, logger)
	if err != nil {
		logger.Error("init uptrace", "error", err)
		return 1
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := shutdownTracing(ctx); err != nil {
			logger.Error("shutdown uptrace", "error", err)
		}
	}()

	stopProfiler, err := observability.InitPyroscope(cfg, logger)
	if err != nil {
		logger.Error("init pyroscope", "error", err)
		return 1
	}
	defer func() {
		if err := stopProfiler(); err != nil {
			logger.Error("stop pyroscope", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("build app", "error", err)
		return 1
	}

	var wg conc.WaitGroup
	pprofSrv, err := startPprof(cfg, logger, &wg, application.Close)
	if err != nil {
		logger.Error("start pprof", "error", err)
		return 1
	}

	serverFailed := make(chan struct{})
	wg.Go(func() {
		logger.Info("http server starting", "addr", cfg.HTTPAddr)
		if err := application.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server failed", "error", err)
			close(serverFailed)
		}
	})

	exitCode := 0
	select {
	case <-ctx.Done():
	case <-serverFailed:
		exitCode = 1
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := application.Server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
		exitCode = 1
	}
	if err := observability.StopPprofServer(pprofSrv, logger, cfg.ShutdownTimeout); err != nil {
		logger.Error("stop pprof", "error", err)
	}
	wg.Wait()

	if err := application.Close(shutdownCtx); err != nil {
		logger.Error("release app resources", "error", err)
		exitCode = 1
	}

	logger.Info("http server stopped", "drain_timeout", cfg.ShutdownTimeout.String())
	return exitCode
}

// startPprof releases the already built app when the pprof server cannot start.
func startPprof(cfg config.Config, logger *logging.Logger, wg *conc.WaitGroup, release func(context.Context) error) (*http.Server, error) {
	srv, err := observability.StartPprofServer(cfg, logger, wg)
	if err == nil {
		return srv, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if closeErr := release(ctx); closeErr != nil {
		logger.Error("release app resources", "error", closeErr)
	}
	return nil, err
}
