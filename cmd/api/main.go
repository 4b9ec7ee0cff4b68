package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/tripradar/tripradar/config"
	"github.com/tripradar/tripradar/internal/health"
	"github.com/tripradar/tripradar/internal/infrastructure/postgres"
	"github.com/tripradar/tripradar/internal/infrastructure/redisjob"
	ctxlog "github.com/tripradar/tripradar/internal/log"
	"github.com/tripradar/tripradar/internal/metrics"
	"github.com/tripradar/tripradar/internal/repository"
	httptransport "github.com/tripradar/tripradar/internal/transport/http"
	"github.com/tripradar/tripradar/internal/transport/http/handler"
	"github.com/tripradar/tripradar/internal/usecase"
)

// knownProviders is the full adapter set the worker runs. The API only
// validates names against it; the worker decides which are live.
var knownProviders = []string{"ryanair", "wizzair", "amadeus"}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger := newLogger(cfg.Env, cfg.SlogLevel())

	if cfg.Env != "local" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	rdb, err := redisjob.NewClient(ctx, cfg.RedisURL)
	if err != nil {
		stop()
		log.Fatalf("redis: %v", err)
	}
	defer func() { _ = rdb.Close() }()

	store := redisjob.New(rdb, time.Duration(cfg.JobTTLMinutes)*time.Minute)

	deps := []health.Dependency{
		{Name: "redis", Pinger: health.PingerFunc(func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		})},
	}

	var archive repository.Archive
	if cfg.DatabaseURL != "" {
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			stop()
			log.Fatalf("db: %v", err)
		}
		defer pool.Close()
		if err := postgres.EnsureSchema(ctx, pool); err != nil {
			stop()
			log.Fatalf("db schema: %v", err)
		}
		archive = postgres.NewArchiveRepository(pool, time.Duration(cfg.ArchiveRetentionD)*24*time.Hour)
		deps = append(deps, health.Dependency{Name: "postgres", Pinger: pool})
	} else {
		logger.Warn("DATABASE_URL not set, search archive disabled")
	}

	searchUsecase := usecase.NewSearchUsecase(store, archive, knownProviders, cfg.DefaultOrigin)
	searchHandler := handler.NewSearchHandler(searchUsecase, logger)

	metrics.Register()
	checker := health.NewChecker(logger, prometheus.DefaultRegisterer, deps...)

	srv := http.Server{
		Addr:    ":" + cfg.Port,
		Handler: httptransport.NewRouter(logger, searchHandler, checker),
	}

	metricsSrv := metrics.NewServer(":" + cfg.MetricsPort)

	go func() {
		logger.Info("server started", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server: %v", err)
		}
	}()

	go func() {
		logger.Info("metrics server started", "port", cfg.MetricsPort)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", "error", err)
		}
	}()

	<-ctx.Done()
	stop()
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", "error", err)
	}
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server shutdown", "error", err)
	}
}

func newLogger(env string, level slog.Level) *slog.Logger {
	var inner slog.Handler
	if env == "local" {
		inner = tint.NewHandler(os.Stdout, &tint.Options{
			Level:      level,
			TimeFormat: time.Kitchen,
		})
	} else {
		inner = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	}
	return slog.New(ctxlog.NewContextHandler(inner))
}
