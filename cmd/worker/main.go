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

	"github.com/lmittmann/tint"

	"github.com/tripradar/tripradar/config"
	"github.com/tripradar/tripradar/internal/archive"
	"github.com/tripradar/tripradar/internal/catalog"
	"github.com/tripradar/tripradar/internal/flights"
	"github.com/tripradar/tripradar/internal/infrastructure/postgres"
	"github.com/tripradar/tripradar/internal/infrastructure/redisjob"
	ctxlog "github.com/tripradar/tripradar/internal/log"
	"github.com/tripradar/tripradar/internal/metrics"
	"github.com/tripradar/tripradar/internal/repository"
	"github.com/tripradar/tripradar/internal/search"
	"github.com/tripradar/tripradar/internal/weather"
	"github.com/tripradar/tripradar/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger := newLogger(cfg.Env, cfg.SlogLevel())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	rdb, err := redisjob.NewClient(ctx, cfg.RedisURL)
	if err != nil {
		stop()
		log.Fatalf("redis: %v", err)
	}
	defer func() { _ = rdb.Close() }()

	store := redisjob.New(rdb, time.Duration(cfg.JobTTLMinutes)*time.Minute)

	var arc repository.Archive
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
		arc = postgres.NewArchiveRepository(pool, time.Duration(cfg.ArchiveRetentionD)*24*time.Hour)
	} else {
		logger.Warn("DATABASE_URL not set, finished jobs will not be archived")
	}

	destinations, err := catalog.Load()
	if err != nil {
		stop()
		log.Fatalf("catalog: %v", err)
	}
	logger.Info("catalog loaded", "destinations", len(destinations))

	retrier := flights.NewRetrier(logger, cfg.RetryMaxAttempts, time.Duration(cfg.RetryBaseMS)*time.Millisecond)

	providers := []flights.Provider{
		flights.NewRyanair(retrier, logger),
		flights.NewWizzair(retrier, logger),
	}
	if cfg.AmadeusAPIKey != "" && cfg.AmadeusAPISecret != "" {
		providers = append(providers, flights.NewAmadeus(cfg.AmadeusAPIKey, cfg.AmadeusAPISecret, retrier, logger))
	} else {
		logger.Info("amadeus credentials not set, adapter disabled")
	}
	registry := search.NewRegistry(providers...)
	logger.Info("providers registered", "names", registry.Names())

	orch := search.NewOrchestrator(registry, weather.NewClient(logger), cfg.SearchConcurrency, logger)

	metrics.Register()
	metrics.WorkerStartTime.SetToCurrentTime()
	metricsSrv := metrics.NewServer(":" + cfg.MetricsPort)
	go func() {
		logger.Info("metrics server started", "port", cfg.MetricsPort)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", "error", err)
		}
	}()

	if arc != nil {
		janitor, err := archive.NewJanitor(arc, cfg.JanitorCron, logger)
		if err != nil {
			stop()
			log.Fatalf("janitor: %v", err)
		}
		go janitor.Start(ctx)
	}

	w := worker.New(store, arc, orch, destinations,
		time.Duration(cfg.ClaimTimeoutSec)*time.Second, logger)
	if err := w.Run(ctx); err != nil {
		logger.Error("worker", "error", err)
	}

	stop()
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
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
