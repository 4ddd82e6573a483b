package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-ledger/internal/app"
	"github.com/odyssey-erp/odyssey-ledger/internal/kernel"
	kernelhttp "github.com/odyssey-erp/odyssey-ledger/internal/kernel/http"
	"github.com/odyssey-erp/odyssey-ledger/internal/observability"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/cache"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
	"github.com/odyssey-erp/odyssey-ledger/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	dbpool, err := db.New(ctx, cfg.PGDSN, db.PoolOptions{AppName: "ledgerd"})
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.Redis())
	if err != nil {
		logger.Warn("redis unavailable, report cache disabled", slog.Any("error", err))
	} else {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
	}

	tolerance, err := cfg.Tolerance()
	if err != nil {
		logger.Error("ledger tolerance", slog.Any("error", err))
		os.Exit(1)
	}

	metrics := observability.NewMetrics()
	builder := kernel.NewBuilder(dbpool).
		WithLogger(logger).
		WithRequirePeriod(cfg.LedgerRequirePeriod).
		WithTolerance(tolerance).
		WithMetrics(metrics.Registerer())
	if redisClient != nil {
		builder = builder.WithCache(redisClient, cfg.LedgerReportCacheTTL)
	}
	ledger := builder.Build()

	readiness := map[string]app.ReadinessCheck{
		"postgres": dbpool.Ping,
	}
	var jobHandler *jobs.Handler
	if redisClient != nil {
		readiness["redis"] = cache.Probe(redisClient)
		inspector := asynq.NewInspector(cfg.AsynqRedis())
		defer func() {
			_ = inspector.Close()
		}()
		jobHandler = jobs.NewHandler(inspector, logger)
	}

	router := app.NewRouter(app.RouterParams{
		Logger:        logger,
		Config:        cfg,
		LedgerHandler: kernelhttp.NewHandler(logger, ledger, cfg.RateLimitPerMin),
		JobHandler:    jobHandler,
		Metrics:       metrics,
		Readiness:     readiness,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
