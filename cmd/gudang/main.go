package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"

	"github.com/gudang-ops/gudang-ops/internal/app"
	"github.com/gudang-ops/gudang-ops/internal/observability"
	"github.com/gudang-ops/gudang-ops/internal/platform/cache"
	"github.com/gudang-ops/gudang-ops/internal/platform/db"
	"github.com/gudang-ops/gudang-ops/internal/purchase"
	"github.com/gudang-ops/gudang-ops/internal/shared"
	"github.com/gudang-ops/gudang-ops/internal/warehouse"
	"github.com/gudang-ops/gudang-ops/jobs"
)

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)
	slog.SetDefault(logger)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		// Reports fall back to uncached builds without Redis.
		logger.Warn("redis unavailable, report caching disabled", slog.Any("error", err))
		redisClient = nil
	}
	defer func() {
		if redisClient != nil {
			_ = redisClient.Close()
		}
	}()

	metrics := observability.NewMetrics()
	syncMetrics := observability.NewSyncMetrics(metrics.Registerer())

	warehouseRepo := warehouse.NewRepository(pool)
	engines := warehouse.NewEngines(warehouseRepo, warehouse.Options{
		Events:  warehouse.NewSlogSink(logger),
		Metrics: syncMetrics,
		Cache:   warehouse.NewReportCache(redisClient, cfg.ReportCacheTTL),
	})

	purchaseRepo := purchase.NewRepository(pool)
	idempotency := shared.NewIdempotencyStore(pool)
	purchaseService := purchase.NewService(purchaseRepo, engines, idempotency, logger)

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	jobClient, err := jobs.NewClient(redisOpts)
	if err != nil {
		logger.Warn("job client unavailable", slog.Any("error", err))
		jobClient = nil
	}
	defer func() {
		if jobClient != nil {
			_ = jobClient.Close()
		}
	}()
	jobHandler := jobs.NewHandler(asynq.NewInspector(redisOpts), jobClient, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		WarehouseHandler: warehouse.NewHandler(logger, engines),
		PurchaseHandler:  purchase.NewHandler(logger, purchaseService),
		JobHandler:       jobHandler,
		Metrics:          metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", slog.String("addr", cfg.AppAddr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown", slog.Any("error", err))
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			os.Exit(1)
		}
	}
}
