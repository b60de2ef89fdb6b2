package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"

	"github.com/gudang-ops/gudang-ops/internal/app"
	jobmetrics "github.com/gudang-ops/gudang-ops/internal/jobs"
	"github.com/gudang-ops/gudang-ops/internal/platform/cache"
	"github.com/gudang-ops/gudang-ops/internal/platform/db"
	"github.com/gudang-ops/gudang-ops/internal/warehouse"
	"github.com/gudang-ops/gudang-ops/jobs"
)

func main() {
	_ = godotenv.Load()

	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
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
	slog.SetDefault(logger)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, report caching disabled", slog.Any("error", err))
		redisClient = nil
	}
	defer func() {
		if redisClient != nil {
			_ = redisClient.Close()
		}
	}()

	warehouseRepo := warehouse.NewRepository(pool)
	engines := warehouse.NewEngines(warehouseRepo, warehouse.Options{
		Events: warehouse.NewSlogSink(logger),
		Cache:  warehouse.NewReportCache(redisClient, cfg.ReportCacheTTL),
	})

	jobMetrics := jobmetrics.NewMetrics(nil)
	reportJob := jobs.NewSyncReportJob(engines, warehouseRepo, logger)
	reportJob.Metrics = jobMetrics
	recalcJob := jobs.NewRecalculateJob(engines, logger)
	recalcJob.Metrics = jobMetrics

	nightlyReport, err := jobs.NewSyncReportTask(jobs.SyncReportPayload{ScheduledFor: time.Now().UTC()})
	if err != nil {
		logger.Error("build report task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskWarehouseSyncReport, Handler: reportJob.Handle},
			{Type: jobs.TaskWarehouseRecalculate, Handler: recalcJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.SyncReportCron, Task: nightlyReport, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
