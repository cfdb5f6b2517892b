package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/equinox-erp/equinox/internal/app"
	"github.com/equinox-erp/equinox/internal/imports"
	jobmetrics "github.com/equinox-erp/equinox/internal/jobs"
	"github.com/equinox-erp/equinox/internal/observability"
	"github.com/equinox-erp/equinox/internal/platform/cache"
	"github.com/equinox-erp/equinox/internal/platform/db"
	"github.com/equinox-erp/equinox/internal/shared"
	"github.com/equinox-erp/equinox/jobs"
)

func main() {
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

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	importService := imports.NewService(imports.ServiceConfig{
		Catalog:   imports.NewCatalog(pool),
		Repo:      imports.NewRepository(pool),
		Sessions:  imports.NewRedisSessionStore(redisClient, cfg.ImportSessionTTL),
		Locker:    shared.NewLocker(redisClient),
		Audit:     shared.NewAuditLogger(pool),
		Metrics:   observability.NewMetrics(),
		Logger:    logger,
		ChunkSize: cfg.ImportCommitChunkSize,
		LockTTL:   cfg.ImportLockTTL,
	})
	queueOpts, err := cache.QueueConnOpt(cfg.RedisAddr)
	if err != nil {
		logger.Error("queue connection", slog.Any("error", err))
		os.Exit(1)
	}
	importJob := jobs.NewImportBatchJob(importService, logger, jobmetrics.NewMetrics(nil))

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:       queueOpts,
		Logger:          logger,
		Concurrency:     cfg.WorkerConcurrency,
		ShutdownTimeout: cfg.WorkerShutdownTimeout,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskImportCommit, Handler: importJob.HandleCommit},
			{Type: jobs.TaskImportRollback, Handler: importJob.HandleRollback},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("worker started", slog.Int("concurrency", cfg.WorkerConcurrency))
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
