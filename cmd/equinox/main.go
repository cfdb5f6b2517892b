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

	"github.com/equinox-erp/equinox/internal/app"
	"github.com/equinox-erp/equinox/internal/imports"
	"github.com/equinox-erp/equinox/internal/observability"
	"github.com/equinox-erp/equinox/internal/platform/cache"
	"github.com/equinox-erp/equinox/internal/platform/db"
	"github.com/equinox-erp/equinox/internal/shared"
	"github.com/equinox-erp/equinox/jobs"
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

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

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

	metrics := observability.NewMetrics()

	importService := imports.NewService(imports.ServiceConfig{
		Catalog:           imports.NewCatalog(dbpool),
		Repo:              imports.NewRepository(dbpool),
		Sessions:          imports.NewRedisSessionStore(redisClient, cfg.ImportSessionTTL),
		Locker:            shared.NewLocker(redisClient),
		Audit:             shared.NewAuditLogger(dbpool),
		Idempotency:       shared.NewIdempotencyStore(dbpool),
		Metrics:           metrics,
		Logger:            logger,
		ChunkSize:         cfg.ImportCommitChunkSize,
		LockTTL:           cfg.ImportLockTTL,
		ValidateWorkers:   cfg.ImportValidateWorkers,
		HeuristicScanRows: cfg.ImportHeuristicScanRows,
	})

	redisOpts, err := cache.QueueConnOpt(cfg.RedisAddr)
	if err != nil {
		logger.Error("queue connection", slog.Any("error", err))
		os.Exit(1)
	}
	jobClient := jobs.NewClient(redisOpts)
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	importHandler := imports.NewHandler(logger, importService, jobClient, cfg.ImportMaxUploadBytes)

	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:        logger,
		Config:        cfg,
		ImportHandler: importHandler,
		JobHandler:    jobHandler,
		Metrics:       metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
		IdleTimeout:  cfg.AppIdleTimeout,
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
