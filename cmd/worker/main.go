package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/clubforge/clubforge/internal/access"
	"github.com/clubforge/clubforge/internal/app"
	"github.com/clubforge/clubforge/internal/catalog"
	"github.com/clubforge/clubforge/internal/overrides"
	"github.com/clubforge/clubforge/internal/platform/db"
	"github.com/clubforge/clubforge/internal/roles"
	"github.com/clubforge/clubforge/internal/users"
	"github.com/clubforge/clubforge/jobs"
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

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}

	catalogRepo := catalog.NewRepository(pool)
	catalogService := catalog.NewService(catalogRepo)
	rolesRepo := roles.NewRepository(pool)
	usersRepo := users.NewRepository(pool)
	overridesRepo := overrides.NewRepository(pool)

	guard := access.NewGuard(cfg.CriticalPermissions)
	accessCache := access.NewCache(redisClient, cfg.AccessCacheTTL)
	accessService := access.NewService(logger, catalogService, usersRepo, rolesRepo, overridesRepo, guard, accessCache)

	integrityHandler := jobs.NewAccessIntegrityScanHandler(usersRepo, accessService, logger)
	warmHandler := jobs.NewAccessCacheWarmHandler(usersRepo, accessService, logger)

	integrityTask, err := jobs.NewAccessIntegrityScanTask(jobs.AccessScanPayload{})
	if err != nil {
		logger.Error("build integrity task", slog.Any("error", err))
		os.Exit(1)
	}
	warmTask, err := jobs.NewAccessCacheWarmTask(jobs.AccessScanPayload{})
	if err != nil {
		logger.Error("build cache warm task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskAccessIntegrityScan, Handler: integrityHandler},
			{Type: jobs.TaskAccessCacheWarm, Handler: warmHandler},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "15 2 * * *", Task: integrityTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "45 2 * * *", Task: warmTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
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
