package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/clubforge/clubforge/internal/access"
	"github.com/clubforge/clubforge/internal/app"
	"github.com/clubforge/clubforge/internal/auth"
	"github.com/clubforge/clubforge/internal/authz"
	"github.com/clubforge/clubforge/internal/catalog"
	"github.com/clubforge/clubforge/internal/members"
	"github.com/clubforge/clubforge/internal/observability"
	"github.com/clubforge/clubforge/internal/overrides"
	"github.com/clubforge/clubforge/internal/platform/db"
	"github.com/clubforge/clubforge/internal/roles"
	"github.com/clubforge/clubforge/internal/shared"
	"github.com/clubforge/clubforge/internal/users"
	"github.com/clubforge/clubforge/jobs"
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

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, "clubforge_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())

	catalogRepo := catalog.NewRepository(dbpool)
	catalogService := catalog.NewService(catalogRepo)
	if err := catalogService.EnsureBuiltins(ctx); err != nil {
		logger.Error("seed permission catalog", slog.Any("error", err))
		os.Exit(1)
	}
	if missing, err := catalogService.MissingNames(ctx, cfg.CriticalPermissions); err != nil {
		logger.Error("validate critical permissions", slog.Any("error", err))
		os.Exit(1)
	} else if len(missing) > 0 {
		logger.Warn("critical permissions missing from catalog", slog.Any("names", missing))
	}

	rolesRepo := roles.NewRepository(dbpool)
	rolesService := roles.NewService(rolesRepo)

	usersRepo := users.NewRepository(dbpool)
	usersService := users.NewService(usersRepo)

	overridesRepo := overrides.NewRepository(dbpool)

	guard := access.NewGuard(cfg.CriticalPermissions)
	accessCache := access.NewCache(redisClient, cfg.AccessCacheTTL)
	accessService := access.NewService(logger, catalogService, usersRepo, rolesRepo, overridesRepo, guard, accessCache)

	authzMiddleware := authz.Middleware{Source: accessService, Logger: logger}

	authRepo := auth.NewRepository(dbpool)
	authService := auth.NewService(authRepo)
	authHandler := auth.NewHandler(logger, authService, sessionManager)

	usersHandler := users.NewHandler(logger, usersService, authzMiddleware)
	accessHandler := access.NewHandler(logger, accessService, authzMiddleware)
	rolesHandler := roles.NewHandler(logger, rolesService, authzMiddleware)
	catalogHandler := catalog.NewHandler(logger, catalogService, authzMiddleware)

	membersRepo := members.NewRepository(dbpool)
	membersService := members.NewService(membersRepo)
	membersHandler := members.NewHandler(logger, membersService, authzMiddleware)

	metrics := observability.NewMetrics()

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		SessionManager: sessionManager,
		AuthHandler:    authHandler,
		UsersHandler:   usersHandler,
		AccessHandler:  accessHandler,
		RolesHandler:   rolesHandler,
		CatalogHandler: catalogHandler,
		MembersHandler: membersHandler,
		JobHandler:     jobHandler,
		Pool:           dbpool,
		Metrics:        metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("http server listening", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.AppRequestTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", slog.Any("error", err))
	}
}
