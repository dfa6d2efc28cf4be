package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"englearn/internal/cache"
	"englearn/internal/config"
	"englearn/internal/database"
	"englearn/internal/handlers"
	"englearn/internal/jobs"
	"englearn/internal/log"
	"englearn/internal/queue"
	"englearn/internal/repository"
	"englearn/internal/security"
	"englearn/internal/server"
	"englearn/internal/service"
	"englearn/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := log.New(cfg.Environment, cfg.Logging.Level)

	ctx := context.Background()

	dbPool, err := database.NewPostgresPool(ctx, cfg.Postgres)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect postgres")
	}
	store := repository.NewPostgresStore(dbPool)

	// Without redis the API still serves; rate limiting and mail are off.
	redisClient, err := cache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		logger.Warn().Err(err).Msg("redis unavailable, running without rate limiting and mail queue")
	}

	hasher := security.NewHasher(security.Argon2Params{
		Time:    cfg.Security.HashTime,
		Memory:  cfg.Security.HashMemory,
		Threads: cfg.Security.HashThreads,
	})
	codec, err := security.NewTokenCodec(cfg.Security.JWTSecret, cfg.Security.JWTAlgorithm, cfg.Security.AccessTokenTTL, cfg.Security.RefreshTokenTTL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build token codec")
	}

	var notifier service.Notifier
	var producer *queue.Producer
	if redisClient != nil {
		producer = queue.NewProducer(redisClient, cfg.Queue.Stream, logger)
		notifier = producer
	}

	authService := service.NewAuthService(store, hasher, codec, notifier, cfg.Security.ResetTokenTTL, logger)

	deps := handlers.Deps{
		Log:      logger,
		Config:   cfg,
		Auth:     authService,
		Users:    store,
		Tokens:   codec,
		Cache:    redisClient,
		Database: dbPool,
	}

	if cfg.Storage.Endpoint != "" {
		objectStore, err := storage.NewObjectStore(cfg.Storage)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to init object store")
		}
		if err := objectStore.EnsureBucket(ctx); err != nil {
			logger.Warn().Err(err).Msg("ensure avatar bucket failed")
		}
		resourceSecret := cfg.Security.ResourceSecret
		if resourceSecret == "" {
			resourceSecret = cfg.Security.JWTSecret
		}
		deps.Avatars = service.NewAvatarService(authService, objectStore, resourceSecret, cfg.Storage.MaxAvatarSize, logger)
		deps.Storage = objectStore
	}

	httpServer := server.NewHTTPServer(cfg, logger, handlers.NewHandlerSet(deps))

	var scheduler *jobs.Scheduler
	if cfg.Jobs.Enabled && producer != nil {
		scheduler = jobs.NewScheduler(producer, cfg.Jobs.CleanupResetSpec, logger)
		if err := scheduler.Start(); err != nil {
			logger.Error().Err(err).Msg("scheduler start failed")
		}
	}

	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	waitForShutdown(logger, httpServer, scheduler, dbPool, redisClient)
}

func waitForShutdown(logger zerolog.Logger, srv *server.HTTPServer, scheduler *jobs.Scheduler, db *pgxpool.Pool, redisClient *redis.Client) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	if scheduler != nil {
		scheduler.Stop(shutdownCtx)
	}

	db.Close()
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("redis close error")
		}
	}

	logger.Info().Msg("server exited cleanly")
}
