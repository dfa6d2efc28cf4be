package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"englearn/internal/cache"
	"englearn/internal/config"
	"englearn/internal/database"
	"englearn/internal/log"
	"englearn/internal/mail"
	"englearn/internal/queue"
	"englearn/internal/repository"
	"englearn/internal/tasks"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := log.New(cfg.Environment, cfg.Logging.Level).With().Str("component", "worker").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := cache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connection failed")
	}
	defer client.Close()

	// The API process owns migrations.
	pgCfg := cfg.Postgres
	pgCfg.Migrate = false
	dbPool, err := database.NewPostgresPool(ctx, pgCfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect postgres")
	}
	defer dbPool.Close()

	processor := tasks.NewProcessor(
		mail.NewLogMailer(logger),
		mail.NewComposer(cfg.Mail.From, cfg.Mail.FrontendURL),
		repository.NewPostgresStore(dbPool),
		logger,
	)
	consumer := queue.NewConsumer(
		client,
		cfg.Queue.Stream,
		cfg.Queue.Group,
		cfg.Queue.Consumer,
		cfg.Queue.ClaimInterval,
		logger,
		processor,
	)
	if err := consumer.EnsureGroup(ctx); err != nil {
		logger.Fatal().Err(err).Msg("create consumer group failed")
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("consumer stopped unexpectedly")
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		logger.Warn().Msg("consumer did not stop in time")
	}
}
