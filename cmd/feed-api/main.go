package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/maltedev/feed-image-extractor/internal/api"
	"github.com/maltedev/feed-image-extractor/internal/app"
	"github.com/maltedev/feed-image-extractor/internal/archive"
	"github.com/maltedev/feed-image-extractor/internal/config"
	"github.com/maltedev/feed-image-extractor/internal/database"
	"github.com/maltedev/feed-image-extractor/internal/events"
	"github.com/maltedev/feed-image-extractor/internal/jobs"
	"github.com/maltedev/feed-image-extractor/pkg/logger"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level, cfg.Logging.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := database.New(ctx, database.Config{
		DSN:      cfg.Database.DSN(),
		MaxConns: cfg.Database.MaxConns,
	})
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		log.Error("failed to migrate database", "error", err)
		os.Exit(1)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Error("failed to connect to Redis", "error", err)
		os.Exit(1)
	}

	outbox := database.NewOutboxRepository(db)
	relay := database.NewRelay(redisClient, outbox, log, database.RelayConfig{
		PollInterval: cfg.Jobs.RelayPollInterval,
		BatchSize:    cfg.Jobs.RelayBatchSize,
	})
	go func() {
		if err := relay.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("relay stopped with error", "error", err)
		}
	}()

	pipeline := app.NewPipeline(cfg, log)
	defer pipeline.Close()

	publisher := events.NewPublisher(outbox, cfg.Redis.Stream, log)
	jobManager := jobs.NewManager(database.NewJobRepository(db), db, pipeline.Feeds, publisher, jobs.Config{
		PollInterval:      cfg.Jobs.PollInterval,
		ProgressSaveEvery: cfg.Jobs.ProgressSaveEvery,
	}, log)

	for i := 1; i <= cfg.Jobs.Workers; i++ {
		go jobManager.StartWorker(ctx, i)
	}

	handlers := api.NewHandlers(
		pipeline.Feeds,
		jobManager,
		app.NewDownloader(cfg, log),
		archive.NewZipArchiver(),
		relay,
		log,
	)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      api.NewRouter(handlers, cfg.Server.AllowedOrigins),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan

		log.Info("shutting down server...")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("server shutdown failed", "error", err)
		}
	}()

	log.Info("server starting", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("server failed", "error", err)
		os.Exit(1)
	}

	log.Info("server stopped")
}
