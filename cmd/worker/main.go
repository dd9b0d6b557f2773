package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rpattn/vizflow/internal/config"
	"github.com/rpattn/vizflow/internal/db"
	"github.com/rpattn/vizflow/internal/ingestion"
	"github.com/rpattn/vizflow/internal/logging"
	"github.com/rpattn/vizflow/internal/processing"
	"github.com/rpattn/vizflow/internal/queue"
	"github.com/rpattn/vizflow/internal/repository"
	"github.com/rpattn/vizflow/internal/storage"

	"github.com/hibiken/asynq"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(os.Getenv("VIZFLOW_CONFIG_PATH"))
	if err != nil {
		logging.Setup("info", "text").Fatalf("load config: %v", err)
	}
	logger := logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	if !cfg.Queue.Enabled {
		logger.Fatal("queue.enabled is false; nothing to consume")
	}

	conn, err := db.NewConnection(ctx, cfg.Database)
	if err != nil {
		logger.Fatalf("connect database: %v", err)
	}
	defer conn.Close()
	if err := db.RunMigrations(cfg.Database); err != nil {
		logger.Fatalf("run migrations: %v", err)
	}

	archive, err := storage.New(cfg.Storage)
	if err != nil {
		logger.Fatalf("init storage: %v", err)
	}
	if err := archive.EnsureBucket(ctx); err != nil {
		logger.Fatalf("ensure bucket: %v", err)
	}

	dispatcher := processing.NewDispatcher(processing.NewProcessors(cfg.Settings()), processing.WithLogger(logger))
	service := ingestion.NewService(
		dispatcher,
		repository.NewRecordRepository(conn.Pool),
		repository.NewErrorLogRepository(conn),
		ingestion.WithArchive(archive),
		ingestion.WithLogger(logger),
	)

	server := asynq.NewServer(queue.RedisOpt(cfg.Queue), asynq.Config{
		Concurrency: cfg.Queue.Concurrency,
		Logger:      logger,
	})
	mux := queue.NewHandler(service, logger).Mux()

	go func() {
		<-ctx.Done()
		server.Shutdown()
	}()

	logger.WithField("redis", cfg.Queue.RedisAddr).Info("worker started")
	if err := server.Run(mux); err != nil {
		logger.WithError(err).Error("worker stopped")
		os.Exit(1)
	}
}
