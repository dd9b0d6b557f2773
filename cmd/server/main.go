package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rpattn/vizflow/internal/api"
	"github.com/rpattn/vizflow/internal/config"
	"github.com/rpattn/vizflow/internal/db"
	"github.com/rpattn/vizflow/internal/export"
	"github.com/rpattn/vizflow/internal/ingestion"
	"github.com/rpattn/vizflow/internal/logging"
	"github.com/rpattn/vizflow/internal/processing"
	"github.com/rpattn/vizflow/internal/queue"
	"github.com/rpattn/vizflow/internal/repository"
	"github.com/rpattn/vizflow/internal/storage"

	"github.com/sirupsen/logrus"
)

func main() {
	// Create context
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load(os.Getenv("VIZFLOW_CONFIG_PATH"))
	if err != nil {
		logging.Setup("info", "text").Fatalf("Failed to load config: %v", err)
	}
	logger := logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	// Setup database connection
	conn, err := db.NewConnection(ctx, cfg.Database)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer conn.Close()

	// Run migrations
	if err := db.RunMigrations(cfg.Database); err != nil {
		logger.Fatalf("Failed to run migrations: %v", err)
	}

	// Create repositories
	recordRepo := repository.NewRecordRepository(conn.Pool)
	errorLogRepo := repository.NewErrorLogRepository(conn)

	dispatcher := processing.NewDispatcher(processing.NewProcessors(cfg.Settings()), processing.WithLogger(logger))

	opts := []ingestion.Option{ingestion.WithLogger(logger)}
	if cfg.Storage.Enabled {
		archive, err := storage.New(cfg.Storage)
		if err != nil {
			logger.Fatalf("Failed to init storage: %v", err)
		}
		if err := archive.EnsureBucket(ctx); err != nil {
			logger.Fatalf("Failed to ensure bucket: %v", err)
		}
		opts = append(opts, ingestion.WithArchive(archive))
	}
	if cfg.Queue.Enabled {
		client := queue.NewClient(cfg.Queue)
		defer client.Close()
		opts = append(opts, ingestion.WithQueue(client))
	}
	ingestService := ingestion.NewService(dispatcher, recordRepo, errorLogRepo, opts...)

	router := api.NewRouter(api.RouterConfig{
		Handler:        api.NewHandler(recordRepo, errorLogRepo, logger),
		Uploads:        ingestion.NewHTTPHandler(ingestService, cfg.Upload.MaxSize, cfg.Upload.TempDir, logger),
		Exports:        export.NewHTTPHandler(export.NewService(recordRepo, errorLogRepo, export.WithMaxRows(cfg.Export.MaxRows)), logger),
		DB:             conn,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		Verbose:        cfg.Server.Development(),
		Logger:         logger,
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.WithFields(logrus.Fields{
			"addr":    server.Addr,
			"storage": cfg.Storage.Enabled,
			"queue":   cfg.Queue.Enabled,
		}).Info("Starting VizFlow server")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Fatalf("Server forced to shutdown: %v", err)
	}

	logger.Info("Server exited")
}
