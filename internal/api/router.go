// Package api wires the HTTP surface: routing, middleware and the query handlers.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/rpattn/vizflow/internal/export"
	"github.com/rpattn/vizflow/internal/ingestion"
	"github.com/rpattn/vizflow/internal/middleware"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"
)

// Pinger reports database health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RouterConfig collects everything the router mounts.
type RouterConfig struct {
	Handler        *Handler
	Uploads        *ingestion.Handler
	Exports        *export.Handler
	DB             Pinger
	AllowedOrigins []string
	// Verbose exposes panic messages in 500 responses.
	Verbose bool
	Logger  *logrus.Logger
}

// NewRouter builds the chi router for the service.
func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.LoggingMiddleware(logger))
	r.Use(middleware.Recoverer(logger, cfg.Verbose))

	r.Get("/healthz", healthHandler(cfg.DB))

	r.Route("/api", func(r chi.Router) {
		r.Post("/upload", cfg.Uploads.Upload)
		r.Post("/upload/batch", cfg.Uploads.UploadBatch)

		r.Get("/records", cfg.Handler.ListRecords)
		r.Get("/records/{id}", cfg.Handler.GetRecord)

		r.Get("/errors", cfg.Handler.ListErrors)
		r.Get("/errors/{id}", cfg.Handler.GetError)
		r.Patch("/errors/{id}/status", cfg.Handler.UpdateErrorStatus)

		r.Get("/export/records", cfg.Exports.Records)
		r.Get("/export/errors", cfg.Exports.Errors)
		r.Get("/export/dashboard", cfg.Exports.Dashboard)

		r.Group(func(r chi.Router) {
			r.Use(middleware.DataLoaderMiddleware(cfg.Handler.errorLogs))
			r.Get("/dashboard", cfg.Handler.Dashboard)
			r.Get("/files", cfg.Handler.Files)
		})
	})

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowCredentials: true,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"Content-Disposition"},
	})
	return corsHandler.Handler(r)
}

func healthHandler(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := map[string]any{"status": "ok", "time": time.Now().UTC().Format(time.RFC3339)}
		if db != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := db.Ping(ctx); err != nil {
				status["status"] = "degraded"
				status["database"] = err.Error()
				writeJSON(w, http.StatusServiceUnavailable, status)
				return
			}
			status["database"] = "ok"
		}
		writeJSON(w, http.StatusOK, status)
	}
}
