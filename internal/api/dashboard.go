package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/rpattn/vizflow/internal/domain"
	"github.com/rpattn/vizflow/internal/middleware"
)

const recentFilesOnDashboard = 10

type dashboardResponse struct {
	Success     bool                 `json:"success"`
	Records     domain.RecordStats   `json:"records"`
	Errors      domain.ErrorStats    `json:"errors"`
	RecentFiles []domain.FileSummary `json:"recentFiles"`
}

// Dashboard handles GET /api/dashboard.
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	recordStats, err := h.records.Stats(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	errorStats, err := h.errorLogs.Stats(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	files, err := h.recentFiles(r.Context(), recentFilesOnDashboard)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, dashboardResponse{
		Success:     true,
		Records:     recordStats,
		Errors:      errorStats,
		RecentFiles: files,
	})
}

// Files handles GET /api/files.
func (h *Handler) Files(w http.ResponseWriter, r *http.Request) {
	limit := domain.DefaultPageSize
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, r, h.logger, fmt.Errorf("%w: limit must be a positive integer", domain.ErrInvalidQuery))
			return
		}
		limit = min(n, domain.MaxPageSize)
	}

	files, err := h.recentFiles(r.Context(), limit)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, itemResponse{Success: true, Data: files})
}

// recentFiles lists uploads and fills their error counts through the request
// loader, falling back to a direct query when none is attached.
func (h *Handler) recentFiles(ctx context.Context, limit int) ([]domain.FileSummary, error) {
	files, err := h.records.ListFiles(ctx, limit)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return files, nil
	}

	ids := make([]string, len(files))
	for i, f := range files {
		ids[i] = f.UploadID
	}

	var counts map[string]int
	if loader := middleware.ErrorCountLoaderFromContext(ctx); loader != nil {
		counts, err = loader.Counts(ctx, ids)
	} else {
		counts, err = h.errorLogs.CountByUploadIDs(ctx, ids)
	}
	if err != nil {
		return nil, fmt.Errorf("count errors per file: %w", err)
	}
	for i := range files {
		files[i].ErrorCount = counts[files[i].UploadID]
	}
	return files, nil
}
