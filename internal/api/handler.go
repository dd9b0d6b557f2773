package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/rpattn/vizflow/internal/domain"
	"github.com/rpattn/vizflow/internal/repository"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Handler serves the query, review and dashboard endpoints.
type Handler struct {
	records   repository.RecordRepository
	errorLogs repository.ErrorLogRepository
	validate  *validator.Validate
	logger    *logrus.Logger
}

func NewHandler(records repository.RecordRepository, errorLogs repository.ErrorLogRepository, logger *logrus.Logger) *Handler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Handler{
		records:   records,
		errorLogs: errorLogs,
		validate:  validator.New(),
		logger:    logger,
	}
}

// ListRecords handles GET /api/records.
func (h *Handler) ListRecords(w http.ResponseWriter, r *http.Request) {
	filter, err := domain.ParseRecordFilter(r.URL.Query())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	opts, err := domain.ParseListOptions(r.URL.Query())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	records, total, err := h.records.List(r.Context(), filter, opts)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse{
		Success:    true,
		Data:       records,
		Pagination: domain.NewPagination(opts, total),
		Filters:    filter,
	})
}

// GetRecord handles GET /api/records/{id}.
func (h *Handler) GetRecord(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	rec, err := h.records.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, itemResponse{Success: true, Data: rec})
}

// ListErrors handles GET /api/errors.
func (h *Handler) ListErrors(w http.ResponseWriter, r *http.Request) {
	filter, err := domain.ParseErrorLogFilter(r.URL.Query())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	opts, err := domain.ParseListOptions(r.URL.Query())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	logs, total, err := h.errorLogs.List(r.Context(), filter, opts)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse{
		Success:    true,
		Data:       logs,
		Pagination: domain.NewPagination(opts, total),
		Filters:    filter,
	})
}

// GetError handles GET /api/errors/{id}.
func (h *Handler) GetError(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	log, err := h.errorLogs.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, itemResponse{Success: true, Data: log})
}

type statusUpdateInput struct {
	Status     string `json:"status" validate:"required,oneof=UNRESOLVED RESOLVED IGNORED"`
	ResolvedBy string `json:"resolvedBy" validate:"max=100"`
	Notes      string `json:"notes" validate:"max=2000"`
}

// UpdateErrorStatus handles PATCH /api/errors/{id}/status.
func (h *Handler) UpdateErrorStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	var input statusUpdateInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, r, h.logger, fmt.Errorf("%w: invalid JSON body", domain.ErrInvalidQuery))
		return
	}
	input.Status = strings.ToUpper(strings.TrimSpace(input.Status))
	input.ResolvedBy = strings.TrimSpace(input.ResolvedBy)
	if err := h.validate.Struct(input); err != nil {
		writeError(w, r, h.logger, fmt.Errorf("%w: %v", domain.ErrInvalidQuery, err))
		return
	}

	updated, err := h.errorLogs.UpdateStatus(r.Context(), id, domain.StatusUpdate{
		Status:     domain.ResolutionStatus(input.Status),
		ResolvedBy: input.ResolvedBy,
		Notes:      input.Notes,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, itemResponse{Success: true, Data: updated})
}

func pathID(r *http.Request) (uuid.UUID, error) {
	raw := chi.URLParam(r, "id")
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: invalid id %q", domain.ErrInvalidQuery, raw)
	}
	return id, nil
}
