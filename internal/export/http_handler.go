package export

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/rpattn/vizflow/internal/domain"
	"github.com/rpattn/vizflow/internal/logging"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
)

type Handler struct {
	service  *Service
	validate *validator.Validate
	logger   *logrus.Logger
}

func NewHTTPHandler(service *Service, logger *logrus.Logger) *Handler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Handler{service: service, validate: validator.New(), logger: logger}
}

type exportQuery struct {
	Format   string `validate:"omitempty,oneof=csv excel xlsx json"`
	Filename string `validate:"omitempty,max=200"`
	Pretty   bool
}

func (h *Handler) parseRequest(r *http.Request) (Request, error) {
	values := r.URL.Query()
	q := exportQuery{
		Format:   values.Get("format"),
		Filename: values.Get("filename"),
	}
	if raw := values.Get("pretty"); raw != "" {
		pretty, err := strconv.ParseBool(raw)
		if err != nil {
			return Request{}, fmt.Errorf("%w: pretty must be a boolean", domain.ErrInvalidQuery)
		}
		q.Pretty = pretty
	}
	if err := h.validate.Struct(q); err != nil {
		return Request{}, fmt.Errorf("%w: %v", domain.ErrInvalidQuery, err)
	}
	format, _ := ParseFormat(q.Format)
	return Request{Format: format, Filename: q.Filename, Pretty: q.Pretty}, nil
}

// Records handles GET /api/export/records.
func (h *Handler) Records(w http.ResponseWriter, r *http.Request) {
	req, err := h.parseRequest(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	filter, err := domain.ParseRecordFilter(r.URL.Query())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	file, err := h.service.ExportRecords(r.Context(), filter, req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeFile(w, file)
}

// Errors handles GET /api/export/errors.
func (h *Handler) Errors(w http.ResponseWriter, r *http.Request) {
	req, err := h.parseRequest(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	filter, err := domain.ParseErrorLogFilter(r.URL.Query())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	file, err := h.service.ExportErrors(r.Context(), filter, req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeFile(w, file)
}

// Dashboard handles GET /api/export/dashboard.
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	file, err := h.service.ExportDashboard(r.Context(), r.URL.Query().Get("filename"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeFile(w, file)
}

func writeFile(w http.ResponseWriter, file File) {
	w.Header().Set("Content-Type", file.MimeType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(file.Bytes)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(file.Bytes)
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	message := "export failed"
	switch {
	case errors.Is(err, ErrEmptyExport):
		status, message = http.StatusNotFound, err.Error()
	case errors.Is(err, domain.ErrInvalidQuery):
		status, message = http.StatusBadRequest, err.Error()
	default:
		logging.FromContext(r.Context(), h.logger).WithError(err).Error("export failed")
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "error": message})
}
