package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rpattn/vizflow/internal/domain"
	"github.com/rpattn/vizflow/internal/logging"

	"github.com/sirupsen/logrus"
)

type listResponse struct {
	Success    bool              `json:"success"`
	Data       any               `json:"data"`
	Pagination domain.Pagination `json:"pagination"`
	Filters    any               `json:"filters"`
}

type itemResponse struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func errorBody(message string) map[string]any {
	return map[string]any{"success": false, "error": message}
}

// writeError maps sentinel errors to status codes. Messages of unexpected
// failures are logged and replaced with a generic one.
func writeError(w http.ResponseWriter, r *http.Request, logger *logrus.Logger, err error) {
	var status int
	switch {
	case errors.Is(err, domain.ErrInvalidQuery):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidTransition):
		status = http.StatusConflict
	default:
		logging.FromContext(r.Context(), logger).WithError(err).Error("request failed")
		writeJSON(w, http.StatusInternalServerError, errorBody("internal server error"))
		return
	}
	writeJSON(w, status, errorBody(err.Error()))
}
