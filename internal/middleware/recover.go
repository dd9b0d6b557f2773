package middleware

import (
	"encoding/json"
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/rpattn/vizflow/internal/logging"

	"github.com/sirupsen/logrus"
)

// Recoverer turns a handler panic into a JSON 500. The panic value is only
// exposed to the client when verbose is set.
func Recoverer(logger *logrus.Logger, verbose bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				logging.FromContext(r.Context(), logger).
					WithField("panic", rec).
					WithField("stack", string(debug.Stack())).
					Error("handler panicked")

				message := "internal server error"
				if verbose {
					message = fmt.Sprint(rec)
				}
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "error": message})
			}()
			next.ServeHTTP(w, r)
		})
	}
}
