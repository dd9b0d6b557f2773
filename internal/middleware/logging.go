package middleware

import (
	"net/http"
	"time"

	"github.com/rpattn/vizflow/internal/logging"

	"github.com/sirupsen/logrus"
)

// responseWriter captures HTTP status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.written {
		rw.statusCode = code
		rw.written = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	rw.written = true
	return rw.ResponseWriter.Write(b)
}

// LoggingMiddleware logs method, path, status and duration of each request.
func LoggingMiddleware(logger *logrus.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(rw, r)

			entry := logging.FromContext(r.Context(), logger).WithFields(logrus.Fields{
				"method":      r.Method,
				"path":        r.URL.Path,
				"status":      rw.statusCode,
				"duration_ms": float64(time.Since(start).Microseconds()) / 1000,
				"remote":      r.RemoteAddr,
			})
			switch {
			case rw.statusCode >= http.StatusInternalServerError:
				entry.Error("[HTTP] request failed")
			case rw.statusCode >= http.StatusBadRequest:
				entry.Warn("[HTTP] request rejected")
			default:
				entry.Info("[HTTP] request served")
			}
		})
	}
}
