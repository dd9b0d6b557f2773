package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rpattn/vizflow/internal/logging"
	"github.com/rpattn/vizflow/internal/repository"
)

func TestLoggingMiddlewareRecordsStatus(t *testing.T) {
	var out bytes.Buffer
	logger := logging.New("info", "json", &out)

	handler := LoggingMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/records", nil))

	var line map[string]any
	if err := json.Unmarshal(out.Bytes(), &line); err != nil {
		t.Fatalf("decode log line: %v (%s)", err, out.String())
	}
	if line["status"] != float64(http.StatusTeapot) || line["path"] != "/api/records" {
		t.Fatalf("unexpected log line %v", line)
	}
	if line["level"] != "warning" {
		t.Fatalf("expected warning level for 4xx, got %v", line["level"])
	}
}

func TestRecovererHidesPanicValue(t *testing.T) {
	panicking := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("secret detail")
	})

	tests := []struct {
		verbose bool
		leak    bool
	}{
		{verbose: false, leak: false},
		{verbose: true, leak: true},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		Recoverer(logging.Discard(), tt.verbose)(panicking).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("expected 500, got %d", rec.Code)
		}
		if got := strings.Contains(rec.Body.String(), "secret detail"); got != tt.leak {
			t.Fatalf("verbose=%v: body %s", tt.verbose, rec.Body.String())
		}
	}
}

type nopErrorLogRepo struct {
	repository.ErrorLogRepository
}

func (nopErrorLogRepo) CountByUploadIDs(ctx context.Context, ids []string) (map[string]int, error) {
	return map[string]int{}, nil
}

func TestDataLoaderMiddlewareAttachesLoader(t *testing.T) {
	var found bool
	handler := DataLoaderMiddleware(nopErrorLogRepo{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		found = ErrorCountLoaderFromContext(r.Context()) != nil
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if !found {
		t.Fatalf("expected loader in request context")
	}
	if ErrorCountLoaderFromContext(context.Background()) != nil {
		t.Fatalf("expected nil loader without middleware")
	}
}
