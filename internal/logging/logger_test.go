package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]logrus.Level{
		"debug":   logrus.DebugLevel,
		" WARN ":  logrus.WarnLevel,
		"warning": logrus.WarnLevel,
		"error":   logrus.ErrorLevel,
		"trace":   logrus.TraceLevel,
		"panic":   logrus.PanicLevel,
		"":        logrus.InfoLevel,
		"loud":    logrus.InfoLevel,
	}
	for in, want := range cases {
		if got := parseLevel(in); got != want {
			t.Fatalf("parseLevel(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestNewJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := New("warn", "json", &buf)

	logger.Info("dropped")
	logger.WithField("upload_id", "u-1").Warn("kept")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("expected a single JSON line, got %q: %v", buf.String(), err)
	}
	if line["msg"] != "kept" || line["upload_id"] != "u-1" {
		t.Fatalf("unexpected entry %v", line)
	}
}

func TestFromContextAddsRequestID(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	ctx := context.WithValue(req.Context(), middleware.RequestIDKey, "req-42")

	entry := FromContext(ctx, Discard())
	if entry.Data["request_id"] != "req-42" {
		t.Fatalf("expected request id field, got %v", entry.Data)
	}
	if _, ok := FromContext(context.Background(), nil).Data["request_id"]; ok {
		t.Fatalf("unexpected request id without middleware")
	}
}
