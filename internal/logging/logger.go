// Package logging configures logrus and derives request scoped entries.
package logging

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
)

// Setup configures the standard logrus logger and returns it.
//
// Level accepts any logrus level name; unknown values fall back to "info".
// Format values: "text", "json" (default "text").
func Setup(level, format string) *logrus.Logger {
	logger := logrus.StandardLogger()
	configure(logger, level, format, os.Stdout)
	return logger
}

// New returns an independent logger writing to out.
func New(level, format string, out io.Writer) *logrus.Logger {
	logger := logrus.New()
	configure(logger, level, format, out)
	return logger
}

func configure(logger *logrus.Logger, level, format string, out io.Writer) {
	logger.SetOutput(out)
	logger.SetLevel(parseLevel(level))
	if strings.EqualFold(format, "json") {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
}

func parseLevel(level string) logrus.Level {
	lvl, err := logrus.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}

// FromContext returns an entry carrying the chi request id when one is set.
func FromContext(ctx context.Context, logger *logrus.Logger) *logrus.Entry {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	entry := logrus.NewEntry(logger)
	if ctx == nil {
		return entry
	}
	if reqID := middleware.GetReqID(ctx); reqID != "" {
		entry = entry.WithField("request_id", reqID)
	}
	return entry
}

// Discard returns a logger that drops everything. Used by tests.
func Discard() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}
