package middleware

import (
	"context"
	"net/http"

	"github.com/rpattn/vizflow/internal/fileloader"
	"github.com/rpattn/vizflow/internal/repository"
)

type ctxKey string

const errorCountLoaderKey ctxKey = "errorCountLoader"

// DataLoaderMiddleware attaches a per-request error count loader to the context
func DataLoaderMiddleware(repo repository.ErrorLogRepository) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			loader := fileloader.NewErrorCountLoader(repo)
			ctx := context.WithValue(r.Context(), errorCountLoaderKey, loader)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ErrorCountLoaderFromContext retrieves the loader from context
func ErrorCountLoaderFromContext(ctx context.Context) *fileloader.ErrorCountLoader {
	if l, ok := ctx.Value(errorCountLoaderKey).(*fileloader.ErrorCountLoader); ok {
		return l
	}
	return nil
}
