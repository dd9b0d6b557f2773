package fileloader

import (
	"context"
	"time"

	"github.com/rpattn/vizflow/internal/repository"

	"github.com/graph-gophers/dataloader"
)

// ErrorCountLoader batches error-log counts keyed by upload id.
type ErrorCountLoader struct {
	Loader *dataloader.Loader
}

// NewErrorCountLoader builds a loader with a 5ms batch window. Extra options
// are applied after the defaults.
func NewErrorCountLoader(repo repository.ErrorLogRepository, opts ...dataloader.Option) *ErrorCountLoader {
	batchFn := func(ctx context.Context, keys dataloader.Keys) []*dataloader.Result {
		counts, err := repo.CountByUploadIDs(ctx, keys.Keys())
		results := make([]*dataloader.Result, len(keys))
		if err != nil {
			for i := range results {
				results[i] = &dataloader.Result{Error: err}
			}
			return results
		}

		// Build results in the same order as keys
		for i, key := range keys {
			results[i] = &dataloader.Result{Data: counts[key.String()]}
		}
		return results
	}

	opts = append([]dataloader.Option{dataloader.WithWait(5 * time.Millisecond)}, opts...)
	loader := dataloader.NewBatchedLoader(batchFn, opts...)
	return &ErrorCountLoader{Loader: loader}
}

// Load queues the count for one upload. Loads queued inside the wait window
// share one query, and repeated ids are served from the loader cache.
func (l *ErrorCountLoader) Load(ctx context.Context, uploadID string) func() (int, error) {
	thunk := l.Loader.Load(ctx, dataloader.StringKey(uploadID))
	return func() (int, error) {
		v, err := thunk()
		if err != nil {
			return 0, err
		}
		n, _ := v.(int)
		return n, nil
	}
}

// Counts queues one load per upload id before resolving any of them.
func (l *ErrorCountLoader) Counts(ctx context.Context, uploadIDs []string) (map[string]int, error) {
	thunks := make([]func() (int, error), len(uploadIDs))
	for i, id := range uploadIDs {
		thunks[i] = l.Load(ctx, id)
	}

	counts := make(map[string]int, len(uploadIDs))
	for i, id := range uploadIDs {
		n, err := thunks[i]()
		if err != nil {
			return nil, err
		}
		counts[id] = n
	}
	return counts, nil
}
