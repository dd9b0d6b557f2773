package repository

import (
	"context"

	"github.com/rpattn/vizflow/internal/domain"

	"github.com/google/uuid"
)

// RecordRepository persists extracted records.
type RecordRepository interface {
	InsertMany(ctx context.Context, records []domain.Record) (InsertResult, error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.Record, error)
	List(ctx context.Context, filter domain.RecordFilter, opts domain.ListOptions) ([]domain.Record, int, error)
	// All returns up to limit records matching the filter, newest first.
	All(ctx context.Context, filter domain.RecordFilter, limit int) ([]domain.Record, error)
	Stats(ctx context.Context) (domain.RecordStats, error)
	ListFiles(ctx context.Context, limit int) ([]domain.FileSummary, error)
}

// ErrorLogRepository persists extraction failures and their review state.
type ErrorLogRepository interface {
	InsertMany(ctx context.Context, logs []domain.ErrorLog) (InsertResult, error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.ErrorLog, error)
	List(ctx context.Context, filter domain.ErrorLogFilter, opts domain.ListOptions) ([]domain.ErrorLog, int, error)
	All(ctx context.Context, filter domain.ErrorLogFilter, limit int) ([]domain.ErrorLog, error)
	// UpdateStatus returns domain.ErrInvalidTransition when the log is
	// already in a terminal state.
	UpdateStatus(ctx context.Context, id uuid.UUID, update domain.StatusUpdate) (domain.ErrorLog, error)
	Stats(ctx context.Context) (domain.ErrorStats, error)
	CountByUploadIDs(ctx context.Context, uploadIDs []string) (map[string]int, error)
}

// InsertResult reports a per-item insert. A failed item does not stop the
// remaining inserts.
type InsertResult struct {
	Inserted int
	Failures []InsertFailure
}

// InsertFailure identifies an item by its index in the input slice.
type InsertFailure struct {
	Index int
	Err   error
}
