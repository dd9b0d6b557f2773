package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rpattn/vizflow/internal/ingestion"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
)

// JobProcessor is the part of the ingestion service a worker needs.
type JobProcessor interface {
	ProcessJob(ctx context.Context, job ingestion.Job) (ingestion.Summary, error)
}

// Handler is plugged into the asynq worker loop.
type Handler struct {
	processor JobProcessor
	logger    *logrus.Logger
}

func NewHandler(processor JobProcessor, logger *logrus.Logger) *Handler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Handler{processor: processor, logger: logger}
}

// Mux registers the upload job handler.
func (h *Handler) Mux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(ProcessUploadTask, h.ProcessTask)
	return mux
}

// ProcessTask runs one queued upload. A malformed payload is never retried.
func (h *Handler) ProcessTask(ctx context.Context, task *asynq.Task) error {
	var job ingestion.Job
	if err := json.Unmarshal(task.Payload(), &job); err != nil {
		return fmt.Errorf("decode payload: %v: %w", err, asynq.SkipRetry)
	}
	entry := h.logger.WithFields(logrus.Fields{"upload_id": job.UploadID, "file": job.FileName})

	summary, err := h.processor.ProcessJob(ctx, job)
	if err != nil {
		entry.WithError(err).Error("queued upload failed")
		return err
	}
	entry.WithFields(logrus.Fields{
		"processor":  summary.Processor,
		"successful": summary.SuccessfulRecords,
		"failed":     summary.FailedRecords,
		"elapsed_ms": summary.ProcessingTime,
	}).Info("queued upload processed")
	return nil
}
