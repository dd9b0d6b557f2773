// Package queue moves upload processing onto asynq workers.
package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rpattn/vizflow/internal/config"
	"github.com/rpattn/vizflow/internal/ingestion"

	"github.com/hibiken/asynq"
)

const (
	// ProcessUploadTask is scheduled for each upload submitted with async=true.
	ProcessUploadTask = "upload:process"

	defaultMaxRetry = 5
)

// Client enqueues upload jobs.
type Client struct {
	client   *asynq.Client
	maxRetry int
}

// RedisOpt builds the asynq connection options from config.
func RedisOpt(cfg config.QueueConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}
}

// NewClient connects an enqueuing client.
func NewClient(cfg config.QueueConfig) *Client {
	maxRetry := cfg.MaxRetry
	if maxRetry <= 0 {
		maxRetry = defaultMaxRetry
	}
	return &Client{client: asynq.NewClient(RedisOpt(cfg)), maxRetry: maxRetry}
}

// NewTask serializes a job into an asynq task.
func NewTask(job ingestion.Job) (*asynq.Task, error) {
	data, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return asynq.NewTask(ProcessUploadTask, data), nil
}

// Enqueue schedules a job for a worker.
func (c *Client) Enqueue(ctx context.Context, job ingestion.Job) error {
	task, err := NewTask(job)
	if err != nil {
		return err
	}
	if _, err := c.client.EnqueueContext(ctx, task, asynq.MaxRetry(c.maxRetry), asynq.TaskID(job.UploadID)); err != nil {
		return fmt.Errorf("enqueue upload task: %w", err)
	}
	return nil
}

func (c *Client) Close() error {
	return c.client.Close()
}
