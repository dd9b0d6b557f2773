// Package storage archives raw uploads in MinIO/S3 so queued jobs can replay them.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rpattn/vizflow/internal/config"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Archive wraps MinIO/S3 interactions for raw uploads.
type Archive struct {
	client *minio.Client
	bucket string
	region string
}

// New creates a MinIO client from the storage config.
func New(cfg config.StorageConfig) (*Archive, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("storage bucket is required")
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio: %w", err)
	}
	return &Archive{client: client, bucket: cfg.Bucket, region: cfg.Region}, nil
}

// EnsureBucket creates the upload bucket if it does not exist yet.
func (a *Archive) EnsureBucket(ctx context.Context) error {
	exists, err := a.client.BucketExists(ctx, a.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", a.bucket, err)
	}
	if exists {
		return nil
	}
	if err := a.client.MakeBucket(ctx, a.bucket, minio.MakeBucketOptions{Region: a.region}); err != nil {
		return fmt.Errorf("make bucket %s: %w", a.bucket, err)
	}
	return nil
}

// Put stores an upload under key.
func (a *Archive) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	opts := minio.PutObjectOptions{ContentType: contentType}
	if _, err := a.client.PutObject(ctx, a.bucket, key, body, size, opts); err != nil {
		return fmt.Errorf("put object %s: %w", key, err)
	}
	return nil
}

// Get opens an archived upload. The caller closes the reader.
func (a *Archive) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	obj, err := a.client.GetObject(ctx, a.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get object %s: %w", key, err)
	}
	// GetObject is lazy; Stat surfaces missing keys before the caller reads.
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		return nil, fmt.Errorf("stat object %s: %w", key, err)
	}
	return obj, nil
}
