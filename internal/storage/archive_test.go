package storage

import (
	"testing"

	"github.com/rpattn/vizflow/internal/config"
	"github.com/rpattn/vizflow/internal/ingestion"
)

var _ ingestion.Archive = (*Archive)(nil)

func TestNewRequiresBucket(t *testing.T) {
	if _, err := New(config.StorageConfig{Endpoint: "localhost:9000"}); err == nil {
		t.Fatalf("expected error without bucket")
	}
}

func TestNewRejectsInvalidEndpoint(t *testing.T) {
	_, err := New(config.StorageConfig{Endpoint: "http://localhost:9000/path", Bucket: "uploads"})
	if err == nil {
		t.Fatalf("expected error for endpoint with scheme and path")
	}
}

func TestNewBuildsClient(t *testing.T) {
	archive, err := New(config.StorageConfig{
		Endpoint:  "localhost:9000",
		AccessKey: "minio",
		SecretKey: "minio123",
		Bucket:    "uploads",
		Region:    "us-east-1",
	})
	if err != nil {
		t.Fatalf("new archive: %v", err)
	}
	if archive.bucket != "uploads" || archive.region != "us-east-1" {
		t.Fatalf("unexpected archive %+v", archive)
	}
}
