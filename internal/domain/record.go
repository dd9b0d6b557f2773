package domain

import (
	"errors"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rpattn/vizflow/internal/record"
)

// ErrNotFound is returned when a requested document does not exist.
var ErrNotFound = errors.New("not found")

// RecordMetadata is stored alongside every persisted payload.
type RecordMetadata struct {
	UploadID         string      `json:"uploadId"`
	OriginalName     string      `json:"originalName"`
	MimeType         string      `json:"mimeType"`
	Size             int64       `json:"size"`
	SourceFormat     Format      `json:"sourceFormat"`
	ProcessedBy      string      `json:"processedBy"`
	SpecifiedType    string      `json:"specifiedType,omitempty"`
	DetectedType     Format      `json:"detectedType"`
	Options          *record.Map `json:"options,omitempty"`
	FieldNames       []string    `json:"fieldNames"`
	RecordCount      int         `json:"recordCount"`
	QualityScore     float64     `json:"qualityScore"`
	UploadedBy       string      `json:"uploadedBy,omitempty"`
	ProcessingTimeMs int64       `json:"processingTimeMs"`
	ProcessedAt      time.Time   `json:"processedAt"`

	// Processing holds the processor-enriched envelope metadata
	// (page count, OCR confidence, sheet names).
	Processing *record.Map `json:"processing,omitempty"`
}

// Record is one successfully extracted item persisted as a document.
type Record struct {
	ID        uuid.UUID      `json:"id"`
	Payload   *record.Map    `json:"data"`
	Metadata  RecordMetadata `json:"metadata"`
	CreatedAt time.Time      `json:"createdAt"`
}

// QualityScore returns the percentage of non-empty fields, ignoring keys that
// start with an underscore. The result is rounded to two decimals.
func QualityScore(payload *record.Map) float64 {
	fields := 0
	filled := 0
	payload.Range(func(key string, v record.Value) bool {
		if strings.HasPrefix(key, "_") {
			return true
		}
		fields++
		if !v.IsNull() && strings.TrimSpace(v.Text()) != "" {
			filled++
		}
		return true
	})
	if fields == 0 {
		return 0
	}
	return math.Round(float64(filled)/float64(fields)*10000) / 100
}
