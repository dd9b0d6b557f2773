package domain

import (
	"time"

	"github.com/rpattn/vizflow/internal/record"
)

// ErrorTypeProcessing tags the single error entry of a failed processing run.
const ErrorTypeProcessing = "processing_error"

// ProcessingMetadata is assembled by the dispatcher before a processor runs.
type ProcessingMetadata struct {
	UploadID      string      `json:"uploadId,omitempty"`
	OriginalName  string      `json:"originalName"`
	MimeType      string      `json:"mimeType"`
	Size          int64       `json:"size"`
	UploadedAt    time.Time   `json:"uploadedAt"`
	Processor     string      `json:"processor"`
	SourceFormat  Format      `json:"sourceFormat"`
	SpecifiedType string      `json:"specifiedType,omitempty"`
	DetectedType  Format      `json:"detectedType"`
	Options       *record.Map `json:"options,omitempty"`
}

// ToMap renders the metadata as an ordered record map.
func (m ProcessingMetadata) ToMap() *record.Map {
	out := record.NewMap()
	if m.UploadID != "" {
		out.Set("uploadId", record.String(m.UploadID))
	}
	out.Set("originalName", record.String(m.OriginalName))
	out.Set("mimeType", record.String(m.MimeType))
	out.Set("size", record.Number(float64(m.Size)))
	out.Set("uploadedAt", record.Time(m.UploadedAt))
	out.Set("processor", record.String(m.Processor))
	out.Set("sourceFormat", record.String(string(m.SourceFormat)))
	if m.SpecifiedType != "" {
		out.Set("specifiedType", record.String(m.SpecifiedType))
	}
	out.Set("detectedType", record.String(string(m.DetectedType)))
	if m.Options.Len() > 0 {
		out.Set("options", record.MapValue(m.Options))
	}
	return out
}

// ErrorEntry is a per-item extraction failure reported by a processor.
type ErrorEntry struct {
	Type       string        `json:"type"`
	Message    string        `json:"message"`
	Row        *int          `json:"row,omitempty"`
	Index      *int          `json:"index,omitempty"`
	LineNumber *int          `json:"lineNumber,omitempty"`
	Sheet      string        `json:"sheet,omitempty"`
	Field      string        `json:"field,omitempty"`
	Data       *record.Value `json:"data,omitempty"`
	Timestamp  *time.Time    `json:"timestamp,omitempty"`
}

// Position returns the most specific location reported for the entry.
func (e ErrorEntry) Position() *int {
	switch {
	case e.Row != nil:
		return e.Row
	case e.LineNumber != nil:
		return e.LineNumber
	default:
		return e.Index
	}
}

// ProcessingResult is what a format processor returns. Data and Errors never
// describe the same item.
type ProcessingResult struct {
	Data     []*record.Map
	Errors   []ErrorEntry
	Metadata *record.Map
}

// Envelope is the dispatcher output handed to the ingestion route.
type Envelope struct {
	Success  bool          `json:"success"`
	Data     []*record.Map `json:"data"`
	Metadata *record.Map   `json:"metadata"`
	Errors   []ErrorEntry  `json:"errors"`
}

// RecordCount mirrors metadata.recordCount.
func (e Envelope) RecordCount() int { return len(e.Data) }

// ErrorCount mirrors metadata.errorCount.
func (e Envelope) ErrorCount() int { return len(e.Errors) }

// TotalItems mirrors metadata.totalItems.
func (e Envelope) TotalItems() int { return len(e.Data) + len(e.Errors) }

// ProcessingTime returns the processing duration recorded in metadata.
func (e Envelope) ProcessingTime() time.Duration {
	v, ok := e.Metadata.Get("processingTime")
	if !ok {
		return 0
	}
	ms, _ := v.AsNumber()
	return time.Duration(ms * float64(time.Millisecond))
}
