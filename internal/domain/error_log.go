package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rpattn/vizflow/internal/record"
)

// ErrInvalidTransition is returned when an error log leaves a terminal status.
var ErrInvalidTransition = errors.New("invalid status transition")

// ErrorType classifies a persisted error log.
type ErrorType string

const (
	ErrorTypeMissingField    ErrorType = "MISSING_FIELD"
	ErrorTypeInvalidFormat   ErrorType = "INVALID_FORMAT"
	ErrorTypeDuplicateRecord ErrorType = "DUPLICATE_RECORD"
	ErrorTypeValidation      ErrorType = "VALIDATION_ERROR"
	ErrorTypeParsing         ErrorType = "PARSING_ERROR"
	ErrorTypeDataType        ErrorType = "DATA_TYPE_ERROR"
	ErrorTypeBusinessRule    ErrorType = "BUSINESS_RULE_ERROR"
)

var errorTypes = []ErrorType{
	ErrorTypeMissingField,
	ErrorTypeInvalidFormat,
	ErrorTypeDuplicateRecord,
	ErrorTypeValidation,
	ErrorTypeParsing,
	ErrorTypeDataType,
	ErrorTypeBusinessRule,
}

// ParseErrorType accepts only the enumerated values.
func ParseErrorType(value string) (ErrorType, bool) {
	candidate := ErrorType(strings.ToUpper(strings.TrimSpace(value)))
	for _, t := range errorTypes {
		if t == candidate {
			return t, true
		}
	}
	return "", false
}

// ClassifyErrorType maps a processor error tag onto the persisted enum.
func ClassifyErrorType(tag string) ErrorType {
	if t, ok := ParseErrorType(tag); ok {
		return t
	}

	normalized := strings.ToLower(strings.TrimSpace(tag))
	switch {
	case normalized == "empty_row", strings.HasPrefix(normalized, "missing"):
		return ErrorTypeMissingField
	case strings.HasPrefix(normalized, "duplicate"):
		return ErrorTypeDuplicateRecord
	case strings.HasPrefix(normalized, "validation"):
		return ErrorTypeValidation
	case strings.HasPrefix(normalized, "business"):
		return ErrorTypeBusinessRule
	case strings.Contains(normalized, "format"):
		return ErrorTypeInvalidFormat
	case strings.Contains(normalized, "type"):
		return ErrorTypeDataType
	default:
		return ErrorTypeParsing
	}
}

// ResolutionStatus tracks the review state of an error log.
type ResolutionStatus string

const (
	StatusUnresolved ResolutionStatus = "UNRESOLVED"
	StatusResolved   ResolutionStatus = "RESOLVED"
	StatusIgnored    ResolutionStatus = "IGNORED"
)

// ParseResolutionStatus accepts only the enumerated values.
func ParseResolutionStatus(value string) (ResolutionStatus, bool) {
	switch s := ResolutionStatus(strings.ToUpper(strings.TrimSpace(value))); s {
	case StatusUnresolved, StatusResolved, StatusIgnored:
		return s, true
	}
	return "", false
}

// Terminal reports whether no further transitions are allowed.
func (s ResolutionStatus) Terminal() bool {
	return s == StatusResolved || s == StatusIgnored
}

// CanTransitionTo allows UNRESOLVED to move anywhere and keeps terminal
// states fixed.
func (s ResolutionStatus) CanTransitionTo(next ResolutionStatus) bool {
	if s.Terminal() {
		return false
	}
	return next == StatusUnresolved || next.Terminal()
}

// ErrorLog is one extraction failure persisted for review.
type ErrorLog struct {
	ID              uuid.UUID        `json:"id"`
	ErrorType       ErrorType        `json:"errorType"`
	OriginalType    string           `json:"originalType"`
	Message         string           `json:"errorMessage"`
	LineNumber      *int             `json:"lineNumber,omitempty"`
	FieldName       string           `json:"fieldName,omitempty"`
	RawData         *record.Value    `json:"rawData,omitempty"`
	ExpectedValue   string           `json:"expectedValue,omitempty"`
	ActualValue     string           `json:"actualValue,omitempty"`
	SourceFormat    Format           `json:"sourceFormat"`
	SourceFile      string           `json:"sourceFile"`
	ProcessedBy     string           `json:"processedBy"`
	UploadID        string           `json:"uploadId"`
	Status          ResolutionStatus `json:"resolutionStatus"`
	ResolvedBy      string           `json:"resolvedBy,omitempty"`
	ResolvedAt      *time.Time       `json:"resolvedAt,omitempty"`
	ResolutionNotes string           `json:"resolutionNotes,omitempty"`
	CreatedAt       time.Time        `json:"createdAt"`
	UpdatedAt       time.Time        `json:"updatedAt"`
}

// NewErrorLog builds an unresolved log from a processor error entry.
func NewErrorLog(entry ErrorEntry, meta ProcessingMetadata) ErrorLog {
	log := ErrorLog{
		ID:           uuid.New(),
		ErrorType:    ClassifyErrorType(entry.Type),
		OriginalType: entry.Type,
		Message:      entry.Message,
		LineNumber:   entry.Position(),
		FieldName:    entry.Field,
		RawData:      entry.Data,
		SourceFormat: meta.SourceFormat,
		SourceFile:   meta.OriginalName,
		ProcessedBy:  meta.Processor,
		UploadID:     meta.UploadID,
		Status:       StatusUnresolved,
	}
	if log.Message == "" {
		log.Message = entry.Type
	}
	return log
}

// StatusUpdate carries a review decision.
type StatusUpdate struct {
	Status     ResolutionStatus
	ResolvedBy string
	Notes      string
}
