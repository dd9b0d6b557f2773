package domain

import (
	"errors"
	"math"
	"net/url"
	"strconv"
	"testing"

	"github.com/rpattn/vizflow/internal/record"
)

func TestResolutionStatusTransitions(t *testing.T) {
	cases := []struct {
		from, to ResolutionStatus
		allowed  bool
	}{
		{StatusUnresolved, StatusResolved, true},
		{StatusUnresolved, StatusIgnored, true},
		{StatusUnresolved, StatusUnresolved, true},
		{StatusIgnored, StatusResolved, false},
		{StatusResolved, StatusUnresolved, false},
		{StatusResolved, StatusIgnored, false},
	}
	for _, tc := range cases {
		if got := tc.from.CanTransitionTo(tc.to); got != tc.allowed {
			t.Fatalf("%s -> %s: expected %v, got %v", tc.from, tc.to, tc.allowed, got)
		}
	}
}

func TestParseResolutionStatusRejectsUnknown(t *testing.T) {
	if _, ok := ParseResolutionStatus("DONE"); ok {
		t.Fatalf("expected DONE to be rejected")
	}
	if s, ok := ParseResolutionStatus("resolved"); !ok || s != StatusResolved {
		t.Fatalf("expected case-insensitive match, got %q %v", s, ok)
	}
}

func TestClassifyErrorType(t *testing.T) {
	cases := map[string]ErrorType{
		"validation_failed":  ErrorTypeValidation,
		"empty_row":          ErrorTypeMissingField,
		"missing_field":      ErrorTypeMissingField,
		"duplicate_record":   ErrorTypeDuplicateRecord,
		"invalid_format":     ErrorTypeInvalidFormat,
		"data_type_mismatch": ErrorTypeDataType,
		"processing_error":   ErrorTypeParsing,
		"file_parsing_error": ErrorTypeParsing,
		"business_rule":      ErrorTypeBusinessRule,
	}
	for tag, expected := range cases {
		if got := ClassifyErrorType(tag); got != expected {
			t.Fatalf("%s: expected %s, got %s", tag, expected, got)
		}
	}
}

func TestParseFormat(t *testing.T) {
	if ParseFormat(" CSV ") != FormatCSV {
		t.Fatalf("expected csv")
	}
	if ParseFormat("json") != FormatUnknown {
		t.Fatalf("expected json to be unknown")
	}
}

func TestListOptionsClampLimit(t *testing.T) {
	opts := ListOptions{Page: 1, Limit: 150}.Normalize()
	if opts.Limit != MaxPageSize {
		t.Fatalf("expected limit clamped to %d, got %d", MaxPageSize, opts.Limit)
	}

	defaults := ListOptions{}.Normalize()
	if defaults.Page != 1 || defaults.Limit != DefaultPageSize || defaults.SortOrder != SortDirectionDesc {
		t.Fatalf("unexpected defaults: %+v", defaults)
	}
}

func TestNewPagination(t *testing.T) {
	p := NewPagination(ListOptions{Page: 2, Limit: 20}, 45)
	if p.TotalPages != 3 || !p.HasNext || !p.HasPrev {
		t.Fatalf("unexpected pagination: %+v", p)
	}

	last := NewPagination(ListOptions{Page: 3, Limit: 20}, 45)
	if last.HasNext {
		t.Fatalf("last page should not have next: %+v", last)
	}
}

func TestQualityScoreIgnoresUnderscoreKeys(t *testing.T) {
	m := record.NewMap()
	m.Set("name", record.String("Ada"))
	m.Set("email", record.String("  "))
	m.Set("age", record.Null())
	m.Set("score", record.Int(3))
	m.Set("_image", record.String("meta"))

	if got := QualityScore(m); got != 50 {
		t.Fatalf("expected 50, got %v", got)
	}
}

func TestUploadValidate(t *testing.T) {
	if err := (Upload{}).Validate(); !errors.Is(err, ErrInvalidUpload) {
		t.Fatalf("expected ErrInvalidUpload, got %v", err)
	}
	if err := (Upload{Path: "a", Buffer: []byte("b")}).Validate(); !errors.Is(err, ErrInvalidUpload) {
		t.Fatalf("expected ErrInvalidUpload for both sources, got %v", err)
	}
	if err := (Upload{Buffer: []byte{}}).Validate(); err != nil {
		t.Fatalf("empty buffer should be valid: %v", err)
	}
}

func TestParseListOptionsDefaultsAndClamp(t *testing.T) {
	opts, err := ParseListOptions(url.Values{"limit": {"150"}, "sortOrder": {"ASC"}})
	if err != nil {
		t.Fatalf("parse options: %v", err)
	}
	if opts.Page != 1 || opts.Limit != MaxPageSize {
		t.Fatalf("unexpected options %+v", opts)
	}
	if opts.SortOrder != SortDirectionAsc {
		t.Fatalf("expected asc, got %s", opts.SortOrder)
	}

	opts, err = ParseListOptions(url.Values{"page": {"abc"}})
	if err != nil {
		t.Fatalf("parse options: %v", err)
	}
	if opts.Page != 1 || opts.Limit != DefaultPageSize || opts.SortOrder != SortDirectionDesc {
		t.Fatalf("unexpected defaults %+v", opts)
	}
}

func TestParseErrorLogFilter(t *testing.T) {
	filter, err := ParseErrorLogFilter(url.Values{
		"status":    {"resolved"},
		"errorType": {"parsing_error"},
		"endDate":   {"2024-03-01"},
	})
	if err != nil {
		t.Fatalf("parse returned error: %v", err)
	}
	if filter.Status != "RESOLVED" || filter.ErrorType != "PARSING_ERROR" {
		t.Fatalf("unexpected filter %+v", filter)
	}
	if filter.EndDate == nil || filter.EndDate.Hour() != 23 {
		t.Fatalf("date-only end should cover the whole day, got %v", filter.EndDate)
	}

	if _, err := ParseErrorLogFilter(url.Values{"status": {"DONE"}}); !errors.Is(err, ErrInvalidQuery) {
		t.Fatalf("expected ErrInvalidQuery for unknown status, got %v", err)
	}
}

func TestParseRecordFilterRejectsBadDates(t *testing.T) {
	if _, err := ParseRecordFilter(url.Values{"startDate": {"yesterday"}}); !errors.Is(err, ErrInvalidQuery) {
		t.Fatalf("expected ErrInvalidQuery, got %v", err)
	}
	if _, err := ParseRecordFilter(url.Values{"startDate": {"2024-02-01"}, "endDate": {"2024-01-01"}}); !errors.Is(err, ErrInvalidQuery) {
		t.Fatalf("expected ErrInvalidQuery for inverted range, got %v", err)
	}
}

func TestParseListOptionsRejectsHugePage(t *testing.T) {
	_, err := ParseListOptions(url.Values{"page": {"9223372036854775807"}, "limit": {"150"}})
	if !errors.Is(err, ErrInvalidQuery) {
		t.Fatalf("expected ErrInvalidQuery, got %v", err)
	}

	opts, err := ParseListOptions(url.Values{"page": {strconv.Itoa(MaxPage)}, "limit": {"150"}})
	if err != nil {
		t.Fatalf("max page should be accepted: %v", err)
	}
	if opts.Offset() < 0 {
		t.Fatalf("offset overflowed: %d", opts.Offset())
	}

	clamped := ListOptions{Page: math.MaxInt, Limit: MaxPageSize}.Normalize()
	if clamped.Page != MaxPage || clamped.Offset() < 0 {
		t.Fatalf("unexpected clamp %+v", clamped)
	}
}
