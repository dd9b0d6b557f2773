package domain

import (
	"errors"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidQuery is returned for malformed list or export parameters.
var ErrInvalidQuery = errors.New("invalid query")

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
	// DefaultExportRows bounds exports when no cap is configured.
	DefaultExportRows = 50000
	// MaxPage keeps the row offset inside a 32-bit range.
	MaxPage = math.MaxInt32 / MaxPageSize
)

// SortDirection represents ordering direction for sortable fields.
type SortDirection string

const (
	SortDirectionAsc  SortDirection = "asc"
	SortDirectionDesc SortDirection = "desc"
)

// ParseSortDirection defaults to descending for anything but "asc".
func ParseSortDirection(value string) SortDirection {
	if strings.EqualFold(strings.TrimSpace(value), string(SortDirectionAsc)) {
		return SortDirectionAsc
	}
	return SortDirectionDesc
}

// ListOptions captures paging and ordering for list queries.
type ListOptions struct {
	Page      int
	Limit     int
	SortBy    string
	SortOrder SortDirection
}

// Normalize applies defaults and clamps the page size.
func (o ListOptions) Normalize() ListOptions {
	if o.Page < 1 {
		o.Page = 1
	}
	if o.Page > MaxPage {
		o.Page = MaxPage
	}
	if o.Limit < 1 {
		o.Limit = DefaultPageSize
	}
	if o.Limit > MaxPageSize {
		o.Limit = MaxPageSize
	}
	if o.SortOrder == "" {
		o.SortOrder = SortDirectionDesc
	}
	return o
}

// Offset returns the row offset for the current page.
func (o ListOptions) Offset() int {
	return (o.Page - 1) * o.Limit
}

// RecordFilter narrows record queries.
type RecordFilter struct {
	Search       string     `json:"search,omitempty"`
	SourceFormat string     `json:"sourceFormat,omitempty"`
	ProcessedBy  string     `json:"processedBy,omitempty"`
	UploadID     string     `json:"uploadId,omitempty"`
	StartDate    *time.Time `json:"startDate,omitempty"`
	EndDate      *time.Time `json:"endDate,omitempty"`
}

// ErrorLogFilter narrows error log queries.
type ErrorLogFilter struct {
	Search       string     `json:"search,omitempty"`
	ErrorType    string     `json:"errorType,omitempty"`
	Status       string     `json:"status,omitempty"`
	SourceFormat string     `json:"sourceFormat,omitempty"`
	SourceFile   string     `json:"sourceFile,omitempty"`
	UploadID     string     `json:"uploadId,omitempty"`
	StartDate    *time.Time `json:"startDate,omitempty"`
	EndDate      *time.Time `json:"endDate,omitempty"`
}

// Pagination is returned with every list response.
type Pagination struct {
	CurrentPage  int  `json:"currentPage"`
	TotalPages   int  `json:"totalPages"`
	TotalRecords int  `json:"totalRecords"`
	Limit        int  `json:"limit"`
	HasNext      bool `json:"hasNext"`
	HasPrev      bool `json:"hasPrev"`
}

// NewPagination derives the pagination block for a normalized query.
func NewPagination(opts ListOptions, total int) Pagination {
	totalPages := 0
	if opts.Limit > 0 {
		totalPages = (total + opts.Limit - 1) / opts.Limit
	}
	return Pagination{
		CurrentPage:  opts.Page,
		TotalPages:   totalPages,
		TotalRecords: total,
		Limit:        opts.Limit,
		HasNext:      opts.Page < totalPages,
		HasPrev:      opts.Page > 1,
	}
}

// ParseListOptions reads page, limit, sortBy and sortOrder. Missing or
// non-numeric paging values fall back to the defaults; a page beyond MaxPage
// is rejected.
func ParseListOptions(values url.Values) (ListOptions, error) {
	page, _ := strconv.Atoi(values.Get("page"))
	limit, _ := strconv.Atoi(values.Get("limit"))
	if page > MaxPage {
		return ListOptions{}, fmt.Errorf("%w: page must be at most %d", ErrInvalidQuery, MaxPage)
	}
	return ListOptions{
		Page:      page,
		Limit:     limit,
		SortBy:    strings.TrimSpace(values.Get("sortBy")),
		SortOrder: ParseSortDirection(values.Get("sortOrder")),
	}.Normalize(), nil
}

// ParseRecordFilter reads record filters from query parameters.
func ParseRecordFilter(values url.Values) (RecordFilter, error) {
	start, end, err := parseDateRange(values)
	if err != nil {
		return RecordFilter{}, err
	}
	return RecordFilter{
		Search:       strings.TrimSpace(values.Get("search")),
		SourceFormat: strings.TrimSpace(values.Get("sourceFormat")),
		ProcessedBy:  strings.TrimSpace(values.Get("processedBy")),
		UploadID:     strings.TrimSpace(values.Get("uploadId")),
		StartDate:    start,
		EndDate:      end,
	}, nil
}

// ParseErrorLogFilter reads error log filters from query parameters.
// errorType and status must name enum members when present.
func ParseErrorLogFilter(values url.Values) (ErrorLogFilter, error) {
	start, end, err := parseDateRange(values)
	if err != nil {
		return ErrorLogFilter{}, err
	}
	filter := ErrorLogFilter{
		Search:       strings.TrimSpace(values.Get("search")),
		SourceFormat: strings.TrimSpace(values.Get("sourceFormat")),
		SourceFile:   strings.TrimSpace(values.Get("sourceFile")),
		UploadID:     strings.TrimSpace(values.Get("uploadId")),
		StartDate:    start,
		EndDate:      end,
	}
	if raw := strings.TrimSpace(values.Get("errorType")); raw != "" {
		t, ok := ParseErrorType(raw)
		if !ok {
			return ErrorLogFilter{}, fmt.Errorf("%w: unknown errorType %q", ErrInvalidQuery, raw)
		}
		filter.ErrorType = string(t)
	}
	if raw := strings.TrimSpace(values.Get("status")); raw != "" {
		s, ok := ParseResolutionStatus(raw)
		if !ok {
			return ErrorLogFilter{}, fmt.Errorf("%w: unknown status %q", ErrInvalidQuery, raw)
		}
		filter.Status = string(s)
	}
	return filter, nil
}

func parseDateRange(values url.Values) (*time.Time, *time.Time, error) {
	start, err := parseDate(values.Get("startDate"), false)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: startDate: %v", ErrInvalidQuery, err)
	}
	end, err := parseDate(values.Get("endDate"), true)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: endDate: %v", ErrInvalidQuery, err)
	}
	if start != nil && end != nil && end.Before(*start) {
		return nil, nil, fmt.Errorf("%w: endDate is before startDate", ErrInvalidQuery)
	}
	return start, end, nil
}

// parseDate accepts RFC 3339 timestamps or plain dates. A plain end date
// covers the whole day.
func parseDate(raw string, endOfDay bool) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, fmt.Errorf("expected YYYY-MM-DD or RFC 3339, got %q", raw)
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}
