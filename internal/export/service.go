package export

import (
	"context"
	"fmt"
	"sort"

	"github.com/rpattn/vizflow/internal/domain"
	"github.com/rpattn/vizflow/internal/record"
	"github.com/rpattn/vizflow/internal/repository"
)

// Service renders stored records and error logs as downloadable files.
type Service struct {
	records   repository.RecordRepository
	errorLogs repository.ErrorLogRepository
	maxRows   int
}

// Option configures a Service.
type Option func(*Service)

// WithMaxRows caps the number of rows loaded per exported collection.
func WithMaxRows(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxRows = n
		}
	}
}

func NewService(records repository.RecordRepository, errorLogs repository.ErrorLogRepository, opts ...Option) *Service {
	s := &Service{records: records, errorLogs: errorLogs, maxRows: domain.DefaultExportRows}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Request selects the output encoding.
type Request struct {
	Format   Format
	Filename string
	Pretty   bool
}

func (s *Service) ExportRecords(ctx context.Context, filter domain.RecordFilter, req Request) (File, error) {
	records, err := s.records.All(ctx, filter, s.maxRows)
	if err != nil {
		return File{}, fmt.Errorf("load records: %w", err)
	}
	name := req.Filename
	if name == "" {
		name = "records"
	}
	return Render(req.Format, RecordRows(records), name, req.Pretty)
}

func (s *Service) ExportErrors(ctx context.Context, filter domain.ErrorLogFilter, req Request) (File, error) {
	logs, err := s.errorLogs.All(ctx, filter, s.maxRows)
	if err != nil {
		return File{}, fmt.Errorf("load error logs: %w", err)
	}
	name := req.Filename
	if name == "" {
		name = "errors"
	}
	return Render(req.Format, ErrorLogRows(logs), name, req.Pretty)
}

// ExportDashboard writes records, error logs and summary statistics as
// separate sheets of one workbook.
func (s *Service) ExportDashboard(ctx context.Context, name string) (File, error) {
	records, err := s.records.All(ctx, domain.RecordFilter{}, s.maxRows)
	if err != nil {
		return File{}, fmt.Errorf("load records: %w", err)
	}
	logs, err := s.errorLogs.All(ctx, domain.ErrorLogFilter{}, s.maxRows)
	if err != nil {
		return File{}, fmt.Errorf("load error logs: %w", err)
	}
	recordStats, err := s.records.Stats(ctx)
	if err != nil {
		return File{}, fmt.Errorf("record stats: %w", err)
	}
	errorStats, err := s.errorLogs.Stats(ctx)
	if err != nil {
		return File{}, fmt.Errorf("error stats: %w", err)
	}

	if name == "" {
		name = "dashboard"
	}
	return ToMultiSheetExcel([]Sheet{
		{Name: "Summary", Records: SummaryRows(recordStats, errorStats)},
		{Name: "Records", Records: RecordRows(records)},
		{Name: "Errors", Records: ErrorLogRows(logs)},
	}, name)
}

// RecordRows prefixes each payload with its storage identity.
func RecordRows(records []domain.Record) []*record.Map {
	rows := make([]*record.Map, 0, len(records))
	for _, r := range records {
		m := record.NewMap()
		m.Set("recordId", record.String(r.ID.String()))
		m.Set("sourceFile", record.String(r.Metadata.OriginalName))
		m.Set("sourceFormat", record.String(string(r.Metadata.SourceFormat)))
		m.Set("processedBy", record.String(r.Metadata.ProcessedBy))
		m.Set("qualityScore", record.Number(r.Metadata.QualityScore))
		m.Set("createdAt", record.Time(r.CreatedAt))
		r.Payload.Range(func(key string, v record.Value) bool {
			if _, taken := m.Get(key); taken {
				key = "data." + key
			}
			m.Set(key, v)
			return true
		})
		rows = append(rows, m)
	}
	return rows
}

func ErrorLogRows(logs []domain.ErrorLog) []*record.Map {
	rows := make([]*record.Map, 0, len(logs))
	for _, l := range logs {
		m := record.NewMap()
		m.Set("id", record.String(l.ID.String()))
		m.Set("errorType", record.String(string(l.ErrorType)))
		m.Set("errorMessage", record.String(l.Message))
		if l.LineNumber != nil {
			m.Set("lineNumber", record.Int(*l.LineNumber))
		} else {
			m.Set("lineNumber", record.Null())
		}
		m.Set("fieldName", record.String(l.FieldName))
		m.Set("sourceFormat", record.String(string(l.SourceFormat)))
		m.Set("sourceFile", record.String(l.SourceFile))
		m.Set("processedBy", record.String(l.ProcessedBy))
		m.Set("resolutionStatus", record.String(string(l.Status)))
		m.Set("resolvedBy", record.String(l.ResolvedBy))
		if l.ResolvedAt != nil {
			m.Set("resolvedAt", record.Time(*l.ResolvedAt))
		} else {
			m.Set("resolvedAt", record.Null())
		}
		m.Set("resolutionNotes", record.String(l.ResolutionNotes))
		m.Set("createdAt", record.Time(l.CreatedAt))
		if l.RawData != nil {
			m.Set("rawData", *l.RawData)
		}
		rows = append(rows, m)
	}
	return rows
}

// SummaryRows renders statistics as metric/value pairs.
func SummaryRows(records domain.RecordStats, errs domain.ErrorStats) []*record.Map {
	rows := []*record.Map{}
	add := func(metric string, value int) {
		m := record.NewMap()
		m.Set("metric", record.String(metric))
		m.Set("value", record.Int(value))
		rows = append(rows, m)
	}

	add("totalRecords", records.Total)
	add("totalErrors", errs.Total)
	for _, k := range sortedKeys(records.ByFormat) {
		add("records.format."+k, records.ByFormat[k])
	}
	for _, k := range sortedKeys(records.ByProcessor) {
		add("records.processor."+k, records.ByProcessor[k])
	}
	for _, k := range sortedKeys(errs.ByType) {
		add("errors.type."+k, errs.ByType[k])
	}
	for _, k := range sortedKeys(errs.ByStatus) {
		add("errors.status."+k, errs.ByStatus[k])
	}
	return rows
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
