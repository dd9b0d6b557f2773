package export

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rpattn/vizflow/internal/domain"
	"github.com/rpattn/vizflow/internal/logging"
	"github.com/rpattn/vizflow/internal/record"
	"github.com/rpattn/vizflow/internal/repository"

	"github.com/google/uuid"
)

func TestRecordsExportEndpoint(t *testing.T) {
	payload := record.NewMap()
	payload.Set("name", record.String("Alice"))
	records := &stubRecordRepo{records: []domain.Record{{
		ID:        uuid.MustParse("00000000-0000-0000-0000-000000000001"),
		Payload:   payload,
		Metadata:  domain.RecordMetadata{OriginalName: "people.csv", SourceFormat: domain.FormatCSV, ProcessedBy: "csv_processor", QualityScore: 100},
		CreatedAt: time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC),
	}}}
	handler := NewHTTPHandler(NewService(records, &stubErrorLogRepo{}), logging.Discard())

	rec := httptest.NewRecorder()
	handler.Records(rec, httptest.NewRequest(http.MethodGet, "/api/export/records?format=csv&filename=people&sourceFormat=csv", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Content-Disposition"); got != `attachment; filename="people.csv"` {
		t.Fatalf("unexpected disposition %q", got)
	}
	if records.filter.SourceFormat != "csv" {
		t.Fatalf("filter not passed through: %+v", records.filter)
	}
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	if lines[0] != "recordId,sourceFile,sourceFormat,processedBy,qualityScore,createdAt,name" {
		t.Fatalf("unexpected header %q", lines[0])
	}
	if !strings.HasSuffix(lines[1], "2024-05-01T08:00:00.000Z,Alice") {
		t.Fatalf("unexpected row %q", lines[1])
	}
}

func TestExportAppliesRowCap(t *testing.T) {
	records := &stubRecordRepo{records: []domain.Record{{ID: uuid.New(), Payload: record.NewMap()}}}

	if _, err := NewService(records, &stubErrorLogRepo{}).ExportRecords(context.Background(), domain.RecordFilter{}, Request{Format: FormatJSON}); err != nil {
		t.Fatalf("export returned error: %v", err)
	}
	if records.limit != domain.DefaultExportRows {
		t.Fatalf("expected default cap %d, got %d", domain.DefaultExportRows, records.limit)
	}

	if _, err := NewService(records, &stubErrorLogRepo{}, WithMaxRows(25)).ExportRecords(context.Background(), domain.RecordFilter{}, Request{Format: FormatJSON}); err != nil {
		t.Fatalf("export returned error: %v", err)
	}
	if records.limit != 25 {
		t.Fatalf("expected configured cap 25, got %d", records.limit)
	}
}

func TestErrorsExportEmptyIs404(t *testing.T) {
	handler := NewHTTPHandler(NewService(&stubRecordRepo{}, &stubErrorLogRepo{}), logging.Discard())

	rec := httptest.NewRecorder()
	handler.Errors(rec, httptest.NewRequest(http.MethodGet, "/api/export/errors?format=json", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestExportRejectsUnknownFormat(t *testing.T) {
	handler := NewHTTPHandler(NewService(&stubRecordRepo{}, &stubErrorLogRepo{}), logging.Discard())

	rec := httptest.NewRecorder()
	handler.Records(rec, httptest.NewRequest(http.MethodGet, "/api/export/records?format=pdf", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestDashboardExportHasSummarySheet(t *testing.T) {
	records := &stubRecordRepo{stats: domain.RecordStats{Total: 0, ByFormat: map[string]int{}}}
	logs := &stubErrorLogRepo{stats: domain.ErrorStats{Total: 0}}
	handler := NewHTTPHandler(NewService(records, logs), logging.Discard())

	rec := httptest.NewRecorder()
	handler.Dashboard(rec, httptest.NewRequest(http.MethodGet, "/api/export/dashboard", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("Content-Type") != MIMEExcel {
		t.Fatalf("unexpected content type %q", rec.Header().Get("Content-Type"))
	}
}

func TestExportRepositoryFailureIs500(t *testing.T) {
	records := &stubRecordRepo{err: errors.New("db down")}
	handler := NewHTTPHandler(NewService(records, &stubErrorLogRepo{}), logging.Discard())

	rec := httptest.NewRecorder()
	handler.Records(rec, httptest.NewRequest(http.MethodGet, "/api/export/records", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "db down") {
		t.Fatalf("internal error details must not leak")
	}
}

type stubRecordRepo struct {
	records []domain.Record
	stats   domain.RecordStats
	filter  domain.RecordFilter
	limit   int
	err     error
}

func (s *stubRecordRepo) InsertMany(ctx context.Context, records []domain.Record) (repository.InsertResult, error) {
	return repository.InsertResult{}, errors.New("not implemented")
}

func (s *stubRecordRepo) GetByID(ctx context.Context, id uuid.UUID) (domain.Record, error) {
	return domain.Record{}, errors.New("not implemented")
}

func (s *stubRecordRepo) List(ctx context.Context, filter domain.RecordFilter, opts domain.ListOptions) ([]domain.Record, int, error) {
	return nil, 0, errors.New("not implemented")
}

func (s *stubRecordRepo) All(ctx context.Context, filter domain.RecordFilter, limit int) ([]domain.Record, error) {
	s.filter = filter
	s.limit = limit
	return s.records, s.err
}

func (s *stubRecordRepo) Stats(ctx context.Context) (domain.RecordStats, error) {
	return s.stats, s.err
}

func (s *stubRecordRepo) ListFiles(ctx context.Context, limit int) ([]domain.FileSummary, error) {
	return nil, errors.New("not implemented")
}

type stubErrorLogRepo struct {
	logs  []domain.ErrorLog
	stats domain.ErrorStats
}

func (s *stubErrorLogRepo) InsertMany(ctx context.Context, logs []domain.ErrorLog) (repository.InsertResult, error) {
	return repository.InsertResult{}, errors.New("not implemented")
}

func (s *stubErrorLogRepo) GetByID(ctx context.Context, id uuid.UUID) (domain.ErrorLog, error) {
	return domain.ErrorLog{}, errors.New("not implemented")
}

func (s *stubErrorLogRepo) List(ctx context.Context, filter domain.ErrorLogFilter, opts domain.ListOptions) ([]domain.ErrorLog, int, error) {
	return nil, 0, errors.New("not implemented")
}

func (s *stubErrorLogRepo) All(ctx context.Context, filter domain.ErrorLogFilter, limit int) ([]domain.ErrorLog, error) {
	return s.logs, nil
}

func (s *stubErrorLogRepo) UpdateStatus(ctx context.Context, id uuid.UUID, update domain.StatusUpdate) (domain.ErrorLog, error) {
	return domain.ErrorLog{}, errors.New("not implemented")
}

func (s *stubErrorLogRepo) Stats(ctx context.Context) (domain.ErrorStats, error) {
	return s.stats, nil
}

func (s *stubErrorLogRepo) CountByUploadIDs(ctx context.Context, uploadIDs []string) (map[string]int, error) {
	return nil, errors.New("not implemented")
}

var _ repository.RecordRepository = (*stubRecordRepo)(nil)
var _ repository.ErrorLogRepository = (*stubErrorLogRepo)(nil)
