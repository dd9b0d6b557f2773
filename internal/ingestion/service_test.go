package ingestion

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/rpattn/vizflow/internal/domain"
	"github.com/rpattn/vizflow/internal/logging"
	"github.com/rpattn/vizflow/internal/processing"
	"github.com/rpattn/vizflow/internal/record"
	"github.com/rpattn/vizflow/internal/repository"

	"github.com/google/uuid"
)

func row(pairs ...string) *record.Map {
	m := record.NewMap()
	for i := 0; i+1 < len(pairs); i += 2 {
		m.Set(pairs[i], record.String(pairs[i+1]))
	}
	return m
}

func newTestService(proc *stubProcessor, records *stubRecordRepo, logs *stubErrorLogRepo, opts ...Option) *Service {
	dispatcher := processing.NewDispatcher(
		map[domain.Format]processing.Processor{domain.FormatCSV: proc},
		processing.WithLogger(logging.Discard()),
	)
	opts = append([]Option{WithLogger(logging.Discard())}, opts...)
	return NewService(dispatcher, records, logs, opts...)
}

func csvRequest() Request {
	return Request{Upload: domain.Upload{
		FileName: "people.csv",
		MimeType: "text/csv",
		Buffer:   []byte("name,age\nAlice,30\n,40\n"),
	}}
}

func TestServiceIngestPersistsRecordsAndErrors(t *testing.T) {
	rowNumber := 2
	proc := &stubProcessor{name: "csv_processor", result: domain.ProcessingResult{
		Data:   []*record.Map{row("name", "Alice", "age", "30")},
		Errors: []domain.ErrorEntry{{Type: "missing_field", Message: "name is required", Row: &rowNumber}},
	}}
	records := &stubRecordRepo{}
	logs := &stubErrorLogRepo{}
	service := newTestService(proc, records, logs)

	req := csvRequest()
	req.UploadedBy = "ops"
	summary, err := service.Ingest(context.Background(), req)
	if err != nil {
		t.Fatalf("ingest returned error: %v", err)
	}

	if !summary.Success {
		t.Fatalf("expected success, summary: %+v", summary)
	}
	if summary.TotalRecords != 2 || summary.SuccessfulRecords != 1 || summary.FailedRecords != 1 {
		t.Fatalf("unexpected counts: %+v", summary)
	}
	if summary.Processor != "csv_processor" || summary.Format != domain.FormatCSV {
		t.Fatalf("unexpected processor/format: %s/%s", summary.Processor, summary.Format)
	}
	if summary.FileID == "" {
		t.Fatalf("expected a file id")
	}

	if len(records.inserted) != 1 {
		t.Fatalf("expected 1 persisted record, got %d", len(records.inserted))
	}
	meta := records.inserted[0].Metadata
	if meta.UploadID != summary.FileID || meta.UploadedBy != "ops" || meta.RecordCount != 1 {
		t.Fatalf("unexpected record metadata: %+v", meta)
	}
	if strings.Join(meta.FieldNames, ",") != "name,age" {
		t.Fatalf("unexpected field names %v", meta.FieldNames)
	}
	if meta.QualityScore != 100 {
		t.Fatalf("expected quality score 100, got %v", meta.QualityScore)
	}

	if len(logs.inserted) != 1 {
		t.Fatalf("expected 1 error log, got %d", len(logs.inserted))
	}
	entry := logs.inserted[0]
	if entry.ErrorType != domain.ErrorTypeMissingField || entry.Status != domain.StatusUnresolved {
		t.Fatalf("unexpected error log: %+v", entry)
	}
	if entry.LineNumber == nil || *entry.LineNumber != 2 {
		t.Fatalf("expected line number 2, got %v", entry.LineNumber)
	}
	if entry.SourceFile != "people.csv" || entry.ProcessedBy != "csv_processor" {
		t.Fatalf("unexpected error log source: %+v", entry)
	}
}

func TestServiceIngestReportsPersistenceFailures(t *testing.T) {
	proc := &stubProcessor{name: "csv_processor", result: domain.ProcessingResult{
		Data: []*record.Map{row("a", "1"), row("a", "2"), row("a", "3")},
	}}
	records := &stubRecordRepo{failIndexes: map[int]bool{1: true}}
	service := newTestService(proc, records, &stubErrorLogRepo{})

	summary, err := service.Ingest(context.Background(), csvRequest())
	if err != nil {
		t.Fatalf("ingest returned error: %v", err)
	}
	if summary.Success {
		t.Fatalf("expected success=false when persistence fails")
	}
	if summary.SuccessfulRecords != 2 || summary.FailedRecords != 1 {
		t.Fatalf("unexpected counts: %+v", summary)
	}
	if len(summary.Errors) != 1 || summary.Errors[0] != "1 records failed to persist" {
		t.Fatalf("unexpected errors: %v", summary.Errors)
	}
}

func TestServiceIngestErrorLogFailureIsSwallowed(t *testing.T) {
	proc := &stubProcessor{name: "csv_processor", result: domain.ProcessingResult{
		Data:   []*record.Map{row("a", "1")},
		Errors: []domain.ErrorEntry{{Type: "validation_error", Message: "bad"}},
	}}
	logs := &stubErrorLogRepo{err: errors.New("database gone")}
	service := newTestService(proc, &stubRecordRepo{}, logs)

	summary, err := service.Ingest(context.Background(), csvRequest())
	if err != nil {
		t.Fatalf("error log failures must not surface: %v", err)
	}
	if !summary.Success || summary.SuccessfulRecords != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
}

func TestServiceIngestProcessorFailure(t *testing.T) {
	proc := &stubProcessor{name: "csv_processor", err: errors.New("script crashed")}
	records := &stubRecordRepo{}
	logs := &stubErrorLogRepo{}
	service := newTestService(proc, records, logs)

	summary, err := service.Ingest(context.Background(), csvRequest())
	if err != nil {
		t.Fatalf("processor failures must be reported in the summary: %v", err)
	}
	if summary.Success || summary.SuccessfulRecords != 0 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if len(summary.Errors) != 1 || !strings.Contains(summary.Errors[0], "script crashed") {
		t.Fatalf("unexpected errors: %v", summary.Errors)
	}
	if len(records.inserted) != 0 {
		t.Fatalf("no records should be persisted")
	}
	if len(logs.inserted) != 1 || logs.inserted[0].OriginalType != domain.ErrorTypeProcessing {
		t.Fatalf("expected processing_error log, got %+v", logs.inserted)
	}
}

func TestServiceIngestUnsupportedFormat(t *testing.T) {
	proc := &stubProcessor{name: "csv_processor"}
	archive := newMemoryArchive()
	service := newTestService(proc, &stubRecordRepo{}, &stubErrorLogRepo{}, WithArchive(archive))

	_, err := service.Ingest(context.Background(), Request{Upload: domain.Upload{
		FileName: "notes.txt",
		MimeType: "text/plain",
		Buffer:   []byte("hello"),
	}})
	if !errors.Is(err, processing.ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
	if proc.calls != 0 || len(archive.objects) != 0 {
		t.Fatalf("nothing should run or be archived for unsupported uploads")
	}
}

func TestServiceIngestArchivesUpload(t *testing.T) {
	proc := &stubProcessor{name: "csv_processor"}
	archive := newMemoryArchive()
	service := newTestService(proc, &stubRecordRepo{}, &stubErrorLogRepo{}, WithArchive(archive))

	req := csvRequest()
	req.Upload.ID = "u-1"
	if _, err := service.Ingest(context.Background(), req); err != nil {
		t.Fatalf("ingest returned error: %v", err)
	}
	if got := string(archive.objects["uploads/u-1/people.csv"]); got != string(req.Upload.Buffer) {
		t.Fatalf("unexpected archived content %q", got)
	}
}

func TestServiceIngestBatchContinuesPastFailures(t *testing.T) {
	proc := &stubProcessor{name: "csv_processor", result: domain.ProcessingResult{
		Data: []*record.Map{row("a", "1")},
	}}
	service := newTestService(proc, &stubRecordRepo{}, &stubErrorLogRepo{})

	batch := service.IngestBatch(context.Background(), []Request{
		csvRequest(),
		{Upload: domain.Upload{FileName: "image.bmp", MimeType: "image/bmp", Buffer: []byte("x")}},
		csvRequest(),
	})
	if batch.Success {
		t.Fatalf("batch with a failed file should not be successful")
	}
	if len(batch.Results) != 2 || len(batch.Failures) != 1 {
		t.Fatalf("unexpected batch: %d results, %d failures", len(batch.Results), len(batch.Failures))
	}
	if batch.Failures[0].FileName != "image.bmp" {
		t.Fatalf("unexpected failure %+v", batch.Failures[0])
	}
}

func TestServiceSubmitAndProcessJob(t *testing.T) {
	proc := &stubProcessor{name: "csv_processor", result: domain.ProcessingResult{
		Data: []*record.Map{row("a", "1")},
	}}
	records := &stubRecordRepo{}
	archive := newMemoryArchive()
	queue := &stubQueue{}
	service := newTestService(proc, records, &stubErrorLogRepo{}, WithArchive(archive), WithQueue(queue))

	req := csvRequest()
	req.Options = row("delimiter", ";")
	accepted, err := service.Submit(context.Background(), req)
	if err != nil {
		t.Fatalf("submit returned error: %v", err)
	}
	if accepted.Status != "queued" || len(queue.jobs) != 1 {
		t.Fatalf("expected one queued job, got %+v / %d", accepted, len(queue.jobs))
	}
	if proc.calls != 0 {
		t.Fatalf("submit must not process synchronously")
	}

	summary, err := service.ProcessJob(context.Background(), queue.jobs[0])
	if err != nil {
		t.Fatalf("process job returned error: %v", err)
	}
	if summary.FileID != accepted.FileID || summary.SuccessfulRecords != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if v, _ := records.inserted[0].Metadata.Options.Get("delimiter"); v.Text() != ";" {
		t.Fatalf("options should travel with the job")
	}
}

func TestServiceSubmitWithoutQueue(t *testing.T) {
	service := newTestService(&stubProcessor{name: "csv_processor"}, &stubRecordRepo{}, &stubErrorLogRepo{})
	if _, err := service.Submit(context.Background(), csvRequest()); !errors.Is(err, ErrAsyncUnavailable) {
		t.Fatalf("expected ErrAsyncUnavailable, got %v", err)
	}
}

type stubProcessor struct {
	name   string
	result domain.ProcessingResult
	err    error
	calls  int
}

func (s *stubProcessor) Name() string { return s.name }

func (s *stubProcessor) Process(ctx context.Context, upload domain.Upload, meta domain.ProcessingMetadata) (domain.ProcessingResult, error) {
	s.calls++
	return s.result, s.err
}

type stubRecordRepo struct {
	inserted    []domain.Record
	failIndexes map[int]bool
}

func (s *stubRecordRepo) InsertMany(ctx context.Context, records []domain.Record) (repository.InsertResult, error) {
	result := repository.InsertResult{}
	for i, rec := range records {
		if s.failIndexes[i] {
			result.Failures = append(result.Failures, repository.InsertFailure{Index: i, Err: errors.New("insert failed")})
			continue
		}
		s.inserted = append(s.inserted, rec)
		result.Inserted++
	}
	return result, nil
}

func (s *stubRecordRepo) GetByID(ctx context.Context, id uuid.UUID) (domain.Record, error) {
	return domain.Record{}, errors.New("not implemented")
}

func (s *stubRecordRepo) List(ctx context.Context, filter domain.RecordFilter, opts domain.ListOptions) ([]domain.Record, int, error) {
	return nil, 0, errors.New("not implemented")
}

func (s *stubRecordRepo) All(ctx context.Context, filter domain.RecordFilter, limit int) ([]domain.Record, error) {
	return nil, errors.New("not implemented")
}

func (s *stubRecordRepo) Stats(ctx context.Context) (domain.RecordStats, error) {
	return domain.RecordStats{}, errors.New("not implemented")
}

func (s *stubRecordRepo) ListFiles(ctx context.Context, limit int) ([]domain.FileSummary, error) {
	return nil, errors.New("not implemented")
}

type stubErrorLogRepo struct {
	inserted []domain.ErrorLog
	err      error
}

func (s *stubErrorLogRepo) InsertMany(ctx context.Context, logs []domain.ErrorLog) (repository.InsertResult, error) {
	if s.err != nil {
		return repository.InsertResult{}, s.err
	}
	s.inserted = append(s.inserted, logs...)
	return repository.InsertResult{Inserted: len(logs)}, nil
}

func (s *stubErrorLogRepo) GetByID(ctx context.Context, id uuid.UUID) (domain.ErrorLog, error) {
	return domain.ErrorLog{}, errors.New("not implemented")
}

func (s *stubErrorLogRepo) List(ctx context.Context, filter domain.ErrorLogFilter, opts domain.ListOptions) ([]domain.ErrorLog, int, error) {
	return nil, 0, errors.New("not implemented")
}

func (s *stubErrorLogRepo) All(ctx context.Context, filter domain.ErrorLogFilter, limit int) ([]domain.ErrorLog, error) {
	return nil, errors.New("not implemented")
}

func (s *stubErrorLogRepo) UpdateStatus(ctx context.Context, id uuid.UUID, update domain.StatusUpdate) (domain.ErrorLog, error) {
	return domain.ErrorLog{}, errors.New("not implemented")
}

func (s *stubErrorLogRepo) Stats(ctx context.Context) (domain.ErrorStats, error) {
	return domain.ErrorStats{}, errors.New("not implemented")
}

func (s *stubErrorLogRepo) CountByUploadIDs(ctx context.Context, uploadIDs []string) (map[string]int, error) {
	return nil, errors.New("not implemented")
}

type memoryArchive struct {
	objects map[string][]byte
}

func newMemoryArchive() *memoryArchive {
	return &memoryArchive{objects: map[string][]byte{}}
}

func (m *memoryArchive) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	m.objects[key] = data
	return nil
}

func (m *memoryArchive) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	data, ok := m.objects[key]
	if !ok {
		return nil, errors.New("missing object")
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

type stubQueue struct {
	jobs []Job
}

func (s *stubQueue) Enqueue(ctx context.Context, job Job) error {
	s.jobs = append(s.jobs, job)
	return nil
}

var _ processing.Processor = (*stubProcessor)(nil)
var _ repository.RecordRepository = (*stubRecordRepo)(nil)
var _ repository.ErrorLogRepository = (*stubErrorLogRepo)(nil)
var _ Archive = (*memoryArchive)(nil)
var _ Enqueuer = (*stubQueue)(nil)
