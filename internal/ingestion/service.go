package ingestion

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/rpattn/vizflow/internal/domain"
	"github.com/rpattn/vizflow/internal/logging"
	"github.com/rpattn/vizflow/internal/processing"
	"github.com/rpattn/vizflow/internal/record"
	"github.com/rpattn/vizflow/internal/repository"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ErrAsyncUnavailable is returned when background processing is requested
// but no queue or archive is configured.
var ErrAsyncUnavailable = errors.New("asynchronous processing is not configured")

// Archive stores raw uploads.
type Archive interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
}

// Enqueuer schedules a job for background processing.
type Enqueuer interface {
	Enqueue(ctx context.Context, job Job) error
}

// Service runs uploads through the dispatcher and persists the outcome.
type Service struct {
	dispatcher *processing.Dispatcher
	records    repository.RecordRepository
	errorLogs  repository.ErrorLogRepository
	archive    Archive
	queue      Enqueuer
	logger     *logrus.Logger
	now        func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithArchive enables raw upload archiving.
func WithArchive(archive Archive) Option {
	return func(s *Service) { s.archive = archive }
}

// WithQueue enables asynchronous submissions.
func WithQueue(queue Enqueuer) Option {
	return func(s *Service) { s.queue = queue }
}

func WithLogger(logger *logrus.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewService creates a new ingestion service.
func NewService(
	dispatcher *processing.Dispatcher,
	records repository.RecordRepository,
	errorLogs repository.ErrorLogRepository,
	opts ...Option,
) *Service {
	s := &Service{
		dispatcher: dispatcher,
		records:    records,
		errorLogs:  errorLogs,
		logger:     logrus.StandardLogger(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Request describes one upload to ingest.
type Request struct {
	Upload     domain.Upload
	Options    *record.Map
	UploadedBy string
}

// Summary returns ingestion level metrics.
type Summary struct {
	Success           bool          `json:"success"`
	FileID            string        `json:"fileId"`
	FileName          string        `json:"fileName"`
	Processor         string        `json:"processor"`
	Format            domain.Format `json:"format"`
	ProcessingTime    int64         `json:"processingTime"`
	TotalRecords      int           `json:"totalRecords"`
	SuccessfulRecords int           `json:"successfulRecords"`
	FailedRecords     int           `json:"failedRecords"`
	Errors            []string      `json:"errors"`
	Metadata          *record.Map   `json:"metadata"`
}

// Accepted is returned for uploads queued for background processing.
type Accepted struct {
	Success  bool   `json:"success"`
	FileID   string `json:"fileId"`
	FileName string `json:"fileName"`
	Status   string `json:"status"`
}

// Job is the queued form of a Request. The upload content lives in the
// archive under ObjectKey.
type Job struct {
	UploadID      string      `json:"uploadId"`
	ObjectKey     string      `json:"objectKey"`
	FileName      string      `json:"fileName"`
	MimeType      string      `json:"mimeType"`
	Size          int64       `json:"size"`
	SpecifiedType string      `json:"specifiedType,omitempty"`
	Options       *record.Map `json:"options,omitempty"`
	UploadedBy    string      `json:"uploadedBy,omitempty"`
}

// Ingest processes the upload and persists extracted records and error logs.
// Only an unsupported format or an invalid upload return an error; every
// other outcome is reported through the summary.
func (s *Service) Ingest(ctx context.Context, req Request) (Summary, error) {
	if req.Upload.ID == "" {
		req.Upload.ID = uuid.NewString()
	}
	if err := req.Upload.Validate(); err != nil {
		return Summary{}, err
	}
	if _, _, err := s.dispatcher.Resolve(req.Upload); err != nil {
		return Summary{}, err
	}
	if s.archive != nil {
		s.archiveUpload(ctx, req.Upload)
	}
	return s.ingest(ctx, req)
}

func (s *Service) ingest(ctx context.Context, req Request) (Summary, error) {
	upload := req.Upload
	env, err := s.dispatcher.ProcessFile(ctx, upload, processing.Options{
		UploadID: upload.ID,
		Extra:    req.Options,
	})
	if err != nil {
		return Summary{}, err
	}

	meta := metadataFromEnvelope(env, upload)
	summary := Summary{
		Success:        env.Success,
		FileID:         upload.ID,
		FileName:       upload.FileName,
		Processor:      meta.Processor,
		Format:         meta.SourceFormat,
		ProcessingTime: env.ProcessingTime().Milliseconds(),
		TotalRecords:   env.TotalItems(),
		Errors:         []string{},
		Metadata:       env.Metadata,
	}

	if !env.Success {
		for _, e := range env.Errors {
			summary.Errors = append(summary.Errors, e.Message)
		}
	} else if n := env.ErrorCount(); n > 0 {
		summary.Errors = append(summary.Errors, fmt.Sprintf("%d items failed extraction", n))
	}

	inserted, persistFailed := s.persistRecords(ctx, env, meta, req.UploadedBy)
	summary.SuccessfulRecords = inserted
	summary.FailedRecords = env.ErrorCount() + persistFailed
	if persistFailed > 0 {
		summary.Success = false
		summary.Errors = append(summary.Errors, fmt.Sprintf("%d records failed to persist", persistFailed))
	}

	s.persistErrorLogs(ctx, env, meta)
	return summary, nil
}

func (s *Service) persistRecords(ctx context.Context, env domain.Envelope, meta domain.ProcessingMetadata, uploadedBy string) (int, int) {
	if len(env.Data) == 0 {
		return 0, 0
	}

	processedAt := s.now().UTC()
	records := make([]domain.Record, len(env.Data))
	for i, payload := range env.Data {
		records[i] = domain.Record{
			ID:      uuid.New(),
			Payload: payload,
			Metadata: domain.RecordMetadata{
				UploadID:         meta.UploadID,
				OriginalName:     meta.OriginalName,
				MimeType:         meta.MimeType,
				Size:             meta.Size,
				SourceFormat:     meta.SourceFormat,
				ProcessedBy:      meta.Processor,
				SpecifiedType:    meta.SpecifiedType,
				DetectedType:     meta.DetectedType,
				Options:          meta.Options,
				FieldNames:       payload.Keys(),
				RecordCount:      1,
				QualityScore:     domain.QualityScore(payload),
				UploadedBy:       uploadedBy,
				ProcessingTimeMs: env.ProcessingTime().Milliseconds(),
				ProcessedAt:      processedAt,
				Processing:       env.Metadata,
			},
		}
	}

	log := logging.FromContext(ctx, s.logger).WithField("upload_id", meta.UploadID)
	result, err := s.records.InsertMany(ctx, records)
	if err != nil {
		log.WithError(err).Error("record insert aborted")
	}
	for _, failure := range result.Failures {
		log.WithError(failure.Err).WithField("index", failure.Index).Warn("record failed to persist")
	}
	return result.Inserted, len(records) - result.Inserted
}

// persistErrorLogs is best-effort: failures are logged and never reach the
// caller.
func (s *Service) persistErrorLogs(ctx context.Context, env domain.Envelope, meta domain.ProcessingMetadata) {
	if len(env.Errors) == 0 || s.errorLogs == nil {
		return
	}

	logs := make([]domain.ErrorLog, len(env.Errors))
	for i, entry := range env.Errors {
		logs[i] = domain.NewErrorLog(entry, meta)
	}

	log := logging.FromContext(ctx, s.logger).WithField("upload_id", meta.UploadID)
	result, err := s.errorLogs.InsertMany(ctx, logs)
	if err != nil {
		log.WithError(err).Error("error log insert aborted")
		return
	}
	if len(result.Failures) > 0 {
		log.WithField("failed", len(result.Failures)).Warn("some error logs failed to persist")
	}
}

func (s *Service) archiveUpload(ctx context.Context, upload domain.Upload) {
	if err := s.putArchive(ctx, upload); err != nil {
		logging.FromContext(ctx, s.logger).
			WithError(err).
			WithField("upload_id", upload.ID).
			Warn("failed to archive upload")
	}
}

func (s *Service) putArchive(ctx context.Context, upload domain.Upload) error {
	body, err := upload.Open()
	if err != nil {
		return err
	}
	defer body.Close()
	return s.archive.Put(ctx, objectKey(upload), body, upload.Size, upload.MimeType)
}

// IngestBatch runs every request independently. An unsupported or invalid
// file is reported as a failure without stopping the batch.
func (s *Service) IngestBatch(ctx context.Context, reqs []Request) BatchSummary {
	batch := BatchSummary{Results: []Summary{}, Failures: []FileFailure{}}
	for _, req := range reqs {
		summary, err := s.Ingest(ctx, req)
		if err != nil {
			batch.Failures = append(batch.Failures, FileFailure{FileName: req.Upload.FileName, Error: err.Error()})
			continue
		}
		batch.Results = append(batch.Results, summary)
	}
	batch.Success = len(batch.Failures) == 0
	for _, r := range batch.Results {
		if !r.Success {
			batch.Success = false
		}
	}
	return batch
}

// BatchSummary lists one summary per processed file.
type BatchSummary struct {
	Success  bool          `json:"success"`
	Results  []Summary     `json:"results"`
	Failures []FileFailure `json:"failures"`
}

type FileFailure struct {
	FileName string `json:"fileName"`
	Error    string `json:"error"`
}

// Submit archives the upload and queues it for the worker.
func (s *Service) Submit(ctx context.Context, req Request) (Accepted, error) {
	if s.queue == nil || s.archive == nil {
		return Accepted{}, ErrAsyncUnavailable
	}
	if req.Upload.ID == "" {
		req.Upload.ID = uuid.NewString()
	}
	if err := req.Upload.Validate(); err != nil {
		return Accepted{}, err
	}
	if _, _, err := s.dispatcher.Resolve(req.Upload); err != nil {
		return Accepted{}, err
	}

	if err := s.putArchive(ctx, req.Upload); err != nil {
		return Accepted{}, fmt.Errorf("archive upload: %w", err)
	}

	job := Job{
		UploadID:      req.Upload.ID,
		ObjectKey:     objectKey(req.Upload),
		FileName:      req.Upload.FileName,
		MimeType:      req.Upload.MimeType,
		Size:          req.Upload.Size,
		SpecifiedType: req.Upload.SpecifiedType,
		Options:       req.Options,
		UploadedBy:    req.UploadedBy,
	}
	if err := s.queue.Enqueue(ctx, job); err != nil {
		return Accepted{}, fmt.Errorf("enqueue upload: %w", err)
	}

	logging.FromContext(ctx, s.logger).WithFields(logrus.Fields{
		"upload_id": job.UploadID,
		"file":      job.FileName,
	}).Info("upload queued")

	return Accepted{Success: true, FileID: job.UploadID, FileName: job.FileName, Status: "queued"}, nil
}

// ProcessJob loads an archived upload and ingests it.
func (s *Service) ProcessJob(ctx context.Context, job Job) (Summary, error) {
	if s.archive == nil {
		return Summary{}, ErrAsyncUnavailable
	}
	body, err := s.archive.Get(ctx, job.ObjectKey)
	if err != nil {
		return Summary{}, fmt.Errorf("load archived upload: %w", err)
	}
	defer body.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, body); err != nil {
		return Summary{}, fmt.Errorf("read archived upload: %w", err)
	}

	return s.ingest(ctx, Request{
		Upload: domain.Upload{
			ID:            job.UploadID,
			FileName:      job.FileName,
			MimeType:      job.MimeType,
			Size:          int64(buf.Len()),
			Buffer:        buf.Bytes(),
			SpecifiedType: job.SpecifiedType,
		},
		Options:    job.Options,
		UploadedBy: job.UploadedBy,
	})
}

func objectKey(upload domain.Upload) string {
	return path.Join("uploads", upload.ID, path.Base(upload.FileName))
}

// metadataFromEnvelope recovers the processing metadata the dispatcher
// attached to the envelope.
func metadataFromEnvelope(env domain.Envelope, upload domain.Upload) domain.ProcessingMetadata {
	text := func(key string) string {
		v, _ := env.Metadata.Get(key)
		return v.Text()
	}
	meta := domain.ProcessingMetadata{
		UploadID:      upload.ID,
		OriginalName:  upload.FileName,
		MimeType:      upload.MimeType,
		Size:          upload.Size,
		Processor:     text("processor"),
		SourceFormat:  domain.Format(text("sourceFormat")),
		SpecifiedType: upload.SpecifiedType,
		DetectedType:  domain.Format(text("detectedType")),
	}
	if v, ok := env.Metadata.Get("size"); ok {
		if size, ok := v.AsNumber(); ok {
			meta.Size = int64(size)
		}
	}
	if v, ok := env.Metadata.Get("options"); ok {
		meta.Options, _ = v.AsMap()
	}
	return meta
}
