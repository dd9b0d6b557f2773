package processing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rpattn/vizflow/internal/domain"
	"github.com/rpattn/vizflow/internal/logging"
	"github.com/rpattn/vizflow/internal/record"

	"github.com/sirupsen/logrus"
)

// ErrUnsupportedFormat is returned when no processor matches an upload.
var ErrUnsupportedFormat = errors.New("unsupported file format")

// Dispatcher routes uploads to the processor registered for their format.
type Dispatcher struct {
	processors map[domain.Format]Processor
	logger     *logrus.Logger
	now        func() time.Time
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger used for per-upload processing lines.
func WithLogger(logger *logrus.Logger) Option {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) {
		if now != nil {
			d.now = now
		}
	}
}

// NewDispatcher creates a dispatcher over a fixed processor registry.
func NewDispatcher(processors map[domain.Format]Processor, opts ...Option) *Dispatcher {
	registry := make(map[domain.Format]Processor, len(processors))
	for format, processor := range processors {
		if processor != nil && format.Known() {
			registry[format] = processor
		}
	}
	d := &Dispatcher{
		processors: registry,
		logger:     logrus.StandardLogger(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Options are caller supplied settings for one processing call.
type Options struct {
	UploadID string
	Extra    *record.Map
}

// Supports reports whether a processor is registered for the format.
func (d *Dispatcher) Supports(format domain.Format) bool {
	_, ok := d.processors[format]
	return ok
}

// Resolve returns the format and processor for an upload.
func (d *Dispatcher) Resolve(upload domain.Upload) (domain.Format, Processor, error) {
	format := ResolveFormat(upload.MimeType, upload.FileName, upload.SpecifiedType)
	processor, ok := d.processors[format]
	if !ok {
		return format, nil, fmt.Errorf("%w: %s (%s)", ErrUnsupportedFormat, upload.FileName, upload.MimeType)
	}
	return format, processor, nil
}

// ProcessFile runs the matching processor and wraps its outcome in an
// envelope. Only an unsupported format or an invalid descriptor produce an
// error; processor failures become a failure envelope.
func (d *Dispatcher) ProcessFile(ctx context.Context, upload domain.Upload, opts Options) (domain.Envelope, error) {
	if err := upload.Validate(); err != nil {
		return domain.Envelope{}, err
	}

	format, processor, err := d.Resolve(upload)
	if err != nil {
		return domain.Envelope{}, err
	}

	size := upload.Size
	if size == 0 && upload.Buffer != nil {
		size = int64(len(upload.Buffer))
	}

	start := d.now()
	meta := domain.ProcessingMetadata{
		UploadID:      opts.UploadID,
		OriginalName:  upload.FileName,
		MimeType:      upload.MimeType,
		Size:          size,
		UploadedAt:    start,
		Processor:     processor.Name(),
		SourceFormat:  format,
		SpecifiedType: upload.SpecifiedType,
		DetectedType:  ResolveFormat(upload.MimeType, upload.FileName, ""),
		Options:       opts.Extra,
	}

	result, procErr := d.invoke(ctx, processor, upload, meta)
	elapsed := d.now().Sub(start)

	entry := logging.FromContext(ctx, d.logger).WithFields(logrus.Fields{
		"file":      upload.FileName,
		"processor": processor.Name(),
		"format":    string(format),
		"duration":  elapsed.String(),
	})

	if procErr != nil {
		entry.WithError(procErr).Warn("processing failed")
		return d.failure(meta, procErr, elapsed), nil
	}

	data := result.Data
	if data == nil {
		data = []*record.Map{}
	}
	errs := result.Errors
	if errs == nil {
		errs = []domain.ErrorEntry{}
	}

	merged := meta.ToMap()
	merged.Merge(result.Metadata)
	setCounts(merged, elapsed, len(data), len(errs))

	entry.WithFields(logrus.Fields{
		"records": len(data),
		"errors":  len(errs),
	}).Info("processing completed")

	return domain.Envelope{
		Success:  true,
		Data:     data,
		Metadata: merged,
		Errors:   errs,
	}, nil
}

func (d *Dispatcher) invoke(ctx context.Context, processor Processor, upload domain.Upload, meta domain.ProcessingMetadata) (result domain.ProcessingResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s panicked: %v", processor.Name(), r)
		}
	}()
	return processor.Process(ctx, upload, meta)
}

func (d *Dispatcher) failure(meta domain.ProcessingMetadata, cause error, elapsed time.Duration) domain.Envelope {
	ts := d.now().UTC()
	errs := []domain.ErrorEntry{{
		Type:      domain.ErrorTypeProcessing,
		Message:   cause.Error(),
		Timestamp: &ts,
	}}

	merged := meta.ToMap()
	setCounts(merged, elapsed, 0, len(errs))

	return domain.Envelope{
		Success:  false,
		Data:     []*record.Map{},
		Metadata: merged,
		Errors:   errs,
	}
}

func setCounts(meta *record.Map, elapsed time.Duration, records, errs int) {
	meta.Set("processingTime", record.Number(float64(elapsed.Milliseconds())))
	meta.Set("recordCount", record.Int(records))
	meta.Set("errorCount", record.Int(errs))
	meta.Set("totalItems", record.Int(records+errs))
}
