package ingestion

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rpattn/vizflow/internal/domain"
	"github.com/rpattn/vizflow/internal/logging"
	"github.com/rpattn/vizflow/internal/processing"
	"github.com/rpattn/vizflow/internal/record"

	"github.com/docker/go-units"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const maxFieldSize = 1 << 20

var errFileTooLarge = errors.New("file exceeds upload limit")

// Handler exposes ingestion as HTTP endpoints.
type Handler struct {
	service *Service
	maxSize int64
	tempDir string
	logger  *logrus.Logger
}

// NewHTTPHandler wraps the service with the upload endpoints.
func NewHTTPHandler(service *Service, maxSize int64, tempDir string, logger *logrus.Logger) *Handler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Handler{service: service, maxSize: maxSize, tempDir: tempDir, logger: logger}
}

type uploadForm struct {
	files      []domain.Upload
	fileType   string
	options    *record.Map
	uploadedBy string
	async      bool
}

func (f *uploadForm) cleanup() {
	for _, u := range f.files {
		if u.Path != "" {
			_ = os.Remove(u.Path)
		}
	}
}

func (f *uploadForm) request(upload domain.Upload) Request {
	upload.SpecifiedType = f.fileType
	return Request{Upload: upload, Options: f.options, UploadedBy: f.uploadedBy}
}

// Upload handles POST /api/upload.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	form, err := h.readForm(r)
	defer form.cleanup()
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if len(form.files) != 1 {
		writeJSON(w, http.StatusBadRequest, errorBody("exactly one file is required"))
		return
	}
	req := form.request(form.files[0])

	if form.async {
		accepted, err := h.service.Submit(r.Context(), req)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusAccepted, accepted)
		return
	}

	summary, err := h.service.Ingest(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	status := http.StatusOK
	if !summary.Success && summary.SuccessfulRecords == 0 {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, summary)
}

// UploadBatch handles POST /api/upload/batch.
func (h *Handler) UploadBatch(w http.ResponseWriter, r *http.Request) {
	form, err := h.readForm(r)
	defer form.cleanup()
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if len(form.files) == 0 {
		writeJSON(w, http.StatusBadRequest, errorBody("at least one file is required"))
		return
	}

	reqs := make([]Request, len(form.files))
	for i, upload := range form.files {
		reqs[i] = form.request(upload)
	}
	writeJSON(w, http.StatusOK, h.service.IngestBatch(r.Context(), reqs))
}

// readForm streams every file part to a temp file, enforcing the size limit
// while copying. The returned form is never nil.
func (h *Handler) readForm(r *http.Request) (*uploadForm, error) {
	form := &uploadForm{}
	reader, err := r.MultipartReader()
	if err != nil {
		return form, fmt.Errorf("%w: invalid form data: %v", domain.ErrInvalidUpload, err)
	}

	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return form, fmt.Errorf("%w: invalid form data: %v", domain.ErrInvalidUpload, err)
		}

		if part.FileName() != "" {
			if part.FormName() != "file" {
				part.Close()
				continue
			}
			upload, err := h.spool(part)
			part.Close()
			if upload.Path != "" {
				form.files = append(form.files, upload)
			}
			if err != nil {
				return form, err
			}
			continue
		}

		value, err := readField(part)
		part.Close()
		if err != nil {
			return form, err
		}
		switch part.FormName() {
		case "fileType":
			form.fileType = strings.TrimSpace(value)
		case "uploadedBy":
			form.uploadedBy = strings.TrimSpace(value)
		case "async":
			if value = strings.TrimSpace(value); value != "" {
				async, err := strconv.ParseBool(value)
				if err != nil {
					return form, fmt.Errorf("%w: async must be a boolean", domain.ErrInvalidUpload)
				}
				form.async = async
			}
		case "options":
			if strings.TrimSpace(value) == "" {
				continue
			}
			opts := record.NewMap()
			if err := opts.UnmarshalJSON([]byte(value)); err != nil {
				return form, fmt.Errorf("%w: options must be a JSON object", domain.ErrInvalidUpload)
			}
			form.options = opts
		}
	}
	return form, nil
}

func (h *Handler) spool(part *multipart.Part) (domain.Upload, error) {
	name := filepath.Base(part.FileName())
	tmp, err := os.CreateTemp(h.tempDir, "upload-*"+filepath.Ext(name))
	if err != nil {
		return domain.Upload{}, fmt.Errorf("create temp file: %w", err)
	}
	upload := domain.Upload{
		ID:       uuid.NewString(),
		FileName: name,
		MimeType: part.Header.Get("Content-Type"),
		Path:     tmp.Name(),
	}

	limit := h.maxSize
	if limit <= 0 {
		limit = 50 * units.MiB
	}
	written, copyErr := io.Copy(tmp, io.LimitReader(part, limit+1))
	closeErr := tmp.Close()
	upload.Size = written
	if copyErr != nil {
		return upload, fmt.Errorf("store upload: %w", copyErr)
	}
	if closeErr != nil {
		return upload, fmt.Errorf("store upload: %w", closeErr)
	}
	if written > limit {
		return upload, fmt.Errorf("%w: %s is larger than %s", errFileTooLarge, name, units.BytesSize(float64(limit)))
	}
	if written == 0 {
		return upload, fmt.Errorf("%w: %s is empty", domain.ErrInvalidUpload, name)
	}
	if upload.MimeType == "" || upload.MimeType == "application/octet-stream" {
		if mime := processing.MIMEForFile(name); mime != "" {
			upload.MimeType = mime
		}
	}
	return upload, nil
}

func readField(part *multipart.Part) (string, error) {
	data, err := io.ReadAll(io.LimitReader(part, maxFieldSize+1))
	if err != nil {
		return "", fmt.Errorf("%w: read field %s: %v", domain.ErrInvalidUpload, part.FormName(), err)
	}
	if len(data) > maxFieldSize {
		return "", fmt.Errorf("%w: field %s too large", domain.ErrInvalidUpload, part.FormName())
	}
	return string(data), nil
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, processing.ErrUnsupportedFormat):
		status = http.StatusUnsupportedMediaType
	case errors.Is(err, errFileTooLarge):
		status = http.StatusRequestEntityTooLarge
	case errors.Is(err, domain.ErrInvalidUpload):
		status = http.StatusBadRequest
	case errors.Is(err, ErrAsyncUnavailable):
		status = http.StatusServiceUnavailable
	}

	entry := logging.FromContext(r.Context(), h.logger).WithError(err)
	if status == http.StatusInternalServerError {
		entry.Error("upload failed")
		writeJSON(w, status, errorBody("upload failed"))
		return
	}
	entry.Warn("upload rejected")
	writeJSON(w, status, errorBody(err.Error()))
}

func errorBody(message string) map[string]any {
	return map[string]any{"success": false, "error": message}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(payload)
}
