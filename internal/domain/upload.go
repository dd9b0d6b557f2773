package domain

import (
	"bytes"
	"errors"
	"io"
	"os"
)

// ErrInvalidUpload is returned when an upload descriptor carries no usable content.
var ErrInvalidUpload = errors.New("invalid upload")

// Upload describes a received file. Exactly one of Path or Buffer is set.
type Upload struct {
	ID            string
	FileName      string
	MimeType      string
	Size          int64
	Path          string
	Buffer        []byte
	SpecifiedType string
}

// Validate enforces that exactly one content source is present.
func (u Upload) Validate() error {
	hasPath := u.Path != ""
	hasBuffer := u.Buffer != nil
	switch {
	case hasPath && hasBuffer:
		return errors.Join(ErrInvalidUpload, errors.New("both path and buffer supplied"))
	case !hasPath && !hasBuffer:
		return errors.Join(ErrInvalidUpload, errors.New("no content supplied"))
	}
	return nil
}

// Open returns a reader over the upload content.
func (u Upload) Open() (io.ReadCloser, error) {
	if u.Path != "" {
		return os.Open(u.Path)
	}
	return io.NopCloser(bytes.NewReader(u.Buffer)), nil
}

// Bytes loads the full upload content.
func (u Upload) Bytes() ([]byte, error) {
	if u.Path == "" {
		return u.Buffer, nil
	}
	return os.ReadFile(u.Path)
}
