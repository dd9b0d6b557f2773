package processing

import (
	"path/filepath"
	"strings"

	"github.com/rpattn/vizflow/internal/domain"
)

var mimeFormats = map[string]domain.Format{
	"text/csv":                    domain.FormatCSV,
	"application/csv":             domain.FormatCSV,
	"text/comma-separated-values": domain.FormatCSV,

	"application/vnd.ms-excel": domain.FormatExcel,
	"application/excel":        domain.FormatExcel,
	"application/x-excel":      domain.FormatExcel,
	"application/x-msexcel":    domain.FormatExcel,

	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": domain.FormatExcel,

	"application/xml": domain.FormatXML,
	"text/xml":        domain.FormatXML,

	"application/pdf": domain.FormatPDF,

	"image/*":    domain.FormatImage,
	"image/jpeg": domain.FormatImage,
	"image/jpg":  domain.FormatImage,
	"image/png":  domain.FormatImage,
	"image/gif":  domain.FormatImage,
	"image/bmp":  domain.FormatImage,
	"image/tiff": domain.FormatImage,
	"image/webp": domain.FormatImage,
}

var extensionMIMEs = map[string]string{
	"csv":  "text/csv",
	"xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	"xls":  "application/vnd.ms-excel",
	"xml":  "application/xml",
	"pdf":  "application/pdf",
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"gif":  "image/gif",
	"bmp":  "image/bmp",
	"tif":  "image/tiff",
	"tiff": "image/tiff",
	"webp": "image/webp",
}

// ResolveFormat picks the processor family for an upload. A valid specified
// label wins, then the declared MIME type, then the file extension.
func ResolveFormat(mimeType, fileName, specifiedType string) domain.Format {
	if strings.TrimSpace(specifiedType) != "" {
		if f := domain.ParseFormat(specifiedType); f.Known() {
			return f
		}
	}
	if f, ok := formatForMIME(mimeType); ok {
		return f
	}
	if mt := MIMEForFile(fileName); mt != "" {
		if f, ok := formatForMIME(mt); ok {
			return f
		}
	}
	return domain.FormatUnknown
}

// MIMEForFile returns the MIME type implied by the file extension, or "".
func MIMEForFile(fileName string) string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(fileName), "."))
	if ext == "" {
		return ""
	}
	return extensionMIMEs[ext]
}

func formatForMIME(mimeType string) (domain.Format, bool) {
	normalized := strings.ToLower(strings.TrimSpace(mimeType))
	if idx := strings.Index(normalized, ";"); idx >= 0 {
		normalized = strings.TrimSpace(normalized[:idx])
	}
	if normalized == "" {
		return "", false
	}
	f, ok := mimeFormats[normalized]
	return f, ok
}
