package domain

import "strings"

// Format identifies the processor family that handles an upload.
type Format string

const (
	FormatCSV     Format = "csv"
	FormatExcel   Format = "excel"
	FormatXML     Format = "xml"
	FormatPDF     Format = "pdf"
	FormatImage   Format = "image"
	FormatUnknown Format = "unknown"
)

// Formats lists every supported format in registry order.
var Formats = []Format{FormatCSV, FormatExcel, FormatXML, FormatPDF, FormatImage}

// ParseFormat maps a caller supplied label onto a known format.
// Matching is case-insensitive; anything else yields FormatUnknown.
func ParseFormat(label string) Format {
	normalized := Format(strings.ToLower(strings.TrimSpace(label)))
	for _, f := range Formats {
		if f == normalized {
			return f
		}
	}
	return FormatUnknown
}

func (f Format) Known() bool {
	return f != "" && f != FormatUnknown
}
