package processing

import (
	"time"

	"github.com/rpattn/vizflow/internal/domain"
)

// Settings configures the standard processor set.
type Settings struct {
	CSVCommand  string
	XMLCommand  string
	OCRCommand  string
	OCRLanguage string
	Timeout     time.Duration
	TempDir     string
}

// NewProcessors builds one processor per supported format.
func NewProcessors(settings Settings) map[domain.Format]Processor {
	runner := &Runner{Timeout: settings.Timeout, TempDir: settings.TempDir}
	ocr := NewTesseractEngine(ParseCommand(settings.OCRCommand), settings.OCRLanguage, runner)

	return map[domain.Format]Processor{
		domain.FormatCSV:   NewCSVProcessor(ParseCommand(settings.CSVCommand), runner),
		domain.FormatXML:   NewXMLProcessor(ParseCommand(settings.XMLCommand), runner),
		domain.FormatExcel: NewExcelProcessor(),
		domain.FormatPDF:   NewPDFProcessor(),
		domain.FormatImage: NewImageProcessor(ocr, settings.TempDir),
	}
}
