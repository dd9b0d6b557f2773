package processing

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/rpattn/vizflow/internal/domain"
	"github.com/rpattn/vizflow/internal/record"

	pdf "github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// PDFProcessor extracts text from PDFs and mines it for structured records.
type PDFProcessor struct{}

func NewPDFProcessor() *PDFProcessor { return &PDFProcessor{} }

func (p *PDFProcessor) Name() string { return "pdf_processor" }

func (p *PDFProcessor) Process(ctx context.Context, file domain.Upload, meta domain.ProcessingMetadata) (domain.ProcessingResult, error) {
	data, err := file.Bytes()
	if err != nil {
		return domain.ProcessingResult{}, fmt.Errorf("failed to read pdf: %w", err)
	}

	pages, err := api.PageCount(bytes.NewReader(data), model.NewDefaultConfiguration())
	if err != nil {
		return domain.ProcessingResult{}, fmt.Errorf("invalid pdf: %w", err)
	}

	text, err := extractPDFText(ctx, data)
	if err != nil {
		return domain.ProcessingResult{}, err
	}

	return resultFromText(text, pages), nil
}

func extractPDFText(ctx context.Context, data []byte) (string, error) {
	doc, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to open pdf: %w", err)
	}

	var builder strings.Builder
	total := doc.NumPage()
	for page := 1; page <= total; page++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		p := doc.Page(page)
		if p.V.IsNull() {
			continue
		}
		texts, err := pageGlyphs(p)
		if err != nil {
			return "", fmt.Errorf("failed to extract text from page %d: %w", page, err)
		}
		for _, line := range textLines(texts) {
			builder.WriteString(line)
			builder.WriteString("\n")
		}
	}
	return builder.String(), nil
}

// pageGlyphs returns the positioned glyphs of a page in content stream order.
// The reader panics on malformed operators.
func pageGlyphs(p pdf.Page) (texts []pdf.Text, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed content stream: %v", r)
		}
	}()
	return p.Content().Text, nil
}

// textLines rebuilds lines from glyphs. A baseline change starts a new line;
// on the same baseline a gap wider than the font size becomes two spaces so
// the table heuristic sees separate columns, a smaller gap one space.
func textLines(texts []pdf.Text) []string {
	var (
		lines   []string
		current strings.Builder
		prev    *pdf.Text
	)
	flush := func() {
		if line := strings.TrimRight(current.String(), " "); strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
		current.Reset()
	}

	for i := range texts {
		t := &texts[i]
		if t.S == "\n" || t.S == "\r" {
			continue
		}
		if prev != nil {
			size := math.Max(t.FontSize, 1)
			if math.Abs(t.Y-prev.Y) > size/2 {
				flush()
			} else if gap := t.X - (prev.X + prev.W); gap > size {
				current.WriteString("  ")
			} else if gap > size/5 && t.S != " " && !strings.HasSuffix(current.String(), " ") {
				current.WriteString(" ")
			}
		}
		current.WriteString(t.S)
		prev = t
	}
	flush()
	return lines
}

func resultFromText(text string, pages int) domain.ProcessingResult {
	records := extractStructured(text)
	method := "heuristic"
	if len(records) == 0 {
		fallback := record.NewMap()
		fallback.Set("type", record.String("full_text"))
		fallback.Set("content", record.String(strings.TrimSpace(text)))
		fallback.Set("pages", record.Int(pages))
		records = []*record.Map{fallback}
		method = "full_text"
	}

	metadata := record.NewMap()
	metadata.Set("pages", record.Int(pages))
	metadata.Set("textLength", record.Int(len(text)))
	metadata.Set("extractionMethod", record.String(method))

	return domain.ProcessingResult{
		Data:     records,
		Errors:   []domain.ErrorEntry{},
		Metadata: metadata,
	}
}
