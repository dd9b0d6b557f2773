package processing

import (
	"bytes"
	"context"
	"fmt"
	"testing"

	"github.com/rpattn/vizflow/internal/domain"

	pdf "github.com/ledongthuc/pdf"
)

// buildPDF writes a one-page PDF whose page content is the given stream.
func buildPDF(content string) []byte {
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 4 0 R >> >> /Contents 5 0 R >>",
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content),
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

func TestPDFProcessorKeepsLineBreaks(t *testing.T) {
	data := buildPDF("BT /F1 12 Tf 72 720 Td (Name: John) Tj 0 -14 Td (Age: 30) Tj ET")

	result, err := NewPDFProcessor().Process(context.Background(), domain.Upload{FileName: "card.pdf", Buffer: data}, domain.ProcessingMetadata{})
	if err != nil {
		t.Fatalf("process returned error: %v", err)
	}
	if len(result.Data) != 1 {
		t.Fatalf("expected one record, got %d", len(result.Data))
	}
	if v, _ := result.Data[0].Get("name"); v.Text() != "John" {
		got, _ := result.Data[0].MarshalJSON()
		t.Fatalf("unexpected record %s", got)
	}
	if v, _ := result.Data[0].Get("age"); v.Text() != "30" {
		t.Fatalf("unexpected age %q", v.Text())
	}
	if v, _ := result.Metadata.Get("pages"); v.Text() != "1" {
		t.Fatalf("unexpected page count %q", v.Text())
	}
}

func TestPDFProcessorSeparatesColumnsOnOneLine(t *testing.T) {
	data := buildPDF("BT /F1 12 Tf 72 720 Td (Item) Tj 100 0 Td (Qty) Tj -100 -14 Td (Widget) Tj 100 0 Td (2) Tj ET")

	result, err := NewPDFProcessor().Process(context.Background(), domain.Upload{FileName: "table.pdf", Buffer: data}, domain.ProcessingMetadata{})
	if err != nil {
		t.Fatalf("process returned error: %v", err)
	}
	if len(result.Data) == 0 {
		t.Fatalf("expected a table record")
	}
	if v, _ := result.Data[0].Get("Qty"); v.Text() != "2" {
		got, _ := result.Data[0].MarshalJSON()
		t.Fatalf("unexpected table record %s", got)
	}
}

func TestPDFProcessorRejectsInvalidPDF(t *testing.T) {
	_, err := NewPDFProcessor().Process(context.Background(), domain.Upload{FileName: "x.pdf", Buffer: []byte("not a pdf")}, domain.ProcessingMetadata{})
	if err == nil {
		t.Fatalf("expected error for invalid pdf")
	}
}

func TestTextLinesSpacing(t *testing.T) {
	texts := []pdf.Text{
		{S: "a", X: 10, Y: 700, W: 6, FontSize: 12},
		{S: "b", X: 16, Y: 700, W: 6, FontSize: 12},
		{S: "c", X: 27, Y: 700, W: 6, FontSize: 12},
		{S: "d", X: 80, Y: 700, W: 6, FontSize: 12},
		{S: "\n", X: 86, Y: 700, FontSize: 12},
		{S: "e", X: 10, Y: 686, W: 6, FontSize: 12},
	}

	lines := textLines(texts)
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %q", lines)
	}
	if lines[0] != "ab c  d" || lines[1] != "e" {
		t.Fatalf("unexpected lines %q", lines)
	}
}
