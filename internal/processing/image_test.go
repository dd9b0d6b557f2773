package processing

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"strings"
	"testing"

	"github.com/rpattn/vizflow/internal/domain"
)

type fakeOCR struct {
	result OCRResult
	err    error
	seen   string
}

func (f *fakeOCR) Recognize(ctx context.Context, imagePath string) (OCRResult, error) {
	f.seen = imagePath
	if _, err := os.Stat(imagePath); err != nil {
		return OCRResult{}, err
	}
	return f.result, f.err
}

func samplePNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 10, 8))
	for x := 0; x < 10; x++ {
		img.Set(x, 4, color.NRGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func TestImageProcessorAttachesImageInfo(t *testing.T) {
	engine := &fakeOCR{result: OCRResult{Text: "Invoice: 42\nTotal: 10.00", Confidence: 91.5}}
	processor := NewImageProcessor(engine, t.TempDir())

	result, err := processor.Process(context.Background(), domain.Upload{
		FileName: "scan.png",
		Buffer:   samplePNG(t),
	}, domain.ProcessingMetadata{})
	if err != nil {
		t.Fatalf("process returned error: %v", err)
	}

	if len(result.Data) != 1 {
		t.Fatalf("expected 1 record, got %d", len(result.Data))
	}
	rec := result.Data[0]
	if v, _ := rec.Get("invoice"); v.Text() != "42" {
		t.Fatalf("unexpected invoice %q", v.Text())
	}
	info, ok := rec.Get("_image")
	if !ok {
		t.Fatalf("expected _image on record")
	}
	m, _ := info.AsMap()
	if w, _ := m.Get("width"); w.Text() != "10" {
		t.Fatalf("expected width 10, got %q", w.Text())
	}
	if f, _ := m.Get("format"); f.Text() != "PNG" {
		t.Fatalf("expected PNG format, got %q", f.Text())
	}
	if v, _ := result.Metadata.Get("ocrConfidence"); v.Text() != "91.5" {
		t.Fatalf("unexpected confidence %q", v.Text())
	}
	if _, err := os.Stat(engine.seen); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected preprocessed image to be removed, stat err: %v", err)
	}
}

func TestImageProcessorOCRTextFallback(t *testing.T) {
	engine := &fakeOCR{result: OCRResult{Text: "hello world", Confidence: 40}}
	processor := NewImageProcessor(engine, t.TempDir())

	result, err := processor.Process(context.Background(), domain.Upload{FileName: "note.png", Buffer: samplePNG(t)}, domain.ProcessingMetadata{})
	if err != nil {
		t.Fatalf("process returned error: %v", err)
	}
	rec := result.Data[0]
	if v, _ := rec.Get("type"); v.Text() != "ocr_text" {
		t.Fatalf("expected ocr_text fallback, got %q", v.Text())
	}
	if v, _ := rec.Get("content"); v.Text() != "hello world" {
		t.Fatalf("unexpected content %q", v.Text())
	}
	if _, ok := rec.Get("_image"); !ok {
		t.Fatalf("fallback record should carry image info")
	}
}

func TestImageProcessorOCRFailure(t *testing.T) {
	engine := &fakeOCR{err: errors.New("tesseract missing")}
	processor := NewImageProcessor(engine, t.TempDir())

	if _, err := processor.Process(context.Background(), domain.Upload{FileName: "x.png", Buffer: samplePNG(t)}, domain.ProcessingMetadata{}); err == nil {
		t.Fatalf("expected OCR error to surface")
	}
}

func TestParseTesseractTSV(t *testing.T) {
	tsv := "level\tpage_num\tblock_num\tpar_num\tline_num\tword_num\tleft\ttop\twidth\theight\tconf\ttext\n" +
		"5\t1\t1\t1\t1\t1\t10\t10\t40\t12\t90\tName:\n" +
		"5\t1\t1\t1\t1\t2\t55\t10\t30\t12\t80\tJohn\n" +
		"5\t1\t1\t1\t2\t1\t10\t30\t40\t12\t70\tItem\n" +
		"5\t1\t1\t1\t2\t2\t120\t30\t30\t12\t60\tQty\n" +
		"4\t1\t1\t1\t3\t0\t10\t50\t100\t12\t-1\t\n"

	result, err := parseTesseractTSV([]byte(tsv))
	if err != nil {
		t.Fatalf("parse returned error: %v", err)
	}
	if result.Text != "Name: John\nItem  Qty" {
		t.Fatalf("unexpected text %q", result.Text)
	}
	if result.Confidence != 75 {
		t.Fatalf("expected mean confidence 75, got %v", result.Confidence)
	}
}

func TestParseTesseractTSVReportsOversizedRow(t *testing.T) {
	tsv := "level\tpage_num\tblock_num\tpar_num\tline_num\tword_num\tleft\ttop\twidth\theight\tconf\ttext\n" +
		"5\t1\t1\t1\t1\t1\t10\t10\t40\t12\t90\t" + strings.Repeat("x", maxTSVLine+1) + "\n"

	_, err := parseTesseractTSV([]byte(tsv))
	if !errors.Is(err, bufio.ErrTooLong) {
		t.Fatalf("expected ErrTooLong, got %v", err)
	}
}

func TestNormalizeStretchesLuminance(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 3, 1))
	img.Set(0, 0, color.NRGBA{R: 100, G: 100, B: 100, A: 255})
	img.Set(1, 0, color.NRGBA{R: 125, G: 125, B: 125, A: 255})
	img.Set(2, 0, color.NRGBA{R: 150, G: 150, B: 150, A: 255})

	out := normalize(img)

	want := []uint8{0, 127, 255}
	for x, w := range want {
		if got := out.NRGBAAt(x, 0); got.R != w || got.G != w || got.B != w || got.A != 255 {
			t.Fatalf("pixel %d: expected %d, got %+v", x, w, got)
		}
	}
}

func TestNormalizeLeavesFlatImage(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	for i := range img.Pix {
		img.Pix[i] = 80
	}
	if out := normalize(img); out.NRGBAAt(1, 1).R != 80 {
		t.Fatalf("flat image should be unchanged, got %+v", out.NRGBAAt(1, 1))
	}
}
