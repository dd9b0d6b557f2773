package processing

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"os"
	"strings"

	"github.com/rpattn/vizflow/internal/domain"
	"github.com/rpattn/vizflow/internal/record"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

// ImageProcessor preprocesses an image, runs OCR and mines the text.
type ImageProcessor struct {
	engine  OCREngine
	tempDir string
}

// NewImageProcessor wires an OCR engine. Preprocessed images are written to tempDir.
func NewImageProcessor(engine OCREngine, tempDir string) *ImageProcessor {
	return &ImageProcessor{engine: engine, tempDir: tempDir}
}

func (p *ImageProcessor) Name() string { return "image_processor" }

type imageInfo struct {
	width, height int
	format        string
	channels      int
}

func (i imageInfo) toMap() *record.Map {
	m := record.NewMap()
	m.Set("width", record.Int(i.width))
	m.Set("height", record.Int(i.height))
	m.Set("format", record.String(i.format))
	m.Set("channels", record.Int(i.channels))
	return m
}

func (p *ImageProcessor) Process(ctx context.Context, file domain.Upload, meta domain.ProcessingMetadata) (domain.ProcessingResult, error) {
	if p.engine == nil {
		return domain.ProcessingResult{}, errors.New("no OCR engine configured")
	}

	data, err := file.Bytes()
	if err != nil {
		return domain.ProcessingResult{}, fmt.Errorf("failed to read image: %w", err)
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return domain.ProcessingResult{}, fmt.Errorf("failed to decode image: %w", err)
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return domain.ProcessingResult{}, fmt.Errorf("failed to decode image: %w", err)
	}

	info := imageInfo{
		width:    img.Bounds().Dx(),
		height:   img.Bounds().Dy(),
		format:   strings.ToUpper(format),
		channels: channelCount(cfg.ColorModel),
	}

	path, cleanup, err := p.writePreprocessed(img)
	if err != nil {
		return domain.ProcessingResult{}, err
	}
	defer cleanup()

	ocr, err := p.engine.Recognize(ctx, path)
	if err != nil {
		return domain.ProcessingResult{}, fmt.Errorf("ocr failed: %w", err)
	}

	return resultFromOCR(ocr, info), nil
}

func (p *ImageProcessor) writePreprocessed(img image.Image) (string, func(), error) {
	processed := preprocess(img)

	f, err := os.CreateTemp(p.tempDir, "vizflow-ocr-*.png")
	if err != nil {
		return "", nil, fmt.Errorf("failed to create temp image: %w", err)
	}
	cleanup := func() { _ = os.Remove(f.Name()) }

	if err := imaging.Encode(f, processed, imaging.PNG); err != nil {
		f.Close()
		cleanup()
		return "", nil, fmt.Errorf("failed to encode preprocessed image: %w", err)
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("failed to close temp image: %w", err)
	}
	return f.Name(), cleanup, nil
}

// preprocess converts to greyscale, normalizes contrast and sharpens.
func preprocess(img image.Image) image.Image {
	out := normalize(imaging.Grayscale(img))
	return imaging.Sharpen(out, 1.0)
}

// normalize stretches the luminance range of a greyscale image to 0-255.
func normalize(img *image.NRGBA) *image.NRGBA {
	lo, hi := uint8(255), uint8(0)
	for i := 0; i < len(img.Pix); i += 4 {
		v := img.Pix[i]
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	if hi <= lo || (lo == 0 && hi == 255) {
		return img
	}

	span := int(hi) - int(lo)
	return imaging.AdjustFunc(img, func(c color.NRGBA) color.NRGBA {
		v := uint8((int(c.R) - int(lo)) * 255 / span)
		return color.NRGBA{R: v, G: v, B: v, A: c.A}
	})
}

func resultFromOCR(ocr OCRResult, info imageInfo) domain.ProcessingResult {
	records := extractStructured(ocr.Text)
	method := "ocr_heuristic"
	if len(records) == 0 {
		content := strings.TrimSpace(ocr.Text)
		fallback := record.NewMap()
		fallback.Set("type", record.String("ocr_text"))
		fallback.Set("content", record.String(content))
		fallback.Set("confidence", record.Number(ocr.Confidence))
		fallback.Set("word_count", record.Int(len(strings.Fields(content))))
		records = []*record.Map{fallback}
		method = "ocr_text"
	}
	for _, rec := range records {
		rec.Set("_image", record.MapValue(info.toMap()))
	}

	metadata := record.NewMap()
	metadata.Set("ocrConfidence", record.Number(ocr.Confidence))
	metadata.Set("width", record.Int(info.width))
	metadata.Set("height", record.Int(info.height))
	metadata.Set("format", record.String(info.format))
	metadata.Set("channels", record.Int(info.channels))
	metadata.Set("extractionMethod", record.String(method))

	return domain.ProcessingResult{
		Data:     records,
		Errors:   []domain.ErrorEntry{},
		Metadata: metadata,
	}
}

func channelCount(model color.Model) int {
	if _, ok := model.(color.Palette); ok {
		return 3
	}
	switch model {
	case color.GrayModel, color.Gray16Model:
		return 1
	case color.YCbCrModel:
		return 3
	default:
		return 4
	}
}
