package processing

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"
)

// OCRResult is recognised text plus a 0-100 confidence score.
type OCRResult struct {
	Text       string
	Confidence float64
}

// OCREngine recognises text in an image file.
type OCREngine interface {
	Recognize(ctx context.Context, imagePath string) (OCRResult, error)
}

// TesseractEngine shells out to the tesseract CLI in TSV mode.
type TesseractEngine struct {
	command  Command
	language string
	runner   *Runner
}

// NewTesseractEngine wires the tesseract binary. An empty language means eng.
func NewTesseractEngine(command Command, language string, runner *Runner) *TesseractEngine {
	if command.Path == "" {
		command = Command{Path: "tesseract"}
	}
	if language == "" {
		language = "eng"
	}
	return &TesseractEngine{command: command, language: language, runner: runner}
}

func (e *TesseractEngine) Recognize(ctx context.Context, imagePath string) (OCRResult, error) {
	out, err := e.runner.Run(ctx, e.command, imagePath, "stdout", "-l", e.language, "tsv")
	if err != nil {
		return OCRResult{}, err
	}
	return parseTesseractTSV(out)
}

// maxTSVLine bounds a single tesseract output row.
const maxTSVLine = 4 * 1024 * 1024

type tsvWord struct {
	left, width, height int
	text                string
}

// parseTesseractTSV rebuilds line text from word rows. Wide horizontal gaps
// become double spaces so column layouts survive for the table heuristic.
func parseTesseractTSV(out []byte) (OCRResult, error) {
	scanner := bufio.NewScanner(bytes.NewReader(out))
	scanner.Buffer(make([]byte, 64*1024), maxTSVLine)

	var (
		lines      []string
		current    []tsvWord
		currentKey string
		confSum    float64
		confCount  int
		header     = true
	)

	flush := func() {
		if len(current) == 0 {
			return
		}
		var b strings.Builder
		for i, w := range current {
			if i > 0 {
				prev := current[i-1]
				gap := w.left - (prev.left + prev.width)
				if gap > w.height {
					b.WriteString("  ")
				} else {
					b.WriteString(" ")
				}
			}
			b.WriteString(w.text)
		}
		lines = append(lines, b.String())
		current = nil
	}

	for scanner.Scan() {
		if header {
			header = false
			continue
		}
		cols := strings.Split(scanner.Text(), "\t")
		if len(cols) < 12 {
			continue
		}
		text := strings.TrimSpace(cols[11])
		if text == "" {
			continue
		}
		conf, err := strconv.ParseFloat(cols[10], 64)
		if err != nil || conf < 0 {
			continue
		}

		key := cols[1] + "/" + cols[2] + "/" + cols[3] + "/" + cols[4]
		if key != currentKey {
			flush()
			currentKey = key
		}
		left, _ := strconv.Atoi(cols[6])
		width, _ := strconv.Atoi(cols[8])
		height, _ := strconv.Atoi(cols[9])
		current = append(current, tsvWord{left: left, width: width, height: height, text: text})

		confSum += conf
		confCount++
	}
	if err := scanner.Err(); err != nil {
		return OCRResult{}, fmt.Errorf("read tesseract output: %w", err)
	}
	flush()

	result := OCRResult{Text: strings.Join(lines, "\n")}
	if confCount > 0 {
		result.Confidence = confSum / float64(confCount)
	}
	return result, nil
}
