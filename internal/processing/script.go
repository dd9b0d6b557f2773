package processing

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/rpattn/vizflow/internal/domain"
	"github.com/rpattn/vizflow/internal/record"
)

// ScriptProcessor delegates extraction to an external executable that prints
// {"processedData": [...], "errorLogs": [...]} on stdout.
type ScriptProcessor struct {
	name    string
	command Command
	runner  *Runner
}

// NewCSVProcessor wires the external CSV script.
func NewCSVProcessor(command Command, runner *Runner) *ScriptProcessor {
	return &ScriptProcessor{name: "csv_processor", command: command, runner: runner}
}

// NewXMLProcessor wires the external XML script.
func NewXMLProcessor(command Command, runner *Runner) *ScriptProcessor {
	return &ScriptProcessor{name: "xml_processor", command: command, runner: runner}
}

func (p *ScriptProcessor) Name() string { return p.name }

func (p *ScriptProcessor) Process(ctx context.Context, file domain.Upload, meta domain.ProcessingMetadata) (domain.ProcessingResult, error) {
	path, cleanup, err := p.runner.materialize(file)
	if err != nil {
		return domain.ProcessingResult{}, err
	}
	defer cleanup()

	out, err := p.runner.Run(ctx, p.command, path)
	if err != nil {
		return domain.ProcessingResult{}, err
	}

	data, errs, err := parseScriptOutput(out)
	if err != nil {
		return domain.ProcessingResult{}, fmt.Errorf("%s produced invalid output: %w", p.name, err)
	}

	metadata := record.NewMap()
	metadata.Set("extractionMethod", record.String("external_script"))
	metadata.Set("script", record.String(p.command.String()))
	metadata.Set("processedCount", record.Int(len(data)))
	metadata.Set("errorLogCount", record.Int(len(errs)))

	return domain.ProcessingResult{Data: data, Errors: errs, Metadata: metadata}, nil
}

func parseScriptOutput(out []byte) ([]*record.Map, []domain.ErrorEntry, error) {
	trimmed := bytes.TrimSpace(out)
	if len(trimmed) == 0 {
		return nil, nil, errors.New("empty output")
	}

	var root record.Map
	if err := root.UnmarshalJSON(trimmed); err != nil {
		return nil, nil, err
	}

	processed, ok := root.Get("processedData")
	if !ok {
		return nil, nil, errors.New("missing processedData")
	}
	items, ok := processed.AsList()
	if !ok {
		return nil, nil, errors.New("processedData is not an array")
	}
	data := make([]*record.Map, 0, len(items))
	for i, item := range items {
		m, ok := item.AsMap()
		if !ok {
			return nil, nil, fmt.Errorf("processedData[%d] is not an object", i)
		}
		data = append(data, m)
	}

	logs, ok := root.Get("errorLogs")
	if !ok {
		return nil, nil, errors.New("missing errorLogs")
	}
	entries, ok := logs.AsList()
	if !ok {
		return nil, nil, errors.New("errorLogs is not an array")
	}
	errs := make([]domain.ErrorEntry, 0, len(entries))
	for _, entry := range entries {
		m, ok := entry.AsMap()
		if !ok {
			v := entry
			errs = append(errs, domain.ErrorEntry{Type: "processing_error", Message: entry.Text(), Data: &v})
			continue
		}
		errs = append(errs, errorEntryFromMap(m))
	}

	return data, errs, nil
}

func errorEntryFromMap(m *record.Map) domain.ErrorEntry {
	entry := domain.ErrorEntry{
		Type:       firstText(m, "error_type", "type"),
		Message:    firstText(m, "message", "error"),
		Row:        firstInt(m, "row_number", "row"),
		Index:      firstInt(m, "index"),
		LineNumber: firstInt(m, "line_number", "lineNumber"),
		Sheet:      firstText(m, "sheet"),
		Field:      firstText(m, "field", "field_name"),
	}
	if entry.Type == "" {
		entry.Type = "processing_error"
	}
	if v, ok := m.Get("data"); ok && !v.IsNull() {
		entry.Data = &v
	}
	return entry
}

func firstText(m *record.Map, keys ...string) string {
	for _, key := range keys {
		if v, ok := m.Get(key); ok && !v.IsNull() {
			return v.Text()
		}
	}
	return ""
}

func firstInt(m *record.Map, keys ...string) *int {
	for _, key := range keys {
		v, ok := m.Get(key)
		if !ok {
			continue
		}
		if n, ok := v.AsNumber(); ok && !math.IsNaN(n) && !math.IsInf(n, 0) {
			value := int(n)
			return &value
		}
	}
	return nil
}
