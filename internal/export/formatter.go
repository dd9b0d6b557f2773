package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/rpattn/vizflow/internal/record"

	"github.com/xuri/excelize/v2"
)

// ErrEmptyExport is returned when there is nothing to export.
var ErrEmptyExport = errors.New("no data to export")

const (
	MIMECSV   = "text/csv"
	MIMEExcel = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	MIMEJSON  = "application/json"

	defaultName  = "export"
	defaultSheet = "Data"
	maxSheetName = 31
)

// File is a rendered export ready for download.
type File struct {
	Bytes    []byte
	Filename string
	MimeType string
}

// Sheet is one named tab of a multi-sheet workbook.
type Sheet struct {
	Name    string
	Records []*record.Map
}

// Format selects the export encoding.
type Format string

const (
	FormatCSV   Format = "csv"
	FormatExcel Format = "excel"
	FormatJSON  Format = "json"
)

// ParseFormat defaults to CSV when value is empty.
func ParseFormat(value string) (Format, bool) {
	switch f := Format(strings.ToLower(strings.TrimSpace(value))); f {
	case "":
		return FormatCSV, true
	case FormatCSV, FormatExcel, FormatJSON:
		return f, true
	case "xlsx":
		return FormatExcel, true
	}
	return "", false
}

// Render encodes records in the requested format.
func Render(format Format, records []*record.Map, name string, pretty bool) (File, error) {
	switch format {
	case FormatExcel:
		return ToExcel(records, name, defaultSheet)
	case FormatJSON:
		return ToJSON(records, name, pretty)
	default:
		return ToCSV(records, name)
	}
}

func flattenAll(records []*record.Map) ([]*record.Map, []string, error) {
	if len(records) == 0 {
		return nil, nil, ErrEmptyExport
	}
	flat := make([]*record.Map, len(records))
	for i, r := range records {
		flat[i] = record.Flatten(r)
	}
	return flat, record.Columns(flat), nil
}

// ToCSV writes a header of the column union followed by one line per record.
func ToCSV(records []*record.Map, name string) (File, error) {
	flat, columns, err := flattenAll(records)
	if err != nil {
		return File{}, err
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(columns); err != nil {
		return File{}, fmt.Errorf("write header: %w", err)
	}
	row := make([]string, len(columns))
	for _, r := range flat {
		for i, col := range columns {
			v, _ := r.Get(col)
			row[i] = v.Text()
		}
		if err := w.Write(row); err != nil {
			return File{}, fmt.Errorf("write row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return File{}, fmt.Errorf("flush csv: %w", err)
	}

	return File{Bytes: buf.Bytes(), Filename: filename(name, ".csv"), MimeType: MIMECSV}, nil
}

// ToJSON writes the flattened records as a JSON array.
func ToJSON(records []*record.Map, name string, pretty bool) (File, error) {
	flat, _, err := flattenAll(records)
	if err != nil {
		return File{}, err
	}

	var data []byte
	if pretty {
		data, err = json.MarshalIndent(flat, "", "  ")
	} else {
		data, err = json.Marshal(flat)
	}
	if err != nil {
		return File{}, fmt.Errorf("encode json: %w", err)
	}
	return File{Bytes: data, Filename: filename(name, ".json"), MimeType: MIMEJSON}, nil
}

// ToExcel writes a single-sheet workbook.
func ToExcel(records []*record.Map, name, sheetName string) (File, error) {
	return ToMultiSheetExcel([]Sheet{{Name: sheetName, Records: records}}, name)
}

// ToMultiSheetExcel writes one sheet per entry. Sheets without records are
// skipped; at least one sheet must have data.
func ToMultiSheetExcel(sheets []Sheet, name string) (File, error) {
	f := excelize.NewFile()
	defer f.Close()

	used := map[string]int{}
	written := 0
	for _, sheet := range sheets {
		flat, columns, err := flattenAll(sheet.Records)
		if errors.Is(err, ErrEmptyExport) {
			continue
		}
		if err != nil {
			return File{}, err
		}

		sheetName := uniqueSheetName(sheet.Name, used)
		if written == 0 {
			if err := f.SetSheetName("Sheet1", sheetName); err != nil {
				return File{}, fmt.Errorf("rename sheet: %w", err)
			}
		} else if _, err := f.NewSheet(sheetName); err != nil {
			return File{}, fmt.Errorf("create sheet %s: %w", sheetName, err)
		}
		if err := writeSheet(f, sheetName, columns, flat); err != nil {
			return File{}, err
		}
		written++
	}
	if written == 0 {
		return File{}, ErrEmptyExport
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return File{}, fmt.Errorf("write workbook: %w", err)
	}
	return File{Bytes: buf.Bytes(), Filename: filename(name, ".xlsx"), MimeType: MIMEExcel}, nil
}

func writeSheet(f *excelize.File, sheet string, columns []string, rows []*record.Map) error {
	header := make([]any, len(columns))
	for i, col := range columns {
		header[i] = col
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for r, m := range rows {
		values := make([]any, len(columns))
		for i, col := range columns {
			v, _ := m.Get(col)
			values[i] = cellValue(v)
		}
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return fmt.Errorf("write row %d: %w", r+2, err)
		}
	}
	return nil
}

func cellValue(v record.Value) any {
	switch v.Kind() {
	case record.KindNull:
		return nil
	case record.KindNumber:
		n, _ := v.AsNumber()
		return n
	case record.KindBool:
		b, _ := v.AsBool()
		return b
	default:
		return v.Text()
	}
}

var sheetNameReplacer = strings.NewReplacer(
	"[", "", "]", "", ":", "", "*", "", "?", "", "/", "", `\`, "",
)

func uniqueSheetName(name string, used map[string]int) string {
	name = strings.TrimSpace(sheetNameReplacer.Replace(name))
	if name == "" {
		name = defaultSheet
	}
	name = truncateRunes(name, maxSheetName)
	key := strings.ToLower(name)
	used[key]++
	if n := used[key]; n > 1 {
		suffix := fmt.Sprintf(" (%d)", n)
		name = truncateRunes(name, maxSheetName-len(suffix)) + suffix
	}
	return name
}

// truncateRunes cuts s to at most n characters without splitting a rune.
func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

func filename(name, ext string) string {
	name = strings.TrimSpace(filepath.Base(name))
	if name == "" || name == "." || name == "/" {
		name = defaultName
	}
	if !strings.EqualFold(filepath.Ext(name), ext) {
		name += ext
	}
	return name
}
