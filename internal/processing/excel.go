package processing

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rpattn/vizflow/internal/domain"
	"github.com/rpattn/vizflow/internal/record"

	"github.com/xuri/excelize/v2"
)

// ExcelProcessor turns every sheet of a workbook into header keyed records.
type ExcelProcessor struct{}

func NewExcelProcessor() *ExcelProcessor { return &ExcelProcessor{} }

func (p *ExcelProcessor) Name() string { return "excel_processor" }

func (p *ExcelProcessor) Process(ctx context.Context, file domain.Upload, meta domain.ProcessingMetadata) (domain.ProcessingResult, error) {
	wb, err := openWorkbook(file)
	if err != nil {
		return domain.ProcessingResult{}, err
	}
	defer func() { _ = wb.Close() }()

	sheets := wb.GetSheetList()
	if len(sheets) == 0 {
		return domain.ProcessingResult{}, errors.New("excel file has no sheets")
	}

	reader := sheetReader{file: wb, dateStyles: map[int]bool{}}
	data := []*record.Map{}
	errs := []domain.ErrorEntry{}
	rowsPerSheet := record.NewMap()

	for _, sheet := range sheets {
		if err := ctx.Err(); err != nil {
			return domain.ProcessingResult{}, err
		}
		records, rowErrs, err := reader.readSheet(sheet)
		if err != nil {
			return domain.ProcessingResult{}, err
		}
		data = append(data, records...)
		errs = append(errs, rowErrs...)
		rowsPerSheet.Set(sheet, record.Int(len(records)))
	}

	names := make([]record.Value, 0, len(sheets))
	for _, sheet := range sheets {
		names = append(names, record.String(sheet))
	}

	metadata := record.NewMap()
	metadata.Set("sheetNames", record.List(names...))
	metadata.Set("sheetCount", record.Int(len(sheets)))
	metadata.Set("rowsPerSheet", record.MapValue(rowsPerSheet))
	metadata.Set("processedCount", record.Int(len(data)))
	metadata.Set("errorLogCount", record.Int(len(errs)))

	return domain.ProcessingResult{Data: data, Errors: errs, Metadata: metadata}, nil
}

func openWorkbook(file domain.Upload) (*excelize.File, error) {
	if file.Path != "" {
		wb, err := excelize.OpenFile(file.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open workbook: %w", err)
		}
		return wb, nil
	}
	wb, err := excelize.OpenReader(bytes.NewReader(file.Buffer))
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	return wb, nil
}

type sheetReader struct {
	file       *excelize.File
	dateStyles map[int]bool
}

func (r *sheetReader) readSheet(sheet string) ([]*record.Map, []domain.ErrorEntry, error) {
	rows, err := r.file.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read rows from sheet %s: %w", sheet, err)
	}
	if len(rows) == 0 {
		return nil, nil, nil
	}

	width := 0
	for _, row := range rows {
		if len(row) > width {
			width = len(row)
		}
	}
	headerRow := make([]string, width)
	copy(headerRow, rows[0])
	headers := uniqueHeaders(headerRow)

	records := []*record.Map{}
	errs := []domain.ErrorEntry{}

	for idx, row := range rows[1:] {
		rowNumber := idx + 2
		rec := record.NewMap()
		empty := true
		for col, header := range headers {
			value := record.Null()
			if col < len(row) {
				value = r.cellValue(sheet, col, rowNumber, row[col])
			}
			if !value.IsNull() {
				empty = false
			}
			rec.Set(header, value)
		}

		if empty {
			n := rowNumber
			errs = append(errs, domain.ErrorEntry{
				Type:    "empty_row",
				Message: fmt.Sprintf("Sheet %q, Row %d: all fields are empty", sheet, rowNumber),
				Row:     &n,
				Sheet:   sheet,
			})
			continue
		}

		rec.Set("_sheet", record.String(sheet))
		rec.Set("_row", record.Int(rowNumber))
		records = append(records, rec)
	}

	return records, errs, nil
}

func (r *sheetReader) cellValue(sheet string, col, rowNumber int, raw string) record.Value {
	if strings.TrimSpace(raw) == "" {
		return record.Null()
	}

	cell, err := excelize.CoordinatesToCellName(col+1, rowNumber)
	if err != nil {
		return record.String(raw)
	}
	cellType, err := r.file.GetCellType(sheet, cell)
	if err != nil {
		return record.String(raw)
	}

	switch cellType {
	case excelize.CellTypeBool:
		return record.Bool(raw == "1" || strings.EqualFold(raw, "true"))
	case excelize.CellTypeDate:
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			return record.Time(t)
		}
		return record.String(raw)
	case excelize.CellTypeNumber, excelize.CellTypeUnset:
		n, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return record.String(raw)
		}
		if r.isDateCell(sheet, cell) {
			if t, err := excelize.ExcelDateToTime(n, false); err == nil {
				return record.Time(t)
			}
		}
		return record.Number(n)
	default:
		return record.String(raw)
	}
}

func (r *sheetReader) isDateCell(sheet, cell string) bool {
	styleID, err := r.file.GetCellStyle(sheet, cell)
	if err != nil || styleID == 0 {
		return false
	}
	if cached, ok := r.dateStyles[styleID]; ok {
		return cached
	}

	isDate := false
	if style, err := r.file.GetStyle(styleID); err == nil && style != nil {
		isDate = isDateNumFmt(style.NumFmt)
		if !isDate && style.CustomNumFmt != nil {
			isDate = looksLikeDateFormat(*style.CustomNumFmt)
		}
	}
	r.dateStyles[styleID] = isDate
	return isDate
}

func isDateNumFmt(id int) bool {
	return (id >= 14 && id <= 22) || (id >= 45 && id <= 47)
}

func looksLikeDateFormat(format string) bool {
	lower := strings.ToLower(format)
	return strings.Contains(lower, "yy") || strings.Contains(lower, "dd") || strings.Contains(lower, "hh")
}

// uniqueHeaders trims header labels, names blank ones column_N and suffixes
// duplicates.
func uniqueHeaders(raw []string) []string {
	headers := make([]string, len(raw))
	seen := make(map[string]int)

	for idx, value := range raw {
		name := strings.TrimSpace(value)
		if name == "" {
			name = fmt.Sprintf("column_%d", idx+1)
		}

		base := name
		count := seen[base]
		if count > 0 {
			name = fmt.Sprintf("%s_%d", base, count+1)
		}
		seen[base] = count + 1

		headers[idx] = name
	}

	return headers
}
