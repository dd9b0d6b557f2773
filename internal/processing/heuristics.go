package processing

import (
	"regexp"
	"strings"

	"github.com/rpattn/vizflow/internal/record"
)

var (
	columnSeparator = regexp.MustCompile(`\t+|\s{2,}`)
	keyValueLine    = regexp.MustCompile(`^([A-Za-z][A-Za-z0-9 _\-]{0,40}?)\s*:\s*(.+)$`)
	inlinePair      = regexp.MustCompile(`([A-Za-z][A-Za-z0-9_]*)\s*:\s*([^\s:]+)`)
)

// extractStructured runs the table, key-value and inline pair heuristics over
// free text and concatenates their output in that order.
func extractStructured(text string) []*record.Map {
	lines := splitLines(text)

	out := []*record.Map{}
	out = append(out, extractTable(lines)...)
	if kv := extractKeyValues(lines); kv != nil {
		out = append(out, kv)
	}
	out = append(out, extractInlinePairs(lines)...)
	return out
}

func splitLines(text string) []string {
	raw := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	lines := make([]string, 0, len(raw))
	for _, line := range raw {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			lines = append(lines, trimmed)
		}
	}
	return lines
}

func splitColumns(line string) []string {
	parts := columnSeparator.Split(line, -1)
	cols := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			cols = append(cols, trimmed)
		}
	}
	return cols
}

// extractTable treats the first multi-column line as headers. Later lines
// with exactly the same column count become records; the rest are dropped.
func extractTable(lines []string) []*record.Map {
	var headers []string
	records := []*record.Map{}

	for _, line := range lines {
		cols := splitColumns(line)
		if headers == nil {
			if len(cols) >= 2 {
				headers = uniqueHeaders(cols)
			}
			continue
		}
		if len(cols) != len(headers) {
			continue
		}
		rec := record.NewMap()
		for i, header := range headers {
			rec.Set(header, record.String(cols[i]))
		}
		records = append(records, rec)
	}

	return records
}

// extractKeyValues merges every "Key: value" line into one record.
func extractKeyValues(lines []string) *record.Map {
	rec := record.NewMap()
	for _, line := range lines {
		match := keyValueLine.FindStringSubmatch(line)
		if match == nil {
			continue
		}
		key := normalizeKey(match[1])
		value := strings.TrimSpace(match[2])
		if key == "" || value == "" {
			continue
		}
		rec.Set(key, record.String(value))
	}
	if rec.Len() == 0 {
		return nil
	}
	return rec
}

// extractInlinePairs yields one record per line carrying two or more
// "word: value" tokens.
func extractInlinePairs(lines []string) []*record.Map {
	records := []*record.Map{}
	for _, line := range lines {
		matches := inlinePair.FindAllStringSubmatch(line, -1)
		if len(matches) < 2 {
			continue
		}
		rec := record.NewMap()
		for _, match := range matches {
			rec.Set(normalizeKey(match[1]), record.String(match[2]))
		}
		records = append(records, rec)
	}
	return records
}

func normalizeKey(raw string) string {
	key := strings.ToLower(strings.TrimSpace(raw))
	key = strings.ReplaceAll(key, " ", "_")
	key = strings.ReplaceAll(key, "-", "_")
	return key
}
