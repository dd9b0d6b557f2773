package repository

import (
	"fmt"
	"strings"

	"github.com/rpattn/vizflow/internal/domain"
)

type sqlBuilder struct {
	args  []any
	where []string
}

func newSQLBuilder() *sqlBuilder {
	return &sqlBuilder{args: make([]any, 0)}
}

func (b *sqlBuilder) addArg(value any) int {
	b.args = append(b.args, value)
	return len(b.args)
}

func (b *sqlBuilder) placeholder(idx int) string {
	return fmt.Sprintf("$%d", idx)
}

func (b *sqlBuilder) equals(column string, value string) {
	if value == "" {
		return
	}
	b.where = append(b.where, fmt.Sprintf("%s = %s", column, b.placeholder(b.addArg(value))))
}

// ilikeAny matches the search term against any of the given expressions.
func (b *sqlBuilder) ilikeAny(term string, exprs ...string) {
	term = strings.TrimSpace(term)
	if term == "" {
		return
	}
	ph := b.placeholder(b.addArg(likePattern(term)))
	parts := make([]string, len(exprs))
	for i, expr := range exprs {
		parts[i] = fmt.Sprintf("%s ILIKE %s", expr, ph)
	}
	b.where = append(b.where, "("+strings.Join(parts, " OR ")+")")
}

func (b *sqlBuilder) whereClause() string {
	if len(b.where) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(b.where, " AND ")
}

// limitOffset appends paging placeholders for a normalized query.
func (b *sqlBuilder) limitOffset(opts domain.ListOptions) string {
	limit := b.placeholder(b.addArg(opts.Limit))
	offset := b.placeholder(b.addArg(opts.Offset()))
	return fmt.Sprintf(" LIMIT %s OFFSET %s", limit, offset)
}

// limit appends a LIMIT placeholder. Non-positive values use the export default.
func (b *sqlBuilder) limit(n int) string {
	if n <= 0 {
		n = domain.DefaultExportRows
	}
	return " LIMIT " + b.placeholder(b.addArg(n))
}

func likePattern(term string) string {
	escaped := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(term)
	return "%" + escaped + "%"
}

var recordSortColumns = map[string]string{
	"createdAt":    "created_at",
	"sourceFile":   "source_file",
	"sourceFormat": "source_format",
	"processedBy":  "processed_by",
}

var errorLogSortColumns = map[string]string{
	"createdAt":        "created_at",
	"updatedAt":        "updated_at",
	"errorType":        "error_type",
	"resolutionStatus": "resolution_status",
	"sourceFile":       "source_file",
	"lineNumber":       "line_number",
}

// orderClause only emits whitelisted columns; unknown keys sort by
// created_at.
func orderClause(sortBy string, dir domain.SortDirection, columns map[string]string) string {
	column, ok := columns[sortBy]
	if !ok {
		column = "created_at"
	}
	direction := "DESC"
	if dir == domain.SortDirectionAsc {
		direction = "ASC"
	}
	clause := fmt.Sprintf(" ORDER BY %s %s", column, direction)
	if column != "created_at" {
		clause += ", created_at DESC"
	}
	return clause + ", id"
}

func buildRecordFilter(filter domain.RecordFilter) *sqlBuilder {
	b := newSQLBuilder()
	b.ilikeAny(filter.Search, "data::text", "source_file")
	b.equals("source_format", filter.SourceFormat)
	b.equals("processed_by", filter.ProcessedBy)
	b.equals("upload_id", filter.UploadID)
	if filter.StartDate != nil {
		b.where = append(b.where, "created_at >= "+b.placeholder(b.addArg(*filter.StartDate)))
	}
	if filter.EndDate != nil {
		b.where = append(b.where, "created_at <= "+b.placeholder(b.addArg(*filter.EndDate)))
	}
	return b
}

func buildErrorLogFilter(filter domain.ErrorLogFilter) *sqlBuilder {
	b := newSQLBuilder()
	b.ilikeAny(filter.Search,
		"error_message",
		"COALESCE(field_name, '')",
		"source_file",
		"COALESCE(raw_data::text, '')",
	)
	b.equals("error_type", filter.ErrorType)
	b.equals("resolution_status", filter.Status)
	b.equals("source_format", filter.SourceFormat)
	b.equals("source_file", filter.SourceFile)
	b.equals("upload_id", filter.UploadID)
	if filter.StartDate != nil {
		b.where = append(b.where, "created_at >= "+b.placeholder(b.addArg(*filter.StartDate)))
	}
	if filter.EndDate != nil {
		b.where = append(b.where, "created_at <= "+b.placeholder(b.addArg(*filter.EndDate)))
	}
	return b
}
