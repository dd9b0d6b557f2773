package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/rpattn/vizflow/internal/db"
	"github.com/rpattn/vizflow/internal/domain"
	"github.com/rpattn/vizflow/internal/record"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const errorLogColumns = `id, error_type, original_type, error_message, line_number, field_name, raw_data,
	expected_value, actual_value, source_format, source_file, processed_by, upload_id,
	resolution_status, resolved_by, resolved_at, resolution_notes, created_at, updated_at`

type errorLogRepository struct {
	conn *db.Connection
}

// NewErrorLogRepository wires a repository backed by the shared connection.
func NewErrorLogRepository(conn *db.Connection) ErrorLogRepository {
	return &errorLogRepository{conn: conn}
}

func (r *errorLogRepository) ready() error {
	if r.conn == nil || r.conn.Pool == nil {
		return fmt.Errorf("error log repository not initialized")
	}
	return nil
}

func (r *errorLogRepository) InsertMany(ctx context.Context, logs []domain.ErrorLog) (InsertResult, error) {
	if err := r.ready(); err != nil {
		return InsertResult{}, err
	}

	result := InsertResult{}
	for i, entry := range logs {
		if err := r.insert(ctx, entry); err != nil {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			result.Failures = append(result.Failures, InsertFailure{Index: i, Err: err})
			continue
		}
		result.Inserted++
	}
	return result, nil
}

func (r *errorLogRepository) insert(ctx context.Context, entry domain.ErrorLog) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.Status == "" {
		entry.Status = domain.StatusUnresolved
	}

	var lineNumber any
	if entry.LineNumber != nil {
		lineNumber = *entry.LineNumber
	}
	var rawData any
	if entry.RawData != nil {
		encoded, err := entry.RawData.MarshalJSON()
		if err != nil {
			return fmt.Errorf("marshal raw data: %w", err)
		}
		rawData = string(encoded)
	}

	_, err := r.conn.Pool.Exec(
		ctx,
		`INSERT INTO error_logs (id, error_type, original_type, error_message, line_number, field_name, raw_data,
		   expected_value, actual_value, source_format, source_file, processed_by, upload_id, resolution_status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7::json, $8, $9, $10, $11, $12, $13, $14)`,
		entry.ID,
		string(entry.ErrorType),
		entry.OriginalType,
		entry.Message,
		lineNumber,
		nullableText(entry.FieldName),
		rawData,
		nullableText(entry.ExpectedValue),
		nullableText(entry.ActualValue),
		string(entry.SourceFormat),
		entry.SourceFile,
		entry.ProcessedBy,
		entry.UploadID,
		string(entry.Status),
	)
	if err != nil {
		return fmt.Errorf("failed to insert error log: %w", err)
	}
	return nil
}

func (r *errorLogRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.ErrorLog, error) {
	if err := r.ready(); err != nil {
		return domain.ErrorLog{}, err
	}
	row := r.conn.Pool.QueryRow(ctx, `SELECT `+errorLogColumns+` FROM error_logs WHERE id = $1`, id)
	entry, err := scanErrorLog(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrorLog{}, fmt.Errorf("error log %s: %w", id, domain.ErrNotFound)
	}
	return entry, err
}

func (r *errorLogRepository) List(ctx context.Context, filter domain.ErrorLogFilter, opts domain.ListOptions) ([]domain.ErrorLog, int, error) {
	if err := r.ready(); err != nil {
		return nil, 0, err
	}
	opts = opts.Normalize()

	b := buildErrorLogFilter(filter)
	var total int
	if err := r.conn.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM error_logs`+b.whereClause(), b.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count error logs: %w", err)
	}

	query := `SELECT ` + errorLogColumns + ` FROM error_logs` + b.whereClause() +
		orderClause(opts.SortBy, opts.SortOrder, errorLogSortColumns) +
		b.limitOffset(opts)
	logs, err := r.query(ctx, query, b.args...)
	if err != nil {
		return nil, 0, err
	}
	return logs, total, nil
}

func (r *errorLogRepository) All(ctx context.Context, filter domain.ErrorLogFilter, limit int) ([]domain.ErrorLog, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	query, args := errorLogExportQuery(filter, limit)
	return r.query(ctx, query, args...)
}

func errorLogExportQuery(filter domain.ErrorLogFilter, limit int) (string, []any) {
	b := buildErrorLogFilter(filter)
	query := `SELECT ` + errorLogColumns + ` FROM error_logs` + b.whereClause() +
		orderClause("createdAt", domain.SortDirectionDesc, errorLogSortColumns) +
		b.limit(limit)
	return query, b.args
}

func (r *errorLogRepository) query(ctx context.Context, query string, args ...any) ([]domain.ErrorLog, error) {
	rows, err := r.conn.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list error logs: %w", err)
	}
	defer rows.Close()

	logs := []domain.ErrorLog{}
	for rows.Next() {
		entry, scanErr := scanErrorLog(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		logs = append(logs, entry)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("failed to iterate error logs: %w", rowsErr)
	}
	return logs, nil
}

func (r *errorLogRepository) UpdateStatus(ctx context.Context, id uuid.UUID, update domain.StatusUpdate) (domain.ErrorLog, error) {
	if err := r.ready(); err != nil {
		return domain.ErrorLog{}, err
	}

	var updated domain.ErrorLog
	err := r.conn.WithTx(ctx, func(tx pgx.Tx) error {
		var current string
		if err := tx.QueryRow(ctx, `SELECT resolution_status FROM error_logs WHERE id = $1 FOR UPDATE`, id).Scan(&current); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("error log %s: %w", id, domain.ErrNotFound)
			}
			return fmt.Errorf("failed to load error log status: %w", err)
		}
		if !domain.ResolutionStatus(current).CanTransitionTo(update.Status) {
			return fmt.Errorf("%s -> %s: %w", current, update.Status, domain.ErrInvalidTransition)
		}

		row := tx.QueryRow(
			ctx,
			`UPDATE error_logs
			 SET resolution_status = $2,
			     resolved_by = $3,
			     resolution_notes = $4,
			     resolved_at = CASE WHEN $2 = 'UNRESOLVED' THEN NULL ELSE NOW() END,
			     updated_at = NOW()
			 WHERE id = $1
			 RETURNING `+errorLogColumns,
			id,
			string(update.Status),
			nullableText(update.ResolvedBy),
			nullableText(update.Notes),
		)
		entry, err := scanErrorLog(row)
		if err != nil {
			return fmt.Errorf("failed to update error log status: %w", err)
		}
		updated = entry
		return nil
	})
	if err != nil {
		return domain.ErrorLog{}, err
	}
	return updated, nil
}

func (r *errorLogRepository) Stats(ctx context.Context) (domain.ErrorStats, error) {
	if err := r.ready(); err != nil {
		return domain.ErrorStats{}, err
	}

	stats := domain.ErrorStats{}
	if err := r.conn.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM error_logs`).Scan(&stats.Total); err != nil {
		return stats, fmt.Errorf("failed to count error logs: %w", err)
	}
	var err error
	if stats.ByType, err = groupCounts(ctx, r.conn.Pool, `SELECT error_type, COUNT(*) FROM error_logs GROUP BY error_type`); err != nil {
		return stats, err
	}
	if stats.ByStatus, err = groupCounts(ctx, r.conn.Pool, `SELECT resolution_status, COUNT(*) FROM error_logs GROUP BY resolution_status`); err != nil {
		return stats, err
	}
	return stats, nil
}

func (r *errorLogRepository) CountByUploadIDs(ctx context.Context, uploadIDs []string) (map[string]int, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	if len(uploadIDs) == 0 {
		return map[string]int{}, nil
	}
	return groupCounts(ctx, r.conn.Pool,
		`SELECT upload_id, COUNT(*) FROM error_logs WHERE upload_id = ANY($1) GROUP BY upload_id`,
		uploadIDs,
	)
}

func scanErrorLog(row pgx.Row) (domain.ErrorLog, error) {
	var (
		entry        domain.ErrorLog
		errorType    string
		sourceFormat string
		status       string
		lineNumber   pgtype.Int4
		fieldName    pgtype.Text
		rawData      []byte
		expected     pgtype.Text
		actual       pgtype.Text
		resolvedBy   pgtype.Text
		resolvedAt   pgtype.Timestamptz
		notes        pgtype.Text
	)
	if err := row.Scan(
		&entry.ID,
		&errorType,
		&entry.OriginalType,
		&entry.Message,
		&lineNumber,
		&fieldName,
		&rawData,
		&expected,
		&actual,
		&sourceFormat,
		&entry.SourceFile,
		&entry.ProcessedBy,
		&entry.UploadID,
		&status,
		&resolvedBy,
		&resolvedAt,
		&notes,
		&entry.CreatedAt,
		&entry.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrorLog{}, err
		}
		return domain.ErrorLog{}, fmt.Errorf("failed to scan error log: %w", err)
	}

	entry.ErrorType = domain.ErrorType(errorType)
	entry.SourceFormat = domain.Format(sourceFormat)
	entry.Status = domain.ResolutionStatus(status)
	if lineNumber.Valid {
		value := int(lineNumber.Int32)
		entry.LineNumber = &value
	}
	entry.FieldName = fieldName.String
	entry.ExpectedValue = expected.String
	entry.ActualValue = actual.String
	entry.ResolvedBy = resolvedBy.String
	entry.ResolutionNotes = notes.String
	if resolvedAt.Valid {
		at := resolvedAt.Time
		entry.ResolvedAt = &at
	}
	if len(rawData) > 0 {
		var v record.Value
		if err := v.UnmarshalJSON(rawData); err != nil {
			return domain.ErrorLog{}, fmt.Errorf("decode raw data: %w", err)
		}
		entry.RawData = &v
	}
	return entry, nil
}

func nullableText(value string) pgtype.Text {
	return pgtype.Text{String: value, Valid: value != ""}
}
