package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rpattn/vizflow/internal/domain"
	"github.com/rpattn/vizflow/internal/record"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const recordColumns = `id, data, metadata, created_at`

type recordRepository struct {
	pool *pgxpool.Pool
}

// NewRecordRepository wires a repository backed by pgxpool.
func NewRecordRepository(pool *pgxpool.Pool) RecordRepository {
	return &recordRepository{pool: pool}
}

func (r *recordRepository) InsertMany(ctx context.Context, records []domain.Record) (InsertResult, error) {
	if r.pool == nil {
		return InsertResult{}, fmt.Errorf("record repository not initialized")
	}

	result := InsertResult{}
	for i, rec := range records {
		if err := r.insert(ctx, rec); err != nil {
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

func (r *recordRepository) insert(ctx context.Context, rec domain.Record) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	payload, err := rec.Payload.MarshalJSON()
	if err != nil {
		return fmt.Errorf("marshal record payload: %w", err)
	}
	metadata, err := json.Marshal(rec.Metadata)
	if err != nil {
		return fmt.Errorf("marshal record metadata: %w", err)
	}

	_, err = r.pool.Exec(
		ctx,
		`INSERT INTO records (id, upload_id, source_file, source_format, processed_by, data, metadata)
		 VALUES ($1, $2, $3, $4, $5, $6::json, $7::jsonb)`,
		rec.ID,
		rec.Metadata.UploadID,
		rec.Metadata.OriginalName,
		string(rec.Metadata.SourceFormat),
		rec.Metadata.ProcessedBy,
		string(payload),
		string(metadata),
	)
	if err != nil {
		return fmt.Errorf("failed to insert record: %w", err)
	}
	return nil
}

func (r *recordRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.Record, error) {
	if r.pool == nil {
		return domain.Record{}, fmt.Errorf("record repository not initialized")
	}

	row := r.pool.QueryRow(ctx, `SELECT `+recordColumns+` FROM records WHERE id = $1`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Record{}, fmt.Errorf("record %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Record{}, err
	}
	return rec, nil
}

func (r *recordRepository) List(ctx context.Context, filter domain.RecordFilter, opts domain.ListOptions) ([]domain.Record, int, error) {
	if r.pool == nil {
		return nil, 0, fmt.Errorf("record repository not initialized")
	}
	opts = opts.Normalize()

	b := buildRecordFilter(filter)
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM records`+b.whereClause(), b.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count records: %w", err)
	}

	query := `SELECT ` + recordColumns + ` FROM records` + b.whereClause() +
		orderClause(opts.SortBy, opts.SortOrder, recordSortColumns) +
		b.limitOffset(opts)
	records, err := r.query(ctx, query, b.args...)
	if err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

func (r *recordRepository) All(ctx context.Context, filter domain.RecordFilter, limit int) ([]domain.Record, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("record repository not initialized")
	}
	query, args := recordExportQuery(filter, limit)
	return r.query(ctx, query, args...)
}

func recordExportQuery(filter domain.RecordFilter, limit int) (string, []any) {
	b := buildRecordFilter(filter)
	query := `SELECT ` + recordColumns + ` FROM records` + b.whereClause() +
		orderClause("createdAt", domain.SortDirectionDesc, recordSortColumns) +
		b.limit(limit)
	return query, b.args
}

func (r *recordRepository) query(ctx context.Context, query string, args ...any) ([]domain.Record, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	defer rows.Close()

	records := []domain.Record{}
	for rows.Next() {
		rec, scanErr := scanRecord(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		records = append(records, rec)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("failed to iterate records: %w", rowsErr)
	}
	return records, nil
}

func scanRecord(row pgx.Row) (domain.Record, error) {
	var (
		rec      domain.Record
		payload  []byte
		metadata []byte
	)
	if err := row.Scan(&rec.ID, &payload, &metadata, &rec.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Record{}, err
		}
		return domain.Record{}, fmt.Errorf("failed to scan record: %w", err)
	}

	rec.Payload = record.NewMap()
	if err := rec.Payload.UnmarshalJSON(payload); err != nil {
		return domain.Record{}, fmt.Errorf("decode record payload: %w", err)
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &rec.Metadata); err != nil {
			return domain.Record{}, fmt.Errorf("decode record metadata: %w", err)
		}
	}
	return rec, nil
}

func (r *recordRepository) Stats(ctx context.Context) (domain.RecordStats, error) {
	if r.pool == nil {
		return domain.RecordStats{}, fmt.Errorf("record repository not initialized")
	}

	stats := domain.RecordStats{}
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM records`).Scan(&stats.Total); err != nil {
		return stats, fmt.Errorf("failed to count records: %w", err)
	}

	var err error
	if stats.ByFormat, err = groupCounts(ctx, r.pool, `SELECT source_format, COUNT(*) FROM records GROUP BY source_format`); err != nil {
		return stats, err
	}
	if stats.ByProcessor, err = groupCounts(ctx, r.pool, `SELECT processed_by, COUNT(*) FROM records GROUP BY processed_by`); err != nil {
		return stats, err
	}
	return stats, nil
}

func (r *recordRepository) ListFiles(ctx context.Context, limit int) ([]domain.FileSummary, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("record repository not initialized")
	}
	if limit <= 0 {
		limit = domain.MaxPageSize
	}

	rows, err := r.pool.Query(
		ctx,
		`SELECT upload_id, source_file, source_format, processed_by, COUNT(*), MAX(created_at)
		 FROM records
		 GROUP BY upload_id, source_file, source_format, processed_by
		 ORDER BY MAX(created_at) DESC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}
	defer rows.Close()

	files := []domain.FileSummary{}
	for rows.Next() {
		var f domain.FileSummary
		if scanErr := rows.Scan(&f.UploadID, &f.FileName, &f.SourceFormat, &f.ProcessedBy, &f.RecordCount, &f.ProcessedAt); scanErr != nil {
			return nil, fmt.Errorf("failed to scan file summary: %w", scanErr)
		}
		files = append(files, f)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("failed to iterate files: %w", rowsErr)
	}
	return files, nil
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func groupCounts(ctx context.Context, q querier, query string, args ...any) (map[string]int, error) {
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to group counts: %w", err)
	}
	defer rows.Close()

	counts := map[string]int{}
	for rows.Next() {
		var (
			key   string
			count int
		)
		if scanErr := rows.Scan(&key, &count); scanErr != nil {
			return nil, fmt.Errorf("failed to scan count: %w", scanErr)
		}
		counts[key] = count
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("failed to iterate counts: %w", rowsErr)
	}
	return counts, nil
}
