package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	ingestrepo "github.com/FACorreiaa/federal-budget-tracker/internal/domain/ingest/repository"
)

// PGXQuerier is the subset of pgxpool.Pool used by the repository. Keeping
// it narrow lets tests substitute a pgxmock pool.
type PGXQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const (
	// Empty-string and zero filter arguments disable the corresponding
	// predicate, keeping the statement text constant.
	summarizeOutlaysQuery = `
		SELECT a.omb_code, a.title, f.code, f.title,
			o.fiscal_year, o.period, SUM(o.amount), COUNT(*)
		FROM outlays o
		JOIN accounts ac ON ac.id = o.account_id
		JOIN bureaus b ON b.id = ac.bureau_id
		JOIN agencies a ON a.id = b.agency_id
		JOIN budget_functions f ON f.id = o.function_id
		WHERE ($1 = 0 OR o.fiscal_year = $1)
			AND ($2 = '' OR o.period = $2)
			AND ($3 = '' OR a.omb_code = $3)
			AND ($4 = '' OR f.code = $4)
		GROUP BY a.omb_code, a.title, f.code, f.title, o.fiscal_year, o.period
		ORDER BY a.omb_code, f.code, o.fiscal_year, o.period`

	getImportBatchQuery = `
		SELECT id, source_file, data_source, file_hash, total_rows,
			successful_imports, failed_imports, warnings, status,
			start_time, end_time, error_log, warning_log
		FROM import_batches WHERE id = $1`
)

// PostgresBudgetRepository implements BudgetRepository using PostgreSQL
type PostgresBudgetRepository struct {
	db PGXQuerier
}

// NewPostgresBudgetRepository creates a new PostgreSQL-backed budget repository
func NewPostgresBudgetRepository(db PGXQuerier) *PostgresBudgetRepository {
	return &PostgresBudgetRepository{db: db}
}

// SummarizeOutlays aggregates outlays by agency, function, fiscal year and
// period, applying the given filter
func (r *PostgresBudgetRepository) SummarizeOutlays(ctx context.Context, filter OutlayFilter) ([]*OutlaySummary, error) {
	rows, err := r.db.Query(ctx, summarizeOutlaysQuery,
		filter.FiscalYear, filter.Period, filter.AgencyCode, filter.FunctionCode,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize outlays: %w", err)
	}
	defer rows.Close()

	var summaries []*OutlaySummary
	for rows.Next() {
		var s OutlaySummary
		if err := rows.Scan(
			&s.AgencyCode, &s.AgencyTitle, &s.FunctionCode, &s.FunctionTitle,
			&s.FiscalYear, &s.Period, &s.TotalAmount, &s.OutlayCount,
		); err != nil {
			return nil, fmt.Errorf("failed to scan outlay summary: %w", err)
		}
		summaries = append(summaries, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read outlay summaries: %w", err)
	}
	return summaries, nil
}

// GetImportBatch looks up one import batch by ID
func (r *PostgresBudgetRepository) GetImportBatch(ctx context.Context, id uuid.UUID) (*ingestrepo.ImportBatch, error) {
	var b ingestrepo.ImportBatch
	err := r.db.QueryRow(ctx, getImportBatchQuery, id).Scan(
		&b.ID, &b.SourceFile, &b.DataSource, &b.FileHash, &b.TotalRows,
		&b.SuccessfulImports, &b.FailedImports, &b.Warnings, &b.Status,
		&b.StartTime, &b.EndTime, &b.ErrorLog, &b.WarningLog,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get import batch %s: %w", id, err)
	}
	return &b, nil
}
