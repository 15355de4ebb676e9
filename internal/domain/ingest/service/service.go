// Package service orchestrates OBJCLASS CSV ingestion: structural
// validation, the per-row resolve-and-emit loop, and the import batch
// ledger.
package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/federal-budget-tracker/internal/domain/ingest/parser"
	"github.com/FACorreiaa/federal-budget-tracker/internal/domain/ingest/repository"
	"github.com/FACorreiaa/federal-budget-tracker/internal/domain/ingest/resolver"
	"github.com/FACorreiaa/federal-budget-tracker/internal/domain/ingest/validator"
	"github.com/FACorreiaa/federal-budget-tracker/pkg/checksum"
	"github.com/FACorreiaa/federal-budget-tracker/pkg/observability"
)

// ErrInvalidStructure is returned when the pre-flight header check fails.
// The run aborts before any import batch is opened.
var ErrInvalidStructure = errors.New("invalid OBJCLASS structure")

var tracer = otel.Tracer("github.com/FACorreiaa/federal-budget-tracker/internal/domain/ingest")

const (
	defaultFlushEvery = 100
	defaultFiscalYear = 2026
	defaultDataSource = "OBJCLASS_2026"
)

// Column names of the fixed OBJCLASS vocabulary used by the row processor
const (
	colAgencyCode       = "OMB Agency Code"
	colAgencyTitle      = "Agency Title"
	colBureauCode       = "OMB Bureau Code"
	colBureauTitle      = "Bureau Title"
	colAccountCode      = "OMB Account"
	colAccountTitle     = "Account _Title"
	colFunction         = "Default Budget Function"
	colSubfunction      = "Default Budget Subfunction"
	colObjectClassCode  = "OB Class Code"
	colObjectClassTitle = "OB Class"
)

// Options configure one ingestion run
type Options struct {
	// DataSource tags every outlay and the batch, e.g. "OBJCLASS_2026".
	DataSource string
	// DefaultFiscalYear is used when an amount column header carries no
	// four-digit year. Explicit because the fallback is per-export-cycle,
	// not a universal constant.
	DefaultFiscalYear int
	// FlushEvery is the durability interval in rows. Rows processed after
	// the last flush are not durably recorded if the process crashes.
	FlushEvery int
}

// Summary is the user-visible report of a run, producible whether the
// batch ended completed or failed
type Summary struct {
	BatchID    uuid.UUID
	Status     string
	TotalRows  int
	Successful int
	Failed     int
	Warnings   int
	Errors     []string
}

// ImportService drives OBJCLASS ingestion runs sequentially, one row fully
// resolved and recorded before the next. It is not safe for concurrent use.
type ImportService struct {
	repo   repository.ImportRepository
	logger *slog.Logger
	opts   Options
}

// NewImportService creates an import service, filling option defaults
func NewImportService(repo repository.ImportRepository, logger *slog.Logger, opts Options) *ImportService {
	if opts.DataSource == "" {
		opts.DataSource = defaultDataSource
	}
	if opts.DefaultFiscalYear == 0 {
		opts.DefaultFiscalYear = defaultFiscalYear
	}
	if opts.FlushEvery < 1 {
		opts.FlushEvery = defaultFlushEvery
	}
	return &ImportService{repo: repo, logger: logger, opts: opts}
}

// runState accumulates one run's counters and pending bulk writes
type runState struct {
	batch      *repository.ImportBatch
	amountCols []string
	headers    []string
	res        *resolver.Resolver

	stats   repository.BatchStats
	errors  []string
	pending struct {
		outlays []*repository.Outlay
		raw     []*repository.RawImportData
	}
	sinceFlush int
}

// ProcessFile ingests one OBJCLASS CSV discovered by path. Row-level
// failures are recorded and skipped; a run-level failure marks the batch
// failed and is returned to the caller.
func (s *ImportService) ProcessFile(ctx context.Context, path string) (*Summary, error) {
	ctx, span := tracer.Start(ctx, "objclass.ProcessFile")
	defer span.End()
	span.SetAttributes(attribute.String("source.file", path))

	start := time.Now()
	defer func() {
		observability.ImportDuration.Observe(time.Since(start).Seconds())
	}()

	data, err := os.ReadFile(path)
	if err != nil {
		err = fmt.Errorf("failed to read source file: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "unreadable source file")
		return nil, err
	}

	headers, records, err := readTable(data)
	if err != nil {
		err = fmt.Errorf("failed to parse source file as a table: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "unparsable source file")
		return nil, err
	}

	// Pre-flight gate: abort before any batch record exists.
	result := validator.Validate(headers)
	if !result.Valid() {
		err := fmt.Errorf("%w: %s", ErrInvalidStructure, strings.Join(result.Issues, "; "))
		span.RecordError(err)
		span.SetStatus(codes.Error, "structural validation failed")
		return nil, err
	}
	s.logger.Info("csv structure validated",
		"file", path, "rows", len(records), "amount_columns", len(result.AmountColumns))

	batch := &repository.ImportBatch{
		SourceFile: path,
		DataSource: s.opts.DataSource,
		FileHash:   checksum.BytesSHA256(data),
		TotalRows:  len(records),
		Status:     repository.BatchStatusProcessing,
	}
	if err := s.repo.CreateImportBatch(ctx, batch); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to open import batch: %w", err)
	}
	span.SetAttributes(
		attribute.String("batch.id", batch.ID.String()),
		attribute.Int("batch.rows", batch.TotalRows),
	)
	s.logger.Info("import batch opened", "batch_id", batch.ID, "rows", batch.TotalRows)

	run := &runState{
		batch:      batch,
		amountCols: result.AmountColumns,
		headers:    headers,
		res:        resolver.New(s.repo, s.logger),
	}

	for i, record := range records {
		s.processRow(ctx, run, i+1, record)

		run.sinceFlush++
		if run.sinceFlush >= s.opts.FlushEvery {
			if err := s.flush(ctx, run); err != nil {
				return s.failRun(ctx, span, run, err)
			}
			s.logger.Info("processed rows", "batch_id", batch.ID, "rows", i+1)
		}
	}

	if err := s.flush(ctx, run); err != nil {
		return s.failRun(ctx, span, run, err)
	}

	if err := s.repo.FinishImportBatch(ctx, batch.ID, repository.BatchStatusCompleted, run.stats, nil); err != nil {
		return s.failRun(ctx, span, run, fmt.Errorf("failed to finalize import batch: %w", err))
	}

	s.logger.Info("import completed",
		"batch_id", batch.ID,
		"total", batch.TotalRows,
		"successful", run.stats.Successful,
		"failed", run.stats.Failed,
		"warnings", run.stats.Warnings,
	)

	return s.summary(run, repository.BatchStatusCompleted), nil
}

// processRow runs one row through dimension resolution and fact emission.
// Failures are row-scoped: the provenance record carries the error and the
// loop moves on.
func (s *ImportService) processRow(ctx context.Context, run *runState, rowNumber int, record []string) {
	raw := &repository.RawImportData{
		ImportBatchID: run.batch.ID,
		RowNumber:     rowNumber,
		RawData:       encodeRow(run.headers, record),
		RowHash:       checksum.Record(record),
		ImportStatus:  repository.RowStatusProcessing,
	}

	outlays, warnings, err := s.resolveAndEmit(ctx, run, record)
	if err != nil {
		msg := err.Error()
		raw.ImportStatus = repository.RowStatusFailed
		raw.ErrorMessage = &msg
		run.stats.Failed++
		run.errors = append(run.errors, fmt.Sprintf("row %d: %s", rowNumber, msg))
		observability.RowsProcessed.WithLabelValues("failed").Inc()
		s.logger.Error("row failed", "batch_id", run.batch.ID, "row", rowNumber, "error", msg)
	} else {
		raw.ImportStatus = repository.RowStatusSuccess
		run.stats.Successful++
		run.stats.Warnings += warnings
		run.pending.outlays = append(run.pending.outlays, outlays...)
		observability.RowsProcessed.WithLabelValues("success").Inc()
	}

	run.pending.raw = append(run.pending.raw, raw)
}

// resolveAndEmit resolves the row's dimension chain and builds one outlay
// per nonzero amount column
func (s *ImportService) resolveAndEmit(ctx context.Context, run *runState, record []string) ([]*repository.Outlay, int, error) {
	row := fieldsByHeader(run.headers, record)
	warnings := 0

	agency, err := run.res.Agency(ctx, row[colAgencyCode], row[colAgencyTitle])
	if err != nil {
		return nil, 0, err
	}

	bureau, err := run.res.Bureau(ctx, agency, row[colBureauCode], row[colBureauTitle])
	if err != nil {
		return nil, 0, err
	}

	account, err := run.res.Account(ctx, bureau, row[colAccountCode], row[colAccountTitle])
	if err != nil {
		return nil, 0, err
	}

	functionCode, functionName, split := parser.SplitCodeName(row[colFunction])
	if !split {
		warnings++
		s.logger.Warn("function field has no code/name separator",
			"batch_id", run.batch.ID, "value", functionCode)
	}
	function, err := run.res.Function(ctx, functionCode, functionName)
	if err != nil {
		return nil, warnings, err
	}

	subfunctionCode, subfunctionName, split := parser.SplitCodeName(row[colSubfunction])
	if !split {
		warnings++
		s.logger.Warn("subfunction field has no code/name separator",
			"batch_id", run.batch.ID, "value", subfunctionCode)
	}
	subfunction, err := run.res.Subfunction(ctx, function, subfunctionCode, subfunctionName)
	if err != nil {
		return nil, warnings, err
	}

	objectClass, err := run.res.ObjectClass(ctx, row[colObjectClassCode], row[colObjectClassTitle])
	if err != nil {
		return nil, warnings, err
	}

	var outlays []*repository.Outlay
	for _, col := range run.amountCols {
		amount, ok := parser.ParseAmount(row[col])
		// Zero amounts are dropped, never stored.
		if !ok || amount == 0 {
			continue
		}

		outlays = append(outlays, &repository.Outlay{
			AccountID:     account.ID,
			FunctionID:    function.ID,
			SubfunctionID: &subfunction.ID,
			ObjectClassID: &objectClass.ID,
			FiscalYear:    parser.FiscalYear(col, s.opts.DefaultFiscalYear),
			Period:        parser.Period(col),
			Amount:        amount,
			DataSource:    s.opts.DataSource,
			ImportBatchID: run.batch.ID,
			// Exact-match pipeline; fuzzy matching would lower this.
			ConfidenceScore: 1.0,
		})
	}

	return outlays, warnings, nil
}

// flush durably records pending facts and provenance, then advances the
// ledger counters. Partial progress up to the last successful flush
// survives a crash.
func (s *ImportService) flush(ctx context.Context, run *runState) error {
	if len(run.pending.outlays) > 0 {
		inserted, err := s.repo.BulkInsertOutlays(ctx, run.pending.outlays)
		if err != nil {
			return fmt.Errorf("failed to insert outlays: %w", err)
		}
		observability.OutlaysWritten.Add(float64(inserted))
		run.pending.outlays = run.pending.outlays[:0]
	}

	if len(run.pending.raw) > 0 {
		if _, err := s.repo.BulkInsertRawRows(ctx, run.pending.raw); err != nil {
			return fmt.Errorf("failed to insert raw import rows: %w", err)
		}
		run.pending.raw = run.pending.raw[:0]
	}

	run.sinceFlush = 0
	return s.repo.UpdateImportBatchProgress(ctx, run.batch.ID, run.stats)
}

// failRun marks the batch failed with the captured error and reports the
// failure to the caller. This is the only path that sets batch status
// "failed"; row-level failures keep the batch "completed".
func (s *ImportService) failRun(ctx context.Context, span trace.Span, run *runState, runErr error) (*Summary, error) {
	span.RecordError(runErr)
	span.SetStatus(codes.Error, "import run failed")

	errLog := runErr.Error()
	if err := s.repo.FinishImportBatch(ctx, run.batch.ID, repository.BatchStatusFailed, run.stats, &errLog); err != nil {
		s.logger.Error("failed to mark batch failed", "batch_id", run.batch.ID, "error", err)
	}
	s.logger.Error("import failed", "batch_id", run.batch.ID, "error", runErr)
	return s.summary(run, repository.BatchStatusFailed), runErr
}

func (s *ImportService) summary(run *runState, status string) *Summary {
	return &Summary{
		BatchID:    run.batch.ID,
		Status:     status,
		TotalRows:  run.batch.TotalRows,
		Successful: run.stats.Successful,
		Failed:     run.stats.Failed,
		Warnings:   run.stats.Warnings,
		Errors:     run.errors,
	}
}

// readTable parses the CSV into a trimmed header row and data records
func readTable(data []byte) ([]string, [][]string, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	headers, err := reader.Read()
	if err == io.EOF {
		return nil, nil, errors.New("file has no header row")
	}
	if err != nil {
		return nil, nil, err
	}
	for i, h := range headers {
		headers[i] = strings.TrimSpace(h)
	}

	var records [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, err
		}
		records = append(records, record)
	}

	return headers, records, nil
}

// fieldsByHeader maps a record's cells to their column names
func fieldsByHeader(headers []string, record []string) map[string]string {
	row := make(map[string]string, len(headers))
	for i, h := range headers {
		if i < len(record) {
			row[h] = record[i]
		}
	}
	return row
}

// encodeRow captures the row verbatim as a JSON key/value blob for
// provenance
func encodeRow(headers []string, record []string) string {
	blob, err := json.Marshal(fieldsByHeader(headers, record))
	if err != nil {
		// A map[string]string cannot fail to marshal; keep the raw cells
		// if it somehow does.
		return strings.Join(record, ",")
	}
	return string(blob)
}
