package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// PGXQuerier is the subset of pgxpool.Pool used by the repository. Keeping
// it narrow lets tests substitute a pgxmock pool.
type PGXQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

const (
	findAgencyByCodeQuery = `
		SELECT id, omb_code, title, abbreviation, created_at
		FROM agencies WHERE omb_code = $1`

	createAgencyQuery = `
		INSERT INTO agencies (id, omb_code, title, abbreviation)
		VALUES ($1, $2, $3, $4)`

	findBureauQuery = `
		SELECT id, agency_id, omb_code, title, abbreviation, created_at
		FROM bureaus WHERE agency_id = $1 AND omb_code = $2`

	createBureauQuery = `
		INSERT INTO bureaus (id, agency_id, omb_code, title, abbreviation)
		VALUES ($1, $2, $3, $4, $5)`

	findAccountQuery = `
		SELECT id, bureau_id, omb_account_code, title, description, created_at
		FROM accounts WHERE bureau_id = $1 AND omb_account_code = $2`

	createAccountQuery = `
		INSERT INTO accounts (id, bureau_id, omb_account_code, title, description)
		VALUES ($1, $2, $3, $4, $5)`

	findFunctionByCodeQuery = `
		SELECT id, code, title, description, created_at
		FROM budget_functions WHERE code = $1`

	createFunctionQuery = `
		INSERT INTO budget_functions (id, code, title, description)
		VALUES ($1, $2, $3, $4)`

	findSubfunctionQuery = `
		SELECT id, function_id, code, title, description, created_at
		FROM budget_subfunctions WHERE function_id = $1 AND code = $2`

	createSubfunctionQuery = `
		INSERT INTO budget_subfunctions (id, function_id, code, title, description)
		VALUES ($1, $2, $3, $4, $5)`

	findObjectClassByCodeQuery = `
		SELECT id, code, title, group_code, description, created_at
		FROM object_classes WHERE code = $1`

	createObjectClassQuery = `
		INSERT INTO object_classes (id, code, title, group_code, description)
		VALUES ($1, $2, $3, $4, $5)`

	createImportBatchQuery = `
		INSERT INTO import_batches (
			id, source_file, data_source, file_hash, total_rows,
			successful_imports, failed_imports, warnings, status, start_time
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
		RETURNING start_time`

	updateImportBatchProgressQuery = `
		UPDATE import_batches SET
			successful_imports = $2, failed_imports = $3, warnings = $4
		WHERE id = $1`

	finishImportBatchQuery = `
		UPDATE import_batches SET
			status = $2, successful_imports = $3, failed_imports = $4,
			warnings = $5, error_log = $6, end_time = NOW()
		WHERE id = $1`
)

// PostgresImportRepository implements ImportRepository using PostgreSQL
type PostgresImportRepository struct {
	db PGXQuerier
}

// NewPostgresImportRepository creates a new PostgreSQL-backed import repository
func NewPostgresImportRepository(db PGXQuerier) *PostgresImportRepository {
	return &PostgresImportRepository{db: db}
}

// FindAgencyByCode looks up an agency by its OMB code
func (r *PostgresImportRepository) FindAgencyByCode(ctx context.Context, code string) (*Agency, error) {
	var a Agency
	err := r.db.QueryRow(ctx, findAgencyByCodeQuery, code).Scan(
		&a.ID, &a.OMBCode, &a.Title, &a.Abbreviation, &a.CreatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find agency %s: %w", code, err)
	}
	return &a, nil
}

// CreateAgency inserts a new agency
func (r *PostgresImportRepository) CreateAgency(ctx context.Context, agency *Agency) error {
	if agency.ID == uuid.Nil {
		agency.ID = uuid.New()
	}
	_, err := r.db.Exec(ctx, createAgencyQuery,
		agency.ID, agency.OMBCode, agency.Title, agency.Abbreviation,
	)
	if err != nil {
		return fmt.Errorf("failed to create agency %s: %w", agency.OMBCode, err)
	}
	return nil
}

// FindBureau looks up a bureau by its composite (agency, code) key
func (r *PostgresImportRepository) FindBureau(ctx context.Context, agencyID uuid.UUID, code string) (*Bureau, error) {
	var b Bureau
	err := r.db.QueryRow(ctx, findBureauQuery, agencyID, code).Scan(
		&b.ID, &b.AgencyID, &b.OMBCode, &b.Title, &b.Abbreviation, &b.CreatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find bureau %s: %w", code, err)
	}
	return &b, nil
}

// CreateBureau inserts a new bureau
func (r *PostgresImportRepository) CreateBureau(ctx context.Context, bureau *Bureau) error {
	if bureau.ID == uuid.Nil {
		bureau.ID = uuid.New()
	}
	_, err := r.db.Exec(ctx, createBureauQuery,
		bureau.ID, bureau.AgencyID, bureau.OMBCode, bureau.Title, bureau.Abbreviation,
	)
	if err != nil {
		return fmt.Errorf("failed to create bureau %s: %w", bureau.OMBCode, err)
	}
	return nil
}

// FindAccount looks up an account by its composite (bureau, code) key
func (r *PostgresImportRepository) FindAccount(ctx context.Context, bureauID uuid.UUID, code string) (*Account, error) {
	var a Account
	err := r.db.QueryRow(ctx, findAccountQuery, bureauID, code).Scan(
		&a.ID, &a.BureauID, &a.OMBAccountCode, &a.Title, &a.Description, &a.CreatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find account %s: %w", code, err)
	}
	return &a, nil
}

// CreateAccount inserts a new account
func (r *PostgresImportRepository) CreateAccount(ctx context.Context, account *Account) error {
	if account.ID == uuid.Nil {
		account.ID = uuid.New()
	}
	_, err := r.db.Exec(ctx, createAccountQuery,
		account.ID, account.BureauID, account.OMBAccountCode, account.Title, account.Description,
	)
	if err != nil {
		return fmt.Errorf("failed to create account %s: %w", account.OMBAccountCode, err)
	}
	return nil
}

// FindFunctionByCode looks up a budget function by code
func (r *PostgresImportRepository) FindFunctionByCode(ctx context.Context, code string) (*BudgetFunction, error) {
	var f BudgetFunction
	err := r.db.QueryRow(ctx, findFunctionByCodeQuery, code).Scan(
		&f.ID, &f.Code, &f.Title, &f.Description, &f.CreatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find budget function %s: %w", code, err)
	}
	return &f, nil
}

// CreateFunction inserts a new budget function
func (r *PostgresImportRepository) CreateFunction(ctx context.Context, function *BudgetFunction) error {
	if function.ID == uuid.Nil {
		function.ID = uuid.New()
	}
	_, err := r.db.Exec(ctx, createFunctionQuery,
		function.ID, function.Code, function.Title, function.Description,
	)
	if err != nil {
		return fmt.Errorf("failed to create budget function %s: %w", function.Code, err)
	}
	return nil
}

// FindSubfunction looks up a subfunction by its composite (function, code) key
func (r *PostgresImportRepository) FindSubfunction(ctx context.Context, functionID uuid.UUID, code string) (*BudgetSubfunction, error) {
	var s BudgetSubfunction
	err := r.db.QueryRow(ctx, findSubfunctionQuery, functionID, code).Scan(
		&s.ID, &s.FunctionID, &s.Code, &s.Title, &s.Description, &s.CreatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find budget subfunction %s: %w", code, err)
	}
	return &s, nil
}

// CreateSubfunction inserts a new budget subfunction
func (r *PostgresImportRepository) CreateSubfunction(ctx context.Context, subfunction *BudgetSubfunction) error {
	if subfunction.ID == uuid.Nil {
		subfunction.ID = uuid.New()
	}
	_, err := r.db.Exec(ctx, createSubfunctionQuery,
		subfunction.ID, subfunction.FunctionID, subfunction.Code, subfunction.Title, subfunction.Description,
	)
	if err != nil {
		return fmt.Errorf("failed to create budget subfunction %s: %w", subfunction.Code, err)
	}
	return nil
}

// FindObjectClassByCode looks up an object class by code
func (r *PostgresImportRepository) FindObjectClassByCode(ctx context.Context, code string) (*ObjectClass, error) {
	var o ObjectClass
	err := r.db.QueryRow(ctx, findObjectClassByCodeQuery, code).Scan(
		&o.ID, &o.Code, &o.Title, &o.GroupCode, &o.Description, &o.CreatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find object class %s: %w", code, err)
	}
	return &o, nil
}

// CreateObjectClass inserts a new object class
func (r *PostgresImportRepository) CreateObjectClass(ctx context.Context, objectClass *ObjectClass) error {
	if objectClass.ID == uuid.Nil {
		objectClass.ID = uuid.New()
	}
	_, err := r.db.Exec(ctx, createObjectClassQuery,
		objectClass.ID, objectClass.Code, objectClass.Title, objectClass.GroupCode, objectClass.Description,
	)
	if err != nil {
		return fmt.Errorf("failed to create object class %s: %w", objectClass.Code, err)
	}
	return nil
}

// CreateImportBatch opens a new import batch record
func (r *PostgresImportRepository) CreateImportBatch(ctx context.Context, batch *ImportBatch) error {
	if batch.ID == uuid.Nil {
		batch.ID = uuid.New()
	}
	err := r.db.QueryRow(ctx, createImportBatchQuery,
		batch.ID, batch.SourceFile, batch.DataSource, batch.FileHash, batch.TotalRows,
		batch.SuccessfulImports, batch.FailedImports, batch.Warnings, batch.Status,
	).Scan(&batch.StartTime)
	if err != nil {
		return fmt.Errorf("failed to create import batch: %w", err)
	}
	return nil
}

// UpdateImportBatchProgress writes the running counters for a batch
func (r *PostgresImportRepository) UpdateImportBatchProgress(ctx context.Context, id uuid.UUID, stats BatchStats) error {
	_, err := r.db.Exec(ctx, updateImportBatchProgressQuery,
		id, stats.Successful, stats.Failed, stats.Warnings,
	)
	if err != nil {
		return fmt.Errorf("failed to update import batch progress: %w", err)
	}
	return nil
}

// FinishImportBatch writes the terminal status, final counters and end time
func (r *PostgresImportRepository) FinishImportBatch(ctx context.Context, id uuid.UUID, status string, stats BatchStats, errorLog *string) error {
	_, err := r.db.Exec(ctx, finishImportBatchQuery,
		id, status, stats.Successful, stats.Failed, stats.Warnings, errorLog,
	)
	if err != nil {
		return fmt.Errorf("failed to finish import batch: %w", err)
	}
	return nil
}

// BulkInsertOutlays inserts fact rows via COPY
func (r *PostgresImportRepository) BulkInsertOutlays(ctx context.Context, outlays []*Outlay) (int, error) {
	if len(outlays) == 0 {
		return 0, nil
	}

	columns := []string{
		"id", "account_id", "function_id", "subfunction_id", "object_class_id",
		"fiscal_year", "period", "amount", "data_source", "import_batch_id",
		"confidence_score",
	}

	count, err := r.db.CopyFrom(ctx,
		pgx.Identifier{"outlays"},
		columns,
		pgx.CopyFromSlice(len(outlays), func(i int) ([]any, error) {
			o := outlays[i]
			if o.ID == uuid.Nil {
				o.ID = uuid.New()
			}
			return []any{
				o.ID, o.AccountID, o.FunctionID, o.SubfunctionID, o.ObjectClassID,
				o.FiscalYear, o.Period, o.Amount, o.DataSource, o.ImportBatchID,
				o.ConfidenceScore,
			}, nil
		}),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to bulk insert outlays: %w", err)
	}

	return int(count), nil
}

// BulkInsertRawRows inserts provenance rows via COPY
func (r *PostgresImportRepository) BulkInsertRawRows(ctx context.Context, rows []*RawImportData) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	columns := []string{
		"id", "import_batch_id", "row_number", "raw_data", "row_hash",
		"import_status", "error_message",
	}

	count, err := r.db.CopyFrom(ctx,
		pgx.Identifier{"raw_import_data"},
		columns,
		pgx.CopyFromSlice(len(rows), func(i int) ([]any, error) {
			row := rows[i]
			if row.ID == uuid.Nil {
				row.ID = uuid.New()
			}
			return []any{
				row.ID, row.ImportBatchID, row.RowNumber, row.RawData, row.RowHash,
				row.ImportStatus, row.ErrorMessage,
			}, nil
		}),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to bulk insert raw import rows: %w", err)
	}

	return int(count), nil
}
