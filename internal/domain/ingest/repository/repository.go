// Package repository provides data access for the OBJCLASS star schema.
package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Import batch lifecycle states
const (
	BatchStatusPending    = "pending"
	BatchStatusProcessing = "processing"
	BatchStatusCompleted  = "completed"
	BatchStatusFailed     = "failed"
)

// Per-row import states recorded in raw_import_data
const (
	RowStatusProcessing = "processing"
	RowStatusSuccess    = "success"
	RowStatusFailed     = "failed"
)

// Agency is the top of the dimension hierarchy, keyed by OMB code
type Agency struct {
	ID           uuid.UUID `db:"id"`
	OMBCode      string    `db:"omb_code"`
	Title        string    `db:"title"`
	Abbreviation *string   `db:"abbreviation"`
	CreatedAt    time.Time `db:"created_at"`
}

// Bureau belongs to exactly one agency; its code is only unique per agency
type Bureau struct {
	ID           uuid.UUID `db:"id"`
	AgencyID     uuid.UUID `db:"agency_id"`
	OMBCode      string    `db:"omb_code"`
	Title        string    `db:"title"`
	Abbreviation *string   `db:"abbreviation"`
	CreatedAt    time.Time `db:"created_at"`
}

// Account belongs to exactly one bureau
type Account struct {
	ID             uuid.UUID `db:"id"`
	BureauID       uuid.UUID `db:"bureau_id"`
	OMBAccountCode string    `db:"omb_account_code"`
	Title          string    `db:"title"`
	Description    *string   `db:"description"`
	CreatedAt      time.Time `db:"created_at"`
}

// BudgetFunction is keyed by a globally unique code
type BudgetFunction struct {
	ID          uuid.UUID `db:"id"`
	Code        string    `db:"code"`
	Title       string    `db:"title"`
	Description *string   `db:"description"`
	CreatedAt   time.Time `db:"created_at"`
}

// BudgetSubfunction belongs to exactly one budget function
type BudgetSubfunction struct {
	ID          uuid.UUID `db:"id"`
	FunctionID  uuid.UUID `db:"function_id"`
	Code        string    `db:"code"`
	Title       string    `db:"title"`
	Description *string   `db:"description"`
	CreatedAt   time.Time `db:"created_at"`
}

// ObjectClass is keyed by a globally unique code; the group code is derived
// by truncating the code at the first period
type ObjectClass struct {
	ID          uuid.UUID `db:"id"`
	Code        string    `db:"code"`
	Title       string    `db:"title"`
	GroupCode   string    `db:"group_code"`
	Description *string   `db:"description"`
	CreatedAt   time.Time `db:"created_at"`
}

// Outlay is one disbursement fact row. Amount is in thousands of dollars to
// match the OMB format. Subfunction and object class are nullable in the
// schema but always populated by this pipeline.
type Outlay struct {
	ID              uuid.UUID  `db:"id"`
	AccountID       uuid.UUID  `db:"account_id"`
	FunctionID      uuid.UUID  `db:"function_id"`
	SubfunctionID   *uuid.UUID `db:"subfunction_id"`
	ObjectClassID   *uuid.UUID `db:"object_class_id"`
	FiscalYear      int        `db:"fiscal_year"`
	Period          string     `db:"period"`
	Amount          int64      `db:"amount"`
	DataSource      string     `db:"data_source"`
	ImportBatchID   uuid.UUID  `db:"import_batch_id"`
	ConfidenceScore float64    `db:"confidence_score"`
	CreatedAt       time.Time  `db:"created_at"`
}

// ImportBatch is one ingestion run's unit of accounting and audit
type ImportBatch struct {
	ID                uuid.UUID  `db:"id" json:"id"`
	SourceFile        string     `db:"source_file" json:"source_file"`
	DataSource        string     `db:"data_source" json:"data_source"`
	FileHash          string     `db:"file_hash" json:"file_hash"`
	TotalRows         int        `db:"total_rows" json:"total_rows"`
	SuccessfulImports int        `db:"successful_imports" json:"successful_imports"`
	FailedImports     int        `db:"failed_imports" json:"failed_imports"`
	Warnings          int        `db:"warnings" json:"warnings"`
	Status            string     `db:"status" json:"status"`
	StartTime         time.Time  `db:"start_time" json:"start_time"`
	EndTime           *time.Time `db:"end_time" json:"end_time,omitempty"`
	ErrorLog          *string    `db:"error_log" json:"error_log,omitempty"`
	WarningLog        *string    `db:"warning_log" json:"warning_log,omitempty"`
}

// RawImportData is the immutable provenance record for one source row
type RawImportData struct {
	ID            uuid.UUID `db:"id"`
	ImportBatchID uuid.UUID `db:"import_batch_id"`
	RowNumber     int       `db:"row_number"`
	RawData       string    `db:"raw_data"`
	RowHash       string    `db:"row_hash"`
	ImportStatus  string    `db:"import_status"`
	ErrorMessage  *string   `db:"error_message"`
	CreatedAt     time.Time `db:"created_at"`
}

// MappingLog records how a source value was mapped to a dimension row. The
// table exists for the fuzzy-matching extension; this exact-match pipeline
// does not write to it.
type MappingLog struct {
	ID              uuid.UUID  `db:"id"`
	SourceField     string     `db:"source_field"`
	SourceValue     string     `db:"source_value"`
	TargetTable     string     `db:"target_table"`
	TargetID        *uuid.UUID `db:"target_id"`
	ConfidenceScore float64    `db:"confidence_score"`
	MappingMethod   string     `db:"mapping_method"`
	ImportBatchID   uuid.UUID  `db:"import_batch_id"`
	CreatedAt       time.Time  `db:"created_at"`
}

// BatchStats carries the aggregate counters written back to an import batch
type BatchStats struct {
	Successful int
	Failed     int
	Warnings   int
}

// ImportRepository defines data access operations for OBJCLASS ingestion.
// Find methods return (nil, nil) when no row matches.
type ImportRepository interface {
	// Dimensions
	FindAgencyByCode(ctx context.Context, code string) (*Agency, error)
	CreateAgency(ctx context.Context, agency *Agency) error
	FindBureau(ctx context.Context, agencyID uuid.UUID, code string) (*Bureau, error)
	CreateBureau(ctx context.Context, bureau *Bureau) error
	FindAccount(ctx context.Context, bureauID uuid.UUID, code string) (*Account, error)
	CreateAccount(ctx context.Context, account *Account) error
	FindFunctionByCode(ctx context.Context, code string) (*BudgetFunction, error)
	CreateFunction(ctx context.Context, function *BudgetFunction) error
	FindSubfunction(ctx context.Context, functionID uuid.UUID, code string) (*BudgetSubfunction, error)
	CreateSubfunction(ctx context.Context, subfunction *BudgetSubfunction) error
	FindObjectClassByCode(ctx context.Context, code string) (*ObjectClass, error)
	CreateObjectClass(ctx context.Context, objectClass *ObjectClass) error

	// Import batches
	CreateImportBatch(ctx context.Context, batch *ImportBatch) error
	UpdateImportBatchProgress(ctx context.Context, id uuid.UUID, stats BatchStats) error
	FinishImportBatch(ctx context.Context, id uuid.UUID, status string, stats BatchStats, errorLog *string) error

	// Facts and provenance (bulk, flushed periodically)
	BulkInsertOutlays(ctx context.Context, outlays []*Outlay) (int, error)
	BulkInsertRawRows(ctx context.Context, rows []*RawImportData) (int, error)
}
