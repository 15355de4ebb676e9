package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/FACorreiaa/federal-budget-tracker/internal/domain/ingest/repository"
)

const objclassHeader = "OMB Agency Code,Agency Title,OMB Bureau Code,Bureau Title," +
	"OMB Account,Account _Title,Default Budget Function,Default Budget Subfunction," +
	"OB Class Code,OB Class,2026 PY Amount,2026 CY Amount"

func writeCSV(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "objclass.csv")
	content := strings.Join(append([]string{objclassHeader}, lines...), "\n") + "\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	return path
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestProcessFile_EndToEnd(t *testing.T) {
	// Row 1: valid, one nonzero PY amount, zero CY amount.
	// Row 2: blank agency code, resolution fails.
	// Row 3: duplicates row 1's dimension chain, no amounts.
	path := writeCSV(t,
		`091,"Department of Education (ED)",10,Office of the Secretary,0100,Salaries and Expenses,"501 - Education, Training, Employment",501.1 - Elementary education,25.1,Advisory services,"1,234.50",0`,
		`,"Broken Agency",10,Office of the Secretary,0100,Salaries and Expenses,501 - Education,501.1 - Elementary education,25.1,Advisory services,100,200`,
		`091,"Department of Education (ED)",10,Office of the Secretary,0100,Salaries and Expenses,"501 - Education, Training, Employment",501.1 - Elementary education,25.1,Advisory services,,`,
	)

	repo := newFakeRepo()
	svc := NewImportService(repo, testLogger(), Options{})

	summary, err := svc.ProcessFile(context.Background(), path)
	if err != nil {
		t.Fatalf("ProcessFile: %v", err)
	}

	if summary.TotalRows != 3 || summary.Successful != 2 || summary.Failed != 1 {
		t.Fatalf("unexpected stats: %+v", summary)
	}
	if summary.Status != repository.BatchStatusCompleted {
		t.Fatalf("expected completed batch, got %s", summary.Status)
	}

	// Row 3 reuses row 1's cache entries: one agency created in total.
	if repo.agencyCreates != 1 {
		t.Fatalf("expected 1 agency creation, got %d", repo.agencyCreates)
	}

	// Row 1 emits one outlay; the zero CY cell is dropped.
	if len(repo.outlays) != 1 {
		t.Fatalf("expected 1 outlay, got %d", len(repo.outlays))
	}
	outlay := repo.outlays[0]
	if outlay.Amount != 1234500 {
		t.Fatalf("unexpected amount: %d", outlay.Amount)
	}
	if outlay.Period != "PY" || outlay.FiscalYear != 2026 {
		t.Fatalf("unexpected period/year: %s/%d", outlay.Period, outlay.FiscalYear)
	}
	if outlay.ConfidenceScore != 1.0 {
		t.Fatalf("unexpected confidence: %f", outlay.ConfidenceScore)
	}

	// Every row leaves a provenance record; only row 2 is failed.
	if len(repo.rawRows) != 3 {
		t.Fatalf("expected 3 raw rows, got %d", len(repo.rawRows))
	}
	byNumber := make(map[int]*repository.RawImportData)
	for _, raw := range repo.rawRows {
		byNumber[raw.RowNumber] = raw
	}
	if byNumber[1].ImportStatus != repository.RowStatusSuccess {
		t.Fatalf("row 1 status: %s", byNumber[1].ImportStatus)
	}
	if byNumber[2].ImportStatus != repository.RowStatusFailed {
		t.Fatalf("row 2 status: %s", byNumber[2].ImportStatus)
	}
	if byNumber[2].ErrorMessage == nil || !strings.Contains(*byNumber[2].ErrorMessage, "agency") {
		t.Fatalf("row 2 error message: %v", byNumber[2].ErrorMessage)
	}
	if byNumber[3].ImportStatus != repository.RowStatusSuccess {
		t.Fatalf("row 3 status: %s", byNumber[3].ImportStatus)
	}

	batch := repo.batches[summary.BatchID]
	if batch.Status != repository.BatchStatusCompleted {
		t.Fatalf("batch status: %s", batch.Status)
	}
	if batch.SuccessfulImports != 2 || batch.FailedImports != 1 {
		t.Fatalf("batch counters: %+v", batch)
	}
	if batch.EndTime == nil {
		t.Fatal("batch end time not set")
	}
	if len(batch.FileHash) != 64 {
		t.Fatalf("expected sha256 file hash, got %q", batch.FileHash)
	}
}

func TestProcessFile_RerunCreatesNoDuplicateDimensions(t *testing.T) {
	path := writeCSV(t,
		`091,Department of Education,10,Office of the Secretary,0100,Salaries,501 - Education,501.1 - Elementary,25.1,Advisory,100,`,
	)

	repo := newFakeRepo()
	svc := NewImportService(repo, testLogger(), Options{})

	if _, err := svc.ProcessFile(context.Background(), path); err != nil {
		t.Fatalf("first run: %v", err)
	}
	firstCreates := repo.agencyCreates
	firstOutlays := len(repo.outlays)

	// Second run over the same file resolves against the persisted store.
	if _, err := svc.ProcessFile(context.Background(), path); err != nil {
		t.Fatalf("second run: %v", err)
	}

	if repo.agencyCreates != firstCreates {
		t.Fatalf("second run created agencies: %d -> %d", firstCreates, repo.agencyCreates)
	}
	if len(repo.outlays) != 2*firstOutlays {
		t.Fatalf("expected outlays to grow to %d, got %d", 2*firstOutlays, len(repo.outlays))
	}
	if len(repo.batches) != 2 {
		t.Fatalf("expected 2 batches, got %d", len(repo.batches))
	}
}

func TestProcessFile_StructuralFailureAbortsBeforeBatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.csv")
	content := "Agency,Title,PY Amount\n091,Education,100\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write csv: %v", err)
	}

	repo := newFakeRepo()
	svc := NewImportService(repo, testLogger(), Options{})

	_, err := svc.ProcessFile(context.Background(), path)
	if !errors.Is(err, ErrInvalidStructure) {
		t.Fatalf("expected ErrInvalidStructure, got %v", err)
	}
	if len(repo.batches) != 0 {
		t.Fatal("no batch may be opened on structural failure")
	}
	if len(repo.rawRows) != 0 {
		t.Fatal("no rows may be processed on structural failure")
	}
}

func TestProcessFile_MissingFile(t *testing.T) {
	repo := newFakeRepo()
	svc := NewImportService(repo, testLogger(), Options{})

	_, err := svc.ProcessFile(context.Background(), filepath.Join(t.TempDir(), "absent.csv"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if len(repo.batches) != 0 {
		t.Fatal("no batch may be opened for an unreadable file")
	}
}

func TestProcessFile_FlushInterval(t *testing.T) {
	var lines []string
	for i := 0; i < 5; i++ {
		lines = append(lines, fmt.Sprintf(
			`091,Education,10,Secretary,0100,Salaries,501 - Education,501.1 - Elementary,25.1,Advisory,%d,`, i+1))
	}
	path := writeCSV(t, lines...)

	repo := newFakeRepo()
	svc := NewImportService(repo, testLogger(), Options{FlushEvery: 2})

	summary, err := svc.ProcessFile(context.Background(), path)
	if err != nil {
		t.Fatalf("ProcessFile: %v", err)
	}
	if summary.Successful != 5 {
		t.Fatalf("expected 5 successful rows, got %d", summary.Successful)
	}

	// 5 rows at a flush interval of 2: two full flushes plus the tail.
	if len(repo.rawBatchSizes) != 3 {
		t.Fatalf("expected 3 raw flushes, got %v", repo.rawBatchSizes)
	}
	if repo.rawBatchSizes[0] != 2 || repo.rawBatchSizes[1] != 2 || repo.rawBatchSizes[2] != 1 {
		t.Fatalf("unexpected flush sizes: %v", repo.rawBatchSizes)
	}
	if len(repo.progressCalls) != 3 {
		t.Fatalf("expected 3 progress updates, got %d", len(repo.progressCalls))
	}
	if last := repo.progressCalls[len(repo.progressCalls)-1]; last.Successful != 5 {
		t.Fatalf("unexpected final progress: %+v", last)
	}
}

func TestProcessFile_InsertFailureMarksBatchFailed(t *testing.T) {
	path := writeCSV(t,
		`091,Education,10,Secretary,0100,Salaries,501 - Education,501.1 - Elementary,25.1,Advisory,100,`,
	)

	repo := newFakeRepo()
	repo.failBulkOutlays = errors.New("copy failed")
	svc := NewImportService(repo, testLogger(), Options{})

	summary, err := svc.ProcessFile(context.Background(), path)
	if err == nil {
		t.Fatal("expected run error")
	}
	if summary == nil || summary.Status != repository.BatchStatusFailed {
		t.Fatalf("expected failed summary, got %+v", summary)
	}

	batch := repo.batches[summary.BatchID]
	if batch.Status != repository.BatchStatusFailed {
		t.Fatalf("batch status: %s", batch.Status)
	}
	if batch.ErrorLog == nil || !strings.Contains(*batch.ErrorLog, "copy failed") {
		t.Fatalf("error log: %v", batch.ErrorLog)
	}
}

func TestProcessFile_SingleTokenFunctionCountsWarning(t *testing.T) {
	path := writeCSV(t,
		`091,Education,10,Secretary,0100,Salaries,GENERAL,501.1 - Elementary,25.1,Advisory,100,`,
	)

	repo := newFakeRepo()
	svc := NewImportService(repo, testLogger(), Options{})

	summary, err := svc.ProcessFile(context.Background(), path)
	if err != nil {
		t.Fatalf("ProcessFile: %v", err)
	}
	if summary.Successful != 1 {
		t.Fatalf("expected success, got %+v", summary)
	}
	if summary.Warnings != 1 {
		t.Fatalf("expected 1 warning for separator fallback, got %d", summary.Warnings)
	}
	// Fallback uses the whole field as both code and name.
	if repo.functions["GENERAL"] == nil {
		t.Fatal("expected function keyed by whole field value")
	}
}

// fakeRepo is an in-memory ImportRepository recording calls for assertions
type fakeRepo struct {
	agencies      map[string]*repository.Agency
	bureaus       map[string]*repository.Bureau
	accounts      map[string]*repository.Account
	functions     map[string]*repository.BudgetFunction
	subfunctions  map[string]*repository.BudgetSubfunction
	objectClasses map[string]*repository.ObjectClass

	batches map[uuid.UUID]*repository.ImportBatch
	outlays []*repository.Outlay
	rawRows []*repository.RawImportData

	agencyCreates   int
	rawBatchSizes   []int
	progressCalls   []repository.BatchStats
	failBulkOutlays error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		agencies:      make(map[string]*repository.Agency),
		bureaus:       make(map[string]*repository.Bureau),
		accounts:      make(map[string]*repository.Account),
		functions:     make(map[string]*repository.BudgetFunction),
		subfunctions:  make(map[string]*repository.BudgetSubfunction),
		objectClasses: make(map[string]*repository.ObjectClass),
		batches:       make(map[uuid.UUID]*repository.ImportBatch),
	}
}

func (f *fakeRepo) FindAgencyByCode(_ context.Context, code string) (*repository.Agency, error) {
	return f.agencies[code], nil
}

func (f *fakeRepo) CreateAgency(_ context.Context, agency *repository.Agency) error {
	f.agencyCreates++
	agency.ID = uuid.New()
	f.agencies[agency.OMBCode] = agency
	return nil
}

func (f *fakeRepo) FindBureau(_ context.Context, agencyID uuid.UUID, code string) (*repository.Bureau, error) {
	return f.bureaus[agencyID.String()+":"+code], nil
}

func (f *fakeRepo) CreateBureau(_ context.Context, bureau *repository.Bureau) error {
	bureau.ID = uuid.New()
	f.bureaus[bureau.AgencyID.String()+":"+bureau.OMBCode] = bureau
	return nil
}

func (f *fakeRepo) FindAccount(_ context.Context, bureauID uuid.UUID, code string) (*repository.Account, error) {
	return f.accounts[bureauID.String()+":"+code], nil
}

func (f *fakeRepo) CreateAccount(_ context.Context, account *repository.Account) error {
	account.ID = uuid.New()
	f.accounts[account.BureauID.String()+":"+account.OMBAccountCode] = account
	return nil
}

func (f *fakeRepo) FindFunctionByCode(_ context.Context, code string) (*repository.BudgetFunction, error) {
	return f.functions[code], nil
}

func (f *fakeRepo) CreateFunction(_ context.Context, function *repository.BudgetFunction) error {
	function.ID = uuid.New()
	f.functions[function.Code] = function
	return nil
}

func (f *fakeRepo) FindSubfunction(_ context.Context, functionID uuid.UUID, code string) (*repository.BudgetSubfunction, error) {
	return f.subfunctions[functionID.String()+":"+code], nil
}

func (f *fakeRepo) CreateSubfunction(_ context.Context, subfunction *repository.BudgetSubfunction) error {
	subfunction.ID = uuid.New()
	f.subfunctions[subfunction.FunctionID.String()+":"+subfunction.Code] = subfunction
	return nil
}

func (f *fakeRepo) FindObjectClassByCode(_ context.Context, code string) (*repository.ObjectClass, error) {
	return f.objectClasses[code], nil
}

func (f *fakeRepo) CreateObjectClass(_ context.Context, objectClass *repository.ObjectClass) error {
	objectClass.ID = uuid.New()
	f.objectClasses[objectClass.Code] = objectClass
	return nil
}

func (f *fakeRepo) CreateImportBatch(_ context.Context, batch *repository.ImportBatch) error {
	batch.ID = uuid.New()
	f.batches[batch.ID] = batch
	return nil
}

func (f *fakeRepo) UpdateImportBatchProgress(_ context.Context, id uuid.UUID, stats repository.BatchStats) error {
	f.progressCalls = append(f.progressCalls, stats)
	if batch, ok := f.batches[id]; ok {
		batch.SuccessfulImports = stats.Successful
		batch.FailedImports = stats.Failed
		batch.Warnings = stats.Warnings
	}
	return nil
}

func (f *fakeRepo) FinishImportBatch(_ context.Context, id uuid.UUID, status string, stats repository.BatchStats, errorLog *string) error {
	batch, ok := f.batches[id]
	if !ok {
		return fmt.Errorf("unknown batch %s", id)
	}
	batch.Status = status
	batch.SuccessfulImports = stats.Successful
	batch.FailedImports = stats.Failed
	batch.Warnings = stats.Warnings
	batch.ErrorLog = errorLog
	now := batch.StartTime
	batch.EndTime = &now
	return nil
}

func (f *fakeRepo) BulkInsertOutlays(_ context.Context, outlays []*repository.Outlay) (int, error) {
	if f.failBulkOutlays != nil {
		return 0, f.failBulkOutlays
	}
	f.outlays = append(f.outlays, outlays...)
	return len(outlays), nil
}

func (f *fakeRepo) BulkInsertRawRows(_ context.Context, rows []*repository.RawImportData) (int, error) {
	f.rawBatchSizes = append(f.rawBatchSizes, len(rows))
	f.rawRows = append(f.rawRows, rows...)
	return len(rows), nil
}
