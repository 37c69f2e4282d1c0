package lifecycle

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"bank-statement-processor/internal/bankprofile"
	"bank-statement-processor/internal/extractor"
	"bank-statement-processor/internal/models"
	"bank-statement-processor/internal/storage"
	"bank-statement-processor/pkg/errors"
)

const sampleStatementText = `Chase Bank
Account Holder: JANE A. DOE
Account Number: ****1234
Statement Period: 03/01/2024 to 03/31/2024

Opening Balance: $1,000.00
03/14/2024 STARBUCKS COFFEE #4521 -6.75
03/15/2024 PAYROLL DEPOSIT +2,500.00
Closing Balance: $3,493.25
`

// stubSource serves canned page text; pages listed in fail error out.
type stubSource struct {
	pages []string
	fail  map[int]bool
	block chan struct{} // when set, Text waits for ctx cancellation
}

func (s *stubSource) Pages() int { return len(s.pages) }

func (s *stubSource) Text(ctx context.Context, page int) (string, error) {
	if s.block != nil {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-s.block:
		}
	}
	if s.fail[page] {
		return "", fmt.Errorf("page %d unreadable", page+1)
	}
	return s.pages[page], nil
}

func (s *stubSource) Close() error { return nil }

type stubExtractor struct {
	src     *stubSource
	openErr error
}

func (s *stubExtractor) Open(ctx context.Context, filePath string) (extractor.PageSource, error) {
	if s.openErr != nil {
		return nil, s.openErr
	}
	return s.src, nil
}

func newTestProcessor(t *testing.T, repo storage.Repository, ext extractor.Extractor) *Processor {
	t.Helper()
	registry, err := bankprofile.NewRegistry(bankprofile.DefaultProfiles(), nil)
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}
	p, err := NewProcessor(Components{
		Repository: repo,
		Registry:   registry,
		Extractor:  ext,
	}, nil)
	if err != nil {
		t.Fatalf("NewProcessor failed: %v", err)
	}
	return p
}

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing temp file: %v", err)
	}
	return path
}

func submitTestStatement(t *testing.T, p *Processor) *models.Statement {
	t.Helper()
	path := writeTempFile(t, "march.pdf", "%PDF-1.4 placeholder")
	stmt, err := p.Submit(context.Background(), uuid.New(), path)
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	return stmt
}

func logActions(t *testing.T, repo storage.Repository, statementID uuid.UUID) []string {
	t.Helper()
	entries, err := repo.ListLogs(context.Background(), statementID)
	if err != nil {
		t.Fatalf("ListLogs failed: %v", err)
	}
	actions := make([]string, 0, len(entries))
	for _, e := range entries {
		actions = append(actions, e.Action)
	}
	return actions
}

func TestNewProcessorRequiresComponents(t *testing.T) {
	repo := storage.NewMemory()
	registry, err := bankprofile.NewRegistry(nil, nil)
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}
	ext := &stubExtractor{src: &stubSource{}}

	tests := []struct {
		name string
		c    Components
	}{
		{"missing repository", Components{Registry: registry, Extractor: ext}},
		{"missing registry", Components{Repository: repo, Extractor: ext}},
		{"missing extractor", Components{Repository: repo, Registry: registry}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewProcessor(tt.c, nil); !errors.HasCategory(err, errors.CategoryConfiguration) {
				t.Errorf("expected configuration error, got %v", err)
			}
		})
	}
}

func TestSubmit(t *testing.T) {
	repo := storage.NewMemory()
	p := newTestProcessor(t, repo, &stubExtractor{src: &stubSource{}})

	stmt := submitTestStatement(t, p)

	if stmt.ProcessingStatus != models.StatusPending {
		t.Errorf("submitted status = %s, want pending", stmt.ProcessingStatus)
	}
	if stmt.FileType != "pdf" {
		t.Errorf("file type = %s, want pdf", stmt.FileType)
	}
	if stmt.StoredPath == "" {
		t.Error("stored path must be recorded for later processing")
	}

	actions := logActions(t, repo, stmt.ID)
	if len(actions) != 1 || actions[0] != models.ActionUpload {
		t.Errorf("expected a single upload log entry, got %v", actions)
	}
}

func TestSubmitRejections(t *testing.T) {
	repo := storage.NewMemory()
	p := newTestProcessor(t, repo, &stubExtractor{src: &stubSource{}})
	ctx := context.Background()

	t.Run("disallowed extension", func(t *testing.T) {
		path := writeTempFile(t, "statement.exe", "MZ")
		_, err := p.Submit(ctx, uuid.New(), path)
		if !errors.HasCategory(err, errors.CategoryValidation) {
			t.Errorf("expected validation error, got %v", err)
		}
	})

	t.Run("empty file", func(t *testing.T) {
		path := writeTempFile(t, "empty.pdf", "")
		_, err := p.Submit(ctx, uuid.New(), path)
		if !errors.HasCategory(err, errors.CategoryValidation) {
			t.Errorf("expected validation error, got %v", err)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := p.Submit(ctx, uuid.New(), filepath.Join(t.TempDir(), "nope.pdf"))
		if !errors.HasCategory(err, errors.CategoryValidation) {
			t.Errorf("expected validation error, got %v", err)
		}
	})
}

func TestProcessHappyPath(t *testing.T) {
	repo := storage.NewMemory()
	ext := &stubExtractor{src: &stubSource{pages: []string{sampleStatementText}}}
	p := newTestProcessor(t, repo, ext)
	ctx := context.Background()

	stmt := submitTestStatement(t, p)

	processed, err := p.Process(ctx, stmt.ID, "")
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	if processed.ProcessingStatus != models.StatusCompleted {
		t.Fatalf("status = %s, want completed", processed.ProcessingStatus)
	}
	if processed.ProcessedAt == nil {
		t.Error("completed statement must carry a processing timestamp")
	}
	if processed.BankName != "Chase Bank" {
		t.Errorf("bank name = %q, want Chase Bank", processed.BankName)
	}
	if processed.AccountNumber != "****1234" {
		t.Errorf("account number = %q, want ****1234", processed.AccountNumber)
	}
	if got := processed.TotalCredits.String(); got != "2500" {
		t.Errorf("total credits = %s, want 2500", got)
	}
	if got := processed.TotalDebits.String(); got != "6.75" {
		t.Errorf("total debits = %s, want 6.75", got)
	}

	txs, err := repo.ListTransactions(ctx, stmt.ID)
	if err != nil {
		t.Fatalf("ListTransactions failed: %v", err)
	}
	if len(txs) != 2 {
		t.Fatalf("parsed %d transactions, want 2", len(txs))
	}
	if txs[0].Category != "Food & Dining" || txs[0].Subcategory != "Coffee Shops" {
		t.Errorf("categorization = %s/%s, want Food & Dining/Coffee Shops",
			txs[0].Category, txs[0].Subcategory)
	}

	actions := logActions(t, repo, stmt.ID)
	want := []string{models.ActionUpload, models.ActionOCRStart, models.ActionOCRComplete,
		models.ActionParseComplete, models.ActionReconcile}
	if len(actions) != len(want) {
		t.Fatalf("log actions = %v, want %v", actions, want)
	}
	for i := range want {
		if actions[i] != want[i] {
			t.Errorf("log action[%d] = %s, want %s", i, actions[i], want[i])
		}
	}
}

func TestProcessPartialPageFailure(t *testing.T) {
	repo := storage.NewMemory()
	ext := &stubExtractor{src: &stubSource{
		pages: []string{sampleStatementText, "garbage", "03/20/2024 UBER TRIP -15.00"},
		fail:  map[int]bool{1: true},
	}}
	p := newTestProcessor(t, repo, ext)
	ctx := context.Background()

	stmt := submitTestStatement(t, p)

	processed, err := p.Process(ctx, stmt.ID, "chase")
	if !errors.HasCategory(err, errors.CategoryExtraction) {
		t.Fatalf("expected extraction error, got %v", err)
	}
	if processed.ProcessingStatus != models.StatusFailed {
		t.Fatalf("status = %s, want failed when a page could not be extracted", processed.ProcessingStatus)
	}
	if !strings.Contains(processed.ProcessingError, "page 2") {
		t.Errorf("failure message should name the failed page, got %q", processed.ProcessingError)
	}

	// The surviving pages' transactions are still parsed and persisted
	txs, err := repo.ListTransactions(ctx, stmt.ID)
	if err != nil {
		t.Fatalf("ListTransactions failed: %v", err)
	}
	if len(txs) != 3 {
		t.Errorf("parsed %d transactions, want 3 across surviving pages", len(txs))
	}
	if !processed.TotalDebits.Equal(decimal.RequireFromString("21.75")) {
		t.Errorf("total debits = %s, want 21.75 across surviving pages", processed.TotalDebits)
	}

	entries, err := repo.ListLogs(ctx, stmt.ID)
	if err != nil {
		t.Fatalf("ListLogs failed: %v", err)
	}
	var ocrEntry *models.ProcessingLogEntry
	for _, e := range entries {
		if e.Action == models.ActionOCRComplete {
			ocrEntry = e
		}
	}
	if ocrEntry == nil {
		t.Fatal("missing ocr_complete log entry")
	}
	if ocrEntry.Outcome != models.OutcomeWarning {
		t.Errorf("partial failure should record a warning, got %s", ocrEntry.Outcome)
	}
	if ocrEntry.PagesProcessed != 2 {
		t.Errorf("pages processed = %d, want 2", ocrEntry.PagesProcessed)
	}
	if last := entries[len(entries)-1].Action; last != models.ActionError {
		t.Errorf("final log action = %s, want error", last)
	}
}

func TestProcessFailsWhenAllPagesFail(t *testing.T) {
	repo := storage.NewMemory()
	ext := &stubExtractor{src: &stubSource{
		pages: []string{"a", "b"},
		fail:  map[int]bool{0: true, 1: true},
	}}
	p := newTestProcessor(t, repo, ext)
	ctx := context.Background()

	stmt := submitTestStatement(t, p)

	processed, err := p.Process(ctx, stmt.ID, "")
	if !errors.HasCategory(err, errors.CategoryExtraction) {
		t.Fatalf("expected extraction error, got %v", err)
	}
	if processed.ProcessingStatus != models.StatusFailed {
		t.Errorf("status = %s, want failed", processed.ProcessingStatus)
	}
	if !strings.Contains(processed.ProcessingError, "page 1") {
		t.Errorf("failure message should name the first failing page, got %q", processed.ProcessingError)
	}

	actions := logActions(t, repo, stmt.ID)
	if actions[len(actions)-1] != models.ActionError {
		t.Errorf("final log action = %s, want error", actions[len(actions)-1])
	}
}

func TestProcessNotPendingIsNoOp(t *testing.T) {
	repo := storage.NewMemory()
	ext := &stubExtractor{src: &stubSource{pages: []string{sampleStatementText}}}
	p := newTestProcessor(t, repo, ext)
	ctx := context.Background()

	stmt := submitTestStatement(t, p)

	if _, err := p.Process(ctx, stmt.ID, ""); err != nil {
		t.Fatalf("first Process failed: %v", err)
	}

	again, err := p.Process(ctx, stmt.ID, "")
	if err != nil {
		t.Fatalf("reprocessing a completed statement must be a no-op, got %v", err)
	}
	if again.ProcessingStatus != models.StatusCompleted {
		t.Errorf("status = %s, want completed unchanged", again.ProcessingStatus)
	}

	txs, err := repo.ListTransactions(ctx, stmt.ID)
	if err != nil {
		t.Fatalf("ListTransactions failed: %v", err)
	}
	if len(txs) != 2 {
		t.Errorf("no-op run must not duplicate transactions, got %d", len(txs))
	}
}

func TestProcessCancelledContext(t *testing.T) {
	repo := storage.NewMemory()
	src := &stubSource{pages: []string{sampleStatementText}, block: make(chan struct{})}
	p := newTestProcessor(t, repo, &stubExtractor{src: src})

	stmt := submitTestStatement(t, p)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	processed, err := p.Process(ctx, stmt.ID, "")
	if !errors.HasCategory(err, errors.CategoryLifecycle) {
		t.Fatalf("expected lifecycle error, got %v", err)
	}
	if processed.ProcessingStatus != models.StatusFailed {
		t.Errorf("status = %s, want failed", processed.ProcessingStatus)
	}
	if !strings.Contains(processed.ProcessingError, "cancelled") {
		t.Errorf("failure message = %q, want mention of cancellation", processed.ProcessingError)
	}
}

func TestResetAfterFailure(t *testing.T) {
	repo := storage.NewMemory()
	ext := &stubExtractor{src: &stubSource{
		pages: []string{"x"},
		fail:  map[int]bool{0: true},
	}}
	p := newTestProcessor(t, repo, ext)
	ctx := context.Background()

	stmt := submitTestStatement(t, p)

	if _, err := p.Process(ctx, stmt.ID, ""); err == nil {
		t.Fatal("expected processing to fail")
	}

	reset, err := p.Reset(ctx, stmt.ID)
	if err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	if reset.ProcessingStatus != models.StatusPending {
		t.Errorf("status after reset = %s, want pending", reset.ProcessingStatus)
	}
	if reset.ProcessingError != "" {
		t.Errorf("reset should clear the failure message, got %q", reset.ProcessingError)
	}

	actions := logActions(t, repo, stmt.ID)
	if actions[len(actions)-1] != models.ActionReset {
		t.Errorf("final log action = %s, want reset", actions[len(actions)-1])
	}
}

func TestResetPendingConflicts(t *testing.T) {
	repo := storage.NewMemory()
	p := newTestProcessor(t, repo, &stubExtractor{src: &stubSource{}})

	stmt := submitTestStatement(t, p)

	if _, err := p.Reset(context.Background(), stmt.ID); !errors.HasCategory(err, errors.CategoryStorage) {
		t.Errorf("resetting a pending statement must conflict, got %v", err)
	}
}
