package storage

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"bank-statement-processor/internal/models"
	"bank-statement-processor/pkg/errors"
)

func newTestUser(t *testing.T, repo Repository, email string) *models.User {
	t.Helper()
	user := &models.User{
		ID:           uuid.New(),
		Username:     "tester",
		Email:        email,
		PasswordHash: "x",
		CreatedAt:    time.Now().UTC(),
	}
	if err := repo.CreateUser(context.Background(), user); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	return user
}

func newTestStatement(t *testing.T, repo Repository, userID uuid.UUID) *models.Statement {
	t.Helper()
	stmt := models.NewStatement(userID, "march.pdf", 2048, "pdf")
	if err := repo.CreateStatement(context.Background(), stmt); err != nil {
		t.Fatalf("CreateStatement failed: %v", err)
	}
	return stmt
}

func TestMemoryUserUniqueEmail(t *testing.T) {
	repo := NewMemory()
	ctx := context.Background()

	newTestUser(t, repo, "jane@example.com")

	dup := &models.User{ID: uuid.New(), Username: "other", Email: "Jane@Example.COM"}
	err := repo.CreateUser(ctx, dup)
	if !errors.HasCategory(err, errors.CategoryStorage) {
		t.Fatalf("duplicate email should conflict, got %v", err)
	}

	found, err := repo.GetUserByEmail(ctx, "JANE@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail failed: %v", err)
	}
	if found.Username != "tester" {
		t.Errorf("lookup returned wrong user: %s", found.Username)
	}
}

func TestMemoryStatementLifecycle(t *testing.T) {
	repo := NewMemory()
	ctx := context.Background()

	user := newTestUser(t, repo, "jane@example.com")
	stmt := newTestStatement(t, repo, user.ID)

	got, err := repo.GetStatement(ctx, stmt.ID)
	if err != nil {
		t.Fatalf("GetStatement failed: %v", err)
	}
	if got.ProcessingStatus != models.StatusPending {
		t.Errorf("new statement status = %s, want pending", got.ProcessingStatus)
	}

	got.BankName = "Chase Bank"
	credits := decimal.NewFromFloat(2500)
	got.TotalCredits = credits
	if err := repo.UpdateStatement(ctx, got); err != nil {
		t.Fatalf("UpdateStatement failed: %v", err)
	}

	again, err := repo.GetStatement(ctx, stmt.ID)
	if err != nil {
		t.Fatalf("GetStatement failed: %v", err)
	}
	if again.BankName != "Chase Bank" || !again.TotalCredits.Equal(credits) {
		t.Errorf("update not persisted: %+v", again)
	}

	if _, err := repo.GetStatement(ctx, uuid.New()); !errors.HasCategory(err, errors.CategoryStorage) {
		t.Errorf("missing statement should return storage error, got %v", err)
	}
}

func TestMemoryListStatementsByUser(t *testing.T) {
	repo := NewMemory()
	ctx := context.Background()

	jane := newTestUser(t, repo, "jane@example.com")
	bob := newTestUser(t, repo, "bob@example.com")
	newTestStatement(t, repo, jane.ID)
	newTestStatement(t, repo, jane.ID)
	newTestStatement(t, repo, bob.ID)

	stmts, err := repo.ListStatements(ctx, jane.ID)
	if err != nil {
		t.Fatalf("ListStatements failed: %v", err)
	}
	if len(stmts) != 2 {
		t.Errorf("ListStatements returned %d statements, want 2", len(stmts))
	}
	for _, s := range stmts {
		if s.UserID != jane.ID {
			t.Errorf("listing leaked another user's statement: %s", s.ID)
		}
	}
}

func TestMemoryClaimForProcessing(t *testing.T) {
	repo := NewMemory()
	ctx := context.Background()

	user := newTestUser(t, repo, "jane@example.com")
	stmt := newTestStatement(t, repo, user.ID)

	claimed, err := repo.ClaimForProcessing(ctx, stmt.ID)
	if err != nil || !claimed {
		t.Fatalf("first claim = (%v, %v), want (true, nil)", claimed, err)
	}

	claimed, err = repo.ClaimForProcessing(ctx, stmt.ID)
	if err != nil {
		t.Fatalf("second claim errored: %v", err)
	}
	if claimed {
		t.Error("second claim must observe claimed=false")
	}

	got, err := repo.GetStatement(ctx, stmt.ID)
	if err != nil {
		t.Fatalf("GetStatement failed: %v", err)
	}
	if got.ProcessingStatus != models.StatusProcessing {
		t.Errorf("claimed statement status = %s, want processing", got.ProcessingStatus)
	}

	if _, err := repo.ClaimForProcessing(ctx, uuid.New()); !errors.HasCategory(err, errors.CategoryStorage) {
		t.Errorf("claiming a missing statement should return storage error, got %v", err)
	}
}

func TestMemoryClaimForProcessingConcurrent(t *testing.T) {
	repo := NewMemory()
	ctx := context.Background()

	user := newTestUser(t, repo, "jane@example.com")
	stmt := newTestStatement(t, repo, user.ID)

	const workers = 32
	var wg sync.WaitGroup
	results := make(chan bool, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			claimed, err := repo.ClaimForProcessing(ctx, stmt.ID)
			if err != nil {
				t.Errorf("claim errored: %v", err)
				return
			}
			results <- claimed
		}()
	}
	wg.Wait()
	close(results)

	var winners int
	for claimed := range results {
		if claimed {
			winners++
		}
	}
	if winners != 1 {
		t.Errorf("%d workers won the claim, want exactly 1", winners)
	}
}

func TestMemoryResetStatement(t *testing.T) {
	repo := NewMemory()
	ctx := context.Background()

	user := newTestUser(t, repo, "jane@example.com")

	tests := []struct {
		name     string
		status   models.StatementStatus
		wantConf bool
	}{
		{"pending cannot reset", models.StatusPending, true},
		{"processing cannot reset", models.StatusProcessing, true},
		{"completed resets", models.StatusCompleted, false},
		{"failed resets", models.StatusFailed, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stmt := newTestStatement(t, repo, user.ID)
			stmt.ProcessingStatus = tt.status
			stmt.ProcessingError = "boom"
			if err := repo.UpdateStatement(ctx, stmt); err != nil {
				t.Fatalf("UpdateStatement failed: %v", err)
			}

			err := repo.ResetStatement(ctx, stmt.ID)
			if tt.wantConf {
				if !errors.HasCategory(err, errors.CategoryStorage) {
					t.Fatalf("expected conflict, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ResetStatement failed: %v", err)
			}

			got, err := repo.GetStatement(ctx, stmt.ID)
			if err != nil {
				t.Fatalf("GetStatement failed: %v", err)
			}
			if got.ProcessingStatus != models.StatusPending {
				t.Errorf("reset status = %s, want pending", got.ProcessingStatus)
			}
			if got.ProcessingError != "" {
				t.Errorf("reset should clear the processing error, got %q", got.ProcessingError)
			}
		})
	}
}

func TestMemoryDeleteStatementCascades(t *testing.T) {
	repo := NewMemory()
	ctx := context.Background()

	user := newTestUser(t, repo, "jane@example.com")
	stmt := newTestStatement(t, repo, user.ID)

	when := time.Now().UTC()
	tx := &models.Transaction{
		ID:              uuid.New(),
		StatementID:     stmt.ID,
		TransactionDate: &when,
		Description:     "STARBUCKS COFFEE #4521",
		Amount:          decimal.NewFromFloat(6.75),
		Type:            models.TypeDebit,
	}
	if err := repo.CreateTransactions(ctx, []*models.Transaction{tx}); err != nil {
		t.Fatalf("CreateTransactions failed: %v", err)
	}
	entry := models.NewLogEntry(stmt.ID, "upload", models.OutcomeSuccess, "received")
	if err := repo.AppendLog(ctx, entry); err != nil {
		t.Fatalf("AppendLog failed: %v", err)
	}

	if err := repo.DeleteStatement(ctx, stmt.ID); err != nil {
		t.Fatalf("DeleteStatement failed: %v", err)
	}

	if _, err := repo.GetStatement(ctx, stmt.ID); err == nil {
		t.Error("deleted statement still readable")
	}
	txs, err := repo.ListTransactions(ctx, stmt.ID)
	if err != nil || len(txs) != 0 {
		t.Errorf("transactions not cascaded: %d remaining, err %v", len(txs), err)
	}
	logs, err := repo.ListLogs(ctx, stmt.ID)
	if err != nil || len(logs) != 0 {
		t.Errorf("log entries not cascaded: %d remaining, err %v", len(logs), err)
	}
}

func TestMemoryCreateTransactionsRequiresStatement(t *testing.T) {
	repo := NewMemory()

	tx := &models.Transaction{
		ID:          uuid.New(),
		StatementID: uuid.New(),
		Description: "orphan",
		Amount:      decimal.NewFromFloat(1),
		Type:        models.TypeDebit,
	}
	err := repo.CreateTransactions(context.Background(), []*models.Transaction{tx})
	if !errors.HasCategory(err, errors.CategoryStorage) {
		t.Errorf("orphan transaction should be rejected, got %v", err)
	}
}

func TestMemoryCopySemantics(t *testing.T) {
	repo := NewMemory()
	ctx := context.Background()

	user := newTestUser(t, repo, "jane@example.com")
	stmt := newTestStatement(t, repo, user.ID)

	got, err := repo.GetStatement(ctx, stmt.ID)
	if err != nil {
		t.Fatalf("GetStatement failed: %v", err)
	}
	got.BankName = "mutated"

	again, err := repo.GetStatement(ctx, stmt.ID)
	if err != nil {
		t.Fatalf("GetStatement failed: %v", err)
	}
	if again.BankName == "mutated" {
		t.Error("mutating a read result must not change stored state")
	}
}

func TestMemoryLogOrder(t *testing.T) {
	repo := NewMemory()
	ctx := context.Background()

	user := newTestUser(t, repo, "jane@example.com")
	stmt := newTestStatement(t, repo, user.ID)

	actions := []string{"upload", "ocr_start", "ocr_complete", "parse_complete"}
	for _, action := range actions {
		entry := models.NewLogEntry(stmt.ID, action, models.OutcomeSuccess, action)
		if err := repo.AppendLog(ctx, entry); err != nil {
			t.Fatalf("AppendLog(%s) failed: %v", action, err)
		}
	}

	logs, err := repo.ListLogs(ctx, stmt.ID)
	if err != nil {
		t.Fatalf("ListLogs failed: %v", err)
	}
	if len(logs) != len(actions) {
		t.Fatalf("ListLogs returned %d entries, want %d", len(logs), len(actions))
	}
	for i, entry := range logs {
		if entry.Action != actions[i] {
			t.Errorf("logs[%d].Action = %s, want %s", i, entry.Action, actions[i])
		}
	}
}
