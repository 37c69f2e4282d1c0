package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"bank-statement-processor/internal/models"
	"bank-statement-processor/pkg/errors"
)

// Memory is an in-process Repository used by tests and single-shot CLI
// runs. All operations, including the processing claim, run under one
// mutex, so the compare-and-set semantics match the SQLite
// implementation.
type Memory struct {
	mu           sync.RWMutex
	users        map[uuid.UUID]*models.User
	statements   map[uuid.UUID]*models.Statement
	transactions map[uuid.UUID][]*models.Transaction        // by statement
	logs         map[uuid.UUID][]*models.ProcessingLogEntry // by statement
}

// NewMemory creates an empty in-memory repository
func NewMemory() *Memory {
	return &Memory{
		users:        make(map[uuid.UUID]*models.User),
		statements:   make(map[uuid.UUID]*models.Statement),
		transactions: make(map[uuid.UUID][]*models.Transaction),
		logs:         make(map[uuid.UUID][]*models.ProcessingLogEntry),
	}
}

var _ Repository = (*Memory)(nil)

func (m *Memory) CreateUser(ctx context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.users {
		if strings.EqualFold(u.Email, user.Email) {
			return errors.StorageError(errors.CodeConflict, "user", nil).
				WithContext("email", user.Email)
		}
	}

	cp := *user
	m.users[user.ID] = &cp
	return nil
}

func (m *Memory) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	user, ok := m.users[id]
	if !ok {
		return nil, errors.StorageError(errors.CodeNotFound, "user", nil)
	}
	cp := *user
	return &cp, nil
}

func (m *Memory) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, user := range m.users {
		if strings.EqualFold(user.Email, email) {
			cp := *user
			return &cp, nil
		}
	}
	return nil, errors.StorageError(errors.CodeNotFound, "user", nil)
}

func (m *Memory) CreateStatement(ctx context.Context, stmt *models.Statement) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *stmt
	m.statements[stmt.ID] = &cp
	return nil
}

func (m *Memory) GetStatement(ctx context.Context, id uuid.UUID) (*models.Statement, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stmt, ok := m.statements[id]
	if !ok {
		return nil, errors.StorageError(errors.CodeNotFound, "statement", nil)
	}
	cp := *stmt
	return &cp, nil
}

func (m *Memory) ListStatements(ctx context.Context, userID uuid.UUID) ([]*models.Statement, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*models.Statement
	for _, stmt := range m.statements {
		if stmt.UserID == userID {
			cp := *stmt
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UploadedAt.Before(out[j].UploadedAt)
	})
	return out, nil
}

func (m *Memory) UpdateStatement(ctx context.Context, stmt *models.Statement) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.statements[stmt.ID]; !ok {
		return errors.StorageError(errors.CodeNotFound, "statement", nil)
	}

	stmt.UpdatedAt = time.Now().UTC()
	cp := *stmt
	m.statements[stmt.ID] = &cp
	return nil
}

func (m *Memory) ClaimForProcessing(ctx context.Context, id uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stmt, ok := m.statements[id]
	if !ok {
		return false, errors.StorageError(errors.CodeNotFound, "statement", nil)
	}

	if stmt.ProcessingStatus != models.StatusPending {
		return false, nil
	}

	stmt.ProcessingStatus = models.StatusProcessing
	stmt.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (m *Memory) ResetStatement(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stmt, ok := m.statements[id]
	if !ok {
		return errors.StorageError(errors.CodeNotFound, "statement", nil)
	}

	if !stmt.ProcessingStatus.CanReset() {
		return errors.StorageError(errors.CodeConflict, "statement", nil).
			WithContext("status", stmt.ProcessingStatus)
	}

	stmt.ProcessingStatus = models.StatusPending
	stmt.ProcessingError = ""
	stmt.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *Memory) DeleteStatement(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.statements[id]; !ok {
		return errors.StorageError(errors.CodeNotFound, "statement", nil)
	}

	delete(m.statements, id)
	delete(m.transactions, id)
	delete(m.logs, id)
	return nil
}

func (m *Memory) CreateTransactions(ctx context.Context, txs []*models.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, tx := range txs {
		if _, ok := m.statements[tx.StatementID]; !ok {
			return errors.StorageError(errors.CodeNotFound, "statement", nil).
				WithContext("transaction_id", tx.ID)
		}
		cp := *tx
		m.transactions[tx.StatementID] = append(m.transactions[tx.StatementID], &cp)
	}
	return nil
}

func (m *Memory) ListTransactions(ctx context.Context, statementID uuid.UUID) ([]*models.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	txs := m.transactions[statementID]
	out := make([]*models.Transaction, 0, len(txs))
	for _, tx := range txs {
		cp := *tx
		out = append(out, &cp)
	}
	return out, nil
}

func (m *Memory) AppendLog(ctx context.Context, entry *models.ProcessingLogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *entry
	m.logs[entry.StatementID] = append(m.logs[entry.StatementID], &cp)
	return nil
}

func (m *Memory) ListLogs(ctx context.Context, statementID uuid.UUID) ([]*models.ProcessingLogEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entries := m.logs[statementID]
	out := make([]*models.ProcessingLogEntry, 0, len(entries))
	for _, entry := range entries {
		cp := *entry
		out = append(out, &cp)
	}
	return out, nil
}
