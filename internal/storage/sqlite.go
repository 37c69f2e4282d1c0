package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"bank-statement-processor/internal/models"
	"bank-statement-processor/pkg/errors"
	"bank-statement-processor/pkg/logger"
)

// SQLite is the durable Repository implementation. The processing claim
// is a single conditional UPDATE, so the at-most-one-worker invariant
// holds across processes, not just goroutines.
type SQLite struct {
	db  *sql.DB
	log logger.Logger
}

var _ Repository = (*SQLite)(nil)

// NewSQLite opens (and creates if absent) the database at path. WAL mode
// and a busy timeout keep concurrent workers from tripping over SQLite's
// single-writer lock; foreign keys enforce the statement cascade.
func NewSQLite(path string, log logger.Logger) (*SQLite, error) {
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	log = log.WithComponent("sqlite")

	dsn := fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(on)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.StorageError(errors.CodeQueryFailed, "database", err).
			WithContext("path", path)
	}

	// SQLite allows one writer; a single connection avoids lock churn
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		return nil, errors.StorageError(errors.CodeQueryFailed, "database", err).
			WithContext("path", path)
	}

	log.WithField("path", path).Info("Database opened")
	return &SQLite{db: db, log: log}, nil
}

// Migrate applies pending schema migrations from the given directory
func (s *SQLite) Migrate(migrationsDir string) error {
	driver, err := migratesqlite.WithInstance(s.db, &migratesqlite.Config{})
	if err != nil {
		return errors.StorageError(errors.CodeMigrationFailed, "database", err)
	}

	abs, err := filepath.Abs(migrationsDir)
	if err != nil {
		return errors.StorageError(errors.CodeMigrationFailed, "database", err)
	}

	m, err := migrate.NewWithDatabaseInstance("file://"+filepath.ToSlash(abs), "sqlite", driver)
	if err != nil {
		return errors.StorageError(errors.CodeMigrationFailed, "database", err).
			WithContext("migrations", abs)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return errors.StorageError(errors.CodeMigrationFailed, "database", err).
			WithContext("migrations", abs)
	}

	s.log.Info("Migrations applied")
	return nil
}

// Close closes the underlying database
func (s *SQLite) Close() error {
	return s.db.Close()
}

// Users

func (s *SQLite) CreateUser(ctx context.Context, user *models.User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, username, email, password_hash, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		user.ID.String(), user.Username, user.Email, user.PasswordHash,
		fmtTime(user.CreatedAt), fmtTime(user.UpdatedAt))
	if err != nil {
		return errors.StorageError(errors.CodeQueryFailed, "user", err)
	}
	return nil
}

func (s *SQLite) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx, `
		SELECT id, username, email, password_hash, created_at, updated_at
		FROM users WHERE id = ?`, id.String()))
}

func (s *SQLite) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx, `
		SELECT id, username, email, password_hash, created_at, updated_at
		FROM users WHERE email = ? COLLATE NOCASE`, email))
}

func (s *SQLite) scanUser(row *sql.Row) (*models.User, error) {
	var user models.User
	var id, created, updated string

	err := row.Scan(&id, &user.Username, &user.Email, &user.PasswordHash, &created, &updated)
	if err == sql.ErrNoRows {
		return nil, errors.StorageError(errors.CodeNotFound, "user", nil)
	}
	if err != nil {
		return nil, errors.StorageError(errors.CodeQueryFailed, "user", err)
	}

	user.ID, _ = uuid.Parse(id)
	user.CreatedAt = parseTime(created)
	user.UpdatedAt = parseTime(updated)
	return &user, nil
}

// Statements

const statementColumns = `id, user_id, original_filename, stored_path, file_size, file_type,
	bank_name, account_number, account_holder, period_start, period_end,
	opening_balance, closing_balance, total_credits, total_debits, raw_text,
	processing_status, processing_error, uploaded_at, processed_at, created_at, updated_at`

func (s *SQLite) CreateStatement(ctx context.Context, stmt *models.Statement) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO bank_statements (`+statementColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		stmt.ID.String(), stmt.UserID.String(), stmt.OriginalFilename, nullStr(stmt.StoredPath),
		stmt.FileSize, stmt.FileType,
		nullStr(stmt.BankName), nullStr(stmt.AccountNumber), nullStr(stmt.AccountHolder),
		nullTime(stmt.PeriodStart), nullTime(stmt.PeriodEnd),
		nullDec(stmt.OpeningBalance), nullDec(stmt.ClosingBalance),
		stmt.TotalCredits.String(), stmt.TotalDebits.String(), nullStr(stmt.RawText),
		string(stmt.ProcessingStatus), nullStr(stmt.ProcessingError),
		fmtTime(stmt.UploadedAt), nullTime(stmt.ProcessedAt),
		fmtTime(stmt.CreatedAt), fmtTime(stmt.UpdatedAt))
	if err != nil {
		return errors.StorageError(errors.CodeQueryFailed, "statement", err)
	}
	return nil
}

func (s *SQLite) GetStatement(ctx context.Context, id uuid.UUID) (*models.Statement, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+statementColumns+` FROM bank_statements WHERE id = ?`, id.String())
	if err != nil {
		return nil, errors.StorageError(errors.CodeQueryFailed, "statement", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, errors.StorageError(errors.CodeNotFound, "statement", nil)
	}
	return scanStatement(rows)
}

func (s *SQLite) ListStatements(ctx context.Context, userID uuid.UUID) ([]*models.Statement, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+statementColumns+` FROM bank_statements
		WHERE user_id = ? ORDER BY uploaded_at`, userID.String())
	if err != nil {
		return nil, errors.StorageError(errors.CodeQueryFailed, "statement", err)
	}
	defer rows.Close()

	var out []*models.Statement
	for rows.Next() {
		stmt, err := scanStatement(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, stmt)
	}
	return out, rows.Err()
}

func (s *SQLite) UpdateStatement(ctx context.Context, stmt *models.Statement) error {
	stmt.UpdatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		UPDATE bank_statements SET
			bank_name = ?, account_number = ?, account_holder = ?,
			period_start = ?, period_end = ?,
			opening_balance = ?, closing_balance = ?,
			total_credits = ?, total_debits = ?, raw_text = ?,
			processing_status = ?, processing_error = ?,
			processed_at = ?, updated_at = ?
		WHERE id = ?`,
		nullStr(stmt.BankName), nullStr(stmt.AccountNumber), nullStr(stmt.AccountHolder),
		nullTime(stmt.PeriodStart), nullTime(stmt.PeriodEnd),
		nullDec(stmt.OpeningBalance), nullDec(stmt.ClosingBalance),
		stmt.TotalCredits.String(), stmt.TotalDebits.String(), nullStr(stmt.RawText),
		string(stmt.ProcessingStatus), nullStr(stmt.ProcessingError),
		nullTime(stmt.ProcessedAt), fmtTime(stmt.UpdatedAt),
		stmt.ID.String())
	if err != nil {
		return errors.StorageError(errors.CodeQueryFailed, "statement", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.StorageError(errors.CodeNotFound, "statement", nil)
	}
	return nil
}

func (s *SQLite) ClaimForProcessing(ctx context.Context, id uuid.UUID) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE bank_statements
		SET processing_status = ?, updated_at = ?
		WHERE id = ? AND processing_status = ?`,
		string(models.StatusProcessing), fmtTime(time.Now().UTC()),
		id.String(), string(models.StatusPending))
	if err != nil {
		return false, errors.StorageError(errors.CodeQueryFailed, "statement", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.StorageError(errors.CodeQueryFailed, "statement", err)
	}
	return n == 1, nil
}

func (s *SQLite) ResetStatement(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE bank_statements
		SET processing_status = ?, processing_error = NULL, updated_at = ?
		WHERE id = ? AND processing_status IN (?, ?)`,
		string(models.StatusPending), fmtTime(time.Now().UTC()),
		id.String(), string(models.StatusCompleted), string(models.StatusFailed))
	if err != nil {
		return errors.StorageError(errors.CodeQueryFailed, "statement", err)
	}

	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := s.GetStatement(ctx, id); err != nil {
			return err
		}
		return errors.StorageError(errors.CodeConflict, "statement", nil).
			WithContext("statement_id", id)
	}
	return nil
}

func (s *SQLite) DeleteStatement(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM bank_statements WHERE id = ?`, id.String())
	if err != nil {
		return errors.StorageError(errors.CodeQueryFailed, "statement", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.StorageError(errors.CodeNotFound, "statement", nil)
	}
	return nil
}

// Transactions

func (s *SQLite) CreateTransactions(ctx context.Context, txs []*models.Transaction) error {
	if len(txs) == 0 {
		return nil
	}

	dbtx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.StorageError(errors.CodeQueryFailed, "transaction", err)
	}
	defer dbtx.Rollback()

	for _, tx := range txs {
		var metadata interface{}
		if len(tx.Metadata) > 0 {
			raw, err := json.Marshal(tx.Metadata)
			if err != nil {
				return errors.StorageError(errors.CodeQueryFailed, "transaction", err)
			}
			metadata = string(raw)
		}

		_, err = dbtx.ExecContext(ctx, `
			INSERT INTO transactions (
				id, statement_id, transaction_date, posting_date, description,
				amount, transaction_type, balance, category, subcategory,
				confidence_score, is_pending, is_flagged, flag_reason,
				raw_line, metadata_json, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			tx.ID.String(), tx.StatementID.String(),
			nullTime(tx.TransactionDate), nullTime(tx.PostingDate), tx.Description,
			tx.Amount.String(), string(tx.Type), nullDec(tx.Balance),
			nullStr(tx.Category), nullStr(tx.Subcategory),
			tx.Confidence, tx.IsPending, tx.IsFlagged, nullStr(tx.FlagReason),
			nullStr(tx.RawLine), metadata, fmtTime(tx.CreatedAt))
		if err != nil {
			return errors.StorageError(errors.CodeQueryFailed, "transaction", err)
		}
	}

	if err := dbtx.Commit(); err != nil {
		return errors.StorageError(errors.CodeQueryFailed, "transaction", err)
	}
	return nil
}

func (s *SQLite) ListTransactions(ctx context.Context, statementID uuid.UUID) ([]*models.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, statement_id, transaction_date, posting_date, description,
			amount, transaction_type, balance, category, subcategory,
			confidence_score, is_pending, is_flagged, flag_reason,
			raw_line, metadata_json, created_at
		FROM transactions
		WHERE statement_id = ?
		ORDER BY transaction_date, created_at`, statementID.String())
	if err != nil {
		return nil, errors.StorageError(errors.CodeQueryFailed, "transaction", err)
	}
	defer rows.Close()

	var out []*models.Transaction
	for rows.Next() {
		var tx models.Transaction
		var id, stmtID, amount, txType string
		var txDate, postDate, balance, category, subcategory, flagReason, rawLine, metadata sql.NullString
		var description sql.NullString
		var created string

		err := rows.Scan(&id, &stmtID, &txDate, &postDate, &description,
			&amount, &txType, &balance, &category, &subcategory,
			&tx.Confidence, &tx.IsPending, &tx.IsFlagged, &flagReason,
			&rawLine, &metadata, &created)
		if err != nil {
			return nil, errors.StorageError(errors.CodeQueryFailed, "transaction", err)
		}

		tx.ID, _ = uuid.Parse(id)
		tx.StatementID, _ = uuid.Parse(stmtID)
		tx.TransactionDate = parseNullTime(txDate)
		tx.PostingDate = parseNullTime(postDate)
		tx.Description = description.String
		tx.Amount, _ = decimal.NewFromString(amount)
		tx.Type = models.TransactionType(txType)
		tx.Balance = parseNullDec(balance)
		tx.Category = category.String
		tx.Subcategory = subcategory.String
		tx.FlagReason = flagReason.String
		tx.RawLine = rawLine.String
		tx.CreatedAt = parseTime(created)

		if metadata.Valid && metadata.String != "" {
			_ = json.Unmarshal([]byte(metadata.String), &tx.Metadata)
		}

		out = append(out, &tx)
	}
	return out, rows.Err()
}

// Processing log

func (s *SQLite) AppendLog(ctx context.Context, entry *models.ProcessingLogEntry) error {
	var details interface{}
	if len(entry.Details) > 0 {
		raw, err := json.Marshal(entry.Details)
		if err != nil {
			return errors.StorageError(errors.CodeQueryFailed, "processing log", err)
		}
		details = string(raw)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO processing_logs (
			id, statement_id, action, outcome, message, details_json,
			duration_ms, pages_processed, transactions_found, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID.String(), entry.StatementID.String(),
		entry.Action, string(entry.Outcome), entry.Message, details,
		entry.DurationMillis, entry.PagesProcessed, entry.TransactionsFound,
		fmtTime(entry.CreatedAt))
	if err != nil {
		return errors.StorageError(errors.CodeQueryFailed, "processing log", err)
	}
	return nil
}

func (s *SQLite) ListLogs(ctx context.Context, statementID uuid.UUID) ([]*models.ProcessingLogEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, statement_id, action, outcome, message, details_json,
			duration_ms, pages_processed, transactions_found, created_at
		FROM processing_logs
		WHERE statement_id = ?
		ORDER BY created_at`, statementID.String())
	if err != nil {
		return nil, errors.StorageError(errors.CodeQueryFailed, "processing log", err)
	}
	defer rows.Close()

	var out []*models.ProcessingLogEntry
	for rows.Next() {
		var entry models.ProcessingLogEntry
		var id, stmtID, outcome, created string
		var message, details sql.NullString

		err := rows.Scan(&id, &stmtID, &entry.Action, &outcome, &message, &details,
			&entry.DurationMillis, &entry.PagesProcessed, &entry.TransactionsFound, &created)
		if err != nil {
			return nil, errors.StorageError(errors.CodeQueryFailed, "processing log", err)
		}

		entry.ID, _ = uuid.Parse(id)
		entry.StatementID, _ = uuid.Parse(stmtID)
		entry.Outcome = models.LogOutcome(outcome)
		entry.Message = message.String
		entry.CreatedAt = parseTime(created)

		if details.Valid && details.String != "" {
			_ = json.Unmarshal([]byte(details.String), &entry.Details)
		}

		out = append(out, &entry)
	}
	return out, rows.Err()
}

// Scan helpers

func scanStatement(rows *sql.Rows) (*models.Statement, error) {
	var stmt models.Statement
	var id, userID, status string
	var storedPath sql.NullString
	var bankName, accountNumber, accountHolder sql.NullString
	var periodStart, periodEnd, processedAt sql.NullString
	var openingBalance, closingBalance sql.NullString
	var totalCredits, totalDebits string
	var rawText, processingError sql.NullString
	var uploaded, created, updated string

	err := rows.Scan(&id, &userID, &stmt.OriginalFilename, &storedPath, &stmt.FileSize, &stmt.FileType,
		&bankName, &accountNumber, &accountHolder, &periodStart, &periodEnd,
		&openingBalance, &closingBalance, &totalCredits, &totalDebits, &rawText,
		&status, &processingError, &uploaded, &processedAt, &created, &updated)
	if err != nil {
		return nil, errors.StorageError(errors.CodeQueryFailed, "statement", err)
	}

	stmt.ID, _ = uuid.Parse(id)
	stmt.UserID, _ = uuid.Parse(userID)
	stmt.StoredPath = storedPath.String
	stmt.BankName = bankName.String
	stmt.AccountNumber = accountNumber.String
	stmt.AccountHolder = accountHolder.String
	stmt.PeriodStart = parseNullTime(periodStart)
	stmt.PeriodEnd = parseNullTime(periodEnd)
	stmt.OpeningBalance = parseNullDec(openingBalance)
	stmt.ClosingBalance = parseNullDec(closingBalance)
	stmt.TotalCredits, _ = decimal.NewFromString(totalCredits)
	stmt.TotalDebits, _ = decimal.NewFromString(totalDebits)
	stmt.RawText = rawText.String
	stmt.ProcessingStatus = models.StatementStatus(status)
	stmt.ProcessingError = processingError.String
	stmt.UploadedAt = parseTime(uploaded)
	stmt.ProcessedAt = parseNullTime(processedAt)
	stmt.CreatedAt = parseTime(created)
	stmt.UpdatedAt = parseTime(updated)
	return &stmt, nil
}

func fmtTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func nullStr(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nullTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return fmtTime(*t)
}

func nullDec(d *decimal.Decimal) interface{} {
	if d == nil {
		return nil
	}
	return d.String()
}

func parseNullTime(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, s.String)
	if err != nil {
		return nil
	}
	return &t
}

func parseNullDec(s sql.NullString) *decimal.Decimal {
	if !s.Valid || s.String == "" {
		return nil
	}
	d, err := decimal.NewFromString(s.String)
	if err != nil {
		return nil
	}
	return &d
}
