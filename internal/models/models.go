// Package models defines the persistent and transient data types of the
// statement processing pipeline: statements, transactions, bank profiles,
// category nodes and the append-only processing log.
package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// StatementStatus represents the processing state of a statement
type StatementStatus string

const (
	// StatusPending is the initial state after upload, before parsing
	StatusPending StatementStatus = "pending"
	// StatusProcessing means a worker holds the statement exclusively
	StatusProcessing StatementStatus = "processing"
	// StatusCompleted is the terminal success state
	StatusCompleted StatementStatus = "completed"
	// StatusFailed is the terminal failure state
	StatusFailed StatementStatus = "failed"
)

// String returns the string representation of StatementStatus
func (s StatementStatus) String() string {
	return string(s)
}

// IsValid checks if the status is a known state
func (s StatementStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// IsTerminal reports whether the status is an end state of a run
func (s StatementStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanTransitionTo reports whether the forward-only state machine permits
// moving from s to next. Re-processing a terminal statement requires an
// explicit reset, which is not a transition in this sense.
func (s StatementStatus) CanTransitionTo(next StatementStatus) bool {
	switch s {
	case StatusPending:
		return next == StatusProcessing
	case StatusProcessing:
		return next == StatusCompleted || next == StatusFailed
	default:
		return false
	}
}

// CanReset reports whether the statement may be explicitly returned to
// pending for another processing attempt.
func (s StatementStatus) CanReset() bool {
	return s.IsTerminal()
}

// TransactionType represents the signed direction of a transaction
type TransactionType string

const (
	// TypeCredit represents money flowing into the account
	TypeCredit TransactionType = "credit"
	// TypeDebit represents money flowing out of the account
	TypeDebit TransactionType = "debit"
)

// String returns the string representation of TransactionType
func (t TransactionType) String() string {
	return string(t)
}

// IsValid checks if the transaction type is valid
func (t TransactionType) IsValid() bool {
	return t == TypeCredit || t == TypeDebit
}

// LogOutcome represents the result of a logged processing action
type LogOutcome string

const (
	OutcomeSuccess LogOutcome = "success"
	OutcomeFailed  LogOutcome = "failed"
	OutcomeWarning LogOutcome = "warning"
)

// Log action tags recorded in the processing log
const (
	ActionUpload        = "upload"
	ActionOCRStart      = "ocr_start"
	ActionOCRComplete   = "ocr_complete"
	ActionParseComplete = "parse_complete"
	ActionReconcile     = "reconcile"
	ActionError         = "error"
	ActionReset         = "reset"
)

// User owns uploaded statements
type User struct {
	ID           uuid.UUID `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Statement is one uploaded bank statement document and everything the
// pipeline derived from it. Transactions and log entries are owned by
// the statement and cascade-deleted with it.
type Statement struct {
	ID     uuid.UUID `json:"id"`
	UserID uuid.UUID `json:"user_id"`

	// Source file descriptor. StoredPath is where the uploaded document
	// lives on disk; it is internal and never serialized.
	OriginalFilename string `json:"original_filename"`
	StoredPath       string `json:"-"`
	FileSize         int64  `json:"file_size"`
	FileType         string `json:"file_type"`

	// Account metadata extracted from the document
	BankName      string     `json:"bank_name,omitempty"`
	AccountNumber string     `json:"account_number,omitempty"`
	AccountHolder string     `json:"account_holder,omitempty"`
	PeriodStart   *time.Time `json:"period_start,omitempty"`
	PeriodEnd     *time.Time `json:"period_end,omitempty"`

	// Balances
	OpeningBalance *decimal.Decimal `json:"opening_balance,omitempty"`
	ClosingBalance *decimal.Decimal `json:"closing_balance,omitempty"`
	TotalCredits   decimal.Decimal  `json:"total_credits"`
	TotalDebits    decimal.Decimal  `json:"total_debits"`

	// Full extracted text is retained internally; API responses expose
	// only a bounded preview.
	RawText string `json:"-"`

	ProcessingStatus StatementStatus `json:"processing_status"`
	ProcessingError  string          `json:"processing_error,omitempty"`

	UploadedAt  time.Time  `json:"uploaded_at"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// NewStatement creates a pending statement for an uploaded file
func NewStatement(userID uuid.UUID, filename string, size int64, fileType string) *Statement {
	now := time.Now().UTC()
	return &Statement{
		ID:               uuid.New(),
		UserID:           userID,
		OriginalFilename: filename,
		FileSize:         size,
		FileType:         fileType,
		TotalCredits:     decimal.Zero,
		TotalDebits:      decimal.Zero,
		ProcessingStatus: StatusPending,
		UploadedAt:       now,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// RawTextPreview returns at most limit characters of the extracted text
// for diagnostic display.
func (s *Statement) RawTextPreview(limit int) string {
	if limit <= 0 || len(s.RawText) <= limit {
		return s.RawText
	}
	return s.RawText[:limit]
}

// NetMovement returns total credits minus total debits
func (s *Statement) NetMovement() decimal.Decimal {
	return s.TotalCredits.Sub(s.TotalDebits)
}

// Transaction is a parsed, categorized line item owned by a statement
type Transaction struct {
	ID          uuid.UUID `json:"id"`
	StatementID uuid.UUID `json:"statement_id"`

	TransactionDate *time.Time `json:"transaction_date,omitempty"`
	PostingDate     *time.Time `json:"posting_date,omitempty"`
	Description     string     `json:"description"`

	Amount  decimal.Decimal  `json:"amount"`
	Type    TransactionType  `json:"transaction_type"`
	Balance *decimal.Decimal `json:"balance,omitempty"`

	Category    string  `json:"category,omitempty"`
	Subcategory string  `json:"subcategory,omitempty"`
	Confidence  float64 `json:"confidence_score"`

	IsPending  bool   `json:"is_pending"`
	IsFlagged  bool   `json:"is_flagged"`
	FlagReason string `json:"flag_reason,omitempty"`

	RawLine  string            `json:"raw_line,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// Validate performs basic validation on the Transaction
func (t *Transaction) Validate() error {
	if t.StatementID == uuid.Nil {
		return fmt.Errorf("transaction must belong to a statement")
	}

	if t.Amount.IsNegative() {
		return fmt.Errorf("transaction amount must be non-negative, sign is carried by type")
	}

	if !t.Type.IsValid() {
		return fmt.Errorf("invalid transaction type: %s", t.Type)
	}

	if t.Confidence < 0 || t.Confidence > 1 {
		return fmt.Errorf("confidence score must be in [0,1], got %f", t.Confidence)
	}

	return nil
}

// SignedAmount returns the amount with its sign applied: credits positive,
// debits negative.
func (t *Transaction) SignedAmount() decimal.Decimal {
	if t.Type == TypeDebit {
		return t.Amount.Neg()
	}
	return t.Amount
}

// String returns a string representation of the Transaction
func (t *Transaction) String() string {
	date := "?"
	if t.TransactionDate != nil {
		date = t.TransactionDate.Format("2006-01-02")
	}
	return fmt.Sprintf("Transaction{Date: %s, Amount: %s, Type: %s, Desc: %q}",
		date, t.Amount.StringFixed(2), t.Type, t.Description)
}

// TransactionCandidate is the transient result of parsing one line of
// extracted text. It is either discarded or promoted to a Transaction.
type TransactionCandidate struct {
	RawLine      string
	DateString   string
	AmountString string
	Description  string

	// Positional offsets of the date and amount matches within RawLine
	DateStart   int
	DateEnd     int
	AmountStart int
	AmountEnd   int

	// Normalized values
	Amount  decimal.Decimal
	Balance *decimal.Decimal
	Type    TransactionType

	// Confidence in the sign/type inference, lowered when the sign could
	// not be determined from the line.
	Confidence float64
}

// Promote converts the candidate into a Transaction owned by the given
// statement. Date parsing uses the profile's layout with fallbacks and is
// left to the caller; txDate may be nil when no layout matched.
func (c *TransactionCandidate) Promote(statementID uuid.UUID, txDate *time.Time) *Transaction {
	return &Transaction{
		ID:              uuid.New(),
		StatementID:     statementID,
		TransactionDate: txDate,
		Description:     c.Description,
		Amount:          c.Amount,
		Type:            c.Type,
		Balance:         c.Balance,
		Confidence:      c.Confidence,
		RawLine:         c.RawLine,
		CreatedAt:       time.Now().UTC(),
	}
}

// PatternSpec is the textual pattern data of a bank profile. Each field
// holds one named rule; an empty field means the profile defers to the
// generic fallback for that role. Keeping one explicit field per role
// makes missing rules visible at compile time instead of silently absent
// behind a key lookup.
type PatternSpec struct {
	Date           string `json:"date,omitempty"`
	Amount         string `json:"amount,omitempty"`
	AccountNumber  string `json:"account_number,omitempty"`
	HolderName     string `json:"holder_name,omitempty"`
	Period         string `json:"period,omitempty"`
	OpeningBalance string `json:"opening_balance,omitempty"`
	ClosingBalance string `json:"closing_balance,omitempty"`
	DebitHint      string `json:"debit_hint,omitempty"`
	CreditHint     string `json:"credit_hint,omitempty"`
}

// BankProfile is immutable reference data describing how one institution
// lays out its statements. Profiles are seeded during environment setup
// and read-only at pipeline run time.
type BankProfile struct {
	ID         uuid.UUID   `json:"id"`
	Code       string      `json:"code"`
	Name       string      `json:"name"`
	DateFormat string      `json:"date_format"` // Go reference layout, e.g. "01/02/2006"
	Patterns   PatternSpec `json:"patterns"`

	// Substrings that identify this bank in raw statement text
	DetectKeywords []string `json:"detect_keywords,omitempty"`

	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// CategoryNode is one node of the hierarchical category tree. Root nodes
// have no parent; keywords are matched case-insensitively against
// transaction descriptions.
type CategoryNode struct {
	ID       uuid.UUID  `json:"id"`
	Name     string     `json:"name"`
	ParentID *uuid.UUID `json:"parent_id,omitempty"`
	Keywords []string   `json:"keywords"`
	Color    string     `json:"color,omitempty"`
	Icon     string     `json:"icon,omitempty"`

	// Seq is the insertion order within the tree, used as the stable
	// tie-break between equally specific keyword matches.
	Seq       int       `json:"seq"`
	CreatedAt time.Time `json:"created_at"`
}

// IsRoot reports whether the node is a top-level category
func (n *CategoryNode) IsRoot() bool {
	return n.ParentID == nil
}

// AccountInfo is the partial account metadata scanned from a document.
// Every field is optional; absence is not an error.
type AccountInfo struct {
	AccountNumber  string           `json:"account_number,omitempty"`
	HolderName     string           `json:"holder_name,omitempty"`
	BankName       string           `json:"bank_name,omitempty"`
	PeriodRaw      string           `json:"period_raw,omitempty"`
	PeriodStart    *time.Time       `json:"period_start,omitempty"`
	PeriodEnd      *time.Time       `json:"period_end,omitempty"`
	OpeningBalance *decimal.Decimal `json:"opening_balance,omitempty"`
	ClosingBalance *decimal.Decimal `json:"closing_balance,omitempty"`
}

// IsEmpty reports whether nothing was extracted
func (a *AccountInfo) IsEmpty() bool {
	return a.AccountNumber == "" && a.HolderName == "" && a.BankName == "" &&
		a.PeriodRaw == "" && a.OpeningBalance == nil && a.ClosingBalance == nil
}

// ProcessingLogEntry is one append-only audit record for a statement.
// Entries are never mutated; they are removed only when the owning
// statement is cascade-deleted.
type ProcessingLogEntry struct {
	ID          uuid.UUID `json:"id"`
	StatementID uuid.UUID `json:"statement_id"`

	Action  string                 `json:"action"`
	Outcome LogOutcome             `json:"outcome"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`

	DurationMillis    int64 `json:"duration_ms"`
	PagesProcessed    int   `json:"pages_processed"`
	TransactionsFound int   `json:"transactions_found"`

	CreatedAt time.Time `json:"created_at"`
}

// NewLogEntry creates a processing log entry for a statement
func NewLogEntry(statementID uuid.UUID, action string, outcome LogOutcome, message string) *ProcessingLogEntry {
	return &ProcessingLogEntry{
		ID:          uuid.New(),
		StatementID: statementID,
		Action:      action,
		Outcome:     outcome,
		Message:     message,
		CreatedAt:   time.Now().UTC(),
	}
}

// AllowedFileTypes are the upload extensions accepted at submission
var AllowedFileTypes = map[string]bool{
	"pdf":  true,
	"png":  true,
	"jpg":  true,
	"jpeg": true,
}

// FileTypeAllowed reports whether the filename carries an accepted
// extension and returns the normalized extension.
func FileTypeAllowed(filename string) (string, bool) {
	idx := strings.LastIndex(filename, ".")
	if idx < 0 || idx == len(filename)-1 {
		return "", false
	}
	ext := strings.ToLower(filename[idx+1:])
	return ext, AllowedFileTypes[ext]
}
