package models

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func TestStatementStatusTransitions(t *testing.T) {
	tests := []struct {
		name string
		from StatementStatus
		to   StatementStatus
		want bool
	}{
		{"pending to processing", StatusPending, StatusProcessing, true},
		{"processing to completed", StatusProcessing, StatusCompleted, true},
		{"processing to failed", StatusProcessing, StatusFailed, true},
		{"pending to completed skips processing", StatusPending, StatusCompleted, false},
		{"pending to failed skips processing", StatusPending, StatusFailed, false},
		{"completed is terminal", StatusCompleted, StatusProcessing, false},
		{"failed is terminal", StatusFailed, StatusProcessing, false},
		{"no backward transition", StatusProcessing, StatusPending, false},
		{"completed cannot become pending directly", StatusCompleted, StatusPending, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.from.CanTransitionTo(tt.to); got != tt.want {
				t.Errorf("CanTransitionTo(%s -> %s) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestStatementStatusCanReset(t *testing.T) {
	tests := []struct {
		status StatementStatus
		want   bool
	}{
		{StatusPending, false},
		{StatusProcessing, false},
		{StatusCompleted, true},
		{StatusFailed, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if got := tt.status.CanReset(); got != tt.want {
				t.Errorf("CanReset(%s) = %v, want %v", tt.status, got, tt.want)
			}
		})
	}
}

func TestTransactionTypeIsValid(t *testing.T) {
	if !TypeCredit.IsValid() || !TypeDebit.IsValid() {
		t.Error("credit and debit should be valid transaction types")
	}
	if TransactionType("CREDIT").IsValid() {
		t.Error("transaction types are lowercase, uppercase should be invalid")
	}
	if TransactionType("withdrawal").IsValid() {
		t.Error("unknown transaction type should be invalid")
	}
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"plain amount", "123.45", "123.45", false},
		{"thousands separator", "1,234.56", "1234.56", false},
		{"currency symbol", "$99.99", "99.99", false},
		{"pound symbol", "£45.00", "45", false},
		{"euro symbol", "€10.50", "10.5", false},
		{"leading minus", "-50.25", "-50.25", false},
		{"trailing minus", "50.25-", "-50.25", false},
		{"parenthesis negative", "(75.00)", "-75", false},
		{"currency and parens", "($1,250.00)", "-1250", false},
		{"plus sign", "+20.00", "20", false},
		{"rounds to two places", "10.999", "11", false},
		{"empty", "", "", true},
		{"symbols only", "$", "", true},
		{"not a number", "abc", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAmount(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("ParseAmount(%q) expected error, got %s", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseAmount(%q) unexpected error: %v", tt.input, err)
			}
			if got.String() != tt.want {
				t.Errorf("ParseAmount(%q) = %s, want %s", tt.input, got, tt.want)
			}
		})
	}
}

func TestAmountSigned(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"-6.75", true},
		{"+6.75", true},
		{"6.75-", true},
		{"(6.75)", true},
		{"6.75", false},
		{"$6.75", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := AmountSigned(tt.input); got != tt.want {
				t.Errorf("AmountSigned(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseStatementDate(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		layout  string
		want    string
		wantErr bool
	}{
		{"profile layout", "03/14/2024", "01/02/2006", "2024-03-14", false},
		{"fallback iso", "2024-03-14", "01/02/2006", "2024-03-14", false},
		{"fallback textual", "14 Mar 2024", "01/02/2006", "2024-03-14", false},
		{"fallback long form", "January 31, 2024", "01/02/2006", "2024-01-31", false},
		{"uk layout", "14/03/2024", "02/01/2006", "2024-03-14", false},
		{"empty", "", "01/02/2006", "", true},
		{"garbage", "not a date", "01/02/2006", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseStatementDate(tt.input, tt.layout)
			if tt.wantErr {
				if err == nil {
					t.Errorf("ParseStatementDate(%q) expected error", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseStatementDate(%q) unexpected error: %v", tt.input, err)
			}
			if got.Format("2006-01-02") != tt.want {
				t.Errorf("ParseStatementDate(%q) = %s, want %s", tt.input, got.Format("2006-01-02"), tt.want)
			}
		})
	}
}

func TestTransactionSignedAmount(t *testing.T) {
	amount := decimal.NewFromFloat(6.75)

	credit := &Transaction{Amount: amount, Type: TypeCredit}
	if !credit.SignedAmount().Equal(amount) {
		t.Errorf("credit SignedAmount = %s, want %s", credit.SignedAmount(), amount)
	}

	debit := &Transaction{Amount: amount, Type: TypeDebit}
	if !debit.SignedAmount().Equal(amount.Neg()) {
		t.Errorf("debit SignedAmount = %s, want %s", debit.SignedAmount(), amount.Neg())
	}
}

func TestTransactionValidate(t *testing.T) {
	valid := &Transaction{
		StatementID: uuid.New(),
		Amount:      decimal.NewFromFloat(10.00),
		Type:        TypeDebit,
		Confidence:  0.6,
	}
	if err := valid.Validate(); err != nil {
		t.Errorf("valid transaction rejected: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Transaction)
	}{
		{"missing statement", func(tx *Transaction) { tx.StatementID = uuid.Nil }},
		{"negative amount", func(tx *Transaction) { tx.Amount = decimal.NewFromFloat(-1) }},
		{"invalid type", func(tx *Transaction) { tx.Type = "refund" }},
		{"confidence above one", func(tx *Transaction) { tx.Confidence = 1.5 }},
		{"confidence below zero", func(tx *Transaction) { tx.Confidence = -0.1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := *valid
			tt.mutate(&tx)
			if err := tx.Validate(); err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}
}

func TestStatementRawTextPreview(t *testing.T) {
	stmt := &Statement{RawText: strings.Repeat("x", 600)}

	if got := stmt.RawTextPreview(500); len(got) != 500 {
		t.Errorf("preview length = %d, want 500", len(got))
	}
	if got := stmt.RawTextPreview(1000); len(got) != 600 {
		t.Errorf("preview shorter than limit should be full text, got %d", len(got))
	}
	if got := stmt.RawTextPreview(0); len(got) != 600 {
		t.Errorf("non-positive limit returns full text, got %d", len(got))
	}
}

func TestNewStatement(t *testing.T) {
	userID := uuid.New()
	stmt := NewStatement(userID, "statement.pdf", 1024, "pdf")

	if stmt.ProcessingStatus != StatusPending {
		t.Errorf("new statement status = %s, want pending", stmt.ProcessingStatus)
	}
	if stmt.UserID != userID {
		t.Error("statement should belong to the submitting user")
	}
	if !stmt.TotalCredits.IsZero() || !stmt.TotalDebits.IsZero() {
		t.Error("new statement totals should be zero")
	}
	if stmt.UploadedAt.IsZero() || time.Since(stmt.UploadedAt) > time.Minute {
		t.Error("UploadedAt should be set to now")
	}
}

func TestFileTypeAllowed(t *testing.T) {
	tests := []struct {
		filename string
		wantExt  string
		want     bool
	}{
		{"statement.pdf", "pdf", true},
		{"scan.PNG", "png", true},
		{"photo.jpg", "jpg", true},
		{"photo.jpeg", "jpeg", true},
		{"archive.zip", "zip", false},
		{"notes.txt", "txt", false},
		{"noextension", "", false},
		{"trailing.", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			ext, ok := FileTypeAllowed(tt.filename)
			if ok != tt.want || ext != tt.wantExt {
				t.Errorf("FileTypeAllowed(%q) = (%q, %v), want (%q, %v)",
					tt.filename, ext, ok, tt.wantExt, tt.want)
			}
		})
	}
}

func TestCandidatePromote(t *testing.T) {
	statementID := uuid.New()
	balance := decimal.NewFromFloat(1200.00)
	date := time.Date(2024, 3, 14, 0, 0, 0, 0, time.UTC)

	candidate := &TransactionCandidate{
		RawLine:     "03/14/2024 STARBUCKS COFFEE #4521 -6.75",
		Description: "STARBUCKS COFFEE #4521",
		Amount:      decimal.NewFromFloat(6.75),
		Balance:     &balance,
		Type:        TypeDebit,
		Confidence:  1.0,
	}

	tx := candidate.Promote(statementID, &date)

	if tx.StatementID != statementID {
		t.Error("promoted transaction should belong to the statement")
	}
	if tx.ID == uuid.Nil {
		t.Error("promoted transaction should get a fresh id")
	}
	if tx.TransactionDate == nil || !tx.TransactionDate.Equal(date) {
		t.Error("promoted transaction should carry the parsed date")
	}
	if tx.Balance == nil || !tx.Balance.Equal(balance) {
		t.Error("promoted transaction should carry the running balance")
	}
	if err := tx.Validate(); err != nil {
		t.Errorf("promoted transaction should validate: %v", err)
	}
}
