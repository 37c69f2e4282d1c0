package reconcile

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"bank-statement-processor/internal/models"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func statementWithBalances(opening, closing string) *models.Statement {
	o, c := dec(opening), dec(closing)
	return &models.Statement{
		ID:             uuid.New(),
		OpeningBalance: &o,
		ClosingBalance: &c,
	}
}

func tx(amount string, txType models.TransactionType) *models.Transaction {
	return &models.Transaction{
		ID:     uuid.New(),
		Amount: dec(amount),
		Type:   txType,
	}
}

func TestValidateReconciles(t *testing.T) {
	v := NewValidator(nil, nil)
	stmt := statementWithBalances("1000.00", "1200.00")

	// +500 credit, -300 debit: net +200 matches the balance movement
	flags := v.Validate(stmt, []*models.Transaction{
		tx("500.00", models.TypeCredit),
		tx("300.00", models.TypeDebit),
	})

	if len(flags) != 0 {
		t.Errorf("matching balances should raise no flag, got %+v", flags)
	}
}

func TestValidateMismatchRaisesOneFlag(t *testing.T) {
	v := NewValidator(nil, nil)
	stmt := statementWithBalances("1000.00", "1200.00")

	// Net +50 against an implied +200 movement
	flags := v.Validate(stmt, []*models.Transaction{
		tx("50.00", models.TypeCredit),
	})

	if len(flags) != 1 {
		t.Fatalf("expected exactly one statement-level flag, got %d", len(flags))
	}

	flag := flags[0]
	if flag.Code != FlagReconciliationMismatch {
		t.Errorf("flag code = %s, want %s", flag.Code, FlagReconciliationMismatch)
	}
	if !flag.Expected.Equal(dec("200.00")) {
		t.Errorf("expected movement = %s, want 200.00", flag.Expected)
	}
	if !flag.Actual.Equal(dec("50.00")) {
		t.Errorf("actual net = %s, want 50.00", flag.Actual)
	}
	if !flag.Discrepancy.Equal(dec("150.00")) {
		t.Errorf("discrepancy = %s, want 150.00", flag.Discrepancy)
	}
}

func TestValidateWithinToleranceIsClean(t *testing.T) {
	v := NewValidator(nil, nil)
	stmt := statementWithBalances("100.00", "200.05")

	// Net +100 against implied +100.05: off by 0.05, inside the 0.10 floor
	flags := v.Validate(stmt, []*models.Transaction{
		tx("100.00", models.TypeCredit),
	})

	if len(flags) != 0 {
		t.Errorf("discrepancy inside tolerance should not flag, got %+v", flags)
	}
}

func TestValidateMissingBalancesSkips(t *testing.T) {
	v := NewValidator(nil, nil)

	opening := dec("1000.00")
	tests := []struct {
		name string
		stmt *models.Statement
	}{
		{"no balances", &models.Statement{ID: uuid.New()}},
		{"opening only", &models.Statement{ID: uuid.New(), OpeningBalance: &opening}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flags := v.Validate(tt.stmt, []*models.Transaction{tx("999.99", models.TypeDebit)})
			if flags != nil {
				t.Errorf("missing balances leave nothing to check, got %+v", flags)
			}
		})
	}
}

func TestTolerance(t *testing.T) {
	v := NewValidator(nil, nil)

	tests := []struct {
		name string
		n    int
		want string
	}{
		{"zero transactions uses floor", 0, "0.1"},
		{"few transactions uses floor", 3, "0.1"},
		{"floor boundary", 5, "0.1"},
		{"scales with count", 50, "1"},
		{"large statement", 200, "4"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := v.Tolerance(tt.n); got.String() != tt.want {
				t.Errorf("Tolerance(%d) = %s, want %s", tt.n, got, tt.want)
			}
		})
	}
}
