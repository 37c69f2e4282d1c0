package parser

import (
	"testing"
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

func TestExtractAccountInfo(t *testing.T) {
	e := NewAccountExtractor(nil)
	profile := testProfile(t, "chase")

	info := e.Extract(sampleStatementText, profile)
	if info.IsEmpty() {
		t.Fatal("expected account info from a populated statement")
	}

	if info.AccountNumber != "****1234" {
		t.Errorf("AccountNumber = %q, want ****1234", info.AccountNumber)
	}
	if info.HolderName != "JANE A. DOE" {
		t.Errorf("HolderName = %q, want JANE A. DOE", info.HolderName)
	}
	if info.BankName != "Chase Bank" {
		t.Errorf("BankName = %q, want Chase Bank", info.BankName)
	}

	if info.PeriodStart == nil || info.PeriodEnd == nil {
		t.Fatal("expected both period bounds to parse")
	}
	if got := info.PeriodStart.Format("2006-01-02"); got != "2024-03-01" {
		t.Errorf("PeriodStart = %s, want 2024-03-01", got)
	}
	if got := info.PeriodEnd.Format("2006-01-02"); got != "2024-03-31" {
		t.Errorf("PeriodEnd = %s, want 2024-03-31", got)
	}

	if info.OpeningBalance == nil || info.OpeningBalance.String() != "1000" {
		t.Errorf("OpeningBalance = %v, want 1000", info.OpeningBalance)
	}
	if info.ClosingBalance == nil || info.ClosingBalance.String() != "3493.25" {
		t.Errorf("ClosingBalance = %v, want 3493.25", info.ClosingBalance)
	}
}

func TestExtractAccountInfoPartial(t *testing.T) {
	e := NewAccountExtractor(nil)
	profile := testProfile(t, "")

	info := e.Extract("Account Number: 987654321\nsome unrelated text", profile)

	if info.AccountNumber != "987654321" {
		t.Errorf("AccountNumber = %q, want 987654321", info.AccountNumber)
	}
	if info.HolderName != "" || info.OpeningBalance != nil || info.ClosingBalance != nil {
		t.Error("absent fields must stay empty, partial extraction is not an error")
	}
	if info.BankName != "" {
		t.Error("generic profile should not claim a bank name")
	}
}

func TestExtractAccountInfoEmptyText(t *testing.T) {
	e := NewAccountExtractor(nil)
	profile := testProfile(t, "")

	info := e.Extract("", profile)
	if !info.IsEmpty() {
		t.Errorf("empty text should extract nothing, got %+v", info)
	}
}

func TestExtractAccountInfoNegativeOpeningBalance(t *testing.T) {
	e := NewAccountExtractor(nil)
	profile := testProfile(t, "")

	info := e.Extract("Opening Balance: ($250.00)\nClosing Balance: $100.00", profile)

	if info.OpeningBalance == nil || info.OpeningBalance.String() != "-250" {
		t.Errorf("OpeningBalance = %v, want -250 (parenthesis negative)", info.OpeningBalance)
	}
}
