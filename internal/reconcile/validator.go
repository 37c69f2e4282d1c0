// Package reconcile checks that the transactions parsed from a statement
// are numerically consistent with its stated opening and closing
// balances. A mismatch is a warning for operator review, never a fatal
// processing error.
package reconcile

import (
	"fmt"

	"github.com/shopspring/decimal"

	"bank-statement-processor/internal/models"
	"bank-statement-processor/pkg/logger"
)

// FlagReconciliationMismatch is the single statement-level flag code
// recorded when balances do not reconcile within tolerance.
const FlagReconciliationMismatch = "reconciliation_mismatch"

// Config holds configuration options for reconciliation
type Config struct {
	// PerTransactionTolerance absorbs OCR rounding noise, scaled by the
	// number of parsed transactions.
	PerTransactionTolerance decimal.Decimal

	// ToleranceFloor is the minimum absolute tolerance applied even for
	// statements with very few transactions.
	ToleranceFloor decimal.Decimal
}

// DefaultConfig returns a default reconciliation configuration
func DefaultConfig() *Config {
	return &Config{
		PerTransactionTolerance: decimal.NewFromFloat(0.02),
		ToleranceFloor:          decimal.NewFromFloat(0.10),
	}
}

// Flag is a statement-level reconciliation warning
type Flag struct {
	Code        string          `json:"code"`
	Message     string          `json:"message"`
	Discrepancy decimal.Decimal `json:"discrepancy"`
	Expected    decimal.Decimal `json:"expected"`
	Actual      decimal.Decimal `json:"actual"`
}

// Validator checks statement balance consistency
type Validator struct {
	config *Config
	log    logger.Logger
}

// NewValidator creates a reconciliation validator
func NewValidator(config *Config, log logger.Logger) *Validator {
	if config == nil {
		config = DefaultConfig()
	}
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	return &Validator{
		config: config,
		log:    log.WithComponent("reconcile"),
	}
}

// Tolerance returns the absolute tolerance for a statement with n parsed
// transactions.
func (v *Validator) Tolerance(n int) decimal.Decimal {
	scaled := v.config.PerTransactionTolerance.Mul(decimal.NewFromInt(int64(n)))
	if scaled.LessThan(v.config.ToleranceFloor) {
		return v.config.ToleranceFloor
	}
	return scaled
}

// Validate compares summed credits minus debits against the movement
// implied by the opening and closing balances. On a mismatch beyond
// tolerance it returns exactly one statement-level flag; individual
// transactions are never flagged. When either balance is unavailable
// there is nothing to check and no flag is raised.
func (v *Validator) Validate(stmt *models.Statement, transactions []*models.Transaction) []Flag {
	if stmt.OpeningBalance == nil || stmt.ClosingBalance == nil {
		v.log.WithField("statement_id", stmt.ID).Debug("Balances unavailable, skipping reconciliation")
		return nil
	}

	net := decimal.Zero
	for _, tx := range transactions {
		net = net.Add(tx.SignedAmount())
	}

	expected := stmt.ClosingBalance.Sub(*stmt.OpeningBalance)
	diff := net.Sub(expected).Abs()
	tolerance := v.Tolerance(len(transactions))

	if diff.LessThanOrEqual(tolerance) {
		return nil
	}

	flag := Flag{
		Code: FlagReconciliationMismatch,
		Message: fmt.Sprintf(
			"parsed net movement %s does not reconcile with balance movement %s (discrepancy %s, tolerance %s)",
			net.StringFixed(2), expected.StringFixed(2), diff.StringFixed(2), tolerance.StringFixed(2)),
		Discrepancy: diff,
		Expected:    expected,
		Actual:      net,
	}

	v.log.WithFields(logger.Fields{
		"statement_id": stmt.ID,
		"discrepancy":  diff.StringFixed(2),
		"tolerance":    tolerance.StringFixed(2),
	}).Warn("Reconciliation mismatch")

	return []Flag{flag}
}
