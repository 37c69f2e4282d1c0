// Package report renders the result of a processed statement for CLI and
// API consumption.
//
// Supported output formats:
//   - Console: human-readable summary for terminal display
//   - JSON: structured data for programmatic consumption
//
// The raw extracted text is never emitted in full; results carry a
// bounded preview only.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"bank-statement-processor/internal/models"
)

// OutputFormat represents the supported report output formats
type OutputFormat string

const (
	FormatConsole OutputFormat = "console"
	FormatJSON    OutputFormat = "json"
)

// IsValid checks if the output format is supported
func (f OutputFormat) IsValid() bool {
	switch f {
	case FormatConsole, FormatJSON:
		return true
	default:
		return false
	}
}

// Config holds configuration options for report generation
type Config struct {
	Format OutputFormat `json:"format"`

	// IncludeTransactions controls whether the parsed transaction list is
	// included in the output.
	IncludeTransactions bool `json:"include_transactions"`

	// IncludeLogs controls whether the processing log is included
	IncludeLogs bool `json:"include_logs"`

	// RawTextPreviewLimit bounds how much of the extracted text the
	// report shows. Zero disables the preview entirely.
	RawTextPreviewLimit int `json:"raw_text_preview_limit"`

	// MaxListedTransactions caps the console transaction listing
	MaxListedTransactions int `json:"max_listed_transactions"`
}

// DefaultConfig returns a default report configuration
func DefaultConfig() *Config {
	return &Config{
		Format:                FormatConsole,
		IncludeTransactions:   true,
		IncludeLogs:           true,
		RawTextPreviewLimit:   500,
		MaxListedTransactions: 50,
	}
}

// Validate validates the report configuration
func (c *Config) Validate() error {
	if !c.Format.IsValid() {
		return fmt.Errorf("invalid output format: %s", c.Format)
	}
	if c.RawTextPreviewLimit < 0 {
		return fmt.Errorf("raw text preview limit must not be negative, got %d", c.RawTextPreviewLimit)
	}
	return nil
}

// Result is the complete output of one processed statement
type Result struct {
	Statement      *models.Statement            `json:"statement"`
	Transactions   []*models.Transaction        `json:"transactions,omitempty"`
	Logs           []*models.ProcessingLogEntry `json:"processing_logs,omitempty"`
	RawTextPreview string                       `json:"raw_text_preview,omitempty"`
}

// Generator renders processing results in the configured format
type Generator struct {
	config *Config
}

// NewGenerator creates a report generator with the given configuration
func NewGenerator(config *Config) (*Generator, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid report configuration: %w", err)
	}
	return &Generator{config: config}, nil
}

// Build assembles a Result from the statement and its derived records,
// applying the configured preview bound and inclusion options.
func (g *Generator) Build(stmt *models.Statement, txs []*models.Transaction, logs []*models.ProcessingLogEntry) *Result {
	result := &Result{
		Statement:      stmt,
		RawTextPreview: stmt.RawTextPreview(g.config.RawTextPreviewLimit),
	}
	if g.config.RawTextPreviewLimit == 0 {
		result.RawTextPreview = ""
	}
	if g.config.IncludeTransactions {
		result.Transactions = txs
	}
	if g.config.IncludeLogs {
		result.Logs = logs
	}
	return result
}

// Generate writes the result to the writer in the configured format
func (g *Generator) Generate(result *Result, writer io.Writer) error {
	if result == nil || result.Statement == nil {
		return fmt.Errorf("result cannot be nil")
	}

	switch g.config.Format {
	case FormatConsole:
		return g.generateConsole(result, writer)
	case FormatJSON:
		return g.generateJSON(result, writer)
	default:
		return fmt.Errorf("unsupported output format: %s", g.config.Format)
	}
}

func (g *Generator) generateJSON(result *Result, writer io.Writer) error {
	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

func (g *Generator) generateConsole(result *Result, writer io.Writer) error {
	stmt := result.Statement

	fmt.Fprintf(writer, "STATEMENT PROCESSING REPORT\n")
	fmt.Fprintf(writer, "File:   %s (%s, %d bytes)\n", stmt.OriginalFilename, stmt.FileType, stmt.FileSize)
	fmt.Fprintf(writer, "Status: %s\n", stmt.ProcessingStatus)
	if stmt.ProcessingError != "" {
		fmt.Fprintf(writer, "Error:  %s\n", stmt.ProcessingError)
	}
	if stmt.ProcessedAt != nil {
		fmt.Fprintf(writer, "Processed: %s\n", stmt.ProcessedAt.Format(time.RFC3339))
	}
	fmt.Fprintf(writer, "\n")

	fmt.Fprintf(writer, "=== ACCOUNT ===\n")
	printOptional(writer, "Bank", stmt.BankName)
	printOptional(writer, "Account Number", stmt.AccountNumber)
	printOptional(writer, "Account Holder", stmt.AccountHolder)
	if stmt.PeriodStart != nil && stmt.PeriodEnd != nil {
		fmt.Fprintf(writer, "Period:           %s to %s\n",
			stmt.PeriodStart.Format("2006-01-02"), stmt.PeriodEnd.Format("2006-01-02"))
	}
	fmt.Fprintf(writer, "\n")

	fmt.Fprintf(writer, "=== BALANCES ===\n")
	if stmt.OpeningBalance != nil {
		fmt.Fprintf(writer, "Opening Balance:  %s\n", stmt.OpeningBalance.StringFixed(2))
	}
	if stmt.ClosingBalance != nil {
		fmt.Fprintf(writer, "Closing Balance:  %s\n", stmt.ClosingBalance.StringFixed(2))
	}
	fmt.Fprintf(writer, "Total Credits:    %s\n", stmt.TotalCredits.StringFixed(2))
	fmt.Fprintf(writer, "Total Debits:     %s\n", stmt.TotalDebits.StringFixed(2))
	fmt.Fprintf(writer, "Net Movement:     %s\n", stmt.NetMovement().StringFixed(2))
	fmt.Fprintf(writer, "\n")

	if g.config.IncludeTransactions && len(result.Transactions) > 0 {
		fmt.Fprintf(writer, "=== TRANSACTIONS (%d) ===\n", len(result.Transactions))
		g.printTransactions(result.Transactions, writer)
		fmt.Fprintf(writer, "\n")
	}

	if g.config.IncludeLogs && len(result.Logs) > 0 {
		fmt.Fprintf(writer, "=== PROCESSING LOG ===\n")
		for _, entry := range result.Logs {
			fmt.Fprintf(writer, "  [%s] %s/%s: %s", entry.CreatedAt.Format(time.RFC3339),
				entry.Action, entry.Outcome, entry.Message)
			if entry.DurationMillis > 0 {
				fmt.Fprintf(writer, " (%dms)", entry.DurationMillis)
			}
			fmt.Fprintf(writer, "\n")
		}
		fmt.Fprintf(writer, "\n")
	}

	if result.RawTextPreview != "" {
		fmt.Fprintf(writer, "=== TEXT PREVIEW ===\n%s\n", result.RawTextPreview)
	}

	return nil
}

func (g *Generator) printTransactions(txs []*models.Transaction, writer io.Writer) {
	for i, tx := range txs {
		date := "????-??-??"
		if tx.TransactionDate != nil {
			date = tx.TransactionDate.Format("2006-01-02")
		}

		category := tx.Category
		if tx.Subcategory != "" {
			category = fmt.Sprintf("%s/%s", tx.Category, tx.Subcategory)
		}

		fmt.Fprintf(writer, "  %3d. %s  %8s %-6s  %-40.40s  %s (%.2f)\n",
			i+1, date, tx.Amount.StringFixed(2), tx.Type, tx.Description, category, tx.Confidence)

		if i+1 >= g.config.MaxListedTransactions && len(txs) > g.config.MaxListedTransactions {
			fmt.Fprintf(writer, "  ... and %d more\n", len(txs)-g.config.MaxListedTransactions)
			break
		}
	}
}

func printOptional(writer io.Writer, label, value string) {
	if value == "" {
		return
	}
	fmt.Fprintf(writer, "%-17s %s\n", label+":", value)
}
