// Package lifecycle drives a statement through its processing states:
// pending on upload, processing while a worker holds it, then completed
// or failed. The claim is a repository-level compare-and-set, so at most
// one worker ever processes a statement, and every state change leaves
// an entry in the append-only processing log.
package lifecycle

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"bank-statement-processor/internal/bankprofile"
	"bank-statement-processor/internal/categorize"
	"bank-statement-processor/internal/extractor"
	"bank-statement-processor/internal/models"
	"bank-statement-processor/internal/parser"
	"bank-statement-processor/internal/reconcile"
	"bank-statement-processor/internal/storage"
	"bank-statement-processor/pkg/errors"
	"bank-statement-processor/pkg/logger"
)

// Components are the collaborators a Processor is built from. Repository,
// Registry and Extractor are required; the parsing and scoring components
// default to their standard configurations when nil.
type Components struct {
	Repository storage.Repository
	Registry   *bankprofile.Registry
	Extractor  extractor.Extractor

	Lines      *parser.LineParser
	Accounts   *parser.AccountExtractor
	Categories *categorize.Engine
	Reconciler *reconcile.Validator
}

// Processor owns the statement lifecycle: Submit creates a pending
// statement, Process runs the extraction pipeline under an exclusive
// claim, Reset returns a terminal statement to pending.
type Processor struct {
	repo       storage.Repository
	registry   *bankprofile.Registry
	extractor  extractor.Extractor
	lines      *parser.LineParser
	accounts   *parser.AccountExtractor
	categories *categorize.Engine
	reconciler *reconcile.Validator
	log        logger.Logger
}

// NewProcessor creates a lifecycle processor from its components
func NewProcessor(c Components, log logger.Logger) (*Processor, error) {
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	log = log.WithComponent("lifecycle")

	if c.Repository == nil {
		return nil, errors.ConfigurationError(errors.CodeMissingConfig, "repository", nil)
	}
	if c.Registry == nil {
		return nil, errors.ConfigurationError(errors.CodeMissingConfig, "bank profile registry", nil)
	}
	if c.Extractor == nil {
		return nil, errors.ConfigurationError(errors.CodeMissingConfig, "extractor", nil)
	}

	if c.Lines == nil {
		c.Lines = parser.NewLineParser(nil, log)
	}
	if c.Accounts == nil {
		c.Accounts = parser.NewAccountExtractor(log)
	}
	if c.Categories == nil {
		tree, err := categorize.DefaultTree()
		if err != nil {
			return nil, err
		}
		c.Categories = categorize.NewEngine(tree, nil, log)
	}
	if c.Reconciler == nil {
		c.Reconciler = reconcile.NewValidator(nil, log)
	}

	return &Processor{
		repo:       c.Repository,
		registry:   c.Registry,
		extractor:  c.Extractor,
		lines:      c.Lines,
		accounts:   c.Accounts,
		categories: c.Categories,
		reconciler: c.Reconciler,
		log:        log,
	}, nil
}

// Submit validates an uploaded document and registers it as a pending
// statement. The file must exist, be non-empty and carry an accepted
// extension. Nothing is parsed here; processing is a separate step.
func (p *Processor) Submit(ctx context.Context, userID uuid.UUID, filePath string) (*models.Statement, error) {
	filename := filepath.Base(filePath)

	ext, ok := models.FileTypeAllowed(filename)
	if !ok {
		return nil, errors.ValidationError(errors.CodeInvalidFileType, "file", filename)
	}

	fi, err := os.Stat(filePath)
	if err != nil {
		return nil, errors.ValidationError(errors.CodeMissingField, "file", filePath)
	}
	if fi.Size() == 0 {
		return nil, errors.ValidationError(errors.CodeEmptyFile, "file", filename)
	}

	stmt := models.NewStatement(userID, filename, fi.Size(), ext)
	stmt.StoredPath = filePath

	if err := p.repo.CreateStatement(ctx, stmt); err != nil {
		return nil, err
	}

	entry := models.NewLogEntry(stmt.ID, models.ActionUpload, models.OutcomeSuccess,
		fmt.Sprintf("statement %s uploaded", filename))
	entry.Details = map[string]interface{}{
		"filename":  filename,
		"file_size": fi.Size(),
		"file_type": ext,
	}
	if err := p.repo.AppendLog(ctx, entry); err != nil {
		return nil, err
	}

	p.log.WithFields(logger.Fields{
		"statement_id": stmt.ID,
		"filename":     filename,
		"size":         fi.Size(),
	}).Info("Statement submitted")

	return stmt, nil
}

// Process runs the full pipeline for one pending statement: claim,
// extract page text, parse transactions, categorize, reconcile, and move
// the statement to completed or failed. bankCode is an optional
// institution hint; when empty the bank is detected from the document
// text. If another worker already claimed the statement, Process is a
// no-op and returns the statement in its current state.
func (p *Processor) Process(ctx context.Context, statementID uuid.UUID, bankCode string) (*models.Statement, error) {
	claimed, err := p.repo.ClaimForProcessing(ctx, statementID)
	if err != nil {
		return nil, err
	}
	if !claimed {
		stmt, err := p.repo.GetStatement(ctx, statementID)
		if err != nil {
			return nil, err
		}
		p.log.WithFields(logger.Fields{
			"statement_id": statementID,
			"status":       stmt.ProcessingStatus,
		}).Info("Statement not pending, skipping")
		return stmt, nil
	}

	stmt, err := p.repo.GetStatement(ctx, statementID)
	if err != nil {
		return nil, err
	}

	total := logger.NewStageTimer(p.log, "process")
	if runErr := p.run(ctx, stmt, bankCode); runErr != nil {
		return p.fail(ctx, stmt, runErr)
	}

	now := time.Now().UTC()
	stmt.ProcessingStatus = models.StatusCompleted
	stmt.ProcessingError = ""
	stmt.ProcessedAt = &now
	if err := p.repo.UpdateStatement(ctx, stmt); err != nil {
		return nil, err
	}

	p.log.WithFields(logger.Fields{
		"statement_id": stmt.ID,
		"duration_ms":  total.Stop(),
	}).Info("Statement processing completed")

	return stmt, nil
}

// run executes the pipeline stages against a claimed statement. Any
// returned error fails the run. A page that fails extraction does not
// stop the surviving pages from being parsed and persisted, but the run
// still ends in an error naming the failed pages.
func (p *Processor) run(ctx context.Context, stmt *models.Statement, bankCode string) error {
	// Extraction stage
	ocrTimer := logger.NewStageTimer(p.log, "extract")
	p.appendLog(ctx, models.NewLogEntry(stmt.ID, models.ActionOCRStart, models.OutcomeSuccess,
		fmt.Sprintf("extracting text from %s", stmt.OriginalFilename)))

	src, err := p.extractor.Open(ctx, stmt.StoredPath)
	if err != nil {
		return errors.WrapIfNeeded(err, errors.CategoryExtraction, errors.CodeOCRFailed,
			"could not open document for extraction")
	}
	defer src.Close()

	pageCount := src.Pages()
	pageTexts := make([]string, 0, pageCount)
	var failedPages []int
	var firstPageErr error

	for page := 0; page < pageCount; page++ {
		if ctx.Err() != nil {
			return errors.LifecycleError(errors.CodeCancelled, stmt.ID.String(), "cancelled")
		}

		text, err := src.Text(ctx, page)
		if err != nil {
			if ctx.Err() != nil {
				return errors.LifecycleError(errors.CodeCancelled, stmt.ID.String(), "cancelled")
			}
			// One bad page does not abort the loop; the rest still parse
			// before the failure is reported
			failedPages = append(failedPages, page+1)
			if firstPageErr == nil {
				firstPageErr = err
			}
			p.log.WithError(err).WithFields(logger.Fields{
				"statement_id": stmt.ID,
				"page":         page + 1,
			}).Warn("Page extraction failed")
			continue
		}
		pageTexts = append(pageTexts, text)
	}

	if len(pageTexts) == 0 {
		detail := fmt.Sprintf("no pages could be extracted from %s", stmt.OriginalFilename)
		if len(failedPages) > 0 {
			detail = fmt.Sprintf("all %d pages failed extraction, first failure on page %d",
				pageCount, failedPages[0])
		}
		return errors.ExtractionError(errors.CodeNoPages, detail, firstPageErr)
	}

	ocrEntry := models.NewLogEntry(stmt.ID, models.ActionOCRComplete, models.OutcomeSuccess,
		fmt.Sprintf("extracted %d of %d pages", len(pageTexts), pageCount))
	ocrEntry.DurationMillis = ocrTimer.Stop()
	ocrEntry.PagesProcessed = len(pageTexts)
	if len(failedPages) > 0 {
		ocrEntry.Outcome = models.OutcomeWarning
		ocrEntry.Details = map[string]interface{}{"failed_pages": failedPages}
	}
	p.appendLog(ctx, ocrEntry)

	stmt.RawText = strings.Join(pageTexts, "\n")

	// Parse stage
	parseTimer := logger.NewStageTimer(p.log, "parse")

	profile := p.resolveProfile(stmt.RawText, bankCode)
	p.log.WithFields(logger.Fields{
		"statement_id": stmt.ID,
		"bank":         profile.Code,
	}).Debug("Bank profile resolved")

	info := p.accounts.Extract(stmt.RawText, profile)
	applyAccountInfo(stmt, info)

	transactions := p.parseTransactions(ctx, stmt, profile)
	if err := p.repo.CreateTransactions(ctx, transactions); err != nil {
		return err
	}

	stmt.TotalCredits, stmt.TotalDebits = sumByType(transactions)

	parseEntry := models.NewLogEntry(stmt.ID, models.ActionParseComplete, models.OutcomeSuccess,
		fmt.Sprintf("parsed %d transactions from %d pages", len(transactions), len(pageTexts)))
	parseEntry.DurationMillis = parseTimer.Stop()
	parseEntry.PagesProcessed = len(pageTexts)
	parseEntry.TransactionsFound = len(transactions)
	p.appendLog(ctx, parseEntry)

	// Reconciliation stage: mismatches are warnings, never fatal
	if stmt.OpeningBalance != nil && stmt.ClosingBalance != nil {
		flags := p.reconciler.Validate(stmt, transactions)
		entry := models.NewLogEntry(stmt.ID, models.ActionReconcile, models.OutcomeSuccess,
			"balances reconcile with parsed transactions")
		if len(flags) > 0 {
			entry.Outcome = models.OutcomeWarning
			entry.Message = flags[0].Message
			entry.Details = map[string]interface{}{
				"flag":        flags[0].Code,
				"discrepancy": flags[0].Discrepancy.StringFixed(2),
				"expected":    flags[0].Expected.StringFixed(2),
				"actual":      flags[0].Actual.StringFixed(2),
			}
		}
		entry.TransactionsFound = len(transactions)
		p.appendLog(ctx, entry)
	}

	// The surviving pages' transactions are persisted above, but a
	// statement with unextracted pages is incomplete and must not read
	// as a full success.
	if len(failedPages) > 0 {
		return errors.ExtractionError(errors.CodeOCRFailed,
			fmt.Sprintf("%s of %d could not be extracted; parsed transactions cover the remaining pages",
				pageList(failedPages), pageCount), firstPageErr)
	}

	return nil
}

// pageList renders 1-based page numbers for error messages
func pageList(pages []int) string {
	if len(pages) == 1 {
		return fmt.Sprintf("page %d", pages[0])
	}
	parts := make([]string, len(pages))
	for i, p := range pages {
		parts[i] = strconv.Itoa(p)
	}
	return "pages " + strings.Join(parts, ", ")
}

// parseTransactions runs the line parser over the extracted text and
// promotes candidates to categorized transactions.
func (p *Processor) parseTransactions(ctx context.Context, stmt *models.Statement, profile *bankprofile.Profile) []*models.Transaction {
	var out []*models.Transaction

	for _, line := range strings.Split(stmt.RawText, "\n") {
		candidate := p.lines.ParseLine(line, profile)
		if candidate == nil {
			continue
		}

		var txDate *time.Time
		if t, err := models.ParseStatementDate(candidate.DateString, profile.DateFormat); err == nil {
			txDate = &t
		}

		tx := candidate.Promote(stmt.ID, txDate)

		result := p.categories.Classify(tx.Description)
		tx.Category = result.Category
		tx.Subcategory = result.Subcategory
		if result.Confidence > 0 {
			// Overall confidence combines sign inference and category match
			tx.Confidence = tx.Confidence * result.Confidence
		}

		if err := tx.Validate(); err != nil {
			p.log.WithError(err).WithField("line", candidate.RawLine).Warn("Discarding invalid transaction")
			continue
		}

		out = append(out, tx)
	}

	return out
}

// resolveProfile prefers the caller's institution hint and otherwise
// detects the bank from the document text.
func (p *Processor) resolveProfile(text, bankCode string) *bankprofile.Profile {
	if bankCode != "" {
		return p.registry.Resolve(bankCode)
	}
	return p.registry.Detect(text)
}

// fail moves the statement to the terminal failed state, recording the
// cause on the statement and in the processing log. The original error is
// returned to the caller.
func (p *Processor) fail(ctx context.Context, stmt *models.Statement, cause error) (*models.Statement, error) {
	message := cause.Error()
	if procErr, ok := errors.AsProcessorError(cause); ok {
		message = procErr.UserMessage()
	}

	now := time.Now().UTC()
	stmt.ProcessingStatus = models.StatusFailed
	stmt.ProcessingError = message
	stmt.ProcessedAt = &now

	if err := p.repo.UpdateStatement(ctx, stmt); err != nil {
		p.log.WithError(err).WithField("statement_id", stmt.ID).Error("Could not record failure")
	}

	entry := models.NewLogEntry(stmt.ID, models.ActionError, models.OutcomeFailed, message)
	p.appendLog(ctx, entry)

	p.log.WithError(cause).WithField("statement_id", stmt.ID).Error("Statement processing failed")
	return stmt, cause
}

// Reset returns a completed or failed statement to pending so it can be
// processed again. Resetting a pending or processing statement is a
// conflict surfaced by the repository.
func (p *Processor) Reset(ctx context.Context, statementID uuid.UUID) (*models.Statement, error) {
	if err := p.repo.ResetStatement(ctx, statementID); err != nil {
		return nil, err
	}

	p.appendLog(ctx, models.NewLogEntry(statementID, models.ActionReset, models.OutcomeSuccess,
		"statement returned to pending"))

	p.log.WithField("statement_id", statementID).Info("Statement reset")
	return p.repo.GetStatement(ctx, statementID)
}

// appendLog records an audit entry; log persistence failures are logged
// but never fail the pipeline.
func (p *Processor) appendLog(ctx context.Context, entry *models.ProcessingLogEntry) {
	if err := p.repo.AppendLog(ctx, entry); err != nil {
		p.log.WithError(err).WithFields(logger.Fields{
			"statement_id": entry.StatementID,
			"action":       entry.Action,
		}).Error("Could not append processing log entry")
	}
}

func applyAccountInfo(stmt *models.Statement, info *models.AccountInfo) {
	if info == nil || info.IsEmpty() {
		return
	}
	if info.BankName != "" {
		stmt.BankName = info.BankName
	}
	if info.AccountNumber != "" {
		stmt.AccountNumber = info.AccountNumber
	}
	if info.HolderName != "" {
		stmt.AccountHolder = info.HolderName
	}
	if info.PeriodStart != nil {
		stmt.PeriodStart = info.PeriodStart
	}
	if info.PeriodEnd != nil {
		stmt.PeriodEnd = info.PeriodEnd
	}
	if info.OpeningBalance != nil {
		stmt.OpeningBalance = info.OpeningBalance
	}
	if info.ClosingBalance != nil {
		stmt.ClosingBalance = info.ClosingBalance
	}
}

func sumByType(transactions []*models.Transaction) (credits, debits decimal.Decimal) {
	credits, debits = decimal.Zero, decimal.Zero
	for _, tx := range transactions {
		if tx.Type == models.TypeCredit {
			credits = credits.Add(tx.Amount)
		} else {
			debits = debits.Add(tx.Amount)
		}
	}
	return credits, debits
}
