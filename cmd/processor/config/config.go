// Package config assembles per-component configurations for the CLI from
// flags and environment settings.
package config

import (
	"context"
	"strings"
	"time"

	"bank-statement-processor/internal/api"
	"bank-statement-processor/internal/bankprofile"
	"bank-statement-processor/internal/categorize"
	"bank-statement-processor/internal/extractor"
	"bank-statement-processor/internal/lifecycle"
	"bank-statement-processor/internal/models"
	"bank-statement-processor/internal/parser"
	"bank-statement-processor/internal/reconcile"
	"bank-statement-processor/internal/report"
	"bank-statement-processor/internal/storage"
	"bank-statement-processor/pkg/logger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
)

// ExtractorOptions are the CLI-tunable extraction settings
type ExtractorOptions struct {
	TesseractCmd string
	PdftoppmCmd  string
	DPI          int
	Language     string
}

// CreateExtractorConfig builds the external engine configuration
func CreateExtractorConfig(opts ExtractorOptions) *extractor.Config {
	config := extractor.DefaultConfig()
	if opts.TesseractCmd != "" {
		config.TesseractCmd = opts.TesseractCmd
	}
	if opts.PdftoppmCmd != "" {
		config.PdftoppmCmd = opts.PdftoppmCmd
	}
	if opts.DPI > 0 {
		config.DPI = opts.DPI
	}
	if opts.Language != "" {
		config.Language = opts.Language
	}
	return config
}

// CreateReconcileConfig builds the reconciliation tolerances
func CreateReconcileConfig(perTransaction, floor float64) *reconcile.Config {
	config := reconcile.DefaultConfig()
	if perTransaction > 0 {
		config.PerTransactionTolerance = decimal.NewFromFloat(perTransaction)
	}
	if floor > 0 {
		config.ToleranceFloor = decimal.NewFromFloat(floor)
	}
	return config
}

// CreateReportConfig builds a report configuration for the given format
func CreateReportConfig(format string) (*report.Config, error) {
	config := report.DefaultConfig()

	switch format {
	case "console", "":
		config.Format = report.FormatConsole
	case "json":
		config.Format = report.FormatJSON
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// CreateServerConfig builds the HTTP server configuration
func CreateServerConfig(addr, jwtSecret, uploadDir string, tokenTTL time.Duration) *api.Config {
	config := api.DefaultConfig()
	if addr != "" {
		config.Addr = addr
	}
	config.JWTSecret = jwtSecret
	if uploadDir != "" {
		config.UploadDir = uploadDir
	}
	if tokenTTL > 0 {
		config.TokenTTL = tokenTTL
	}
	return config
}

// OpenRepository opens the configured store: a SQLite database when a
// path is given, otherwise the in-process memory store. The returned
// cleanup function is a no-op for the memory store.
func OpenRepository(dbPath string, log logger.Logger) (storage.Repository, func() error, error) {
	if dbPath == "" {
		return storage.NewMemory(), func() error { return nil }, nil
	}

	db, err := storage.NewSQLite(dbPath, log)
	if err != nil {
		return nil, nil, err
	}
	return db, db.Close, nil
}

// BuildProcessor wires the default pipeline components over a repository
func BuildProcessor(repo storage.Repository, extractorConfig *extractor.Config,
	reconcileConfig *reconcile.Config, log logger.Logger) (*lifecycle.Processor, error) {

	registry, err := bankprofile.NewRegistry(bankprofile.DefaultProfiles(), log)
	if err != nil {
		return nil, err
	}

	tree, err := categorize.DefaultTree()
	if err != nil {
		return nil, err
	}

	return lifecycle.NewProcessor(lifecycle.Components{
		Repository: repo,
		Registry:   registry,
		Extractor:  extractor.NewAutoExtractor(extractorConfig, log),
		Lines:      parser.NewLineParser(nil, log),
		Accounts:   parser.NewAccountExtractor(log),
		Categories: categorize.NewEngine(tree, nil, log),
		Reconciler: reconcile.NewValidator(reconcileConfig, log),
	}, log)
}

// EnsureLocalUser finds or creates the user account that owns statements
// submitted from the command line.
func EnsureLocalUser(ctx context.Context, repo storage.Repository) (uuid.UUID, error) {
	const email = "cli@localhost"

	if user, err := repo.GetUserByEmail(ctx, email); err == nil {
		return user.ID, nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(uuid.NewString()), bcrypt.MinCost)
	if err != nil {
		return uuid.Nil, err
	}

	now := time.Now().UTC()
	user := &models.User{
		ID:           uuid.New(),
		Username:     "cli",
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := repo.CreateUser(ctx, user); err != nil {
		// Racing creation is fine; reread
		if existing, getErr := repo.GetUserByEmail(ctx, email); getErr == nil {
			return existing.ID, nil
		}
		return uuid.Nil, err
	}
	return user.ID, nil
}

// NormalizeBankCode lower-cases and trims a CLI bank hint
func NormalizeBankCode(code string) string {
	return strings.ToLower(strings.TrimSpace(code))
}
