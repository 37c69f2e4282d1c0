package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"bank-statement-processor/cmd/processor/config"
	"bank-statement-processor/internal/report"
	"bank-statement-processor/pkg/logger"
)

// Flags for the process command
var (
	processFile    string
	bankCode       string
	outputFormat   string
	outputFile     string
	tesseractCmd   string
	pdftoppmCmd    string
	ocrDPI         int
	ocrLanguage    string
	amountPerTx    float64
	toleranceFloor float64
)

// processCmd represents the process command
var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Process one statement document end to end",
	Long: `Process runs the full pipeline over a single statement document:
text extraction (native PDF layer or OCR), transaction parsing,
categorization and balance reconciliation, then prints the result.

Without --db the run uses an in-memory store and leaves nothing behind;
with --db the statement, its transactions and the processing log are
persisted.

Examples:
  # Process a digital PDF statement
  processor process --file statement.pdf

  # Scanned statement with a known institution, JSON output
  processor process --file scan.png --bank chase --output-format json

  # Persist results into a SQLite database
  processor process --file statement.pdf --db statements.db`,

	PreRunE: validateProcessFlags,
	RunE:    runProcess,
}

func init() {
	rootCmd.AddCommand(processCmd)

	processCmd.Flags().StringVarP(&processFile, "file", "F", "", "path to the statement document (required)")
	processCmd.Flags().StringVarP(&bankCode, "bank", "b", "", "institution code hint (default: detect from text)")

	processCmd.Flags().StringVarP(&outputFormat, "output-format", "f", "console", "output format: console, json")
	processCmd.Flags().StringVarP(&outputFile, "output-file", "o", "", "output file path (default: stdout)")

	processCmd.Flags().StringVar(&tesseractCmd, "tesseract", "", "tesseract executable (default: tesseract on PATH)")
	processCmd.Flags().StringVar(&pdftoppmCmd, "pdftoppm", "", "pdftoppm executable (default: pdftoppm on PATH)")
	processCmd.Flags().IntVar(&ocrDPI, "ocr-dpi", 0, "rasterization DPI for OCR (default 300)")
	processCmd.Flags().StringVar(&ocrLanguage, "ocr-language", "", "tesseract language (default eng)")

	processCmd.Flags().Float64Var(&amountPerTx, "tolerance-per-tx", 0, "reconciliation tolerance per transaction (default 0.02)")
	processCmd.Flags().Float64Var(&toleranceFloor, "tolerance-floor", 0, "minimum reconciliation tolerance (default 0.10)")

	processCmd.MarkFlagRequired("file")

	viper.BindPFlag("file", processCmd.Flags().Lookup("file"))
	viper.BindPFlag("bank", processCmd.Flags().Lookup("bank"))
	viper.BindPFlag("output-format", processCmd.Flags().Lookup("output-format"))
	viper.BindPFlag("output-file", processCmd.Flags().Lookup("output-file"))
	viper.BindPFlag("tesseract", processCmd.Flags().Lookup("tesseract"))
	viper.BindPFlag("pdftoppm", processCmd.Flags().Lookup("pdftoppm"))
	viper.BindPFlag("ocr-dpi", processCmd.Flags().Lookup("ocr-dpi"))
	viper.BindPFlag("ocr-language", processCmd.Flags().Lookup("ocr-language"))
}

func validateProcessFlags(cmd *cobra.Command, args []string) error {
	processFile = viper.GetString("file")
	bankCode = viper.GetString("bank")
	outputFormat = viper.GetString("output-format")
	outputFile = viper.GetString("output-file")

	if processFile == "" {
		return fmt.Errorf("--file is required")
	}
	if outputFormat != "console" && outputFormat != "json" {
		return fmt.Errorf("unsupported output format: %s (use console or json)", outputFormat)
	}
	return nil
}

func runProcess(cmd *cobra.Command, args []string) error {
	log := logger.GetGlobalLogger()
	ctx := cmd.Context()

	repo, cleanup, err := config.OpenRepository(viper.GetString("db"), log)
	if err != nil {
		return err
	}
	defer cleanup()

	extractorConfig := config.CreateExtractorConfig(config.ExtractorOptions{
		TesseractCmd: viper.GetString("tesseract"),
		PdftoppmCmd:  viper.GetString("pdftoppm"),
		DPI:          viper.GetInt("ocr-dpi"),
		Language:     viper.GetString("ocr-language"),
	})
	reconcileConfig := config.CreateReconcileConfig(amountPerTx, toleranceFloor)

	processor, err := config.BuildProcessor(repo, extractorConfig, reconcileConfig, log)
	if err != nil {
		return err
	}

	userID, err := config.EnsureLocalUser(ctx, repo)
	if err != nil {
		return err
	}

	stmt, err := processor.Submit(ctx, userID, processFile)
	if err != nil {
		return err
	}

	stmt, procErr := processor.Process(ctx, stmt.ID, config.NormalizeBankCode(bankCode))
	if stmt == nil {
		return procErr
	}
	// Render whatever we have even on failure; the log explains the error

	txs, err := repo.ListTransactions(ctx, stmt.ID)
	if err != nil {
		return err
	}
	logs, err := repo.ListLogs(ctx, stmt.ID)
	if err != nil {
		return err
	}

	reportConfig, err := config.CreateReportConfig(outputFormat)
	if err != nil {
		return err
	}
	generator, err := report.NewGenerator(reportConfig)
	if err != nil {
		return err
	}

	var out io.Writer = os.Stdout
	if outputFile != "" {
		f, err := os.Create(outputFile)
		if err != nil {
			return fmt.Errorf("could not create output file: %w", err)
		}
		defer f.Close()
		out = f
	}

	if err := generator.Generate(generator.Build(stmt, txs, logs), out); err != nil {
		return err
	}

	return procErr
}
