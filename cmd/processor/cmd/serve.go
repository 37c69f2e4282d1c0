package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"bank-statement-processor/cmd/processor/config"
	"bank-statement-processor/internal/api"
	"bank-statement-processor/pkg/logger"
)

// Flags for the serve command
var (
	serveAddr      string
	jwtSecret      string
	uploadDir      string
	tokenTTL       time.Duration
	serveTesseract string
	servePdftoppm  string
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the statement processing HTTP service",
	Long: `Serve starts the HTTP API: account registration and login, statement
upload, processing and result retrieval. A JWT secret is required; set it
via --jwt-secret or the PROCESSOR_JWT_SECRET environment variable.

Examples:
  processor serve --db statements.db --jwt-secret change-me
  PROCESSOR_JWT_SECRET=change-me processor serve --db statements.db --addr :9090`,

	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "listen address")
	serveCmd.Flags().StringVar(&jwtSecret, "jwt-secret", "", "secret used to sign access tokens (required)")
	serveCmd.Flags().StringVar(&uploadDir, "upload-dir", "uploads", "directory for uploaded documents")
	serveCmd.Flags().DurationVar(&tokenTTL, "token-ttl", 24*time.Hour, "access token lifetime")
	serveCmd.Flags().StringVar(&serveTesseract, "tesseract", "", "tesseract executable (default: tesseract on PATH)")
	serveCmd.Flags().StringVar(&servePdftoppm, "pdftoppm", "", "pdftoppm executable (default: pdftoppm on PATH)")

	viper.BindPFlag("addr", serveCmd.Flags().Lookup("addr"))
	viper.BindPFlag("jwt_secret", serveCmd.Flags().Lookup("jwt-secret"))
	viper.BindPFlag("upload_dir", serveCmd.Flags().Lookup("upload-dir"))
	viper.BindPFlag("token_ttl", serveCmd.Flags().Lookup("token-ttl"))
}

func runServe(cmd *cobra.Command, args []string) error {
	log := logger.GetGlobalLogger()

	secret := viper.GetString("jwt_secret")
	if secret == "" {
		return fmt.Errorf("a JWT secret is required: set --jwt-secret or PROCESSOR_JWT_SECRET")
	}

	repo, cleanup, err := config.OpenRepository(viper.GetString("db"), log)
	if err != nil {
		return err
	}
	defer cleanup()

	extractorConfig := config.CreateExtractorConfig(config.ExtractorOptions{
		TesseractCmd: serveTesseract,
		PdftoppmCmd:  servePdftoppm,
	})

	processor, err := config.BuildProcessor(repo, extractorConfig, nil, log)
	if err != nil {
		return err
	}

	serverConfig := config.CreateServerConfig(
		viper.GetString("addr"), secret, viper.GetString("upload_dir"), tokenTTL)

	server, err := api.NewServer(serverConfig, repo, processor, log)
	if err != nil {
		return err
	}

	return server.ListenAndServe()
}
