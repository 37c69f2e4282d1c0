package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"bank-statement-processor/internal/storage"
	"bank-statement-processor/pkg/logger"
)

var migrationsDir string

// migrateCmd represents the migrate command
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database schema migrations",
	Long: `Migrate brings the SQLite database schema up to date. Run it once
before the first serve, and again after upgrading.

Examples:
  processor migrate --db statements.db
  processor migrate --db statements.db --migrations db/migrations`,

	RunE: runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)

	migrateCmd.Flags().StringVar(&migrationsDir, "migrations", "db/migrations", "path to the migrations directory")
	viper.BindPFlag("migrations", migrateCmd.Flags().Lookup("migrations"))
}

func runMigrate(cmd *cobra.Command, args []string) error {
	log := logger.GetGlobalLogger()

	dbPath := viper.GetString("db")
	if dbPath == "" {
		return fmt.Errorf("--db is required for migrations")
	}

	db, err := storage.NewSQLite(dbPath, log)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.Migrate(viper.GetString("migrations")); err != nil {
		return err
	}

	fmt.Printf("Database %s is up to date\n", dbPath)
	return nil
}
