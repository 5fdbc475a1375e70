package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/scrivo-ai/scrivo/db"
)

var migrateDatabaseURL string

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	Long: `Applies all pending schema migrations to the configured PostgreSQL
database. Already-applied migrations are skipped. The connection URL comes
from --database-url, SCRIVO_DATABASE_URL or DATABASE_URL, in that order.`,
	RunE: func(_ *cobra.Command, _ []string) error {
		return runMigrate()
	},
}

func init() {
	migrateCmd.Flags().StringVar(&migrateDatabaseURL, "database-url", "", "PostgreSQL connection URL")
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate() error {
	connURL := migrateDatabaseURL
	if connURL == "" {
		connURL = os.Getenv("SCRIVO_DATABASE_URL")
	}
	if connURL == "" {
		connURL = os.Getenv("DATABASE_URL")
	}
	if connURL == "" {
		return errors.New("no database URL: set --database-url, SCRIVO_DATABASE_URL or DATABASE_URL")
	}

	logger := newLogger()
	if err := db.Migrate(connURL, logger); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	fmt.Println("Migrations applied.")
	return nil
}
