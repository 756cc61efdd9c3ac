package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"proofid/internal/platform/logger"
	"proofid/internal/platform/postgres"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	Long:  `Applies all pending embedded migrations to the database at DATABASE_URL.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.Database.URL == "" {
			return errors.New("DATABASE_URL (or --database-url) is required")
		}
		log := logger.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)

		db, err := postgres.Open(cmd.Context(), cfg.Database)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer db.Close()

		if err := postgres.Migrate(cmd.Context(), db); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
		log.Info("migrations applied")
		return nil
	},
}
