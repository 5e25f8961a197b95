package main

import (
	"fmt"
	"os"

	"github.com/bookclub/backend/internal/config"
	"github.com/bookclub/backend/internal/database"
	"github.com/bookclub/backend/pkg/logger"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "bookclub",
	Short: "Book club membership service",
	Long: `Runs the book club membership API and its maintenance tasks.

Commands:
  bookclub serve          Start the HTTP API and the scheduler
  bookclub migrate        Create or update the database schema
  bookclub purge-tokens   Delete expired refresh tokens once`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger.Init()
		cfg = config.Load()
	},
}

// Execute runs the root command.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}

func openDatabase() (*gorm.DB, error) {
	db, err := database.Connect(cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}
	return db, nil
}

func closeDatabase(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
