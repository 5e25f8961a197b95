package main

import (
	"github.com/bookclub/backend/internal/database"
	"github.com/bookclub/backend/pkg/logger"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDatabase()
		if err != nil {
			return err
		}
		defer closeDatabase(db)

		if err := database.Migrate(db); err != nil {
			return err
		}
		logger.Info("database_migrated", map[string]interface{}{
			"tables": len(database.Models()),
		})
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
