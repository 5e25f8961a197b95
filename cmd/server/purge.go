package main

import (
	"fmt"

	"github.com/bookclub/backend/internal/repository"
	"github.com/bookclub/backend/internal/services"
	"github.com/bookclub/backend/pkg/utils"
	"github.com/spf13/cobra"
)

var purgeTokensCmd = &cobra.Command{
	Use:   "purge-tokens",
	Short: "Delete expired refresh tokens",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDatabase()
		if err != nil {
			return err
		}
		defer closeDatabase(db)

		signer, err := utils.NewJWTSigner(cfg.JWT.Secret)
		if err != nil {
			return err
		}
		store := repository.NewGormStore(db, cfg.DB.QueryTimeout)
		tokens := services.NewTokenService(store, signer, cfg.JWT)

		purged, err := tokens.PurgeExpired(cmd.Context())
		if err != nil {
			return fmt.Errorf("purging refresh tokens: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "purged %d expired refresh tokens\n", purged)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(purgeTokensCmd)
}
