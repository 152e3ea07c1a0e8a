package main

import (
	"github.com/jackyeh168/loyalty_ledger/src/internal/infrastructure/persistence"
	"github.com/spf13/cobra"
)

func migrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, closer, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			defer closer.Close()

			st, err := openStore(cfg, logger)
			if err != nil {
				return err
			}
			return persistence.Close(st.DB)
		},
	}
}
