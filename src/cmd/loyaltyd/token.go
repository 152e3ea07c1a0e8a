package main

import (
	"fmt"
	"time"

	"github.com/jackyeh168/loyalty_ledger/src/internal/domain/merchant"
	"github.com/jackyeh168/loyalty_ledger/src/internal/domain/points"
	"github.com/jackyeh168/loyalty_ledger/src/internal/infrastructure/config"
	"github.com/jackyeh168/loyalty_ledger/src/internal/interfaces/httpapi"
	"github.com/spf13/cobra"
)

func tokenCmd(configPath *string) *cobra.Command {
	var (
		merchantID string
		accountID  string
		ttl        time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an API token for a merchant or customer account",
		Long: `Mint an HS256 API token signed with auth.jwt_secret.

Examples:
  loyaltyd token --merchant 6f1c...   # merchant dashboard token
  loyaltyd token --account 0b7e...    # customer token`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if (merchantID == "") == (accountID == "") {
				return fmt.Errorf("specify exactly one of --merchant or --account")
			}
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}

			var p httpapi.Principal
			if merchantID != "" {
				id, err := merchant.MerchantIDFromString(merchantID)
				if err != nil {
					return err
				}
				p = httpapi.Principal{Role: httpapi.RoleMerchant, MerchantID: id}
			} else {
				id, err := points.AccountIDFromString(accountID)
				if err != nil {
					return err
				}
				p = httpapi.Principal{Role: httpapi.RoleCustomer, AccountID: id}
			}

			auth := httpapi.NewAuthenticator(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.ClockSkew, nil)
			token, err := auth.Issue(p, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&merchantID, "merchant", "", "merchant ID")
	cmd.Flags().StringVar(&accountID, "account", "", "customer account ID")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}
