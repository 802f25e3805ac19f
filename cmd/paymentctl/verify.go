package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Toyin05/ecommerce/internal/app"
)

// verify asks the gateway directly. It never touches the ledger.
func newVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify <reference>",
		Short: "Look up a transaction at the configured gateway",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}
			p, err := app.NewProvider(cfg.Gateway)
			if err != nil {
				return err
			}

			tx, err := p.VerifyTransaction(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("%s: %w", p.Name(), err)
			}

			out, err := json.MarshalIndent(map[string]any{
				"provider":  p.Name(),
				"reference": tx.Reference,
				"status":    tx.Status,
				"amount":    tx.AmountMinorUnits,
				"currency":  tx.Currency,
				"paidAt":    tx.PaidAt,
				"message":   tx.Message,
			}, "", "  ")
			if err != nil {
				return err
			}
			cmd.Println(string(out))
			return nil
		},
	}
}
