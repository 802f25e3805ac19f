package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/Toyin05/ecommerce/internal/storage"
)

func newReceiptCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "receipt <key>",
		Short: "Print an archived receipt, e.g. receipts/paystack/PSK_001.json",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}
			store, err := storage.FromConfig(cmd.Context(), cfg.Storage)
			if err != nil {
				return err
			}
			if store == nil {
				return fmt.Errorf("receipt archiving is disabled (STORAGE_DRIVER=none)")
			}

			rc, err := store.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			defer rc.Close()
			_, err = io.Copy(os.Stdout, rc)
			return err
		},
	}
}

func envDefault(key string) string {
	return os.Getenv(key)
}
