package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/propscout/propscout-cli/internal/ledger"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Push ledger verdicts into the store",
	Long:  "Reads the status ledger and updates stored records to match the human tags. Ledger entries without a stored record are left alone.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		entries, err := ledger.ReadLedgerFile(cfg.Files.Ledger)
		if err != nil {
			return err
		}

		res, err := ledger.Sync(ctx, st, entries)
		if err != nil {
			return err
		}

		fmt.Printf("synced %d entries: %d updated, %d skipped\n", len(entries), res.Updated, res.Skipped)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)
}
