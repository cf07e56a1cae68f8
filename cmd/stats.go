package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/propscout/propscout-cli/internal/model"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show review status counts",
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

		counts, err := st.CountByStatus(ctx)
		if err != nil {
			return err
		}

		total := 0
		for _, n := range counts {
			total += n
		}

		fmt.Printf("total:      %d\n", total)
		fmt.Printf("interested: %d\n", counts[model.StatusYes])
		fmt.Printf("rejected:   %d\n", counts[model.StatusNo])
		fmt.Printf("maybe:      %d\n", counts[model.StatusMaybe])
		fmt.Printf("unreviewed: %d\n", counts[model.StatusUnset])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
