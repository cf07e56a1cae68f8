package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/propscout/propscout-cli/internal/store"
)

var (
	listStatus string
	listLimit  int
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored listings",
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

		filter := store.Filter{Limit: listLimit}
		if cmd.Flags().Changed("status") {
			status, err := parseStatusFlag(listStatus)
			if err != nil {
				return err
			}
			filter.Status = &status
		}

		records, err := st.List(ctx, filter)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "STATUS\tPRECIO\tMONEDA\tM2\tBARRIO\tURL")
		for i := range records {
			rec := &records[i]
			fmt.Fprintf(w, "[%s]\t%s\t%s\t%s\t%s\t%s\n",
				rec.Status.Tag(),
				cellText(rec.Fields["precio"]),
				cellText(rec.Fields["moneda"]),
				cellText(rec.Fields["metros_cuadrados_totales"]),
				cellText(rec.Fields["barrio"]),
				rec.URL,
			)
		}
		if err := w.Flush(); err != nil {
			return eris.Wrap(err, "flush output")
		}
		fmt.Printf("\n%d listings\n", len(records))
		return nil
	},
}

func cellText(v any) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%v", v)
}

func init() {
	listCmd.Flags().StringVar(&listStatus, "status", "", "filter by status (yes, no, maybe, or empty for unreviewed)")
	listCmd.Flags().IntVar(&listLimit, "limit", 0, "max rows (0 = store default)")
	rootCmd.AddCommand(listCmd)
}
