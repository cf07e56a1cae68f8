package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/propscout/propscout-cli/internal/export"
	"github.com/propscout/propscout-cli/internal/store"
)

var (
	exportOutput string
	exportStatus string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export stored listings to CSV or XLSX",
	Long:  "Writes every stored listing to the output file. The format follows the file extension: .csv or .xlsx.",
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

		filter := store.Filter{Limit: -1}
		if cmd.Flags().Changed("status") {
			status, err := parseStatusFlag(exportStatus)
			if err != nil {
				return err
			}
			filter.Status = &status
		}

		records, err := st.List(ctx, filter)
		if err != nil {
			return err
		}

		switch strings.ToLower(filepath.Ext(exportOutput)) {
		case ".csv":
			f, err := os.Create(exportOutput)
			if err != nil {
				return eris.Wrapf(err, "create %s", exportOutput)
			}
			defer func() { _ = f.Close() }()
			if err := export.WriteCSV(f, records); err != nil {
				return err
			}
		case ".xlsx":
			if err := export.WriteXLSX(exportOutput, records); err != nil {
				return err
			}
		default:
			return eris.Errorf("unsupported output extension: %s (want .csv or .xlsx)", exportOutput)
		}

		fmt.Printf("exported %d listings to %s\n", len(records), exportOutput)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportOutput, "output", "", "output file, .csv or .xlsx (required)")
	exportCmd.Flags().StringVar(&exportStatus, "status", "", "filter by status (yes, no, maybe, or empty for unreviewed)")
	_ = exportCmd.MarkFlagRequired("output")
	rootCmd.AddCommand(exportCmd)
}
