package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/propscout/propscout-cli/internal/ledger"
	"github.com/propscout/propscout-cli/internal/pipeline"
)

var (
	scrapeSkipExisting bool
	scrapeWorkers      int
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape [url...]",
	Short: "Scrape listing URLs and store extracted fields",
	Long:  "Processes the given URLs, or the inbox file when none are given. Human verdicts in the ledger are synced into the store first; every processed URL is added to the ledger and removed from the inbox.",
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

		registry, err := loadRegistry()
		if err != nil {
			return eris.Wrap(err, "load site registry")
		}

		// Human verdicts first, so a rescrape never clobbers a review.
		entries, err := ledger.ReadLedgerFile(cfg.Files.Ledger)
		if err != nil {
			return err
		}
		if _, err := ledger.Sync(ctx, st, entries); err != nil {
			return err
		}

		urls := args
		fromInbox := false
		if len(urls) == 0 {
			urls, err = ledger.ReadInboxFile(cfg.Files.Inbox)
			if err != nil {
				return err
			}
			fromInbox = true
		}
		if len(urls) == 0 {
			fmt.Println("nothing to scrape")
			return nil
		}

		fetcher, closeBrowser := initFetcher()
		defer closeBrowser()

		engine, err := initEngine()
		if err != nil {
			return err
		}

		workers := cfg.Pipeline.Workers
		if scrapeWorkers > 0 {
			workers = scrapeWorkers
		}
		p := pipeline.New(registry, fetcher, engine, st, pipeline.Config{
			Workers:      workers,
			SkipExisting: scrapeSkipExisting || cfg.Pipeline.SkipExisting,
			Normalize:    cfg.Pipeline.Normalize,
		})

		sum := p.Run(ctx, urls)

		if lines := ledger.Absorb(entries, sum.Succeeded); len(lines) > 0 {
			if err := ledger.AppendToLedgerFile(cfg.Files.Ledger, lines); err != nil {
				return err
			}
			zap.L().Info("ledger extended", zap.Int("new_entries", len(lines)))
		}
		if fromInbox && len(sum.Succeeded) > 0 {
			if err := ledger.RemoveFromInboxFile(cfg.Files.Inbox, sum.Succeeded); err != nil {
				return err
			}
		}

		fmt.Printf("scraped %d urls: %d created, %d updated, %d skipped, %d failed\n",
			sum.Total, sum.Created, sum.Updated, sum.Skipped, sum.Failed)
		for _, f := range sum.Failures {
			fmt.Printf("  FAIL [%s] %s: %s\n", f.Kind, f.URL, f.Reason)
		}

		if sum.Failed > 0 {
			return eris.Errorf("%d of %d urls failed", sum.Failed, sum.Total)
		}
		return nil
	},
}

func init() {
	scrapeCmd.Flags().BoolVar(&scrapeSkipExisting, "skip-existing", false, "skip URLs already in the store without refetching")
	scrapeCmd.Flags().IntVar(&scrapeWorkers, "workers", 0, "concurrent workers (0 = config value)")
	rootCmd.AddCommand(scrapeCmd)
}
