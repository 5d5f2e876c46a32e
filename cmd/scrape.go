package cmd

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lotview/inventory-crawler/internal/scrape"
)

func newScrapeCmd() *cobra.Command {
	var (
		source   string
		maxItems int
		resume   bool
		listOnly bool
	)

	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Run one scrape pass over the configured sources",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, cfgFile)
			if err != nil {
				return err
			}
			defer a.Close()

			summary, err := a.Runner.RunScrape(ctx, source, scrape.RunOptions{
				ScrapeDetailPages: !listOnly,
				MaxItems:          maxItems,
				Resume:            resume,
			})
			if err != nil {
				return fmt.Errorf("run scrape: %w", err)
			}

			a.Logger.Info("scrape complete",
				zap.Int("found", summary.Found),
				zap.Int("inserted", summary.Inserted),
				zap.Int("updated", summary.Updated),
				zap.Int("skipped", summary.Skipped),
				zap.Int("failed", summary.Failed))
			return nil
		},
	}

	cmd.Flags().StringVar(&source, "source", "", "limit the run to one source by id or name")
	cmd.Flags().IntVar(&maxItems, "max-items", 0, "cap detail pages per source (0 = no cap)")
	cmd.Flags().BoolVar(&resume, "resume", false, "continue an interrupted run from the open queue")
	cmd.Flags().BoolVar(&listOnly, "list-only", false, "discover queue items without visiting detail pages")
	return cmd
}
