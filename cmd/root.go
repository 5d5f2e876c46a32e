// Package cmd defines the CLI commands for the scraper executable.
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lotview/inventory-crawler/internal/app"
)

var cfgFile string

// newApp is a factory variable so tests can substitute a stub application.
var newApp = app.New

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lotview",
		Short: "Dealership inventory scraper",
		Long: `lotview walks dealership listing pages, drains their vehicle detail
pages through a failover chain of fetch providers, extracts and scores
each vehicle, and upserts the result into the inventory store.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path")

	cmd.AddCommand(newScrapeCmd())
	cmd.AddCommand(newServeCmd())
	return cmd
}

// Execute is the CLI entry point.
func Execute() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
