package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for sitecrawl.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sitecrawl",
		Short: "Concurrent website crawler that streams page text as JSON Lines",
		Long: `sitecrawl crawls a website from a seed URL and emits one JSON record per
fetched page: its URL, title, extracted text, outgoing links and content kind.

Pages are rendered in a remote browser through WebDriver (default) or the
Chrome DevTools protocol, or fetched directly with --transport http.
The crawl stays on the seed's host and directory unless --allow-external is set.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	cmd.AddCommand(NewCrawlCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
