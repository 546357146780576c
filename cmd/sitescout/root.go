// Package main provides the entry point for the SiteScout CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for SiteScout.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sitescout",
		Short: "Polite website reconnaissance tool",
		Long: `SiteScout crawls a website breadth-first and reports what it finds:
pages and their metadata, downloadable documents, locale coverage, and
unlinked resources discovered by wordlist probing.

Crawling is polite by default: requests are rate limited, robots.txt
rules are honored, and link following stays within the target's domain.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	// Add subcommands
	cmd.AddCommand(NewScanCmd())
	cmd.AddCommand(NewCompareCmd())
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
