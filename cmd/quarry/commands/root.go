package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	configPath string
	verbose    bool
	jsonOutput bool

	// appVersion is the build version, for telemetry identification.
	appVersion = "dev"
)

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	appVersion = version
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "quarry",
		Short: "Quarry - Binary Package Dependency Tracker",
		Long: `Quarry tracks installed binary packages, their install reason and their
reverse dependencies, and finds orphans: packages that were pulled in
automatically and that nothing depends on any longer.

Features:
  - SQLite-backed installed-package database
  - Orphan detection over consistent database snapshots
  - Policy-gated autoremoval (OPA/Rego, with operator holds)
  - Structured logging, tracing and Prometheus metrics`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
	}

	// Persistent flags available to all commands
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")

	// Add subcommands
	rootCmd.AddCommand(newOrphansCommand())
	rootCmd.AddCommand(newAutoremoveCommand())
	rootCmd.AddCommand(newDBCommand())
	rootCmd.AddCommand(newPolicyCommand())

	return rootCmd
}
