package commands

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	configPath    string
	verbose       bool
	jsonOutput    bool
	traceExporter string
	otlpEndpoint  string
)

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	buildVersion = version

	rootCmd := &cobra.Command{
		Use:   "cerberus",
		Short: "Cerberus - configuration engine for multi-layer proxy deployments",
		Long: `Cerberus reads one TOML-style configuration file describing a project, its
reverse proxies, its upstream services and the Anubis bot filter, and checks it
before anything is generated from it.

Features:
  - Typed, fail-soft access to every key
  - Schema validation with collected diagnostics
  - Organisation rules written in Rego
  - Live reload with Prometheus metrics
  - History of loaded configurations in SQLite`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verbose {
				zerolog.SetGlobalLevel(zerolog.DebugLevel)
			}
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.toml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")
	rootCmd.PersistentFlags().StringVar(&traceExporter, "trace", "", "trace exporter (stdout, otlp); empty disables tracing")
	rootCmd.PersistentFlags().StringVar(&otlpEndpoint, "otlp-endpoint", "localhost:4317", "OTLP collector endpoint")

	rootCmd.AddCommand(newInitCommand())
	rootCmd.AddCommand(newValidateCommand())
	rootCmd.AddCommand(newKeysCommand())
	rootCmd.AddCommand(newGetCommand())
	rootCmd.AddCommand(newDumpCommand())
	rootCmd.AddCommand(newWatchCommand())
	rootCmd.AddCommand(newHistoryCommand())

	return rootCmd
}
