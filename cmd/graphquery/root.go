package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var configPath string

// buildRootCmd creates the root command with all subcommands attached.
func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "graphquery",
		Short: "graphquery - professional-network knowledge-graph query pipeline",
		Long: `graphquery decomposes a natural-language query into structured filters,
plans sub-queries against a remote knowledge-graph tool server, executes
them concurrently, and synthesizes a single answer over the ranked
candidates.`,
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", defaultConfigPath(), "Path to YAML configuration file")

	rootCmd.AddCommand(
		buildAskCmd(),
		buildToolsCmd(),
		buildHealthCmd(),
		buildHistoryCmd(),
	)

	return rootCmd
}

func defaultConfigPath() string {
	if p := strings.TrimSpace(os.Getenv("GRAPHQUERY_CONFIG")); p != "" {
		return p
	}
	return "graphquery.yaml"
}
