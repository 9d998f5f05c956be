package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func buildHealthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check configuration validity and tool server reachability",
		RunE: func(cmd *cobra.Command, args []string) error {
			w, err := wireFromConfig(configPath)
			if err != nil {
				return fmt.Errorf("config invalid: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "config: ok (%s)\n", configPath)

			if err := w.toolClient.Health(cmd.Context()); err != nil {
				fmt.Fprintf(out, "toolserver: unreachable (%v)\n", err)
				return fmt.Errorf("tool server health check failed: %w", err)
			}
			fmt.Fprintf(out, "toolserver: ok (%s)\n", w.cfg.ToolServer.BaseURL)
			return nil
		},
	}
}
