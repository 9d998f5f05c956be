package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func buildToolsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "List the tools the configured tool server advertises",
		RunE: func(cmd *cobra.Command, args []string) error {
			w, err := wireFromConfig(configPath)
			if err != nil {
				return err
			}

			names, err := w.toolClient.ListTools(cmd.Context())
			if err != nil {
				return fmt.Errorf("list tools: %w", err)
			}

			out := cmd.OutOrStdout()
			for _, name := range names {
				fmt.Fprintln(out, name)
			}
			return nil
		},
	}
}
