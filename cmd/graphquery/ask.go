package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/haasonsaas/graphquery/internal/observability"
	"github.com/haasonsaas/graphquery/pkg/graphmodel"
)

func buildAskCmd() *cobra.Command {
	var count int
	var asJSON bool
	var verbose bool

	cmd := &cobra.Command{
		Use:   "ask <query>",
		Short: "Run a natural-language query through the pipeline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.TrimSpace(args[0])
			if query == "" {
				return fmt.Errorf("query must not be empty")
			}

			w, err := wireFromConfig(configPath)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if verbose {
				observability.SetDiagnosticsEnabled(true)
				unsubscribe := observability.OnDiagnosticEvent(func(event observability.DiagnosticEventPayload) {
					fmt.Fprintf(cmd.ErrOrStderr(), "[%s] %+v\n", event.EventType(), event)
				})
				defer unsubscribe()
			}

			state := w.orchestrator.Run(cmd.Context(), query, count)

			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(state)
			}

			fmt.Fprintln(out, state.FinalAnswer)
			if len(state.Errors) > 0 {
				fmt.Fprintln(cmd.ErrOrStderr(), "run completed with errors:")
				for _, e := range state.Errors {
					fmt.Fprintf(cmd.ErrOrStderr(), "  - [%s] %s\n", e.Kind, e.Message)
				}
			}
			if state.Status == graphmodel.StatusError {
				return fmt.Errorf("pipeline run ended in error status")
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&count, "count", 0, "Desired number of candidates (0 uses the server default)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the full pipeline state as JSON instead of the final answer")
	cmd.Flags().BoolVar(&verbose, "verbose", false, "Stream diagnostic events to stderr as the run progresses")

	return cmd
}
