package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/haasonsaas/graphquery/internal/observability"
	"github.com/haasonsaas/graphquery/internal/tracelog"
)

func buildHistoryCmd() *cobra.Command {
	var dbPath string
	var limit int

	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "Show recent pipeline runs, or the full timeline of one run",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := tracelog.Open(dbPath)
			if err != nil {
				return err
			}
			defer store.Close()

			out := cmd.OutOrStdout()

			if len(args) == 1 {
				events, err := store.GetByRunID(args[0])
				if err != nil {
					return err
				}
				timeline := observability.BuildTimeline(events)
				fmt.Fprint(out, observability.FormatTimeline(timeline))
				return nil
			}

			runs, err := store.ListRuns(limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(out, "no recorded runs")
				return nil
			}
			for _, r := range runs {
				status := "ok"
				if r.ErrorCount > 0 {
					status = fmt.Sprintf("%d error(s)", r.ErrorCount)
				}
				fmt.Fprintf(out, "%s\t%s\t%d events\t%s\n", r.RunID, r.StartedAt.Format("2006-01-02 15:04:05"), r.EventCount, status)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", defaultTracelogPath(), "Path to the tracelog sqlite database")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of runs to list")

	return cmd
}

func defaultTracelogPath() string {
	if p := strings.TrimSpace(os.Getenv("GRAPHQUERY_HISTORY_DB")); p != "" {
		return p
	}
	return "graphquery-history.db"
}
