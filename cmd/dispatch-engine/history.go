// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/dispatch-engine/internal/history"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect recorded searches and per-source health",
	Long: `History reads the local SQLite log of past searches. Only bookkeeping is
recorded (query, profile, counts, durations, per-source status), never
result contents. Set history.enabled: false to stop recording.`,
}

var historyRunsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recent searches",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := history.Open(historyPath())
		if err != nil {
			return err
		}
		defer store.Close()

		n, _ := cmd.Flags().GetInt("limit")
		runs, err := store.Recent(cmd.Context(), n)
		if err != nil {
			return err
		}
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return writeOutput("json", runs, os.Stdout)
		}
		formatRuns(runs, os.Stdout)
		return nil
	},
}

var historySourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "Show failure and timeout rates per adapter",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := history.Open(historyPath())
		if err != nil {
			return err
		}
		defer store.Close()

		health, err := store.Health(cmd.Context())
		if err != nil {
			return err
		}
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return writeOutput("json", health, os.Stdout)
		}
		formatHealth(health, os.Stdout)
		return nil
	},
}

var historyPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete old runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := history.Open(historyPath())
		if err != nil {
			return err
		}
		defer store.Close()

		age, _ := cmd.Flags().GetDuration("older-than")
		n, err := store.Prune(cmd.Context(), time.Now().Add(-age))
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Deleted %d run(s)\n", n)
		return nil
	},
}

func init() {
	historyRunsCmd.Flags().Int("limit", 20, "number of runs to show")
	historyRunsCmd.Flags().Bool("json", false, "output runs as JSON")
	historySourcesCmd.Flags().Bool("json", false, "output health as JSON")
	historyPruneCmd.Flags().Duration("older-than", 30*24*time.Hour, "delete runs older than this")

	historyCmd.AddCommand(historyRunsCmd, historySourcesCmd, historyPruneCmd)
	rootCmd.AddCommand(historyCmd)
}

func formatRuns(runs []history.Run, w io.Writer) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No searches recorded.")
		return
	}
	fmt.Fprintf(w, "%-19s  %-40s  %-12s  %-7s  %-8s  %s\n", "Started", "Query", "Profile", "Results", "Time", "Sources")
	fmt.Fprintln(w, strings.Repeat("-", 120))
	for _, r := range runs {
		query := r.Query
		if len(query) > 40 {
			query = query[:37] + "..."
		}
		var sources []string
		for _, s := range r.Sources {
			mark := ""
			if s.Status != history.StatusOK {
				mark = "!"
			}
			sources = append(sources, s.Source+mark)
		}
		fmt.Fprintf(w, "%-19s  %-40s  %-12s  %-7d  %-8s  %s\n",
			r.StartedAt.Local().Format("2006-01-02 15:04:05"), query, r.Profile, r.TotalCount,
			(time.Duration(r.DurationMS) * time.Millisecond).String(), strings.Join(sources, " "))
	}
}

func formatHealth(health []history.SourceHealth, w io.Writer) {
	if len(health) == 0 {
		fmt.Fprintln(w, "No searches recorded.")
		return
	}
	fmt.Fprintf(w, "%-20s  %-6s  %-8s  %-8s  %-9s  %s\n", "Source", "Runs", "Errors", "Timeouts", "Fail rate", "Avg time")
	fmt.Fprintln(w, strings.Repeat("-", 80))
	for _, h := range health {
		fmt.Fprintf(w, "%-20s  %-6d  %-8d  %-8d  %-9s  %.0fms\n",
			h.Source, h.Runs, h.Failures, h.Timeouts, fmt.Sprintf("%.0f%%", h.FailureRate()*100), h.AvgDurationMS)
	}
}
