// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/dispatch-engine/internal/resolve"
	"github.com/pdiddy/dispatch-engine/pkg/types"
)

var formatsCmd = &cobra.Command{
	Use:   "formats",
	Short: "List the input formats fetch recognizes",
	Long: `Formats lists every resolver pattern in evaluation order (highest priority
first) with the adapter operation it maps to and an example input.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		patterns := resolve.New().ListPatterns()
		if adapterName, _ := cmd.Flags().GetString("adapter"); adapterName != "" {
			var kept []types.PatternInfo
			for _, p := range patterns {
				if p.Adapter == adapterName {
					kept = append(kept, p)
				}
			}
			patterns = kept
		}
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return writeOutput("json", patterns, os.Stdout)
		}
		formatPatterns(patterns, os.Stdout)
		return nil
	},
}

func init() {
	formatsCmd.Flags().String("adapter", "", "only show patterns for this adapter")
	formatsCmd.Flags().Bool("json", false, "output patterns as JSON")

	rootCmd.AddCommand(formatsCmd)
}

func formatPatterns(patterns []types.PatternInfo, w io.Writer) {
	if len(patterns) == 0 {
		fmt.Fprintln(w, "No patterns.")
		return
	}
	fmt.Fprintf(w, "%-4s  %-16s  %-22s  %-50s  %s\n", "Pri", "Adapter", "Operation", "Example", "Description")
	fmt.Fprintln(w, strings.Repeat("-", 120))
	for _, p := range patterns {
		fmt.Fprintf(w, "%-4d  %-16s  %-22s  %-50s  %s\n", p.Priority, p.Adapter, p.Operation, p.Example, p.Description)
	}
}
