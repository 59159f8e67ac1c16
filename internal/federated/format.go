// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package federated

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/dispatch-engine/pkg/types"
)

// Output formats accepted by Format.
const (
	FormatNameTable = "table"
	FormatNameJSON  = "json"
	FormatNameYAML  = "yaml"
	FormatNameCSL   = "csl"
)

// Format writes result to w in the named format.
func Format(name string, result *types.FederatedSearchResult, w io.Writer) error {
	switch name {
	case "", FormatNameTable:
		FormatTable(result, w)
		return nil
	case FormatNameJSON:
		return FormatJSON(result, w)
	case FormatNameYAML:
		return FormatYAML(result, w)
	case FormatNameCSL:
		return FormatCSL(result, w)
	}
	return fmt.Errorf("unknown output format %q (want table, json, yaml or csl)", name)
}

// FormatTable writes a human-readable listing to w. Grouped results get one
// block per source; interleaved results get a single ranked list.
func FormatTable(result *types.FederatedSearchResult, w io.Writer) {
	if result.TotalCount == 0 && len(result.Errors) == 0 {
		fmt.Fprintln(w, "No results found.")
		return
	}

	if result.MergeMode == types.MergeInterleaved {
		writeHeader(w, true)
		for i, r := range result.Results {
			writeRow(w, i+1, r, true)
		}
	} else {
		for _, g := range result.Sources {
			fmt.Fprintf(w, "== %s (%d", g.Source, g.Count)
			if g.TotalAvailable != nil {
				fmt.Fprintf(w, " of %d", *g.TotalAvailable)
			}
			fmt.Fprintf(w, ", %dms)\n", g.DurationMS)
			if g.Count == 0 {
				fmt.Fprintln(w, "   (no results)")
				continue
			}
			writeHeader(w, false)
			for _, r := range g.Results {
				writeRow(w, r.Federation.SourceRank, r, false)
			}
			fmt.Fprintln(w)
		}
	}

	for _, e := range result.Errors {
		fmt.Fprintf(w, "! %s: %s\n", e.Source, e.Error)
	}

	fmt.Fprintf(w, "\n%d results from %d of %d sources",
		result.TotalCount, len(result.Completed), len(result.Completed)+len(result.Errors))
	if result.DuplicatesRemoved > 0 {
		fmt.Fprintf(w, " (%d duplicates removed)", result.DuplicatesRemoved)
	}
	if result.Partial {
		fmt.Fprint(w, " [partial]")
	}
	fmt.Fprintf(w, " in %dms\n", result.DurationMS)
}

func writeHeader(w io.Writer, interleaved bool) {
	if interleaved {
		fmt.Fprintf(w, "%-4s  %-60s  %-4s  %-6s  %s\n", "Rank", "Title", "Year", "Score", "Source")
		fmt.Fprintln(w, strings.Repeat("-", 100))
		return
	}
	fmt.Fprintf(w, "%-4s  %-60s  %-4s  %s\n", "Rank", "Title", "Year", "ID")
	fmt.Fprintln(w, strings.Repeat("-", 100))
}

func writeRow(w io.Writer, rank int, r types.UnifiedSearchResult, interleaved bool) {
	title := truncate(r.Title, 60)
	year := ""
	if r.Timestamp != nil {
		year = fmt.Sprintf("%d", r.Timestamp.Year())
	}
	if interleaved {
		score := 0.0
		if r.Federation.Score != nil {
			score = *r.Federation.Score
		}
		fmt.Fprintf(w, "%-4d  %-60s  %-4s  %-6.3f  %s\n", rank, title, year, score, r.Source)
		return
	}
	fmt.Fprintf(w, "%-4d  %-60s  %-4s  %s\n", rank, title, year, r.ID)
}

// FormatJSON writes the result as indented JSON to w.
func FormatJSON(result *types.FederatedSearchResult, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// FormatYAML writes the result as YAML to w.
func FormatYAML(result *types.FederatedSearchResult, w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	defer enc.Close()
	return enc.Encode(result)
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max-3]) + "..."
}
