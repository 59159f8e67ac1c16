// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/dispatch-engine/internal/federated"
	"github.com/pdiddy/dispatch-engine/internal/profile"
	"github.com/pdiddy/dispatch-engine/pkg/types"
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search every adapter of a profile at once",
	Long: `Search sends the query to every adapter of a search profile concurrently and
merges the results. Sources that fail or exceed their timeout are listed
after the results; the rest are still returned.

The default profile, papers, uses only adapters built into this binary.
Profiles such as research also name adapters (pubmed, google-scholar) that
are not built in; those sources are reported as "adapter not registered"
and the search is marked partial.

Grouped output keeps each source's results together in profile order.
Interleaved output ranks all results by (1/rank) x source weight.

Use --save to keep the request and its results in a YAML file, and
--from-file to show a saved search again (or --rerun it).`,
	Example: `  dispatch-engine search "CRISPR off-target effects"
  dispatch-engine search -p papers --merge interleaved --dedup title_fuzzy "scaling laws"
  dispatch-engine search --adapters arxiv,openalex --limit 5 --format json "graph neural networks"`,
	RunE: runSearch,
}

func init() {
	addSearchFlags(searchCmd)
	rootCmd.AddCommand(searchCmd)
}

func addSearchFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringP("profile", "p", profile.DefaultName, "search profile")
	f.StringSlice("adapters", nil, "explicit adapter list (replaces the profile)")
	f.StringSlice("add", nil, "adapters to add to the profile")
	f.StringSlice("exclude", nil, "adapters to drop from the profile")
	f.String("merge", "", "merge mode: grouped or interleaved (default: profile setting)")
	f.Int("limit", 0, "per-adapter result limit (default: profile setting)")
	f.String("dedup", "", "remove duplicates across sources: url, doi or title_fuzzy")
	f.StringSlice("prefer", nil, "sources to keep first when removing duplicates")
	f.StringP("format", "f", federated.FormatNameTable, "output format: table, json, yaml or csl")
	f.Bool("json", false, "output results as JSON (same as --format json)")
	f.String("save", "", "write the request and results to this YAML file")
	f.String("from-file", "", "show a search saved with --save")
	f.Bool("rerun", false, "with --from-file, run the saved request again")
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	format, _ := cmd.Flags().GetString("format")
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		format = federated.FormatNameJSON
	}

	fromFile, _ := cmd.Flags().GetString("from-file")
	var req federated.Request
	if fromFile != "" {
		qf, err := federated.ReadQueryFile(fromFile)
		if err != nil {
			return err
		}
		if rerun, _ := cmd.Flags().GetBool("rerun"); !rerun && qf.Result != nil {
			return federated.Format(format, qf.Result, os.Stdout)
		}
		req = qf.Request.ToRequest()
	} else {
		r, err := requestFromFlags(cmd, args)
		if err != nil {
			return err
		}
		req = r
	}

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close(context.Background())

	result, err := a.engine.Search(ctx, req)
	if err != nil {
		return err
	}

	if path, _ := cmd.Flags().GetString("save"); path != "" {
		if err := federated.WriteQueryFile(path, req, result); err != nil {
			return err
		}
		fmt.Fprintln(os.Stderr, "Saved search to", path)
	}

	if err := federated.Format(format, result, os.Stdout); err != nil {
		return err
	}
	if result.AllFailed() {
		return fmt.Errorf("all %d sources failed", len(result.Errors))
	}
	return nil
}

// requestFromFlags builds a search request from the command line. An
// explicit --adapters list replaces the default profile; with an explicit
// --profile the adapters are added to it instead.
func requestFromFlags(cmd *cobra.Command, args []string) (federated.Request, error) {
	f := cmd.Flags()
	query := strings.TrimSpace(strings.Join(args, " "))
	if query == "" {
		return federated.Request{}, fmt.Errorf("a query is required")
	}

	req := federated.Request{Query: query}
	req.Profile, _ = f.GetString("profile")
	req.Add, _ = f.GetStringSlice("add")
	if adapters, _ := f.GetStringSlice("adapters"); len(adapters) > 0 {
		if f.Changed("profile") {
			req.Add = append(adapters, req.Add...)
		} else {
			req.Profile = ""
			req.Adapters = adapters
		}
	}
	req.Exclude, _ = f.GetStringSlice("exclude")
	req.Limit, _ = f.GetInt("limit")

	merge, _ := f.GetString("merge")
	if merge != "" {
		req.Merge = types.MergeMode(merge)
		if !req.Merge.Valid() {
			return federated.Request{}, fmt.Errorf("unknown merge mode %q (want grouped or interleaved)", merge)
		}
	}

	dedup, _ := f.GetString("dedup")
	prefer, _ := f.GetStringSlice("prefer")
	if dedup != "" || len(prefer) > 0 {
		d := &types.DeduplicationConfig{Enabled: true, Strategy: types.DedupStrategy(dedup), Prefer: prefer}
		if d.Strategy == "" {
			d.Strategy = types.DedupURL
		}
		if !d.Strategy.Valid() {
			return federated.Request{}, fmt.Errorf("unknown dedup strategy %q (want url, doi or title_fuzzy)", dedup)
		}
		req.Deduplication = d
	}
	return req, nil
}
