// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/dispatch-engine/internal/profile"
	"github.com/pdiddy/dispatch-engine/pkg/types"
)

var profilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "Manage search profiles (list, show, save, delete)",
	Long: `Profiles name the adapter sets a search queries. Built-in profiles ship with
the binary; user profiles live in the profile file and may extend or shadow
them.`,
}

var profilesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List built-in and user profiles",
	RunE: func(cmd *cobra.Command, args []string) error {
		store := newProfileStore()
		list, err := store.List()
		if err != nil {
			return err
		}
		formatProfiles(store, list, os.Stdout)
		return nil
	},
}

var profilesShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Show a profile with its inheritance flattened",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store := newProfileStore()
		format, _ := cmd.Flags().GetString("format")
		if raw, _ := cmd.Flags().GetBool("raw"); raw {
			p, err := store.Get(args[0])
			if err != nil {
				return err
			}
			return writeOutput(format, p, os.Stdout)
		}
		rp, err := store.Resolve(args[0])
		if err != nil {
			return err
		}
		return writeOutput(format, rp, os.Stdout)
	},
}

var profilesSaveCmd = &cobra.Command{
	Use:   "save <name>",
	Short: "Create or replace a user profile",
	Example: `  dispatch-engine profiles save bio --extends research --exclude google-scholar --add biorxiv
  dispatch-engine profiles save fast --connectors arxiv,openalex --timeout-ms 2000 --weight arxiv=1.5`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := profileFromFlags(cmd, args[0])
		if err != nil {
			return err
		}
		store := newProfileStore()
		if err := store.Save(p); err != nil {
			return err
		}
		// Fail early on a broken chain rather than at search time.
		if _, err := store.Resolve(p.Name); err != nil {
			fmt.Fprintf(os.Stderr, "warning: saved %s, but it does not resolve: %v\n", p.Name, err)
			return nil
		}
		fmt.Fprintf(os.Stderr, "Saved profile %s to %s\n", p.Name, store.Path())
		return nil
	},
}

var profilesDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a user profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store := newProfileStore()
		ok, err := store.Delete(args[0])
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: %q", profile.ErrNotFound, args[0])
		}
		fmt.Fprintf(os.Stderr, "Deleted profile %s\n", args[0])
		return nil
	},
}

func init() {
	profilesShowCmd.Flags().Bool("raw", false, "show the declaration instead of the flattened profile")
	profilesShowCmd.Flags().StringP("format", "f", "yaml", "output format: json or yaml")

	addProfileFlags(profilesSaveCmd)

	profilesCmd.AddCommand(profilesListCmd, profilesShowCmd, profilesSaveCmd, profilesDeleteCmd)
	rootCmd.AddCommand(profilesCmd)
}

func addProfileFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("description", "", "profile description")
	f.String("extends", "", "parent profile")
	f.StringSlice("connectors", nil, "adapter list (replaces the inherited list)")
	f.StringSlice("add", nil, "adapters to add")
	f.StringSlice("exclude", nil, "adapters to remove")
	f.Int("limit", 0, "default per-adapter limit")
	f.String("merge", "", "default merge mode: grouped or interleaved")
	f.StringSlice("weight", nil, "relevance weight as adapter=value (repeatable)")
	f.Int("timeout-ms", 0, "per-source timeout in milliseconds")
	f.Int("global-timeout-ms", 0, "whole-search timeout in milliseconds")
	f.String("dedup", "", "enable duplicate removal with this strategy: url, doi or title_fuzzy")
	f.StringSlice("prefer", nil, "sources preferred when removing duplicates")
}

func profileFromFlags(cmd *cobra.Command, name string) (types.SearchProfile, error) {
	f := cmd.Flags()
	p := types.SearchProfile{Name: name}
	p.Description, _ = f.GetString("description")
	p.Extends, _ = f.GetString("extends")
	p.Connectors, _ = f.GetStringSlice("connectors")
	p.Add, _ = f.GetStringSlice("add")
	p.Exclude, _ = f.GetStringSlice("exclude")
	p.Defaults.Limit, _ = f.GetInt("limit")
	merge, _ := f.GetString("merge")
	p.Defaults.MergeMode = types.MergeMode(merge)
	p.TimeoutMS, _ = f.GetInt("timeout-ms")
	p.GlobalTimeoutMS, _ = f.GetInt("global-timeout-ms")

	weights, _ := f.GetStringSlice("weight")
	w, err := parseWeights(weights)
	if err != nil {
		return types.SearchProfile{}, err
	}
	p.Weights = w

	dedup, _ := f.GetString("dedup")
	prefer, _ := f.GetStringSlice("prefer")
	if dedup != "" || len(prefer) > 0 {
		p.Deduplication = &types.DeduplicationConfig{Enabled: true, Strategy: types.DedupStrategy(dedup), Prefer: prefer}
	}
	return p, profile.Validate(p)
}

// parseWeights reads adapter=value pairs.
func parseWeights(pairs []string) (map[string]float64, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]float64, len(pairs))
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("invalid weight %q (want adapter=value)", pair)
		}
		w, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid weight %q: %w", pair, err)
		}
		out[strings.TrimSpace(name)] = w
	}
	return out, nil
}

func formatProfiles(store *profile.Store, list []types.SearchProfile, w io.Writer) {
	fmt.Fprintf(w, "%-16s  %-8s  %-50s  %s\n", "Name", "Kind", "Adapters", "Description")
	fmt.Fprintln(w, strings.Repeat("-", 110))
	for _, p := range list {
		kind := "user"
		if profile.IsBuiltin(p.Name) {
			kind = "builtin"
		}
		adapters := ""
		if rp, err := store.Resolve(p.Name); err != nil {
			adapters = "error: " + err.Error()
		} else {
			adapters = strings.Join(rp.Adapters, ",")
		}
		fmt.Fprintf(w, "%-16s  %-8s  %-50s  %s\n", p.Name, kind, adapters, p.Description)
	}
}
