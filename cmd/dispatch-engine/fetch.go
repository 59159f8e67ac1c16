// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/dispatch-engine/internal/adapter"
	"github.com/pdiddy/dispatch-engine/internal/resolve"
	"github.com/pdiddy/dispatch-engine/pkg/types"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch <input>",
	Short: "Resolve a URL or identifier and fetch it from the matching adapter",
	Long: `Fetch identifies which adapter operation the input refers to (a paper URL,
an arXiv id, a DOI, r/subreddit, owner/repo, ...) and invokes it.

Some inputs match several patterns: an 8-digit number is both a PubMed id
and a Hacker News item. The highest-priority match runs by default; use
--pick N or --interactive to choose another. --dry-run only prints the
matches. Run "dispatch-engine formats" for the full pattern list.`,
	Example: `  dispatch-engine fetch https://arxiv.org/abs/2301.07041
  dispatch-engine fetch --dry-run 12345678
  dispatch-engine fetch --pick 2 12345678`,
	Args: cobra.MinimumNArgs(1),
	RunE: runFetch,
}

func init() {
	fetchCmd.Flags().Int("pick", 0, "run the N-th match (1-based) instead of the best one")
	fetchCmd.Flags().BoolP("interactive", "i", false, "choose among the matches when the input is ambiguous")
	fetchCmd.Flags().Bool("dry-run", false, "print the matches without fetching")
	fetchCmd.Flags().StringP("format", "f", "json", "output format: json or yaml")

	rootCmd.AddCommand(fetchCmd)
}

func runFetch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	input := strings.Join(args, " ")
	format, _ := cmd.Flags().GetString("format")
	resolver := resolve.New()

	matches := resolver.ResolveAll(input)
	if len(matches) == 0 {
		return fmt.Errorf("%w: %q", resolve.ErrNoMatch, input)
	}
	if dry, _ := cmd.Flags().GetBool("dry-run"); dry {
		return writeOutput(format, matches, os.Stdout)
	}

	pick, _ := cmd.Flags().GetInt("pick")
	if interactive, _ := cmd.Flags().GetBool("interactive"); interactive && len(matches) > 1 && pick == 0 {
		n, err := promptChoice(matches, cmd.InOrStdin(), os.Stderr)
		if err != nil {
			return err
		}
		pick = n
	}
	action, err := resolver.Pick(input, pick)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "%s %s %v (%s)\n", action.Adapter, action.Operation, action.Arguments, action.Description)

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close(context.Background())

	payload, err := a.registry.Call(ctx, action.Adapter, action.Operation, adapter.StringArgs(action.Arguments))
	if err != nil {
		return fmt.Errorf("%s %s: %w", action.Adapter, action.Operation, err)
	}
	return writeOutput(format, payload, os.Stdout)
}

// promptChoice lists the matches on w and reads a 1-based choice from r.
// An empty answer picks the first match.
func promptChoice(matches []types.ResolvedAction, r io.Reader, w io.Writer) (int, error) {
	fmt.Fprintln(w, "Input matches several patterns:")
	for i, m := range matches {
		fmt.Fprintf(w, "  %d) %-16s %-20s confidence %.2f  %s\n", i+1, m.Adapter, m.Operation, m.Confidence, m.Description)
	}
	fmt.Fprintf(w, "Choose [1-%d] (default 1): ", len(matches))

	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && err != io.EOF {
		return 0, fmt.Errorf("reading choice: %w", err)
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return 1, nil
	}
	n, err := strconv.Atoi(line)
	if err != nil || n < 1 || n > len(matches) {
		return 0, fmt.Errorf("invalid choice %q", line)
	}
	return n, nil
}

// writeOutput encodes v as indented JSON or YAML.
func writeOutput(format string, v any, w io.Writer) error {
	switch format {
	case "", "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(w)
		defer enc.Close()
		return enc.Encode(v)
	}
	return fmt.Errorf("unknown output format %q (want json or yaml)", format)
}
