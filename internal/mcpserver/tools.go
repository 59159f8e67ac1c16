// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package mcpserver

import (
	"context"
	"errors"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/pdiddy/dispatch-engine/internal/adapter"
	"github.com/pdiddy/dispatch-engine/internal/federated"
	"github.com/pdiddy/dispatch-engine/internal/profile"
	"github.com/pdiddy/dispatch-engine/pkg/types"
)

type toolDef struct {
	tool    *mcp.Tool
	handler handler
}

func (s *Server) tools() []toolDef {
	return []toolDef{
		{
			tool: &mcp.Tool{
				Name:        ToolFederatedSearch,
				Description: "Search several sources at once using a named profile or an explicit adapter list. Failed or slow sources are reported in errors; the remaining results are still returned.",
				InputSchema: federatedSearchSchema(),
			},
			handler: s.handleFederatedSearch,
		},
		{
			tool: &mcp.Tool{
				Name:        ToolResolveInput,
				Description: "Identify which adapter operation a URL, identifier or shorthand maps to, without calling it.",
				InputSchema: objectSchema(map[string]*jsonschema.Schema{
					"input": {Type: "string", Description: "URL, identifier or shorthand such as arXiv:2301.07041 or r/golang"},
					"all":   {Type: "boolean", Description: "Return every matching pattern instead of only the best one"},
				}, "input"),
			},
			handler: s.handleResolveInput,
		},
		{
			tool: &mcp.Tool{
				Name:        ToolFetch,
				Description: "Resolve the input and invoke the matching adapter operation.",
				InputSchema: objectSchema(map[string]*jsonschema.Schema{
					"input": {Type: "string", Description: "URL, identifier or shorthand"},
					"pick":  {Type: "integer", Description: "1-based index into the matches when the input is ambiguous (default: best match)", Minimum: ptr(1.0)},
				}, "input"),
			},
			handler: s.handleFetch,
		},
		{
			tool: &mcp.Tool{
				Name:        ToolListPatterns,
				Description: "List the input patterns the resolver recognizes, with examples.",
				InputSchema: objectSchema(nil),
			},
			handler: s.handleListPatterns,
		},
		{
			tool: &mcp.Tool{
				Name:        ToolListProfiles,
				Description: "List search profiles with their flattened adapter sets.",
				InputSchema: objectSchema(nil),
			},
			handler: s.handleListProfiles,
		},
	}
}

func objectSchema(props map[string]*jsonschema.Schema, required ...string) *jsonschema.Schema {
	if props == nil {
		props = map[string]*jsonschema.Schema{}
	}
	return &jsonschema.Schema{Type: "object", Properties: props, Required: required}
}

func federatedSearchSchema() *jsonschema.Schema {
	names := &jsonschema.Schema{Type: "array", Items: &jsonschema.Schema{Type: "string"}}
	return objectSchema(map[string]*jsonschema.Schema{
		"query":    {Type: "string", Description: "Search query"},
		"profile":  {Type: "string", Description: "Profile name, e.g. research, papers, social"},
		"adapters": withDescription(names, "Explicit adapter list, used when no profile is given"),
		"add":      withDescription(names, "Adapters to add to the profile"),
		"exclude":  withDescription(names, "Adapters to drop from the profile"),
		"merge": {
			Type:        "string",
			Enum:        []any{string(types.MergeGrouped), string(types.MergeInterleaved)},
			Description: "grouped buckets by source; interleaved ranks all results by weighted rank",
		},
		"limit": {Type: "integer", Description: "Per-adapter result limit", Minimum: ptr(1.0)},
		"dedup": {
			Type:        "string",
			Enum:        []any{string(types.DedupURL), string(types.DedupDOI), string(types.DedupTitleFuzzy)},
			Description: "Remove cross-source duplicates with this strategy",
		},
	}, "query")
}

func withDescription(s *jsonschema.Schema, d string) *jsonschema.Schema {
	c := *s
	c.Description = d
	return &c
}

func ptr[T any](v T) *T { return &v }

type searchArgs struct {
	Query    string   `json:"query"`
	Profile  string   `json:"profile"`
	Adapters []string `json:"adapters"`
	Add      []string `json:"add"`
	Exclude  []string `json:"exclude"`
	Merge    string   `json:"merge"`
	Limit    int      `json:"limit"`
	Dedup    string   `json:"dedup"`
}

func (a searchArgs) request() federated.Request {
	req := federated.Request{
		Query:    a.Query,
		Profile:  a.Profile,
		Adapters: a.Adapters,
		Add:      a.Add,
		Exclude:  a.Exclude,
		Merge:    types.MergeMode(a.Merge),
		Limit:    a.Limit,
	}
	if a.Dedup != "" {
		req.Deduplication = &types.DeduplicationConfig{Enabled: true, Strategy: types.DedupStrategy(a.Dedup)}
	}
	return req
}

func (s *Server) handleFederatedSearch(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args searchArgs
	if err := decodeArgs(req, &args); err != nil {
		return errorResult("%v", err), nil
	}
	if args.Dedup != "" && !types.DedupStrategy(args.Dedup).Valid() {
		return errorResult("unknown dedup strategy %q", args.Dedup), nil
	}
	if args.Profile == "" && len(args.Adapters) == 0 {
		args.Profile = profile.DefaultName
	}

	result, err := s.searcher.Search(ctx, args.request())
	if err != nil {
		return errorResult("search failed: %v", err), nil
	}
	return jsonResult(result)
}

type resolveArgs struct {
	Input string `json:"input"`
	All   bool   `json:"all"`
}

func (s *Server) handleResolveInput(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args resolveArgs
	if err := decodeArgs(req, &args); err != nil {
		return errorResult("%v", err), nil
	}
	if strings.TrimSpace(args.Input) == "" {
		return errorResult("input is required"), nil
	}

	if args.All {
		actions := s.resolver.ResolveAll(args.Input)
		if actions == nil {
			actions = []types.ResolvedAction{}
		}
		return jsonResult(map[string]any{"input": args.Input, "matches": actions})
	}
	action, ok := s.resolver.ResolveBest(args.Input)
	if !ok {
		return jsonResult(map[string]any{"input": args.Input, "match": nil})
	}
	return jsonResult(map[string]any{"input": args.Input, "match": action})
}

type fetchArgs struct {
	Input string `json:"input"`
	Pick  int    `json:"pick"`
}

func (s *Server) handleFetch(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args fetchArgs
	if err := decodeArgs(req, &args); err != nil {
		return errorResult("%v", err), nil
	}
	action, err := s.resolver.Pick(args.Input, args.Pick)
	if err != nil {
		return errorResult("%v", err), nil
	}

	payload, err := s.caller.Call(ctx, action.Adapter, action.Operation, adapter.StringArgs(action.Arguments))
	if err != nil {
		if errors.Is(err, adapter.ErrNotRegistered) {
			return errorResult("%s %s: adapter %q is not available in this server", action.Adapter, action.Operation, action.Adapter), nil
		}
		return errorResult("%s %s: %v", action.Adapter, action.Operation, err), nil
	}
	return jsonResult(map[string]any{"action": action, "result": payload})
}

func (s *Server) handleListPatterns(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.resolver.ListPatterns())
}

type profileSummary struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Extends     string   `json:"extends,omitempty"`
	Builtin     bool     `json:"builtin"`
	Adapters    []string `json:"adapters,omitempty"`
	Error       string   `json:"error,omitempty"`
}

func (s *Server) handleListProfiles(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	list, err := s.profiles.List()
	if err != nil {
		return errorResult("listing profiles: %v", err), nil
	}
	out := make([]profileSummary, 0, len(list))
	for _, p := range list {
		sum := profileSummary{
			Name:        p.Name,
			Description: p.Description,
			Extends:     p.Extends,
			Builtin:     profile.IsBuiltin(p.Name),
		}
		if rp, err := s.profiles.Resolve(p.Name); err != nil {
			sum.Error = err.Error()
		} else {
			sum.Adapters = rp.Adapters
		}
		out = append(out, sum)
	}
	return jsonResult(out)
}
