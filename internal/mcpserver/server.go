// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package mcpserver exposes federated search and input resolution as Model
// Context Protocol tools.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/pdiddy/dispatch-engine/internal/federated"
	"github.com/pdiddy/dispatch-engine/internal/resolve"
	"github.com/pdiddy/dispatch-engine/pkg/types"
)

// Tool names.
const (
	ToolFederatedSearch = "federated_search"
	ToolResolveInput    = "resolve_input"
	ToolFetch           = "fetch"
	ToolListPatterns    = "list_patterns"
	ToolListProfiles    = "list_profiles"
)

// Searcher runs federated searches. *federated.Engine implements it.
type Searcher interface {
	Search(ctx context.Context, req federated.Request) (*types.FederatedSearchResult, error)
}

// Caller invokes an adapter operation by name. *adapter.Registry implements it.
type Caller interface {
	Call(ctx context.Context, name, operation string, args map[string]any) (any, error)
}

// Profiles lists and flattens search profiles. *profile.Store implements it.
type Profiles interface {
	List() ([]types.SearchProfile, error)
	Resolve(name string) (*types.ResolvedProfile, error)
}

// Server holds the dependencies the tool handlers share.
type Server struct {
	searcher Searcher
	resolver *resolve.Resolver
	caller   Caller
	profiles Profiles
	logger   *zap.Logger
	version  string
}

// New returns a Server. logger may be nil.
func New(searcher Searcher, resolver *resolve.Resolver, caller Caller, profiles Profiles, version string, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		searcher: searcher,
		resolver: resolver,
		caller:   caller,
		profiles: profiles,
		logger:   logger,
		version:  version,
	}
}

// MCP builds an SDK server with every tool registered.
func (s *Server) MCP() *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{Name: "dispatch-engine", Version: s.version}, nil)
	for _, t := range s.tools() {
		server.AddTool(t.tool, s.logged(t.tool.Name, t.handler))
	}
	return server
}

// Run serves the tools over stdio until ctx is done or the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("serving MCP over stdio", zap.String("version", s.version))
	return s.MCP().Run(ctx, &mcp.StdioTransport{})
}

type handler func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error)

func (s *Server) logged(name string, h handler) mcp.ToolHandler {
	return func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		res, err := h(ctx, req)
		switch {
		case err != nil:
			s.logger.Error("tool failed", zap.String("tool", name), zap.Error(err))
		case res != nil && res.IsError:
			s.logger.Warn("tool returned error", zap.String("tool", name))
		default:
			s.logger.Debug("tool completed", zap.String("tool", name))
		}
		return res, err
	}
}

// decodeArgs unmarshals the raw tool arguments into v. Missing arguments
// decode as an empty object.
func decodeArgs(req *mcp.CallToolRequest, v any) error {
	if req == nil || req.Params == nil || len(req.Params.Arguments) == 0 {
		return nil
	}
	if err := json.Unmarshal(req.Params.Arguments, v); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

// jsonResult renders v as an indented JSON text result.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding tool result: %w", err)
	}
	return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: string(data)}}}, nil
}

// errorResult reports a tool-level failure to the client.
func errorResult(format string, args ...any) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf(format, args...)}},
		IsError: true,
	}
}
