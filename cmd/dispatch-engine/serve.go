// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pdiddy/dispatch-engine/internal/mcpserver"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve search and resolution as MCP tools over stdio",
	Long: `Serve runs a Model Context Protocol server on stdin/stdout exposing the
federated_search, resolve_input, fetch, list_patterns and list_profiles
tools. Logs go to stderr.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.close(context.Background())

		srv := mcpserver.New(a.engine, a.resolver, a.registry, a.profiles, version, logger.Named("mcp"))
		return srv.Run(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
