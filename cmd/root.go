// Package cmd provides CLI commands for Pensiv.
//
// Commands:
//   - serve: HTTP API server for reasoning chains
//   - mcp: Model Context Protocol server for IDE integration
//   - think, review, sessions: one-shot chain operations
//
// Signal handling and graceful shutdown are implemented for the server
// commands via context cancellation.
package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "pensiv",
	Short: "Pensiv - a reasoning chain engine",
	Long: `Pensiv records session-scoped chains of thought: append new thoughts,
revise earlier ones, or branch from any point. Near-duplicate thoughts are
merged, and every chain is persisted to PostgreSQL with a JSONL file mirror.

Run 'pensiv serve' for the HTTP API or 'pensiv mcp' to expose the engine
as MCP tools over stdio.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
