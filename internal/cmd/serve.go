// Package cmd implements the serve command for hq CLI.
package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/interruptlabs/header-query-bn/internal/mcp"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start MCP server for AI agent integration",
	Long: `Start an MCP (Model Context Protocol) server over stdio.

Agents can extract header declarations and inspect dependency closures
through MCP tools instead of spawning CLI commands. Both tools are
read-only; importing into the type database stays on the CLI.

Available Tools:
  hq_scan      Extract declarations from header files
  hq_closure   Compute the type-dependency closure of known functions

Examples:
  hq serve --mcp`,
	RunE: runServe,
}

var serveMCP bool

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().BoolVar(&serveMCP, "mcp", false, "Start MCP server (stdio transport)")
}

func runServe(cmd *cobra.Command, args []string) error {
	if !serveMCP {
		return fmt.Errorf("use --mcp to start the MCP server, or --help for usage")
	}

	server, err := mcp.New(mcp.Config{})
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}
	defer server.Close()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Fprintf(os.Stderr, "\nhq serve: shutting down\n")
		server.Close()
		os.Exit(0)
	}()

	// stdout carries the MCP protocol; log to stderr only.
	fmt.Fprintf(os.Stderr, "hq serve: starting MCP server\n")
	return server.ServeStdio()
}
