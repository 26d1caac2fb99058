// Package mcp provides an MCP (Model Context Protocol) server for hq.
// Agents can extract declarations and inspect dependency closures
// through MCP tools instead of CLI calls. Both tools are read-only;
// nothing here writes to the type database.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/interruptlabs/header-query-bn/internal/config"
	"github.com/interruptlabs/header-query-bn/internal/env"
	"github.com/interruptlabs/header-query-bn/internal/extract"
	"github.com/interruptlabs/header-query-bn/internal/scan"
	"github.com/interruptlabs/header-query-bn/internal/store"
)

// Server wraps the MCP server with hq-specific functionality.
type Server struct {
	mcpServer *server.MCPServer
	store     *store.Store
	cfg       *config.Config
}

// Config holds server configuration.
type Config struct {
	Timeout time.Duration // reserved; stdio transport exits with the client
}

// New creates the MCP server. The type database is optional: without
// it, extraction still works but no declaration is matched against the
// function table.
func New(_ Config) (*Server, error) {
	cfg, err := config.Load(".")
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	var st *store.Store
	if hqDir, err := config.FindConfigDir("."); err == nil {
		st, err = store.Open(hqDir)
		if err != nil {
			return nil, fmt.Errorf("open type database: %w", err)
		}
	}

	mcpServer := server.NewMCPServer(
		"hq",
		"1.0.0",
		server.WithToolCapabilities(false),
	)

	s := &Server{mcpServer: mcpServer, store: st, cfg: cfg}
	s.registerScanTool()
	s.registerClosureTool()
	return s, nil
}

// Close releases the store connection.
func (s *Server) Close() {
	if s.store != nil {
		s.store.Close()
		s.store = nil
	}
}

// ServeStdio starts the server using stdio transport.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

func (s *Server) registerScanTool() {
	tool := mcp.NewTool("hq_scan",
		mcp.WithDescription("Extract function, struct, enum, and typedef declarations from C header files. Returns the declarations found and any parse errors."),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Header file or directory to scan"),
		),
	)
	s.mcpServer.AddTool(tool, s.handleScan)
}

func (s *Server) registerClosureTool() {
	tool := mcp.NewTool("hq_closure",
		mcp.WithDescription("Compute the type-dependency closure of the known functions declared in C header files. Returns every type name their signatures reach, and which names no declaration defines."),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Header file or directory to scan"),
		),
	)
	s.mcpServer.AddTool(tool, s.handleClosure)
}

func (s *Server) runScan(ctx context.Context, path string) (*scan.Result, error) {
	oracle := map[string]env.Function{}
	if s.store != nil {
		var err error
		oracle, err = s.store.Functions(ctx)
		if err != nil {
			return nil, fmt.Errorf("load function table: %w", err)
		}
	}
	return scan.Run(ctx, scan.Options{
		Paths:      []string{path},
		Extensions: s.cfg.Scan.Extensions,
		Exclude:    s.cfg.Scan.Exclude,
		Oracle:     oracle,
	})
}

type scanDecl struct {
	Name    string   `json:"name"`
	Kind    string   `json:"kind"`
	Aliases []string `json:"aliases,omitempty"`
}

func (s *Server) handleScan(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	path, ok := args["path"].(string)
	if !ok || path == "" {
		return mcp.NewToolResultError("path parameter is required"), nil
	}

	res, err := s.runScan(ctx, path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	defer res.Close()

	ext := res.Extractor
	out := struct {
		Files       int        `json:"files"`
		Functions   []scanDecl `json:"functions"`
		Types       []scanDecl `json:"types"`
		ParseErrors int        `json:"parse_errors"`
	}{Files: res.Files, ParseErrors: len(ext.Errors())}

	funcs := ext.Functions()
	for _, name := range extract.SortedNames(funcs) {
		out.Functions = append(out.Functions, scanDecl{Name: name, Kind: funcs[name].Kind.String()})
	}
	types := ext.Types()
	for _, name := range extract.SortedNames(types) {
		node := types[name]
		out.Types = append(out.Types, scanDecl{Name: name, Kind: node.Kind.String(), Aliases: node.Aliases})
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) handleClosure(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	path, ok := args["path"].(string)
	if !ok || path == "" {
		return mcp.NewToolResultError("path parameter is required"), nil
	}

	res, err := s.runScan(ctx, path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	defer res.Close()

	ext := res.Extractor
	types := ext.Types()
	closure := extract.NewClosure(ext.Memo()).Names(ext.Functions(), types)
	resolved := extract.NodesForNames(closure, types)

	var unresolved []string
	for name := range closure {
		if _, ok := resolved[name]; !ok && !aliasResolved(name, resolved) {
			unresolved = append(unresolved, name)
		}
	}
	sort.Strings(unresolved)

	out := struct {
		Functions  []string `json:"functions"`
		Closure    []string `json:"closure"`
		Resolved   []string `json:"resolved"`
		Unresolved []string `json:"unresolved"`
	}{
		Functions:  extract.SortedNames(ext.Functions()),
		Closure:    extract.SortedSet(closure),
		Resolved:   extract.SortedNames(resolved),
		Unresolved: unresolved,
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// aliasResolved reports whether name is covered as an alias of a
// resolved node.
func aliasResolved(name string, resolved map[string]*extract.Node) bool {
	for _, node := range resolved {
		if node.HasAlias(name) {
			return true
		}
	}
	return false
}
