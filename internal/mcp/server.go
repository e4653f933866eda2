package mcp

import (
	"context"
	"fmt"
	"log"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/standardbeagle/extlib/internal/debug"
	"github.com/standardbeagle/extlib/internal/project"
	"github.com/standardbeagle/extlib/internal/version"
)

// Server exposes the synthetic libraries of one project as MCP tools
type Server struct {
	project *project.Project
	server  *mcp.Server
}

// NewServer creates an MCP server over an open project. The server does not
// own the project; the caller closes it.
func NewServer(p *project.Project) (*Server, error) {
	if p == nil {
		return nil, fmt.Errorf("mcp server needs an open project")
	}

	s := &Server{project: p}
	s.server = mcp.NewServer(&mcp.Implementation{
		Name:    "extlib-mcp-server",
		Version: version.Version,
	}, nil)
	s.registerTools()
	return s, nil
}

func (s *Server) registerTools() {
	s.server.AddTool(&mcp.Tool{
		Name:        "info",
		Description: "Server version and a short description of every tool.",
		InputSchema: &jsonschema.Schema{
			Type:       "object",
			Properties: map[string]*jsonschema.Schema{},
		},
	}, s.handleInfo)

	s.server.AddTool(&mcp.Tool{
		Name:        "list_libraries",
		Description: "List the synthetic external libraries of the project with their provider key, icon and root counts. Empty while a sync is running.",
		InputSchema: &jsonschema.Schema{
			Type:       "object",
			Properties: map[string]*jsonschema.Schema{},
		},
	}, s.handleListLibraries)

	s.server.AddTool(&mcp.Tool{
		Name:        "library_roots",
		Description: "Get the valid root files of one library, looked up by provider key or by library name.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"provider": {
					Type:        "string",
					Description: "Provider key of the library (e.g. 'python')",
				},
				"name": {
					Type:        "string",
					Description: "Presentable library name (e.g. 'Gen files')",
				},
				"limit": {
					Type:        "integer",
					Description: "Maximum number of roots to return (default 500)",
				},
			},
		},
	}, s.handleLibraryRoots)

	s.server.AddTool(&mcp.Tool{
		Name:        "contains_file",
		Description: "Report which library, if any, currently has the given file as a valid root.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"path": {
					Type:        "string",
					Description: "File path, absolute or relative to the project root",
				},
			},
			Required: []string{"path"},
		},
	}, s.handleContainsFile)

	s.server.AddTool(&mcp.Tool{
		Name:        "sync",
		Description: "Run a project sync and rebuild every library. Modes: full, incremental, no_build.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"mode": {
					Type:        "string",
					Description: "Sync mode (default full)",
					Enum:        []any{"full", "incremental", "no_build"},
				},
			},
		},
	}, s.handleSync)
}

// Start serves MCP over stdio until ctx is cancelled or the client disconnects
func (s *Server) Start(ctx context.Context) error {
	// Anything written to stdout would corrupt the protocol stream
	debug.SetMCPMode(true)
	if debug.IsDebugEnabled() {
		log.SetOutput(debug.Writer())
	}

	debug.LogMCP("Starting MCP server with stdio transport for %s\n", s.project.Config.Project.Root)
	return s.server.Run(ctx, &mcp.StdioTransport{})
}
