// Package mcpserver exposes the plan tree to agents over MCP stdio.
//
// Each tool follows the same shape: a struct holding its dependencies,
// Definition() returning the mcp.Tool schema and Handle() serving calls.
package mcpserver

import (
	"github.com/mark3labs/mcp-go/server"

	"github.com/daydemir/gass/internal/cascade"
	"github.com/daydemir/gass/internal/logging"
	"github.com/daydemir/gass/internal/state"
)

// Options configures the server.
type Options struct {
	Version string
	// ListLimit caps ready_tasks when the caller passes no limit.
	ListLimit int
	Logger    *logging.Logger
}

// New creates the MCP server with every plan tool registered.
func New(store *state.PlanStore, opts Options) *server.MCPServer {
	if opts.Version == "" {
		opts.Version = "dev"
	}

	s := server.NewMCPServer(
		"gass",
		opts.Version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(instructions),
	)

	ready := NewReadyTasksTool(store, opts.ListLimit)
	s.AddTool(ready.Definition(), ready.Handle)

	setStatus := NewSetStatusTool(cascade.New(store, opts.Logger))
	s.AddTool(setStatus.Definition(), setStatus.Handle)

	planStatus := NewPlanStatusTool(store)
	s.AddTool(planStatus.Definition(), planStatus.Handle)

	check := NewCheckPlanTool(store)
	s.AddTool(check.Definition(), check.Handle)

	return s
}

// Serve runs the server on stdin/stdout until the client disconnects.
func Serve(s *server.MCPServer) error {
	return server.ServeStdio(s)
}

const instructions = `gass keeps a hierarchical plan of phases. Leaves are executable tasks.
Call ready_tasks to see what can be worked on now, do the work, then call
set_phase_status with status "completed". Parents complete automatically
once every child is completed. Use check_plan to find inconsistencies.`
