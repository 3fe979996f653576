package server

import (
	"context"

	"github.com/StacklokLabs/toolhive/pkg/api"
	rt "github.com/StacklokLabs/toolhive/pkg/container/runtime"
)

// Server is the implementation of the api.ServerAPI interface.
type Server struct {
	// runtime is the container runtime to use for container operations
	runtime rt.Runtime
	// debug indicates whether debug mode is enabled
	debug bool
}

// New creates a new ServerAPI with the provided runtime and debug flag.
func New(r rt.Runtime, debug bool) api.ServerAPI {
	return &Server{
		runtime: r,
		debug:   debug,
	}
}

// List returns a list of running MCP servers.
func (*Server) List(_ context.Context, _ *api.ListOptions) ([]*api.Server, error) {
	// Implementation would go here
	return nil, nil
}

// Get returns information about a specific running MCP server.
func (*Server) Get(_ context.Context, _ string) (*api.Server, error) {
	// Implementation would go here
	return nil, nil
}

// Run runs an MCP server with the provided options.
func (*Server) Run(_ context.Context, _ string, _ *api.RunOptions) (*api.Server, error) {
	// Implementation would go here
	return nil, nil
}

// Stop stops a running MCP server.
func (*Server) Stop(_ context.Context, _ string, _ *api.StopOptions) error {
	// Implementation would go here
	return nil
}

// Remove removes a stopped MCP server.
func (*Server) Remove(_ context.Context, _ string, _ *api.RemoveOptions) error {
	// Implementation would go here
	return nil
}

// Restart restarts a running MCP server.
func (*Server) Restart(_ context.Context, _ string, _ *api.RestartOptions) error {
	// Implementation would go here
	return nil
}

// Logs gets logs from a running MCP server.
func (*Server) Logs(_ context.Context, _ string, _ *api.LogsOptions) error {
	// Implementation would go here
	return nil
}

// Proxy proxies to a running MCP server.
func (*Server) Proxy(_ context.Context, _ string, _ *api.ProxyOptions) error {
	// Implementation would go here
	return nil
}

// Search searches for MCP servers.
func (*Server) Search(_ context.Context, _ string, _ *api.SearchOptions) ([]*api.Server, error) {
	// Implementation would go here
	return nil, nil
}
