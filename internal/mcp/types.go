// Package mcp implements the tool execution layer: a registry of MCP tool
// providers reached over stdio or streamable HTTP, and an invoker that
// turns every tool call, successful or not, into a uniform result.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"time"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
)

// ProviderState describes a provider's connection state.
type ProviderState string

const (
	// StateReady means the provider completed the MCP handshake and its
	// tools are in the catalog.
	StateReady ProviderState = "ready"
	// StateFailed means connection or handshake failed. The provider's
	// tools are unavailable but the service keeps running.
	StateFailed ProviderState = "failed"
)

// ProviderStatus is a snapshot of one provider's state for health reporting.
type ProviderStatus struct {
	Name      string        `json:"name"`
	Transport string        `json:"transport"`
	State     ProviderState `json:"state"`
	// Error holds the connection failure message when State is failed.
	Error     string `json:"error,omitempty"`
	ToolCount int    `json:"tool_count"`
}

// UnknownToolError reports an invocation of a tool name that is not in
// the catalog of any ready provider.
type UnknownToolError struct {
	Name string
}

func (e *UnknownToolError) Error() string {
	return fmt.Sprintf("unknown tool %q", e.Name)
}

// IsUnknownTool reports whether err is an UnknownToolError.
func IsUnknownTool(err error) bool {
	var ute *UnknownToolError
	return errors.As(err, &ute)
}

// session is the subset of the mcp-go client used by the registry.
// *client.Client satisfies it; tests substitute fakes.
type session interface {
	Initialize(ctx context.Context, request mcptypes.InitializeRequest) (*mcptypes.InitializeResult, error)
	ListTools(ctx context.Context, request mcptypes.ListToolsRequest) (*mcptypes.ListToolsResult, error)
	CallTool(ctx context.Context, request mcptypes.CallToolRequest) (*mcptypes.CallToolResult, error)
	Close() error
}

// handshakeTimeout bounds the per-provider connect/initialize/list sequence
// so one hung provider cannot stall startup.
const handshakeTimeout = 30 * time.Second
