package models

import "time"

// ToolInputSchema is the structural contract for a tool's arguments.
type ToolInputSchema struct {
	Type       string                 `json:"type"`
	Properties map[string]interface{} `json:"properties,omitempty"`
	Required   []string               `json:"required,omitempty"`
}

// ToolDescriptor describes one callable tool discovered from a provider.
// Names are unique across the combined catalog; a collision between two
// providers is a configuration error detected at startup.
type ToolDescriptor struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema ToolInputSchema `json:"input_schema"`

	// Provider is the name of the provider that owns this tool.
	Provider string `json:"provider"`
}

// ToolInvocationResult is the uniform outcome of a tool call. The
// invoker always returns one of these, for successes and failures alike.
type ToolInvocationResult struct {
	ToolName  string                 `json:"tool_name"`
	Arguments map[string]interface{} `json:"arguments,omitempty"`

	// Output holds the tool's payload on success, or a human-readable
	// error message when Succeeded is false.
	Output string `json:"output"`

	Duration  time.Duration `json:"duration"`
	Succeeded bool          `json:"succeeded"`
}
