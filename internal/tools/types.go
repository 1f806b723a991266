// Package tools provides the tool layer the tool-agent can delegate to:
// web search and the hosted image classifier. Both are network reads with
// no local side effects.
package tools

import (
	"context"
	"time"
)

// ToolType identifies the kind of tool being executed.
type ToolType string

const (
	// ToolWebSearch is the web-search tool. The name matches what the
	// secretary's instruction template advertises to the model.
	ToolWebSearch ToolType = "websearch"

	// ToolBrainTumor is the hosted brain-scan classifier.
	ToolBrainTumor ToolType = "brain_tumor"
)

// Known reports whether name is a registered tool name.
func Known(name string) bool {
	switch ToolType(name) {
	case ToolWebSearch, ToolBrainTumor:
		return true
	}
	return false
}

// Tool defines the interface for all executable tools.
type Tool interface {
	// Name returns the tool identifier.
	Name() ToolType

	// Execute runs the tool with the given request.
	Execute(ctx context.Context, req *Request) (*Result, error)

	// Validate checks if the request is valid before execution.
	Validate(req *Request) error
}

// Request represents a tool invocation request.
type Request struct {
	// Tool specifies which tool to invoke.
	Tool ToolType `json:"tool"`

	// Input is the primary input (query for websearch, image path for the
	// classifier).
	Input string `json:"input"`

	// Params contains tool-specific parameters.
	Params map[string]interface{} `json:"params,omitempty"`
}

// Result represents the outcome of a tool execution.
type Result struct {
	// Tool that was executed.
	Tool ToolType `json:"tool"`

	// Success indicates if the tool completed successfully.
	Success bool `json:"success"`

	// Output contains the tool's output.
	Output string `json:"output,omitempty"`

	// Error contains error details if Success is false.
	Error string `json:"error,omitempty"`

	// Duration of the execution.
	Duration time.Duration `json:"duration"`

	// Metadata contains tool-specific metadata.
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}
