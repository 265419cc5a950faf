// Package core defines the tool contracts shared by the tool bridge, the
// engine and the transport layer.
package core

import (
	"context"
)

// ToolDefinition describes a tool independently of how it is executed.
type ToolDefinition struct {
	// Server is the MCP server that owns the tool (notion, github ...).
	Server string `json:"server"`

	ToolName        string         `json:"name"`
	ToolDescription string         `json:"description"`
	InputSchema     map[string]any `json:"parameters"`
}

// QualifiedName returns "server:tool", the key the bridge registers under.
func (d ToolDefinition) QualifiedName() string {
	if d.Server == "" {
		return d.ToolName
	}
	return d.Server + ":" + d.ToolName
}

// ToolResult is the outcome of a tool call.
type ToolResult struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Tool is an executable tool.
type Tool interface {
	Definition() ToolDefinition
	Execute(ctx context.Context, params *ToolParams) (*ToolResult, error)
}

// ToolExecutor runs tools by definition, typically by forwarding the call
// to an MCP server.
type ToolExecutor interface {
	Execute(ctx context.Context, def ToolDefinition, params *ToolParams) (*ToolResult, error)
}

// ExecutorTool binds a definition to an executor.
type ExecutorTool struct {
	def      ToolDefinition
	executor ToolExecutor
}

// NewExecutorTool creates a Tool that delegates to executor.
func NewExecutorTool(def ToolDefinition, executor ToolExecutor) *ExecutorTool {
	return &ExecutorTool{def: def, executor: executor}
}

// Definition returns the tool definition.
func (t *ExecutorTool) Definition() ToolDefinition {
	return t.def
}

// Execute forwards the call to the executor.
func (t *ExecutorTool) Execute(ctx context.Context, params *ToolParams) (*ToolResult, error) {
	return t.executor.Execute(ctx, t.def, params)
}
