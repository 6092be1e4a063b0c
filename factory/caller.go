// Package factory drives the spec factory workflow exposed by a remote tool
// calling service: execute_spec, query_trace and registry_import. Each stage
// function invokes one tool through a ToolCaller and validates the raw result
// against its contract; Run sequences the three stages with per-stage failure
// isolation.
package factory

import "context"

// Tool names exposed by the remote service.
const (
	ToolExecuteSpec    = "execute_spec"
	ToolQueryTrace     = "query_trace"
	ToolRegistryImport = "registry_import"
)

// ToolCaller invokes a named tool with an argument mapping and returns the
// untyped result. Implementations own transport, cancellation and timeouts.
type ToolCaller interface {
	Call(ctx context.Context, tool string, args map[string]any) (any, error)
}

// ToolCallerFunc adapts a function to implement ToolCaller.
type ToolCallerFunc func(ctx context.Context, tool string, args map[string]any) (any, error)

// Call implements ToolCaller.
func (f ToolCallerFunc) Call(ctx context.Context, tool string, args map[string]any) (any, error) {
	return f(ctx, tool, args)
}
