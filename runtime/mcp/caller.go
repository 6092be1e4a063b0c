// Package mcp provides MCP (Model Context Protocol) clients that invoke tools
// over JSON-RPC using the HTTP, HTTP SSE or stdio transports. All clients
// implement Caller.
package mcp

import (
	"context"
	"encoding/json"
)

const (
	// JSON-RPC canonical error codes.
	JSONRPCParseError     = -32700
	JSONRPCInvalidRequest = -32600
	JSONRPCMethodNotFound = -32601
	JSONRPCInvalidParams  = -32602
	JSONRPCInternalError  = -32603
)

// DefaultProtocolVersion is the MCP protocol version used when none is provided.
const DefaultProtocolVersion = "2024-11-05"

type (
	// Caller invokes a tool on an MCP server.
	Caller interface {
		CallTool(ctx context.Context, req CallRequest) (CallResponse, error)
	}

	// CallRequest describes a tools/call invocation.
	CallRequest struct {
		// Tool is the tool name as advertised by the server.
		Tool string
		// Payload is the JSON-encoded tool arguments.
		Payload json.RawMessage
	}

	// CallResponse captures the tool result.
	CallResponse struct {
		// Result is the JSON payload returned by the tool.
		Result json.RawMessage
		// Structured carries the result when the tool flagged it as JSON.
		Structured json.RawMessage
	}

	// Error is a JSON-RPC error returned by the MCP server.
	Error struct {
		Code    int
		Message string
	}

	// ToolError is returned when the server answered tools/call with a result
	// flagged isError. Message is the text content reported by the tool.
	ToolError struct {
		Tool    string
		Message string
	}
)

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

// Error implements the error interface.
func (e *ToolError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}
