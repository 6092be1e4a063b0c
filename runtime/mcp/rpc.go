package mcp

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	ID      uint64 `json:"id"`
	Params  any    `json:"params"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result"`
	Error   *rpcError       `json:"error"`
	ID      uint64          `json:"id"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("mcp error %d: %s", e.Code, e.Message)
}

func (e *rpcError) callerError() *Error {
	if e == nil {
		return nil
	}
	return &Error{Code: e.Code, Message: e.Message}
}

type toolsCallResult struct {
	Content           []contentItem   `json:"content"`
	StructuredContent json.RawMessage `json:"structuredContent,omitempty"`
	IsError           bool            `json:"isError"`
}

type contentItem struct {
	Type     string  `json:"type"`
	Text     *string `json:"text"`
	MimeType *string `json:"mimeType"`
}

func toolsCallParams(req CallRequest) map[string]any {
	args := req.Payload
	if len(args) == 0 {
		args = json.RawMessage(`{}`)
	}
	return map[string]any{
		"name":      req.Tool,
		"arguments": args,
	}
}

func decodeToolCallResult(tool string, raw json.RawMessage) (CallResponse, error) {
	var result toolsCallResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return CallResponse{}, err
	}
	return normalizeToolResult(tool, result)
}

// normalizeToolResult extracts the payload of a tools/call result. Tool
// failures become *ToolError carrying the concatenated text content.
// structuredContent, when present, takes precedence over text content.
func normalizeToolResult(tool string, result toolsCallResult) (CallResponse, error) {
	if result.IsError {
		var parts []string
		for _, item := range result.Content {
			if item.Text != nil && *item.Text != "" {
				parts = append(parts, *item.Text)
			}
		}
		msg := strings.Join(parts, "\n")
		if msg == "" {
			msg = fmt.Sprintf("tool %s failed", tool)
		}
		return CallResponse{}, &ToolError{Tool: tool, Message: msg}
	}
	if len(result.StructuredContent) > 0 && string(result.StructuredContent) != "null" {
		structured := append(json.RawMessage(nil), result.StructuredContent...)
		return CallResponse{Result: structured, Structured: structured}, nil
	}
	if len(result.Content) == 0 {
		return CallResponse{}, errors.New("empty MCP response")
	}
	item := result.Content[0]
	if item.Text == nil || *item.Text == "" {
		return CallResponse{}, fmt.Errorf("tool %s returned no text content", tool)
	}
	text := []byte(*item.Text)
	if !json.Valid(text) {
		marshaled, err := json.Marshal(*item.Text)
		if err != nil {
			return CallResponse{}, err
		}
		return CallResponse{Result: marshaled}, nil
	}
	payload := append(json.RawMessage(nil), text...)
	return CallResponse{Result: payload, Structured: payload}, nil
}
