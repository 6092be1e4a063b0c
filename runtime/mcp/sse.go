package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// SSECaller implements Caller by reading tools/call responses from an HTTP
// server-sent event stream.
type SSECaller struct {
	transport *httpTransport
}

// NewSSECaller creates an SSE Caller and performs the MCP initialize
// handshake.
func NewSSECaller(ctx context.Context, opts HTTPOptions) (*SSECaller, error) {
	transport, err := newHTTPTransport(ctx, opts)
	if err != nil {
		return nil, err
	}
	return &SSECaller{transport: transport}, nil
}

// Close releases idle connections.
func (c *SSECaller) Close() error {
	c.transport.client.CloseIdleConnections()
	return nil
}

// CallTool invokes tools/call and waits for the "response" event.
func (c *SSECaller) CallTool(ctx context.Context, req CallRequest) (CallResponse, error) {
	params := toolsCallParams(req)
	withTraceMeta(params, traceContext(ctx))
	httpReq, err := c.transport.newRequest(ctx, "tools/call", params, "text/event-stream")
	if err != nil {
		return CallResponse{}, err
	}
	resp, err := c.transport.client.Do(httpReq) //nolint:gosec // endpoint validated in newHTTPTransport
	if err != nil {
		return CallResponse{}, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return CallResponse{}, fmt.Errorf("mcp rpc status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	ct := resp.Header.Get("Content-Type")
	if ct != "" && !strings.HasPrefix(strings.ToLower(ct), "text/event-stream") {
		return CallResponse{}, fmt.Errorf("unexpected content type %q", ct)
	}
	reader := bufio.NewReader(resp.Body)
	for {
		event, data, err := readSSEEvent(reader)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return CallResponse{}, errors.New("sse stream closed before response")
			}
			return CallResponse{}, err
		}
		switch event {
		case "response", "error":
			var rpcResp rpcResponse
			if err := json.Unmarshal(data, &rpcResp); err != nil {
				return CallResponse{}, fmt.Errorf("decode %s event: %w", event, err)
			}
			if rpcResp.Error != nil {
				return CallResponse{}, rpcResp.Error.callerError()
			}
			if event == "error" {
				return CallResponse{}, errors.New("mcp error event")
			}
			return decodeToolCallResult(req.Tool, rpcResp.Result)
		case "close":
			return CallResponse{}, errors.New("sse stream closed without response")
		}
	}
}

// readSSEEvent returns the next dispatched event. Comment lines are skipped
// and multiple data lines are joined with newlines.
func readSSEEvent(reader *bufio.Reader) (string, []byte, error) {
	var (
		event string
		data  []byte
	)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			return "", nil, err
		}
		line = strings.TrimRight(line, "\r\n")
		switch {
		case line == "":
			if event == "" && len(data) == 0 {
				continue
			}
			return event, data, nil
		case strings.HasPrefix(line, ":"):
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			if len(data) > 0 {
				data = append(data, '\n')
			}
			data = append(data, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " ")...)
		}
	}
}
