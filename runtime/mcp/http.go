package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"
)

// HTTPOptions configures the HTTP and SSE callers.
type HTTPOptions struct {
	HandshakeOptions
	// Endpoint is the JSON-RPC URL of the MCP server.
	Endpoint string
	// Client defaults to an http.Client with a 30s timeout.
	Client *http.Client
}

// HTTPCaller implements Caller over plain JSON-RPC HTTP requests.
type HTTPCaller struct {
	transport *httpTransport
}

// NewHTTPCaller creates an HTTP Caller and performs the MCP initialize
// handshake.
func NewHTTPCaller(ctx context.Context, opts HTTPOptions) (*HTTPCaller, error) {
	transport, err := newHTTPTransport(ctx, opts)
	if err != nil {
		return nil, err
	}
	return &HTTPCaller{transport: transport}, nil
}

// CallTool invokes tools/call and normalizes the result.
func (c *HTTPCaller) CallTool(ctx context.Context, req CallRequest) (CallResponse, error) {
	params := toolsCallParams(req)
	withTraceMeta(params, traceContext(ctx))
	var raw json.RawMessage
	if err := c.transport.call(ctx, "tools/call", params, &raw); err != nil {
		return CallResponse{}, err
	}
	return decodeToolCallResult(req.Tool, raw)
}

// Close releases idle connections.
func (c *HTTPCaller) Close() error {
	c.transport.client.CloseIdleConnections()
	return nil
}

type httpTransport struct {
	endpoint string
	client   *http.Client
	id       atomic.Uint64
}

func newHTTPTransport(ctx context.Context, opts HTTPOptions) (*httpTransport, error) {
	if opts.Endpoint == "" {
		return nil, errors.New("mcp endpoint is required")
	}
	u, err := url.Parse(opts.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid mcp endpoint: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid mcp endpoint %q: scheme must be http or https", opts.Endpoint)
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	t := &httpTransport{endpoint: u.String(), client: client}
	initCtx := ctx
	if opts.InitTimeout > 0 {
		var cancel context.CancelFunc
		initCtx, cancel = context.WithTimeout(ctx, opts.InitTimeout)
		defer cancel()
	}
	if err := t.call(initCtx, "initialize", opts.initializeParams(), nil); err != nil {
		return nil, fmt.Errorf("mcp initialize failed: %w", err)
	}
	return t, nil
}

func (t *httpTransport) nextID() uint64 {
	return t.id.Add(1)
}

func (t *httpTransport) newRequest(ctx context.Context, method string, params any, accept string) (*http.Request, error) {
	body, err := json.Marshal(rpcRequest{JSONRPC: "2.0", Method: method, ID: t.nextID(), Params: params})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", accept)
	setTraceHeaders(req.Header, traceContext(ctx))
	return req, nil
}

func (t *httpTransport) call(ctx context.Context, method string, params any, result any) error {
	req, err := t.newRequest(ctx, method, params, "application/json")
	if err != nil {
		return err
	}
	resp, err := t.client.Do(req) //nolint:gosec // endpoint validated in newHTTPTransport
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("mcp rpc status %d: %s", resp.StatusCode, bytes.TrimSpace(raw))
	}
	var rpcResp rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return err
	}
	if rpcResp.Error != nil {
		return rpcResp.Error.callerError()
	}
	if result != nil && rpcResp.Result != nil {
		return json.Unmarshal(rpcResp.Result, result)
	}
	return nil
}
