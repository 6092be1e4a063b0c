// Package bridge connects the factory stages to a live service over MCP. A
// Bridge implements factory.ToolCaller: it encodes the argument mapping,
// issues tools/call through an mcp.Caller and decodes the JSON result into
// the untyped value the stage functions validate.
package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"

	"golang.org/x/time/rate"

	"goa.design/specfactory/contract"
	"goa.design/specfactory/factory"
	"goa.design/specfactory/runtime/mcp"
	"goa.design/specfactory/runtime/mcp/retry"
	"goa.design/specfactory/runtime/telemetry"
)

type (
	// Bridge is a factory.ToolCaller backed by an MCP session.
	Bridge struct {
		caller  mcp.Caller
		closer  io.Closer
		limiter *rate.Limiter
		logger  telemetry.Logger
	}

	// Option configures a Bridge.
	Option func(*Bridge)
)

var _ factory.ToolCaller = (*Bridge)(nil)

// WithRate limits tool calls to perSecond calls per second. Zero or negative
// values disable limiting.
func WithRate(perSecond float64) Option {
	return func(b *Bridge) {
		if perSecond <= 0 {
			b.limiter = nil
			return
		}
		b.limiter = rate.NewLimiter(rate.Limit(perSecond), int(math.Max(1, math.Ceil(perSecond))))
	}
}

// WithLogger sets the logger used for call diagnostics.
func WithLogger(l telemetry.Logger) Option {
	return func(b *Bridge) { b.logger = l }
}

// WithCloser registers a resource released by Close.
func WithCloser(c io.Closer) Option {
	return func(b *Bridge) { b.closer = c }
}

// New wraps caller.
func New(caller mcp.Caller, opts ...Option) *Bridge {
	b := &Bridge{caller: caller, logger: telemetry.NewNoopLogger()}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Open connects to the service described by opts.
func Open(ctx context.Context, opts Options, extra ...Option) (*Bridge, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	handshake := mcp.HandshakeOptions{InitTimeout: opts.InitTimeout}
	var (
		caller mcp.Caller
		closer io.Closer
	)
	switch opts.Transport {
	case TransportHTTP:
		c, err := mcp.NewHTTPCaller(ctx, mcp.HTTPOptions{HandshakeOptions: handshake, Endpoint: opts.Endpoint})
		if err != nil {
			return nil, err
		}
		caller, closer = c, c
	case TransportSSE:
		c, err := mcp.NewSSECaller(ctx, mcp.HTTPOptions{HandshakeOptions: handshake, Endpoint: opts.Endpoint})
		if err != nil {
			return nil, err
		}
		caller, closer = c, c
	case TransportStdio:
		c, err := mcp.NewStdioCaller(ctx, mcp.StdioOptions{HandshakeOptions: handshake, Command: opts.Command, Args: opts.Args})
		if err != nil {
			return nil, err
		}
		caller, closer = c, c
	}
	all := append([]Option{WithRate(opts.Rate), WithCloser(closer)}, extra...)
	return New(caller, all...), nil
}

// Call implements factory.ToolCaller.
func (b *Bridge) Call(ctx context.Context, tool string, args map[string]any) (any, error) {
	if b.limiter != nil {
		if err := b.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	payload, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("encode %s arguments: %w", tool, err)
	}
	b.logger.Debug(ctx, "calling tool", "tool", tool)
	resp, err := b.caller.CallTool(ctx, mcp.CallRequest{Tool: tool, Payload: payload})
	if err != nil {
		return nil, b.callError(ctx, tool, payload, err)
	}
	if len(resp.Result) == 0 {
		return nil, nil
	}
	var out any
	if err := json.Unmarshal(resp.Result, &out); err != nil {
		return nil, fmt.Errorf("decode %s result: %w", tool, err)
	}
	return out, nil
}

// Close releases the underlying session.
func (b *Bridge) Close() error {
	if b.closer == nil {
		return nil
	}
	return b.closer.Close()
}

// inputContract is the part of a contract.Schema the repair prompt reads.
type inputContract interface {
	Document() json.RawMessage
	Example() json.RawMessage
}

// callError attaches a repair prompt to invalid-params failures. The prompt
// quotes the rejected arguments next to the server message and takes its
// example from the tool input schema.
func (b *Bridge) callError(ctx context.Context, tool string, payload []byte, err error) error {
	var rpcErr *mcp.Error
	if !errors.As(err, &rpcErr) || rpcErr.Code != mcp.JSONRPCInvalidParams {
		return err
	}
	var schema, example string
	if v, ok := contract.Lookup(tool + "_input"); ok {
		if in, ok := v.(inputContract); ok {
			schema = compactJSON(in.Document())
			example = string(in.Example())
		}
	}
	errMsg := rpcErr.Message
	if len(payload) > 0 {
		errMsg += "\nRejected params: " + string(payload)
	}
	prompt := retry.BuildRepairPrompt("tools/call "+tool, errMsg, example, schema)
	b.logger.Warn(ctx, "tool rejected parameters", "tool", tool, "error", rpcErr.Message)
	return &retry.RetryableError{Prompt: prompt, Cause: err}
}

func compactJSON(doc json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, doc); err != nil {
		return string(doc)
	}
	return buf.String()
}
