package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const stdioHelperEnv = "SPEC_FACTORY_MCP_STDIO_HELPER"

func init() { otel.SetTextMapPropagator(propagation.TraceContext{}) }

// fakeServer answers initialize and delegates tools/call to handle.
type fakeServer struct {
	mu          sync.Mutex
	clientName  string
	traceHeader string
	metaTrace   string
	arguments   json.RawMessage
	sse         bool
	handle      func(tool string) rpcResponse
}

func (s *fakeServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID     uint64 `json:"id"`
		Method string `json:"method"`
		Params struct {
			Name      string          `json:"name"`
			Arguments json.RawMessage `json:"arguments"`
			Meta      struct {
				Traceparent string `json:"traceparent"`
			} `json:"_meta"`
			ClientInfo struct {
				Name string `json:"name"`
			} `json:"clientInfo"`
		} `json:"params"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	switch req.Method {
	case "initialize":
		s.mu.Lock()
		s.clientName = req.Params.ClientInfo.Name
		s.mu.Unlock()
		_ = json.NewEncoder(w).Encode(rpcResponse{JSONRPC: "2.0", ID: req.ID, Result: json.RawMessage(`{"capabilities":{}}`)})
	case "tools/call":
		s.mu.Lock()
		s.traceHeader = r.Header.Get("Traceparent")
		s.metaTrace = req.Params.Meta.Traceparent
		s.arguments = req.Params.Arguments
		s.mu.Unlock()
		resp := s.handle(req.Params.Name)
		resp.JSONRPC, resp.ID = "2.0", req.ID
		if !s.sse {
			_ = json.NewEncoder(w).Encode(resp)
			return
		}
		data, _ := json.Marshal(resp)
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, ": keepalive\n\n")
		fmt.Fprint(w, "event: notification\ndata: {}\n\n")
		fmt.Fprintf(w, "event: response\ndata: %s\n\n", data)
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
	default:
		http.Error(w, "unknown method", http.StatusBadRequest)
	}
}

func textResult(text string, isError bool) rpcResponse {
	data, _ := json.Marshal(toolsCallResult{Content: []contentItem{{Type: "text", Text: &text}}, IsError: isError})
	return rpcResponse{Result: data}
}

type callerFactory func(t *testing.T, ctx context.Context) (Caller, *fakeServer)

func newCallers(handle func(string) rpcResponse) map[string]callerFactory {
	mk := func(sse bool) callerFactory {
		return func(t *testing.T, ctx context.Context) (Caller, *fakeServer) {
			t.Helper()
			fs := &fakeServer{sse: sse, handle: handle}
			srv := httptest.NewServer(fs)
			t.Cleanup(srv.Close)
			opts := HTTPOptions{Endpoint: srv.URL, HandshakeOptions: HandshakeOptions{InitTimeout: time.Second}}
			if sse {
				c, err := NewSSECaller(ctx, opts)
				require.NoError(t, err)
				return c, fs
			}
			c, err := NewHTTPCaller(ctx, opts)
			require.NoError(t, err)
			return c, fs
		}
	}
	return map[string]callerFactory{"http": mk(false), "sse": mk(true)}
}

func TestHTTPCallersCallTool(t *testing.T) {
	t.Parallel()
	callers := newCallers(func(string) rpcResponse { return textResult(`{"mode":"dry_run"}`, false) })
	for name, mk := range callers {
		t.Run(name, func(t *testing.T) {
			ctx, expectedTrace := contextWithTrace()
			caller, fs := mk(t, ctx)
			resp, err := caller.CallTool(ctx, CallRequest{Tool: "execute_spec", Payload: json.RawMessage(`{"spec":"# T"}`)})
			require.NoError(t, err)
			assert.JSONEq(t, `{"mode":"dry_run"}`, string(resp.Result))

			fs.mu.Lock()
			defer fs.mu.Unlock()
			assert.Equal(t, "spec-factory", fs.clientName)
			assert.Equal(t, expectedTrace, fs.traceHeader)
			assert.Equal(t, expectedTrace, fs.metaTrace)
			assert.JSONEq(t, `{"spec":"# T"}`, string(fs.arguments))
		})
	}
}

func TestHTTPCallersErrors(t *testing.T) {
	t.Parallel()
	handle := func(tool string) rpcResponse {
		switch tool {
		case "query_trace":
			return rpcResponse{Error: &rpcError{Code: JSONRPCInvalidParams, Message: "limit must be <= 500"}}
		default:
			return textResult("Spec parse failed: no title", true)
		}
	}
	for name, mk := range newCallers(handle) {
		t.Run(name, func(t *testing.T) {
			caller, _ := mk(t, context.Background())

			_, err := caller.CallTool(context.Background(), CallRequest{Tool: "query_trace"})
			var rpcErr *Error
			require.ErrorAs(t, err, &rpcErr)
			assert.Equal(t, JSONRPCInvalidParams, rpcErr.Code)
			assert.Equal(t, "limit must be <= 500", rpcErr.Error())

			_, err = caller.CallTool(context.Background(), CallRequest{Tool: "execute_spec"})
			var toolErr *ToolError
			require.ErrorAs(t, err, &toolErr)
			assert.Equal(t, "execute_spec", toolErr.Tool)
			assert.Equal(t, "Spec parse failed: no title", err.Error())
		})
	}
}

func TestNewHTTPCallerValidatesEndpoint(t *testing.T) {
	t.Parallel()
	for _, endpoint := range []string{"", "ftp://example.com", "://bad"} {
		_, err := NewHTTPCaller(context.Background(), HTTPOptions{Endpoint: endpoint})
		assert.Error(t, err, endpoint)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()
	_, err := NewHTTPCaller(context.Background(), HTTPOptions{Endpoint: srv.URL})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mcp initialize failed")
	assert.Contains(t, err.Error(), "503")
}

func TestNormalizeToolResult(t *testing.T) {
	t.Parallel()
	text := func(s string) *string { return &s }
	cases := []struct {
		name       string
		result     toolsCallResult
		want       string
		structured string
		err        string
	}{
		{"json text", toolsCallResult{Content: []contentItem{{Type: "text", Text: text(`{"a":1}`)}}}, `{"a":1}`, `{"a":1}`, ""},
		{"plain text", toolsCallResult{Content: []contentItem{{Type: "text", Text: text("hello")}}}, `"hello"`, "", ""},
		{"structured wins", toolsCallResult{
			Content:           []contentItem{{Type: "text", Text: text(`{"a":1}`)}},
			StructuredContent: json.RawMessage(`{"b":2}`),
		}, `{"b":2}`, `{"b":2}`, ""},
		{"empty", toolsCallResult{}, "", "", "empty MCP response"},
		{"no text", toolsCallResult{Content: []contentItem{{Type: "image"}}}, "", "", "returned no text content"},
		{"error joins text", toolsCallResult{IsError: true, Content: []contentItem{{Type: "text", Text: text("a")}, {Type: "text", Text: text("b")}}}, "", "", "a\nb"},
		{"error without text", toolsCallResult{IsError: true}, "", "", "tool t failed"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, err := normalizeToolResult("t", tc.result)
			if tc.err != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.err)
				return
			}
			require.NoError(t, err)
			assert.JSONEq(t, tc.want, string(resp.Result))
			if tc.structured == "" {
				assert.Nil(t, resp.Structured)
			} else {
				assert.JSONEq(t, tc.structured, string(resp.Structured))
			}
		})
	}
}

func TestReadSSEEvent(t *testing.T) {
	t.Parallel()
	r := bufio.NewReader(strings.NewReader(": comment\n\nevent: response\ndata: {\"a\":\ndata: 1}\r\n\n"))
	event, data, err := readSSEEvent(r)
	require.NoError(t, err)
	assert.Equal(t, "response", event)
	assert.Equal(t, "{\"a\":\n1}", string(data))

	_, _, err = readSSEEvent(r)
	assert.Error(t, err)
}

func TestReadFrame(t *testing.T) {
	t.Parallel()
	var sb strings.Builder
	require.NoError(t, writeFrame(&sb, []byte(`{"id":1}`)))
	frame, err := readFrame(bufio.NewReader(strings.NewReader("\r\n" + sb.String())))
	require.NoError(t, err)
	assert.Equal(t, `{"id":1}`, string(frame))

	_, err = readFrame(bufio.NewReader(strings.NewReader("Content-Length: x\r\n\r\n")))
	assert.Error(t, err)

	_, err = readFrame(bufio.NewReader(strings.NewReader("Content-Length: 67108865\r\n\r\n{}")))
	assert.EqualError(t, err, "content-length 67108865 exceeds 67108864 bytes")
}

func TestStdioCallerCallTool(t *testing.T) {
	t.Parallel()
	ctx, expectedTrace := contextWithTrace()
	caller := newStdioCaller(t, ctx)

	resp, err := caller.CallTool(ctx, CallRequest{Tool: "trace", Payload: json.RawMessage(`{}`)})
	require.NoError(t, err)
	var got string
	require.NoError(t, json.Unmarshal(resp.Result, &got))
	assert.Equal(t, expectedTrace, got)

	_, err = caller.CallTool(ctx, CallRequest{Tool: "fail"})
	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, "registry unavailable", toolErr.Message)

	_, err = caller.CallTool(ctx, CallRequest{Tool: "unknown"})
	var rpcErr *Error
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, JSONRPCMethodNotFound, rpcErr.Code)
}

func TestStdioCallerClose(t *testing.T) {
	t.Parallel()
	caller := newStdioCaller(t, context.Background())
	require.NoError(t, caller.Close())
	require.NoError(t, caller.Close())
	_, err := caller.CallTool(context.Background(), CallRequest{Tool: "trace"})
	assert.Error(t, err)
}

func TestStdioCallerRejectsOversizedFrame(t *testing.T) {
	t.Parallel()
	caller := newStdioCaller(t, context.Background())

	_, err := caller.CallTool(context.Background(), CallRequest{Tool: "oversized"})
	require.EqualError(t, err, "mcp server stream: content-length 1073741824 exceeds 67108864 bytes")

	_, err = caller.CallTool(context.Background(), CallRequest{Tool: "trace"})
	assert.EqualError(t, err, "mcp server stream: content-length 1073741824 exceeds 67108864 bytes")
}

func TestNewStdioCallerRequiresCommand(t *testing.T) {
	t.Parallel()
	_, err := NewStdioCaller(context.Background(), StdioOptions{})
	assert.EqualError(t, err, "mcp command is required")
}

func newStdioCaller(t *testing.T, ctx context.Context) *StdioCaller {
	t.Helper()
	caller, err := NewStdioCaller(ctx, StdioOptions{
		Command:          os.Args[0],
		Args:             []string{"-test.run=^TestStdioHelper$", "--"},
		Env:              []string{stdioHelperEnv + "=1"},
		HandshakeOptions: HandshakeOptions{InitTimeout: 5 * time.Second},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = caller.Close() })
	return caller
}

func contextWithTrace() (context.Context, string) {
	traceID := trace.TraceID{0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0xff, 0x11, 0x22, 0x33, 0x44, 0x55, 0x66, 0x77, 0x88, 0x99, 0x00}
	spanID := trace.SpanID{0x10, 0x20, 0x30, 0x40, 0x50, 0x60, 0x70, 0x80}
	spanCtx := trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: spanID, TraceFlags: trace.FlagsSampled})
	ctx := trace.ContextWithSpanContext(context.Background(), spanCtx)
	return ctx, fmt.Sprintf("00-%s-%s-01", traceID, spanID)
}

// TestStdioHelper is the MCP server process started by the stdio tests.
func TestStdioHelper(t *testing.T) {
	if os.Getenv(stdioHelperEnv) != "1" {
		t.Skip("helper process")
	}
	runStdioHelper()
}

func runStdioHelper() {
	reader := bufio.NewReader(os.Stdin)
	writer := bufio.NewWriter(os.Stdout)
	reply := func(resp rpcResponse) {
		data, _ := json.Marshal(resp)
		_ = writeFrame(writer, data)
		_ = writer.Flush()
	}
	for {
		frame, err := readFrame(reader)
		if err != nil {
			break
		}
		var req struct {
			ID     uint64 `json:"id"`
			Method string `json:"method"`
			Params struct {
				Name string            `json:"name"`
				Meta map[string]string `json:"_meta"`
			} `json:"params"`
		}
		if err := json.Unmarshal(frame, &req); err != nil {
			continue
		}
		// Unsolicited notification; the caller must skip it.
		reply(rpcResponse{JSONRPC: "2.0"})
		var resp rpcResponse
		switch {
		case req.Method == "initialize":
			resp = rpcResponse{Result: json.RawMessage(`{"capabilities":{}}`)}
		case req.Params.Name == "trace":
			resp = textResult(req.Params.Meta["traceparent"], false)
		case req.Params.Name == "fail":
			resp = textResult("registry unavailable", true)
		case req.Params.Name == "oversized":
			_, _ = fmt.Fprintf(writer, "Content-Length: %d\r\n\r\n", 1<<30)
			_ = writer.Flush()
			continue
		default:
			resp = rpcResponse{Error: &rpcError{Code: JSONRPCMethodNotFound, Message: "unknown tool"}}
		}
		resp.JSONRPC, resp.ID = "2.0", req.ID
		reply(resp)
	}
	os.Exit(0)
}

