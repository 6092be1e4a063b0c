package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
)

// StdioOptions configures the stdio caller.
type StdioOptions struct {
	HandshakeOptions
	// Command is the MCP server executable.
	Command string
	Args    []string
	// Env is appended to the current process environment.
	Env []string
	Dir string
}

// StdioCaller implements Caller by exchanging Content-Length framed JSON-RPC
// messages with a child process. The session is kept open until Close.
type StdioCaller struct {
	cmd   *exec.Cmd
	stdin io.WriteCloser

	writeMu sync.Mutex

	mu      sync.Mutex
	lastID  uint64
	pending map[uint64]chan rpcResponse
	err     error

	done      chan struct{}
	closeOnce sync.Once
}

// NewStdioCaller starts the server process and performs the MCP initialize
// handshake.
func NewStdioCaller(ctx context.Context, opts StdioOptions) (*StdioCaller, error) {
	if opts.Command == "" {
		return nil, errors.New("mcp command is required")
	}
	cmd := exec.CommandContext(ctx, opts.Command, opts.Args...) //nolint:gosec // command is operator supplied
	cmd.Dir = opts.Dir
	if len(opts.Env) > 0 {
		cmd.Env = append(os.Environ(), opts.Env...)
	}
	cmd.Stderr = io.Discard
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start mcp server: %w", err)
	}
	c := &StdioCaller{
		cmd:     cmd,
		stdin:   stdin,
		pending: make(map[uint64]chan rpcResponse),
		done:    make(chan struct{}),
	}
	go c.readLoop(stdout)

	initCtx := ctx
	if opts.InitTimeout > 0 {
		var cancel context.CancelFunc
		initCtx, cancel = context.WithTimeout(ctx, opts.InitTimeout)
		defer cancel()
	}
	if err := c.call(initCtx, "initialize", opts.initializeParams(), nil); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("mcp initialize failed: %w", err)
	}
	return c, nil
}

// CallTool invokes tools/call over the stdio session.
func (c *StdioCaller) CallTool(ctx context.Context, req CallRequest) (CallResponse, error) {
	params := toolsCallParams(req)
	withTraceMeta(params, traceContext(ctx))
	var raw json.RawMessage
	if err := c.call(ctx, "tools/call", params, &raw); err != nil {
		return CallResponse{}, err
	}
	return decodeToolCallResult(req.Tool, raw)
}

// Close stops the server process. It is safe to call more than once.
func (c *StdioCaller) Close() error {
	c.closeOnce.Do(func() {
		_ = c.stdin.Close()
		if c.cmd.Process != nil && c.cmd.ProcessState == nil {
			_ = c.cmd.Process.Kill()
		}
		_ = c.cmd.Wait()
		c.fail(errors.New("stdio caller closed"))
		close(c.done)
	})
	return nil
}

func (c *StdioCaller) call(ctx context.Context, method string, params any, result any) error {
	ch := make(chan rpcResponse, 1)
	c.mu.Lock()
	if c.err != nil {
		err := c.err
		c.mu.Unlock()
		return err
	}
	c.lastID++
	id := c.lastID
	c.pending[id] = ch
	c.mu.Unlock()

	if err := c.write(rpcRequest{JSONRPC: "2.0", Method: method, ID: id, Params: params}); err != nil {
		c.forget(id)
		return err
	}
	select {
	case resp, ok := <-ch:
		if !ok {
			return c.failure()
		}
		if resp.Error != nil {
			return resp.Error.callerError()
		}
		if result != nil && resp.Result != nil {
			return json.Unmarshal(resp.Result, result)
		}
		return nil
	case <-ctx.Done():
		c.forget(id)
		return ctx.Err()
	case <-c.done:
		return c.failure()
	}
}

func (c *StdioCaller) write(req rpcRequest) error {
	data, err := json.Marshal(req)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return writeFrame(c.stdin, data)
}

func (c *StdioCaller) readLoop(stdout io.Reader) {
	reader := bufio.NewReader(stdout)
	for {
		frame, err := readFrame(reader)
		if err != nil {
			c.fail(fmt.Errorf("mcp server stream: %w", err))
			return
		}
		var resp rpcResponse
		if err := json.Unmarshal(frame, &resp); err != nil || resp.ID == 0 {
			// Notifications and malformed frames carry no request to answer.
			continue
		}
		c.mu.Lock()
		ch, ok := c.pending[resp.ID]
		delete(c.pending, resp.ID)
		c.mu.Unlock()
		if ok {
			ch <- resp
		}
	}
}

// fail records the first terminal error and releases every pending call.
func (c *StdioCaller) fail(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err == nil {
		c.err = err
	}
	for id, ch := range c.pending {
		delete(c.pending, id)
		close(ch)
	}
}

func (c *StdioCaller) failure() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err == nil {
		return errors.New("stdio caller closed")
	}
	return c.err
}

func (c *StdioCaller) forget(id uint64) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

func writeFrame(w io.Writer, data []byte) error {
	if _, err := fmt.Fprintf(w, "Content-Length: %d\r\n\r\n", len(data)); err != nil {
		return err
	}
	_, err := w.Write(data)
	return err
}

// maxFrameSize bounds the Content-Length a server may announce.
const maxFrameSize = 64 << 20

func readFrame(reader *bufio.Reader) ([]byte, error) {
	length := -1
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			return nil, err
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			if length < 0 {
				continue
			}
			break
		}
		name, value, ok := strings.Cut(line, ":")
		if !ok || !strings.EqualFold(strings.TrimSpace(name), "content-length") {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid content-length %q", value)
		}
		if n > maxFrameSize {
			return nil, fmt.Errorf("content-length %d exceeds %d bytes", n, maxFrameSize)
		}
		length = n
	}
	buf := make([]byte, length)
	if _, err := io.ReadFull(reader, buf); err != nil {
		return nil, err
	}
	return buf, nil
}
