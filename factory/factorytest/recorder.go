package factorytest

import (
	"context"
	"fmt"
	"sync"
)

type (
	// Call is a single recorded tool invocation.
	Call struct {
		Tool string
		Args map[string]any
	}

	// Recorder is a deterministic ToolCaller. It records every call and
	// answers with the response or error registered for the tool. Tools with
	// neither fail with "no mock: <tool>".
	Recorder struct {
		mu        sync.Mutex
		calls     []Call
		responses map[string]any
		errors    map[string]error
	}
)

// NewRecorder returns a Recorder answering each tool with the given response.
func NewRecorder(responses map[string]any) *Recorder {
	r := &Recorder{responses: map[string]any{}, errors: map[string]error{}}
	for tool, resp := range responses {
		r.responses[tool] = resp
	}
	return r
}

// Fail makes subsequent calls to tool fail with err.
func (r *Recorder) Fail(tool string, err error) *Recorder {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors[tool] = err
	return r
}

// Call implements factory.ToolCaller.
func (r *Recorder) Call(_ context.Context, tool string, args map[string]any) (any, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, Call{Tool: tool, Args: copyArgs(args)})
	if err, ok := r.errors[tool]; ok {
		return nil, err
	}
	resp, ok := r.responses[tool]
	if !ok {
		return nil, fmt.Errorf("no mock: %s", tool)
	}
	return resp, nil
}

// Calls returns the recorded invocations in order.
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

// Tools returns the names of the invoked tools in order.
func (r *Recorder) Tools() []string {
	calls := r.Calls()
	tools := make([]string, len(calls))
	for i, c := range calls {
		tools[i] = c.Tool
	}
	return tools
}

func copyArgs(args map[string]any) map[string]any {
	out := make(map[string]any, len(args))
	for k, v := range args {
		out[k] = v
	}
	return out
}
