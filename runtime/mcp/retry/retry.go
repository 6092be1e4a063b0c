// Package retry turns invalid-parameter failures reported by MCP servers into
// errors that carry a repair prompt. The prompt restates the tool input schema
// so the caller, or an LLM acting for it, can correct the arguments and redo
// the same tools/call.
package retry

import (
	"errors"
	"fmt"
	"strings"
)

const promptTemplate = `Operation: %s
%sError: %s
Redo the operation now with valid parameters.
Use only valid schema fields and ensure required fields and types/enums are valid.
Example params: %s`

// RetryableError reports that an operation failed because of its parameters
// and may succeed when retried with the arguments described by Prompt.
type RetryableError struct {
	Prompt string
	Cause  error
}

// Error returns the cause message when available so the error reads like the
// server failure it wraps.
func (e *RetryableError) Error() string {
	if e == nil {
		return ""
	}
	if e.Cause == nil {
		return e.Prompt
	}
	return e.Cause.Error()
}

// Unwrap returns the server error.
func (e *RetryableError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// PromptOf returns the repair prompt of the first RetryableError in err's
// chain.
func PromptOf(err error) (string, bool) {
	var re *RetryableError
	if !errors.As(err, &re) {
		return "", false
	}
	return re.Prompt, true
}

// BuildRepairPrompt renders a deterministic repair instruction. schema is an
// optional compact JSON schema; exampleJSON is a minimal valid payload.
func BuildRepairPrompt(op, errMsg, exampleJSON, schema string) string {
	var schemaPart string
	if schema = strings.TrimSpace(schema); schema != "" {
		schemaPart = "Schema: " + schema + "\n"
	}
	if exampleJSON == "" {
		exampleJSON = "{}"
	}
	return fmt.Sprintf(promptTemplate, op, schemaPart, errMsg, exampleJSON)
}
