package contract

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

type (
	// ValidationError reports every mismatch between a payload and a contract.
	ValidationError struct {
		// Contract names the contract that rejected the payload.
		Contract string
		// Issues lists the failures ordered by field path.
		Issues []Issue
	}

	// Issue describes a single contract violation.
	Issue struct {
		// Path is the JSON pointer of the offending value ("" is the root).
		Path string `json:"path"`
		// Message describes the expected shape.
		Message string `json:"message"`
	}
)

var printer = message.NewPrinter(language.English)

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString(e.Contract)
	b.WriteString(": invalid payload")
	for _, is := range e.Issues {
		b.WriteString("; ")
		b.WriteString(is.String())
	}
	return b.String()
}

// Paths returns the field paths of all issues.
func (e *ValidationError) Paths() []string {
	paths := make([]string, len(e.Issues))
	for i, is := range e.Issues {
		paths[i] = is.Path
	}
	return paths
}

// String renders the issue as "<path>: <message>".
func (i Issue) String() string {
	p := i.Path
	if p == "" {
		p = "(root)"
	}
	return p + ": " + i.Message
}

func rootIssue(name, msg string) *ValidationError {
	return &ValidationError{Contract: name, Issues: []Issue{{Message: msg}}}
}

// decodeError reports a typed decode failure at the offending field.
func decodeError(name string, err error) *ValidationError {
	var te *json.UnmarshalTypeError
	if !errors.As(err, &te) || te.Field == "" {
		return rootIssue(name, err.Error())
	}
	return &ValidationError{Contract: name, Issues: []Issue{{
		Path:    "/" + strings.ReplaceAll(te.Field, ".", "/"),
		Message: fmt.Sprintf("got %s, want %s", te.Value, te.Type),
	}}}
}

func newValidationError(name string, err error) *ValidationError {
	var se *jsonschema.ValidationError
	if !errors.As(err, &se) {
		return rootIssue(name, err.Error())
	}
	ve := &ValidationError{Contract: name}
	collectIssues(se, &ve.Issues)
	if len(ve.Issues) == 0 {
		ve.Issues = []Issue{{Message: se.Error()}}
	}
	sort.SliceStable(ve.Issues, func(i, j int) bool {
		return ve.Issues[i].Path < ve.Issues[j].Path
	})
	return ve
}

// collectIssues flattens the cause tree, keeping only the leaves which carry
// the concrete keyword failures.
func collectIssues(e *jsonschema.ValidationError, out *[]Issue) {
	if len(e.Causes) == 0 {
		*out = append(*out, Issue{
			Path:    pointer(e.InstanceLocation),
			Message: e.ErrorKind.LocalizedString(printer),
		})
		return
	}
	for _, c := range e.Causes {
		collectIssues(c, out)
	}
}

func pointer(tokens []string) string {
	if len(tokens) == 0 {
		return ""
	}
	var b strings.Builder
	for _, t := range tokens {
		b.WriteByte('/')
		t = strings.ReplaceAll(t, "~", "~0")
		b.WriteString(strings.ReplaceAll(t, "/", "~1"))
	}
	return b.String()
}
