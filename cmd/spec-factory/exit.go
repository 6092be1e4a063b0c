package main

import "fmt"

// Process exit codes.
const (
	exitFailure    = 1
	exitConfig     = 2
	exitBridge     = 3
	exitStage      = 4
	exitValidation = 5
)

// ExitError carries the process exit code returned by a subcommand.
type ExitError struct {
	Code    int
	Message string
}

func (e *ExitError) Error() string {
	return e.Message
}

func exitError(code int, format string, args ...any) *ExitError {
	return &ExitError{Code: code, Message: fmt.Sprintf(format, args...)}
}
