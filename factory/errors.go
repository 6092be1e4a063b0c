package factory

import (
	"errors"
	"fmt"

	"goa.design/specfactory/contract"
)

type (
	// CapabilityError reports a failure of the ToolCaller itself. Its message
	// is the caller's message verbatim.
	CapabilityError struct {
		// Tool is the tool being invoked.
		Tool string
		// Err is the error returned by the ToolCaller.
		Err error
	}

	// InputRejectedError reports arguments that failed their input contract.
	// No call is made when it is returned.
	InputRejectedError struct {
		// Tool is the tool that would have been invoked.
		Tool string
		// Err lists the argument violations.
		Err *contract.ValidationError
	}
)

// Error implements the error interface.
func (e *CapabilityError) Error() string {
	if e == nil || e.Err == nil {
		return ""
	}
	return e.Err.Error()
}

// Unwrap returns the ToolCaller error.
func (e *CapabilityError) Unwrap() error { return e.Err }

// Error implements the error interface.
func (e *InputRejectedError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s arguments rejected: %v", e.Tool, e.Err)
}

// Unwrap returns the underlying validation error.
func (e *InputRejectedError) Unwrap() error { return e.Err }

// IsValidationError reports whether err carries a contract violation of the
// tool's result (as opposed to its arguments).
func IsValidationError(err error) bool {
	var ve *contract.ValidationError
	var ir *InputRejectedError
	return errors.As(err, &ve) && !errors.As(err, &ir)
}
