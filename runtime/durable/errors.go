package durable

import (
	"errors"
	"fmt"
)

// ConfigError reports a toolset setup the durable boundary cannot honor. It
// is non-retryable and surfaces immediately so the operator can fix the
// toolset configuration rather than the agent logic.
type ConfigError struct {
	// Toolset is the id of the offending toolset.
	Toolset string
	// Tool is the offending tool name, when the error is tool-specific.
	Tool string
	// Reason explains the violated constraint.
	Reason string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	switch {
	case e.Tool != "" && e.Toolset != "":
		return fmt.Sprintf("durable toolset %q: tool %q: %s", e.Toolset, e.Tool, e.Reason)
	case e.Toolset != "":
		return fmt.Sprintf("durable toolset %q: %s", e.Toolset, e.Reason)
	default:
		return e.Reason
	}
}

// nonRetryableError marks failures the engine must not retry, such as a tool
// catalog that changed across a replay boundary.
type nonRetryableError struct {
	err error
}

// NonRetryable wraps err so engine adapters surface it through their native
// non-retryable failure type.
func NonRetryable(err error) error {
	if err == nil {
		return nil
	}
	return &nonRetryableError{err: err}
}

// IsNonRetryable reports whether err carries the non-retryable marker.
func IsNonRetryable(err error) bool {
	var nr *nonRetryableError
	return errors.As(err, &nr)
}

// Error implements the error interface.
func (e *nonRetryableError) Error() string { return e.err.Error() }

// Unwrap supports errors.Is/As against the wrapped failure.
func (e *nonRetryableError) Unwrap() error { return e.err }
