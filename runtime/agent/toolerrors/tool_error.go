// Package toolerrors provides structured error types for tool resolution,
// argument decoding, and handler invocation failures. Every ToolError carries
// a Kind that survives conversion into the wire envelope, preserves causal
// context, and supports errors.Is/As.
package toolerrors

import (
	"errors"
	"fmt"
)

// Kind identifies the failure class of a ToolError. Kind values are stable
// wire contract strings: they appear verbatim in the error envelope returned
// to the remote run.
type Kind string

const (
	// KindUnknownTool reports a requested tool name absent from the registry.
	KindUnknownTool Kind = "UnknownTool"
	// KindDuplicateToolName reports a registration against an already-taken name.
	KindDuplicateToolName Kind = "DuplicateToolName"
	// KindMissingArgument reports a required argument absent from the call.
	KindMissingArgument Kind = "MissingArgument"
	// KindArgumentTypeMismatch reports an argument of the wrong primitive kind.
	KindArgumentTypeMismatch Kind = "ArgumentTypeMismatch"
	// KindHandlerError reports a fault raised by the tool handler itself.
	KindHandlerError Kind = "HandlerError"
)

// ToolError represents a structured tool failure that preserves the failure
// class and message while still implementing the standard error interface.
// Tool errors may be nested via Cause to retain diagnostics across layers.
type ToolError struct {
	// Kind is the failure class reported in the error envelope.
	Kind Kind
	// Message is the human-readable summary of the failure.
	Message string
	// Cause links to the underlying tool error, enabling error chains with errors.Is/As.
	Cause *ToolError
}

// New constructs a ToolError of the given kind with the provided message.
func New(kind Kind, message string) *ToolError {
	if message == "" {
		message = "tool error"
	}
	if kind == "" {
		kind = KindHandlerError
	}
	return &ToolError{Kind: kind, Message: message}
}

// Newf formats according to a format specifier and returns the string as a
// ToolError of the given kind.
func Newf(kind Kind, format string, args ...any) *ToolError {
	return New(kind, fmt.Sprintf(format, args...))
}

// WithCause constructs a ToolError that wraps an underlying error. The cause
// is converted into a ToolError chain so diagnostics survive while still
// supporting errors.Is/As through Unwrap.
func WithCause(kind Kind, message string, cause error) *ToolError {
	if message == "" && cause != nil {
		message = cause.Error()
	}
	te := New(kind, message)
	te.Cause = From(cause)
	return te
}

// From converts an arbitrary error into a ToolError chain. Errors that are
// not already ToolErrors are classified as handler faults.
func From(err error) *ToolError {
	if err == nil {
		return nil
	}
	var te *ToolError
	if errors.As(err, &te) {
		return te
	}
	return &ToolError{
		Kind:    KindHandlerError,
		Message: err.Error(),
		Cause:   From(errors.Unwrap(err)),
	}
}

// KindOf reports the failure class of err: the Kind of the outermost
// ToolError in its chain, or KindHandlerError for foreign errors.
func KindOf(err error) Kind {
	var te *ToolError
	if errors.As(err, &te) && te.Kind != "" {
		return te.Kind
	}
	return KindHandlerError
}

// UnknownTool builds the error reported when no tool is registered under name.
func UnknownTool(name string) *ToolError {
	return Newf(KindUnknownTool, "no tool registered with name %q", name)
}

// DuplicateTool builds the error reported when name is already registered.
func DuplicateTool(name string) *ToolError {
	return Newf(KindDuplicateToolName, "tool %q is already registered", name)
}

// MissingArgument builds the error reported when a required field is absent.
func MissingArgument(field string) *ToolError {
	return Newf(KindMissingArgument, "required argument %q is missing", field)
}

// TypeMismatch builds the error reported when field holds a value of the
// wrong primitive kind.
func TypeMismatch(field, expected string) *ToolError {
	return Newf(KindArgumentTypeMismatch, "argument %q must be of type %s", field, expected)
}

// Error implements the error interface.
func (e *ToolError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

// Unwrap returns the underlying tool error to support errors.Is/As.
func (e *ToolError) Unwrap() error {
	if e == nil || e.Cause == nil {
		return nil
	}
	return e.Cause
}
