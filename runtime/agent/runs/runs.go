// Package runs defines the contract with the remote run service: the states
// a hosted run moves through, the tool-call and tool-output records exchanged
// while it is blocked, and the Service interface remote adapters implement.
package runs

import (
	"context"
	"fmt"
	"time"
)

type (
	// RunState enumerates the observable states of a remote run. Transitions
	// are driven only by polling; the local system follows them and never
	// mutates remote state directly.
	RunState string

	// Role identifies the author of a conversation message.
	Role string

	// Order selects transcript ordering for ListMessages.
	Order string

	// PendingToolCall is one tool invocation requested by a blocked run.
	// Instances are immutable and consumed exactly once by the dispatcher.
	PendingToolCall struct {
		// CallID is the opaque token issued by the remote run for this call.
		// It must be echoed on the corresponding output record.
		CallID string
		// Name is the registered tool the run wants invoked.
		Name string
		// RawArguments is the JSON argument blob exactly as received.
		RawArguments string
	}

	// ToolOutputRecord carries one serialized tool result back to the remote
	// run. Exactly one record exists per pending call, failures included; the
	// remote side rejects batches that miss a call.
	ToolOutputRecord struct {
		// CallID echoes PendingToolCall.CallID.
		CallID string
		// Payload is the string-serialized JSON result envelope.
		Payload string
	}

	// RunStatus is a single polling observation of a remote run.
	RunStatus struct {
		// ID identifies the run within its thread.
		ID string
		// State is the observed run state.
		State RunState
		// PendingCalls holds the full set of requested tool calls. Populated
		// only when State is StateRequiresAction.
		PendingCalls []PendingToolCall
		// FailureMessage carries the remote-supplied error text. Populated
		// only when State is StateFailed.
		FailureMessage string
	}

	// Message is one transcript entry of a conversation thread.
	Message struct {
		// Role is the message author.
		Role Role
		// Text is the message content.
		Text string
		// CreatedAt is the remote-recorded creation time.
		CreatedAt time.Time
	}

	// Service is the remote run service consumed by the driver and the
	// transcript reader. All operations are request/response; implementations
	// wrap every transport or service failure in a *ServiceError.
	Service interface {
		// CreateThread starts an empty conversation thread.
		CreateThread(ctx context.Context) (string, error)
		// CreateMessage appends a message to the thread.
		CreateMessage(ctx context.Context, threadID string, role Role, text string) error
		// CreateRun starts a run of the assistant against the thread.
		CreateRun(ctx context.Context, threadID, assistantID string) (string, error)
		// GetRun fetches the current status of a run.
		GetRun(ctx context.Context, threadID, runID string) (*RunStatus, error)
		// SubmitToolOutputs delivers one complete batch of tool outputs to a
		// blocked run.
		SubmitToolOutputs(ctx context.Context, threadID, runID string, outputs []ToolOutputRecord) error
		// ListMessages fetches the thread transcript in the given order.
		ListMessages(ctx context.Context, threadID string, order Order) ([]Message, error)
	}

	// ServiceError wraps a transport or service failure talking to the remote
	// run service. It aborts the current turn; the host decides whether the
	// user retries.
	ServiceError struct {
		// Op names the failing operation, e.g. "create_run".
		Op string
		// Err is the underlying failure.
		Err error
	}
)

const (
	// StateQueued marks a run accepted but not yet executing. Transient.
	StateQueued RunState = "queued"
	// StateInProgress marks a run currently executing. Transient.
	StateInProgress RunState = "in_progress"
	// StateRequiresAction marks a run blocked on tool outputs.
	StateRequiresAction RunState = "requires_action"
	// StateCompleted marks a run that finished successfully. Terminal.
	StateCompleted RunState = "completed"
	// StateFailed marks a run that ended in error. Terminal.
	StateFailed RunState = "failed"
)

const (
	// RoleUser marks messages authored by the end user.
	RoleUser Role = "user"
	// RoleAssistant marks messages authored by the assistant.
	RoleAssistant Role = "assistant"
)

const (
	// OrderAsc lists messages oldest first.
	OrderAsc Order = "asc"
	// OrderDesc lists messages newest first.
	OrderDesc Order = "desc"
)

// Terminal reports whether the state ends a turn.
func (s RunState) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// NewServiceError wraps err as a ServiceError for the named operation.
func NewServiceError(op string, err error) *ServiceError {
	return &ServiceError{Op: op, Err: err}
}

// Error implements the error interface.
func (e *ServiceError) Error() string {
	return fmt.Sprintf("run service %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying failure to support errors.Is/As.
func (e *ServiceError) Unwrap() error {
	return e.Err
}
