// Package transcript reads conversation history back from the remote thread.
// The reader never caches: every call re-fetches so callers always observe
// messages appended since the last read.
package transcript

import (
	"context"
	"errors"
	"fmt"

	"github.com/jimacampos/deskagent/runtime/agent/runs"
	"github.com/jimacampos/deskagent/runtime/agent/telemetry"
)

type (
	// Reader retrieves thread messages through a run service.
	Reader struct {
		svc    runs.Service
		logger telemetry.Logger
	}

	// Option configures a Reader.
	Option func(*Reader)
)

// WithLogger configures the reader logger. When nil, the reader uses a noop
// logger.
func WithLogger(logger telemetry.Logger) Option {
	return func(r *Reader) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewReader returns a reader backed by svc.
func NewReader(svc runs.Service, opts ...Option) (*Reader, error) {
	if svc == nil {
		return nil, fmt.Errorf("run service is required")
	}
	r := &Reader{
		svc:    svc,
		logger: telemetry.NewNoopLogger(),
	}
	for _, o := range opts {
		if o != nil {
			o(r)
		}
	}
	return r, nil
}

// LatestAssistantMessage returns the text of the most recent assistant
// message in the thread. The boolean is false when the thread holds no
// assistant text yet.
func (r *Reader) LatestAssistantMessage(ctx context.Context, threadID string) (string, bool, error) {
	msgs, err := r.svc.ListMessages(ctx, threadID, runs.OrderDesc)
	if err != nil {
		return "", false, serviceFault("list_messages", err)
	}
	for _, m := range msgs {
		if m.Role == runs.RoleAssistant && m.Text != "" {
			return m.Text, true, nil
		}
	}
	r.logger.Debug(ctx, "thread has no assistant message", "thread_id", threadID)
	return "", false, nil
}

// FullTranscript returns every message in the thread in chronological order.
func (r *Reader) FullTranscript(ctx context.Context, threadID string) ([]runs.Message, error) {
	msgs, err := r.svc.ListMessages(ctx, threadID, runs.OrderAsc)
	if err != nil {
		return nil, serviceFault("list_messages", err)
	}
	return msgs, nil
}

func serviceFault(op string, err error) error {
	var serr *runs.ServiceError
	if errors.As(err, &serr) {
		return err
	}
	return runs.NewServiceError(op, err)
}
