// Package driver advances remote runs to completion. It owns the poll loop
// that watches run status, hands pending tool calls to a dispatcher, submits
// the computed outputs, and reports how the turn ended. Terminal run states
// are data; only transport and cancellation faults surface as Go errors.
package driver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jimacampos/deskagent/runtime/agent/runs"
	"github.com/jimacampos/deskagent/runtime/agent/telemetry"
)

const (
	// DefaultPollInterval is the wait between consecutive status fetches.
	DefaultPollInterval = time.Second

	// DefaultPollTimeout bounds a single status fetch.
	DefaultPollTimeout = 30 * time.Second
)

type (
	// BatchDispatcher executes pending tool calls and returns exactly one
	// output record per call, order preserved.
	BatchDispatcher interface {
		DispatchBatch(ctx context.Context, calls []runs.PendingToolCall) []runs.ToolOutputRecord
	}

	// Driver polls a remote run service and routes tool work through a
	// dispatcher until the run reaches a terminal state.
	Driver struct {
		svc         runs.Service
		dispatcher  BatchDispatcher
		assistantID string

		pollInterval time.Duration
		pollTimeout  time.Duration

		logger  telemetry.Logger
		metrics telemetry.Metrics
		tracer  telemetry.Tracer
	}

	// Option configures a Driver.
	Option func(*Driver)

	// TurnResult reports how a turn ended. State is always Completed or
	// Failed; FailureMessage carries the remote-supplied reason for failed
	// runs. Polls and ToolCalls count the work the turn required.
	TurnResult struct {
		RunID          string
		State          runs.RunState
		FailureMessage string
		Polls          int
		ToolCalls      int
	}
)

// WithPollInterval sets the wait between status fetches. Zero disables
// waiting entirely, which lets tests drive the loop without real time.
// Negative values are ignored.
func WithPollInterval(interval time.Duration) Option {
	return func(d *Driver) {
		if interval >= 0 {
			d.pollInterval = interval
		}
	}
}

// WithPollTimeout bounds each individual status fetch. Zero disables the
// bound. Negative values are ignored.
func WithPollTimeout(timeout time.Duration) Option {
	return func(d *Driver) {
		if timeout >= 0 {
			d.pollTimeout = timeout
		}
	}
}

// WithLogger configures the driver logger. When nil, the driver uses a noop
// logger.
func WithLogger(logger telemetry.Logger) Option {
	return func(d *Driver) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithMetrics configures the driver metrics sink. When nil, the driver uses
// a noop sink.
func WithMetrics(metrics telemetry.Metrics) Option {
	return func(d *Driver) {
		if metrics != nil {
			d.metrics = metrics
		}
	}
}

// WithTracer configures the driver tracer. When nil, the driver uses a noop
// tracer.
func WithTracer(tracer telemetry.Tracer) Option {
	return func(d *Driver) {
		if tracer != nil {
			d.tracer = tracer
		}
	}
}

// New returns a driver for the given run service, dispatcher, and assistant.
func New(svc runs.Service, dispatcher BatchDispatcher, assistantID string, opts ...Option) (*Driver, error) {
	if svc == nil {
		return nil, fmt.Errorf("run service is required")
	}
	if dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}
	if assistantID == "" {
		return nil, fmt.Errorf("assistant id is required")
	}
	d := &Driver{
		svc:          svc,
		dispatcher:   dispatcher,
		assistantID:  assistantID,
		pollInterval: DefaultPollInterval,
		pollTimeout:  DefaultPollTimeout,
		logger:       telemetry.NewNoopLogger(),
		metrics:      telemetry.NewNoopMetrics(),
		tracer:       telemetry.NewNoopTracer(),
	}
	for _, o := range opts {
		if o != nil {
			o(d)
		}
	}
	return d, nil
}

// StartTurn appends userText to the thread as a user message and starts a
// run for the configured assistant. It returns the new run id. Failures are
// *runs.ServiceError values.
func (d *Driver) StartTurn(ctx context.Context, threadID, userText string) (string, error) {
	if err := d.svc.CreateMessage(ctx, threadID, runs.RoleUser, userText); err != nil {
		return "", serviceFault("create_message", err)
	}
	runID, err := d.svc.CreateRun(ctx, threadID, d.assistantID)
	if err != nil {
		return "", serviceFault("create_run", err)
	}
	d.logger.Info(ctx, "turn started", "thread_id", threadID, "run_id", runID)
	return runID, nil
}

// Advance polls the run until it reaches Completed or Failed, dispatching
// pending tool calls and submitting their outputs along the way. Terminal
// observations come back as a TurnResult with a nil error; transport faults
// and cancellation abort the turn with a *runs.ServiceError.
func (d *Driver) Advance(ctx context.Context, threadID, runID string) (*TurnResult, error) {
	res := &TurnResult{RunID: runID}
	for {
		if err := d.wait(ctx); err != nil {
			return nil, err
		}
		status, err := d.fetchStatus(ctx, threadID, runID)
		if err != nil {
			return nil, serviceFault("get_run", err)
		}
		if status == nil {
			return nil, runs.NewServiceError("get_run", errors.New("nil run status"))
		}
		res.Polls++

		switch status.State {
		case runs.StateCompleted:
			res.State = runs.StateCompleted
			d.logger.Info(ctx, "run completed", "run_id", runID, "polls", res.Polls, "tool_calls", res.ToolCalls)
			return res, nil

		case runs.StateFailed:
			res.State = runs.StateFailed
			res.FailureMessage = status.FailureMessage
			d.logger.Warn(ctx, "run failed", "run_id", runID, "reason", status.FailureMessage)
			return res, nil

		case runs.StateRequiresAction:
			if len(status.PendingCalls) == 0 {
				// The remote can briefly report the action state before the
				// pending set is visible.
				d.logger.Warn(ctx, "action required with no pending calls, polling again", "run_id", runID)
				continue
			}
			records := d.dispatcher.DispatchBatch(ctx, status.PendingCalls)
			res.ToolCalls += len(records)
			if cerr := ctx.Err(); cerr != nil {
				// Do not submit outputs computed after cancellation.
				return nil, runs.NewServiceError("submit_tool_outputs", cerr)
			}
			if err := d.svc.SubmitToolOutputs(ctx, threadID, runID, records); err != nil {
				return nil, serviceFault("submit_tool_outputs", err)
			}
			d.logger.Debug(ctx, "tool outputs submitted", "run_id", runID, "count", len(records))

		case runs.StateQueued, runs.StateInProgress:
			// Keep polling.

		default:
			d.logger.Warn(ctx, "unexpected run state, polling again", "run_id", runID, "state", string(status.State))
		}
	}
}

// RunTurn is StartTurn followed by Advance, with per-turn correlation and
// instrumentation.
func (d *Driver) RunTurn(ctx context.Context, threadID, userText string) (*TurnResult, error) {
	turnID := uuid.NewString()
	ctx, span := d.tracer.Start(
		ctx,
		"driver.turn",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("turn.id", turnID),
			attribute.String("turn.thread_id", threadID),
			attribute.String("turn.assistant_id", d.assistantID),
		),
	)
	defer span.End()

	started := time.Now()
	d.logger.Info(ctx, "turn starting", "turn_id", turnID, "thread_id", threadID)

	runID, err := d.StartTurn(ctx, threadID, userText)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "start turn failed")
		d.metrics.IncCounter("driver.turn.error", 1, "stage", "start")
		return nil, err
	}
	res, err := d.Advance(ctx, threadID, runID)
	d.metrics.RecordTimer("driver.turn.duration", time.Since(started), "assistant_id", d.assistantID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "advance failed")
		d.metrics.IncCounter("driver.turn.error", 1, "stage", "advance")
		return nil, err
	}

	d.metrics.RecordGauge("driver.turn.polls", float64(res.Polls), "state", string(res.State))
	switch res.State {
	case runs.StateCompleted:
		d.metrics.IncCounter("driver.turn.completed", 1)
		span.SetStatus(codes.Ok, "ok")
	case runs.StateFailed:
		d.metrics.IncCounter("driver.turn.failed", 1)
		span.SetStatus(codes.Error, "run failed")
	}
	d.logger.Info(ctx, "turn finished",
		"turn_id", turnID,
		"run_id", res.RunID,
		"state", string(res.State),
		"polls", res.Polls,
		"tool_calls", res.ToolCalls,
	)
	return res, nil
}

// wait blocks for the poll interval or until ctx is done. A zero interval
// only checks for cancellation.
func (d *Driver) wait(ctx context.Context) error {
	if d.pollInterval <= 0 {
		if err := ctx.Err(); err != nil {
			return runs.NewServiceError("poll", err)
		}
		return nil
	}
	t := time.NewTimer(d.pollInterval)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return runs.NewServiceError("poll", ctx.Err())
	case <-t.C:
		return nil
	}
}

// fetchStatus retrieves the run status, bounding the fetch with the poll
// timeout when one is configured.
func (d *Driver) fetchStatus(ctx context.Context, threadID, runID string) (*runs.RunStatus, error) {
	if d.pollTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.pollTimeout)
		defer cancel()
	}
	return d.svc.GetRun(ctx, threadID, runID)
}

// serviceFault guarantees callers always see *runs.ServiceError for remote
// faults, wrapping errors from services that did not classify their own.
func serviceFault(op string, err error) error {
	var serr *runs.ServiceError
	if errors.As(err, &serr) {
		return err
	}
	return runs.NewServiceError(op, err)
}
