// Package dispatch routes pending tool calls from a remote run to registered
// handlers and encodes every outcome as a JSON envelope. Dispatch never
// returns a Go error: unknown tools, argument faults, handler errors, and
// handler panics all surface inside the envelope so the remote run receives
// exactly one output per call.
package dispatch

import (
	"context"
	"encoding/json"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jimacampos/deskagent/runtime/agent/runs"
	"github.com/jimacampos/deskagent/runtime/agent/telemetry"
	"github.com/jimacampos/deskagent/runtime/agent/toolerrors"
	"github.com/jimacampos/deskagent/runtime/agent/tools"
)

type (
	// Dispatcher executes pending tool calls against a registry of tool
	// definitions.
	Dispatcher struct {
		registry *tools.Registry

		logger  telemetry.Logger
		metrics telemetry.Metrics
		tracer  telemetry.Tracer
	}

	// Option configures a Dispatcher.
	Option func(*Dispatcher)

	// Envelope is the JSON document submitted as the output of every tool
	// call. Exactly one of Data and Error is populated.
	Envelope struct {
		OK    bool         `json:"ok"`
		Data  any          `json:"data,omitempty"`
		Error *ErrorDetail `json:"error,omitempty"`
	}

	// ErrorDetail describes a failed call in the payload the assistant reads.
	ErrorDetail struct {
		Type      string `json:"type"`
		Message   string `json:"message"`
		Operation string `json:"operation,omitempty"`
	}
)

// WithLogger configures the dispatcher logger. When nil, the dispatcher uses
// a noop logger.
func WithLogger(logger telemetry.Logger) Option {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithMetrics configures the dispatcher metrics sink. When nil, the
// dispatcher uses a noop sink.
func WithMetrics(metrics telemetry.Metrics) Option {
	return func(d *Dispatcher) {
		if metrics != nil {
			d.metrics = metrics
		}
	}
}

// WithTracer configures the dispatcher tracer. When nil, the dispatcher uses
// a noop tracer.
func WithTracer(tracer telemetry.Tracer) Option {
	return func(d *Dispatcher) {
		if tracer != nil {
			d.tracer = tracer
		}
	}
}

// New returns a dispatcher backed by registry.
func New(registry *tools.Registry, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		registry: registry,
		logger:   telemetry.NewNoopLogger(),
		metrics:  telemetry.NewNoopMetrics(),
		tracer:   telemetry.NewNoopTracer(),
	}
	for _, o := range opts {
		if o != nil {
			o(d)
		}
	}
	return d
}

// Dispatch runs one pending tool call and returns its output record. The
// record's CallID always matches call.CallID and its Payload is always a
// well-formed envelope, success or failure.
func (d *Dispatcher) Dispatch(ctx context.Context, call runs.PendingToolCall) runs.ToolOutputRecord {
	ctx, span := d.tracer.Start(
		ctx,
		"dispatch.tool_call",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("tool.name", call.Name),
			attribute.String("tool.call_id", call.CallID),
		),
	)
	defer span.End()

	d.logger.Debug(ctx, "dispatching tool call", "tool", call.Name, "call_id", call.CallID)
	started := time.Now()
	payload, err := d.run(ctx, call)
	d.metrics.RecordTimer("dispatch.call.duration", time.Since(started), "tool", call.Name)
	if err != nil {
		terr := toolerrors.From(err)
		d.logger.Warn(ctx, "tool call failed",
			"tool", call.Name,
			"call_id", call.CallID,
			"error_type", string(terr.Kind),
			"err", terr.Message,
		)
		d.metrics.IncCounter("dispatch.call.error", 1, "tool", call.Name, "error_type", string(terr.Kind))
		span.RecordError(terr)
		span.SetStatus(codes.Error, string(terr.Kind))
		payload = failurePayload(call.Name, terr)
	} else {
		d.metrics.IncCounter("dispatch.call.success", 1, "tool", call.Name)
		span.SetStatus(codes.Ok, "ok")
	}
	return runs.ToolOutputRecord{CallID: call.CallID, Payload: payload}
}

// DispatchBatch executes calls in order and returns exactly one output record
// per call, positions preserved. Calls are independent: a failure in one
// never short-circuits the rest.
func (d *Dispatcher) DispatchBatch(ctx context.Context, calls []runs.PendingToolCall) []runs.ToolOutputRecord {
	records := make([]runs.ToolOutputRecord, len(calls))
	for i, call := range calls {
		records[i] = d.Dispatch(ctx, call)
	}
	return records
}

func (d *Dispatcher) run(ctx context.Context, call runs.PendingToolCall) (string, error) {
	if d.registry == nil {
		return "", toolerrors.New(toolerrors.KindHandlerError, "tool registry is not configured")
	}
	def, err := d.registry.Resolve(call.Name)
	if err != nil {
		return "", err
	}
	args, err := tools.Decode(call.RawArguments, def)
	if err != nil {
		return "", err
	}
	result, err := d.invoke(ctx, def, args)
	if err != nil {
		return "", err
	}
	payload, err := json.Marshal(Envelope{OK: true, Data: result})
	if err != nil {
		return "", toolerrors.WithCause(toolerrors.KindHandlerError, "tool result is not serializable", err)
	}
	return string(payload), nil
}

// invoke calls the handler, converting panics into handler errors so one
// misbehaving tool cannot abort the turn.
func (d *Dispatcher) invoke(ctx context.Context, def *tools.ToolDefinition, args tools.Args) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = toolerrors.Newf(toolerrors.KindHandlerError, "tool handler panicked: %v", r)
		}
	}()
	return def.Handler(ctx, args)
}

func failurePayload(operation string, terr *toolerrors.ToolError) string {
	payload, _ := json.Marshal(Envelope{OK: false, Error: &ErrorDetail{
		Type:      string(terr.Kind),
		Message:   terr.Message,
		Operation: operation,
	}})
	return string(payload)
}
