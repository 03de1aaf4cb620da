// Package openai provides a runs.Service implementation backed by the OpenAI
// Assistants API. It translates thread and run operations using
// github.com/openai/openai-go (Beta Threads) and maps run objects back to the
// generic runs structures.
package openai

import (
	"context"
	"errors"
	"fmt"
	"time"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/pagination"
	"github.com/openai/openai-go/shared"

	"github.com/jimacampos/deskagent/runtime/agent/runs"
	"github.com/jimacampos/deskagent/runtime/agent/tools"
)

// transcriptPageSize is the per-request message window; listings page through
// the thread cursor until the service reports no more.
const transcriptPageSize = 100

// AssistantsClient captures the subset of the openai-go Beta Threads surface
// used by the adapter. The SDK nests these operations under
// Beta.Threads.{Messages,Runs}; the flat shape here keeps fakes cheap.
type AssistantsClient interface {
	CreateThread(ctx context.Context) (*openai.Thread, error)
	CreateMessage(ctx context.Context, threadID string, params openai.BetaThreadMessageNewParams) (*openai.Message, error)
	CreateRun(ctx context.Context, threadID string, params openai.BetaThreadRunNewParams) (*openai.Run, error)
	RetrieveRun(ctx context.Context, threadID, runID string) (*openai.Run, error)
	SubmitToolOutputs(ctx context.Context, threadID, runID string, params openai.BetaThreadRunSubmitToolOutputsParams) (*openai.Run, error)
	ListMessages(ctx context.Context, threadID string, params openai.BetaThreadMessageListParams) (*pagination.CursorPage[openai.Message], error)
	CreateAssistant(ctx context.Context, params openai.BetaAssistantNewParams) (*openai.Assistant, error)
}

// Options configures the OpenAI adapter.
type Options struct {
	Client AssistantsClient
}

// Config carries what NewFromConfig needs to dial the OpenAI API.
type Config struct {
	// APIKey authenticates the client.
	APIKey string
	// BaseURL overrides the API endpoint, e.g. for compatible gateways.
	// Optional.
	BaseURL string
}

// Profile describes the assistant EnsureAssistant creates when no assistant
// id is configured.
type Profile struct {
	// Name labels the assistant.
	Name string
	// Instructions is the assistant system prompt.
	Instructions string
	// Model is the model the assistant runs on.
	Model string
}

// Client implements runs.Service via the OpenAI Assistants API.
type Client struct {
	assistants AssistantsClient
}

var _ runs.Service = (*Client)(nil)

// New builds an OpenAI-backed run service from the provided options.
func New(opts Options) (*Client, error) {
	if opts.Client == nil {
		return nil, errors.New("assistants client is required")
	}
	return &Client{assistants: opts.Client}, nil
}

// NewFromConfig constructs a client using the default openai-go HTTP client.
func NewFromConfig(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai api key is required")
	}
	reqOpts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.BaseURL))
	}
	api := openai.NewClient(reqOpts...)
	return New(Options{Client: sdkClient{api: api}})
}

// sdkClient flattens the nested SDK services onto AssistantsClient.
type sdkClient struct {
	api openai.Client
}

func (c sdkClient) CreateThread(ctx context.Context) (*openai.Thread, error) {
	return c.api.Beta.Threads.New(ctx, openai.BetaThreadNewParams{})
}

func (c sdkClient) CreateMessage(ctx context.Context, threadID string, params openai.BetaThreadMessageNewParams) (*openai.Message, error) {
	return c.api.Beta.Threads.Messages.New(ctx, threadID, params)
}

func (c sdkClient) CreateRun(ctx context.Context, threadID string, params openai.BetaThreadRunNewParams) (*openai.Run, error) {
	return c.api.Beta.Threads.Runs.New(ctx, threadID, params)
}

func (c sdkClient) RetrieveRun(ctx context.Context, threadID, runID string) (*openai.Run, error) {
	return c.api.Beta.Threads.Runs.Get(ctx, threadID, runID)
}

func (c sdkClient) SubmitToolOutputs(ctx context.Context, threadID, runID string, params openai.BetaThreadRunSubmitToolOutputsParams) (*openai.Run, error) {
	return c.api.Beta.Threads.Runs.SubmitToolOutputs(ctx, threadID, runID, params)
}

func (c sdkClient) ListMessages(ctx context.Context, threadID string, params openai.BetaThreadMessageListParams) (*pagination.CursorPage[openai.Message], error) {
	return c.api.Beta.Threads.Messages.List(ctx, threadID, params)
}

func (c sdkClient) CreateAssistant(ctx context.Context, params openai.BetaAssistantNewParams) (*openai.Assistant, error) {
	return c.api.Beta.Assistants.New(ctx, params)
}

// CreateThread implements runs.Service.
func (c *Client) CreateThread(ctx context.Context) (string, error) {
	thread, err := c.assistants.CreateThread(ctx)
	if err != nil {
		return "", runs.NewServiceError("create_thread", err)
	}
	return thread.ID, nil
}

// CreateMessage implements runs.Service.
func (c *Client) CreateMessage(ctx context.Context, threadID string, role runs.Role, text string) error {
	_, err := c.assistants.CreateMessage(ctx, threadID, openai.BetaThreadMessageNewParams{
		Role:    openai.BetaThreadMessageNewParamsRole(role),
		Content: openai.BetaThreadMessageNewParamsContentUnion{OfString: openai.String(text)},
	})
	if err != nil {
		return runs.NewServiceError("create_message", err)
	}
	return nil
}

// CreateRun implements runs.Service.
func (c *Client) CreateRun(ctx context.Context, threadID, assistantID string) (string, error) {
	run, err := c.assistants.CreateRun(ctx, threadID, openai.BetaThreadRunNewParams{AssistantID: assistantID})
	if err != nil {
		return "", runs.NewServiceError("create_run", err)
	}
	return run.ID, nil
}

// GetRun implements runs.Service.
func (c *Client) GetRun(ctx context.Context, threadID, runID string) (*runs.RunStatus, error) {
	run, err := c.assistants.RetrieveRun(ctx, threadID, runID)
	if err != nil {
		return nil, runs.NewServiceError("get_run", err)
	}
	return translateRun(run), nil
}

// SubmitToolOutputs implements runs.Service.
func (c *Client) SubmitToolOutputs(ctx context.Context, threadID, runID string, outputs []runs.ToolOutputRecord) error {
	outs := make([]openai.BetaThreadRunSubmitToolOutputsParamsToolOutput, 0, len(outputs))
	for _, o := range outputs {
		outs = append(outs, openai.BetaThreadRunSubmitToolOutputsParamsToolOutput{
			ToolCallID: openai.String(o.CallID),
			Output:     openai.String(o.Payload),
		})
	}
	_, err := c.assistants.SubmitToolOutputs(ctx, threadID, runID,
		openai.BetaThreadRunSubmitToolOutputsParams{ToolOutputs: outs})
	if err != nil {
		return runs.NewServiceError("submit_tool_outputs", err)
	}
	return nil
}

// ListMessages implements runs.Service.
func (c *Client) ListMessages(ctx context.Context, threadID string, order runs.Order) ([]runs.Message, error) {
	params := openai.BetaThreadMessageListParams{
		Order: openai.BetaThreadMessageListParamsOrder(order),
		Limit: openai.Int(transcriptPageSize),
	}
	out := make([]runs.Message, 0, transcriptPageSize)
	for {
		page, err := c.assistants.ListMessages(ctx, threadID, params)
		if err != nil {
			return nil, runs.NewServiceError("list_messages", err)
		}
		for _, m := range page.Data {
			out = append(out, translateMessage(m))
		}
		if !page.HasMore || len(page.Data) == 0 {
			return out, nil
		}
		params.After = openai.String(page.Data[len(page.Data)-1].ID)
	}
}

// EnsureAssistant creates an assistant advertising defs and returns its id.
// Call it once at startup when no assistant id is configured.
func (c *Client) EnsureAssistant(ctx context.Context, profile Profile, defs []tools.ToolDefinition) (string, error) {
	if profile.Model == "" {
		return "", errors.New("model is required")
	}
	params := openai.BetaAssistantNewParams{
		Model: shared.ChatModel(profile.Model),
		Tools: assistantTools(defs),
	}
	if profile.Name != "" {
		params.Name = openai.String(profile.Name)
	}
	if profile.Instructions != "" {
		params.Instructions = openai.String(profile.Instructions)
	}
	assistant, err := c.assistants.CreateAssistant(ctx, params)
	if err != nil {
		return "", runs.NewServiceError("create_assistant", err)
	}
	return assistant.ID, nil
}

func assistantTools(defs []tools.ToolDefinition) []openai.AssistantToolUnionParam {
	out := make([]openai.AssistantToolUnionParam, 0, len(defs))
	for _, def := range defs {
		fn := shared.FunctionDefinitionParam{
			Name:       def.Name,
			Parameters: shared.FunctionParameters(def.Schema.Document()),
		}
		if def.Description != "" {
			fn.Description = openai.String(def.Description)
		}
		out = append(out, openai.AssistantToolUnionParam{
			OfFunction: &openai.FunctionToolParam{Function: fn},
		})
	}
	return out
}

// translateRun maps an SDK run object onto the generic status shape. The
// mapping is total: remote statuses with no local counterpart land on
// StateFailed with an explanatory message rather than panicking mid-poll.
func translateRun(run *openai.Run) *runs.RunStatus {
	status := &runs.RunStatus{ID: run.ID}
	switch run.Status {
	case openai.RunStatusQueued:
		status.State = runs.StateQueued
	case openai.RunStatusInProgress, openai.RunStatusCancelling:
		// Cancelling still executes remotely; keep polling until terminal.
		status.State = runs.StateInProgress
	case openai.RunStatusRequiresAction:
		status.State = runs.StateRequiresAction
		status.PendingCalls = pendingCalls(run)
	case openai.RunStatusCompleted:
		status.State = runs.StateCompleted
	case openai.RunStatusFailed:
		status.State = runs.StateFailed
		status.FailureMessage = lastError(run)
	case openai.RunStatusCancelled:
		status.State = runs.StateFailed
		status.FailureMessage = "run was cancelled"
	case openai.RunStatusExpired:
		status.State = runs.StateFailed
		status.FailureMessage = "run expired before completion"
	case openai.RunStatusIncomplete:
		status.State = runs.StateFailed
		status.FailureMessage = "run ended incomplete"
	default:
		status.State = runs.StateFailed
		status.FailureMessage = fmt.Sprintf("unrecognized remote run status %q", run.Status)
	}
	return status
}

func pendingCalls(run *openai.Run) []runs.PendingToolCall {
	calls := run.RequiredAction.SubmitToolOutputs.ToolCalls
	out := make([]runs.PendingToolCall, 0, len(calls))
	for _, call := range calls {
		out = append(out, runs.PendingToolCall{
			CallID:       call.ID,
			Name:         call.Function.Name,
			RawArguments: call.Function.Arguments,
		})
	}
	return out
}

func lastError(run *openai.Run) string {
	le := run.LastError
	if le.Code == "" && le.Message == "" {
		return "run failed"
	}
	if le.Code == "" {
		return le.Message
	}
	return fmt.Sprintf("%s: %s", le.Code, le.Message)
}

func translateMessage(m openai.Message) runs.Message {
	var text string
	for _, block := range m.Content {
		if block.Type == "text" {
			text += block.Text.Value
		}
	}
	return runs.Message{
		Role:      runs.Role(m.Role),
		Text:      text,
		CreatedAt: time.Unix(m.CreatedAt, 0).UTC(),
	}
}
