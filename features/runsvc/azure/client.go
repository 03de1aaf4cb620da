// Package azure provides a runs.Service implementation backed by the Azure
// OpenAI Assistants API. It translates thread and run operations using
// github.com/sashabaranov/go-openai and maps run objects back to the generic
// runs structures.
package azure

import (
	"context"
	"errors"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/jimacampos/deskagent/runtime/agent/runs"
	"github.com/jimacampos/deskagent/runtime/agent/tools"
)

// transcriptPageSize is the per-request message window; listings page through
// the thread until a short page comes back.
const transcriptPageSize = 100

// AssistantsClient captures the subset of the go-openai client used by the
// adapter.
type AssistantsClient interface {
	CreateThread(ctx context.Context, request openai.ThreadRequest) (openai.Thread, error)
	CreateMessage(ctx context.Context, threadID string, request openai.MessageRequest) (openai.Message, error)
	CreateRun(ctx context.Context, threadID string, request openai.RunRequest) (openai.Run, error)
	RetrieveRun(ctx context.Context, threadID, runID string) (openai.Run, error)
	SubmitToolOutputs(ctx context.Context, threadID, runID string, request openai.SubmitToolOutputsRequest) (openai.Run, error)
	ListMessage(ctx context.Context, threadID string, limit *int, order *string, after *string, before *string, runID *string) (openai.MessagesList, error)
	CreateAssistant(ctx context.Context, request openai.AssistantRequest) (openai.Assistant, error)
}

// Options configures the Azure adapter.
type Options struct {
	Client AssistantsClient
}

// Config carries what NewFromConfig needs to dial an Azure OpenAI resource.
type Config struct {
	// Endpoint is the resource endpoint, e.g. https://acme.openai.azure.com.
	Endpoint string
	// APIKey authenticates against the resource.
	APIKey string
	// APIVersion overrides the service API version. Optional.
	APIVersion string
}

// Profile describes the assistant EnsureAssistant creates when no assistant
// id is configured.
type Profile struct {
	// Name labels the assistant in the Azure resource.
	Name string
	// Instructions is the assistant system prompt.
	Instructions string
	// Deployment is the model deployment backing the assistant.
	Deployment string
}

// Client implements runs.Service via the Azure OpenAI Assistants API.
type Client struct {
	assistants AssistantsClient
}

var _ runs.Service = (*Client)(nil)

// New builds an Azure-backed run service from the provided options.
func New(opts Options) (*Client, error) {
	if opts.Client == nil {
		return nil, errors.New("assistants client is required")
	}
	return &Client{assistants: opts.Client}, nil
}

// NewFromConfig constructs a client using the default go-openai HTTP client
// configured for an Azure resource.
func NewFromConfig(cfg Config) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("azure endpoint is required")
	}
	if cfg.APIKey == "" {
		return nil, errors.New("azure api key is required")
	}
	config := openai.DefaultAzureConfig(cfg.APIKey, cfg.Endpoint)
	if cfg.APIVersion != "" {
		config.APIVersion = cfg.APIVersion
	}
	return New(Options{Client: openai.NewClientWithConfig(config)})
}

// CreateThread implements runs.Service.
func (c *Client) CreateThread(ctx context.Context) (string, error) {
	thread, err := c.assistants.CreateThread(ctx, openai.ThreadRequest{})
	if err != nil {
		return "", runs.NewServiceError("create_thread", err)
	}
	return thread.ID, nil
}

// CreateMessage implements runs.Service.
func (c *Client) CreateMessage(ctx context.Context, threadID string, role runs.Role, text string) error {
	_, err := c.assistants.CreateMessage(ctx, threadID, openai.MessageRequest{
		Role:    string(role),
		Content: text,
	})
	if err != nil {
		return runs.NewServiceError("create_message", err)
	}
	return nil
}

// CreateRun implements runs.Service.
func (c *Client) CreateRun(ctx context.Context, threadID, assistantID string) (string, error) {
	run, err := c.assistants.CreateRun(ctx, threadID, openai.RunRequest{AssistantID: assistantID})
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
	outs := make([]openai.ToolOutput, 0, len(outputs))
	for _, o := range outputs {
		outs = append(outs, openai.ToolOutput{ToolCallID: o.CallID, Output: o.Payload})
	}
	_, err := c.assistants.SubmitToolOutputs(ctx, threadID, runID,
		openai.SubmitToolOutputsRequest{ToolOutputs: outs})
	if err != nil {
		return runs.NewServiceError("submit_tool_outputs", err)
	}
	return nil
}

// ListMessages implements runs.Service.
func (c *Client) ListMessages(ctx context.Context, threadID string, order runs.Order) ([]runs.Message, error) {
	ord := string(order)
	out := make([]runs.Message, 0, transcriptPageSize)
	var after *string
	for {
		limit := transcriptPageSize
		list, err := c.assistants.ListMessage(ctx, threadID, &limit, &ord, after, nil, nil)
		if err != nil {
			return nil, runs.NewServiceError("list_messages", err)
		}
		for _, m := range list.Messages {
			out = append(out, translateMessage(m))
		}
		if len(list.Messages) < transcriptPageSize || list.LastID == nil {
			return out, nil
		}
		after = list.LastID
	}
}

// EnsureAssistant creates an assistant advertising defs and returns its id.
// Call it once at startup when no assistant id is configured.
func (c *Client) EnsureAssistant(ctx context.Context, profile Profile, defs []tools.ToolDefinition) (string, error) {
	if profile.Deployment == "" {
		return "", errors.New("model deployment is required")
	}
	req := openai.AssistantRequest{
		Model: profile.Deployment,
		Tools: assistantTools(defs),
	}
	if profile.Name != "" {
		req.Name = &profile.Name
	}
	if profile.Instructions != "" {
		req.Instructions = &profile.Instructions
	}
	assistant, err := c.assistants.CreateAssistant(ctx, req)
	if err != nil {
		return "", runs.NewServiceError("create_assistant", err)
	}
	return assistant.ID, nil
}

func assistantTools(defs []tools.ToolDefinition) []openai.AssistantTool {
	out := make([]openai.AssistantTool, 0, len(defs))
	for _, def := range defs {
		out = append(out, openai.AssistantTool{
			Type: openai.AssistantToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        def.Name,
				Description: def.Description,
				Parameters:  def.Schema.Document(),
			},
		})
	}
	return out
}

// translateRun maps an SDK run object onto the generic status shape. The
// mapping is total: remote statuses with no local counterpart land on
// StateFailed with an explanatory message rather than panicking mid-poll.
func translateRun(run openai.Run) *runs.RunStatus {
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

func pendingCalls(run openai.Run) []runs.PendingToolCall {
	if run.RequiredAction == nil || run.RequiredAction.SubmitToolOutputs == nil {
		return nil
	}
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

func lastError(run openai.Run) string {
	if run.LastError == nil || (run.LastError.Code == "" && run.LastError.Message == "") {
		return "run failed"
	}
	if run.LastError.Code == "" {
		return run.LastError.Message
	}
	return fmt.Sprintf("%s: %s", run.LastError.Code, run.LastError.Message)
}

func translateMessage(m openai.Message) runs.Message {
	var text string
	for _, part := range m.Content {
		if part.Text != nil {
			text += part.Text.Value
		}
	}
	return runs.Message{
		Role:      runs.Role(m.Role),
		Text:      text,
		CreatedAt: time.Unix(int64(m.CreatedAt), 0).UTC(),
	}
}
