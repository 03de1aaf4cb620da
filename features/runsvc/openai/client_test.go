package openai

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/packages/pagination"
	"github.com/stretchr/testify/require"

	"github.com/jimacampos/deskagent/runtime/agent/runs"
	"github.com/jimacampos/deskagent/runtime/agent/tools"
)

func TestNewRequiresClient(t *testing.T) {
	_, err := New(Options{})
	require.EqualError(t, err, "assistants client is required")
}

func TestNewFromConfigValidation(t *testing.T) {
	_, err := NewFromConfig(Config{})
	require.EqualError(t, err, "openai api key is required")

	c, err := NewFromConfig(Config{APIKey: "k", BaseURL: "https://gateway.internal/v1"})
	require.NoError(t, err)
	require.NotNil(t, c)
}

func TestCreateThread(t *testing.T) {
	f := &fakeAssistants{threadID: "thread_abc"}
	c := mustNewClient(t, f)

	id, err := c.CreateThread(context.Background())
	require.NoError(t, err)
	require.Equal(t, "thread_abc", id)

	f.threadErr = errors.New("boom")
	_, err = c.CreateThread(context.Background())
	requireServiceError(t, err, "create_thread", f.threadErr)
}

func TestCreateMessage(t *testing.T) {
	f := &fakeAssistants{}
	c := mustNewClient(t, f)

	require.NoError(t, c.CreateMessage(context.Background(), "thread_abc", runs.RoleUser, "vpn is down"))
	require.Equal(t, []string{"thread_abc"}, f.messageThreads)
	require.Len(t, f.messages, 1)
	require.Equal(t, openai.BetaThreadMessageNewParamsRoleUser, f.messages[0].Role)
	require.Equal(t, "vpn is down", f.messages[0].Content.OfString.Value)

	f.messageErr = errors.New("boom")
	err := c.CreateMessage(context.Background(), "thread_abc", runs.RoleUser, "again")
	requireServiceError(t, err, "create_message", f.messageErr)
}

func TestCreateRun(t *testing.T) {
	f := &fakeAssistants{runID: "run_1"}
	c := mustNewClient(t, f)

	id, err := c.CreateRun(context.Background(), "thread_abc", "asst_42")
	require.NoError(t, err)
	require.Equal(t, "run_1", id)
	require.Len(t, f.runParams, 1)
	require.Equal(t, "asst_42", f.runParams[0].AssistantID)

	f.runErr = errors.New("boom")
	_, err = c.CreateRun(context.Background(), "thread_abc", "asst_42")
	requireServiceError(t, err, "create_run", f.runErr)
}

func TestGetRunTranslatesPendingCalls(t *testing.T) {
	f := &fakeAssistants{
		run: &openai.Run{
			ID:     "run_1",
			Status: openai.RunStatusRequiresAction,
			RequiredAction: openai.RunRequiredAction{
				SubmitToolOutputs: openai.RunRequiredActionSubmitToolOutputs{
					ToolCalls: []openai.RequiredActionFunctionToolCall{
						{ID: "call_1", Function: openai.RequiredActionFunctionToolCallFunction{Name: "check_ticket_status", Arguments: `{"ticket_id":"AB12CD"}`}},
						{ID: "call_2", Function: openai.RequiredActionFunctionToolCallFunction{Name: "get_build_status", Arguments: `{"pipeline":"checkout-api"}`}},
					},
				},
			},
		},
	}
	c := mustNewClient(t, f)

	status, err := c.GetRun(context.Background(), "thread_abc", "run_1")
	require.NoError(t, err)
	require.Equal(t, "run_1", status.ID)
	require.Equal(t, runs.StateRequiresAction, status.State)
	require.Len(t, status.PendingCalls, 2)
	require.Equal(t, "call_1", status.PendingCalls[0].CallID)
	require.Equal(t, "check_ticket_status", status.PendingCalls[0].Name)
	require.Equal(t, `{"ticket_id":"AB12CD"}`, status.PendingCalls[0].RawArguments)

	f.retrieveErr = errors.New("boom")
	_, err = c.GetRun(context.Background(), "thread_abc", "run_1")
	requireServiceError(t, err, "get_run", f.retrieveErr)
}

func TestSubmitToolOutputs(t *testing.T) {
	f := &fakeAssistants{}
	c := mustNewClient(t, f)

	outputs := []runs.ToolOutputRecord{
		{CallID: "call_1", Payload: `{"ok":true,"data":{"id":"AB12CD"}}`},
		{CallID: "call_2", Payload: `{"ok":false,"error":{"type":"UnknownTool"}}`},
	}
	require.NoError(t, c.SubmitToolOutputs(context.Background(), "thread_abc", "run_1", outputs))
	require.Len(t, f.submitted, 1)
	got := f.submitted[0].ToolOutputs
	require.Len(t, got, 2)
	require.Equal(t, "call_1", got[0].ToolCallID.Value)
	require.Equal(t, outputs[0].Payload, got[0].Output.Value)
	require.Equal(t, "call_2", got[1].ToolCallID.Value)

	f.submitErr = errors.New("boom")
	err := c.SubmitToolOutputs(context.Background(), "thread_abc", "run_1", outputs)
	requireServiceError(t, err, "submit_tool_outputs", f.submitErr)
}

func TestListMessagesTranslation(t *testing.T) {
	f := &fakeAssistants{
		pages: []*pagination.CursorPage[openai.Message]{{
			Data: []openai.Message{
				sdkMessage("msg_1", "user", "vpn is down", 1755770000),
				sdkMessage("msg_2", "assistant", "I filed ticket AB12CD.", 1755770060),
			},
		}},
	}
	c := mustNewClient(t, f)

	msgs, err := c.ListMessages(context.Background(), "thread_abc", runs.OrderAsc)
	require.NoError(t, err)
	require.Len(t, f.listParams, 1)
	require.Equal(t, openai.BetaThreadMessageListParamsOrderAsc, f.listParams[0].Order)
	require.Len(t, msgs, 2)
	require.Equal(t, runs.RoleUser, msgs[0].Role)
	require.Equal(t, "vpn is down", msgs[0].Text)
	require.Equal(t, time.Unix(1755770000, 0).UTC(), msgs[0].CreatedAt)
	require.Equal(t, runs.RoleAssistant, msgs[1].Role)

	f.listErr = errors.New("boom")
	_, err = c.ListMessages(context.Background(), "thread_abc", runs.OrderAsc)
	requireServiceError(t, err, "list_messages", f.listErr)
}

func TestListMessagesPagesThroughLongThreads(t *testing.T) {
	first := &pagination.CursorPage[openai.Message]{HasMore: true}
	for i := 0; i < transcriptPageSize; i++ {
		first.Data = append(first.Data, sdkMessage(fmt.Sprintf("msg_%d", i), "user", fmt.Sprintf("message %d", i), int64(1755770000+i)))
	}
	second := &pagination.CursorPage[openai.Message]{
		Data: []openai.Message{sdkMessage("msg_tail", "assistant", "tail", 1755780000)},
	}
	f := &fakeAssistants{pages: []*pagination.CursorPage[openai.Message]{first, second}}
	c := mustNewClient(t, f)

	msgs, err := c.ListMessages(context.Background(), "thread_abc", runs.OrderDesc)
	require.NoError(t, err)
	require.Len(t, msgs, transcriptPageSize+1)
	require.Len(t, f.listParams, 2)
	require.Equal(t, "", f.listParams[0].After.Value)
	require.Equal(t, fmt.Sprintf("msg_%d", transcriptPageSize-1), f.listParams[1].After.Value)
	require.Equal(t, "tail", msgs[transcriptPageSize].Text)
}

func TestEnsureAssistant(t *testing.T) {
	f := &fakeAssistants{assistantID: "asst_new"}
	c := mustNewClient(t, f)

	defs := []tools.ToolDefinition{{
		Name:        "check_ticket_status",
		Description: "Look up a ticket.",
		Schema: tools.Schema{
			Properties: map[string]tools.Property{
				"ticket_id": {Type: tools.TypeString, Description: "Six-character ticket code."},
			},
			Required: []string{"ticket_id"},
		},
	}}
	id, err := c.EnsureAssistant(context.Background(), Profile{
		Name:         "deskagent",
		Instructions: "You are an IT helpdesk assistant.",
		Model:        "gpt-4o",
	}, defs)
	require.NoError(t, err)
	require.Equal(t, "asst_new", id)

	require.NotNil(t, f.assistantParams)
	require.Equal(t, "gpt-4o", string(f.assistantParams.Model))
	require.Equal(t, "deskagent", f.assistantParams.Name.Value)
	require.Equal(t, "You are an IT helpdesk assistant.", f.assistantParams.Instructions.Value)
	require.Len(t, f.assistantParams.Tools, 1)
	fn := f.assistantParams.Tools[0].OfFunction
	require.NotNil(t, fn)
	require.Equal(t, "check_ticket_status", fn.Function.Name)
	require.Equal(t, "Look up a ticket.", fn.Function.Description.Value)
	require.Equal(t, "object", fn.Function.Parameters["type"])
}

func TestEnsureAssistantRequiresModel(t *testing.T) {
	c := mustNewClient(t, &fakeAssistants{})
	_, err := c.EnsureAssistant(context.Background(), Profile{Name: "deskagent"}, nil)
	require.EqualError(t, err, "model is required")

	f := &fakeAssistants{assistantErr: errors.New("boom")}
	c = mustNewClient(t, f)
	_, err = c.EnsureAssistant(context.Background(), Profile{Model: "gpt-4o"}, nil)
	requireServiceError(t, err, "create_assistant", f.assistantErr)
}

func TestTranslateRunStateMapping(t *testing.T) {
	cases := []struct {
		name    string
		run     *openai.Run
		state   runs.RunState
		failure string
	}{
		{"queued", &openai.Run{Status: openai.RunStatusQueued}, runs.StateQueued, ""},
		{"in progress", &openai.Run{Status: openai.RunStatusInProgress}, runs.StateInProgress, ""},
		{"cancelling keeps polling", &openai.Run{Status: openai.RunStatusCancelling}, runs.StateInProgress, ""},
		{"completed", &openai.Run{Status: openai.RunStatusCompleted}, runs.StateCompleted, ""},
		{"failed with last error", &openai.Run{
			Status:    openai.RunStatusFailed,
			LastError: openai.RunLastError{Code: "rate_limit_exceeded", Message: "too many requests"},
		}, runs.StateFailed, "rate_limit_exceeded: too many requests"},
		{"failed without detail", &openai.Run{Status: openai.RunStatusFailed}, runs.StateFailed, "run failed"},
		{"cancelled", &openai.Run{Status: openai.RunStatusCancelled}, runs.StateFailed, "run was cancelled"},
		{"expired", &openai.Run{Status: openai.RunStatusExpired}, runs.StateFailed, "run expired before completion"},
		{"incomplete", &openai.Run{Status: openai.RunStatusIncomplete}, runs.StateFailed, "run ended incomplete"},
		{"unknown status", &openai.Run{Status: openai.RunStatus("mystery")}, runs.StateFailed, `unrecognized remote run status "mystery"`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status := translateRun(tc.run)
			require.Equal(t, tc.state, status.State)
			require.Equal(t, tc.failure, status.FailureMessage)
		})
	}
}

func TestTranslateRunRequiresActionWithoutCalls(t *testing.T) {
	status := translateRun(&openai.Run{Status: openai.RunStatusRequiresAction})
	require.Equal(t, runs.StateRequiresAction, status.State)
	require.Empty(t, status.PendingCalls)
}

func mustNewClient(t *testing.T, f *fakeAssistants) *Client {
	t.Helper()
	c, err := New(Options{Client: f})
	require.NoError(t, err)
	return c
}

func requireServiceError(t *testing.T, err error, op string, cause error) {
	t.Helper()
	var svcErr *runs.ServiceError
	require.ErrorAs(t, err, &svcErr)
	require.Equal(t, op, svcErr.Op)
	require.ErrorIs(t, err, cause)
}

func sdkMessage(id, role, text string, createdAt int64) openai.Message {
	return openai.Message{
		ID:        id,
		Role:      openai.MessageRole(role),
		CreatedAt: createdAt,
		Content: []openai.MessageContentUnion{
			{Type: "text", Text: openai.Text{Value: text}},
		},
	}
}

// fakeAssistants scripts the SDK surface the adapter touches and records what
// it was asked.
type fakeAssistants struct {
	threadID  string
	threadErr error

	messages       []openai.BetaThreadMessageNewParams
	messageThreads []string
	messageErr     error

	runID     string
	runParams []openai.BetaThreadRunNewParams
	runErr    error

	run         *openai.Run
	retrieveErr error

	submitted []openai.BetaThreadRunSubmitToolOutputsParams
	submitErr error

	pages      []*pagination.CursorPage[openai.Message]
	listParams []openai.BetaThreadMessageListParams
	listErr    error

	assistantID     string
	assistantParams *openai.BetaAssistantNewParams
	assistantErr    error
}

func (f *fakeAssistants) CreateThread(_ context.Context) (*openai.Thread, error) {
	if f.threadErr != nil {
		return nil, f.threadErr
	}
	return &openai.Thread{ID: f.threadID}, nil
}

func (f *fakeAssistants) CreateMessage(_ context.Context, threadID string, params openai.BetaThreadMessageNewParams) (*openai.Message, error) {
	if f.messageErr != nil {
		return nil, f.messageErr
	}
	f.messageThreads = append(f.messageThreads, threadID)
	f.messages = append(f.messages, params)
	return &openai.Message{}, nil
}

func (f *fakeAssistants) CreateRun(_ context.Context, _ string, params openai.BetaThreadRunNewParams) (*openai.Run, error) {
	if f.runErr != nil {
		return nil, f.runErr
	}
	f.runParams = append(f.runParams, params)
	return &openai.Run{ID: f.runID}, nil
}

func (f *fakeAssistants) RetrieveRun(_ context.Context, _, _ string) (*openai.Run, error) {
	if f.retrieveErr != nil {
		return nil, f.retrieveErr
	}
	return f.run, nil
}

func (f *fakeAssistants) SubmitToolOutputs(_ context.Context, _, _ string, params openai.BetaThreadRunSubmitToolOutputsParams) (*openai.Run, error) {
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	f.submitted = append(f.submitted, params)
	return &openai.Run{}, nil
}

func (f *fakeAssistants) ListMessages(_ context.Context, _ string, params openai.BetaThreadMessageListParams) (*pagination.CursorPage[openai.Message], error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	f.listParams = append(f.listParams, params)
	if len(f.listParams) > len(f.pages) {
		return &pagination.CursorPage[openai.Message]{}, nil
	}
	return f.pages[len(f.listParams)-1], nil
}

func (f *fakeAssistants) CreateAssistant(_ context.Context, params openai.BetaAssistantNewParams) (*openai.Assistant, error) {
	if f.assistantErr != nil {
		return nil, f.assistantErr
	}
	f.assistantParams = &params
	return &openai.Assistant{ID: f.assistantID}, nil
}
