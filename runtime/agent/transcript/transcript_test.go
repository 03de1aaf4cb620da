package transcript

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jimacampos/deskagent/runtime/agent/runs"
)

// listOnlyService serves canned messages, honoring the requested order the
// way the real adapters do.
type listOnlyService struct {
	msgs    []runs.Message // chronological
	listErr error
	fetches int
}

func (s *listOnlyService) CreateThread(context.Context) (string, error) { return "", nil }
func (s *listOnlyService) CreateMessage(context.Context, string, runs.Role, string) error {
	return nil
}
func (s *listOnlyService) CreateRun(context.Context, string, string) (string, error) {
	return "", nil
}
func (s *listOnlyService) GetRun(context.Context, string, string) (*runs.RunStatus, error) {
	return nil, nil
}
func (s *listOnlyService) SubmitToolOutputs(context.Context, string, string, []runs.ToolOutputRecord) error {
	return nil
}

func (s *listOnlyService) ListMessages(_ context.Context, _ string, order runs.Order) ([]runs.Message, error) {
	s.fetches++
	if s.listErr != nil {
		return nil, s.listErr
	}
	out := make([]runs.Message, len(s.msgs))
	copy(out, s.msgs)
	if order == runs.OrderDesc {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	return out, nil
}

func at(sec int) time.Time {
	return time.Date(2025, 11, 3, 9, 0, sec, 0, time.UTC)
}

func TestNewReaderRequiresService(t *testing.T) {
	_, err := NewReader(nil)
	require.Error(t, err)
}

func TestLatestAssistantMessage(t *testing.T) {
	svc := &listOnlyService{msgs: []runs.Message{
		{Role: runs.RoleUser, Text: "my vpn is down", CreatedAt: at(1)},
		{Role: runs.RoleAssistant, Text: "I opened ticket AB12CD.", CreatedAt: at(2)},
		{Role: runs.RoleUser, Text: "thanks, any update?", CreatedAt: at(3)},
		{Role: runs.RoleAssistant, Text: "AB12CD is still open.", CreatedAt: at(4)},
	}}
	r, err := NewReader(svc)
	require.NoError(t, err)

	text, ok, err := r.LatestAssistantMessage(context.Background(), "thread_1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "AB12CD is still open.", text)
}

func TestLatestAssistantMessageNoneYet(t *testing.T) {
	svc := &listOnlyService{msgs: []runs.Message{
		{Role: runs.RoleUser, Text: "hello?", CreatedAt: at(1)},
	}}
	r, err := NewReader(svc)
	require.NoError(t, err)

	text, ok, err := r.LatestAssistantMessage(context.Background(), "thread_1")
	require.NoError(t, err)
	require.False(t, ok)
	require.Empty(t, text)
}

func TestLatestAssistantMessageSkipsEmptyText(t *testing.T) {
	svc := &listOnlyService{msgs: []runs.Message{
		{Role: runs.RoleAssistant, Text: "here is the summary", CreatedAt: at(1)},
		{Role: runs.RoleAssistant, Text: "", CreatedAt: at(2)},
	}}
	r, err := NewReader(svc)
	require.NoError(t, err)

	text, ok, err := r.LatestAssistantMessage(context.Background(), "thread_1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "here is the summary", text)
}

func TestFullTranscriptChronologicalAndFresh(t *testing.T) {
	svc := &listOnlyService{msgs: []runs.Message{
		{Role: runs.RoleUser, Text: "first", CreatedAt: at(1)},
		{Role: runs.RoleAssistant, Text: "second", CreatedAt: at(2)},
	}}
	r, err := NewReader(svc)
	require.NoError(t, err)

	msgs, err := r.FullTranscript(context.Background(), "thread_1")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	require.Equal(t, "first", msgs[0].Text)
	require.Equal(t, "second", msgs[1].Text)

	// A message appended after the first read shows up on the next one.
	svc.msgs = append(svc.msgs, runs.Message{Role: runs.RoleUser, Text: "third", CreatedAt: at(3)})
	msgs, err = r.FullTranscript(context.Background(), "thread_1")
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	require.Equal(t, "third", msgs[2].Text)
	require.Equal(t, 2, svc.fetches)
}

func TestReaderWrapsListFailures(t *testing.T) {
	cause := errors.New("timeout")
	svc := &listOnlyService{listErr: cause}
	r, err := NewReader(svc)
	require.NoError(t, err)

	_, _, err = r.LatestAssistantMessage(context.Background(), "thread_1")
	var serr *runs.ServiceError
	require.ErrorAs(t, err, &serr)
	require.Equal(t, "list_messages", serr.Op)
	require.ErrorIs(t, err, cause)

	_, err = r.FullTranscript(context.Background(), "thread_1")
	require.ErrorAs(t, err, &serr)
}
