// Package middleware provides reusable runs.Service middlewares such as
// request rate limiting.
package middleware

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/jimacampos/deskagent/runtime/agent/runs"
)

// RateLimit returns a runs.Service middleware that paces all outbound calls
// with a token bucket of rps requests per second and the given burst. The
// limiter is process-local and sits at the provider client boundary; wrap the
// adapter once at startup. A non-positive rps disables pacing and returns the
// service unchanged.
func RateLimit(rps float64, burst int) func(runs.Service) runs.Service {
	if rps <= 0 {
		return func(next runs.Service) runs.Service { return next }
	}
	if burst < 1 {
		burst = 1
	}
	limiter := rate.NewLimiter(rate.Limit(rps), burst)
	return func(next runs.Service) runs.Service {
		if next == nil {
			return nil
		}
		return &limitedService{next: next, limiter: limiter}
	}
}

type limitedService struct {
	next    runs.Service
	limiter *rate.Limiter
}

func (s *limitedService) CreateThread(ctx context.Context) (string, error) {
	if err := s.wait(ctx, "create_thread"); err != nil {
		return "", err
	}
	return s.next.CreateThread(ctx)
}

func (s *limitedService) CreateMessage(ctx context.Context, threadID string, role runs.Role, text string) error {
	if err := s.wait(ctx, "create_message"); err != nil {
		return err
	}
	return s.next.CreateMessage(ctx, threadID, role, text)
}

func (s *limitedService) CreateRun(ctx context.Context, threadID, assistantID string) (string, error) {
	if err := s.wait(ctx, "create_run"); err != nil {
		return "", err
	}
	return s.next.CreateRun(ctx, threadID, assistantID)
}

func (s *limitedService) GetRun(ctx context.Context, threadID, runID string) (*runs.RunStatus, error) {
	if err := s.wait(ctx, "get_run"); err != nil {
		return nil, err
	}
	return s.next.GetRun(ctx, threadID, runID)
}

func (s *limitedService) SubmitToolOutputs(ctx context.Context, threadID, runID string, outputs []runs.ToolOutputRecord) error {
	if err := s.wait(ctx, "submit_tool_outputs"); err != nil {
		return err
	}
	return s.next.SubmitToolOutputs(ctx, threadID, runID, outputs)
}

func (s *limitedService) ListMessages(ctx context.Context, threadID string, order runs.Order) ([]runs.Message, error) {
	if err := s.wait(ctx, "list_messages"); err != nil {
		return nil, err
	}
	return s.next.ListMessages(ctx, threadID, order)
}

// wait blocks until the bucket grants a slot. Cancellation while waiting is
// reported as a service failure for the operation that was about to run.
func (s *limitedService) wait(ctx context.Context, op string) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return runs.NewServiceError(op, err)
	}
	return nil
}
