// Package inmem provides a fixture-backed devops board. It is the default
// source when no live board is configured and doubles as the seed store in
// tests.
package inmem

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/jimacampos/deskagent/features/devops"
)

// Store holds board fixtures in process memory. The zero value is not usable;
// call New or Demo.
type Store struct {
	mu      sync.RWMutex
	builds  map[string]devops.BuildStatus
	deploys map[string][]devops.Deployment
}

var _ devops.Source = (*Store)(nil)

// New returns an empty board. Seed it with SetBuild and RecordDeployment.
func New() *Store {
	return &Store{
		builds:  make(map[string]devops.BuildStatus),
		deploys: make(map[string][]devops.Deployment),
	}
}

// Demo returns a board pre-seeded with a small plausible fixture set so the
// console host answers build and deployment questions out of the box.
func Demo() *Store {
	s := New()
	now := time.Now().UTC()
	s.SetBuild(devops.BuildStatus{
		Pipeline:   "checkout-api",
		State:      "succeeded",
		Branch:     "main",
		Commit:     "4f1c2aa",
		FinishedAt: now.Add(-25 * time.Minute),
	})
	s.SetBuild(devops.BuildStatus{
		Pipeline:   "payments-worker",
		State:      "failed",
		Branch:     "main",
		Commit:     "9d80be1",
		FinishedAt: now.Add(-2 * time.Hour),
	})
	s.SetBuild(devops.BuildStatus{
		Pipeline: "identity-service",
		State:    "running",
		Branch:   "release/2026.08",
		Commit:   "77aa013",
	})
	s.RecordDeployment(devops.Deployment{
		Environment: "staging",
		Service:     "checkout-api",
		Version:     "v2026.08.2",
		State:       "succeeded",
		DeployedAt:  now.Add(-3 * time.Hour),
	})
	s.RecordDeployment(devops.Deployment{
		Environment: "staging",
		Service:     "payments-worker",
		Version:     "v2026.08.4",
		State:       "rolled_back",
		DeployedAt:  now.Add(-90 * time.Minute),
	})
	s.RecordDeployment(devops.Deployment{
		Environment: "production",
		Service:     "checkout-api",
		Version:     "v2026.08.1",
		State:       "succeeded",
		DeployedAt:  now.Add(-26 * time.Hour),
	})
	s.RecordDeployment(devops.Deployment{
		Environment: "staging",
		Service:     "checkout-api",
		Version:     "v2026.08.3",
		State:       "in_progress",
		DeployedAt:  now.Add(-10 * time.Minute),
	})
	return s
}

// SetBuild records the latest build of a pipeline, replacing any previous
// entry. Pipeline names are matched case-insensitively.
func (s *Store) SetBuild(b devops.BuildStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.builds[boardKey(b.Pipeline)] = b
}

// RecordDeployment appends a rollout event to its environment. Events are
// assumed to arrive in order; the latest recorded is the most recent.
func (s *Store) RecordDeployment(d devops.Deployment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := boardKey(d.Environment)
	s.deploys[key] = append(s.deploys[key], d)
}

// BuildStatus implements devops.Source.
func (s *Store) BuildStatus(_ context.Context, pipeline string) (*devops.BuildStatus, error) {
	key := boardKey(pipeline)
	if key == "" {
		return nil, errors.New("pipeline is required")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.builds[key]
	if !ok {
		return nil, devops.ErrUnknownPipeline
	}
	return &b, nil
}

// RecentDeployments implements devops.Source.
func (s *Store) RecentDeployments(_ context.Context, environment string, limit int) ([]devops.Deployment, error) {
	key := boardKey(environment)
	if key == "" {
		return nil, errors.New("environment is required")
	}
	limit = devops.ClampLimit(limit)
	s.mu.RLock()
	defer s.mu.RUnlock()
	events := s.deploys[key]
	out := make([]devops.Deployment, 0, limit)
	for i := len(events) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, events[i])
	}
	return out, nil
}

// Reset discards all fixtures (useful in tests).
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.builds = make(map[string]devops.BuildStatus)
	s.deploys = make(map[string][]devops.Deployment)
}

func boardKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
