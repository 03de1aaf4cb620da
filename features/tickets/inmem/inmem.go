// Package inmem provides the process-local ticket store. It is the default
// backend for demos and the fixture store for tests.
package inmem

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/jimacampos/deskagent/features/tickets"
)

// idAttempts bounds how many times Create retries a colliding ticket code.
const idAttempts = 5

// Store keeps tickets in memory. A single lock serializes mutations so
// concurrent tool batches never interleave partial writes.
type Store struct {
	mu      sync.RWMutex
	tickets map[string]*tickets.Ticket
	order   []string // creation order, oldest first
}

// New returns an empty store.
func New() *Store {
	return &Store{tickets: make(map[string]*tickets.Ticket)}
}

// Create validates the request and stores a new open ticket.
func (s *Store) Create(_ context.Context, nt tickets.NewTicket) (*tickets.Ticket, error) {
	nt, err := nt.Validate()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var id string
	for i := 0; i < idAttempts; i++ {
		candidate := tickets.NewID()
		if _, exists := s.tickets[candidate]; !exists {
			id = candidate
			break
		}
	}
	if id == "" {
		return nil, errors.New("could not allocate a unique ticket id")
	}

	t := &tickets.Ticket{
		ID:          id,
		Email:       nt.Email,
		Description: nt.Description,
		Status:      tickets.StatusOpen,
		Priority:    nt.Priority,
		CreatedAt:   time.Now().UTC(),
	}
	s.tickets[id] = t
	s.order = append(s.order, id)
	return copyTicket(t), nil
}

// Get returns the ticket with the given id, or tickets.ErrNotFound.
func (s *Store) Get(_ context.Context, id string) (*tickets.Ticket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tickets[id]
	if !ok {
		return nil, tickets.ErrNotFound
	}
	return copyTicket(t), nil
}

// AddComment appends a comment and returns the updated ticket.
func (s *Store) AddComment(_ context.Context, id, comment string) (*tickets.Ticket, error) {
	if strings.TrimSpace(comment) == "" {
		return nil, errors.New("comment is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tickets[id]
	if !ok {
		return nil, tickets.ErrNotFound
	}
	t.Comments = append(t.Comments, comment)
	return copyTicket(t), nil
}

// SetPriority changes the priority, rejecting out-of-range values.
func (s *Store) SetPriority(_ context.Context, id string, priority int) (*tickets.Ticket, error) {
	if priority < tickets.MinPriority || priority > tickets.MaxPriority {
		return nil, tickets.ErrInvalidPriority
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tickets[id]
	if !ok {
		return nil, tickets.ErrNotFound
	}
	t.Priority = priority
	return copyTicket(t), nil
}

// Escalate marks the ticket escalated and appends the reason as its last
// comment. Already escalated tickets keep their status; the reason still
// appends.
func (s *Store) Escalate(_ context.Context, id, reason string) (*tickets.Ticket, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, errors.New("escalation reason is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tickets[id]
	if !ok {
		return nil, tickets.ErrNotFound
	}
	t.Status = tickets.StatusEscalated
	t.Comments = append(t.Comments, reason)
	return copyTicket(t), nil
}

// ListByEmail returns the requester's tickets, newest first. The match is
// case-insensitive and the result holds at most tickets.MaxListLimit
// entries.
func (s *Store) ListByEmail(_ context.Context, email string, limit int) ([]*tickets.Ticket, error) {
	lower := strings.ToLower(strings.TrimSpace(email))
	if lower == "" {
		return nil, errors.New("email is required")
	}
	limit = tickets.ClampLimit(limit)

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*tickets.Ticket, 0, limit)
	for i := len(s.order) - 1; i >= 0 && len(out) < limit; i-- {
		t := s.tickets[s.order[i]]
		if strings.ToLower(t.Email) == lower {
			out = append(out, copyTicket(t))
		}
	}
	return out, nil
}

// Reset clears all stored tickets (useful in tests).
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tickets = make(map[string]*tickets.Ticket)
	s.order = nil
}

func copyTicket(t *tickets.Ticket) *tickets.Ticket {
	copied := *t
	if len(t.Comments) > 0 {
		copied.Comments = append([]string(nil), t.Comments...)
	}
	return &copied
}
