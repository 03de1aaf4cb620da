// Package tickets defines the support ticket entity, the storage contract
// shared by its backends, and the tool definitions exposing ticket operations
// to the assistant.
package tickets

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// StatusOpen is the state of every freshly created ticket.
	StatusOpen Status = "open"
	// StatusEscalated marks tickets raised to the escalation queue. The
	// transition is one-way.
	StatusEscalated Status = "escalated"
)

const (
	// MinPriority is the most urgent priority.
	MinPriority = 1
	// MaxPriority is the least urgent priority.
	MaxPriority = 5
	// DefaultPriority applies when a creation request names none.
	DefaultPriority = 3
	// MaxListLimit caps how many tickets a listing returns.
	MaxListLimit = 20
)

type (
	// Status is the lifecycle state of a ticket.
	Status string

	// Ticket is a support request. Tickets are created open, mutated in
	// place by the comment/priority/escalate operations, and never deleted.
	Ticket struct {
		ID          string    `json:"id"`
		Email       string    `json:"email"`
		Description string    `json:"description"`
		Status      Status    `json:"status"`
		Priority    int       `json:"priority"`
		Comments    []string  `json:"comments,omitempty"`
		CreatedAt   time.Time `json:"created_at"`
	}

	// NewTicket is a creation request.
	NewTicket struct {
		Email       string
		Description string
		Priority    int
	}

	// ListView is the payload returned by the listing tool.
	ListView struct {
		Email   string    `json:"email"`
		Count   int       `json:"count"`
		Tickets []*Ticket `json:"tickets"`
	}

	// Store persists tickets. Implementations serialize mutations per
	// record so concurrent tool batches never interleave partial writes,
	// and readers never observe a partially updated ticket.
	Store interface {
		// Create validates the request and stores a new open ticket.
		Create(ctx context.Context, nt NewTicket) (*Ticket, error)
		// Get returns the ticket with the given id, or ErrNotFound.
		Get(ctx context.Context, id string) (*Ticket, error)
		// AddComment appends a comment and returns the updated ticket.
		AddComment(ctx context.Context, id, comment string) (*Ticket, error)
		// SetPriority changes the priority, rejecting values outside
		// [MinPriority, MaxPriority].
		SetPriority(ctx context.Context, id string, priority int) (*Ticket, error)
		// Escalate marks the ticket escalated and appends the reason as its
		// last comment. Escalating an already escalated ticket appends the
		// new reason without changing the status.
		Escalate(ctx context.Context, id, reason string) (*Ticket, error)
		// ListByEmail returns the requester's tickets, newest first. The
		// email match is case-insensitive and the result is capped at
		// MaxListLimit entries.
		ListByEmail(ctx context.Context, email string, limit int) ([]*Ticket, error)
	}
)

var (
	// ErrNotFound reports an unknown ticket id.
	ErrNotFound = errors.New("ticket not found")

	// ErrInvalidPriority reports a priority outside the allowed range.
	ErrInvalidPriority = fmt.Errorf("ticket priority must be between %d and %d", MinPriority, MaxPriority)
)

// NewID returns a short uppercase ticket code: six hex characters drawn from
// a UUID. Stores retry on the rare collision.
func NewID() string {
	return strings.ToUpper(uuid.NewString()[:6])
}

// Validate normalizes a creation request. The default priority applies when
// none is given; out-of-range priorities are rejected.
func (n NewTicket) Validate() (NewTicket, error) {
	if strings.TrimSpace(n.Email) == "" {
		return NewTicket{}, errors.New("ticket email is required")
	}
	if strings.TrimSpace(n.Description) == "" {
		return NewTicket{}, errors.New("ticket description is required")
	}
	if n.Priority == 0 {
		n.Priority = DefaultPriority
	}
	if n.Priority < MinPriority || n.Priority > MaxPriority {
		return NewTicket{}, ErrInvalidPriority
	}
	return n, nil
}

// ClampLimit normalizes a listing page size to (0, MaxListLimit].
func ClampLimit(limit int) int {
	if limit <= 0 || limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}
