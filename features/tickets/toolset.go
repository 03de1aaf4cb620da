package tickets

import (
	"context"

	"github.com/jimacampos/deskagent/runtime/agent/tools"
)

// Tool names are stable contract keys shared with the assistant
// configuration. Renaming one is a breaking change.
const (
	ToolSubmitTicket = "submit_support_ticket"
	ToolCheckStatus  = "check_ticket_status"
	ToolAddComment   = "add_ticket_comment"
	ToolSetPriority  = "set_ticket_priority"
	ToolEscalate     = "escalate_ticket"
	ToolListByEmail  = "list_tickets_by_email"
)

// Tools binds the ticket tool definitions to store. The returned definitions
// are ready to register.
func Tools(store Store) []tools.ToolDefinition {
	return []tools.ToolDefinition{
		{
			Name:        ToolSubmitTicket,
			Description: "Open a new support ticket for a requester.",
			Schema: tools.Schema{
				Properties: map[string]tools.Property{
					"email":       {Type: tools.TypeString, Description: "Requester email address."},
					"description": {Type: tools.TypeString, Description: "What the requester needs help with."},
					"priority":    {Type: tools.TypeInteger, Description: "Urgency from 1 (highest) to 5. Defaults to 3."},
				},
				Required: []string{"email", "description"},
			},
			Handler: func(ctx context.Context, args tools.Args) (any, error) {
				return store.Create(ctx, NewTicket{
					Email:       args.String("email"),
					Description: args.String("description"),
					Priority:    args.IntOr("priority", DefaultPriority),
				})
			},
		},
		{
			Name:        ToolCheckStatus,
			Description: "Look up a ticket by its id and report its current state.",
			Schema: tools.Schema{
				Properties: map[string]tools.Property{
					"ticket_id": {Type: tools.TypeString, Description: "Six-character ticket code."},
				},
				Required: []string{"ticket_id"},
			},
			Handler: func(ctx context.Context, args tools.Args) (any, error) {
				return store.Get(ctx, args.String("ticket_id"))
			},
		},
		{
			Name:        ToolAddComment,
			Description: "Append a comment to an existing ticket.",
			Schema: tools.Schema{
				Properties: map[string]tools.Property{
					"ticket_id": {Type: tools.TypeString, Description: "Six-character ticket code."},
					"comment":   {Type: tools.TypeString, Description: "Comment text to append."},
				},
				Required: []string{"ticket_id", "comment"},
			},
			Handler: func(ctx context.Context, args tools.Args) (any, error) {
				return store.AddComment(ctx, args.String("ticket_id"), args.String("comment"))
			},
		},
		{
			Name:        ToolSetPriority,
			Description: "Change the priority of an existing ticket.",
			Schema: tools.Schema{
				Properties: map[string]tools.Property{
					"ticket_id": {Type: tools.TypeString, Description: "Six-character ticket code."},
					"priority":  {Type: tools.TypeInteger, Description: "New urgency from 1 (highest) to 5."},
				},
				Required: []string{"ticket_id", "priority"},
			},
			Handler: func(ctx context.Context, args tools.Args) (any, error) {
				return store.SetPriority(ctx, args.String("ticket_id"), args.Int("priority"))
			},
		},
		{
			Name:        ToolEscalate,
			Description: "Escalate a ticket to the on-call queue with a reason.",
			Schema: tools.Schema{
				Properties: map[string]tools.Property{
					"ticket_id": {Type: tools.TypeString, Description: "Six-character ticket code."},
					"reason":    {Type: tools.TypeString, Description: "Why the ticket needs escalation."},
				},
				Required: []string{"ticket_id", "reason"},
			},
			Handler: func(ctx context.Context, args tools.Args) (any, error) {
				return store.Escalate(ctx, args.String("ticket_id"), args.String("reason"))
			},
		},
		{
			Name:        ToolListByEmail,
			Description: "List a requester's tickets, newest first.",
			Schema: tools.Schema{
				Properties: map[string]tools.Property{
					"email": {Type: tools.TypeString, Description: "Requester email address."},
					"limit": {Type: tools.TypeInteger, Description: "Maximum tickets to return. Defaults to 20."},
				},
				Required: []string{"email"},
			},
			Handler: func(ctx context.Context, args tools.Args) (any, error) {
				email := args.String("email")
				list, err := store.ListByEmail(ctx, email, args.IntOr("limit", MaxListLimit))
				if err != nil {
					return nil, err
				}
				return &ListView{Email: email, Count: len(list), Tickets: list}, nil
			},
		},
	}
}
