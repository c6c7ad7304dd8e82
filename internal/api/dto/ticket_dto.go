package dto

import (
	"time"

	"github.com/wrrk/support/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	CustomerID string                `json:"customer_id"`
	Subject    string                `json:"subject"`
	Priority   domain.TicketPriority `json:"priority"`
	Channel    domain.TicketChannel  `json:"channel"`
	AssigneeID *string               `json:"assignee_id"`
}

// UpdateTicketRequest payload; omitted fields are left untouched.
type UpdateTicketRequest struct {
	Subject  *string                `json:"subject"`
	Status   *domain.TicketStatus   `json:"status"`
	Priority *domain.TicketPriority `json:"priority"`
}

// AssignTicketRequest payload.
type AssignTicketRequest struct {
	AssigneeID string `json:"assignee_id"`
}

// CreateMessageRequest payload.
type CreateMessageRequest struct {
	Body     string `json:"body"`
	Internal bool   `json:"internal"`
}

// TicketResponse representation.
type TicketResponse struct {
	ID         string                `json:"id"`
	Reference  string                `json:"reference"`
	Number     int64                 `json:"number"`
	CustomerID string                `json:"customer_id"`
	AssigneeID *string               `json:"assignee_id"`
	Subject    string                `json:"subject"`
	Status     domain.TicketStatus   `json:"status"`
	Priority   domain.TicketPriority `json:"priority"`
	Channel    domain.TicketChannel  `json:"channel"`
	CreatedAt  time.Time             `json:"created_at"`
	UpdatedAt  time.Time             `json:"updated_at"`
}

// MessageResponse represents a thread entry.
type MessageResponse struct {
	ID         string                   `json:"id"`
	TicketID   string                   `json:"ticket_id"`
	AuthorType domain.MessageAuthorType `json:"author_type"`
	AuthorID   *string                  `json:"author_id"`
	Body       string                   `json:"body"`
	Internal   bool                     `json:"internal"`
	CreatedAt  time.Time                `json:"created_at"`
}

// AuditLogResponse represents one trail entry.
type AuditLogResponse struct {
	ID         string                 `json:"id"`
	TicketID   *string                `json:"ticket_id"`
	ActorID    *string                `json:"actor_id"`
	ChangeType domain.AuditChangeType `json:"change_type"`
	OldValue   map[string]any         `json:"old_value"`
	NewValue   map[string]any         `json:"new_value"`
	CreatedAt  time.Time              `json:"created_at"`
}
