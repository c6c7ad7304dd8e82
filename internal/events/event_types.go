package events

import (
	"time"

	"github.com/wrrk/support/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated       EventType = "ticket_created"
	EventTicketAssigned      EventType = "ticket_assigned"
	EventTicketEscalated     EventType = "ticket_escalated"
	EventTicketStatusChanged EventType = "ticket_status_changed"
	EventTicketMessageAdded  EventType = "ticket_message_added"
	EventTriageResolved      EventType = "triage_resolved"
	EventUserJoined          EventType = "user_joined"
)

// Actor encapsulates who triggered an event. System events (AI triage,
// auto-assignment) carry no user ID.
type Actor struct {
	UserID     *string `json:"user_id,omitempty"`
	CustomerID *string `json:"customer_id,omitempty"`
	System     bool    `json:"system,omitempty"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID             string      `json:"id"`
	Type           EventType   `json:"type"`
	OrganizationID string      `json:"organization_id"`
	TicketID       string      `json:"ticket_id,omitempty"`
	Actor          Actor       `json:"actor"`
	Timestamp      time.Time   `json:"timestamp"`
	Payload        interface{} `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	Number     int64                 `json:"number"`
	CustomerID string                `json:"customer_id"`
	Channel    domain.TicketChannel  `json:"channel"`
	Priority   domain.TicketPriority `json:"priority"`
	Subject    string                `json:"subject"`
}

// TicketAssignedPayload payload.
type TicketAssignedPayload struct {
	OldAssigneeID *string `json:"old_assignee_id,omitempty"`
	AssigneeID    *string `json:"assignee_id,omitempty"`
	AutoAssigned  bool    `json:"auto_assigned,omitempty"`
}

// TicketEscalatedPayload payload.
type TicketEscalatedPayload struct {
	FromAgentID string `json:"from_agent_id"`
	ToManagerID string `json:"to_manager_id"`
}

// TicketStatusChangedPayload payload.
type TicketStatusChangedPayload struct {
	OldStatus domain.TicketStatus `json:"old_status"`
	NewStatus domain.TicketStatus `json:"new_status"`
}

// TicketMessageAddedPayload payload.
type TicketMessageAddedPayload struct {
	MessageID   string                   `json:"message_id"`
	AuthorType  domain.MessageAuthorType `json:"author_type"`
	AuthorID    *string                  `json:"author_id,omitempty"`
	Internal    bool                     `json:"internal,omitempty"`
	BodyPreview string                   `json:"body_preview"`
}

// TriageResolvedPayload payload, emitted when the AI gate answered a
// customer message without creating a ticket.
type TriageResolvedPayload struct {
	CustomerID string               `json:"customer_id"`
	Channel    domain.TicketChannel `json:"channel"`
	Confidence float64              `json:"confidence"`
}
