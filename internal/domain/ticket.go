package domain

import (
	"fmt"
	"time"
)

// TicketStatus enumerates lifecycle states for tickets. The progression
// OPEN→IN_PROGRESS→WAITING→RESOLVED→CLOSED is conventional; no transition
// is rejected.
type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "OPEN"
	TicketStatusInProgress TicketStatus = "IN_PROGRESS"
	TicketStatusWaiting    TicketStatus = "WAITING"
	TicketStatusResolved   TicketStatus = "RESOLVED"
	TicketStatusClosed     TicketStatus = "CLOSED"
)

// TicketPriority enumerates urgency.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "LOW"
	TicketPriorityMedium TicketPriority = "MEDIUM"
	TicketPriorityHigh   TicketPriority = "HIGH"
	TicketPriorityUrgent TicketPriority = "URGENT"
)

// TicketChannel records how the ticket reached us.
type TicketChannel string

const (
	ChannelEmail  TicketChannel = "EMAIL"
	ChannelChat   TicketChannel = "CHAT"
	ChannelPhone  TicketChannel = "PHONE"
	ChannelSocial TicketChannel = "SOCIAL"
	ChannelPortal TicketChannel = "PORTAL"
)

// Ticket is the aggregate for support requests. Number is an
// organization-scoped sequence; AssigneeID, when set, refers to a user in
// the same organization.
type Ticket struct {
	ID             string
	OrganizationID string
	Number         int64
	CustomerID     string
	AssigneeID     *string
	Subject        string
	Status         TicketStatus
	Priority       TicketPriority
	Channel        TicketChannel
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Reference renders the human-readable ticket code.
func (t *Ticket) Reference() string {
	return fmt.Sprintf("TKT-%d", t.Number)
}
