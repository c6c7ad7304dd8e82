package domain

import "time"

// AuditChangeType captures what changed in an audit entry.
type AuditChangeType string

const (
	ChangeTypeAssignee AuditChangeType = "ASSIGNEE_CHANGE"
	ChangeTypeStatus   AuditChangeType = "STATUS_CHANGE"
	ChangeTypePriority AuditChangeType = "PRIORITY_CHANGE"
	ChangeTypeRole     AuditChangeType = "ROLE_CHANGE"
)

// AuditLog is an immutable trail entry for ticket and user mutations.
type AuditLog struct {
	ID             string
	OrganizationID string
	TicketID       *string
	ActorID        *string
	ChangeType     AuditChangeType
	OldValue       map[string]any
	NewValue       map[string]any
	CreatedAt      time.Time
}
