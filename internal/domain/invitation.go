package domain

import "time"

// Invitation is a pending offer to join an organization. Accepting it
// creates a user whose CreatedByID is the inviter, which is how the
// created-by forest grows.
type Invitation struct {
	ID             string
	OrganizationID string
	InviterID      string
	Email          string
	Role           Role
	Token          string
	ExpiresAt      time.Time
	AcceptedAt     *time.Time
	CreatedAt      time.Time
}

// Expired reports whether the invitation can no longer be accepted.
func (i *Invitation) Expired(now time.Time) bool {
	return now.After(i.ExpiresAt)
}
