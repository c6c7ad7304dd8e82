package domain

import "time"

// Role enumerates operator roles within an organization.
type Role string

const (
	RoleOwner   Role = "OWNER"
	RoleManager Role = "MANAGER"
	RoleAgent   Role = "AGENT"
)

// Valid reports whether the role is a known value.
func (r Role) Valid() bool {
	switch r {
	case RoleOwner, RoleManager, RoleAgent:
		return true
	}
	return false
}

// User models an operator inside one organization. CreatedByID points at
// the user who invited them; it is nil only for the bootstrap Owner, and
// the relation forms a forest rooted at Owners.
type User struct {
	ID             string
	OrganizationID string
	Name           string
	Email          string
	PasswordHash   string
	Role           Role
	CreatedByID    *string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Actor is the authenticated caller supplied by the session layer.
type Actor struct {
	ID             string
	Role           Role
	OrganizationID string
}
