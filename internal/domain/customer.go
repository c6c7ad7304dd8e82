package domain

import "time"

// Customer is an end-customer who opens tickets via email or the chat
// widget. Email is unique per organization.
type Customer struct {
	ID             string
	OrganizationID string
	Name           string
	Email          string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
