package domain

import "time"

// Organization is the tenancy boundary; every entity and query is scoped
// to exactly one.
type Organization struct {
	ID        string
	Name      string
	TicketSeq int64
	CreatedAt time.Time
	UpdatedAt time.Time
}
