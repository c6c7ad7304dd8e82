package domain

import "time"

// MessageAuthorType indicates who authored a message.
type MessageAuthorType string

const (
	AuthorTypeCustomer MessageAuthorType = "CUSTOMER"
	AuthorTypeAgent    MessageAuthorType = "AGENT"
	AuthorTypeAI       MessageAuthorType = "AI"
)

// Message captures one entry in a ticket thread. AuthorID is nil for AI
// messages.
type Message struct {
	ID         string
	TicketID   string
	AuthorType MessageAuthorType
	AuthorID   *string
	Body       string
	Internal   bool
	CreatedAt  time.Time
}
