package dto

// InboundEmailRequest is the payload the email ingestion webhook posts.
type InboundEmailRequest struct {
	OrganizationID string `json:"organization_id"`
	From           string `json:"from"`
	Name           string `json:"name"`
	Subject        string `json:"subject"`
	Body           string `json:"body"`
}

// WidgetMessageRequest is a first message from the chat widget.
type WidgetMessageRequest struct {
	OrganizationID string `json:"organization_id"`
	Email          string `json:"email"`
	Name           string `json:"name"`
	Body           string `json:"body"`
}

// WidgetFollowUpRequest is a follow-up on an existing widget ticket.
type WidgetFollowUpRequest struct {
	CustomerID string `json:"customer_id"`
	Body       string `json:"body"`
}

// IntakeResponse reports the AI-first outcome.
type IntakeResponse struct {
	Resolved bool            `json:"resolved"`
	Response string          `json:"response,omitempty"`
	Ticket   *TicketResponse `json:"ticket,omitempty"`
}
