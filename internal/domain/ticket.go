package domain

import "time"

// TicketStatus is the lifecycle state of a support ticket.
type TicketStatus string

const (
	TicketStatusOpen   TicketStatus = "open"
	TicketStatusClosed TicketStatus = "closed"
)

// DefaultTicketCategory is used when a ticket is submitted without a category.
const DefaultTicketCategory = "general"

// Ticket is a customer support request.
type Ticket struct {
	ID          int64        `json:"id" db:"id"`
	CustomerID  string       `json:"-" db:"customer_id"`
	Subject     string       `json:"subject" db:"subject"`
	Message     string       `json:"message" db:"message"`
	Category    string       `json:"category" db:"category"`
	Status      TicketStatus `json:"status" db:"status"`
	AIResponded bool         `json:"ai_responded" db:"ai_responded"`
	CreatedAt   time.Time    `json:"created_at" db:"created_at"`
	ResolvedAt  *time.Time   `json:"-" db:"resolved_at"`
}

// TicketResponse is a reply in a ticket thread.
type TicketResponse struct {
	ID        int64     `json:"-" db:"id"`
	TicketID  int64     `json:"-" db:"ticket_id"`
	FromAgent bool      `json:"from_agent" db:"from_agent"`
	Message   string    `json:"message" db:"message"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// CreateTicketRequest is the request body for submitting a ticket.
type CreateTicketRequest struct {
	Subject  string `json:"subject"`
	Message  string `json:"message"`
	Category string `json:"category"`
}

// CreateTicketResponse is returned after a ticket is submitted.
type CreateTicketResponse struct {
	TicketID    int64        `json:"ticket_id"`
	Status      TicketStatus `json:"status"`
	AIResponded bool         `json:"ai_responded"`
	Message     string       `json:"message"`
}

// TicketList wraps the ticket listing response.
type TicketList struct {
	Tickets []*Ticket `json:"tickets"`
}

// TicketResponseList wraps the ticket thread response.
type TicketResponseList struct {
	Responses []*TicketResponse `json:"responses"`
}
