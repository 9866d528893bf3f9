package domain

import "time"

// TicketStatus is the lifecycle state of a support ticket.
type TicketStatus int

const (
	TicketStatusOpen   TicketStatus = 0
	TicketStatusClosed TicketStatus = 99
)

// SupportTicket is a ticket as stored by the ticket service.
type SupportTicket struct {
	ID                string       `json:"id" dynamodbav:"id"`
	UserID            string       `json:"userId" dynamodbav:"userId"`
	OpenDate          time.Time    `json:"openDate" dynamodbav:"openDate"`
	Status            TicketStatus `json:"status" dynamodbav:"status"`
	StatusDescription string       `json:"statusDescription,omitempty" dynamodbav:"statusDescription,omitempty"`
	Description       string       `json:"description" dynamodbav:"description"`
	LastUpdate        time.Time    `json:"lastUpdate" dynamodbav:"lastUpdate"`
}
