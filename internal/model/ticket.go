package model

import "time"

type TicketStatus string

const (
	TicketOpen       TicketStatus = "open"
	TicketInProgress TicketStatus = "in_progress"
	TicketResolved   TicketStatus = "resolved"
	TicketClosed     TicketStatus = "closed"
)

type Ticket struct {
	ID           int64        `json:"id"`
	TicketNumber string       `json:"ticket_number"`
	Title        string       `json:"title"`
	Description  string       `json:"description"`
	Status       TicketStatus `json:"status"`
	Priority     string       `json:"priority"`
	RequesterID  *int64       `json:"requester_id,omitempty"`
	AssigneeID   *int64       `json:"assignee_id,omitempty"`
	IsDeleted    bool         `json:"is_deleted"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}
