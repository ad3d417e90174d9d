package dto

import (
	"time"

	"github.com/spec-kit/ticket-lifecycle/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Topic string `json:"topic" validate:"required"`
	Text  string `json:"text" validate:"required"`
}

// CompleteTicketRequest payload.
type CompleteTicketRequest struct {
	Solution string `json:"solution" validate:"required"`
}

// CancelTicketRequest payload.
type CancelTicketRequest struct {
	CancellationReason string `json:"cancellationReason" validate:"required"`
}

// TicketListQuery captures the optional creation date window.
type TicketListQuery struct {
	StartDate string `query:"startDate"`
	EndDate   string `query:"endDate"`
}

// TicketResponse is the wire shape of a ticket.
type TicketResponse struct {
	ID                 string              `json:"id"`
	Topic              string              `json:"topic"`
	Text               string              `json:"text"`
	Status             domain.TicketStatus `json:"status"`
	Solution           *string             `json:"solution,omitempty"`
	CancellationReason *string             `json:"cancellationReason,omitempty"`
	CreatedAt          time.Time           `json:"createdAt"`
	UpdatedAt          time.Time           `json:"updatedAt"`
}

// MessageResponse carries a human readable outcome.
type MessageResponse struct {
	Message string `json:"message"`
}

// NewTicketResponse maps a domain ticket to its wire shape.
func NewTicketResponse(ticket *domain.Ticket) TicketResponse {
	return TicketResponse{
		ID:                 ticket.ID,
		Topic:              ticket.Topic,
		Text:               ticket.Text,
		Status:             ticket.Status,
		Solution:           ticket.Solution,
		CancellationReason: ticket.CancellationReason,
		CreatedAt:          ticket.CreatedAt,
		UpdatedAt:          ticket.UpdatedAt,
	}
}

// NewTicketListResponse maps tickets, never returning nil.
func NewTicketListResponse(tickets []domain.Ticket) []TicketResponse {
	items := make([]TicketResponse, 0, len(tickets))
	for i := range tickets {
		items = append(items, NewTicketResponse(&tickets[i]))
	}
	return items
}
