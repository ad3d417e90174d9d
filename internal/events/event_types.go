package events

import (
	"time"

	"github.com/spec-kit/ticket-lifecycle/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated        EventType = "ticket_created"
	EventTicketStatusChanged  EventType = "ticket_status_changed"
	EventTicketsBulkCancelled EventType = "tickets_bulk_cancelled"
)

// AllEventTypes lists every type the service publishes.
var AllEventTypes = []EventType{
	EventTicketCreated,
	EventTicketStatusChanged,
	EventTicketsBulkCancelled,
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  string      `json:"ticket_id,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	Topic  string              `json:"topic"`
	Status domain.TicketStatus `json:"status"`
}

// TicketStatusChangedPayload payload.
type TicketStatusChangedPayload struct {
	NewStatus          domain.TicketStatus `json:"new_status"`
	Solution           *string             `json:"solution,omitempty"`
	CancellationReason *string             `json:"cancellation_reason,omitempty"`
}

// TicketsBulkCancelledPayload payload.
type TicketsBulkCancelledPayload struct {
	FromStatus domain.TicketStatus `json:"from_status"`
	Count      int64               `json:"count"`
}
