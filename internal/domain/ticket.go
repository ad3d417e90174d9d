package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusNew        TicketStatus = "NEW"
	TicketStatusInProgress TicketStatus = "IN_PROGRESS"
	TicketStatusCompleted  TicketStatus = "COMPLETED"
	TicketStatusCancelled  TicketStatus = "CANCELLED"
)

// Valid reports whether s is one of the known statuses.
func (s TicketStatus) Valid() bool {
	switch s {
	case TicketStatusNew, TicketStatusInProgress, TicketStatusCompleted, TicketStatusCancelled:
		return true
	}
	return false
}

// Ticket is the aggregate for support requests.
type Ticket struct {
	ID                 string
	Topic              string
	Text               string
	Status             TicketStatus
	Solution           *string
	CancellationReason *string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Clone returns a deep copy so callers never share optional field pointers.
func (t Ticket) Clone() Ticket {
	out := t
	if t.Solution != nil {
		s := *t.Solution
		out.Solution = &s
	}
	if t.CancellationReason != nil {
		r := *t.CancellationReason
		out.CancellationReason = &r
	}
	return out
}

// NewTicket builds a fresh NEW ticket stamped with now. The ID is left for the store.
func NewTicket(topic, text string, now time.Time) *Ticket {
	ts := Timestamp(now)
	return &Ticket{
		Topic:     topic,
		Text:      text,
		Status:    TicketStatusNew,
		CreatedAt: ts,
		UpdatedAt: ts,
	}
}

// Timestamp normalizes t to the precision every store keeps: UTC, microseconds.
func Timestamp(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}
