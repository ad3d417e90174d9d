package domain

import "time"

// TicketMutation is the partial field set a store applies to a record.
// Nil optional fields leave the stored value untouched.
type TicketMutation struct {
	Status             TicketStatus
	Solution           *string
	CancellationReason *string
	UpdatedAt          time.Time
}

// Apply returns the record that results from applying m to t.
func (m TicketMutation) Apply(t Ticket) Ticket {
	out := t.Clone()
	out.Status = m.Status
	if m.Solution != nil {
		s := *m.Solution
		out.Solution = &s
	}
	if m.CancellationReason != nil {
		r := *m.CancellationReason
		out.CancellationReason = &r
	}
	out.UpdatedAt = m.UpdatedAt
	return out
}

// Transitions carry no guard on the current status: staff may re-open or
// override any ticket, terminal ones included.

// TakeToWork moves a ticket to IN_PROGRESS.
func TakeToWork(now time.Time) TicketMutation {
	return TicketMutation{Status: TicketStatusInProgress, UpdatedAt: Timestamp(now)}
}

// Complete moves a ticket to COMPLETED and records the solution.
func Complete(solution string, now time.Time) TicketMutation {
	return TicketMutation{Status: TicketStatusCompleted, Solution: &solution, UpdatedAt: Timestamp(now)}
}

// Cancel moves a ticket to CANCELLED and records why.
func Cancel(reason string, now time.Time) TicketMutation {
	return TicketMutation{Status: TicketStatusCancelled, CancellationReason: &reason, UpdatedAt: Timestamp(now)}
}

// BulkCancel is the reason-less cancellation applied to every in-progress ticket.
func BulkCancel(now time.Time) TicketMutation {
	return TicketMutation{Status: TicketStatusCancelled, UpdatedAt: Timestamp(now)}
}
