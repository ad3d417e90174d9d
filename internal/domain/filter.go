package domain

import "time"

// TicketFilter selects tickets. Every set field must match; bounds are inclusive.
type TicketFilter struct {
	Status      *TicketStatus
	CreatedFrom *time.Time
	CreatedTo   *time.Time
}

// Matches reports whether t satisfies the filter.
func (f TicketFilter) Matches(t Ticket) bool {
	if f.Status != nil && t.Status != *f.Status {
		return false
	}
	if f.CreatedFrom != nil && t.CreatedAt.Before(*f.CreatedFrom) {
		return false
	}
	if f.CreatedTo != nil && t.CreatedAt.After(*f.CreatedTo) {
		return false
	}
	return true
}

// StatusFilter matches every ticket currently in status.
func StatusFilter(status TicketStatus) TicketFilter {
	return TicketFilter{Status: &status}
}

// CreatedBetween builds a date range filter; either bound may be nil.
func CreatedBetween(from, to *time.Time) TicketFilter {
	return TicketFilter{CreatedFrom: from, CreatedTo: to}
}
