package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/spec-kit/ticket-lifecycle/internal/domain"
)

// memoryTicketRepository keeps tickets in process memory. Records are cloned on
// the way in and out so callers never share state with the store.
type memoryTicketRepository struct {
	mu      sync.RWMutex
	tickets map[string]domain.Ticket
	order   []string
}

// NewMemoryTicketRepository returns an empty in-memory repository.
func NewMemoryTicketRepository() TicketRepository {
	return &memoryTicketRepository{tickets: make(map[string]domain.Ticket)}
}

func (r *memoryTicketRepository) Insert(ctx context.Context, ticket *domain.Ticket) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	id := uuid.NewString()
	record := ticket.Clone()
	record.ID = id

	r.mu.Lock()
	defer r.mu.Unlock()
	r.tickets[id] = record
	r.order = append(r.order, id)
	return id, nil
}

func (r *memoryTicketRepository) UpdateByID(ctx context.Context, id string, mutation domain.TicketMutation) (*domain.Ticket, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.tickets[id]
	if !ok {
		return nil, ErrNotFound
	}
	updated := mutation.Apply(current)
	// Write back under the stored key: id may alias a reused request buffer.
	r.tickets[current.ID] = updated
	out := updated.Clone()
	return &out, nil
}

func (r *memoryTicketRepository) UpdateManyWhere(ctx context.Context, filter domain.TicketFilter, mutation domain.TicketMutation) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	var count int64
	for _, id := range r.order {
		current := r.tickets[id]
		if !filter.Matches(current) {
			continue
		}
		r.tickets[id] = mutation.Apply(current)
		count++
	}
	return count, nil
}

func (r *memoryTicketRepository) FindWhere(ctx context.Context, filter domain.TicketFilter) ([]domain.Ticket, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := []domain.Ticket{}
	for _, id := range r.order {
		current := r.tickets[id]
		if filter.Matches(current) {
			result = append(result, current.Clone())
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}
