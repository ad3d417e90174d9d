package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-lifecycle/internal/domain"
	"github.com/spec-kit/ticket-lifecycle/internal/events"
	"github.com/spec-kit/ticket-lifecycle/internal/observability"
	"github.com/spec-kit/ticket-lifecycle/internal/repository"
)

// Operation names, used in storage errors, logs and metrics.
const (
	opCreate          = "create ticket"
	opTakeToWork      = "take ticket to work"
	opComplete        = "complete ticket"
	opCancel          = "cancel ticket"
	opList            = "fetch tickets"
	opCancelAllInProg = "cancel in-progress tickets"
)

// TicketService drives tickets through their lifecycle. It keeps no state
// between calls; every operation reads and writes through the repository.
type TicketService struct {
	tickets    repository.TicketRepository
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
	now        func() time.Time
}

// TicketDependencies bundles collaborators for the ticket service.
// Only TicketRepo is required.
type TicketDependencies struct {
	TicketRepo repository.TicketRepository
	Dispatcher events.Dispatcher
	Metrics    *observability.Metrics
	Logger     *zap.Logger
	// Clock overrides time.Now, for tests.
	Clock func() time.Time
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &TicketService{
		tickets:    deps.TicketRepo,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     logger,
		now:        clock,
	}
}

// CreateTicket opens a NEW ticket. topic and text are expected to be non-empty.
func (s *TicketService) CreateTicket(ctx context.Context, topic, text string) (*domain.Ticket, error) {
	ticket := domain.NewTicket(topic, text, s.now())

	id, err := s.tickets.Insert(ctx, ticket)
	if err != nil {
		return nil, s.storageFailure(opCreate, "", err)
	}
	ticket.ID = id

	s.logger.Info("ticket created", zap.String("ticket_id", id))
	s.metrics.RecordTicketOperation(opCreate, "ok", 1)
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: id,
		Payload: events.TicketCreatedPayload{
			Topic:  ticket.Topic,
			Status: ticket.Status,
		},
	})
	return ticket, nil
}

// TakeTicketToWork moves the ticket to IN_PROGRESS.
func (s *TicketService) TakeTicketToWork(ctx context.Context, id string) (*domain.Ticket, error) {
	return s.transition(ctx, opTakeToWork, id, domain.TakeToWork(s.now()))
}

// CompleteTicket moves the ticket to COMPLETED with the given solution.
func (s *TicketService) CompleteTicket(ctx context.Context, id, solution string) (*domain.Ticket, error) {
	return s.transition(ctx, opComplete, id, domain.Complete(solution, s.now()))
}

// CancelTicket moves the ticket to CANCELLED with the given reason, whatever its current status.
func (s *TicketService) CancelTicket(ctx context.Context, id, reason string) (*domain.Ticket, error) {
	return s.transition(ctx, opCancel, id, domain.Cancel(reason, s.now()))
}

// GetTickets lists tickets created within [startDate, endDate]; nil bounds are open.
func (s *TicketService) GetTickets(ctx context.Context, startDate, endDate *time.Time) ([]domain.Ticket, error) {
	tickets, err := s.tickets.FindWhere(ctx, domain.CreatedBetween(startDate, endDate))
	if err != nil {
		return nil, s.storageFailure(opList, "", err)
	}
	if tickets == nil {
		tickets = []domain.Ticket{}
	}
	s.logger.Info("fetched tickets", zap.Int("count", len(tickets)))
	return tickets, nil
}

// CancelAllInProgressTickets cancels every IN_PROGRESS ticket without a reason
// and returns how many were changed.
func (s *TicketService) CancelAllInProgressTickets(ctx context.Context) (int64, error) {
	count, err := s.tickets.UpdateManyWhere(ctx,
		domain.StatusFilter(domain.TicketStatusInProgress),
		domain.BulkCancel(s.now()),
	)
	if err != nil {
		return 0, s.storageFailure(opCancelAllInProg, "", err)
	}

	s.logger.Info("cancelled in-progress tickets", zap.Int64("count", count))
	s.metrics.RecordTicketOperation(opCancelAllInProg, "ok", count)
	s.publishEvent(ctx, events.Event{
		Type: events.EventTicketsBulkCancelled,
		Payload: events.TicketsBulkCancelledPayload{
			FromStatus: domain.TicketStatusInProgress,
			Count:      count,
		},
	})
	return count, nil
}

func (s *TicketService) transition(ctx context.Context, op, id string, mutation domain.TicketMutation) (*domain.Ticket, error) {
	ticket, err := s.tickets.UpdateByID(ctx, id, mutation)
	if errors.Is(err, repository.ErrNotFound) {
		s.logger.Warn("ticket not found", zap.String("op", op), zap.String("ticket_id", id))
		s.metrics.RecordTicketOperation(op, "not_found", 1)
		return nil, domain.ErrTicketNotFound
	}
	if err != nil {
		return nil, s.storageFailure(op, id, err)
	}

	s.logger.Info("ticket status changed",
		zap.String("op", op),
		zap.String("ticket_id", id),
		zap.String("status", string(ticket.Status)))
	s.metrics.RecordTicketOperation(op, "ok", 1)
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketStatusChanged,
		TicketID: ticket.ID,
		Payload: events.TicketStatusChangedPayload{
			NewStatus:          ticket.Status,
			Solution:           mutation.Solution,
			CancellationReason: mutation.CancellationReason,
		},
	})
	return ticket, nil
}

func (s *TicketService) storageFailure(op, id string, err error) error {
	fields := []zap.Field{zap.String("op", op), zap.Error(err)}
	if id != "" {
		fields = append(fields, zap.String("ticket_id", id))
	}
	s.logger.Error("ticket store failure", fields...)
	s.metrics.RecordTicketOperation(op, "storage_error", 1)
	return &domain.StorageError{Op: op, Err: err}
}

// publishEvent is best-effort: subscriber failures are logged, never returned.
func (s *TicketService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = domain.Timestamp(s.now())
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event subscriber failed",
			zap.String("event_type", string(event.Type)),
			zap.String("ticket_id", event.TicketID),
			zap.Error(err))
	}
}
