package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-lifecycle/internal/events"
)

// EventSubscriberService attaches the audit log and the optional Kafka
// publisher to lifecycle events.
type EventSubscriberService struct {
	dispatcher events.Dispatcher
	publisher  *events.KafkaPublisher
	logger     *zap.Logger
}

// NewEventSubscriberService creates the service. publisher may be nil.
func NewEventSubscriberService(dispatcher events.Dispatcher, publisher *events.KafkaPublisher, logger *zap.Logger) *EventSubscriberService {
	return &EventSubscriberService{
		dispatcher: dispatcher,
		publisher:  publisher,
		logger:     logger,
	}
}

// RegisterHandlers subscribes to every lifecycle event type.
func (n *EventSubscriberService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	for _, eventType := range events.AllEventTypes {
		n.dispatcher.Subscribe(eventType, n.handleAudit)
		if n.publisher.Enabled() {
			n.dispatcher.Subscribe(eventType, n.publisher.Handle)
		}
	}
}

func (n *EventSubscriberService) handleAudit(_ context.Context, event events.Event) error {
	n.logger.Info("ticket event",
		zap.String("event_id", event.ID),
		zap.String("event_type", string(event.Type)),
		zap.String("ticket_id", event.TicketID),
		zap.Any("payload", event.Payload))
	return nil
}
