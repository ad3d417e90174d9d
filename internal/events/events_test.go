package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/ticket-lifecycle/internal/domain"
)

func TestDispatcher_DeliversToSubscribersOfType(t *testing.T) {
	t.Parallel()

	d := NewInMemoryDispatcher()
	var got []EventType
	d.Subscribe(EventTicketCreated, func(_ context.Context, e Event) error {
		got = append(got, e.Type)
		return nil
	})

	require.NoError(t, d.Publish(context.Background(), Event{Type: EventTicketCreated}))
	require.NoError(t, d.Publish(context.Background(), Event{Type: EventTicketStatusChanged}))
	assert.Equal(t, []EventType{EventTicketCreated}, got)
}

func TestDispatcher_RunsAllHandlersAndJoinsErrors(t *testing.T) {
	t.Parallel()

	d := NewInMemoryDispatcher()
	first := errors.New("first")
	calls := 0
	d.Subscribe(EventTicketCreated, func(context.Context, Event) error {
		calls++
		return first
	})
	d.Subscribe(EventTicketCreated, func(context.Context, Event) error {
		calls++
		return nil
	})

	err := d.Publish(context.Background(), Event{Type: EventTicketCreated})
	assert.ErrorIs(t, err, first)
	assert.Equal(t, 2, calls)
}

type fakeWriter struct {
	mu        sync.Mutex
	msgs      []kafka.Message
	err       error
	closed    bool
	deadlines []time.Time
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if deadline, ok := ctx.Deadline(); ok {
		w.deadlines = append(w.deadlines, deadline)
	}
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestKafkaPublisher_WritesJSONKeyedByTicket(t *testing.T) {
	t.Parallel()

	writer := &fakeWriter{}
	pub := NewKafkaPublisherWithWriter(writer)
	reason := "duplicate"
	event := Event{
		ID:        "evt-1",
		Type:      EventTicketStatusChanged,
		TicketID:  "ticket-1",
		Timestamp: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
		Payload: TicketStatusChangedPayload{
			NewStatus:          domain.TicketStatusCancelled,
			CancellationReason: &reason,
		},
	}

	require.NoError(t, pub.Handle(context.Background(), event))
	require.Len(t, writer.msgs, 1)
	msg := writer.msgs[0]
	assert.Equal(t, "ticket-1", string(msg.Key))
	assert.Equal(t, "event_type", msg.Headers[0].Key)
	assert.Equal(t, "ticket_status_changed", string(msg.Headers[0].Value))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, "ticket_status_changed", decoded["type"])
	payload := decoded["payload"].(map[string]any)
	assert.Equal(t, "CANCELLED", payload["new_status"])
	assert.Equal(t, "duplicate", payload["cancellation_reason"])
	assert.NotContains(t, payload, "solution")

	require.NoError(t, pub.Close())
	assert.True(t, writer.closed)
}

func TestKafkaPublisher_WrapsWriteError(t *testing.T) {
	t.Parallel()

	cause := errors.New("broker down")
	pub := NewKafkaPublisherWithWriter(&fakeWriter{err: cause})
	err := pub.Handle(context.Background(), Event{Type: EventTicketCreated})
	assert.ErrorIs(t, err, cause)
}

func TestKafkaPublisher_BoundsWritesWithoutCallerDeadline(t *testing.T) {
	t.Parallel()

	writer := &fakeWriter{}
	pub := NewKafkaPublisherWithWriter(writer)

	before := time.Now()
	require.NoError(t, pub.Handle(context.Background(), Event{Type: EventTicketCreated, TicketID: "t"}))
	require.Len(t, writer.deadlines, 1)
	assert.WithinDuration(t, before.Add(PublishTimeout), writer.deadlines[0], time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), time.Hour)
	defer cancel()
	require.NoError(t, pub.Handle(ctx, Event{Type: EventTicketCreated, TicketID: "t"}))
	require.Len(t, writer.deadlines, 2)
	assert.True(t, writer.deadlines[1].Before(time.Now().Add(PublishTimeout+time.Second)))
}

func TestKafkaPublisher_DisabledWithoutBrokers(t *testing.T) {
	t.Parallel()

	pub := NewKafkaPublisher(nil, "ticket-events")
	assert.False(t, pub.Enabled())
	assert.NoError(t, pub.Handle(context.Background(), Event{Type: EventTicketCreated}))
	assert.NoError(t, pub.Close())

	assert.False(t, NewKafkaPublisher([]string{"localhost:9092"}, "").Enabled())
	assert.True(t, NewKafkaPublisher([]string{"localhost:9092"}, "ticket-events").Enabled())
}
