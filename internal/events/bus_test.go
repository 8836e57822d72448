package events_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-wisata/internal/events"
	"github.com/noah-isme/backend-wisata/internal/store"
)

type stubStore struct {
	lastTopic     string
	lastAggregate string
	lastPayload   []byte
	err           error
}

func (s *stubStore) InsertDomainEvent(_ context.Context, topic, aggregateID string, payload []byte) (store.DomainEvent, error) {
	if s.err != nil {
		return store.DomainEvent{}, s.err
	}
	s.lastTopic = topic
	s.lastAggregate = aggregateID
	s.lastPayload = payload
	return store.DomainEvent{
		ID:          uuid.NewString(),
		Topic:       topic,
		AggregateID: aggregateID,
		Payload:     payload,
		OccurredAt:  time.Now(),
	}, nil
}

type captureNotifier struct {
	events []store.DomainEvent
	err    error
}

func (c *captureNotifier) Notify(_ context.Context, event store.DomainEvent) error {
	c.events = append(c.events, event)
	return c.err
}

func TestEmitPersistsEvent(t *testing.T) {
	st := &stubStore{}
	notifier := &captureNotifier{}
	bus := &events.Bus{Store: st, Notifiers: []events.Notifier{notifier}}

	bookingID := uuid.NewString()
	ev, err := bus.Emit(context.Background(), events.TopicBookingPaid, bookingID, map[string]any{
		"amount": 370500,
	})
	require.NoError(t, err)
	require.Equal(t, events.TopicBookingPaid, ev.Topic)
	require.Equal(t, bookingID, ev.AggregateID)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(st.lastPayload, &payload))
	require.EqualValues(t, 370500, payload["amount"])

	require.Len(t, notifier.events, 1)
	require.Equal(t, ev.ID, notifier.events[0].ID)
}

func TestEmitRequiresTopicAndAggregate(t *testing.T) {
	bus := &events.Bus{Store: &stubStore{}}

	_, err := bus.Emit(context.Background(), "  ", uuid.NewString(), nil)
	require.Error(t, err)

	_, err = bus.Emit(context.Background(), events.TopicBookingCreated, "", nil)
	require.Error(t, err)
}

func TestEmitNilPayloadDefaultsToEmptyObject(t *testing.T) {
	st := &stubStore{}
	bus := &events.Bus{Store: st}

	_, err := bus.Emit(context.Background(), events.TopicCartCheckedOut, uuid.NewString(), nil)
	require.NoError(t, err)
	require.JSONEq(t, "{}", string(st.lastPayload))
}

func TestEmitJoinsNotifierErrors(t *testing.T) {
	st := &stubStore{}
	failing := &captureNotifier{err: errors.New("smtp down")}
	bus := &events.Bus{Store: st, Notifiers: []events.Notifier{failing}}

	ev, err := bus.Emit(context.Background(), events.TopicPaymentFailed, uuid.NewString(), nil)
	require.Error(t, err)
	require.NotEmpty(t, ev.ID, "event persists even when a notifier fails")
}
