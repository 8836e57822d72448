package store

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// DomainEvent is one persisted occurrence on a booking, payment or cart.
type DomainEvent struct {
	ID          string
	Topic       string
	AggregateID string
	Payload     []byte
	OccurredAt  time.Time
}

// InsertDomainEvent persists a domain event and returns the stored row.
func (s *Store) InsertDomainEvent(ctx context.Context, topic, aggregateID string, payload []byte) (DomainEvent, error) {
	row := s.Pool.QueryRow(ctx, `
		INSERT INTO domain_events (id, topic, aggregate_id, payload)
		VALUES ($1, $2, $3, $4)
		RETURNING id, topic, aggregate_id, payload, occurred_at`,
		uuid.NewString(), topic, aggregateID, payload)
	var ev DomainEvent
	if err := row.Scan(&ev.ID, &ev.Topic, &ev.AggregateID, &ev.Payload, &ev.OccurredAt); err != nil {
		return DomainEvent{}, mapError(err)
	}
	return ev, nil
}
