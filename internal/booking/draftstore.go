package booking

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrDraftNotFound is returned when no draft exists for the user/destination.
var ErrDraftNotFound = errors.New("booking: draft not found")

// DraftStore keeps in-progress drafts in Redis so a wizard session survives
// reconnects. One draft per user and destination.
type DraftStore struct {
	R   *redis.Client
	TTL time.Duration
}

func draftKey(userID, destinationID string) string {
	return "draft:" + userID + ":" + destinationID
}

// Get loads the draft for the user and destination.
func (s *DraftStore) Get(ctx context.Context, userID, destinationID string) (Draft, error) {
	if s == nil || s.R == nil {
		return Draft{}, errors.New("booking: draft store not configured")
	}
	raw, err := s.R.Get(ctx, draftKey(userID, destinationID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Draft{}, ErrDraftNotFound
		}
		return Draft{}, err
	}
	var d Draft
	if err := json.Unmarshal(raw, &d); err != nil {
		return Draft{}, err
	}
	return d, nil
}

// Save persists the draft, refreshing its TTL.
func (s *DraftStore) Save(ctx context.Context, d Draft) error {
	if s == nil || s.R == nil {
		return errors.New("booking: draft store not configured")
	}
	raw, err := json.Marshal(d)
	if err != nil {
		return err
	}
	ttl := s.TTL
	if ttl <= 0 {
		ttl = 72 * time.Hour
	}
	return s.R.Set(ctx, draftKey(d.UserID, d.DestinationID), raw, ttl).Err()
}

// Delete removes the draft, ending the wizard session.
func (s *DraftStore) Delete(ctx context.Context, userID, destinationID string) error {
	if s == nil || s.R == nil {
		return errors.New("booking: draft store not configured")
	}
	return s.R.Del(ctx, draftKey(userID, destinationID)).Err()
}
