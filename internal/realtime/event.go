package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
)

const EventRedemptionSuccess = "redemption:success"

// Event is one message addressed to a user's room.
type Event struct {
	ID         string          `json:"id"`
	Name       string          `json:"event"`
	UserID     string          `json:"user_id"`
	Payload    json.RawMessage `json:"payload"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// Notifier delivers an event to every live session of a user.
// A user with no open session is not an error.
type Notifier interface {
	Notify(ctx context.Context, userID, event string, payload any) error
}

// RedemptionSuccess is the payload of EventRedemptionSuccess.
type RedemptionSuccess struct {
	Message   string `json:"message"`
	BenefitID string `json:"benefit_id"`
	ClaimedID string `json:"claimed_id"`
}

func NewEvent(userID, name string, payload any, now time.Time) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("encode %s payload: %w", name, err)
	}
	return Event{
		ID:         ulid.Make().String(),
		Name:       name,
		UserID:     userID,
		Payload:    data,
		OccurredAt: now.UTC(),
	}, nil
}

// Notify publishes to the local hub only.
func (h *Hub) Notify(ctx context.Context, userID, event string, payload any) error {
	if h == nil {
		return ErrHubUnavailable
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	msg, err := NewEvent(userID, event, payload, time.Now())
	if err != nil {
		return err
	}
	h.Publish(userID, msg)
	return nil
}
