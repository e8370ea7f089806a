package messages

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

const (
	TypeBookingCreated       = "booking.created"
	TypeBookingStatusChanged = "booking.status_changed"
	TypeSeriesCreated        = "series.created"
	TypeSeriesCancelled      = "series.cancelled"
	TypeRouteCreated         = "route.created"
	TypeReminderDue          = "reminder.due"
)

// Envelope wraps every event written to Kafka.
type Envelope struct {
	EventID    string          `json:"event_id"`
	Type       string          `json:"type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

func NewEnvelope(eventType string, payload any) (Envelope, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		EventID:    uuid.NewString(),
		Type:       eventType,
		OccurredAt: time.Now().UTC(),
		Payload:    b,
	}, nil
}

// Decode unmarshals the payload into dst.
func (e Envelope) Decode(dst any) error {
	return json.Unmarshal(e.Payload, dst)
}

type Publisher interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

// Emit publishes an event after the fact. Failures are logged and dropped: the state
// change it describes is already committed.
func Emit(ctx context.Context, p Publisher, topic, key, eventType string, payload any) {
	if p == nil || topic == "" {
		return
	}
	env, err := NewEnvelope(eventType, payload)
	if err != nil {
		slog.Error("encode event", "type", eventType, "error", err.Error())
		return
	}
	b, err := json.Marshal(env)
	if err != nil {
		slog.Error("encode event", "type", eventType, "error", err.Error())
		return
	}
	if err := p.Publish(ctx, topic, []byte(key), b); err != nil {
		slog.Error("publish event", "type", eventType, "topic", topic, "error", err.Error())
	}
}
