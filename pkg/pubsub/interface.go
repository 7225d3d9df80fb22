package pubsub

import (
	"context"
	"encoding/json"
	"time"
)

// Event is the envelope written to the event stream.
type Event struct {
	Type      string          `json:"type"`
	Room      string          `json:"room"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewEvent wraps payload in an Event stamped with the current UTC time.
func NewEvent(eventType, room string, payload interface{}) (*Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Event{
		Type:      eventType,
		Room:      room,
		Payload:   data,
		Timestamp: time.Now().UTC(),
	}, nil
}

// UnmarshalPayload decodes the payload into v.
func (e *Event) UnmarshalPayload(v interface{}) error {
	return json.Unmarshal(e.Payload, v)
}

// Publisher publishes events to the event bus.
type Publisher interface {
	Publish(ctx context.Context, channel string, event *Event) error
	Close() error
}

// Discard drops every event. It is used when no stream driver is configured.
type Discard struct{}

func (Discard) Publish(context.Context, string, *Event) error { return nil }
func (Discard) Close() error                                  { return nil }
