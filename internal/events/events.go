// Package events feeds domain events from a message broker into the webhook
// dispatcher. Every source decodes the same JSON message as POST /events.
package events

import (
	"context"
	"encoding/json"
	"time"

	"api-gateway/internal/common/errors"
	"api-gateway/internal/common/logging"
	"api-gateway/internal/common/validation"
	"api-gateway/internal/models"
)

// Message is the wire shape of a domain event.
type Message struct {
	EventType  string          `json:"event_type" validate:"required,event_type"`
	EventID    string          `json:"event_id,omitempty" validate:"omitempty,max=128"`
	OccurredAt *time.Time      `json:"occurred_at,omitempty"`
	Data       json.RawMessage `json:"data"`
	Critical   bool            `json:"critical,omitempty"`
}

// Event converts a validated message into a dispatcher event.
func (m *Message) Event() *models.Event {
	event := &models.Event{
		ID:       m.EventID,
		Type:     m.EventType,
		Data:     m.Data,
		Critical: m.Critical,
	}
	if m.OccurredAt != nil {
		event.OccurredAt = *m.OccurredAt
	}
	return event
}

// Validate checks the message fields, including that data is a JSON value.
func (m *Message) Validate() error {
	if err := validation.Struct(m); err != nil {
		return err
	}
	if len(m.Data) > 0 && !json.Valid(m.Data) {
		return errors.ValidationError("field 'data' must be valid JSON")
	}
	return nil
}

// Decode parses and validates a broker message body.
func Decode(body []byte) (*models.Event, error) {
	var msg Message
	if err := json.Unmarshal(body, &msg); err != nil {
		return nil, errors.ValidationError("message is not valid JSON").WithCause(err)
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return msg.Event(), nil
}

// Handler receives decoded events. A returned error leaves the message
// unacknowledged so the broker redelivers it.
type Handler func(ctx context.Context, event *models.Event) error

// Source consumes one broker destination until ctx is cancelled.
type Source interface {
	Name() string
	Run(ctx context.Context, handler Handler) error
	Close() error
}

// handle decodes body and passes it to handler. It reports whether the
// message should be acknowledged: malformed messages are dropped, handler
// failures are retried.
func handle(ctx context.Context, logger logging.Logger, body []byte, handler Handler, fields ...logging.Field) bool {
	event, err := Decode(body)
	if err != nil {
		logger.Warn("Dropping malformed event message", append(fields, logging.Err(err))...)
		return true
	}

	if err := handler(ctx, event); err != nil {
		logger.Error("Failed to dispatch event, leaving for redelivery", err,
			append(fields, logging.Field{Key: "event_type", Value: event.Type})...)
		return false
	}
	return true
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
