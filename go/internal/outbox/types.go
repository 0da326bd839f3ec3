package outbox

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Event is one pending broadcast, written in the same transaction as
// the state change it describes.
type Event struct {
	ID        uuid.UUID
	GameCode  string
	EventType string
	Payload   []byte
	CreatedAt time.Time
}

// EventPublisher delivers an event to the message bus.
type EventPublisher interface {
	Publish(ctx context.Context, event Event) error
}
