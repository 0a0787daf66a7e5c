// Package events publishes lifecycle events to the message bus. Delivery is
// best effort from the caller's point of view.
package events

import (
	"context"
	"time"

	"github.com/dmitrijs2005/lakeadmin/internal/server/models"
	"github.com/google/uuid"
)

// Publisher is the event publisher contract.
type Publisher interface {
	// Publish a new event to topic
	Publish(ctx context.Context, topic string, ev models.Event) error
	Close() error
}

var now = time.Now

// New stamps an event with a fresh id and the current time.
func New(sender, eventType string, payload map[string]any) models.Event {
	return models.Event{
		ID:      uuid.NewString(),
		Sender:  sender,
		Type:    eventType,
		Time:    now().UTC(),
		Payload: payload,
	}
}
