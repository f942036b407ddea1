package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/todoapi/apiserver/types"
)

// EventPublisher delivers domain events. Implementations must not block the
// caller on broker failures.
type EventPublisher interface {
	Publish(ctx context.Context, event types.Event)
}

func newEvent(kind types.EventType, actorID, resourceID int, data any) types.Event {
	event := types.Event{
		Type:       kind,
		ActorID:    actorID,
		ResourceID: resourceID,
		OccurredAt: time.Now().UTC(),
	}
	if data != nil {
		if raw, err := json.Marshal(data); err == nil {
			event.Data = raw
		}
	}
	return event
}
