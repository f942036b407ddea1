package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/todoapi/apiserver/internal/logging"
	"github.com/todoapi/apiserver/types"
)

// EventBus publishes domain events as JSON on a single channel.
type EventBus struct {
	mq      *MQ
	channel string
	log     logging.Logger
}

func NewEventBus(mq *MQ, channel string, log logging.Logger) *EventBus {
	return &EventBus{mq: mq, channel: channel, log: log}
}

// Publish sends event. Broker failures are logged and swallowed: an event
// that cannot be delivered never fails the request that produced it.
func (b *EventBus) Publish(ctx context.Context, event types.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		b.log.Error(ctx, "encode event", "type", event.Type, "err", err)
		return
	}

	id, err := b.mq.Publish(ctx, b.channel, data, eventAttributes(event))
	if err != nil {
		b.log.Warn(ctx, "publish event", "type", event.Type, "resource_id", event.ResourceID, "err", err)
		return
	}
	b.log.Debug(ctx, "event published", "type", event.Type, "message_id", id)
}

// eventAttributes exposes the routing fields of event without the body.
// Events about the same record share an ordering key.
func eventAttributes(event types.Event) map[string]string {
	resourceID := strconv.Itoa(event.ResourceID)
	return map[string]string{
		AttrEventType:   string(event.Type),
		AttrResourceID:  resourceID,
		AttrActorID:     strconv.Itoa(event.ActorID),
		AttrOrderingKey: event.Type.Resource() + ":" + resourceID,
	}
}

// Tail decodes every event on the channel and hands it to fn until ctx ends.
// Undecodable messages are logged and acknowledged.
func (b *EventBus) Tail(ctx context.Context, fn func(context.Context, types.Event) error) error {
	return b.mq.Subscribe(ctx, b.channel, func(ctx context.Context, msg Message) error {
		var event types.Event
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			b.log.Warn(ctx, "drop undecodable event", "message_id", msg.ID, "err", err)
			return nil
		}
		if err := fn(ctx, event); err != nil {
			return fmt.Errorf("handle event %s: %w", msg.ID, err)
		}
		return nil
	})
}
