// Package bus carries group-change events between server instances over
// Redis pub/sub, so every instance's hub can fan changes out to its
// locally connected subscribers. It also emits message-sent events for
// the external push-notification consumer.
package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	groupEventsChannel   = "group-events"
	notificationsChannel = "message-notifications"
)

// Event announces that a group's state changed and subscribers should
// be sent a fresh snapshot. The payload is intentionally just the id:
// each instance loads the latest state itself, which keeps delivery
// at-least-once on the newest state even when events coalesce.
type Event struct {
	Kind    string `json:"kind"` // "updated" or "deleted"
	GroupID string `json:"group_id"`
}

const (
	KindUpdated = "updated"
	KindDeleted = "deleted"
)

// MessageSent is the event consumed by the push-notification hook.
// Delivery is entirely external to this service.
type MessageSent struct {
	GroupID    string    `json:"group_id"`
	MessageID  string    `json:"message_id"`
	SenderID   int       `json:"sender_id"`
	SenderName string    `json:"sender_name"`
	Body       string    `json:"body"`
	SentAt     time.Time `json:"sent_at"`
}

type Bus struct {
	rdb *redis.Client
}

func New(rdb *redis.Client) *Bus {
	return &Bus{rdb: rdb}
}

func (b *Bus) GroupUpdated(ctx context.Context, groupID string) error {
	return b.publish(ctx, groupEventsChannel, Event{Kind: KindUpdated, GroupID: groupID})
}

func (b *Bus) GroupDeleted(ctx context.Context, groupID string) error {
	return b.publish(ctx, groupEventsChannel, Event{Kind: KindDeleted, GroupID: groupID})
}

func (b *Bus) MessageSent(ctx context.Context, ev MessageSent) error {
	return b.publish(ctx, notificationsChannel, ev)
}

func (b *Bus) publish(ctx context.Context, channel string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("bus: marshal event: %w", err)
	}
	if err := b.rdb.Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("bus: publish to %s: %w", channel, err)
	}
	return nil
}

// Subscribe listens for group events until ctx is cancelled. The
// returned channel is closed when the subscription ends.
func (b *Bus) Subscribe(ctx context.Context) <-chan Event {
	events := make(chan Event)

	pubsub := b.rdb.Subscribe(ctx, groupEventsChannel)
	go func() {
		defer close(events)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var ev Event
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					slog.Warn("bus: dropping malformed event", "error", err)
					continue
				}
				select {
				case events <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return events
}
