package redisrepo

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// EventsPubSub broadcasts event changes so other instances can drop their
// cached copies. A nil *EventsPubSub publishes nothing.
type EventsPubSub struct {
	rdb     *redis.Client
	channel string
}

func NewEventsPubSub(rdb *redis.Client) *EventsPubSub {
	return &EventsPubSub{
		rdb:     rdb,
		channel: ChannelEventsChanged(),
	}
}

type eventChangedMsg struct {
	Type    string `json:"type"`
	EventID uint32 `json:"event_id"`
	Reason  string `json:"reason,omitempty"`
	TsUnix  int64  `json:"ts_unix"`
}

func (p *EventsPubSub) PublishEventChanged(ctx context.Context, eventID uint32, reason string) error {
	if p == nil {
		return nil
	}

	msg := eventChangedMsg{
		Type:    "event_changed",
		EventID: eventID,
		Reason:  reason,
		TsUnix:  time.Now().Unix(),
	}

	b, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	return p.rdb.Publish(ctx, p.channel, b).Err()
}

// Subscribe calls handler for every event_changed message until ctx is
// done. Malformed messages are dropped. On a nil *EventsPubSub it just
// waits for ctx.
func (p *EventsPubSub) Subscribe(ctx context.Context, handler func(ctx context.Context, eventID uint32)) error {
	if p == nil {
		<-ctx.Done()
		return ctx.Err()
	}

	sub := p.rdb.Subscribe(ctx, p.channel)
	defer sub.Close()

	ch := sub.Channel(redis.WithChannelSize(256))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m, ok := <-ch:
			if !ok {
				return nil
			}
			var ev eventChangedMsg
			if err := json.Unmarshal([]byte(m.Payload), &ev); err == nil && ev.Type == "event_changed" {
				handler(ctx, ev.EventID)
			}
		}
	}
}
