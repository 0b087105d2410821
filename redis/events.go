package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pulsechat/pulse/api"
)

// eventsChannel is the pub/sub channel carrying invalidation events.
const eventsChannel = "events"

// Publish sends an invalidation event to all subscribers.
func (r *Redis) Publish(ctx context.Context, ev api.Event) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := r.cli.Publish(ctx, eventsChannel, b).Err(); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

// Subscribe returns a channel of invalidation events. The channel is
// closed when the context is cancelled. Events that fail to decode are
// dropped rather than tearing down the subscription.
func (r *Redis) Subscribe(ctx context.Context) (<-chan api.Event, error) {
	sub := r.cli.Subscribe(ctx, eventsChannel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("subscribe: %w", err)
	}

	out := make(chan api.Event)
	go func() {
		defer close(out)
		defer sub.Close()

		in := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-in:
				if !ok {
					return
				}
				var ev api.Event
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
