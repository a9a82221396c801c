package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"
)

// PublishChange announces that the data under topic has changed.
// The payload is informational; subscribers reload the full snapshot.
func (c *Cache) PublishChange(ctx context.Context, topic string) error {
	payload := strconv.FormatInt(time.Now().UnixMilli(), 10)
	if err := c.client.Publish(ctx, c.changeChannel(topic), payload).Err(); err != nil {
		return fmt.Errorf("publish change: %w", err)
	}
	return nil
}

// SubscribeChanges returns a channel that receives a signal after every change
// to topic. Signals are coalesced: a pending signal absorbs later ones.
// The subscription is active when SubscribeChanges returns and lasts until
// ctx is cancelled, at which point the channel is closed.
func (c *Cache) SubscribeChanges(ctx context.Context, topic string) (<-chan struct{}, error) {
	pubsub := c.client.Subscribe(ctx, c.changeChannel(topic))

	// Wait for the subscription confirmation so no change is missed between
	// this call and the caller's snapshot read.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribe changes: %w", err)
	}

	out := make(chan struct{}, 1)
	msgs := pubsub.Channel()

	go func() {
		defer close(out)
		defer pubsub.Close()

		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-msgs:
				if !ok {
					return
				}
				select {
				case out <- struct{}{}:
				default:
				}
			}
		}
	}()

	return out, nil
}

func (c *Cache) changeChannel(topic string) string {
	return c.key("changes", topic)
}
