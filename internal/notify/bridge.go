package notify

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/satchelhq/satchel/internal/logger"
)

// Channel is the Redis pub/sub channel every instance shares.
const Channel = "satchel:events"

// Bridge relays events between instances through Redis pub/sub, so a
// change made against one instance reaches sessions held by another.
// Local sessions are served by the same path: Publish goes out to
// Redis and comes back through the subscription into the Hub.
type Bridge struct {
	client *redis.Client
	hub    *Hub
	logger logger.Logger
	stopCh chan struct{}
}

func NewBridge(client *redis.Client, hub *Hub, log logger.Logger) *Bridge {
	return &Bridge{
		client: client,
		hub:    hub,
		logger: log,
		stopCh: make(chan struct{}),
	}
}

// Publish sends e to every instance, including this one.
func (b *Bridge) Publish(ctx context.Context, e Event) error {
	if err := b.client.Publish(ctx, Channel, e).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// Start subscribes to the shared channel and pumps incoming events
// into the Hub until Stop is called or ctx ends.
func (b *Bridge) Start(ctx context.Context) error {
	sub := b.client.Subscribe(ctx, Channel)

	// Force the subscription to be established before we report
	// running, so no event published after Start is missed.
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return fmt.Errorf("failed to subscribe to %s: %w", Channel, err)
	}

	msgs := sub.Channel()
	go func() {
		defer sub.Close()
		for {
			select {
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var e Event
				if err := e.UnmarshalBinary([]byte(msg.Payload)); err != nil {
					b.logger.Warn("discarding malformed event",
						logger.Error(err))
					continue
				}
				b.hub.Broadcast(e)
			case <-b.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	b.logger.Info("event bridge started", logger.String("channel", Channel))
	return nil
}

// Stop stops relaying events.
func (b *Bridge) Stop() {
	close(b.stopCh)
}
