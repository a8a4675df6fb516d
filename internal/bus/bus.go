// Package bus is the per-camera broadcast path for new-frame
// references. Delivery is live-only: a publish reaches the subscribers
// attached at that instant and is never replayed.
package bus

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

// channelName mirrors the "<camera-id>:stream" key scheme used by the
// ingest side, so publishes and subscriptions always agree.
func channelName(cameraID string) string {
	return cameraID + ":stream"
}

// RedisBus broadcasts frame references over Redis pub/sub. Each
// subscription holds its own connection and delivery queue, so one slow
// viewer cannot stall publishers or other viewers.
type RedisBus struct {
	client *redis.Client
}

func NewRedisBus(client *redis.Client) *RedisBus {
	return &RedisBus{client: client}
}

// Publish fans a frame reference out to all currently attached
// subscribers. Zero subscribers is a no-op, not an error.
func (b *RedisBus) Publish(ctx context.Context, cameraID, frameRef string) error {
	if err := b.client.Publish(ctx, channelName(cameraID), frameRef).Err(); err != nil {
		return fmt.Errorf("bus publish %s: %w", cameraID, err)
	}
	return nil
}

// Subscribe attaches a new subscriber to the camera's channel. The
// returned subscription only sees frames published after this call.
func (b *RedisBus) Subscribe(ctx context.Context, cameraID string) (*Subscription, error) {
	ps := b.client.Subscribe(ctx, channelName(cameraID))

	// Confirm the subscription before handing it out, so a dead bus
	// surfaces here rather than as a silent never-delivering channel.
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, fmt.Errorf("bus subscribe %s: %w", cameraID, err)
	}

	sub := &Subscription{
		pubsub: ps,
		frames: make(chan string, 16),
		done:   make(chan struct{}),
	}
	go sub.pump()
	return sub, nil
}

// Subscription is one live attachment to a camera channel.
type Subscription struct {
	pubsub *redis.PubSub
	frames chan string
	done   chan struct{}
	once   sync.Once
}

// Frames delivers references in publish order. The channel is closed
// when the subscription is closed.
func (s *Subscription) Frames() <-chan string {
	return s.frames
}

// Close detaches the subscriber and releases its connection. Safe to
// call more than once.
func (s *Subscription) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.pubsub.Close()
	})
	return err
}

// pump moves payloads into the delivery queue. The done select matters:
// a closed subscriber stops draining frames, and a send parked on a
// full queue would otherwise keep this goroutine alive forever.
func (s *Subscription) pump() {
	defer close(s.frames)
	for msg := range s.pubsub.Channel() {
		select {
		case s.frames <- msg.Payload:
		case <-s.done:
			return
		}
	}
}
