package bus

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

// RedisBus is the production Bus: one client used for Publish (safe for
// concurrent non-blocking commands), and a second, dedicated client used
// only for PSubscribe, because a subscribed Redis connection cannot also
// serve regular commands.
type RedisBus struct {
	publisher  *redis.Client
	subscriber *redis.Client
}

// Dial connects both clients to addr and pings the publisher connection to
// confirm connectivity before returning, mirroring the original's
// redis.asyncio startup check (ping-verified connectivity,
// max_connections=20).
func Dial(ctx context.Context, addr string) (*RedisBus, error) {
	opts := &redis.Options{Addr: addr, PoolSize: 20}
	pub := redis.NewClient(opts)
	if err := pub.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("bus: dial: ping: %w", err)
	}
	sub := redis.NewClient(opts)
	return &RedisBus{publisher: pub, subscriber: sub}, nil
}

// Ping checks the publisher connection, mirroring the check Dial performs
// at startup.
func (b *RedisBus) Ping(ctx context.Context) error {
	if err := b.publisher.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("bus: ping: %w", err)
	}
	return nil
}

func (b *RedisBus) Publish(ctx context.Context, topic string, payload []byte) error {
	if err := b.publisher.Publish(ctx, topic, payload).Err(); err != nil {
		return fmt.Errorf("bus: publish: %w", err)
	}
	return nil
}

func (b *RedisBus) Subscribe(ctx context.Context, pattern string) (Subscription, error) {
	ps := b.subscriber.PSubscribe(ctx, pattern)
	if _, err := ps.Receive(ctx); err != nil {
		return nil, fmt.Errorf("bus: subscribe: %w", err)
	}
	sub := &redisSubscription{ps: ps, ch: make(chan Event, 256), done: make(chan struct{})}
	go sub.pump(ctx)
	return sub, nil
}

func (b *RedisBus) Close() error {
	pubErr := b.publisher.Close()
	subErr := b.subscriber.Close()
	if pubErr != nil {
		return pubErr
	}
	return subErr
}

type redisSubscription struct {
	ps   *redis.PubSub
	ch   chan Event
	done chan struct{}
}

func (s *redisSubscription) pump(ctx context.Context) {
	defer close(s.ch)
	recv := s.ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case msg, ok := <-recv:
			if !ok {
				return
			}
			select {
			case s.ch <- Event{Topic: msg.Channel, Payload: []byte(msg.Payload)}:
			default:
				// Slow consumer on the listener side: drop rather than
				// block the Redis client's read loop.
			}
		}
	}
}

func (s *redisSubscription) Ch() <-chan Event { return s.ch }

func (s *redisSubscription) Close() error {
	close(s.done)
	return s.ps.Close()
}

// ChannelIDFromTopic extracts the channel_id suffix from a "ws:channel:{id}"
// topic string, used by the Pub/Sub Listener.
func ChannelIDFromTopic(topic string) (string, bool) {
	const prefix = "ws:channel:"
	if !strings.HasPrefix(topic, prefix) {
		return "", false
	}
	return strings.TrimPrefix(topic, prefix), true
}
