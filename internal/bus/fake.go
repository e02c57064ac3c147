package bus

import (
	"context"
	"strings"
	"sync"
)

// Broker is a shared in-process router standing in for a Redis instance in
// tests. Multiple InMemoryBus "clients" attached to the same Broker model
// multiple orchestrator replicas talking to one real Redis, which is what
// the S6 cross-instance fan-out scenario exercises.
type Broker struct {
	mu   sync.Mutex
	subs map[*inMemorySubscription]struct{}
}

// NewBroker returns an empty shared broker.
func NewBroker() *Broker {
	return &Broker{subs: make(map[*inMemorySubscription]struct{})}
}

func (b *Broker) publish(topic string, payload []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for sub := range b.subs {
		if !globMatch(sub.pattern, topic) {
			continue
		}
		select {
		case sub.ch <- Event{Topic: topic, Payload: payload}:
		default:
		}
	}
}

func (b *Broker) subscribe(pattern string) *inMemorySubscription {
	sub := &inMemorySubscription{broker: b, pattern: pattern, ch: make(chan Event, 256)}
	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()
	return sub
}

func (b *Broker) unsubscribe(sub *inMemorySubscription) {
	b.mu.Lock()
	delete(b.subs, sub)
	b.mu.Unlock()
}

// globMatch supports the one pattern shape the orchestrator actually uses:
// a literal prefix followed by a trailing "*".
func globMatch(pattern, topic string) bool {
	if pattern == topic {
		return true
	}
	if strings.HasSuffix(pattern, "*") {
		return strings.HasPrefix(topic, strings.TrimSuffix(pattern, "*"))
	}
	return false
}

// InMemoryBus implements Bus against a shared Broker, with no network
// hop — the direct in-process analog of a RedisBus pair connected to the
// same Redis server.
type InMemoryBus struct {
	broker *Broker
}

// NewInMemoryBus attaches a new client to broker.
func NewInMemoryBus(broker *Broker) *InMemoryBus {
	return &InMemoryBus{broker: broker}
}

func (b *InMemoryBus) Publish(_ context.Context, topic string, payload []byte) error {
	b.broker.publish(topic, payload)
	return nil
}

func (b *InMemoryBus) Subscribe(_ context.Context, pattern string) (Subscription, error) {
	return b.broker.subscribe(pattern), nil
}

func (b *InMemoryBus) Close() error { return nil }

func (b *InMemoryBus) Ping(_ context.Context) error { return nil }

type inMemorySubscription struct {
	broker  *Broker
	pattern string
	ch      chan Event
}

func (s *inMemorySubscription) Ch() <-chan Event { return s.ch }

func (s *inMemorySubscription) Close() error {
	s.broker.unsubscribe(s)
	return nil
}
