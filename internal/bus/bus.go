// Package bus implements the Pub/Sub Bus Adapter (C3): topic-based
// broadcast with a publisher connection safe for concurrent use from
// request handlers, and a distinct subscriber connection owned solely by
// the Pub/Sub Listener. The two must never share a physical connection —
// a subscribed connection cannot serve regular commands.
package bus

import "context"

// Event is one message delivered to a subscription, decoded from the wire
// payload the publisher sent.
type Event struct {
	Topic   string
	Payload []byte
}

// Subscription is a live pattern subscription. The Pub/Sub Listener reads
// from Ch() until the context passed to Subscribe is canceled, then calls
// Close.
type Subscription interface {
	Ch() <-chan Event
	Close() error
}

// Bus is the seam the Communication Hub (publish side) and Pub/Sub
// Listener (subscribe side) depend on. RedisBus is the production
// implementation; InMemoryBus backs unit tests and, critically, the S6
// cross-instance fan-out test (two InMemoryBus instances wired to a shared
// broker stand in for two orchestrator replicas against the same Redis).
type Bus interface {
	// Publish is fire-and-forget: no delivery guarantee beyond best-effort
	// bus semantics. payload is the already-serialized outbound frame.
	Publish(ctx context.Context, topic string, payload []byte) error

	// Subscribe opens a pattern subscription (e.g. "ws:channel:*"). The
	// subscription's channel is closed when ctx is canceled or Close is
	// called.
	Subscribe(ctx context.Context, pattern string) (Subscription, error)

	// Close releases the adapter's connections.
	Close() error

	// Ping reports whether the adapter's connection to its broker is
	// live, for the gateway's health endpoint.
	Ping(ctx context.Context) error
}

// ChannelTopic returns the bus topic a given channel's frames are
// published/subscribed on: "ws:channel:{channel_id}".
func ChannelTopic(channelID string) string {
	return "ws:channel:" + channelID
}

// ChannelTopicPattern is the pattern the Pub/Sub Listener subscribes to at
// startup to receive frames for every channel in one subscription.
const ChannelTopicPattern = "ws:channel:*"
