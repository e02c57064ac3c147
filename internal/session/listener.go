package session

import (
	"context"
	"log/slog"

	"github.com/botcrew/orchestrator/internal/bus"
)

// Listener bridges a Bus subscription on the channel-topic pattern to a
// handler (always Registry.Broadcast in production). It owns one dedicated
// subscriber connection, separate from whatever connection the Communication
// Hub publishes through.
type Listener struct {
	bus     bus.Bus
	handler func(ctx context.Context, channelID string, payload []byte)
	log     *slog.Logger
}

func NewListener(b bus.Bus, log *slog.Logger, handler func(ctx context.Context, channelID string, payload []byte)) *Listener {
	return &Listener{bus: b, handler: handler, log: log}
}

// Run opens the subscription and dispatches events until ctx is canceled,
// then unsubscribes and returns. Malformed topics are dropped with a
// warning; a panic in handler is recovered so one bad frame cannot take
// down the listener goroutine.
func (l *Listener) Run(ctx context.Context) error {
	sub, err := l.bus.Subscribe(ctx, bus.ChannelTopicPattern)
	if err != nil {
		return err
	}
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-sub.Ch():
			if !ok {
				return nil
			}
			channelID, ok := bus.ChannelIDFromTopic(ev.Topic)
			if !ok {
				l.log.Warn("session: listener dropped unrecognized topic", "topic", ev.Topic)
				continue
			}
			l.dispatch(ctx, channelID, ev.Payload)
		}
	}
}

func (l *Listener) dispatch(ctx context.Context, channelID string, payload []byte) {
	defer func() {
		if r := recover(); r != nil {
			l.log.Error("session: listener handler panicked", "channel_id", channelID, "panic", r)
		}
	}()
	l.handler(ctx, channelID, payload)
}
