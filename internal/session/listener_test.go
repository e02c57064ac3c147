package session

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/botcrew/orchestrator/internal/bus"
)

func TestListener_DispatchesChannelPayload(t *testing.T) {
	broker := bus.NewBroker()
	b := bus.NewInMemoryBus(broker)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	got := make(chan string, 1)
	l := NewListener(b, log, func(_ context.Context, channelID string, payload []byte) {
		got <- channelID + ":" + string(payload)
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go l.Run(ctx)

	// Give the listener a moment to establish its subscription before
	// publishing.
	time.Sleep(10 * time.Millisecond)
	if err := b.Publish(ctx, bus.ChannelTopic("c9"), []byte("payload")); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case v := <-got:
		if v != "c9:payload" {
			t.Fatalf("got %q, want %q", v, "c9:payload")
		}
	case <-time.After(time.Second):
		t.Fatal("listener never dispatched the event")
	}
}

func TestListener_RecoversFromHandlerPanic(t *testing.T) {
	broker := bus.NewBroker()
	b := bus.NewInMemoryBus(broker)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	calls := make(chan struct{}, 2)
	l := NewListener(b, log, func(_ context.Context, channelID string, payload []byte) {
		calls <- struct{}{}
		panic("boom")
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go l.Run(ctx)

	time.Sleep(10 * time.Millisecond)
	_ = b.Publish(ctx, bus.ChannelTopic("c1"), []byte("a"))
	_ = b.Publish(ctx, bus.ChannelTopic("c1"), []byte("b"))

	for i := 0; i < 2; i++ {
		select {
		case <-calls:
		case <-time.After(time.Second):
			t.Fatalf("handler call %d never happened (listener likely died after panic)", i+1)
		}
	}
}
