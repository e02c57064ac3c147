package bus

import (
	"context"
	"testing"
	"time"
)

func TestInMemoryBus_CrossInstanceFanOut(t *testing.T) {
	broker := NewBroker()
	r1 := NewInMemoryBus(broker)
	r2 := NewInMemoryBus(broker)

	ctx := context.Background()
	sub1, err := r1.Subscribe(ctx, ChannelTopicPattern)
	if err != nil {
		t.Fatalf("subscribe r1: %v", err)
	}
	defer sub1.Close()
	sub2, err := r2.Subscribe(ctx, ChannelTopicPattern)
	if err != nil {
		t.Fatalf("subscribe r2: %v", err)
	}
	defer sub2.Close()

	topic := ChannelTopic("c4")
	if err := r1.Publish(ctx, topic, []byte(`{"hello":"world"}`)); err != nil {
		t.Fatalf("publish: %v", err)
	}

	for _, sub := range []Subscription{sub1, sub2} {
		select {
		case ev := <-sub.Ch():
			if ev.Topic != topic {
				t.Fatalf("topic = %q, want %q", ev.Topic, topic)
			}
		case <-time.After(500 * time.Millisecond):
			t.Fatal("timed out waiting for fan-out within 500ms budget")
		}
	}
}

func TestChannelIDFromTopic(t *testing.T) {
	id, ok := ChannelIDFromTopic("ws:channel:abc-123")
	if !ok || id != "abc-123" {
		t.Fatalf("got (%q, %v), want (%q, true)", id, ok, "abc-123")
	}
	if _, ok := ChannelIDFromTopic("other:topic"); ok {
		t.Fatal("expected no match for unrelated topic")
	}
}

func TestGlobMatch(t *testing.T) {
	cases := []struct {
		pattern, topic string
		want           bool
	}{
		{"ws:channel:*", "ws:channel:1", true},
		{"ws:channel:*", "other:1", false},
		{"ws:channel:1", "ws:channel:1", true},
	}
	for _, c := range cases {
		if got := globMatch(c.pattern, c.topic); got != c.want {
			t.Errorf("globMatch(%q,%q) = %v, want %v", c.pattern, c.topic, got, c.want)
		}
	}
}
