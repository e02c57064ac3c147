package session

import (
	"context"
	"sync"
	"testing"
	"time"
)

type fakeHandle struct {
	mu       sync.Mutex
	received [][]byte
	delay    time.Duration
	failWith error
}

func (f *fakeHandle) Send(ctx context.Context, frame []byte) error {
	if f.failWith != nil {
		return f.failWith
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.received = append(f.received, frame)
	return nil
}

func (f *fakeHandle) Close() error { return nil }

func TestBroadcast_DeliversToAllExceptExcluded(t *testing.T) {
	r := New()
	h1, h2 := &fakeHandle{}, &fakeHandle{}
	r.Attach("c1", "client-1", h1)
	r.Attach("c1", "client-2", h2)

	r.Broadcast(context.Background(), "c1", []byte("hello"), "client-2")

	if len(h1.received) != 1 {
		t.Fatalf("h1 received %d frames, want 1", len(h1.received))
	}
	if len(h2.received) != 0 {
		t.Fatalf("h2 received %d frames, want 0 (excluded)", len(h2.received))
	}
}

func TestBroadcast_EvictsSlowConsumer(t *testing.T) {
	r := New()
	slow := &fakeHandle{delay: writeTimeout * 5}
	fast := &fakeHandle{}
	r.Attach("c1", "slow", slow)
	r.Attach("c1", "fast", fast)

	r.Broadcast(context.Background(), "c1", []byte("hi"), "")

	if len(fast.received) != 1 {
		t.Fatalf("fast consumer received %d frames, want 1", len(fast.received))
	}
	if r.ClientCount("c1") != 1 {
		t.Fatalf("client count = %d, want 1 (slow consumer evicted)", r.ClientCount("c1"))
	}
}

func TestDetach_RemovesEmptyBucket(t *testing.T) {
	r := New()
	h := &fakeHandle{}
	r.Attach("c1", "only", h)
	r.Detach("c1", "only")
	if r.ClientCount("c1") != 0 {
		t.Fatalf("client count = %d, want 0", r.ClientCount("c1"))
	}
	shard := &r.shards[shardFor("c1")]
	shard.mu.Lock()
	_, exists := shard.channels["c1"]
	shard.mu.Unlock()
	if exists {
		t.Fatal("empty bucket was not deallocated")
	}
}

func TestClientCount_UnknownChannelIsZero(t *testing.T) {
	r := New()
	if r.ClientCount("never-seen") != 0 {
		t.Fatal("expected 0 for unknown channel")
	}
}
