// Package session implements the Session Registry (C7): an in-process
// map of live session handles keyed by channel, sharded per-channel so no
// single lock is held across a broadcast to every connected client.
package session

import (
	"context"
	"hash/fnv"
	"sync"
	"time"
)

// writeTimeout bounds how long a single client's send may block before the
// registry treats it as dead, so a broadcast stays resilient to slow
// consumers.
const writeTimeout = 200 * time.Millisecond

const shardCount = 16

// Handle is the seam the registry depends on instead of a concrete
// WebSocket type, so it can be exercised by tests without a real
// connection. The Session Endpoint (C13) implements this over
// coder/websocket + wsjson.
type Handle interface {
	// Send delivers frame, respecting ctx's deadline. An error (including
	// ctx.Err()) marks the handle for eviction.
	Send(ctx context.Context, frame []byte) error
	// Close releases the underlying connection.
	Close() error
}

type bucket struct {
	mu      sync.Mutex
	clients map[string]Handle // client_id -> handle
}

// Registry owns every live session handle. Nothing else may close a
// session's Handle.
type Registry struct {
	shards [shardCount]struct {
		mu       sync.Mutex
		channels map[string]*bucket
	}
}

func New() *Registry {
	r := &Registry{}
	for i := range r.shards {
		r.shards[i].channels = make(map[string]*bucket)
	}
	return r
}

func shardFor(channelID string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(channelID))
	return h.Sum32() % shardCount
}

func (r *Registry) bucketFor(channelID string, create bool) *bucket {
	shard := &r.shards[shardFor(channelID)]
	shard.mu.Lock()
	defer shard.mu.Unlock()
	b, ok := shard.channels[channelID]
	if !ok {
		if !create {
			return nil
		}
		b = &bucket{clients: make(map[string]Handle)}
		shard.channels[channelID] = b
	}
	return b
}

// Attach registers handle as clientID's session on channelID, called after
// the session handshake is accepted.
func (r *Registry) Attach(channelID, clientID string, handle Handle) {
	b := r.bucketFor(channelID, true)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.clients[clientID] = handle
}

// Detach removes clientID's session from channelID, deallocating the
// channel's bucket once it is empty.
func (r *Registry) Detach(channelID, clientID string) {
	shard := &r.shards[shardFor(channelID)]
	shard.mu.Lock()
	defer shard.mu.Unlock()
	b, ok := shard.channels[channelID]
	if !ok {
		return
	}
	b.mu.Lock()
	delete(b.clients, clientID)
	empty := len(b.clients) == 0
	b.mu.Unlock()
	if empty {
		delete(shard.channels, channelID)
	}
}

// ClientCount reports the number of live sessions attached to channelID.
func (r *Registry) ClientCount(channelID string) int {
	b := r.bucketFor(channelID, false)
	if b == nil {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.clients)
}

// Broadcast delivers frame to every session on channelID except
// exceptClientID (pass "" to exclude none). The bucket lock is never held
// across a network write: the member set is snapshotted, the lock
// released, then each write runs with its own bounded timeout. Any client
// whose write fails or times out is evicted after the broadcast loop
// completes (mark-dead-then-evict).
func (r *Registry) Broadcast(ctx context.Context, channelID string, frame []byte, exceptClientID string) {
	b := r.bucketFor(channelID, false)
	if b == nil {
		return
	}

	b.mu.Lock()
	snapshot := make(map[string]Handle, len(b.clients))
	for id, h := range b.clients {
		if id == exceptClientID {
			continue
		}
		snapshot[id] = h
	}
	b.mu.Unlock()

	var dead []string
	for clientID, handle := range snapshot {
		writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
		err := handle.Send(writeCtx, frame)
		cancel()
		if err != nil {
			dead = append(dead, clientID)
		}
	}

	for _, clientID := range dead {
		r.Detach(channelID, clientID)
	}
}
