package runtime

import (
	"context"
	"sync"
)

// FakeAdapter is an in-memory Adapter used by reconciler and agent-service
// unit tests so they can exercise lifecycle transitions without a Docker
// daemon.
type FakeAdapter struct {
	mu      sync.Mutex
	workers map[string]Phase
	seq     int
}

// NewFakeAdapter returns an empty fake runtime.
func NewFakeAdapter() *FakeAdapter {
	return &FakeAdapter{workers: make(map[string]Phase)}
}

func (f *FakeAdapter) Launch(_ context.Context, agent Agent) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	handle := containerName(agent.ID)
	if p, ok := f.workers[handle]; ok && p == PhaseRunning {
		return "", ErrConflict
	}
	f.seq++
	f.workers[handle] = PhaseRunning
	return handle, nil
}

func (f *FakeAdapter) Terminate(_ context.Context, handle string, _ int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.workers, handle)
	return nil
}

func (f *FakeAdapter) Inspect(_ context.Context, handle string) (Phase, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.workers[handle]
	return p, ok, nil
}

func (f *FakeAdapter) ListAll(_ context.Context) ([]Worker, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Worker, 0, len(f.workers))
	for h, p := range f.workers {
		out = append(out, Worker{Handle: h, Phase: p})
	}
	return out, nil
}

func (f *FakeAdapter) Close() error { return nil }

// SetPhase lets a test simulate a worker transitioning to a given phase
// (e.g. failed, or disappearing) out-of-band from Launch/Terminate.
func (f *FakeAdapter) SetPhase(handle string, phase Phase) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.workers[handle] = phase
}

// Remove simulates the runtime losing track of a handle entirely (e.g. a
// pod evicted out from under the orchestrator).
func (f *FakeAdapter) Remove(handle string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.workers, handle)
}
