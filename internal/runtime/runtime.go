// Package runtime implements the Worker-Runtime Adapter (C2): an abstract
// interface to create/delete/list/inspect worker instances by logical name,
// plus a Docker-backed implementation of it.
package runtime

import (
	"context"

	"github.com/google/uuid"
)

// Phase mirrors the three-phase worker lifecycle model the adapter exposes
// to the Agent Service and Reconciler.
type Phase string

const (
	PhasePending Phase = "pending"
	PhaseRunning Phase = "running"
	PhaseFailed  Phase = "failed"
)

// Agent is the minimal view of an agent the adapter needs to launch a
// worker: enough identity and model settings to populate the worker's
// environment, nothing about channels or messages.
type Agent struct {
	ID            uuid.UUID
	Name          string
	ModelProvider string
	ModelName     string
}

// Worker describes one running (or recently running) worker instance as
// reported by the runtime, keyed by its opaque handle.
type Worker struct {
	Handle string
	Phase  Phase
}

// Adapter is the seam the Agent Service and Reconciler depend on. Exactly
// one concrete implementation (Docker) backs production use; a second,
// in-memory fake backs unit tests that exercise reconciliation logic
// without a container runtime.
type Adapter interface {
	// Launch starts a new worker for agent and returns its handle. Returns
	// ErrRuntimeUnavailable if the runtime cannot be reached, or
	// ErrConflict if a worker for this agent already exists.
	Launch(ctx context.Context, agent Agent) (handle string, err error)

	// Terminate stops and removes the worker at handle. Idempotent: a
	// handle the runtime no longer recognizes is a success, not an error.
	Terminate(ctx context.Context, handle string, graceSeconds int) error

	// Inspect reports the phase of the worker at handle, or ok=false if
	// the handle is unknown to the runtime.
	Inspect(ctx context.Context, handle string) (phase Phase, ok bool, err error)

	// ListAll enumerates every worker belonging to this orchestrator,
	// filtered by the adapter's well-known label set. One call replaces N
	// per-agent Inspect calls during Reconciler ticks and Agent Service
	// list enrichment.
	ListAll(ctx context.Context) ([]Worker, error)

	// Close releases the adapter's underlying client connection.
	Close() error
}
