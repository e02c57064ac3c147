package runtime

import "errors"

// ErrRuntimeUnavailable indicates the underlying runtime (Docker daemon,
// in production a Kubernetes API server) could not be reached.
var ErrRuntimeUnavailable = errors.New("runtime: unavailable")

// ErrConflict indicates a worker for this agent already exists and is running.
var ErrConflict = errors.New("runtime: worker already exists")
