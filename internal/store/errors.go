package store

import "errors"

// ErrNotFound is returned by any lookup that finds no matching row. Callers
// at the service layer translate it into apierr.NotFound.
var ErrNotFound = errors.New("store: not found")

// ErrDuplicate is returned when a write would violate a UNIQUE constraint
// that models an application-level "no duplicates" invariant (channel
// membership, assignment-graph edges, skill names).
var ErrDuplicate = errors.New("store: duplicate")

// ErrValidation is returned for caller errors the store itself can detect
// (e.g. neither agent nor human identifier supplied to a tagged-variant
// lookup).
var ErrValidation = errors.New("store: validation")
