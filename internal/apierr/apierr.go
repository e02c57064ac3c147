// Package apierr implements the orchestrator's HTTP error taxonomy: a small
// set of typed errors, each carrying the HTTP status and the safe detail
// string a client is allowed to see. Internal causes are logged, never
// serialized.
package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	KindNotFound             Kind = "not_found"
	KindConflict             Kind = "conflict"
	KindValidation           Kind = "validation"
	KindProviderUnconfigured Kind = "provider_unconfigured"
	KindUnavailable          Kind = "unavailable"
	KindWorkerUnreachable    Kind = "worker_unreachable"
	KindInternal             Kind = "internal"
)

var statusByKind = map[Kind]int{
	KindNotFound:             http.StatusNotFound,
	KindConflict:             http.StatusConflict,
	KindValidation:           http.StatusUnprocessableEntity,
	KindProviderUnconfigured: http.StatusUnprocessableEntity,
	KindUnavailable:          http.StatusServiceUnavailable,
	KindWorkerUnreachable:    http.StatusBadGateway,
	KindInternal:             http.StatusInternalServerError,
}

// Error is the typed error every component boundary is expected to return.
// cause is kept out of Error() on purpose: Error() is what gets logged, and
// the client-visible Detail is what gets serialized by the gateway envelope.
type Error struct {
	Kind   Kind
	Title  string
	Detail string
	cause  error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Title, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Title)
}

func (e *Error) Unwrap() error { return e.cause }

// Status returns the HTTP status code for this error's Kind.
func (e *Error) Status() int {
	if s, ok := statusByKind[e.Kind]; ok {
		return s
	}
	return http.StatusInternalServerError
}

func new_(kind Kind, title, detail string, cause error) *Error {
	return &Error{Kind: kind, Title: title, Detail: detail, cause: cause}
}

func NotFound(title, detail string) *Error { return new_(KindNotFound, title, detail, nil) }

func Conflict(title, detail string) *Error { return new_(KindConflict, title, detail, nil) }

func Validation(title, detail string) *Error { return new_(KindValidation, title, detail, nil) }

func ProviderUnconfigured(title, detail string) *Error {
	return new_(KindProviderUnconfigured, title, detail, nil)
}

func Unavailable(title, detail string, cause error) *Error {
	return new_(KindUnavailable, title, detail, cause)
}

func WorkerUnreachable(title, detail string, cause error) *Error {
	return new_(KindWorkerUnreachable, title, detail, cause)
}

func Internal(cause error) *Error {
	return new_(KindInternal, "internal error", "an internal error occurred", cause)
}

// As recovers an *Error from err, wrapping it as Internal if err is not
// already one of ours. Every HTTP handler funnels its return error through
// this before writing a response.
func As(err error) *Error {
	if err == nil {
		return nil
	}
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return Internal(err)
}
