package gateway

import (
	"encoding/json"
	"net/http"

	"github.com/botcrew/orchestrator/internal/apierr"
)

// resource is one {type, id, attributes} entry in a response envelope, per
// spec §6's response shape.
type resource struct {
	Type       string `json:"type"`
	ID         string `json:"id"`
	Attributes any    `json:"attributes"`
}

type envelope struct {
	Data  any            `json:"data,omitempty"`
	Meta  map[string]any `json:"meta,omitempty"`
	Links map[string]any `json:"links,omitempty"`
}

type errorEnvelope struct {
	Errors []errorBody `json:"errors"`
}

type errorBody struct {
	Status string `json:"status"`
	Title  string `json:"title"`
	Detail string `json:"detail"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeResource writes a single-resource envelope.
func writeResource(w http.ResponseWriter, status int, typ, id string, attrs any) {
	writeJSON(w, status, envelope{Data: resource{Type: typ, ID: id, Attributes: attrs}})
}

// writeList writes a list-of-resources envelope, with an optional
// next-page cursor surfaced under meta/links.
func writeList(w http.ResponseWriter, status int, items []resource, hasNext bool, nextCursor string) {
	env := envelope{Data: items, Meta: map[string]any{"has_next": hasNext}}
	if nextCursor != "" {
		env.Links = map[string]any{"next": nextCursor}
	}
	writeJSON(w, status, env)
}

// writeErr maps any error to the {errors:[...]} envelope, funneling through
// apierr.As the same way every service-layer boundary already does.
func writeErr(w http.ResponseWriter, err error) {
	apiErr := apierr.As(err)
	writeJSON(w, apiErr.Status(), errorEnvelope{Errors: []errorBody{{
		Status: http.StatusText(apiErr.Status()),
		Title:  apiErr.Title,
		Detail: apiErr.Detail,
	}}})
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
