package gateway

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/botcrew/orchestrator/internal/apierr"
)

func jsonBody(s string) io.Reader {
	return strings.NewReader(s)
}

func TestWriteResource_EncodesDataEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	writeResource(rec, 201, "agent", "abc", map[string]string{"name": "scout"})

	var got envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if rec.Code != 201 {
		t.Fatalf("status = %d, want 201", rec.Code)
	}
	data, ok := got.Data.(map[string]any)
	if !ok {
		t.Fatalf("data is %T, want map", got.Data)
	}
	if data["type"] != "agent" || data["id"] != "abc" {
		t.Fatalf("unexpected resource shape: %+v", data)
	}
}

func TestWriteList_SetsHasNextAndCursorLink(t *testing.T) {
	rec := httptest.NewRecorder()
	writeList(rec, 200, []resource{{Type: "agent", ID: "1"}}, true, "cursor-xyz")

	var got envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Meta["has_next"] != true {
		t.Fatalf("meta.has_next = %v, want true", got.Meta["has_next"])
	}
	if got.Links["next"] != "cursor-xyz" {
		t.Fatalf("links.next = %v, want cursor-xyz", got.Links["next"])
	}
}

func TestWriteList_OmitsLinksWhenNoNextCursor(t *testing.T) {
	rec := httptest.NewRecorder()
	writeList(rec, 200, nil, false, "")

	var got envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Links != nil {
		t.Fatalf("links = %+v, want nil", got.Links)
	}
}

func TestWriteErr_MapsApiErrStatusAndFields(t *testing.T) {
	rec := httptest.NewRecorder()
	writeErr(rec, apierr.NotFound("agent not found", "agent id xyz"))

	if rec.Code != 404 {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	var got errorEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(got.Errors) != 1 {
		t.Fatalf("errors = %+v, want 1 entry", got.Errors)
	}
	if got.Errors[0].Title != "agent not found" || got.Errors[0].Detail != "agent id xyz" {
		t.Fatalf("unexpected error body: %+v", got.Errors[0])
	}
}

func TestWriteErr_UnknownErrorMapsToInternal(t *testing.T) {
	rec := httptest.NewRecorder()
	writeErr(rec, errNotApiErr{})

	if rec.Code != 500 {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
}

type errNotApiErr struct{}

func (errNotApiErr) Error() string { return "boom" }

func TestDecodeJSON_RejectsUnknownFields(t *testing.T) {
	req := httptest.NewRequest("POST", "/agents", jsonBody(`{"name":"scout","bogus":true}`))
	var v struct {
		Name string `json:"name"`
	}
	if err := decodeJSON(req, &v); err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestDecodeJSON_AcceptsKnownFields(t *testing.T) {
	req := httptest.NewRequest("POST", "/agents", jsonBody(`{"name":"scout"}`))
	var v struct {
		Name string `json:"name"`
	}
	if err := decodeJSON(req, &v); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Name != "scout" {
		t.Fatalf("name = %q, want scout", v.Name)
	}
}
