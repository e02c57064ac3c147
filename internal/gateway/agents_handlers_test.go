package gateway

import (
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/botcrew/orchestrator/internal/agents"
	"github.com/botcrew/orchestrator/internal/store"
)

func TestPathUUID_InvalidIDReturnsValidationError(t *testing.T) {
	req := httptest.NewRequest("GET", "/agents/not-a-uuid", nil)
	req.SetPathValue("id", "not-a-uuid")
	rec := httptest.NewRecorder()

	if _, ok := pathUUID(rec, req, "id"); ok {
		t.Fatal("expected pathUUID to reject a malformed id")
	}
	if rec.Code != 422 && rec.Code != 400 {
		t.Fatalf("status = %d, want a client error", rec.Code)
	}
}

func TestPathUUID_ValidIDParses(t *testing.T) {
	id := uuid.New()
	req := httptest.NewRequest("GET", "/agents/"+id.String(), nil)
	req.SetPathValue("id", id.String())
	rec := httptest.NewRecorder()

	got, ok := pathUUID(rec, req, "id")
	if !ok {
		t.Fatal("expected pathUUID to accept a valid id")
	}
	if got != id {
		t.Fatalf("parsed id = %s, want %s", got, id)
	}
}

func TestAgentResource_MapsLiveAgentFields(t *testing.T) {
	id := uuid.New()
	live := agents.LiveAgent{
		Agent: store.Agent{
			ID: id, Name: "scout", Identity: "a scout agent", Personality: "curious",
			ModelProvider: "anthropic", ModelName: "claude", Status: store.AgentRunning,
			HeartbeatPeriodSeconds: 3600, HeartbeatEnabled: true, CreatedAt: time.Now(),
		},
		DisplayStatus: store.AgentError,
	}

	res := agentResource(live)
	if res.Type != "agent" || res.ID != id.String() {
		t.Fatalf("unexpected resource identity: %+v", res)
	}
	attrs, ok := res.Attributes.(agentAttrs)
	if !ok {
		t.Fatalf("attributes is %T, want agentAttrs", res.Attributes)
	}
	if attrs.Status != "running" || attrs.DisplayStatus != "error" {
		t.Fatalf("status=%q display_status=%q, want running/error", attrs.Status, attrs.DisplayStatus)
	}
}

func TestHandleCreateAgent_InvalidBodyRejectedBeforeTouchingServices(t *testing.T) {
	s := &Server{cfg: Config{}}
	req := httptest.NewRequest("POST", "/agents", jsonBody(`{"name":}`))
	rec := httptest.NewRecorder()

	s.handleCreateAgent(rec, req)

	if rec.Code != 422 {
		t.Fatalf("status = %d, want 422", rec.Code)
	}
	var got errorEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(got.Errors) != 1 {
		t.Fatalf("errors = %+v, want 1 entry", got.Errors)
	}
}

func TestHandleGetAgent_InvalidIDRejectedBeforeTouchingServices(t *testing.T) {
	s := &Server{cfg: Config{}}
	req := httptest.NewRequest("GET", "/agents/not-a-uuid", nil)
	req.SetPathValue("id", "not-a-uuid")
	rec := httptest.NewRecorder()

	s.handleGetAgent(rec, req)

	if rec.Code != 422 {
		t.Fatalf("status = %d, want 422", rec.Code)
	}
}
