package gateway

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/botcrew/orchestrator/internal/store"
)

func TestChannelResource_MapsCreatorWhenPresent(t *testing.T) {
	id := uuid.New()
	creator := "alice"
	c := store.Channel{ID: id, Name: "general", Type: store.ChannelShared, Creator: &creator, CreatedAt: time.Now()}

	res := channelResource(c)
	attrs, ok := res.Attributes.(channelAttrs)
	if !ok {
		t.Fatalf("attributes is %T, want channelAttrs", res.Attributes)
	}
	if attrs.Creator != "alice" {
		t.Fatalf("creator = %q, want alice", attrs.Creator)
	}
}

func TestChannelResource_OmitsCreatorWhenNil(t *testing.T) {
	c := store.Channel{ID: uuid.New(), Name: "general", Type: store.ChannelShared, CreatedAt: time.Now()}

	res := channelResource(c)
	attrs := res.Attributes.(channelAttrs)
	if attrs.Creator != "" {
		t.Fatalf("creator = %q, want empty", attrs.Creator)
	}
}

func TestMessageResource_MapsAgentSender(t *testing.T) {
	agentID := uuid.New()
	m := store.Message{ID: uuid.New(), Content: "hi", Type: store.MessageChat, SenderAgentID: &agentID, CreatedAt: time.Now()}

	res := messageResource(m)
	attrs := res.Attributes.(messageAttrs)
	if attrs.SenderAgentID == nil || *attrs.SenderAgentID != agentID.String() {
		t.Fatalf("sender_agent_id = %v, want %s", attrs.SenderAgentID, agentID)
	}
	if attrs.SenderHumanID != nil {
		t.Fatalf("sender_human_id = %v, want nil", attrs.SenderHumanID)
	}
}

func TestHandleAddMember_InvalidBodyRejectedBeforeTouchingServices(t *testing.T) {
	s := &Server{cfg: Config{}}
	req := httptest.NewRequest("POST", "/channels/x/members", jsonBody(`{"agent_id":}`))
	req.SetPathValue("id", uuid.New().String())
	rec := httptest.NewRecorder()

	s.handleAddMember(rec, req)

	if rec.Code != 422 {
		t.Fatalf("status = %d, want 422", rec.Code)
	}
}

func TestHandleRemoveMember_InvalidAgentIDQueryRejected(t *testing.T) {
	s := &Server{cfg: Config{}}
	req := httptest.NewRequest("DELETE", "/channels/x/members?agent_id=not-a-uuid", nil)
	req.SetPathValue("id", uuid.New().String())
	rec := httptest.NewRecorder()

	s.handleRemoveMember(rec, req)

	if rec.Code != 422 {
		t.Fatalf("status = %d, want 422", rec.Code)
	}
}
