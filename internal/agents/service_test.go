package agents

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/botcrew/orchestrator/internal/runtime"
	"github.com/botcrew/orchestrator/internal/store"
)

type fakeCreds struct {
	configured map[string]bool
}

func (f *fakeCreds) Configured(provider string) bool { return f.configured[provider] }

func TestCredentialChecker_RejectsUnconfiguredProvider(t *testing.T) {
	creds := &fakeCreds{configured: map[string]bool{"anthropic": true}}
	if creds.Configured("openai") {
		t.Fatal("expected openai to be unconfigured")
	}
	if !creds.Configured("anthropic") {
		t.Fatal("expected anthropic to be configured")
	}
}

func TestLiveStatuses_OnlyTrackedStatuses(t *testing.T) {
	tracked := []string{"running", "error", "recovering"}
	for _, s := range tracked {
		found := false
		for k := range liveStatuses {
			if string(k) == s {
				found = true
			}
		}
		if !found {
			t.Fatalf("expected %q to be a tracked live status", s)
		}
	}
	if len(liveStatuses) != len(tracked) {
		t.Fatalf("liveStatuses has %d entries, want %d", len(liveStatuses), len(tracked))
	}
}

func TestGetWithLiveStatus_MissingHandleBecomesError(t *testing.T) {
	fake := runtime.NewFakeAdapter()
	svc := New(nil, fake, nil)

	handle := "agent-gone"
	agent := store.Agent{ID: uuid.New(), Status: store.AgentRunning, WorkerHandle: &handle}

	out, err := svc.GetWithLiveStatus(context.Background(), []store.Agent{agent})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out[0].DisplayStatus != store.AgentError {
		t.Fatalf("display status = %q, want %q", out[0].DisplayStatus, store.AgentError)
	}
	if out[0].Status != store.AgentRunning {
		t.Fatalf("underlying DB status was mutated: got %q", out[0].Status)
	}
}

func TestGetWithLiveStatus_FailedPhaseBecomesError(t *testing.T) {
	fake := runtime.NewFakeAdapter()
	agentID := uuid.New()
	handle, err := fake.Launch(context.Background(), runtime.Agent{ID: agentID})
	if err != nil {
		t.Fatalf("launch: %v", err)
	}
	fake.SetPhase(handle, runtime.PhaseFailed)

	svc := New(nil, fake, nil)
	agent := store.Agent{ID: agentID, Status: store.AgentRunning, WorkerHandle: &handle}

	out, err := svc.GetWithLiveStatus(context.Background(), []store.Agent{agent})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out[0].DisplayStatus != store.AgentError {
		t.Fatalf("display status = %q, want %q", out[0].DisplayStatus, store.AgentError)
	}
}

func TestGetWithLiveStatus_PendingLeavesDisplayUnchanged(t *testing.T) {
	fake := runtime.NewFakeAdapter()
	agentID := uuid.New()
	handle, err := fake.Launch(context.Background(), runtime.Agent{ID: agentID})
	if err != nil {
		t.Fatalf("launch: %v", err)
	}
	fake.SetPhase(handle, runtime.PhasePending)

	svc := New(nil, fake, nil)
	agent := store.Agent{ID: agentID, Status: store.AgentRecovering, WorkerHandle: &handle}

	out, err := svc.GetWithLiveStatus(context.Background(), []store.Agent{agent})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out[0].DisplayStatus != store.AgentRecovering {
		t.Fatalf("display status = %q, want unchanged %q", out[0].DisplayStatus, store.AgentRecovering)
	}
}

func TestGetWithLiveStatus_NonLiveStatusPassesThrough(t *testing.T) {
	fake := runtime.NewFakeAdapter()
	svc := New(nil, fake, nil)
	agent := store.Agent{ID: uuid.New(), Status: store.AgentCreating}

	out, err := svc.GetWithLiveStatus(context.Background(), []store.Agent{agent})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out[0].DisplayStatus != store.AgentCreating {
		t.Fatalf("display status = %q, want %q", out[0].DisplayStatus, store.AgentCreating)
	}
}
