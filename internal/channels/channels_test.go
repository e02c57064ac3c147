package channels

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/botcrew/orchestrator/internal/apierr"
)

func TestAddMember_RejectsAmbiguousIdentifier(t *testing.T) {
	svc := New(nil)
	agentID := uuid.New()
	human := "human-1"
	err := svc.AddMember(context.Background(), uuid.New(), &agentID, &human)
	if apierr.As(err).Kind != apierr.KindValidation {
		t.Fatalf("expected validation error for both identifiers, got %v", err)
	}
	err = svc.AddMember(context.Background(), uuid.New(), nil, nil)
	if apierr.As(err).Kind != apierr.KindValidation {
		t.Fatalf("expected validation error for neither identifier, got %v", err)
	}
}

func TestRemoveMember_RejectsAmbiguousIdentifier(t *testing.T) {
	svc := New(nil)
	err := svc.RemoveMember(context.Background(), uuid.New(), nil, nil)
	if apierr.As(err).Kind != apierr.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}
