// Package channels implements the Channel Service (C6): channel creation,
// membership, DM lookup-or-create, and the agent-id projection @mention
// routing depends on.
package channels

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/botcrew/orchestrator/internal/apierr"
	"github.com/botcrew/orchestrator/internal/store"
)

type Service struct {
	store *store.Store
}

func New(s *store.Store) *Service {
	return &Service{store: s}
}

// Create makes a new channel, adding a ChannelMember for each initial agent
// and for the creator (if a human identifier) in one transactional unit.
func (s *Service) Create(ctx context.Context, name, description string, typ store.ChannelType, creator *string, initialAgents []uuid.UUID) (store.Channel, error) {
	c := store.Channel{
		ID:          uuid.New(),
		Name:        name,
		Description: description,
		Type:        typ,
		Creator:     creator,
	}
	out, err := s.store.CreateChannel(ctx, c, initialAgents)
	if err != nil {
		return store.Channel{}, fmt.Errorf("channels: create: %w", err)
	}
	return out, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (store.Channel, error) {
	c, err := s.store.GetChannel(ctx, id)
	if err == store.ErrNotFound {
		return store.Channel{}, apierr.NotFound("channel not found", id.String())
	}
	if err != nil {
		return store.Channel{}, fmt.Errorf("channels: get: %w", err)
	}
	return c, nil
}

// GetOrCreateDM returns the dm-type channel whose member set is exactly
// {agentID, humanID}, creating it if none exists.
func (s *Service) GetOrCreateDM(ctx context.Context, agentID uuid.UUID, humanID string) (store.Channel, error) {
	c, err := s.store.GetOrCreateDM(ctx, agentID, humanID)
	if err != nil {
		return store.Channel{}, fmt.Errorf("channels: get-or-create dm: %w", err)
	}
	return c, nil
}

// AddMember is idempotent from the caller's perspective: a duplicate
// membership is reported distinctly so the caller can treat it as a no-op
// rather than a hard failure.
func (s *Service) AddMember(ctx context.Context, channelID uuid.UUID, agentID *uuid.UUID, humanID *string) error {
	if (agentID == nil) == (humanID == nil) {
		return apierr.Validation("invalid member", "exactly one of agent/human identifier is required")
	}
	err := s.store.AddMember(ctx, channelID, agentID, humanID)
	if err == store.ErrDuplicate {
		return apierr.Conflict("already a member", "this identity is already a member of the channel")
	}
	if err != nil {
		return fmt.Errorf("channels: add member: %w", err)
	}
	return nil
}

func (s *Service) RemoveMember(ctx context.Context, channelID uuid.UUID, agentID *uuid.UUID, humanID *string) error {
	if (agentID == nil) == (humanID == nil) {
		return apierr.Validation("invalid member", "exactly one of agent/human identifier is required")
	}
	err := s.store.RemoveMember(ctx, channelID, agentID, humanID)
	if err == store.ErrNotFound {
		return apierr.NotFound("not a member", "this identity is not a member of the channel")
	}
	if err != nil {
		return fmt.Errorf("channels: remove member: %w", err)
	}
	return nil
}

func (s *Service) ListMembers(ctx context.Context, channelID uuid.UUID) ([]store.Member, error) {
	out, err := s.store.ListMembers(ctx, channelID)
	if err != nil {
		return nil, fmt.Errorf("channels: list members: %w", err)
	}
	return out, nil
}

// ChannelAgentIDs returns only the agent members of channelID, used by
// @mention routing (C9) to resolve mentions against live membership rather
// than a denormalized name index.
func (s *Service) ChannelAgentIDs(ctx context.Context, channelID uuid.UUID) ([]uuid.UUID, error) {
	out, err := s.store.ChannelAgentIDs(ctx, channelID)
	if err != nil {
		return nil, fmt.Errorf("channels: channel agent ids: %w", err)
	}
	return out, nil
}

func (s *Service) ListChannels(ctx context.Context, filterAgent *uuid.UUID, filterHuman *string) ([]store.Channel, error) {
	out, err := s.store.ListChannels(ctx, filterAgent, filterHuman)
	if err != nil {
		return nil, fmt.Errorf("channels: list channels: %w", err)
	}
	return out, nil
}
