// Package messages implements the Message Service (C5): persistence,
// cursor-paginated history, read-cursor bookkeeping, and unread
// enumeration, as a thin layer over the Durable Store that owns the
// request-shape validation the store itself does not enforce.
package messages

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/botcrew/orchestrator/internal/apierr"
	"github.com/botcrew/orchestrator/internal/shared"
	"github.com/botcrew/orchestrator/internal/store"
)

const maxPageSize = 200

type Service struct {
	store *store.Store
}

func New(s *store.Store) *Service {
	return &Service{store: s}
}

// Create persists one message. Exactly one of senderAgent/senderHuman must
// be set unless typ is system, in which case both may be nil.
func (s *Service) Create(ctx context.Context, channelID uuid.UUID, content string, typ store.MessageType, senderAgent *uuid.UUID, senderHuman *string, metadata []byte) (store.Message, error) {
	bothNil := senderAgent == nil && senderHuman == nil
	bothSet := senderAgent != nil && senderHuman != nil
	if bothSet {
		return store.Message{}, apierr.Validation("invalid sender", "exactly one of sender_agent/sender_human may be set")
	}
	if bothNil && typ != store.MessageSystem {
		return store.Message{}, apierr.Validation("invalid sender", "sender_agent or sender_human is required for non-system messages")
	}

	m := store.Message{
		ID:            uuid.New(),
		ChannelID:     channelID,
		SenderAgentID: senderAgent,
		SenderHumanID: senderHuman,
		Content:       content,
		Type:          typ,
		Metadata:      metadata,
	}
	out, err := s.store.CreateMessage(ctx, m)
	if err != nil {
		return store.Message{}, fmt.Errorf("messages: create: %w", err)
	}
	return out, nil
}

// HistoryPage is the service-level page result: messages newest-first plus
// whether more history exists before the oldest message returned.
type HistoryPage struct {
	Messages []store.Message
	HasMore  bool
	Next     string
}

// History returns a newest-first page, peeling the page_size+1'th row to
// compute has_more and the next opaque cursor.
func clampPageSize(pageSize int) int {
	if pageSize <= 0 || pageSize > maxPageSize {
		return maxPageSize
	}
	return pageSize
}

func (s *Service) History(ctx context.Context, channelID uuid.UUID, pageSize int, beforeCursor string) (HistoryPage, error) {
	pageSize = clampPageSize(pageSize)
	var before *shared.Cursor
	if beforeCursor != "" {
		c, err := shared.DecodeCursor(beforeCursor)
		if err != nil {
			return HistoryPage{}, apierr.Validation("invalid cursor", "before cursor is malformed")
		}
		before = &c
	}

	rows, err := s.store.MessageHistory(ctx, channelID, before, pageSize+1)
	if err != nil {
		return HistoryPage{}, fmt.Errorf("messages: history: %w", err)
	}

	hasMore := len(rows) > pageSize
	if hasMore {
		rows = rows[:pageSize]
	}

	page := HistoryPage{Messages: rows, HasMore: hasMore}
	if hasMore && len(rows) > 0 {
		last := rows[len(rows)-1]
		page.Next = shared.Cursor{CreatedAt: last.CreatedAt, ID: last.ID.String()}.Encode()
	}
	return page, nil
}

// UpdateReadCursor upserts exactly one identity's read position. messageID
// and at must describe the message being marked read.
func (s *Service) UpdateReadCursor(ctx context.Context, channelID uuid.UUID, agentID *uuid.UUID, humanID *string, messageID uuid.UUID, at time.Time) error {
	if (agentID == nil) == (humanID == nil) {
		return apierr.Validation("invalid identifier", "exactly one of agent/human identifier is required")
	}
	if err := s.store.UpsertReadCursor(ctx, channelID, agentID, humanID, messageID, at); err != nil {
		return fmt.Errorf("messages: update read cursor: %w", err)
	}
	return nil
}

// UnreadCount returns the number of messages strictly newer than the
// caller's read cursor, or the full count if no cursor exists yet.
func (s *Service) UnreadCount(ctx context.Context, channelID uuid.UUID, agentID *uuid.UUID, humanID *string) (int, error) {
	since, err := s.cursorInstant(ctx, channelID, agentID, humanID)
	if err != nil {
		return 0, err
	}
	count, err := s.store.UnreadCount(ctx, channelID, since)
	if err != nil {
		return 0, fmt.Errorf("messages: unread count: %w", err)
	}
	return count, nil
}

// UnreadMessages returns the oldest-first list of messages newer than the
// caller's read cursor.
func (s *Service) UnreadMessages(ctx context.Context, channelID uuid.UUID, agentID *uuid.UUID, humanID *string) ([]store.Message, error) {
	since, err := s.cursorInstant(ctx, channelID, agentID, humanID)
	if err != nil {
		return nil, err
	}
	rows, err := s.store.UnreadMessages(ctx, channelID, since)
	if err != nil {
		return nil, fmt.Errorf("messages: unread messages: %w", err)
	}
	return rows, nil
}

func (s *Service) cursorInstant(ctx context.Context, channelID uuid.UUID, agentID *uuid.UUID, humanID *string) (*time.Time, error) {
	if (agentID == nil) == (humanID == nil) {
		return nil, apierr.Validation("invalid identifier", "exactly one of agent/human identifier is required")
	}
	rc, err := s.store.GetReadCursor(ctx, channelID, agentID, humanID)
	if err == store.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("messages: read cursor: %w", err)
	}
	return &rc.LastReadAt, nil
}
