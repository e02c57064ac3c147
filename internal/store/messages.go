package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/botcrew/orchestrator/internal/shared"
)

func (s *Store) CreateMessage(ctx context.Context, m Message) (Message, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO messages (id, channel_id, sender_agent_id, sender_human_id, content, type, metadata)
		VALUES ($1,$2,$3,$4,$5,$6,$7) RETURNING created_at`,
		m.ID, m.ChannelID, m.SenderAgentID, m.SenderHumanID, m.Content, m.Type, m.Metadata)
	if err := row.Scan(&m.CreatedAt); err != nil {
		return Message{}, fmt.Errorf("store: create message: %w", err)
	}
	return m, nil
}

func scanMessage(row pgx.Row) (Message, error) {
	var m Message
	err := row.Scan(&m.ID, &m.ChannelID, &m.SenderAgentID, &m.SenderHumanID, &m.Content, &m.Type, &m.Metadata, &m.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Message{}, ErrNotFound
	}
	if err != nil {
		return Message{}, fmt.Errorf("store: scan message: %w", err)
	}
	return m, nil
}

const messageColumns = `id, channel_id, sender_agent_id, sender_human_id, content, type, metadata, created_at`

// MessageHistory returns up to pageSize+1 messages newest-first, strictly
// older than the cursor when one is supplied. The service layer peels the
// overflow row to compute has_more.
func (s *Store) MessageHistory(ctx context.Context, channelID uuid.UUID, before *shared.Cursor, pageSizePlusOne int) ([]Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE channel_id = $1`
	args := []any{channelID}
	if before != nil && !before.CreatedAt.IsZero() {
		query += ` AND (created_at, id) < ($2, $3::uuid)`
		args = append(args, before.CreatedAt, before.ID)
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT $` + fmt.Sprint(len(args)+1)
	args = append(args, pageSizePlusOne)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: message history: %w", err)
	}
	defer rows.Close()
	var out []Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// GetReadCursor returns the cursor for exactly one of agentID/humanID, or
// ErrNotFound if none exists yet (callers treat that as "all unread").
func (s *Store) GetReadCursor(ctx context.Context, channelID uuid.UUID, agentID *uuid.UUID, humanID *string) (ReadCursor, error) {
	var row pgx.Row
	switch {
	case agentID != nil:
		row = s.pool.QueryRow(ctx, `
			SELECT channel_id, agent_id, human_id, last_read_message_id, last_read_at
			FROM read_cursors WHERE channel_id=$1 AND agent_id=$2`, channelID, *agentID)
	case humanID != nil:
		row = s.pool.QueryRow(ctx, `
			SELECT channel_id, agent_id, human_id, last_read_message_id, last_read_at
			FROM read_cursors WHERE channel_id=$1 AND human_id=$2`, channelID, *humanID)
	default:
		return ReadCursor{}, ErrValidation
	}
	var rc ReadCursor
	err := row.Scan(&rc.ChannelID, &rc.AgentID, &rc.HumanID, &rc.LastReadMessageID, &rc.LastReadAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ReadCursor{}, ErrNotFound
	}
	if err != nil {
		return ReadCursor{}, fmt.Errorf("store: get read cursor: %w", err)
	}
	return rc, nil
}

// UpsertReadCursor writes the cursor only if lastReadAt is strictly newer
// than any existing value — enforcing the "never regress" invariant at the
// store layer via a conditional UPDATE, not just in the service.
func (s *Store) UpsertReadCursor(ctx context.Context, channelID uuid.UUID, agentID *uuid.UUID, humanID *string, messageID uuid.UUID, at time.Time) error {
	if (agentID == nil) == (humanID == nil) {
		return ErrValidation
	}
	var err error
	if agentID != nil {
		_, err = s.pool.Exec(ctx, `
			INSERT INTO read_cursors (channel_id, agent_id, last_read_message_id, last_read_at)
			VALUES ($1,$2,$3,$4)
			ON CONFLICT (channel_id, agent_id) WHERE agent_id IS NOT NULL
			DO UPDATE SET last_read_message_id = EXCLUDED.last_read_message_id, last_read_at = EXCLUDED.last_read_at
			WHERE read_cursors.last_read_at < EXCLUDED.last_read_at`,
			channelID, *agentID, messageID, at)
	} else {
		_, err = s.pool.Exec(ctx, `
			INSERT INTO read_cursors (channel_id, human_id, last_read_message_id, last_read_at)
			VALUES ($1,$2,$3,$4)
			ON CONFLICT (channel_id, human_id) WHERE human_id IS NOT NULL
			DO UPDATE SET last_read_message_id = EXCLUDED.last_read_message_id, last_read_at = EXCLUDED.last_read_at
			WHERE read_cursors.last_read_at < EXCLUDED.last_read_at`,
			channelID, *humanID, messageID, at)
	}
	if err != nil {
		return fmt.Errorf("store: upsert read cursor: %w", err)
	}
	return nil
}

func (s *Store) UnreadCount(ctx context.Context, channelID uuid.UUID, since *time.Time) (int, error) {
	var count int
	var err error
	if since == nil {
		err = s.pool.QueryRow(ctx, `SELECT count(*) FROM messages WHERE channel_id=$1`, channelID).Scan(&count)
	} else {
		err = s.pool.QueryRow(ctx, `SELECT count(*) FROM messages WHERE channel_id=$1 AND created_at > $2`, channelID, *since).Scan(&count)
	}
	if err != nil {
		return 0, fmt.Errorf("store: unread count: %w", err)
	}
	return count, nil
}

func (s *Store) UnreadMessages(ctx context.Context, channelID uuid.UUID, since *time.Time) ([]Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE channel_id=$1`
	args := []any{channelID}
	if since != nil {
		query += ` AND created_at > $2`
		args = append(args, *since)
	}
	query += ` ORDER BY created_at ASC, id ASC`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: unread messages: %w", err)
	}
	defer rows.Close()
	var out []Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
