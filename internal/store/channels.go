package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

func (s *Store) CreateChannel(ctx context.Context, c Channel, initialAgents []uuid.UUID) (Channel, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Channel{}, fmt.Errorf("store: create channel: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		INSERT INTO channels (id, name, description, type, creator)
		VALUES ($1,$2,$3,$4,$5) RETURNING created_at, updated_at`,
		c.ID, c.Name, c.Description, c.Type, c.Creator)
	if err := row.Scan(&c.CreatedAt, &c.UpdatedAt); err != nil {
		return Channel{}, fmt.Errorf("store: create channel: %w", err)
	}

	for _, agentID := range initialAgents {
		if _, err := tx.Exec(ctx, `
			INSERT INTO channel_members (channel_id, agent_id) VALUES ($1,$2)`,
			c.ID, agentID); err != nil {
			return Channel{}, fmt.Errorf("store: add initial member: %w", err)
		}
	}
	if c.Creator != nil {
		if _, err := tx.Exec(ctx, `
			INSERT INTO channel_members (channel_id, human_id) VALUES ($1,$2)
			ON CONFLICT DO NOTHING`, c.ID, *c.Creator); err != nil {
			return Channel{}, fmt.Errorf("store: add creator member: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return Channel{}, fmt.Errorf("store: create channel: commit: %w", err)
	}
	return c, nil
}

func (s *Store) GetChannel(ctx context.Context, id uuid.UUID) (Channel, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, name, description, type, creator, created_at, updated_at
		FROM channels WHERE id = $1`, id)
	return scanChannel(row)
}

func scanChannel(row pgx.Row) (Channel, error) {
	var c Channel
	err := row.Scan(&c.ID, &c.Name, &c.Description, &c.Type, &c.Creator, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Channel{}, ErrNotFound
	}
	if err != nil {
		return Channel{}, fmt.Errorf("store: scan channel: %w", err)
	}
	return c, nil
}

// GetOrCreateDM looks up a dm-type channel whose member set is exactly
// {agentID, humanID} via a two-way membership intersection (not by name),
// creating one if none exists. Runs in one transaction so two racing
// callers cannot both create a channel for the same pair.
func (s *Store) GetOrCreateDM(ctx context.Context, agentID uuid.UUID, humanID string) (Channel, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Channel{}, fmt.Errorf("store: get-or-create dm: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		SELECT c.id, c.name, c.description, c.type, c.creator, c.created_at, c.updated_at
		FROM channels c
		WHERE c.type = 'dm'
		  AND EXISTS (SELECT 1 FROM channel_members m WHERE m.channel_id = c.id AND m.agent_id = $1)
		  AND EXISTS (SELECT 1 FROM channel_members m WHERE m.channel_id = c.id AND m.human_id = $2)
		LIMIT 1`, agentID, humanID)
	c, err := scanChannel(row)
	if err == nil {
		return c, tx.Commit(ctx)
	}
	if !errors.Is(err, ErrNotFound) {
		return Channel{}, err
	}

	id := uuid.New()
	row = tx.QueryRow(ctx, `
		INSERT INTO channels (id, name, description, type, creator)
		VALUES ($1, $2, '', 'dm', $3) RETURNING created_at, updated_at`,
		id, "dm-"+id.String(), humanID)
	c = Channel{ID: id, Name: "dm-" + id.String(), Type: ChannelDM, Creator: &humanID}
	if err := row.Scan(&c.CreatedAt, &c.UpdatedAt); err != nil {
		return Channel{}, fmt.Errorf("store: create dm channel: %w", err)
	}
	if _, err := tx.Exec(ctx, `INSERT INTO channel_members (channel_id, agent_id) VALUES ($1,$2)`, id, agentID); err != nil {
		return Channel{}, fmt.Errorf("store: add dm agent member: %w", err)
	}
	if _, err := tx.Exec(ctx, `INSERT INTO channel_members (channel_id, human_id) VALUES ($1,$2)`, id, humanID); err != nil {
		return Channel{}, fmt.Errorf("store: add dm human member: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return Channel{}, fmt.Errorf("store: create dm channel: commit: %w", err)
	}
	return c, nil
}

func (s *Store) AddMember(ctx context.Context, channelID uuid.UUID, agentID *uuid.UUID, humanID *string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO channel_members (channel_id, agent_id, human_id) VALUES ($1,$2,$3)`,
		channelID, agentID, humanID)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("store: add member: %w", err)
	}
	return nil
}

func (s *Store) RemoveMember(ctx context.Context, channelID uuid.UUID, agentID *uuid.UUID, humanID *string) error {
	var (
		rowsAffected int64
		err          error
	)
	switch {
	case agentID != nil:
		tag, e := s.pool.Exec(ctx, `DELETE FROM channel_members WHERE channel_id=$1 AND agent_id=$2`, channelID, *agentID)
		rowsAffected, err = tag.RowsAffected(), e
	case humanID != nil:
		tag, e := s.pool.Exec(ctx, `DELETE FROM channel_members WHERE channel_id=$1 AND human_id=$2`, channelID, *humanID)
		rowsAffected, err = tag.RowsAffected(), e
	default:
		return fmt.Errorf("store: remove member: %w", ErrValidation)
	}
	if err != nil {
		return fmt.Errorf("store: remove member: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) ListMembers(ctx context.Context, channelID uuid.UUID) ([]Member, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT channel_id, agent_id, human_id, created_at FROM channel_members WHERE channel_id=$1`, channelID)
	if err != nil {
		return nil, fmt.Errorf("store: list members: %w", err)
	}
	defer rows.Close()
	var out []Member
	for rows.Next() {
		var m Member
		if err := rows.Scan(&m.ChannelID, &m.AgentID, &m.HumanID, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("store: scan member: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// ChannelAgentIDs returns only agent members, used by @mention routing.
func (s *Store) ChannelAgentIDs(ctx context.Context, channelID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT agent_id FROM channel_members WHERE channel_id=$1 AND agent_id IS NOT NULL`, channelID)
	if err != nil {
		return nil, fmt.Errorf("store: channel agent ids: %w", err)
	}
	defer rows.Close()
	var out []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("store: scan agent id: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (s *Store) ListChannels(ctx context.Context, filterAgent *uuid.UUID, filterHuman *string) ([]Channel, error) {
	query := `SELECT DISTINCT c.id, c.name, c.description, c.type, c.creator, c.created_at, c.updated_at
		FROM channels c`
	args := []any{}
	if filterAgent != nil {
		query += ` JOIN channel_members m ON m.channel_id = c.id AND m.agent_id = $1`
		args = append(args, *filterAgent)
	} else if filterHuman != nil {
		query += ` JOIN channel_members m ON m.channel_id = c.id AND m.human_id = $1`
		args = append(args, *filterHuman)
	}
	query += ` ORDER BY c.created_at ASC`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list channels: %w", err)
	}
	defer rows.Close()
	var out []Channel
	for rows.Next() {
		c, err := scanChannel(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
