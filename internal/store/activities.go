package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// InsertActivity appends an activity record. activities is append-only: no
// Update method exists on this store, by design.
func (s *Store) InsertActivity(ctx context.Context, a Activity) (Activity, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO activities (id, agent_id, event_type, summary, details)
		VALUES ($1,$2,$3,$4,$5) RETURNING created_at`,
		a.ID, a.AgentID, a.EventType, a.Summary, a.Details)
	if err := row.Scan(&a.CreatedAt); err != nil {
		return Activity{}, fmt.Errorf("store: insert activity: %w", err)
	}
	return a, nil
}

func (s *Store) ListActivitiesForAgent(ctx context.Context, agentID uuid.UUID, limit int) ([]Activity, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, agent_id, event_type, summary, details, created_at
		FROM activities WHERE agent_id=$1 ORDER BY created_at DESC LIMIT $2`, agentID, limit)
	if err != nil {
		return nil, fmt.Errorf("store: list activities: %w", err)
	}
	defer rows.Close()
	var out []Activity
	for rows.Next() {
		var a Activity
		if err := rows.Scan(&a.ID, &a.AgentID, &a.EventType, &a.Summary, &a.Details, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("store: scan activity: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
