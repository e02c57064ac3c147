package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/botcrew/orchestrator/internal/shared"
)

func (s *Store) CreateAgent(ctx context.Context, a Agent) (Agent, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO agents (id, name, identity, personality, memory,
			heartbeat_period_seconds, heartbeat_prompt, heartbeat_enabled,
			model_provider, model_name, worker_handle, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		RETURNING created_at, updated_at`,
		a.ID, a.Name, a.Identity, a.Personality, a.Memory,
		a.HeartbeatPeriodSeconds, a.HeartbeatPrompt, a.HeartbeatEnabled,
		a.ModelProvider, a.ModelName, a.WorkerHandle, a.Status)
	if err := row.Scan(&a.CreatedAt, &a.UpdatedAt); err != nil {
		return Agent{}, fmt.Errorf("store: create agent: %w", err)
	}
	return a, nil
}

func (s *Store) GetAgent(ctx context.Context, id uuid.UUID) (Agent, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, name, identity, personality, memory, heartbeat_period_seconds,
			heartbeat_prompt, heartbeat_enabled, model_provider, model_name,
			worker_handle, status, created_at, updated_at
		FROM agents WHERE id = $1`, id)
	return scanAgent(row)
}

func scanAgent(row pgx.Row) (Agent, error) {
	var a Agent
	err := row.Scan(&a.ID, &a.Name, &a.Identity, &a.Personality, &a.Memory,
		&a.HeartbeatPeriodSeconds, &a.HeartbeatPrompt, &a.HeartbeatEnabled,
		&a.ModelProvider, &a.ModelName, &a.WorkerHandle, &a.Status,
		&a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Agent{}, ErrNotFound
	}
	if err != nil {
		return Agent{}, fmt.Errorf("store: scan agent: %w", err)
	}
	return a, nil
}

// UpdateAgent persists the mutable fields of a. ID, CreatedAt are immutable.
func (s *Store) UpdateAgent(ctx context.Context, a Agent) (Agent, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE agents SET name=$2, identity=$3, personality=$4, memory=$5,
			heartbeat_period_seconds=$6, heartbeat_prompt=$7, heartbeat_enabled=$8,
			model_provider=$9, model_name=$10, worker_handle=$11, status=$12,
			updated_at=now()
		WHERE id=$1
		RETURNING created_at, updated_at`,
		a.ID, a.Name, a.Identity, a.Personality, a.Memory,
		a.HeartbeatPeriodSeconds, a.HeartbeatPrompt, a.HeartbeatEnabled,
		a.ModelProvider, a.ModelName, a.WorkerHandle, a.Status)
	if err := row.Scan(&a.CreatedAt, &a.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Agent{}, ErrNotFound
		}
		return Agent{}, fmt.Errorf("store: update agent: %w", err)
	}
	return a, nil
}

// SetAgentStatus is a narrow update used by the Reconciler and Agent
// Service so status/handle transitions don't require a full row round trip.
func (s *Store) SetAgentStatus(ctx context.Context, id uuid.UUID, status AgentStatus, handle *string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE agents SET status=$2, worker_handle=$3, updated_at=now() WHERE id=$1`,
		id, status, handle)
	if err != nil {
		return fmt.Errorf("store: set agent status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) DeleteAgent(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM agents WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("store: delete agent: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListAgentsPage implements the cursor-paginated, optionally status-
// filtered agent list. It reads pageSize+1 rows and the caller (service
// layer) peels the overflow row to decide has_next.
func (s *Store) ListAgentsPage(ctx context.Context, statusFilter *AgentStatus, after *shared.Cursor, pageSize int) ([]Agent, error) {
	query := `SELECT id, name, identity, personality, memory, heartbeat_period_seconds,
			heartbeat_prompt, heartbeat_enabled, model_provider, model_name,
			worker_handle, status, created_at, updated_at
		FROM agents WHERE 1=1`
	args := []any{}
	argn := 0
	next := func() int { argn++; return argn }

	if statusFilter != nil {
		query += fmt.Sprintf(" AND status = $%d", next())
		args = append(args, *statusFilter)
	}
	if after != nil && !after.CreatedAt.IsZero() {
		query += fmt.Sprintf(" AND (created_at, id) > ($%d, $%d::uuid)", next(), next())
		args = append(args, after.CreatedAt, after.ID)
	}
	query += fmt.Sprintf(" ORDER BY created_at ASC, id ASC LIMIT $%d", next())
	args = append(args, pageSize)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list agents: %w", err)
	}
	defer rows.Close()

	var out []Agent
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// ListAgentsByStatuses is the narrow read the Reconciler ticks with — no
// pagination, just every agent in one of the given statuses.
func (s *Store) ListAgentsByStatuses(ctx context.Context, statuses []AgentStatus) ([]Agent, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, identity, personality, memory, heartbeat_period_seconds,
			heartbeat_prompt, heartbeat_enabled, model_provider, model_name,
			worker_handle, status, created_at, updated_at
		FROM agents WHERE status = ANY($1)`, statuses)
	if err != nil {
		return nil, fmt.Errorf("store: list agents by status: %w", err)
	}
	defer rows.Close()
	var out []Agent
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// UpdateAgentMemory supports the PUT/PATCH /agents/{id}/memory operations:
// replace overwrites, append concatenates with a separating newline.
func (s *Store) UpdateAgentMemory(ctx context.Context, id uuid.UUID, content string, appendMode bool) (string, error) {
	var newMemory string
	var err error
	if appendMode {
		row := s.pool.QueryRow(ctx, `
			UPDATE agents SET memory = CASE WHEN memory = '' THEN $2 ELSE memory || E'\n' || $2 END,
				updated_at = now()
			WHERE id = $1 RETURNING memory`, id, content)
		err = row.Scan(&newMemory)
	} else {
		row := s.pool.QueryRow(ctx, `
			UPDATE agents SET memory = $2, updated_at = now() WHERE id = $1 RETURNING memory`, id, content)
		err = row.Scan(&newMemory)
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("store: update agent memory: %w", err)
	}
	return newMemory, nil
}
