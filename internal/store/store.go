package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Store is the Durable Store (C1). It accepts an externally-owned pool —
// the caller (cmd/botcrewd) builds the pgxpool.Config with the bounded-
// pool knobs (MinConns=10, MaxConns=30, HealthCheckPeriod as the pre-ping
// equivalent) and is responsible for closing it; Store.Close is a no-op.
type Store struct {
	pool *pgxpool.Pool
}

// New wraps an existing pool. Call Init once at startup to create schema.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close is a no-op: the pool's lifecycle belongs to whoever constructed it.
func (s *Store) Close() error { return nil }

// Init runs idempotent CREATE TABLE/INDEX statements. Safe to call on
// every startup; additive only, never dropping or rewriting a prior
// table in place.
func (s *Store) Init(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("store: init: %w", err)
		}
	}
	return nil
}

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS agents (
		id UUID PRIMARY KEY,
		name TEXT NOT NULL,
		identity TEXT NOT NULL DEFAULT '',
		personality TEXT NOT NULL DEFAULT '',
		memory TEXT NOT NULL DEFAULT '',
		heartbeat_period_seconds INTEGER NOT NULL DEFAULT 3600
			CHECK (heartbeat_period_seconds BETWEEN 300 AND 86400),
		heartbeat_prompt TEXT NOT NULL DEFAULT '',
		heartbeat_enabled BOOLEAN NOT NULL DEFAULT TRUE,
		model_provider TEXT NOT NULL,
		model_name TEXT NOT NULL,
		worker_handle TEXT,
		status TEXT NOT NULL DEFAULT 'creating'
			CHECK (status IN ('creating','running','error','recovering','terminating')),
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_agents_created_at ON agents (created_at, id)`,
	`CREATE INDEX IF NOT EXISTS idx_agents_status ON agents (status)`,

	`CREATE TABLE IF NOT EXISTS channels (
		id UUID PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		type TEXT NOT NULL CHECK (type IN ('shared','dm','project','task','custom')),
		creator TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,

	`CREATE TABLE IF NOT EXISTS channel_members (
		channel_id UUID NOT NULL REFERENCES channels(id) ON DELETE CASCADE,
		agent_id UUID,
		human_id TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		CHECK ((agent_id IS NULL) != (human_id IS NULL))
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_channel_member_agent
		ON channel_members (channel_id, agent_id) WHERE agent_id IS NOT NULL`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_channel_member_human
		ON channel_members (channel_id, human_id) WHERE human_id IS NOT NULL`,

	`CREATE TABLE IF NOT EXISTS messages (
		id UUID PRIMARY KEY,
		channel_id UUID NOT NULL REFERENCES channels(id) ON DELETE CASCADE,
		sender_agent_id UUID,
		sender_human_id TEXT,
		content TEXT NOT NULL,
		type TEXT NOT NULL CHECK (type IN ('chat','system','dm')),
		metadata JSONB,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_messages_channel_created
		ON messages (channel_id, created_at, id)`,

	`CREATE TABLE IF NOT EXISTS read_cursors (
		channel_id UUID NOT NULL REFERENCES channels(id) ON DELETE CASCADE,
		agent_id UUID,
		human_id TEXT,
		last_read_message_id UUID NOT NULL,
		last_read_at TIMESTAMPTZ NOT NULL,
		CHECK ((agent_id IS NULL) != (human_id IS NULL))
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_cursor_agent
		ON read_cursors (channel_id, agent_id) WHERE agent_id IS NOT NULL`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_cursor_human
		ON read_cursors (channel_id, human_id) WHERE human_id IS NOT NULL`,

	`CREATE TABLE IF NOT EXISTS activities (
		id UUID PRIMARY KEY,
		agent_id UUID NOT NULL REFERENCES agents(id) ON DELETE CASCADE,
		event_type TEXT NOT NULL,
		summary TEXT NOT NULL,
		details JSONB,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_activities_agent_created
		ON activities (agent_id, created_at DESC)`,

	`CREATE TABLE IF NOT EXISTS projects (
		id UUID PRIMARY KEY,
		name TEXT NOT NULL,
		goals TEXT NOT NULL DEFAULT '',
		specs TEXT NOT NULL DEFAULT '',
		role_prompt TEXT NOT NULL DEFAULT '',
		workspace_path TEXT NOT NULL DEFAULT '',
		channel_id UUID,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,

	`CREATE TABLE IF NOT EXISTS tasks (
		id UUID PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		directive_preview TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'pending',
		channel_id UUID,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,

	`CREATE TABLE IF NOT EXISTS skills (
		id UUID PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		description TEXT NOT NULL DEFAULT '',
		is_active BOOLEAN NOT NULL DEFAULT TRUE
	)`,

	`CREATE TABLE IF NOT EXISTS secrets (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS integrations (
		id UUID PRIMARY KEY,
		name TEXT NOT NULL,
		integration_type TEXT NOT NULL,
		config TEXT NOT NULL,
		agent_id UUID REFERENCES agents(id) ON DELETE CASCADE,
		channel_id UUID REFERENCES channels(id) ON DELETE CASCADE,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_integrations_active_type
		ON integrations (integration_type) WHERE is_active = TRUE`,

	`CREATE TABLE IF NOT EXISTS agent_projects (
		agent_id UUID NOT NULL REFERENCES agents(id) ON DELETE CASCADE,
		project_id UUID NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
		role TEXT NOT NULL DEFAULT '',
		UNIQUE (agent_id, project_id)
	)`,
	`CREATE TABLE IF NOT EXISTS agent_tasks (
		agent_id UUID NOT NULL REFERENCES agents(id) ON DELETE CASCADE,
		task_id UUID NOT NULL REFERENCES tasks(id) ON DELETE CASCADE,
		UNIQUE (agent_id, task_id)
	)`,
	`CREATE TABLE IF NOT EXISTS task_skills (
		task_id UUID NOT NULL REFERENCES tasks(id) ON DELETE CASCADE,
		skill_id UUID NOT NULL REFERENCES skills(id) ON DELETE CASCADE,
		UNIQUE (task_id, skill_id)
	)`,
	`CREATE TABLE IF NOT EXISTS task_secrets (
		task_id UUID NOT NULL REFERENCES tasks(id) ON DELETE CASCADE,
		secret_key TEXT NOT NULL REFERENCES secrets(key) ON DELETE CASCADE,
		UNIQUE (task_id, secret_key)
	)`,
	`CREATE TABLE IF NOT EXISTS project_secrets (
		project_id UUID NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
		secret_key TEXT NOT NULL REFERENCES secrets(key) ON DELETE CASCADE,
		UNIQUE (project_id, secret_key)
	)`,

	`CREATE TABLE IF NOT EXISTS delivery_jobs (
		id UUID PRIMARY KEY,
		kind TEXT NOT NULL CHECK (kind IN ('dm','evaluate')),
		agent_id UUID NOT NULL,
		payload JSONB NOT NULL,
		attempt INTEGER NOT NULL DEFAULT 0,
		max_attempts INTEGER NOT NULL DEFAULT 4,
		available_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		status TEXT NOT NULL DEFAULT 'queued'
			CHECK (status IN ('queued','claimed','running','succeeded','retry_wait','dead_letter')),
		last_error TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_delivery_jobs_claimable
		ON delivery_jobs (available_at) WHERE status IN ('queued','retry_wait')`,
}
