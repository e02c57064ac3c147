package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

func (s *Store) AssignAgentToProject(ctx context.Context, agentID, projectID uuid.UUID, role string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO agent_projects (agent_id, project_id, role) VALUES ($1,$2,$3)`, agentID, projectID, role)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("store: assign project: %w", err)
	}
	return nil
}

func (s *Store) AssignAgentToTask(ctx context.Context, agentID, taskID uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO agent_tasks (agent_id, task_id) VALUES ($1,$2)`, agentID, taskID)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("store: assign task: %w", err)
	}
	return nil
}

func (s *Store) AssignSkillToTask(ctx context.Context, taskID, skillID uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO task_skills (task_id, skill_id) VALUES ($1,$2)`, taskID, skillID)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("store: assign skill: %w", err)
	}
	return nil
}

func (s *Store) AssignSecretToTask(ctx context.Context, taskID uuid.UUID, key string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO task_secrets (task_id, secret_key) VALUES ($1,$2)`, taskID, key)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("store: assign task secret: %w", err)
	}
	return nil
}

func (s *Store) AssignSecretToProject(ctx context.Context, projectID uuid.UUID, key string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO project_secrets (project_id, secret_key) VALUES ($1,$2)`, projectID, key)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("store: assign project secret: %w", err)
	}
	return nil
}

// ProjectsForAgent returns only active projects assigned to agentID, for
// the Boot-Config Provider's "projects: [...]" bundle.
func (s *Store) ProjectsForAgent(ctx context.Context, agentID uuid.UUID) ([]Project, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT p.id, p.name, p.goals, p.specs, p.role_prompt, p.workspace_path, p.channel_id, p.active, p.created_at, p.updated_at
		FROM projects p
		JOIN agent_projects ap ON ap.project_id = p.id
		WHERE ap.agent_id = $1 AND p.active = TRUE
		ORDER BY p.created_at ASC`, agentID)
	if err != nil {
		return nil, fmt.Errorf("store: projects for agent: %w", err)
	}
	defer rows.Close()
	var out []Project
	for rows.Next() {
		var p Project
		if err := rows.Scan(&p.ID, &p.Name, &p.Goals, &p.Specs, &p.RolePrompt, &p.WorkspacePath, &p.ChannelID, &p.Active, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("store: scan project: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// TasksForAgent returns tasks assigned to agentID, for the Boot-Config
// Provider's "tasks: [...]" bundle. directive_preview is stored already
// truncated to <=200 chars, enforced at write time by the task CRUD layer
// (not implemented here).
func (s *Store) TasksForAgent(ctx context.Context, agentID uuid.UUID) ([]Task, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT t.id, t.name, t.description, t.directive_preview, t.status, t.channel_id, t.created_at, t.updated_at
		FROM tasks t
		JOIN agent_tasks at ON at.task_id = t.id
		WHERE at.agent_id = $1
		ORDER BY t.created_at ASC`, agentID)
	if err != nil {
		return nil, fmt.Errorf("store: tasks for agent: %w", err)
	}
	defer rows.Close()
	var out []Task
	for rows.Next() {
		var t Task
		if err := rows.Scan(&t.ID, &t.Name, &t.Description, &t.DirectivePreview, &t.Status, &t.ChannelID, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("store: scan task: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// ActiveSkillSummaries returns {name, description} for every active skill,
// for the Boot-Config Provider's boot-time skill awareness list.
func (s *Store) ActiveSkillSummaries(ctx context.Context) ([]Skill, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, description, is_active FROM skills WHERE is_active = TRUE ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("store: active skills: %w", err)
	}
	defer rows.Close()
	var out []Skill
	for rows.Next() {
		var sk Skill
		if err := rows.Scan(&sk.ID, &sk.Name, &sk.Description, &sk.IsActive); err != nil {
			return nil, fmt.Errorf("store: scan skill: %w", err)
		}
		out = append(out, sk)
	}
	return out, rows.Err()
}

// AllSecrets returns the flat secrets table as a key->value map, the base
// layer the Boot-Config Provider overrides with active AI-provider
// integrations before handing the bundle to a worker.
func (s *Store) AllSecrets(ctx context.Context) (map[string]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT key, value FROM secrets`)
	if err != nil {
		return nil, fmt.Errorf("store: all secrets: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("store: scan secret: %w", err)
		}
		out[k] = v
	}
	return out, rows.Err()
}

// UpsertSecrets writes kv into the flat secrets table, overwriting any
// existing value for a key. Used to seed the table at startup and to
// apply a secrets.yaml hot-reload picked up by the config Watcher.
func (s *Store) UpsertSecrets(ctx context.Context, kv map[string]string) error {
	for k, v := range kv {
		if _, err := s.pool.Exec(ctx, `
			INSERT INTO secrets (key, value) VALUES ($1,$2)
			ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`, k, v); err != nil {
			return fmt.Errorf("store: upsert secret %q: %w", k, err)
		}
	}
	return nil
}

// ActiveAIProviderIntegrations returns every active integration row of type
// "ai_provider", the layer the Boot-Config Provider overrides AllSecrets
// with before handing the bundle to a worker.
func (s *Store) ActiveAIProviderIntegrations(ctx context.Context) ([]Integration, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, integration_type, config, agent_id, channel_id, is_active, created_at, updated_at
		FROM integrations
		WHERE integration_type = 'ai_provider' AND is_active = TRUE
		ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("store: active ai provider integrations: %w", err)
	}
	defer rows.Close()
	var out []Integration
	for rows.Next() {
		var in Integration
		if err := rows.Scan(&in.ID, &in.Name, &in.IntegrationType, &in.Config, &in.AgentID, &in.ChannelID, &in.IsActive, &in.CreatedAt, &in.UpdatedAt); err != nil {
			return nil, fmt.Errorf("store: scan integration: %w", err)
		}
		out = append(out, in)
	}
	return out, rows.Err()
}
