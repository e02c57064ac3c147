// Package bootconfig implements the Boot-Config Provider (C12): the single
// call a worker container makes on startup to receive everything it needs
// to run — identity, model selection, heartbeat settings, memory, secrets,
// skills, and its assigned projects/tasks. It composes the Agent Service,
// the Durable Store's assignment and secrets queries, and the provider
// registry, rather than duplicating any of their lookups.
package bootconfig

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/botcrew/orchestrator/internal/agents"
	"github.com/botcrew/orchestrator/internal/providers"
	"github.com/botcrew/orchestrator/internal/store"
)

// SkillSummary is the boot-time skill-awareness entry a worker receives;
// it deliberately omits is_active since only active skills are ever sent.
type SkillSummary struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ProjectSummary is one of the agent's active project assignments.
type ProjectSummary struct {
	ProjectID     uuid.UUID  `json:"project_id"`
	Name          string     `json:"name"`
	Goals         string     `json:"goals"`
	Specs         string     `json:"specs"`
	RolePrompt    string     `json:"role_prompt"`
	WorkspacePath string     `json:"workspace_path"`
	ChannelID     *uuid.UUID `json:"channel_id,omitempty"`
}

// TaskSummary is one of the agent's assigned tasks. DirectivePreview is
// already truncated to <=200 chars by the store layer.
type TaskSummary struct {
	TaskID           uuid.UUID  `json:"task_id"`
	Name             string     `json:"name"`
	Description      string     `json:"description"`
	DirectivePreview string     `json:"directive_preview"`
	Status           string     `json:"status"`
	ChannelID        *uuid.UUID `json:"channel_id,omitempty"`
}

// Bundle is the complete boot-config payload handed to a worker, per
// spec §4.10.
type Bundle struct {
	AgentID                uuid.UUID         `json:"agent_id"`
	Name                   string            `json:"name"`
	Identity               string            `json:"identity"`
	Personality            string            `json:"personality"`
	ModelProvider          string            `json:"model_provider"`
	ModelName              string            `json:"model_name"`
	HeartbeatPrompt        string            `json:"heartbeat_prompt"`
	HeartbeatPeriodSeconds int               `json:"heartbeat_period_seconds"`
	HeartbeatEnabled       bool              `json:"heartbeat_enabled"`
	Memory                 string            `json:"memory"`
	Secrets                map[string]string `json:"secrets"`
	Skills                 []SkillSummary    `json:"skills"`
	Projects               []ProjectSummary  `json:"projects"`
	Tasks                  []TaskSummary     `json:"tasks"`
}

// aiProviderConfig is the shape expected inside an "ai_provider"
// integration's opaque config string, per the original's
// CreateIntegrationRequest (config is a free-form JSON string whose
// interpretation is type-specific).
type aiProviderConfig struct {
	Provider string `json:"provider"`
	APIKey   string `json:"api_key"`
}

type Provider struct {
	agents *agents.Service
	store  *store.Store
	log    *slog.Logger
}

func New(a *agents.Service, s *store.Store, log *slog.Logger) *Provider {
	return &Provider{agents: a, store: s, log: log}
}

// Build assembles the boot-config bundle for agentID. A missing agent
// surfaces the same apierr.NotFound the rest of the Agent Service returns,
// since agents.Service.Get already produces it.
func (p *Provider) Build(ctx context.Context, agentID uuid.UUID) (Bundle, error) {
	a, err := p.agents.Get(ctx, agentID)
	if err != nil {
		return Bundle{}, err
	}

	secrets, err := p.secrets(ctx)
	if err != nil {
		return Bundle{}, fmt.Errorf("bootconfig: secrets: %w", err)
	}

	skillRows, err := p.store.ActiveSkillSummaries(ctx)
	if err != nil {
		return Bundle{}, fmt.Errorf("bootconfig: skills: %w", err)
	}
	skills := make([]SkillSummary, len(skillRows))
	for i, sk := range skillRows {
		skills[i] = SkillSummary{Name: sk.Name, Description: sk.Description}
	}

	projectRows, err := p.store.ProjectsForAgent(ctx, agentID)
	if err != nil {
		return Bundle{}, fmt.Errorf("bootconfig: projects: %w", err)
	}
	projects := make([]ProjectSummary, len(projectRows))
	for i, pr := range projectRows {
		projects[i] = ProjectSummary{
			ProjectID: pr.ID, Name: pr.Name, Goals: pr.Goals, Specs: pr.Specs,
			RolePrompt: pr.RolePrompt, WorkspacePath: pr.WorkspacePath, ChannelID: pr.ChannelID,
		}
	}

	taskRows, err := p.store.TasksForAgent(ctx, agentID)
	if err != nil {
		return Bundle{}, fmt.Errorf("bootconfig: tasks: %w", err)
	}
	tasks := make([]TaskSummary, len(taskRows))
	for i, tk := range taskRows {
		tasks[i] = TaskSummary{
			TaskID: tk.ID, Name: tk.Name, Description: tk.Description,
			DirectivePreview: tk.DirectivePreview, Status: tk.Status, ChannelID: tk.ChannelID,
		}
	}

	return Bundle{
		AgentID:                a.ID,
		Name:                   a.Name,
		Identity:               a.Identity,
		Personality:            a.Personality,
		ModelProvider:          a.ModelProvider,
		ModelName:              a.ModelName,
		HeartbeatPrompt:        a.HeartbeatPrompt,
		HeartbeatPeriodSeconds: a.HeartbeatPeriodSeconds,
		HeartbeatEnabled:       a.HeartbeatEnabled,
		Memory:                 a.Memory,
		Secrets:                secrets,
		Skills:                 skills,
		Projects:               projects,
		Tasks:                  tasks,
	}, nil
}

// secrets starts from the flat secrets table and overrides with active
// "ai_provider" integrations: each integration's config names a provider,
// which the registry maps to the env-var name its key is delivered under.
// Unknown providers and malformed config are skipped, the latter with a
// warning — a single bad integration row must never fail every agent's
// boot.
func (p *Provider) secrets(ctx context.Context) (map[string]string, error) {
	base, err := p.store.AllSecrets(ctx)
	if err != nil {
		return nil, err
	}

	integrations, err := p.store.ActiveAIProviderIntegrations(ctx)
	if err != nil {
		return nil, err
	}

	out := make(map[string]string, len(base))
	for k, v := range base {
		out[k] = v
	}

	for _, in := range integrations {
		var cfg aiProviderConfig
		if err := json.Unmarshal([]byte(in.Config), &cfg); err != nil {
			if p.log != nil {
				p.log.Warn("bootconfig: skipping integration with malformed config", "integration_id", in.ID, "error", err)
			}
			continue
		}
		envKey, known := providers.EnvKeyFor(cfg.Provider)
		if !known || envKey == "" {
			if p.log != nil && !known {
				p.log.Warn("bootconfig: skipping integration with unknown provider", "integration_id", in.ID, "provider", cfg.Provider)
			}
			continue
		}
		if cfg.APIKey == "" {
			continue
		}
		out[envKey] = cfg.APIKey
	}
	return out, nil
}
