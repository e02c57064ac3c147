// Package agents implements the Agent Service (C10): agent CRUD, the
// worker-runtime launch/terminate choreography, cursor-paginated listing,
// and live-status enrichment. It is a Durable-Store-backed CRUD service
// that calls out to the Worker-Runtime Adapter rather than keeping any
// in-process engine state of its own.
package agents

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/botcrew/orchestrator/internal/apierr"
	"github.com/botcrew/orchestrator/internal/runtime"
	"github.com/botcrew/orchestrator/internal/shared"
	"github.com/botcrew/orchestrator/internal/store"
)

const (
	defaultHeartbeatPeriodSeconds = 3600
	defaultHeartbeatEnabled       = true

	minHeartbeatPeriodSeconds = 300
	maxHeartbeatPeriodSeconds = 86400
)

// validateHeartbeatPeriod mirrors the store's CHECK constraint at the
// application layer so an out-of-range value is rejected as a 422
// Validation error instead of surfacing as a raw constraint violation.
func validateHeartbeatPeriod(seconds int) error {
	if seconds < minHeartbeatPeriodSeconds || seconds > maxHeartbeatPeriodSeconds {
		return apierr.Validation("heartbeat period out of range",
			fmt.Sprintf("heartbeat_period_seconds must be between %d and %d", minHeartbeatPeriodSeconds, maxHeartbeatPeriodSeconds))
	}
	return nil
}

// CredentialChecker reports whether a model provider has configured
// credentials, consulted before an agent referencing it is created.
type CredentialChecker interface {
	Configured(provider string) bool
}

type Service struct {
	store   *store.Store
	runtime runtime.Adapter
	creds   CredentialChecker
}

func New(s *store.Store, r runtime.Adapter, creds CredentialChecker) *Service {
	return &Service{store: s, runtime: r, creds: creds}
}

// CreateInput is the caller-supplied subset of an agent's fields; the
// remaining fields (status, worker handle, heartbeat defaults) are set by
// the service.
type CreateInput struct {
	Name          string
	Identity      string
	Personality   string
	ModelProvider string
	ModelName     string
}

// Create validates provider credentials, inserts the agent row as
// "creating", launches its worker, and stamps the result: "running" with
// the returned handle on success, "error" on launch failure (left for the
// Reconciler to reclaim). The row is always committed either way — a
// failed launch is not rolled back, matching "never orphan state on the
// recovery path" from spec §4.9.
func (s *Service) Create(ctx context.Context, in CreateInput) (store.Agent, error) {
	if s.creds != nil && !s.creds.Configured(in.ModelProvider) {
		return store.Agent{}, apierr.ProviderUnconfigured("model provider not configured", in.ModelProvider)
	}

	a := store.Agent{
		ID:                     uuid.New(),
		Name:                   in.Name,
		Identity:               in.Identity,
		Personality:            in.Personality,
		ModelProvider:          in.ModelProvider,
		ModelName:              in.ModelName,
		HeartbeatPeriodSeconds: defaultHeartbeatPeriodSeconds,
		HeartbeatEnabled:       defaultHeartbeatEnabled,
		Status:                 store.AgentCreating,
	}
	a, err := s.store.CreateAgent(ctx, a)
	if err != nil {
		return store.Agent{}, fmt.Errorf("agents: create: %w", err)
	}

	handle, err := s.runtime.Launch(ctx, runtime.Agent{
		ID: a.ID, Name: a.Name, ModelProvider: a.ModelProvider, ModelName: a.ModelName,
	})
	if err != nil {
		if serr := s.store.SetAgentStatus(ctx, a.ID, store.AgentError, nil); serr != nil {
			return store.Agent{}, fmt.Errorf("agents: create: mark error after launch failure: %w", serr)
		}
		a.Status = store.AgentError
		return a, nil
	}

	if err := s.store.SetAgentStatus(ctx, a.ID, store.AgentRunning, &handle); err != nil {
		return store.Agent{}, fmt.Errorf("agents: create: mark running: %w", err)
	}
	a.Status = store.AgentRunning
	a.WorkerHandle = &handle
	return a, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (store.Agent, error) {
	a, err := s.store.GetAgent(ctx, id)
	if err == store.ErrNotFound {
		return store.Agent{}, apierr.NotFound("agent not found", id.String())
	}
	if err != nil {
		return store.Agent{}, fmt.Errorf("agents: get: %w", err)
	}
	return a, nil
}

// Update persists mutable fields. Name is immutable by the agent itself;
// this path is for an external operator, so name changes are allowed here
// (SelfUpdate enforces the narrower restriction).
func (s *Service) Update(ctx context.Context, a store.Agent) (store.Agent, error) {
	if err := validateHeartbeatPeriod(a.HeartbeatPeriodSeconds); err != nil {
		return store.Agent{}, err
	}

	out, err := s.store.UpdateAgent(ctx, a)
	if err == store.ErrNotFound {
		return store.Agent{}, apierr.NotFound("agent not found", a.ID.String())
	}
	if err != nil {
		return store.Agent{}, fmt.Errorf("agents: update: %w", err)
	}
	return out, nil
}

// UpdateMemory replaces (append=false) or appends to (append=true) an
// agent's freeform memory text.
func (s *Service) UpdateMemory(ctx context.Context, id uuid.UUID, content string, append bool) (store.Agent, error) {
	a, err := s.store.GetAgent(ctx, id)
	if err == store.ErrNotFound {
		return store.Agent{}, apierr.NotFound("agent not found", id.String())
	}
	if err != nil {
		return store.Agent{}, fmt.Errorf("agents: update memory: get: %w", err)
	}

	if append {
		a.Memory += content
	} else {
		a.Memory = content
	}

	out, err := s.store.UpdateAgent(ctx, a)
	if err != nil {
		return store.Agent{}, fmt.Errorf("agents: update memory: %w", err)
	}
	return out, nil
}

// Delete never orphans a worker: it marks the row "terminating" first,
// terminates the runtime handle, and only then deletes the row. The
// Reconciler skips "terminating" rows so it cannot race this sequence.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	a, err := s.store.GetAgent(ctx, id)
	if err == store.ErrNotFound {
		return apierr.NotFound("agent not found", id.String())
	}
	if err != nil {
		return fmt.Errorf("agents: delete: get: %w", err)
	}

	if err := s.store.SetAgentStatus(ctx, id, store.AgentTerminating, a.WorkerHandle); err != nil {
		return fmt.Errorf("agents: delete: mark terminating: %w", err)
	}

	if a.WorkerHandle != nil {
		if err := s.runtime.Terminate(ctx, *a.WorkerHandle, 30); err != nil {
			return fmt.Errorf("agents: delete: terminate worker: %w", err)
		}
	}

	if err := s.store.DeleteAgent(ctx, id); err != nil {
		return fmt.Errorf("agents: delete: %w", err)
	}
	return nil
}

// Duplicate creates a new agent seeded from an existing one's identity,
// personality, and model settings, going through the same Create
// choreography (including provider-credential validation and worker
// launch) rather than copying the row directly.
func (s *Service) Duplicate(ctx context.Context, id uuid.UUID, newName string) (store.Agent, error) {
	src, err := s.Get(ctx, id)
	if err != nil {
		return store.Agent{}, err
	}
	return s.Create(ctx, CreateInput{
		Name:          newName,
		Identity:      src.Identity,
		Personality:   src.Personality,
		ModelProvider: src.ModelProvider,
		ModelName:     src.ModelName,
	})
}

// Page is the cursor-paginated result of List.
type Page struct {
	Agents  []store.Agent
	HasNext bool
	Next    string
}

// List reads page_size+1 rows and peels the overflow row to compute
// has_next.
func (s *Service) List(ctx context.Context, statusFilter *store.AgentStatus, afterCursor string, pageSize int) (Page, error) {
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 100
	}
	var after *shared.Cursor
	if afterCursor != "" {
		c, err := shared.DecodeCursor(afterCursor)
		if err != nil {
			return Page{}, apierr.Validation("invalid cursor", "after cursor is malformed")
		}
		after = &c
	}

	rows, err := s.store.ListAgentsPage(ctx, statusFilter, after, pageSize+1)
	if err != nil {
		return Page{}, fmt.Errorf("agents: list: %w", err)
	}

	hasNext := len(rows) > pageSize
	if hasNext {
		rows = rows[:pageSize]
	}

	page := Page{Agents: rows, HasNext: hasNext}
	if hasNext && len(rows) > 0 {
		last := rows[len(rows)-1]
		page.Next = shared.Cursor{CreatedAt: last.CreatedAt, ID: last.ID.String()}.Encode()
	}
	return page, nil
}

// LiveAgent pairs a stored agent with its enrichment-only display status.
type LiveAgent struct {
	store.Agent
	DisplayStatus store.AgentStatus
}

var liveStatuses = map[store.AgentStatus]bool{
	store.AgentRunning:    true,
	store.AgentError:      true,
	store.AgentRecovering: true,
}

// GetWithLiveStatus enriches each agent's display status using exactly one
// runtime.ListAll call. It never writes to the database — only the
// Reconciler does.
func (s *Service) GetWithLiveStatus(ctx context.Context, as []store.Agent) ([]LiveAgent, error) {
	workers, err := s.runtime.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("agents: live status: list workers: %w", err)
	}
	phaseByHandle := make(map[string]runtime.Phase, len(workers))
	for _, w := range workers {
		phaseByHandle[w.Handle] = w.Phase
	}

	out := make([]LiveAgent, len(as))
	for i, a := range as {
		display := a.Status
		if liveStatuses[a.Status] {
			var phase runtime.Phase
			var ok bool
			if a.WorkerHandle != nil {
				phase, ok = phaseByHandle[*a.WorkerHandle]
			}
			switch {
			case !ok && a.Status == store.AgentRunning:
				display = store.AgentError
			case phase == runtime.PhaseFailed:
				display = store.AgentError
			case phase == runtime.PhasePending:
				// Left unchanged for display; the Reconciler tracks
				// pending duration and acts on the 180s timeout.
			}
		}
		out[i] = LiveAgent{Agent: a, DisplayStatus: display}
	}
	return out, nil
}

// SelfUpdateInput lists the only fields an agent may mutate on itself;
// name is deliberately excluded so an agent can never rename itself, per
// the original's self_update handler.
type SelfUpdateInput struct {
	Identity               *string
	Personality            *string
	HeartbeatPrompt        *string
	HeartbeatPeriodSeconds *int
	HeartbeatEnabled       *bool
}

// SelfUpdate applies a restricted PATCH an agent may perform on its own
// row, logging one activity record per changed field.
func (s *Service) SelfUpdate(ctx context.Context, id uuid.UUID, in SelfUpdateInput) (store.Agent, error) {
	a, err := s.Get(ctx, id)
	if err != nil {
		return store.Agent{}, err
	}

	changed := make([]string, 0, 4)
	if in.Identity != nil && *in.Identity != a.Identity {
		a.Identity = *in.Identity
		changed = append(changed, "identity")
	}
	if in.Personality != nil && *in.Personality != a.Personality {
		a.Personality = *in.Personality
		changed = append(changed, "personality")
	}
	if in.HeartbeatPrompt != nil && *in.HeartbeatPrompt != a.HeartbeatPrompt {
		a.HeartbeatPrompt = *in.HeartbeatPrompt
		changed = append(changed, "heartbeat_prompt")
	}
	if in.HeartbeatPeriodSeconds != nil && *in.HeartbeatPeriodSeconds != a.HeartbeatPeriodSeconds {
		if err := validateHeartbeatPeriod(*in.HeartbeatPeriodSeconds); err != nil {
			return store.Agent{}, err
		}
		a.HeartbeatPeriodSeconds = *in.HeartbeatPeriodSeconds
		changed = append(changed, "heartbeat_period_seconds")
	}
	if in.HeartbeatEnabled != nil && *in.HeartbeatEnabled != a.HeartbeatEnabled {
		a.HeartbeatEnabled = *in.HeartbeatEnabled
		changed = append(changed, "heartbeat_enabled")
	}
	if len(changed) == 0 {
		return a, nil
	}

	out, err := s.store.UpdateAgent(ctx, a)
	if err != nil {
		return store.Agent{}, fmt.Errorf("agents: self-update: %w", err)
	}

	for _, field := range changed {
		_, _ = s.store.InsertActivity(ctx, store.Activity{
			ID:        uuid.New(),
			AgentID:   id,
			EventType: "self_update",
			Summary:   fmt.Sprintf("updated %s", field),
		})
	}
	return out, nil
}

// ReportStatus maps a worker's self-reported status to the Agent status
// column directly, bypassing the Reconciler, per the original's
// report_status handler: ready->running, error->error,
// unhealthy->error (degraded is a hard error, not a fourth status).
func (s *Service) ReportStatus(ctx context.Context, id uuid.UUID, reported string) error {
	var mapped store.AgentStatus
	switch reported {
	case "ready":
		mapped = store.AgentRunning
	case "error", "unhealthy":
		mapped = store.AgentError
	default:
		return apierr.Validation("invalid status", "reported status must be one of ready, error, unhealthy")
	}

	a, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.SetAgentStatus(ctx, id, mapped, a.WorkerHandle); err != nil {
		return fmt.Errorf("agents: report status: %w", err)
	}
	return nil
}
