package gateway

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/botcrew/orchestrator/internal/agents"
	"github.com/botcrew/orchestrator/internal/apierr"
	"github.com/botcrew/orchestrator/internal/store"
)

// agentAttrs is the REST-facing shape of an agent, including the
// enrichment-only display_status the Agent Service derives live.
type agentAttrs struct {
	Name                   string `json:"name"`
	Identity               string `json:"identity"`
	Personality            string `json:"personality"`
	ModelProvider          string `json:"model_provider"`
	ModelName              string `json:"model_name"`
	Status                 string `json:"status"`
	DisplayStatus          string `json:"display_status"`
	HeartbeatPeriodSeconds int    `json:"heartbeat_period_seconds"`
	HeartbeatEnabled       bool   `json:"heartbeat_enabled"`
	CreatedAt              string `json:"created_at"`
}

func agentResource(a agents.LiveAgent) resource {
	return resource{
		Type: "agent",
		ID:   a.ID.String(),
		Attributes: agentAttrs{
			Name: a.Name, Identity: a.Identity, Personality: a.Personality,
			ModelProvider: a.ModelProvider, ModelName: a.ModelName,
			Status: string(a.Status), DisplayStatus: string(a.DisplayStatus),
			HeartbeatPeriodSeconds: a.HeartbeatPeriodSeconds, HeartbeatEnabled: a.HeartbeatEnabled,
			CreatedAt: a.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		},
	}
}

func pathUUID(w http.ResponseWriter, r *http.Request, field string) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue(field))
	if err != nil {
		writeErr(w, apierr.Validation("invalid id", field+" must be a UUID"))
		return uuid.UUID{}, false
	}
	return id, true
}

func (s *Server) handleListAgents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var statusFilter *store.AgentStatus
	if raw := q.Get("status"); raw != "" {
		st := store.AgentStatus(raw)
		statusFilter = &st
	}
	pageSize := 0
	if raw := q.Get("page_size"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			pageSize = n
		}
	}

	page, err := s.cfg.Agents.List(r.Context(), statusFilter, q.Get("after"), pageSize)
	if err != nil {
		writeErr(w, err)
		return
	}
	live, err := s.cfg.Agents.GetWithLiveStatus(r.Context(), page.Agents)
	if err != nil {
		writeErr(w, err)
		return
	}
	items := make([]resource, len(live))
	for i, a := range live {
		items[i] = agentResource(a)
	}
	writeList(w, http.StatusOK, items, page.HasNext, page.Next)
}

type createAgentRequest struct {
	Name          string `json:"name"`
	Identity      string `json:"identity"`
	Personality   string `json:"personality"`
	ModelProvider string `json:"model_provider"`
	ModelName     string `json:"model_name"`
}

func (s *Server) handleCreateAgent(w http.ResponseWriter, r *http.Request) {
	var req createAgentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErr(w, apierr.Validation("invalid body", "request body must be valid JSON"))
		return
	}
	a, err := s.cfg.Agents.Create(r.Context(), agents.CreateInput{
		Name: req.Name, Identity: req.Identity, Personality: req.Personality,
		ModelProvider: req.ModelProvider, ModelName: req.ModelName,
	})
	if err != nil {
		writeErr(w, err)
		return
	}
	live, err := s.cfg.Agents.GetWithLiveStatus(r.Context(), []store.Agent{a})
	if err != nil {
		writeErr(w, err)
		return
	}
	res := agentResource(live[0])
	writeResource(w, http.StatusCreated, res.Type, res.ID, res.Attributes)
}

func (s *Server) handleGetAgent(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	a, err := s.cfg.Agents.Get(r.Context(), id)
	if err != nil {
		writeErr(w, err)
		return
	}
	live, err := s.cfg.Agents.GetWithLiveStatus(r.Context(), []store.Agent{a})
	if err != nil {
		writeErr(w, err)
		return
	}
	res := agentResource(live[0])
	writeResource(w, http.StatusOK, res.Type, res.ID, res.Attributes)
}

type updateAgentRequest struct {
	Name          *string `json:"name"`
	Identity      *string `json:"identity"`
	Personality   *string `json:"personality"`
	ModelProvider *string `json:"model_provider"`
	ModelName     *string `json:"model_name"`
}

// handleUpdateAgent is the operator-facing PATCH, distinct from the
// worker-facing "self" PATCH: unlike SelfUpdate, name may change here.
func (s *Server) handleUpdateAgent(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	a, err := s.cfg.Agents.Get(r.Context(), id)
	if err != nil {
		writeErr(w, err)
		return
	}
	var req updateAgentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErr(w, apierr.Validation("invalid body", "request body must be valid JSON"))
		return
	}
	if req.Name != nil {
		a.Name = *req.Name
	}
	if req.Identity != nil {
		a.Identity = *req.Identity
	}
	if req.Personality != nil {
		a.Personality = *req.Personality
	}
	if req.ModelProvider != nil {
		a.ModelProvider = *req.ModelProvider
	}
	if req.ModelName != nil {
		a.ModelName = *req.ModelName
	}
	out, err := s.cfg.Agents.Update(r.Context(), a)
	if err != nil {
		writeErr(w, err)
		return
	}
	live, err := s.cfg.Agents.GetWithLiveStatus(r.Context(), []store.Agent{out})
	if err != nil {
		writeErr(w, err)
		return
	}
	res := agentResource(live[0])
	writeResource(w, http.StatusOK, res.Type, res.ID, res.Attributes)
}

func (s *Server) handleDeleteAgent(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	if err := s.cfg.Agents.Delete(r.Context(), id); err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type duplicateAgentRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleDuplicateAgent(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req duplicateAgentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErr(w, apierr.Validation("invalid body", "request body must be valid JSON"))
		return
	}
	a, err := s.cfg.Agents.Duplicate(r.Context(), id, req.Name)
	if err != nil {
		writeErr(w, err)
		return
	}
	live, err := s.cfg.Agents.GetWithLiveStatus(r.Context(), []store.Agent{a})
	if err != nil {
		writeErr(w, err)
		return
	}
	res := agentResource(live[0])
	writeResource(w, http.StatusCreated, res.Type, res.ID, res.Attributes)
}

// bootConfigAttrs mirrors bootconfig.Bundle for JSON serialization, since
// the bundle's nested summaries already have json-friendly field casing.
func (s *Server) handleBootConfig(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	bundle, err := s.cfg.BootConfig.Build(r.Context(), id)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeResource(w, http.StatusOK, "boot-config", id.String(), bundle)
}

type reportStatusRequest struct {
	Status string `json:"status"`
}

func (s *Server) handleReportStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req reportStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErr(w, apierr.Validation("invalid body", "request body must be valid JSON"))
		return
	}
	if err := s.cfg.Agents.ReportStatus(r.Context(), id, req.Status); err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type selfUpdateRequest struct {
	Identity               *string `json:"identity"`
	Personality            *string `json:"personality"`
	HeartbeatPrompt        *string `json:"heartbeat_prompt"`
	HeartbeatPeriodSeconds *int    `json:"heartbeat_period_seconds"`
	HeartbeatEnabled       *bool   `json:"heartbeat_enabled"`
}

// handleSelf is the worker's own self-introspection read, distinct from the
// operator-facing GET /agents/{id} only in intent, not shape.
func (s *Server) handleSelf(w http.ResponseWriter, r *http.Request) {
	s.handleGetAgent(w, r)
}

func (s *Server) handleSelfUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req selfUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErr(w, apierr.Validation("invalid body", "request body must be valid JSON"))
		return
	}
	a, err := s.cfg.Agents.SelfUpdate(r.Context(), id, agents.SelfUpdateInput{
		Identity: req.Identity, Personality: req.Personality,
		HeartbeatPrompt: req.HeartbeatPrompt, HeartbeatPeriodSeconds: req.HeartbeatPeriodSeconds,
		HeartbeatEnabled: req.HeartbeatEnabled,
	})
	if err != nil {
		writeErr(w, err)
		return
	}
	live, err := s.cfg.Agents.GetWithLiveStatus(r.Context(), []store.Agent{a})
	if err != nil {
		writeErr(w, err)
		return
	}
	res := agentResource(live[0])
	writeResource(w, http.StatusOK, res.Type, res.ID, res.Attributes)
}

type activityAttrs struct {
	EventType string `json:"event_type"`
	Summary   string `json:"summary"`
	CreatedAt string `json:"created_at"`
}

func (s *Server) handleListActivities(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	rows, err := s.cfg.Store.ListActivitiesForAgent(r.Context(), id, limit)
	if err != nil {
		writeErr(w, err)
		return
	}
	items := make([]resource, len(rows))
	for i, a := range rows {
		items[i] = resource{Type: "activity", ID: a.ID.String(), Attributes: activityAttrs{
			EventType: a.EventType, Summary: a.Summary,
			CreatedAt: a.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		}}
	}
	writeList(w, http.StatusOK, items, false, "")
}

type appendActivityRequest struct {
	EventType string          `json:"event_type"`
	Summary   string          `json:"summary"`
	Details   json.RawMessage `json:"details"`
}

// handleAppendActivity is the worker-facing activity-log append endpoint;
// activities are append-only, so there is no corresponding update or delete.
func (s *Server) handleAppendActivity(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req appendActivityRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErr(w, apierr.Validation("invalid body", "request body must be valid JSON"))
		return
	}
	if req.EventType == "" {
		writeErr(w, apierr.Validation("invalid body", "event_type is required"))
		return
	}
	a, err := s.cfg.Store.InsertActivity(r.Context(), store.Activity{
		ID: uuid.New(), AgentID: id, EventType: req.EventType, Summary: req.Summary, Details: req.Details,
	})
	if err != nil {
		writeErr(w, err)
		return
	}
	writeResource(w, http.StatusCreated, "activity", a.ID.String(), activityAttrs{
		EventType: a.EventType, Summary: a.Summary,
		CreatedAt: a.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	})
}

// memoryAttrs wraps the agent's freeform memory text as a single-field
// resource, distinct from agentAttrs so memory reads don't force the rest
// of the agent's fields onto the wire.
type memoryAttrs struct {
	Content string `json:"content"`
}

func (s *Server) handleGetMemory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	a, err := s.cfg.Agents.Get(r.Context(), id)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeResource(w, http.StatusOK, "memory", id.String(), memoryAttrs{Content: a.Memory})
}

type replaceMemoryRequest struct {
	Content string `json:"content"`
}

func (s *Server) handlePutMemory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req replaceMemoryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErr(w, apierr.Validation("invalid body", "request body must be valid JSON"))
		return
	}
	a, err := s.cfg.Agents.UpdateMemory(r.Context(), id, req.Content, false)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeResource(w, http.StatusOK, "memory", id.String(), memoryAttrs{Content: a.Memory})
}

type patchMemoryRequest struct {
	Append  *string `json:"append"`
	Content *string `json:"content"`
}

// handlePatchMemory supports the two PATCH shapes spec §6 names:
// {"append":"..."} appends, {"content":"..."} replaces.
func (s *Server) handlePatchMemory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req patchMemoryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErr(w, apierr.Validation("invalid body", "request body must be valid JSON"))
		return
	}
	var (
		content string
		append  bool
	)
	switch {
	case req.Append != nil:
		content, append = *req.Append, true
	case req.Content != nil:
		content, append = *req.Content, false
	default:
		writeErr(w, apierr.Validation("invalid body", "body must set either append or content"))
		return
	}
	a, err := s.cfg.Agents.UpdateMemory(r.Context(), id, content, append)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeResource(w, http.StatusOK, "memory", id.String(), memoryAttrs{Content: a.Memory})
}

type assignmentAttrs struct {
	Name string `json:"name"`
}

// handleAgentProjects lists the projects an agent is assigned to, for the
// worker's project/task assignment tools.
func (s *Server) handleAgentProjects(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	projects, err := s.cfg.Store.ProjectsForAgent(r.Context(), id)
	if err != nil {
		writeErr(w, err)
		return
	}
	items := make([]resource, len(projects))
	for i, p := range projects {
		items[i] = resource{Type: "project", ID: p.ID.String(), Attributes: assignmentAttrs{Name: p.Name}}
	}
	writeList(w, http.StatusOK, items, false, "")
}

func (s *Server) handleAgentTasks(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	tasks, err := s.cfg.Store.TasksForAgent(r.Context(), id)
	if err != nil {
		writeErr(w, err)
		return
	}
	items := make([]resource, len(tasks))
	for i, t := range tasks {
		items[i] = resource{Type: "task", ID: t.ID.String(), Attributes: assignmentAttrs{Name: t.Name}}
	}
	writeList(w, http.StatusOK, items, false, "")
}
