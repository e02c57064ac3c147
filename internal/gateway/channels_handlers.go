package gateway

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/botcrew/orchestrator/internal/apierr"
	"github.com/botcrew/orchestrator/internal/store"
)

type channelAttrs struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Type        string `json:"type"`
	Creator     string `json:"creator,omitempty"`
	CreatedAt   string `json:"created_at"`
}

func channelResource(c store.Channel) resource {
	attrs := channelAttrs{
		Name: c.Name, Description: c.Description, Type: string(c.Type),
		CreatedAt: c.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
	if c.Creator != nil {
		attrs.Creator = *c.Creator
	}
	return resource{Type: "channel", ID: c.ID.String(), Attributes: attrs}
}

func (s *Server) handleListChannels(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var agentFilter *uuid.UUID
	if raw := q.Get("agent_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			writeErr(w, apierr.Validation("invalid agent_id", "agent_id must be a UUID"))
			return
		}
		agentFilter = &id
	}
	var humanFilter *string
	if raw := q.Get("human_id"); raw != "" {
		humanFilter = &raw
	}

	rows, err := s.cfg.Channels.ListChannels(r.Context(), agentFilter, humanFilter)
	if err != nil {
		writeErr(w, err)
		return
	}
	items := make([]resource, len(rows))
	for i, c := range rows {
		items[i] = channelResource(c)
	}
	writeList(w, http.StatusOK, items, false, "")
}

type createChannelRequest struct {
	Name          string      `json:"name"`
	Description   string      `json:"description"`
	Type          string      `json:"type"`
	Creator       *string     `json:"creator"`
	InitialAgents []uuid.UUID `json:"initial_agents"`
}

func (s *Server) handleCreateChannel(w http.ResponseWriter, r *http.Request) {
	var req createChannelRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErr(w, apierr.Validation("invalid body", "request body must be valid JSON"))
		return
	}
	c, err := s.cfg.Channels.Create(r.Context(), req.Name, req.Description, store.ChannelType(req.Type), req.Creator, req.InitialAgents)
	if err != nil {
		writeErr(w, err)
		return
	}
	res := channelResource(c)
	writeResource(w, http.StatusCreated, res.Type, res.ID, res.Attributes)
}

func (s *Server) handleGetChannel(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	c, err := s.cfg.Channels.Get(r.Context(), id)
	if err != nil {
		writeErr(w, err)
		return
	}
	res := channelResource(c)
	writeResource(w, http.StatusOK, res.Type, res.ID, res.Attributes)
}

type memberRequest struct {
	AgentID *uuid.UUID `json:"agent_id"`
	HumanID *string    `json:"human_id"`
}

func (s *Server) handleAddMember(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req memberRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErr(w, apierr.Validation("invalid body", "request body must be valid JSON"))
		return
	}
	if err := s.cfg.Channels.AddMember(r.Context(), id, req.AgentID, req.HumanID); err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRemoveMember(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	q := r.URL.Query()
	var agentID *uuid.UUID
	if raw := q.Get("agent_id"); raw != "" {
		parsed, err := uuid.Parse(raw)
		if err != nil {
			writeErr(w, apierr.Validation("invalid agent_id", "agent_id must be a UUID"))
			return
		}
		agentID = &parsed
	}
	var humanID *string
	if raw := q.Get("human_id"); raw != "" {
		humanID = &raw
	}
	if err := s.cfg.Channels.RemoveMember(r.Context(), id, agentID, humanID); err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type messageAttrs struct {
	Content       string  `json:"content"`
	Type          string  `json:"type"`
	SenderAgentID *string `json:"sender_agent_id,omitempty"`
	SenderHumanID *string `json:"sender_human_id,omitempty"`
	CreatedAt     string  `json:"created_at"`
}

func messageResource(m store.Message) resource {
	attrs := messageAttrs{
		Content: m.Content, Type: string(m.Type),
		CreatedAt: m.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
	if m.SenderAgentID != nil {
		id := m.SenderAgentID.String()
		attrs.SenderAgentID = &id
	}
	attrs.SenderHumanID = m.SenderHumanID
	return resource{Type: "message", ID: m.ID.String(), Attributes: attrs}
}

func (s *Server) handleMessageHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	q := r.URL.Query()
	pageSize := 0
	if raw := q.Get("page_size"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			pageSize = n
		}
	}
	page, err := s.cfg.Messages.History(r.Context(), id, pageSize, q.Get("before"))
	if err != nil {
		writeErr(w, err)
		return
	}
	items := make([]resource, len(page.Messages))
	for i, m := range page.Messages {
		items[i] = messageResource(m)
	}
	writeList(w, http.StatusOK, items, page.HasMore, page.Next)
}

type sendMessageRequest struct {
	Content     string     `json:"content"`
	Type        string     `json:"type"`
	SenderAgent *uuid.UUID `json:"sender_agent_id"`
	SenderHuman *string    `json:"sender_human_id"`
}

func (s *Server) handleSendChannelMessage(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req sendMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErr(w, apierr.Validation("invalid body", "request body must be valid JSON"))
		return
	}
	typ := store.MessageType(req.Type)
	if typ == "" {
		typ = store.MessageChat
	}
	msg, err := s.cfg.Hub.SendChannelMessage(r.Context(), id, req.Content, req.SenderAgent, req.SenderHuman, typ, nil)
	if err != nil {
		writeErr(w, err)
		return
	}
	res := messageResource(msg)
	writeResource(w, http.StatusCreated, res.Type, res.ID, res.Attributes)
}

type readCursorRequest struct {
	AgentID   *uuid.UUID `json:"agent_id"`
	HumanID   *string    `json:"human_id"`
	MessageID uuid.UUID  `json:"message_id"`
}

func (s *Server) handleUpdateReadCursor(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req readCursorRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErr(w, apierr.Validation("invalid body", "request body must be valid JSON"))
		return
	}
	if err := s.cfg.Messages.UpdateReadCursor(r.Context(), id, req.AgentID, req.HumanID, req.MessageID, time.Now()); err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type unreadAttrs struct {
	Count    int        `json:"count"`
	Messages []resource `json:"messages"`
}

func (s *Server) handleUnread(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	q := r.URL.Query()
	var agentID *uuid.UUID
	if raw := q.Get("agent_id"); raw != "" {
		parsed, err := uuid.Parse(raw)
		if err != nil {
			writeErr(w, apierr.Validation("invalid agent_id", "agent_id must be a UUID"))
			return
		}
		agentID = &parsed
	}
	var humanID *string
	if raw := q.Get("human_id"); raw != "" {
		humanID = &raw
	}

	count, err := s.cfg.Messages.UnreadCount(r.Context(), id, agentID, humanID)
	if err != nil {
		writeErr(w, err)
		return
	}
	rows, err := s.cfg.Messages.UnreadMessages(r.Context(), id, agentID, humanID)
	if err != nil {
		writeErr(w, err)
		return
	}
	items := make([]resource, len(rows))
	for i, m := range rows {
		items[i] = messageResource(m)
	}
	writeResource(w, http.StatusOK, "unread", id.String(), unreadAttrs{Count: count, Messages: items})
}

func (s *Server) handleSendDM(w http.ResponseWriter, r *http.Request) {
	agentID, ok := pathUUID(w, r, "agent_id")
	if !ok {
		return
	}
	var req sendMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErr(w, apierr.Validation("invalid body", "request body must be valid JSON"))
		return
	}
	msg, err := s.cfg.Hub.SendDirectMessage(r.Context(), agentID, req.Content, req.SenderHuman, req.SenderAgent)
	if err != nil {
		writeErr(w, err)
		return
	}
	res := messageResource(msg)
	writeResource(w, http.StatusCreated, res.Type, res.ID, res.Attributes)
}
