// Package store implements the Durable Store (C1): the authoritative
// record of agents, channels, members, messages, read cursors, assignments,
// and activities. It accepts an externally-owned *pgxpool.Pool via
// constructor injection — the caller creates and closes the pool.
package store

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type AgentStatus string

const (
	AgentCreating    AgentStatus = "creating"
	AgentRunning     AgentStatus = "running"
	AgentError       AgentStatus = "error"
	AgentRecovering  AgentStatus = "recovering"
	AgentTerminating AgentStatus = "terminating"
)

type ChannelType string

const (
	ChannelShared  ChannelType = "shared"
	ChannelDM      ChannelType = "dm"
	ChannelProject ChannelType = "project"
	ChannelTask    ChannelType = "task"
	ChannelCustom  ChannelType = "custom"
)

type MessageType string

const (
	MessageChat   MessageType = "chat"
	MessageSystem MessageType = "system"
	MessageDM     MessageType = "dm"
)

// Agent is the logical worker row. WorkerHandle is nullable: the invariant
// "status=running implies WorkerHandle != nil" is enforced by callers
// (Agent Service / Reconciler), not by the store.
type Agent struct {
	ID                       uuid.UUID
	Name                     string
	Identity                 string
	Personality              string
	Memory                   string
	HeartbeatPeriodSeconds   int
	HeartbeatPrompt          string
	HeartbeatEnabled         bool
	ModelProvider            string
	ModelName                string
	WorkerHandle             *string
	Status                   AgentStatus
	CreatedAt                time.Time
	UpdatedAt                time.Time
}

type Channel struct {
	ID          uuid.UUID
	Name        string
	Description string
	Type        ChannelType
	Creator     *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Member is a tagged-variant (channel, agent OR human) pair. Exactly one
// of AgentID / HumanID is non-nil — never unify into one polymorphic
// identifier.
type Member struct {
	ChannelID uuid.UUID
	AgentID   *uuid.UUID
	HumanID   *string
	CreatedAt time.Time
}

type Message struct {
	ID             uuid.UUID
	ChannelID      uuid.UUID
	SenderAgentID  *uuid.UUID
	SenderHumanID  *string
	Content        string
	Type           MessageType
	Metadata       json.RawMessage
	CreatedAt      time.Time
}

type ReadCursor struct {
	ChannelID         uuid.UUID
	AgentID           *uuid.UUID
	HumanID           *string
	LastReadMessageID uuid.UUID
	LastReadAt        time.Time
}

type Activity struct {
	ID        uuid.UUID
	AgentID   uuid.UUID
	EventType string
	Summary   string
	Details   json.RawMessage
	CreatedAt time.Time
}

type Project struct {
	ID            uuid.UUID
	Name          string
	Goals         string
	Specs         string
	RolePrompt    string
	WorkspacePath string
	ChannelID     *uuid.UUID
	Active        bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type Task struct {
	ID               uuid.UUID
	Name             string
	Description      string
	DirectivePreview string
	Status           string
	ChannelID        *uuid.UUID
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

type Skill struct {
	ID          uuid.UUID
	Name        string
	Description string
	IsActive    bool
}

type Secret struct {
	Key   string
	Value string
}

// Integration is an external-service configuration row, ported from the
// original's Integration model. The Boot-Config Provider reads active
// rows with IntegrationType "ai_provider" to override the flat secrets
// table with provider-specific API keys; Config is an opaque JSON string
// whose shape depends on IntegrationType.
type Integration struct {
	ID              uuid.UUID
	Name            string
	IntegrationType string
	Config          string
	AgentID         *uuid.UUID
	ChannelID       *uuid.UUID
	IsActive        bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// ProjectAssignment is the agent<->project edge with an optional per-
// assignment role text, per the assignment-graph invariant that duplicate
// assignments are rejected at write (enforced by a UNIQUE constraint).
type ProjectAssignment struct {
	AgentID   uuid.UUID
	ProjectID uuid.UUID
	Role      string
}

type TaskAssignment struct {
	AgentID uuid.UUID
	TaskID  uuid.UUID
}
