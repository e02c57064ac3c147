// Package hub implements the Communication Hub (C9): the single write path
// for every message, wiring together the Message Service (persist), the
// Pub/Sub Bus Adapter (publish), @mention routing, and the Delivery Queue
// Adapter (relevance dispatch). The Hub holds no state between calls — it
// composes the components that do.
package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/botcrew/orchestrator/internal/bus"
	"github.com/botcrew/orchestrator/internal/channels"
	"github.com/botcrew/orchestrator/internal/messages"
	"github.com/botcrew/orchestrator/internal/otel"
	"github.com/botcrew/orchestrator/internal/queue"
	"github.com/botcrew/orchestrator/internal/store"
)

var mentionPattern = regexp.MustCompile(`@[\w-]+`)

// OutboundFrame is the wire shape published to a channel's bus topic and
// fanned out to live sessions by the Pub/Sub Listener.
type OutboundFrame struct {
	Type        string    `json:"type"`
	ID          uuid.UUID `json:"id"`
	Channel     uuid.UUID `json:"channel"`
	SenderKind  string    `json:"sender_kind"`
	SenderID    string    `json:"sender_id,omitempty"`
	Content     string    `json:"content"`
	MessageType string    `json:"message_type"`
	CreatedAt   time.Time `json:"created_at"`
}

type Hub struct {
	messages *messages.Service
	channels *channels.Service
	store    *store.Store
	bus      bus.Bus
	queue    *queue.Queue
	metrics  *otel.Metrics
}

func New(msgs *messages.Service, chans *channels.Service, s *store.Store, b bus.Bus, q *queue.Queue) *Hub {
	return &Hub{messages: msgs, channels: chans, store: s, bus: b, queue: q}
}

// WithMetrics attaches an otel.Metrics instance so every publish records
// its duration and every persisted message is counted; nil (the default)
// keeps the Hub a no-op on that front.
func (h *Hub) WithMetrics(m *otel.Metrics) *Hub {
	h.metrics = m
	return h
}

// SendChannelMessage persists, publishes, routes @mentions, and (for
// human senders) dispatches relevance evaluation to every channel member
// not already notified via mention.
func (h *Hub) SendChannelMessage(ctx context.Context, channelID uuid.UUID, content string, senderAgent *uuid.UUID, senderHuman *string, typ store.MessageType, metadata []byte) (store.Message, error) {
	msg, err := h.messages.Create(ctx, channelID, content, typ, senderAgent, senderHuman, metadata)
	if err != nil {
		return store.Message{}, err
	}

	if err := h.publish(ctx, channelID, msg, senderAgent, senderHuman); err != nil {
		return msg, err
	}

	mentioned, err := h.routeMentions(ctx, channelID, content, msg.ID)
	if err != nil {
		return msg, err
	}

	if senderHuman != nil {
		if err := h.dispatchRelevance(ctx, channelID, content, msg, mentioned); err != nil {
			return msg, err
		}
	}

	return msg, nil
}

// SendDirectMessage resolves (or creates) the DM channel for targetAgent
// and the sending human/agent, persists with type=dm, publishes, and
// enqueues a durable DM delivery job for the target agent.
func (h *Hub) SendDirectMessage(ctx context.Context, targetAgent uuid.UUID, content string, senderHuman *string, senderAgent *uuid.UUID) (store.Message, error) {
	var humanID string
	if senderHuman != nil {
		humanID = *senderHuman
	}
	ch, err := h.channels.GetOrCreateDM(ctx, targetAgent, humanID)
	if err != nil {
		return store.Message{}, err
	}

	msg, err := h.messages.Create(ctx, ch.ID, content, store.MessageDM, senderAgent, senderHuman, nil)
	if err != nil {
		return store.Message{}, err
	}
	if err := h.publish(ctx, ch.ID, msg, senderAgent, senderHuman); err != nil {
		return msg, err
	}

	payload, err := json.Marshal(struct {
		Content   string    `json:"content"`
		MessageID uuid.UUID `json:"message_id"`
		Sender    string    `json:"sender,omitempty"`
	}{Content: content, MessageID: msg.ID, Sender: humanID})
	if err != nil {
		return msg, fmt.Errorf("hub: marshal dm delivery payload: %w", err)
	}
	if err := h.queue.DeliverDM(ctx, targetAgent, payload); err != nil {
		return msg, fmt.Errorf("hub: enqueue dm delivery: %w", err)
	}
	return msg, nil
}

// SendSystemMessage persists a senderless system message and publishes it.
// No mention routing and no relevance dispatch.
func (h *Hub) SendSystemMessage(ctx context.Context, channelID uuid.UUID, content string) (store.Message, error) {
	msg, err := h.messages.Create(ctx, channelID, content, store.MessageSystem, nil, nil, nil)
	if err != nil {
		return store.Message{}, err
	}
	if err := h.publish(ctx, channelID, msg, nil, nil); err != nil {
		return msg, err
	}
	return msg, nil
}

func (h *Hub) publish(ctx context.Context, channelID uuid.UUID, msg store.Message, senderAgent *uuid.UUID, senderHuman *string) error {
	if h.metrics != nil {
		start := time.Now()
		defer func() {
			h.metrics.HubPublishDuration.Record(ctx, time.Since(start).Seconds())
		}()
		h.metrics.MessagesTotal.Add(ctx, 1)
	}

	frame := OutboundFrame{
		Type:        "message",
		ID:          msg.ID,
		Channel:     channelID,
		Content:     msg.Content,
		MessageType: string(msg.Type),
		CreatedAt:   msg.CreatedAt,
	}
	switch {
	case senderAgent != nil:
		frame.SenderKind = "agent"
		frame.SenderID = senderAgent.String()
	case senderHuman != nil:
		frame.SenderKind = "human"
		frame.SenderID = *senderHuman
	default:
		frame.SenderKind = "system"
	}

	payload, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("hub: marshal outbound frame: %w", err)
	}
	if err := h.bus.Publish(ctx, bus.ChannelTopic(channelID.String()), payload); err != nil {
		return fmt.Errorf("hub: publish: %w", err)
	}
	return nil
}

// routeMentions scans content for @mentions and enqueues a DM delivery job
// for each matched agent member of channelID, returning the set dispatched
// this way so relevance dispatch can exclude them.
func (h *Hub) routeMentions(ctx context.Context, channelID uuid.UUID, content string, messageID uuid.UUID) (map[uuid.UUID]bool, error) {
	mentioned := make(map[uuid.UUID]bool)

	tokens := mentionPattern.FindAllString(content, -1)
	if len(tokens) == 0 {
		return mentioned, nil
	}

	agentIDs, err := h.channels.ChannelAgentIDs(ctx, channelID)
	if err != nil {
		return nil, err
	}

	for _, agentID := range agentIDs {
		agent, err := h.store.GetAgent(ctx, agentID)
		if err != nil {
			continue
		}
		if !anyTokenMatchesName(tokens, agent.Name) {
			continue
		}
		mentioned[agentID] = true

		payload, err := json.Marshal(struct {
			Content        string    `json:"content"`
			MessageID      uuid.UUID `json:"message_id"`
			ReplyChannelID uuid.UUID `json:"reply_channel_id"`
		}{Content: content, MessageID: messageID, ReplyChannelID: channelID})
		if err != nil {
			return nil, fmt.Errorf("hub: marshal mention delivery payload: %w", err)
		}
		if err := h.queue.DeliverDM(ctx, agentID, payload); err != nil {
			return nil, fmt.Errorf("hub: enqueue mention delivery: %w", err)
		}
	}
	return mentioned, nil
}

// dispatchRelevance enqueues an evaluate_channel_message job for every
// agent member of channelID not already notified via mention, only when
// the sender was human.
func (h *Hub) dispatchRelevance(ctx context.Context, channelID uuid.UUID, content string, msg store.Message, mentioned map[uuid.UUID]bool) error {
	agentIDs, err := h.channels.ChannelAgentIDs(ctx, channelID)
	if err != nil {
		return err
	}

	ch, err := h.channels.Get(ctx, channelID)
	if err != nil {
		return err
	}
	isDM := ch.Type == store.ChannelDM

	var sender string
	if msg.SenderHumanID != nil {
		sender = *msg.SenderHumanID
	}

	for _, agentID := range agentIDs {
		if mentioned[agentID] {
			continue
		}
		if err := h.queue.EvaluateChannelMessage(ctx, queue.EvaluatePayload{
			AgentID:              agentID,
			ChannelID:            channelID,
			MessageContent:       content,
			MessageID:            msg.ID,
			SenderUserIdentifier: sender,
			IsDM:                 isDM,
		}); err != nil {
			return fmt.Errorf("hub: enqueue relevance evaluation: %w", err)
		}
	}
	return nil
}

// anyTokenMatchesName checks each @mention token against name under three
// case-insensitive normalizations: as-is, spaces->hyphens, and
// spaces-and-hyphens->underscores.
func anyTokenMatchesName(tokens []string, name string) bool {
	lower := strings.ToLower(name)
	variants := []string{
		lower,
		strings.ReplaceAll(lower, " ", "-"),
		strings.ReplaceAll(strings.ReplaceAll(lower, " ", "_"), "-", "_"),
	}
	for _, tok := range tokens {
		candidate := strings.ToLower(strings.TrimPrefix(tok, "@"))
		for _, v := range variants {
			if candidate == v {
				return true
			}
		}
	}
	return false
}
