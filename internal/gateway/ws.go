package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"

	"github.com/botcrew/orchestrator/internal/apierr"
	"github.com/botcrew/orchestrator/internal/shared"
	"github.com/botcrew/orchestrator/internal/store"
)

const (
	closeChannelNotFound websocket.StatusCode = 4004
	wsWriteTimeout                            = 5 * time.Second
)

// wsHandle adapts a coder/websocket connection to session.Handle. A
// connection supports one writer at a time; Broadcast (from the Pub/Sub
// Listener goroutine) and this session's own error-frame replies (from its
// read-loop goroutine) both write, so every write is mutex-guarded.
type wsHandle struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (h *wsHandle) Send(ctx context.Context, frame []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.conn.Write(ctx, websocket.MessageText, frame)
}

func (h *wsHandle) Close() error {
	return h.conn.Close(websocket.StatusNormalClosure, "bye")
}

// inboundFrame is the shape a session sends once attached: a chat or
// system message to post as itself.
type inboundFrame struct {
	Type        string `json:"type"`
	Content     string `json:"content"`
	MessageType string `json:"message_type"`
}

type wsErrorFrame struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// handleWS accepts a session handshake at /ws/channels/{channel_id}, per
// spec §4.11: look up the channel, attach, announce a join system message,
// then loop validating and relaying inbound frames until disconnect, at
// which point it detaches and announces a leave system message. Each step
// touching the database opens its own call rather than holding a
// transaction across a frame read.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	channelID, err := uuid.Parse(r.PathValue("channel_id"))
	if err != nil {
		http.Error(w, "invalid channel_id", http.StatusBadRequest)
		return
	}
	clientID := r.URL.Query().Get("client_id")
	if clientID == "" {
		clientID = uuid.NewString()
	}

	if _, err := s.cfg.Channels.Get(r.Context(), channelID); err != nil {
		conn, acceptErr := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: s.cfg.AllowOrigins})
		if acceptErr == nil {
			_ = conn.Close(closeChannelNotFound, "channel not found")
		}
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		// Explicit origin allowlist for cross-origin requests.
		OriginPatterns: s.cfg.AllowOrigins,
	})
	if err != nil {
		return
	}
	handle := &wsHandle{conn: conn}

	chanIDStr := channelID.String()
	traceID := shared.TraceID(r.Context())
	s.cfg.Sessions.Attach(chanIDStr, clientID, handle)
	s.log.Info("ws: session attached", "channel_id", chanIDStr, "client_id", clientID, "trace_id", traceID)

	if _, err := s.cfg.Hub.SendSystemMessage(r.Context(), channelID, clientID+" joined"); err != nil {
		s.log.Error("ws: join announcement failed", "error", err, "trace_id", traceID)
	}

	defer func() {
		s.cfg.Sessions.Detach(chanIDStr, clientID)
		_ = handle.Close()
		leaveCtx, cancel := context.WithTimeout(context.Background(), wsWriteTimeout)
		defer cancel()
		if _, err := s.cfg.Hub.SendSystemMessage(leaveCtx, channelID, clientID+" left"); err != nil {
			s.log.Error("ws: leave announcement failed", "error", err, "trace_id", traceID)
		}
		s.log.Info("ws: session detached", "channel_id", chanIDStr, "client_id", clientID, "trace_id", traceID)
	}()

	for {
		var frame inboundFrame
		if err := wsjson.Read(r.Context(), conn, &frame); err != nil {
			return
		}
		if err := s.handleInboundFrame(r.Context(), handle, channelID, clientID, frame); err != nil {
			s.log.Warn("ws: inbound frame rejected", "error", err, "trace_id", traceID)
		}
	}
}

func (s *Server) handleInboundFrame(ctx context.Context, handle *wsHandle, channelID uuid.UUID, clientID string, frame inboundFrame) error {
	if frame.Type != "message" || frame.Content == "" {
		return writeWSError(ctx, handle, "content must be non-empty")
	}
	typ := store.MessageType(frame.MessageType)
	if typ != store.MessageChat && typ != store.MessageSystem {
		return writeWSError(ctx, handle, "message_type must be chat or system")
	}

	humanID := clientID
	msg, err := s.cfg.Hub.SendChannelMessage(ctx, channelID, frame.Content, nil, &humanID, typ, nil)
	if err != nil {
		return writeWSError(ctx, handle, apierr.As(err).Detail)
	}

	if err := s.cfg.Messages.UpdateReadCursor(ctx, channelID, nil, &humanID, msg.ID, time.Now()); err != nil {
		s.log.Error("ws: update sender read cursor failed", "error", err, "trace_id", shared.TraceID(ctx))
	}
	return nil
}

func writeWSError(ctx context.Context, handle *wsHandle, detail string) error {
	payload, err := json.Marshal(wsErrorFrame{Type: "error", Error: detail})
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return handle.Send(writeCtx, payload)
}
