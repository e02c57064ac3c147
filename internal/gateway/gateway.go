// Package gateway implements the Session Endpoint and HTTP API (C13): the
// single process boundary external clients and worker containers cross.
// It wires the WebSocket channel endpoint to the Session Registry and
// Pub/Sub Listener, and exposes REST endpoints over every other
// component, behind an auth/CORS/rate-limit middleware stack
// (internal/gateway/{auth,cors,ratelimit}.go).
package gateway

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/botcrew/orchestrator/internal/agents"
	"github.com/botcrew/orchestrator/internal/bootconfig"
	"github.com/botcrew/orchestrator/internal/bus"
	"github.com/botcrew/orchestrator/internal/channels"
	"github.com/botcrew/orchestrator/internal/config"
	"github.com/botcrew/orchestrator/internal/hub"
	"github.com/botcrew/orchestrator/internal/messages"
	"github.com/botcrew/orchestrator/internal/otel"
	"github.com/botcrew/orchestrator/internal/session"
	"github.com/botcrew/orchestrator/internal/shared"
	"github.com/botcrew/orchestrator/internal/store"
)

// Config bundles every component the gateway composes. The gateway owns
// none of them — it only calls through to the seams they already expose.
type Config struct {
	Store      *store.Store
	Agents     *agents.Service
	Channels   *channels.Service
	Messages   *messages.Service
	Hub        *hub.Hub
	BootConfig *bootconfig.Provider
	Sessions   *session.Registry
	Bus        bus.Bus

	Auth      config.AuthConfig
	CORS      config.CORSConfig
	RateLimit config.RateLimitConfig
	MaxBytes  int64

	// Metrics is optional; nil keeps request-duration recording a no-op.
	Metrics *otel.Metrics

	// AllowOrigins gates which Origin headers a browser WebSocket upgrade
	// accepts; empty means same-origin only (no browser Origin header
	// required).
	AllowOrigins []string

	Log *slog.Logger
}

type Server struct {
	cfg Config
	log *slog.Logger
}

func New(cfg Config) *Server {
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}
	return &Server{cfg: cfg, log: log}
}

// Handler builds the full middleware chain (CORS -> rate limit -> auth ->
// body-size limit) around the route mux, in that order so a rejected CORS
// preflight or throttled client never reaches auth.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("GET /system/health", s.handleSystemHealth)

	mux.HandleFunc("GET /ws/channels/{channel_id}", s.handleWS)

	mux.HandleFunc("GET /agents", s.handleListAgents)
	mux.HandleFunc("POST /agents", s.handleCreateAgent)
	mux.HandleFunc("GET /agents/{id}", s.handleGetAgent)
	mux.HandleFunc("PATCH /agents/{id}", s.handleUpdateAgent)
	mux.HandleFunc("DELETE /agents/{id}", s.handleDeleteAgent)
	mux.HandleFunc("POST /agents/{id}/duplicate", s.handleDuplicateAgent)
	mux.HandleFunc("GET /agents/{id}/memory", s.handleGetMemory)
	mux.HandleFunc("PUT /agents/{id}/memory", s.handlePutMemory)
	mux.HandleFunc("PATCH /agents/{id}/memory", s.handlePatchMemory)

	mux.HandleFunc("GET /internal/agents/{id}/boot-config", s.handleBootConfig)
	mux.HandleFunc("POST /internal/agents/{id}/status", s.handleReportStatus)
	mux.HandleFunc("GET /internal/agents/{id}/self", s.handleSelf)
	mux.HandleFunc("PATCH /internal/agents/{id}/self", s.handleSelfUpdate)
	mux.HandleFunc("GET /internal/agents/{id}/activities", s.handleListActivities)
	mux.HandleFunc("POST /internal/agents/{id}/activities", s.handleAppendActivity)
	mux.HandleFunc("GET /internal/agents/{id}/projects", s.handleAgentProjects)
	mux.HandleFunc("GET /internal/agents/{id}/tasks", s.handleAgentTasks)

	mux.HandleFunc("GET /channels", s.handleListChannels)
	mux.HandleFunc("POST /channels", s.handleCreateChannel)
	mux.HandleFunc("GET /channels/{id}", s.handleGetChannel)
	mux.HandleFunc("POST /channels/{id}/members", s.handleAddMember)
	mux.HandleFunc("DELETE /channels/{id}/members", s.handleRemoveMember)
	mux.HandleFunc("GET /channels/{id}/messages", s.handleMessageHistory)
	mux.HandleFunc("POST /channels/{id}/messages", s.handleSendChannelMessage)
	mux.HandleFunc("PATCH /channels/{id}/read-cursor", s.handleUpdateReadCursor)
	mux.HandleFunc("GET /channels/{id}/unread", s.handleUnread)

	mux.HandleFunc("POST /dm/{agent_id}/messages", s.handleSendDM)

	auth := NewAuthMiddleware(s.cfg.Auth)
	cors := NewCORSMiddleware(s.cfg.CORS)
	rateLimit := NewRateLimitMiddleware(s.cfg.RateLimit)
	sizeLimit := RequestSizeLimitMiddleware(s.cfg.MaxBytes)

	return s.traceMiddleware(cors(rateLimit.Wrap(auth.Wrap(sizeLimit(s.metricsMiddleware(mux))))))
}

// traceMiddleware attaches a trace_id to the request context — taken from
// an inbound X-Trace-Id header when the caller already has one (chained
// calls from a worker), otherwise freshly generated — and echoes it back
// on the response so a client can correlate its own logs against ours.
func (s *Server) traceMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID := r.Header.Get("X-Trace-Id")
		if traceID == "" {
			traceID = shared.NewTraceID()
		}
		w.Header().Set("X-Trace-Id", traceID)
		next.ServeHTTP(w, r.WithContext(shared.WithTraceID(r.Context(), traceID)))
	})
}

// metricsMiddleware records per-request duration when s.cfg.Metrics is
// configured; otherwise it is a pass-through.
func (s *Server) metricsMiddleware(next http.Handler) http.Handler {
	if s.cfg.Metrics == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.cfg.Metrics.GatewayRequestDuration.Record(r.Context(), time.Since(start).Seconds())
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if _, err := s.cfg.Store.ListAgentsByStatuses(r.Context(), []store.AgentStatus{store.AgentRunning}); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleSystemHealth reports the liveness of every external dependency the
// gateway itself can reach, for operators and the worker readiness probe.
func (s *Server) handleSystemHealth(w http.ResponseWriter, r *http.Request) {
	database := "connected"
	if _, err := s.cfg.Store.ListAgentsByStatuses(r.Context(), []store.AgentStatus{store.AgentRunning}); err != nil {
		database = "unavailable"
	}

	busStatus := "connected"
	if s.cfg.Bus == nil {
		busStatus = "unavailable"
	} else if err := s.cfg.Bus.Ping(r.Context()); err != nil {
		busStatus = "unavailable"
	}

	status := http.StatusOK
	overall := "healthy"
	if database != "connected" || busStatus != "connected" {
		status = http.StatusServiceUnavailable
		overall = "unhealthy"
	}

	writeJSON(w, status, map[string]string{
		"status":   overall,
		"database": database,
		"bus":      busStatus,
	})
}
