// Package reconcile implements the Reconciler (C11): a periodic
// desired-vs-actual worker diff loop with bounded-backoff recovery. Each
// tick reads every live agent, diffs against one runtime.ListAll call, and
// applies the transition table, registered on a robfig/cron/v3 schedule
// rather than a hand-rolled ticker.
package reconcile

import (
	"context"
	"log/slog"
	"sync"
	"time"

	cronlib "github.com/robfig/cron/v3"

	"github.com/botcrew/orchestrator/internal/otel"
	"github.com/botcrew/orchestrator/internal/runtime"
	"github.com/botcrew/orchestrator/internal/store"
)

const (
	defaultSchedule     = "@every 60s"
	pendingTimeout      = 180 * time.Second
	recoveryThreshold   = 5
	recoveryBaseSeconds = 10
	recoveryMaxSeconds  = 600
)

var liveAgentStatuses = []store.AgentStatus{
	store.AgentRunning, store.AgentError, store.AgentRecovering,
}

// recoveryState is the per-agent in-memory backoff tracker. It is never
// persisted: a restart resets backoff, which is acceptable since the
// worst case is one extra immediate retry.
type recoveryState struct {
	failureCount int
	lastAttempt  time.Time
}

// pendingSince tracks how long a running agent's worker has been observed
// in the pending phase, so the 180s timeout can be enforced across ticks.
type pendingSince struct {
	since time.Time
}

type Reconciler struct {
	store    *store.Store
	runtime  runtime.Adapter
	log      *slog.Logger
	schedule string
	metrics  *otel.Metrics

	mu       sync.Mutex
	recovery map[string]*recoveryState
	pending  map[string]*pendingSince

	cron  *cronlib.Cron
	nowFn func() time.Time
}

func New(s *store.Store, r runtime.Adapter, log *slog.Logger) *Reconciler {
	return &Reconciler{
		store:    s,
		runtime:  r,
		log:      log,
		schedule: defaultSchedule,
		recovery: make(map[string]*recoveryState),
		pending:  make(map[string]*pendingSince),
		nowFn:    time.Now,
	}
}

// WithMetrics attaches an otel.Metrics instance so every Tick records its
// duration; nil (the default) keeps the Reconciler a no-op on that front.
func (r *Reconciler) WithMetrics(m *otel.Metrics) *Reconciler {
	r.metrics = m
	return r
}

// WithSchedule overrides the default "@every 60s" robfig/cron/v3 spec.
func (r *Reconciler) WithSchedule(schedule string) *Reconciler {
	r.schedule = schedule
	return r
}

// Start registers the tick function on a robfig/cron/v3 scheduler and
// starts it. Returns immediately; call Stop to cancel.
func (r *Reconciler) Start(ctx context.Context) error {
	r.cron = cronlib.New()
	_, err := r.cron.AddFunc(r.schedule, func() { r.Tick(ctx) })
	if err != nil {
		return err
	}
	r.cron.Start()
	return nil
}

// Stop cancels the schedule and waits for any in-flight tick to finish.
func (r *Reconciler) Stop() {
	if r.cron != nil {
		stopCtx := r.cron.Stop()
		<-stopCtx.Done()
	}
}

// Tick runs one reconciliation pass: read every agent in a live status,
// call ListAll once, and apply the transition table.
func (r *Reconciler) Tick(ctx context.Context) {
	if r.metrics != nil {
		start := time.Now()
		defer func() {
			r.metrics.ReconcileTickDuration.Record(ctx, time.Since(start).Seconds())
		}()
	}

	agentsList, err := r.store.ListAgentsByStatuses(ctx, liveAgentStatuses)
	if err != nil {
		r.log.Error("reconcile: list agents failed", "error", err)
		return
	}

	workers, err := r.runtime.ListAll(ctx)
	if err != nil {
		r.log.Error("reconcile: list workers failed", "error", err)
		return
	}
	phaseByHandle := make(map[string]runtime.Phase, len(workers))
	for _, w := range workers {
		phaseByHandle[w.Handle] = w.Phase
	}

	for _, a := range agentsList {
		r.reconcileOne(ctx, a, phaseByHandle)
	}
}

func (r *Reconciler) reconcileOne(ctx context.Context, a store.Agent, phaseByHandle map[string]runtime.Phase) {
	switch a.Status {
	case store.AgentTerminating, store.AgentCreating:
		return
	case store.AgentRunning:
		r.reconcileRunning(ctx, a, phaseByHandle)
	case store.AgentError, store.AgentRecovering:
		r.reconcileErrorOrRecovering(ctx, a, phaseByHandle)
	}
}

// runningAction is the outcome of applying the transition table to a
// "running" agent, decided as a pure function of observed phase so it can
// be tested without a runtime or store.
type runningAction int

const (
	actionNone runningAction = iota
	actionMarkError
	actionTerminateAndMarkError
	actionAwaitPendingTimeout
)

// decideRunning implements the DB status=running row of the transition
// table in spec §4.9: absent -> error, failed -> terminate+error,
// pending -> tracked against the 180s timeout, anything else -> no action.
func decideRunning(phase runtime.Phase, handleKnown bool) runningAction {
	switch {
	case !handleKnown:
		return actionMarkError
	case phase == runtime.PhaseFailed:
		return actionTerminateAndMarkError
	case phase == runtime.PhasePending:
		return actionAwaitPendingTimeout
	default:
		return actionNone
	}
}

func (r *Reconciler) reconcileRunning(ctx context.Context, a store.Agent, phaseByHandle map[string]runtime.Phase) {
	var (
		phase runtime.Phase
		ok    bool
	)
	if a.WorkerHandle != nil {
		phase, ok = phaseByHandle[*a.WorkerHandle]
	}

	switch decideRunning(phase, ok) {
	case actionMarkError:
		r.markError(ctx, a)
	case actionTerminateAndMarkError:
		r.terminateAndMarkError(ctx, a)
	case actionAwaitPendingTimeout:
		r.handlePendingTimeout(ctx, a)
	case actionNone:
		r.clearPending(a.ID.String())
	}
}

func (r *Reconciler) handlePendingTimeout(ctx context.Context, a store.Agent) {
	key := a.ID.String()
	r.mu.Lock()
	ps, ok := r.pending[key]
	if !ok {
		ps = &pendingSince{since: r.nowFn()}
		r.pending[key] = ps
	}
	elapsed := r.nowFn().Sub(ps.since)
	r.mu.Unlock()

	if elapsed > pendingTimeout {
		r.terminateAndMarkError(ctx, a)
		r.clearPending(key)
	}
}

func (r *Reconciler) clearPending(agentKey string) {
	r.mu.Lock()
	delete(r.pending, agentKey)
	r.mu.Unlock()
}

func (r *Reconciler) terminateAndMarkError(ctx context.Context, a store.Agent) {
	if a.WorkerHandle != nil {
		if err := r.runtime.Terminate(ctx, *a.WorkerHandle, 10); err != nil {
			r.log.Warn("reconcile: terminate failed", "agent_id", a.ID, "error", err)
		}
	}
	r.markError(ctx, a)
}

func (r *Reconciler) markError(ctx context.Context, a store.Agent) {
	if err := r.store.SetAgentStatus(ctx, a.ID, store.AgentError, nil); err != nil {
		r.log.Error("reconcile: mark error failed", "agent_id", a.ID, "error", err)
	}
}

func (r *Reconciler) reconcileErrorOrRecovering(ctx context.Context, a store.Agent, phaseByHandle map[string]runtime.Phase) {
	if a.WorkerHandle != nil {
		if _, ok := phaseByHandle[*a.WorkerHandle]; ok {
			return
		}
	}
	r.attemptRecovery(ctx, a)
}

// attemptRecovery implements the 5-immediate-then-exponential backoff
// policy: backoff = min(10 * 2^(failure_count-5), 600) seconds once
// failure_count >= 5.
func (r *Reconciler) attemptRecovery(ctx context.Context, a store.Agent) {
	key := a.ID.String()

	r.mu.Lock()
	st, ok := r.recovery[key]
	if !ok {
		st = &recoveryState{}
		r.recovery[key] = st
	}
	if st.failureCount >= recoveryThreshold {
		backoff := recoveryBackoff(st.failureCount)
		if r.nowFn().Sub(st.lastAttempt) < backoff {
			r.mu.Unlock()
			return
		}
	}
	r.mu.Unlock()

	if err := r.store.SetAgentStatus(ctx, a.ID, store.AgentRecovering, a.WorkerHandle); err != nil {
		r.log.Error("reconcile: mark recovering failed", "agent_id", a.ID, "error", err)
		return
	}

	fresh, err := r.store.GetAgent(ctx, a.ID)
	if err != nil {
		r.log.Error("reconcile: re-read agent failed", "agent_id", a.ID, "error", err)
		return
	}

	handle, err := r.runtime.Launch(ctx, runtime.Agent{
		ID: fresh.ID, Name: fresh.Name, ModelProvider: fresh.ModelProvider, ModelName: fresh.ModelName,
	})

	r.mu.Lock()
	st.lastAttempt = r.nowFn()
	if err != nil {
		st.failureCount++
	}
	r.mu.Unlock()

	if err != nil {
		r.log.Warn("reconcile: recovery launch failed", "agent_id", a.ID, "failure_count", st.failureCount, "error", err)
		if serr := r.store.SetAgentStatus(ctx, a.ID, store.AgentError, nil); serr != nil {
			r.log.Error("reconcile: mark error after failed recovery failed", "agent_id", a.ID, "error", serr)
		}
		return
	}

	if err := r.store.SetAgentStatus(ctx, a.ID, store.AgentRunning, &handle); err != nil {
		r.log.Error("reconcile: mark running after recovery failed", "agent_id", a.ID, "error", err)
		return
	}
	r.mu.Lock()
	delete(r.recovery, key)
	r.mu.Unlock()
}

func recoveryBackoff(failureCount int) time.Duration {
	shift := failureCount - recoveryThreshold
	seconds := recoveryBaseSeconds
	for i := 0; i < shift; i++ {
		seconds *= 2
		if seconds >= recoveryMaxSeconds {
			seconds = recoveryMaxSeconds
			break
		}
	}
	if seconds > recoveryMaxSeconds {
		seconds = recoveryMaxSeconds
	}
	return time.Duration(seconds) * time.Second
}
