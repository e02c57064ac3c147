package queue

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// dispatchTimeout bounds each worker HTTP call: "deliver_dm" and
// "evaluate_channel_message" jobs must not hang a pool goroutine forever.
const dispatchTimeout = 120 * time.Second

// agentURL follows the Docker-backed Worker-Runtime Adapter's container
// naming scheme: every worker container is named "agent-<uuid>" and
// reachable by that name on the orchestrator's Docker network.
func agentURL(agentID uuid.UUID, path string) string {
	return fmt.Sprintf("http://agent-%s:8080%s", agentID, path)
}

// Pool is a fixed-size set of goroutines claiming and executing delivery
// jobs.
type Pool struct {
	q       *Queue
	client  *http.Client
	log     *slog.Logger
	workers int
	pollInt time.Duration
}

func NewPool(q *Queue, log *slog.Logger, workers int) *Pool {
	if workers <= 0 {
		workers = 4
	}
	return &Pool{
		q:       q,
		client:  &http.Client{Timeout: dispatchTimeout},
		log:     log,
		workers: workers,
		pollInt: 500 * time.Millisecond,
	}
}

// Run starts the worker goroutines and blocks until ctx is canceled.
func (p *Pool) Run(ctx context.Context) {
	done := make(chan struct{})
	for i := 0; i < p.workers; i++ {
		go func(id int) {
			p.loop(ctx, id)
			done <- struct{}{}
		}(i)
	}
	for i := 0; i < p.workers; i++ {
		<-done
	}
}

func (p *Pool) loop(ctx context.Context, id int) {
	ticker := time.NewTicker(p.pollInt)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for p.claimAndRun(ctx) {
			}
		}
	}
}

// claimAndRun claims and executes at most one job, returning true if a job
// was found (so the caller can drain the backlog between ticks).
func (p *Pool) claimAndRun(ctx context.Context) bool {
	job, err := p.q.Claim(ctx)
	if err != nil {
		p.log.Error("queue: claim failed", "error", err)
		return false
	}
	if job == nil {
		return false
	}

	callCtx, cancel := context.WithTimeout(ctx, dispatchTimeout)
	err = p.dispatch(callCtx, *job)
	cancel()

	if err == nil {
		if serr := p.q.Succeed(ctx, job.ID); serr != nil {
			p.log.Error("queue: mark succeeded failed", "job_id", job.ID, "error", serr)
		}
		return true
	}

	deadLettered, ferr := p.q.Fail(ctx, *job, err.Error())
	if ferr != nil {
		p.log.Error("queue: fail transition failed", "job_id", job.ID, "error", ferr)
		return true
	}
	if deadLettered {
		p.log.Warn("queue: job dead-lettered", "job_id", job.ID, "kind", job.Kind, "agent_id", job.AgentID, "error", err)
	} else {
		p.log.Warn("queue: job retrying", "job_id", job.ID, "kind", job.Kind, "attempt", job.Attempt+1, "error", err)
	}
	return true
}

// agentPathForKind maps a job kind to the worker-side route it targets.
func agentPathForKind(k Kind) string {
	switch k {
	case KindDM:
		return "/message"
	case KindEvaluate:
		return "/evaluate"
	default:
		return ""
	}
}

func (p *Pool) dispatch(ctx context.Context, job Job) error {
	path := agentPathForKind(job.Kind)
	if path == "" {
		return fmt.Errorf("queue: unknown job kind %q", job.Kind)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, agentURL(job.AgentID, path), bytes.NewReader(job.Payload))
	if err != nil {
		return fmt.Errorf("queue: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("queue: dispatch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("queue: worker responded %d", resp.StatusCode)
	}
	return nil
}
