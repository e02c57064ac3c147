// Package queue implements the Delivery Queue Adapter (C4): a durable
// enqueue for worker-directed calls that must tolerate the worker being
// briefly unavailable. Durability is provided by the Durable Store's
// delivery_jobs table rather than an external broker, so the orchestrator
// does not need a second queueing dependency alongside Postgres and Redis.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Kind string

const (
	KindDM       Kind = "dm"
	KindEvaluate Kind = "evaluate"
)

const (
	// maxAttempts is total executions, not retries: 1 initial attempt plus
	// 3 retries (backoffs 5s, 10s, 20s) before dead-lettering.
	maxAttempts    = 4
	retryBaseDelay = 5 * time.Second
	retryMaxDelay  = 60 * time.Second
)

// DMPayload is the body of a KindDM job: {agent_id, message: {...}}.
type DMPayload struct {
	AgentID uuid.UUID       `json:"agent_id"`
	Message json.RawMessage `json:"message"`
}

// EvaluatePayload is the body of a KindEvaluate job:
// {agent_id, channel_id, message_content, message_id, sender_user_identifier, is_dm}.
type EvaluatePayload struct {
	AgentID              uuid.UUID `json:"agent_id"`
	ChannelID            uuid.UUID `json:"channel_id"`
	MessageContent       string    `json:"message_content"`
	MessageID            uuid.UUID `json:"message_id"`
	SenderUserIdentifier string    `json:"sender_user_identifier,omitempty"`
	IsDM                 bool      `json:"is_dm"`
}

// Job is one durable delivery-queue row.
type Job struct {
	ID          uuid.UUID
	Kind        Kind
	AgentID     uuid.UUID
	Payload     json.RawMessage
	Attempt     int
	MaxAttempts int
}

// Queue is the Delivery Queue Adapter. It shares the Durable Store's
// pgxpool rather than opening a second pool, since delivery_jobs lives in
// the same database.
type Queue struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Queue {
	return &Queue{pool: pool}
}

// DeliverDM enqueues a job that POSTs to the worker's evaluate endpoint
// with is_dm=true.
func (q *Queue) DeliverDM(ctx context.Context, agentID uuid.UUID, message json.RawMessage) error {
	payload, err := json.Marshal(DMPayload{AgentID: agentID, Message: message})
	if err != nil {
		return fmt.Errorf("queue: marshal dm payload: %w", err)
	}
	return q.enqueue(ctx, KindDM, agentID, payload)
}

// EvaluateChannelMessage enqueues a relevance-evaluation job.
func (q *Queue) EvaluateChannelMessage(ctx context.Context, p EvaluatePayload) error {
	payload, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("queue: marshal evaluate payload: %w", err)
	}
	return q.enqueue(ctx, KindEvaluate, p.AgentID, payload)
}

func (q *Queue) enqueue(ctx context.Context, kind Kind, agentID uuid.UUID, payload json.RawMessage) error {
	_, err := q.pool.Exec(ctx, `
		INSERT INTO delivery_jobs (id, kind, agent_id, payload, max_attempts)
		VALUES ($1,$2,$3,$4,$5)`,
		uuid.New(), kind, agentID, payload, maxAttempts)
	if err != nil {
		return fmt.Errorf("queue: enqueue: %w", err)
	}
	return nil
}

// Claim atomically claims up to one job available now, using SELECT ... FOR
// UPDATE SKIP LOCKED so multiple worker goroutines never claim the same
// row twice.
func (q *Queue) Claim(ctx context.Context) (*Job, error) {
	tx, err := q.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("queue: claim: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		SELECT id, kind, agent_id, payload, attempt, max_attempts
		FROM delivery_jobs
		WHERE status IN ('queued','retry_wait') AND available_at <= now()
		ORDER BY available_at ASC
		FOR UPDATE SKIP LOCKED
		LIMIT 1`)

	var j Job
	if err := row.Scan(&j.ID, &j.Kind, &j.AgentID, &j.Payload, &j.Attempt, &j.MaxAttempts); err != nil {
		if err.Error() == "no rows in result set" {
			return nil, nil
		}
		return nil, fmt.Errorf("queue: claim: scan: %w", err)
	}

	if _, err := tx.Exec(ctx, `UPDATE delivery_jobs SET status='claimed', updated_at=now() WHERE id=$1`, j.ID); err != nil {
		return nil, fmt.Errorf("queue: claim: mark claimed: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("queue: claim: commit: %w", err)
	}
	return &j, nil
}

// Succeed marks a job done.
func (q *Queue) Succeed(ctx context.Context, id uuid.UUID) error {
	_, err := q.pool.Exec(ctx, `UPDATE delivery_jobs SET status='succeeded', updated_at=now() WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("queue: succeed: %w", err)
	}
	return nil
}

// Fail applies the retry/backoff/dead-letter decision for a claimed job
// that failed: exponential backoff (base 5s, doubling, cap 60s) with
// deterministic hash-derived jitter so retries stay reproducible in
// tests, and a hard cap of maxAttempts before the job is dead-lettered. A
// dead-lettered job is logged by the caller and never surfaces as a
// failure to whoever originally triggered the enqueue.
func (q *Queue) Fail(ctx context.Context, j Job, errMsg string) (deadLettered bool, err error) {
	nextAttempt := j.Attempt + 1
	if nextAttempt >= j.MaxAttempts {
		_, execErr := q.pool.Exec(ctx, `
			UPDATE delivery_jobs SET status='dead_letter', attempt=$2, last_error=$3, updated_at=now()
			WHERE id=$1`, j.ID, nextAttempt, errMsg)
		if execErr != nil {
			return false, fmt.Errorf("queue: dead-letter: %w", execErr)
		}
		return true, nil
	}

	delay := retryDelay(j.ID.String(), nextAttempt)
	_, execErr := q.pool.Exec(ctx, `
		UPDATE delivery_jobs SET status='retry_wait', attempt=$2, last_error=$3,
			available_at = now() + $4::interval, updated_at=now()
		WHERE id=$1`, j.ID, nextAttempt, errMsg, fmt.Sprintf("%d milliseconds", delay.Milliseconds()))
	if execErr != nil {
		return false, fmt.Errorf("queue: retry: %w", execErr)
	}
	return false, nil
}
