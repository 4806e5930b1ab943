package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/medibrief/medibrief/internal/platform/httperr"
)

// State is the lifecycle state of a queued job.
type State string

const (
	StateQueued    State = "queued"
	StateActive    State = "active"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

// Terminal reports whether the state is final.
func (s State) Terminal() bool { return s == StateCompleted || s == StateFailed }

// Job is a dequeued unit of work.
type Job struct {
	ID           string
	Payload      json.RawMessage
	AttemptsLeft int
}

// Status is the externally visible state of a job.
type Status struct {
	State        State  `json:"state"`
	Result       string `json:"result,omitempty"`
	FailedReason string `json:"failedReason,omitempty"`
	// Payload is the stored job payload, so callers can run ownership
	// checks against it. Never serialized.
	Payload json.RawMessage `json:"-"`
}

// Options configure a Queue.
type Options struct {
	// Attempts is the total number of tries a job gets before it is
	// terminally failed.
	Attempts int
	// CompletedKeep / FailedKeep bound the terminal-job history lists.
	CompletedKeep int64
	FailedKeep    int64
	// EnqueueTimeout bounds how long Enqueue may block before the queue is
	// reported unavailable.
	EnqueueTimeout time.Duration
	// JobTTL bounds how long per-job state hashes are retained.
	JobTTL time.Duration
}

func defaultOptions() Options {
	return Options{
		Attempts:       2,
		CompletedKeep:  500,
		FailedKeep:     1000,
		EnqueueTimeout: 2500 * time.Millisecond,
		JobTTL:         24 * time.Hour,
	}
}

// Queue is a durable at-least-once job queue over Redis lists. Pending job
// ids live in a list; each job's payload and state live in a hash. Workers
// move ids to a processing list while running, so a crashed worker leaves
// the id recoverable rather than lost.
type Queue struct {
	client *goredis.Client
	name   string
	opts   Options
}

func New(client *goredis.Client, name string, opts Options) *Queue {
	def := defaultOptions()
	if opts.Attempts <= 0 {
		opts.Attempts = def.Attempts
	}
	if opts.CompletedKeep <= 0 {
		opts.CompletedKeep = def.CompletedKeep
	}
	if opts.FailedKeep <= 0 {
		opts.FailedKeep = def.FailedKeep
	}
	if opts.EnqueueTimeout <= 0 {
		opts.EnqueueTimeout = def.EnqueueTimeout
	}
	if opts.JobTTL <= 0 {
		opts.JobTTL = def.JobTTL
	}
	return &Queue{client: client, name: name, opts: opts}
}

func (q *Queue) pendingKey() string    { return "queue:" + q.name + ":pending" }
func (q *Queue) processingKey() string { return "queue:" + q.name + ":processing" }
func (q *Queue) completedKey() string  { return "queue:" + q.name + ":completed" }
func (q *Queue) failedKey() string     { return "queue:" + q.name + ":failed" }
func (q *Queue) jobKey(id string) string {
	return "queue:" + q.name + ":job:" + id
}

// Enqueue persists the payload and pushes a new job id onto the pending
// list. It fails with an unavailable error when the broker does not answer
// within the enqueue timeout.
func (q *Queue) Enqueue(ctx context.Context, payload any) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal job payload: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, q.opts.EnqueueTimeout)
	defer cancel()

	jobID := uuid.New().String()
	pipe := q.client.TxPipeline()
	pipe.HSet(ctx, q.jobKey(jobID), map[string]any{
		"payload":       string(raw),
		"state":         string(StateQueued),
		"attempts_left": q.opts.Attempts,
		"created_at":    time.Now().UTC().Format(time.RFC3339Nano),
	})
	pipe.Expire(ctx, q.jobKey(jobID), q.opts.JobTTL)
	pipe.LPush(ctx, q.pendingKey(), jobID)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", httperr.Wrap(httperr.KindUnavailable, "job queue unavailable", err)
	}
	return jobID, nil
}

// Dequeue blocks up to timeout for a pending job, atomically moving its id
// to the processing list. Returns nil when no job arrived.
func (q *Queue) Dequeue(ctx context.Context, timeout time.Duration) (*Job, error) {
	id, err := q.client.BRPopLPush(ctx, q.pendingKey(), q.processingKey(), timeout).Result()
	if err == goredis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("dequeue: %w", err)
	}

	fields, err := q.client.HGetAll(ctx, q.jobKey(id)).Result()
	if err != nil || len(fields) == 0 {
		// Job hash expired or lost; drop the orphan id.
		q.client.LRem(ctx, q.processingKey(), 1, id)
		return nil, nil
	}

	attemptsLeft := 0
	fmt.Sscanf(fields["attempts_left"], "%d", &attemptsLeft)

	pipe := q.client.TxPipeline()
	pipe.HSet(ctx, q.jobKey(id), "state", string(StateActive), "attempts_left", attemptsLeft-1)
	pipe.Exec(ctx)

	return &Job{ID: id, Payload: json.RawMessage(fields["payload"]), AttemptsLeft: attemptsLeft - 1}, nil
}

// Complete marks the job terminally succeeded, recording its result.
func (q *Queue) Complete(ctx context.Context, job *Job, result string) error {
	pipe := q.client.TxPipeline()
	pipe.HSet(ctx, q.jobKey(job.ID), "state", string(StateCompleted), "result", result)
	pipe.LRem(ctx, q.processingKey(), 1, job.ID)
	pipe.LPush(ctx, q.completedKey(), job.ID)
	pipe.LTrim(ctx, q.completedKey(), 0, q.opts.CompletedKeep-1)
	_, err := pipe.Exec(ctx)
	return err
}

// Fail records a failed attempt. Jobs with attempts remaining are requeued;
// exhausted jobs become terminally failed with the given reason.
func (q *Queue) Fail(ctx context.Context, job *Job, reason string) (retried bool, err error) {
	if job.AttemptsLeft > 0 {
		pipe := q.client.TxPipeline()
		pipe.HSet(ctx, q.jobKey(job.ID), "state", string(StateQueued), "failed_reason", reason)
		pipe.LRem(ctx, q.processingKey(), 1, job.ID)
		pipe.LPush(ctx, q.pendingKey(), job.ID)
		_, err = pipe.Exec(ctx)
		return true, err
	}

	pipe := q.client.TxPipeline()
	pipe.HSet(ctx, q.jobKey(job.ID), "state", string(StateFailed), "failed_reason", reason)
	pipe.LRem(ctx, q.processingKey(), 1, job.ID)
	pipe.LPush(ctx, q.failedKey(), job.ID)
	pipe.LTrim(ctx, q.failedKey(), 0, q.opts.FailedKeep-1)
	_, err = pipe.Exec(ctx)
	return false, err
}

// Status returns the current state of a job, or a not-found error when the
// job is unknown (or its record has aged out).
func (q *Queue) Status(ctx context.Context, jobID string) (*Status, error) {
	fields, err := q.client.HGetAll(ctx, q.jobKey(jobID)).Result()
	if err != nil {
		return nil, fmt.Errorf("job status: %w", err)
	}
	if len(fields) == 0 {
		return nil, httperr.New(httperr.KindNotFound, "job not found")
	}
	st := &Status{
		State:   State(fields["state"]),
		Result:  fields["result"],
		Payload: json.RawMessage(fields["payload"]),
	}
	if st.State == StateFailed {
		st.FailedReason = fields["failed_reason"]
	}
	return st, nil
}
