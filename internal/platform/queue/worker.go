package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Handler processes one job and returns its result string (stored on the
// job record) or an error.
type Handler func(ctx context.Context, job *Job) (result string, err error)

// WorkerPool runs a bounded set of goroutines draining one queue.
type WorkerPool struct {
	queue       *Queue
	handler     Handler
	concurrency int
	logger      zerolog.Logger

	// onComplete / onTerminalFailure fire after the job's terminal state is
	// durably recorded, so observers never see an event ahead of the state.
	onComplete        func(jobID, result string)
	onTerminalFailure func(jobID, reason string)
}

// OnComplete registers a callback for successfully finished jobs.
func (p *WorkerPool) OnComplete(fn func(jobID, result string)) { p.onComplete = fn }

// OnTerminalFailure registers a callback for jobs that exhausted their
// attempts.
func (p *WorkerPool) OnTerminalFailure(fn func(jobID, reason string)) { p.onTerminalFailure = fn }

func NewWorkerPool(q *Queue, concurrency int, handler Handler, logger zerolog.Logger) *WorkerPool {
	if concurrency <= 0 {
		concurrency = 2
	}
	return &WorkerPool{queue: q, handler: handler, concurrency: concurrency, logger: logger}
}

// Run blocks until ctx is canceled, processing jobs with the pool's
// concurrency. Each failed attempt is retried until the job's attempts are
// exhausted.
func (p *WorkerPool) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < p.concurrency; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			p.loop(ctx, worker)
		}(i)
	}
	wg.Wait()
}

func (p *WorkerPool) loop(ctx context.Context, worker int) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		job, err := p.queue.Dequeue(ctx, time.Second)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.logger.Warn().Err(err).Int("worker", worker).Msg("dequeue failed")
			time.Sleep(time.Second)
			continue
		}
		if job == nil {
			continue
		}

		p.process(ctx, worker, job)
	}
}

func (p *WorkerPool) process(ctx context.Context, worker int, job *Job) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error().Int("worker", worker).Str("job_id", job.ID).
				Str("panic", fmt.Sprintf("%v", r)).Msg("job panicked")
			reason := fmt.Sprintf("panic: %v", r)
			retried, ferr := p.queue.Fail(ctx, job, reason)
			if ferr != nil {
				p.logger.Error().Err(ferr).Str("job_id", job.ID).Msg("failed to record job failure")
			}
			if !retried && ferr == nil && p.onTerminalFailure != nil {
				p.onTerminalFailure(job.ID, reason)
			}
		}
	}()

	result, err := p.handler(ctx, job)
	if err != nil {
		retried, ferr := p.queue.Fail(ctx, job, err.Error())
		if ferr != nil {
			p.logger.Error().Err(ferr).Str("job_id", job.ID).Msg("failed to record job failure")
		}
		p.logger.Warn().Err(err).Str("job_id", job.ID).Bool("retried", retried).Msg("job attempt failed")
		if !retried && ferr == nil && p.onTerminalFailure != nil {
			p.onTerminalFailure(job.ID, err.Error())
		}
		return
	}

	// The callback only fires once the terminal state is durably recorded;
	// a failed write leaves the job recoverable in the processing list.
	if err := p.queue.Complete(ctx, job, result); err != nil {
		p.logger.Error().Err(err).Str("job_id", job.ID).Msg("failed to record job completion")
		return
	}
	if p.onComplete != nil {
		p.onComplete(job.ID, result)
	}
}
