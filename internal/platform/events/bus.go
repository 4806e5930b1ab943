package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// JobEvent is one notification on a job's lifecycle channel. At most one
// terminal event (completed or failed) is published per lifecycle;
// subscribers must treat duplicates as idempotent.
type JobEvent struct {
	JobID        string  `json:"jobId"`
	State        string  `json:"state"`
	SummaryID    *string `json:"summaryId"`
	FailedReason *string `json:"failedReason"`
}

// Bus publishes and subscribes job lifecycle events over Redis pub/sub,
// one channel per job id.
type Bus struct {
	client *goredis.Client
	logger zerolog.Logger
}

func NewBus(client *goredis.Client, logger zerolog.Logger) *Bus {
	return &Bus{client: client, logger: logger}
}

func channelFor(jobID string) string { return "ai:jobs:" + jobID }

// Publish sends an event on the job's channel. Publish failures are logged
// and swallowed: the terminal-state check on stream connect recovers any
// missed completion.
func (b *Bus) Publish(ctx context.Context, evt JobEvent) {
	payload, err := json.Marshal(evt)
	if err != nil {
		b.logger.Warn().Err(err).Str("job_id", evt.JobID).Msg("marshal job event")
		return
	}
	if err := b.client.Publish(ctx, channelFor(evt.JobID), payload).Err(); err != nil {
		b.logger.Warn().Err(err).Str("job_id", evt.JobID).Msg("publish job event")
	}
}

// Subscribe returns a channel of events for the job and a cancel function.
// Cancel is idempotent; the event channel closes once the subscription
// tears down.
func (b *Bus) Subscribe(ctx context.Context, jobID string) (<-chan JobEvent, func(), error) {
	sub := b.client.Subscribe(ctx, channelFor(jobID))
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, nil, fmt.Errorf("subscribe job channel: %w", err)
	}

	out := make(chan JobEvent, 8)
	done := make(chan struct{})

	go func() {
		defer close(out)
		ch := sub.Channel()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var evt JobEvent
				if err := json.Unmarshal([]byte(msg.Payload), &evt); err != nil {
					b.logger.Warn().Err(err).Str("job_id", jobID).Msg("unmarshal job event")
					continue
				}
				select {
				case out <- evt:
				case <-done:
					return
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(done)
			_ = sub.Close()
		})
	}
	return out, cancel, nil
}
