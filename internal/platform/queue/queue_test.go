package queue

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	"github.com/medibrief/medibrief/internal/platform/httperr"
)

type testPayload struct {
	N int `json:"n"`
}

func testQueue(t *testing.T, opts Options) *Queue {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return New(client, "test", opts)
}

func TestEnqueueDequeue(t *testing.T) {
	q := testQueue(t, Options{})
	ctx := context.Background()

	id, err := q.Enqueue(ctx, testPayload{N: 7})
	if err != nil {
		t.Fatal(err)
	}

	st, err := q.Status(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if st.State != StateQueued {
		t.Errorf("state = %v, want queued", st.State)
	}
	var sp testPayload
	if err := json.Unmarshal(st.Payload, &sp); err != nil || sp.N != 7 {
		t.Errorf("status payload = %s", st.Payload)
	}

	job, err := q.Dequeue(ctx, 100*time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	if job == nil || job.ID != id {
		t.Fatalf("job = %+v, want id %s", job, id)
	}
	var p testPayload
	if err := json.Unmarshal(job.Payload, &p); err != nil || p.N != 7 {
		t.Errorf("payload = %s", job.Payload)
	}

	st, _ = q.Status(ctx, id)
	if st.State != StateActive {
		t.Errorf("state after dequeue = %v, want active", st.State)
	}
}

func TestDequeueEmpty(t *testing.T) {
	q := testQueue(t, Options{})
	job, err := q.Dequeue(context.Background(), 50*time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	if job != nil {
		t.Errorf("job = %+v, want nil on empty queue", job)
	}
}

func TestCompleteRecordsResult(t *testing.T) {
	q := testQueue(t, Options{})
	ctx := context.Background()

	id, _ := q.Enqueue(ctx, testPayload{N: 1})
	job, _ := q.Dequeue(ctx, 100*time.Millisecond)

	if err := q.Complete(ctx, job, "summary-42"); err != nil {
		t.Fatal(err)
	}

	st, err := q.Status(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if st.State != StateCompleted || st.Result != "summary-42" {
		t.Errorf("status = %+v", st)
	}
}

func TestFailRetriesThenExhausts(t *testing.T) {
	q := testQueue(t, Options{Attempts: 2})
	ctx := context.Background()

	id, _ := q.Enqueue(ctx, testPayload{N: 1})

	// First attempt fails with one attempt left; the job requeues.
	job, _ := q.Dequeue(ctx, 100*time.Millisecond)
	retried, err := q.Fail(ctx, job, "boom")
	if err != nil {
		t.Fatal(err)
	}
	if !retried {
		t.Fatal("first failure must requeue")
	}
	st, _ := q.Status(ctx, id)
	if st.State != StateQueued {
		t.Errorf("state after retryable failure = %v, want queued", st.State)
	}

	// Second attempt exhausts the budget.
	job, _ = q.Dequeue(ctx, 100*time.Millisecond)
	if job == nil {
		t.Fatal("retried job must be dequeueable")
	}
	retried, err = q.Fail(ctx, job, "boom again")
	if err != nil {
		t.Fatal(err)
	}
	if retried {
		t.Fatal("exhausted job must not requeue")
	}
	st, _ = q.Status(ctx, id)
	if st.State != StateFailed || st.FailedReason != "boom again" {
		t.Errorf("terminal status = %+v", st)
	}
}

func TestStatusUnknownJob(t *testing.T) {
	q := testQueue(t, Options{})
	_, err := q.Status(context.Background(), "no-such-job")
	if httperr.KindOf(err) != httperr.KindNotFound {
		t.Errorf("kind = %v, want not-found", httperr.KindOf(err))
	}
}

func TestStateTerminal(t *testing.T) {
	if StateQueued.Terminal() || StateActive.Terminal() {
		t.Error("queued/active must not be terminal")
	}
	if !StateCompleted.Terminal() || !StateFailed.Terminal() {
		t.Error("completed/failed must be terminal")
	}
}
