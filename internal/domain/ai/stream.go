package ai

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/medibrief/medibrief/internal/platform/queue"
)

const (
	streamHeartbeatEvery = 15 * time.Second
	streamMaxDuration    = 2 * time.Minute
)

// StreamJob pushes job lifecycle events to the client as server-sent
// events. The subscription is registered before the current state is read,
// so a completion landing between the two is never lost; at most the client
// sees the terminal event twice.
func (h *Handler) StreamJob(c echo.Context) error {
	jobID := c.Param("jobId")

	ctx := c.Request().Context()

	events, cancel, err := h.svc.bus.Subscribe(ctx, jobID)
	if err != nil {
		return err
	}
	defer cancel()

	st, err := h.svc.JobStatus(ctx, jobID)
	if err != nil {
		return err
	}

	resp := c.Response()
	resp.Header().Set(echo.HeaderContentType, "text/event-stream")
	resp.Header().Set("Cache-Control", "no-cache")
	resp.Header().Set("Connection", "keep-alive")
	resp.Header().Set("X-Accel-Buffering", "no")
	resp.WriteHeader(http.StatusOK)

	send := func(v any) error {
		payload, err := json.Marshal(v)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(resp, "data: %s\n\n", payload); err != nil {
			return err
		}
		resp.Flush()
		return nil
	}

	if err := send(st); err != nil {
		return nil
	}
	if st.State == string(queue.StateCompleted) || st.State == string(queue.StateFailed) {
		return nil
	}

	heartbeat := time.NewTicker(streamHeartbeatEvery)
	defer heartbeat.Stop()
	deadline := time.NewTimer(streamMaxDuration)
	defer deadline.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-deadline.C:
			_ = send(&JobStatusResponse{State: "timeout"})
			return nil
		case <-heartbeat.C:
			if _, err := fmt.Fprint(resp, ": heartbeat\n\n"); err != nil {
				return nil
			}
			resp.Flush()
		case evt, ok := <-events:
			if !ok {
				return nil
			}
			update := &JobStatusResponse{
				State:        evt.State,
				SummaryID:    evt.SummaryID,
				FailedReason: evt.FailedReason,
			}
			if err := send(update); err != nil {
				return nil
			}
			if evt.State == string(queue.StateCompleted) || evt.State == string(queue.StateFailed) {
				return nil
			}
		}
	}
}
