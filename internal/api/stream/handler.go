// Package stream serves real-time events over Server-Sent Events for
// clients that cannot hold a WebSocket.
package stream

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/good-yellow-bee/vitalguard/internal/api/response"
	"github.com/good-yellow-bee/vitalguard/internal/realtime"
)

// Stream event names that do not come from the hub.
const (
	EventReady     = "ready"
	EventHeartbeat = "heartbeat"
	EventClose     = "close"
)

// Subscriber hands out hub subscriptions.
type Subscriber interface {
	Subscribe(rooms ...string) *realtime.Subscription
}

// Config tunes stream lifetime.
type Config struct {
	Heartbeat   time.Duration
	MaxDuration time.Duration
	RetryMillis int
}

// Handler serves the SSE endpoint.
type Handler struct {
	hub    Subscriber
	cfg    Config
	logger *zap.Logger
}

// NewHandler creates a stream handler. Zero config values default to a 15s
// heartbeat and a 30 minute stream.
func NewHandler(hub Subscriber, cfg Config, logger *zap.Logger) *Handler {
	if cfg.Heartbeat <= 0 {
		cfg.Heartbeat = 15 * time.Second
	}
	if cfg.MaxDuration <= 0 {
		cfg.MaxDuration = 30 * time.Minute
	}
	if cfg.RetryMillis <= 0 {
		cfg.RetryMillis = 3000
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{hub: hub, cfg: cfg, logger: logger}
}

// Stream subscribes the client to the global room plus the rooms named by
// the device and user query parameters and relays events until the client
// leaves, the hub shuts down or the stream times out.
func (h *Handler) Stream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		response.JSONError(w, &response.Error{
			Code:    response.ErrCodeInternalError,
			Message: "streaming not supported",
			Status:  http.StatusInternalServerError,
		})
		return
	}

	rooms := realtime.RoomsFromQuery(r)
	sub := h.hub.Subscribe(rooms...)
	defer sub.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	sse := newEventWriter(w, flusher)
	if err := sse.retry(h.cfg.RetryMillis); err != nil {
		return
	}
	ready, _ := json.Marshal(map[string]any{"rooms": rooms})
	if err := sse.send(EventReady, ready); err != nil {
		return
	}

	ctx := r.Context()
	heartbeat := time.NewTicker(h.cfg.Heartbeat)
	defer heartbeat.Stop()
	deadline := time.NewTimer(h.cfg.MaxDuration)
	defer deadline.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case frame, ok := <-sub.C():
			if !ok {
				sse.send(EventClose, []byte(`{"reason":"shutdown"}`))
				return
			}
			if err := sse.send(frame.Event, frame.Payload); err != nil {
				h.logger.Debug("sse write failed", zap.Error(err))
				return
			}

		case now := <-heartbeat.C:
			if err := sse.send(EventHeartbeat, []byte(`{"timestamp":"`+now.UTC().Format(time.RFC3339)+`"}`)); err != nil {
				return
			}

		case <-deadline.C:
			sse.send(EventClose, []byte(`{"reason":"timeout"}`))
			return
		}
	}
}
