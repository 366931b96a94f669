package pipeline

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// ProgressEvent is one progress update emitted while a run executes. Events
// stream to the WebSocket hub and into logs.
type ProgressEvent struct {
	RunID   string    `json:"run_id"`
	StageID string    `json:"stage_id"`
	Stage   string    `json:"stage"`
	Status  string    `json:"status"`
	Message string    `json:"message,omitempty"`
	At      time.Time `json:"at"`
}

// Broadcaster receives progress events. Implementations must not block; the
// runner calls Publish inline between stages.
type Broadcaster interface {
	Publish(event ProgressEvent)
}

// NopBroadcaster discards events
type NopBroadcaster struct{}

func (NopBroadcaster) Publish(ProgressEvent) {}

// BroadcasterFunc adapts a function to the Broadcaster interface
type BroadcasterFunc func(event ProgressEvent)

func (f BroadcasterFunc) Publish(event ProgressEvent) { f(event) }

// HTTPBroadcaster posts progress events to a results server, which relays
// them to its WebSocket clients. Delivery is best effort: a run must not
// fail because the server is down, so errors are logged and dropped.
type HTTPBroadcaster struct {
	url    string
	client *http.Client
	logger *slog.Logger
}

// NewHTTPBroadcaster builds a broadcaster targeting the results server at
// baseURL (for example "http://localhost:8080").
func NewHTTPBroadcaster(baseURL string, logger *slog.Logger) *HTTPBroadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPBroadcaster{
		url:    strings.TrimRight(baseURL, "/") + "/internal/progress",
		client: &http.Client{Timeout: 5 * time.Second},
		logger: logger,
	}
}

func (b *HTTPBroadcaster) Publish(event ProgressEvent) {
	body, err := json.Marshal(event)
	if err != nil {
		b.logger.Warn("failed to encode progress event",
			slog.String("run_id", event.RunID),
			slog.String("error", err.Error()))
		return
	}

	resp, err := b.client.Post(b.url, "application/json", bytes.NewReader(body))
	if err != nil {
		b.logger.Warn("failed to post progress event",
			slog.String("run_id", event.RunID),
			slog.String("stage", event.StageID),
			slog.String("error", err.Error()))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		b.logger.Warn("progress event rejected",
			slog.String("run_id", event.RunID),
			slog.String("stage", event.StageID),
			slog.Int("status", resp.StatusCode))
	}
}
