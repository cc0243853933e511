package announce

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/MrWong99/pulpit/internal/observe"
	"github.com/MrWong99/pulpit/internal/resolve"
	"github.com/MrWong99/pulpit/internal/stream"
)

// defaultViewerBuffer is the number of messages queued per viewer before new
// ones are dropped for that viewer.
const defaultViewerBuffer = 16

// Hub broadcasts transcription messages to read-only remote viewers. Slow
// viewers lose messages rather than stall the sessions that publish.
//
// Thread-safe for concurrent use.
type Hub struct {
	mu      sync.Mutex
	viewers map[*Viewer]struct{}
	buffer  int
	metrics *observe.Metrics
	dropped atomic.Int64
}

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithViewerBuffer sets the per-viewer queue length.
func WithViewerBuffer(n int) HubOption {
	return func(h *Hub) {
		if n > 0 {
			h.buffer = n
		}
	}
}

// WithHubMetrics tracks connected viewers on the remote viewer gauge.
func WithHubMetrics(m *observe.Metrics) HubOption {
	return func(h *Hub) { h.metrics = m }
}

// NewHub creates an empty Hub.
func NewHub(opts ...HubOption) *Hub {
	h := &Hub{viewers: make(map[*Viewer]struct{}), buffer: defaultViewerBuffer}
	for _, o := range opts {
		o(h)
	}
	return h
}

// Viewer is one subscription to a Hub.
type Viewer struct {
	hub  *Hub
	ch   chan []byte
	once sync.Once
}

// Messages returns the viewer's queue. It is closed by Leave.
func (v *Viewer) Messages() <-chan []byte { return v.ch }

// Leave unsubscribes the viewer. Safe to call more than once.
func (v *Viewer) Leave() {
	v.once.Do(func() {
		h := v.hub
		h.mu.Lock()
		delete(h.viewers, v)
		close(v.ch)
		h.mu.Unlock()
		if h.metrics != nil {
			h.metrics.RemoteViewers.Add(context.Background(), -1)
		}
	})
}

// Join subscribes a new viewer.
func (h *Hub) Join() *Viewer {
	v := &Viewer{hub: h, ch: make(chan []byte, h.buffer)}
	h.mu.Lock()
	h.viewers[v] = struct{}{}
	h.mu.Unlock()
	if h.metrics != nil {
		h.metrics.RemoteViewers.Add(context.Background(), 1)
	}
	return v
}

// Viewers returns the number of connected viewers.
func (h *Hub) Viewers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.viewers)
}

// Dropped returns how many messages were dropped for full viewer queues.
func (h *Hub) Dropped() int64 { return h.dropped.Load() }

// Name implements Sink.
func (h *Hub) Name() string { return "remote" }

// Announce implements Sink by broadcasting the transcription message.
func (h *Hub) Announce(_ context.Context, res resolve.Result) error {
	payload, err := json.Marshal(stream.Message{Result: &res})
	if err != nil {
		return fmt.Errorf("announce: encode message: %w", err)
	}
	h.Broadcast(payload)
	return nil
}

// Broadcast queues payload for every viewer without blocking.
func (h *Hub) Broadcast(payload []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for v := range h.viewers {
		select {
		case v.ch <- payload:
		default:
			h.dropped.Add(1)
		}
	}
}
