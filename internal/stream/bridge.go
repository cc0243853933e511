package stream

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/MrWong99/pulpit/internal/observe"
	"github.com/MrWong99/pulpit/internal/transcript"
	"github.com/MrWong99/pulpit/pkg/provider/stt"
)

// Bridge feeds a Window to a speech recogniser. It is owned by one session
// and is not safe for concurrent use; the recogniser itself is shared.
type Bridge struct {
	win     *Window
	stt     stt.Provider
	cleaner *transcript.Cleaner
	metrics *observe.Metrics
	paused  bool
}

// BridgeOption configures a Bridge.
type BridgeOption func(*Bridge)

// WithCleaner replaces the default transcript cleaner.
func WithCleaner(c *transcript.Cleaner) BridgeOption {
	return func(b *Bridge) { b.cleaner = c }
}

// WithBridgeMetrics records trigger counts and transcription latency.
func WithBridgeMetrics(m *observe.Metrics) BridgeOption {
	return func(b *Bridge) { b.metrics = m }
}

// NewBridge creates a Bridge over win using the recogniser p.
func NewBridge(p stt.Provider, win *Window, opts ...BridgeOption) *Bridge {
	b := &Bridge{win: win, stt: p, cleaner: transcript.NewCleaner()}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Window returns the underlying buffer.
func (b *Bridge) Window() *Window { return b.win }

// Pause stops transcription; audio keeps arriving but is trimmed.
func (b *Bridge) Pause() { b.paused = true }

// Resume re-enables transcription.
func (b *Bridge) Resume() { b.paused = false }

// Paused reports whether transcription is paused.
func (b *Bridge) Paused() bool { return b.paused }

// Ingest buffers a PCM chunk. When the window fills, the whole buffer is
// transcribed and triggered is true; text is the cleaned transcript, empty
// when nothing usable was recognised. A recogniser error is returned with
// triggered set, and the buffer keeps its overlap as after a success.
func (b *Bridge) Ingest(ctx context.Context, pcm []byte) (text string, triggered bool, err error) {
	b.win.Append(pcm)
	if b.paused {
		b.win.TrimPaused()
		return "", false, nil
	}
	if !b.win.Ready() {
		return "", false, nil
	}
	text, err = b.transcribe(ctx, b.win.Take(), "threshold")
	return text, true, err
}

// Flush transcribes whatever is buffered, regardless of the window size, and
// resets the buffer without keeping an overlap. An empty buffer is a no-op.
func (b *Bridge) Flush(ctx context.Context) (text string, triggered bool, err error) {
	samples := b.win.Drain()
	if len(samples) == 0 {
		return "", false, nil
	}
	text, err = b.transcribe(ctx, samples, "flush")
	return text, true, err
}

func (b *Bridge) transcribe(ctx context.Context, samples []float32, reason string) (string, error) {
	ctx, span := observe.StartSpan(ctx, "stream.transcribe", trace.WithAttributes(
		observe.AttrTrigger.String(reason),
		observe.AttrWindowSamples.Int(len(samples)),
	))
	defer span.End()

	start := time.Now()
	tr, err := b.stt.Transcribe(ctx, samples)
	if b.metrics != nil {
		b.metrics.RecordWindowTrigger(ctx, reason)
		observe.Since(ctx, b.metrics.TranscriptionDuration, start)
		status := "ok"
		if err != nil {
			status = "error"
			b.metrics.RecordProviderError(ctx, "stt", "stt")
		}
		b.metrics.RecordProviderRequest(ctx, "stt", "stt", status)
	}
	if err != nil {
		return "", fmt.Errorf("stream: transcribe %d samples: %w", len(samples), err)
	}
	text, ok := b.cleaner.Clean(tr.Text)
	if !ok {
		return "", nil
	}
	return text, nil
}
