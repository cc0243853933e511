package resilience

import (
	"context"

	"github.com/MrWong99/pulpit/pkg/provider/stt"
)

// STTFallback implements [stt.Provider] with automatic failover across multiple
// recognisers, for example a local whisper model backed by a hosted one. Each
// recogniser has its own circuit breaker.
type STTFallback struct {
	group *FallbackGroup[stt.Provider]
}

var _ stt.Provider = (*STTFallback)(nil)

// NewSTTFallback creates an [STTFallback] with primary as the preferred backend.
func NewSTTFallback(primary stt.Provider, primaryName string, cfg FallbackConfig) *STTFallback {
	return &STTFallback{group: NewFallbackGroup(primary, primaryName, cfg)}
}

// AddFallback registers an additional STT provider as a fallback.
func (f *STTFallback) AddFallback(name string, provider stt.Provider) {
	f.group.AddFallback(name, provider)
}

// Transcribe recognises samples with the first healthy provider.
func (f *STTFallback) Transcribe(ctx context.Context, samples []float32) (stt.Transcript, error) {
	return ExecuteWithResult(f.group, func(p stt.Provider) (stt.Transcript, error) {
		return p.Transcribe(ctx, samples)
	})
}

// Healthy reports whether any provider's circuit is not open.
func (f *STTFallback) Healthy() bool { return f.group.Healthy() }

// States returns the breaker state of every provider keyed by name.
func (f *STTFallback) States() map[string]State { return f.group.States() }
