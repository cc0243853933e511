package embeddings

import (
	"context"
	"fmt"

	"golang.org/x/sync/semaphore"
)

// Serialized gates a [Provider] so that at most one embedding request runs at
// a time. A caller whose context ends while waiting gets the context error.
type Serialized struct {
	p   Provider
	sem *semaphore.Weighted
}

var _ Provider = (*Serialized)(nil)

// Serialize wraps p behind a weight-1 semaphore.
func Serialize(p Provider) *Serialized {
	return &Serialized{p: p, sem: semaphore.NewWeighted(1)}
}

// Embed implements [Provider].
func (s *Serialized) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("embeddings: wait for provider: %w", err)
	}
	defer s.sem.Release(1)
	return s.p.Embed(ctx, text)
}

// EmbedBatch implements [Provider].
func (s *Serialized) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("embeddings: wait for provider: %w", err)
	}
	defer s.sem.Release(1)
	return s.p.EmbedBatch(ctx, texts)
}

// Dimensions implements [Provider].
func (s *Serialized) Dimensions() int { return s.p.Dimensions() }

// ModelID implements [Provider].
func (s *Serialized) ModelID() string { return s.p.ModelID() }

// Unwrap returns the wrapped provider.
func (s *Serialized) Unwrap() Provider { return s.p }
