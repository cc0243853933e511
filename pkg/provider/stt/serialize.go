package stt

import (
	"context"
	"fmt"

	"golang.org/x/sync/semaphore"
)

// Serialized wraps a [Provider] so that at most one Transcribe call runs at a
// time across all callers. Waiting callers give up when their context is
// cancelled.
type Serialized struct {
	p   Provider
	sem *semaphore.Weighted
}

var _ Provider = (*Serialized)(nil)

// Serialize returns p gated behind a weight-1 semaphore.
func Serialize(p Provider) *Serialized {
	return &Serialized{p: p, sem: semaphore.NewWeighted(1)}
}

// Transcribe implements [Provider].
func (s *Serialized) Transcribe(ctx context.Context, samples []float32) (Transcript, error) {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return Transcript{}, fmt.Errorf("stt: wait for recogniser: %w", err)
	}
	defer s.sem.Release(1)
	return s.p.Transcribe(ctx, samples)
}

// Unwrap returns the wrapped provider.
func (s *Serialized) Unwrap() Provider { return s.p }
