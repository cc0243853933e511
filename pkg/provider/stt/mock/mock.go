// Package mock provides a test double for the stt.Provider interface.
//
// Use Provider to return canned transcripts without a live recogniser and to
// verify how many samples each window carried.
//
// Example:
//
//	p := &mock.Provider{Result: stt.Transcript{Text: "John 3:16"}}
//	t, _ := p.Transcribe(ctx, samples)
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/pulpit/pkg/provider/stt"
)

// TranscribeCall records a single invocation of Provider.Transcribe.
type TranscribeCall struct {
	// Ctx is the context passed to Transcribe.
	Ctx context.Context
	// Samples is a copy of the samples passed to Transcribe.
	Samples []float32
}

// Provider is a mock implementation of stt.Provider.
type Provider struct {
	mu sync.Mutex

	// Result is returned by Transcribe when TranscribeFunc is nil.
	Result stt.Transcript

	// Err, if non-nil, is returned as the error from Transcribe.
	Err error

	// TranscribeFunc, if set, computes the result for each call. It takes
	// precedence over Result and Err.
	TranscribeFunc func(ctx context.Context, samples []float32) (stt.Transcript, error)

	// Calls records every call to Transcribe in order.
	Calls []TranscribeCall
}

// Transcribe records the call and returns the configured result.
func (p *Provider) Transcribe(ctx context.Context, samples []float32) (stt.Transcript, error) {
	p.mu.Lock()
	cp := make([]float32, len(samples))
	copy(cp, samples)
	p.Calls = append(p.Calls, TranscribeCall{Ctx: ctx, Samples: cp})
	fn, result, err := p.TranscribeFunc, p.Result, p.Err
	p.mu.Unlock()

	if fn != nil {
		return fn(ctx, samples)
	}
	return result, err
}

// CallCount returns the number of Transcribe calls. Thread-safe.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Calls)
}

// SampleCounts returns the number of samples passed to each call, in order.
func (p *Provider) SampleCounts() []int {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]int, len(p.Calls))
	for i, c := range p.Calls {
		out[i] = len(c.Samples)
	}
	return out
}

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Calls = nil
}

// Ensure Provider implements stt.Provider at compile time.
var _ stt.Provider = (*Provider)(nil)
