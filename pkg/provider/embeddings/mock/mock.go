// Package mock provides a test double for the embeddings.Provider interface.
//
// Example:
//
//	p := &mock.Provider{EmbedResult: []float32{1, 0, 0}, DimensionsValue: 3}
//	vec, _ := p.Embed(ctx, "love one another")
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/pulpit/pkg/provider/embeddings"
)

// EmbedCall records a single invocation of Embed.
type EmbedCall struct {
	Ctx  context.Context
	Text string
}

// EmbedBatchCall records a single invocation of EmbedBatch.
type EmbedBatchCall struct {
	Ctx   context.Context
	Texts []string
}

// Provider is a mock implementation of embeddings.Provider.
type Provider struct {
	mu sync.Mutex

	// EmbedResult and EmbedErr are returned by Embed when EmbedFunc is nil.
	EmbedResult []float32
	EmbedErr    error

	// EmbedFunc, if set, computes the result of each Embed call.
	EmbedFunc func(ctx context.Context, text string) ([]float32, error)

	// EmbedBatchResult and EmbedBatchErr are returned by EmbedBatch when
	// EmbedBatchFunc is nil. A nil EmbedBatchResult yields one nil vector per
	// input text.
	EmbedBatchResult [][]float32
	EmbedBatchErr    error

	// EmbedBatchFunc, if set, computes the result of each EmbedBatch call.
	EmbedBatchFunc func(ctx context.Context, texts []string) ([][]float32, error)

	DimensionsValue int
	ModelIDValue    string

	EmbedCalls      []EmbedCall
	EmbedBatchCalls []EmbedBatchCall
}

// Embed records the call and returns the configured result.
func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	p.mu.Lock()
	p.EmbedCalls = append(p.EmbedCalls, EmbedCall{Ctx: ctx, Text: text})
	fn, res, err := p.EmbedFunc, p.EmbedResult, p.EmbedErr
	p.mu.Unlock()
	if fn != nil {
		return fn(ctx, text)
	}
	return res, err
}

// EmbedBatch records the call and returns the configured result.
func (p *Provider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	p.mu.Lock()
	cp := make([]string, len(texts))
	copy(cp, texts)
	p.EmbedBatchCalls = append(p.EmbedBatchCalls, EmbedBatchCall{Ctx: ctx, Texts: cp})
	fn, res, err := p.EmbedBatchFunc, p.EmbedBatchResult, p.EmbedBatchErr
	p.mu.Unlock()
	if fn != nil {
		return fn(ctx, texts)
	}
	if err != nil {
		return nil, err
	}
	if res != nil {
		return res, nil
	}
	return make([][]float32, len(texts)), nil
}

// Dimensions returns DimensionsValue.
func (p *Provider) Dimensions() int { return p.DimensionsValue }

// ModelID returns ModelIDValue.
func (p *Provider) ModelID() string { return p.ModelIDValue }

// EmbedCallCount returns the number of Embed calls. Thread-safe.
func (p *Provider) EmbedCallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.EmbedCalls)
}

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.EmbedCalls = nil
	p.EmbedBatchCalls = nil
}

var _ embeddings.Provider = (*Provider)(nil)
