package semantic

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/MrWong99/pulpit/internal/observe"
	"github.com/MrWong99/pulpit/pkg/bible"
	"github.com/MrWong99/pulpit/pkg/provider/embeddings"
)

// Default query parameters.
const (
	DefaultTopK      = 3
	DefaultThreshold = 0.5
)

// Backend scores a unit-length query vector against the verse embedding
// space. *Index and the Postgres store implement it.
type Backend interface {
	// Nearest returns at most k verses ordered by descending cosine
	// similarity to query.
	Nearest(ctx context.Context, query []float32, k int) ([]bible.ScoredVerse, error)
}

// Matcher embeds text and finds the closest verses. The backend may be
// replaced at runtime (after an index rebuild) with [Matcher.SetBackend].
type Matcher struct {
	embedder embeddings.Provider
	metrics  *observe.Metrics

	mu      sync.RWMutex
	backend Backend
}

// MatcherOption configures a Matcher.
type MatcherOption func(*Matcher)

// WithMetrics records embedding latency and match counts on m.
func WithMetrics(m *observe.Metrics) MatcherOption {
	return func(mt *Matcher) { mt.metrics = m }
}

// NewMatcher creates a Matcher. backend may be nil until an index is
// available; Match then returns [ErrNoIndex].
func NewMatcher(embedder embeddings.Provider, backend Backend, opts ...MatcherOption) *Matcher {
	m := &Matcher{embedder: embedder, backend: backend}
	for _, o := range opts {
		o(m)
	}
	return m
}

// SetBackend atomically replaces the backend used by subsequent calls.
func (m *Matcher) SetBackend(b Backend) {
	m.mu.Lock()
	m.backend = b
	m.mu.Unlock()
}

// Ready reports whether a backend and an embedder are configured.
func (m *Matcher) Ready() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.backend != nil && m.embedder != nil
}

// Match embeds text and returns the topK most similar verses whose score is
// at least threshold, best first. Blank text returns no matches without
// calling the embedder.
func (m *Matcher) Match(ctx context.Context, text string, topK int, threshold float64) ([]bible.ScoredVerse, error) {
	text = strings.TrimSpace(text)
	if text == "" || topK <= 0 {
		return nil, nil
	}
	m.mu.RLock()
	backend := m.backend
	m.mu.RUnlock()
	if backend == nil || m.embedder == nil {
		return nil, ErrNoIndex
	}

	ctx, span := observe.StartSpan(ctx, "semantic.match")
	defer span.End()

	start := time.Now()
	vec, err := m.embedder.Embed(ctx, text)
	if m.metrics != nil {
		observe.Since(ctx, m.metrics.EmbeddingDuration, start)
	}
	if err != nil {
		if m.metrics != nil {
			m.metrics.RecordProviderError(ctx, m.embedder.ModelID(), "embeddings")
		}
		return nil, fmt.Errorf("semantic: embed query: %w", err)
	}
	if !normalize(vec) {
		return nil, nil
	}

	hits, err := backend.Nearest(ctx, vec, topK)
	if err != nil {
		return nil, fmt.Errorf("semantic: nearest: %w", err)
	}
	out := hits[:0:0]
	for _, h := range hits {
		if h.Score >= threshold {
			out = append(out, h)
		}
	}
	if m.metrics != nil && len(out) > 0 {
		m.metrics.SemanticMatches.Add(ctx, int64(len(out)))
	}
	return out, nil
}
