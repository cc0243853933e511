// Package resolve turns transcript text into Scripture matches: explicit
// references found by the parser, paraphrases matched semantically, and the
// fused verse list.
package resolve

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/MrWong99/pulpit/internal/fusion"
	"github.com/MrWong99/pulpit/internal/observe"
	"github.com/MrWong99/pulpit/internal/scripture"
	"github.com/MrWong99/pulpit/internal/semantic"
	"github.com/MrWong99/pulpit/pkg/bible"
)

// Config holds the tunables of a Resolver. It can be replaced at runtime.
type Config struct {
	// TopK is the number of semantic matches kept per paraphrase.
	TopK int
	// Threshold is the minimum similarity of a semantic match.
	Threshold float64

	// FallbackFullText matches the whole text semantically when neither a
	// reference nor a paraphrase match was found.
	FallbackFullText bool
	// FallbackThreshold is the minimum similarity for the fallback.
	FallbackThreshold float64

	Paraphrase scripture.ParaphraseConfig
}

// DefaultConfig returns the default tunables.
func DefaultConfig() Config {
	return Config{
		TopK:              semantic.DefaultTopK,
		Threshold:         semantic.DefaultThreshold,
		FallbackThreshold: 0.45,
		Paraphrase:        scripture.DefaultParaphraseConfig(),
	}
}

// Result is the outcome of resolving one piece of text.
type Result struct {
	Text        string         `json:"text"`
	References  []string       `json:"references"`
	Paraphrases []string       `json:"paraphrases"`
	Verses      []fusion.Match `json:"verses"`
}

// Matcher is the semantic matching capability. *semantic.Matcher
// implements it.
type Matcher interface {
	Match(ctx context.Context, text string, topK int, threshold float64) ([]bible.ScoredVerse, error)
}

// Resolver is safe for concurrent use.
type Resolver struct {
	parser  *scripture.Parser
	lookup  fusion.Lookup
	matcher Matcher
	metrics *observe.Metrics
	cfg     atomic.Pointer[Config]
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithMatcher enables semantic matching. Without it only explicit references
// are resolved.
func WithMatcher(m Matcher) Option {
	return func(r *Resolver) { r.matcher = m }
}

// WithParser replaces the default reference parser.
func WithParser(p *scripture.Parser) Option {
	return func(r *Resolver) { r.parser = p }
}

// WithMetrics records resolution metrics on m.
func WithMetrics(m *observe.Metrics) Option {
	return func(r *Resolver) { r.metrics = m }
}

// WithConfig sets the initial tunables.
func WithConfig(cfg Config) Option {
	return func(r *Resolver) { r.cfg.Store(&cfg) }
}

// New creates a Resolver that looks verses up in lookup.
func New(lookup fusion.Lookup, opts ...Option) *Resolver {
	r := &Resolver{parser: scripture.NewParser(), lookup: lookup}
	cfg := DefaultConfig()
	r.cfg.Store(&cfg)
	for _, o := range opts {
		o(r)
	}
	return r
}

// Config returns the current tunables.
func (r *Resolver) Config() Config { return *r.cfg.Load() }

// SetConfig replaces the tunables for subsequent calls.
func (r *Resolver) SetConfig(cfg Config) { r.cfg.Store(&cfg) }

// Resolve extracts references and paraphrases from text and returns the
// fused verses. Semantic failures are logged and leave the explicit part of
// the result intact.
func (r *Resolver) Resolve(ctx context.Context, text string) Result {
	start := time.Now()
	ctx, span := observe.StartSpan(ctx, "resolve")
	defer span.End()
	cfg := r.Config()

	res := Result{
		Text:        text,
		References:  r.references(ctx, text),
		Paraphrases: scripture.DetectParaphrases(text, cfg.Paraphrase),
	}
	if res.Paraphrases == nil {
		res.Paraphrases = []string{}
	}

	var scored []bible.ScoredVerse
	if r.matcher != nil {
		scored = r.semantic(ctx, res.Paraphrases, cfg)
		if cfg.FallbackFullText && len(res.References) == 0 && len(scored) == 0 {
			scored = r.semantic(ctx, []string{text}, Config{TopK: cfg.TopK, Threshold: cfg.FallbackThreshold})
		}
	}
	res.Verses = fusion.Fuse(ctx, r.lookup, res.References, scored)

	span.SetAttributes(
		attribute.Int("references", len(res.References)),
		attribute.Int("verses", len(res.Verses)),
	)
	if r.metrics != nil {
		observe.Since(ctx, r.metrics.ResolveDuration, start)
	}
	return res
}

func (r *Resolver) references(ctx context.Context, text string) []string {
	out := []string{}
	seen := make(map[string]struct{})
	for _, c := range r.parser.Candidates(text) {
		if c.Outcome != scripture.Resolved {
			continue
		}
		s := c.Reference.String()
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
		if r.metrics != nil {
			r.metrics.RecordReference(ctx, c.Family.String())
		}
	}
	return out
}

func (r *Resolver) semantic(ctx context.Context, queries []string, cfg Config) []bible.ScoredVerse {
	var out []bible.ScoredVerse
	for _, q := range queries {
		hits, err := r.matcher.Match(ctx, q, cfg.TopK, cfg.Threshold)
		if errors.Is(err, semantic.ErrNoIndex) {
			slog.Debug("resolve: semantic matching unavailable", "err", err)
			return out
		}
		if err != nil {
			observe.Logger(ctx).Warn("resolve: semantic match failed, using explicit references only", "err", err)
			return out
		}
		out = append(out, hits...)
	}
	return out
}
