package resolve

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/MrWong99/pulpit/internal/fusion"
	"github.com/MrWong99/pulpit/internal/scripture"
	"github.com/MrWong99/pulpit/internal/semantic"
	"github.com/MrWong99/pulpit/pkg/bible"
)

// MaxSearchLimit caps the number of verses a semantic search returns.
const MaxSearchLimit = 50

// Passage is the text of one formatted reference.
type Passage struct {
	Reference string         `json:"reference"`
	Text      string         `json:"text"`
	Verses    []fusion.Match `json:"verses"`
}

// Lookup parses a formatted reference such as "Romans 8:28-30" and fetches
// its verses. Malformed references fail with scripture.ErrInvalidReference
// or scripture.ErrUnknownBook, references with no verses in the store with
// bible.ErrNotFound.
func (r *Resolver) Lookup(ctx context.Context, reference string) (Passage, error) {
	ref, err := scripture.ParseReference(reference)
	if err != nil {
		return Passage{}, err
	}
	verses, err := r.lookup.Verses(ctx, ref.Book, ref.Chapter, ref.StartVerse, ref.EndVerse)
	if err != nil {
		return Passage{}, fmt.Errorf("resolve: look up %s: %w", ref, err)
	}
	if len(verses) == 0 {
		return Passage{}, fmt.Errorf("resolve: %s: %w", ref, bible.ErrNotFound)
	}
	p := Passage{Reference: ref.String(), Verses: make([]fusion.Match, 0, len(verses))}
	texts := make([]string, 0, len(verses))
	for _, v := range verses {
		p.Verses = append(p.Verses, fusion.FromVerse(v))
		texts = append(texts, v.Text)
	}
	p.Text = strings.Join(texts, " ")
	return p, nil
}

// Extract returns the explicit references in text without looking them up.
func (r *Resolver) Extract(text string) []string {
	out := r.parser.Extract(text)
	if out == nil {
		out = []string{}
	}
	return out
}

// Search returns the limit verses closest in meaning to query, best first,
// without a score threshold. limit is clamped to [1, MaxSearchLimit].
func (r *Resolver) Search(ctx context.Context, query string, limit int) ([]fusion.Match, error) {
	if r.matcher == nil {
		return nil, semantic.ErrNoIndex
	}
	limit = max(1, min(limit, MaxSearchLimit))
	hits, err := r.matcher.Match(ctx, query, limit, math.Inf(-1))
	if err != nil {
		return nil, err
	}
	out := make([]fusion.Match, 0, len(hits))
	for _, h := range hits {
		out = append(out, fusion.FromScored(h))
	}
	return out, nil
}

// SemanticReady reports whether semantic matching can run: a matcher is
// configured and, if it can tell, has an index loaded.
func (r *Resolver) SemanticReady() bool {
	if r.matcher == nil {
		return false
	}
	if rd, ok := r.matcher.(interface{ Ready() bool }); ok {
		return rd.Ready()
	}
	return true
}
