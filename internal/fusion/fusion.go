// Package fusion merges explicitly cited verses and semantically matched
// verses into one ranked list in which every verse reference appears once.
package fusion

import (
	"context"
	"log/slog"

	"github.com/MrWong99/pulpit/internal/scripture"
	"github.com/MrWong99/pulpit/pkg/bible"
)

// Kind says how a match was found.
type Kind string

const (
	// KindExplicit marks a verse cited by reference in the transcript.
	KindExplicit Kind = "explicit"
	// KindSemantic marks a verse found by embedding similarity.
	KindSemantic Kind = "semantic"
)

// Match is one verse of a fused result. Score is nil for explicit matches.
type Match struct {
	Reference string   `json:"reference"`
	Text      string   `json:"text"`
	Book      string   `json:"book"`
	Chapter   int      `json:"chapter"`
	Verse     int      `json:"verse"`
	Score     *float64 `json:"score"`
	Kind      Kind     `json:"-"`
}

// Lookup fetches verses by reference. [bible.Store] implements it.
type Lookup interface {
	Verses(ctx context.Context, book string, chapter, start, end int) ([]bible.Verse, error)
}

// FromVerse builds an explicit match.
func FromVerse(v bible.Verse) Match {
	return Match{
		Reference: v.Reference(),
		Text:      v.Text,
		Book:      v.Book,
		Chapter:   v.Chapter,
		Verse:     v.Verse,
		Kind:      KindExplicit,
	}
}

// FromScored builds a semantic match.
func FromScored(sv bible.ScoredVerse) Match {
	m := FromVerse(sv.Verse)
	score := sv.Score
	m.Score = &score
	m.Kind = KindSemantic
	return m
}

// Fuse resolves refs through lookup and appends the semantic matches whose
// reference is not already present. A chapter or range reference expands to
// each of its verses. References that do not parse or have no verses are
// dropped. Order within each kind is preserved.
func Fuse(ctx context.Context, lookup Lookup, refs []string, semantic []bible.ScoredVerse) []Match {
	out := make([]Match, 0, len(refs)+len(semantic))
	claimed := make(map[string]struct{})

	for _, s := range refs {
		ref, err := scripture.ParseReference(s)
		if err != nil {
			slog.Debug("fusion: dropping unparsable reference", "reference", s, "err", err)
			continue
		}
		verses, err := lookup.Verses(ctx, ref.Book, ref.Chapter, ref.StartVerse, ref.EndVerse)
		if err != nil {
			slog.Warn("fusion: verse lookup failed", "reference", s, "err", err)
			continue
		}
		for _, v := range verses {
			key := v.Reference()
			if _, dup := claimed[key]; dup {
				continue
			}
			claimed[key] = struct{}{}
			out = append(out, FromVerse(v))
		}
	}

	for _, sv := range semantic {
		key := sv.Reference()
		if _, dup := claimed[key]; dup {
			continue
		}
		claimed[key] = struct{}{}
		out = append(out, FromScored(sv))
	}
	return out
}
