// Package phonetic matches misheard book names to canonical Bible books using
// Double Metaphone phonetic encoding combined with Jaro-Winkler string
// similarity.
//
// The algorithm proceeds in two stages:
//
//  1. Phonetic candidate filtering: Double Metaphone codes are computed for
//     the input and for each book name. If any code overlaps, the book
//     becomes a phonetic candidate.
//
//  2. Jaro-Winkler ranking: among phonetic candidates, the book with the
//     highest Jaro-Winkler similarity is selected, provided its score reaches
//     the phonetic threshold. When no phonetic candidate qualifies, pure
//     Jaro-Winkler similarity is tested against every book using a higher
//     fuzzy threshold.
//
// Numbered books ("1 John", "2 Kings") only match input carrying the same
// leading numeral, so "1 jonn" can become "1 John" but never "2 John".
package phonetic

import (
	"strings"

	"github.com/antzucaro/matchr"

	"github.com/MrWong99/pulpit/pkg/bible"
)

const (
	defaultPhoneticThreshold = 0.80
	defaultFuzzyThreshold    = 0.90
)

// Option is a functional option for configuring a [Matcher].
type Option func(*Matcher)

// WithPhoneticThreshold sets the minimum Jaro-Winkler score required for a
// phonetically matched book to be accepted. Default: 0.80.
func WithPhoneticThreshold(threshold float64) Option {
	return func(m *Matcher) {
		m.phoneticThreshold = threshold
	}
}

// WithFuzzyThreshold sets the minimum Jaro-Winkler score required when no
// phonetic match is found. Default: 0.90.
func WithFuzzyThreshold(threshold float64) Option {
	return func(m *Matcher) {
		m.fuzzyThreshold = threshold
	}
}

// WithBooks replaces the candidate book list. Default: [bible.CanonicalBooks].
func WithBooks(books []string) Option {
	return func(m *Matcher) {
		m.books = books
	}
}

type book struct {
	name    string
	numeral string
	stem    string
	codes   map[string]struct{}
}

// Matcher resolves misheard book names. It implements
// scripture.BookMatcher. All methods are safe for concurrent use; the Matcher
// is read-only after construction.
type Matcher struct {
	phoneticThreshold float64
	fuzzyThreshold    float64
	books             []string
	index             []book
}

// New returns a new [Matcher] configured with the supplied options.
func New(opts ...Option) *Matcher {
	m := &Matcher{
		phoneticThreshold: defaultPhoneticThreshold,
		fuzzyThreshold:    defaultFuzzyThreshold,
		books:             bible.CanonicalBooks,
	}
	for _, o := range opts {
		o(m)
	}
	m.index = make([]book, 0, len(m.books))
	for _, name := range m.books {
		numeral, stem := splitNumeral(strings.ToLower(strings.TrimSpace(name)))
		if stem == "" {
			continue
		}
		m.index = append(m.index, book{
			name:    name,
			numeral: numeral,
			stem:    stem,
			codes:   codesForTokens(strings.Fields(stem)),
		})
	}
	return m
}

// MatchBook returns the book most similar to token, if any clears the
// configured thresholds.
func (m *Matcher) MatchBook(token string) (string, bool) {
	name, _, ok := m.Match(token)
	return name, ok
}

// Match is like [Matcher.MatchBook] but also reports the Jaro-Winkler
// confidence of the selected book. When matched is false, corrected equals
// token unchanged and confidence is 0.
func (m *Matcher) Match(token string) (corrected string, confidence float64, matched bool) {
	numeral, stem := splitNumeral(strings.ToLower(strings.TrimSpace(token)))
	if stem == "" {
		return token, 0, false
	}
	stemTokens := strings.Fields(stem)
	inputCodes := codesForTokens(stemTokens)

	type candidate struct {
		name     string
		score    float64
		phonetic bool
	}
	var best candidate

	for _, b := range m.index {
		if b.numeral != numeral {
			continue
		}
		score := bestJWScore(stemTokens, strings.Fields(b.stem), stem, b.stem)

		if codesOverlap(inputCodes, b.codes) {
			if score >= m.phoneticThreshold && (!best.phonetic || score > best.score) {
				best = candidate{name: b.name, score: score, phonetic: true}
			}
		} else if !best.phonetic && score >= m.fuzzyThreshold && score > best.score {
			best = candidate{name: b.name, score: score}
		}
	}

	if best.name != "" {
		return best.name, best.score, true
	}
	return token, 0, false
}

// splitNumeral separates a leading "1".."3" from the rest of s.
func splitNumeral(s string) (numeral, stem string) {
	if len(s) > 1 && s[0] >= '1' && s[0] <= '3' {
		return s[:1], strings.TrimSpace(s[1:])
	}
	return "", s
}

// codesForTokens returns the union of all Double Metaphone codes for the
// given tokens. Empty codes are excluded.
func codesForTokens(tokens []string) map[string]struct{} {
	codes := make(map[string]struct{}, len(tokens)*2)
	for _, t := range tokens {
		p, s := matchr.DoubleMetaphone(t)
		if p != "" {
			codes[p] = struct{}{}
		}
		if s != "" {
			codes[s] = struct{}{}
		}
	}
	return codes
}

// codesOverlap returns true if the two code sets share at least one code.
func codesOverlap(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for code := range a {
		if _, ok := b[code]; ok {
			return true
		}
	}
	return false
}

// bestJWScore computes the highest Jaro-Winkler similarity between the input
// and a book name by comparing the full strings and, for multi-word names
// ("song of solomon"), the space-stripped forms.
func bestJWScore(inputTokens, bookTokens []string, inputFull, bookFull string) float64 {
	score := matchr.JaroWinkler(inputFull, bookFull, false)
	if len(inputTokens) > 1 || len(bookTokens) > 1 {
		if s := matchr.JaroWinkler(strings.Join(inputTokens, ""), strings.Join(bookTokens, ""), false); s > score {
			score = s
		}
	}
	return score
}
