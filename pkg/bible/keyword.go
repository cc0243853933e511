package bible

import (
	"slices"
	"strings"
)

// DefaultSearchLimit caps keyword search results when the caller passes a
// non-positive limit.
const DefaultSearchLimit = 10

// stopWords appear in nearly every verse and carry no search signal.
var stopWords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "that": {}, "with": {}, "this": {}, "are": {}, "was": {}, "were": {},
	"they": {}, "them": {}, "from": {}, "have": {}, "has": {}, "not": {}, "but": {}, "his": {}, "her": {},
	"our": {}, "your": {}, "its": {}, "who": {}, "all": {}, "one": {}, "you": {}, "him": {}, "she": {},
	"what": {}, "will": {}, "said": {}, "when": {}, "also": {}, "into": {}, "unto": {}, "shall": {},
	"thee": {}, "thou": {}, "thy": {},
}

// Keywords splits query into lowercase search terms, dropping stop words and
// terms shorter than two bytes.
func Keywords(query string) []string {
	var words []string
	for _, w := range strings.Fields(strings.ToLower(query)) {
		if len(w) < 2 {
			continue
		}
		if _, stop := stopWords[w]; stop {
			continue
		}
		words = append(words, w)
	}
	return words
}

// KeywordSearch scores each verse by how many query keywords occur in its
// text as substrings ("love" also hits "loved") and returns the best
// matches, highest score first. Equal scores keep input order. Verses with
// no hits are never returned.
func KeywordSearch(verses []Verse, query string, limit int) []Verse {
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	words := Keywords(query)
	if len(words) == 0 {
		return nil
	}

	type scored struct {
		score int
		verse Verse
	}
	var hits []scored
	for _, v := range verses {
		text := strings.ToLower(v.Text)
		n := 0
		for _, w := range words {
			if strings.Contains(text, w) {
				n++
			}
		}
		if n > 0 {
			hits = append(hits, scored{score: n, verse: v})
		}
	}
	slices.SortStableFunc(hits, func(a, b scored) int { return b.score - a.score })

	if len(hits) > limit {
		hits = hits[:limit]
	}
	out := make([]Verse, len(hits))
	for i, h := range hits {
		out[i] = h.verse
	}
	return out
}
