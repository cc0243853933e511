// Package bible defines the verse store boundary used by the resolution
// pipeline.
//
// A [Store] answers exact verse lookups, whole-chapter lookups, and the
// listing queries needed by the HTTP surface. Two implementations ship with
// pulpit: an in-memory store loaded from translation JSON files
// (package memory) and a PostgreSQL store with a pgvector column for verse
// embeddings (package postgres).
//
// Book names passed to a Store are canonical names as produced by the
// reference normalizer ("1 John", "Song of Solomon"). Matching is
// case-insensitive.
package bible

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound is returned when a lookup that must produce a result (a
// direct search, an MCP lookup) finds no verses.
var ErrNotFound = errors.New("bible: not found")

// Verse is a single verse of one translation. Verses are immutable values
// supplied by a [Store].
type Verse struct {
	Book    string `json:"book"`
	Chapter int    `json:"chapter"`
	Verse   int    `json:"verse"`
	Text    string `json:"text"`
	Version string `json:"version,omitempty"`
}

// Reference returns the unique "<book> <chapter>:<verse>" string that
// identifies v regardless of translation.
func (v Verse) Reference() string {
	return fmt.Sprintf("%s %d:%d", v.Book, v.Chapter, v.Verse)
}

// ScoredVerse is a verse paired with a similarity score in [-1, 1] (cosine
// similarity; higher is more similar).
type ScoredVerse struct {
	Verse
	Score float64
}

// Store is the verse store collaborator. All methods are safe for concurrent
// use.
type Store interface {
	// Verses returns the verses of book/chapter in the store's default
	// translation. start == 0 selects the whole chapter; otherwise verses
	// start..end inclusive are returned, with end == 0 meaning end == start.
	// An out-of-range request yields an empty slice and a nil error.
	Verses(ctx context.Context, book string, chapter, start, end int) ([]Verse, error)

	// Books lists the canonical book names present, in canonical order.
	Books(ctx context.Context) ([]string, error)

	// Chapters lists the chapter numbers of book in ascending order.
	Chapters(ctx context.Context, book string) ([]int, error)

	// All returns every verse of every loaded translation in index order:
	// translations in configured order, each sorted with [SortCanonical].
	All(ctx context.Context) ([]Verse, error)

	// Count returns the number of verses across all translations.
	Count(ctx context.Context) (int, error)
}

// Searcher is implemented by stores that support keyword search.
type Searcher interface {
	// Search returns at most limit verses of the default translation ranked
	// by how many query keywords they contain.
	Search(ctx context.Context, query string, limit int) ([]Verse, error)
}
