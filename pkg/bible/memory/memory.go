// Package memory provides an in-process [bible.Store] backed by verse slices,
// typically loaded from translation JSON files at startup.
//
// The store is immutable after construction and therefore safe for
// unsynchronised concurrent reads.
package memory

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/MrWong99/pulpit/pkg/bible"
)

var (
	_ bible.Store    = (*Store)(nil)
	_ bible.Searcher = (*Store)(nil)
)

type chapterKey struct {
	book    string // lowercased canonical name
	chapter int
}

// Store is an immutable in-memory verse store.
type Store struct {
	defaultVersion string
	all            []bible.Verse

	// chapters indexes verses of the default translation, each slice sorted
	// by verse number.
	chapters map[chapterKey][]bible.Verse
	books    []string
	bookCh   map[string][]int
	primary  []bible.Verse
}

// Option configures a [Store].
type Option func(*options)

type options struct {
	versions       []string
	defaultVersion string
}

// WithVersions fixes the translation order used by [Store.All]. Translations
// not listed sort after the listed ones.
func WithVersions(versions ...string) Option {
	return func(o *options) { o.versions = versions }
}

// WithDefaultVersion selects the translation served by lookups. Defaults to
// the first entry of [WithVersions], or the translation of the first verse.
func WithDefaultVersion(version string) Option {
	return func(o *options) { o.defaultVersion = version }
}

// New builds a Store from verses. The input slice is copied.
func New(verses []bible.Verse, opts ...Option) (*Store, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.defaultVersion == "" {
		if len(o.versions) > 0 {
			o.defaultVersion = o.versions[0]
		} else if len(verses) > 0 {
			o.defaultVersion = verses[0].Version
		}
	}

	all := slices.Clone(verses)
	bible.SortCanonical(all, o.versions)

	s := &Store{
		defaultVersion: o.defaultVersion,
		all:            all,
		chapters:       make(map[chapterKey][]bible.Verse),
		bookCh:         make(map[string][]int),
	}
	for _, v := range all {
		if v.Version != s.defaultVersion {
			continue
		}
		if v.Chapter <= 0 || v.Verse <= 0 {
			return nil, fmt.Errorf("memory store: invalid verse %s (%s)", v.Reference(), v.Version)
		}
		key := chapterKey{book: strings.ToLower(v.Book), chapter: v.Chapter}
		if _, seen := s.chapters[key]; !seen {
			if _, known := s.bookCh[key.book]; !known {
				s.books = append(s.books, v.Book)
			}
			s.bookCh[key.book] = append(s.bookCh[key.book], v.Chapter)
		}
		s.chapters[key] = append(s.chapters[key], v)
		s.primary = append(s.primary, v)
	}
	return s, nil
}

// DefaultVersion returns the translation served by lookups.
func (s *Store) DefaultVersion() string { return s.defaultVersion }

// Verses implements [bible.Store].
func (s *Store) Verses(_ context.Context, book string, chapter, start, end int) ([]bible.Verse, error) {
	vs := s.chapters[chapterKey{book: strings.ToLower(strings.TrimSpace(book)), chapter: chapter}]
	if start <= 0 {
		return slices.Clone(vs), nil
	}
	if end < start {
		end = start
	}
	var out []bible.Verse
	for _, v := range vs {
		if v.Verse >= start && v.Verse <= end {
			out = append(out, v)
		}
	}
	return out, nil
}

// Books implements [bible.Store].
func (s *Store) Books(context.Context) ([]string, error) {
	return slices.Clone(s.books), nil
}

// Chapters implements [bible.Store].
func (s *Store) Chapters(_ context.Context, book string) ([]int, error) {
	return slices.Clone(s.bookCh[strings.ToLower(strings.TrimSpace(book))]), nil
}

// All implements [bible.Store].
func (s *Store) All(context.Context) ([]bible.Verse, error) {
	return slices.Clone(s.all), nil
}

// Count implements [bible.Store].
func (s *Store) Count(context.Context) (int, error) {
	return len(s.all), nil
}

// Search implements [bible.Searcher] over the default translation.
func (s *Store) Search(_ context.Context, query string, limit int) ([]bible.Verse, error) {
	return bible.KeywordSearch(s.primary, query, limit), nil
}

// Load reads each translation file and builds a Store. sources maps a
// translation name to its JSON file path; versions fixes both the load order
// and the [Store.All] order.
func Load(sources map[string]string, versions []string, opts ...Option) (*Store, error) {
	var verses []bible.Verse
	for _, version := range versions {
		path, ok := sources[version]
		if !ok {
			return nil, fmt.Errorf("memory store: no source configured for version %q", version)
		}
		vs, err := bible.LoadFile(path, version)
		if err != nil {
			return nil, fmt.Errorf("memory store: load %s: %w", version, err)
		}
		verses = append(verses, vs...)
	}
	return New(verses, append([]Option{WithVersions(versions...)}, opts...)...)
}
