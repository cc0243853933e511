// Package semantic matches transcribed text against a precomputed embedding
// space of Bible verses.
//
// An [Index] holds one L2-normalised row per verse of every loaded
// translation, in the order defined by [bible.SortCanonical], next to the
// verse each row describes. It is immutable once built and shared by all
// sessions. A [Matcher] embeds a query, scores it against a [Backend] (the
// in-memory Index or the pgvector column of the Postgres store), and keeps
// the best matches at or above a threshold.
package semantic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"

	"github.com/MrWong99/pulpit/pkg/bible"
)

var (
	// ErrNoIndex is returned when no verse index is available.
	ErrNoIndex = errors.New("semantic: no verse index")

	// ErrIndexMismatch is returned when an index on disk does not describe
	// the verses currently held by the store.
	ErrIndexMismatch = errors.New("semantic: verse index does not match the store")
)

// Entry identifies the verse described by one index row. A list of entries
// is persisted next to the matrix as verse_index.json.
type Entry struct {
	Book    string `json:"book"`
	Chapter int    `json:"chapter"`
	Verse   int    `json:"verse"`
	Version string `json:"version"`
}

func entryOf(v bible.Verse) Entry {
	return Entry{Book: v.Book, Chapter: v.Chapter, Verse: v.Verse, Version: v.Version}
}

// Index is an immutable verse embedding matrix.
type Index struct {
	dims   int
	rows   []float32
	verses []bible.Verse
}

// NewIndex builds an index from parallel slices of verses and vectors. Every
// vector must have the same non-zero length. Rows are L2-normalised.
func NewIndex(verses []bible.Verse, vectors [][]float32) (*Index, error) {
	if len(verses) != len(vectors) {
		return nil, fmt.Errorf("semantic: %d verses but %d vectors", len(verses), len(vectors))
	}
	if len(vectors) == 0 {
		return nil, ErrNoIndex
	}
	dims := len(vectors[0])
	if dims == 0 {
		return nil, errors.New("semantic: empty embedding vector")
	}
	rows := make([]float32, 0, len(vectors)*dims)
	for i, v := range vectors {
		if len(v) != dims {
			return nil, fmt.Errorf("semantic: vector %d (%s) has %d dimensions, want %d", i, verses[i].Reference(), len(v), dims)
		}
		rows = append(rows, v...)
	}
	ix := &Index{dims: dims, rows: rows, verses: append([]bible.Verse(nil), verses...)}
	ix.normalize()
	return ix, nil
}

func (ix *Index) normalize() {
	for i := range len(ix.verses) {
		normalize(ix.rows[i*ix.dims : (i+1)*ix.dims])
	}
}

// normalize scales v to unit length in place. A zero vector is left alone.
func normalize(v []float32) bool {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return false
	}
	inv := float32(1 / math.Sqrt(sum))
	for i := range v {
		v[i] *= inv
	}
	return true
}

// Len returns the number of rows.
func (ix *Index) Len() int { return len(ix.verses) }

// Dimensions returns the vector length.
func (ix *Index) Dimensions() int { return ix.dims }

// Verse returns the verse described by row i.
func (ix *Index) Verse(i int) bible.Verse { return ix.verses[i] }

// Nearest implements [Backend]. It returns the k rows with the highest
// cosine similarity to query, best first. Equal scores keep row order.
func (ix *Index) Nearest(ctx context.Context, query []float32, k int) ([]bible.ScoredVerse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(query) != ix.dims {
		return nil, fmt.Errorf("semantic: query has %d dimensions, index has %d", len(query), ix.dims)
	}
	if k <= 0 {
		return nil, nil
	}
	q := append([]float32(nil), query...)
	if !normalize(q) {
		return nil, nil
	}

	type hit struct {
		row   int
		score float32
	}
	top := make([]hit, 0, k+1)
	for i := range len(ix.verses) {
		row := ix.rows[i*ix.dims : (i+1)*ix.dims]
		var s float32
		for j, x := range row {
			s += x * q[j]
		}
		if len(top) == k && s <= top[k-1].score {
			continue
		}
		// Insert after every hit with a score >= s so earlier rows win ties.
		pos := len(top)
		for pos > 0 && top[pos-1].score < s {
			pos--
		}
		top = append(top, hit{})
		copy(top[pos+1:], top[pos:])
		top[pos] = hit{row: i, score: s}
		if len(top) > k {
			top = top[:k]
		}
	}

	out := make([]bible.ScoredVerse, len(top))
	for i, h := range top {
		out[i] = bible.ScoredVerse{Verse: ix.verses[h.row], Score: float64(h.score)}
	}
	return out, nil
}

// Save writes the matrix to embeddingsPath (.npy) and the row identities to
// indexPath (JSON). Parent directories are created as needed.
func (ix *Index) Save(embeddingsPath, indexPath string) error {
	for _, p := range []string{embeddingsPath, indexPath} {
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			return fmt.Errorf("semantic: create index directory: %w", err)
		}
	}

	f, err := os.Create(embeddingsPath)
	if err != nil {
		return fmt.Errorf("semantic: create %s: %w", embeddingsPath, err)
	}
	if err := writeNPY(f, ix.rows, len(ix.verses), ix.dims); err != nil {
		f.Close()
		return fmt.Errorf("semantic: write %s: %w", embeddingsPath, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("semantic: close %s: %w", embeddingsPath, err)
	}

	entries := make([]Entry, len(ix.verses))
	for i, v := range ix.verses {
		entries[i] = entryOf(v)
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("semantic: encode verse index: %w", err)
	}
	if err := os.WriteFile(indexPath, data, 0o644); err != nil {
		return fmt.Errorf("semantic: write %s: %w", indexPath, err)
	}
	return nil
}

// Load reads an index saved by [Index.Save] and checks it against the verses
// of store. A missing file yields [ErrNoIndex]; any disagreement between the
// files and the store yields [ErrIndexMismatch].
func Load(ctx context.Context, store bible.Store, embeddingsPath, indexPath string) (*Index, error) {
	f, err := os.Open(embeddingsPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s not found", ErrNoIndex, embeddingsPath)
	}
	if err != nil {
		return nil, fmt.Errorf("semantic: open %s: %w", embeddingsPath, err)
	}
	data, rows, cols, err := readNPY(f)
	f.Close()
	if err != nil {
		return nil, fmt.Errorf("semantic: %s: %w", embeddingsPath, err)
	}

	raw, err := os.ReadFile(indexPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s not found", ErrNoIndex, indexPath)
	}
	if err != nil {
		return nil, fmt.Errorf("semantic: read %s: %w", indexPath, err)
	}
	var entries []Entry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("semantic: decode %s: %w", indexPath, err)
	}

	verses, err := store.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("semantic: load verses: %w", err)
	}
	if err := validate(entries, verses, rows); err != nil {
		return nil, err
	}

	ix := &Index{dims: cols, rows: data, verses: verses}
	ix.normalize()
	return ix, nil
}

func validate(entries []Entry, verses []bible.Verse, rows int) error {
	if rows != len(entries) {
		return fmt.Errorf("%w: matrix has %d rows, verse index lists %d", ErrIndexMismatch, rows, len(entries))
	}
	if rows != len(verses) {
		return fmt.Errorf("%w: matrix has %d rows, store holds %d verses", ErrIndexMismatch, rows, len(verses))
	}
	for i, e := range entries {
		if got := entryOf(verses[i]); got != e {
			return fmt.Errorf("%w: row %d is %s %s %d:%d, store has %s %s",
				ErrIndexMismatch, i, e.Version, e.Book, e.Chapter, e.Verse, got.Version, verses[i].Reference())
		}
	}
	return nil
}
