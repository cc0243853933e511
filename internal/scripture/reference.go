package scripture

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	// ErrInvalidReference is returned when a reference string does not have
	// the shape "<book> <chapter>[:<verse>[-<verse>]]".
	ErrInvalidReference = errors.New("scripture: invalid reference")

	// ErrUnknownBook is returned when the book token of a reference does not
	// normalize to any canonical book.
	ErrUnknownBook = errors.New("scripture: unknown book")
)

// Reference identifies a chapter, a single verse, or a contiguous verse range
// within one chapter.
//
// StartVerse == 0 denotes the whole chapter; EndVerse is then 0 as well.
// Otherwise EndVerse >= StartVerse.
type Reference struct {
	Book       string
	Chapter    int
	StartVerse int
	EndVerse   int
}

// WholeChapter reports whether r names an entire chapter.
func (r Reference) WholeChapter() bool { return r.StartVerse == 0 }

// String renders r as "John 3", "John 3:16" or "John 3:16-18".
func (r Reference) String() string {
	switch {
	case r.StartVerse == 0:
		return fmt.Sprintf("%s %d", r.Book, r.Chapter)
	case r.EndVerse <= r.StartVerse:
		return fmt.Sprintf("%s %d:%d", r.Book, r.Chapter, r.StartVerse)
	default:
		return fmt.Sprintf("%s %d:%d-%d", r.Book, r.Chapter, r.StartVerse, r.EndVerse)
	}
}

// newReference builds a Reference from already normalized parts, applying the
// range rules shared by [ParseReference] and the extractor. A reversed range
// collapses to its start verse.
func newReference(book string, chapter, start, end int) (Reference, bool) {
	if chapter <= 0 || start < 0 || end < 0 {
		return Reference{}, false
	}
	if start == 0 {
		return Reference{Book: book, Chapter: chapter}, true
	}
	if end < start {
		end = start
	}
	return Reference{Book: book, Chapter: chapter, StartVerse: start, EndVerse: end}, true
}

var referenceRe = regexp.MustCompile(`^(.+?)\s+(\d+)(?::(\d+)(?:-(\d+))?)?$`)

// ParseReference parses a formatted reference such as "John 3:16",
// "1 Cor 13:4-7" or "psalm 23". The book is normalized with [Normalize].
//
// Errors wrap [ErrInvalidReference] for malformed input, including zero
// chapters or verses and reversed ranges, and [ErrUnknownBook] when the book
// does not resolve.
func ParseReference(s string) (Reference, error) {
	m := referenceRe.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return Reference{}, fmt.Errorf("%w: %q", ErrInvalidReference, s)
	}
	book, ok := Normalize(m[1])
	if !ok {
		return Reference{}, fmt.Errorf("%w: %q", ErrUnknownBook, m[1])
	}

	chapter, _ := strconv.Atoi(m[2])
	start, end := 0, 0
	if m[3] != "" {
		start, _ = strconv.Atoi(m[3])
		end = start
		if m[4] != "" {
			end, _ = strconv.Atoi(m[4])
		}
		if start == 0 || end < start {
			return Reference{}, fmt.Errorf("%w: %q", ErrInvalidReference, s)
		}
	}
	ref, ok := newReference(book, chapter, start, end)
	if !ok {
		return Reference{}, fmt.Errorf("%w: %q", ErrInvalidReference, s)
	}
	return ref, nil
}
