package bible

import (
	"slices"
	"strings"
)

// CanonicalBooks lists the 66 books of the Protestant canon in order. The
// spelling here is the join key used by every store and by the reference
// normalizer.
var CanonicalBooks = []string{
	"Genesis", "Exodus", "Leviticus", "Numbers", "Deuteronomy",
	"Joshua", "Judges", "Ruth", "1 Samuel", "2 Samuel",
	"1 Kings", "2 Kings", "1 Chronicles", "2 Chronicles", "Ezra",
	"Nehemiah", "Esther", "Job", "Psalms", "Proverbs",
	"Ecclesiastes", "Song of Solomon", "Isaiah", "Jeremiah", "Lamentations",
	"Ezekiel", "Daniel", "Hosea", "Joel", "Amos",
	"Obadiah", "Jonah", "Micah", "Nahum", "Habakkuk",
	"Zephaniah", "Haggai", "Zechariah", "Malachi",
	"Matthew", "Mark", "Luke", "John", "Acts",
	"Romans", "1 Corinthians", "2 Corinthians", "Galatians", "Ephesians",
	"Philippians", "Colossians", "1 Thessalonians", "2 Thessalonians", "1 Timothy",
	"2 Timothy", "Titus", "Philemon", "Hebrews", "James",
	"1 Peter", "2 Peter", "1 John", "2 John", "3 John",
	"Jude", "Revelation",
}

var bookOrder = func() map[string]int {
	m := make(map[string]int, len(CanonicalBooks))
	for i, b := range CanonicalBooks {
		m[strings.ToLower(b)] = i
	}
	return m
}()

// BookOrder returns the zero-based canonical position of book, matched
// case-insensitively, or -1 for unknown books.
func BookOrder(book string) int {
	if i, ok := bookOrder[strings.ToLower(strings.TrimSpace(book))]; ok {
		return i
	}
	return -1
}

// CanonicalName returns the canonical spelling of book when it names a
// canonical book case-insensitively.
func CanonicalName(book string) (string, bool) {
	i := BookOrder(book)
	if i < 0 {
		return "", false
	}
	return CanonicalBooks[i], true
}

// SortCanonical orders verses by translation (following versions; unknown
// translations sort last, by name), then canonical book order, chapter and
// verse. This ordering defines embedding matrix rows: any producer of an
// embedding matrix must use the same order.
func SortCanonical(verses []Verse, versions []string) {
	rank := func(version string) int {
		if i := slices.Index(versions, version); i >= 0 {
			return i
		}
		return len(versions)
	}
	slices.SortStableFunc(verses, func(a, b Verse) int {
		if ra, rb := rank(a.Version), rank(b.Version); ra != rb {
			return ra - rb
		}
		if a.Version != b.Version {
			return strings.Compare(a.Version, b.Version)
		}
		if oa, ob := BookOrder(a.Book), BookOrder(b.Book); oa != ob {
			return oa - ob
		}
		if a.Chapter != b.Chapter {
			return a.Chapter - b.Chapter
		}
		return a.Verse - b.Verse
	})
}
