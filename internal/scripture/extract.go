package scripture

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// Family identifies the pattern family that produced a [Candidate].
type Family int

const (
	// FamilyStandard matches written citations: "John 3:16", "Romans 8:28-30".
	FamilyStandard Family = iota + 1
	// FamilySpokenVerse matches "John chapter 3 verse 16 [through 18]".
	FamilySpokenVerse
	// FamilySpokenChapter matches "John chapter 3" not followed by "verse".
	FamilySpokenChapter
	// FamilyOrdinal matches "First John 1 verse 9", "2nd Kings chapter 5".
	FamilyOrdinal
)

// String returns the family name used in logs.
func (f Family) String() string {
	switch f {
	case FamilyStandard:
		return "standard"
	case FamilySpokenVerse:
		return "spoken"
	case FamilySpokenChapter:
		return "spoken_chapter"
	case FamilyOrdinal:
		return "ordinal"
	default:
		return "unknown"
	}
}

// Outcome records what happened to a [Candidate] after normalization.
type Outcome int

const (
	// Resolved candidates carry a valid Reference.
	Resolved Outcome = iota + 1
	// Unresolved candidates have a book token that matched no book.
	Unresolved
	// Invalid candidates had a zero chapter or verse, or an unparsable number.
	Invalid
)

// String returns the outcome name used in logs.
func (o Outcome) String() string {
	switch o {
	case Resolved:
		return "resolved"
	case Unresolved:
		return "unresolved"
	case Invalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// Candidate is one pattern match before deduplication.
type Candidate struct {
	Family    Family
	BookToken string
	Chapter   int
	Start     int
	End       int
	Outcome   Outcome

	// Reference is set when Outcome is Resolved.
	Reference Reference

	// Phonetic reports that the book was found by the phonetic matcher
	// rather than by the alias table.
	Phonetic bool
}

// BookMatcher resolves a book token that the alias table could not, for
// example a misspelling produced by speech recognition.
type BookMatcher interface {
	MatchBook(token string) (string, bool)
}

// minPhoneticToken is the shortest book token handed to a [BookMatcher].
// Shorter tokens are mostly function words.
const minPhoneticToken = 4

// bookToken optionally starts with an ordinal or a numeral 1-3 and is either
// "song of solomon" or a single word.
const bookToken = `((?:(?:first|second|third|1st|2nd|3rd|[1-3])\s*)?(?:song\s+of\s+solomon|\w+))`

var (
	standardRe = regexp.MustCompile(`(?i)\b` + bookToken + `\s+(\d+):(\d+)(?:-(\d+))?\b`)

	spokenVerseRe = regexp.MustCompile(`(?i)\b` + bookToken +
		`\s+chapter\s+(\d+)\s+verse\s+(\d+)(?:\s+(?:through|to|thru)\s+(?:verse\s+)?(\d+))?\b`)

	spokenChapterRe = regexp.MustCompile(`(?i)\b` + bookToken + `\s+chapter\s+(\d+)\b`)
	followedByVerse = regexp.MustCompile(`(?i)^\s+verse\b`)

	ordinalRe = regexp.MustCompile(`(?i)\b(first|second|third|1st|2nd|3rd)\s+(\w+)\s+(?:chapter\s+)?(\d+)` +
		`(?::(\d+)(?:-(\d+))?|\s+verse\s+(\d+)(?:\s+(?:through|to|thru)\s+(?:verse\s+)?(\d+))?)?\b`)

	leadingOrdinalRe = regexp.MustCompile(`^(first|second|third|1st|2nd|3rd)\b`)
)

var ordinalNumerals = map[string]string{
	"first": "1", "1st": "1",
	"second": "2", "2nd": "2",
	"third": "3", "3rd": "3",
}

// ParserOption configures a [Parser].
type ParserOption func(*Parser)

// WithBookMatcher enables a fallback for book tokens the alias table does not
// resolve. Tokens shorter than four characters are never handed to m.
func WithBookMatcher(m BookMatcher) ParserOption {
	return func(p *Parser) { p.matcher = m }
}

// WithoutSpokenNumbers disables the [SpokenNumbers] pre-pass.
func WithoutSpokenNumbers() ParserOption {
	return func(p *Parser) { p.noNumbers = true }
}

// Parser extracts explicit Scripture references from free text. The zero
// value is not usable; construct with [NewParser]. A Parser is safe for
// concurrent use.
type Parser struct {
	matcher   BookMatcher
	noNumbers bool
}

// NewParser returns a Parser with the given options.
func NewParser(opts ...ParserOption) *Parser {
	p := &Parser{}
	for _, o := range opts {
		o(p)
	}
	return p
}

var defaultParser = NewParser()

// Extract returns the references found in text by the default parser.
func Extract(text string) []string {
	return defaultParser.Extract(text)
}

// Extract returns the formatted, deduplicated references found in text, in
// first-seen order across the four pattern families.
func (p *Parser) Extract(text string) []string {
	var (
		out  []string
		seen = make(map[string]struct{})
	)
	for _, c := range p.Candidates(text) {
		if c.Outcome != Resolved {
			continue
		}
		s := c.Reference.String()
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// ExtractReferences is like [Parser.Extract] but returns parsed references.
func (p *Parser) ExtractReferences(text string) []Reference {
	var (
		out  []Reference
		seen = make(map[string]struct{})
	)
	for _, c := range p.Candidates(text) {
		if c.Outcome != Resolved {
			continue
		}
		s := c.Reference.String()
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, c.Reference)
	}
	return out
}

// Candidates returns every match of every pattern family, family by family,
// including those whose book did not resolve.
func (p *Parser) Candidates(text string) []Candidate {
	if !p.noNumbers {
		text = SpokenNumbers(text)
	}

	var out []Candidate
	for _, m := range standardRe.FindAllStringSubmatch(text, -1) {
		out = append(out, p.candidate(FamilyStandard, m[1], m[2], m[3], m[4]))
	}
	for _, m := range spokenVerseRe.FindAllStringSubmatch(text, -1) {
		out = append(out, p.candidate(FamilySpokenVerse, m[1], m[2], m[3], m[4]))
	}
	for _, loc := range spokenChapterRe.FindAllStringSubmatchIndex(text, -1) {
		if followedByVerse.MatchString(text[loc[1]:]) {
			continue
		}
		out = append(out, p.candidate(FamilySpokenChapter, text[loc[2]:loc[3]], text[loc[4]:loc[5]], "", ""))
	}
	for _, m := range ordinalRe.FindAllStringSubmatch(text, -1) {
		book := m[1] + " " + m[2]
		start, end := m[4], m[5]
		if m[6] != "" {
			start, end = m[6], m[7]
		}
		out = append(out, p.candidate(FamilyOrdinal, book, m[3], start, end))
	}
	return out
}

func (p *Parser) candidate(f Family, token, chapter, start, end string) Candidate {
	token = strings.Join(strings.Fields(token), " ")
	c := Candidate{Family: f, BookToken: token}

	var ok bool
	if c.Chapter, ok = atoi(chapter); !ok || c.Chapter == 0 {
		c.Outcome = Invalid
		return c
	}
	if start != "" {
		if c.Start, ok = atoi(start); !ok || c.Start == 0 {
			c.Outcome = Invalid
			return c
		}
		c.End = c.Start
		if end != "" {
			if c.End, ok = atoi(end); !ok || c.End == 0 {
				c.Outcome = Invalid
				return c
			}
		}
	}

	book, phonetic, found := "", false, false
	if hasBookWord(token) {
		book, phonetic, found = p.resolveBook(token)
	}
	if !found {
		c.Outcome = Unresolved
		return c
	}
	ref, ok := newReference(book, c.Chapter, c.Start, c.End)
	if !ok {
		c.Outcome = Invalid
		return c
	}
	c.Reference = ref
	c.Phonetic = phonetic
	c.Outcome = Resolved
	return c
}

var ordinalPrefix = regexp.MustCompile(`(?i)^(?:first|second|third|1st|2nd|3rd|[1-3])\s*`)

// hasBookWord reports whether token names something beyond its ordinal
// prefix. A spelled number before "chapter" ("week two chapter three")
// becomes a bare digit and must not prefix-match "2 Samuel"; in "the
// first chapter 5" the ordinal family sees "chapter" as the book word.
func hasBookWord(token string) bool {
	rest := strings.ToLower(ordinalPrefix.ReplaceAllString(token, ""))
	if rest == "chapter" || rest == "verse" {
		return false
	}
	return strings.IndexFunc(rest, unicode.IsLetter) >= 0
}

// resolveBook tries the alias table and then the phonetic matcher.
func (p *Parser) resolveBook(token string) (book string, phonetic, ok bool) {
	if book, ok := Normalize(token); ok {
		return book, false, true
	}
	token = foldToken(token)
	if p.matcher == nil || len(token) < minPhoneticToken {
		return "", false, false
	}
	if book, ok := p.matcher.MatchBook(token); ok {
		return book, true, true
	}
	return "", false, false
}

func atoi(s string) (int, bool) {
	n, err := strconv.Atoi(s)
	return n, err == nil
}
