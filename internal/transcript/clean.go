// Package transcript cleans raw speech-to-text output before it reaches the
// reference parser.
//
// Whisper-family recognisers emit bracketed markers for non-speech audio
// ("[BLANK_AUDIO]", "[music]") and very short fragments for silent windows.
// A [Cleaner] strips the markers, collapses whitespace, and rejects text that
// is too short to carry a citation.
package transcript

import (
	"regexp"
	"strings"
)

// DefaultMinChars is the default minimum length of a kept transcript.
const DefaultMinChars = 4

// DefaultMarkers are the non-speech markers removed by a default [Cleaner].
// Matching is case-insensitive and ignores whitespace inside the brackets.
var DefaultMarkers = []string{
	"[blank_audio]",
	"[silence]",
	"[music]",
	"[inaudible]",
	"(silence)",
}

// Option configures a [Cleaner].
type Option func(*Cleaner)

// WithMinChars sets the minimum number of characters a cleaned transcript
// must have to be kept. Default: 4.
func WithMinChars(n int) Option {
	return func(c *Cleaner) {
		c.minChars = n
	}
}

// WithMarkers replaces the list of non-speech markers.
func WithMarkers(markers ...string) Option {
	return func(c *Cleaner) {
		c.markers = markers
	}
}

// Cleaner filters transcripts. It is immutable after construction and safe
// for concurrent use.
type Cleaner struct {
	minChars int
	markers  []string
	re       *regexp.Regexp
}

// NewCleaner returns a Cleaner with the supplied options.
func NewCleaner(opts ...Option) *Cleaner {
	c := &Cleaner{
		minChars: DefaultMinChars,
		markers:  DefaultMarkers,
	}
	for _, o := range opts {
		o(c)
	}
	c.re = markerPattern(c.markers)
	return c
}

// markerPattern builds one regexp that matches every marker, tolerating
// whitespace after the opening and before the closing bracket ("[ silence ]").
func markerPattern(markers []string) *regexp.Regexp {
	var alts []string
	for _, m := range markers {
		m = strings.TrimSpace(m)
		if len(m) < 2 {
			continue
		}
		open, body, closing := m[:1], strings.TrimSpace(m[1:len(m)-1]), m[len(m)-1:]
		alts = append(alts, regexp.QuoteMeta(open)+`\s*`+regexp.QuoteMeta(body)+`\s*`+regexp.QuoteMeta(closing))
	}
	if len(alts) == 0 {
		return nil
	}
	return regexp.MustCompile(`(?i)` + strings.Join(alts, "|"))
}

// Clean removes non-speech markers and surplus whitespace from text. It
// reports false when nothing usable remains.
func (c *Cleaner) Clean(text string) (string, bool) {
	if c.re != nil {
		text = c.re.ReplaceAllString(text, " ")
	}
	text = strings.Join(strings.Fields(text), " ")
	if text == "" || len([]rune(text)) < c.minChars {
		return "", false
	}
	return text, true
}

// MinChars returns the configured minimum length.
func (c *Cleaner) MinChars() int { return c.minChars }

// WithMinChars returns a copy of c that keeps transcripts of at least n
// characters. The marker list is shared with c.
func (c *Cleaner) WithMinChars(n int) *Cleaner {
	cp := *c
	cp.minChars = n
	return &cp
}
