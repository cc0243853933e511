package scripture_test

import (
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/MrWong99/pulpit/internal/scripture"
	"github.com/MrWong99/pulpit/pkg/bible"
)

func TestNormalize_EveryAlias(t *testing.T) {
	t.Parallel()
	for _, a := range scripture.Aliases() {
		alias, want := a[0], a[1]
		got, ok := scripture.Normalize(alias)
		if !ok || got != want {
			t.Errorf("Normalize(%q) = %q, %v; want %q", alias, got, ok, want)
		}
		got, ok = scripture.Normalize(strings.ToUpper(alias))
		if !ok || got != want {
			t.Errorf("Normalize(%q) = %q, %v; want %q", strings.ToUpper(alias), got, ok, want)
		}
	}
}

func TestNormalize_Identity(t *testing.T) {
	t.Parallel()
	for _, book := range bible.CanonicalBooks {
		got, ok := scripture.Normalize(book)
		if !ok || got != book {
			t.Errorf("Normalize(%q) = %q, %v; want identity", book, got, ok)
		}
	}
}

func TestNormalize(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in     string
		want   string
		wantOK bool
	}{
		{"  JN ", "John", true},
		{"first john", "1 John", true},
		{"Second   Corinthians", "2 Corinthians", true},
		{"3rd john", "3 John", true},
		{"1 jn", "1 John", true},
		{"Revelations", "Revelation", true},
		{"philippian", "Philippians", true},
		{"song  of solomon", "Song of Solomon", true},
		// Short prefixes resolve by table position.
		{"j", "Joshua", true},
		{"ph", "Philippians", true},
		{"", "", false},
		{"   ", "", false},
		{"xyz", "", false},
	}
	for _, tt := range tests {
		got, ok := scripture.Normalize(tt.in)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("Normalize(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestParseReference(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in      string
		want    scripture.Reference
		wantErr error
	}{
		{in: "John 3:16", want: scripture.Reference{Book: "John", Chapter: 3, StartVerse: 16, EndVerse: 16}},
		{in: "1 cor 13:4-7", want: scripture.Reference{Book: "1 Corinthians", Chapter: 13, StartVerse: 4, EndVerse: 7}},
		{in: "psalm 23", want: scripture.Reference{Book: "Psalms", Chapter: 23}},
		{in: "  Song of Solomon 2:4 ", want: scripture.Reference{Book: "Song of Solomon", Chapter: 2, StartVerse: 4, EndVerse: 4}},
		{in: "First John 1:9", want: scripture.Reference{Book: "1 John", Chapter: 1, StartVerse: 9, EndVerse: 9}},
		{in: "John", wantErr: scripture.ErrInvalidReference},
		{in: "John 3-4", wantErr: scripture.ErrInvalidReference},
		{in: "John 3:18-16", wantErr: scripture.ErrInvalidReference},
		{in: "John 0:1", wantErr: scripture.ErrInvalidReference},
		{in: "John 3:0", wantErr: scripture.ErrInvalidReference},
		{in: "", wantErr: scripture.ErrInvalidReference},
		{in: "Hezekiah 1:1", wantErr: scripture.ErrUnknownBook},
	}
	for _, tt := range tests {
		got, err := scripture.ParseReference(tt.in)
		if tt.wantErr != nil {
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ParseReference(%q) error = %v, want %v", tt.in, err, tt.wantErr)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseReference(%q) unexpected error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseReference(%q) = %+v, want %+v", tt.in, got, tt.want)
		}
	}
}

func TestReference_String(t *testing.T) {
	t.Parallel()
	tests := []struct {
		ref  scripture.Reference
		want string
	}{
		{scripture.Reference{Book: "Psalms", Chapter: 23}, "Psalms 23"},
		{scripture.Reference{Book: "John", Chapter: 3, StartVerse: 16, EndVerse: 16}, "John 3:16"},
		{scripture.Reference{Book: "John", Chapter: 3, StartVerse: 16}, "John 3:16"},
		{scripture.Reference{Book: "Romans", Chapter: 8, StartVerse: 28, EndVerse: 30}, "Romans 8:28-30"},
	}
	for _, tt := range tests {
		if got := tt.ref.String(); got != tt.want {
			t.Errorf("%+v.String() = %q, want %q", tt.ref, got, tt.want)
		}
		if tt.ref.WholeChapter() != (tt.ref.StartVerse == 0) {
			t.Errorf("%+v.WholeChapter() = %v", tt.ref, tt.ref.WholeChapter())
		}
	}
}

func TestSpokenNumbers(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   string
		want string
	}{
		{"John chapter three verse sixteen", "John chapter 3 verse 16"},
		{"Romans eight twenty-eight", "Romans 8 28"},
		{"Psalm one hundred and nineteen", "Psalm 119"},
		{"Psalm one hundred nineteen", "Psalm 119"},
		{"three sixteen", "3 16"},
		{"Twenty Three", "23"},
		{"zero one", "0 1"},
		{"one, two", "1, 2"},
		{"bread and wine", "bread and wine"},
		{"one hundred and the rest", "100 and the rest"},
		{"a hundred sheep", "a hundred sheep"},
		{"First John", "First John"},
		{"someone", "someone"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := scripture.SpokenNumbers(tt.in); got != tt.want {
			t.Errorf("SpokenNumbers(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestExtract(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"spoken verse", "Turn with me to John chapter 3 verse 16", []string{"John 3:16"}},
		{"standard range", "Let's look at Romans 8:28-30", []string{"Romans 8:28-30"}},
		{"ordinal spoken numbers", "First John chapter one verse nine", []string{"1 John 1:9"}},
		{"standard", "John 3:16", []string{"John 3:16"}},
		{"spoken words", "John chapter three verse sixteen", []string{"John 3:16"}},
		{"spoken range", "Romans chapter 8 verse 28 through verse 30", []string{"Romans 8:28-30"}},
		{"spoken range thru", "Romans chapter 8 verse 28 thru 30", []string{"Romans 8:28-30"}},
		{"chapter only", "Open your Bibles to Psalm chapter 23 please", []string{"Psalms 23"}},
		{"ordinal chapter", "Second Kings chapter 5", []string{"2 Kings 5"}},
		{"ordinal written", "first Corinthians 13:4", []string{"1 Corinthians 13:4"}},
		{"numeral prefix", "Read 1 John 1:9 and 2 Tim 3:16", []string{"1 John 1:9", "2 Timothy 3:16"}},
		{"song of solomon", "Song of Solomon 2:4", []string{"Song of Solomon 2:4"}},
		{"reversed range", "John 3:18-16", []string{"John 3:18"}},
		{"zero verse", "John 3:0", nil},
		{"zero chapter", "John chapter 0", nil},
		{"unknown book", "Hezekiah 1:1", nil},
		{"dedup", "John 3:16 and again John 3:16", []string{"John 3:16"}},
		{"first seen order", "Mark 1:1 then Genesis 1:1", []string{"Mark 1:1", "Genesis 1:1"}},
		{"no reference", "Good morning church", nil},
		{"spelled number before chapter", "this is week two chapter three of our series", nil},
		{"count before chapter", "we covered one chapter five times", nil},
		{"ordinal word before chapter", "read the first chapter 5 times", nil},
		{"digits before chapter", "part 2 chapter 3", nil},
		{"numbers then real citation", "week two chapter three, Romans chapter 8", []string{"Romans 8"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := scripture.Extract(tt.in)
			if !slices.Equal(got, tt.want) {
				t.Errorf("Extract(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestExtract_SameVerseAcrossFamilies(t *testing.T) {
	t.Parallel()
	inputs := []string{"John 3:16", "John chapter 3 verse 16", "john chapter three verse sixteen"}
	for _, in := range inputs {
		if got := scripture.Extract(in); !slices.Equal(got, []string{"John 3:16"}) {
			t.Errorf("Extract(%q) = %v, want [John 3:16]", in, got)
		}
	}
	if got := scripture.Extract("First John chapter 3 verse 16"); !slices.Equal(got, []string{"1 John 3:16"}) {
		t.Errorf("Extract(First John chapter 3 verse 16) = %v, want [1 John 3:16]", got)
	}
}

func TestExtract_IdempotentOnOwnOutput(t *testing.T) {
	t.Parallel()
	inputs := []string{
		"Let's look at Romans 8:28-30",
		"First John chapter one verse nine",
		"Song of Solomon 2:4",
		"Second Corinthians chapter 5 verse 17 through 21",
		"Turn to 3 jn 1:4",
	}
	for _, in := range inputs {
		for _, ref := range scripture.Extract(in) {
			again := scripture.Extract(ref)
			if !slices.Equal(again, []string{ref}) {
				t.Errorf("Extract(%q) = %v, want [%s]", ref, again, ref)
			}
		}
	}
}

type stubMatcher map[string]string

func (m stubMatcher) MatchBook(token string) (string, bool) {
	b, ok := m[token]
	return b, ok
}

func TestParser_BookMatcher(t *testing.T) {
	t.Parallel()
	p := scripture.NewParser(scripture.WithBookMatcher(stubMatcher{
		"fillipians": "Philippians",
		"hab":        "Habakkuk",
	}))

	got := p.Extract("Fillipians chapter 4 verse 13")
	if !slices.Equal(got, []string{"Philippians 4:13"}) {
		t.Errorf("Extract with matcher = %v, want [Philippians 4:13]", got)
	}

	cands := p.Candidates("Fillipians 4:13")
	if len(cands) != 1 || !cands[0].Phonetic || cands[0].Outcome != scripture.Resolved {
		t.Errorf("Candidates = %+v, want one phonetic resolved candidate", cands)
	}

	// Without a matcher the token is unresolved.
	cands = scripture.NewParser().Candidates("Fillipians 4:13")
	if len(cands) != 1 || cands[0].Outcome != scripture.Unresolved {
		t.Errorf("Candidates without matcher = %+v, want one unresolved candidate", cands)
	}
}

func TestParser_Candidates(t *testing.T) {
	t.Parallel()
	cands := scripture.NewParser().Candidates("John chapter 3 verse 16 and Hezekiah 2:1 and John 0:1")
	var got []string
	for _, c := range cands {
		got = append(got, c.Family.String()+"/"+c.Outcome.String())
	}
	want := []string{"standard/unresolved", "standard/invalid", "spoken/resolved"}
	if !slices.Equal(got, want) {
		t.Errorf("Candidates = %v, want %v", got, want)
	}

	// A number spoken before "chapter" is kept visible as unresolved.
	cands = scripture.NewParser().Candidates("this is week two chapter three")
	if len(cands) != 1 || cands[0].BookToken != "2" || cands[0].Outcome != scripture.Unresolved {
		t.Errorf("Candidates(week two chapter three) = %+v, want one unresolved \"2\" token", cands)
	}
}

func TestParser_WithoutSpokenNumbers(t *testing.T) {
	t.Parallel()
	p := scripture.NewParser(scripture.WithoutSpokenNumbers())
	if got := p.Extract("John chapter three verse sixteen"); len(got) != 0 {
		t.Errorf("Extract = %v, want none", got)
	}
	refs := p.ExtractReferences("John 3:16-18")
	want := []scripture.Reference{{Book: "John", Chapter: 3, StartVerse: 16, EndVerse: 18}}
	if !slices.Equal(refs, want) {
		t.Errorf("ExtractReferences = %+v, want %+v", refs, want)
	}
}

func TestDetectParaphrases(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{
			name: "indicator",
			in:   `Jesus says, "Come unto me, all ye that labour and are heavy laden."`,
			want: []string{`Come unto me, all ye that labour and are heavy laden.`},
		},
		{
			name: "first listed indicator wins",
			in:   "The Bible teaches that we should love one another deeply.",
			want: []string{"teaches that we should love one another deeply."},
		},
		{
			name: "short quote",
			in:   "He said, be still.",
			want: nil,
		},
		{
			name: "biblical keyword",
			in:   "The Lord is my shepherd and I shall not want. Hello there.",
			want: []string{"The Lord is my shepherd and I shall not want."},
		},
		{
			name: "book mention skipped",
			in:   "In John the Lord is revealed as the light of the whole world.",
			want: nil,
		},
		{
			name: "too short",
			in:   "God is love.",
			want: nil,
		},
		{
			name: "empty",
			in:   "",
			want: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := scripture.DetectParaphrases(tt.in, scripture.ParaphraseConfig{})
			if !slices.Equal(got, tt.want) {
				t.Errorf("DetectParaphrases(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestDetectParaphrases_Thresholds(t *testing.T) {
	t.Parallel()
	in := "He said, be still and know."
	if got := scripture.DetectParaphrases(in, scripture.ParaphraseConfig{MinQuoteChars: 5}); len(got) != 1 {
		t.Errorf("DetectParaphrases with MinQuoteChars=5 = %q, want one quote", got)
	}
}
