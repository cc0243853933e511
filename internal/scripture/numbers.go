package scripture

import (
	"regexp"
	"strconv"
	"strings"
)

type numberKind int

const (
	kindZero numberKind = iota + 1
	kindUnit
	kindTeen
	kindTens
	kindHundred
	kindAnd
)

type numberWord struct {
	kind  numberKind
	value int
}

var numberWords = map[string]numberWord{
	"zero": {kindZero, 0},
	"one":  {kindUnit, 1}, "two": {kindUnit, 2}, "three": {kindUnit, 3},
	"four": {kindUnit, 4}, "five": {kindUnit, 5}, "six": {kindUnit, 6},
	"seven": {kindUnit, 7}, "eight": {kindUnit, 8}, "nine": {kindUnit, 9},
	"ten": {kindTeen, 10}, "eleven": {kindTeen, 11}, "twelve": {kindTeen, 12},
	"thirteen": {kindTeen, 13}, "fourteen": {kindTeen, 14}, "fifteen": {kindTeen, 15},
	"sixteen": {kindTeen, 16}, "seventeen": {kindTeen, 17}, "eighteen": {kindTeen, 18},
	"nineteen": {kindTeen, 19},
	"twenty": {kindTens, 20}, "thirty": {kindTens, 30}, "forty": {kindTens, 40},
	"fifty": {kindTens, 50}, "sixty": {kindTens, 60}, "seventy": {kindTens, 70},
	"eighty": {kindTens, 80}, "ninety": {kindTens, 90},
	"hundred": {kindHundred, 100},
	"and":     {kindAnd, 0},
}

var letterRunRe = regexp.MustCompile(`[A-Za-z]+`)

// numberPhrase accumulates consecutive number words.
type numberPhrase struct {
	active     bool
	start, end int
	total      int
	current    int
	last       numberKind
	hundred    bool
}

func (p *numberPhrase) accepts(k numberKind) bool {
	if !p.active {
		return true
	}
	switch k {
	case kindUnit:
		return p.last == kindTens || p.last == kindHundred || p.last == kindAnd
	case kindTeen, kindTens:
		return p.last == kindHundred || p.last == kindAnd
	case kindHundred:
		return p.last == kindUnit && !p.hundred
	default:
		return false
	}
}

func (p *numberPhrase) add(w numberWord, start, end int) {
	if !p.active {
		p.active = true
		p.start = start
	}
	if w.kind == kindHundred {
		p.total = p.current * 100
		p.current = 0
		p.hundred = true
	} else {
		p.current += w.value
	}
	p.last = w.kind
	p.end = end
}

// joinable reports whether sep may sit between two words of one number.
func joinable(sep string) bool {
	return strings.Trim(sep, " \t\r\n-") == ""
}

// SpokenNumbers rewrites spelled-out cardinal numbers as digits so that spoken
// citations reach the digit-based reference patterns:
//
//	"John chapter three verse sixteen"   → "John chapter 3 verse 16"
//	"Psalm one hundred and nineteen"     → "Psalm 119"
//	"Romans eight twenty-eight"          → "Romans 8 28"
//
// Words join into one number only when separated by whitespace or hyphens
// and when they form a well-formed phrase; a word that cannot extend the
// current phrase starts a new one. "and" joins only after "hundred".
// Ordinals ("first", "second") are left unchanged.
func SpokenNumbers(text string) string {
	locs := letterRunRe.FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		return text
	}

	var (
		b    strings.Builder
		last int
		p    numberPhrase
	)
	flush := func() {
		if !p.active {
			return
		}
		b.WriteString(text[last:p.start])
		b.WriteString(strconv.Itoa(p.total + p.current))
		last = p.end
		p = numberPhrase{}
	}

	for i, loc := range locs {
		if p.active && !joinable(text[p.end:loc[0]]) {
			flush()
		}
		w, ok := numberWords[strings.ToLower(text[loc[0]:loc[1]])]
		if !ok {
			flush()
			continue
		}
		if w.kind == kindAnd {
			if p.active && p.last == kindHundred && i+1 < len(locs) &&
				joinable(text[loc[1]:locs[i+1][0]]) && extendsAfterAnd(text[locs[i+1][0]:locs[i+1][1]]) {
				p.last = kindAnd
				p.end = loc[1]
				continue
			}
			flush()
			continue
		}
		if !p.accepts(w.kind) {
			flush()
		}
		if w.kind == kindHundred && !p.active {
			// A bare "hundred" is left as a word.
			continue
		}
		p.add(w, loc[0], loc[1])
	}
	flush()
	b.WriteString(text[last:])
	return b.String()
}

func extendsAfterAnd(word string) bool {
	w, ok := numberWords[strings.ToLower(word)]
	if !ok {
		return false
	}
	return w.kind == kindUnit || w.kind == kindTeen || w.kind == kindTens
}
