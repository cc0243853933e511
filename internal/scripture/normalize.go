// Package scripture turns noisy transcribed speech into canonical Scripture
// references.
//
// The package has three layers:
//
//   - [Normalize] maps a raw book token ("jn", "1 john", "Revelations") to a
//     canonical book name using a static, ordered alias table.
//   - [Parser] runs four pattern families over transcript text and yields
//     formatted, deduplicated reference strings ("John 3:16",
//     "Romans 8:28-30", "Psalms 23").
//   - [DetectParaphrases] flags sentences that sound like quoted or
//     paraphrased Scripture so they can be matched semantically.
//
// Everything in this package is pure and safe for concurrent use.
package scripture

import (
	"strings"
)

// aliasIndex is the exact-match view of aliasTable.
var aliasIndex = func() map[string]string {
	m := make(map[string]string, len(aliasTable))
	for _, a := range aliasTable {
		if _, dup := m[a.name]; !dup {
			m[a.name] = a.book
		}
	}
	return m
}()

// Aliases returns every alias with its canonical book, in table order.
func Aliases() [][2]string {
	out := make([][2]string, len(aliasTable))
	for i, a := range aliasTable {
		out[i] = [2]string{a.name, a.book}
	}
	return out
}

// foldToken lowercases raw, collapses whitespace and replaces a leading
// ordinal word ("first", "2nd") with its numeral.
func foldToken(raw string) string {
	token := strings.Join(strings.Fields(strings.ToLower(raw)), " ")
	if m := leadingOrdinalRe.FindString(token); m != "" {
		token = ordinalNumerals[m] + token[len(m):]
	}
	return token
}

// compactNumeral drops the space after a leading book numeral: "1 jn" → "1jn".
func compactNumeral(token string) string {
	if len(token) > 2 && token[0] >= '1' && token[0] <= '3' && token[1] == ' ' {
		return token[:1] + token[2:]
	}
	return token
}

// Normalize maps a raw book token to its canonical book name.
//
// The token is lowercased, trimmed, internal whitespace is collapsed and a
// leading ordinal word becomes a numeral ("First John" is looked up as
// "1 john").
// An exact alias match wins. Otherwise the first alias in table order for
// which the token is a prefix of the alias, or the alias is a prefix of the
// token, is used. Short tokens are therefore resolved by table position:
// "j" yields "Joshua" and "ph" yields "Philippians". No match reports false.
func Normalize(raw string) (string, bool) {
	token := foldToken(raw)
	if token == "" {
		return "", false
	}
	if book, ok := aliasIndex[token]; ok {
		return book, true
	}
	if compact := compactNumeral(token); compact != token {
		if book, ok := aliasIndex[compact]; ok {
			return book, true
		}
	}
	for _, a := range aliasTable {
		if strings.HasPrefix(a.name, token) || strings.HasPrefix(token, a.name) {
			return a.book, true
		}
	}
	return "", false
}
