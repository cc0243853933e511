package bible

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
)

// sourceBook is one book of a translation file in the widely used
// "chapters as nested string arrays" layout:
//
//	[{"abbrev": "gn", "name": "Genesis", "chapters": [["In the beginning…", …], …]}, …]
//
// The name field is optional; when absent the canonical name at the same
// position is used.
type sourceBook struct {
	Abbrev   string     `json:"abbrev"`
	Name     string     `json:"name"`
	Chapters [][]string `json:"chapters"`
}

// utf8BOM prefixes many published translation files.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// LoadJSON decodes a translation file from r and returns its verses tagged
// with version, in file order. Book names that match a canonical book
// case-insensitively are rewritten to the canonical spelling.
func LoadJSON(r io.Reader, version string) ([]Verse, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("bible: read source: %w", err)
	}
	data = bytes.TrimPrefix(data, utf8BOM)

	var books []sourceBook
	if err := json.Unmarshal(data, &books); err != nil {
		return nil, fmt.Errorf("bible: decode source: %w", err)
	}

	var verses []Verse
	for i, b := range books {
		name := strings.TrimSpace(b.Name)
		if canon, ok := CanonicalName(name); ok {
			name = canon
		}
		if name == "" {
			if i >= len(CanonicalBooks) {
				return nil, fmt.Errorf("bible: book %d has no name and no canonical position", i+1)
			}
			name = CanonicalBooks[i]
		}
		for ci, chapter := range b.Chapters {
			for vi, text := range chapter {
				verses = append(verses, Verse{
					Book:    name,
					Chapter: ci + 1,
					Verse:   vi + 1,
					Text:    strings.TrimSpace(text),
					Version: version,
				})
			}
		}
	}
	return verses, nil
}

// LoadFile is a convenience wrapper around [LoadJSON] for a file on disk.
func LoadFile(path, version string) ([]Verse, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("bible: open %q: %w", path, err)
	}
	defer f.Close()
	return LoadJSON(f, version)
}
