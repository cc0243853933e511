package transcript_test

import (
	"testing"

	"github.com/MrWong99/pulpit/internal/transcript"
)

func TestCleaner_Clean(t *testing.T) {
	t.Parallel()

	c := transcript.NewCleaner()
	tests := []struct {
		name   string
		in     string
		want   string
		wantOK bool
	}{
		{"plain", "  John   3:16 \n", "John 3:16", true},
		{"blank audio", "[BLANK_AUDIO]", "", false},
		{"spaced marker", "[ silence ]", "", false},
		{"parenthesised", "(silence)", "", false},
		{"marker inside text", "For God so loved [music] the world", "For God so loved the world", true},
		{"mixed case", "[Inaudible] amen church", "amen church", true},
		{"too short", "ok", "", false},
		{"exactly min", "amen", "amen", true},
		{"empty", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := c.Clean(tt.in)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("Clean(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestCleaner_Options(t *testing.T) {
	t.Parallel()

	c := transcript.NewCleaner(transcript.WithMinChars(1), transcript.WithMarkers("<noise>"))
	if got, ok := c.Clean("a <NOISE>"); !ok || got != "a" {
		t.Errorf("Clean = %q, %v; want %q, true", got, ok, "a")
	}
	if got, ok := c.Clean("[music]"); !ok || got != "[music]" {
		t.Errorf("Clean([music]) = %q, %v; want marker kept with custom list", got, ok)
	}
	if c.MinChars() != 1 {
		t.Errorf("MinChars() = %d, want 1", c.MinChars())
	}
}

func TestCleaner_WithMinChars(t *testing.T) {
	t.Parallel()

	base := transcript.NewCleaner(transcript.WithMarkers("<noise>"))
	c := base.WithMinChars(1)

	if got, ok := c.Clean("a <noise>"); !ok || got != "a" {
		t.Errorf("Clean = %q, %v; want custom marker stripped and %q kept", got, ok, "a")
	}
	if got, ok := c.Clean("[music]"); !ok || got != "[music]" {
		t.Errorf("Clean([music]) = %q, %v; want the default list still replaced", got, ok)
	}
	if base.MinChars() != transcript.DefaultMinChars {
		t.Errorf("base MinChars() = %d, want %d unchanged", base.MinChars(), transcript.DefaultMinChars)
	}
	if _, ok := base.Clean("a <noise>"); ok {
		t.Error("base cleaner kept a one-character transcript")
	}
}
