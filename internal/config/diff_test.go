package config_test

import (
	"slices"
	"testing"

	"github.com/MrWong99/pulpit/internal/config"
)

func TestDiff_NoChanges(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	d := config.Diff(cfg, cfg)
	if d.HasChanges() {
		t.Errorf("expected no changes for identical configs, got %+v", d)
	}
	if len(d.RestartRequired) != 0 {
		t.Errorf("expected no restart sections, got %v", d.RestartRequired)
	}
}

func TestDiff_LogLevelChanged(t *testing.T) {
	t.Parallel()
	old := validConfig()
	new := validConfig()
	new.Server.LogLevel = config.LogDebug

	d := config.Diff(old, new)
	if !d.LogLevelChanged {
		t.Error("expected LogLevelChanged=true")
	}
	if d.NewLogLevel != config.LogDebug {
		t.Errorf("expected NewLogLevel=debug, got %q", d.NewLogLevel)
	}
	if d.StreamChanged || d.ResolveChanged {
		t.Errorf("unexpected extra changes: %+v", d)
	}
}

func TestDiff_HotReloadable(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name        string
		mutate      func(*config.Config)
		wantStream  bool
		wantResolve bool
	}{
		{"window size", func(c *config.Config) { c.Stream.WindowSize = 16000 }, true, false},
		{"overlap", func(c *config.Config) { c.Stream.Overlap = intp(2000) }, true, false},
		{"min transcript chars", func(c *config.Config) { c.Stream.MinTranscriptChars = 10 }, true, false},
		{"threshold", func(c *config.Config) { c.Semantic.Threshold = 0.7 }, false, true},
		{"top k", func(c *config.Config) { c.Semantic.TopK = 1 }, false, true},
		{"fallback", func(c *config.Config) { c.Semantic.FallbackFullText = true }, false, true},
		{"paraphrase", func(c *config.Config) { c.Paraphrase.MinWords = 8 }, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			old := validConfig()
			new := validConfig()
			tt.mutate(new)
			d := config.Diff(old, new)
			if d.StreamChanged != tt.wantStream {
				t.Errorf("StreamChanged = %v, want %v", d.StreamChanged, tt.wantStream)
			}
			if d.ResolveChanged != tt.wantResolve {
				t.Errorf("ResolveChanged = %v, want %v", d.ResolveChanged, tt.wantResolve)
			}
			if len(d.RestartRequired) != 0 {
				t.Errorf("RestartRequired = %v, want none", d.RestartRequired)
			}
		})
	}
}

func TestDiff_RestartRequired(t *testing.T) {
	t.Parallel()
	old := validConfig()
	new := validConfig()
	new.Server.ListenAddr = ":9999"
	new.Providers.STT = []config.ProviderEntry{{Name: "openai"}}
	new.Phonetic.Enabled = true

	d := config.Diff(old, new)
	if d.HasChanges() {
		t.Errorf("startup-only changes reported as hot-reloadable: %+v", d)
	}
	for _, want := range []string{"server.listen_addr", "providers.stt", "phonetic"} {
		if !slices.Contains(d.RestartRequired, want) {
			t.Errorf("RestartRequired = %v, missing %q", d.RestartRequired, want)
		}
	}
	if slices.Contains(d.RestartRequired, "providers.embeddings") {
		t.Errorf("embeddings unchanged but listed: %v", d.RestartRequired)
	}
}
