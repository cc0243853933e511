package config_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/MrWong99/pulpit/internal/config"
	"github.com/MrWong99/pulpit/pkg/provider/embeddings"
	embmock "github.com/MrWong99/pulpit/pkg/provider/embeddings/mock"
	"github.com/MrWong99/pulpit/pkg/provider/stt"
	sttmock "github.com/MrWong99/pulpit/pkg/provider/stt/mock"
)

const sampleYAML = `
server:
  listen_addr: ":9000"
  log_level: debug
  shutdown_timeout: 5s
  mcp: true

providers:
  stt:
    - name: whisper-native
      model: /models/ggml-base.en.bin
      options:
        language: en
    - name: openai
      api_key: sk-test
      model: whisper-1
  embeddings:
    - name: ollama
      base_url: http://localhost:11434
      model: all-minilm

bible:
  store: memory
  sources:
    KJV: data/kjv.json
  versions: [KJV]
  default_version: KJV

semantic:
  embeddings_path: data/embeddings.npy
  index_path: data/index.json
  top_k: 5
  threshold: 0.6
  fallback_full_text: true

stream:
  window_size: 24000
  overlap: 2000

paraphrase:
  min_words: 6

phonetic:
  enabled: true

announce:
  discord:
    token: bot-token
    channel_id: "123"
  remote:
    pin: "4242"
`

func TestLoadFromReader_Sample(t *testing.T) {
	t.Parallel()
	cfg, err := config.LoadFromReader(strings.NewReader(sampleYAML))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}

	if cfg.Server.ListenAddr != ":9000" {
		t.Errorf("listen_addr = %q, want :9000", cfg.Server.ListenAddr)
	}
	if cfg.Server.LogLevel != config.LogDebug {
		t.Errorf("log_level = %q, want debug", cfg.Server.LogLevel)
	}
	if cfg.Server.ShutdownTimeout != 5*time.Second {
		t.Errorf("shutdown_timeout = %v, want 5s", cfg.Server.ShutdownTimeout)
	}
	if !cfg.Server.MCP {
		t.Error("server.mcp = false, want true")
	}
	if len(cfg.Providers.STT) != 2 || cfg.Providers.STT[1].Name != "openai" {
		t.Errorf("providers.stt = %+v, want whisper-native then openai", cfg.Providers.STT)
	}
	if got := cfg.Providers.STT[0].Options["language"]; got != "en" {
		t.Errorf("stt[0].options.language = %v, want en", got)
	}
	if cfg.Bible.Sources["KJV"] != "data/kjv.json" {
		t.Errorf("bible.sources = %v", cfg.Bible.Sources)
	}
	if cfg.Semantic.TopK != 5 || cfg.Semantic.Threshold != 0.6 || !cfg.Semantic.FallbackFullText {
		t.Errorf("semantic = %+v", cfg.Semantic)
	}
	if cfg.Stream.WindowSize != 24000 || cfg.Stream.OverlapSamples() != 2000 {
		t.Errorf("stream = %+v", cfg.Stream)
	}
	if cfg.Paraphrase.MinWords != 6 || cfg.Paraphrase.MinQuoteChars != 20 {
		t.Errorf("paraphrase = %+v, want min_words 6 and default quote length", cfg.Paraphrase)
	}
	if !cfg.Phonetic.Enabled || cfg.Phonetic.PhoneticThreshold != 0.80 {
		t.Errorf("phonetic = %+v", cfg.Phonetic)
	}
	if cfg.Announce.Discord.ChannelID != "123" || cfg.Announce.Remote.PIN != "4242" {
		t.Errorf("announce = %+v", cfg.Announce)
	}
}

func TestLoadFromReader_EmptyUsesDefaults(t *testing.T) {
	t.Parallel()
	cfg, err := config.LoadFromReader(strings.NewReader(""))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}

	tests := []struct {
		name string
		got  any
		want any
	}{
		{"listen_addr", cfg.Server.ListenAddr, ":8000"},
		{"log_level", cfg.Server.LogLevel, config.LogInfo},
		{"bible.store", cfg.Bible.Store, config.BibleStoreMemory},
		{"semantic.backend", cfg.Semantic.Backend, config.SemanticMemory},
		{"semantic.top_k", cfg.Semantic.TopK, 3},
		{"semantic.threshold", cfg.Semantic.Threshold, 0.5},
		{"semantic.fallback_threshold", cfg.Semantic.FallbackThreshold, 0.45},
		{"stream.sample_rate", cfg.Stream.SampleRate, 16000},
		{"stream.window_size", cfg.Stream.WindowSize, 32000},
		{"stream.overlap", cfg.Stream.OverlapSamples(), 4000},
		{"stream.paused_keep", cfg.Stream.PausedKeep, 8000},
		{"announce.discord.repeat_window", cfg.Announce.Discord.RepeatWindow, 2 * time.Minute},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
		}
	}
}

func TestLoadFromReader_UnknownField(t *testing.T) {
	t.Parallel()
	_, err := config.LoadFromReader(strings.NewReader("server:\n  listen: \":1\"\n"))
	if err == nil {
		t.Fatal("expected error for unknown field, got nil")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()
	_, err := config.Load("/nonexistent/pulpit.yaml")
	if err == nil {
		t.Fatal("expected error for missing file, got nil")
	}
}

func intp(n int) *int { return &n }

func TestLoadFromReader_Overlap(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		yaml string
		want int
	}{
		{"omitted", "stream:\n  window_size: 32000\n", 4000},
		{"explicit zero", "stream:\n  window_size: 32000\n  overlap: 0\n", 0},
		{"explicit value", "stream:\n  overlap: 16000\n", 16000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg, err := config.LoadFromReader(strings.NewReader(tt.yaml))
			if err != nil {
				t.Fatalf("LoadFromReader: %v", err)
			}
			if got := cfg.Stream.OverlapSamples(); got != tt.want {
				t.Errorf("overlap = %d, want %d", got, tt.want)
			}
		})
	}

	// Turning overlap off is a hot-reloadable stream change.
	old, _ := config.LoadFromReader(strings.NewReader(""))
	off, _ := config.LoadFromReader(strings.NewReader("stream:\n  overlap: 0\n"))
	if d := config.Diff(old, off); !d.StreamChanged {
		t.Errorf("Diff(4000 -> 0) = %+v, want StreamChanged", d)
	}
}

func TestLoad_ShippedExample(t *testing.T) {
	t.Parallel()
	cfg, err := config.Load("../../configs/example.yaml")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := cfg.Providers.STT[0].Name; got != "whisper-native" {
		t.Errorf("first stt provider = %q, want whisper-native", got)
	}
	if got := cfg.Bible.Sources["KJV"]; got != "data/kjv.json" {
		t.Errorf("KJV source = %q", got)
	}
	if cfg.Announce.Discord.RepeatWindow != 2*time.Minute {
		t.Errorf("repeat_window = %v, want 2m default", cfg.Announce.Discord.RepeatWindow)
	}
}

func TestRegistry_CreateSTT(t *testing.T) {
	t.Parallel()
	reg := config.NewRegistry()
	want := &sttmock.Provider{}
	var gotEntry config.ProviderEntry
	reg.RegisterSTT("whisper", func(e config.ProviderEntry) (stt.Provider, error) {
		gotEntry = e
		return want, nil
	})

	p, err := reg.CreateSTT(config.ProviderEntry{Name: "whisper", Model: "base"})
	if err != nil {
		t.Fatalf("CreateSTT: %v", err)
	}
	if p != want {
		t.Error("CreateSTT returned a different provider than the factory")
	}
	if gotEntry.Model != "base" {
		t.Errorf("factory entry model = %q, want base", gotEntry.Model)
	}
}

func TestRegistry_NotRegistered(t *testing.T) {
	t.Parallel()
	reg := config.NewRegistry()

	_, err := reg.CreateSTT(config.ProviderEntry{Name: "missing"})
	if !errors.Is(err, config.ErrProviderNotRegistered) {
		t.Errorf("CreateSTT err = %v, want ErrProviderNotRegistered", err)
	}
	_, err = reg.CreateEmbeddings(config.ProviderEntry{Name: "missing"})
	if !errors.Is(err, config.ErrProviderNotRegistered) {
		t.Errorf("CreateEmbeddings err = %v, want ErrProviderNotRegistered", err)
	}
}

func TestRegistry_FactoryError(t *testing.T) {
	t.Parallel()
	reg := config.NewRegistry()
	boom := errors.New("boom")
	reg.RegisterEmbeddings("ollama", func(config.ProviderEntry) (embeddings.Provider, error) {
		return nil, boom
	})
	if _, err := reg.CreateEmbeddings(config.ProviderEntry{Name: "ollama"}); !errors.Is(err, boom) {
		t.Errorf("err = %v, want boom", err)
	}
}

func TestRegistry_Names(t *testing.T) {
	t.Parallel()
	reg := config.NewRegistry()
	for _, name := range []string{"whisper", "openai", "whisper-native"} {
		reg.RegisterSTT(name, func(config.ProviderEntry) (stt.Provider, error) { return &sttmock.Provider{}, nil })
	}
	reg.RegisterEmbeddings("ollama", func(config.ProviderEntry) (embeddings.Provider, error) {
		return &embmock.Provider{}, nil
	})

	got := strings.Join(reg.STTNames(), ",")
	if got != "openai,whisper,whisper-native" {
		t.Errorf("STTNames = %q", got)
	}
	if names := reg.EmbeddingsNames(); len(names) != 1 || names[0] != "ollama" {
		t.Errorf("EmbeddingsNames = %v", names)
	}

	p, err := reg.CreateEmbeddings(config.ProviderEntry{Name: "ollama"})
	if err != nil {
		t.Fatalf("CreateEmbeddings: %v", err)
	}
	if _, err := p.Embed(context.Background(), "grace"); err != nil {
		t.Errorf("Embed: %v", err)
	}
}
