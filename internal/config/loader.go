package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"stt":        {"whisper", "whisper-native", "openai"},
	"embeddings": {"openai", "ollama"},
}

// Load reads the YAML configuration file at path, applies defaults and
// returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults and
// validates the result. An empty document yields the default config.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if tls := cfg.Server.TLS; tls != nil && (tls.CertFile == "" || tls.KeyFile == "") {
		errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
	}

	// Providers
	for i, p := range cfg.Providers.STT {
		if p.Name == "" {
			errs = append(errs, fmt.Errorf("providers.stt[%d].name is required", i))
			continue
		}
		validateProviderName("stt", p.Name)
	}
	for i, p := range cfg.Providers.Embeddings {
		if p.Name == "" {
			errs = append(errs, fmt.Errorf("providers.embeddings[%d].name is required", i))
			continue
		}
		validateProviderName("embeddings", p.Name)
	}
	if len(cfg.Providers.STT) == 0 {
		slog.Warn("no STT provider configured; transcription endpoints will report speech as unavailable")
	}

	// Bible
	if cfg.Bible.Store != "" && !cfg.Bible.Store.IsValid() {
		errs = append(errs, fmt.Errorf("bible.store %q is invalid; valid values: memory, postgres", cfg.Bible.Store))
	}
	if cfg.Bible.Store == BibleStorePostgres && cfg.Bible.PostgresDSN == "" {
		errs = append(errs, errors.New("bible.postgres_dsn is required when bible.store is postgres"))
	}
	if cfg.Bible.Store == BibleStoreMemory && len(cfg.Bible.Sources) == 0 {
		slog.Warn("bible.sources is empty; the memory store will hold no verses")
	}
	if dv := cfg.Bible.DefaultVersion; dv != "" && len(cfg.Bible.Versions) > 0 && !slices.Contains(cfg.Bible.Versions, dv) {
		errs = append(errs, fmt.Errorf("bible.default_version %q is not listed in bible.versions", dv))
	}

	// Semantic
	if cfg.Semantic.Backend != "" && !cfg.Semantic.Backend.IsValid() {
		errs = append(errs, fmt.Errorf("semantic.backend %q is invalid; valid values: memory, pgvector", cfg.Semantic.Backend))
	}
	if cfg.Semantic.Backend == SemanticPgvector && cfg.Bible.Store != BibleStorePostgres {
		errs = append(errs, errors.New("semantic.backend pgvector requires bible.store postgres"))
	}
	if cfg.Semantic.Threshold < -1 || cfg.Semantic.Threshold > 1 {
		errs = append(errs, fmt.Errorf("semantic.threshold %.2f is out of range [-1, 1]", cfg.Semantic.Threshold))
	}
	if cfg.Semantic.FallbackThreshold < -1 || cfg.Semantic.FallbackThreshold > 1 {
		errs = append(errs, fmt.Errorf("semantic.fallback_threshold %.2f is out of range [-1, 1]", cfg.Semantic.FallbackThreshold))
	}
	if cfg.Semantic.TopK < 0 {
		errs = append(errs, fmt.Errorf("semantic.top_k %d must not be negative", cfg.Semantic.TopK))
	}
	if (cfg.Semantic.EmbeddingsPath == "") != (cfg.Semantic.IndexPath == "") {
		errs = append(errs, errors.New("semantic.embeddings_path and semantic.index_path must be set together"))
	}
	if len(cfg.Providers.Embeddings) == 0 && (cfg.Semantic.EmbeddingsPath != "" || cfg.Semantic.Backend == SemanticPgvector) {
		slog.Warn("semantic index configured without an embeddings provider; semantic search will be unavailable")
	}

	// Stream
	if cfg.Stream.WindowSize != 0 && (cfg.Stream.WindowSize < 8000 || cfg.Stream.WindowSize > 48000) {
		errs = append(errs, fmt.Errorf("stream.window_size %d is out of range [8000, 48000]", cfg.Stream.WindowSize))
	}
	if ov := cfg.Stream.OverlapSamples(); ov < 0 || (cfg.Stream.WindowSize > 0 && ov >= cfg.Stream.WindowSize) {
		errs = append(errs, fmt.Errorf("stream.overlap %d must be in [0, window_size)", ov))
	}

	// Phonetic
	if v := cfg.Phonetic.PhoneticThreshold; v < 0 || v > 1 {
		errs = append(errs, fmt.Errorf("phonetic.phonetic_threshold %.2f is out of range [0, 1]", v))
	}
	if v := cfg.Phonetic.FuzzyThreshold; v < 0 || v > 1 {
		errs = append(errs, fmt.Errorf("phonetic.fuzzy_threshold %.2f is out of range [0, 1]", v))
	}

	// Announce
	if d := cfg.Announce.Discord; d.Token != "" && d.ChannelID == "" {
		errs = append(errs, errors.New("announce.discord.channel_id is required when a token is set"))
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name, may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
