// Package config provides the configuration schema, loader, provider registry
// and file watcher for the pulpit server.
package config

import "time"

// LogLevel controls log verbosity for the pulpit server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// BibleStore selects where verse text is kept.
type BibleStore string

const (
	// BibleStoreMemory loads the translations from JSON files at startup.
	BibleStoreMemory BibleStore = "memory"

	// BibleStorePostgres reads verses from a PostgreSQL database.
	BibleStorePostgres BibleStore = "postgres"
)

// IsValid reports whether s is a recognised store kind.
func (s BibleStore) IsValid() bool {
	return s == BibleStoreMemory || s == BibleStorePostgres
}

// SemanticBackend selects where verse embeddings are searched.
type SemanticBackend string

const (
	// SemanticMemory scans an in-process embedding matrix loaded from disk.
	SemanticMemory SemanticBackend = "memory"

	// SemanticPgvector queries the pgvector column of the postgres store.
	SemanticPgvector SemanticBackend = "pgvector"
)

// IsValid reports whether b is a recognised semantic backend.
func (b SemanticBackend) IsValid() bool {
	return b == SemanticMemory || b == SemanticPgvector
}

// Config is the root configuration structure for pulpit.
type Config struct {
	// Server configures the HTTP/WebSocket listener.
	Server ServerConfig `yaml:"server"`

	// Providers selects the speech and embedding backends.
	Providers ProvidersConfig `yaml:"providers"`

	// Bible configures the verse store.
	Bible BibleConfig `yaml:"bible"`

	// Semantic configures paraphrase matching against verse embeddings.
	Semantic SemanticConfig `yaml:"semantic"`

	// Stream tunes the live audio window.
	Stream StreamConfig `yaml:"stream"`

	// Paraphrase tunes the quote and paraphrase detector.
	Paraphrase ParaphraseConfig `yaml:"paraphrase"`

	// Phonetic configures correction of misheard book names.
	Phonetic PhoneticConfig `yaml:"phonetic"`

	// Announce configures where resolved verses are published.
	Announce AnnounceConfig `yaml:"announce"`
}

// ServerConfig holds network and logging settings for the server.
type ServerConfig struct {
	// ListenAddr is the TCP address to listen on (e.g., ":8000").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls log verbosity. Valid values: debug, info, warn, error.
	LogLevel LogLevel `yaml:"log_level"`

	// ShutdownTimeout bounds graceful shutdown of open connections.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// MaxUploadBytes caps the size of uploaded audio files.
	MaxUploadBytes int64 `yaml:"max_upload_bytes"`

	// MCP mounts the MCP tool server at /mcp when true.
	MCP bool `yaml:"mcp"`

	// TLS enables HTTPS when set. Both CertFile and KeyFile must be provided.
	TLS *TLSConfig `yaml:"tls"`
}

// TLSConfig holds TLS certificate paths for enabling HTTPS.
type TLSConfig struct {
	// CertFile is the path to the PEM-encoded TLS certificate.
	CertFile string `yaml:"cert_file"`

	// KeyFile is the path to the PEM-encoded TLS private key.
	KeyFile string `yaml:"key_file"`
}

// ProvidersConfig declares the provider chain for each stage. The first entry
// of a list is the primary; later entries are fallbacks tried in order when
// the primary fails or its circuit breaker is open.
type ProvidersConfig struct {
	STT        []ProviderEntry `yaml:"stt"`
	Embeddings []ProviderEntry `yaml:"embeddings"`
}

// ProviderEntry is the common configuration block shared by all provider types.
// The Name field is used to look up the constructor in the [Registry].
type ProviderEntry struct {
	// Name selects the registered provider implementation (e.g., "whisper", "ollama").
	Name string `yaml:"name"`

	// APIKey is the authentication key for the provider's API if any.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint.
	// Leave empty to use the provider's built-in default.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider
	// (e.g., "ggml-base.en.bin", "all-minilm").
	Model string `yaml:"model"`

	// Options holds provider-specific configuration values not covered by the
	// common fields (e.g., "language", "dimensions").
	Options map[string]any `yaml:"options"`
}

// BibleConfig configures where verses come from.
type BibleConfig struct {
	// Store selects the verse store. Default: memory.
	Store BibleStore `yaml:"store"`

	// Sources maps a version code (e.g., "KJV") to a JSON file in the
	// book → chapter → verse layout. Used by the memory store and by import.
	Sources map[string]string `yaml:"sources"`

	// PostgresDSN is the connection string for the postgres store.
	PostgresDSN string `yaml:"postgres_dsn"`

	// Versions restricts which loaded versions are served. Empty serves all.
	Versions []string `yaml:"versions"`

	// DefaultVersion is the version used when a request does not name one.
	DefaultVersion string `yaml:"default_version"`
}

// SemanticConfig configures semantic matching.
type SemanticConfig struct {
	// Backend selects the vector search backend. Default: memory.
	Backend SemanticBackend `yaml:"backend"`

	// EmbeddingsPath is the .npy matrix of verse embeddings (memory backend).
	EmbeddingsPath string `yaml:"embeddings_path"`

	// IndexPath is the JSON list of verse IDs matching the matrix rows.
	IndexPath string `yaml:"index_path"`

	// TopK is the number of matches kept per paraphrase. Default: 3.
	TopK int `yaml:"top_k"`

	// Threshold is the minimum cosine similarity of a match. Default: 0.5.
	Threshold float64 `yaml:"threshold"`

	// FallbackFullText matches the whole transcript when nothing else matched.
	FallbackFullText bool `yaml:"fallback_full_text"`

	// FallbackThreshold is the minimum similarity for that fallback.
	// Default: 0.45.
	FallbackThreshold float64 `yaml:"fallback_threshold"`
}

const defaultOverlap = 4000

// StreamConfig tunes the live audio window. Sizes are in samples.
type StreamConfig struct {
	// SampleRate of incoming PCM. Default: 16000.
	SampleRate int `yaml:"sample_rate"`

	// WindowSize triggers a transcription once this many samples are
	// buffered. Clamped to [8000, 48000]. Default: 32000.
	WindowSize int `yaml:"window_size"`

	// Overlap is the number of samples kept after a transcription. Nil
	// means the default of 4000; an explicit 0 keeps nothing.
	Overlap *int `yaml:"overlap"`

	// MinTranscriptChars drops transcripts shorter than this. Default: 4.
	MinTranscriptChars int `yaml:"min_transcript_chars"`

	// PausedKeep is how many samples a paused session retains. Default: 8000.
	PausedKeep int `yaml:"paused_keep"`
}

// OverlapSamples returns the configured overlap, or the default when unset.
func (s StreamConfig) OverlapSamples() int {
	if s.Overlap == nil {
		return defaultOverlap
	}
	return *s.Overlap
}

// ParaphraseConfig tunes the paraphrase detector.
type ParaphraseConfig struct {
	MinQuoteChars    int `yaml:"min_quote_chars"`
	MinSentenceChars int `yaml:"min_sentence_chars"`
	MinWords         int `yaml:"min_words"`
}

// PhoneticConfig configures misheard book name correction.
type PhoneticConfig struct {
	// Enabled turns on phonetic correction in the reference parser.
	Enabled bool `yaml:"enabled"`

	// PhoneticThreshold is the minimum Jaro-Winkler score for a phonetic
	// match. Default: 0.80.
	PhoneticThreshold float64 `yaml:"phonetic_threshold"`

	// FuzzyThreshold is the minimum score when no phonetic code overlaps.
	// Default: 0.90.
	FuzzyThreshold float64 `yaml:"fuzzy_threshold"`
}

// AnnounceConfig configures the sinks that receive resolved verses.
type AnnounceConfig struct {
	Discord DiscordConfig `yaml:"discord"`
	Remote  RemoteConfig  `yaml:"remote"`
}

// DiscordConfig posts resolved verses to a Discord channel when Token is set.
type DiscordConfig struct {
	Token     string `yaml:"token"`
	ChannelID string `yaml:"channel_id"`

	// RepeatWindow suppresses re-posting a verse seen within this duration.
	// Default: 2m.
	RepeatWindow time.Duration `yaml:"repeat_window"`
}

// RemoteConfig configures the /ws/remote viewer endpoint.
type RemoteConfig struct {
	// Disabled unmounts the viewer endpoint.
	Disabled bool `yaml:"disabled"`

	// PIN, when set, must be sent by viewers before they receive updates.
	PIN string `yaml:"pin"`
}

// ApplyDefaults fills zero-valued fields of cfg with their defaults.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = ":8000"
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}
	if cfg.Server.ShutdownTimeout <= 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}
	if cfg.Server.MaxUploadBytes <= 0 {
		cfg.Server.MaxUploadBytes = 64 << 20
	}

	if cfg.Bible.Store == "" {
		cfg.Bible.Store = BibleStoreMemory
	}

	if cfg.Semantic.Backend == "" {
		cfg.Semantic.Backend = SemanticMemory
	}
	if cfg.Semantic.TopK <= 0 {
		cfg.Semantic.TopK = 3
	}
	if cfg.Semantic.Threshold == 0 {
		cfg.Semantic.Threshold = 0.5
	}
	if cfg.Semantic.FallbackThreshold == 0 {
		cfg.Semantic.FallbackThreshold = 0.45
	}

	if cfg.Stream.SampleRate <= 0 {
		cfg.Stream.SampleRate = 16000
	}
	if cfg.Stream.WindowSize <= 0 {
		cfg.Stream.WindowSize = 32000
	}
	if cfg.Stream.Overlap == nil {
		n := defaultOverlap
		cfg.Stream.Overlap = &n
	}
	if cfg.Stream.MinTranscriptChars <= 0 {
		cfg.Stream.MinTranscriptChars = 4
	}
	if cfg.Stream.PausedKeep <= 0 {
		cfg.Stream.PausedKeep = 8000
	}

	if cfg.Paraphrase.MinQuoteChars <= 0 {
		cfg.Paraphrase.MinQuoteChars = 20
	}
	if cfg.Paraphrase.MinSentenceChars <= 0 {
		cfg.Paraphrase.MinSentenceChars = 30
	}
	if cfg.Paraphrase.MinWords <= 0 {
		cfg.Paraphrase.MinWords = 5
	}

	if cfg.Phonetic.PhoneticThreshold == 0 {
		cfg.Phonetic.PhoneticThreshold = 0.80
	}
	if cfg.Phonetic.FuzzyThreshold == 0 {
		cfg.Phonetic.FuzzyThreshold = 0.90
	}

	if cfg.Announce.Discord.RepeatWindow <= 0 {
		cfg.Announce.Discord.RepeatWindow = 2 * time.Minute
	}
}
