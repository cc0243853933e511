package config_test

import (
	"strings"
	"testing"
	"time"

	"github.com/MrWong99/pulpit/internal/config"
)

func validConfig() *config.Config {
	cfg := &config.Config{
		Providers: config.ProvidersConfig{
			STT:        []config.ProviderEntry{{Name: "whisper"}},
			Embeddings: []config.ProviderEntry{{Name: "ollama"}},
		},
		Bible: config.BibleConfig{Sources: map[string]string{"KJV": "kjv.json"}},
	}
	config.ApplyDefaults(cfg)
	return cfg
}

func TestValidate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr string
	}{
		{
			name:   "valid",
			mutate: func(*config.Config) {},
		},
		{
			name:    "bad log level",
			mutate:  func(c *config.Config) { c.Server.LogLevel = "verbose" },
			wantErr: "server.log_level",
		},
		{
			name:    "tls without key",
			mutate:  func(c *config.Config) { c.Server.TLS = &config.TLSConfig{CertFile: "c.pem"} },
			wantErr: "server.tls",
		},
		{
			name:    "stt entry without name",
			mutate:  func(c *config.Config) { c.Providers.STT = append(c.Providers.STT, config.ProviderEntry{}) },
			wantErr: "providers.stt[1].name",
		},
		{
			name:    "unknown store",
			mutate:  func(c *config.Config) { c.Bible.Store = "sqlite" },
			wantErr: "bible.store",
		},
		{
			name:    "postgres without dsn",
			mutate:  func(c *config.Config) { c.Bible.Store = config.BibleStorePostgres },
			wantErr: "bible.postgres_dsn",
		},
		{
			name: "default version not listed",
			mutate: func(c *config.Config) {
				c.Bible.Versions = []string{"KJV"}
				c.Bible.DefaultVersion = "WEB"
			},
			wantErr: "bible.default_version",
		},
		{
			name:    "pgvector on memory store",
			mutate:  func(c *config.Config) { c.Semantic.Backend = config.SemanticPgvector },
			wantErr: "requires bible.store postgres",
		},
		{
			name: "pgvector on postgres store",
			mutate: func(c *config.Config) {
				c.Bible.Store = config.BibleStorePostgres
				c.Bible.PostgresDSN = "postgres://localhost/pulpit"
				c.Semantic.Backend = config.SemanticPgvector
			},
		},
		{
			name:    "threshold out of range",
			mutate:  func(c *config.Config) { c.Semantic.Threshold = 1.5 },
			wantErr: "semantic.threshold",
		},
		{
			name:    "embeddings path without index",
			mutate:  func(c *config.Config) { c.Semantic.EmbeddingsPath = "e.npy" },
			wantErr: "must be set together",
		},
		{
			name:    "window too small",
			mutate:  func(c *config.Config) { c.Stream.WindowSize = 4000; c.Stream.Overlap = intp(100) },
			wantErr: "stream.window_size",
		},
		{
			name:    "overlap not below window",
			mutate:  func(c *config.Config) { c.Stream.Overlap = intp(c.Stream.WindowSize) },
			wantErr: "stream.overlap",
		},
		{
			name:    "phonetic threshold out of range",
			mutate:  func(c *config.Config) { c.Phonetic.FuzzyThreshold = 2 },
			wantErr: "phonetic.fuzzy_threshold",
		},
		{
			name:    "discord token without channel",
			mutate:  func(c *config.Config) { c.Announce.Discord.Token = "t" },
			wantErr: "announce.discord.channel_id",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := validConfig()
			tt.mutate(cfg)
			err := config.Validate(cfg)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate: unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate: expected error containing %q, got nil", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate error = %q, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_JoinsAllErrors(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.Server.LogLevel = "loud"
	cfg.Bible.Store = "cloud"
	cfg.Semantic.Backend = "faiss"

	err := config.Validate(cfg)
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	for _, want := range []string{"server.log_level", "bible.store", "semantic.backend"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("joined error %q is missing %q", err, want)
		}
	}
}

func TestValidate_UnknownProviderOnlyWarns(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.Providers.STT = []config.ProviderEntry{{Name: "deepgram"}}
	if err := config.Validate(cfg); err != nil {
		t.Errorf("unknown provider name should only warn, got %v", err)
	}
}

func TestApplyDefaults_KeepsExplicitValues(t *testing.T) {
	t.Parallel()
	cfg := &config.Config{
		Server: config.ServerConfig{ListenAddr: ":1", ShutdownTimeout: time.Second},
		Stream: config.StreamConfig{WindowSize: 16000, Overlap: intp(1000)},
	}
	config.ApplyDefaults(cfg)

	if cfg.Server.ListenAddr != ":1" {
		t.Errorf("listen_addr = %q, want :1", cfg.Server.ListenAddr)
	}
	if cfg.Server.ShutdownTimeout != time.Second {
		t.Errorf("shutdown_timeout = %v, want 1s", cfg.Server.ShutdownTimeout)
	}
	if cfg.Stream.WindowSize != 16000 || cfg.Stream.OverlapSamples() != 1000 {
		t.Errorf("stream = %+v, want window 16000 overlap 1000", cfg.Stream)
	}
	if cfg.Stream.SampleRate != 16000 {
		t.Errorf("sample_rate = %d, want default 16000", cfg.Stream.SampleRate)
	}
}
