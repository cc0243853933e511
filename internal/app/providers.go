package app

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/MrWong99/pulpit/internal/config"
	"github.com/MrWong99/pulpit/internal/resilience"
	"github.com/MrWong99/pulpit/pkg/provider/embeddings"
	ollamaembed "github.com/MrWong99/pulpit/pkg/provider/embeddings/ollama"
	oaembed "github.com/MrWong99/pulpit/pkg/provider/embeddings/openai"
	"github.com/MrWong99/pulpit/pkg/provider/stt"
	oastt "github.com/MrWong99/pulpit/pkg/provider/stt/openai"
	"github.com/MrWong99/pulpit/pkg/provider/stt/whisper"
)

// Providers holds the constructed backends. A nil field means the stage is
// not configured: transcription endpoints then report speech as unavailable
// and semantic matching is disabled.
type Providers struct {
	// STT is the recogniser chain, serialised so that one inference runs at
	// a time.
	STT stt.Provider

	// STTModel describes the primary recogniser for the status endpoint.
	STTModel string

	// Embeddings is the embedding chain, serialised like STT.
	Embeddings embeddings.Provider

	closers []io.Closer
}

// Close releases providers that hold native resources.
func (p *Providers) Close() error {
	var errs []error
	for _, c := range p.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

// RegisterBuiltins wires every provider implementation shipped with pulpit
// into reg.
func RegisterBuiltins(reg *config.Registry) {
	reg.RegisterSTT("whisper", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []whisper.Option
		if entry.Model != "" {
			opts = append(opts, whisper.WithModel(entry.Model))
		}
		if lang := optString(entry.Options, "language"); lang != "" {
			opts = append(opts, whisper.WithLanguage(lang))
		}
		return whisper.New(entry.BaseURL, opts...)
	})

	reg.RegisterSTT("whisper-native", func(entry config.ProviderEntry) (stt.Provider, error) {
		modelPath := entry.Model
		if modelPath == "" {
			modelPath = optString(entry.Options, "model_path")
		}
		var opts []whisper.NativeOption
		if lang := optString(entry.Options, "language"); lang != "" {
			opts = append(opts, whisper.WithNativeLanguage(lang))
		}
		if n := optInt(entry.Options, "threads"); n > 0 {
			opts = append(opts, whisper.WithNativeThreads(uint(n)))
		}
		return whisper.NewNative(modelPath, opts...)
	})

	reg.RegisterSTT("openai", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []oastt.Option
		if entry.BaseURL != "" {
			opts = append(opts, oastt.WithBaseURL(entry.BaseURL))
		}
		if lang := optString(entry.Options, "language"); lang != "" {
			opts = append(opts, oastt.WithLanguage(lang))
		}
		if prompt := optString(entry.Options, "prompt"); prompt != "" {
			opts = append(opts, oastt.WithPrompt(prompt))
		}
		return oastt.New(entry.APIKey, entry.Model, opts...)
	})

	reg.RegisterEmbeddings("openai", func(entry config.ProviderEntry) (embeddings.Provider, error) {
		var opts []oaembed.Option
		if entry.BaseURL != "" {
			opts = append(opts, oaembed.WithBaseURL(entry.BaseURL))
		}
		if n := optInt(entry.Options, "dimensions"); n > 0 {
			opts = append(opts, oaembed.WithDimensions(n))
		}
		if n := optInt(entry.Options, "batch_size"); n > 0 {
			opts = append(opts, oaembed.WithBatchSize(n))
		}
		return oaembed.New(entry.APIKey, entry.Model, opts...)
	})

	reg.RegisterEmbeddings("ollama", func(entry config.ProviderEntry) (embeddings.Provider, error) {
		var opts []ollamaembed.Option
		if n := optInt(entry.Options, "dimensions"); n > 0 {
			opts = append(opts, ollamaembed.WithDimensions(n))
		}
		q, d := optString(entry.Options, "query_prefix"), optString(entry.Options, "document_prefix")
		if q != "" || d != "" {
			opts = append(opts, ollamaembed.WithPrefixes(q, d))
		}
		return ollamaembed.New(entry.BaseURL, entry.Model, opts...)
	})

	slog.Debug("registered providers", "stt", reg.STTNames(), "embeddings", reg.EmbeddingsNames())
}

// BuildProviders instantiates the provider chains named in cfg. The first
// entry of each list is the primary; further entries become fallbacks behind
// per-provider circuit breakers.
func BuildProviders(cfg config.ProvidersConfig, reg *config.Registry) (*Providers, error) {
	ps := &Providers{}
	fb := resilience.FallbackConfig{}

	if len(cfg.STT) > 0 {
		var chain *resilience.STTFallback
		var single stt.Provider
		for i, entry := range cfg.STT {
			p, err := reg.CreateSTT(entry)
			if err != nil {
				ps.Close()
				return nil, fmt.Errorf("create stt provider %q: %w", entry.Name, err)
			}
			if c, ok := p.(io.Closer); ok {
				ps.closers = append(ps.closers, c)
			}
			slog.Info("provider created", "kind", "stt", "name", entry.Name, "model", entry.Model, "fallback", i > 0)
			switch {
			case i == 0:
				single = p
			case chain == nil:
				chain = resilience.NewSTTFallback(single, cfg.STT[0].Name, fb)
				chain.AddFallback(entry.Name, p)
			default:
				chain.AddFallback(entry.Name, p)
			}
		}
		if chain != nil {
			single = chain
		}
		ps.STT = stt.Serialize(single)
		ps.STTModel = describe(cfg.STT[0])
	}

	if len(cfg.Embeddings) > 0 {
		var chain *resilience.EmbeddingsFallback
		var single embeddings.Provider
		for i, entry := range cfg.Embeddings {
			p, err := reg.CreateEmbeddings(entry)
			if err != nil {
				ps.Close()
				return nil, fmt.Errorf("create embeddings provider %q: %w", entry.Name, err)
			}
			slog.Info("provider created", "kind", "embeddings", "name", entry.Name, "model", entry.Model, "fallback", i > 0)
			switch {
			case i == 0:
				single = p
			case chain == nil:
				chain = resilience.NewEmbeddingsFallback(single, cfg.Embeddings[0].Name, fb)
				chain.AddFallback(entry.Name, p)
			default:
				chain.AddFallback(entry.Name, p)
			}
		}
		if chain != nil {
			single = chain
		}
		ps.Embeddings = embeddings.Serialize(single)
	}

	return ps, nil
}

func describe(e config.ProviderEntry) string {
	if e.Model == "" {
		return e.Name
	}
	return e.Name + "/" + e.Model
}

// optString extracts a string value from a provider Options map.
// Returns "" if the map is nil, the key is absent, or the value is not a string.
func optString(opts map[string]any, key string) string {
	s, _ := opts[key].(string)
	return s
}

// optInt extracts an integer value from a provider Options map. YAML
// decodes whole numbers as int; floats are truncated.
func optInt(opts map[string]any, key string) int {
	switch v := opts[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}
