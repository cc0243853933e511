// Package openai provides an embeddings provider backed by the OpenAI API.
//
// Verse index builds send tens of thousands of texts; EmbedBatch splits them
// into requests of at most [MaxBatch] inputs, the API's per-request limit.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"

	"github.com/MrWong99/pulpit/pkg/provider/embeddings"
)

// DefaultModel is the default OpenAI embeddings model.
const DefaultModel = oai.EmbeddingModelTextEmbedding3Small

// MaxBatch is the largest number of inputs sent in one request.
const MaxBatch = 2048

var _ embeddings.Provider = (*Provider)(nil)

// Provider implements embeddings.Provider using the OpenAI API.
type Provider struct {
	client     oai.Client
	model      string
	dimensions int
	batch      int
}

type config struct {
	baseURL      string
	organization string
	timeout      time.Duration
	dimensions   int
	batch        int
}

// Option is a functional option for Provider.
type Option func(*config)

// WithBaseURL overrides the API base URL, for OpenAI-compatible servers.
func WithBaseURL(url string) Option {
	return func(c *config) { c.baseURL = url }
}

// WithOrganization sets the OpenAI organization ID on all requests.
func WithOrganization(org string) Option {
	return func(c *config) { c.organization = org }
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) { c.timeout = d }
}

// WithDimensions asks the text-embedding-3 models for shortened vectors of n
// dimensions. Smaller vectors shrink the verse matrix at some cost in recall.
func WithDimensions(n int) Option {
	return func(c *config) { c.dimensions = n }
}

// WithBatchSize caps the number of inputs per request (default and maximum
// [MaxBatch]).
func WithBatchSize(n int) Option {
	return func(c *config) { c.batch = n }
}

// New constructs an OpenAI embeddings Provider. If model is empty,
// DefaultModel is used.
func New(apiKey string, model string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("openai embeddings: apiKey must not be empty")
	}
	if model == "" {
		model = DefaultModel
	}
	cfg := &config{batch: MaxBatch}
	for _, o := range opts {
		o(cfg)
	}
	if cfg.batch <= 0 || cfg.batch > MaxBatch {
		cfg.batch = MaxBatch
	}

	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.organization != "" {
		reqOpts = append(reqOpts, option.WithOrganization(cfg.organization))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{Timeout: cfg.timeout}))
	}

	return &Provider{
		client:     oai.NewClient(reqOpts...),
		model:      model,
		dimensions: cfg.dimensions,
		batch:      cfg.batch,
	}, nil
}

func (p *Provider) params(input oai.EmbeddingNewParamsInputUnion) oai.EmbeddingNewParams {
	params := oai.EmbeddingNewParams{Model: p.model, Input: input}
	if p.dimensions > 0 {
		params.Dimensions = param.NewOpt(int64(p.dimensions))
	}
	return params
}

// Embed implements embeddings.Provider.
func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := p.client.Embeddings.New(ctx, p.params(oai.EmbeddingNewParamsInputUnion{
		OfString: param.NewOpt(text),
	}))
	if err != nil {
		return nil, fmt.Errorf("openai embeddings: embed: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, errors.New("openai embeddings: empty response")
	}
	return float64ToFloat32(resp.Data[0].Embedding), nil
}

// EmbedBatch implements embeddings.Provider.
func (p *Provider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	result := make([][]float32, len(texts))
	for lo := 0; lo < len(texts); lo += p.batch {
		hi := min(lo+p.batch, len(texts))
		resp, err := p.client.Embeddings.New(ctx, p.params(oai.EmbeddingNewParamsInputUnion{
			OfArrayOfStrings: texts[lo:hi],
		}))
		if err != nil {
			return nil, fmt.Errorf("openai embeddings: embed batch %d-%d: %w", lo, hi, err)
		}
		if len(resp.Data) != hi-lo {
			return nil, fmt.Errorf("openai embeddings: expected %d embeddings, got %d", hi-lo, len(resp.Data))
		}
		for _, e := range resp.Data {
			if e.Index < 0 || int(e.Index) >= hi-lo {
				return nil, fmt.Errorf("openai embeddings: unexpected index %d", e.Index)
			}
			result[lo+int(e.Index)] = float64ToFloat32(e.Embedding)
		}
	}
	return result, nil
}

// Dimensions implements embeddings.Provider.
func (p *Provider) Dimensions() int {
	if p.dimensions > 0 {
		return p.dimensions
	}
	return modelDimensions(p.model)
}

// ModelID implements embeddings.Provider.
func (p *Provider) ModelID() string { return p.model }

func modelDimensions(model string) int {
	if strings.Contains(strings.ToLower(model), "text-embedding-3-large") {
		return 3072
	}
	// text-embedding-3-small, ada-002 and unknown models.
	return 1536
}

func float64ToFloat32(in []float64) []float32 {
	out := make([]float32, len(in))
	for i, v := range in {
		out[i] = float32(v)
	}
	return out
}
