// Package ollama provides an embeddings provider backed by a local Ollama
// server through its native POST /api/embed endpoint.
//
// Retrieval models such as nomic-embed-text expect task prefixes on their
// inputs ("search_query: " for questions, "search_document: " for the corpus).
// [WithPrefixes] configures them: Embed is used for paraphrase queries and
// gets the query prefix, EmbedBatch is used to build the verse index and gets
// the document prefix.
//
//	p, err := ollama.New("", "nomic-embed-text",
//	    ollama.WithPrefixes("search_query: ", "search_document: "))
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/MrWong99/pulpit/pkg/provider/embeddings"
)

// DefaultBaseURL is the base URL of a locally running Ollama instance.
const DefaultBaseURL = "http://localhost:11434"

var _ embeddings.Provider = (*Provider)(nil)

// Provider implements embeddings.Provider using an Ollama server.
//
// The vector length comes from WithDimensions, else from a table of known
// models, else from a single sample request issued on the first Dimensions
// call.
type Provider struct {
	baseURL     string
	model       string
	queryPrefix string
	docPrefix   string
	httpClient  *http.Client

	dimensions int
	detectOnce sync.Once
}

type config struct {
	timeout     time.Duration
	dimensions  int
	queryPrefix string
	docPrefix   string
}

// Option is a functional option for Provider.
type Option func(*config)

// WithTimeout sets a per-request HTTP timeout. Zero means no timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) { c.timeout = d }
}

// WithDimensions pre-sets the embedding dimension and skips the sample request.
func WithDimensions(dims int) Option {
	return func(c *config) { c.dimensions = dims }
}

// WithPrefixes sets the text prepended to query inputs (Embed) and document
// inputs (EmbedBatch).
func WithPrefixes(query, document string) Option {
	return func(c *config) {
		c.queryPrefix = query
		c.docPrefix = document
	}
}

// New constructs an Ollama Provider. An empty baseURL selects DefaultBaseURL;
// model must be set.
func New(baseURL string, model string, opts ...Option) (*Provider, error) {
	if model == "" {
		return nil, errors.New("ollama embeddings: model must not be empty")
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	cfg := &config{}
	for _, o := range opts {
		o(cfg)
	}
	p := &Provider{
		baseURL:     strings.TrimRight(baseURL, "/"),
		model:       model,
		queryPrefix: cfg.queryPrefix,
		docPrefix:   cfg.docPrefix,
		httpClient:  &http.Client{Timeout: cfg.timeout},
		dimensions:  cfg.dimensions,
	}
	if p.dimensions == 0 {
		p.dimensions = knownDimensions(model)
	}
	return p, nil
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Model      string      `json:"model"`
	Embeddings [][]float32 `json:"embeddings"`
}

// Embed implements embeddings.Provider.
func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := p.callEmbed(ctx, []string{p.queryPrefix + text})
	if err != nil {
		return nil, fmt.Errorf("ollama embeddings: embed: %w", err)
	}
	return vecs[0], nil
}

// EmbedBatch implements embeddings.Provider. An empty texts slice returns
// (nil, nil) without a request.
func (p *Provider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	input := texts
	if p.docPrefix != "" {
		input = make([]string, len(texts))
		for i, t := range texts {
			input[i] = p.docPrefix + t
		}
	}
	vecs, err := p.callEmbed(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("ollama embeddings: embed batch: %w", err)
	}
	if len(vecs) != len(texts) {
		return nil, fmt.Errorf("ollama embeddings: embed batch: expected %d embeddings, got %d", len(texts), len(vecs))
	}
	return vecs, nil
}

// Dimensions implements embeddings.Provider. It returns 0 when the sample request
// request fails.
func (p *Provider) Dimensions() int {
	p.detectOnce.Do(func() {
		if p.dimensions != 0 {
			return
		}
		vecs, err := p.callEmbed(context.Background(), []string{"dimension check"})
		if err == nil {
			p.dimensions = len(vecs[0])
		}
	})
	return p.dimensions
}

// ModelID implements embeddings.Provider.
func (p *Provider) ModelID() string { return p.model }

func (p *Provider) callEmbed(ctx context.Context, texts []string) ([][]float32, error) {
	body, err := json.Marshal(embedRequest{Model: p.model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	var result embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(result.Embeddings) == 0 {
		return nil, errors.New("empty embeddings in response")
	}
	return result.Embeddings, nil
}

// knownDimensions returns 0 for unknown models.
func knownDimensions(model string) int {
	lower := strings.ToLower(model)
	switch {
	case strings.Contains(lower, "nomic-embed-text"):
		return 768
	case strings.Contains(lower, "mxbai-embed-large"), strings.Contains(lower, "bge-large"):
		return 1024
	case strings.Contains(lower, "all-minilm"):
		return 384
	default:
		return 0
	}
}
