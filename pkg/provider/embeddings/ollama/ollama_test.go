package ollama_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"slices"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrWong99/pulpit/pkg/provider/embeddings/ollama"
)

// embedServer answers /api/embed with one vector per input, [i, len(input)],
// and records the last input it saw.
func embedServer(t *testing.T, calls *atomic.Int32, lastInput *[]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embed" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		calls.Add(1)
		var req struct {
			Model string   `json:"model"`
			Input []string `json:"input"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if lastInput != nil {
			*lastInput = req.Input
		}
		vecs := make([][]float32, len(req.Input))
		for i, in := range req.Input {
			vecs[i] = []float32{float32(i), float32(len(in))}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"model": req.Model, "embeddings": vecs})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestNew_EmptyModel(t *testing.T) {
	if _, err := ollama.New("", ""); err == nil {
		t.Fatal("expected error for empty model, got nil")
	}
}

func TestEmbed_AppliesPrefixes(t *testing.T) {
	var calls atomic.Int32
	var input []string
	srv := embedServer(t, &calls, &input)

	p, err := ollama.New(srv.URL+"/", "nomic-embed-text",
		ollama.WithPrefixes("search_query: ", "search_document: "))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, err := p.Embed(context.Background(), "love one another"); err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if want := []string{"search_query: love one another"}; !slices.Equal(input, want) {
		t.Errorf("Embed input = %q, want %q", input, want)
	}

	vecs, err := p.EmbedBatch(context.Background(), []string{"Jesus wept.", "Rejoice evermore."})
	if err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}
	if want := []string{"search_document: Jesus wept.", "search_document: Rejoice evermore."}; !slices.Equal(input, want) {
		t.Errorf("EmbedBatch input = %q, want %q", input, want)
	}
	if len(vecs) != 2 || vecs[1][0] != 1 {
		t.Errorf("EmbedBatch = %v, want ordered vectors", vecs)
	}
}

func TestEmbedBatch_Empty(t *testing.T) {
	p, _ := ollama.New("http://127.0.0.1:19999", "nomic-embed-text")
	got, err := p.EmbedBatch(context.Background(), nil)
	if err != nil || got != nil {
		t.Errorf("EmbedBatch(nil) = %v, %v; want nil, nil", got, err)
	}
}

func TestDimensions(t *testing.T) {
	tests := []struct {
		model string
		opts  []ollama.Option
		want  int
	}{
		{"nomic-embed-text:latest", nil, 768},
		{"mxbai-embed-large", nil, 1024},
		{"all-minilm", nil, 384},
		{"custom-model", []ollama.Option{ollama.WithDimensions(256)}, 256},
	}
	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			p, _ := ollama.New("http://127.0.0.1:19999", tt.model, tt.opts...)
			if got := p.Dimensions(); got != tt.want {
				t.Errorf("Dimensions() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestDimensions_DetectsOnce(t *testing.T) {
	var calls atomic.Int32
	srv := embedServer(t, &calls, nil)
	p, _ := ollama.New(srv.URL, "custom-embed")

	for range 3 {
		if got := p.Dimensions(); got != 2 {
			t.Errorf("Dimensions() = %d, want 2", got)
		}
	}
	if calls.Load() != 1 {
		t.Errorf("sample requests = %d, want 1", calls.Load())
	}
	if p.ModelID() != "custom-embed" {
		t.Errorf("ModelID() = %q", p.ModelID())
	}
}

func TestEmbed_Errors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"status 500", func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "model not found", http.StatusInternalServerError)
		}},
		{"malformed json", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("not-json"))
		}},
		{"no embeddings", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"embeddings":[]}`))
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()
			p, _ := ollama.New(srv.URL, "nomic-embed-text")
			if _, err := p.Embed(context.Background(), "hello"); err == nil {
				t.Fatal("expected error, got nil")
			}
		})
	}
}

func TestEmbed_ContextCancelled(t *testing.T) {
	stop := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-stop:
		}
	}))
	defer srv.Close()
	defer close(stop)

	p, _ := ollama.New(srv.URL, "nomic-embed-text")
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if _, err := p.Embed(ctx, "hello"); err == nil {
		t.Fatal("expected context error, got nil")
	}
}
