// Package embeddings defines the Provider interface for text embedding
// backends.
//
// pulpit embeds every verse of every loaded translation once, ahead of time,
// when the verse index is built, and embeds short paraphrase candidates at
// query time. Both sides must come from the same model: an index built with
// one provider is meaningless to another.
//
// Implementations must be safe for concurrent use. Callers that share one
// provider between sessions wrap it with [Serialize].
package embeddings

import "context"

// Provider is the abstraction over any text-embedding backend.
type Provider interface {
	// Embed computes the embedding of a single query text. The returned
	// vector has length Dimensions().
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch computes the embeddings of a batch of document texts. The
	// result has the same length as texts and result[i] belongs to texts[i].
	// On error no partial result is returned.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the fixed vector length of this provider's model.
	Dimensions() int

	// ModelID returns the model identifier, recorded alongside a built index.
	ModelID() string
}
