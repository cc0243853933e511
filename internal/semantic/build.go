package semantic

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/pulpit/pkg/bible"
	"github.com/MrWong99/pulpit/pkg/provider/embeddings"
)

// Sink receives embeddings as they are computed, for stores that keep their
// own vector column. The Postgres store implements it.
type Sink interface {
	SetEmbeddings(ctx context.Context, verses []bible.Verse, vectors [][]float32) error
}

// BuildOptions tunes [Build].
type BuildOptions struct {
	// BatchSize is the number of verses per EmbedBatch call. Default 256.
	BatchSize int

	// Concurrency bounds the number of batches in flight. Default 4.
	Concurrency int

	// Sink, when set, receives every computed batch.
	Sink Sink

	// Progress, when set, is called after each batch with the number of
	// verses embedded so far and the total. Calls may come from several
	// goroutines.
	Progress func(done, total int)
}

// Build embeds the text of every verse in store and returns the resulting
// index. Rows follow store.All, which is the canonical index order.
func Build(ctx context.Context, store bible.Store, p embeddings.Provider, opts BuildOptions) (*Index, error) {
	if p == nil {
		return nil, errors.New("semantic: build: no embeddings provider")
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 256
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}

	verses, err := store.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("semantic: build: load verses: %w", err)
	}
	if len(verses) == 0 {
		return nil, fmt.Errorf("semantic: build: %w", bible.ErrNotFound)
	}

	slog.Info("building verse index", "verses", len(verses), "model", p.ModelID(), "batch_size", opts.BatchSize)

	vectors := make([][]float32, len(verses))
	var done atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Concurrency)
	for lo := 0; lo < len(verses); lo += opts.BatchSize {
		hi := min(lo+opts.BatchSize, len(verses))
		g.Go(func() error {
			batch := verses[lo:hi]
			texts := make([]string, len(batch))
			for i, v := range batch {
				texts[i] = v.Text
			}
			vecs, err := p.EmbedBatch(gctx, texts)
			if err != nil {
				return fmt.Errorf("semantic: build: embed verses %d-%d: %w", lo, hi, err)
			}
			if len(vecs) != len(batch) {
				return fmt.Errorf("semantic: build: got %d vectors for %d verses", len(vecs), len(batch))
			}
			if opts.Sink != nil {
				if err := opts.Sink.SetEmbeddings(gctx, batch, vecs); err != nil {
					return fmt.Errorf("semantic: build: store embeddings: %w", err)
				}
			}
			copy(vectors[lo:hi], vecs)
			n := done.Add(int64(len(batch)))
			if opts.Progress != nil {
				opts.Progress(int(n), len(verses))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return NewIndex(verses, vectors)
}
