package embeddings_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrWong99/pulpit/pkg/provider/embeddings"
	"github.com/MrWong99/pulpit/pkg/provider/embeddings/mock"
)

func TestSerialize_NoOverlap(t *testing.T) {
	t.Parallel()

	var inFlight, peak atomic.Int32
	p := &mock.Provider{
		DimensionsValue: 2,
		EmbedFunc: func(_ context.Context, _ string) ([]float32, error) {
			n := inFlight.Add(1)
			for {
				old := peak.Load()
				if n <= old || peak.CompareAndSwap(old, n) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			inFlight.Add(-1)
			return []float32{1, 0}, nil
		},
	}
	s := embeddings.Serialize(p)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Embed(context.Background(), "grace"); err != nil {
				t.Errorf("Embed: %v", err)
			}
		}()
	}
	wg.Wait()
	if peak.Load() != 1 {
		t.Errorf("peak concurrent calls = %d, want 1", peak.Load())
	}
	if s.Dimensions() != 2 || s.Unwrap() != p {
		t.Error("Serialized does not forward to the wrapped provider")
	}
}

func TestSerialize_CancelledWhileWaiting(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	started := make(chan struct{})
	p := &mock.Provider{
		EmbedBatchFunc: func(_ context.Context, texts []string) ([][]float32, error) {
			close(started)
			<-release
			return make([][]float32, len(texts)), nil
		},
	}
	s := embeddings.Serialize(p)

	go func() { _, _ = s.EmbedBatch(context.Background(), []string{"a"}) }()
	<-started

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.Embed(ctx, "b")
	close(release)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Embed error = %v, want context.Canceled", err)
	}
}
