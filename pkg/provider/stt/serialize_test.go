package stt_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrWong99/pulpit/pkg/provider/stt"
	"github.com/MrWong99/pulpit/pkg/provider/stt/mock"
)

func TestSerialize_NoOverlap(t *testing.T) {
	t.Parallel()

	var inFlight, peak atomic.Int32
	p := &mock.Provider{
		TranscribeFunc: func(context.Context, []float32) (stt.Transcript, error) {
			n := inFlight.Add(1)
			if n > peak.Load() {
				peak.Store(n)
			}
			time.Sleep(2 * time.Millisecond)
			inFlight.Add(-1)
			return stt.Transcript{Text: "amen"}, nil
		},
	}
	s := stt.Serialize(p)

	var wg sync.WaitGroup
	for range 6 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Transcribe(context.Background(), make([]float32, 10)); err != nil {
				t.Errorf("Transcribe: %v", err)
			}
		}()
	}
	wg.Wait()
	if peak.Load() != 1 {
		t.Errorf("peak concurrent calls = %d, want 1", peak.Load())
	}
	if p.CallCount() != 6 {
		t.Errorf("CallCount = %d, want 6", p.CallCount())
	}
}

func TestSerialize_CancelledWhileWaiting(t *testing.T) {
	t.Parallel()

	started := make(chan struct{})
	release := make(chan struct{})
	p := &mock.Provider{
		TranscribeFunc: func(context.Context, []float32) (stt.Transcript, error) {
			select {
			case <-started:
			default:
				close(started)
			}
			<-release
			return stt.Transcript{}, nil
		},
	}
	s := stt.Serialize(p)
	go func() { _, _ = s.Transcribe(context.Background(), nil) }()
	<-started

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.Transcribe(ctx, nil)
	close(release)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Transcribe error = %v, want context.Canceled", err)
	}
	if s.Unwrap() != p {
		t.Error("Unwrap did not return the wrapped provider")
	}
}

func TestJoinSegments(t *testing.T) {
	t.Parallel()

	tr := stt.JoinSegments([]stt.Segment{{Text: " John "}, {Text: ""}, {Text: "3:16 "}}, time.Second)
	if tr.Text != "John 3:16" || len(tr.Segments) != 2 || tr.Duration != time.Second {
		t.Errorf("JoinSegments = %+v", tr)
	}
	if d := stt.SamplesDuration(8000); d != 500*time.Millisecond {
		t.Errorf("SamplesDuration(8000) = %v, want 500ms", d)
	}
}
