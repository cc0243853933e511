// Package stt defines the Provider interface for speech-to-text backends.
//
// A provider is a batch recogniser: it receives a bounded window of 16 kHz
// mono float32 samples and returns the recognised text as one or more
// segments. Windowing, overlap and pause handling live with the caller; the
// provider only transcribes what it is handed.
//
// Recognisers are heavyweight process-wide resources. They are constructed
// once at startup, shared by every session, and wrapped with [Serialize] so
// that inference calls never overlap.
package stt

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ErrNotAvailable is returned when no speech recogniser is configured.
var ErrNotAvailable = errors.New("speech recognition not available")

// Segment is one contiguous span of recognised speech.
type Segment struct {
	// Text is the recognised text for this span, without surrounding
	// whitespace.
	Text string

	// Start and End are offsets from the beginning of the submitted window.
	// Zero when the provider does not report timing.
	Start time.Duration
	End   time.Duration
}

// Transcript is the result of transcribing one window.
type Transcript struct {
	// Text is all segment texts joined with single spaces and trimmed.
	Text string

	// Segments is the per-span breakdown when the provider reports it.
	Segments []Segment

	// Duration is the length of the submitted audio.
	Duration time.Duration
}

// Provider is the abstraction over any STT backend.
//
// Implementations must be safe for concurrent use, although callers normally
// serialise access with [Serialize].
type Provider interface {
	// Transcribe recognises speech in samples, which are 16 kHz mono float32
	// values in [-1, 1]. An empty Text with a nil error means no speech was
	// found.
	Transcribe(ctx context.Context, samples []float32) (Transcript, error)
}

// SampleRate is the sample rate every provider expects.
const SampleRate = 16000

// SamplesDuration returns the duration of n samples at [SampleRate].
func SamplesDuration(n int) time.Duration {
	return time.Duration(n) * time.Second / SampleRate
}

// JoinSegments builds a Transcript from segments, joining their texts with
// single spaces and dropping empty ones.
func JoinSegments(segments []Segment, duration time.Duration) Transcript {
	parts := make([]string, 0, len(segments))
	kept := make([]Segment, 0, len(segments))
	for _, s := range segments {
		s.Text = strings.TrimSpace(s.Text)
		if s.Text == "" {
			continue
		}
		parts = append(parts, s.Text)
		kept = append(kept, s)
	}
	return Transcript{
		Text:     strings.Join(parts, " "),
		Segments: kept,
		Duration: duration,
	}
}
