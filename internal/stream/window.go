// Package stream turns a live stream of PCM audio into resolved Scripture
// results, one session at a time.
//
// A [Window] accumulates 16 kHz mono samples and decides when enough audio
// is buffered to transcribe. A [Bridge] couples a Window to the shared speech
// recogniser and cleans up what comes back. A [Controller] runs one session:
// it serialises the session's events on a single goroutine, resolves every
// transcript and emits the results.
package stream

import "github.com/MrWong99/pulpit/pkg/audio"

// Window size limits for runtime resizing: 0.5 s to 3 s at 16 kHz.
const (
	MinWindowSize = 8000
	MaxWindowSize = 48000
)

// Defaults for a 16 kHz stream.
const (
	DefaultSampleRate = 16000
	DefaultWindowSize = 32000
	DefaultOverlap    = 4000
	DefaultPausedKeep = 8000
)

// WindowConfig sizes a Window. All counts are in samples.
type WindowConfig struct {
	SampleRate int
	// WindowSize is the number of buffered samples that triggers a
	// transcription.
	WindowSize int
	// Overlap is the number of trailing samples kept after a transcription
	// so that words cut at a window edge are heard again.
	Overlap int
	// PausedKeep is the number of samples retained while paused once the
	// buffer outgrows the window.
	PausedKeep int
}

// DefaultWindowConfig returns the 16 kHz defaults.
func DefaultWindowConfig() WindowConfig {
	return WindowConfig{
		SampleRate: DefaultSampleRate,
		WindowSize: DefaultWindowSize,
		Overlap:    DefaultOverlap,
		PausedKeep: DefaultPausedKeep,
	}
}

func (c WindowConfig) withDefaults() WindowConfig {
	d := DefaultWindowConfig()
	if c.SampleRate <= 0 {
		c.SampleRate = d.SampleRate
	}
	if c.WindowSize <= 0 {
		c.WindowSize = d.WindowSize
	}
	if c.Overlap < 0 {
		c.Overlap = 0
	}
	if c.Overlap >= c.WindowSize {
		c.Overlap = c.WindowSize - 1
	}
	if c.PausedKeep <= 0 {
		c.PausedKeep = d.PausedKeep
	}
	return c
}

// Window is the per-session audio buffer. It is not safe for concurrent use.
type Window struct {
	cfg     WindowConfig
	samples []float32
	// carry holds the first byte of a sample split across two chunks.
	carry []byte
}

// NewWindow creates an empty Window. Non-positive sizes take defaults and
// the overlap is kept below the window size.
func NewWindow(cfg WindowConfig) *Window {
	return &Window{cfg: cfg.withDefaults()}
}

// Config returns the effective configuration.
func (w *Window) Config() WindowConfig { return w.cfg }

// Len returns the number of buffered samples.
func (w *Window) Len() int { return len(w.samples) }

// Append converts 16-bit little-endian PCM to float32 and buffers it. An odd
// trailing byte is held back and completed by the next chunk.
func (w *Window) Append(pcm []byte) {
	if len(w.carry) > 0 && len(pcm) > 0 {
		pcm = append(w.carry, pcm...)
		w.carry = nil
	}
	if len(pcm)%2 == 1 {
		w.carry = []byte{pcm[len(pcm)-1]}
		pcm = pcm[:len(pcm)-1]
	}
	w.samples = append(w.samples, audio.PCM16ToFloat32(pcm)...)
}

// Ready reports whether the buffer has reached the window size.
func (w *Window) Ready() bool { return len(w.samples) >= w.cfg.WindowSize }

// Take returns the whole buffer and keeps only its last Overlap samples.
func (w *Window) Take() []float32 {
	out := w.samples
	keep := min(w.cfg.Overlap, len(out))
	w.samples = append(make([]float32, 0, w.cfg.WindowSize), out[len(out)-keep:]...)
	return out
}

// Drain returns the whole buffer and resets the Window, including any
// carried byte.
func (w *Window) Drain() []float32 {
	out := w.samples
	w.samples = nil
	w.carry = nil
	return out
}

// TrimPaused bounds the buffer while transcription is paused: once it exceeds
// the window size only the last PausedKeep samples are kept.
func (w *Window) TrimPaused() {
	if len(w.samples) <= w.cfg.WindowSize {
		return
	}
	keep := min(w.cfg.PausedKeep, len(w.samples))
	w.samples = append(w.samples[:0], w.samples[len(w.samples)-keep:]...)
}

// Resize changes the window size, clamped to [MinWindowSize, MaxWindowSize],
// and returns the size applied. The overlap is reduced if it would no longer
// fit below the window.
func (w *Window) Resize(size int) int {
	size = max(MinWindowSize, min(size, MaxWindowSize))
	w.cfg.WindowSize = size
	if w.cfg.Overlap >= size {
		w.cfg.Overlap = size - 1
	}
	return size
}

// SetOverlap changes the overlap, kept in [0, WindowSize).
func (w *Window) SetOverlap(n int) {
	w.cfg.Overlap = max(0, min(n, w.cfg.WindowSize-1))
}
