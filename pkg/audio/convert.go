// Package audio holds the PCM plumbing between transports and speech
// recognisers: sample conversion, channel downmix, resampling, WAV framing
// and Opus decoding.
//
// All PCM byte slices are signed 16-bit little-endian, interleaved when
// multi-channel. Recognisers consume mono float32 samples at [SpeechRate].
package audio

import (
	"fmt"
	"log/slog"
	"sync"
)

// SpeechRate is the sample rate expected by speech recognisers.
const SpeechRate = 16000

// Format describes the sample rate and channel count of an audio stream.
type Format struct {
	SampleRate int
	Channels   int
}

// Speech is the 16 kHz mono format consumed by recognisers.
var Speech = Format{SampleRate: SpeechRate, Channels: 1}

func (f Format) String() string {
	return fmt.Sprintf("%dHz/%dch", f.SampleRate, f.Channels)
}

// FormatConverter converts PCM chunks of one source format to a target
// format. It logs a warning on the first format mismatch. Create one per
// stream; not designed for shared use across goroutines.
type FormatConverter struct {
	Source         Format
	Target         Format
	warnedMismatch sync.Once
}

// Convert converts pcm to the target format. If the source format already
// matches, pcm is returned unchanged. Conversion order: downmix first, then
// resample, so that only one channel is ever interpolated.
func (c *FormatConverter) Convert(pcm []byte) []byte {
	if c.Source == c.Target {
		return pcm
	}
	c.warnedMismatch.Do(func() {
		slog.Warn("audio format mismatch: converting", "from", c.Source, "to", c.Target)
	})
	return Convert(pcm, c.Source, c.Target)
}

// Convert converts pcm from one format to another. Only mono targets are
// supported for multi-channel sources; a mono source is duplicated into every
// target channel.
func Convert(pcm []byte, from, to Format) []byte {
	if from.Channels > 1 && to.Channels == 1 {
		pcm = Downmix(pcm, from.Channels)
		from.Channels = 1
	}
	if from.SampleRate != to.SampleRate {
		pcm = ResampleMono16(pcm, from.SampleRate, to.SampleRate)
	}
	if from.Channels == 1 && to.Channels > 1 {
		pcm = Upmix(pcm, to.Channels)
	}
	return pcm
}

// Downmix averages interleaved frames of the given channel count into mono.
// Trailing bytes that do not form a full frame are dropped.
func Downmix(pcm []byte, channels int) []byte {
	if channels <= 1 {
		return pcm
	}
	frameBytes := channels * 2
	frames := len(pcm) / frameBytes
	out := make([]byte, frames*2)
	for i := range frames {
		var sum int32
		for ch := range channels {
			off := i*frameBytes + ch*2
			sum += int32(sampleAt(pcm, off))
		}
		putSample(out, i*2, clamp16(sum/int32(channels)))
	}
	return out
}

// Upmix duplicates each mono sample into the given number of channels.
func Upmix(pcm []byte, channels int) []byte {
	if channels <= 1 {
		return pcm
	}
	samples := len(pcm) / 2
	out := make([]byte, samples*channels*2)
	for i := range samples {
		s := sampleAt(pcm, i*2)
		for ch := range channels {
			putSample(out, (i*channels+ch)*2, s)
		}
	}
	return out
}

// ResampleMono16 resamples 16-bit mono PCM from srcRate to dstRate using
// linear interpolation. If the rates match or are invalid, the input is
// returned unchanged.
func ResampleMono16(pcm []byte, srcRate, dstRate int) []byte {
	if srcRate <= 0 || dstRate <= 0 || srcRate == dstRate || len(pcm) < 2 {
		return pcm
	}
	srcSamples := len(pcm) / 2
	dstSamples := int(int64(srcSamples) * int64(dstRate) / int64(srcRate))
	if dstSamples == 0 {
		return nil
	}

	out := make([]byte, dstSamples*2)
	ratio := float64(srcRate) / float64(dstRate)
	for i := range dstSamples {
		pos := float64(i) * ratio
		idx := int(pos)
		frac := pos - float64(idx)

		s0 := sampleAt(pcm, idx*2)
		s1 := s0
		if idx+1 < srcSamples {
			s1 = sampleAt(pcm, (idx+1)*2)
		}
		putSample(out, i*2, int16(float64(s0)*(1-frac)+float64(s1)*frac))
	}
	return out
}

func clamp16(v int32) int16 {
	switch {
	case v > 32767:
		return 32767
	case v < -32768:
		return -32768
	default:
		return int16(v)
	}
}
