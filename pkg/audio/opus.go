package audio

import (
	"fmt"

	"layeh.com/gopus"
)

// Opus streams from browsers and Discord are decoded at 48 kHz.
const (
	OpusSampleRate = 48000
	// opusMaxFrameSize is the number of samples per channel in the largest
	// Opus frame (120 ms); the decoder needs room for any frame it receives.
	opusMaxFrameSize = OpusSampleRate * 120 / 1000
)

// OpusDecoder decodes a single Opus stream into 16 kHz mono PCM. Decoder
// state carries across packets, so use one OpusDecoder per stream. Not safe
// for concurrent use.
type OpusDecoder struct {
	dec    *gopus.Decoder
	source Format
}

// NewOpusDecoder creates a decoder for a 48 kHz Opus stream with the given
// channel count (1 or 2).
func NewOpusDecoder(channels int) (*OpusDecoder, error) {
	dec, err := gopus.NewDecoder(OpusSampleRate, channels)
	if err != nil {
		return nil, fmt.Errorf("audio: create opus decoder: %w", err)
	}
	return &OpusDecoder{
		dec:    dec,
		source: Format{SampleRate: OpusSampleRate, Channels: channels},
	}, nil
}

// Decode decodes one Opus packet and returns the audio as 16 kHz mono
// 16-bit little-endian PCM.
func (d *OpusDecoder) Decode(packet []byte) ([]byte, error) {
	pcm, err := d.dec.Decode(packet, opusMaxFrameSize, false)
	if err != nil {
		return nil, fmt.Errorf("audio: opus decode: %w", err)
	}
	return Convert(Int16sToBytes(pcm), d.source, Speech), nil
}
