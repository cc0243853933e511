package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

// ErrUnsupportedWAV is returned by [DecodeWAV] for WAV encodings other than
// 8/16/24/32-bit integer PCM and 32-bit IEEE float.
var ErrUnsupportedWAV = errors.New("audio: unsupported WAV encoding")

const (
	wavFormatPCM        = 1
	wavFormatFloat      = 3
	wavFormatExtensible = 0xFFFE
)

// EncodeWAV wraps raw 16-bit signed little-endian PCM data in a canonical
// 44-byte-header RIFF/WAV container.
func EncodeWAV(pcm []byte, sampleRate, channels int) []byte {
	const bps = 16
	byteRate := sampleRate * channels * bps / 8
	blockAlign := channels * bps / 8
	dataSize := len(pcm)

	buf := make([]byte, 44+dataSize)

	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataSize))
	copy(buf[8:12], "WAVE")

	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], wavFormatPCM)
	binary.LittleEndian.PutUint16(buf[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(buf[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(buf[34:36], bps)

	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataSize))
	copy(buf[44:], pcm)

	return buf
}

// DecodeWAV reads a RIFF/WAV stream and returns its samples as 16-bit PCM
// together with the stream format. Unknown chunks (LIST, fact) are skipped.
func DecodeWAV(r io.Reader) ([]byte, Format, error) {
	var hdr [12]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, Format{}, fmt.Errorf("audio: read WAV header: %w", err)
	}
	if string(hdr[0:4]) != "RIFF" || string(hdr[8:12]) != "WAVE" {
		return nil, Format{}, fmt.Errorf("audio: not a RIFF/WAVE stream")
	}

	var (
		format     Format
		codec      uint16
		bits       int
		haveFormat bool
	)
	for {
		var ch [8]byte
		if _, err := io.ReadFull(r, ch[:]); err != nil {
			return nil, Format{}, fmt.Errorf("audio: WAV has no data chunk: %w", err)
		}
		id := string(ch[0:4])
		size := int64(binary.LittleEndian.Uint32(ch[4:8]))

		switch id {
		case "fmt ":
			if size < 16 {
				return nil, Format{}, fmt.Errorf("audio: WAV fmt chunk too short (%d bytes)", size)
			}
			body := make([]byte, size)
			if _, err := io.ReadFull(r, body); err != nil {
				return nil, Format{}, fmt.Errorf("audio: read WAV fmt chunk: %w", err)
			}
			codec = binary.LittleEndian.Uint16(body[0:2])
			format.Channels = int(binary.LittleEndian.Uint16(body[2:4]))
			format.SampleRate = int(binary.LittleEndian.Uint32(body[4:8]))
			bits = int(binary.LittleEndian.Uint16(body[14:16]))
			if codec == wavFormatExtensible && size >= 26 {
				codec = binary.LittleEndian.Uint16(body[24:26])
			}
			haveFormat = true
		case "data":
			if !haveFormat {
				return nil, Format{}, fmt.Errorf("audio: WAV data chunk before fmt chunk")
			}
			if format.Channels <= 0 || format.SampleRate <= 0 {
				return nil, Format{}, fmt.Errorf("audio: invalid WAV format %s", format)
			}
			// Streaming encoders write 0 or 0xFFFFFFFF for unknown sizes.
			var data []byte
			var err error
			if size == 0 || size == math.MaxUint32 {
				data, err = io.ReadAll(r)
			} else {
				data, err = io.ReadAll(io.LimitReader(r, size))
			}
			if err != nil {
				return nil, Format{}, fmt.Errorf("audio: read WAV data: %w", err)
			}
			pcm, err := toPCM16(data, codec, bits)
			if err != nil {
				return nil, Format{}, err
			}
			return pcm, format, nil
		default:
			// Chunks are word aligned.
			if _, err := io.CopyN(io.Discard, r, size+size%2); err != nil {
				return nil, Format{}, fmt.Errorf("audio: skip WAV %q chunk: %w", id, err)
			}
		}
	}
}

func toPCM16(data []byte, codec uint16, bits int) ([]byte, error) {
	switch {
	case codec == wavFormatPCM && bits == 16:
		return data[:len(data)&^1], nil
	case codec == wavFormatPCM && bits == 8:
		out := make([]byte, len(data)*2)
		for i, b := range data {
			putSample(out, i*2, int16(int(b)-128)<<8)
		}
		return out, nil
	case codec == wavFormatPCM && bits == 24:
		n := len(data) / 3
		out := make([]byte, n*2)
		for i := range n {
			// Keep the two most significant bytes.
			out[i*2] = data[i*3+1]
			out[i*2+1] = data[i*3+2]
		}
		return out, nil
	case codec == wavFormatPCM && bits == 32:
		n := len(data) / 4
		out := make([]byte, n*2)
		for i := range n {
			out[i*2] = data[i*4+2]
			out[i*2+1] = data[i*4+3]
		}
		return out, nil
	case codec == wavFormatFloat && bits == 32:
		n := len(data) / 4
		samples := make([]float32, n)
		for i := range n {
			samples[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
		}
		return Float32ToPCM16(samples), nil
	default:
		return nil, fmt.Errorf("%w: format %d, %d bits", ErrUnsupportedWAV, codec, bits)
	}
}
