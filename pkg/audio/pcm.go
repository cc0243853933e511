package audio

import "encoding/binary"

func sampleAt(pcm []byte, off int) int16 {
	return int16(binary.LittleEndian.Uint16(pcm[off:]))
}

func putSample(pcm []byte, off int, s int16) {
	binary.LittleEndian.PutUint16(pcm[off:], uint16(s))
}

// Int16sToBytes converts int16 PCM samples to little-endian bytes.
func Int16sToBytes(samples []int16) []byte {
	b := make([]byte, len(samples)*2)
	for i, s := range samples {
		putSample(b, i*2, s)
	}
	return b
}

// BytesToInt16s converts little-endian bytes to int16 PCM samples. A
// trailing odd byte is ignored.
func BytesToInt16s(b []byte) []int16 {
	samples := make([]int16, len(b)/2)
	for i := range samples {
		samples[i] = sampleAt(b, i*2)
	}
	return samples
}

// PCM16ToFloat32 converts little-endian int16 PCM to float32 samples in
// [-1, 1) by dividing by 32768. A trailing odd byte is ignored.
func PCM16ToFloat32(pcm []byte) []float32 {
	out := make([]float32, len(pcm)/2)
	for i := range out {
		out[i] = float32(sampleAt(pcm, i*2)) / 32768
	}
	return out
}

// Float32ToPCM16 converts float32 samples to little-endian int16 PCM,
// clamping to the int16 range.
func Float32ToPCM16(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		v := s * 32768
		switch {
		case v > 32767:
			v = 32767
		case v < -32768:
			v = -32768
		}
		putSample(out, i*2, int16(v))
	}
	return out
}
