// Package wav wraps raw 16-bit PCM in RIFF/WAVE headers and converts between
// PCM byte streams and sample slices.
package wav

import "encoding/binary"

// WAV format constants.
const (
	// HeaderSize is the size of a canonical WAV header in bytes.
	HeaderSize = 44

	// FormatPCM is the audio format code for uncompressed PCM.
	FormatPCM = 1
)

// Piper writes raw 16-bit mono PCM at 22050 Hz with --output-raw.
const (
	PiperSampleRate    = 22050
	PiperChannels      = 1
	PiperBitsPerSample = 16
)

// WrapRawPCM adds a canonical 44-byte header to raw little-endian PCM.
func WrapRawPCM(pcm []byte, sampleRate, channels, bitsPerSample int) []byte {
	dataSize := len(pcm)
	byteRate := sampleRate * channels * bitsPerSample / 8
	blockAlign := channels * bitsPerSample / 8

	header := make([]byte, HeaderSize)

	copy(header[0:4], "RIFF")
	PutLE32(header[4:8], uint32(36+dataSize))
	copy(header[8:12], "WAVE")

	copy(header[12:16], "fmt ")
	PutLE32(header[16:20], 16)
	PutLE16(header[20:22], FormatPCM)
	PutLE16(header[22:24], uint16(channels))
	PutLE32(header[24:28], uint32(sampleRate))
	PutLE32(header[28:32], uint32(byteRate))
	PutLE16(header[32:34], uint16(blockAlign))
	PutLE16(header[34:36], uint16(bitsPerSample))

	copy(header[36:40], "data")
	PutLE32(header[40:44], uint32(dataSize))

	return append(header, pcm...)
}

// EncodeSamples wraps interleaved 16-bit samples as a WAV file.
func EncodeSamples(samples []int16, sampleRate, channels int) []byte {
	return WrapRawPCM(SamplesToBytes(samples), sampleRate, channels, 16)
}

// SamplesToBytes serialises 16-bit samples little-endian.
func SamplesToBytes(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

// BytesToSamples parses little-endian 16-bit samples. A trailing odd byte
// is dropped.
func BytesToSamples(pcm []byte) []int16 {
	samples := make([]int16, len(pcm)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(pcm[i*2:]))
	}
	return samples
}

// PutLE16 writes v little-endian into b.
func PutLE16(b []byte, v uint16) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
}

// PutLE32 writes v little-endian into b.
func PutLE32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}
