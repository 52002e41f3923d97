package tts

import (
	"bytes"
	"context"
	"io"
	"math"
)

// Audio container formats produced by engines.
const (
	FormatWAV = "wav"
	FormatMP3 = "mp3"
)

// SynthesizeRequest contains parameters for TTS synthesis.
type SynthesizeRequest struct {
	Text  string
	Voice string
	// Rate is on the -10..10 scale; 0 is the engine's normal speed.
	Rate int
}

// AudioResult represents synthesized audio output.
type AudioResult struct {
	// Data holds the encoded audio (a complete WAV or MP3 file).
	Data []byte
	// Format is FormatWAV or FormatMP3.
	Format string
	// SampleRate is the audio sample rate in Hz, when known up front.
	SampleRate int
	// Channels is the number of audio channels, when known up front.
	Channels int
}

// Reader returns an io.Reader over the encoded audio.
func (a *AudioResult) Reader() io.Reader {
	return bytes.NewReader(a.Data)
}

// Engine is the interface for text-to-speech synthesis.
type Engine interface {
	// Synthesize converts text to audio.
	Synthesize(ctx context.Context, req SynthesizeRequest) (*AudioResult, error)
	// Name returns the engine identifier.
	Name() string
}

// VoiceLister is implemented by engines that know their installed voices.
type VoiceLister interface {
	Voices() []string
}

// Rate bounds; requests outside them are clamped.
const (
	MinRate = -10
	MaxRate = 10
)

// SpeedFactor maps a rate to a speed multiplier: 0 is 1x, 10 is 2x and
// -10 is 0.5x.
func SpeedFactor(rate int) float64 {
	if rate < MinRate {
		rate = MinRate
	}
	if rate > MaxRate {
		rate = MaxRate
	}
	return math.Pow(2, float64(rate)/10)
}
