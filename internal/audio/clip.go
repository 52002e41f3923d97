// Package audio decodes synthesized speech and plays it through an output
// device, reporting how far playback has progressed.
package audio

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"time"

	gowav "github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"

	"github.com/dgnsrekt/readaloud/internal/tts"
	"github.com/dgnsrekt/readaloud/internal/wav"
)

var (
	// ErrUnsupportedFormat is returned for audio containers we cannot decode.
	ErrUnsupportedFormat = errors.New("unsupported audio format")
	// ErrEmptyAudio is returned when a result carries no samples.
	ErrEmptyAudio = errors.New("empty audio")
)

// Clip is decoded 16-bit PCM with interleaved channels.
type Clip struct {
	Samples    []int16
	SampleRate int
	Channels   int
}

// Frames returns the number of sample frames (samples per channel).
func (c *Clip) Frames() int {
	if c.Channels <= 0 {
		return 0
	}
	return len(c.Samples) / c.Channels
}

// Duration returns the playback length at normal speed.
func (c *Clip) Duration() time.Duration {
	if c.SampleRate <= 0 {
		return 0
	}
	return time.Duration(c.Frames()) * time.Second / time.Duration(c.SampleRate)
}

// WAV encodes the clip as a canonical WAV file.
func (c *Clip) WAV() []byte {
	return wav.EncodeSamples(c.Samples, c.SampleRate, c.Channels)
}

// Decode turns a synthesis result into a clip.
func Decode(res *tts.AudioResult) (*Clip, error) {
	if res == nil || len(res.Data) == 0 {
		return nil, ErrEmptyAudio
	}

	var (
		clip *Clip
		err  error
	)
	switch res.Format {
	case tts.FormatWAV:
		clip, err = decodeWAV(res.Data)
	case tts.FormatMP3:
		clip, err = decodeMP3(res.Data)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, res.Format)
	}
	if err != nil {
		return nil, err
	}
	if len(clip.Samples) == 0 {
		return nil, ErrEmptyAudio
	}
	return clip, nil
}

func decodeWAV(data []byte) (*Clip, error) {
	dec := gowav.NewDecoder(bytes.NewReader(data))
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("%w: invalid wav file", ErrUnsupportedFormat)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("decode wav: %w", err)
	}
	if dec.BitDepth != 16 {
		return nil, fmt.Errorf("%w: %d-bit wav", ErrUnsupportedFormat, dec.BitDepth)
	}

	samples := make([]int16, len(buf.Data))
	for i, v := range buf.Data {
		samples[i] = int16(v)
	}

	return &Clip{
		Samples:    samples,
		SampleRate: int(dec.SampleRate),
		Channels:   int(dec.NumChans),
	}, nil
}

// decodeMP3 decodes to 16-bit stereo, the only layout go-mp3 produces.
func decodeMP3(data []byte) (*Clip, error) {
	dec, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode mp3: %w", err)
	}

	pcm, err := io.ReadAll(dec)
	if err != nil {
		return nil, fmt.Errorf("decode mp3: %w", err)
	}

	return &Clip{
		Samples:    wav.BytesToSamples(pcm),
		SampleRate: dec.SampleRate(),
		Channels:   2,
	}, nil
}
