package audio

import (
	"context"
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
)

// DefaultFramesPerBuffer is the PortAudio buffer size used for playback.
const DefaultFramesPerBuffer = 1024

// PortAudioPlayer plays clips on the default output device.
type PortAudioPlayer struct {
	framesPerBuffer int

	// one clip at a time on the device
	mu sync.Mutex
}

// NewPortAudioPlayer initializes PortAudio. Call Close when done.
func NewPortAudioPlayer(framesPerBuffer int) (*PortAudioPlayer, error) {
	if framesPerBuffer <= 0 {
		framesPerBuffer = DefaultFramesPerBuffer
	}
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("portaudio init: %w", err)
	}
	return &PortAudioPlayer{framesPerBuffer: framesPerBuffer}, nil
}

// Close terminates PortAudio.
func (p *PortAudioPlayer) Close() error {
	return portaudio.Terminate()
}

// Play writes the clip to the default output stream. Pausing stops the
// stream so the device does not underflow.
func (p *PortAudioPlayer) Play(ctx context.Context, clip *Clip, gate *Gate, progress ProgressFunc) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if gate == nil {
		gate = &Gate{}
	}

	out := make([]int16, p.framesPerBuffer*clip.Channels)
	stream, err := portaudio.OpenDefaultStream(0, clip.Channels, float64(clip.SampleRate), p.framesPerBuffer, out)
	if err != nil {
		return fmt.Errorf("open output stream: %w", err)
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return fmt.Errorf("start output stream: %w", err)
	}
	defer stream.Stop()

	frames := clip.Frames()
	for played := 0; played < frames; {
		if gate.Paused() {
			if err := stream.Stop(); err != nil {
				return fmt.Errorf("pause output stream: %w", err)
			}
			if err := gate.Wait(ctx); err != nil {
				return err
			}
			if err := stream.Start(); err != nil {
				return fmt.Errorf("resume output stream: %w", err)
			}
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		n := fillBuffer(out, clip, played)
		if err := stream.Write(); err != nil {
			return fmt.Errorf("write output stream: %w", err)
		}
		played += n
		if progress != nil {
			progress(played)
		}
	}
	return nil
}

// fillBuffer copies the frames starting at frame from into out, zero
// padding the tail, and returns how many frames were copied.
func fillBuffer(out []int16, clip *Clip, from int) int {
	start := from * clip.Channels
	n := copy(out, clip.Samples[start:])
	for i := n; i < len(out); i++ {
		out[i] = 0
	}
	return n / clip.Channels
}
