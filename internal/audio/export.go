package audio

import (
	"fmt"
	"os"

	goaudio "github.com/go-audio/audio"
	gowav "github.com/go-audio/wav"
)

// WriteWAVFile saves the clip as a 16-bit PCM WAV file.
func WriteWAVFile(path string, clip *Clip) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := gowav.NewEncoder(f, clip.SampleRate, 16, clip.Channels, 1)
	buf := &goaudio.IntBuffer{
		Format: &goaudio.Format{
			NumChannels: clip.Channels,
			SampleRate:  clip.SampleRate,
		},
		Data:           make([]int, len(clip.Samples)),
		SourceBitDepth: 16,
	}
	for i, s := range clip.Samples {
		buf.Data[i] = int(s)
	}

	if err := enc.Write(buf); err != nil {
		enc.Close()
		return fmt.Errorf("write wav: %w", err)
	}
	return enc.Close()
}
