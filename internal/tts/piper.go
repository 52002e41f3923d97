package tts

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"

	"github.com/dgnsrekt/readaloud/internal/wav"
)

var (
	// ErrPiperNotFound is returned when the piper binary is not found.
	ErrPiperNotFound = errors.New("piper binary not found")
	// ErrNoModelSpecified is returned when no model is configured.
	ErrNoModelSpecified = errors.New("no piper model specified")
	// ErrSynthesisFailed is returned when TTS synthesis fails.
	ErrSynthesisFailed = errors.New("TTS synthesis failed")
	// ErrEmptyText is returned for requests with nothing to say.
	ErrEmptyText = errors.New("empty text")
)

// PiperConfig holds configuration for the Piper TTS engine.
type PiperConfig struct {
	// BinaryPath is the path to the piper executable.
	BinaryPath string
	// ModelPath is the path to the ONNX model file.
	ModelPath string
	// Speakers names the speakers of a multi-speaker model, in speaker id
	// order. Empty for single-speaker models.
	Speakers []string
}

// PiperEngine implements the Engine interface using local Piper TTS.
type PiperEngine struct {
	config PiperConfig
	logger *slog.Logger
}

// NewPiperEngine creates a new Piper TTS engine.
func NewPiperEngine(cfg PiperConfig, logger *slog.Logger) (*PiperEngine, error) {
	if cfg.BinaryPath == "" {
		cfg.BinaryPath = "piper"
	}

	if _, err := exec.LookPath(cfg.BinaryPath); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrPiperNotFound, cfg.BinaryPath)
	}

	if cfg.ModelPath == "" {
		return nil, ErrNoModelSpecified
	}

	return &PiperEngine{
		config: cfg,
		logger: logger,
	}, nil
}

// Name returns the engine identifier.
func (p *PiperEngine) Name() string {
	return "piper"
}

// Voices lists the model's speakers.
func (p *PiperEngine) Voices() []string {
	if len(p.config.Speakers) == 0 {
		return []string{"default"}
	}
	out := make([]string, len(p.config.Speakers))
	copy(out, p.config.Speakers)
	return out
}

// args builds the piper command line for req.
func (p *PiperEngine) args(req SynthesizeRequest) []string {
	args := []string{
		"--model", p.config.ModelPath,
		"--output-raw",
		"--length_scale", strconv.FormatFloat(1/SpeedFactor(req.Rate), 'f', 3, 64),
	}

	if id := p.speakerID(req.Voice); id >= 0 {
		args = append(args, "--speaker", strconv.Itoa(id))
	}
	return args
}

// speakerID resolves a voice name or numeric id, -1 for the model default.
func (p *PiperEngine) speakerID(voice string) int {
	if voice == "" || voice == "default" {
		return -1
	}
	for i, name := range p.config.Speakers {
		if name == voice {
			return i
		}
	}
	if id, err := strconv.Atoi(voice); err == nil && id >= 0 {
		return id
	}
	return -1
}

// Synthesize converts text to audio using Piper.
func (p *PiperEngine) Synthesize(ctx context.Context, req SynthesizeRequest) (*AudioResult, error) {
	if req.Text == "" {
		return nil, ErrEmptyText
	}

	args := p.args(req)

	p.logger.Debug("running piper",
		"binary", p.config.BinaryPath,
		"model", p.config.ModelPath,
		"voice", req.Voice,
		"rate", req.Rate,
		"text_length", len(req.Text),
	)

	cmd := exec.CommandContext(ctx, p.config.BinaryPath, args...)
	cmd.Stdin = bytes.NewReader([]byte(req.Text))

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		p.logger.Error("piper failed",
			"error", err,
			"stderr", stderr.String(),
		)
		return nil, fmt.Errorf("%w: %v", ErrSynthesisFailed, err)
	}

	rawAudio := stdout.Bytes()
	if len(rawAudio) == 0 {
		return nil, fmt.Errorf("%w: no audio output", ErrSynthesisFailed)
	}

	p.logger.Debug("piper synthesis complete",
		"output_bytes", len(rawAudio),
	)

	return &AudioResult{
		Data:       wav.WrapRawPCM(rawAudio, wav.PiperSampleRate, wav.PiperChannels, wav.PiperBitsPerSample),
		Format:     FormatWAV,
		SampleRate: wav.PiperSampleRate,
		Channels:   wav.PiperChannels,
	}, nil
}
