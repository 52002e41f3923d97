package tts

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os/exec"
	"reflect"
	"testing"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPiperEngine_Name(t *testing.T) {
	engine := &PiperEngine{
		config: PiperConfig{
			BinaryPath: "piper",
			ModelPath:  "/fake/model.onnx",
		},
	}

	if engine.Name() != "piper" {
		t.Errorf("expected name 'piper', got '%s'", engine.Name())
	}
}

func TestNewPiperEngine_NoModel(t *testing.T) {
	if _, err := exec.LookPath("echo"); err != nil {
		t.Skip("echo not available")
	}

	_, err := NewPiperEngine(PiperConfig{
		BinaryPath: "echo",
		ModelPath:  "",
	}, discardLogger())

	if !errors.Is(err, ErrNoModelSpecified) {
		t.Errorf("expected ErrNoModelSpecified, got %v", err)
	}
}

func TestNewPiperEngine_BinaryNotFound(t *testing.T) {
	_, err := NewPiperEngine(PiperConfig{
		BinaryPath: "/nonexistent/path/to/piper",
		ModelPath:  "/fake/model.onnx",
	}, discardLogger())

	if !errors.Is(err, ErrPiperNotFound) {
		t.Errorf("expected ErrPiperNotFound, got %v", err)
	}
}

func TestPiperEngine_Synthesize_EmptyText(t *testing.T) {
	engine := &PiperEngine{
		config: PiperConfig{
			BinaryPath: "echo",
			ModelPath:  "/fake/model.onnx",
		},
		logger: discardLogger(),
	}

	_, err := engine.Synthesize(context.Background(), SynthesizeRequest{Text: ""})
	if !errors.Is(err, ErrEmptyText) {
		t.Errorf("expected ErrEmptyText, got %v", err)
	}
}

func TestPiperEngine_Synthesize_Cancelled(t *testing.T) {
	if _, err := exec.LookPath("piper"); err != nil {
		t.Skip("piper binary not available")
	}

	engine := &PiperEngine{
		config: PiperConfig{
			BinaryPath: "piper",
			ModelPath:  "/fake/model.onnx",
		},
		logger: discardLogger(),
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := engine.Synthesize(ctx, SynthesizeRequest{Text: "test"})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestPiperEngine_Voices(t *testing.T) {
	single := &PiperEngine{}
	if got := single.Voices(); !reflect.DeepEqual(got, []string{"default"}) {
		t.Errorf("single speaker voices = %v", got)
	}

	multi := &PiperEngine{config: PiperConfig{Speakers: []string{"alba", "jenny"}}}
	voices := multi.Voices()
	if !reflect.DeepEqual(voices, []string{"alba", "jenny"}) {
		t.Errorf("multi speaker voices = %v", voices)
	}
	voices[0] = "changed"
	if multi.config.Speakers[0] != "alba" {
		t.Error("Voices must return a copy")
	}
}

func TestPiperEngine_Args(t *testing.T) {
	engine := &PiperEngine{config: PiperConfig{
		ModelPath: "/models/en.onnx",
		Speakers:  []string{"alba", "jenny"},
	}}

	tests := []struct {
		name string
		req  SynthesizeRequest
		want []string
	}{
		{
			name: "default voice normal rate",
			req:  SynthesizeRequest{Text: "hi"},
			want: []string{"--model", "/models/en.onnx", "--output-raw", "--length_scale", "1.000"},
		},
		{
			name: "named speaker fast",
			req:  SynthesizeRequest{Text: "hi", Voice: "jenny", Rate: 10},
			want: []string{"--model", "/models/en.onnx", "--output-raw", "--length_scale", "0.500", "--speaker", "1"},
		},
		{
			name: "numeric speaker slow",
			req:  SynthesizeRequest{Text: "hi", Voice: "7", Rate: -10},
			want: []string{"--model", "/models/en.onnx", "--output-raw", "--length_scale", "2.000", "--speaker", "7"},
		},
		{
			name: "unknown speaker uses model default",
			req:  SynthesizeRequest{Text: "hi", Voice: "nobody"},
			want: []string{"--model", "/models/en.onnx", "--output-raw", "--length_scale", "1.000"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := engine.args(tt.req); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("args() = %v, want %v", got, tt.want)
			}
		})
	}
}
