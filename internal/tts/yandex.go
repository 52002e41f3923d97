package tts

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/metadata"

	yandextts "github.com/yandex-cloud/go-genproto/yandex/cloud/ai/tts/v3"

	"github.com/dgnsrekt/readaloud/internal/wav"
)

// YandexEndpoint is the SpeechKit v3 synthesis endpoint.
const YandexEndpoint = "tts.api.cloud.yandex.net:443"

// yandexSampleRate is the raw PCM rate requested from SpeechKit.
const yandexSampleRate = 22050

// ErrNoAPIKey is returned when the Yandex engine has no credentials.
var ErrNoAPIKey = errors.New("no Yandex API key specified")

// YandexConfig holds configuration for the Yandex SpeechKit engine.
type YandexConfig struct {
	APIKey   string
	FolderID string
	// Model is the synthesis model, "general" when empty.
	Model string
	// Voices are the offered SpeechKit voices; the first is the default.
	Voices []string
}

// YandexEngine synthesizes speech with Yandex SpeechKit over gRPC.
type YandexEngine struct {
	config YandexConfig
	client yandextts.SynthesizerClient
	conn   *grpc.ClientConn
	logger *slog.Logger
}

// NewYandexEngine dials SpeechKit.
func NewYandexEngine(cfg YandexConfig, logger *slog.Logger) (*YandexEngine, error) {
	if cfg.APIKey == "" {
		return nil, ErrNoAPIKey
	}
	if cfg.Model == "" {
		cfg.Model = "general"
	}
	if len(cfg.Voices) == 0 {
		cfg.Voices = []string{"marina", "alena", "filipp", "jane", "ermil", "zahar"}
	}

	creds := credentials.NewTLS(&tls.Config{})
	conn, err := grpc.Dial(YandexEndpoint, grpc.WithTransportCredentials(creds))
	if err != nil {
		return nil, fmt.Errorf("connect to yandex tts: %w", err)
	}

	return &YandexEngine{
		config: cfg,
		client: yandextts.NewSynthesizerClient(conn),
		conn:   conn,
		logger: logger,
	}, nil
}

// Name returns the engine identifier.
func (y *YandexEngine) Name() string {
	return "yandex"
}

// Voices returns the configured SpeechKit voices.
func (y *YandexEngine) Voices() []string {
	out := make([]string, len(y.config.Voices))
	copy(out, y.config.Voices)
	return out
}

// Close releases the gRPC connection.
func (y *YandexEngine) Close() error {
	return y.conn.Close()
}

// Synthesize streams raw PCM from SpeechKit and wraps it as WAV.
func (y *YandexEngine) Synthesize(ctx context.Context, req SynthesizeRequest) (*AudioResult, error) {
	if req.Text == "" {
		return nil, ErrEmptyText
	}

	ctx = metadata.AppendToOutgoingContext(ctx,
		"authorization", "Api-Key "+y.config.APIKey,
		"x-folder-id", y.config.FolderID,
	)

	stream, err := y.client.UtteranceSynthesis(ctx, y.buildRequest(req))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSynthesisFailed, err)
	}

	var pcm bytes.Buffer
	for {
		resp, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("%w: %v", ErrSynthesisFailed, err)
		}
		if chunk := resp.GetAudioChunk(); chunk != nil {
			pcm.Write(chunk.GetData())
		}
	}

	if pcm.Len() == 0 {
		return nil, fmt.Errorf("%w: no audio output", ErrSynthesisFailed)
	}

	y.logger.Debug("yandex synthesis complete", "output_bytes", pcm.Len())

	return &AudioResult{
		Data:       wav.WrapRawPCM(pcm.Bytes(), yandexSampleRate, 1, 16),
		Format:     FormatWAV,
		SampleRate: yandexSampleRate,
		Channels:   1,
	}, nil
}

func (y *YandexEngine) buildRequest(req SynthesizeRequest) *yandextts.UtteranceSynthesisRequest {
	voice := req.Voice
	if voice == "" || voice == "default" {
		voice = y.config.Voices[0]
	}

	out := &yandextts.UtteranceSynthesisRequest{}
	out.SetModel(y.config.Model)
	out.SetText(req.Text)

	voiceHint := &yandextts.Hints{}
	voiceHint.SetVoice(voice)

	speedHint := &yandextts.Hints{}
	speedHint.SetSpeed(SpeedFactor(req.Rate))

	out.SetHints([]*yandextts.Hints{voiceHint, speedHint})

	raw := &yandextts.RawAudio{}
	raw.SetAudioEncoding(yandextts.RawAudio_LINEAR16_PCM)
	raw.SetSampleRateHertz(yandexSampleRate)

	spec := &yandextts.AudioFormatOptions{}
	spec.SetRawAudio(raw)
	out.SetOutputAudioSpec(spec)

	out.SetLoudnessNormalizationType(yandextts.UtteranceSynthesisRequest_LUFS)
	return out
}
