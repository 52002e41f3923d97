// Package discord plays speech into a Discord voice channel.
package discord

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"layeh.com/gopus"

	"github.com/dgnsrekt/readaloud/internal/audio"
)

const (
	// voiceConnectTimeout is the maximum time to wait for voice connection readiness.
	voiceConnectTimeout = 10 * time.Second
	// voiceConnectPollInterval is the polling interval while waiting for connection.
	voiceConnectPollInterval = 100 * time.Millisecond
	// frameDuration is the duration of one Discord audio frame (20ms).
	frameDuration = 20 * time.Millisecond
	// maxOpusDataBytes is the maximum size of an encoded Opus frame.
	maxOpusDataBytes = 4000
)

var (
	// ErrNotConnected is returned when trying to send audio while not connected.
	ErrNotConnected = errors.New("not connected to voice channel")
	// ErrConnectionFailed is returned when voice connection fails.
	ErrConnectionFailed = errors.New("failed to connect to voice channel")
)

// VoiceManager joins a voice channel and plays clips into it. It
// implements audio.Player.
type VoiceManager struct {
	mu              sync.Mutex
	session         *discordgo.Session
	voiceConnection *discordgo.VoiceConnection
	guildID         string
	channelID       string
	logger          *slog.Logger
	connected       bool
	opusEncoder     *gopus.Encoder
	converter       *audio.Converter

	// playMu keeps one clip on the channel at a time.
	playMu sync.Mutex
}

// NewVoiceManager creates a new voice manager.
func NewVoiceManager(token, guildID, channelID string, converter *audio.Converter, logger *slog.Logger) (*VoiceManager, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, err
	}

	encoder, err := gopus.NewEncoder(audio.DiscordSampleRate, audio.DiscordChannels, gopus.Voip)
	if err != nil {
		return nil, err
	}

	return &VoiceManager{
		session:     session,
		guildID:     guildID,
		channelID:   channelID,
		logger:      logger,
		opusEncoder: encoder,
		converter:   converter,
	}, nil
}

// Open opens the Discord session.
func (vm *VoiceManager) Open() error {
	return vm.session.Open()
}

// Close closes the Discord session and voice connection.
func (vm *VoiceManager) Close() error {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	if vm.voiceConnection != nil {
		vm.voiceConnection.Disconnect()
		vm.voiceConnection = nil
	}
	vm.connected = false

	return vm.session.Close()
}

// Connect joins the configured voice channel.
func (vm *VoiceManager) Connect(ctx context.Context) error {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	if vm.connected && vm.voiceConnection != nil {
		return nil
	}

	vm.logger.Info("connecting to voice channel", "guild_id", vm.guildID, "channel_id", vm.channelID)

	// deafened: we only speak
	vc, err := vm.session.ChannelVoiceJoin(vm.guildID, vm.channelID, false, true)
	if err != nil {
		return err
	}

	deadline := time.Now().Add(voiceConnectTimeout)
	for {
		if ctx.Err() != nil {
			vc.Disconnect()
			return ctx.Err()
		}
		if time.Now().After(deadline) {
			vc.Disconnect()
			return ErrConnectionFailed
		}
		if vc.Ready {
			break
		}
		time.Sleep(voiceConnectPollInterval)
	}

	vm.voiceConnection = vc
	vm.connected = true
	vm.logger.Info("connected to voice channel")

	return nil
}

// Disconnect leaves the voice channel.
func (vm *VoiceManager) Disconnect() error {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	if vm.voiceConnection == nil {
		return nil
	}

	vm.logger.Info("disconnecting from voice channel")
	err := vm.voiceConnection.Disconnect()
	vm.voiceConnection = nil
	vm.connected = false

	return err
}

// IsConnected returns whether the bot is connected to voice.
func (vm *VoiceManager) IsConnected() bool {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.connected && vm.voiceConnection != nil
}

// Play converts the clip to 48kHz stereo, joins the channel if needed and
// streams it as Opus frames.
func (vm *VoiceManager) Play(ctx context.Context, clip *audio.Clip, gate *audio.Gate, progress audio.ProgressFunc) error {
	vm.playMu.Lock()
	defer vm.playMu.Unlock()

	pcm, err := vm.converter.ConvertClipToDiscordPCM(ctx, clip)
	if err != nil {
		return err
	}

	if err := vm.Connect(ctx); err != nil {
		return err
	}

	frames := clip.Frames()
	return vm.SendAudio(ctx, pcm, gate, func(fraction float64) {
		if progress != nil {
			progress(int(fraction * float64(frames)))
		}
	})
}

// SendAudio sends PCM audio data to the voice channel.
// The PCM data must be 48kHz, stereo, 16-bit signed little-endian.
func (vm *VoiceManager) SendAudio(ctx context.Context, pcmData []byte, gate *audio.Gate, progress func(fraction float64)) error {
	vm.mu.Lock()
	vc := vm.voiceConnection
	connected := vm.connected
	vm.mu.Unlock()

	if !connected || vc == nil {
		return ErrNotConnected
	}

	return vm.sendFrames(ctx, voiceOutput{vc}, pcmData, gate, progress, vm.encodeOpus)
}

// frameSink is the part of a voice connection that carries audio.
type frameSink interface {
	Speaking(bool) error
	Frames() chan<- []byte
}

type voiceOutput struct {
	vc *discordgo.VoiceConnection
}

func (o voiceOutput) Speaking(b bool) error  { return o.vc.Speaking(b) }
func (o voiceOutput) Frames() chan<- []byte { return o.vc.OpusSend }

func (vm *VoiceManager) sendFrames(ctx context.Context, sink frameSink, pcmData []byte, gate *audio.Gate, progress func(float64), encode func([]byte) ([]byte, error)) error {
	if gate == nil {
		gate = &audio.Gate{}
	}
	frameReader := audio.NewPCMFrameReader(pcmData)

	if err := sink.Speaking(true); err != nil {
		vm.logger.Error("failed to set speaking state", "error", err)
	}
	defer func() {
		if err := sink.Speaking(false); err != nil {
			vm.logger.Error("failed to clear speaking state", "error", err)
		}
	}()

	ticker := time.NewTicker(frameDuration)
	defer ticker.Stop()

	for {
		if gate.Paused() {
			if err := sink.Speaking(false); err != nil {
				vm.logger.Error("failed to clear speaking state on pause", "error", err)
			}
			if err := gate.Wait(ctx); err != nil {
				return err
			}
			if err := sink.Speaking(true); err != nil {
				vm.logger.Error("failed to set speaking state on resume", "error", err)
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			frame, err := frameReader.ReadFrame()
			if err == io.EOF {
				if progress != nil {
					progress(1)
				}
				return nil
			}
			if err != nil {
				return err
			}

			opusData, err := encode(frame)
			if err != nil {
				vm.logger.Error("opus encoding failed", "error", err)
				continue
			}

			select {
			case <-ctx.Done():
				return ctx.Err()
			case sink.Frames() <- opusData:
			}
			if progress != nil {
				progress(frameReader.Fraction())
			}
		}
	}
}

// encodeOpus converts one 20ms stereo PCM frame to Opus.
func (vm *VoiceManager) encodeOpus(pcm []byte) ([]byte, error) {
	samples := make([]int16, len(pcm)/2)
	for i := 0; i < len(samples); i++ {
		samples[i] = int16(binary.LittleEndian.Uint16(pcm[i*2:]))
	}

	return vm.opusEncoder.Encode(samples, audio.DiscordFrameSize, maxOpusDataBytes)
}
