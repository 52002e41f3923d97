package speech

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync/atomic"

	"github.com/dgnsrekt/readaloud/internal/audio"
	"github.com/dgnsrekt/readaloud/internal/tts"
)

// Synth speaks through a TTS engine from the registry and an audio player.
// Word progress is derived from the playback position.
type Synth struct {
	registry *tts.Registry
	player   audio.Player
	logger   *slog.Logger
}

// NewSynth creates a Synth.
func NewSynth(registry *tts.Registry, player audio.Player, logger *slog.Logger) *Synth {
	return &Synth{
		registry: registry,
		player:   player,
		logger:   logger,
	}
}

// Voices lists the voices of the active engine.
func (s *Synth) Voices() []string {
	return s.registry.Voices()
}

// Start validates the request and speaks it in the background.
func (s *Synth) Start(req Request, emit func(Event)) (Session, error) {
	engine, err := s.engineFor(req)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Text) == "" {
		return nil, ErrEmptyText
	}

	ctx, cancel := context.WithCancel(context.Background())
	sess := &session{
		id:     req.Session,
		cancel: cancel,
		gate:   &audio.Gate{},
		emit:   emit,
	}

	go s.run(ctx, sess, engine, req)
	return sess, nil
}

// Render synthesizes text to a clip without playing it.
func (s *Synth) Render(ctx context.Context, req Request) (*audio.Clip, error) {
	engine, err := s.engineFor(req)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Text) == "" {
		return nil, ErrEmptyText
	}

	res, err := engine.Synthesize(ctx, tts.SynthesizeRequest{Text: req.Text, Voice: req.Voice, Rate: req.Rate})
	if err != nil {
		return nil, err
	}
	return audio.Decode(res)
}

func (s *Synth) engineFor(req Request) (tts.Engine, error) {
	engine, err := s.registry.Default()
	if err != nil {
		return nil, ErrNoEngine
	}

	voices := s.Voices()
	if len(voices) == 0 {
		return nil, ErrNoVoices
	}
	if req.Voice != "" && req.Voice != "default" && !slices.Contains(voices, req.Voice) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownVoice, req.Voice)
	}
	return engine, nil
}

func (s *Synth) run(ctx context.Context, sess *session, engine tts.Engine, req Request) {
	logger := s.logger.With("session", sess.id, "engine", engine.Name())

	res, err := engine.Synthesize(ctx, tts.SynthesizeRequest{
		Text:  req.Text,
		Voice: req.Voice,
		Rate:  ClampRate(req.Rate),
	})
	if err != nil {
		s.finish(ctx, sess, logger, fmt.Errorf("synthesize: %w", err))
		return
	}

	clip, err := audio.Decode(res)
	if err != nil {
		s.finish(ctx, sess, logger, fmt.Errorf("decode: %w", err))
		return
	}

	timeline := NewTimeline(req.Text)
	frames := clip.Frames()
	last := -1
	report := func(played int) {
		idx := timeline.IndexAt(float64(played) / float64(frames))
		if idx < 0 || idx == last {
			return
		}
		last = idx
		span := timeline.Span(idx)
		sess.send(Event{Kind: EventProgress, Offset: span.Offset, Length: span.Length})
	}

	logger.Debug("playing", "duration", clip.Duration(), "words", timeline.Len())
	report(0)

	err = s.player.Play(ctx, clip, sess.gate, report)
	s.finish(ctx, sess, logger, err)
}

// finish emits the terminal event unless the session was stopped.
func (s *Synth) finish(ctx context.Context, sess *session, logger *slog.Logger, err error) {
	if ctx.Err() != nil {
		logger.Debug("session stopped")
		return
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Warn("speech failed", "error", err)
		sess.send(Event{Kind: EventFailed, Err: err})
		return
	}
	logger.Debug("speech completed")
	sess.send(Event{Kind: EventCompleted})
}

type session struct {
	id      uint64
	cancel  context.CancelFunc
	gate    *audio.Gate
	emit    func(Event)
	stopped atomic.Bool
}

func (s *session) ID() uint64 { return s.id }
func (s *session) Pause()     { s.gate.Pause() }
func (s *session) Resume()    { s.gate.Resume() }

func (s *session) Stop() {
	s.stopped.Store(true)
	s.cancel()
}

func (s *session) send(ev Event) {
	if s.stopped.Load() || s.emit == nil {
		return
	}
	ev.Session = s.id
	s.emit(ev)
}
