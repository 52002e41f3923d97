// Package speech turns text into audible, position-reporting speech
// sessions. Each Start call owns a fresh session; events from a session
// carry its id so a superseded session can never be mistaken for the
// current one.
package speech

import (
	"errors"

	"github.com/dgnsrekt/readaloud/internal/tts"
)

var (
	// ErrNoEngine is returned when no synthesizer is configured.
	ErrNoEngine = errors.New("no speech engine available")
	// ErrNoVoices is returned when the synthesizer reports no voices.
	ErrNoVoices = errors.New("no voices installed")
	// ErrUnknownVoice is returned when a request names a voice the engine lacks.
	ErrUnknownVoice = errors.New("unknown voice")
	// ErrEmptyText is returned when there is nothing to speak.
	ErrEmptyText = errors.New("empty text")
)

// Rate bounds follow the classic desktop synthesizer scale.
const (
	MinRate = tts.MinRate
	MaxRate = tts.MaxRate
)

// EventKind identifies a session event.
type EventKind int

const (
	// EventProgress reports the span currently being spoken.
	EventProgress EventKind = iota
	// EventCompleted reports that the whole text was spoken.
	EventCompleted
	// EventFailed reports that synthesis or playback failed.
	EventFailed
)

func (k EventKind) String() string {
	switch k {
	case EventProgress:
		return "progress"
	case EventCompleted:
		return "completed"
	case EventFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Event is emitted by a session. Offset and Length are rune offsets relative
// to the text passed to Start.
type Event struct {
	Session uint64
	Kind    EventKind
	Offset  int
	Length  int
	Err     error
}

// Request describes one speak call.
type Request struct {
	Session uint64
	Text    string
	Voice   string
	Rate    int
}

// Session is a running speak call.
type Session interface {
	ID() uint64
	Pause()
	Resume()
	Stop()
}

// Engine starts sessions. emit may be called from any goroutine; callers
// are expected to marshal events onto their own loop.
type Engine interface {
	Voices() []string
	Start(req Request, emit func(Event)) (Session, error)
}

// ClampRate forces rate into [MinRate, MaxRate].
func ClampRate(rate int) int {
	if rate < MinRate {
		return MinRate
	}
	if rate > MaxRate {
		return MaxRate
	}
	return rate
}
