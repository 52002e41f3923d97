package reader

import (
	"fmt"
	"strings"

	"github.com/dgnsrekt/readaloud/internal/text"
)

// State is the playback state.
type State int

const (
	// Idle means nothing is being spoken.
	Idle State = iota
	// Speaking means a session is playing.
	Speaking
	// Paused means the current session is held.
	Paused
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Speaking:
		return "speaking"
	case Paused:
		return "paused"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *State) UnmarshalText(b []byte) error {
	switch string(b) {
	case "idle":
		*s = Idle
	case "speaking":
		*s = Speaking
	case "paused":
		*s = Paused
	default:
		return fmt.Errorf("unknown state %q", b)
	}
	return nil
}

// RestartPolicy decides whether a user edit restarts speech.
type RestartPolicy int

const (
	// RestartIfSpeaking restarts only when already speaking.
	RestartIfSpeaking RestartPolicy = iota
	// RestartAlways restarts on every user edit.
	RestartAlways
)

func (p RestartPolicy) String() string {
	if p == RestartAlways {
		return "always"
	}
	return "speaking"
}

// ParseRestartPolicy parses "speaking" or "always".
func ParseRestartPolicy(s string) (RestartPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "speaking":
		return RestartIfSpeaking, nil
	case "always":
		return RestartAlways, nil
	default:
		return RestartIfSpeaking, fmt.Errorf("unknown restart policy %q", s)
	}
}

// Snapshot is a copy of the reader state.
type Snapshot struct {
	Text      string         `json:"text"`
	Selection text.Selection `json:"selection"`
	State     State          `json:"state"`
	Voice     string         `json:"voice"`
	Rate      int            `json:"rate"`
	Session   uint64         `json:"session"`
	Base      int            `json:"base"`
}

// Update describes a state or highlight change, without the text.
type Update struct {
	Selection text.Selection `json:"selection"`
	Reason    string         `json:"reason"`
	State     State          `json:"state"`
	Session   uint64         `json:"session"`
}
