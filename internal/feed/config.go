package feed

import (
	"errors"
	"time"
)

// Transport selects how topics are streamed from the ntfy server.
type Transport string

const (
	// TransportJSON streams newline-delimited JSON over HTTP.
	TransportJSON Transport = "json"
	// TransportWebSocket streams messages over a websocket.
	TransportWebSocket Transport = "ws"
)

// Config holds ntfy feed settings.
type Config struct {
	Server        string
	Topics        []string
	Token         string
	Transport     Transport
	Prefix        string
	DedupeWindow  time.Duration
	MaxTextLength int
}

// Validate checks that required configuration values are set.
func (c *Config) Validate() error {
	if len(c.Topics) == 0 {
		return errors.New("NTFY_TOPICS is required (comma-separated list of topics)")
	}

	if c.Server == "" {
		return errors.New("NTFY_SERVER cannot be empty")
	}

	if c.Transport != TransportJSON && c.Transport != TransportWebSocket {
		return errors.New("NTFY_TRANSPORT must be one of: json, ws")
	}

	if c.MaxTextLength < 1 {
		return errors.New("NTFY_MAX_TEXT_LENGTH must be at least 1")
	}

	if c.DedupeWindow < 0 {
		return errors.New("NTFY_DEDUPE_WINDOW must be non-negative")
	}

	return nil
}
