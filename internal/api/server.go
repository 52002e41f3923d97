// Package api exposes the reader over HTTP and a websocket event stream.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/dgnsrekt/readaloud/internal/config"
	"github.com/dgnsrekt/readaloud/internal/reader"
	"github.com/dgnsrekt/readaloud/internal/text"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// Reader is the part of the reader the API drives. Methods are only called
// on the loop goroutine.
type Reader interface {
	Snapshot() reader.Snapshot
	Voices() []string
	StartSpeaking() error
	PauseReading()
	TogglePlayPause() error
	Stop()
	PasteText(s string) bool
	Select(sel text.Selection)
	SetVoice(voice string) error
	SetRate(rate int) error
}

// Runner runs fn on the loop goroutine and waits for it.
type Runner interface {
	Call(ctx context.Context, name string, fn func()) error
}

// Server handles HTTP API requests.
type Server struct {
	cfg    *config.Config
	logger *slog.Logger
	server *http.Server
	runner Runner
	reader Reader

	mu          sync.Mutex
	subscribers map[*subscriber]struct{}
}

// New creates a new API server.
func New(cfg *config.Config, logger *slog.Logger, runner Runner, rd Reader) *Server {
	s := &Server{
		cfg:         cfg,
		logger:      logger,
		runner:      runner,
		reader:      rd,
		subscribers: make(map[*subscriber]struct{}),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/healthz", s.handleHealthz)
	mux.HandleFunc("GET /v1/state", s.withAuth(s.handleState))
	mux.HandleFunc("GET /v1/voices", s.withAuth(s.handleVoices))
	mux.HandleFunc("POST /v1/text", s.withAuth(s.handleText))
	mux.HandleFunc("POST /v1/play", s.withAuth(s.handlePlay))
	mux.HandleFunc("POST /v1/pause", s.withAuth(s.handlePause))
	mux.HandleFunc("POST /v1/toggle", s.withAuth(s.handleToggle))
	mux.HandleFunc("POST /v1/stop", s.withAuth(s.handleStop))
	mux.HandleFunc("POST /v1/select", s.withAuth(s.handleSelect))
	mux.HandleFunc("POST /v1/voice", s.withAuth(s.handleVoice))
	mux.HandleFunc("POST /v1/rate", s.withAuth(s.handleRate))
	mux.HandleFunc("GET /v1/events", s.withAuth(s.handleEvents))

	s.server = &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      withSentryRecovery(mux),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "addr", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server error: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server and disconnects event subscribers.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	s.closeSubscribers()
	return s.server.Shutdown(ctx)
}
