package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/dgnsrekt/readaloud/internal/loop"
	"github.com/dgnsrekt/readaloud/internal/reader"
	"github.com/dgnsrekt/readaloud/internal/text"
)

// TextRequest represents the request body for /v1/text.
type TextRequest struct {
	Text string `json:"text"`
}

// SelectRequest represents the request body for /v1/select.
type SelectRequest struct {
	Start  int `json:"start"`
	Length int `json:"length"`
}

// VoiceRequest represents the request body for /v1/voice.
type VoiceRequest struct {
	Voice string `json:"voice"`
}

// RateRequest represents the request body for /v1/rate.
type RateRequest struct {
	Rate *int `json:"rate"`
}

// StateResponse wraps the reader state, with an error when the requested
// operation could not be completed.
type StateResponse struct {
	reader.Snapshot
	Error string `json:"error,omitempty"`
}

// VoicesResponse represents the response body for /v1/voices.
type VoicesResponse struct {
	Voices []string `json:"voices"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthResponse represents the response body for /v1/healthz.
type HealthResponse struct {
	Status string `json:"status"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.logger.Warn("failed to decode request", "path", r.URL.Path, "error", err)
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid JSON body"})
		return false
	}
	return true
}

// run executes fn on the loop and answers with the resulting state. A
// non-nil error from fn is reported with status failStatus.
func (s *Server) run(w http.ResponseWriter, r *http.Request, name string, failStatus int, fn func() error) {
	var (
		opErr error
		snap  reader.Snapshot
	)

	err := s.runner.Call(r.Context(), name, func() {
		opErr = fn()
		snap = s.reader.Snapshot()
	})
	if err != nil {
		s.writeLoopError(w, name, err)
		return
	}

	if opErr != nil {
		s.logger.Info("api operation failed", "operation", name, "error", opErr)
		writeJSON(w, failStatus, StateResponse{Snapshot: snap, Error: opErr.Error()})
		return
	}

	writeJSON(w, http.StatusOK, StateResponse{Snapshot: snap})
}

func (s *Server) writeLoopError(w http.ResponseWriter, name string, err error) {
	switch {
	case errors.Is(err, loop.ErrLoopFull), errors.Is(err, loop.ErrLoopClosed):
		writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{Error: err.Error()})
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeJSON(w, http.StatusGatewayTimeout, ErrorResponse{Error: "request cancelled"})
	default:
		s.logger.Error("loop call failed", "operation", name, "error", err)
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
	}
}

// handleHealthz handles GET /v1/healthz requests.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// handleState handles GET /v1/state requests.
func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	s.run(w, r, "api:state", http.StatusOK, func() error { return nil })
}

// handleVoices handles GET /v1/voices requests.
func (s *Server) handleVoices(w http.ResponseWriter, r *http.Request) {
	var voices []string
	if err := s.runner.Call(r.Context(), "api:voices", func() { voices = s.reader.Voices() }); err != nil {
		s.writeLoopError(w, "api:voices", err)
		return
	}
	if voices == nil {
		voices = []string{}
	}
	writeJSON(w, http.StatusOK, VoicesResponse{Voices: voices})
}

// handleText handles POST /v1/text: replace the document and speak it.
func (s *Server) handleText(w http.ResponseWriter, r *http.Request) {
	var req TextRequest
	if !s.decode(w, r, &req) {
		return
	}

	if strings.TrimSpace(req.Text) == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "text is required"})
		return
	}

	s.logger.Info("text received", "text_length", len(req.Text))
	s.run(w, r, "api:text", http.StatusOK, func() error {
		s.reader.PasteText(req.Text)
		return nil
	})
}

// handlePlay handles POST /v1/play requests.
func (s *Server) handlePlay(w http.ResponseWriter, r *http.Request) {
	s.run(w, r, "api:play", http.StatusServiceUnavailable, s.reader.StartSpeaking)
}

// handlePause handles POST /v1/pause requests.
func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	s.run(w, r, "api:pause", http.StatusOK, func() error {
		s.reader.PauseReading()
		return nil
	})
}

// handleToggle handles POST /v1/toggle requests.
func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	s.run(w, r, "api:toggle", http.StatusServiceUnavailable, s.reader.TogglePlayPause)
}

// handleStop handles POST /v1/stop requests.
func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	s.run(w, r, "api:stop", http.StatusOK, func() error {
		s.reader.Stop()
		return nil
	})
}

// handleSelect handles POST /v1/select requests. Out-of-range values are
// clamped by the document.
func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	var req SelectRequest
	if !s.decode(w, r, &req) {
		return
	}

	s.run(w, r, "api:select", http.StatusOK, func() error {
		s.reader.Select(text.Selection{Start: req.Start, Length: req.Length})
		return nil
	})
}

// handleVoice handles POST /v1/voice requests.
func (s *Server) handleVoice(w http.ResponseWriter, r *http.Request) {
	var req VoiceRequest
	if !s.decode(w, r, &req) {
		return
	}

	if req.Voice == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "voice is required"})
		return
	}

	s.run(w, r, "api:voice", http.StatusBadRequest, func() error {
		return s.reader.SetVoice(req.Voice)
	})
}

// handleRate handles POST /v1/rate requests.
func (s *Server) handleRate(w http.ResponseWriter, r *http.Request) {
	var req RateRequest
	if !s.decode(w, r, &req) {
		return
	}

	if req.Rate == nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "rate is required"})
		return
	}

	s.run(w, r, "api:rate", http.StatusBadRequest, func() error {
		return s.reader.SetRate(*req.Rate)
	})
}
