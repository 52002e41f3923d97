package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dgnsrekt/readaloud/internal/config"
	"github.com/dgnsrekt/readaloud/internal/logging"
	"github.com/dgnsrekt/readaloud/internal/loop"
	"github.com/dgnsrekt/readaloud/internal/reader"
	"github.com/dgnsrekt/readaloud/internal/text"
)

func testConfig() *config.Config {
	return &config.Config{
		HTTPAddr:    "127.0.0.1:0",
		BearerToken: "test-token",
		LogLevel:    "info",
		LogFormat:   "text",
	}
}

// inlineRunner runs loop calls on the calling goroutine.
type inlineRunner struct {
	err   error
	names []string
}

func (r *inlineRunner) Call(ctx context.Context, name string, fn func()) error {
	r.names = append(r.names, name)
	if r.err != nil {
		return r.err
	}
	fn()
	return nil
}

// fakeReader is an in-memory Reader.
type fakeReader struct {
	text     string
	sel      text.Selection
	state    reader.State
	voice    string
	rate     int
	voices   []string
	startErr error
}

func newFakeReader() *fakeReader {
	return &fakeReader{voice: "default", voices: []string{"default", "alena"}}
}

func (f *fakeReader) Snapshot() reader.Snapshot {
	return reader.Snapshot{Text: f.text, Selection: f.sel, State: f.state, Voice: f.voice, Rate: f.rate}
}
func (f *fakeReader) Voices() []string { return f.voices }
func (f *fakeReader) StartSpeaking() error {
	if f.startErr != nil {
		return f.startErr
	}
	f.state = reader.Speaking
	return nil
}
func (f *fakeReader) PauseReading() { f.state = reader.Paused }
func (f *fakeReader) TogglePlayPause() error {
	if f.state == reader.Speaking {
		f.PauseReading()
		return nil
	}
	return f.StartSpeaking()
}
func (f *fakeReader) Stop() { f.state = reader.Idle }
func (f *fakeReader) PasteText(s string) bool {
	f.text = s
	f.sel = text.Selection{}
	return f.StartSpeaking() == nil
}
func (f *fakeReader) Select(sel text.Selection) {
	if sel.Start > len(f.text) {
		sel.Start = len(f.text)
	}
	f.sel = sel
}
func (f *fakeReader) SetVoice(voice string) error {
	for _, v := range f.voices {
		if v == voice {
			f.voice = voice
			return nil
		}
	}
	return fmt.Errorf("unknown voice %q", voice)
}
func (f *fakeReader) SetRate(rate int) error {
	f.rate = rate
	return nil
}

func testServer(cfg *config.Config) *Server {
	logger := logging.Discard()
	return New(cfg, logger, &inlineRunner{}, newFakeReader())
}

func do(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Authorization", "Bearer test-token")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func decodeState(t *testing.T, w *httptest.ResponseRecorder) StateResponse {
	t.Helper()
	var resp StateResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v (%s)", err, w.Body.String())
	}
	return resp
}

func TestHealthz(t *testing.T) {
	srv := testServer(testConfig())

	req := httptest.NewRequest("GET", "/v1/healthz", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, w.Code)
	}

	var resp HealthResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if resp.Status != "ok" {
		t.Errorf("expected status 'ok', got '%s'", resp.Status)
	}
}

func TestTextSuccess(t *testing.T) {
	srv := testServer(testConfig())

	w := do(t, srv, "POST", "/v1/text", `{"text":"Hello world"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}

	resp := decodeState(t, w)
	if resp.Text != "Hello world" {
		t.Errorf("text = %q, want %q", resp.Text, "Hello world")
	}
	if resp.State != reader.Speaking {
		t.Errorf("state = %v, want speaking", resp.State)
	}
}

func TestTextValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"missing text", `{}`, "text is required"},
		{"blank text", `{"text":"  \n "}`, "text is required"},
		{"invalid json", `{not json`, "invalid JSON body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := testServer(testConfig())
			w := do(t, srv, "POST", "/v1/text", tt.body)

			if w.Code != http.StatusBadRequest {
				t.Errorf("expected status %d, got %d", http.StatusBadRequest, w.Code)
			}
			var resp ErrorResponse
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Fatalf("failed to unmarshal response: %v", err)
			}
			if resp.Error != tt.want {
				t.Errorf("error = %q, want %q", resp.Error, tt.want)
			}
		})
	}
}

func TestPlayPauseStop(t *testing.T) {
	srv := testServer(testConfig())

	steps := []struct {
		path string
		want reader.State
	}{
		{"/v1/play", reader.Speaking},
		{"/v1/pause", reader.Paused},
		{"/v1/toggle", reader.Speaking},
		{"/v1/toggle", reader.Paused},
		{"/v1/stop", reader.Idle},
	}

	for _, step := range steps {
		w := do(t, srv, "POST", step.path, "")
		if w.Code != http.StatusOK {
			t.Fatalf("%s: expected status %d, got %d", step.path, http.StatusOK, w.Code)
		}
		if got := decodeState(t, w).State; got != step.want {
			t.Errorf("%s: state = %v, want %v", step.path, got, step.want)
		}
	}
}

func TestPlayEngineUnavailable(t *testing.T) {
	rd := newFakeReader()
	rd.startErr = errors.New("no voices installed")
	srv := New(testConfig(), logging.Discard(), &inlineRunner{}, rd)

	w := do(t, srv, "POST", "/v1/play", "")
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status %d, got %d", http.StatusServiceUnavailable, w.Code)
	}
	resp := decodeState(t, w)
	if resp.Error != "no voices installed" {
		t.Errorf("error = %q, want %q", resp.Error, "no voices installed")
	}
	if resp.State != reader.Idle {
		t.Errorf("state = %v, want idle", resp.State)
	}
}

func TestSelect(t *testing.T) {
	rd := newFakeReader()
	rd.text = "Hello world"
	srv := New(testConfig(), logging.Discard(), &inlineRunner{}, rd)

	w := do(t, srv, "POST", "/v1/select", `{"start":6,"length":5}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}
	if got := decodeState(t, w).Selection; got != (text.Selection{Start: 6, Length: 5}) {
		t.Errorf("selection = %+v, want {6 5}", got)
	}
}

func TestVoice(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		status int
		voice  string
	}{
		{"known voice", `{"voice":"alena"}`, http.StatusOK, "alena"},
		{"unknown voice", `{"voice":"nobody"}`, http.StatusBadRequest, "default"},
		{"missing voice", `{}`, http.StatusBadRequest, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := testServer(testConfig())
			w := do(t, srv, "POST", "/v1/voice", tt.body)
			if w.Code != tt.status {
				t.Fatalf("expected status %d, got %d", tt.status, w.Code)
			}
			if tt.voice == "" {
				return
			}
			if got := decodeState(t, w).Voice; got != tt.voice {
				t.Errorf("voice = %q, want %q", got, tt.voice)
			}
		})
	}
}

func TestRate(t *testing.T) {
	srv := testServer(testConfig())

	w := do(t, srv, "POST", "/v1/rate", `{"rate":0}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}

	w = do(t, srv, "POST", "/v1/rate", `{"rate":-3}`)
	if got := decodeState(t, w).Rate; got != -3 {
		t.Errorf("rate = %d, want -3", got)
	}

	w = do(t, srv, "POST", "/v1/rate", `{}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected status %d for missing rate, got %d", http.StatusBadRequest, w.Code)
	}
}

func TestVoices(t *testing.T) {
	srv := testServer(testConfig())

	w := do(t, srv, "GET", "/v1/voices", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}
	var resp VoicesResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if len(resp.Voices) != 2 {
		t.Errorf("voices = %v, want 2 entries", resp.Voices)
	}
}

func TestLoopErrors(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{loop.ErrLoopFull, http.StatusServiceUnavailable},
		{loop.ErrLoopClosed, http.StatusServiceUnavailable},
		{context.Canceled, http.StatusGatewayTimeout},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			srv := New(testConfig(), logging.Discard(), &inlineRunner{err: tt.err}, newFakeReader())
			w := do(t, srv, "GET", "/v1/state", "")
			if w.Code != tt.status {
				t.Errorf("expected status %d, got %d", tt.status, w.Code)
			}
		})
	}
}

func TestRoutesRequireAuth(t *testing.T) {
	srv := testServer(testConfig())

	for _, route := range []struct{ method, path string }{
		{"GET", "/v1/state"},
		{"GET", "/v1/voices"},
		{"POST", "/v1/text"},
		{"POST", "/v1/play"},
		{"POST", "/v1/select"},
		{"GET", "/v1/events"},
	} {
		req := httptest.NewRequest(route.method, route.path, nil)
		w := httptest.NewRecorder()
		srv.Handler().ServeHTTP(w, req)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("%s %s: expected status %d, got %d", route.method, route.path, http.StatusUnauthorized, w.Code)
		}
	}
}

func TestWrongMethod(t *testing.T) {
	srv := testServer(testConfig())

	w := do(t, srv, "GET", "/v1/play", "")
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected status %d, got %d", http.StatusMethodNotAllowed, w.Code)
	}
}
