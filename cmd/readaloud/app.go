package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgnsrekt/readaloud/internal/api"
	"github.com/dgnsrekt/readaloud/internal/audio"
	"github.com/dgnsrekt/readaloud/internal/capture"
	"github.com/dgnsrekt/readaloud/internal/clipboard"
	"github.com/dgnsrekt/readaloud/internal/loop"
	"github.com/dgnsrekt/readaloud/internal/paste"
	"github.com/dgnsrekt/readaloud/internal/reader"
	"github.com/dgnsrekt/readaloud/internal/source"
	"github.com/dgnsrekt/readaloud/internal/speech"
	"github.com/dgnsrekt/readaloud/internal/state"
)

// tokenTTL is the lifetime of tokens issued from the console.
const tokenTTL = 24 * time.Hour

type screen interface {
	Capture(r capture.Rect) ([]byte, error)
}

type renderer interface {
	Render(ctx context.Context, req speech.Request) (*audio.Clip, error)
}

// app ties the reader to its inputs. lastFile is only touched on the loop
// goroutine.
type app struct {
	logger  *slog.Logger
	loop    *loop.Loop
	reader  *reader.Reader
	paste   *paste.Handler
	clip    clipboard.Reader
	monitor *clipboard.Monitor
	copyFn  func(string) error
	screen  screen
	render  renderer

	region    capture.Rect
	jwtSecret string
	statePath string
	lastFile  string
}

// post runs fn on the loop goroutine.
func (a *app) post(fn func()) {
	a.loop.Go("reader", fn)
}

// postFinal is post for session endings, which are queued even when the
// loop is full.
func (a *app) postFinal(fn func()) {
	a.loop.Must("reader:final", fn)
}

// PasteText replaces the document with pasted text. The document no longer
// belongs to a file afterwards.
func (a *app) PasteText(s string) bool {
	if !a.reader.PasteText(s) {
		return false
	}
	a.lastFile = ""
	return true
}

// restore reopens the last file and reapplies the saved voice and rate.
func (a *app) restore() {
	if a.statePath == "" {
		return
	}

	saved, err := state.Load(a.statePath)
	if err != nil {
		a.logger.Warn("failed to load saved state", "path", a.statePath, "error", err)
		return
	}
	if saved.SavedAt.IsZero() {
		return
	}

	if saved.Voice != "" {
		if err := a.reader.SetVoice(saved.Voice); err != nil {
			a.logger.Info("saved voice unavailable", "voice", saved.Voice, "error", err)
		}
	}
	if err := a.reader.SetRate(saved.Rate); err != nil {
		a.logger.Info("saved rate not applied", "rate", saved.Rate, "error", err)
	}

	if saved.LastFile == "" {
		return
	}
	doc, err := source.Load(saved.LastFile)
	if err != nil {
		a.logger.Warn("failed to reopen last file", "path", saved.LastFile, "error", err)
		return
	}
	a.reader.Open(doc.Text, saved.Caret)
	a.lastFile = doc.Path
	a.logger.Info("reopened last file", "path", doc.Path, "caret", saved.Caret)
}

// saveState writes the reading position. Runs on the loop goroutine.
func (a *app) saveState() {
	if a.statePath == "" {
		return
	}

	snap := a.reader.Snapshot()
	saved := &state.Saved{
		LastFile: a.lastFile,
		Caret:    snap.Selection.Start,
		Voice:    snap.Voice,
		Rate:     snap.Rate,
		SavedAt:  time.Now(),
	}
	if err := state.Save(a.statePath, saved); err != nil {
		a.logger.Warn("failed to save state", "path", a.statePath, "error", err)
		return
	}
	a.logger.Debug("state saved", "path", a.statePath, "caret", saved.Caret)
}

// open loads a file into the reader without speaking it.
func (a *app) open(ctx context.Context, path string) error {
	doc, err := source.Load(path)
	if err != nil {
		return err
	}

	a.logger.Info("file loaded", "path", doc.Path, "type", doc.Type, "pages", doc.Pages)
	return a.loop.Call(ctx, "open", func() {
		a.reader.Open(doc.Text, 0)
		a.lastFile = doc.Path
	})
}

// export renders the whole document to a WAV file.
func (a *app) export(ctx context.Context, path string) error {
	if a.render == nil {
		return errors.New("export unavailable")
	}

	var req speech.Request
	err := a.loop.Call(ctx, "export", func() {
		snap := a.reader.Snapshot()
		req = speech.Request{Text: snap.Text, Voice: snap.Voice, Rate: snap.Rate}
	})
	if err != nil {
		return err
	}

	clip, err := a.render.Render(ctx, req)
	if err != nil {
		return err
	}
	if err := audio.WriteWAVFile(path, clip); err != nil {
		return err
	}

	a.logger.Info("document exported", "path", path, "duration", clip.Duration())
	return nil
}

// pasteClipboard reads the clipboard and speaks its text, recognizing
// images first.
func (a *app) pasteClipboard(ctx context.Context) error {
	content, err := a.clip.Read()
	if err != nil {
		return err
	}
	return a.paste.Handle(ctx, "clipboard", content)
}

// copy puts the highlighted text, or the whole document when nothing is
// highlighted, on the clipboard.
func (a *app) copy(ctx context.Context) (int, error) {
	var out string
	err := a.loop.Call(ctx, "copy", func() {
		snap := a.reader.Snapshot()
		runes := []rune(snap.Text)
		sel := snap.Selection
		out = snap.Text
		if sel.Length > 0 && sel.Start+sel.Length <= len(runes) {
			out = string(runes[sel.Start : sel.Start+sel.Length])
		}
	})
	if err != nil {
		return 0, err
	}
	if out == "" {
		return 0, errors.New("nothing to copy")
	}
	a.monitor.Ignore(clipboard.Content{Text: out})
	if err := a.copyFn(out); err != nil {
		return 0, err
	}
	return len([]rune(out)), nil
}

// capture grabs the configured screen region and speaks the text in it.
func (a *app) capture(ctx context.Context) error {
	if a.screen == nil {
		return errors.New("screen capture unavailable")
	}

	img, err := a.screen.Capture(a.region)
	if err != nil {
		return fmt.Errorf("capture %s: %w", a.region, err)
	}
	return a.paste.Handle(ctx, "capture", clipboard.Content{Image: img})
}

// token issues an API token for websocket and script clients.
func (a *app) token() (string, time.Time, error) {
	if a.jwtSecret == "" {
		return "", time.Time{}, errors.New("API_JWT_SECRET is not set")
	}
	return api.IssueToken(a.jwtSecret, "console", tokenTTL)
}
