// Package reader keeps the spoken-word highlight of a document in step with
// a speech engine and decides when user actions restart speech.
//
// A Reader is not safe for concurrent use. Every method, and every engine
// event, must run on a single goroutine; engine events are handed to the
// post function given to New so they can be marshalled there.
package reader

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/dgnsrekt/readaloud/internal/speech"
	"github.com/dgnsrekt/readaloud/internal/text"
)

// Notifier shows a short status message to the user.
type Notifier interface {
	Notify(message string)
}

// Options configures a Reader.
type Options struct {
	Voice    string
	Rate     int
	Policy   RestartPolicy
	Notifier Notifier
	Logger   *slog.Logger

	// PostFinal marshals Completed and Failed events. It must not drop
	// them. Defaults to post.
	PostFinal func(func())
}

// Reader is the speech position and selection synchronizer.
type Reader struct {
	doc    *text.Document
	engine speech.Engine
	post      func(func())
	postFinal func(func())

	session   speech.Session
	sessionID uint64
	base      int
	state     State

	voice    string
	rate     int
	policy   RestartPolicy
	notifier Notifier
	logger   *slog.Logger

	observers []func(Update)
}

// New wires a reader to doc and engine. post must run its argument on the
// goroutine that owns the reader.
func New(doc *text.Document, engine speech.Engine, post func(func()), opts Options) *Reader {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.PostFinal == nil {
		opts.PostFinal = post
	}

	r := &Reader{
		doc:       doc,
		engine:    engine,
		post:      post,
		postFinal: opts.PostFinal,
		voice:     opts.Voice,
		rate:      speech.ClampRate(opts.Rate),
		policy:    opts.Policy,
		notifier:  opts.Notifier,
		logger:    logger,
	}

	doc.OnSelectionChanged(r.selectionChanged)
	doc.OnTextChanged(r.textChanged)
	return r
}

// Observe registers fn to receive every selection and state change.
func (r *Reader) Observe(fn func(Update)) {
	r.observers = append(r.observers, fn)
}

// Document returns the document being read.
func (r *Reader) Document() *text.Document {
	return r.doc
}

// State returns the playback state.
func (r *Reader) State() State {
	return r.state
}

// Snapshot copies the current state.
func (r *Reader) Snapshot() Snapshot {
	return Snapshot{
		Text:      r.doc.Text(),
		Selection: r.doc.Selection(),
		State:     r.state,
		Voice:     r.voice,
		Rate:      r.rate,
		Session:   r.sessionID,
		Base:      r.base,
	}
}

// Voices lists the engine's voices.
func (r *Reader) Voices() []string {
	return r.engine.Voices()
}

// StartSpeaking supersedes any running session and speaks from the start
// of the selection to the end of the document.
func (r *Reader) StartSpeaking() error {
	r.stopSession()

	r.sessionID++
	r.base = r.doc.Selection().Start
	remainder := r.doc.Slice(r.base)

	if strings.TrimSpace(remainder) == "" {
		r.logger.Debug("nothing to speak", "base", r.base)
		r.setState(Idle)
		return nil
	}

	id := r.sessionID
	sess, err := r.engine.Start(speech.Request{
		Session: id,
		Text:    remainder,
		Voice:   r.voice,
		Rate:    r.rate,
	}, r.emit)
	if err != nil {
		r.setState(Idle)
		r.report("speech unavailable", err)
		return err
	}

	r.session = sess
	r.logger.Debug("speaking", "session", id, "base", r.base, "length", len([]rune(remainder)))
	r.setState(Speaking)
	return nil
}

// PauseReading holds the running session.
func (r *Reader) PauseReading() {
	if r.state != Speaking || r.session == nil {
		return
	}
	r.session.Pause()
	r.setState(Paused)
}

// TogglePlayPause pauses while speaking and otherwise starts speaking from
// the caret.
func (r *Reader) TogglePlayPause() error {
	if r.state == Speaking {
		r.PauseReading()
		return nil
	}
	return r.StartSpeaking()
}

// Stop ends the running session and returns to Idle.
func (r *Reader) Stop() {
	r.stopSession()
	r.sessionID++
	r.setState(Idle)
}

// HandleEvent applies a session event. Events from superseded sessions are
// ignored.
func (r *Reader) HandleEvent(ev speech.Event) {
	if r.session == nil || ev.Session != r.sessionID {
		r.logger.Debug("stale speech event", "session", ev.Session, "current", r.sessionID, "kind", ev.Kind)
		return
	}

	switch ev.Kind {
	case speech.EventProgress:
		r.doc.Select(text.Selection{Start: r.base + ev.Offset, Length: ev.Length}, text.ReasonProgress)
	case speech.EventCompleted:
		r.session = nil
		r.setState(Idle)
		r.doc.Select(text.Selection{}, text.ReasonInternal)
	case speech.EventFailed:
		r.session = nil
		r.setState(Idle)
		r.report("speech failed", ev.Err)
	}
}

// SetVoice changes the voice, restarting speech if speaking.
func (r *Reader) SetVoice(voice string) error {
	if voice != "" && voice != "default" && !slices.Contains(r.engine.Voices(), voice) {
		return fmt.Errorf("%w: %s", speech.ErrUnknownVoice, voice)
	}
	r.voice = voice
	r.logger.Info("voice changed", "voice", voice)
	return r.restartIfSpeaking()
}

// SetRate changes the rate, clamped to the supported range, restarting
// speech if speaking.
func (r *Reader) SetRate(rate int) error {
	r.rate = speech.ClampRate(rate)
	r.logger.Info("rate changed", "rate", r.rate)
	return r.restartIfSpeaking()
}

// PasteText replaces the document with s and speaks it from the start.
// Blank text leaves everything unchanged and returns false.
func (r *Reader) PasteText(s string) bool {
	s = norm.NFC.String(s)
	if strings.TrimSpace(s) == "" {
		r.logger.Debug("ignoring blank paste")
		return false
	}

	r.doc.SetText(s, text.ReasonInternal)
	r.doc.Select(text.Selection{}, text.ReasonInternal)
	if err := r.StartSpeaking(); err != nil {
		r.logger.Debug("paste not spoken", "error", err)
	}
	return true
}

// Open replaces the document without speaking and places the caret at
// caret, clamped to the new text. Any running session is stopped.
func (r *Reader) Open(s string, caret int) {
	r.Stop()
	r.doc.SetText(norm.NFC.String(s), text.ReasonInternal)
	r.doc.Select(text.Selection{Start: caret}, text.ReasonInternal)
}

// Select moves the selection as the user would.
func (r *Reader) Select(sel text.Selection) {
	r.doc.Select(sel, text.ReasonUser)
}

// Insert types s at the caret as the user would.
func (r *Reader) Insert(s string) {
	r.doc.Insert(s, text.ReasonUser)
}

// SetText replaces the document as a user edit.
func (r *Reader) SetText(s string) {
	r.doc.SetText(s, text.ReasonUser)
}

// MovePreviousWord moves the caret to the start of the previous word.
func (r *Reader) MovePreviousWord() {
	r.moveTo(text.FindStartOfPreviousWord)
}

// MoveNextWord moves the caret to the start of the next word.
func (r *Reader) MoveNextWord() {
	r.moveTo(text.FindStartOfNextWord)
}

// MovePreviousParagraph moves the caret to the start of the previous paragraph.
func (r *Reader) MovePreviousParagraph() {
	r.moveTo(text.FindStartOfPreviousParagraph)
}

// MoveNextParagraph moves the caret to the start of the next paragraph.
func (r *Reader) MoveNextParagraph() {
	r.moveTo(text.FindStartOfNextParagraph)
}

func (r *Reader) moveTo(find func([]rune, int) int) {
	target := find(r.doc.Runes(), r.doc.Selection().Start)
	r.Select(text.Selection{Start: target})
}

func (r *Reader) selectionChanged(sel text.Selection, reason text.Reason) {
	r.publish(sel, reason)
	if reason != text.ReasonUser {
		return
	}

	if r.state == Speaking {
		if err := r.StartSpeaking(); err != nil {
			r.logger.Debug("restart after seek failed", "error", err)
		}
	}
	r.doc.Select(text.WordAt(r.doc.Runes(), sel.Start), text.ReasonInternal)
}

func (r *Reader) textChanged(reason text.Reason) {
	if reason != text.ReasonUser {
		return
	}
	if r.policy == RestartAlways || r.state == Speaking {
		if err := r.StartSpeaking(); err != nil {
			r.logger.Debug("restart after edit failed", "error", err)
		}
	}
}

func (r *Reader) restartIfSpeaking() error {
	if r.state != Speaking {
		return nil
	}
	return r.StartSpeaking()
}

func (r *Reader) stopSession() {
	if r.session != nil {
		r.session.Stop()
		r.session = nil
	}
}

// emit runs on engine goroutines.
func (r *Reader) emit(ev speech.Event) {
	if ev.Kind == speech.EventProgress {
		r.post(func() { r.HandleEvent(ev) })
		return
	}
	r.postFinal(func() { r.HandleEvent(ev) })
}

func (r *Reader) setState(s State) {
	if r.state == s {
		return
	}
	r.logger.Debug("state changed", "from", r.state, "to", s)
	r.state = s
	r.publish(r.doc.Selection(), text.ReasonInternal)
}

func (r *Reader) publish(sel text.Selection, reason text.Reason) {
	u := Update{Selection: sel, Reason: reason.String(), State: r.state, Session: r.sessionID}
	for _, fn := range r.observers {
		fn(u)
	}
}

func (r *Reader) report(what string, err error) {
	if err == nil {
		err = errors.New("unknown error")
	}
	r.logger.Warn(what, "error", err)
	if r.notifier != nil {
		r.notifier.Notify(fmt.Sprintf("%s: %v", what, err))
	}
}
