// Package paste turns clipboard, capture and feed content into text pasted
// into the reader.
package paste

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/dgnsrekt/readaloud/internal/clipboard"
	"github.com/dgnsrekt/readaloud/internal/loop"
	"github.com/dgnsrekt/readaloud/internal/ocr"
)

var (
	// ErrNoRecognizer is returned when image content arrives without OCR configured.
	ErrNoRecognizer = errors.New("no OCR recognizer configured")
	// ErrRecognitionFailed is returned when OCR fails.
	ErrRecognitionFailed = errors.New("text recognition failed")
	// ErrNoText is returned when content yields no text to paste.
	ErrNoText = errors.New("no text to paste")
)

// DefaultTTL bounds how long a pending paste may wait on the loop.
const DefaultTTL = 30 * time.Second

// Target receives pasted text. It is only called on the loop goroutine.
type Target interface {
	PasteText(text string) bool
}

// Poster queues work onto the loop.
type Poster interface {
	Post(a *loop.Action) error
}

// Handler recognizes and pastes content.
type Handler struct {
	recognizer ocr.Recognizer
	poster     Poster
	target     Target
	ttl        time.Duration
	logger     *slog.Logger
}

// NewHandler creates a paste handler. recognizer may be nil, in which case
// image content is rejected.
func NewHandler(recognizer ocr.Recognizer, poster Poster, target Target, logger *slog.Logger) *Handler {
	return &Handler{
		recognizer: recognizer,
		poster:     poster,
		target:     target,
		ttl:        DefaultTTL,
		logger:     logger,
	}
}

// SetTTL sets how long a queued paste stays valid. Zero keeps it forever.
func (h *Handler) SetTTL(ttl time.Duration) {
	h.ttl = ttl
}

// Handle extracts text from content and queues it for pasting. Duplicate
// content still pending on the loop is dropped.
func (h *Handler) Handle(ctx context.Context, source string, content clipboard.Content) error {
	h.logger.Debug("handling content",
		"source", source,
		"image", content.IsImage(),
		"text_length", len(content.Text),
	)

	// Step 1: Extract text
	text := content.Text
	if content.IsImage() {
		if h.recognizer == nil {
			return ErrNoRecognizer
		}

		recognized, err := h.recognizer.Recognize(ctx, content.Image)
		if err != nil {
			if errors.Is(err, ocr.ErrNoText) {
				h.logger.Info("no text recognized in image", "source", source)
				return ErrNoText
			}
			h.logger.Warn("text recognition failed", "source", source, "error", err)
			return errors.Join(ErrRecognitionFailed, err)
		}
		text = recognized

		h.logger.Debug("recognition complete", "source", source, "text_length", len(text))
	}

	// Step 2: Reject blank text
	if strings.TrimSpace(text) == "" {
		return ErrNoText
	}

	// Step 3: Queue the paste on the loop
	action := loop.NewAction("paste:"+source, func() {
		if h.target.PasteText(text) {
			h.logger.Info("text pasted", "source", source, "text_length", len(text))
		}
	}, h.ttl, content.Key())

	if err := h.poster.Post(action); err != nil {
		if errors.Is(err, loop.ErrDuplicateAction) {
			h.logger.Debug("duplicate paste dropped", "source", source)
		}
		return err
	}

	return nil
}

// HandleText queues plain text for pasting.
func (h *Handler) HandleText(ctx context.Context, source, text string) error {
	return h.Handle(ctx, source, clipboard.Content{Text: text})
}
