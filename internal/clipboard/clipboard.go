// Package clipboard reads text and images from the system clipboard and
// watches it for changes.
package clipboard

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	atclip "github.com/atotto/clipboard"
)

// ErrEmpty is returned when the clipboard holds neither text nor an image.
var ErrEmpty = errors.New("clipboard is empty")

// Content is a clipboard snapshot. At most one of Text and Image is set;
// Image is PNG encoded.
type Content struct {
	Text  string
	Image []byte
}

// IsImage reports whether the content carries an image.
func (c Content) IsImage() bool {
	return len(c.Image) > 0
}

// IsEmpty reports whether the content carries nothing.
func (c Content) IsEmpty() bool {
	return c.Text == "" && len(c.Image) == 0
}

// Key returns a digest identifying the content, used for change detection
// and deduplication.
func (c Content) Key() string {
	h := sha256.New()
	if c.IsImage() {
		h.Write([]byte("image:"))
		h.Write(c.Image)
	} else {
		h.Write([]byte("text:"))
		h.Write([]byte(c.Text))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Reader reads the current clipboard content.
type Reader interface {
	Read() (Content, error)
}

// SystemReader reads the OS clipboard. Images take precedence over text
// where the platform exposes them.
type SystemReader struct{}

// NewSystemReader creates a reader for the OS clipboard.
func NewSystemReader() *SystemReader {
	return &SystemReader{}
}

// Read returns the clipboard content or ErrEmpty.
func (r *SystemReader) Read() (Content, error) {
	img, err := readImage()
	if err != nil {
		return Content{}, fmt.Errorf("read clipboard image: %w", err)
	}
	if len(img) > 0 {
		return Content{Image: img}, nil
	}

	if atclip.Unsupported {
		return Content{}, ErrEmpty
	}

	text, err := atclip.ReadAll()
	if err != nil {
		return Content{}, fmt.Errorf("read clipboard text: %w", err)
	}
	if text == "" {
		return Content{}, ErrEmpty
	}
	return Content{Text: text}, nil
}

// WriteText replaces the clipboard content with text.
func WriteText(text string) error {
	return atclip.WriteAll(text)
}
