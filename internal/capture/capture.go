// Package capture grabs screen regions as PNG images for text recognition.
package capture

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"

	"github.com/kbinani/screenshot"
)

// ErrNoDisplay is returned when no active display is available.
var ErrNoDisplay = errors.New("no active display")

// Screen captures regions of the desktop.
type Screen struct {
	grab     func(image.Rectangle) (*image.RGBA, error)
	displays func() int
	bounds   func(int) image.Rectangle
}

// NewScreen creates a capturer backed by the OS screen.
func NewScreen() *Screen {
	return &Screen{
		grab:     screenshot.CaptureRect,
		displays: screenshot.NumActiveDisplays,
		bounds:   screenshot.GetDisplayBounds,
	}
}

// Primary returns the bounds of the primary display.
func (s *Screen) Primary() (Rect, error) {
	if s.displays() == 0 {
		return Rect{}, ErrNoDisplay
	}
	b := s.bounds(0)
	return Rect{X: b.Min.X, Y: b.Min.Y, Width: b.Dx(), Height: b.Dy()}, nil
}

// Capture grabs r, or the primary display when r is empty, and returns it
// PNG encoded.
func (s *Screen) Capture(r Rect) ([]byte, error) {
	if r.Empty() {
		primary, err := s.Primary()
		if err != nil {
			return nil, err
		}
		r = primary
	}

	img, err := s.grab(r.Bounds())
	if err != nil {
		return nil, fmt.Errorf("capture %s: %w", r, err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode capture: %w", err)
	}
	return buf.Bytes(), nil
}
