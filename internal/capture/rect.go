package capture

import (
	"errors"
	"fmt"
	"image"
	"math"
	"strconv"
	"strings"
)

// ErrInvalidRect is returned when a rectangle cannot be parsed or is empty.
var ErrInvalidRect = errors.New("invalid rectangle")

// Rect is a screen region in physical pixels.
type Rect struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Empty reports whether the rectangle covers no pixels.
func (r Rect) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// Bounds converts r to an image rectangle.
func (r Rect) Bounds() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

// String formats r as "x,y,w,h", the form ParseRect accepts.
func (r Rect) String() string {
	return fmt.Sprintf("%d,%d,%d,%d", r.X, r.Y, r.Width, r.Height)
}

// Point is a pointer position in device-independent pixels.
type Point struct {
	X float64
	Y float64
}

// RectFromDrag returns the pixel rectangle spanned by a pointer drag from
// start to end. Corners may be given in any order; scale is pixels per DIP
// (dpi / 96) and values of zero or less are treated as 1.
func RectFromDrag(start, end Point, scale float64) Rect {
	if scale <= 0 {
		scale = 1
	}

	x := math.Min(start.X, end.X)
	y := math.Min(start.Y, end.Y)
	w := math.Abs(end.X - start.X)
	h := math.Abs(end.Y - start.Y)

	return Rect{
		X:      int(math.Round(x * scale)),
		Y:      int(math.Round(y * scale)),
		Width:  int(math.Round(w * scale)),
		Height: int(math.Round(h * scale)),
	}
}

// ParseRect parses "x,y,w,h". An empty string returns the zero Rect and no
// error, meaning the primary display.
func ParseRect(s string) (Rect, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Rect{}, nil
	}

	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return Rect{}, fmt.Errorf("%w: %q: want x,y,w,h", ErrInvalidRect, s)
	}

	var v [4]int
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return Rect{}, fmt.Errorf("%w: %q: %v", ErrInvalidRect, s, err)
		}
		v[i] = n
	}

	r := Rect{X: v[0], Y: v[1], Width: v[2], Height: v[3]}
	if r.Empty() {
		return Rect{}, fmt.Errorf("%w: %q: width and height must be positive", ErrInvalidRect, s)
	}
	return r, nil
}
