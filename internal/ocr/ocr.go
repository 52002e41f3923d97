// Package ocr turns screenshots and clipboard images into text.
package ocr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

var (
	// ErrNoText is returned when recognition produced only whitespace.
	ErrNoText = errors.New("no text recognized")
	// ErrTesseractNotFound is returned when the tesseract binary cannot be found.
	ErrTesseractNotFound = errors.New("tesseract binary not found")
	// ErrEmptyImage is returned when there are no image bytes to recognize.
	ErrEmptyImage = errors.New("empty image")
)

// Recognizer extracts text from an encoded image.
type Recognizer interface {
	Recognize(ctx context.Context, image []byte) (string, error)
}

// Tesseract runs the tesseract CLI, feeding the image on stdin.
type Tesseract struct {
	binary   string
	language string
}

// NewTesseract creates a recognizer. An empty binary is looked up on PATH and
// an empty language defaults to "eng".
func NewTesseract(binary, language string) (*Tesseract, error) {
	if binary == "" {
		binary = "tesseract"
	}
	path, err := exec.LookPath(binary)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrTesseractNotFound, binary)
	}
	if language == "" {
		language = "eng"
	}
	return &Tesseract{binary: path, language: language}, nil
}

// Language returns the configured tesseract language code.
func (t *Tesseract) Language() string {
	return t.language
}

// Recognize returns the trimmed text tesseract found in image.
func (t *Tesseract) Recognize(ctx context.Context, image []byte) (string, error) {
	if len(image) == 0 {
		return "", ErrEmptyImage
	}

	cmd := exec.CommandContext(ctx, t.binary, "stdin", "stdout", "-l", t.language)
	cmd.Stdin = bytes.NewReader(image)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("tesseract: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	out := strings.TrimSpace(stdout.String())
	if out == "" {
		return "", ErrNoText
	}
	return out, nil
}
