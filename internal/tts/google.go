package tts

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	htgotts "github.com/hegedustibor/htgo-tts"
)

// googleChunkLimit is the longest text the translate endpoint accepts.
const googleChunkLimit = 200

// speechFileCreator writes one MP3 file per call.
type speechFileCreator interface {
	CreateSpeechFile(text string, fileName string) (string, error)
}

// GoogleConfig holds configuration for the Google Translate TTS engine.
type GoogleConfig struct {
	// CacheDir is where the downloaded MP3 fragments are written.
	CacheDir string
	// Languages are the offered voices, e.g. "en", "en-GB", "de".
	Languages []string
}

// GoogleEngine synthesizes speech with the Google Translate TTS endpoint.
// Each language is exposed as a voice. Rate is not supported by the
// endpoint and is ignored.
type GoogleEngine struct {
	config GoogleConfig
	logger *slog.Logger
	create func(lang string) speechFileCreator
}

// NewGoogleEngine creates a Google TTS engine.
func NewGoogleEngine(cfg GoogleConfig, logger *slog.Logger) (*GoogleEngine, error) {
	if cfg.CacheDir == "" {
		cfg.CacheDir = filepath.Join(os.TempDir(), "readaloud-google")
	}
	if len(cfg.Languages) == 0 {
		cfg.Languages = []string{"en"}
	}
	if err := os.MkdirAll(cfg.CacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}

	return &GoogleEngine{
		config: cfg,
		logger: logger,
		create: func(lang string) speechFileCreator {
			return &htgotts.Speech{Folder: cfg.CacheDir, Language: lang}
		},
	}, nil
}

// Name returns the engine identifier.
func (g *GoogleEngine) Name() string {
	return "google"
}

// Voices returns the configured languages.
func (g *GoogleEngine) Voices() []string {
	out := make([]string, len(g.config.Languages))
	copy(out, g.config.Languages)
	return out
}

// Synthesize fetches MP3 audio for each chunk of req.Text and joins the
// frames into one stream.
func (g *GoogleEngine) Synthesize(ctx context.Context, req SynthesizeRequest) (*AudioResult, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, ErrEmptyText
	}

	lang := req.Voice
	if lang == "" || lang == "default" {
		lang = g.config.Languages[0]
	}
	speech := g.create(lang)

	var out bytes.Buffer
	for i, chunk := range splitChunks(req.Text, googleChunkLimit) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		name := chunkFileName(lang, chunk)
		path, err := speech.CreateSpeechFile(chunk, name)
		if err != nil {
			return nil, fmt.Errorf("%w: chunk %d: %v", ErrSynthesisFailed, i, err)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("%w: read %s: %v", ErrSynthesisFailed, path, err)
		}
		out.Write(data)
	}

	g.logger.Debug("google synthesis complete",
		"language", lang,
		"output_bytes", out.Len(),
	)

	return &AudioResult{Data: out.Bytes(), Format: FormatMP3}, nil
}

// chunkFileName names a fragment by language and content so repeated text
// is served from the cache directory.
func chunkFileName(lang, chunk string) string {
	sum := sha256.Sum256([]byte(lang + "\x00" + chunk))
	return lang + "_" + hex.EncodeToString(sum[:8])
}

// splitChunks cuts text into pieces of at most limit runes, breaking at
// whitespace when possible. Blank pieces are dropped.
func splitChunks(text string, limit int) []string {
	var chunks []string
	runes := []rune(text)
	for len(runes) > 0 {
		n := len(runes)
		if n > limit {
			n = limit
			for k := limit; k > 0; k-- {
				if unicode.IsSpace(runes[k]) {
					n = k
					break
				}
			}
		}
		if chunk := strings.TrimSpace(string(runes[:n])); chunk != "" {
			chunks = append(chunks, chunk)
		}
		runes = runes[n:]
	}
	return chunks
}
