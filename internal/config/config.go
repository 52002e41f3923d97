// Package config loads settings from the environment and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/dgnsrekt/readaloud/internal/capture"
	"github.com/dgnsrekt/readaloud/internal/feed"
	"github.com/dgnsrekt/readaloud/internal/reader"
	"github.com/dgnsrekt/readaloud/internal/tts"
)

// Audio outputs.
const (
	OutputLocal   = "local"
	OutputDiscord = "discord"
)

// Config holds all application configuration.
type Config struct {
	// Logging settings
	LogLevel  string
	LogFormat string

	// HTTP settings
	HTTPAddr    string
	BearerToken string
	JWTSecret   string

	// Error tracking
	SentryDSN   string
	Environment string

	// TTS settings
	TTSEngine       string
	PiperPath       string
	PiperModel      string
	PiperSpeakers   []string
	GoogleLanguages []string
	GoogleCacheDir  string
	YandexAPIKey    string
	YandexFolderID  string
	YandexVoices    []string
	DefaultVoice    string
	DefaultRate     int

	// Audio output settings
	AudioOutput           string
	FramesPerBuffer       int
	DiscordToken          string
	GuildID               string
	DefaultVoiceChannelID string
	FFmpegPath            string

	// Reader behavior
	RestartOnEdit reader.RestartPolicy
	LoopCapacity  int
	PasteTTL      time.Duration
	IdleSave      time.Duration
	StatePath     string

	// Clipboard, OCR and capture
	ClipboardWatch    bool
	ClipboardInterval time.Duration
	TesseractPath     string
	OCRLanguage       string
	CaptureRegion     capture.Rect

	// Hotkeys; an empty combo leaves the action unbound.
	HotkeyPlayPause string
	HotkeyCapture   string
	HotkeyPaste     string

	// Ntfy feed settings
	NtfyServer        string
	NtfyTopics        []string
	NtfyToken         string
	NtfyTransport     string
	NtfyPrefix        string
	NtfyDedupeWindow  time.Duration
	NtfyMaxTextLength int
}

// Load reads the .env file named by ENV_FILE (default ".env") if it exists,
// then reads configuration from environment variables with sane defaults.
// Variables already set in the environment win over the file.
func Load() (*Config, error) {
	envFile := getEnvString("ENV_FILE", ".env")
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", envFile, err)
	}

	policy, err := reader.ParseRestartPolicy(getEnvString("RESTART_ON_EDIT", "speaking"))
	if err != nil {
		return nil, fmt.Errorf("RESTART_ON_EDIT: %w", err)
	}

	region, err := capture.ParseRect(os.Getenv("CAPTURE_REGION"))
	if err != nil {
		return nil, fmt.Errorf("CAPTURE_REGION: %w", err)
	}

	statePath := os.Getenv("STATE_PATH")
	if statePath == "" {
		if dir, err := os.UserConfigDir(); err == nil {
			statePath = filepath.Join(dir, "readaloud", "state.json")
		}
	}

	cfg := &Config{
		// Logging settings
		LogLevel:  getEnvString("LOG_LEVEL", "info"),
		LogFormat: getEnvString("LOG_FORMAT", "text"),

		// HTTP settings
		HTTPAddr:    getEnvString("HTTP_ADDR", "127.0.0.1:8080"),
		BearerToken: os.Getenv("BEARER_TOKEN"),
		JWTSecret:   os.Getenv("API_JWT_SECRET"),

		// Error tracking
		SentryDSN:   os.Getenv("SENTRY_DSN"),
		Environment: getEnvString("ENVIRONMENT", "development"),

		// TTS settings
		TTSEngine:       getEnvString("TTS_ENGINE", "piper"),
		PiperPath:       getEnvString("PIPER_PATH", "piper"),
		PiperModel:      os.Getenv("PIPER_MODEL"),
		PiperSpeakers:   getEnvList("PIPER_SPEAKERS", nil),
		GoogleLanguages: getEnvList("GOOGLE_LANGUAGES", []string{"en"}),
		GoogleCacheDir:  getEnvString("GOOGLE_CACHE_DIR", filepath.Join(os.TempDir(), "readaloud-tts")),
		YandexAPIKey:    os.Getenv("YANDEX_API_KEY"),
		YandexFolderID:  os.Getenv("YANDEX_FOLDER_ID"),
		YandexVoices:    getEnvList("YANDEX_VOICES", nil),
		DefaultVoice:    os.Getenv("DEFAULT_VOICE"),
		DefaultRate:     getEnvInt("SPEECH_RATE", 0),

		// Audio output settings
		AudioOutput:           getEnvString("AUDIO_OUTPUT", OutputLocal),
		FramesPerBuffer:       getEnvInt("FRAMES_PER_BUFFER", 1024),
		DiscordToken:          os.Getenv("DISCORD_TOKEN"),
		GuildID:               os.Getenv("GUILD_ID"),
		DefaultVoiceChannelID: os.Getenv("DEFAULT_VOICE_CHANNEL_ID"),
		FFmpegPath:            os.Getenv("FFMPEG_PATH"),

		// Reader behavior
		RestartOnEdit: policy,
		LoopCapacity:  getEnvInt("LOOP_CAPACITY", 100),
		PasteTTL:      getEnvDuration("PASTE_TTL", 30*time.Second),
		IdleSave:      getEnvDuration("IDLE_SAVE", 10*time.Second),
		StatePath:     statePath,

		// Clipboard, OCR and capture
		ClipboardWatch:    getEnvBool("CLIPBOARD_WATCH", false),
		ClipboardInterval: getEnvDuration("CLIPBOARD_INTERVAL", 500*time.Millisecond),
		TesseractPath:     getEnvString("TESSERACT_PATH", "tesseract"),
		OCRLanguage:       getEnvString("OCR_LANGUAGE", "eng"),
		CaptureRegion:     region,

		// Hotkeys
		HotkeyPlayPause: getEnvString("HOTKEY_PLAY_PAUSE", "Ctrl+Alt+P"),
		HotkeyCapture:   getEnvString("HOTKEY_CAPTURE", "Ctrl+Alt+C"),
		HotkeyPaste:     getEnvString("HOTKEY_PASTE", "Ctrl+Alt+V"),

		// Ntfy feed settings
		NtfyServer:        getEnvString("NTFY_SERVER", "https://ntfy.sh"),
		NtfyTopics:        getEnvList("NTFY_TOPICS", nil),
		NtfyToken:         os.Getenv("NTFY_TOKEN"),
		NtfyTransport:     getEnvString("NTFY_TRANSPORT", string(feed.TransportJSON)),
		NtfyPrefix:        os.Getenv("NTFY_PREFIX"),
		NtfyDedupeWindow:  getEnvDuration("NTFY_DEDUPE_WINDOW", 0),
		NtfyMaxTextLength: getEnvInt("NTFY_MAX_TEXT_LENGTH", 1000),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// AuthDisabled returns true if neither bearer token nor JWT authentication is configured.
func (c *Config) AuthDisabled() bool {
	return c.BearerToken == "" && c.JWTSecret == ""
}

// HTTPEnabled reports whether the HTTP API should be served.
func (c *Config) HTTPEnabled() bool {
	return c.HTTPAddr != "" && c.HTTPAddr != "off"
}

// FeedEnabled reports whether any ntfy topics are configured.
func (c *Config) FeedEnabled() bool {
	return len(c.NtfyTopics) > 0
}

// Feed returns the ntfy feed settings.
func (c *Config) Feed() *feed.Config {
	return &feed.Config{
		Server:        c.NtfyServer,
		Topics:        c.NtfyTopics,
		Token:         c.NtfyToken,
		Transport:     feed.Transport(c.NtfyTransport),
		Prefix:        c.NtfyPrefix,
		DedupeWindow:  c.NtfyDedupeWindow,
		MaxTextLength: c.NtfyMaxTextLength,
	}
}

// Validate checks that required configuration values are set.
func (c *Config) Validate() error {
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.LogLevel] {
		return errors.New("LOG_LEVEL must be one of: debug, info, warn, error")
	}

	validLogFormats := map[string]bool{"text": true, "json": true}
	if !validLogFormats[c.LogFormat] {
		return errors.New("LOG_FORMAT must be one of: text, json")
	}

	switch c.TTSEngine {
	case "piper":
		if c.PiperModel == "" {
			return errors.New("PIPER_MODEL is required when TTS_ENGINE=piper")
		}
	case "google":
		if len(c.GoogleLanguages) == 0 {
			return errors.New("GOOGLE_LANGUAGES must list at least one language")
		}
	case "yandex":
		if c.YandexAPIKey == "" || c.YandexFolderID == "" {
			return errors.New("YANDEX_API_KEY and YANDEX_FOLDER_ID are required when TTS_ENGINE=yandex")
		}
	default:
		return errors.New("TTS_ENGINE must be one of: piper, google, yandex")
	}

	if c.DefaultRate < tts.MinRate || c.DefaultRate > tts.MaxRate {
		return fmt.Errorf("SPEECH_RATE must be between %d and %d", tts.MinRate, tts.MaxRate)
	}

	switch c.AudioOutput {
	case OutputLocal:
		if c.FramesPerBuffer < 64 {
			return errors.New("FRAMES_PER_BUFFER must be at least 64")
		}
	case OutputDiscord:
		if c.DiscordToken == "" || c.GuildID == "" || c.DefaultVoiceChannelID == "" {
			return errors.New("DISCORD_TOKEN, GUILD_ID and DEFAULT_VOICE_CHANNEL_ID are required when AUDIO_OUTPUT=discord")
		}
	default:
		return errors.New("AUDIO_OUTPUT must be one of: local, discord")
	}

	if c.LoopCapacity < 1 {
		return errors.New("LOOP_CAPACITY must be at least 1")
	}

	if c.PasteTTL < 0 {
		return errors.New("PASTE_TTL must be non-negative")
	}

	if c.IdleSave < 0 {
		return errors.New("IDLE_SAVE must be non-negative")
	}

	if c.ClipboardWatch && c.ClipboardInterval < 50*time.Millisecond {
		return errors.New("CLIPBOARD_INTERVAL must be at least 50ms")
	}

	if c.FeedEnabled() {
		if err := c.Feed().Validate(); err != nil {
			return err
		}
	}

	return nil
}

// getEnvString returns the environment variable value or a default.
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns the environment variable as an int or a default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvBool returns the environment variable as a bool or a default.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

// getEnvDuration returns the environment variable as a duration or a default.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getEnvList returns a comma-separated environment variable as a list or a default.
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	var list []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			list = append(list, item)
		}
	}
	return list
}
