package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dgnsrekt/readaloud/internal/capture"
	"github.com/dgnsrekt/readaloud/internal/feed"
	"github.com/dgnsrekt/readaloud/internal/reader"
)

var configEnvVars = []string{
	"LOG_LEVEL", "LOG_FORMAT", "HTTP_ADDR", "BEARER_TOKEN", "API_JWT_SECRET",
	"SENTRY_DSN", "ENVIRONMENT", "TTS_ENGINE", "PIPER_PATH", "PIPER_MODEL",
	"PIPER_SPEAKERS", "GOOGLE_LANGUAGES", "GOOGLE_CACHE_DIR", "YANDEX_API_KEY",
	"YANDEX_FOLDER_ID", "YANDEX_VOICES", "DEFAULT_VOICE", "SPEECH_RATE",
	"AUDIO_OUTPUT", "FRAMES_PER_BUFFER", "DISCORD_TOKEN", "GUILD_ID",
	"DEFAULT_VOICE_CHANNEL_ID", "RESTART_ON_EDIT", "LOOP_CAPACITY", "PASTE_TTL",
	"IDLE_SAVE", "STATE_PATH", "CLIPBOARD_WATCH", "CLIPBOARD_INTERVAL",
	"TESSERACT_PATH", "OCR_LANGUAGE", "CAPTURE_REGION", "HOTKEY_PLAY_PAUSE",
	"HOTKEY_CAPTURE", "HOTKEY_PASTE", "NTFY_SERVER", "NTFY_TOPICS", "NTFY_TOKEN",
	"NTFY_TRANSPORT", "NTFY_PREFIX", "NTFY_DEDUPE_WINDOW", "NTFY_MAX_TEXT_LENGTH",
}

// clearEnv unsets every config variable for the test and points ENV_FILE at
// a file that does not exist.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range configEnvVars {
		if v, ok := os.LookupEnv(k); ok {
			t.Cleanup(func() { os.Setenv(k, v) })
			os.Unsetenv(k)
		}
	}
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("PIPER_MODEL", "/models/en.onnx")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.HTTPAddr != "127.0.0.1:8080" {
		t.Errorf("HTTPAddr = %s, want 127.0.0.1:8080", cfg.HTTPAddr)
	}
	if cfg.TTSEngine != "piper" {
		t.Errorf("TTSEngine = %s, want piper", cfg.TTSEngine)
	}
	if cfg.PiperPath != "piper" {
		t.Errorf("PiperPath = %s, want piper", cfg.PiperPath)
	}
	if cfg.AudioOutput != OutputLocal {
		t.Errorf("AudioOutput = %s, want local", cfg.AudioOutput)
	}
	if cfg.RestartOnEdit != reader.RestartIfSpeaking {
		t.Errorf("RestartOnEdit = %v, want RestartIfSpeaking", cfg.RestartOnEdit)
	}
	if cfg.LoopCapacity != 100 {
		t.Errorf("LoopCapacity = %d, want 100", cfg.LoopCapacity)
	}
	if cfg.PasteTTL != 30*time.Second {
		t.Errorf("PasteTTL = %v, want 30s", cfg.PasteTTL)
	}
	if cfg.ClipboardWatch {
		t.Error("ClipboardWatch = true, want false")
	}
	if cfg.ClipboardInterval != 500*time.Millisecond {
		t.Errorf("ClipboardInterval = %v, want 500ms", cfg.ClipboardInterval)
	}
	if !cfg.CaptureRegion.Empty() {
		t.Errorf("CaptureRegion = %v, want empty", cfg.CaptureRegion)
	}
	if cfg.HotkeyPlayPause != "Ctrl+Alt+P" {
		t.Errorf("HotkeyPlayPause = %s, want Ctrl+Alt+P", cfg.HotkeyPlayPause)
	}
	if len(cfg.GoogleLanguages) != 1 || cfg.GoogleLanguages[0] != "en" {
		t.Errorf("GoogleLanguages = %v, want [en]", cfg.GoogleLanguages)
	}
	if cfg.FeedEnabled() {
		t.Error("FeedEnabled() = true, want false")
	}
	if !cfg.AuthDisabled() {
		t.Error("AuthDisabled() = false, want true")
	}
	if !cfg.HTTPEnabled() {
		t.Error("HTTPEnabled() = false, want true")
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %s, want info", cfg.LogLevel)
	}
	if cfg.LogFormat != "text" {
		t.Errorf("LogFormat = %s, want text", cfg.LogFormat)
	}
}

func TestLoad_FromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("TTS_ENGINE", "yandex")
	t.Setenv("YANDEX_API_KEY", "key")
	t.Setenv("YANDEX_FOLDER_ID", "folder")
	t.Setenv("YANDEX_VOICES", "alena, filipp")
	t.Setenv("SPEECH_RATE", "-4")
	t.Setenv("AUDIO_OUTPUT", "discord")
	t.Setenv("DISCORD_TOKEN", "test-token")
	t.Setenv("GUILD_ID", "123456")
	t.Setenv("DEFAULT_VOICE_CHANNEL_ID", "789012")
	t.Setenv("RESTART_ON_EDIT", "always")
	t.Setenv("CAPTURE_REGION", "10,20,300,400")
	t.Setenv("CLIPBOARD_WATCH", "true")
	t.Setenv("NTFY_TOPICS", "news,alerts")
	t.Setenv("NTFY_TRANSPORT", "ws")
	t.Setenv("BEARER_TOKEN", "secret")
	t.Setenv("HTTP_ADDR", "off")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "json")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.TTSEngine != "yandex" {
		t.Errorf("TTSEngine = %s, want yandex", cfg.TTSEngine)
	}
	if len(cfg.YandexVoices) != 2 || cfg.YandexVoices[1] != "filipp" {
		t.Errorf("YandexVoices = %v, want [alena filipp]", cfg.YandexVoices)
	}
	if cfg.DefaultRate != -4 {
		t.Errorf("DefaultRate = %d, want -4", cfg.DefaultRate)
	}
	if cfg.GuildID != "123456" {
		t.Errorf("GuildID = %s, want 123456", cfg.GuildID)
	}
	if cfg.RestartOnEdit != reader.RestartAlways {
		t.Errorf("RestartOnEdit = %v, want RestartAlways", cfg.RestartOnEdit)
	}
	if cfg.CaptureRegion != (capture.Rect{X: 10, Y: 20, Width: 300, Height: 400}) {
		t.Errorf("CaptureRegion = %v", cfg.CaptureRegion)
	}
	if !cfg.ClipboardWatch {
		t.Error("ClipboardWatch = false, want true")
	}
	if cfg.HTTPEnabled() {
		t.Error("HTTPEnabled() = true, want false for HTTP_ADDR=off")
	}
	if cfg.AuthDisabled() {
		t.Error("AuthDisabled() = true, want false")
	}

	fc := cfg.Feed()
	if len(fc.Topics) != 2 || fc.Transport != feed.TransportWebSocket || fc.Server != "https://ntfy.sh" {
		t.Errorf("Feed() = %+v", fc)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %s, want debug", cfg.LogLevel)
	}
}

func TestLoad_DotEnvFile(t *testing.T) {
	clearEnv(t)
	envFile := filepath.Join(t.TempDir(), "test.env")
	content := "TTS_ENGINE=google\nGOOGLE_LANGUAGES=en,de\nSPEECH_RATE=3\n"
	if err := os.WriteFile(envFile, []byte(content), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Setenv("ENV_FILE", envFile)
	// The process environment wins over the file.
	t.Setenv("SPEECH_RATE", "5")
	t.Cleanup(func() {
		os.Unsetenv("TTS_ENGINE")
		os.Unsetenv("GOOGLE_LANGUAGES")
	})

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.TTSEngine != "google" {
		t.Errorf("TTSEngine = %s, want google", cfg.TTSEngine)
	}
	if len(cfg.GoogleLanguages) != 2 {
		t.Errorf("GoogleLanguages = %v, want [en de]", cfg.GoogleLanguages)
	}
	if cfg.DefaultRate != 5 {
		t.Errorf("DefaultRate = %d, want 5", cfg.DefaultRate)
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"bad restart policy", map[string]string{"RESTART_ON_EDIT": "sometimes"}},
		{"bad capture region", map[string]string{"CAPTURE_REGION": "1,2,3"}},
		{"missing piper model", map[string]string{"PIPER_MODEL": ""}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("PIPER_MODEL", "/models/en.onnx")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if _, err := Load(); err == nil {
				t.Error("Load() expected error")
			}
		})
	}
}

func validConfig() Config {
	return Config{
		LogLevel:          "info",
		LogFormat:         "text",
		TTSEngine:         "piper",
		PiperModel:        "/models/en.onnx",
		AudioOutput:       OutputLocal,
		FramesPerBuffer:   1024,
		LoopCapacity:      100,
		ClipboardInterval: 500 * time.Millisecond,
		NtfyServer:        "https://ntfy.sh",
		NtfyTransport:     "json",
		NtfyMaxTextLength: 1000,
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"invalid log level", func(c *Config) { c.LogLevel = "invalid" }, true},
		{"invalid log format", func(c *Config) { c.LogFormat = "invalid" }, true},
		{"unknown engine", func(c *Config) { c.TTSEngine = "espeak" }, true},
		{"google without languages", func(c *Config) { c.TTSEngine = "google"; c.GoogleLanguages = nil }, true},
		{"google with languages", func(c *Config) { c.TTSEngine = "google"; c.GoogleLanguages = []string{"en"} }, false},
		{"yandex without key", func(c *Config) { c.TTSEngine = "yandex"; c.YandexFolderID = "f" }, true},
		{"rate too high", func(c *Config) { c.DefaultRate = 11 }, true},
		{"rate too low", func(c *Config) { c.DefaultRate = -11 }, true},
		{"unknown output", func(c *Config) { c.AudioOutput = "alsa" }, true},
		{"small buffer", func(c *Config) { c.FramesPerBuffer = 8 }, true},
		{"discord missing guild", func(c *Config) { c.AudioOutput = OutputDiscord; c.DiscordToken = "t"; c.DefaultVoiceChannelID = "c" }, true},
		{"discord complete", func(c *Config) {
			c.AudioOutput = OutputDiscord
			c.DiscordToken, c.GuildID, c.DefaultVoiceChannelID = "t", "g", "c"
		}, false},
		{"zero loop capacity", func(c *Config) { c.LoopCapacity = 0 }, true},
		{"negative paste ttl", func(c *Config) { c.PasteTTL = -time.Second }, true},
		{"negative idle save", func(c *Config) { c.IdleSave = -time.Second }, true},
		{"fast clipboard polling", func(c *Config) { c.ClipboardWatch = true; c.ClipboardInterval = time.Millisecond }, true},
		{"feed with bad transport", func(c *Config) { c.NtfyTopics = []string{"a"}; c.NtfyTransport = "sse" }, true},
		{"feed valid", func(c *Config) { c.NtfyTopics = []string{"a"} }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestGetEnvString(t *testing.T) {
	t.Setenv("TEST_STRING", "value")

	if got := getEnvString("TEST_STRING", "default"); got != "value" {
		t.Errorf("getEnvString() = %s, want value", got)
	}

	if got := getEnvString("NONEXISTENT", "default"); got != "default" {
		t.Errorf("getEnvString() = %s, want default", got)
	}
}

func TestGetEnvInt(t *testing.T) {
	t.Setenv("TEST_INT", "42")
	t.Setenv("TEST_INT_INVALID", "not-a-number")

	if got := getEnvInt("TEST_INT", 0); got != 42 {
		t.Errorf("getEnvInt() = %d, want 42", got)
	}
	if got := getEnvInt("NONEXISTENT", 10); got != 10 {
		t.Errorf("getEnvInt() = %d, want 10", got)
	}
	if got := getEnvInt("TEST_INT_INVALID", 10); got != 10 {
		t.Errorf("getEnvInt() = %d, want 10 for invalid input", got)
	}
}

func TestGetEnvBool(t *testing.T) {
	t.Setenv("TEST_BOOL", "true")
	t.Setenv("TEST_BOOL_INVALID", "maybe")

	if got := getEnvBool("TEST_BOOL", false); !got {
		t.Error("getEnvBool() = false, want true")
	}
	if got := getEnvBool("TEST_BOOL_INVALID", true); !got {
		t.Error("getEnvBool() = false, want default true for invalid input")
	}
}

func TestGetEnvDuration(t *testing.T) {
	t.Setenv("TEST_DURATION", "5m")
	t.Setenv("TEST_DURATION_INVALID", "not-a-duration")

	if got := getEnvDuration("TEST_DURATION", time.Second); got != 5*time.Minute {
		t.Errorf("getEnvDuration() = %v, want 5m", got)
	}
	if got := getEnvDuration("NONEXISTENT", 10*time.Second); got != 10*time.Second {
		t.Errorf("getEnvDuration() = %v, want 10s", got)
	}
	if got := getEnvDuration("TEST_DURATION_INVALID", 10*time.Second); got != 10*time.Second {
		t.Errorf("getEnvDuration() = %v, want 10s for invalid input", got)
	}
}

func TestGetEnvList(t *testing.T) {
	t.Setenv("TEST_LIST", " a, ,b ,c")

	got := getEnvList("TEST_LIST", nil)
	if len(got) != 3 || got[0] != "a" || got[1] != "b" || got[2] != "c" {
		t.Errorf("getEnvList() = %v, want [a b c]", got)
	}
	if got := getEnvList("NONEXISTENT", []string{"x"}); len(got) != 1 || got[0] != "x" {
		t.Errorf("getEnvList() = %v, want default", got)
	}
}
