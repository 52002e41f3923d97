package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgnsrekt/readaloud/internal/api"
	"github.com/dgnsrekt/readaloud/internal/audio"
	"github.com/dgnsrekt/readaloud/internal/capture"
	"github.com/dgnsrekt/readaloud/internal/clipboard"
	"github.com/dgnsrekt/readaloud/internal/config"
	"github.com/dgnsrekt/readaloud/internal/discord"
	"github.com/dgnsrekt/readaloud/internal/feed"
	"github.com/dgnsrekt/readaloud/internal/hotkey"
	"github.com/dgnsrekt/readaloud/internal/logging"
	"github.com/dgnsrekt/readaloud/internal/loop"
	"github.com/dgnsrekt/readaloud/internal/notify"
	"github.com/dgnsrekt/readaloud/internal/ocr"
	"github.com/dgnsrekt/readaloud/internal/paste"
	"github.com/dgnsrekt/readaloud/internal/reader"
	"github.com/dgnsrekt/readaloud/internal/speech"
	"github.com/dgnsrekt/readaloud/internal/text"
	"github.com/dgnsrekt/readaloud/internal/tts"
)

const version = "0.1.0"

// slowAction is how long an action may wait on the loop before it is
// reported.
const slowAction = time.Second

func main() {
	// Load configuration from environment
	cfg, err := config.Load()
	if err != nil {
		// Use stderr before logger is initialized
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	// Initialize structured logger
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	logger.Info("starting readaloud", "version", version)

	flushSentry, err := notify.InitSentry(cfg.SentryDSN, cfg.Environment, version)
	if err != nil {
		logger.Warn("failed to initialize sentry", "error", err)
	}
	defer flushSentry()

	if cfg.HTTPEnabled() && cfg.AuthDisabled() {
		logger.Warn("HTTP authentication is disabled (BEARER_TOKEN and API_JWT_SECRET are empty)")
	}

	// Log loaded configuration (without sensitive values)
	logger.Info("configuration loaded",
		"log_level", cfg.LogLevel,
		"tts_engine", cfg.TTSEngine,
		"audio_output", cfg.AudioOutput,
		"http_addr", cfg.HTTPAddr,
		"restart_on_edit", cfg.RestartOnEdit.String(),
		"clipboard_watch", cfg.ClipboardWatch,
		"feed_topics", cfg.NtfyTopics,
	)

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig.String())
		cancel()
	}()

	registry, closeEngine := newRegistry(cfg, logger)
	defer closeEngine()

	player, closePlayer, err := newPlayer(cfg, logger)
	if err != nil {
		logger.Error("failed to open audio output", "output", cfg.AudioOutput, "error", err)
		os.Exit(1)
	}
	defer closePlayer()

	synth := speech.NewSynth(registry, player, logger)

	desktop := notify.NewDesktop("readaloud", logger)
	defer desktop.Wait()
	notifier := notify.Multi{notify.Log{Logger: logger}, desktop}
	if cfg.SentryDSN != "" {
		notifier = append(notifier, notify.NewSentry(nil))
	}

	a := &app{
		logger:    logger,
		loop:      loop.New(cfg.LoopCapacity, cfg.IdleSave, logger),
		clip:      clipboard.NewSystemReader(),
		copyFn:    clipboard.WriteText,
		screen:    capture.NewScreen(),
		render:    synth,
		region:    cfg.CaptureRegion,
		jwtSecret: cfg.JWTSecret,
		statePath: cfg.StatePath,
	}
	a.reader = reader.New(text.NewDocument(""), synth, a.post, reader.Options{
		Voice:     cfg.DefaultVoice,
		Rate:      cfg.DefaultRate,
		Policy:    cfg.RestartOnEdit,
		Notifier:  notifier,
		Logger:    logger,
		PostFinal: a.postFinal,
	})

	var recognizer ocr.Recognizer
	if tess, err := ocr.NewTesseract(cfg.TesseractPath, cfg.OCRLanguage); err != nil {
		logger.Warn("OCR unavailable, images will not be read", "error", err)
	} else {
		recognizer = tess
		logger.Info("OCR ready", "language", tess.Language())
	}
	a.paste = paste.NewHandler(recognizer, a.loop, a, logger)
	a.paste.SetTTL(cfg.PasteTTL)

	a.loop.SetCompletedCallback(func(act *loop.Action) {
		if waited := time.Since(act.CreatedAt); waited > slowAction {
			logger.Warn("loop is lagging", "action", act.Name, "waited", waited)
		}
	})

	// Save the reading position whenever the loop goes quiet and on exit
	a.loop.SetIdleCallback(a.saveState)
	a.loop.SetShutdownCallback(func() {
		a.reader.Stop()
		a.saveState()
	})

	var server *api.Server
	if cfg.HTTPEnabled() {
		server = api.New(cfg, logger, a.loop, a.reader)
		a.reader.Observe(server.Publish)
	}

	a.loop.Start()
	a.post(a.restore)

	if server != nil {
		go func() {
			if err := server.Start(); err != nil {
				logger.Error("HTTP server error", "error", err)
				notify.CaptureError(err)
				cancel()
			}
		}()
	}

	if cfg.ClipboardWatch {
		a.monitor = clipboard.NewMonitor(a.clip, cfg.ClipboardInterval, logger)
		go func() {
			err := a.monitor.Run(ctx, func(c clipboard.Content) {
				if err := a.paste.Handle(ctx, "clipboard", c); err != nil {
					logHandleError(logger, "clipboard", err)
				}
			})
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("clipboard monitor stopped", "error", err)
			}
		}()
	}

	if cfg.FeedEnabled() {
		client := feed.NewClient(cfg.Feed(), a.paste.HandleText, logger)
		go func() {
			if err := client.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("feed stopped", "error", err)
				notify.CaptureError(err)
			}
		}()
	}

	if dispatcher := newHotkeys(ctx, cfg, a, logger); dispatcher != nil {
		defer dispatcher.Close()
	}

	go func() {
		c := &console{app: a, out: os.Stdout}
		if err := c.run(ctx, os.Stdin); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("console error", "error", err)
		}
		cancel()
	}()

	// Wait for shutdown signal
	<-ctx.Done()

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if server != nil {
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown HTTP server", "error", err)
		}
	}

	a.loop.Stop()
	logger.Info("shutdown complete")
}

// newRegistry registers the configured TTS engine. A failing engine leaves
// the registry empty; speaking then reports the engine as unavailable.
func newRegistry(cfg *config.Config, logger *slog.Logger) (*tts.Registry, func()) {
	registry := tts.NewRegistry()
	closeFn := func() {}

	var (
		engine tts.Engine
		err    error
	)
	switch cfg.TTSEngine {
	case "piper":
		engine, err = tts.NewPiperEngine(tts.PiperConfig{
			BinaryPath: cfg.PiperPath,
			ModelPath:  cfg.PiperModel,
			Speakers:   cfg.PiperSpeakers,
		}, logger)
	case "google":
		engine, err = tts.NewGoogleEngine(tts.GoogleConfig{
			CacheDir:  cfg.GoogleCacheDir,
			Languages: cfg.GoogleLanguages,
		}, logger)
	case "yandex":
		var y *tts.YandexEngine
		y, err = tts.NewYandexEngine(tts.YandexConfig{
			APIKey:   cfg.YandexAPIKey,
			FolderID: cfg.YandexFolderID,
			Voices:   cfg.YandexVoices,
		}, logger)
		if err == nil {
			engine = y
			closeFn = func() {
				if err := y.Close(); err != nil {
					logger.Warn("failed to close yandex connection", "error", err)
				}
			}
		}
	}

	if err != nil {
		logger.Warn("failed to initialize TTS engine", "engine", cfg.TTSEngine, "error", err)
		return registry, closeFn
	}
	if err := registry.Register(engine); err != nil {
		logger.Warn("failed to register TTS engine", "engine", cfg.TTSEngine, "error", err)
		return registry, closeFn
	}

	logger.Info("TTS engine registered", "engine", engine.Name(), "voices", len(registry.Voices()))
	return registry, closeFn
}

// newPlayer opens the local sound device or joins the Discord voice channel.
func newPlayer(cfg *config.Config, logger *slog.Logger) (audio.Player, func(), error) {
	if cfg.AudioOutput != config.OutputDiscord {
		player, err := audio.NewPortAudioPlayer(cfg.FramesPerBuffer)
		if err != nil {
			return nil, nil, err
		}
		return player, func() {
			if err := player.Close(); err != nil {
				logger.Warn("failed to close audio device", "error", err)
			}
		}, nil
	}

	var (
		converter *audio.Converter
		err       error
	)
	if cfg.FFmpegPath != "" {
		converter = audio.NewConverterWithPath(cfg.FFmpegPath)
	} else if converter, err = audio.NewConverter(); err != nil {
		return nil, nil, err
	}

	voiceManager, err := discord.NewVoiceManager(
		cfg.DiscordToken,
		cfg.GuildID,
		cfg.DefaultVoiceChannelID,
		converter,
		logger,
	)
	if err != nil {
		return nil, nil, err
	}
	if err := voiceManager.Open(); err != nil {
		return nil, nil, err
	}
	logger.Info("Discord session opened")

	return voiceManager, func() {
		if voiceManager.IsConnected() {
			if err := voiceManager.Disconnect(); err != nil {
				logger.Error("failed to disconnect from voice during shutdown", "error", err)
			}
		}
		voiceManager.Close()
	}, nil
}

// newHotkeys binds the global hotkeys. It returns nil where hotkeys are not
// supported.
func newHotkeys(ctx context.Context, cfg *config.Config, a *app, logger *slog.Logger) *hotkey.Dispatcher {
	svc, err := hotkey.New()
	if err != nil {
		if errors.Is(err, hotkey.ErrUnsupported) {
			logger.Info("global hotkeys not supported on this platform")
		} else {
			logger.Warn("failed to start hotkey service", "error", err)
		}
		return nil
	}

	dispatcher := hotkey.NewDispatcher(svc, logger)
	bindings := []struct {
		name  string
		combo string
		fn    func()
	}{
		{"play/pause", cfg.HotkeyPlayPause, func() {
			a.loop.Go("hotkey:toggle", func() {
				if err := a.reader.TogglePlayPause(); err != nil {
					logger.Debug("toggle failed", "error", err)
				}
			})
		}},
		{"capture", cfg.HotkeyCapture, func() {
			go func() {
				if err := a.capture(ctx); err != nil {
					logHandleError(logger, "capture", err)
				}
			}()
		}},
		{"paste", cfg.HotkeyPaste, func() {
			go func() {
				if err := a.pasteClipboard(ctx); err != nil {
					logHandleError(logger, "clipboard", err)
				}
			}()
		}},
	}

	for _, b := range bindings {
		if b.combo == "" {
			continue
		}
		if err := dispatcher.Bind(b.combo, b.fn); err != nil {
			logger.Warn("failed to bind hotkey", "action", b.name, "combo", b.combo, "error", err)
			continue
		}
		logger.Info("hotkey bound", "action", b.name, "combo", b.combo)
	}

	go func() {
		if err := dispatcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, hotkey.ErrClosed) {
			logger.Warn("hotkey dispatcher stopped", "error", err)
		}
	}()
	return dispatcher
}

// logHandleError logs paste failures at a level matching how interesting
// they are.
func logHandleError(logger *slog.Logger, source string, err error) {
	switch {
	case errors.Is(err, paste.ErrNoText), errors.Is(err, clipboard.ErrEmpty), errors.Is(err, loop.ErrDuplicateAction):
		logger.Debug("nothing to paste", "source", source, "error", err)
	default:
		logger.Warn("paste failed", "source", source, "error", err)
	}
}
