package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"fyne.io/fyne/v2"
	fyneapp "fyne.io/fyne/v2/app"
	"github.com/petems/audioviz/internal/analyser"
	"github.com/petems/audioviz/internal/app"
	"github.com/petems/audioviz/internal/audio"
	"github.com/petems/audioviz/internal/capture"
	"github.com/petems/audioviz/internal/config"
	"github.com/petems/audioviz/internal/logging"
	"github.com/petems/audioviz/internal/permissions"
	"github.com/petems/audioviz/internal/render"
	"github.com/petems/audioviz/internal/tray"
	"github.com/petems/audioviz/internal/ui"
)

var (
	// Version is set via ldflags at build time
	Version = "dev"
	// Commit is set via ldflags at build time
	Commit = "unknown"
)

func main() {
	// Load config from XDG/Library/AppData
	cfg, err := config.Load()
	if err != nil {
		// Use default logger if config fails to load
		log := logging.New()
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	// Initialize logger with configured level
	log := logging.NewWithLevel(cfg.LogLevel)

	// macOS prompts asynchronously; capture fails until access is granted and
	// the user can hit Retry.
	if err := permissions.EnsurePermissions(); err != nil {
		log.Warn().Err(err).Msg("Microphone permission not granted yet")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize audio backend
	backend, err := audio.New(cfg.Audio)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.Audio.Backend).Msg("Failed to initialize audio")
	}

	manager := capture.NewManager(backend, analyser.Options{
		FFTSize:               cfg.Analyser.FFTSize,
		SmoothingTimeConstant: cfg.Analyser.SmoothingTimeConstant,
		MinDecibels:           cfg.Analyser.MinDecibels,
		MaxDecibels:           cfg.Analyser.MaxDecibels,
	}, log)

	spectrum := render.NewRaster(cfg.Render.Width, cfg.Render.Height)
	scope := render.NewRaster(cfg.Render.Width, cfg.Render.Height)

	fyneApp := fyneapp.NewWithID("com.petems.audioviz")

	// The window is built after the app; frames only arrive once Start runs.
	var window *ui.Window
	loop := render.NewLoop(render.LoopConfig{
		Spectrum: spectrum,
		Scope:    scope,
		NewClock: func() render.FrameClock { return render.NewTickerClock(cfg.Render.FPS) },
		Dispatch: fyne.DoAndWait,
		OnFrame: func() {
			if window != nil {
				window.Refresh()
			}
		},
		Logger: log,
	})

	application := app.New(app.Config{
		Sessions: manager,
		Renderer: loop,
		Config:   cfg,
		Logger:   log,
	})

	window = ui.New(fyneApp, application, spectrum, scope, log)
	application.AddStatusUpdater(window)

	trayUI := tray.New(fyneApp, application, window, Version, Commit, log)
	if trayUI.Setup() {
		application.AddStatusUpdater(trayUI)
	}

	fyneApp.Lifecycle().SetOnStarted(func() {
		log.Info().Str("version", Version).Str("backend", cfg.Audio.Backend).Msg("Audio visualizer starting...")
		go application.Start(ctx)
	})
	fyneApp.Lifecycle().SetOnStopped(func() {
		log.Info().Msg("Shutting down...")
		if err := application.Shutdown(ctx); err != nil {
			log.Error().Err(err).Msg("Shutdown error")
		}
	})

	// Setup shutdown signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fyne.Do(fyneApp.Quit)
	}()

	// Run UI - MUST run on main thread
	window.Window().ShowAndRun()
}
