package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/petems/audioviz/internal/audio"
	"github.com/petems/audioviz/internal/capture"
	"github.com/petems/audioviz/internal/config"
	"github.com/petems/audioviz/internal/render"
	"github.com/rs/zerolog"
)

// DefaultDeviceID is the selector entry for the platform default input.
const DefaultDeviceID = "default"

// DefaultDeviceName labels DefaultDeviceID in device lists.
const DefaultDeviceName = "Default Input"

type State int

const (
	Idle State = iota
	Listening
	Error
)

func (s State) String() string {
	switch s {
	case Listening:
		return "listening"
	case Error:
		return "error"
	default:
		return "idle"
	}
}

// Status is what the window and tray show.
type Status struct {
	State    State
	Message  string
	DeviceID string
}

// StatusUpdater is an interface for updating status (e.g., tray icon)
type StatusUpdater interface {
	SetIdle()
	SetListening(deviceID string)
	SetError(message string)
}

// Sessions is the capture side the app drives.
type Sessions interface {
	ListDevices() []audio.AudioDevice
	Open(ctx context.Context, deviceID string) (*capture.Session, error)
	Close(s *capture.Session) error
	Active() *capture.Session
	Shutdown() error
}

// Renderer is the frame loop the app feeds sessions into.
type Renderer interface {
	Start(src render.SampleSource)
	Attach(src render.SampleSource)
	Stop()
}

type Config struct {
	Sessions      Sessions
	Renderer      Renderer
	Config        *config.Config
	Logger        zerolog.Logger
	StatusUpdater StatusUpdater // Optional - can be nil
}

type App struct {
	sessions Sessions
	renderer Renderer
	cfg      *config.Config
	log      zerolog.Logger

	// mu orders every attach, status change and config write.
	mu       sync.Mutex
	status   Status
	updaters []StatusUpdater
}

func New(cfg Config) *App {
	a := &App{
		sessions: cfg.Sessions,
		renderer: cfg.Renderer,
		cfg:      cfg.Config,
		log:      cfg.Logger.With().Str("component", "app").Logger(),
		status:   Status{State: Idle, DeviceID: deviceKey(cfg.Config.Audio.DeviceID)},
	}
	if cfg.StatusUpdater != nil {
		a.updaters = append(a.updaters, cfg.StatusUpdater)
	}
	return a
}

// AddStatusUpdater registers another status listener (window, tray, ...).
func (a *App) AddStatusUpdater(u StatusUpdater) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.updaters = append(a.updaters, u)
}

// Start arms the render loop and opens the configured device. A capture
// failure is reported through the status, not returned: the window stays up
// so the user can pick another device or retry.
func (a *App) Start(ctx context.Context) {
	a.renderer.Start(nil)
	a.open(ctx, a.Selected())
}

// SelectDevice switches capture to id ("default" or "" for the platform
// default). The choice is persisted once the capture manager settles it.
func (a *App) SelectDevice(ctx context.Context, id string) error {
	id = deviceKey(id)
	a.log.Info().Str("device", id).Msg("Changed audio device")
	return a.open(ctx, id)
}

// Retry re-opens the selected device.
func (a *App) Retry(ctx context.Context) error {
	return a.open(ctx, a.Selected())
}

// open acts only on outcomes the capture manager still stands behind:
// superseded requests are dropped, and a session is attached only while it
// is the installed one. The loop, status and saved selection therefore
// always follow the manager's newest request.
func (a *App) open(ctx context.Context, id string) error {
	s, err := a.sessions.Open(ctx, backendID(id))

	a.mu.Lock()
	defer a.mu.Unlock()

	switch {
	case errors.Is(err, capture.ErrSuperseded), errors.Is(err, capture.ErrShutdown):
		// A newer selection owns the outcome.
		a.log.Debug().Err(err).Str("device", id).Msg("Dropped superseded request")
		return nil
	case err != nil:
		a.persistLocked(id)
		a.setErrorLocked(id, fmt.Sprintf("microphone unavailable: %v", err))
		return err
	}

	if a.sessions.Active() != s {
		a.log.Debug().Str("device", id).Str("session", s.ID).Msg("Dropped session replaced before attach")
		return nil
	}
	a.renderer.Attach(s)
	a.persistLocked(id)
	a.setListeningLocked(id)
	return nil
}

func (a *App) persistLocked(id string) {
	if a.cfg.Audio.DeviceID == backendID(id) {
		return
	}
	a.cfg.Audio.DeviceID = backendID(id)
	if err := a.cfg.Save(); err != nil {
		a.log.Warn().Err(err).Msg("Failed to save device selection")
	}
}

// Devices lists the selector entries: the default input first, then every
// enumerated device. Missing labels become "Input <id>".
func (a *App) Devices() []audio.AudioDevice {
	devices := []audio.AudioDevice{{ID: DefaultDeviceID, Name: DefaultDeviceName}}
	for _, d := range a.sessions.ListDevices() {
		if d.Name == "" {
			d.Name = "Input " + d.ID
		}
		devices = append(devices, d)
	}
	return devices
}

// Selected returns the selector key of the chosen device.
func (a *App) Selected() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return deviceKey(a.cfg.Audio.DeviceID)
}

// ConfigSnapshot returns a copy of the current configuration.
func (a *App) ConfigSnapshot() config.Config {
	a.mu.Lock()
	defer a.mu.Unlock()
	return *a.cfg
}

func (a *App) Status() Status {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.status
}

// Shutdown stops drawing and releases capture.
func (a *App) Shutdown(ctx context.Context) error {
	a.renderer.Stop()
	err := a.sessions.Shutdown()

	a.mu.Lock()
	a.status = Status{State: Idle, DeviceID: a.status.DeviceID}
	updaters := append([]StatusUpdater(nil), a.updaters...)
	a.mu.Unlock()

	for _, u := range updaters {
		u.SetIdle()
	}
	return err
}

// Updaters are called with a.mu held so their order matches the status
// order. They must not call back into App.

func (a *App) setListeningLocked(id string) {
	a.status = Status{State: Listening, DeviceID: id}
	for _, u := range a.updaters {
		u.SetListening(id)
	}
}

func (a *App) setErrorLocked(id, msg string) {
	a.status = Status{State: Error, Message: msg, DeviceID: id}
	for _, u := range a.updaters {
		u.SetError(msg)
	}
}

func deviceKey(id string) string {
	if id == "" {
		return DefaultDeviceID
	}
	return id
}

func backendID(key string) string {
	if key == DefaultDeviceID {
		return ""
	}
	return key
}
