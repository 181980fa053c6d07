package tray

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/driver/desktop"
	"github.com/atotto/clipboard"
	"github.com/petems/audioviz/internal/app"
	"github.com/petems/audioviz/internal/config"
	"github.com/rs/zerolog"
)

// Snapshotter saves the current views and returns the written files.
type Snapshotter interface {
	Snapshot(dir string) ([]string, error)
}

type UI struct {
	fyneApp fyne.App
	app     *app.App
	snap    Snapshotter
	version string
	commit  string
	log     zerolog.Logger

	// Menu items
	menu     *fyne.Menu
	mStatus  *fyne.MenuItem
	mDevices *fyne.MenuItem

	mu      sync.Mutex
	devices map[string]*fyne.MenuItem
}

// Status update methods for the app to call
func (u *UI) SetIdle() {
	u.updateStatus(app.Idle, "")
}

func (u *UI) SetListening(deviceID string) {
	u.updateStatus(app.Listening, deviceID)
}

func (u *UI) SetError(message string) {
	u.updateStatus(app.Error, message)
}

func New(fyneApp fyne.App, application *app.App, snap Snapshotter, version, commit string, log zerolog.Logger) *UI {
	return &UI{
		fyneApp: fyneApp,
		app:     application,
		snap:    snap,
		version: version,
		commit:  commit,
		log:     log.With().Str("component", "tray").Logger(),
		devices: make(map[string]*fyne.MenuItem),
	}
}

// Setup installs the tray menu. It reports false when the driver has no
// system tray, in which case the window is the only surface.
func (u *UI) Setup() bool {
	desk, ok := u.fyneApp.(desktop.App)
	if !ok {
		u.log.Info().Msg("System tray not supported by this driver")
		return false
	}

	u.mStatus = fyne.NewMenuItem(statusTitle(app.Idle, ""), nil)
	u.mStatus.Disabled = true

	u.mDevices = fyne.NewMenuItem("Microphone", nil)
	u.buildDeviceMenu()

	u.menu = fyne.NewMenu("Audio Visualizer",
		u.mStatus,
		fyne.NewMenuItemSeparator(),
		u.mDevices,
		fyne.NewMenuItem("Retry", u.retry),
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Save Snapshot", u.saveSnapshot),
		fyne.NewMenuItem("Copy Diagnostics", u.copyDiagnostics),
		fyne.NewMenuItem("Open Logs", u.openLogs),
		fyne.NewMenuItem("About", u.showAbout),
	)
	desk.SetSystemTrayMenu(u.menu)
	return true
}

func (u *UI) buildDeviceMenu() {
	devices := u.app.Devices()
	selected := u.app.Selected()

	items := make([]*fyne.MenuItem, 0, len(devices))
	u.mu.Lock()
	u.devices = make(map[string]*fyne.MenuItem, len(devices))
	for _, dev := range devices {
		deviceID, deviceName := dev.ID, dev.Name
		item := fyne.NewMenuItem(deviceName, func() {
			u.log.Info().Str("device", deviceName).Msg("Device chosen from tray")
			u.checkDevice(deviceID)
			go func() {
				if err := u.app.SelectDevice(context.Background(), deviceID); err != nil {
					u.log.Warn().Err(err).Str("device", deviceID).Msg("Device switch failed")
				}
			}()
		})
		item.Checked = deviceID == selected
		u.devices[deviceID] = item
		items = append(items, item)
	}
	u.mu.Unlock()

	u.mDevices.ChildMenu = fyne.NewMenu("", items...)
}

// checkDevice moves the check mark to id. UI thread only.
func (u *UI) checkDevice(id string) {
	u.mu.Lock()
	for deviceID, item := range u.devices {
		item.Checked = deviceID == id
	}
	u.mu.Unlock()
	if u.menu != nil {
		u.menu.Refresh()
	}
}

func (u *UI) retry() {
	go func() {
		if err := u.app.Retry(context.Background()); err != nil {
			u.log.Warn().Err(err).Msg("Retry failed")
			return
		}
		fyne.Do(func() {
			u.buildDeviceMenu()
			u.menu.Refresh()
		})
	}()
}

func (u *UI) saveSnapshot() {
	go func() {
		cfg := u.app.ConfigSnapshot()
		paths, err := u.snap.Snapshot(cfg.SnapshotDir)
		if err != nil {
			u.log.Error().Err(err).Msg("Failed to save snapshot")
			u.notify("Snapshot failed", err.Error())
			return
		}
		u.log.Info().Strs("files", paths).Msg("Saved snapshot")
		u.notify("Snapshot saved", strings.Join(paths, "\n"))
	}()
}

func (u *UI) copyDiagnostics() {
	cfg := u.app.ConfigSnapshot()
	text := diagnostics(u.version, u.commit, u.app.Status(), &cfg)
	if err := clipboard.WriteAll(text); err != nil {
		u.log.Error().Err(err).Msg("Failed to copy diagnostics")
		return
	}
	u.log.Debug().Msg("Copied diagnostics to clipboard")
}

func (u *UI) openLogs() {
	target := &url.URL{Scheme: "file", Path: config.LogPath()}
	if err := u.fyneApp.OpenURL(target); err != nil {
		u.log.Error().Err(err).Str("path", target.Path).Msg("Failed to open logs")
	}
}

func (u *UI) showAbout() {
	u.notify("Audio Visualizer", fmt.Sprintf("%s (%s)\nSpectrum and oscilloscope for live input", u.version, u.commit))
}

func (u *UI) notify(title, content string) {
	u.fyneApp.SendNotification(fyne.NewNotification(title, content))
}

// updateStatus sets the status line with microphone emoji and status indicator
func (u *UI) updateStatus(state app.State, detail string) {
	if u.menu == nil {
		return
	}
	fyne.Do(func() {
		u.mStatus.Label = statusTitle(state, detail)
		if state == app.Listening {
			u.mu.Lock()
			for deviceID, item := range u.devices {
				item.Checked = deviceID == detail
			}
			u.mu.Unlock()
		}
		u.menu.Refresh()
	})
}

func statusTitle(state app.State, detail string) string {
	title := fmt.Sprintf("🎤 %s %s", emojiForStatus(state), state)
	if detail != "" && state != app.Listening {
		title += ": " + detail
	}
	return title
}

// emojiForStatus returns the appropriate status emoji
func emojiForStatus(state app.State) string {
	switch state {
	case app.Listening:
		return "🟢" // Green - capturing
	case app.Error:
		return "⚪️" // White - error
	default:
		return "🟡" // Yellow - idle, nothing attached
	}
}

// diagnostics is the text placed on the clipboard for bug reports.
func diagnostics(version, commit string, status app.Status, cfg *config.Config) string {
	var b strings.Builder
	fmt.Fprintf(&b, "audioviz %s (%s)\n", version, commit)
	fmt.Fprintf(&b, "status: %s\n", status.State)
	fmt.Fprintf(&b, "device: %s\n", status.DeviceID)
	if status.Message != "" {
		fmt.Fprintf(&b, "error: %s\n", status.Message)
	}
	fmt.Fprintf(&b, "backend: %s\n", cfg.Audio.Backend)
	fmt.Fprintf(&b, "sample rate: %d\n", cfg.Audio.SampleRate)
	fmt.Fprintf(&b, "fft size: %d\n", cfg.Analyser.FFTSize)
	fmt.Fprintf(&b, "config: %s\n", cfg.Path())
	fmt.Fprintf(&b, "log: %s\n", config.LogPath())
	return b.String()
}
