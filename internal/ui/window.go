// Package ui is the visualizer window: a device selector, a status line and
// the two 800x200 views.
package ui

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"
	"github.com/petems/audioviz/internal/app"
	"github.com/petems/audioviz/internal/audio"
	"github.com/petems/audioviz/internal/render"
	"github.com/rs/zerolog"
)

const title = "90s Audio Visualizer"

type Window struct {
	app    *app.App
	window fyne.Window
	log    zerolog.Logger

	spectrum *render.Raster
	scope    *render.Raster

	spectrumImg *canvas.Image
	scopeImg    *canvas.Image
	selector    *widget.Select
	status      *widget.Label
	retry       *widget.Button

	// label shown in the selector → device id; touched on the UI thread only
	ids       map[string]string
	updating  bool
	lastError string
}

func New(fyneApp fyne.App, application *app.App, spectrum, scope *render.Raster, log zerolog.Logger) *Window {
	w := &Window{
		app:      application,
		window:   fyneApp.NewWindow(title),
		log:      log.With().Str("component", "ui").Logger(),
		spectrum: spectrum,
		scope:    scope,
		ids:      make(map[string]string),
	}

	w.spectrumImg = newView(spectrum)
	w.scopeImg = newView(scope)

	w.selector = widget.NewSelect(nil, w.onDeviceSelected)
	w.status = widget.NewLabel("Starting...")
	w.retry = widget.NewButton("Retry", w.onRetry)
	w.retry.Disable()

	controls := container.NewHBox(
		widget.NewLabel("Audio Input:"),
		w.selector,
		w.retry,
	)

	w.window.SetContent(container.NewVBox(
		controls,
		w.status,
		widget.NewLabelWithStyle("Spectrum Analyzer", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}),
		w.spectrumImg,
		widget.NewLabelWithStyle("Oscilloscope", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}),
		w.scopeImg,
	))
	w.window.SetFixedSize(true)

	w.ReloadDevices()
	return w
}

func newView(r *render.Raster) *canvas.Image {
	img := canvas.NewImageFromImage(r.Image())
	img.FillMode = canvas.ImageFillOriginal
	img.ScaleMode = canvas.ImageScalePixels
	width, height := r.Size()
	img.SetMinSize(fyne.NewSize(float32(width), float32(height)))
	return img
}

// Window exposes the fyne window for lifecycle hooks.
func (w *Window) Window() fyne.Window {
	return w.window
}

func (w *Window) Show() {
	w.window.Show()
}

// Refresh repaints both views. Called from the render loop's frame callback,
// which already runs on the UI thread.
func (w *Window) Refresh() {
	w.spectrumImg.Refresh()
	w.scopeImg.Refresh()
}

// ReloadDevices rebuilds the selector from a fresh enumeration. UI thread only.
func (w *Window) ReloadDevices() {
	labels, ids := selectorOptions(w.app.Devices())
	w.ids = ids

	w.selector.Options = labels
	w.selector.Refresh()

	if !w.showDevice(w.app.Selected()) {
		w.updating = true
		w.selector.SetSelected(labels[0])
		w.updating = false
	}
}

// showDevice moves the selector to deviceID without starting a switch.
// It reports false when the device is not listed. UI thread only.
func (w *Window) showDevice(deviceID string) bool {
	for label, id := range w.ids {
		if id != deviceID {
			continue
		}
		if w.selector.Selected != label {
			w.updating = true
			w.selector.SetSelected(label)
			w.updating = false
		}
		return true
	}
	return false
}

// Snapshot saves both views as PNGs, reading them on the UI thread.
func (w *Window) Snapshot(dir string) ([]string, error) {
	var (
		paths []string
		err   error
	)
	fyne.DoAndWait(func() {
		paths, err = render.Snapshot(dir, w.spectrum, w.scope, time.Now())
	})
	return paths, err
}

func (w *Window) onDeviceSelected(label string) {
	if w.updating {
		return
	}
	id, ok := w.ids[label]
	if !ok {
		return
	}

	w.status.SetText("Opening " + label + "...")
	go func() {
		if err := w.app.SelectDevice(context.Background(), id); err != nil {
			w.log.Warn().Err(err).Str("device", id).Msg("Device switch failed")
		}
	}()
}

func (w *Window) onRetry() {
	w.retry.Disable()
	w.status.SetText("Retrying...")
	go func() {
		if err := w.app.Retry(context.Background()); err != nil {
			w.log.Warn().Err(err).Msg("Retry failed")
		}
		// Permission prompts may have revealed devices.
		fyne.Do(w.ReloadDevices)
	}()
}

// Status update methods for the app to call

func (w *Window) SetIdle() {
	fyne.Do(func() {
		w.status.SetText("Idle")
		w.retry.Enable()
	})
}

func (w *Window) SetListening(deviceID string) {
	fyne.Do(func() {
		w.lastError = ""
		// Switches made from the tray land here too.
		w.showDevice(deviceID)
		w.status.SetText(fmt.Sprintf("Listening on %s", w.labelFor(deviceID)))
		w.retry.Disable()
	})
}

func (w *Window) SetError(message string) {
	fyne.Do(func() {
		w.status.SetText(message)
		w.retry.Enable()
		// Only pop a dialog when the failure changes, not on every retry.
		if message != w.lastError {
			w.lastError = message
			dialog.ShowError(errors.New(message), w.window)
		}
	})
}

func (w *Window) labelFor(deviceID string) string {
	for label, id := range w.ids {
		if id == deviceID {
			return label
		}
	}
	return deviceID
}

// selectorOptions keeps the device order and disambiguates repeated names.
func selectorOptions(devices []audio.AudioDevice) ([]string, map[string]string) {
	labels := make([]string, 0, len(devices))
	ids := make(map[string]string, len(devices))
	seen := make(map[string]int)

	for _, d := range devices {
		label := d.Name
		seen[label]++
		if n := seen[label]; n > 1 {
			label = fmt.Sprintf("%s (%d)", d.Name, n)
		}
		labels = append(labels, label)
		ids[label] = d.ID
	}
	return labels, ids
}
