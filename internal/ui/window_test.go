package ui

import (
	"testing"

	"fyne.io/fyne/v2/test"
	"fyne.io/fyne/v2/widget"
	"github.com/petems/audioviz/internal/audio"
)

func TestSelectorOptionsKeepsOrder(t *testing.T) {
	labels, ids := selectorOptions([]audio.AudioDevice{
		{ID: "default", Name: "Default Input"},
		{ID: "b", Name: "USB Mic"},
		{ID: "a", Name: "Built-in"},
	})

	want := []string{"Default Input", "USB Mic", "Built-in"}
	for i, l := range want {
		if labels[i] != l {
			t.Errorf("label %d: got %q, want %q", i, labels[i], l)
		}
	}
	if ids["USB Mic"] != "b" || ids["Default Input"] != "default" {
		t.Errorf("unexpected id mapping %v", ids)
	}
}

func TestSelectorOptionsDisambiguatesNames(t *testing.T) {
	labels, ids := selectorOptions([]audio.AudioDevice{
		{ID: "1", Name: "Headset"},
		{ID: "2", Name: "Headset"},
	})

	if len(labels) != 2 || labels[1] != "Headset (2)" {
		t.Fatalf("expected duplicate to be numbered, got %v", labels)
	}
	if ids["Headset"] != "1" || ids["Headset (2)"] != "2" {
		t.Errorf("unexpected id mapping %v", ids)
	}
}

func newTestWindow(t *testing.T) *Window {
	t.Helper()
	test.NewTempApp(t)

	labels, ids := selectorOptions([]audio.AudioDevice{
		{ID: "default", Name: "Default Input"},
		{ID: "a", Name: "Built-in"},
		{ID: "b", Name: "USB Mic"},
	})
	w := &Window{
		ids:    ids,
		status: widget.NewLabel("Listening on Default Input"),
	}
	w.selector = widget.NewSelect(labels, w.onDeviceSelected)
	w.updating = true
	w.selector.SetSelected("Default Input")
	w.updating = false
	return w
}

func TestShowDeviceMovesSelectorWithoutSwitching(t *testing.T) {
	w := newTestWindow(t)

	if !w.showDevice("b") {
		t.Fatal("expected listed device to be shown")
	}
	if got := w.selector.Selected; got != "USB Mic" {
		t.Errorf("expected selector on USB Mic, got %q", got)
	}
	if got := w.status.Text; got != "Listening on Default Input" {
		t.Errorf("expected no device switch to start, status %q", got)
	}
	if w.updating {
		t.Error("expected updating flag cleared")
	}
}

func TestShowDeviceUnknown(t *testing.T) {
	w := newTestWindow(t)

	if w.showDevice("missing") {
		t.Error("expected unknown device to be reported")
	}
	if got := w.selector.Selected; got != "Default Input" {
		t.Errorf("expected selector unchanged, got %q", got)
	}
}
