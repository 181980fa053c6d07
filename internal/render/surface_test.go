package render

import (
	"bytes"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestRasterClear(t *testing.T) {
	r := NewRaster(8, 4)
	r.Clear(Background)

	got := r.Image().RGBAAt(7, 3)
	if got != (color.RGBA{R: 0, G: 0x11, B: 0, A: 0xff}) {
		t.Errorf("expected background, got %+v", got)
	}
}

func TestRasterFillRectClipsOverflow(t *testing.T) {
	r := NewRaster(10, 10)
	r.Clear(color.Black)

	// Starts inside, runs past the right and bottom edges.
	r.FillRect(8, 8, 50, 50, color.White)
	// Entirely off-surface.
	r.FillRect(20, 0, 5, 5, color.White)

	if got := r.Image().RGBAAt(9, 9); got.R < 0xf0 {
		t.Errorf("expected filled corner, got %+v", got)
	}
	if got := r.Image().RGBAAt(5, 5); got.R != 0 {
		t.Errorf("expected untouched interior, got %+v", got)
	}
}

func TestRasterStrokeFlatLine(t *testing.T) {
	r := NewRaster(20, 10)
	r.Clear(Background)
	r.StrokePolyline([]Point{{0, 5}, {10, 5}, {20, 5}}, 2, Trace)

	for x := 0; x < 20; x++ {
		if got := r.Image().RGBAAt(x, 5); got.G < 0xf0 {
			t.Fatalf("x=%d: expected trace on centre row, got %+v", x, got)
		}
		if got := r.Image().RGBAAt(x, 0); got.G != 0x11 {
			t.Fatalf("x=%d: expected background on top row, got %+v", x, got)
		}
	}
}

func TestRasterDrawsSpectrumWithoutPanicking(t *testing.T) {
	r := NewRaster(800, 200)
	data := make([]byte, 1024)
	for i := range data {
		data[i] = 255
	}
	DrawSpectrum(r, data)
	DrawOscilloscope(r, data)
}

func TestRasterWritePNG(t *testing.T) {
	r := NewRaster(4, 4)
	r.Clear(Trace)

	var buf bytes.Buffer
	if err := r.WritePNG(&buf); err != nil {
		t.Fatalf("WritePNG: %v", err)
	}
	img, err := png.Decode(&buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if img.Bounds().Dx() != 4 {
		t.Errorf("expected width 4, got %d", img.Bounds().Dx())
	}
}

func TestSnapshot(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "shots")
	spectrum, scope := NewRaster(8, 4), NewRaster(8, 4)

	now := time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)
	paths, err := Snapshot(dir, spectrum, scope, now)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	want := []string{
		filepath.Join(dir, "spectrum-20240301-123000.png"),
		filepath.Join(dir, "oscilloscope-20240301-123000.png"),
	}
	for i, p := range want {
		if paths[i] != p {
			t.Errorf("path %d: got %s, want %s", i, paths[i], p)
		}
		if _, err := os.Stat(p); err != nil {
			t.Errorf("expected %s to exist: %v", p, err)
		}
	}
}
