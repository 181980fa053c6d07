package render

import (
	"image/color"
	"math"
)

var (
	// Background is the dark green both views are cleared to (#001100).
	Background = color.NRGBA{R: 0x00, G: 0x11, B: 0x00, A: 0xff}
	// Trace is the oscilloscope line colour (#0f0).
	Trace = color.NRGBA{R: 0x00, G: 0xff, B: 0x00, A: 0xff}
)

const (
	barWidthScale = 2.5
	barGutter     = 1.0
	traceWidth    = 2.0
)

// DrawSpectrum paints one bar per bin, left to right, anchored to the bottom.
// Bars are half the byte value tall and brighten with height. Bins whose bar
// would start past the right edge are not drawn.
func DrawSpectrum(s Surface, freq []byte) {
	width, height := s.Size()
	s.Clear(Background)

	if len(freq) == 0 {
		return
	}

	barWidth := (width / float64(len(freq))) * barWidthScale
	x := 0.0
	for _, v := range freq {
		if x >= width {
			break
		}
		barHeight := float64(v) / 2
		s.FillRect(x, height-barHeight, barWidth, barHeight, BarColor(barHeight))
		x += barWidth + barGutter
	}
}

// BarColor is rgb(0, 100+barHeight, 0) as a CSS colour string would resolve
// it: components rounded and clamped to [0, 255].
func BarColor(barHeight float64) color.NRGBA {
	return cssRGB(0, 100+barHeight, 0)
}

func cssRGB(r, g, b float64) color.NRGBA {
	return color.NRGBA{R: cssComponent(r), G: cssComponent(g), B: cssComponent(b), A: 0xff}
}

func cssComponent(v float64) uint8 {
	if math.IsNaN(v) {
		return 0
	}
	return uint8(clamp(math.Round(v), 0, 255))
}

// DrawOscilloscope strokes the waveform as one polyline. A sample of 128
// lands on the vertical centre; the path ends at the right edge's centre.
func DrawOscilloscope(s Surface, wave []byte) {
	drawOscilloscope(s, wave, nil)
}

// drawOscilloscope reuses pts for the path and returns it for the next frame.
func drawOscilloscope(s Surface, wave []byte, pts []Point) []Point {
	width, height := s.Size()
	s.Clear(Background)

	if len(wave) == 0 {
		return pts
	}

	pts = pts[:0]
	slice := width / float64(len(wave))
	x := 0.0
	for _, b := range wave {
		v := float64(b) / 128.0
		pts = append(pts, Point{X: x, Y: v * height / 2})
		x += slice
	}
	pts = append(pts, Point{X: width, Y: height / 2})

	s.StrokePolyline(pts, traceWidth, Trace)
	return pts
}
