// Package analyser turns a live mono sample stream into byte-scaled frequency
// and time-domain buffers, pulled once per frame by the renderer.
package analyser

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"
	"sync"

	"gonum.org/v1/gonum/dsp/fourier"
)

// ErrInvalidFFTSize is returned for sizes that are not a power of two in [32, 32768]
var ErrInvalidFFTSize = errors.New("invalid fft size")

const (
	DefaultFFTSize               = 2048
	DefaultSmoothingTimeConstant = 0.8
	DefaultMinDecibels           = -100.0
	DefaultMaxDecibels           = -30.0
)

// Options configures an Analyser. A zero FFTSize or an all-zero decibel range
// takes the defaults above.
type Options struct {
	FFTSize               int
	SmoothingTimeConstant float64
	MinDecibels           float64
	MaxDecibels           float64
}

// Analyser keeps the most recent FFTSize samples and derives byte buffers
// from them on demand.
type Analyser struct {
	size      int
	smoothing float64
	minDB     float64
	maxDB     float64

	mu      sync.Mutex
	ring    []float32
	pos     int
	cleared bool

	// touched only by the frame goroutine
	fft      *fourier.FFT
	window   []float64
	input    []float64
	coeffs   []complex128
	smoothed []float64
}

// New validates opts and allocates the transform state.
func New(opts Options) (*Analyser, error) {
	if opts.FFTSize == 0 {
		opts.FFTSize = DefaultFFTSize
	}
	if opts.MinDecibels == 0 && opts.MaxDecibels == 0 {
		opts.MinDecibels, opts.MaxDecibels = DefaultMinDecibels, DefaultMaxDecibels
	}

	n := opts.FFTSize
	if n < 32 || n > 32768 || n&(n-1) != 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidFFTSize, n)
	}
	if opts.SmoothingTimeConstant < 0 || opts.SmoothingTimeConstant > 1 {
		return nil, fmt.Errorf("smoothing time constant %g outside [0, 1]", opts.SmoothingTimeConstant)
	}
	if opts.MinDecibels >= opts.MaxDecibels {
		return nil, fmt.Errorf("min decibels %g must be below max decibels %g", opts.MinDecibels, opts.MaxDecibels)
	}

	return &Analyser{
		size:      n,
		smoothing: opts.SmoothingTimeConstant,
		minDB:     opts.MinDecibels,
		maxDB:     opts.MaxDecibels,
		ring:      make([]float32, n),
		fft:       fourier.NewFFT(n),
		window:    blackman(n),
		input:     make([]float64, n),
		coeffs:    make([]complex128, n/2+1),
		smoothed:  make([]float64, n/2),
	}, nil
}

// FFTSize is the transform window in samples.
func (a *Analyser) FFTSize() int { return a.size }

// FrequencyBinCount is always FFTSize/2.
func (a *Analyser) FrequencyBinCount() int { return a.size / 2 }

// Write appends mono samples, dropping the oldest once the window is full.
func (a *Analyser) Write(samples []float32) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(samples) >= a.size {
		copy(a.ring, samples[len(samples)-a.size:])
		a.pos = 0
		return
	}
	for _, s := range samples {
		a.ring[a.pos] = s
		a.pos = (a.pos + 1) % a.size
	}
}

// Reset drops buffered samples and the smoothing history.
func (a *Analyser) Reset() {
	a.mu.Lock()
	for i := range a.ring {
		a.ring[i] = 0
	}
	a.pos = 0
	a.cleared = true
	a.mu.Unlock()
}

// takeCleared reports whether Reset ran since the last transform.
func (a *Analyser) takeCleared() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	c := a.cleared
	a.cleared = false
	return c
}

// latest copies the newest len(dst) samples, oldest first.
func (a *Analyser) latest(dst []float64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	n := len(dst)
	start := a.pos - n
	if start < 0 {
		start += a.size
	}
	for i := 0; i < n; i++ {
		dst[i] = float64(a.ring[(start+i)%a.size])
	}
}

// GetByteTimeDomainData fills dst with the newest samples mapped to
// 128*(1+s) and clamped to a byte. At most FFTSize entries are written.
func (a *Analyser) GetByteTimeDomainData(dst []byte) {
	n := len(dst)
	if n > a.size {
		n = a.size
	}
	buf := a.input[:n]
	a.latest(buf)
	for i, s := range buf {
		dst[i] = clampByte(128 * (1 + s))
	}
}

// GetByteFrequencyData runs one windowed transform over the current window
// and fills dst with smoothed magnitudes scaled between the decibel bounds.
func (a *Analyser) GetByteFrequencyData(dst []byte) {
	if a.takeCleared() {
		for i := range a.smoothed {
			a.smoothed[i] = 0
		}
	}
	a.latest(a.input)
	for i := range a.input {
		a.input[i] *= a.window[i]
	}
	a.coeffs = a.fft.Coefficients(a.coeffs, a.input)

	scale := 1 / float64(a.size)
	k := a.smoothing
	for i := range a.smoothed {
		mag := cmplx.Abs(a.coeffs[i]) * scale
		v := k*a.smoothed[i] + (1-k)*mag
		if math.IsNaN(v) || math.IsInf(v, 0) {
			v = 0
		}
		a.smoothed[i] = v
	}

	n := len(dst)
	if n > len(a.smoothed) {
		n = len(a.smoothed)
	}
	rangeScale := 255 / (a.maxDB - a.minDB)
	for i := 0; i < n; i++ {
		db := 20 * math.Log10(a.smoothed[i])
		dst[i] = clampByte(rangeScale * (db - a.minDB))
	}
}

func blackman(n int) []float64 {
	const alpha = 0.16
	a0 := 0.5 * (1 - alpha)
	a1 := 0.5
	a2 := 0.5 * alpha

	w := make([]float64, n)
	for i := range w {
		x := float64(i) / float64(n)
		w[i] = a0 - a1*math.Cos(2*math.Pi*x) + a2*math.Cos(4*math.Pi*x)
	}
	return w
}

// clampByte truncates like a Uint8Array store after clamping; NaN and -Inf map to 0.
func clampByte(v float64) byte {
	switch {
	case math.IsNaN(v) || v <= 0:
		return 0
	case v >= 255:
		return 255
	default:
		return byte(v)
	}
}
