// Package render rasterizes analyser output into the spectrum and
// oscilloscope views and drives the per-frame redraw.
package render

import (
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// SampleSource is what a frame pulls from: the two byte views of the current
// capture session.
type SampleSource interface {
	FrequencyBinCount() int
	GetByteFrequencyData(dst []byte)
	GetByteTimeDomainData(dst []byte)
}

type LoopConfig struct {
	Spectrum Surface
	Scope    Surface

	// NewClock builds the frame clock for each run. Defaults to 60 fps.
	NewClock func() FrameClock
	// Dispatch runs a frame on the thread that owns the surfaces. Nil runs
	// the frame on the loop goroutine.
	Dispatch func(func())
	// OnFrame is called after both views are drawn, inside Dispatch.
	OnFrame func()

	Logger zerolog.Logger
}

// Loop redraws both views once per clock tick. Every Start bumps the
// generation; a run only draws while its generation is current, so a stopped
// run can never paint over a newer one.
type Loop struct {
	cfg LoopConfig
	log zerolog.Logger

	gen    atomic.Uint64
	frames atomic.Uint64

	mu    sync.Mutex
	src   SampleSource
	armed bool
	stop  chan struct{}

	// frame state, guarded by frameMu
	frameMu sync.Mutex
	freq    []byte
	wave    []byte
	pts     []Point
}

func NewLoop(cfg LoopConfig) *Loop {
	if cfg.NewClock == nil {
		cfg.NewClock = func() FrameClock { return NewTickerClock(60) }
	}
	if cfg.Dispatch == nil {
		cfg.Dispatch = func(f func()) { f() }
	}
	return &Loop{
		cfg: cfg,
		log: cfg.Logger.With().Str("component", "render").Logger(),
	}
}

// Start begins drawing from src. With no source the loop only arms itself
// and starts on the next Attach.
func (l *Loop) Start(src SampleSource) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if src == nil {
		l.armed = true
		l.log.Warn().Msg("No active capture session; render loop armed")
		return
	}
	l.src = src
	l.startLocked()
}

// Attach swaps the source. A running or armed loop restarts on it; a
// stopped loop just remembers it. Attaching nil parks a running loop in the
// armed state.
func (l *Loop) Attach(src SampleSource) {
	l.mu.Lock()
	defer l.mu.Unlock()

	wanted := l.armed || l.stop != nil
	l.src = src
	if !wanted {
		return
	}
	if src == nil {
		l.stopLocked()
		l.armed = true
		return
	}
	l.startLocked()
}

// Stop cancels the pending frame. Safe to call repeatedly.
func (l *Loop) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.armed = false
	l.stopLocked()
}

// Running reports whether a run is scheduled.
func (l *Loop) Running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stop != nil
}

// Generation is bumped by every Start, Attach restart and Stop.
func (l *Loop) Generation() uint64 {
	return l.gen.Load()
}

// Frames counts frames drawn since the loop was created.
func (l *Loop) Frames() uint64 {
	return l.frames.Load()
}

func (l *Loop) startLocked() {
	l.stopLocked()
	l.armed = false

	gen := l.gen.Load()
	stop := make(chan struct{})
	l.stop = stop

	l.log.Debug().Uint64("generation", gen).Msg("Render loop started")
	go l.run(gen, l.src, stop)
}

func (l *Loop) stopLocked() {
	if l.stop != nil {
		close(l.stop)
		l.stop = nil
	}
	l.gen.Add(1)
}

func (l *Loop) run(gen uint64, src SampleSource, stop <-chan struct{}) {
	clock := l.cfg.NewClock()
	defer clock.Stop()

	l.cfg.Dispatch(func() { l.frame(gen, src) })

	for {
		select {
		case <-stop:
			return
		case <-clock.C():
			if l.gen.Load() != gen {
				return
			}
			l.cfg.Dispatch(func() { l.frame(gen, src) })
		}
	}
}

func (l *Loop) frame(gen uint64, src SampleSource) {
	l.frameMu.Lock()
	defer l.frameMu.Unlock()

	if l.gen.Load() != gen {
		return
	}

	n := src.FrequencyBinCount()
	if cap(l.freq) < n {
		l.freq = make([]byte, n)
		l.wave = make([]byte, n)
	}
	l.freq, l.wave = l.freq[:n], l.wave[:n]

	src.GetByteFrequencyData(l.freq)
	DrawSpectrum(l.cfg.Spectrum, l.freq)

	src.GetByteTimeDomainData(l.wave)
	l.pts = drawOscilloscope(l.cfg.Scope, l.wave, l.pts)

	l.frames.Add(1)
	if l.cfg.OnFrame != nil {
		l.cfg.OnFrame()
	}
}
