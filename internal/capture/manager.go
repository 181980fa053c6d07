// Package capture owns the single live capture session: it opens streams on
// request, installs the newest one and tears down whatever it replaces.
package capture

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/petems/audioviz/internal/analyser"
	"github.com/petems/audioviz/internal/audio"
	"github.com/rs/zerolog"
)

var (
	// ErrCapture wraps every failure to bring up an input stream.
	ErrCapture = errors.New("capture failed")
	// ErrSuperseded is returned by an Open that finished after a newer Open was issued.
	ErrSuperseded = errors.New("capture request superseded")
	// ErrShutdown is returned once the manager has been shut down.
	ErrShutdown = errors.New("capture manager shut down")
)

type State int

const (
	Uninitialized State = iota
	Opening
	Active
	Closing
	Closed
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Opening:
		return "opening"
	case Active:
		return "active"
	case Closing:
		return "closing"
	case Closed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Manager holds at most one installed Session.
type Manager struct {
	backend audio.Capture
	opts    analyser.Options
	log     zerolog.Logger

	mu       sync.Mutex
	seq      uint64
	active   *Session
	state    State
	shutdown bool
}

func NewManager(backend audio.Capture, opts analyser.Options, log zerolog.Logger) *Manager {
	return &Manager{
		backend: backend,
		opts:    opts,
		log:     log.With().Str("component", "capture").Logger(),
	}
}

// ListDevices never fails: enumeration errors are logged and yield an empty list.
func (m *Manager) ListDevices() []audio.AudioDevice {
	devices, err := m.backend.ListDevices()
	if err != nil {
		m.log.Warn().Err(err).Msg("Failed to enumerate audio inputs")
		return nil
	}
	return devices
}

// Open brings up a session on deviceID ("" = platform default). The new
// session is installed only if no newer Open was issued meanwhile; the
// session it replaces is closed right after. On failure the current session
// stays installed. Any outcome of a request overtaken by a newer one, success
// or failure, is reported as ErrSuperseded.
func (m *Manager) Open(ctx context.Context, deviceID string) (*Session, error) {
	m.mu.Lock()
	if m.shutdown {
		m.mu.Unlock()
		return nil, ErrShutdown
	}
	m.seq++
	seq := m.seq
	m.state = Opening
	m.mu.Unlock()

	log := m.log.With().Str("device", deviceID).Uint64("request", seq).Logger()
	log.Debug().Msg("Opening capture session")

	stream, a, err := m.openStream(ctx, deviceID)

	m.mu.Lock()
	if err != nil {
		stale := seq != m.seq || m.shutdown
		if !stale {
			m.state = m.restingStateLocked()
		}
		m.mu.Unlock()
		if stale {
			log.Debug().Err(err).Msg("Discarded failure of superseded capture request")
			return nil, fmt.Errorf("%w: device %q: %w", ErrSuperseded, deviceID, err)
		}
		log.Error().Err(err).Msg("Failed to open capture session")
		return nil, fmt.Errorf("%w: device %q: %w", ErrCapture, deviceID, err)
	}

	if seq != m.seq || m.shutdown {
		m.mu.Unlock()
		if err := stream.Stop(); err != nil {
			log.Warn().Err(err).Msg("Failed to stop superseded stream")
		}
		log.Debug().Msg("Discarded superseded capture session")
		return nil, ErrSuperseded
	}

	session := newSession(deviceID, a)
	session.stream = stream
	prev := m.active
	m.active = session
	if prev == nil {
		m.state = Active
	} else {
		m.state = Closing
	}
	m.mu.Unlock()

	if prev != nil {
		if err := prev.Close(); err != nil {
			log.Warn().Err(err).Str("session", prev.ID).Msg("Failed to close replaced session")
		}
		m.mu.Lock()
		if m.active == session && m.state == Closing {
			m.state = Active
		}
		m.mu.Unlock()
	}

	log.Info().Str("session", session.ID).Msg("Capture session active")
	return session, nil
}

func (m *Manager) openStream(ctx context.Context, deviceID string) (audio.Stream, *analyser.Analyser, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	a, err := analyser.New(m.opts)
	if err != nil {
		return nil, nil, err
	}

	stream, err := m.backend.Open(deviceID, a.Write)
	if err != nil {
		return nil, nil, err
	}
	return stream, a, nil
}

// Close stops s. If s is the installed session the slot is emptied. Nil and
// already-closed sessions are a no-op.
func (m *Manager) Close(s *Session) error {
	if s == nil {
		return nil
	}

	m.mu.Lock()
	installed := m.active == s
	if installed {
		m.active = nil
		m.state = Closing
	}
	m.mu.Unlock()

	err := s.Close()

	if installed {
		m.mu.Lock()
		if m.active == nil && m.state == Closing {
			m.state = Closed
		}
		m.mu.Unlock()
	}
	return err
}

// Shutdown closes the installed session and releases the backend. Opens
// still in flight are discarded when they complete.
func (m *Manager) Shutdown() error {
	m.mu.Lock()
	if m.shutdown {
		m.mu.Unlock()
		return nil
	}
	m.shutdown = true
	m.seq++
	s := m.active
	m.active = nil
	m.state = Closing
	m.mu.Unlock()

	err := s.Close()
	if berr := m.backend.Close(); berr != nil && err == nil {
		err = berr
	}

	m.mu.Lock()
	m.state = Closed
	m.mu.Unlock()
	return err
}

// Active returns the installed session, or nil.
func (m *Manager) Active() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Manager) restingStateLocked() State {
	if m.active != nil {
		return Active
	}
	return Uninitialized
}
