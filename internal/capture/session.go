package capture

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/petems/audioviz/internal/analyser"
	"github.com/petems/audioviz/internal/audio"
)

// Session owns one open input stream and the analyser it feeds.
type Session struct {
	ID       string
	DeviceID string
	OpenedAt time.Time

	stream   audio.Stream
	analyser *analyser.Analyser

	once sync.Once
	err  error
}

func newSession(deviceID string, a *analyser.Analyser) *Session {
	return &Session{
		ID:       uuid.NewString(),
		DeviceID: deviceID,
		OpenedAt: time.Now(),
		analyser: a,
	}
}

// Analyser exposes the live sample buffers for the render loop.
func (s *Session) Analyser() *analyser.Analyser {
	return s.analyser
}

// Active reports whether the stream is still delivering samples.
func (s *Session) Active() bool {
	return s != nil && s.stream != nil && s.stream.Active()
}

// Close stops all tracks and releases the analyser. Safe on nil and on
// sessions that are already closed.
func (s *Session) Close() error {
	if s == nil {
		return nil
	}
	s.once.Do(func() {
		if s.stream != nil {
			s.err = s.stream.Stop()
		}
		s.analyser.Reset()
	})
	return s.err
}

// FrequencyBinCount, GetByteFrequencyData and GetByteTimeDomainData let a
// Session stand in directly as the render loop's sample source.

func (s *Session) FrequencyBinCount() int { return s.analyser.FrequencyBinCount() }

func (s *Session) GetByteFrequencyData(dst []byte) { s.analyser.GetByteFrequencyData(dst) }

func (s *Session) GetByteTimeDomainData(dst []byte) { s.analyser.GetByteTimeDomainData(dst) }
