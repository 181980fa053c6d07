package audio

import (
	"errors"
	"fmt"

	"github.com/petems/audioviz/internal/config"
)

// ErrDeviceNotFound is returned by Open when the requested input is not present
var ErrDeviceNotFound = errors.New("audio device not found")

// Capture defines the interface for audio capture
type Capture interface {
	// ListDevices returns the input endpoints the backend can see.
	ListDevices() ([]AudioDevice, error)
	// Open starts a mono stream from deviceID ("" = platform default). sink is
	// called from the backend's audio thread with each block of samples.
	Open(deviceID string, sink func(samples []float32)) (Stream, error)
	// Close releases the backend itself. Streams must be stopped first.
	Close() error
}

// Stream is a live input stream. Its tracks run until Stop.
type Stream interface {
	Stop() error
	Active() bool
}

// AudioDevice represents an audio input device
type AudioDevice struct {
	ID      string
	Name    string
	Default bool
}

// New creates the capture backend named in cfg
func New(cfg config.AudioConfig) (Capture, error) {
	switch cfg.Backend {
	case config.BackendPortAudio, "":
		return newPortAudio(cfg)
	case config.BackendMalgo:
		return newMalgo(cfg)
	default:
		return nil, fmt.Errorf("unknown audio backend %q", cfg.Backend)
	}
}

// downmixInterleaved averages interleaved frames down to a new mono slice
func downmixInterleaved(input []float32, channels, frames int) []float32 {
	out := make([]float32, frames)
	if channels <= 1 {
		copy(out, input)
		return out
	}

	for f := 0; f < frames; f++ {
		var sum float32
		base := f * channels
		for c := 0; c < channels; c++ {
			sum += input[base+c]
		}
		out[f] = sum / float32(channels)
	}
	return out
}
