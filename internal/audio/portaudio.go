package audio

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gordonklaus/portaudio"
	"github.com/petems/audioviz/internal/config"
)

type portAudioCapture struct {
	sampleRate      int
	framesPerBuffer int
}

func newPortAudio(cfg config.AudioConfig) (Capture, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize PortAudio: %w", err)
	}
	return &portAudioCapture{
		sampleRate:      cfg.SampleRate,
		framesPerBuffer: cfg.FramesPerBuffer,
	}, nil
}

func (p *portAudioCapture) findDevice(deviceID string) (*portaudio.DeviceInfo, error) {
	if deviceID == "" {
		device, err := portaudio.DefaultInputDevice()
		if err != nil {
			return nil, fmt.Errorf("failed to get default input device: %w", err)
		}
		return device, nil
	}

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate devices: %w", err)
	}
	for _, d := range devices {
		if d.Name == deviceID && d.MaxInputChannels > 0 {
			return d, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, deviceID)
}

func (p *portAudioCapture) Open(deviceID string, sink func([]float32)) (Stream, error) {
	device, err := p.findDevice(deviceID)
	if err != nil {
		return nil, err
	}

	channels := device.MaxInputChannels
	if channels > 2 {
		channels = 2
	}

	callback := func(in []float32) {
		sink(downmixInterleaved(in, channels, len(in)/channels))
	}

	stream, err := portaudio.OpenStream(portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   device,
			Channels: channels,
			Latency:  device.DefaultLowInputLatency,
		},
		SampleRate:      float64(p.sampleRate),
		FramesPerBuffer: p.framesPerBuffer,
	}, callback)
	if err != nil {
		return nil, fmt.Errorf("failed to open audio stream on %q: %w", device.Name, err)
	}

	if err := stream.Start(); err != nil {
		stream.Close()
		return nil, fmt.Errorf("failed to start audio stream on %q: %w", device.Name, err)
	}

	s := &portAudioStream{stream: stream}
	s.active.Store(true)
	return s, nil
}

func (p *portAudioCapture) ListDevices() ([]AudioDevice, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}

	result := make([]AudioDevice, 0, len(devices))
	defaultDevice, _ := portaudio.DefaultInputDevice()

	for _, d := range devices {
		if d.MaxInputChannels > 0 {
			result = append(result, AudioDevice{
				ID:      d.Name,
				Name:    d.Name,
				Default: d == defaultDevice,
			})
		}
	}

	return result, nil
}

func (p *portAudioCapture) Close() error {
	if err := portaudio.Terminate(); err != nil {
		return fmt.Errorf("failed to terminate PortAudio: %w", err)
	}
	return nil
}

type portAudioStream struct {
	stream *portaudio.Stream
	active atomic.Bool
	once   sync.Once
	err    error
}

func (s *portAudioStream) Stop() error {
	s.once.Do(func() {
		s.active.Store(false)
		if err := s.stream.Stop(); err != nil {
			s.err = fmt.Errorf("failed to stop audio stream: %w", err)
		}
		if err := s.stream.Close(); err != nil && s.err == nil {
			s.err = fmt.Errorf("failed to close audio stream: %w", err)
		}
	})
	return s.err
}

func (s *portAudioStream) Active() bool {
	return s.active.Load()
}
