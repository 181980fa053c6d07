package audio

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"github.com/gen2brain/malgo"
	"github.com/petems/audioviz/internal/config"
)

// malgoCapture captures through miniaudio. Device ids are miniaudio's own
// opaque ids rendered as strings.
type malgoCapture struct {
	ctx        *malgo.AllocatedContext
	sampleRate int
	mu         sync.Mutex
}

func newMalgo(cfg config.AudioConfig) (Capture, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize malgo context: %w", err)
	}
	return &malgoCapture{ctx: ctx, sampleRate: cfg.SampleRate}, nil
}

func (m *malgoCapture) ListDevices() ([]AudioDevice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	infos, err := m.ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}

	result := make([]AudioDevice, 0, len(infos))
	for i := range infos {
		result = append(result, AudioDevice{
			ID:      infos[i].ID.String(),
			Name:    infos[i].Name(),
			Default: infos[i].IsDefault != 0,
		})
	}
	return result, nil
}

func (m *malgoCapture) Open(deviceID string, sink func([]float32)) (Stream, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatF32
	deviceConfig.Capture.Channels = 1
	deviceConfig.SampleRate = uint32(m.sampleRate)
	deviceConfig.Alsa.NoMMap = 1

	s := &malgoStream{}

	if deviceID != "" {
		infos, err := m.ctx.Devices(malgo.Capture)
		if err != nil {
			return nil, fmt.Errorf("failed to enumerate devices: %w", err)
		}
		found := false
		for i := range infos {
			if infos[i].ID.String() == deviceID {
				s.id = infos[i].ID
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, deviceID)
		}
		deviceConfig.Capture.DeviceID = s.id.Pointer()
	}

	onSamples := func(_, pInputSamples []byte, frameCount uint32) {
		samples := make([]float32, frameCount)
		for i := range samples {
			bits := binary.LittleEndian.Uint32(pInputSamples[i*4:])
			samples[i] = math.Float32frombits(bits)
		}
		sink(samples)
	}

	device, err := malgo.InitDevice(m.ctx.Context, deviceConfig, malgo.DeviceCallbacks{
		Data: onSamples,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize capture device: %w", err)
	}

	if err := device.Start(); err != nil {
		device.Uninit()
		return nil, fmt.Errorf("failed to start capture device: %w", err)
	}

	s.device = device
	s.active.Store(true)
	return s, nil
}

func (m *malgoCapture) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ctx == nil {
		return nil
	}
	err := m.ctx.Uninit()
	m.ctx.Free()
	m.ctx = nil
	if err != nil {
		return fmt.Errorf("failed to release malgo context: %w", err)
	}
	return nil
}

type malgoStream struct {
	device *malgo.Device
	id     malgo.DeviceID
	active atomic.Bool
	once   sync.Once
	err    error
}

func (s *malgoStream) Stop() error {
	s.once.Do(func() {
		s.active.Store(false)
		if err := s.device.Stop(); err != nil {
			s.err = fmt.Errorf("failed to stop capture device: %w", err)
		}
		s.device.Uninit()
	})
	return s.err
}

func (s *malgoStream) Active() bool {
	return s.active.Load()
}
