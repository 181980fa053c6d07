package capture

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/petems/audioviz/internal/analyser"
	"github.com/petems/audioviz/internal/audio"
	"github.com/rs/zerolog"
)

type mockStream struct {
	device string
	sink   func([]float32)
	active atomic.Bool
	stops  atomic.Int32
}

func (s *mockStream) Stop() error {
	s.stops.Add(1)
	s.active.Store(false)
	return nil
}

func (s *mockStream) Active() bool { return s.active.Load() }

type mockCapture struct {
	mu      sync.Mutex
	devices []audio.AudioDevice
	listErr error
	openErr map[string]error
	block   map[string]chan struct{}
	entered chan string
	streams []*mockStream
	closed  bool
}

func (m *mockCapture) ListDevices() ([]audio.AudioDevice, error) {
	return m.devices, m.listErr
}

func (m *mockCapture) Open(deviceID string, sink func([]float32)) (audio.Stream, error) {
	m.mu.Lock()
	gate := m.block[deviceID]
	err := m.openErr[deviceID]
	m.mu.Unlock()

	if m.entered != nil {
		m.entered <- deviceID
	}
	if gate != nil {
		<-gate
	}
	if err != nil {
		return nil, err
	}

	s := &mockStream{device: deviceID, sink: sink}
	s.active.Store(true)

	m.mu.Lock()
	m.streams = append(m.streams, s)
	m.mu.Unlock()
	return s, nil
}

func (m *mockCapture) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *mockCapture) activeStreams() []*mockStream {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*mockStream
	for _, s := range m.streams {
		if s.Active() {
			out = append(out, s)
		}
	}
	return out
}

func newTestManager(backend *mockCapture) *Manager {
	return NewManager(backend, analyser.Options{FFTSize: 2048, SmoothingTimeConstant: 0.8}, zerolog.Nop())
}

func TestOpenInstallsSession(t *testing.T) {
	backend := &mockCapture{}
	m := newTestManager(backend)

	if m.State() != Uninitialized {
		t.Fatalf("expected uninitialized, got %s", m.State())
	}

	s, err := m.Open(context.Background(), "")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if m.Active() != s {
		t.Error("expected session to be installed")
	}
	if m.State() != Active {
		t.Errorf("expected active, got %s", m.State())
	}
	if s.ID == "" {
		t.Error("expected a session id")
	}
	if s.FrequencyBinCount() != 1024 {
		t.Errorf("expected 1024 bins, got %d", s.FrequencyBinCount())
	}
}

func TestSessionReceivesSamples(t *testing.T) {
	backend := &mockCapture{}
	m := newTestManager(backend)

	s, err := m.Open(context.Background(), "")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	backend.streams[0].sink([]float32{0.5})

	buf := make([]byte, 1)
	s.GetByteTimeDomainData(buf)
	if buf[0] != 192 {
		t.Errorf("expected 192, got %d", buf[0])
	}
}

func TestSelectingDeviceReplacesSession(t *testing.T) {
	backend := &mockCapture{devices: []audio.AudioDevice{{ID: "A", Name: "Mic A"}}}
	m := newTestManager(backend)

	first, err := m.Open(context.Background(), "")
	if err != nil {
		t.Fatalf("Open default: %v", err)
	}

	devices := m.ListDevices()
	if len(devices) != 1 || devices[0].ID != "A" {
		t.Fatalf("unexpected devices %+v", devices)
	}

	second, err := m.Open(context.Background(), devices[0].ID)
	if err != nil {
		t.Fatalf("Open A: %v", err)
	}

	if first.Active() {
		t.Error("expected the default session to be stopped")
	}
	if !second.Active() || second.DeviceID != "A" {
		t.Errorf("expected active session on A, got %q active=%v", second.DeviceID, second.Active())
	}
	if backend.streams[1].device != "A" {
		t.Errorf("expected open constrained to A, got %q", backend.streams[1].device)
	}
	if n := len(backend.activeStreams()); n != 1 {
		t.Errorf("expected 1 active stream, got %d", n)
	}
}

func TestRapidSwitchesLeaveOneActiveStream(t *testing.T) {
	backend := &mockCapture{}
	m := newTestManager(backend)

	const n = 25
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := m.Open(context.Background(), fmt.Sprintf("dev-%d", i))
			if err != nil && !errors.Is(err, ErrSuperseded) {
				t.Errorf("Open: %v", err)
			}
		}(i)
	}
	wg.Wait()

	active := backend.activeStreams()
	if len(active) != 1 {
		t.Fatalf("expected exactly 1 active stream, got %d", len(active))
	}
	if s := m.Active(); s == nil || s.DeviceID != active[0].device {
		t.Errorf("installed session does not own the active stream")
	}
	for _, s := range backend.streams {
		if s != active[0] && s.stops.Load() != 1 {
			t.Errorf("stream %s stopped %d times, want 1", s.device, s.stops.Load())
		}
	}
}

func TestSupersededOpenIsDiscarded(t *testing.T) {
	gate := make(chan struct{})
	backend := &mockCapture{
		block:   map[string]chan struct{}{"slow": gate},
		entered: make(chan string, 2),
	}
	m := newTestManager(backend)

	type result struct {
		s   *Session
		err error
	}
	done := make(chan result, 1)
	go func() {
		s, err := m.Open(context.Background(), "slow")
		done <- result{s, err}
	}()
	<-backend.entered

	fast, err := m.Open(context.Background(), "fast")
	if err != nil {
		t.Fatalf("Open fast: %v", err)
	}
	<-backend.entered

	close(gate)
	res := <-done
	if !errors.Is(res.err, ErrSuperseded) {
		t.Fatalf("expected ErrSuperseded, got %v", res.err)
	}
	if res.s != nil {
		t.Error("expected no session from superseded open")
	}
	if m.Active() != fast {
		t.Error("expected fast session to remain installed")
	}

	for _, s := range backend.streams {
		if s.device == "slow" && s.Active() {
			t.Error("expected slow stream to be stopped")
		}
	}
}

func TestFailureOvertakenByNewerOpenIsSuperseded(t *testing.T) {
	gate := make(chan struct{})
	removed := errors.New("device removed")
	backend := &mockCapture{
		block:   map[string]chan struct{}{"slow": gate},
		openErr: map[string]error{"slow": removed},
		entered: make(chan string, 2),
	}
	m := newTestManager(backend)

	done := make(chan error, 1)
	go func() {
		_, err := m.Open(context.Background(), "slow")
		done <- err
	}()
	<-backend.entered

	fast, err := m.Open(context.Background(), "fast")
	if err != nil {
		t.Fatalf("Open fast: %v", err)
	}
	<-backend.entered

	close(gate)
	err = <-done
	if !errors.Is(err, ErrSuperseded) {
		t.Fatalf("expected ErrSuperseded, got %v", err)
	}
	if errors.Is(err, ErrCapture) {
		t.Error("expected stale failure not to be reported as a capture failure")
	}
	if !errors.Is(err, removed) {
		t.Error("expected the backend error to stay wrapped")
	}
	if m.Active() != fast || !fast.Active() {
		t.Error("expected fast session to remain installed and running")
	}
	if m.State() != Active {
		t.Errorf("expected active, got %s", m.State())
	}
}

func TestFailedOpenKeepsPriorSession(t *testing.T) {
	backend := &mockCapture{openErr: map[string]error{"gone": errors.New("device removed")}}
	m := newTestManager(backend)

	prior, err := m.Open(context.Background(), "")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	_, err = m.Open(context.Background(), "gone")
	if !errors.Is(err, ErrCapture) {
		t.Fatalf("expected ErrCapture, got %v", err)
	}
	if m.Active() != prior || !prior.Active() {
		t.Error("expected prior session to stay installed and running")
	}
	if m.State() != Active {
		t.Errorf("expected active, got %s", m.State())
	}
}

func TestFailedFirstOpenReturnsToUninitialized(t *testing.T) {
	denied := errors.New("permission denied")
	backend := &mockCapture{openErr: map[string]error{"": denied}}
	m := newTestManager(backend)

	_, err := m.Open(context.Background(), "")
	if !errors.Is(err, denied) || !errors.Is(err, ErrCapture) {
		t.Fatalf("expected wrapped permission error, got %v", err)
	}
	if m.State() != Uninitialized {
		t.Errorf("expected uninitialized, got %s", m.State())
	}
	if m.Active() != nil {
		t.Error("expected no session")
	}
}

func TestOpenWithCancelledContext(t *testing.T) {
	backend := &mockCapture{}
	m := newTestManager(backend)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := m.Open(ctx, ""); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(backend.streams) != 0 {
		t.Error("expected no stream to be opened")
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	backend := &mockCapture{}
	m := newTestManager(backend)

	if err := m.Close(nil); err != nil {
		t.Fatalf("Close(nil): %v", err)
	}

	s, err := m.Open(context.Background(), "")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := m.Close(s); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := m.Close(s); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Session.Close: %v", err)
	}

	if got := backend.streams[0].stops.Load(); got != 1 {
		t.Errorf("expected stream stopped once, got %d", got)
	}
	if m.State() != Closed {
		t.Errorf("expected closed, got %s", m.State())
	}
	if m.Active() != nil {
		t.Error("expected empty slot")
	}
}

func TestListDevicesFailureIsEmpty(t *testing.T) {
	backend := &mockCapture{listErr: errors.New("not allowed")}
	m := newTestManager(backend)

	if devices := m.ListDevices(); len(devices) != 0 {
		t.Errorf("expected no devices, got %+v", devices)
	}
}

func TestShutdown(t *testing.T) {
	backend := &mockCapture{}
	m := newTestManager(backend)

	s, err := m.Open(context.Background(), "")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := m.Shutdown(); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if s.Active() {
		t.Error("expected session stopped")
	}
	if !backend.closed {
		t.Error("expected backend closed")
	}
	if _, err := m.Open(context.Background(), ""); !errors.Is(err, ErrShutdown) {
		t.Errorf("expected ErrShutdown, got %v", err)
	}
	if err := m.Shutdown(); err != nil {
		t.Errorf("second Shutdown: %v", err)
	}
}
