package audio

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/gordonklaus/portaudio"
)

// PortAudioSource captures from a portaudio input device.
type PortAudioSource struct {
	cfg Config

	mu      sync.Mutex
	stream  *portaudio.Stream
	in      []float32
	out     []byte
	started bool
	closed  bool

	overflows int
}

// NewPortAudioSource initializes portaudio and opens an input stream on the
// configured device. The returned source must be closed to release portaudio.
func NewPortAudioSource(cfg *Config) (*PortAudioSource, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("initializing portaudio: %w", err)
	}

	dev, err := findDevice(cfg.Device)
	if err != nil {
		portaudio.Terminate()
		return nil, err
	}
	if dev.MaxInputChannels < cfg.Channels {
		portaudio.Terminate()
		return nil, fmt.Errorf("device %q has %d input channels, need %d",
			dev.Name, dev.MaxInputChannels, cfg.Channels)
	}

	latency := time.Duration(float64(cfg.Buffer.TargetLength) / cfg.SampleRate * float64(time.Second))
	if latency < dev.DefaultLowInputLatency {
		latency = dev.DefaultLowInputLatency
	}

	s := &PortAudioSource{
		cfg: *cfg,
		in:  make([]float32, cfg.Buffer.FragmentSize*cfg.Channels),
	}
	stream, err := portaudio.OpenStream(portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   dev,
			Channels: cfg.Channels,
			Latency:  latency,
		},
		SampleRate:      cfg.SampleRate,
		FramesPerBuffer: cfg.Buffer.FragmentSize,
	}, s.in)
	if err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("opening stream on %q: %w", dev.Name, err)
	}
	s.stream = stream

	glog.Infof("opened capture device %q: %d ch @ %.0f Hz, fragment %d frames, latency %v",
		dev.Name, cfg.Channels, cfg.SampleRate, cfg.Buffer.FragmentSize, latency)
	return s, nil
}

// Start begins capture.
func (s *PortAudioSource) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSourceClosed
	}
	if s.started {
		return nil
	}
	if err := s.stream.Start(); err != nil {
		return fmt.Errorf("starting stream: %w", err)
	}
	s.started = true
	return nil
}

// RequestFragment reads whole device buffers until at least the clamped hint
// is covered.
func (s *PortAudioSource) RequestFragment(sizeHint int) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrSourceClosed
	}
	if !s.started {
		return nil, fmt.Errorf("reading from stream: not started")
	}

	frames := s.cfg.Buffer.Clamp(sizeHint)
	blocks := (frames + s.cfg.Buffer.FragmentSize - 1) / s.cfg.Buffer.FragmentSize

	s.out = s.out[:0]
	for i := 0; i < blocks; i++ {
		if err := s.stream.Read(); err != nil {
			if err == portaudio.InputOverflowed {
				s.overflows++
				if glog.V(1) {
					glog.Infof("portaudio input overflowed (%d total)", s.overflows)
				}
			} else {
				return nil, fmt.Errorf("reading from stream: %w", err)
			}
		}
		s.out = append(s.out, interleaveFloat32(nil, s.in, s.cfg.Format)...)
	}

	ret := make([]byte, len(s.out))
	copy(ret, s.out)
	return ret, nil
}

// Close stops the stream and terminates portaudio.
func (s *PortAudioSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	var firstErr error
	if s.started {
		if err := s.stream.Stop(); err != nil {
			firstErr = fmt.Errorf("stopping stream: %w", err)
		}
	}
	if err := s.stream.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("closing stream: %w", err)
	}
	if err := portaudio.Terminate(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

func (s *PortAudioSource) Format() Format      { return s.cfg.Format }
func (s *PortAudioSource) Channels() int       { return s.cfg.Channels }
func (s *PortAudioSource) SampleRate() float64 { return s.cfg.SampleRate }

// findDevice picks an input device by exact name, then by substring, then the
// host default.
func findDevice(name string) (*portaudio.DeviceInfo, error) {
	if name == "" {
		dev, err := portaudio.DefaultInputDevice()
		if err != nil {
			return nil, fmt.Errorf("%w: default input: %v", ErrNoDevice, err)
		}
		return dev, nil
	}

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("listing devices: %w", err)
	}
	var partial *portaudio.DeviceInfo
	for _, dev := range devices {
		if dev.MaxInputChannels == 0 {
			continue
		}
		if dev.Name == name {
			return dev, nil
		}
		if partial == nil && strings.Contains(dev.Name, name) {
			partial = dev
		}
	}
	if partial != nil {
		glog.Warningf("no exact match for device %q, using %q", name, partial.Name)
		return partial, nil
	}
	dev, err := portaudio.DefaultInputDevice()
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrNoDevice, name)
	}
	glog.Warningf("device %q not found, using default input %q", name, dev.Name)
	return dev, nil
}
