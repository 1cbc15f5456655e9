package audio

import (
	"fmt"
	"math"
	"math/rand"
	"sync"
)

// Tone is one sine component of a synthetic channel.
type Tone struct {
	Freq  float64
	Amp   float64
	Phase float64 // radians
}

// SynthSource generates deterministic test signals: one sum of tones per channel
// plus optional white noise. With Realtime set it paces fragments to the sample rate
// like a device would.
type SynthSource struct {
	cfg      Config
	tones    [][]Tone
	Noise    float64
	Realtime bool

	mu      sync.Mutex
	rng     *rand.Rand
	frame   int64
	pace    pacer
	done    chan struct{}
	running bool
	closed  bool
}

// NewSynthSource creates a generator. tones[c] is summed into channel c; missing
// channels are silent.
func NewSynthSource(cfg *Config, tones ...[]Tone) (*SynthSource, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &SynthSource{
		cfg:   *cfg,
		tones: tones,
		rng:   rand.New(rand.NewSource(1)),
		pace:  pacer{rate: cfg.SampleRate},
		done:  make(chan struct{}),
	}, nil
}

// Start begins generation.
func (s *SynthSource) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSourceClosed
	}
	if !s.running {
		s.running = true
		s.pace.start()
	}
	return nil
}

// RequestFragment renders the next clamped sizeHint frames.
func (s *SynthSource) RequestFragment(sizeHint int) ([]byte, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrSourceClosed
	}
	frames := s.cfg.Buffer.Clamp(sizeHint)
	if !s.running {
		s.mu.Unlock()
		return nil, fmt.Errorf("synth: not started")
	}
	chans := s.generate(frames)
	deadline := s.pace.advance(frames)
	s.mu.Unlock()

	if s.Realtime && wait(deadline, s.done) {
		return nil, ErrSourceClosed
	}
	return Interleave(chans, s.cfg.Format), nil
}

// generate renders the next n frames per channel and advances the clock.
func (s *SynthSource) generate(n int) [][]float64 {
	out := make([][]float64, s.cfg.Channels)
	for c := range out {
		out[c] = make([]float64, n)
		if c >= len(s.tones) {
			continue
		}
		for _, tone := range s.tones[c] {
			w := 2 * math.Pi * tone.Freq / s.cfg.SampleRate
			for i := range out[c] {
				out[c][i] += tone.Amp * math.Sin(w*float64(s.frame+int64(i))+tone.Phase)
			}
		}
	}
	if s.Noise > 0 {
		for c := range out {
			for i := range out[c] {
				out[c][i] += s.Noise * (2*s.rng.Float64() - 1)
			}
		}
	}
	s.frame += int64(n)
	return out
}

// Close stops generation and unblocks a pending RequestFragment.
func (s *SynthSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.done)
	}
	return nil
}

func (s *SynthSource) Format() Format      { return s.cfg.Format }
func (s *SynthSource) Channels() int       { return s.cfg.Channels }
func (s *SynthSource) SampleRate() float64 { return s.cfg.SampleRate }
