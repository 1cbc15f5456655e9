package fft

import (
	"errors"
	"math"
	"math/cmplx"
	"time"

	"github.com/mjibson/go-dsp/fft"
	"github.com/mjibson/go-dsp/window"
	"gonum.org/v1/gonum/floats"

	"github.com/ajshout/pulse-visualizer/audio/util"
)

// slopeReference is the frequency at which slope correction is 0 dB.
const slopeReference = 1000.0

// maxStep bounds the elapsed time used for one smoothing step.
const maxStep = time.Second

// Config holds the spectrum analysis parameters.
type Config struct {
	SampleRate float64
	// Size is the FFT length; it must be a power of 2.
	Size int
	// Smoothing is the weight given to the previous value in the exponential filter.
	Smoothing float64
	MinDB     float64
	MaxDB     float64
	MinFreq   float64
	MaxFreq   float64
	// Slope is the tilt correction in dB per octave relative to 1 kHz.
	Slope float64
	// RiseSpeed and FallSpeed limit how fast a bin may move, in dB per second.
	RiseSpeed float64
	FallSpeed float64
	// FrameRate is the nominal frame rate used when no elapsed time is known.
	FrameRate float64
}

// DefaultConfig is the analysis used by the visualizer.
var DefaultConfig = Config{
	SampleRate: 44100,
	Size:       4096,
	Smoothing:  0.2,
	MinDB:      -60,
	MaxDB:      10,
	MinFreq:    10,
	MaxFreq:    20000,
	Slope:      4.5,
	RiseSpeed:  500,
	FallSpeed:  50,
	FrameRate:  60,
}

// Validate checks that the config is usable.
func (c *Config) Validate() error {
	var errs []error
	if c.Size < 2 || c.Size&(c.Size-1) != 0 {
		errs = append(errs, errors.New("fft size must be a power of 2"))
	}
	if c.SampleRate <= 0 {
		errs = append(errs, errors.New("fft sample rate must be positive"))
	}
	if c.MinDB >= c.MaxDB {
		errs = append(errs, errors.New("fft min dB must be below max dB"))
	}
	if c.MinFreq <= 0 || c.MinFreq >= c.MaxFreq {
		errs = append(errs, errors.New("fft frequency range must satisfy 0 < min < max"))
	}
	if c.Smoothing < 0 || c.Smoothing >= 1 {
		errs = append(errs, errors.New("fft smoothing must be in [0, 1)"))
	}
	if c.RiseSpeed <= 0 || c.FallSpeed <= 0 {
		errs = append(errs, errors.New("fft rise and fall speeds must be positive"))
	}
	if c.RiseSpeed <= c.FallSpeed {
		errs = append(errs, errors.New("fft rise speed must exceed fall speed"))
	}
	return errors.Join(errs...)
}

// Spectrum is one frame of smoothed magnitudes restricted to the display range.
// Frequencies and Positions are shared between frames and must not be modified.
type Spectrum struct {
	// Frequencies is the centre frequency of each bin in Hz.
	Frequencies []float64
	// Magnitudes is the smoothed level of each bin in dB.
	Magnitudes []float64
	// Positions is where each bin falls on a logarithmic [0, 1] axis.
	Positions []float64
}

// Len is the number of bins.
func (s Spectrum) Len() int { return len(s.Magnitudes) }

// Peak returns the frequency and level of the loudest bin.
func (s Spectrum) Peak() (freq, db float64) {
	if len(s.Magnitudes) == 0 {
		return 0, math.Inf(-1)
	}
	i := floats.MaxIdx(s.Magnitudes)
	return s.Frequencies[i], s.Magnitudes[i]
}

// SpectrumAnalyzer turns blocks of samples into smoothed dB spectra. It owns its
// per-bin history and is not safe for concurrent use.
type SpectrumAnalyzer struct {
	Config

	window  []float64
	norm    float64
	buf     []float64
	history []float64
	slope   []float64

	first, last int
	freqs       []float64
	positions   []float64
}

// NewSpectrumAnalyzer creates an analyzer with its history at the floor.
func NewSpectrumAnalyzer(cfg Config) (*SpectrumAnalyzer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.FrameRate <= 0 {
		cfg.FrameRate = DefaultConfig.FrameRate
	}

	w := window.Hann(cfg.Size)
	half := cfg.Size / 2
	binHz := cfg.SampleRate / float64(cfg.Size)

	s := &SpectrumAnalyzer{
		Config:  cfg,
		window:  w,
		norm:    2 / floats.Sum(w),
		buf:     make([]float64, cfg.Size),
		history: make([]float64, half),
		slope:   make([]float64, half),
	}
	for k := range s.history {
		s.history[k] = cfg.MinDB
		if k > 0 {
			s.slope[k] = cfg.Slope * math.Log2(float64(k)*binHz/slopeReference)
		}
	}

	s.first = int(math.Ceil(cfg.MinFreq / binHz))
	if s.first < 1 {
		s.first = 1
	}
	s.last = int(math.Floor(cfg.MaxFreq / binHz))
	if s.last > half-1 {
		s.last = half - 1
	}
	axis := util.NewAxis(util.LogScale2, cfg.MinFreq, cfg.MaxFreq)
	for k := s.first; k <= s.last; k++ {
		f := s.BinFrequency(k)
		s.freqs = append(s.freqs, f)
		s.positions = append(s.positions, axis.Position(f))
	}
	return s, nil
}

// BinFrequency returns the frequency of FFT bin k.
func (s *SpectrumAnalyzer) BinFrequency(k int) float64 {
	return float64(k) * s.SampleRate / float64(s.Size)
}

// Process analyzes the most recent Size samples, zero padding at the front when
// fewer are available, and advances the smoothing by dt.
func (s *SpectrumAnalyzer) Process(samples []float64, dt time.Duration) Spectrum {
	if len(samples) > s.Size {
		samples = samples[len(samples)-s.Size:]
	}
	pad := s.Size - len(samples)
	for i := 0; i < pad; i++ {
		s.buf[i] = 0
	}
	copy(s.buf[pad:], samples)
	floats.Mul(s.buf, s.window)

	X := fft.FFTReal(s.buf)

	step := s.step(dt)
	rise := s.RiseSpeed * step
	fall := s.FallSpeed * step
	for k := range s.history {
		target := s.MinDB
		if k > 0 {
			target = s.level(cmplx.Abs(X[k])*s.norm) + s.slope[k]
		}
		target = s.clamp(target)

		prev := s.history[k]
		delta := (1 - s.Smoothing) * (target - prev)
		if delta > rise {
			delta = rise
		} else if delta < -fall {
			delta = -fall
		}
		s.history[k] = s.clamp(prev + delta)
	}

	mags := make([]float64, s.last-s.first+1)
	copy(mags, s.history[s.first:s.last+1])
	return Spectrum{
		Frequencies: s.freqs,
		Magnitudes:  mags,
		Positions:   s.positions,
	}
}

func (s *SpectrumAnalyzer) step(dt time.Duration) float64 {
	if dt <= 0 {
		return 1 / s.FrameRate
	}
	if dt > maxStep {
		dt = maxStep
	}
	return dt.Seconds()
}

// level is -Inf for silent bins so the slope cannot lift them off the floor.
func (s *SpectrumAnalyzer) level(amp float64) float64 {
	if amp <= 0 || math.IsNaN(amp) {
		return math.Inf(-1)
	}
	return 20 * math.Log10(amp)
}

func (s *SpectrumAnalyzer) clamp(db float64) float64 {
	if math.IsNaN(db) || db < s.MinDB {
		return s.MinDB
	}
	if db > s.MaxDB {
		return s.MaxDB
	}
	return db
}
