// Package scope finds a stable trigger and period in recent samples so a
// repeating waveform can be drawn without jitter.
package scope

import (
	"errors"
	"math"

	math32 "github.com/chewxy/math32"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

const (
	// silence is the peak amplitude below which no trigger is attempted.
	silence = 1e-4
	// hysteresis is the fraction of peak the signal must fall below before a
	// rising crossing is accepted.
	hysteresis = 0.1
	// minCorrelation is the normalized autocorrelation needed to trust a period.
	minCorrelation = 0.5
	// keyThreshold selects the first key maximum close enough to the highest one,
	// which avoids locking onto a multiple of the fundamental.
	keyThreshold = 0.9
	// minPeriod is the shortest period in samples that is searched.
	minPeriod = 2
)

// Config holds the oscilloscope parameters.
type Config struct {
	SampleRate     float64
	AmplitudeScale float64
	MinCycles      int
	MaxCycles      int
}

// DefaultConfig is the oscilloscope used by the visualizer.
var DefaultConfig = Config{
	SampleRate:     44100,
	AmplitudeScale: 0.5,
	MinCycles:      1,
	MaxCycles:      8,
}

// Validate checks that the config is usable.
func (c *Config) Validate() error {
	var errs []error
	if c.SampleRate <= 0 {
		errs = append(errs, errors.New("scope sample rate must be positive"))
	}
	if c.AmplitudeScale <= 0 || c.AmplitudeScale > 1 {
		errs = append(errs, errors.New("scope amplitude scale must be in (0, 1]"))
	}
	if c.MinCycles < 1 || c.MaxCycles < c.MinCycles {
		errs = append(errs, errors.New("scope cycle bounds must satisfy 1 <= min <= max"))
	}
	return errors.Join(errs...)
}

// Point is one vertex of a trace. X is time across the trace in [0, 1], Y is the
// scaled amplitude where ±1 is the full vertical range.
type Point struct {
	X, Y float32
}

// Trace is one frame of oscilloscope output.
type Trace struct {
	Points []Point
	// Cycles is the number of periods shown.
	Cycles int
	// Period is the detected period in samples, 0 when untriggered.
	Period float64
	// Frequency is the detected fundamental in Hz, 0 when untriggered.
	Frequency float64
	// Triggered reports whether a stable trigger was found.
	Triggered bool
	// Trigger is the fractional sample index of the trigger point in the input.
	Trigger float64
}

// Analyzer turns sample windows into traces. It keeps no state between frames.
type Analyzer struct {
	Config
}

// NewAnalyzer creates an oscilloscope analyzer.
func NewAnalyzer(cfg Config) (*Analyzer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Analyzer{Config: cfg}, nil
}

// Analyze produces a trace from the window. It never fails: silence, noise or too
// little data fall back to the raw window at the minimum cycle count.
func (a *Analyzer) Analyze(window []float64) Trace {
	if len(window) < 2 {
		return a.untriggered(window)
	}

	mean := stat.Mean(window, nil)
	x := make([]float64, len(window))
	copy(x, window)
	floats.AddConst(-mean, x)

	peak := math.Max(floats.Max(x), -floats.Min(x))
	if peak < silence {
		return a.untriggered(window)
	}

	period, ok := estimatePeriod(x)
	if !ok {
		return a.untriggered(window)
	}

	trig, ok := findTrigger(x, peak*hysteresis, period)
	if !ok {
		return a.untriggered(window)
	}

	avail := float64(len(x)-1) - trig
	cycles := int(avail / period)
	if cycles > a.MaxCycles {
		cycles = a.MaxCycles
	}
	if cycles < a.MinCycles {
		cycles = a.MinCycles
	}
	span := float64(cycles) * period
	if span > avail {
		span = avail
	}

	return Trace{
		Points:    a.resample(window, trig, span),
		Cycles:    cycles,
		Period:    period,
		Frequency: a.SampleRate / period,
		Triggered: true,
		Trigger:   trig,
	}
}

func (a *Analyzer) untriggered(window []float64) Trace {
	pts := make([]Point, len(window))
	den := float32(len(window) - 1)
	if den < 1 {
		den = 1
	}
	for i, v := range window {
		pts[i] = Point{X: float32(i) / den, Y: a.scale(v)}
	}
	return Trace{Points: pts, Cycles: a.MinCycles}
}

// resample emits one point per input sample across [trig, trig+span], with the
// first point interpolated exactly at the trigger so sub-sample phase is kept.
func (a *Analyzer) resample(window []float64, trig, span float64) []Point {
	start := int(math.Ceil(trig))
	end := int(math.Floor(trig + span))
	pts := make([]Point, 0, end-start+2)

	pts = append(pts, Point{X: 0, Y: a.scale(interp(window, trig))})
	for i := start; i <= end && i < len(window); i++ {
		if float64(i) == trig {
			continue
		}
		pts = append(pts, Point{
			X: float32((float64(i) - trig) / span),
			Y: a.scale(window[i]),
		})
	}
	return pts
}

func (a *Analyzer) scale(v float64) float32 {
	y := float32(v) * float32(a.AmplitudeScale)
	if math32.IsNaN(y) {
		return 0
	}
	return math32.Max(-1, math32.Min(1, y))
}

func interp(x []float64, pos float64) float64 {
	i := int(pos)
	if i >= len(x)-1 {
		return x[len(x)-1]
	}
	frac := pos - float64(i)
	return x[i] + frac*(x[i+1]-x[i])
}

// estimatePeriod uses the normalized square difference function
//
//	nsdf(τ) = 2 Σ x[i]x[i+τ] / Σ (x[i]² + x[i+τ]²)
//
// which is exactly 1 at the period of a periodic signal. The period is the first
// key maximum (the highest point of each positive region after the first
// negative one) reaching keyThreshold of the highest key maximum. The search
// covers up to half the window so at least two periods are observed.
func estimatePeriod(x []float64) (float64, bool) {
	n := len(x)
	maxLag := n / 2
	if maxLag <= minPeriod {
		return 0, false
	}

	sq := make([]float64, n)
	floats.MulTo(sq, x, x)
	cs := make([]float64, n+1)
	floats.CumSum(cs[1:], sq)

	r := make([]float64, maxLag+1)
	for lag := 0; lag <= maxLag; lag++ {
		m := cs[n-lag] + cs[n] - cs[lag]
		if m > 0 {
			r[lag] = 2 * floats.Dot(x[:n-lag], x[lag:]) / m
		}
	}

	lag := 1
	for lag <= maxLag && r[lag] > 0 {
		lag++
	}

	var keys []int
	best := -1
	for ; lag <= maxLag; lag++ {
		if r[lag] > 0 {
			if best < 0 || r[lag] > r[best] {
				best = lag
			}
			continue
		}
		if best >= 0 {
			keys = append(keys, best)
			best = -1
		}
	}
	// a region still rising at maxLag has its true peak out of view
	if best >= 0 && best < maxLag {
		keys = append(keys, best)
	}
	if len(keys) == 0 {
		return 0, false
	}

	highest := 0.0
	for _, k := range keys {
		highest = math.Max(highest, r[k])
	}
	pick := -1
	for _, k := range keys {
		if k >= minPeriod && r[k] >= keyThreshold*highest {
			pick = k
			break
		}
	}
	if pick < 0 || r[pick] < minCorrelation {
		return 0, false
	}

	// parabolic refinement around the peak
	p := float64(pick)
	if pick < maxLag {
		y0, y1, y2 := r[pick-1], r[pick], r[pick+1]
		if d := y0 - 2*y1 + y2; d != 0 {
			off := 0.5 * (y0 - y2) / d
			if math.Abs(off) < 1 {
				p += off
			}
		}
	}
	return p, true
}

// findTrigger returns the first rising crossing of zero, after the signal has been
// below -hyst, that leaves at least one period of samples after it.
func findTrigger(x []float64, hyst, period float64) (float64, bool) {
	armed := false
	limit := float64(len(x)-1) - period
	for i := 1; i < len(x); i++ {
		if float64(i-1) > limit {
			break
		}
		if x[i-1] < -hyst {
			armed = true
		}
		if armed && x[i-1] < 0 && x[i] >= 0 {
			frac := -x[i-1] / (x[i] - x[i-1])
			return float64(i-1) + frac, true
		}
	}
	return 0, false
}
