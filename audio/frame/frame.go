// Package frame assembles one visual frame per display tick from the most
// recent captured audio.
//
// Every frame takes a single snapshot of the capture ring, demultiplexes it once
// and hands slices of that same snapshot to the oscilloscope, Lissajous and
// spectrum analyzers, so all three views describe the same moment of audio.
package frame

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/ajshout/pulse-visualizer/audio"
	"github.com/ajshout/pulse-visualizer/audio/fft"
	"github.com/ajshout/pulse-visualizer/audio/lissajous"
	"github.com/ajshout/pulse-visualizer/audio/scope"
	"github.com/ajshout/pulse-visualizer/audio/util"
)

// MixChannels selects the average of all channels as analysis input.
const MixChannels = -1

// Config describes the captured stream and the analyzers run on it.
type Config struct {
	Channels int
	Format   audio.Format
	// DisplaySamples is the oscilloscope window length in frames.
	DisplaySamples int
	// ScopeChannel is the channel drawn by the oscilloscope and analysed by the
	// spectrum, or MixChannels.
	ScopeChannel int

	Scope     scope.Config
	Lissajous lissajous.Config
	Spectrum  fft.Config
}

// DefaultConfig matches the capture defaults of the visualizer.
var DefaultConfig = Config{
	Channels:       2,
	Format:         audio.FormatFloat32LE,
	DisplaySamples: 2000,
	ScopeChannel:   MixChannels,
	Scope:          scope.DefaultConfig,
	Lissajous:      lissajous.DefaultConfig,
	Spectrum:       fft.DefaultConfig,
}

// Validate checks the config and every analyzer config.
func (c *Config) Validate() error {
	var errs []error
	if c.Channels <= 0 {
		errs = append(errs, errors.New("frame channel count must be positive"))
	}
	if c.DisplaySamples < 2 {
		errs = append(errs, errors.New("display samples must be at least 2"))
	}
	if c.ScopeChannel != MixChannels && (c.ScopeChannel < 0 || c.ScopeChannel >= c.Channels) {
		errs = append(errs, errors.New("scope channel out of range"))
	}
	errs = append(errs, c.Scope.Validate(), c.Lissajous.Validate(), c.Spectrum.Validate())
	return errors.Join(errs...)
}

// Snapshot is one assembled frame. It is not modified after Assemble returns and
// may be shared between goroutines.
type Snapshot struct {
	Seq       uint64
	Time      time.Time
	Scope     scope.Trace
	Lissajous lissajous.Curve
	Spectrum  fft.Spectrum
}

// Renderer consumes frames. Render must not keep a reference to mutate.
type Renderer interface {
	Render(*Snapshot)
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(*Snapshot)

func (f RendererFunc) Render(s *Snapshot) { f(s) }

// Stats summarises the frame loop for diagnostics.
type Stats struct {
	Frames         uint64  `json:"frames"`
	CapturedBytes  uint64  `json:"captured_bytes"`
	DroppedBytes   uint64  `json:"dropped_bytes"`
	PeakFrequency  float64 `json:"peak_frequency"`
	PeakDB         float64 `json:"peak_db"`
	ScopeFrequency float64 `json:"scope_frequency"`
	ScopeCycles    int     `json:"scope_cycles"`
	Triggered      bool    `json:"triggered"`
}

// Assembler owns the analyzers and reads from a capture ring.
type Assembler struct {
	cfg    Config
	ring   *util.RingBuffer
	window int // frames read per snapshot

	scope    *scope.Analyzer
	liss     *lissajous.Builder
	spectrum *fft.SpectrumAnalyzer

	mu    sync.Mutex
	seq   uint64
	last  time.Time
	stats Stats
}

// NewAssembler validates cfg and builds the analyzers.
func NewAssembler(ring *util.RingBuffer, cfg Config) (*Assembler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	sc, err := scope.NewAnalyzer(cfg.Scope)
	if err != nil {
		return nil, err
	}
	lb, err := lissajous.NewBuilder(cfg.Lissajous)
	if err != nil {
		return nil, err
	}
	sa, err := fft.NewSpectrumAnalyzer(cfg.Spectrum)
	if err != nil {
		return nil, err
	}

	window := max(cfg.Spectrum.Size, cfg.DisplaySamples, cfg.Lissajous.Points)
	if bytes := window * cfg.Format.BytesPerFrame(cfg.Channels); bytes > ring.Cap() {
		glog.Warningf("ring buffer of %d bytes holds less than the %d byte analysis window", ring.Cap(), bytes)
	}

	return &Assembler{
		cfg:      cfg,
		ring:     ring,
		window:   window,
		scope:    sc,
		liss:     lb,
		spectrum: sa,
	}, nil
}

// Assemble builds the frame for now. Missing or short audio produces empty or
// floor-level results; it never fails.
func (a *Assembler) Assemble(now time.Time) *Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	bpf := a.cfg.Format.BytesPerFrame(a.cfg.Channels)
	raw := a.ring.ReadLatest(a.window * bpf)
	// the newest byte ends a frame, so any partial frame is at the front
	raw = raw[len(raw)%bpf:]
	chans := audio.Demux(raw, a.cfg.Channels, a.cfg.Format)

	var input []float64
	if a.cfg.ScopeChannel == MixChannels {
		input = audio.Mix(chans)
	} else {
		input = chans[a.cfg.ScopeChannel]
	}

	var dt time.Duration
	if !a.last.IsZero() {
		dt = now.Sub(a.last)
	}
	a.last = now

	left, right := input, input
	if len(chans) >= 2 {
		left, right = chans[0], chans[1]
	}

	a.seq++
	snap := &Snapshot{
		Seq:       a.seq,
		Time:      now,
		Scope:     a.scope.Analyze(tail(input, a.cfg.DisplaySamples)),
		Lissajous: a.liss.Build(left, right),
		Spectrum:  a.spectrum.Process(tail(input, a.cfg.Spectrum.Size), dt),
	}

	a.stats.Frames = a.seq
	a.stats.CapturedBytes = a.ring.Written()
	a.stats.DroppedBytes = a.ring.Dropped()
	a.stats.PeakFrequency, a.stats.PeakDB = snap.Spectrum.Peak()
	a.stats.ScopeFrequency = snap.Scope.Frequency
	a.stats.ScopeCycles = snap.Scope.Cycles
	a.stats.Triggered = snap.Scope.Triggered

	if glog.V(2) {
		glog.Infof("frame %d: %d frames in, scope %.1f Hz x%d, peak %.1f Hz %.1f dB",
			a.seq, len(input), snap.Scope.Frequency, snap.Scope.Cycles,
			a.stats.PeakFrequency, a.stats.PeakDB)
	}
	return snap
}

// Stats returns the counters of the most recent frame.
func (a *Assembler) Stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stats
}

// Run assembles frames at frameRate and passes them to r until ctx is done.
func (a *Assembler) Run(ctx context.Context, r Renderer, frameRate float64) error {
	if frameRate <= 0 {
		return errors.New("frame rate must be positive")
	}
	t := time.NewTicker(time.Duration(float64(time.Second) / frameRate))
	defer t.Stop()

	glog.Infof("frame loop running at %v fps", frameRate)
	var (
		dropped  = a.ring.Dropped()
		lastWarn time.Time
	)
	for {
		select {
		case <-ctx.Done():
			glog.Infof("frame loop stopped after %d frames", a.Stats().Frames)
			return nil
		case now := <-t.C:
			r.Render(a.Assemble(now))

			if d := a.ring.Dropped(); d != dropped && now.Sub(lastWarn) >= time.Second {
				glog.Warningf("capture overflow: %d bytes overwritten before they were consumed", d-dropped)
				dropped, lastWarn = d, now
			}
		}
	}
}

func tail(x []float64, n int) []float64 {
	if len(x) > n {
		return x[len(x)-n:]
	}
	return x
}
