// Package config holds the startup configuration of the visualizer. Values are
// fixed once the pipeline starts; there is no runtime reconfiguration.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	colorful "github.com/lucasb-eyer/go-colorful"
	"gopkg.in/yaml.v3"

	"github.com/ajshout/pulse-visualizer/audio"
	"github.com/ajshout/pulse-visualizer/audio/fft"
	"github.com/ajshout/pulse-visualizer/audio/frame"
	"github.com/ajshout/pulse-visualizer/audio/lissajous"
	"github.com/ajshout/pulse-visualizer/audio/scope"
)

// DefaultSource is the monitor captured when no device is configured.
const DefaultSource = "bluez_output.FC_A8_9A_33_89_81.1.monitor"

// Config is the root of the YAML configuration file.
type Config struct {
	Audio        Audio        `yaml:"audio"`
	Display      Display      `yaml:"display"`
	FFT          FFT          `yaml:"fft"`
	Lissajous    Lissajous    `yaml:"lissajous"`
	Oscilloscope Oscilloscope `yaml:"oscilloscope"`
	Theme        Theme        `yaml:"theme"`
}

// Audio configures capture.
type Audio struct {
	SampleRate int    `yaml:"sample_rate"`
	Channels   int    `yaml:"channels"`
	Format     string `yaml:"format"`
	// BufferSize is the capture ring capacity in bytes.
	BufferSize int              `yaml:"buffer_size"`
	Source     string           `yaml:"source"`
	Buffer     audio.BufferAttr `yaml:"buffer"`
}

// Display configures the frame loop.
type Display struct {
	Samples   int     `yaml:"samples"`
	FrameRate float64 `yaml:"frame_rate"`
	// ScopeChannel is the analysed channel; -1 mixes all channels.
	ScopeChannel int `yaml:"scope_channel"`
}

type FFT struct {
	Size      int     `yaml:"size"`
	Smoothing float64 `yaml:"smoothing"`
	MinDB     float64 `yaml:"min_db"`
	MaxDB     float64 `yaml:"max_db"`
	MinFreq   float64 `yaml:"min_freq"`
	MaxFreq   float64 `yaml:"max_freq"`
	Slope     float64 `yaml:"slope"`
	RiseSpeed float64 `yaml:"rise_speed"`
	FallSpeed float64 `yaml:"fall_speed"`
}

type Lissajous struct {
	Points   int `yaml:"points"`
	Segments int `yaml:"segments"`
}

type Oscilloscope struct {
	AmplitudeScale float64 `yaml:"amplitude_scale"`
	MinCycles      int     `yaml:"min_cycles"`
	MaxCycles      int     `yaml:"max_cycles"`
}

// Theme holds the colours used by renderers as hex strings.
type Theme struct {
	Background string `yaml:"background"`
	Grid       string `yaml:"grid"`
	Visualizer string `yaml:"visualizer"`
	Text       string `yaml:"text"`
}

// Default returns the built in configuration.
func Default() *Config {
	return &Config{
		Audio: Audio{
			SampleRate: 44100,
			Channels:   2,
			Format:     audio.FormatFloat32LE.String(),
			BufferSize: 128 * 1024,
			Source:     DefaultSource,
			Buffer:     audio.DefaultBufferAttr,
		},
		Display: Display{
			Samples:      2000,
			FrameRate:    60,
			ScopeChannel: frame.MixChannels,
		},
		FFT: FFT{
			Size:      fft.DefaultConfig.Size,
			Smoothing: fft.DefaultConfig.Smoothing,
			MinDB:     fft.DefaultConfig.MinDB,
			MaxDB:     fft.DefaultConfig.MaxDB,
			MinFreq:   fft.DefaultConfig.MinFreq,
			MaxFreq:   fft.DefaultConfig.MaxFreq,
			Slope:     fft.DefaultConfig.Slope,
			RiseSpeed: fft.DefaultConfig.RiseSpeed,
			FallSpeed: fft.DefaultConfig.FallSpeed,
		},
		Lissajous: Lissajous{
			Points:   lissajous.DefaultConfig.Points,
			Segments: lissajous.DefaultConfig.Segments,
		},
		Oscilloscope: Oscilloscope{
			AmplitudeScale: scope.DefaultConfig.AmplitudeScale,
			MinCycles:      scope.DefaultConfig.MinCycles,
			MaxCycles:      scope.DefaultConfig.MaxCycles,
		},
		// Catppuccin Mocha
		Theme: Theme{
			Background: "#181825",
			Grid:       "#313244",
			Visualizer: "#cba6f7",
			Text:       "#cdd6f4",
		},
	}
}

// Load reads the YAML file at path over the defaults and validates the result.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes YAML from r over the defaults. Unknown keys are errors.
// An empty document yields the defaults.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate returns every problem found, joined.
func (c *Config) Validate() error {
	var errs []error

	if _, err := audio.ParseFormat(c.Audio.Format); err != nil {
		errs = append(errs, fmt.Errorf("audio.format: %w", err))
	}
	if c.Audio.BufferSize <= 0 {
		errs = append(errs, fmt.Errorf("audio.buffer_size %d must be positive", c.Audio.BufferSize))
	} else if bpf := c.format().BytesPerFrame(c.Audio.Channels); bpf > 0 && c.Audio.BufferSize%bpf != 0 {
		// the ring must wrap on a frame boundary or consumed reads lose channel alignment
		errs = append(errs, fmt.Errorf("audio.buffer_size %d must be a multiple of the %d byte frame", c.Audio.BufferSize, bpf))
	}
	if err := c.Capture().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("audio: %w", err))
	}
	if c.Display.FrameRate <= 0 {
		errs = append(errs, fmt.Errorf("display.frame_rate %v must be positive", c.Display.FrameRate))
	}
	fc := c.Frame()
	if err := fc.Validate(); err != nil {
		errs = append(errs, err)
	}
	for name, hex := range map[string]string{
		"background": c.Theme.Background,
		"grid":       c.Theme.Grid,
		"visualizer": c.Theme.Visualizer,
		"text":       c.Theme.Text,
	} {
		if _, err := colorful.Hex(hex); err != nil {
			errs = append(errs, fmt.Errorf("theme.%s %q is not a hex colour", name, hex))
		}
	}
	return errors.Join(errs...)
}

func (c *Config) format() audio.Format {
	f, err := audio.ParseFormat(c.Audio.Format)
	if err != nil {
		return audio.FormatFloat32LE
	}
	return f
}

// Capture returns the source configuration.
func (c *Config) Capture() *audio.Config {
	return &audio.Config{
		SampleRate: float64(c.Audio.SampleRate),
		Channels:   c.Audio.Channels,
		Device:     c.Audio.Source,
		Format:     c.format(),
		Buffer:     c.Audio.Buffer,
	}
}

// Frame returns the analysis configuration.
func (c *Config) Frame() frame.Config {
	sr := float64(c.Audio.SampleRate)
	return frame.Config{
		Channels:       c.Audio.Channels,
		Format:         c.format(),
		DisplaySamples: c.Display.Samples,
		ScopeChannel:   c.Display.ScopeChannel,
		Scope: scope.Config{
			SampleRate:     sr,
			AmplitudeScale: c.Oscilloscope.AmplitudeScale,
			MinCycles:      c.Oscilloscope.MinCycles,
			MaxCycles:      c.Oscilloscope.MaxCycles,
		},
		Lissajous: lissajous.Config{
			Points:   c.Lissajous.Points,
			Segments: c.Lissajous.Segments,
		},
		Spectrum: fft.Config{
			SampleRate: sr,
			Size:       c.FFT.Size,
			Smoothing:  c.FFT.Smoothing,
			MinDB:      c.FFT.MinDB,
			MaxDB:      c.FFT.MaxDB,
			MinFreq:    c.FFT.MinFreq,
			MaxFreq:    c.FFT.MaxFreq,
			Slope:      c.FFT.Slope,
			RiseSpeed:  c.FFT.RiseSpeed,
			FallSpeed:  c.FFT.FallSpeed,
			FrameRate:  c.Display.FrameRate,
		},
	}
}

// Colors parses the theme. Call Validate first; unparsable entries are black.
func (c *Config) Colors() (background, grid, visualizer, text colorful.Color) {
	parse := func(s string) colorful.Color {
		col, _ := colorful.Hex(s)
		return col
	}
	return parse(c.Theme.Background), parse(c.Theme.Grid), parse(c.Theme.Visualizer), parse(c.Theme.Text)
}
