// Pulsevis captures audio and runs the oscilloscope, Lissajous and spectrum
// analysis at the display frame rate. Frames can be written to PNG files and the
// live state inspected over GraphQL.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang/glog"
	"golang.org/x/sync/errgroup"

	"github.com/ajshout/pulse-visualizer/audio"
	"github.com/ajshout/pulse-visualizer/audio/frame"
	"github.com/ajshout/pulse-visualizer/audio/util"
	"github.com/ajshout/pulse-visualizer/config"
	"github.com/ajshout/pulse-visualizer/gfx/plot"
	"github.com/ajshout/pulse-visualizer/inspect"
)

var (
	configPath  = flag.String("config", "", "path to a YAML config file")
	sourceKind  = flag.String("source", "portaudio", "capture source: portaudio, synth or wav")
	device      = flag.String("device", "", "capture device name, overrides the config")
	wavPath     = flag.String("wav", "", "WAV file played by -source=wav")
	loop        = flag.Bool("loop", false, "loop the WAV file")
	synthFreq   = flag.Float64("synth-freq", 440, "tone frequency of -source=synth")
	fps         = flag.Float64("fps", 0, "frame rate, overrides the config")
	plotDir     = flag.String("plot-dir", "", "write PNG frames to this directory")
	plotEvery   = flag.Int("plot-every", 60, "write every n-th frame when -plot-dir is set")
	recordPath  = flag.String("record", "", "record the captured audio to this WAV file")
	debugAddr   = flag.String("debug-addr", "", "serve the GraphQL inspection API on this address")
	listDevices = flag.Bool("list-devices", false, "print the capture devices and exit")
)

func main() {
	flag.Parse()
	defer glog.Flush()

	if *listDevices {
		if err := audio.PrintDevices(); err != nil {
			glog.Exit(err)
		}
		return
	}

	cfg, err := loadConfig()
	if err != nil {
		glog.Exit(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		glog.Exit(err)
	}
}

func loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			return nil, err
		}
	}
	if *device != "" {
		cfg.Audio.Source = *device
	}
	if *fps > 0 {
		cfg.Display.FrameRate = *fps
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func openSource(cfg *audio.Config) (audio.Source, error) {
	switch *sourceKind {
	case "portaudio":
		return audio.NewPortAudioSource(cfg)
	case "synth":
		s, err := audio.NewSynthSource(cfg,
			[]audio.Tone{{Freq: *synthFreq, Amp: 0.6}},
			[]audio.Tone{{Freq: *synthFreq, Amp: 0.6, Phase: math.Pi / 2}},
		)
		if err != nil {
			return nil, err
		}
		s.Realtime = true
		return s, nil
	case "wav":
		if *wavPath == "" {
			return nil, errors.New("-source=wav needs -wav")
		}
		s, err := audio.NewWAVSource(*wavPath, cfg)
		if err != nil {
			return nil, err
		}
		s.Loop = *loop
		s.Realtime = true
		return s, nil
	}
	return nil, fmt.Errorf("unknown source %q", *sourceKind)
}

type renderers []frame.Renderer

func (rs renderers) Render(s *frame.Snapshot) {
	for _, r := range rs {
		r.Render(s)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	capCfg := cfg.Capture()
	src, err := openSource(capCfg)
	if err != nil {
		return fmt.Errorf("opening %s source: %w", *sourceKind, err)
	}

	ring := util.NewRingBuffer(cfg.Audio.BufferSize)
	asm, err := frame.NewAssembler(ring, cfg.Frame())
	if err != nil {
		src.Close()
		return err
	}

	var out renderers
	out = append(out, statusLogger(asm, time.Second))
	if *plotDir != "" {
		bg, grid, vis, text := cfg.Colors()
		fc := cfg.Frame().Spectrum
		pr, err := plot.NewRenderer(plot.Options{
			Dir:   *plotDir,
			Every: *plotEvery,
			MinDB: fc.MinDB,
			MaxDB: fc.MaxDB,
			Axis:  util.NewAxis(util.LogScale2, fc.MinFreq, fc.MaxFreq),
			Theme: plot.Theme{Background: bg, Grid: grid, Visualizer: vis, Text: text},
		})
		if err != nil {
			src.Close()
			return err
		}
		out = append(out, pr)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		// nothing more to show once the input is gone
		defer cancel()
		return audio.Capture(ctx, src, ring, capCfg.Buffer.FragmentSize)
	})

	g.Go(func() error {
		return asm.Run(ctx, out, cfg.Display.FrameRate)
	})

	if *recordPath != "" {
		f, err := os.Create(*recordPath)
		if err != nil {
			cancel()
			g.Wait()
			return fmt.Errorf("creating recording: %w", err)
		}
		defer f.Close()
		rec := audio.NewRecorder(f, ring, capCfg.Format, capCfg.Channels, capCfg.SampleRate)
		g.Go(func() error {
			return rec.Run(ctx, 250*time.Millisecond)
		})
	}

	if *debugAddr != "" {
		is, err := inspect.NewServer(cfg, asm)
		if err != nil {
			cancel()
			g.Wait()
			return err
		}
		mux := http.NewServeMux()
		mux.Handle(inspect.Path, is)
		srv := &http.Server{Addr: *debugAddr, Handler: mux}

		g.Go(func() error {
			glog.Infof("inspection API on http://%s%s", *debugAddr, inspect.Path)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("debug server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			sctx, scancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer scancel()
			return srv.Shutdown(sctx)
		})
	}

	glog.Infof("visualizing %s source at %v Hz, %d channels", *sourceKind, capCfg.SampleRate, capCfg.Channels)
	return g.Wait()
}

// statusLogger logs the frame loop statistics at most once per interval.
func statusLogger(asm *frame.Assembler, interval time.Duration) frame.Renderer {
	var last time.Time
	return frame.RendererFunc(func(s *frame.Snapshot) {
		if s.Time.Sub(last) < interval {
			return
		}
		last = s.Time
		st := asm.Stats()
		glog.V(1).Infof("frame %d: peak %.0f Hz %.1f dB, scope %.1f Hz x%d, %d bytes captured",
			st.Frames, st.PeakFrequency, st.PeakDB, st.ScopeFrequency, st.ScopeCycles, st.CapturedBytes)
	})
}
