// Spectrum runs the visualizer analysis over a WAV file as fast as it can and
// prints the spectrum peak and oscilloscope pitch for every frame.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-audio/wav"
	"github.com/golang/glog"

	"github.com/ajshout/pulse-visualizer/audio"
	"github.com/ajshout/pulse-visualizer/audio/frame"
	"github.com/ajshout/pulse-visualizer/audio/util"
	"github.com/ajshout/pulse-visualizer/config"
)

var (
	configPath = flag.String("config", "", "path to a YAML config file")
	fps        = flag.Float64("fps", 0, "analysis frame rate, overrides the config")
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] file.wav\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	defer glog.Flush()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	if err := run(flag.Arg(0), os.Stdout); err != nil {
		glog.Exit(err)
	}
}

func sampleRate(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return 0, fmt.Errorf("%s is not a valid wav file", path)
	}
	return int(dec.SampleRate), nil
}

func run(path string, w io.Writer) error {
	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			return err
		}
	}
	if *fps > 0 {
		cfg.Display.FrameRate = *fps
	}
	sr, err := sampleRate(path)
	if err != nil {
		return err
	}
	cfg.Audio.SampleRate = sr
	if err := cfg.Validate(); err != nil {
		return err
	}

	capCfg := cfg.Capture()
	src, err := audio.NewWAVSource(path, capCfg)
	if err != nil {
		return err
	}
	defer src.Close()
	if err := src.Start(); err != nil {
		return err
	}

	ring := util.NewRingBuffer(cfg.Audio.BufferSize)
	asm, err := frame.NewAssembler(ring, cfg.Frame())
	if err != nil {
		return err
	}

	hop := int(capCfg.SampleRate / cfg.Display.FrameRate)
	bpf := capCfg.Format.BytesPerFrame(capCfg.Channels)
	var (
		now    time.Time
		frames int
	)
	for {
		b, err := src.RequestFragment(hop)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		ring.Write(b)
		frames += len(b) / bpf
		now = time.Unix(0, 0).Add(time.Duration(float64(frames) / capCfg.SampleRate * float64(time.Second)))

		s := asm.Assemble(now)
		freq, db := s.Spectrum.Peak()
		fmt.Fprintf(w, "%9.3fs  peak %8.1f Hz %6.1f dB", now.Sub(time.Unix(0, 0)).Seconds(), freq, db)
		if s.Scope.Triggered {
			fmt.Fprintf(w, "  scope %8.1f Hz x%d", s.Scope.Frequency, s.Scope.Cycles)
		}
		fmt.Fprintln(w)
	}
	glog.Infof("analysed %d frames of %s in %d steps", frames, path, asm.Stats().Frames)
	return nil
}
