package audio

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/golang/glog"
)

// WAVSource plays a WAV file as if it were a capture device. Mono files are
// duplicated onto every channel; extra file channels are ignored.
type WAVSource struct {
	cfg      Config
	path     string
	Loop     bool
	Realtime bool

	mu       sync.Mutex
	file     *os.File
	dec      *wav.Decoder
	buf      *goaudio.IntBuffer
	fileChan int
	bitDepth int
	pace     pacer
	done     chan struct{}
	running  bool
	closed   bool
}

// NewWAVSource opens path and checks that it matches cfg's sample rate.
func NewWAVSource(path string, cfg *Config) (*WAVSource, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening wav: %w", err)
	}
	s := &WAVSource{
		cfg:  *cfg,
		path: path,
		file: f,
		pace: pacer{rate: cfg.SampleRate},
		done: make(chan struct{}),
	}
	if err := s.rewind(); err != nil {
		f.Close()
		return nil, err
	}
	if float64(s.dec.SampleRate) != cfg.SampleRate {
		f.Close()
		return nil, fmt.Errorf("wav %s: sample rate %d does not match %v",
			path, s.dec.SampleRate, cfg.SampleRate)
	}
	glog.Infof("opened %s: %d ch, %d bit @ %d Hz", path, s.fileChan, s.bitDepth, s.dec.SampleRate)
	return s, nil
}

func (s *WAVSource) rewind() error {
	if _, err := s.file.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("rewinding wav: %w", err)
	}
	dec := wav.NewDecoder(s.file)
	if !dec.IsValidFile() {
		return fmt.Errorf("wav %s: invalid file", s.path)
	}
	if err := dec.FwdToPCM(); err != nil {
		return fmt.Errorf("wav %s: seeking to PCM data: %w", s.path, err)
	}
	s.dec = dec
	s.fileChan = int(dec.NumChans)
	s.bitDepth = int(dec.BitDepth)
	return nil
}

// Start begins playback.
func (s *WAVSource) Start() error {
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

// RequestFragment decodes the next clamped sizeHint frames. At the end of the
// file it returns io.EOF unless Loop is set.
func (s *WAVSource) RequestFragment(sizeHint int) ([]byte, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrSourceClosed
	}
	if !s.running {
		s.mu.Unlock()
		return nil, fmt.Errorf("wav: not started")
	}
	frames := s.cfg.Buffer.Clamp(sizeHint)
	chans, err := s.decode(frames)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	deadline := s.pace.advance(len(chans[0]))
	s.mu.Unlock()

	if s.Realtime && wait(deadline, s.done) {
		return nil, ErrSourceClosed
	}
	return Interleave(chans, s.cfg.Format), nil
}

func (s *WAVSource) decode(frames int) ([][]float64, error) {
	n := frames * s.fileChan
	if s.buf == nil || len(s.buf.Data) != n {
		s.buf = &goaudio.IntBuffer{
			Format: &goaudio.Format{NumChannels: s.fileChan, SampleRate: int(s.dec.SampleRate)},
			Data:   make([]int, n),
		}
	}

	got, err := s.dec.PCMBuffer(s.buf)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decoding wav: %w", err)
	}
	if got == 0 {
		if !s.Loop {
			return nil, io.EOF
		}
		if err := s.rewind(); err != nil {
			return nil, err
		}
		if got, err = s.dec.PCMBuffer(s.buf); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("decoding wav: %w", err)
		}
		if got == 0 {
			return nil, io.EOF
		}
	}

	full := float64(int64(1) << (s.bitDepth - 1))
	count := got / s.fileChan
	out := make([][]float64, s.cfg.Channels)
	for c := range out {
		out[c] = make([]float64, count)
		src := c
		if src >= s.fileChan {
			src = s.fileChan - 1
		}
		for i := 0; i < count; i++ {
			v := s.buf.Data[i*s.fileChan+src]
			if s.bitDepth == 8 {
				v -= 128
			}
			out[c][i] = float64(v) / full
		}
	}
	return out, nil
}

// Close stops playback and closes the file.
func (s *WAVSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	close(s.done)
	return s.file.Close()
}

func (s *WAVSource) Format() Format      { return s.cfg.Format }
func (s *WAVSource) Channels() int       { return s.cfg.Channels }
func (s *WAVSource) SampleRate() float64 { return s.cfg.SampleRate }
