package audio

import (
	"context"
	"fmt"
	"io"
	"math"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/golang/glog"

	"github.com/ajshout/pulse-visualizer/audio/util"
)

// Recorder drains a capture ring with the consuming read cursor and writes the
// audio to a 16 bit PCM WAV stream. It is the only consumer of RingBuffer.Read;
// the visual pipeline only ever takes ReadLatest snapshots.
type Recorder struct {
	ring     *util.RingBuffer
	format   Format
	channels int
	enc      *wav.Encoder
	buf      []byte

	lastDropped uint64
}

// NewRecorder writes to w, which must be seekable so the header can be finalized.
func NewRecorder(w io.WriteSeeker, ring *util.RingBuffer, format Format, channels int, sampleRate float64) *Recorder {
	// skip whatever was captured before recording started
	ring.Read(make([]byte, ring.Unread()))
	return &Recorder{
		ring:        ring,
		format:      format,
		channels:    channels,
		enc:         wav.NewEncoder(w, int(sampleRate), 16, channels, 1),
		buf:         make([]byte, ring.Cap()),
		lastDropped: ring.Dropped(),
	}
}

// Flush writes everything captured since the previous call.
func (r *Recorder) Flush() error {
	n := r.ring.Read(r.buf)
	if d := r.ring.Dropped(); d != r.lastDropped {
		glog.Warningf("recorder fell behind capture, %d bytes lost", d-r.lastDropped)
		r.lastDropped = d
	}
	bpf := r.format.BytesPerFrame(r.channels)
	n -= n % bpf
	if n == 0 {
		return nil
	}

	chans := Demux(r.buf[:n], r.channels, r.format)
	frames := len(chans[0])
	data := make([]int, frames*r.channels)
	for i := 0; i < frames; i++ {
		for c := range chans {
			v := math.Round(chans[c][i] * 32767)
			data[i*r.channels+c] = int(math.Max(-32768, math.Min(32767, v)))
		}
	}
	if err := r.enc.Write(&goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: r.channels, SampleRate: r.enc.SampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}); err != nil {
		return fmt.Errorf("writing wav: %w", err)
	}
	return nil
}

// Run flushes every interval until ctx is done, then flushes once more and
// finalizes the file.
func (r *Recorder) Run(ctx context.Context, interval time.Duration) error {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			if err := r.Flush(); err != nil {
				r.enc.Close()
				return err
			}
			return r.Close()
		case <-t.C:
			if err := r.Flush(); err != nil {
				r.enc.Close()
				return err
			}
		}
	}
}

// Close finalizes the WAV header.
func (r *Recorder) Close() error {
	if err := r.enc.Close(); err != nil {
		return fmt.Errorf("closing wav: %w", err)
	}
	return nil
}
