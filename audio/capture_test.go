package audio

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ajshout/pulse-visualizer/audio/util"
)

var testConfig = Config{
	SampleRate: 44100,
	Channels:   2,
	Format:     FormatFloat32LE,
	Buffer:     DefaultBufferAttr,
}

type failingSource struct {
	*SynthSource
	after int
	n     int
}

func (f *failingSource) RequestFragment(hint int) ([]byte, error) {
	f.n++
	if f.n > f.after {
		return nil, errors.New("device unplugged")
	}
	return f.SynthSource.RequestFragment(hint)
}

func TestCaptureStopsOnCancel(t *testing.T) {
	src, err := NewSynthSource(&testConfig, []Tone{{Freq: 440, Amp: 0.5}})
	chk(t, err)
	src.Realtime = true
	ring := util.NewRingBuffer(128 * 1024)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	chk(t, Capture(ctx, src, ring, 512))

	if ring.Written() == 0 {
		t.Fatal("expected captured data")
	}
	if _, err := src.RequestFragment(512); !errors.Is(err, ErrSourceClosed) {
		t.Fatal("source should be closed after Capture returns, got", err)
	}
}

func TestCaptureSurfacesSourceError(t *testing.T) {
	synth, err := NewSynthSource(&testConfig)
	chk(t, err)
	src := &failingSource{SynthSource: synth, after: 3}
	ring := util.NewRingBuffer(1024 * 64)

	err = Capture(context.Background(), src, ring, 512)
	if err == nil {
		t.Fatal("expected source error")
	}
	if ring.Written() != 3*512*8 {
		t.Fatal("unexpected bytes written", ring.Written())
	}
}

func TestSynthSource(t *testing.T) {
	src, err := NewSynthSource(&testConfig,
		[]Tone{{Freq: 1000, Amp: 1}},
		[]Tone{{Freq: 1000, Amp: 1, Phase: math.Pi / 2}},
	)
	chk(t, err)
	chk(t, src.Start())
	defer src.Close()

	b, err := src.RequestFragment(441)
	chk(t, err)
	chans := Demux(b, 2, FormatFloat32LE)
	if len(chans[0]) != 441 {
		t.Fatal(len(chans[0]))
	}
	if chans[0][0] != 0 || math.Abs(chans[1][0]-1) > 1e-6 {
		t.Fatal("unexpected phase", chans[0][0], chans[1][0])
	}

	// the clock must continue across fragments
	b, err = src.RequestFragment(128)
	chk(t, err)
	chans = Demux(b, 2, FormatFloat32LE)
	exp := math.Sin(2 * math.Pi * 1000 * 441 / 44100)
	if math.Abs(chans[0][0]-exp) > 1e-6 {
		t.Fatal(chans[0][0], exp)
	}
}

func TestRecordAndPlayback(t *testing.T) {
	src, err := NewSynthSource(&testConfig,
		[]Tone{{Freq: 300, Amp: 0.5}},
		[]Tone{{Freq: 600, Amp: 0.25}},
	)
	chk(t, err)
	chk(t, src.Start())
	ring := util.NewRingBuffer(128 * 1024)

	path := filepath.Join(t.TempDir(), "rec.wav")
	f, err := os.Create(path)
	chk(t, err)
	rec := NewRecorder(f, ring, FormatFloat32LE, 2, 44100)

	var want [][]float64
	for i := 0; i < 8; i++ {
		b, err := src.RequestFragment(512)
		chk(t, err)
		ring.Write(b)
		chk(t, rec.Flush())
		want = append(want, Demux(b, 2, FormatFloat32LE)[0])
	}
	chk(t, rec.Close())
	chk(t, f.Close())

	wsrc, err := NewWAVSource(path, &testConfig)
	chk(t, err)
	defer wsrc.Close()
	chk(t, wsrc.Start())

	for i := 0; i < 8; i++ {
		b, err := wsrc.RequestFragment(512)
		chk(t, err)
		got := Demux(b, 2, FormatFloat32LE)[0]
		if len(got) != 512 {
			t.Fatal("fragment", i, "length", len(got))
		}
		for j := range got {
			if math.Abs(got[j]-want[i][j]) > 2.0/32768 {
				t.Fatalf("fragment %d sample %d: %v != %v", i, j, got[j], want[i][j])
			}
		}
	}
	if _, err := wsrc.RequestFragment(512); err == nil {
		t.Fatal("expected EOF at end of file")
	}
}
