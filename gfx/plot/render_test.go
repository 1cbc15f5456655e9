package plot

import (
	"image/png"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	colorful "github.com/lucasb-eyer/go-colorful"

	"github.com/ajshout/pulse-visualizer/audio"
	"github.com/ajshout/pulse-visualizer/audio/frame"
	"github.com/ajshout/pulse-visualizer/audio/util"
)

var mocha = Theme{
	Background: colorful.Color{R: 24.0 / 255, G: 24.0 / 255, B: 37.0 / 255},
	Grid:       colorful.Color{R: 49.0 / 255, G: 50.0 / 255, B: 68.0 / 255},
	Visualizer: colorful.Color{R: 203.0 / 255, G: 166.0 / 255, B: 247.0 / 255},
	Text:       colorful.Color{R: 205.0 / 255, G: 214.0 / 255, B: 244.0 / 255},
}

func newTestRenderer(t *testing.T, every int) *Renderer {
	t.Helper()
	r, err := NewRenderer(Options{
		Dir:   filepath.Join(t.TempDir(), "frames"),
		Every: every,
		MinDB: -60,
		MaxDB: 10,
		Axis:  util.NewAxis(util.LogScale2, 10, 20000),
		Theme: mocha,
	})
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func testSnapshots(t *testing.T, n int) []*frame.Snapshot {
	t.Helper()
	l := make([]float64, 8192)
	rt := make([]float64, 8192)
	for i := range l {
		ph := 2 * math.Pi * 441 * float64(i) / 44100
		l[i] = 0.7 * math.Sin(ph)
		rt[i] = 0.7 * math.Sin(1.5*ph+0.4)
	}
	ring := util.NewRingBuffer(128 * 1024)
	ring.Write(audio.Interleave([][]float64{l, rt}, audio.FormatFloat32LE))

	a, err := frame.NewAssembler(ring, frame.DefaultConfig)
	if err != nil {
		t.Fatal(err)
	}
	now := time.Now()
	out := make([]*frame.Snapshot, n)
	for i := range out {
		now = now.Add(time.Second / 60)
		out[i] = a.Assemble(now)
	}
	return out
}

func TestRenderEvery(t *testing.T) {
	r := newTestRenderer(t, 2)
	for _, s := range testSnapshots(t, 5) {
		r.Render(s)
	}
	if r.Written() != 2 {
		t.Fatal("expected 2 frames written, got", r.Written())
	}

	for _, name := range []string{"frame-000002.png", "frame-000004.png"} {
		f, err := os.Open(filepath.Join(r.Dir, name))
		if err != nil {
			t.Fatal(err)
		}
		img, err := png.Decode(f)
		f.Close()
		if err != nil {
			t.Fatal(name, err)
		}
		if b := img.Bounds(); b.Dx() < b.Dy() {
			t.Fatal("panels should be laid out side by side", b)
		}
	}
	if _, err := os.Stat(filepath.Join(r.Dir, "frame-000001.png")); !os.IsNotExist(err) {
		t.Fatal("odd frames should be skipped")
	}
}

func TestRenderEmptySnapshot(t *testing.T) {
	ring := util.NewRingBuffer(1024)
	a, err := frame.NewAssembler(ring, frame.DefaultConfig)
	if err != nil {
		t.Fatal(err)
	}
	r := newTestRenderer(t, 1)
	r.Render(a.Assemble(time.Now()))
	if r.Written() != 1 {
		t.Fatal("an empty frame should still render")
	}
}

func TestNewRendererOptions(t *testing.T) {
	if _, err := NewRenderer(Options{Dir: t.TempDir(), MinDB: -60, MaxDB: 10}); err == nil {
		t.Fatal("expected error without axis")
	}
	if _, err := NewRenderer(Options{Dir: t.TempDir(), Axis: util.NewAxis(util.LogScale2, 10, 20000)}); err == nil {
		t.Fatal("expected error for empty dB range")
	}
}

func TestFade(t *testing.T) {
	m := Fade(mocha.Background, mocha.Visualizer)
	if m.At(1) != mocha.Visualizer {
		t.Fatal("newest end should be the foreground colour")
	}
	prev := -1.0
	for _, x := range []float64{0, 0.25, 0.5, 0.75, 1} {
		l, _, _ := m.At(x).Lab()
		if l <= prev {
			t.Fatal("fade should brighten towards the newest end", x, l, prev)
		}
		prev = l
	}
	if m.At(-1) != m.At(0) || m.At(2) != m.At(1) {
		t.Fatal("positions outside [0, 1] should clamp")
	}
}

func TestSpectrumTicks(t *testing.T) {
	r := newTestRenderer(t, 1)
	p, err := r.spectrumPlot(testSnapshots(t, 1)[0])
	if err != nil {
		t.Fatal(err)
	}
	var labelled, minor int
	for _, tk := range p.X.Tick.Marker.Ticks(0, 1) {
		if tk.Value < 0 || tk.Value > 1 {
			t.Fatal("tick outside the axis:", tk)
		}
		if tk.IsMinor() {
			minor++
		} else {
			labelled++
		}
	}
	if minor != minorTicks+1 {
		t.Fatal("expected an unlabelled tick per grid interval, got", minor)
	}
	// 20 Hz through 20 kHz
	if labelled != 10 {
		t.Fatal("expected 10 labelled ticks, got", labelled)
	}
}
