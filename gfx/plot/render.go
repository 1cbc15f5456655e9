// Package plot renders visualizer frames to PNG files without a display. It is a
// frame.Renderer for headless runs and debugging.
package plot

import (
	"fmt"
	"image/color"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/golang/glog"
	colorful "github.com/lucasb-eyer/go-colorful"
	gplot "gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/ajshout/pulse-visualizer/audio/frame"
	"github.com/ajshout/pulse-visualizer/audio/util"
)

// lissajousBands is the number of colour steps used to age the curve.
const lissajousBands = 16

// minorTicks is the number of grid intervals on the spectrum frequency axis.
const minorTicks = 16

// Theme colours the output.
type Theme struct {
	Background colorful.Color
	Grid       colorful.Color
	Visualizer colorful.Color
	Text       colorful.Color
}

// Options configure a Renderer.
type Options struct {
	Dir string
	// Every selects every n-th frame for output.
	Every  int
	Width  vg.Length
	Height vg.Length
	// MinDB and MaxDB bound the spectrum panel.
	MinDB, MaxDB float64
	// Axis places the frequency ticks of the spectrum panel.
	Axis  *util.Axis
	Theme Theme
}

// Renderer writes oscilloscope, Lissajous and spectrum panels side by side.
type Renderer struct {
	Options
	fade ColorMap

	mu      sync.Mutex
	written int
}

// NewRenderer creates opts.Dir if needed.
func NewRenderer(opts Options) (*Renderer, error) {
	if opts.Every <= 0 {
		opts.Every = 1
	}
	if opts.Width <= 0 {
		opts.Width = 18 * vg.Inch
	}
	if opts.Height <= 0 {
		opts.Height = 6 * vg.Inch
	}
	if opts.Axis == nil {
		return nil, fmt.Errorf("plot renderer needs a frequency axis")
	}
	if opts.MinDB >= opts.MaxDB {
		return nil, fmt.Errorf("plot renderer dB range [%v, %v] is empty", opts.MinDB, opts.MaxDB)
	}
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating plot dir: %w", err)
	}
	return &Renderer{
		Options: opts,
		fade:    Fade(opts.Theme.Background, opts.Theme.Visualizer),
	}, nil
}

// Render writes every Every-th snapshot to Dir/frame-NNNNNN.png. Failures are
// logged; the frame loop is never stopped by the renderer.
func (r *Renderer) Render(s *frame.Snapshot) {
	if s.Seq%uint64(r.Every) != 0 {
		return
	}
	name := filepath.Join(r.Dir, fmt.Sprintf("frame-%06d.png", s.Seq))
	f, err := os.Create(name)
	if err != nil {
		glog.Warningf("plot: %v", err)
		return
	}
	defer f.Close()

	if err := r.Draw(s, f); err != nil {
		glog.Warningf("plot: drawing frame %d: %v", s.Seq, err)
		return
	}
	glog.V(2).Infof("plot: wrote %s", name)

	r.mu.Lock()
	r.written++
	r.mu.Unlock()
}

// Written is the number of PNG files written so far.
func (r *Renderer) Written() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.written
}

// Draw encodes one snapshot as PNG into w.
func (r *Renderer) Draw(s *frame.Snapshot, w io.Writer) error {
	scope, err := r.scopePlot(s)
	if err != nil {
		return err
	}
	liss, err := r.lissajousPlot(s)
	if err != nil {
		return err
	}
	spec, err := r.spectrumPlot(s)
	if err != nil {
		return err
	}

	img := vgimg.NewWith(vgimg.UseWH(r.Width, r.Height), vgimg.UseBackgroundColor(r.Theme.Background))
	dc := draw.New(img)
	tiles := draw.Tiles{
		Rows: 1, Cols: 3,
		PadX: vg.Millimeter, PadY: vg.Millimeter,
		PadTop: vg.Millimeter, PadBottom: vg.Millimeter,
		PadLeft: vg.Millimeter, PadRight: vg.Millimeter,
	}
	plots := [][]*gplot.Plot{{scope, liss, spec}}
	canvases := gplot.Align(plots, tiles, dc)
	for j, p := range plots[0] {
		p.Draw(canvases[0][j])
	}

	png := vgimg.PngCanvas{Canvas: img}
	if _, err := png.WriteTo(w); err != nil {
		return fmt.Errorf("encoding png: %w", err)
	}
	return nil
}

func (r *Renderer) newPlot(title string) *gplot.Plot {
	p := gplot.New()
	p.Title.Text = title
	p.Title.TextStyle.Color = r.Theme.Text
	p.BackgroundColor = r.Theme.Background
	for _, a := range []*gplot.Axis{&p.X, &p.Y} {
		a.LineStyle.Color = r.Theme.Grid
		a.Tick.LineStyle.Color = r.Theme.Grid
		a.Tick.Label.Color = r.Theme.Text
		a.Label.TextStyle.Color = r.Theme.Text
	}

	grid := plotter.NewGrid()
	grid.Vertical.Color = r.Theme.Grid
	grid.Horizontal.Color = r.Theme.Grid
	p.Add(grid)
	return p
}

func (r *Renderer) addLine(p *gplot.Plot, xys plotter.XYs, c color.Color) error {
	if len(xys) < 2 {
		return nil
	}
	l, err := plotter.NewLine(xys)
	if err != nil {
		return err
	}
	l.Color = c
	l.Width = vg.Points(1)
	p.Add(l)
	return nil
}

func (r *Renderer) scopePlot(s *frame.Snapshot) (*gplot.Plot, error) {
	tr := s.Scope
	title := "oscilloscope"
	if tr.Triggered {
		title = fmt.Sprintf("oscilloscope %.1f Hz x%d", tr.Frequency, tr.Cycles)
	}
	p := r.newPlot(title)
	p.X.Min, p.X.Max = 0, 1
	p.Y.Min, p.Y.Max = -1, 1

	xys := make(plotter.XYs, len(tr.Points))
	for i, pt := range tr.Points {
		xys[i] = plotter.XY{X: float64(pt.X), Y: float64(pt.Y)}
	}
	return p, r.addLine(p, xys, r.Theme.Visualizer)
}

// lissajousPlot draws the curve in bands, oldest darkest.
func (r *Renderer) lissajousPlot(s *frame.Snapshot) (*gplot.Plot, error) {
	p := r.newPlot("lissajous")
	p.X.Min, p.X.Max = -1, 1
	p.Y.Min, p.Y.Max = -1, 1

	pts := s.Lissajous.Points
	if len(pts) < 2 {
		return p, nil
	}
	band := (len(pts) + lissajousBands - 1) / lissajousBands
	for start := 0; start < len(pts)-1; start += band {
		end := min(start+band+1, len(pts))
		xys := make(plotter.XYs, end-start)
		for i, pt := range pts[start:end] {
			xys[i] = plotter.XY{X: float64(pt.X), Y: float64(pt.Y)}
		}
		age := float64(end-1) / float64(len(pts)-1)
		if err := r.addLine(p, xys, r.fade.At(age)); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (r *Renderer) spectrumPlot(s *frame.Snapshot) (*gplot.Plot, error) {
	sp := s.Spectrum
	freq, db := sp.Peak()
	p := r.newPlot(fmt.Sprintf("spectrum peak %.0f Hz %.1f dB", freq, db))
	p.X.Min, p.X.Max = 0, 1
	p.Y.Min, p.Y.Max = r.MinDB, r.MaxDB

	var ticks []gplot.Tick
	for _, f := range []float64{20, 50, 100, 200, 500, 1000, 2000, 5000, 10000, 20000} {
		if f < r.Axis.Min || f > r.Axis.Max {
			continue
		}
		label := fmt.Sprintf("%.0f", f)
		if f >= 1000 {
			label = fmt.Sprintf("%.0fk", f/1000)
		}
		ticks = append(ticks, gplot.Tick{Value: r.Axis.Position(f), Label: label})
	}
	// unlabelled ticks mark the evenly spaced grid positions
	for _, f := range r.Axis.Ticks(minorTicks) {
		ticks = append(ticks, gplot.Tick{Value: r.Axis.Position(f)})
	}
	p.X.Tick.Marker = gplot.ConstantTicks(ticks)
	p.X.Label.Text = "Hz"
	p.Y.Label.Text = "dB"

	xys := make(plotter.XYs, sp.Len())
	for i := range xys {
		xys[i] = plotter.XY{X: sp.Positions[i], Y: sp.Magnitudes[i]}
	}
	return p, r.addLine(p, xys, r.Theme.Visualizer)
}
