// Package lissajous turns paired stereo samples into a smooth X/Y curve.
package lissajous

import (
	"errors"

	math32 "github.com/chewxy/math32"
	"gonum.org/v1/gonum/mat"
)

// catmullRom is the uniform Catmull-Rom basis. A point on the segment between
// P1 and P2 is 0.5 * [1 t t² t³] · catmullRom · [P0 P1 P2 P3]ᵀ.
var catmullRom = mat.NewDense(4, 4, []float64{
	0, 2, 0, 0,
	-1, 0, 1, 0,
	2, -5, 4, -1,
	-1, 3, -3, 1,
})

// Config sizes the curve.
type Config struct {
	// Points is the number of most recent sample pairs used as control points.
	Points int
	// Segments is the number of curve points emitted per control pair.
	Segments int
}

// DefaultConfig smooths the newest 500 pairs with 10 points per segment.
var DefaultConfig = Config{
	Points:   500,
	Segments: 10,
}

// Validate reports every out of range field.
func (c *Config) Validate() error {
	var errs []error
	if c.Points < 2 {
		errs = append(errs, errors.New("lissajous needs at least 2 points"))
	}
	if c.Segments < 1 {
		errs = append(errs, errors.New("lissajous needs at least 1 segment"))
	}
	return errors.Join(errs...)
}

// Point is a curve vertex. X follows the left channel, Y the right.
type Point struct {
	X, Y float32
}

// Curve is one frame of Lissajous output.
type Curve struct {
	Points []Point
	// Controls is the number of sample pairs the curve was built from.
	Controls int
}

// Builder interpolates the curve. The basis weights for every step along a
// segment are computed once.
type Builder struct {
	Config
	weights *mat.Dense // Segments x 4
}

// NewBuilder validates cfg and precomputes the basis weights.
func NewBuilder(cfg Config) (*Builder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	ts := mat.NewDense(cfg.Segments, 4, nil)
	for k := 0; k < cfg.Segments; k++ {
		t := float64(k) / float64(cfg.Segments)
		ts.SetRow(k, []float64{0.5, 0.5 * t, 0.5 * t * t, 0.5 * t * t * t})
	}
	w := mat.NewDense(cfg.Segments, 4, nil)
	w.Mul(ts, catmullRom)

	return &Builder{Config: cfg, weights: w}, nil
}

// Len returns the number of points Build emits for n control points.
func (b *Builder) Len(n int) int {
	if n > b.Points {
		n = b.Points
	}
	if n < 2 {
		return 0
	}
	return (n-1)*b.Segments + 1
}

// Build interpolates the most recent pairs of left and right. The curve passes
// through every control point; the end points are duplicated to give the first
// and last segments a neighbour.
func (b *Builder) Build(left, right []float64) Curve {
	n := len(left)
	if len(right) < n {
		n = len(right)
	}
	if n > b.Points {
		left = left[len(left)-b.Points:]
		right = right[len(right)-b.Points:]
		n = b.Points
	} else {
		left = left[len(left)-n:]
		right = right[len(right)-n:]
	}
	if n < 2 {
		return Curve{Controls: n}
	}

	ctrl := func(i int) []float64 {
		if i < 0 {
			i = 0
		}
		if i >= n {
			i = n - 1
		}
		return []float64{left[i], right[i]}
	}

	pts := make([]Point, 0, b.Len(n))
	g := mat.NewDense(4, 2, nil)
	seg := mat.NewDense(b.Segments, 2, nil)
	for i := 0; i < n-1; i++ {
		for j := 0; j < 4; j++ {
			g.SetRow(j, ctrl(i-1+j))
		}
		seg.Mul(b.weights, g)
		for k := 0; k < b.Segments; k++ {
			pts = append(pts, point(seg.At(k, 0), seg.At(k, 1)))
		}
	}
	pts = append(pts, point(left[n-1], right[n-1]))

	return Curve{Points: pts, Controls: n}
}

func point(x, y float64) Point {
	return Point{X: clamp(float32(x)), Y: clamp(float32(y))}
}

func clamp(v float32) float32 {
	if math32.IsNaN(v) {
		return 0
	}
	return math32.Max(-1, math32.Min(1, v))
}
