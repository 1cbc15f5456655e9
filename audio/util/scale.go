package util

import (
	"math"
)

// Scale maps a frequency in Hz onto a perceptual axis and back.
type Scale interface {
	To(float64) float64
	From(float64) float64
}

type logScale struct{}

// LogScale2 is an octave scale; one unit per doubling of frequency.
var LogScale2 Scale = logScale{}

func (logScale) To(val float64) float64 {
	return math.Log2(val)
}

func (logScale) From(val float64) float64 {
	return math.Exp2(val)
}

// Axis normalizes frequencies in [Min, Max] onto [0, 1] using a Scale.
type Axis struct {
	Scale    Scale
	Min, Max float64

	sMin, sSpan float64
}

// NewAxis creates an axis spanning fMin to fMax.
func NewAxis(scale Scale, fMin, fMax float64) *Axis {
	sMin := scale.To(fMin)
	return &Axis{
		Scale: scale,
		Min:   fMin,
		Max:   fMax,
		sMin:  sMin,
		sSpan: scale.To(fMax) - sMin,
	}
}

// Position returns where f falls on the axis, clamped to [0, 1].
func (a *Axis) Position(f float64) float64 {
	if f <= a.Min {
		return 0
	}
	if f >= a.Max {
		return 1
	}
	return (a.Scale.To(f) - a.sMin) / a.sSpan
}

// Frequency is the inverse of Position.
func (a *Axis) Frequency(pos float64) float64 {
	return a.Scale.From(a.sMin + pos*a.sSpan)
}

// Ticks returns n+1 frequencies evenly spaced along the axis.
func (a *Axis) Ticks(n int) []float64 {
	ticks := make([]float64, n+1)
	for i := range ticks {
		ticks[i] = a.Frequency(float64(i) / float64(n))
	}
	return ticks
}
