package plot

import (
	colorful "github.com/lucasb-eyer/go-colorful"
)

// ColorMap is a gradient given by keypoints sorted by position in [0, 1].
type ColorMap []struct {
	Col colorful.Color
	Pos float64
}

// At returns the HCL blend between the keypoints around t.
func (g ColorMap) At(t float64) colorful.Color {
	if len(g) == 0 {
		return colorful.Color{}
	}
	if t <= g[0].Pos {
		return g[0].Col
	}
	if t >= g[len(g)-1].Pos {
		return g[len(g)-1].Col
	}
	for i := 0; i < len(g)-1; i++ {
		c1 := g[i]
		c2 := g[i+1]
		if c1.Pos <= t && t <= c2.Pos {
			t := (t - c1.Pos) / (c2.Pos - c1.Pos)
			return c1.Col.BlendHcl(c2.Col, t).Clamped()
		}
	}
	return g[len(g)-1].Col
}

// Fade runs from the background to the foreground colour. It is used to age
// older parts of a trace into the background.
func Fade(bg, fg colorful.Color) ColorMap {
	return ColorMap{
		{bg.BlendHcl(fg, 0.15).Clamped(), 0},
		{bg.BlendHcl(fg, 0.6).Clamped(), 0.5},
		{fg, 1},
	}
}
