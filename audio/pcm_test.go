package audio

import (
	"math"
	"testing"
)

func TestDemux(t *testing.T) {
	left := []float64{0, 0.5, -0.5, 1}
	right := []float64{0.25, -1, 0.75, 0}

	for _, format := range []Format{FormatFloat32LE, FormatS16LE} {
		raw := Interleave([][]float64{left, right}, format)
		if len(raw) != 4*format.BytesPerFrame(2) {
			t.Fatal(format, "unexpected length", len(raw))
		}
		// a trailing partial frame must be ignored
		raw = append(raw, 0x01)

		chans := Demux(raw, 2, format)
		if len(chans) != 2 || len(chans[0]) != 4 {
			t.Fatal(format, chans)
		}
		tol := 1e-6
		if format == FormatS16LE {
			tol = 1.0 / 32768
		}
		for i := range left {
			if math.Abs(chans[0][i]-left[i]) > tol || math.Abs(chans[1][i]-right[i]) > tol {
				t.Fatal(format, i, chans[0][i], chans[1][i])
			}
		}
	}
}

func TestDemuxEmpty(t *testing.T) {
	chans := Demux(nil, 2, FormatFloat32LE)
	if len(chans) != 2 || len(chans[0]) != 0 {
		t.Fatal(chans)
	}
	if Demux([]byte{1, 2, 3, 4}, 0, FormatFloat32LE) != nil {
		t.Fatal("zero channels should yield nil")
	}
}

func TestMix(t *testing.T) {
	m := Mix([][]float64{{1, 0, -1}, {0, 1, -1, 5}})
	exp := []float64{0.5, 0.5, -1}
	if len(m) != len(exp) {
		t.Fatal(m)
	}
	for i := range exp {
		if m[i] != exp[i] {
			t.Fatal(m)
		}
	}
}

func TestParseFormat(t *testing.T) {
	for _, f := range []Format{FormatFloat32LE, FormatS16LE} {
		g, err := ParseFormat(f.String())
		if err != nil || g != f {
			t.Fatal(f, g, err)
		}
	}
	if _, err := ParseFormat("u8"); err == nil {
		t.Fatal("expected error for unknown format")
	}
}
