package scope

import (
	"math"
	"math/rand"
	"testing"
)

func sine(n int, freq, amp, phase float64) []float64 {
	x := make([]float64, n)
	for i := range x {
		x[i] = amp * math.Sin(2*math.Pi*freq*float64(i)/44100+phase)
	}
	return x
}

func newTestAnalyzer(t *testing.T) *Analyzer {
	t.Helper()
	a, err := NewAnalyzer(DefaultConfig)
	if err != nil {
		t.Fatal(err)
	}
	return a
}

func checkCycles(t *testing.T, tr Trace) {
	t.Helper()
	if tr.Cycles < 1 || tr.Cycles > 8 {
		t.Fatal("cycle count out of bounds:", tr.Cycles)
	}
}

func TestTriggeredSine(t *testing.T) {
	a := newTestAnalyzer(t)
	for _, freq := range []float64{50, 100, 440, 1000, 5000} {
		in := sine(2000, freq, 0.8, 0.3)
		tr := a.Analyze(in)
		checkCycles(t, tr)
		if !tr.Triggered {
			t.Fatal(freq, "Hz: expected trigger")
		}
		if math.Abs(tr.Frequency-freq)/freq > 0.01 {
			t.Errorf("%v Hz: detected %v Hz", freq, tr.Frequency)
		}

		// the trace starts where the signal rises through its mean
		mean := 0.0
		for _, v := range in {
			mean += v / float64(len(in))
		}
		if math.Abs(float64(tr.Points[0].Y)-0.5*mean) > 1e-3 {
			t.Errorf("%v Hz: trace should start at the mean, got %v", freq, tr.Points[0].Y)
		}
		if tr.Points[1].Y <= tr.Points[0].Y {
			t.Errorf("%v Hz: trace should start rising", freq)
		}
		last := tr.Points[len(tr.Points)-1]
		if tr.Points[0].X != 0 || last.X > 1 {
			t.Errorf("%v Hz: X should span [0, 1], got %v..%v", freq, tr.Points[0].X, last.X)
		}
		for _, p := range tr.Points {
			if math.Abs(float64(p.Y)) > 0.8*0.5+1e-6 {
				t.Fatalf("%v Hz: amplitude not scaled: %v", freq, p.Y)
			}
		}
	}
}

func TestCycleSelection(t *testing.T) {
	a := newTestAnalyzer(t)

	// 5 kHz gives far more than 8 periods in the window
	tr := a.Analyze(sine(2000, 5000, 1, 0))
	if tr.Cycles != 8 {
		t.Fatal("expected max cycles, got", tr.Cycles)
	}

	// 50 Hz has a period of 882 samples; only one fits after the trigger
	tr = a.Analyze(sine(2000, 50, 1, 0))
	if tr.Cycles != 1 {
		t.Fatal("expected a single cycle, got", tr.Cycles)
	}

	// 200 Hz: 220.5 samples per period
	tr = a.Analyze(sine(2000, 200, 1, 0))
	exp := int((1999 - tr.Trigger) / tr.Period)
	if exp > 8 {
		exp = 8
	}
	if tr.Cycles != exp {
		t.Fatal("expected", exp, "cycles, got", tr.Cycles)
	}
}

// The displayed trace must not depend on where in the waveform the window starts.
func TestTriggerStability(t *testing.T) {
	a := newTestAnalyzer(t)
	ref := a.Analyze(sine(2000, 440, 1, 0))
	for _, phase := range []float64{0.5, 1.3, 2.9, 4.4} {
		tr := a.Analyze(sine(2000, 440, 1, phase))
		if !tr.Triggered || tr.Cycles != ref.Cycles {
			t.Fatal("phase", phase, tr.Triggered, tr.Cycles)
		}
		// compare the quarter period point
		q := func(tr Trace) float32 {
			for _, p := range tr.Points {
				if p.X >= 0.25/float32(tr.Cycles) {
					return p.Y
				}
			}
			return 0
		}
		if math.Abs(float64(q(tr)-q(ref))) > 0.02 {
			t.Fatal("phase", phase, "trace moved:", q(tr), q(ref))
		}
	}
}

func TestFallbacks(t *testing.T) {
	a := newTestAnalyzer(t)

	rng := rand.New(rand.NewSource(7))
	noise := make([]float64, 2000)
	for i := range noise {
		noise[i] = rng.Float64()*2 - 1
	}

	dc := make([]float64, 2000)
	for i := range dc {
		dc[i] = 0.3
	}

	for name, in := range map[string][]float64{
		"silence": make([]float64, 2000),
		"noise":   noise,
		"empty":   nil,
		"single":  {0.5},
		"dc":      dc,
	} {
		tr := a.Analyze(in)
		checkCycles(t, tr)
		if tr.Triggered {
			t.Error(name, "should not trigger")
		}
		if tr.Cycles != DefaultConfig.MinCycles {
			t.Error(name, "should use minimum cycles")
		}
		if len(tr.Points) != len(in) {
			t.Error(name, "should display the raw window")
		}
	}
}

func TestDCOffsetTrigger(t *testing.T) {
	a := newTestAnalyzer(t)
	x := sine(2000, 300, 0.4, 1)
	for i := range x {
		x[i] += 0.3
	}
	tr := a.Analyze(x)
	if !tr.Triggered {
		t.Fatal("expected trigger despite DC offset")
	}
	if math.Abs(tr.Frequency-300) > 3 {
		t.Fatal(tr.Frequency)
	}
}

func TestConfigValidate(t *testing.T) {
	bad := DefaultConfig
	bad.MinCycles = 0
	if _, err := NewAnalyzer(bad); err == nil {
		t.Fatal("expected error")
	}
	bad = DefaultConfig
	bad.MaxCycles = 0
	if err := bad.Validate(); err == nil {
		t.Fatal("expected error")
	}
}
