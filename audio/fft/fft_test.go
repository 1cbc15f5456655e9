package fft

import (
	"math"
	"testing"
	"time"
)

const frame = time.Second / 60

func newTestAnalyzer(t *testing.T) *SpectrumAnalyzer {
	t.Helper()
	s, err := NewSpectrumAnalyzer(DefaultConfig)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func sine(n int, freq, amp float64) []float64 {
	x := make([]float64, n)
	for i := range x {
		x[i] = amp * math.Sin(2*math.Pi*freq*float64(i)/44100)
	}
	return x
}

func checkRange(t *testing.T, name string, sp Spectrum) {
	t.Helper()
	for i, v := range sp.Magnitudes {
		if v < DefaultConfig.MinDB || v > DefaultConfig.MaxDB || math.IsNaN(v) {
			t.Fatalf("%s: bin %d (%.1f Hz) out of range: %v", name, i, sp.Frequencies[i], v)
		}
	}
}

func TestSpectrumRange(t *testing.T) {
	s := newTestAnalyzer(t)
	sp := s.Process(nil, frame)

	if sp.Len() == 0 || len(sp.Frequencies) != sp.Len() || len(sp.Positions) != sp.Len() {
		t.Fatal("inconsistent spectrum lengths")
	}
	if sp.Frequencies[0] < DefaultConfig.MinFreq || sp.Frequencies[sp.Len()-1] > DefaultConfig.MaxFreq {
		t.Fatal("bins outside display range", sp.Frequencies[0], sp.Frequencies[sp.Len()-1])
	}
	// 44100/4096 Hz per bin: bins 1 through 1857
	if sp.Len() != 1857 {
		t.Fatal("unexpected bin count", sp.Len())
	}
	for i := 1; i < sp.Len(); i++ {
		if sp.Positions[i] <= sp.Positions[i-1] {
			t.Fatal("positions must increase")
		}
	}
}

func TestSpectrumSilence(t *testing.T) {
	s := newTestAnalyzer(t)
	zeros := make([]float64, 4096)
	var sp Spectrum
	for i := 0; i < 10; i++ {
		sp = s.Process(zeros, frame)
	}
	for i, v := range sp.Magnitudes {
		if v != DefaultConfig.MinDB {
			t.Fatalf("bin %d expected floor, got %v", i, v)
		}
	}
}

func TestSpectrumSilenceAfterTone(t *testing.T) {
	s := newTestAnalyzer(t)
	tone := sine(4096, 15000, 1)
	for i := 0; i < 60; i++ {
		s.Process(tone, frame)
	}
	if _, db := s.Process(tone, frame).Peak(); db < -10 {
		t.Fatal("tone should register before going silent", db)
	}

	zeros := make([]float64, 4096)
	var sp Spectrum
	for i := 0; i < 300; i++ {
		sp = s.Process(zeros, frame)
	}
	// every bin, including those above 1 kHz where the slope is positive
	for k, v := range s.history {
		if math.Abs(v-DefaultConfig.MinDB) > 1e-9 {
			t.Fatalf("bin %d (%.0f Hz) did not return to the floor: %v", k, s.BinFrequency(k), v)
		}
	}
	if _, db := sp.Peak(); math.Abs(db-DefaultConfig.MinDB) > 1e-9 {
		t.Fatal("silent peak should be at the floor, got", db)
	}
}

func TestSpectrumClamp(t *testing.T) {
	inputs := map[string][]float64{
		"silence": make([]float64, 4096),
		"short":   sine(100, 1000, 1),
		"clipped": func() []float64 {
			x := sine(4096, 2000, 50)
			for i := range x {
				x[i] = math.Max(-1, math.Min(1, x[i]))
			}
			return x
		}(),
		"huge":  sine(4096, 5000, 1e12),
		"noise": noise(4096),
		"nan":   {math.NaN(), math.Inf(1), math.Inf(-1)},
	}
	for name, in := range inputs {
		s := newTestAnalyzer(t)
		for i := 0; i < 200; i++ {
			checkRange(t, name, s.Process(in, frame))
		}
		// very long gaps must not overshoot either
		checkRange(t, name, s.Process(in, time.Hour))
	}
}

func noise(n int) []float64 {
	x := make([]float64, n)
	var seed uint32 = 12345
	for i := range x {
		seed = seed*1664525 + 1013904223
		x[i] = float64(seed)/math.MaxUint32*2 - 1
	}
	return x
}

func TestSpectrumSinePeak(t *testing.T) {
	s := newTestAnalyzer(t)
	in := sine(4096, 440, 1)
	var sp Spectrum
	for i := 0; i < 30; i++ {
		sp = s.Process(in, frame)
	}

	freq, db := sp.Peak()
	binHz := 44100.0 / 4096
	if math.Abs(freq-440) > binHz {
		t.Fatal("peak at", freq, "Hz")
	}
	if db <= -20 {
		t.Fatal("peak too quiet:", db)
	}

	peak := 0
	for i, f := range sp.Frequencies {
		if f == freq {
			peak = i
		}
	}
	for i, v := range sp.Magnitudes {
		if i < peak-5 || i > peak+5 {
			if v > db-20 {
				t.Fatalf("bin %d (%.1f Hz) not attenuated: %v vs peak %v", i, sp.Frequencies[i], v, db)
			}
		}
	}
}

func TestSpectrumRiseFasterThanFall(t *testing.T) {
	s := newTestAnalyzer(t)
	loud := sine(4096, 1000, 1)
	quiet := make([]float64, 4096)
	dt := 10 * time.Millisecond

	idx := -1
	for i, f := range s.freqs {
		if math.Abs(f-1000) < 44100.0/4096/2 {
			idx = i
		}
	}
	if idx < 0 {
		t.Fatal("no bin near 1 kHz")
	}

	before := s.Process(quiet, dt).Magnitudes[idx]
	up := s.Process(loud, dt).Magnitudes[idx]
	rise := up - before

	// settle at the top before measuring the decay
	for i := 0; i < 100; i++ {
		up = s.Process(loud, dt).Magnitudes[idx]
	}
	down := s.Process(quiet, dt).Magnitudes[idx]
	fall := up - down

	if rise <= 0 || fall <= 0 {
		t.Fatal("expected movement in both directions", rise, fall)
	}
	if rise <= fall {
		t.Fatalf("rise %v should exceed fall %v", rise, fall)
	}
	if rise > DefaultConfig.RiseSpeed*dt.Seconds()+1e-9 {
		t.Fatal("rise exceeded rate limit", rise)
	}
	if fall > DefaultConfig.FallSpeed*dt.Seconds()+1e-9 {
		t.Fatal("fall exceeded rate limit", fall)
	}
}

func TestSpectrumZeroPadding(t *testing.T) {
	a := newTestAnalyzer(t)
	b := newTestAnalyzer(t)
	x := sine(1000, 3000, 0.5)
	padded := append(make([]float64, 3096), x...)

	sa := a.Process(x, frame)
	sb := b.Process(padded, frame)
	for i := range sa.Magnitudes {
		if sa.Magnitudes[i] != sb.Magnitudes[i] {
			t.Fatal("short input should be zero padded at the front")
		}
	}
}

func TestConfigValidate(t *testing.T) {
	if err := DefaultConfig.Validate(); err != nil {
		t.Fatal(err)
	}
	bad := DefaultConfig
	bad.Size = 1000
	bad.RiseSpeed = 10
	if err := bad.Validate(); err == nil {
		t.Fatal("expected validation error")
	}
	if _, err := NewSpectrumAnalyzer(bad); err == nil {
		t.Fatal("expected constructor to reject bad config")
	}
}
