package audio

import (
	"time"
)

// pacer delays file and synthetic sources so fragments arrive no faster than a
// device at the same sample rate would deliver them.
type pacer struct {
	rate    float64
	started time.Time
	frames  int64
}

func (p *pacer) start() {
	if p.started.IsZero() {
		p.started = time.Now()
	}
}

// advance accounts for n more frames and returns the wall-clock time they are due.
func (p *pacer) advance(n int) time.Time {
	p.frames += int64(n)
	return p.started.Add(time.Duration(float64(p.frames) / p.rate * float64(time.Second)))
}

// wait sleeps until deadline or until done is closed, reporting whether it was
// interrupted.
func wait(deadline time.Time, done <-chan struct{}) bool {
	d := time.Until(deadline)
	if d <= 0 {
		return false
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return false
	case <-done:
		return true
	}
}
