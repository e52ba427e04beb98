// ABOUTME: Real-time pacing for generated and file-backed sources
// ABOUTME: Blocks reads until the wall clock catches up with delivered audio
package capture

import (
	"time"
)

// maxLag is how far behind real time a pacer may fall before it
// restarts its clock instead of bursting to catch up
const maxLag = time.Second

type pacer struct {
	rate   int
	start  time.Time
	frames int64
	done   <-chan struct{}
}

func newPacer(rate int, done <-chan struct{}) *pacer {
	return &pacer{rate: rate, done: done}
}

// wait accounts for frames just produced and sleeps until they are due.
// It returns false if done was closed while waiting.
func (p *pacer) wait(frames int) bool {
	now := time.Now()
	if p.start.IsZero() {
		p.start = now
	}
	p.frames += int64(frames)

	due := p.start.Add(time.Duration(p.frames) * time.Second / time.Duration(p.rate))
	d := due.Sub(now)
	if d < -maxLag {
		p.start = now
		p.frames = 0
		return true
	}
	if d <= 0 {
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-p.done:
		return false
	}
}
