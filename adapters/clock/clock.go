// Package clock provides Clock implementations and a stopwatch for
// timing pipeline stages.
package clock

import (
	"sync"
	"time"

	"github.com/lsst-sqre/vo-siav2/ports"
)

// Real reads the system clock.
type Real struct{}

// Now returns the current time.
func (Real) Now() time.Time {
	return time.Now()
}

// Fake is a clock that only moves when told to.
type Fake struct {
	mu      sync.RWMutex
	current time.Time
}

// NewFake creates a fake clock set to t.
func NewFake(t time.Time) *Fake {
	return &Fake{current: t}
}

// Now returns the fake time.
func (f *Fake) Now() time.Time {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.current
}

// Advance moves the fake time forward by d.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current = f.current.Add(d)
}

// Stopwatch measures elapsed time against a Clock.
type Stopwatch struct {
	clock ports.Clock
	start time.Time
}

// Start begins timing. A nil clock uses Real.
func Start(c ports.Clock) Stopwatch {
	if c == nil {
		c = Real{}
	}
	return Stopwatch{clock: c, start: c.Now()}
}

// Elapsed returns the time since Start.
func (s Stopwatch) Elapsed() time.Duration {
	return s.clock.Now().Sub(s.start)
}

var (
	_ ports.Clock = Real{}
	_ ports.Clock = (*Fake)(nil)
)
