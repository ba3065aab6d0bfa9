package sim

import (
	"sync"
	"time"
)

// Clock is the time source behind the clock property. Times are seconds.
type Clock interface {
	// Now returns the current time.
	Now() float64
	// Advance moves the clock one tick of dt seconds and returns the new time.
	Advance(dt float64) float64
}

// StepClock is simulated time that moves exactly dt per tick.
//
// Thread-safety: StepClock is safe for concurrent use via internal mutex.
type StepClock struct {
	mu  sync.Mutex
	now float64
}

// NewStepClock creates a clock reading start.
func NewStepClock(start float64) *StepClock {
	return &StepClock{now: start}
}

// Now returns the current simulated time.
func (c *StepClock) Now() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance adds dt to the simulated time.
func (c *StepClock) Advance(dt float64) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now += dt
	return c.now
}

// WallClock reports seconds elapsed since it was created. Advance ignores dt.
type WallClock struct {
	start time.Time
	now   func() time.Time
}

// NewWallClock creates a clock starting at zero now.
func NewWallClock() *WallClock {
	return newWallClock(time.Now)
}

func newWallClock(now func() time.Time) *WallClock {
	return &WallClock{start: now(), now: now}
}

// Now returns the seconds elapsed since the clock was created.
func (c *WallClock) Now() float64 {
	return c.now().Sub(c.start).Seconds()
}

// Advance returns Now.
func (c *WallClock) Advance(float64) float64 {
	return c.Now()
}
