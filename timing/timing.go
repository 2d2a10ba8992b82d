// Package timing provides the clocks and the coarse-sleep-then-spin waiter
// used to schedule recorded input.
package timing

import (
	"context"
	"sync"
	"time"
)

// Clock is a monotonic time source.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

// SystemClock is the real clock. time.Now carries a monotonic reading, so
// differences between two Now values never run backwards.
type SystemClock struct{}

func (SystemClock) Now() time.Time        { return time.Now() }
func (SystemClock) Sleep(d time.Duration) { time.Sleep(d) }

// Stopwatch measures elapsed time from a fixed start.
type Stopwatch struct {
	clock Clock
	start time.Time
}

// Start starts a stopwatch at zero.
func Start(c Clock) Stopwatch {
	return Stopwatch{clock: c, start: c.Now()}
}

// Elapsed returns the time since the stopwatch was started.
func (s Stopwatch) Elapsed() time.Duration {
	return s.clock.Now().Sub(s.start)
}

// Resolution raises the scheduler's timer resolution while held.
type Resolution interface {
	Acquire() (release func())
}

// DefaultResolution leaves the timer resolution alone.
type DefaultResolution struct{}

func (DefaultResolution) Acquire() func() { return func() {} }

// Waiter blocks until a scheduled offset has elapsed, sleeping in coarse
// steps while the deadline is far away and spinning for the final margin.
type Waiter struct {
	Clock Clock
	// Step is the coarse sleep granularity.
	Step time.Duration
	// SpinMargin is the remaining time below which the waiter stops sleeping.
	SpinMargin time.Duration
}

// NewWaiter returns a waiter with a 1ms sleep step and a 2ms spin margin.
func NewWaiter(c Clock) *Waiter {
	return &Waiter{
		Clock:      c,
		Step:       time.Millisecond,
		SpinMargin: 2 * time.Millisecond,
	}
}

// WaitUntil blocks until sw has reached at. It returns false if ctx was
// cancelled first. It never returns true before at has elapsed.
func (w *Waiter) WaitUntil(ctx context.Context, sw Stopwatch, at time.Duration) bool {
	for {
		if ctx.Err() != nil {
			return false
		}

		remaining := at - sw.Elapsed()
		if remaining <= 0 {
			return true
		}
		if remaining > w.SpinMargin {
			w.Clock.Sleep(w.Step)
		}
	}
}

// Sleep waits for d in coarse steps, returning false if ctx was cancelled.
func (w *Waiter) Sleep(ctx context.Context, d time.Duration) bool {
	sw := Start(w.Clock)
	for {
		if ctx.Err() != nil {
			return false
		}

		remaining := d - sw.Elapsed()
		if remaining <= 0 {
			return true
		}
		w.Clock.Sleep(min(remaining, 10*time.Millisecond))
	}
}

// ManualClock is a Clock that only moves when slept on or read.
// Every Now call advances it by Tick, which lets spin loops terminate.
type ManualClock struct {
	mu   sync.Mutex
	now  time.Time
	Tick time.Duration
}

// NewManualClock returns a clock starting at an arbitrary fixed instant.
func NewManualClock() *ManualClock {
	return &ManualClock{
		now:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Tick: 50 * time.Microsecond,
	}
}

func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now
	c.now = c.now.Add(c.Tick)
	return t
}

func (c *ManualClock) Sleep(d time.Duration) {
	c.Advance(d)
}

// Advance moves the clock forward.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}
