package testutil

import (
	"sync"
	"time"
)

// DefaultBase is the first instant a StepClock reports when no base is given.
var DefaultBase = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

// StepClock is a deterministic clock for tests.
//
// Each call to Now returns the previous value advanced by Step, so rows
// written in sequence carry strictly increasing timestamps.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type StepClock struct {
	mu   sync.Mutex
	base time.Time
	step time.Duration
	n    int64
}

// NewStepClock creates a clock starting at base and advancing by step.
//
// A zero base means DefaultBase; a zero step means one millisecond.
func NewStepClock(base time.Time, step time.Duration) *StepClock {
	if base.IsZero() {
		base = DefaultBase
	}
	if step == 0 {
		step = time.Millisecond
	}
	return &StepClock{base: base.UTC(), step: step}
}

// Now returns the next instant. The first call returns base.
func (c *StepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.base.Add(time.Duration(c.n) * c.step)
	c.n++
	return t
}

// Calls returns how many times Now has been called.
func (c *StepClock) Calls() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

// Reset rewinds the clock to base.
//
// Useful for running the same scenario twice and comparing output.
func (c *StepClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n = 0
}
