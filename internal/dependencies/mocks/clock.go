package mocks

import (
	"errors"
	"sync"
	"time"

	"github.com/mcoot/wordbomb/internal/dependencies/clock"
)

// ErrMockSchedule is returned by AfterFunc when FailTimers is set
var ErrMockSchedule = errors.New("mock clock: scheduling disabled")

// MockClock is a mock implementation of Clock for testing.
// Timers only fire when the clock is moved with Advance or Set.
type MockClock struct {
	mu      sync.Mutex
	current time.Time
	timers  []*mockTimer

	// FailTimers makes AfterFunc return ErrMockSchedule
	FailTimers bool

	// Stall, when set, silently drops timers whose duration it matches.
	// A dropped timer is reported as scheduled but never fires.
	Stall func(d time.Duration) bool
}

type mockTimer struct {
	clock   *MockClock
	at      time.Time
	f       func()
	done    bool
	dropped bool
}

// Ensure MockClock implements Clock
var _ clock.Clock = (*MockClock)(nil)

// NewMockClock creates a MockClock set to the given time
func NewMockClock(t time.Time) *MockClock {
	return &MockClock{current: t}
}

// Now returns the mocked current time
func (c *MockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// AfterFunc registers f to run once the clock reaches now+d
func (c *MockClock) AfterFunc(d time.Duration, f func()) (clock.Timer, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.FailTimers {
		return nil, ErrMockSchedule
	}
	t := &mockTimer{clock: c, at: c.current.Add(d), f: f}
	if c.Stall != nil && c.Stall(d) {
		t.dropped = true
	}
	c.timers = append(c.timers, t)
	return t, nil
}

// Advance moves the clock forward by the given duration and runs every timer that came due
func (c *MockClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.current.Add(d)
	c.mu.Unlock()
	c.Set(target)
}

// Set sets the clock to the given time. Timers that come due run earliest first, each with the
// clock stepped to its own deadline. Callbacks run on the caller's goroutine without the clock
// lock held, and timers they schedule inside the window also run.
func (c *MockClock) Set(t time.Time) {
	for {
		c.mu.Lock()
		next := c.nextDueLocked(t)
		if next == nil {
			c.current = t
			c.compactLocked()
			c.mu.Unlock()
			return
		}
		if next.at.After(c.current) {
			c.current = next.at
		}
		next.done = true
		dropped := next.dropped
		c.mu.Unlock()

		if !dropped {
			next.f()
		}
	}
}

func (c *MockClock) nextDueLocked(t time.Time) *mockTimer {
	var next *mockTimer
	for _, tm := range c.timers {
		if tm.done || tm.at.After(t) {
			continue
		}
		if next == nil || tm.at.Before(next.at) {
			next = tm
		}
	}
	return next
}

func (c *MockClock) compactLocked() {
	pending := c.timers[:0]
	for _, tm := range c.timers {
		if !tm.done {
			pending = append(pending, tm)
		}
	}
	c.timers = pending
}

// Pending returns the number of timers that have neither fired nor been stopped
func (c *MockClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, tm := range c.timers {
		if !tm.done {
			n++
		}
	}
	return n
}

// Stop cancels the timer if it has not run yet
func (t *mockTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.done {
		return false
	}
	t.done = true
	return true
}
