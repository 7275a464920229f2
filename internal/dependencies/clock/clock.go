package clock

import "time"

// Timer is a scheduled callback that can be stopped before it runs
type Timer interface {
	// Stop prevents the callback from running. Returns false if it already ran or was stopped.
	Stop() bool
}

// Clock provides time operations that can be mocked for testing
type Clock interface {
	Now() time.Time

	// AfterFunc runs f on its own goroutine once d has elapsed
	AfterFunc(d time.Duration, f func()) (Timer, error)
}

// RealClock implements Clock using the system clock
type RealClock struct{}

// New creates a new RealClock
func New() *RealClock {
	return &RealClock{}
}

// Now returns the current time
func (c *RealClock) Now() time.Time {
	return time.Now()
}

// AfterFunc schedules f with the runtime timer
func (c *RealClock) AfterFunc(d time.Duration, f func()) (Timer, error) {
	return time.AfterFunc(d, f), nil
}
