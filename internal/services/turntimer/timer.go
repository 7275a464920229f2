package turntimer

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mcoot/wordbomb/internal/dependencies/clock"
	"github.com/mcoot/wordbomb/internal/model"
)

// Handle identifies one armed deadline. The zero Handle never matches a live timer.
type Handle struct {
	gen uint64
}

// IsZero reports whether the handle was never armed
func (h Handle) IsZero() bool {
	return h.gen == 0
}

// FireFunc is invoked at most once per handle when its deadline passes
type FireFunc func(h Handle)

// Timer holds at most one live deadline. Arming a new deadline invalidates the previous handle.
// Cancel and fire are decided under one lock, so for any handle exactly one of them can win.
type Timer struct {
	clock  clock.Clock
	logger *slog.Logger

	mu       sync.Mutex
	gen      uint64
	armed    bool
	live     clock.Timer
	deadline time.Time
}

// New creates a new Timer
func New(clk clock.Clock, logger *slog.Logger) *Timer {
	return &Timer{
		clock:  clk,
		logger: logger.With(slog.String("component", "turntimer")),
	}
}

// Arm schedules fire to run after d and returns the handle for this deadline
func (t *Timer) Arm(d time.Duration, fire FireFunc) (Handle, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stopLocked()
	t.gen++
	h := Handle{gen: t.gen}

	live, err := t.clock.AfterFunc(d, func() {
		if t.claim(h) {
			fire(h)
		}
	})
	if err != nil || live == nil {
		t.logger.Error("failed to schedule turn timer",
			slog.Duration("duration", d),
			slog.Any("error", err),
		)
		return Handle{}, fmt.Errorf("%w: %v", model.ErrScheduleFailed, err)
	}

	t.armed = true
	t.live = live
	t.deadline = t.clock.Now().Add(d)
	return h, nil
}

// Cancel stops the deadline for h. Returns true only if the callback had not been claimed yet,
// in which case it is guaranteed never to run. Safe to call on stale or fired handles.
func (t *Timer) Cancel(h Handle) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if h.gen != t.gen || !t.armed {
		return false
	}
	t.stopLocked()
	return true
}

// Disarm cancels whatever deadline is live
func (t *Timer) Disarm() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopLocked()
}

// Pending reports whether h is the live handle and has neither fired nor been cancelled
func (t *Timer) Pending(h Handle) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return h.gen == t.gen && t.armed
}

// Deadline returns the live deadline, if any
func (t *Timer) Deadline() (time.Time, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.deadline, t.armed
}

func (t *Timer) claim(h Handle) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if h.gen != t.gen || !t.armed {
		return false
	}
	t.armed = false
	t.live = nil
	return true
}

func (t *Timer) stopLocked() {
	if t.live != nil {
		t.live.Stop()
	}
	t.armed = false
	t.live = nil
}
