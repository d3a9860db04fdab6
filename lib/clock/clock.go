// Copyright 2026 The Slate Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import "time"

// Clock is the time surface Slate components depend on. Production
// code receives Real(); tests receive a Fake and control time
// explicitly.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// After returns a channel that receives the current time once
	// duration d has elapsed, like time.After. A non-positive d
	// delivers immediately.
	After(d time.Duration) <-chan time.Time

	// AfterFunc schedules f to run after duration d and returns a
	// Timer whose Stop cancels the pending call. The Timer's C is nil,
	// matching time.AfterFunc. A non-positive d runs f right away.
	AfterFunc(d time.Duration, f func()) *Timer

	// NewTicker returns a Ticker delivering ticks every d on its C
	// channel. Panics if d <= 0, like time.NewTicker.
	NewTicker(d time.Duration) *Ticker

	// Sleep blocks the calling goroutine for at least d.
	Sleep(d time.Duration)
}

// Ticker delivers periodic ticks on C. C is buffered with capacity 1;
// a slow consumer drops ticks rather than queuing them, matching
// time.Ticker.
type Ticker struct {
	// C delivers ticks.
	C <-chan time.Time

	stop  func()
	reset func(time.Duration)
}

// Stop turns the ticker off. C is not closed.
func (t *Ticker) Stop() { t.stop() }

// Reset restarts the ticker with a new interval; the next tick arrives
// after the new duration.
func (t *Ticker) Reset(d time.Duration) { t.reset(d) }

// Timer is a single scheduled event. Timers returned by AfterFunc have
// a nil C.
type Timer struct {
	// C delivers the fire time for channel-based timers; nil for
	// AfterFunc timers.
	C <-chan time.Time

	stop  func() bool
	reset func(time.Duration) bool
}

// Stop cancels the timer. It reports whether the call prevented the
// timer from firing.
func (t *Timer) Stop() bool { return t.stop() }

// Reset re-arms the timer to fire after d. It reports whether the
// timer was still active before the call.
func (t *Timer) Reset(d time.Duration) bool { return t.reset(d) }
