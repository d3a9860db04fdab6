// Copyright 2026 The Slate Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"sort"
	"sync"
	"time"
)

// Fake returns a FakeClock frozen at the given time. Nothing fires
// until Advance is called.
//
// FakeClock is safe for concurrent use.
func Fake(start time.Time) *FakeClock {
	fake := &FakeClock{now: start}
	fake.registered = sync.NewCond(&fake.mu)
	return fake
}

// FakeClock is a deterministic Clock for tests. Time moves only under
// Advance, which fires every pending wait whose deadline has been
// reached, in deadline order.
//
// AfterFunc callbacks run synchronously inside Advance; calling Sleep
// or Advance from such a callback deadlocks.
type FakeClock struct {
	mu         sync.Mutex
	now        time.Time
	pending    []*fakeTimer
	registered *sync.Cond
}

// fakeTimer is one pending wait: a timer, ticker, sleep, or callback.
type fakeTimer struct {
	deadline time.Time

	// ch receives the fire time (After, Sleep, Ticker). Nil when
	// callback is set.
	ch chan time.Time

	// callback runs synchronously on fire (AfterFunc). Nil when ch is
	// set.
	callback func()

	// period is non-zero for tickers; the timer re-arms at
	// deadline+period after each fire.
	period time.Duration

	// cancelled is set by Stop; cancelled timers never fire again.
	cancelled bool

	// done is set once a one-shot timer has fired.
	done bool
}

// Now returns the frozen current time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// After registers a one-shot wait. Non-positive durations deliver
// immediately without registering.
func (c *FakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch := make(chan time.Time, 1)
	if d <= 0 {
		ch <- c.now
		return ch
	}
	c.add(&fakeTimer{deadline: c.now.Add(d), ch: ch})
	return ch
}

// AfterFunc registers f to run when the clock passes d from now. A
// non-positive d runs f before AfterFunc returns.
func (c *FakeClock) AfterFunc(d time.Duration, f func()) *Timer {
	if d <= 0 {
		f()
		return &Timer{
			stop:  func() bool { return false },
			reset: func(time.Duration) bool { return false },
		}
	}

	c.mu.Lock()
	timer := &fakeTimer{deadline: c.now.Add(d), callback: f}
	c.add(timer)
	c.mu.Unlock()

	return &Timer{
		stop: func() bool {
			c.mu.Lock()
			defer c.mu.Unlock()
			if timer.cancelled || timer.done {
				return false
			}
			timer.cancelled = true
			return true
		},
		reset: func(d time.Duration) bool {
			c.mu.Lock()
			defer c.mu.Unlock()
			active := !timer.cancelled && !timer.done
			timer.deadline = c.now.Add(d)
			timer.cancelled = false
			if timer.done {
				// Fired timers were dropped from the pending list;
				// re-register.
				timer.done = false
				c.add(timer)
			}
			return active
		},
	}
}

// NewTicker registers a repeating wait. Panics if d <= 0.
func (c *FakeClock) NewTicker(d time.Duration) *Ticker {
	if d <= 0 {
		panic("clock: non-positive interval for NewTicker")
	}

	c.mu.Lock()
	ch := make(chan time.Time, 1)
	ticker := &fakeTimer{deadline: c.now.Add(d), ch: ch, period: d}
	c.add(ticker)
	c.mu.Unlock()

	return &Ticker{
		C: ch,
		stop: func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			ticker.cancelled = true
		},
		reset: func(d time.Duration) {
			c.mu.Lock()
			defer c.mu.Unlock()
			ticker.period = d
			ticker.deadline = c.now.Add(d)
			ticker.cancelled = false
		},
	}
}

// Sleep blocks until the clock advances past d. Returns immediately
// for non-positive d.
func (c *FakeClock) Sleep(d time.Duration) {
	if d <= 0 {
		return
	}
	<-c.After(d)
}

// add registers a pending timer and wakes WaitForTimers callers. Must
// be called with c.mu held.
func (c *FakeClock) add(timer *fakeTimer) {
	c.pending = append(c.pending, timer)
	c.registered.Broadcast()
}

// Advance moves the clock forward by d, firing every pending wait
// whose deadline falls within the new time, in deadline order. Channel
// deliveries are non-blocking (a full buffer drops the tick, matching
// time.Ticker); callbacks run synchronously. Tickers spanning several
// periods fire once per period.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	target := c.now
	c.mu.Unlock()

	// Loop because firing a ticker re-arms it, possibly within the
	// same window, and callbacks may register new timers.
	for {
		due := c.takeDue(target)
		if len(due) == 0 {
			return
		}
		sort.Slice(due, func(i, j int) bool {
			return due[i].deadline.Before(due[j].deadline)
		})
		for _, timer := range due {
			switch {
			case timer.callback != nil:
				timer.callback()
			case timer.ch != nil:
				select {
				case timer.ch <- target:
				default:
				}
			}
		}
	}
}

// takeDue removes and returns timers due at or before target,
// re-arming tickers for their next period.
func (c *FakeClock) takeDue(target time.Time) []*fakeTimer {
	c.mu.Lock()
	defer c.mu.Unlock()

	var due []*fakeTimer
	var keep []*fakeTimer
	for _, timer := range c.pending {
		switch {
		case timer.cancelled:
			// Dropped.
		case !timer.deadline.After(target):
			due = append(due, timer)
		default:
			keep = append(keep, timer)
		}
	}
	for _, timer := range due {
		if timer.period > 0 {
			timer.deadline = timer.deadline.Add(timer.period)
			keep = append(keep, timer)
		} else {
			timer.done = true
		}
	}
	c.pending = keep
	return due
}

// WaitForTimers blocks until at least n waits are registered and
// armed. Tests call this before Advance to close the race against
// goroutines that register their timers asynchronously.
func (c *FakeClock) WaitForTimers(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for c.armed() < n {
		c.registered.Wait()
	}
}

// PendingCount returns the number of armed waits.
func (c *FakeClock) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.armed()
}

// armed counts non-cancelled pending timers. Must be called with c.mu
// held.
func (c *FakeClock) armed() int {
	count := 0
	for _, timer := range c.pending {
		if !timer.cancelled {
			count++
		}
	}
	return count
}
