// Copyright 2026 The Slate Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time source.
//
// Code that reads the current time, sleeps, or schedules timers accepts
// a Clock instead of calling the time package directly. Production
// wiring passes Real(); tests pass Fake(start) and drive time
// explicitly with Advance, which makes rate-limit waits, token
// rotation, and dispatcher scheduling deterministic under test.
//
// Typical test shape:
//
//	fakeClock := clock.Fake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
//	tracker := newRateLimitTracker(fakeClock)
//	go worker(tracker)
//	fakeClock.WaitForTimers(1)          // worker registered its wait
//	fakeClock.Advance(30 * time.Second) // fire it deterministically
//
// WaitForTimers removes the registration/advance race that otherwise
// forces tests to sleep real wall time.
package clock
