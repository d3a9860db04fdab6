// Copyright 2026 The Slate Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"sync/atomic"
	"testing"
	"time"
)

var epoch = time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC)

func TestFakeNow(t *testing.T) {
	fake := Fake(epoch)
	if got := fake.Now(); !got.Equal(epoch) {
		t.Fatalf("Now() = %v, want %v", got, epoch)
	}
	fake.Advance(90 * time.Second)
	want := epoch.Add(90 * time.Second)
	if got := fake.Now(); !got.Equal(want) {
		t.Fatalf("Now() after Advance = %v, want %v", got, want)
	}
}

func TestFakeAfter(t *testing.T) {
	fake := Fake(epoch)
	ch := fake.After(10 * time.Second)

	fake.Advance(9 * time.Second)
	select {
	case <-ch:
		t.Fatal("timer fired before its deadline")
	default:
	}

	fake.Advance(time.Second)
	select {
	case got := <-ch:
		want := epoch.Add(10 * time.Second)
		if !got.Equal(want) {
			t.Fatalf("fire time = %v, want %v", got, want)
		}
	default:
		t.Fatal("timer did not fire at its deadline")
	}
}

func TestFakeAfterImmediate(t *testing.T) {
	fake := Fake(epoch)
	select {
	case <-fake.After(0):
	default:
		t.Fatal("After(0) did not deliver immediately")
	}
	select {
	case <-fake.After(-time.Second):
	default:
		t.Fatal("After(-1s) did not deliver immediately")
	}
}

func TestFakeAfterOrdering(t *testing.T) {
	fake := Fake(epoch)
	var order []int
	fake.AfterFunc(3*time.Second, func() { order = append(order, 3) })
	fake.AfterFunc(1*time.Second, func() { order = append(order, 1) })
	fake.AfterFunc(2*time.Second, func() { order = append(order, 2) })

	fake.Advance(5 * time.Second)

	if len(order) != 3 || order[0] != 1 || order[1] != 2 || order[2] != 3 {
		t.Fatalf("callbacks fired in order %v, want [1 2 3]", order)
	}
}

func TestFakeAfterFuncStop(t *testing.T) {
	fake := Fake(epoch)
	var fired atomic.Bool
	timer := fake.AfterFunc(time.Second, func() { fired.Store(true) })

	if !timer.Stop() {
		t.Fatal("Stop() = false for an armed timer")
	}
	if timer.Stop() {
		t.Fatal("second Stop() = true, want false")
	}

	fake.Advance(2 * time.Second)
	if fired.Load() {
		t.Fatal("stopped timer fired")
	}
}

func TestFakeAfterFuncReset(t *testing.T) {
	fake := Fake(epoch)
	var count atomic.Int32
	timer := fake.AfterFunc(time.Second, func() { count.Add(1) })

	fake.Advance(time.Second)
	if got := count.Load(); got != 1 {
		t.Fatalf("fire count = %d, want 1", got)
	}

	// Reset after firing re-arms the timer.
	if timer.Reset(time.Second) {
		t.Fatal("Reset() on a fired timer = true, want false")
	}
	fake.Advance(time.Second)
	if got := count.Load(); got != 2 {
		t.Fatalf("fire count after reset = %d, want 2", got)
	}
}

func TestFakeAfterFuncImmediate(t *testing.T) {
	fake := Fake(epoch)
	ran := false
	fake.AfterFunc(0, func() { ran = true })
	if !ran {
		t.Fatal("AfterFunc(0) did not run synchronously")
	}
}

func TestFakeTicker(t *testing.T) {
	fake := Fake(epoch)
	ticker := fake.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for i := 1; i <= 3; i++ {
		fake.Advance(10 * time.Second)
		select {
		case <-ticker.C:
		default:
			t.Fatalf("tick %d not delivered", i)
		}
	}
}

func TestFakeTickerDropsWhenFull(t *testing.T) {
	fake := Fake(epoch)
	ticker := fake.NewTicker(time.Second)
	defer ticker.Stop()

	// Nobody drains the channel: the buffer holds one tick, the
	// others are dropped rather than blocking Advance.
	fake.Advance(5 * time.Second)

	got := 0
	for {
		select {
		case <-ticker.C:
			got++
			continue
		default:
		}
		break
	}
	if got != 1 {
		t.Fatalf("buffered ticks = %d, want 1", got)
	}
}

func TestFakeTickerStop(t *testing.T) {
	fake := Fake(epoch)
	ticker := fake.NewTicker(time.Second)
	ticker.Stop()

	fake.Advance(3 * time.Second)
	select {
	case <-ticker.C:
		t.Fatal("stopped ticker delivered a tick")
	default:
	}
}

func TestFakeTickerReset(t *testing.T) {
	fake := Fake(epoch)
	ticker := fake.NewTicker(time.Hour)
	defer ticker.Stop()

	ticker.Reset(time.Second)
	fake.Advance(time.Second)
	select {
	case <-ticker.C:
	default:
		t.Fatal("reset ticker did not fire at the new interval")
	}
}

func TestFakeSleep(t *testing.T) {
	fake := Fake(epoch)
	done := make(chan struct{})
	go func() {
		fake.Sleep(time.Minute)
		close(done)
	}()

	fake.WaitForTimers(1)
	fake.Advance(time.Minute)

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Sleep did not return after Advance")
	}
}

func TestFakeWaitForTimers(t *testing.T) {
	fake := Fake(epoch)
	for i := 0; i < 3; i++ {
		go fake.After(time.Minute)
	}
	fake.WaitForTimers(3)
	if got := fake.PendingCount(); got != 3 {
		t.Fatalf("PendingCount() = %d, want 3", got)
	}
}

func TestFakePendingCountExcludesStopped(t *testing.T) {
	fake := Fake(epoch)
	fake.After(time.Minute)
	timer := fake.AfterFunc(time.Minute, func() {})
	timer.Stop()
	if got := fake.PendingCount(); got != 1 {
		t.Fatalf("PendingCount() = %d, want 1", got)
	}
}

func TestFakeCallbackRegistersTimer(t *testing.T) {
	fake := Fake(epoch)
	var second atomic.Bool
	fake.AfterFunc(time.Second, func() {
		fake.AfterFunc(time.Second, func() { second.Store(true) })
	})

	// One Advance spans both deadlines; the nested registration fires
	// within the same window.
	fake.Advance(2 * time.Second)
	if !second.Load() {
		t.Fatal("timer registered from a callback did not fire")
	}
}
