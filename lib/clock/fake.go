// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"slices"
	"sync"
	"time"
)

// Fake returns a FakeClock stopped at initial.
func Fake(initial time.Time) *FakeClock {
	fake := &FakeClock{now: initial}
	fake.registered = sync.NewCond(&fake.mutex)
	return fake
}

// FakeClock only moves when Advance is called. Safe for concurrent use.
type FakeClock struct {
	mutex      sync.Mutex
	now        time.Time
	timers     []fakeTimer
	registered *sync.Cond
}

type fakeTimer struct {
	deadline time.Time
	fire     chan time.Time
}

func (c *FakeClock) Now() time.Time {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.now
}

func (c *FakeClock) After(d time.Duration) <-chan time.Time {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	fire := make(chan time.Time, 1)
	if d <= 0 {
		fire <- c.now
		return fire
	}
	c.timers = append(c.timers, fakeTimer{deadline: c.now.Add(d), fire: fire})
	c.registered.Broadcast()
	return fire
}

// Advance moves the clock forward by d and fires, earliest first, every
// timer whose deadline has been reached.
func (c *FakeClock) Advance(d time.Duration) {
	c.mutex.Lock()
	c.now = c.now.Add(d)
	now := c.now
	var expired []fakeTimer
	c.timers = slices.DeleteFunc(c.timers, func(timer fakeTimer) bool {
		if timer.deadline.After(now) {
			return false
		}
		expired = append(expired, timer)
		return true
	})
	c.mutex.Unlock()

	slices.SortFunc(expired, func(a, b fakeTimer) int {
		return a.deadline.Compare(b.deadline)
	})
	for _, timer := range expired {
		timer.fire <- now
	}
}

// WaitForTimers blocks until at least n timers are pending. Call it
// before Advance so the goroutine under test is known to be waiting.
func (c *FakeClock) WaitForTimers(n int) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	for len(c.timers) < n {
		c.registered.Wait()
	}
}

// Pending returns the number of timers that have not fired.
func (c *FakeClock) Pending() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return len(c.timers)
}
