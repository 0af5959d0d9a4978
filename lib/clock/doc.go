// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides the injectable time source used by the bridge
// runtime, the overlay redial loop and the watchdog.
//
// Production wiring uses [Real]. Tests use [Fake], whose time only
// moves when Advance is called. Each After call on a [FakeClock]
// registers a pending timer, so a test waits for the goroutine under
// test to reach its After before moving time:
//
//	fake := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	go watchdog.Start()
//	fake.WaitForTimers(1)
//	fake.Advance(time.Second)
package clock
