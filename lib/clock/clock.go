// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import "time"

// Clock is the time source for envelope timestamps, uptime, redial
// backoff and watchdog sampling.
type Clock interface {
	Now() time.Time

	// After returns a channel that receives the clock's time once d has
	// elapsed. If d <= 0 the channel is ready immediately.
	After(d time.Duration) <-chan time.Time
}
