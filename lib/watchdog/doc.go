// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package watchdog detects when the Go scheduler stops servicing the
// bridge's goroutines promptly.
//
// A monitor that runs as an ordinary goroutine cannot notice that the
// scheduler has stalled, because it stalls too. The [Watchdog] monitor
// therefore locks itself to a dedicated OS thread and talks to the
// scheduler only through a lightweight probe goroutine:
//
//  1. The monitor sleeps for the sampling period P. If the sleep took
//     more than P+50ms, the monitor's own thread was delayed and a
//     warning is logged; that indicates host overload rather than a
//     scheduler stall.
//  2. It reads the age of the last probe request: how long the probe
//     took to answer it, or how long it has been waiting if it has not
//     answered yet.
//  3. It classifies the age with [Classify] and logs accordingly.
//  4. It posts a new probe request unless one is still pending.
//
// The thresholds are fixed: ages up to 10ms are normal, up to 100ms are
// logged at info, up to P at warn, and beyond P at error as a stalled
// scheduler. P must therefore exceed 100ms ([ValidatePeriod]).
//
// The watchdog only logs. It never restarts, cancels, or otherwise
// changes the system it observes.
package watchdog
