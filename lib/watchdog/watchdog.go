// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package watchdog

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/bureau-foundation/mavlink-bridge/lib/clock"
)

const (
	// QuietThreshold is the largest probe age that is not logged.
	QuietThreshold = 10 * time.Millisecond

	// InfoThreshold is the largest probe age logged at info level.
	InfoThreshold = 100 * time.Millisecond

	// HostDelayTolerance is how much longer than the period the
	// monitor's own sleep may take before it reports its thread as
	// delayed.
	HostDelayTolerance = 50 * time.Millisecond
)

// Severity is the outcome of classifying a probe age.
type Severity int

const (
	SeverityNone Severity = iota
	SeverityInfo
	SeverityWarn
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityNone:
		return "none"
	case SeverityInfo:
		return "info"
	case SeverityWarn:
		return "warn"
	case SeverityError:
		return "error"
	default:
		return fmt.Sprintf("Severity(%d)", int(s))
	}
}

// Classify maps a probe age to a severity for sampling period period.
func Classify(age, period time.Duration) Severity {
	switch {
	case age <= QuietThreshold:
		return SeverityNone
	case age <= InfoThreshold:
		return SeverityInfo
	case age <= period:
		return SeverityWarn
	default:
		return SeverityError
	}
}

// ValidatePeriod checks that period exceeds InfoThreshold, so that
// every severity band is reachable.
func ValidatePeriod(period time.Duration) error {
	if period <= InfoThreshold {
		return fmt.Errorf("watchdog period %v must be greater than %v", period, InfoThreshold)
	}
	return nil
}

// Config configures a Watchdog.
type Config struct {
	Period time.Duration

	// Clock defaults to clock.Real().
	Clock clock.Clock

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Watchdog samples scheduler latency. Create with New, then Start.
type Watchdog struct {
	period time.Duration
	clock  clock.Clock
	logger *slog.Logger

	requests chan struct{}

	mutex     sync.Mutex
	requested time.Time
	answered  time.Time
	pending   bool
	// hasSample is false until the first probe request is posted.
	hasSample bool

	cancel    context.CancelFunc
	waitGroup sync.WaitGroup
}

// New validates config and returns a stopped Watchdog.
func New(config Config) (*Watchdog, error) {
	if err := ValidatePeriod(config.Period); err != nil {
		return nil, err
	}
	watchdogClock := config.Clock
	if watchdogClock == nil {
		watchdogClock = clock.Real()
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Watchdog{
		period:   config.Period,
		clock:    watchdogClock,
		logger:   logger.With("component", "watchdog"),
		requests: make(chan struct{}, 1),
	}, nil
}

// Start launches the probe goroutine and the monitor thread. They run
// until Stop.
func (w *Watchdog) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel

	w.waitGroup.Add(2)
	go func() {
		defer w.waitGroup.Done()
		w.runProbe(ctx)
	}()
	go func() {
		defer w.waitGroup.Done()
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		w.runMonitor(ctx)
	}()
	w.logger.Info("watchdog started", "period", w.period)
}

// Stop ends both goroutines and waits for them.
func (w *Watchdog) Stop() {
	if w.cancel == nil {
		return
	}
	w.cancel()
	w.waitGroup.Wait()
}

// runProbe answers each request as soon as the scheduler runs it.
func (w *Watchdog) runProbe(ctx context.Context) {
	for {
		select {
		case <-w.requests:
			now := w.clock.Now()
			w.mutex.Lock()
			w.answered = now
			w.pending = false
			w.mutex.Unlock()
		case <-ctx.Done():
			return
		}
	}
}

func (w *Watchdog) runMonitor(ctx context.Context) {
	for {
		start := w.clock.Now()
		select {
		case <-w.clock.After(w.period):
		case <-ctx.Done():
			return
		}
		now := w.clock.Now()

		if elapsed := now.Sub(start); elapsed > w.period+HostDelayTolerance {
			w.logger.Warn("watchdog thread delayed, host may be overloaded",
				"elapsed", elapsed, "period", w.period)
		}

		if age, ok := w.probeAge(now); ok {
			w.report(age)
		}
		w.postRequest(now)
	}
}

// probeAge returns how long the last probe request took to answer, or
// has been waiting so far. ok is false before the first request.
func (w *Watchdog) probeAge(now time.Time) (time.Duration, bool) {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	if !w.hasSample {
		return 0, false
	}
	if w.pending {
		return now.Sub(w.requested), true
	}
	return w.answered.Sub(w.requested), true
}

func (w *Watchdog) postRequest(now time.Time) {
	w.mutex.Lock()
	if w.pending {
		w.mutex.Unlock()
		return
	}
	w.requested = now
	w.pending = true
	w.hasSample = true
	w.mutex.Unlock()

	select {
	case w.requests <- struct{}{}:
	default:
	}
}

func (w *Watchdog) report(age time.Duration) {
	switch Classify(age, w.period) {
	case SeverityInfo:
		w.logger.Info("scheduler latency", "age", age)
	case SeverityWarn:
		w.logger.Warn("scheduler latency high", "age", age, "period", w.period)
	case SeverityError:
		w.logger.Error("scheduler stalled", "age", age, "period", w.period)
	}
}
