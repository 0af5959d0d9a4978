// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"fmt"
	"time"
)

// Fataler is the part of testing.TB the helpers use.
type Fataler interface {
	Helper()
	Fatalf(format string, args ...any)
}

// RequireReceive returns the next value from ch, failing the test if
// none arrives within timeout or ch is closed.
//
//	written := testutil.RequireReceive(t, udp.written, 5*time.Second, "frame on %s", address)
func RequireReceive[T any](t Fataler, ch <-chan T, timeout time.Duration, waitingFor ...any) T {
	t.Helper()
	select {
	case value, ok := <-ch:
		if !ok {
			t.Fatalf("channel closed while waiting for %s", describe(waitingFor))
		}
		return value
	case <-time.After(timeout):
		t.Fatalf("no value after %v waiting for %s", timeout, describe(waitingFor))
	}
	panic("unreachable")
}

// RequireClosed fails the test unless ch is closed (or yields a value)
// within timeout.
func RequireClosed(t Fataler, ch <-chan struct{}, timeout time.Duration, waitingFor ...any) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(timeout):
		t.Fatalf("channel still open after %v waiting for %s", timeout, describe(waitingFor))
	}
}

// describe renders either a plain description or a format string and
// its arguments.
func describe(waitingFor []any) string {
	if len(waitingFor) == 0 {
		return "(unnamed event)"
	}
	format, ok := waitingFor[0].(string)
	if !ok {
		return fmt.Sprint(waitingFor...)
	}
	return fmt.Sprintf(format, waitingFor[1:]...)
}
