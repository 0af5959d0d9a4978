// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil holds the timeout helpers shared by the bridge,
// relay, transport and watchdog tests.
//
// [RequireReceive] and [RequireClosed] wrap the select-with-deadline
// pattern so a hung test fails naming the event it was waiting for
// instead of stalling until the go test deadline. Both call t.Fatalf.
package testutil
