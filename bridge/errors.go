// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import "fmt"

// ConfigError reports invalid configuration. Startup is aborted before
// any unit of work starts.
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %v", e.Field, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// ConnectError reports that an endpoint's transport could not be
// opened. It ends that endpoint's connection handler.
type ConnectError struct {
	Endpoint string
	Err      error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("endpoint %s: connect: %v", e.Endpoint, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

// ReadError reports that an open transport failed on read. It ends
// that endpoint's connection handler.
type ReadError struct {
	Endpoint string
	Err      error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("endpoint %s: read: %v", e.Endpoint, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

// WriteError reports a failed transport write. It is logged and the
// handler keeps running.
type WriteError struct {
	Endpoint string
	Err      error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("endpoint %s: write: %v", e.Endpoint, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// OverlayError reports a declare, put, or receive failure on the
// overlay. It ends the overlay task named by Task.
type OverlayError struct {
	Task      string
	Operation string
	Err       error
}

func (e *OverlayError) Error() string {
	return fmt.Sprintf("overlay %s: %s: %v", e.Task, e.Operation, e.Err)
}

func (e *OverlayError) Unwrap() error { return e.Err }

// LivelinessError reports that a liveliness token could not be
// declared at startup. Startup is aborted.
type LivelinessError struct {
	Key string
	Err error
}

func (e *LivelinessError) Error() string {
	return fmt.Sprintf("declaring liveliness token %s: %v", e.Key, e.Err)
}

func (e *LivelinessError) Unwrap() error { return e.Err }
