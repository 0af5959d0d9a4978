// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import "sync"

// UnitState is the lifecycle state of one unit of work.
type UnitState string

const (
	StateConnecting UnitState = "connecting"
	StateRunning    UnitState = "running"
	StateEnded      UnitState = "ended"
	StateDisabled   UnitState = "disabled"
)

// EndpointStatus is a snapshot of one connection handler.
type EndpointStatus struct {
	Endpoint string    `json:"endpoint"`
	Version  string    `json:"version"`
	State    UnitState `json:"state"`

	// FramesIn counts frames read from the transport and published.
	FramesIn uint64 `json:"frames_in"`

	// FramesOut counts frames written to the transport.
	FramesOut uint64 `json:"frames_out"`

	// FramesSkipped counts frames not carried because of the endpoint's
	// protocol version.
	FramesSkipped uint64 `json:"frames_skipped"`

	// FramesUnsent counts frames not written because a server endpoint
	// (udpin, tcpin) had no remote peer.
	FramesUnsent uint64 `json:"frames_unsent"`

	WriteFailures uint64 `json:"write_failures"`

	// Lagged counts relay envelopes this handler missed to eviction.
	Lagged uint64 `json:"lagged"`

	// Error is the terminal error once State is ended.
	Error string `json:"error,omitempty"`
}

// TaskStatus is a snapshot of one overlay task.
type TaskStatus struct {
	Task   string    `json:"task"`
	Key    string    `json:"key"`
	State  UnitState `json:"state"`
	Frames uint64    `json:"frames"`
	// Dropped counts payloads rejected (ingress) or relay envelopes
	// missed to eviction (egress).
	Dropped uint64 `json:"dropped"`
	Error   string `json:"error,omitempty"`
}

// endpointTracker accumulates an EndpointStatus. Written by the
// handler, read by status queries.
type endpointTracker struct {
	mutex  sync.Mutex
	status EndpointStatus
}

func newEndpointTracker(descriptor EndpointDescriptor) *endpointTracker {
	return &endpointTracker{status: EndpointStatus{
		Endpoint: descriptor.Address,
		Version:  descriptor.Version.String(),
		State:    StateConnecting,
	}}
}

func (t *endpointTracker) update(change func(*EndpointStatus)) {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	change(&t.status)
}

func (t *endpointTracker) snapshot() EndpointStatus {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	return t.status
}

type taskTracker struct {
	mutex  sync.Mutex
	status TaskStatus
}

func newTaskTracker(task, key string, state UnitState) *taskTracker {
	return &taskTracker{status: TaskStatus{Task: task, Key: key, State: state}}
}

func (t *taskTracker) update(change func(*TaskStatus)) {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	change(&t.status)
}

func (t *taskTracker) snapshot() TaskStatus {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	return t.status
}
