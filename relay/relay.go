// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package relay

import (
	"errors"
	"fmt"
	"sync"
)

// DefaultCapacity is the number of envelopes a relay holds when the
// configuration does not say otherwise.
const DefaultCapacity = 1024

var (
	// ErrClosed is returned by Publish after Close, and by cursor reads
	// once a closed relay has been drained.
	ErrClosed = errors.New("relay: closed")

	// ErrEmpty is returned by Cursor.TryNext when no envelope is
	// ready.
	ErrEmpty = errors.New("relay: no envelope ready")
)

// LagError reports that a cursor fell behind and Skipped envelopes
// were evicted before it could read them. The cursor has already been
// moved to the oldest retained envelope.
type LagError struct {
	Skipped uint64
}

func (e *LagError) Error() string {
	return fmt.Sprintf("relay: consumer lagged, %d envelopes skipped", e.Skipped)
}

// Relay is a bounded broadcast ring of envelopes. All methods are safe
// for concurrent use; any number of goroutines may publish.
type Relay struct {
	mutex    sync.Mutex
	slots    []Envelope
	capacity uint64
	// tail is the sequence number the next published envelope will
	// get. The relay holds sequences [tail-min(tail,capacity), tail).
	tail   uint64
	closed bool
	// wake is closed and replaced on every publish and on Close, so a
	// waiter can select on it alongside other events.
	wake chan struct{}
}

// New creates a relay holding up to capacity envelopes. Panics if
// capacity is not positive.
func New(capacity int) *Relay {
	if capacity <= 0 {
		panic(fmt.Sprintf("relay: capacity must be positive, got %d", capacity))
	}
	return &Relay{
		slots:    make([]Envelope, capacity),
		capacity: uint64(capacity),
		wake:     make(chan struct{}),
	}
}

// Publish appends envelope, evicting the oldest held envelope when the
// relay is full. Never blocks.
func (r *Relay) Publish(envelope Envelope) error {
	if envelope.Origin == "" {
		return errors.New("relay: envelope has no origin")
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.closed {
		return ErrClosed
	}
	r.slots[r.tail%r.capacity] = envelope
	r.tail++
	close(r.wake)
	r.wake = make(chan struct{})
	return nil
}

// Subscribe returns a cursor that will read every envelope published
// from now on.
func (r *Relay) Subscribe() *Cursor {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return &Cursor{relay: r, next: r.tail}
}

// Close stops further publication and wakes every waiting cursor.
// Cursors still drain held envelopes. Idempotent.
func (r *Relay) Close() {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	close(r.wake)
}

// Published returns the total number of envelopes ever published.
func (r *Relay) Published() uint64 {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return r.tail
}

// Capacity returns the maximum number of held envelopes.
func (r *Relay) Capacity() int {
	return int(r.capacity)
}

// oldestLocked returns the sequence of the oldest held envelope.
func (r *Relay) oldestLocked() uint64 {
	if r.tail < r.capacity {
		return 0
	}
	return r.tail - r.capacity
}
