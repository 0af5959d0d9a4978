// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package relay

import "context"

// readyChannel is returned by Wait when a read would not block.
var readyChannel = func() chan struct{} {
	channel := make(chan struct{})
	close(channel)
	return channel
}()

// Cursor is one consumer's read position in a relay. A cursor must be
// used by a single goroutine.
type Cursor struct {
	relay *Relay
	next  uint64
	// lagged is the total number of envelopes this cursor has missed.
	lagged uint64
}

// TryNext returns the next envelope without blocking. It returns
// [ErrEmpty] when nothing is ready, a [*LagError] when envelopes were
// evicted since the last read, and [ErrClosed] once a closed relay is
// drained.
func (c *Cursor) TryNext() (Envelope, error) {
	relay := c.relay
	relay.mutex.Lock()
	defer relay.mutex.Unlock()

	if oldest := relay.oldestLocked(); c.next < oldest {
		skipped := oldest - c.next
		c.next = oldest
		c.lagged += skipped
		return Envelope{}, &LagError{Skipped: skipped}
	}
	if c.next < relay.tail {
		envelope := relay.slots[c.next%relay.capacity]
		c.next++
		return envelope, nil
	}
	if relay.closed {
		return Envelope{}, ErrClosed
	}
	return Envelope{}, ErrEmpty
}

// Wait returns a channel that is closed when TryNext would return
// something other than ErrEmpty. The channel is only valid for one
// wakeup; call Wait again after each TryNext that returns ErrEmpty.
func (c *Cursor) Wait() <-chan struct{} {
	relay := c.relay
	relay.mutex.Lock()
	defer relay.mutex.Unlock()
	if c.next < relay.tail || relay.closed {
		return readyChannel
	}
	return relay.wake
}

// Next blocks until an envelope, a lag notification, or closure is
// available, or ctx is done.
func (c *Cursor) Next(ctx context.Context) (Envelope, error) {
	for {
		envelope, err := c.TryNext()
		if err != ErrEmpty {
			return envelope, err
		}
		select {
		case <-c.Wait():
		case <-ctx.Done():
			return Envelope{}, ctx.Err()
		}
	}
}

// Lagged returns the total number of envelopes this cursor has missed
// to eviction.
func (c *Cursor) Lagged() uint64 {
	return c.lagged
}
