// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"errors"
	"time"

	"github.com/bureau-foundation/mavlink-bridge/lib/mavframe"
)

// DefaultWriteTimeout bounds one write to a stream link or to one
// tcpin client.
const DefaultWriteTimeout = time.Second

// ErrNoPeers is returned by WriteFrame on a server link (udpin, tcpin)
// that has no remote peer to send to. The frame was not sent, and the
// link remains usable.
var ErrNoPeers = errors.New("transport: no remote peers")

// Conn is an open link to one MAVLink endpoint. ReadFrame and
// WriteFrame may be called concurrently with each other; neither may be
// called concurrently with itself.
type Conn interface {
	// ReadFrame blocks until the next complete frame arrives. An error
	// means the link can no longer be read.
	ReadFrame() (mavframe.Frame, error)

	// WriteFrame sends one encoded frame. For links with several
	// remote peers (udpin, tcpin) the frame goes to all of them. A
	// write error never makes the link unreadable.
	WriteFrame(raw []byte) error

	// Close releases the link and unblocks any pending ReadFrame.
	Close() error
}

// Opener opens endpoint links by address.
type Opener interface {
	Open(ctx context.Context, address string) (Conn, error)
}
