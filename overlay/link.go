// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package overlay

import (
	"net"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/bureau-foundation/mavlink-bridge/lib/codec"
)

// linkQueueCapacity bounds messages waiting to be written to one peer.
const linkQueueCapacity = 4096

// link is one established connection to a remote peer session.
type link struct {
	peerID string
	// dialerID is the identity of the side that opened the TCP
	// connection. When two sessions end up with two links to each
	// other, both keep the one dialed by the smaller identity.
	dialerID   string
	connection net.Conn

	outbound  chan wireMessage
	done      chan struct{}
	closeOnce sync.Once
	dropped   atomic.Uint64

	// The peer's declarations. Guarded by the owning session's mutex.
	subscriptions map[uint64]string
	tokens        map[uint64]string
}

func newLink(peerID, dialerID string, connection net.Conn) *link {
	return &link{
		peerID:        peerID,
		dialerID:      dialerID,
		connection:    connection,
		outbound:      make(chan wireMessage, linkQueueCapacity),
		done:          make(chan struct{}),
		subscriptions: make(map[uint64]string),
		tokens:        make(map[uint64]string),
	}
}

// preferredBy reports whether this is the link both ends keep when two
// links to the same peer exist. localID is the identity of the session
// evaluating the link.
func (l *link) preferredBy(localID string) bool {
	return l.dialerID == min(localID, l.peerID)
}

// sendData queues a put. Puts are dropped when the peer is not keeping
// up.
func (l *link) sendData(message wireMessage) {
	select {
	case l.outbound <- message:
	case <-l.done:
	default:
		l.dropped.Add(1)
	}
}

// sendControl queues a declaration. Losing a declaration would leave
// the peer with a stale view, so a full queue drops the link instead;
// redialing resynchronizes both sides.
func (l *link) sendControl(message wireMessage) {
	select {
	case l.outbound <- message:
	case <-l.done:
	default:
		l.close()
	}
}

func (l *link) writeLoop(encoder *codec.Encoder) {
	for {
		select {
		case message := <-l.outbound:
			if err := encoder.Encode(message); err != nil {
				l.close()
				return
			}
		case <-l.done:
			return
		}
	}
}

func (l *link) close() {
	l.closeOnce.Do(func() {
		close(l.done)
		l.connection.Close()
	})
}

func splitHostPort(address string) (string, int, error) {
	host, port, err := net.SplitHostPort(address)
	if err != nil {
		return "", 0, err
	}
	number, err := strconv.Atoi(port)
	if err != nil || number < 0 || number > 65535 {
		return "", 0, &net.AddrError{Err: "invalid port", Addr: address}
	}
	return host, number, nil
}
