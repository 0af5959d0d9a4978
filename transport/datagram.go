// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"errors"
	"net"
	"sync"
	"time"

	"github.com/bureau-foundation/mavlink-bridge/lib/mavframe"
)

// maxDatagramSize covers any UDP payload.
const maxDatagramSize = 65535

const (
	// udpPeerIdleTimeout is how long a udpin sender keeps receiving
	// frames after its last datagram.
	udpPeerIdleTimeout = 30 * time.Second

	// maxUDPPeers bounds the udpin sender table. When it is full the
	// longest-silent sender is forgotten.
	maxUDPPeers = 64
)

// datagramConn carries frames over UDP. A datagram may hold several
// frames; a frame never spans datagrams, so trailing partial frames are
// dropped with the datagram.
type datagramConn struct {
	socket net.PacketConn

	// remote is the fixed destination for udpout and udpbcast. When nil
	// (udpin) frames go to every sender heard from within
	// udpPeerIdleTimeout.
	remote net.Addr

	// ignore, when set, drops datagrams from matching senders.
	ignore func(net.Addr) bool

	// now is time.Now outside tests.
	now func() time.Time

	buffer  []byte
	pending []mavframe.Frame

	peersMutex sync.Mutex
	peers      map[string]*udpPeer
}

type udpPeer struct {
	address  net.Addr
	lastSeen time.Time
}

func newDatagramConn(socket net.PacketConn, remote net.Addr) *datagramConn {
	return &datagramConn{
		socket: socket,
		remote: remote,
		now:    time.Now,
		buffer: make([]byte, maxDatagramSize),
		peers:  make(map[string]*udpPeer),
	}
}

func (c *datagramConn) ReadFrame() (mavframe.Frame, error) {
	for len(c.pending) == 0 {
		size, from, err := c.socket.ReadFrom(c.buffer)
		if err != nil {
			return mavframe.Frame{}, err
		}
		if c.ignore != nil && c.ignore(from) {
			continue
		}
		if c.remote == nil {
			c.recordPeer(from)
		}
		c.pending = splitDatagram(c.buffer[:size])
	}
	frame := c.pending[0]
	c.pending = c.pending[1:]
	return frame, nil
}

func (c *datagramConn) recordPeer(from net.Addr) {
	now := c.now()
	key := from.String()

	c.peersMutex.Lock()
	defer c.peersMutex.Unlock()
	if peer, known := c.peers[key]; known {
		peer.lastSeen = now
		return
	}
	if len(c.peers) >= maxUDPPeers {
		c.expirePeersLocked(now)
	}
	if len(c.peers) >= maxUDPPeers {
		var oldestKey string
		var oldest time.Time
		for candidate, peer := range c.peers {
			if oldestKey == "" || peer.lastSeen.Before(oldest) {
				oldestKey, oldest = candidate, peer.lastSeen
			}
		}
		delete(c.peers, oldestKey)
	}
	c.peers[key] = &udpPeer{address: from, lastSeen: now}
}

func (c *datagramConn) expirePeersLocked(now time.Time) {
	for key, peer := range c.peers {
		if now.Sub(peer.lastSeen) > udpPeerIdleTimeout {
			delete(c.peers, key)
		}
	}
}

// WriteFrame returns ErrNoPeers from a udpin link that has not heard
// from any sender recently.
func (c *datagramConn) WriteFrame(raw []byte) error {
	if c.remote != nil {
		_, err := c.socket.WriteTo(raw, c.remote)
		return err
	}

	c.peersMutex.Lock()
	c.expirePeersLocked(c.now())
	targets := make([]net.Addr, 0, len(c.peers))
	for _, peer := range c.peers {
		targets = append(targets, peer.address)
	}
	c.peersMutex.Unlock()

	if len(targets) == 0 {
		return ErrNoPeers
	}
	var errs []error
	for _, target := range targets {
		if _, err := c.socket.WriteTo(raw, target); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (c *datagramConn) Close() error {
	return c.socket.Close()
}

// LocalAddr returns the bound socket address.
func (c *datagramConn) LocalAddr() net.Addr {
	return c.socket.LocalAddr()
}

// peerCount returns the number of senders udpin currently writes to.
func (c *datagramConn) peerCount() int {
	c.peersMutex.Lock()
	defer c.peersMutex.Unlock()
	return len(c.peers)
}

func splitDatagram(datagram []byte) []mavframe.Frame {
	var frames []mavframe.Frame
	for len(datagram) > 0 {
		frame, skipped, _, err := mavframe.Parse(datagram)
		if err != nil {
			break
		}
		frames = append(frames, frame)
		datagram = datagram[skipped+len(frame.Raw):]
	}
	return frames
}
