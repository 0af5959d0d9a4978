// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	mavlinkframe "github.com/bluenviron/gomavlib/v3/pkg/frame"
	"github.com/bluenviron/gomavlib/v3/pkg/message"

	"github.com/bureau-foundation/mavlink-bridge/lib/mavframe"
	"github.com/bureau-foundation/mavlink-bridge/transport"
)

// heartbeatCRCExtra is the checksum seed of HEARTBEAT.
const heartbeatCRCExtra = 50

// heartbeat returns an unsigned HEARTBEAT frame from system 1,
// component 1 with the given version and sequence number.
func heartbeat(version mavframe.Version, sequence byte) []byte {
	content := &message.MessageRaw{ID: 0, Payload: []byte{0x00, 0x00, 0x00, 0x00, 0x02, 0x03, 0x51, 0x04, 0x03}}
	var built mavlinkframe.Frame
	if version == mavframe.V1 {
		v1 := &mavlinkframe.V1Frame{SequenceNumber: sequence, SystemID: 1, ComponentID: 1, Message: content}
		v1.Checksum = v1.GenerateChecksum(heartbeatCRCExtra)
		built = v1
	} else {
		v2 := &mavlinkframe.V2Frame{SequenceNumber: sequence, SystemID: 1, ComponentID: 1, Message: content}
		v2.Checksum = v2.GenerateChecksum(heartbeatCRCExtra)
		built = v2
	}

	var buffer bytes.Buffer
	writer, err := mavlinkframe.NewWriter(mavlinkframe.WriterConf{Writer: &buffer, OutVersion: mavlinkframe.V2, OutSystemID: 1})
	if err != nil {
		panic(err)
	}
	if err := writer.WriteFrame(built); err != nil {
		panic(err)
	}
	return buffer.Bytes()
}

// fakeConn is a transport.Conn driven by the test. Frames sent on
// inbound are returned by ReadFrame; written frames appear on written.
type fakeConn struct {
	inbound    chan []byte
	readErrors chan error
	written    chan []byte
	failWrites atomic.Int32
	noPeers    atomic.Bool
	closed     chan struct{}
	closeOnce  sync.Once
}

var _ transport.Conn = (*fakeConn)(nil)

func newFakeConn() *fakeConn {
	return &fakeConn{
		inbound:    make(chan []byte, 16),
		readErrors: make(chan error, 1),
		written:    make(chan []byte, 64),
		closed:     make(chan struct{}),
	}
}

func (c *fakeConn) ReadFrame() (mavframe.Frame, error) {
	select {
	case raw := <-c.inbound:
		return mavframe.ParseExact(raw)
	case err := <-c.readErrors:
		return mavframe.Frame{}, err
	case <-c.closed:
		return mavframe.Frame{}, net.ErrClosed
	}
}

func (c *fakeConn) WriteFrame(raw []byte) error {
	if c.failWrites.Load() > 0 {
		c.failWrites.Add(-1)
		return fmt.Errorf("write: no buffer space available")
	}
	if c.noPeers.Load() {
		return transport.ErrNoPeers
	}
	select {
	case c.written <- append([]byte(nil), raw...):
		return nil
	case <-c.closed:
		return net.ErrClosed
	}
}

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

// requireNoWrite fails if anything is written to the connection within
// a short window.
func (c *fakeConn) requireNoWrite(t *testing.T) {
	t.Helper()
	select {
	case raw := <-c.written:
		t.Fatalf("unexpected write %x", raw)
	case <-time.After(50 * time.Millisecond):
	}
}

// fakeOpener hands out prepared connections by address.
type fakeOpener struct {
	mutex       sync.Mutex
	connections map[string]*fakeConn
	failures    map[string]error
}

var _ transport.Opener = (*fakeOpener)(nil)

func newFakeOpener() *fakeOpener {
	return &fakeOpener{
		connections: make(map[string]*fakeConn),
		failures:    make(map[string]error),
	}
}

// add prepares a connection for address and returns it.
func (o *fakeOpener) add(address string) *fakeConn {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	connection := newFakeConn()
	o.connections[address] = connection
	return connection
}

func (o *fakeOpener) fail(address string, err error) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.failures[address] = err
}

func (o *fakeOpener) Open(ctx context.Context, address string) (transport.Conn, error) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	if err, failing := o.failures[address]; failing {
		return nil, err
	}
	connection, exists := o.connections[address]
	if !exists {
		return nil, fmt.Errorf("no fake connection for %q", address)
	}
	return connection, nil
}

// lockedBuffer collects log output written from several goroutines.
type lockedBuffer struct {
	mutex  sync.Mutex
	buffer bytes.Buffer
}

func (b *lockedBuffer) Write(data []byte) (int, error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return b.buffer.Write(data)
}

func (b *lockedBuffer) String() string {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return b.buffer.String()
}

// eventually polls condition until it holds or five seconds pass.
func eventually(t *testing.T, description string, condition func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !condition() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", description)
		}
		time.Sleep(5 * time.Millisecond)
	}
}
