// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"io"
	"time"

	"github.com/bureau-foundation/mavlink-bridge/lib/mavframe"
)

// writeDeadliner is implemented by sockets and by serial ports opened
// non-blocking.
type writeDeadliner interface {
	SetWriteDeadline(time.Time) error
}

// streamConn carries frames over a byte stream: a serial port or one
// TCP connection. When the stream supports write deadlines, a write
// that cannot complete within writeTimeout fails with
// os.ErrDeadlineExceeded and the stream stays open; the remote parser
// skips any partial frame left behind.
type streamConn struct {
	stream       io.ReadWriteCloser
	reader       *mavframe.Reader
	writeTimeout time.Duration
}

func newStreamConn(stream io.ReadWriteCloser, writeTimeout time.Duration) *streamConn {
	return &streamConn{stream: stream, reader: mavframe.NewReader(stream), writeTimeout: writeTimeout}
}

func (c *streamConn) ReadFrame() (mavframe.Frame, error) {
	return c.reader.ReadFrame()
}

func (c *streamConn) WriteFrame(raw []byte) error {
	if deadliner, ok := c.stream.(writeDeadliner); ok && c.writeTimeout > 0 {
		// Files that cannot take deadlines report os.ErrNoDeadline and
		// simply block.
		deadliner.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	_, err := c.stream.Write(raw)
	return err
}

func (c *streamConn) Close() error {
	return c.stream.Close()
}
