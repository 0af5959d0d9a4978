// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/bureau-foundation/mavlink-bridge/lib/mavframe"
	"github.com/bureau-foundation/mavlink-bridge/lib/netutil"
)

// tcpServerConn accepts any number of TCP clients and presents them as
// one link: frames from every client are merged into one read stream,
// and every write goes to every client. A client disconnecting is not
// an error for the link; only the listener failing is. A client that
// cannot take a frame within writeTimeout is disconnected.
type tcpServerConn struct {
	listener     net.Listener
	logger       *slog.Logger
	writeTimeout time.Duration

	frames chan mavframe.Frame

	// stopped is closed when the accept loop exits; acceptErr is valid
	// after that.
	stopped   chan struct{}
	acceptErr error

	done      chan struct{}
	closeOnce sync.Once
	waitGroup sync.WaitGroup

	clientsMutex sync.Mutex
	clients      map[net.Conn]struct{}
}

func newTCPServerConn(listener net.Listener, logger *slog.Logger, writeTimeout time.Duration) *tcpServerConn {
	server := &tcpServerConn{
		listener:     listener,
		logger:       logger,
		writeTimeout: writeTimeout,
		frames:       make(chan mavframe.Frame, 64),
		stopped:      make(chan struct{}),
		done:         make(chan struct{}),
		clients:      make(map[net.Conn]struct{}),
	}
	server.waitGroup.Add(1)
	go server.acceptLoop()
	return server
}

// Addr returns the listening address.
func (s *tcpServerConn) Addr() net.Addr {
	return s.listener.Addr()
}

func (s *tcpServerConn) acceptLoop() {
	defer s.waitGroup.Done()
	defer close(s.stopped)

	for {
		connection, err := s.listener.Accept()
		if err != nil {
			s.acceptErr = err
			return
		}

		s.clientsMutex.Lock()
		s.clients[connection] = struct{}{}
		s.clientsMutex.Unlock()
		s.logger.Debug("tcp client connected", "remote", connection.RemoteAddr().String())

		s.waitGroup.Add(1)
		go s.readClient(connection)
	}
}

func (s *tcpServerConn) readClient(connection net.Conn) {
	defer s.waitGroup.Done()
	defer s.dropClient(connection)

	reader := mavframe.NewReader(connection)
	for {
		frame, err := reader.ReadFrame()
		if err != nil {
			if !netutil.IsExpectedCloseError(err) {
				s.logger.Warn("tcp client read failed", "remote", connection.RemoteAddr().String(), "error", err)
			}
			return
		}
		select {
		case s.frames <- frame:
		case <-s.done:
			return
		}
	}
}

func (s *tcpServerConn) dropClient(connection net.Conn) {
	s.clientsMutex.Lock()
	_, present := s.clients[connection]
	delete(s.clients, connection)
	s.clientsMutex.Unlock()
	if present {
		connection.Close()
		s.logger.Debug("tcp client disconnected", "remote", connection.RemoteAddr().String())
	}
}

func (s *tcpServerConn) ReadFrame() (mavframe.Frame, error) {
	select {
	case frame := <-s.frames:
		return frame, nil
	case <-s.stopped:
		return mavframe.Frame{}, s.acceptErr
	}
}

// WriteFrame sends raw to every client. Each client gets its own
// writeTimeout; a client that misses it is disconnected, so a stalled
// client delays the endpoint once.
func (s *tcpServerConn) WriteFrame(raw []byte) error {
	s.clientsMutex.Lock()
	targets := make([]net.Conn, 0, len(s.clients))
	for connection := range s.clients {
		targets = append(targets, connection)
	}
	s.clientsMutex.Unlock()

	if len(targets) == 0 {
		return ErrNoPeers
	}
	var errs []error
	for _, connection := range targets {
		connection.SetWriteDeadline(time.Now().Add(s.writeTimeout))
		if _, err := connection.Write(raw); err != nil {
			remote := connection.RemoteAddr().String()
			errs = append(errs, fmt.Errorf("tcp client %s: %w", remote, err))
			s.logger.Warn("dropping tcp client after failed write", "remote", remote, "error", err)
			s.dropClient(connection)
		}
	}
	return errors.Join(errs...)
}

// clientCount returns the number of connected clients.
func (s *tcpServerConn) clientCount() int {
	s.clientsMutex.Lock()
	defer s.clientsMutex.Unlock()
	return len(s.clients)
}

func (s *tcpServerConn) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		err = s.listener.Close()

		s.clientsMutex.Lock()
		for connection := range s.clients {
			connection.Close()
		}
		s.clientsMutex.Unlock()

		s.waitGroup.Wait()
	})
	return err
}
