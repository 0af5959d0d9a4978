// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"
)

var _ Opener = (*SystemOpener)(nil)

// SystemOpener opens real serial ports and sockets.
type SystemOpener struct {
	// Logger receives per-client events for tcpin links. Nil means
	// slog.Default().
	Logger *slog.Logger

	// DialTimeout bounds tcpout connection attempts in addition to the
	// context deadline. Zero means only the context applies.
	DialTimeout time.Duration

	// WriteTimeout bounds one frame write to a stream link or to one
	// tcpin client. Zero means DefaultWriteTimeout.
	WriteTimeout time.Duration
}

// Open parses address and opens the link it names.
func (o *SystemOpener) Open(ctx context.Context, address string) (Conn, error) {
	parsed, err := ParseAddress(address)
	if err != nil {
		return nil, err
	}
	logger := o.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("endpoint", address)
	writeTimeout := o.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = DefaultWriteTimeout
	}

	switch parsed.Scheme {
	case SchemeSerial:
		port, err := openSerial(parsed.Target, parsed.Baud)
		if err != nil {
			return nil, fmt.Errorf("opening serial port %s: %w", parsed.Target, err)
		}
		return newStreamConn(port, writeTimeout), nil

	case SchemeTCPOut:
		dialer := &net.Dialer{Timeout: o.DialTimeout}
		connection, err := dialer.DialContext(ctx, "tcp", parsed.Target)
		if err != nil {
			return nil, fmt.Errorf("connecting to %s: %w", parsed.Target, err)
		}
		return newStreamConn(connection, writeTimeout), nil

	case SchemeTCPIn:
		var listenConfig net.ListenConfig
		listener, err := listenConfig.Listen(ctx, "tcp", parsed.Target)
		if err != nil {
			return nil, fmt.Errorf("listening on %s: %w", parsed.Target, err)
		}
		return newTCPServerConn(listener, logger, writeTimeout), nil

	case SchemeUDPIn:
		var listenConfig net.ListenConfig
		socket, err := listenConfig.ListenPacket(ctx, "udp", parsed.Target)
		if err != nil {
			return nil, fmt.Errorf("binding %s: %w", parsed.Target, err)
		}
		return newDatagramConn(socket, nil), nil

	case SchemeUDPOut:
		remote, err := net.ResolveUDPAddr("udp", parsed.Target)
		if err != nil {
			return nil, fmt.Errorf("resolving %s: %w", parsed.Target, err)
		}
		var listenConfig net.ListenConfig
		socket, err := listenConfig.ListenPacket(ctx, "udp", ":0")
		if err != nil {
			return nil, fmt.Errorf("binding local socket for %s: %w", parsed.Target, err)
		}
		return newDatagramConn(socket, remote), nil

	case SchemeUDPBroadcast:
		return openBroadcast(ctx, parsed.Target)

	default:
		return nil, fmt.Errorf("endpoint address %q: unsupported scheme %q", address, parsed.Scheme)
	}
}

// openBroadcast binds the broadcast port on all interfaces so frames
// broadcast by other hosts are received, and sends every frame to the
// broadcast address. Datagrams looped back from this host are dropped.
func openBroadcast(ctx context.Context, target string) (Conn, error) {
	remote, err := net.ResolveUDPAddr("udp4", target)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", target, err)
	}
	listenConfig := net.ListenConfig{Control: enableBroadcast}
	socket, err := listenConfig.ListenPacket(ctx, "udp4", fmt.Sprintf(":%d", remote.Port))
	if err != nil {
		return nil, fmt.Errorf("binding broadcast port %d: %w", remote.Port, err)
	}

	local, err := localAddresses()
	if err != nil {
		socket.Close()
		return nil, err
	}
	connection := newDatagramConn(socket, remote)
	connection.ignore = func(from net.Addr) bool {
		udp, ok := from.(*net.UDPAddr)
		return ok && udp.Port == remote.Port && local[udp.IP.String()]
	}
	return connection, nil
}

func localAddresses() (map[string]bool, error) {
	addresses, err := net.InterfaceAddrs()
	if err != nil {
		return nil, fmt.Errorf("listing interface addresses: %w", err)
	}
	local := make(map[string]bool, len(addresses))
	for _, address := range addresses {
		if network, ok := address.(*net.IPNet); ok {
			local[network.IP.String()] = true
		}
	}
	return local, nil
}
