// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build unix

package transport

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// enableBroadcast is a net.ListenConfig Control hook that allows
// sending to broadcast addresses and sharing the port with other
// listeners on the same host.
func enableBroadcast(network, address string, raw syscall.RawConn) error {
	var sockoptErr error
	err := raw.Control(func(fd uintptr) {
		if sockoptErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_BROADCAST, 1); sockoptErr != nil {
			return
		}
		sockoptErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
	})
	if err != nil {
		return err
	}
	return sockoptErr
}
