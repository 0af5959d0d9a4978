// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package netutil holds small helpers shared by the endpoint
// transports and the overlay peer links.
package netutil

import (
	"errors"
	"io"
	"net"
	"os"
	"syscall"
)

var closeErrors = []error{
	io.EOF,
	io.ErrUnexpectedEOF,
	net.ErrClosed,
	os.ErrClosed,
	syscall.EPIPE,
	syscall.ECONNRESET,
	syscall.ECONNABORTED,
}

// IsExpectedCloseError reports whether err only says that the link went
// away: the remote end hung up, possibly mid-message, or the local end
// was closed during shutdown. Callers log these at debug level.
func IsExpectedCloseError(err error) bool {
	if err == nil {
		return false
	}
	for _, target := range closeErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
