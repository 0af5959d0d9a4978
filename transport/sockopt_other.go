// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build !unix

package transport

import (
	"fmt"
	"runtime"
	"syscall"
)

func enableBroadcast(network, address string, raw syscall.RawConn) error {
	return fmt.Errorf("udpbcast endpoints are not supported on %s", runtime.GOOS)
}
