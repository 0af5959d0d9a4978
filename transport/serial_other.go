// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build !linux

package transport

import (
	"fmt"
	"io"
	"runtime"
)

func openSerial(device string, baud int) (io.ReadWriteCloser, error) {
	return nil, fmt.Errorf("serial endpoints are not supported on %s", runtime.GOOS)
}
