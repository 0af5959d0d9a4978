// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"fmt"
	"runtime"
)

// These variables are set via -ldflags at build time.
var (
	// GitCommit is the short git SHA of the build.
	GitCommit = "unknown"

	// GitDirty indicates whether there were uncommitted changes.
	GitDirty = "false"

	// Version is the semantic version.
	Version = "0.1.0-dev"
)

// Info returns a formatted version string suitable for --version output.
func Info() string {
	dirty := ""
	if GitDirty == "true" {
		dirty = "-dirty"
	}
	return fmt.Sprintf("%s (%s%s)", Version, GitCommit, dirty)
}

// Full returns Info followed by the Go toolchain and platform, as
// reported by the admin status endpoint.
func Full() string {
	return fmt.Sprintf("%s go=%s %s/%s", Info(), runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

// Print writes the --version line for binary to stdout.
func Print(binary string) {
	fmt.Printf("%s %s\n", binary, Info())
}
