// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Mavlink-overlay-tap joins the overlay as a client and shows what
// bridges are publishing. By default it prints one line per frame put
// under @/*/@mavlink/v2/out. With --list it prints the live bridge
// tokens and exits; with --inject-hex it puts one frame under a
// bridge's /v2/in key and exits.
package main
