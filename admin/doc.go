// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package admin serves a read-only HTTP view of a running bridge.
//
// Two endpoints are exposed:
//
//   - GET /status returns the bridge's [bridge.RuntimeStatus] as JSON:
//     identity, liveliness keys, relay counters, and the state of every
//     connection handler and overlay task.
//   - GET /liveliness?key=<expr> returns the keys of all live overlay
//     tokens matching a key expression, local and remote. Without a key
//     the expression is @/*/@mavlink/**, which lists every bridge on the
//     overlay.
//
// [Server] owns the listener and graceful shutdown; [NewHandler] builds
// the routes and can be mounted in any http.Server.
package admin
