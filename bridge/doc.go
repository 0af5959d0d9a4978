// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package bridge connects MAVLink endpoints to the overlay.
//
// A running bridge ([Runtime]) owns one [relay.Relay] and wires these
// units of work to it, each on its own goroutine:
//
//   - One [ConnectionHandler] per configured endpoint. It opens the
//     endpoint's transport, publishes every frame it reads to the
//     relay, and writes every relayed frame to the transport except
//     frames whose origin is its own endpoint address (echo
//     suppression). Failing to open or read the transport ends that
//     handler only; a failed write is logged and forwarding continues.
//     There is no reconnection: an endpoint that fails stays down.
//   - The [Supervisor], which starts the handlers, records their
//     status, and logs a terminal condition once all of them have
//     ended. It never restarts handlers and never stops the process.
//   - The [EgressTask], which publishes every relayed frame, whatever
//     its origin, under "@/<identity>/@mavlink/v2/out".
//   - The [IngressTask], which subscribes to
//     "@/<identity>/@mavlink/v2/in", checks that each payload is one
//     MAVLink frame, and injects it into the relay with origin
//     [OverlayOrigin].
//
// At startup the runtime declares the liveliness token
// "@/<identity>/@mavlink", plus ".../v2/out" and ".../v2/in" for the
// enabled overlay directions. <identity> is the overlay session
// identity, or the configured group member identity so that several
// bridge processes can present as one member. The tokens are
// undeclared when the runtime is closed.
//
// An optional lib/watchdog monitor reports scheduler stalls.
//
// Errors are typed by where they stop the bridge: [ConfigError] and
// [LivelinessError] abort startup; [ConnectError] and [ReadError] end
// one connection handler; [OverlayError] ends one overlay task;
// [WriteError] and relay lag are logged and forwarding continues.
//
// [Plugin] exposes the same runtime to hosts that own the overlay
// session and the process, such as the standalone cmd/mavlink-bridge.
package bridge
